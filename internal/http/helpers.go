package http

import (
	"errors"
	"strings"
	"time"

	"rwa/internal/core"
)

var errMissingDate = errors.New("date is required (YYYY-MM-DD)")

// parseDate parses a date string in YYYY-MM-DD format.
func parseDate(dateStr string) (core.Date, error) {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return core.Date{}, errMissingDate
	}
	parsedTime, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		return core.Date{}, err
	}
	return core.DateOf(parsedTime), nil
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}
