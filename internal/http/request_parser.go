// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// JSON bodies, listing filters and report parameters.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rwa/internal/core"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

var errBodyTooLarge = errors.New("request body too large")

// decodeJSON reads exactly one JSON value from the request body into v.
// Unknown fields are rejected so typos surface as 400s.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// ParseFilter builds a listing filter from mode, type and resident_id.
func ParseFilter(query url.Values) (core.Filter, error) {
	var f core.Filter
	if v := strings.TrimSpace(query.Get("mode")); v != "" {
		m, err := core.ParseMode(v)
		if err != nil {
			return core.Filter{}, err
		}
		f.Mode = m
	}
	if v := strings.TrimSpace(query.Get("type")); v != "" {
		t, err := core.ParseType(v)
		if err != nil {
			return core.Filter{}, err
		}
		f.Type = t
	}
	f.ResidentID = sanitizeInput(query.Get("resident_id"))
	return f, nil
}

// ParseIdentity reads resident_id, name and house from the query.
func ParseIdentity(query url.Values) core.Identity {
	return core.Identity{
		ResidentID: sanitizeInput(query.Get("resident_id")),
		Name:       sanitizeInput(query.Get("name")),
		HouseNo:    sanitizeInput(query.Get("house")),
	}
}

// ParseFinancialYear reads fy ("2024-2025"), defaulting to the year that
// contains now.
func ParseFinancialYear(query url.Values, now time.Time) (core.FinancialYear, error) {
	v := strings.TrimSpace(query.Get("fy"))
	if v == "" {
		return core.CurrentFinancialYear(now), nil
	}
	return core.ParseFinancialYear(v)
}
