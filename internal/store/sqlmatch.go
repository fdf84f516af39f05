package store

import (
	"strconv"
	"strings"

	"rwa/internal/core"
)

// Placeholder renders the n-th (1-based) bind parameter for a SQL dialect.
type Placeholder func(n int) string

// QuestionMark is the sqlite placeholder style.
func QuestionMark(int) string { return "?" }

// Dollar is the postgres placeholder style.
func Dollar(n int) string { return "$" + strconv.Itoa(n) }

// MatchClause renders core.MatchPolicy as a SQL predicate over the
// resident_id, resident_name and house_no columns. next is the index of the
// first placeholder to use. Values are compared trimmed, and empty
// identity fields never match.
func MatchClause(policy core.MatchPolicy, who core.Identity, ph Placeholder, next int) (string, []any) {
	name := strings.TrimSpace(who.Name)
	house := strings.TrimSpace(who.HouseNo)

	nameOrHouse := func(n int) (string, []any) {
		var parts []string
		var args []any
		if name != "" {
			parts = append(parts, "resident_name = "+ph(n))
			args = append(args, name)
			n++
		}
		if house != "" {
			parts = append(parts, "house_no = "+ph(n))
			args = append(args, house)
		}
		if len(parts) == 0 {
			return "1 = 0", nil
		}
		return "(" + strings.Join(parts, " OR ") + ")", args
	}

	switch policy {
	case core.MatchNameAndHouse:
		if name == "" || house == "" {
			return "1 = 0", nil
		}
		return "(resident_name = " + ph(next) + " AND house_no = " + ph(next+1) + ")", []any{name, house}
	case core.MatchResidentID:
		if who.ResidentID == "" {
			return nameOrHouse(next)
		}
		fallback, args := nameOrHouse(next + 1)
		return "(resident_id = " + ph(next) + " OR (resident_id = '' AND " + fallback + "))",
			append([]any{who.ResidentID}, args...)
	default:
		return nameOrHouse(next)
	}
}
