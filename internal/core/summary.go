package core

import (
	"sort"
	"strings"
)

const (
	CategoryExpense      = "Expense"
	CategorySubscription = "Monthly Subscription"
	CategoryOtherIncome  = "Other Income"
)

type (
	// MonthSummary totals one calendar month of the ledger.
	MonthSummary struct {
		Month        YearMonth
		Subscription Money
		OtherIncome  Money
		Expenses     Money
		Entries      int
	}

	// Filter narrows a transaction listing. Zero fields match everything.
	Filter struct {
		Mode       Mode
		Type       TxType
		ResidentID string
	}
)

// Net is income minus expenses for the month.
func (s MonthSummary) Net() Money {
	return s.Subscription.Add(s.OtherIncome).Sub(s.Expenses)
}

// Category classifies an entry for exports.
func Category(t Transaction) string {
	switch {
	case t.Type == Paid:
		return CategoryExpense
	case t.IsSubscription():
		return CategorySubscription
	default:
		return CategoryOtherIncome
	}
}

func (f Filter) Match(t Transaction) bool {
	if f.Mode != "" && t.Mode != f.Mode {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.ResidentID != "" && t.ResidentID != f.ResidentID {
		return false
	}
	return true
}

// Apply returns the matching entries, newest first.
func (f Filter) Apply(entries []Transaction) []Transaction {
	out := make([]Transaction, 0, len(entries))
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	SortByDateDesc(out)
	return out
}

// SortByDateDesc orders entries newest first, breaking ties on creation time.
func SortByDateDesc(entries []Transaction) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date.Time) {
			return entries[i].Date.After(entries[j].Date.Time)
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
}

// SortByDateAsc orders entries oldest first.
func SortByDateAsc(entries []Transaction) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date.Time) {
			return entries[i].Date.Before(entries[j].Date.Time)
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}

// Recent returns up to n newest entries.
func Recent(entries []Transaction, n int) []Transaction {
	out := Filter{}.Apply(entries)
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// SummarizeByMonth groups entries by calendar month, oldest month first.
func SummarizeByMonth(entries []Transaction) []MonthSummary {
	byMonth := make(map[YearMonth]*MonthSummary)
	for _, e := range entries {
		ym := e.Date.YearMonth()
		s, ok := byMonth[ym]
		if !ok {
			s = &MonthSummary{Month: ym}
			byMonth[ym] = s
		}
		s.Entries++
		switch Category(e) {
		case CategoryExpense:
			s.Expenses = s.Expenses.Add(e.Amount)
		case CategorySubscription:
			s.Subscription = s.Subscription.Add(e.Amount)
		default:
			s.OtherIncome = s.OtherIncome.Add(e.Amount)
		}
	}
	out := make([]MonthSummary, 0, len(byMonth))
	for _, s := range byMonth {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Month.Before(out[j].Month)
	})
	return out
}

// SearchResidents matches query against name or house number,
// case-insensitively. An empty query returns everyone. Results are sorted by name.
func SearchResidents(residents []Resident, query string) []Resident {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Resident, 0, len(residents))
	for _, r := range residents {
		if q == "" || strings.Contains(strings.ToLower(r.Name), q) || strings.Contains(strings.ToLower(r.HouseNo), q) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// History returns the resident's entries, newest first. An entry belongs to
// the resident when both the name and the house number match, or when both
// carry the same resident ID.
func History(entries []Transaction, r Resident) []Transaction {
	out := make([]Transaction, 0)
	for _, e := range entries {
		if r.ID != "" && e.ResidentID == r.ID {
			out = append(out, e)
			continue
		}
		if (NameAndHouseMatcher{}).Matches(e, IdentityOfResident(r)) {
			out = append(out, e)
		}
	}
	SortByDateDesc(out)
	return out
}
