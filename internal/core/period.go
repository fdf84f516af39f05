package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FinancialYearStartMonth is April; a financial year runs Apr..Mar.
const FinancialYearStartMonth = 4

var monthAbbrev = [...]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

type (
	// YearMonth identifies a calendar month.
	YearMonth struct {
		Year  int
		Month int // 1-12
	}

	// FinancialYear is the Apr(StartYear)..Mar(StartYear+1) period.
	FinancialYear struct {
		StartYear int
	}
)

// ParseYearMonth parses "YYYY-MM".
func ParseYearMonth(s string) (YearMonth, error) {
	s = strings.TrimSpace(s)
	y, m, ok := strings.Cut(s, "-")
	if !ok || len(y) != 4 || len(m) != 2 {
		return YearMonth{}, &ValidationError{Field: "period", Err: ErrInvalidPeriod}
	}
	year, err := strconv.Atoi(y)
	if err != nil {
		return YearMonth{}, &ValidationError{Field: "period", Err: ErrInvalidPeriod}
	}
	month, err := strconv.Atoi(m)
	if err != nil || month < 1 || month > 12 {
		return YearMonth{}, &ValidationError{Field: "period", Err: ErrInvalidMonth}
	}
	return YearMonth{Year: year, Month: month}, nil
}

// String renders "YYYY-MM".
func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month)
}

// Label renders "Feb 2025".
func (ym YearMonth) Label() string {
	return fmt.Sprintf("%s %d", ym.Abbrev(), ym.Year)
}

// Abbrev returns the three-letter month name.
func (ym YearMonth) Abbrev() string {
	if ym.Month < 1 || ym.Month > 12 {
		return "???"
	}
	return monthAbbrev[ym.Month-1]
}

func (ym YearMonth) Valid() bool {
	return ym.Month >= 1 && ym.Month <= 12
}

// AddMonths moves forward (or backward for negative n) by n months.
func (ym YearMonth) AddMonths(n int) YearMonth {
	idx := ym.Year*12 + (ym.Month - 1) + n
	return YearMonth{Year: idx / 12, Month: idx%12 + 1}
}

// Before reports whether ym is earlier than o.
func (ym YearMonth) Before(o YearMonth) bool {
	return ym.Year < o.Year || (ym.Year == o.Year && ym.Month < o.Month)
}

// FirstDay returns the first calendar day of the month.
func (ym YearMonth) FirstDay() Date {
	return NewDate(ym.Year, ym.Month, 1)
}

// Contains reports whether d falls in this month.
func (ym YearMonth) Contains(d Date) bool {
	return !d.IsZero() && d.Year() == ym.Year && d.Month() == ym.Month
}

// MonthsBetween counts the months from..to inclusive. The result is < 1
// when to precedes from.
func MonthsBetween(from, to YearMonth) int {
	return (to.Year-from.Year)*12 + (to.Month - from.Month) + 1
}

// PeriodLabel renders the "YYYY-MM to YYYY-MM" label stored on batch entries.
func PeriodLabel(from, to YearMonth) string {
	return from.String() + " to " + to.String()
}

// ParseFinancialYear parses "YYYY-YYYY" where the second year follows the first.
func ParseFinancialYear(s string) (FinancialYear, error) {
	bad := &ValidationError{Field: "financial_year", Err: ErrInvalidFinancialYear}
	a, b, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok || len(a) != 4 || len(b) != 4 {
		return FinancialYear{}, bad
	}
	start, err := strconv.Atoi(a)
	if err != nil {
		return FinancialYear{}, bad
	}
	end, err := strconv.Atoi(b)
	if err != nil || end != start+1 {
		return FinancialYear{}, bad
	}
	return FinancialYear{StartYear: start}, nil
}

// CurrentFinancialYear returns the financial year that contains now.
func CurrentFinancialYear(now time.Time) FinancialYear {
	if int(now.Month()) >= FinancialYearStartMonth {
		return FinancialYear{StartYear: now.Year()}
	}
	return FinancialYear{StartYear: now.Year() - 1}
}

func (fy FinancialYear) EndYear() int {
	return fy.StartYear + 1
}

func (fy FinancialYear) String() string {
	return fmt.Sprintf("%d-%d", fy.StartYear, fy.EndYear())
}

// First is April of the start year.
func (fy FinancialYear) First() YearMonth {
	return YearMonth{Year: fy.StartYear, Month: FinancialYearStartMonth}
}

// Last is March of the end year.
func (fy FinancialYear) Last() YearMonth {
	return fy.First().AddMonths(11)
}

// Months lists the twelve months in financial-year order.
func (fy FinancialYear) Months() []YearMonth {
	out := make([]YearMonth, 12)
	first := fy.First()
	for i := range out {
		out[i] = first.AddMonths(i)
	}
	return out
}

// Contains reports whether the month belongs to the financial year.
func (fy FinancialYear) Contains(ym YearMonth) bool {
	d := MonthsBetween(fy.First(), ym)
	return d >= 1 && d <= 12
}

// SuggestReceiptBase returns the default receipt prefix "REC-YYYY-MM-".
func SuggestReceiptBase(now time.Time) string {
	return fmt.Sprintf("REC-%04d-%02d-", now.Year(), int(now.Month()))
}

// ReceiptNumber returns the receipt for the index-th (0-based) entry of a
// batch of total entries. Single-entry batches keep the bare base.
func ReceiptNumber(base string, index, total int) string {
	base = strings.TrimSpace(base)
	if total > 1 {
		return fmt.Sprintf("%s/%d", base, index+1)
	}
	return base
}

// SubscriptionReason is the reason recorded on a monthly subscription entry.
func SubscriptionReason(ym YearMonth) string {
	return "Monthly Subscription - " + ym.Label()
}
