// Package export renders ledger views as spreadsheet-friendly records.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"rwa/internal/core"
)

// AnnualPaymentNote marks a subscription entry that covers a full year.
const AnnualPaymentNote = "Annual Payment"

const utf8BOM = "\uFEFF"

// TransactionHeader is the column layout of the transaction export.
var TransactionHeader = []string{
	"Date", "Month", "Resident Name", "House No", "Mode", "Type", "Amount", "Category", "Reason", "Notes",
}

// TransactionRecord renders one entry. Amounts are signed: positive for
// Received, negative for Paid.
func TransactionRecord(t core.Transaction, due core.Money) []string {
	return []string{
		t.Date.Format("2006-01-02"),
		monthName(t.Date),
		t.ResidentName,
		t.HouseNo,
		string(t.Mode),
		string(t.Type),
		t.Signed().StringFixed(),
		core.Category(t),
		t.Reason,
		notes(t, due),
	}
}

// WriteTransactionsCSV writes entries in ascending date order with a UTF-8
// byte order mark so spreadsheet tools detect the encoding.
func WriteTransactionsCSV(w io.Writer, entries []core.Transaction, due core.Money) error {
	sorted := append([]core.Transaction(nil), entries...)
	core.SortByDateAsc(sorted)

	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(TransactionHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, t := range sorted {
		if err := cw.Write(TransactionRecord(t, due)); err != nil {
			return fmt.Errorf("write entry %s: %w", t.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FinancialYearHeader returns the matrix columns in FY month order.
func FinancialYearHeader(m core.FYMatrix) []string {
	header := []string{"S.No", "Resident Name", "House No"}
	for _, ym := range m.Months {
		header = append(header, ym.Label())
	}
	return append(header, "Paid Months", "Amount Paid", "Due")
}

// FinancialYearRecords renders the matrix rows followed by the balance
// summary lines.
func FinancialYearRecords(m core.FYMatrix) [][]string {
	out := make([][]string, 0, len(m.Rows)+5)
	out = append(out, FinancialYearHeader(m))
	for _, r := range m.Rows {
		rec := []string{strconv.Itoa(r.Serial), r.Resident.Name, r.Resident.HouseNo}
		for _, paid := range r.Paid {
			if paid {
				rec = append(rec, "Paid")
			} else {
				rec = append(rec, "Due")
			}
		}
		rec = append(rec, strconv.Itoa(r.PaidMonths), r.AmountPaid.StringFixed(), r.DueLabel())
		out = append(out, rec)
	}
	out = append(out,
		[]string{},
		[]string{"Opening Balance", m.OpeningBalance.StringFixed()},
		[]string{"Total Collected", m.TotalCollected.StringFixed()},
		[]string{"Closing Balance", m.ClosingBalance.StringFixed()},
	)
	return out
}

// WriteFinancialYearCSV writes the compliance matrix for one financial year.
func WriteFinancialYearCSV(w io.Writer, m core.FYMatrix) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(FinancialYearRecords(m)); err != nil {
		return fmt.Errorf("write financial year %s: %w", m.Year, err)
	}
	return nil
}

// FileName builds a download name such as "transactions_2024-2025.csv".
func FileName(kind, label string) string {
	if label == "" {
		return kind + ".csv"
	}
	return kind + "_" + label + ".csv"
}

func monthName(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s %d", d.Time.Month(), d.Year())
}

func notes(t core.Transaction, due core.Money) string {
	if due.Cents <= 0 {
		due = core.DefaultSubscriptionDue
	}
	if t.IsSubscription() && t.Amount == due.Mul(12) {
		return AnnualPaymentNote
	}
	return ""
}
