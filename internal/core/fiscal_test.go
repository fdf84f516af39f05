package core

import (
	"errors"
	"reflect"
	"testing"
)

func TestBuildMatrixPartialYear(t *testing.T) {
	fy, _ := ParseFinancialYear("2025-2026")
	residents := []Resident{{ID: "r1", Name: "A", HouseNo: "H1"}}
	entries := []Transaction{
		sub("1", "A", "H1", YearMonth{2025, 4}),
		sub("2", "A", "H1", YearMonth{2025, 5}),
		// outside the financial year
		sub("3", "A", "H1", YearMonth{2025, 3}),
		// not a subscription
		{ID: "4", ResidentName: "A", HouseNo: "H1", Type: Received, Reason: "Donation", Amount: MoneyFromUnits(50), Date: NewDate(2025, 6, 1)},
	}

	m, err := BuildMatrix(fy, residents, entries, MoneyFromUnits(1000), MatchNameOrHouse, DefaultSubscriptionDue)
	if err != nil {
		t.Fatalf("BuildMatrix: %v", err)
	}
	if len(m.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(m.Rows))
	}
	row := m.Rows[0]
	if row.Serial != 1 || row.PaidMonths != 2 {
		t.Fatalf("row = %+v", row)
	}
	if !row.Paid[0] || !row.Paid[1] || row.Paid[2] {
		t.Fatalf("paid flags = %v", row.Paid)
	}
	if row.AmountPaid != MoneyFromUnits(200) || row.Due != MoneyFromUnits(1000) {
		t.Fatalf("amountPaid=%v due=%v", row.AmountPaid, row.Due)
	}
	if row.DueLabel() != "1000.00" {
		t.Fatalf("due label = %q", row.DueLabel())
	}
	if m.TotalCollected != MoneyFromUnits(200) || m.ClosingBalance != MoneyFromUnits(1200) {
		t.Fatalf("totals: collected=%v closing=%v", m.TotalCollected, m.ClosingBalance)
	}
}

func TestBuildMatrixFullyPaid(t *testing.T) {
	fy := FinancialYear{StartYear: 2025}
	var entries []Transaction
	for i, ym := range fy.Months() {
		entries = append(entries, sub(string(rune('a'+i)), "A", "H1", ym))
	}
	m, err := BuildMatrix(fy, []Resident{{Name: "A", HouseNo: "H1"}, {Name: "B", HouseNo: "H2"}}, entries, Money{}, MatchNameOrHouse, DefaultSubscriptionDue)
	if err != nil {
		t.Fatalf("BuildMatrix: %v", err)
	}
	if got := m.Rows[0].DueLabel(); got != NilDue {
		t.Fatalf("fully paid due label = %q", got)
	}
	if m.Rows[0].AmountPaid != MoneyFromUnits(1200) {
		t.Fatalf("amount paid = %v", m.Rows[0].AmountPaid)
	}
	if m.Rows[1].PaidMonths != 0 || m.Rows[1].Due != MoneyFromUnits(1200) || m.Rows[1].Serial != 2 {
		t.Fatalf("second row = %+v", m.Rows[1])
	}
	if m.ClosingBalance != MoneyFromUnits(1200) {
		t.Fatalf("closing = %v", m.ClosingBalance)
	}
}

func TestBuildMatrixRejectsNegativeOpening(t *testing.T) {
	_, err := BuildMatrix(FinancialYear{StartYear: 2025}, nil, nil, Money{Cents: -1}, MatchNameOrHouse, DefaultSubscriptionDue)
	if !errors.Is(err, ErrNegativeOpening) {
		t.Fatalf("expected ErrNegativeOpening, got %v", err)
	}
}

func TestBuildMatrixIdempotent(t *testing.T) {
	fy := FinancialYear{StartYear: 2024}
	residents := []Resident{{Name: "A", HouseNo: "H1"}, {Name: "B", HouseNo: "H2"}}
	entries := []Transaction{
		sub("1", "A", "H1", YearMonth{2024, 7}),
		sub("2", "B", "H2", YearMonth{2025, 2}),
	}
	first, err := BuildMatrix(fy, residents, entries, MoneyFromUnits(10), MatchNameAndHouse, DefaultSubscriptionDue)
	if err != nil {
		t.Fatal(err)
	}
	second, err := BuildMatrix(fy, residents, entries, MoneyFromUnits(10), MatchNameAndHouse, DefaultSubscriptionDue)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("matrix differs between calls:\n%+v\n%+v", first, second)
	}
}
