package core

import "testing"

func TestSummarizeByMonth(t *testing.T) {
	entries := []Transaction{
		sub("1", "A", "H1", YearMonth{2025, 2}),
		{Type: Received, Reason: "Hall booking", Amount: MoneyFromUnits(500), Date: NewDate(2025, 2, 14)},
		{Type: Paid, Reason: "Security", Amount: MoneyFromUnits(300), Date: NewDate(2025, 2, 20)},
		sub("2", "A", "H1", YearMonth{2025, 1}),
	}
	got := SummarizeByMonth(entries)
	if len(got) != 2 {
		t.Fatalf("expected 2 months, got %d", len(got))
	}
	if got[0].Month != (YearMonth{2025, 1}) {
		t.Fatalf("months not ascending: %v", got[0].Month)
	}
	feb := got[1]
	if feb.Subscription != MoneyFromUnits(100) || feb.OtherIncome != MoneyFromUnits(500) || feb.Expenses != MoneyFromUnits(300) {
		t.Fatalf("february = %+v", feb)
	}
	if feb.Net() != MoneyFromUnits(300) || feb.Entries != 3 {
		t.Fatalf("net=%v entries=%d", feb.Net(), feb.Entries)
	}
}

func TestFilterApply(t *testing.T) {
	entries := []Transaction{
		{ID: "old", Mode: Cash, Type: Received, Date: NewDate(2025, 1, 1)},
		{ID: "new", Mode: Cash, Type: Paid, Date: NewDate(2025, 3, 1)},
		{ID: "bank", Mode: Account, Type: Received, Date: NewDate(2025, 2, 1)},
	}
	all := Filter{}.Apply(entries)
	if all[0].ID != "new" || all[1].ID != "bank" || all[2].ID != "old" {
		t.Fatalf("not newest first: %v %v %v", all[0].ID, all[1].ID, all[2].ID)
	}
	cash := Filter{Mode: Cash, Type: Received}.Apply(entries)
	if len(cash) != 1 || cash[0].ID != "old" {
		t.Fatalf("cash received = %+v", cash)
	}
	if got := Recent(entries, 2); len(got) != 2 || got[0].ID != "new" {
		t.Fatalf("recent = %+v", got)
	}
}

func TestCategory(t *testing.T) {
	if c := Category(Transaction{Type: Paid, Reason: "Subscription"}); c != CategoryExpense {
		t.Errorf("paid = %q", c)
	}
	if c := Category(sub("1", "A", "H1", YearMonth{2025, 1})); c != CategorySubscription {
		t.Errorf("subscription = %q", c)
	}
	if c := Category(Transaction{Type: Received, Reason: "Donation"}); c != CategoryOtherIncome {
		t.Errorf("donation = %q", c)
	}
}

func TestSearchResidents(t *testing.T) {
	residents := []Resident{
		{Name: "Zoya", HouseNo: "B-2"},
		{Name: "Asha", HouseNo: "A-12"},
		{Name: "Ravi", HouseNo: "a-3"},
	}
	got := SearchResidents(residents, "a-")
	if len(got) != 2 || got[0].Name != "Asha" || got[1].Name != "Ravi" {
		t.Fatalf("search by house = %+v", got)
	}
	if got := SearchResidents(residents, "zo"); len(got) != 1 || got[0].Name != "Zoya" {
		t.Fatalf("search by name = %+v", got)
	}
	if got := SearchResidents(residents, ""); len(got) != 3 || got[0].Name != "Asha" {
		t.Fatalf("empty query = %+v", got)
	}
}

func TestHistoryRequiresNameAndHouse(t *testing.T) {
	r := Resident{Name: "A", HouseNo: "H1"}
	entries := []Transaction{
		sub("1", "A", "H1", YearMonth{2025, 1}),
		sub("2", "A", "H9", YearMonth{2025, 2}),
		sub("3", "A", "H1", YearMonth{2025, 3}),
	}
	got := History(entries, r)
	if len(got) != 2 || got[0].ID != "3" || got[1].ID != "1" {
		t.Fatalf("history = %+v", got)
	}
}
