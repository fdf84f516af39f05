package core

import "testing"

func TestAggregate(t *testing.T) {
	tests := []struct {
		name                   string
		entries                []Transaction
		cash, account, treasury int64
	}{
		{
			name:    "empty ledger",
			entries: nil,
		},
		{
			name: "received cash and paid account",
			entries: []Transaction{
				{Amount: MoneyFromUnits(500), Mode: Cash, Type: Received},
				{Amount: MoneyFromUnits(200), Mode: Account, Type: Paid},
			},
			cash: 500_00, account: -200_00, treasury: 300_00,
		},
		{
			name: "mixed buckets",
			entries: []Transaction{
				{Amount: MoneyFromUnits(100), Mode: Cash, Type: Received},
				{Amount: MoneyFromUnits(40), Mode: Cash, Type: Paid},
				{Amount: Money{Cents: 12_34}, Mode: Account, Type: Received},
			},
			cash: 60_00, account: 12_34, treasury: 72_34,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Aggregate(tt.entries)
			if b.Cash.Cents != tt.cash || b.Account.Cents != tt.account || b.Treasury.Cents != tt.treasury {
				t.Errorf("Aggregate() = %+v, want cash=%d account=%d treasury=%d", b, tt.cash, tt.account, tt.treasury)
			}
			if b.Treasury != b.Cash.Add(b.Account) {
				t.Errorf("treasury %v != cash %v + account %v", b.Treasury, b.Cash, b.Account)
			}
		})
	}
}
