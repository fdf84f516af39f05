package core

// Balances holds the treasury position derived from the ledger.
type Balances struct {
	Cash     Money
	Account  Money
	Treasury Money
}

// Aggregate folds entries into per-mode balances. Received adds, Paid
// subtracts. Entries with an unknown mode are ignored.
func Aggregate(entries []Transaction) Balances {
	var b Balances
	for _, e := range entries {
		switch e.Mode {
		case Cash:
			b.Cash = b.Cash.Add(e.Signed())
		case Account:
			b.Account = b.Account.Add(e.Signed())
		}
	}
	b.Treasury = b.Cash.Add(b.Account)
	return b
}
