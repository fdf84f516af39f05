package core

// NilDue is the due label shown for a resident who paid all twelve months.
const NilDue = "Nil"

type (
	// FYRow is one resident's line in the financial-year matrix.
	FYRow struct {
		Serial     int
		Resident   Resident
		Paid       [12]bool // FY order, Apr..Mar
		PaidMonths int
		AmountPaid Money
		Due        Money
	}

	// FYMatrix is the twelve-month compliance report for a financial year.
	FYMatrix struct {
		Year           FinancialYear
		Months         []YearMonth
		Rows           []FYRow
		OpeningBalance Money
		TotalCollected Money
		ClosingBalance Money
	}
)

// DueLabel renders the outstanding amount, or "Nil" when fully paid.
func (r FYRow) DueLabel() string {
	if r.PaidMonths == 12 {
		return NilDue
	}
	return r.Due.StringFixed()
}

// BuildMatrix reconstructs the financial-year matrix from the raw ledger.
// residents is rendered in the order given.
func BuildMatrix(fy FinancialYear, residents []Resident, entries []Transaction, opening Money, policy MatchPolicy, due Money) (FYMatrix, error) {
	if opening.Cents < 0 {
		return FYMatrix{}, &ValidationError{Field: "opening_balance", Err: ErrNegativeOpening}
	}
	if due.Cents <= 0 {
		due = DefaultSubscriptionDue
	}

	// only entries inside the FY can mark a month
	months := fy.Months()
	inYear := make([]Transaction, 0, len(entries))
	for _, e := range entries {
		if e.IsSubscription() && fy.Contains(e.Date.YearMonth()) {
			inYear = append(inYear, e)
		}
	}

	m := FYMatrix{
		Year:           fy,
		Months:         months,
		Rows:           make([]FYRow, 0, len(residents)),
		OpeningBalance: opening,
	}
	for i, r := range residents {
		row := FYRow{Serial: i + 1, Resident: r}
		who := IdentityOfResident(r)
		for j, ym := range months {
			if IsPaid(inYear, who, ym, "", policy) {
				row.Paid[j] = true
				row.PaidMonths++
			}
		}
		row.AmountPaid = due.Mul(row.PaidMonths)
		row.Due = due.Mul(12 - row.PaidMonths)
		m.TotalCollected = m.TotalCollected.Add(row.AmountPaid)
		m.Rows = append(m.Rows, row)
	}
	m.ClosingBalance = m.OpeningBalance.Add(m.TotalCollected)
	return m, nil
}
