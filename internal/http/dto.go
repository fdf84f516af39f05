package http

import (
	"encoding/json"
	"strings"

	"rwa/internal/core"
	"rwa/internal/services"
)

const dateLayout = "2006-01-02"

type (
	transactionJSON struct {
		ID                 string `json:"id"`
		ResidentID         string `json:"resident_id,omitempty"`
		ResidentName       string `json:"resident_name"`
		HouseNo            string `json:"house_no"`
		Amount             string `json:"amount"`
		Mode               string `json:"mode"`
		Type               string `json:"type"`
		Reason             string `json:"reason"`
		Category           string `json:"category"`
		Date               string `json:"date"`
		PaymentDate        string `json:"payment_date,omitempty"`
		ReceiptNo          string `json:"receipt_no"`
		SubscriptionPeriod string `json:"subscription_period,omitempty"`
	}

	// transactionRequest is the body of POST and PUT /api/transactions.
	transactionRequest struct {
		ResidentID   string      `json:"resident_id"`
		ResidentName string      `json:"resident_name"`
		HouseNo      string      `json:"house_no"`
		Amount       json.Number `json:"amount"`
		Mode         string      `json:"mode"`
		Type         string      `json:"type"`
		Reason       string      `json:"reason"`
		Date         string      `json:"date"`
		PaymentDate  string      `json:"payment_date"`
		ReceiptNo    string      `json:"receipt_no"`
	}

	// allocationRequest is the body of POST /api/subscriptions.
	allocationRequest struct {
		ResidentID      string      `json:"resident_id"`
		ResidentName    string      `json:"resident_name"`
		HouseNo         string      `json:"house_no"`
		From            string      `json:"from"`
		To              string      `json:"to"`
		Amount          json.Number `json:"amount"`
		Mode            string      `json:"mode"`
		PaymentDate     string      `json:"payment_date"`
		ReceiptBase     string      `json:"receipt_base"`
		EditID          string      `json:"edit_id"`
		ConfirmMismatch bool        `json:"confirm_mismatch"`
	}

	allocationJSON struct {
		Entries  []transactionJSON `json:"entries"`
		Count    int               `json:"count"`
		Recorded string            `json:"recorded"`
		Entered  string            `json:"entered"`
		Mismatch bool              `json:"mismatch"`
	}

	residentJSON struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		HouseNo string `json:"house_no"`
		Contact string `json:"contact,omitempty"`
	}

	balancesJSON struct {
		Cash     string `json:"cash"`
		Account  string `json:"account"`
		Treasury string `json:"treasury"`
	}

	dashboardJSON struct {
		Balances balancesJSON      `json:"balances"`
		Recent   []transactionJSON `json:"recent"`
	}

	monthSummaryJSON struct {
		Month        string `json:"month"`
		Subscription string `json:"subscription"`
		OtherIncome  string `json:"other_income"`
		Expenses     string `json:"expenses"`
		Net          string `json:"net"`
		Entries      int    `json:"entries"`
	}

	fyRowJSON struct {
		Serial     int      `json:"serial"`
		ResidentID string   `json:"resident_id,omitempty"`
		Name       string   `json:"name"`
		HouseNo    string   `json:"house_no"`
		Paid       [12]bool `json:"paid"`
		PaidMonths int      `json:"paid_months"`
		AmountPaid string   `json:"amount_paid"`
		Due        string   `json:"due"`
	}

	fyMatrixJSON struct {
		Year           string      `json:"financial_year"`
		Months         []string    `json:"months"`
		Rows           []fyRowJSON `json:"rows"`
		OpeningBalance string      `json:"opening_balance"`
		TotalCollected string      `json:"total_collected"`
		ClosingBalance string      `json:"closing_balance"`
	}

	statusJSON struct {
		Paid  bool             `json:"paid"`
		Month string           `json:"month"`
		Entry *transactionJSON `json:"entry,omitempty"`
	}

	// feedMessage is one websocket frame of the live ledger feed.
	feedMessage struct {
		Type    string            `json:"type"`
		Version uint64            `json:"version"`
		Entries []transactionJSON `json:"entries"`
	}
)

func formatDate(d core.Date) string {
	if d.IsEmpty() {
		return ""
	}
	return d.Format(dateLayout)
}

func toTransactionJSON(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID:                 t.ID,
		ResidentID:         t.ResidentID,
		ResidentName:       t.ResidentName,
		HouseNo:            t.HouseNo,
		Amount:             t.Amount.StringFixed(),
		Mode:               string(t.Mode),
		Type:               string(t.Type),
		Reason:             t.Reason,
		Category:           core.Category(t),
		Date:               formatDate(t.Date),
		PaymentDate:        formatDate(t.PaymentDate),
		ReceiptNo:          t.ReceiptNo,
		SubscriptionPeriod: t.SubscriptionPeriod,
	}
}

func toTransactionsJSON(entries []core.Transaction) []transactionJSON {
	out := make([]transactionJSON, len(entries))
	for i, t := range entries {
		out[i] = toTransactionJSON(t)
	}
	return out
}

func toResidentJSON(r core.Resident) residentJSON {
	return residentJSON{ID: r.ID, Name: r.Name, HouseNo: r.HouseNo, Contact: r.Contact}
}

func toResidentsJSON(rs []core.Resident) []residentJSON {
	out := make([]residentJSON, len(rs))
	for i, r := range rs {
		out[i] = toResidentJSON(r)
	}
	return out
}

func toBalancesJSON(b core.Balances) balancesJSON {
	return balancesJSON{
		Cash:     b.Cash.StringFixed(),
		Account:  b.Account.StringFixed(),
		Treasury: b.Treasury.StringFixed(),
	}
}

func toAllocationJSON(r services.AllocationResult) allocationJSON {
	return allocationJSON{
		Entries:  toTransactionsJSON(r.Entries),
		Count:    r.Count,
		Recorded: r.Recorded.StringFixed(),
		Entered:  r.Entered.StringFixed(),
		Mismatch: r.Mismatch,
	}
}

func toSummariesJSON(ms []core.MonthSummary) []monthSummaryJSON {
	out := make([]monthSummaryJSON, len(ms))
	for i, m := range ms {
		out[i] = monthSummaryJSON{
			Month:        m.Month.String(),
			Subscription: m.Subscription.StringFixed(),
			OtherIncome:  m.OtherIncome.StringFixed(),
			Expenses:     m.Expenses.StringFixed(),
			Net:          m.Net().StringFixed(),
			Entries:      m.Entries,
		}
	}
	return out
}

func toFYMatrixJSON(m core.FYMatrix) fyMatrixJSON {
	out := fyMatrixJSON{
		Year:           m.Year.String(),
		Months:         make([]string, len(m.Months)),
		Rows:           make([]fyRowJSON, len(m.Rows)),
		OpeningBalance: m.OpeningBalance.StringFixed(),
		TotalCollected: m.TotalCollected.StringFixed(),
		ClosingBalance: m.ClosingBalance.StringFixed(),
	}
	for i, ym := range m.Months {
		out.Months[i] = ym.Label()
	}
	for i, r := range m.Rows {
		out.Rows[i] = fyRowJSON{
			Serial:     r.Serial,
			ResidentID: r.Resident.ID,
			Name:       r.Resident.Name,
			HouseNo:    r.Resident.HouseNo,
			Paid:       r.Paid,
			PaidMonths: r.PaidMonths,
			AmountPaid: r.AmountPaid.StringFixed(),
			Due:        r.DueLabel(),
		}
	}
	return out
}

// toTransaction converts the request body. Field syntax errors come back as
// *core.ValidationError; the remaining rules are checked by the service.
func (req transactionRequest) toTransaction() (core.Transaction, error) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	mode, err := core.ParseMode(req.Mode)
	if err != nil {
		return core.Transaction{}, err
	}
	typ, err := core.ParseType(req.Type)
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return core.Transaction{}, &core.ValidationError{Field: "date", Err: err}
	}
	var payment core.Date
	if strings.TrimSpace(req.PaymentDate) != "" {
		if payment, err = parseDate(req.PaymentDate); err != nil {
			return core.Transaction{}, &core.ValidationError{Field: "payment_date", Err: err}
		}
	}
	return core.Transaction{
		ResidentID:   sanitizeInput(req.ResidentID),
		ResidentName: sanitizeInput(req.ResidentName),
		HouseNo:      sanitizeInput(req.HouseNo),
		Amount:       amount,
		Mode:         mode,
		Type:         typ,
		Reason:       sanitizeInput(req.Reason),
		Date:         date,
		PaymentDate:  payment,
		ReceiptNo:    sanitizeInput(req.ReceiptNo),
	}, nil
}

func (req allocationRequest) toService() (services.AllocationRequest, error) {
	from, err := core.ParseYearMonth(req.From)
	if err != nil {
		return services.AllocationRequest{}, err
	}
	to, err := core.ParseYearMonth(req.To)
	if err != nil {
		return services.AllocationRequest{}, err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return services.AllocationRequest{}, err
	}
	mode, err := core.ParseMode(req.Mode)
	if err != nil {
		return services.AllocationRequest{}, err
	}
	payment, err := parseDate(req.PaymentDate)
	if err != nil {
		return services.AllocationRequest{}, &core.ValidationError{Field: "payment_date", Err: err}
	}
	return services.AllocationRequest{
		ResidentID:      sanitizeInput(req.ResidentID),
		ResidentName:    sanitizeInput(req.ResidentName),
		HouseNo:         sanitizeInput(req.HouseNo),
		From:            from,
		To:              to,
		Amount:          amount,
		Mode:            mode,
		PaymentDate:     payment,
		ReceiptBase:     sanitizeInput(req.ReceiptBase),
		EditID:          sanitizeInput(req.EditID),
		ConfirmMismatch: req.ConfirmMismatch,
	}, nil
}

func parseAmount(n json.Number) (core.Money, error) {
	m, err := core.ParseMoney(n.String())
	if err != nil {
		return core.Money{}, &core.ValidationError{Field: "amount", Err: err}
	}
	return m, nil
}
