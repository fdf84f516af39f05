package cli

import (
	"fmt"
	"strings"
	"time"

	"rwa/internal/core"
	"rwa/internal/services"
)

type RecordCmd struct {
	Resident   string `help:"Resident name. Defaults to the society for expenses."`
	House      string `help:"House number."`
	ResidentID string `name:"resident-id" help:"Registered resident ID; fills name and house."`
	Amount     string `required:"" help:"Amount, e.g. 150 or 150.50."`
	Mode       string `default:"cash" help:"cash or account."`
	Type       string `default:"received" help:"received or paid."`
	Reason     string `help:"Reason for the entry."`
	Date       string `help:"Entry date (YYYY-MM-DD). Defaults to today."`
	Receipt    string `required:"" help:"Receipt or voucher number."`
}

func (cmd *RecordCmd) Run(app *App) error {
	tx, err := cmd.transaction(app.now())
	if err != nil {
		return app.reject(err)
	}
	saved, err := app.Ledger.Record(app.Ctx, tx)
	if err != nil {
		return app.reject(err)
	}
	printSuccess(app.Stdout, fmt.Sprintf("Recorded %s %s %s for %s (%s), receipt %s",
		strings.ToLower(string(saved.Type)), saved.Amount.StringFixed(), saved.Mode,
		saved.ResidentName, saved.HouseNo, saved.ReceiptNo))
	printInfof(app.Stdout, "id %s", saved.ID)
	return nil
}

func (cmd *RecordCmd) transaction(now time.Time) (core.Transaction, error) {
	amount, err := core.ParseMoney(cmd.Amount)
	if err != nil {
		return core.Transaction{}, &core.ValidationError{Field: "amount", Err: err}
	}
	mode, err := core.ParseMode(cmd.Mode)
	if err != nil {
		return core.Transaction{}, err
	}
	typ, err := core.ParseType(cmd.Type)
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := parseDay(cmd.Date, now)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		ResidentID:   cmd.ResidentID,
		ResidentName: cmd.Resident,
		HouseNo:      cmd.House,
		Amount:       amount,
		Mode:         mode,
		Type:         typ,
		Reason:       cmd.Reason,
		Date:         date,
		ReceiptNo:    cmd.Receipt,
	}, nil
}

type AllocateCmd struct {
	Resident        string `help:"Resident name."`
	House           string `help:"House number."`
	ResidentID      string `name:"resident-id" help:"Registered resident ID; fills name and house."`
	From            string `help:"First month (YYYY-MM). Defaults to the start of the current financial year."`
	To              string `help:"Last month (YYYY-MM). Defaults to the end of the current financial year."`
	Amount          string `required:"" help:"Total amount received."`
	Mode            string `default:"cash" help:"cash or account."`
	PaymentDate     string `name:"payment-date" help:"Date the money was received (YYYY-MM-DD). Defaults to today."`
	Receipt         string `help:"Receipt base. Defaults to REC-YYYY-MM-."`
	Edit            string `help:"Re-target this existing entry to the first month."`
	ConfirmMismatch bool   `name:"confirm-mismatch" help:"Record even when the amount differs from months × due."`
}

func (cmd *AllocateCmd) Run(app *App) error {
	req, err := cmd.request(app.now())
	if err != nil {
		return app.reject(err)
	}
	res, err := app.Ledger.Allocate(app.Ctx, req)
	if err != nil {
		return app.reject(err)
	}

	printSuccess(app.Stdout, fmt.Sprintf("Recorded %d month(s) for %s (%s), %s",
		res.Count, req.ResidentName, req.HouseNo, core.PeriodLabel(req.From, req.To)))
	if res.Mismatch {
		printInfof(app.Stdout, "entered %s, recorded %s", res.Entered.StringFixed(), res.Recorded.StringFixed())
	}

	rows := make([][]string, len(res.Entries))
	for i, e := range res.Entries {
		rows[i] = []string{e.Date.YearMonth().Label(), e.ReceiptNo, e.Amount.StringFixed(), e.ID}
	}
	renderTable(app.Stdout, []string{"Month", "Receipt", "Amount", "ID"}, rows)
	return nil
}

func (cmd *AllocateCmd) request(now time.Time) (services.AllocationRequest, error) {
	fy := core.CurrentFinancialYear(now)
	from, to := fy.First(), fy.Last()
	var err error
	if cmd.From != "" {
		if from, err = core.ParseYearMonth(cmd.From); err != nil {
			return services.AllocationRequest{}, err
		}
	}
	if cmd.To != "" {
		if to, err = core.ParseYearMonth(cmd.To); err != nil {
			return services.AllocationRequest{}, err
		}
	}
	amount, err := core.ParseMoney(cmd.Amount)
	if err != nil {
		return services.AllocationRequest{}, &core.ValidationError{Field: "amount", Err: err}
	}
	mode, err := core.ParseMode(cmd.Mode)
	if err != nil {
		return services.AllocationRequest{}, err
	}
	paid, err := parseDay(cmd.PaymentDate, now)
	if err != nil {
		return services.AllocationRequest{}, err
	}
	receipt := cmd.Receipt
	if receipt == "" {
		receipt = core.SuggestReceiptBase(now)
	}
	return services.AllocationRequest{
		ResidentID:      cmd.ResidentID,
		ResidentName:    cmd.Resident,
		HouseNo:         cmd.House,
		From:            from,
		To:              to,
		Amount:          amount,
		Mode:            mode,
		PaymentDate:     paid,
		ReceiptBase:     receipt,
		EditID:          cmd.Edit,
		ConfirmMismatch: cmd.ConfirmMismatch,
	}, nil
}

type StatusCmd struct {
	Resident   string `help:"Resident name."`
	House      string `help:"House number."`
	ResidentID string `name:"resident-id" help:"Registered resident ID."`
	Month      string `help:"Month to check (YYYY-MM). Defaults to the current month."`
}

func (cmd *StatusCmd) Run(app *App) error {
	month := core.DateOf(app.now()).YearMonth()
	if cmd.Month != "" {
		var err error
		if month, err = core.ParseYearMonth(cmd.Month); err != nil {
			return app.reject(err)
		}
	}
	who := core.Identity{ResidentID: cmd.ResidentID, Name: cmd.Resident, HouseNo: cmd.House}

	tx, paid, err := app.Ledger.SubscriptionStatus(app.Ctx, who, month)
	if err != nil {
		return app.reject(err)
	}
	if !paid {
		printInfof(app.Stdout, "%s has not paid %s", who, month.Label())
		return nil
	}
	printSuccess(app.Stdout, fmt.Sprintf("%s paid %s, receipt %s on %s",
		who, month.Label(), tx.ReceiptNo, paidOn(tx)))
	return nil
}

type DeleteCmd struct {
	ID string `arg:"" help:"Entry ID."`
}

func (cmd *DeleteCmd) Run(app *App) error {
	if err := app.Ledger.Delete(app.Ctx, cmd.ID); err != nil {
		return app.reject(err)
	}
	printSuccess(app.Stdout, "Deleted "+cmd.ID)
	return nil
}

// parseDay parses YYYY-MM-DD, defaulting to today when empty.
func parseDay(s string, now time.Time) (core.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.DateOf(now), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return core.Date{}, &core.ValidationError{Field: "date", Err: err}
	}
	return core.DateOf(t), nil
}

func paidOn(tx core.Transaction) string {
	if !tx.PaymentDate.IsEmpty() {
		return tx.PaymentDate.Format("2006-01-02")
	}
	return tx.Date.Format("2006-01-02")
}
