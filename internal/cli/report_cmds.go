package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"rwa/internal/core"
	"rwa/internal/export"
)

type BalancesCmd struct{}

func (cmd *BalancesCmd) Run(app *App) error {
	b, err := app.Reports.Balances(app.Ctx)
	if err != nil {
		return app.reject(err)
	}
	renderTable(app.Stdout, []string{"Cash", "Account", "Treasury"}, [][]string{{
		b.Cash.StringFixed(), b.Account.StringFixed(), b.Treasury.StringFixed(),
	}})
	return nil
}

// FilterFlags are shared by list and export.
type FilterFlags struct {
	Mode       string `help:"Only cash or account entries."`
	Type       string `help:"Only received or paid entries."`
	ResidentID string `name:"resident-id" help:"Only entries of this resident."`
}

func (f FilterFlags) filter() (core.Filter, error) {
	out := core.Filter{ResidentID: strings.TrimSpace(f.ResidentID)}
	if f.Mode != "" {
		m, err := core.ParseMode(f.Mode)
		if err != nil {
			return core.Filter{}, err
		}
		out.Mode = m
	}
	if f.Type != "" {
		t, err := core.ParseType(f.Type)
		if err != nil {
			return core.Filter{}, err
		}
		out.Type = t
	}
	return out, nil
}

type ListCmd struct {
	FilterFlags
	Limit int `default:"20" help:"Maximum entries to show; 0 shows all."`
}

func (cmd *ListCmd) Run(app *App) error {
	f, err := cmd.filter()
	if err != nil {
		return app.reject(err)
	}
	entries, err := app.Reports.Transactions(app.Ctx, f)
	if err != nil {
		return app.reject(err)
	}
	if cmd.Limit > 0 && len(entries) > cmd.Limit {
		entries = entries[:cmd.Limit]
	}
	if len(entries) == 0 {
		printInfof(app.Stdout, "no entries")
		return nil
	}

	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{
			e.Date.Format("2006-01-02"), e.ResidentName, e.HouseNo, string(e.Mode),
			e.Signed().StringFixed(), core.Category(e), e.ReceiptNo, e.ID,
		}
	}
	renderTable(app.Stdout, []string{"Date", "Resident", "House", "Mode", "Amount", "Category", "Receipt", "ID"}, rows)
	return nil
}

type SummaryCmd struct{}

func (cmd *SummaryCmd) Run(app *App) error {
	ms, err := app.Reports.MonthlySummary(app.Ctx)
	if err != nil {
		return app.reject(err)
	}
	rows := make([][]string, len(ms))
	for i, m := range ms {
		rows[i] = []string{
			m.Month.Label(), m.Subscription.StringFixed(), m.OtherIncome.StringFixed(),
			m.Expenses.StringFixed(), m.Net().StringFixed(), strconv.Itoa(m.Entries),
		}
	}
	renderTable(app.Stdout, []string{"Month", "Subscriptions", "Other income", "Expenses", "Net", "Entries"}, rows)
	return nil
}

type ReportCmd struct {
	FY      string `name:"fy" help:"Financial year, e.g. 2024-2025. Defaults to the current one."`
	Opening string `help:"Opening balance carried into the year."`
	CSV     string `name:"csv" help:"Write the matrix to this CSV file instead of printing it." type:"path"`
}

func (cmd *ReportCmd) Run(app *App) error {
	fy := core.CurrentFinancialYear(app.now())
	if cmd.FY != "" {
		var err error
		if fy, err = core.ParseFinancialYear(cmd.FY); err != nil {
			return app.reject(err)
		}
	}
	opening, err := core.ParseOpening(cmd.Opening)
	if err != nil {
		return app.reject(err)
	}

	m, err := app.Reports.FinancialYear(app.Ctx, fy, opening)
	if err != nil {
		return app.reject(err)
	}

	if cmd.CSV != "" {
		if err := writeFile(cmd.CSV, func(w io.Writer) error { return export.WriteFinancialYearCSV(w, m) }); err != nil {
			return app.reject(err)
		}
		printSuccess(app.Stdout, fmt.Sprintf("Wrote %s (%d residents)", cmd.CSV, len(m.Rows)))
		return nil
	}

	headers := []string{"S.No", "Name", "House"}
	for _, ym := range m.Months {
		headers = append(headers, ym.Abbrev())
	}
	headers = append(headers, "Paid", "Amount", "Due")

	rows := make([][]string, len(m.Rows))
	for i, r := range m.Rows {
		row := []string{strconv.Itoa(r.Serial), r.Resident.Name, r.Resident.HouseNo}
		for _, paid := range r.Paid {
			mark := ""
			if paid {
				mark = successSymbol
			}
			row = append(row, mark)
		}
		rows[i] = append(row, strconv.Itoa(r.PaidMonths), r.AmountPaid.StringFixed(), r.DueLabel())
	}

	printInfof(app.Stdout, "Financial year %s", m.Year)
	renderTable(app.Stdout, headers, rows)
	_, _ = fmt.Fprintf(app.Stdout, "Opening balance  %s\nTotal collected  %s\nClosing balance  %s\n",
		m.OpeningBalance.StringFixed(), m.TotalCollected.StringFixed(), m.ClosingBalance.StringFixed())
	return nil
}

type ExportCmd struct {
	FilterFlags
	Output string `short:"o" default:"-" help:"Output file, or - for stdout."`
}

func (cmd *ExportCmd) Run(app *App) error {
	f, err := cmd.filter()
	if err != nil {
		return app.reject(err)
	}
	entries, err := app.Reports.Transactions(app.Ctx, f)
	if err != nil {
		return app.reject(err)
	}

	write := func(w io.Writer) error { return export.WriteTransactionsCSV(w, entries, app.Reports.Due()) }
	if cmd.Output == "-" {
		if err := write(app.Stdout); err != nil {
			return app.reject(err)
		}
		return nil
	}
	if err := writeFile(cmd.Output, write); err != nil {
		return app.reject(err)
	}
	printSuccess(app.Stdout, fmt.Sprintf("Wrote %d entries to %s", len(entries), cmd.Output))
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
