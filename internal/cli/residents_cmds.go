package cli

import (
	"fmt"

	"rwa/internal/core"
)

type ResidentsCmd struct {
	List    ResidentsListCmd    `cmd:"" default:"withargs" help:"List or search residents."`
	Add     ResidentsAddCmd     `cmd:"" help:"Register a resident."`
	History ResidentsHistoryCmd `cmd:"" help:"Show a resident's ledger entries."`
}

type ResidentsListCmd struct {
	Query string `arg:"" optional:"" help:"Match against name or house number."`
}

func (cmd *ResidentsListCmd) Run(app *App) error {
	var (
		rs  []core.Resident
		err error
	)
	if cmd.Query == "" {
		rs, err = app.Reports.Residents(app.Ctx)
	} else {
		rs, err = app.Reports.SearchResidents(app.Ctx, cmd.Query)
	}
	if err != nil {
		return app.reject(err)
	}
	if len(rs) == 0 {
		printInfof(app.Stdout, "no residents")
		return nil
	}
	rows := make([][]string, len(rs))
	for i, r := range rs {
		rows[i] = []string{r.Name, r.HouseNo, r.Contact, r.ID}
	}
	renderTable(app.Stdout, []string{"Name", "House", "Contact", "ID"}, rows)
	return nil
}

type ResidentsAddCmd struct {
	Name    string `arg:"" help:"Resident name."`
	House   string `arg:"" help:"House number."`
	Contact string `help:"Phone or email."`
}

func (cmd *ResidentsAddCmd) Run(app *App) error {
	r, err := app.Ledger.RegisterResident(app.Ctx, core.Resident{Name: cmd.Name, HouseNo: cmd.House, Contact: cmd.Contact})
	if err != nil {
		return app.reject(err)
	}
	printSuccess(app.Stdout, fmt.Sprintf("Registered %s (%s) as %s", r.Name, r.HouseNo, r.ID))
	return nil
}

type ResidentsHistoryCmd struct {
	ID string `arg:"" help:"Resident ID."`
}

func (cmd *ResidentsHistoryCmd) Run(app *App) error {
	r, entries, err := app.Reports.ResidentHistory(app.Ctx, cmd.ID)
	if err != nil {
		return app.reject(err)
	}
	printInfof(app.Stdout, "%s (%s)", r.Name, r.HouseNo)
	if len(entries) == 0 {
		printInfof(app.Stdout, "no entries")
		return nil
	}
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{e.Date.Format("2006-01-02"), e.Reason, string(e.Mode), e.Signed().StringFixed(), e.ReceiptNo}
	}
	renderTable(app.Stdout, []string{"Date", "Reason", "Mode", "Amount", "Receipt"}, rows)
	return nil
}
