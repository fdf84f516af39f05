package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"rwa/internal/core"
	"rwa/internal/services"
)

// App is what every command runs against. main binds it into kong.
type App struct {
	Ctx     context.Context
	Ledger  *services.LedgerService
	Reports *services.ReportService
	Stdout  io.Writer
	Stderr  io.Writer
	Now     func() time.Time
}

// Commands is the rwactl command tree.
type Commands struct {
	Record    RecordCmd    `cmd:"" help:"Record a single income or expense entry."`
	Allocate  AllocateCmd  `cmd:"" help:"Record a multi-month subscription payment."`
	Status    StatusCmd    `cmd:"" help:"Check whether a resident has paid a month."`
	Delete    DeleteCmd    `cmd:"" help:"Delete a ledger entry."`
	Balances  BalancesCmd  `cmd:"" help:"Show cash, account and treasury balances."`
	List      ListCmd      `cmd:"" help:"List ledger entries, newest first."`
	Summary   SummaryCmd   `cmd:"" help:"Show income and expenses per calendar month."`
	Report    ReportCmd    `cmd:"" help:"Show the financial-year subscription matrix."`
	Export    ExportCmd    `cmd:"" help:"Export ledger entries as CSV."`
	Residents ResidentsCmd `cmd:"" help:"Manage the resident directory."`
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// reject prints a ledger error in operator terms and returns the exit
// error. Rejections by ledger rules exit 2; anything else exits 1.
func (a *App) reject(err error) error {
	var (
		dup      *core.DuplicateSubscriptionError
		mismatch *core.AmountMismatchError
		batch    *core.BatchError
	)
	// a partial batch wraps its cause, so it must be matched first
	switch {
	case errors.As(err, &batch):
		printError(a.Stderr, err.Error())
		for _, id := range batch.Applied {
			printInfof(a.Stderr, "applied %s", id)
		}
		return NewCommandError(exitFailure)
	case errors.As(err, &dup):
		printError(a.Stderr, err.Error())
		if dup.ExistingID != "" {
			printInfof(a.Stderr, "existing entry %s", dup.ExistingID)
		}
		return NewCommandError(exitRejected)
	case errors.As(err, &mismatch):
		printError(a.Stderr, err.Error())
		printInfof(a.Stderr, "rerun with --confirm-mismatch to record %d months at %s each",
			mismatch.Months, a.Reports.Due().StringFixed())
		return NewCommandError(exitRejected)
	case core.IsValidation(err), errors.Is(err, core.ErrNotFound):
		printError(a.Stderr, err.Error())
		return NewCommandError(exitRejected)
	default:
		printError(a.Stderr, fmt.Sprintf("failed: %v", err))
		return NewCommandError(exitFailure)
	}
}
