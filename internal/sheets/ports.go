package sheets

import (
	"context"

	"rwa/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerMirror keeps a spreadsheet copy of the ledger, one row per entry
	// keyed by entry ID.
	LedgerMirror interface {
		UpsertEntry(ctx context.Context, tx core.Transaction) error
		RemoveEntry(ctx context.Context, id string) error
		// ReplaceAll rewrites the whole mirror from a snapshot.
		ReplaceAll(ctx context.Context, entries []core.Transaction) error
	}

	// ReportWriter publishes the financial-year compliance matrix.
	ReportWriter interface {
		WriteFinancialYear(ctx context.Context, m core.FYMatrix) error
	}
)
