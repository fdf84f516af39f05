package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"rwa/internal/amqp"
	"rwa/internal/core"
	"rwa/internal/sheets"
	"rwa/internal/store"
)

// MirrorWorker keeps the spreadsheet mirror in step with the ledger
type MirrorWorker struct {
	ledger store.LedgerStore
	mirror sheets.LedgerMirror
}

func NewMirrorWorker(ledger store.LedgerStore, mirror sheets.LedgerMirror) *MirrorWorker {
	return &MirrorWorker{
		ledger: ledger,
		mirror: mirror,
	}
}

// HandleEvent processes a single ledger event from AMQP
func (w *MirrorWorker) HandleEvent(ctx context.Context, msg *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"kind", msg.Kind,
		"id", msg.ID)

	switch msg.Kind {
	case amqp.EventCreated, amqp.EventUpdated:
		tx, err := w.ledger.Get(ctx, msg.ID)
		if errors.Is(err, core.ErrNotFound) {
			// deleted before the event was handled
			return w.remove(ctx, msg.ID)
		}
		if err != nil {
			return fmt.Errorf("get entry from store: %w", err)
		}
		if err := w.mirror.UpsertEntry(ctx, tx); err != nil {
			return fmt.Errorf("mirror entry %s: %w", msg.ID, err)
		}
		slog.InfoContext(ctx, "Mirrored ledger entry",
			"id", tx.ID,
			"receipt", tx.ReceiptNo,
			"amount_cents", tx.Amount.Cents)
		return nil
	case amqp.EventDeleted:
		return w.remove(ctx, msg.ID)
	default:
		return fmt.Errorf("unknown event kind %q", msg.Kind)
	}
}

func (w *MirrorWorker) remove(ctx context.Context, id string) error {
	if err := w.mirror.RemoveEntry(ctx, id); err != nil {
		return fmt.Errorf("remove mirrored entry %s: %w", id, err)
	}
	slog.InfoContext(ctx, "Removed mirrored ledger entry", "id", id)
	return nil
}

// StartupSync rewrites the whole mirror from the store. This recovers from
// events missed while the worker was down.
func (w *MirrorWorker) StartupSync(ctx context.Context) error {
	entries, err := w.ledger.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot ledger for startup sync: %w", err)
	}
	core.SortByDateAsc(entries)
	if err := w.mirror.ReplaceAll(ctx, entries); err != nil {
		return fmt.Errorf("replace mirror: %w", err)
	}
	slog.InfoContext(ctx, "Startup sync completed", "entries", len(entries))
	return nil
}
