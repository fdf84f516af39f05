// Package store defines the ledger persistence ports and the helpers shared
// by their adapters.
package store

import (
	"context"

	"rwa/internal/core"
)

// Ports for ledger adapters.
type (
	// LedgerStore is the durable transaction log.
	LedgerStore interface {
		// Append stores a normal entry and returns it with its assigned ID.
		Append(ctx context.Context, tx core.Transaction) (core.Transaction, error)

		// AppendSubscription stores a subscription entry unless another
		// subscription for the same resident and month already exists under
		// policy. Check and insert happen atomically; a collision returns
		// core.ErrDuplicateSubscription.
		AppendSubscription(ctx context.Context, tx core.Transaction, policy core.MatchPolicy) (core.Transaction, error)

		// Update replaces every field of the entry with tx.ID.
		Update(ctx context.Context, tx core.Transaction) error

		// UpdateSubscription is Update with the AppendSubscription collision
		// check, ignoring the entry being replaced.
		UpdateSubscription(ctx context.Context, tx core.Transaction, policy core.MatchPolicy) error

		Delete(ctx context.Context, id string) error
		Get(ctx context.Context, id string) (core.Transaction, error)

		// Snapshot returns a copy of the log ordered by date, newest first.
		Snapshot(ctx context.Context) ([]core.Transaction, error)

		// Subscribe registers onChange. It is called once with the current
		// snapshot and again with a fresh snapshot after every mutation.
		Subscribe(ctx context.Context, onChange func([]core.Transaction)) (unsubscribe func(), err error)
	}

	// BatchAppender is implemented by stores that can commit a whole
	// subscription batch atomically.
	BatchAppender interface {
		AppendSubscriptions(ctx context.Context, txs []core.Transaction, policy core.MatchPolicy) ([]core.Transaction, error)
	}

	// ResidentDirectory lists registered residents.
	ResidentDirectory interface {
		// ListResidents returns residents ordered by name.
		ListResidents(ctx context.Context) ([]core.Resident, error)
		AddResident(ctx context.Context, r core.Resident) (id string, err error)
		GetResident(ctx context.Context, id string) (core.Resident, error)
	}

	// Store is a complete backend.
	Store interface {
		LedgerStore
		ResidentDirectory
		Close() error
	}
)
