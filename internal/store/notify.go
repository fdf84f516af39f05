package store

import (
	"context"
	"log/slog"
	"sync"

	"rwa/internal/core"
)

// SnapshotFunc loads the current ledger for a change notification.
type SnapshotFunc func(ctx context.Context) ([]core.Transaction, error)

// Notifier fans change notifications out to subscribers. Every delivery is
// a full snapshot so subscribers never need to replay deltas.
type Notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func([]core.Transaction)
	load   SnapshotFunc
}

func NewNotifier(load SnapshotFunc) *Notifier {
	return &Notifier{subs: make(map[int]func([]core.Transaction)), load: load}
}

// Subscribe registers fn and delivers the current snapshot to it.
func (n *Notifier) Subscribe(ctx context.Context, fn func([]core.Transaction)) (func(), error) {
	snap, err := n.load(ctx)
	if err != nil {
		return nil, err
	}
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	n.mu.Unlock()

	fn(snap)

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}, nil
}

// Notify loads a snapshot and delivers it to every subscriber. Callers must
// not hold store locks.
func (n *Notifier) Notify(ctx context.Context) {
	n.mu.Lock()
	if len(n.subs) == 0 {
		n.mu.Unlock()
		return
	}
	fns := make([]func([]core.Transaction), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	snap, err := n.load(context.WithoutCancel(ctx))
	if err != nil {
		slog.WarnContext(ctx, "Failed to load snapshot for subscribers", "error", err)
		return
	}
	for _, fn := range fns {
		// each subscriber gets its own copy
		fn(append([]core.Transaction(nil), snap...))
	}
}

// Len returns the number of active subscribers.
func (n *Notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}
