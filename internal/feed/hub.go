// Package feed fans ledger snapshots out to live subscribers.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"rwa/internal/core"
	"rwa/internal/store"
)

// Update is one full ledger snapshot, newest entry first. Version grows by
// one per snapshot so clients can tell a resync from a repeat.
type Update struct {
	Version uint64             `json:"version"`
	Entries []core.Transaction `json:"entries"`
}

// Subscriber receives updates on C. Only the newest pending update is kept
// for a slow reader; every update is a complete snapshot so nothing is lost.
type Subscriber struct {
	C  <-chan Update
	ch chan Update
}

// Hub holds a single store subscription and relays it to any number of
// subscribers.
type Hub struct {
	mu      sync.Mutex
	latest  *Update
	version uint64
	subs    map[*Subscriber]struct{}
	ready   chan struct{}
	once    sync.Once
}

func NewHub() *Hub {
	return &Hub{
		subs:  make(map[*Subscriber]struct{}),
		ready: make(chan struct{}),
	}
}

// Run subscribes to src and relays snapshots until ctx is cancelled.
func (h *Hub) Run(ctx context.Context, src store.LedgerStore) error {
	unsubscribe, err := src.Subscribe(ctx, h.Publish)
	if err != nil {
		return fmt.Errorf("subscribe to ledger: %w", err)
	}
	defer unsubscribe()

	slog.InfoContext(ctx, "Ledger feed started")
	<-ctx.Done()
	slog.InfoContext(ctx, "Ledger feed stopped", "subscribers", h.Len())
	return nil
}

// Publish records a new snapshot and delivers it to every subscriber.
func (h *Hub) Publish(entries []core.Transaction) {
	h.mu.Lock()
	h.version++
	u := Update{Version: h.version, Entries: entries}
	h.latest = &u
	for s := range h.subs {
		offer(s.ch, u)
	}
	h.mu.Unlock()
	h.once.Do(func() { close(h.ready) })
}

// Subscribe registers a subscriber. The current snapshot, if any, is
// queued immediately so a new or reconnecting client starts from a full
// resync.
func (h *Hub) Subscribe() (*Subscriber, func()) {
	ch := make(chan Update, 1)
	s := &Subscriber{C: ch, ch: ch}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	if h.latest != nil {
		offer(ch, *h.latest)
	}
	n := len(h.subs)
	h.mu.Unlock()

	slog.Debug("Feed subscriber added", "subscribers", n)

	var once sync.Once
	return s, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, s)
			h.mu.Unlock()
		})
	}
}

// Ready is closed once the first snapshot has arrived.
func (h *Hub) Ready() <-chan struct{} {
	return h.ready
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// offer replaces any pending update with u. Callers hold h.mu.
func offer(ch chan Update, u Update) {
	select {
	case <-ch:
	default:
	}
	ch <- u
}
