// Package storetest holds the behaviour every store.Store adapter must share.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"rwa/internal/core"
	"rwa/internal/store"
)

// Subscription returns a valid subscription entry for name/house in ym.
func Subscription(name, house string, ym core.YearMonth, receipt string) core.Transaction {
	return core.Transaction{
		ResidentName: name,
		HouseNo:      house,
		Amount:       core.DefaultSubscriptionDue,
		Mode:         core.Cash,
		Type:         core.Received,
		Reason:       core.SubscriptionReason(ym),
		Date:         ym.FirstDay(),
		PaymentDate:  core.NewDate(ym.Year, ym.Month, 5),
		ReceiptNo:    receipt,
	}
}

// Run exercises a fresh store returned by newStore.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Helper()
	ctx := context.Background()
	jan := core.YearMonth{Year: 2025, Month: 1}
	feb := core.YearMonth{Year: 2025, Month: 2}

	t.Run("append assigns ids and snapshot is newest first", func(t *testing.T) {
		s := newStore(t)
		a, err := s.Append(ctx, Subscription("A", "H1", jan, "R1"))
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		b, err := s.Append(ctx, Subscription("B", "H2", feb, "R2"))
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if a.ID == "" || b.ID == "" || a.ID == b.ID {
			t.Fatalf("ids not assigned: %q %q", a.ID, b.ID)
		}
		snap, err := s.Snapshot(ctx)
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		if len(snap) != 2 || snap[0].ID != b.ID {
			t.Fatalf("snapshot order wrong: %+v", snap)
		}
		got, err := s.Get(ctx, a.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.ReceiptNo != "R1" || got.Amount != core.DefaultSubscriptionDue || !got.Date.Equal(jan.FirstDay().Time) {
			t.Fatalf("round trip mismatch: %+v", got)
		}
		if got.PaymentDate.IsEmpty() {
			t.Fatal("payment date lost")
		}
	})

	t.Run("append rejects invalid entries", func(t *testing.T) {
		s := newStore(t)
		bad := Subscription("A", "H1", jan, "")
		if _, err := s.Append(ctx, bad); !core.IsValidation(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("conditional insert rejects a charged month", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.AppendSubscription(ctx, Subscription("A", "H1", feb, "R1"), core.MatchNameOrHouse); err != nil {
			t.Fatalf("first insert: %v", err)
		}
		_, err := s.AppendSubscription(ctx, Subscription("A", "H9", feb, "R2"), core.MatchNameOrHouse)
		if !errors.Is(err, core.ErrDuplicateSubscription) {
			t.Fatalf("expected duplicate, got %v", err)
		}
		if _, err := s.AppendSubscription(ctx, Subscription("A", "H9", feb, "R3"), core.MatchNameAndHouse); err != nil {
			t.Fatalf("name and house policy should allow a different house: %v", err)
		}
		if _, err := s.AppendSubscription(ctx, Subscription("A", "H1", jan, "R4"), core.MatchNameOrHouse); err != nil {
			t.Fatalf("other month should be free: %v", err)
		}
	})

	t.Run("concurrent conditional inserts admit one", func(t *testing.T) {
		s := newStore(t)
		const workers = 8
		var wg sync.WaitGroup
		var mu sync.Mutex
		ok := 0
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.AppendSubscription(ctx, Subscription("A", "H1", feb, "R"), core.MatchNameOrHouse)
				if err == nil {
					mu.Lock()
					ok++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if ok != 1 {
			t.Fatalf("expected exactly one insert, got %d", ok)
		}
	})

	t.Run("update and conditional update", func(t *testing.T) {
		s := newStore(t)
		a, _ := s.AppendSubscription(ctx, Subscription("A", "H1", jan, "R1"), core.MatchNameOrHouse)
		b, _ := s.AppendSubscription(ctx, Subscription("A", "H1", feb, "R2"), core.MatchNameOrHouse)

		moved := a
		moved.Date = feb.FirstDay()
		moved.Reason = core.SubscriptionReason(feb)
		if err := s.UpdateSubscription(ctx, moved, core.MatchNameOrHouse); !errors.Is(err, core.ErrDuplicateSubscription) {
			t.Fatalf("expected duplicate on update, got %v", err)
		}

		// re-saving the same month must not collide with itself
		a.Mode = core.Account
		if err := s.UpdateSubscription(ctx, a, core.MatchNameOrHouse); err != nil {
			t.Fatalf("self update: %v", err)
		}
		got, _ := s.Get(ctx, a.ID)
		if got.Mode != core.Account {
			t.Fatalf("update not applied: %+v", got)
		}

		b.Reason = "Donation"
		if err := s.Update(ctx, b); err != nil {
			t.Fatalf("plain update: %v", err)
		}
		missing := b
		missing.ID = "does-not-exist"
		if err := s.Update(ctx, missing); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		a, _ := s.Append(ctx, Subscription("A", "H1", jan, "R1"))
		if err := s.Delete(ctx, a.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := s.Get(ctx, a.ID); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("expected not found after delete, got %v", err)
		}
		if err := s.Delete(ctx, a.ID); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("expected not found on second delete, got %v", err)
		}
	})

	t.Run("batch append is all or nothing", func(t *testing.T) {
		s := newStore(t)
		b, ok := s.(store.BatchAppender)
		if !ok {
			t.Skip("store does not support atomic batches")
		}
		if _, err := s.AppendSubscription(ctx, Subscription("A", "H1", feb, "R0"), core.MatchNameOrHouse); err != nil {
			t.Fatal(err)
		}
		batch := []core.Transaction{
			Subscription("A", "H1", jan, "R1/1"),
			Subscription("A", "H1", feb, "R1/2"),
		}
		if _, err := b.AppendSubscriptions(ctx, batch, core.MatchNameOrHouse); !errors.Is(err, core.ErrDuplicateSubscription) {
			t.Fatalf("expected duplicate, got %v", err)
		}
		snap, _ := s.Snapshot(ctx)
		if len(snap) != 1 {
			t.Fatalf("batch partially applied: %d entries", len(snap))
		}

		created, err := b.AppendSubscriptions(ctx, []core.Transaction{
			Subscription("B", "H2", jan, "R2/1"),
			Subscription("B", "H2", feb, "R2/2"),
		}, core.MatchNameOrHouse)
		if err != nil || len(created) != 2 || created[0].ID == "" {
			t.Fatalf("batch append: %+v, %v", created, err)
		}
	})

	t.Run("subscribe delivers snapshot then changes", func(t *testing.T) {
		s := newStore(t)
		var mu sync.Mutex
		var sizes []int
		unsubscribe, err := s.Subscribe(ctx, func(snap []core.Transaction) {
			mu.Lock()
			sizes = append(sizes, len(snap))
			mu.Unlock()
		})
		if err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		if _, err := s.Append(ctx, Subscription("A", "H1", jan, "R1")); err != nil {
			t.Fatal(err)
		}
		unsubscribe()
		if _, err := s.Append(ctx, Subscription("B", "H2", jan, "R2")); err != nil {
			t.Fatal(err)
		}
		mu.Lock()
		defer mu.Unlock()
		if len(sizes) != 2 || sizes[0] != 0 || sizes[1] != 1 {
			t.Fatalf("unexpected deliveries: %v", sizes)
		}
	})

	t.Run("resident directory", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.AddResident(ctx, core.Resident{Name: "Zoya", HouseNo: "B-2"}); err != nil {
			t.Fatal(err)
		}
		id, err := s.AddResident(ctx, core.Resident{Name: "Asha", HouseNo: "A-12", Contact: "98450"})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := s.AddResident(ctx, core.Resident{Name: "Nobody"}); !core.IsValidation(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
		list, err := s.ListResidents(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(list) < 2 || list[0].Name > list[1].Name {
			t.Fatalf("residents not ordered by name: %+v", list)
		}
		got, err := s.GetResident(ctx, id)
		if err != nil || got.Contact != "98450" {
			t.Fatalf("get resident: %+v, %v", got, err)
		}
		if _, err := s.GetResident(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}
