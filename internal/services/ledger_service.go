package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"rwa/internal/amqp"
	"rwa/internal/core"
	"rwa/internal/store"
)

// EventPublisher announces ledger changes to other processes.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, kind amqp.EventKind, id string) error
}

// Rules are the ledger policies chosen at startup.
type Rules struct {
	Policy         core.MatchPolicy
	Due            core.Money
	StrictReceipts bool
}

// LedgerService orchestrates ledger writes across the store and AMQP
type LedgerService struct {
	store     store.Store
	publisher EventPublisher
	rules     Rules
	now       func() time.Time
}

// NewLedgerService wires a store with an optional event publisher. A nil
// publisher disables change events.
func NewLedgerService(st store.Store, publisher EventPublisher, rules Rules) *LedgerService {
	if rules.Policy == "" {
		rules.Policy = core.MatchNameOrHouse
	}
	if rules.Due.Cents <= 0 {
		rules.Due = core.DefaultSubscriptionDue
	}
	return &LedgerService{
		store:     st,
		publisher: publisher,
		rules:     rules,
		now:       time.Now,
	}
}

func (s *LedgerService) Rules() Rules { return s.rules }

// Record saves a single entry. Subscription-shaped entries go through the
// store's conditional insert so a month can never be charged twice.
func (s *LedgerService) Record(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx = tx.WithDefaults()
	tx.ID = ""
	if err := tx.ValidateTerms(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.resolveResident(ctx, &tx); err != nil {
		return core.Transaction{}, err
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.checkReceipts(ctx, []string{tx.ReceiptNo}, ""); err != nil {
		return core.Transaction{}, err
	}

	var (
		saved core.Transaction
		err   error
	)
	if tx.IsSubscription() {
		saved, err = s.store.AppendSubscription(ctx, tx, s.rules.Policy)
		err = s.duplicateFor(tx, err)
	} else {
		saved, err = s.store.Append(ctx, tx)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("record transaction: %w", core.Persist("append", err))
	}

	slog.InfoContext(ctx, "Recorded transaction",
		"id", saved.ID,
		"type", saved.Type,
		"mode", saved.Mode,
		"amount_cents", saved.Amount.Cents,
		"receipt", saved.ReceiptNo)

	s.publish(ctx, amqp.EventCreated, saved.ID)
	return saved, nil
}

// Update replaces every field of an existing entry.
func (s *LedgerService) Update(ctx context.Context, tx core.Transaction) error {
	if strings.TrimSpace(tx.ID) == "" {
		return &core.ValidationError{Field: "id", Err: core.ErrMissingID}
	}
	tx = tx.WithDefaults()
	if err := tx.ValidateTerms(); err != nil {
		return err
	}
	if err := s.resolveResident(ctx, &tx); err != nil {
		return err
	}
	if err := tx.Validate(); err != nil {
		return err
	}
	if err := s.checkReceipts(ctx, []string{tx.ReceiptNo}, tx.ID); err != nil {
		return err
	}

	var err error
	if tx.IsSubscription() {
		err = s.duplicateFor(tx, s.store.UpdateSubscription(ctx, tx, s.rules.Policy))
	} else {
		err = s.store.Update(ctx, tx)
	}
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", tx.ID, core.Persist("update", err))
	}

	slog.InfoContext(ctx, "Updated transaction", "id", tx.ID, "receipt", tx.ReceiptNo)
	s.publish(ctx, amqp.EventUpdated, tx.ID)
	return nil
}

// Delete removes one entry. Batches have no group identity, so sibling
// months stay in place.
func (s *LedgerService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, core.Persist("delete", err))
	}
	slog.InfoContext(ctx, "Deleted transaction", "id", id)
	s.publish(ctx, amqp.EventDeleted, id)
	return nil
}

func (s *LedgerService) Get(ctx context.Context, id string) (core.Transaction, error) {
	tx, err := s.store.Get(ctx, id)
	if err != nil {
		return core.Transaction{}, core.Persist("get", err)
	}
	return tx, nil
}

// SubscriptionStatus reports whether who already paid for month and, if so,
// the entry that covers it.
func (s *LedgerService) SubscriptionStatus(ctx context.Context, who core.Identity, month core.YearMonth) (core.Transaction, bool, error) {
	if !month.Valid() {
		return core.Transaction{}, false, &core.ValidationError{Field: "month", Err: core.ErrInvalidMonth}
	}
	probe := core.Transaction{ResidentID: who.ResidentID, ResidentName: who.Name, HouseNo: who.HouseNo}
	if err := s.resolveResident(ctx, &probe); err != nil {
		return core.Transaction{}, false, err
	}
	who = core.IdentityOf(probe)

	entries, err := s.store.Snapshot(ctx)
	if err != nil {
		return core.Transaction{}, false, core.Persist("snapshot", err)
	}
	tx, ok := core.FindSubscription(entries, who, month, "", s.rules.Policy)
	return tx, ok, nil
}

// RegisterResident adds a resident to the directory.
func (s *LedgerService) RegisterResident(ctx context.Context, r core.Resident) (core.Resident, error) {
	r.Name = strings.TrimSpace(r.Name)
	r.HouseNo = strings.TrimSpace(r.HouseNo)
	r.Contact = strings.TrimSpace(r.Contact)
	if err := r.Validate(); err != nil {
		return core.Resident{}, err
	}
	id, err := s.store.AddResident(ctx, r)
	if err != nil {
		return core.Resident{}, fmt.Errorf("register resident: %w", core.Persist("add resident", err))
	}
	r.ID = id
	slog.InfoContext(ctx, "Registered resident", "id", id, "house", r.HouseNo)
	return r, nil
}

// resolveResident fills name and house from the directory when only a
// resident ID was supplied.
func (s *LedgerService) resolveResident(ctx context.Context, tx *core.Transaction) error {
	if tx.ResidentID == "" || (tx.ResidentName != "" && tx.HouseNo != "") {
		return nil
	}
	r, err := s.store.GetResident(ctx, tx.ResidentID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return &core.ValidationError{Field: "resident_id", Err: err}
		}
		return core.Persist("get resident", err)
	}
	if tx.ResidentName == "" {
		tx.ResidentName = r.Name
	}
	if tx.HouseNo == "" {
		tx.HouseNo = r.HouseNo
	}
	return nil
}

// checkReceipts enforces unique receipt numbers under the strict policy.
func (s *LedgerService) checkReceipts(ctx context.Context, receipts []string, excludeID string) error {
	if !s.rules.StrictReceipts {
		return nil
	}
	entries, err := s.store.Snapshot(ctx)
	if err != nil {
		return core.Persist("snapshot", err)
	}
	used := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.ID != excludeID && e.ReceiptNo != "" {
			used[e.ReceiptNo] = struct{}{}
		}
	}
	for _, r := range receipts {
		if _, ok := used[r]; ok {
			return &core.ValidationError{Field: "receipt_no", Err: fmt.Errorf("%w: %s", core.ErrDuplicateReceipt, r)}
		}
	}
	return nil
}

// duplicateFor turns a bare store collision into an error naming the month.
func (s *LedgerService) duplicateFor(tx core.Transaction, err error) error {
	if err == nil {
		return nil
	}
	var dup *core.DuplicateSubscriptionError
	if errors.Is(err, core.ErrDuplicateSubscription) && !errors.As(err, &dup) {
		return &core.DuplicateSubscriptionError{Month: tx.Date.YearMonth(), Resident: core.IdentityOf(tx).String()}
	}
	return err
}

func (s *LedgerService) publish(ctx context.Context, kind amqp.EventKind, id string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, kind, id); err != nil {
		// The entry is already stored; the mirror catches up on its next full sync.
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"kind", kind, "id", id, "error", err)
	}
}

// Close closes the store and the publisher when it holds a connection.
func (s *LedgerService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}

	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}

	return nil
}
