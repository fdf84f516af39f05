package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"rwa/internal/amqp"
	"rwa/internal/core"
	"rwa/internal/store"
)

type (
	// AllocationRequest records one payment that covers the months From..To
	// inclusive for a single resident.
	AllocationRequest struct {
		ResidentID   string
		ResidentName string
		HouseNo      string
		From         core.YearMonth
		To           core.YearMonth
		Amount       core.Money
		Mode         core.Mode
		PaymentDate  core.Date
		ReceiptBase  string
		// EditID re-targets an existing entry to the first month of the
		// range; the other months are appended.
		EditID string
		// ConfirmMismatch accepts an entered total that differs from
		// months*due. The recorded amounts always use the fixed due.
		ConfirmMismatch bool
	}

	// AllocationResult describes what was written.
	AllocationResult struct {
		Entries  []core.Transaction
		Count    int
		Recorded core.Money
		Entered  core.Money
		Mismatch bool
	}
)

func (r AllocationRequest) identity() core.Identity {
	return core.Identity{ResidentID: r.ResidentID, Name: r.ResidentName, HouseNo: r.HouseNo}
}

// Allocate expands a multi-month payment into one entry per month. Nothing
// is written when validation, the amount check or the duplicate pre-check
// fails.
func (s *LedgerService) Allocate(ctx context.Context, req AllocationRequest) (AllocationResult, error) {
	req.ResidentName = strings.TrimSpace(req.ResidentName)
	req.HouseNo = strings.TrimSpace(req.HouseNo)
	req.ReceiptBase = strings.TrimSpace(req.ReceiptBase)

	if err := validateAllocationTerms(req); err != nil {
		return AllocationResult{}, err
	}
	if err := s.resolveRequestResident(ctx, &req); err != nil {
		return AllocationResult{}, err
	}
	if err := validateAllocationIdentity(req); err != nil {
		return AllocationResult{}, err
	}

	months := core.MonthsBetween(req.From, req.To)
	expected := s.rules.Due.Mul(months)
	mismatch := req.Amount != expected
	if mismatch && !req.ConfirmMismatch {
		return AllocationResult{}, &core.AmountMismatchError{Entered: req.Amount, Expected: expected, Months: months}
	}

	entries, err := s.store.Snapshot(ctx)
	if err != nil {
		return AllocationResult{}, core.Persist("snapshot", err)
	}
	if req.EditID != "" {
		if _, err := s.store.Get(ctx, req.EditID); err != nil {
			return AllocationResult{}, core.Persist("get", err)
		}
	}

	who := req.identity()
	batch := s.buildBatch(req, months)
	for _, tx := range batch {
		ym := tx.Date.YearMonth()
		if existing, ok := core.FindSubscription(entries, who, ym, req.EditID, s.rules.Policy); ok {
			return AllocationResult{}, &core.DuplicateSubscriptionError{Month: ym, Resident: who.String(), ExistingID: existing.ID}
		}
	}

	receipts := make([]string, len(batch))
	for i, tx := range batch {
		receipts[i] = tx.ReceiptNo
	}
	if err := s.checkReceipts(ctx, receipts, req.EditID); err != nil {
		return AllocationResult{}, err
	}

	written, err := s.writeBatch(ctx, batch, req.EditID)
	if err != nil {
		return AllocationResult{}, err
	}

	slog.InfoContext(ctx, "Allocated subscription",
		"resident", who.String(),
		"period", core.PeriodLabel(req.From, req.To),
		"months", months,
		"receipt", req.ReceiptBase,
		"amount_cents", expected.Cents,
		"entered_cents", req.Amount.Cents,
		"edit_id", req.EditID)

	return AllocationResult{
		Entries:  written,
		Count:    len(written),
		Recorded: expected,
		Entered:  req.Amount,
		Mismatch: mismatch,
	}, nil
}

// validateAllocationTerms checks everything that needs no store access.
// A request naming a registered resident may leave name and house empty.
func validateAllocationTerms(req AllocationRequest) error {
	if !req.From.Valid() || !req.To.Valid() {
		return &core.ValidationError{Field: "period", Err: core.ErrInvalidMonth}
	}
	if core.MonthsBetween(req.From, req.To) < 1 {
		return &core.ValidationError{Field: "period", Err: core.ErrInvalidPeriod}
	}
	if req.ResidentID == "" {
		if err := validateAllocationIdentity(req); err != nil {
			return err
		}
	}
	if err := req.Amount.Validate(); err != nil {
		return &core.ValidationError{Field: "amount", Err: err}
	}
	if !req.Mode.Valid() {
		return &core.ValidationError{Field: "mode", Err: core.ErrInvalidMode}
	}
	if req.ReceiptBase == "" {
		return &core.ValidationError{Field: "receipt_no", Err: core.ErrMissingReceipt}
	}
	return nil
}

func validateAllocationIdentity(req AllocationRequest) error {
	if req.ResidentName == "" {
		return &core.ValidationError{Field: "resident_name", Err: core.ErrEmptyResident}
	}
	if req.HouseNo == "" {
		return &core.ValidationError{Field: "house_no", Err: core.ErrEmptyHouse}
	}
	return nil
}

func (s *LedgerService) resolveRequestResident(ctx context.Context, req *AllocationRequest) error {
	tx := core.Transaction{ResidentID: req.ResidentID, ResidentName: req.ResidentName, HouseNo: req.HouseNo}
	if err := s.resolveResident(ctx, &tx); err != nil {
		return err
	}
	req.ResidentName, req.HouseNo = tx.ResidentName, tx.HouseNo
	return nil
}

func (s *LedgerService) buildBatch(req AllocationRequest, months int) []core.Transaction {
	period := core.PeriodLabel(req.From, req.To)
	now := s.now()
	batch := make([]core.Transaction, 0, months)
	for i := 0; i < months; i++ {
		ym := req.From.AddMonths(i)
		batch = append(batch, core.Transaction{
			ResidentID:         req.ResidentID,
			ResidentName:       req.ResidentName,
			HouseNo:            req.HouseNo,
			Amount:             s.rules.Due,
			Mode:               req.Mode,
			Type:               core.Received,
			Reason:             core.SubscriptionReason(ym),
			Date:               ym.FirstDay(),
			PaymentDate:        req.PaymentDate,
			ReceiptNo:          core.ReceiptNumber(req.ReceiptBase, i, months),
			SubscriptionPeriod: period,
			CreatedAt:          now,
		})
	}
	if req.EditID != "" {
		batch[0].ID = req.EditID
	}
	return batch
}

// writeBatch commits the entries. Stores that implement
// store.BatchAppender commit the appended part atomically; otherwise a
// mid-batch failure is reported with the IDs already written.
func (s *LedgerService) writeBatch(ctx context.Context, batch []core.Transaction, editID string) ([]core.Transaction, error) {
	written := make([]core.Transaction, 0, len(batch))
	rest := batch

	if editID != "" {
		first := batch[0]
		if err := s.store.UpdateSubscription(ctx, first, s.rules.Policy); err != nil {
			return nil, s.batchFailure(written, first, err)
		}
		written = append(written, first)
		s.publish(ctx, amqp.EventUpdated, first.ID)
		rest = batch[1:]
	}
	if len(rest) == 0 {
		return written, nil
	}

	if ba, ok := s.store.(store.BatchAppender); ok {
		saved, err := ba.AppendSubscriptions(ctx, rest, s.rules.Policy)
		if err != nil {
			return nil, s.batchFailure(written, rest[0], err)
		}
		for _, tx := range saved {
			s.publish(ctx, amqp.EventCreated, tx.ID)
		}
		return append(written, saved...), nil
	}

	for _, tx := range rest {
		saved, err := s.store.AppendSubscription(ctx, tx, s.rules.Policy)
		if err != nil {
			return nil, s.batchFailure(written, tx, err)
		}
		written = append(written, saved)
		s.publish(ctx, amqp.EventCreated, saved.ID)
	}
	return written, nil
}

// batchFailure reports a write error. Before anything was committed the
// caller sees the plain error; afterwards it is wrapped in a BatchError.
func (s *LedgerService) batchFailure(written []core.Transaction, failed core.Transaction, err error) error {
	err = s.duplicateFor(failed, err)
	if !errors.Is(err, core.ErrDuplicateSubscription) && !errors.Is(err, core.ErrNotFound) {
		err = core.Persist("append subscription", err)
	}
	if len(written) == 0 {
		return fmt.Errorf("allocate subscription: %w", err)
	}
	applied := make([]string, len(written))
	for i, tx := range written {
		applied[i] = tx.ID
	}
	slog.Error("Subscription batch partially applied",
		"applied", applied,
		"failed_month", failed.Date.YearMonth().String(),
		"error", err)
	return &core.BatchError{Applied: applied, Failed: failed.Date.YearMonth(), Err: err}
}
