package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrInvalidPeriod         = errors.New("invalid subscription period")
	ErrInvalidFinancialYear  = errors.New("invalid financial year")
	ErrNegativeOpening       = errors.New("opening balance cannot be negative")
	ErrDuplicateSubscription = errors.New("subscription already paid")
	ErrAmountMismatch        = errors.New("amount does not match months covered")
	ErrPersistence           = errors.New("persistence failure")
	ErrNotFound              = errors.New("not found")
)

type (
	// ValidationError reports a rejected input field.
	ValidationError struct {
		Field string
		Err   error
	}

	// DuplicateSubscriptionError names the first month that is already paid.
	DuplicateSubscriptionError struct {
		Month      YearMonth
		Resident   string
		ExistingID string
	}

	// AmountMismatchError asks the caller to confirm an entered total that
	// differs from months*due. Nothing has been written when it is returned.
	AmountMismatchError struct {
		Entered  Money
		Expected Money
		Months   int
	}

	// PersistenceError wraps a store failure.
	PersistenceError struct {
		Op  string
		Err error
	}

	// BatchError reports a subscription batch that failed after some of its
	// entries were committed. Applied holds the committed entry IDs.
	BatchError struct {
		Applied []string
		Failed  YearMonth
		Err     error
	}
)

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *DuplicateSubscriptionError) Error() string {
	return fmt.Sprintf("subscription already paid for %s", e.Month.Label())
}

func (e *DuplicateSubscriptionError) Is(target error) bool {
	return target == ErrDuplicateSubscription
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("amount %s does not match %s for %d months", e.Entered, e.Expected, e.Months)
}

func (e *AmountMismatchError) Is(target error) bool { return target == ErrAmountMismatch }

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func (e *BatchError) Error() string {
	return fmt.Sprintf("subscription batch partially applied (%d committed: %s), failed at %s: %v",
		len(e.Applied), strings.Join(e.Applied, ","), e.Failed.Label(), e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Persist wraps err in a PersistenceError unless it is nil or already a
// domain outcome the caller should see unchanged.
func Persist(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicateSubscription) ||
		errors.Is(err, ErrDuplicateReceipt) || errors.Is(err, ErrPersistence) ||
		errors.Is(err, ErrValidation) || errors.Is(err, context.Canceled) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsValidation reports whether err is an input validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
