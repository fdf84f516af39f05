package http

import (
	"context"
	"errors"
	"net/http"

	"rwa/internal/core"
	"rwa/internal/log"
)

// writeServiceError maps ledger errors onto status codes and JSON bodies.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var (
		dup      *core.DuplicateSubscriptionError
		mismatch *core.AmountMismatchError
		batch    *core.BatchError
	)
	logger := log.FromContext(r.Context())
	fields := log.NewFields().
		WithOperation(op).
		WithError(err)

	// a partial batch wraps its cause, so it must be matched first
	switch {
	case errors.As(err, &batch):
		logger.ErrorContext(r.Context(), "Subscription batch partially applied",
			append(fields.WithErrorType(log.ErrorTypeDatabase).ToSlice(), "applied", batch.Applied, log.FieldMonth, batch.Failed.String())...)
		ErrorResponse(http.StatusBadGateway, err.Error(), errorBody{
			"applied":      batch.Applied,
			"failed_month": batch.Failed.String(),
		}).Write(w)

	case errors.As(err, &dup):
		logger.InfoContext(r.Context(), "Duplicate subscription rejected", fields.WithErrorType(log.ErrorTypeConflict).ToSlice()...)
		ErrorResponse(http.StatusConflict, err.Error(), errorBody{
			"month":       dup.Month.String(),
			"resident":    dup.Resident,
			"existing_id": dup.ExistingID,
		}).Write(w)

	case errors.Is(err, core.ErrDuplicateSubscription):
		ErrorResponse(http.StatusConflict, err.Error()).Write(w)

	case errors.As(err, &mismatch):
		ErrorResponse(http.StatusUnprocessableEntity, err.Error(), errorBody{
			"confirm_required": true,
			"entered":          mismatch.Entered.StringFixed(),
			"expected":         mismatch.Expected.StringFixed(),
			"months":           mismatch.Months,
		}).Write(w)

	case core.IsValidation(err):
		logger.InfoContext(r.Context(), "Request rejected", fields.WithErrorType(log.ErrorTypeValidation).ToSlice()...)
		BadRequestError(err.Error()).Write(w)

	case errors.Is(err, core.ErrNotFound):
		NotFoundError(err.Error()).Write(w)

	case errors.Is(err, core.ErrPersistence):
		logger.ErrorContext(r.Context(), "Storage failure", fields.WithErrorType(log.ErrorTypeDatabase).ToSlice()...)
		ErrorResponse(http.StatusBadGateway, "storage failure", errorBody{"applied": []string{}}).Write(w)

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.WarnContext(r.Context(), "Request cancelled", fields.WithErrorType(log.ErrorTypeTimeout).ToSlice()...)
		ErrorResponse(http.StatusServiceUnavailable, "request cancelled").Write(w)

	default:
		log.NewStructuredLogger(logger).
			LogError(r.Context(), "Unhandled error", err, op, log.NewFields().WithErrorType(log.ErrorTypeInternal))
		InternalServerError("internal error").Write(w)
	}
}
