package log

import (
	"context"
	"net/http"
)

type loggerKey struct{}

// NewContext returns ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Middleware puts logger into every request context.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// FromContext returns the request logger, or the default logger tagged as
// the app component.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*Logger); ok {
		return logger
	}
	return Default(ComponentApp)
}

// RequestIDMiddleware tags the request logger with the request ID, when
// there is one.
func RequestIDMiddleware(extractRequestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if fields := NewFields().WithRequestID(extractRequestID(r)); len(fields) > 0 {
				logger := FromContext(r.Context()).With(fields.ToSlice()...)
				r = r.WithContext(NewContext(r.Context(), logger))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// StructuredLogger writes the ledger's event records.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogEntryRecorded logs a successful ledger write
func (sl *StructuredLogger) LogEntryRecorded(ctx context.Context, op, id, resident, receipt string, amountCents int64) {
	fields := NewFields().
		WithEntry(id, resident, receipt, amountCents).
		WithOperation(op)

	sl.logger.InfoContext(ctx, "Ledger entry recorded", fields.ToSlice()...)
}

// LogAllocation logs a subscription batch
func (sl *StructuredLogger) LogAllocation(ctx context.Context, resident, period string, count int, amountCents int64) {
	sl.logger.InfoContext(ctx, "Subscription allocated",
		FieldOperation, OpAllocate,
		FieldResident, resident,
		FieldPeriod, period,
		FieldCount, count,
		FieldAmountCents, amountCents)
}

// LogError logs err with the operation that failed.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, operation string, fields LogFields) {
	sl.logger.ErrorContext(ctx, msg, fields.WithError(err).WithOperation(operation).ToSlice()...)
}
