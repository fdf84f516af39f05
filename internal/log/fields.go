package log

import "log/slog"

// Field names shared by the HTTP layer and the ledger event logs.
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldDurationHuman = "duration_human"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldErrorType     = "error_type"
	FieldOperation     = "operation"
	FieldMonth         = "month"
	FieldEntryID       = "entry_id"
	FieldReceipt       = "receipt"
	FieldResident      = "resident"
	FieldAmountCents   = "amount_cents"
	FieldCount         = "count"
	FieldPeriod        = "period"
)

const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentSecurity = "security"
)

const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpAllocate = "allocate"
	OpExport   = "export"
)

// Error categories attached as error_type.
const (
	ErrorTypeValidation = "validation_error"
	ErrorTypeDatabase   = "database_error"
	ErrorTypeTimeout    = "timeout_error"
	ErrorTypeConflict   = "conflict_error"
	ErrorTypeInternal   = "internal_error"
)

// LogFields collects attributes in the order they were added. The zero
// value is ready to use.
type LogFields []slog.Attr

func NewFields() LogFields {
	return make(LogFields, 0, 8)
}

func (f LogFields) add(key string, value any) LogFields {
	for i := range f {
		if f[i].Key == key {
			f[i] = slog.Any(key, value)
			return f
		}
	}
	return append(f, slog.Any(key, value))
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	if requestID == "" {
		return f
	}
	return f.add(FieldRequestID, requestID)
}

func (f LogFields) WithError(err error) LogFields {
	if err == nil {
		return f
	}
	return f.add(FieldError, err.Error())
}

func (f LogFields) WithErrorType(kind string) LogFields {
	return f.add(FieldErrorType, kind)
}

func (f LogFields) WithOperation(op string) LogFields {
	return f.add(FieldOperation, op)
}

// WithEntry adds the identifying fields of a ledger entry.
func (f LogFields) WithEntry(id, resident, receipt string, amountCents int64) LogFields {
	return f.add(FieldEntryID, id).
		add(FieldResident, resident).
		add(FieldReceipt, receipt).
		add(FieldAmountCents, amountCents)
}

// ToSlice returns the fields as slog arguments.
func (f LogFields) ToSlice() []any {
	out := make([]any, len(f))
	for i, a := range f {
		out[i] = a
	}
	return out
}
