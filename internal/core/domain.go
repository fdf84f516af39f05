package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Cash    Mode = "Cash"
	Account Mode = "Account"

	Received TxType = "Received"
	Paid     TxType = "Paid"
)

const (
	// SocietyExpense is the placeholder resident and reason used for outgoing payments.
	SocietyExpense = "Society Expense"
	// NoHouse is the house number recorded on non-resident entries.
	NoHouse     = "N/A"
	OtherIncome = "Other Income"

	subscriptionMarker = "subscription"
	maxReasonLength    = 200
)

type (
	Mode   string
	TxType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Resident struct {
		ID      string
		Name    string
		HouseNo string
		Contact string // optional
	}

	// Transaction is one ledger entry. Subscription batches produce one
	// Transaction per covered month.
	Transaction struct {
		ID                 string // assigned by the store
		ResidentID         string // optional stable resident key
		ResidentName       string
		HouseNo            string
		Amount             Money
		Mode               Mode
		Type               TxType
		Reason             string
		Date               Date // accounting date
		PaymentDate        Date // optional
		ReceiptNo          string
		SubscriptionPeriod string // "YYYY-MM to YYYY-MM" for batch entries
		CreatedAt          time.Time
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidMode      = errors.New("invalid mode")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrMissingReceipt   = errors.New("missing receipt number")
	ErrEmptyResident    = errors.New("empty resident name")
	ErrEmptyHouse       = errors.New("empty house number")
	ErrEmptyReason      = errors.New("empty reason")
	ErrReasonTooLong    = errors.New("reason too long (max 200 characters)")
	ErrMissingDate      = errors.New("date cannot be zero")
	ErrDuplicateReceipt = errors.New("receipt number already used")
	ErrMissingID        = errors.New("missing transaction id")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrMissingDate
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// YearMonth returns the calendar month the date falls in.
func (d Date) YearMonth() YearMonth {
	return YearMonth{Year: d.Year(), Month: d.Month()}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// IsEmpty returns true if the date is zero (optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (m Mode) Valid() bool {
	return m == Cash || m == Account
}

func (t TxType) Valid() bool {
	return t == Received || t == Paid
}

// ParseMode accepts the mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cash":
		return Cash, nil
	case "account", "bank":
		return Account, nil
	}
	return "", &ValidationError{Field: "mode", Err: ErrInvalidMode}
}

// ParseType accepts the transaction type case-insensitively.
func ParseType(s string) (TxType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "received":
		return Received, nil
	case "paid":
		return Paid, nil
	}
	return "", &ValidationError{Field: "type", Err: ErrInvalidType}
}

func (r Resident) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return &ValidationError{Field: "name", Err: ErrEmptyResident}
	}
	if strings.TrimSpace(r.HouseNo) == "" {
		return &ValidationError{Field: "house_no", Err: ErrEmptyHouse}
	}
	return nil
}

// IsSubscription reports whether the entry is a monthly subscription charge.
func (t Transaction) IsSubscription() bool {
	return t.Type == Received && strings.Contains(strings.ToLower(t.Reason), subscriptionMarker)
}

// Signed returns the amount with the ledger sign convention applied:
// positive for Received, negative for Paid.
func (t Transaction) Signed() Money {
	if t.Type == Received {
		return t.Amount
	}
	return Money{Cents: -t.Amount.Cents}
}

// WithDefaults fills the resident and reason placeholders used for
// expenses and uncategorised income.
func (t Transaction) WithDefaults() Transaction {
	t.ReceiptNo = strings.TrimSpace(t.ReceiptNo)
	t.Reason = strings.TrimSpace(t.Reason)
	t.ResidentName = strings.TrimSpace(t.ResidentName)
	t.HouseNo = strings.TrimSpace(t.HouseNo)
	if t.Type == Paid {
		if t.ResidentName == "" {
			t.ResidentName = SocietyExpense
		}
		if t.HouseNo == "" {
			t.HouseNo = NoHouse
		}
	}
	if t.Reason == "" {
		if t.Type == Paid {
			t.Reason = SocietyExpense
		} else {
			t.Reason = OtherIncome
		}
	}
	return t
}

func (t Transaction) Validate() error {
	if err := t.ValidateTerms(); err != nil {
		return err
	}
	if strings.TrimSpace(t.ResidentName) == "" {
		return &ValidationError{Field: "resident_name", Err: ErrEmptyResident}
	}
	if strings.TrimSpace(t.HouseNo) == "" {
		return &ValidationError{Field: "house_no", Err: ErrEmptyHouse}
	}
	return nil
}

// ValidateTerms checks every field except the resident identity, which may
// still have to be filled in from the directory.
func (t Transaction) ValidateTerms() error {
	if strings.TrimSpace(t.ReceiptNo) == "" {
		return &ValidationError{Field: "receipt_no", Err: ErrMissingReceipt}
	}
	if err := t.Amount.Validate(); err != nil {
		return &ValidationError{Field: "amount", Err: err}
	}
	if !t.Mode.Valid() {
		return &ValidationError{Field: "mode", Err: ErrInvalidMode}
	}
	if !t.Type.Valid() {
		return &ValidationError{Field: "type", Err: ErrInvalidType}
	}
	if err := t.Date.Validate(); err != nil {
		return &ValidationError{Field: "date", Err: err}
	}
	if strings.TrimSpace(t.Reason) == "" {
		return &ValidationError{Field: "reason", Err: ErrEmptyReason}
	}
	if len(t.Reason) > maxReasonLength {
		return &ValidationError{Field: "reason", Err: ErrReasonTooLong}
	}
	return nil
}
