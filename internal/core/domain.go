package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	SourceChat    Source = "chat"
	SourceReceipt Source = "receipt"
	SourceEmail   Source = "email"
)

const (
	PeriodMonthly BudgetPeriod = "monthly"
)

// DefaultCategory is assigned when no category is supplied.
const DefaultCategory = "Uncategorized"

// DateLayout is the calendar-date wire format used across storage and APIs.
const DateLayout = "2006-01-02"

type (
	Source       string
	BudgetPeriod string

	Date struct {
		time.Time
	}

	Expense struct {
		ID         int64
		Date       Date
		Vendor     string
		Amount     decimal.Decimal
		Currency   string
		Category   string
		Source     Source
		Notes      string
		ExternalID string
	}

	Budget struct {
		Category string
		Amount   decimal.Decimal
		Period   BudgetPeriod
	}

	SyncCursor struct {
		LastSyncTimestamp *time.Time
		LastHistoryID     *string
	}
)

var (
	ErrInvalidDay      = errors.New("invalid day")
	ErrInvalidMonth    = errors.New("invalid month")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrNegativeAmount  = errors.New("amount cannot be negative")
	ErrEmptyCategory   = errors.New("empty category")
	ErrInvalidSource   = errors.New("invalid source")
	ErrInvalidPeriod   = errors.New("invalid budget period")
	ErrNotFound        = errors.New("not found")
	ErrVendorTooLong   = errors.New("vendor too long (max 200 characters)")
	ErrCategoryTooLong = errors.New("category too long (max 100 characters)")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// Today returns the current UTC calendar date.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
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

// AddDays returns the date n days later (or earlier when n is negative).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (s Source) Valid() bool {
	switch s {
	case SourceChat, SourceReceipt, SourceEmail:
		return true
	}
	return false
}

// Validate checks the invariants of a single expense before it is persisted.
func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return &ValidationError{Field: "date", Message: err.Error()}
	}
	if e.Amount.IsNegative() {
		return &ValidationError{Field: "amount", Message: ErrNegativeAmount.Error()}
	}
	if strings.TrimSpace(e.Category) == "" {
		return &ValidationError{Field: "category", Message: ErrEmptyCategory.Error()}
	}
	if len(e.Category) > 100 {
		return &ValidationError{Field: "category", Message: ErrCategoryTooLong.Error()}
	}
	if len(e.Vendor) > 200 {
		return &ValidationError{Field: "vendor", Message: ErrVendorTooLong.Error()}
	}
	if !e.Source.Valid() {
		return &ValidationError{Field: "source", Message: ErrInvalidSource.Error()}
	}
	return nil
}

// Normalize applies defaults: today for a missing date and DefaultCategory
// for a blank category. Text fields are trimmed.
func (e Expense) Normalize() Expense {
	e.Vendor = strings.TrimSpace(e.Vendor)
	e.Category = strings.TrimSpace(e.Category)
	e.Currency = strings.TrimSpace(e.Currency)
	e.Notes = strings.TrimSpace(e.Notes)
	e.ExternalID = strings.TrimSpace(e.ExternalID)
	if e.Category == "" {
		e.Category = DefaultCategory
	}
	if e.Date.IsZero() {
		e.Date = Today()
	}
	return e
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return &ValidationError{Field: "category", Message: ErrEmptyCategory.Error()}
	}
	if !b.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "budget amount must be positive"}
	}
	if b.Period != PeriodMonthly {
		return &ValidationError{Field: "period", Message: ErrInvalidPeriod.Error()}
	}
	return nil
}
