package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "2024-03-15" {
		t.Fatalf("got %s", d)
	}
	if _, err := ParseDate("15/03/2024"); err == nil {
		t.Fatalf("expected error for wrong layout")
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		Date:     NewDate(2025, 1, 1),
		Vendor:   "Chipotle",
		Amount:   decimal.RequireFromString("12.50"),
		Category: "Food",
		Source:   SourceChat,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	zero := good
	zero.Amount = decimal.Zero
	if err := zero.Validate(); err != nil {
		t.Fatalf("zero amount should be accepted, got %v", err)
	}

	bads := []Expense{
		{Date: Date{}, Amount: decimal.NewFromInt(1), Category: "c", Source: SourceChat},
		{Date: NewDate(2025, 1, 1), Amount: decimal.NewFromInt(-1), Category: "c", Source: SourceChat},
		{Date: NewDate(2025, 1, 1), Amount: decimal.NewFromInt(1), Category: " ", Source: SourceChat},
		{Date: NewDate(2025, 1, 1), Amount: decimal.NewFromInt(1), Category: "c", Source: "fax"},
	}
	for i, e := range bads {
		err := e.Validate()
		if err == nil {
			t.Fatalf("case %d expected error", i)
		}
		if !IsValidation(err) {
			t.Fatalf("case %d expected ValidationError, got %T", i, err)
		}
	}
}

func TestExpenseNormalize(t *testing.T) {
	e := Expense{Vendor: "  Shell ", Amount: decimal.NewFromInt(40)}.Normalize()
	if e.Category != DefaultCategory {
		t.Fatalf("expected default category, got %q", e.Category)
	}
	if e.Vendor != "Shell" {
		t.Fatalf("expected trimmed vendor, got %q", e.Vendor)
	}
	if !e.Date.Equal(Today().Time) {
		t.Fatalf("expected today, got %s", e.Date)
	}
}

func TestBudgetValidate(t *testing.T) {
	ok := Budget{Category: "Food", Amount: decimal.NewFromInt(300), Period: PeriodMonthly}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	for i, b := range []Budget{
		{Category: "", Amount: decimal.NewFromInt(1), Period: PeriodMonthly},
		{Category: "Food", Amount: decimal.Zero, Period: PeriodMonthly},
		{Category: "Food", Amount: decimal.NewFromInt(1), Period: "weekly"},
	} {
		if err := b.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestErrorTaxonomy(t *testing.T) {
	base := errors.New("disk full")
	var err error = &StorageError{Op: "record", Err: base}
	wrapped := errors.Join(errors.New("context"), err)
	if !IsStorage(wrapped) {
		t.Fatalf("expected storage error to be detected through wrapping")
	}
	if !errors.Is(err, base) {
		t.Fatalf("storage error should unwrap to its cause")
	}

	cerr := &CollaboratorError{Collaborator: "gmail", Err: ErrMissingCredentials}
	if !IsCollaborator(cerr) || !errors.Is(cerr, ErrMissingCredentials) {
		t.Fatalf("collaborator error should unwrap to ErrMissingCredentials")
	}

	verr := NewValidationError("amount", "not a number", "Example: /set_budget Food 300")
	if verr.Error() != "amount: not a number" {
		t.Fatalf("unexpected message %q", verr.Error())
	}
}
