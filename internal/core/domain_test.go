package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr(v int64) *int64 {
	return &v
}

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
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.String() != "2024-02-29" || d.Month() != 2 {
		t.Fatalf("unexpected date %v", d)
	}
	if _, err := ParseDate("29/02/2024"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDateBetween(t *testing.T) {
	start, end := NewDate(2025, 3, 1), NewDate(2025, 3, 31)
	if !start.Between(start, end) || !end.Between(start, end) {
		t.Fatal("bounds must be inclusive")
	}
	if NewDate(2025, 4, 1).Between(start, end) || NewDate(2025, 2, 28).Between(start, end) {
		t.Fatal("dates outside the window matched")
	}
}

func TestParseTransactionType(t *testing.T) {
	for in, want := range map[string]TransactionType{"income": Income, " Expense ": Expense} {
		got, err := ParseTransactionType(in)
		if err != nil || got != want {
			t.Fatalf("%q: got %q err=%v", in, got, err)
		}
	}
	if _, err := ParseTransactionType("transfer"); !errors.Is(err, ErrInvalidTransactionType) {
		t.Fatalf("expected ErrInvalidTransactionType, got %v", err)
	}
}

func TestParseAccountType(t *testing.T) {
	for _, at := range AccountTypes() {
		if got, err := ParseAccountType(string(at)); err != nil || got != at {
			t.Fatalf("%q: got %q err=%v", at, got, err)
		}
	}
	if _, err := ParseAccountType("brokerage"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Type:       Expense,
		Amount:     dec("10.50"),
		Date:       NewDate(2025, 1, 1),
		CategoryID: ptr(1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	income := Transaction{Type: Income, Amount: dec("1"), Date: NewDate(2025, 1, 1)}
	if err := income.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []struct {
		tx   Transaction
		want error
	}{
		{Transaction{Type: "transfer", Amount: dec("1"), Date: NewDate(2025, 1, 1)}, ErrInvalidTransactionType},
		{Transaction{Type: Expense, Amount: dec("0"), Date: NewDate(2025, 1, 1), CategoryID: ptr(1)}, ErrInvalidAmount},
		{Transaction{Type: Expense, Amount: dec("-5"), Date: NewDate(2025, 1, 1), CategoryID: ptr(1)}, ErrInvalidAmount},
		{Transaction{Type: Expense, Amount: dec("1.001"), Date: NewDate(2025, 1, 1), CategoryID: ptr(1)}, ErrInvalidAmount},
		{Transaction{Type: Expense, Amount: dec("1"), CategoryID: ptr(1)}, ErrZeroDate},
		{Transaction{Type: Expense, Amount: dec("1"), Date: NewDate(2025, 1, 1)}, ErrMissingCategory},
		{Transaction{Type: Income, Amount: dec("1"), Date: NewDate(2025, 1, 1), CategoryID: ptr(1)}, ErrUnexpectedCategory},
	}
	for i, tc := range bads {
		err := tc.tx.Validate()
		if !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d expected a validation error, got %v", i, err)
		}
	}
}

func TestTransactionSigned(t *testing.T) {
	if got := (Transaction{Type: Income, Amount: dec("5")}).Signed(); !got.Equal(dec("5")) {
		t.Fatalf("income signed = %s", got)
	}
	if got := (Transaction{Type: Expense, Amount: dec("5")}).Signed(); !got.Equal(dec("-5")) {
		t.Fatalf("expense signed = %s", got)
	}
}

func TestBudgetValidate(t *testing.T) {
	good := Budget{CategoryID: 1, Amount: dec("150"), StartDate: NewDate(2025, 1, 1), EndDate: NewDate(2025, 1, 1)}
	if err := good.Validate(); err != nil {
		t.Fatalf("single-day window should be valid, got %v", err)
	}

	inverted := good
	inverted.StartDate = NewDate(2025, 1, 2)
	if err := inverted.Validate(); !errors.Is(err, ErrInvertedWindow) {
		t.Fatalf("expected ErrInvertedWindow, got %v", err)
	}

	noCategory := good
	noCategory.CategoryID = 0
	if err := noCategory.Validate(); !errors.Is(err, ErrMissingCategory) {
		t.Fatalf("expected ErrMissingCategory, got %v", err)
	}
}

func TestBudgetOverlaps(t *testing.T) {
	jan := Budget{StartDate: NewDate(2025, 1, 1), EndDate: NewDate(2025, 1, 31)}
	cases := []struct {
		other Budget
		want  bool
	}{
		{Budget{StartDate: NewDate(2025, 1, 31), EndDate: NewDate(2025, 2, 28)}, true},
		{Budget{StartDate: NewDate(2024, 12, 1), EndDate: NewDate(2025, 1, 1)}, true},
		{Budget{StartDate: NewDate(2025, 1, 10), EndDate: NewDate(2025, 1, 12)}, true},
		{Budget{StartDate: NewDate(2025, 2, 1), EndDate: NewDate(2025, 2, 28)}, false},
		{Budget{StartDate: NewDate(2024, 12, 1), EndDate: NewDate(2024, 12, 31)}, false},
	}
	for i, tc := range cases {
		if got := jan.Overlaps(tc.other); got != tc.want {
			t.Fatalf("case %d: Overlaps = %v, want %v", i, got, tc.want)
		}
		if got := tc.other.Overlaps(jan); got != tc.want {
			t.Fatalf("case %d: Overlaps is not symmetric", i)
		}
	}
}

func TestBudgetRemaining(t *testing.T) {
	cases := []struct {
		amount, spent, want string
	}{
		{"150.00", "0", "150.00"},
		{"150.00", "100.00", "50.00"},
		{"150.00", "150.00", "0"},
		{"150.00", "200.00", "0"},
	}
	for _, tc := range cases {
		b := Budget{Amount: dec(tc.amount), Spent: dec(tc.spent)}
		got := b.Remaining()
		if !got.Equal(dec(tc.want)) {
			t.Fatalf("Remaining(%s, %s) = %s, want %s", tc.amount, tc.spent, got, tc.want)
		}
		if got.IsNegative() {
			t.Fatalf("Remaining must never be negative, got %s", got)
		}
	}
}

func TestAccountValidate(t *testing.T) {
	good := Account{Name: "Checking", Type: Checking, OpeningBalance: dec("-20.10")}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bad := good
	bad.Type = "piggy"
	if err := bad.Validate(); !errors.Is(err, ErrInvalidAccountType) {
		t.Fatalf("expected ErrInvalidAccountType, got %v", err)
	}
	bad = good
	bad.Name = "  "
	if err := bad.Validate(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	bad = good
	bad.OpeningBalance = dec("1.005")
	if err := bad.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestErrorKinds(t *testing.T) {
	cases := []struct {
		err  error
		kind error
		typ  string
	}{
		{&ValidationError{Field: "x", Reason: "y"}, ErrValidation, "validation_error"},
		{&PermissionError{Entity: "account", ID: 1, UserID: 2}, ErrPermission, "auth_error"},
		{&NotFoundError{Entity: "budget", ID: 3}, ErrNotFound, "not_found_error"},
		{&ConcurrencyError{Op: "create", Err: errors.New("busy")}, ErrConcurrency, "conflict_error"},
		{&IntegrityError{Op: "create", Err: errors.New("unique")}, ErrIntegrity, "database_error"},
	}
	for _, tc := range cases {
		if !errors.Is(tc.err, tc.kind) {
			t.Fatalf("%v does not match %v", tc.err, tc.kind)
		}
		if got := ErrorType(tc.err); got != tc.typ {
			t.Fatalf("ErrorType(%v) = %q, want %q", tc.err, got, tc.typ)
		}
	}
	if ErrorType(errors.New("boom")) != "internal_error" {
		t.Fatal("unknown errors must map to internal_error")
	}
}

func TestDateNormalized(t *testing.T) {
	afternoon := Date{Time: time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)}
	if got := afternoon.Normalized(); !got.Equal(NewDate(2024, 3, 15).Time) {
		t.Fatalf("expected 2024-03-15 00:00 UTC, got %v", got.Time)
	}

	zone := time.FixedZone("UTC+9", 9*3600)
	lateEvening := Date{Time: time.Date(2024, 3, 15, 23, 0, 0, 0, zone)}
	if got := lateEvening.Normalized(); got.String() != "2024-03-15" || got.Location() != time.UTC {
		t.Fatalf("expected calendar day kept in UTC, got %v", got.Time)
	}

	if !(Date{}).Normalized().IsZero() {
		t.Fatal("zero date should stay zero")
	}
}
