package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	Checking   AccountType = "checking"
	Savings    AccountType = "savings"
	Credit     AccountType = "credit"
	Investment AccountType = "investment"
	Cash       AccountType = "cash"
)

const (
	maxNameLength        = 100
	maxDescriptionLength = 200
	dateLayout           = "2006-01-02"
)

type (
	TransactionType string
	AccountType     string

	// Date is a calendar day. The time-of-day part is always midnight UTC.
	Date struct {
		time.Time
	}

	User struct {
		ID        int64
		Username  string
		Email     string
		FirstName string
		LastName  string
	}

	Account struct {
		ID             int64
		UserID         int64
		Name           string
		Type           AccountType
		OpeningBalance decimal.Decimal
		Balance        decimal.Decimal
	}

	Category struct {
		ID   int64
		Name string
	}

	Transaction struct {
		ID          int64
		UserID      int64
		AccountID   int64
		Type        TransactionType
		Amount      decimal.Decimal // always positive; sign comes from Type
		Description string
		Date        Date
		CategoryID  *int64 // set for expenses only
		BudgetID    *int64 // budget attributed at creation time, if any
	}

	Budget struct {
		ID         int64
		UserID     int64
		CategoryID int64
		Amount     decimal.Decimal
		Spent      decimal.Decimal
		StartDate  Date
		EndDate    Date
	}

	Goal struct {
		ID           int64
		UserID       int64
		Name         string
		TargetAmount decimal.Decimal
	}
)

// TransactionTypes lists every valid transaction type.
func TransactionTypes() []TransactionType {
	return []TransactionType{Income, Expense}
}

// ParseTransactionType converts user input into a TransactionType.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", ErrInvalidTransactionType
	}
	return t, nil
}

func (t TransactionType) IsValid() bool {
	switch t {
	case Income, Expense:
		return true
	default:
		return false
	}
}

func (t TransactionType) String() string {
	return string(t)
}

// AccountTypes lists every valid account type.
func AccountTypes() []AccountType {
	return []AccountType{Checking, Savings, Credit, Investment, Cash}
}

// ParseAccountType converts user input into an AccountType.
func ParseAccountType(s string) (AccountType, error) {
	t := AccountType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", ErrInvalidAccountType
	}
	return t, nil
}

func (t AccountType) IsValid() bool {
	switch t {
	case Checking, Savings, Credit, Investment, Cash:
		return true
	default:
		return false
	}
}

func (t AccountType) String() string {
	return string(t)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// Normalized drops any time of day, keeping the calendar day in d's
// location. The zero Date stays zero.
func (d Date) Normalized() Date {
	if d.IsZero() {
		return d
	}
	return DateOf(d.Time)
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, &ValidationError{Field: "date", Reason: fmt.Sprintf("invalid date %q, want YYYY-MM-DD", s)}
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(dateLayout)
}

// AddDays returns the date n days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.AddDate(0, 0, n)}
}

// Between reports whether start <= d <= end.
func (d Date) Between(start, end Date) bool {
	return !d.Before(start.Time) && !d.After(end.Time)
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return &ValidationError{Field: "username", Reason: "cannot be empty"}
	}
	if len(u.Username) > maxNameLength {
		return &ValidationError{Field: "username", Reason: "too long (max 100 characters)"}
	}
	if !strings.Contains(u.Email, "@") {
		return &ValidationError{Field: "email", Reason: "must be an email address"}
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if len(a.Name) > maxNameLength {
		return &ValidationError{Field: "name", Reason: "too long (max 100 characters)"}
	}
	if !a.Type.IsValid() {
		return ErrInvalidAccountType
	}
	if !hasCentPrecision(a.OpeningBalance) {
		return &ValidationError{Field: "opening_balance", Reason: "more than 2 decimal places"}
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > maxNameLength {
		return &ValidationError{Field: "name", Reason: "too long (max 100 characters)"}
	}
	return nil
}

// Validate checks the fields supplied by the caller. Ownership and the
// existence of referenced rows are checked by the service.
func (t Transaction) Validate() error {
	if !t.Type.IsValid() {
		return ErrInvalidTransactionType
	}
	if err := ValidateAmount(t.Amount); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(t.Description) > maxDescriptionLength {
		return &ValidationError{Field: "description", Reason: "too long (max 200 characters)"}
	}
	switch t.Type {
	case Expense:
		if t.CategoryID == nil {
			return ErrMissingCategory
		}
	case Income:
		if t.CategoryID != nil {
			return ErrUnexpectedCategory
		}
	}
	return nil
}

// Signed returns the amount with the sign implied by the transaction type.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}

func (b Budget) Validate() error {
	if b.CategoryID <= 0 {
		return ErrMissingCategory
	}
	if err := ValidateAmount(b.Amount); err != nil {
		return err
	}
	if err := b.StartDate.Validate(); err != nil {
		return &ValidationError{Field: "start_date", Reason: err.Error()}
	}
	if err := b.EndDate.Validate(); err != nil {
		return &ValidationError{Field: "end_date", Reason: err.Error()}
	}
	if b.StartDate.After(b.EndDate.Time) {
		return ErrInvertedWindow
	}
	return nil
}

// Contains reports whether d falls inside the budget window, bounds included.
func (b Budget) Contains(d Date) bool {
	return d.Between(b.StartDate, b.EndDate)
}

// Overlaps reports whether two budget windows share at least one day.
func (b Budget) Overlaps(other Budget) bool {
	return !b.StartDate.After(other.EndDate.Time) && !other.StartDate.After(b.EndDate.Time)
}

// Remaining is the unspent part of the cap, floored at zero. Overspend is
// visible only by comparing Amount and Spent.
func (b Budget) Remaining() decimal.Decimal {
	r := b.Amount.Sub(b.Spent)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if len(g.Name) > maxNameLength {
		return &ValidationError{Field: "name", Reason: "too long (max 100 characters)"}
	}
	return ValidateAmount(g.TargetAmount)
}
