package core

import (
	"errors"
	"fmt"
)

// Error kinds. Every typed error below matches exactly one of them with errors.Is.
var (
	ErrValidation  = errors.New("validation error")
	ErrPermission  = errors.New("permission denied")
	ErrNotFound    = errors.New("not found")
	ErrConcurrency = errors.New("concurrent update conflict")
	ErrIntegrity   = errors.New("integrity violation")
)

var (
	ErrInvalidAmount          = &ValidationError{Field: "amount", Reason: "must be a positive amount with at most 2 decimal places"}
	ErrInvalidTransactionType = &ValidationError{Field: "type", Reason: "must be income or expense"}
	ErrInvalidAccountType     = &ValidationError{Field: "account_type", Reason: "must be one of checking, savings, credit, investment, cash"}
	ErrMissingCategory        = &ValidationError{Field: "category_id", Reason: "required for expenses"}
	ErrUnexpectedCategory     = &ValidationError{Field: "category_id", Reason: "not allowed for income"}
	ErrInvertedWindow         = &ValidationError{Field: "start_date", Reason: "must not be after end_date"}
	ErrOverlappingBudget      = &ValidationError{Field: "start_date", Reason: "overlaps another budget for the same category"}
	ErrEmptyName              = &ValidationError{Field: "name", Reason: "cannot be empty"}
	ErrZeroDate               = &ValidationError{Field: "date", Reason: "cannot be zero"}
)

// ValidationError reports malformed input. It is returned before any mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// PermissionError reports an operation on an entity the user does not own.
type PermissionError struct {
	Entity string
	ID     int64
	UserID int64
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %d may not access %s %d", e.UserID, e.Entity, e.ID)
}

func (e *PermissionError) Is(target error) bool {
	return target == ErrPermission
}

// NotFoundError reports a missing referenced entity.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	if e.ID == 0 {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConcurrencyError reports an atomic unit that lost the race for the write
// lock. The whole operation may be retried by the caller.
type ConcurrencyError struct {
	Op  string
	Err error
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("%s: concurrent update conflict: %v", e.Op, e.Err)
}

func (e *ConcurrencyError) Is(target error) bool {
	return target == ErrConcurrency
}

func (e *ConcurrencyError) Unwrap() error {
	return e.Err
}

// IntegrityError wraps a storage constraint violation such as a duplicate key.
type IntegrityError struct {
	Op  string
	Err error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: integrity violation: %v", e.Op, e.Err)
}

func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// ErrorType returns the log category for err.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrPermission):
		return "auth_error"
	case errors.Is(err, ErrNotFound):
		return "not_found_error"
	case errors.Is(err, ErrConcurrency):
		return "conflict_error"
	case errors.Is(err, ErrIntegrity):
		return "database_error"
	default:
		return "internal_error"
	}
}
