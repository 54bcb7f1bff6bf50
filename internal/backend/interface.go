// Package backend builds the ledger store selected by configuration.
package backend

import (
	"context"
	"time"

	"wealthwatch/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result contains the store and the function that releases it.
type Result struct {
	Store   storage.Store
	Type    Type
	Cleanup CleanupFunc
}

// Factory creates stores based on configuration
type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type Type

	// SQLite specific
	SQLiteDBPath string
	BusyTimeout  time.Duration

	// Memory specific; empty seeds the default categories
	MemorySeedFile string
}

// Type represents the type of backend
type Type string

const (
	SQLite Type = "sqlite"
	Memory Type = "memory"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is valid
func (t Type) IsValid() bool {
	switch t {
	case SQLite, Memory:
		return true
	default:
		return false
	}
}
