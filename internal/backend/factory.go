package backend

import (
	"context"
	"fmt"

	"wealthwatch/internal/log"
	"wealthwatch/internal/storage/memory"
	"wealthwatch/internal/storage/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Default()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// Create implements Factory.Create
func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLite:
		return f.createSQLite(ctx, config)
	case Memory:
		return f.createMemory(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLite(ctx context.Context, config Config) (*Result, error) {
	repo, err := sqlite.New(config.SQLiteDBPath, sqlite.Options{BusyTimeout: config.BusyTimeout})
	if err != nil {
		return nil, fmt.Errorf("initialize SQLite repository: %w", err)
	}

	version, dirty, err := sqlite.SchemaVersion(sqlite.DSN(config.SQLiteDBPath, config.BusyTimeout, false))
	if err != nil {
		f.logger.WarnContext(ctx, "Could not read schema version", log.FieldError, err)
	}
	f.logger.InfoContext(ctx, "Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"busy_timeout", config.BusyTimeout,
		"schema_version", version,
		"schema_dirty", dirty)

	return &Result{Store: repo, Type: SQLite, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createMemory(ctx context.Context, config Config) (*Result, error) {
	store := memory.New()
	if config.MemorySeedFile != "" {
		var err error
		if store, err = memory.NewFromFile(config.MemorySeedFile); err != nil {
			return nil, fmt.Errorf("load memory seed file: %w", err)
		}
	}
	store.WithBusyTimeout(config.BusyTimeout)

	f.logger.InfoContext(ctx, "Initialized memory backend", "seed_file", config.MemorySeedFile)

	return &Result{Store: store, Type: Memory, Cleanup: store.Close}, nil
}
