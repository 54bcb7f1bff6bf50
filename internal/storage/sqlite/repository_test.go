package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wealthwatch/internal/core"
	"wealthwatch/internal/storage"
	"wealthwatch/internal/storage/storagetest"
)

func newTestRepository(t *testing.T, busyTimeout time.Duration) storage.Store {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "ledger.db"), Options{BusyTimeout: busyTimeout})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRepositoryContract(t *testing.T) {
	storagetest.Run(t, newTestRepository)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	repo, err := New(path, Options{})
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = New(path, Options{})
	require.NoError(t, err)
	defer repo.Close()

	version, dirty, err := SchemaVersion(DSN(path, DefaultBusyTimeout, false))
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)
}

func TestPathWithURIReservedCharacters(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	for _, name := range []string{"a#1", "a#2", "b?x", "c%41"} {
		path := filepath.Join(dir, name, "ledger.db")
		repo, err := New(path, Options{})
		require.NoError(t, err, name)

		// each path is its own database
		err = repo.Update(ctx, func(ctx context.Context, w storage.Writer) error {
			_, err := w.CreateUser(ctx, core.User{Username: "ada", Email: "ada@example.com"})
			return err
		})
		require.NoError(t, err, name)
		require.NoError(t, repo.Close())

		_, err = os.Stat(path)
		assert.NoError(t, err, "database file created at %s", path)
	}
}

func TestSchemaRejectsIncomeWithCategory(t *testing.T) {
	repo := newTestRepository(t, time.Second).(*Repository)
	ctx := context.Background()

	err := repo.Update(ctx, func(ctx context.Context, w storage.Writer) error {
		u, err := w.CreateUser(ctx, core.User{Username: "bob", Email: "bob@example.com"})
		if err != nil {
			return err
		}
		a, err := w.CreateAccount(ctx, core.Account{UserID: u.ID, Name: "Cash", Type: core.Cash})
		if err != nil {
			return err
		}
		cat := int64(1)
		_, err = w.CreateTransaction(ctx, core.Transaction{
			UserID: u.ID, AccountID: a.ID, Type: core.Income,
			Amount: core.MustAmount("1.00"), Date: core.NewDate(2025, 1, 1), CategoryID: &cat,
		})
		return err
	})
	assert.ErrorIs(t, err, core.ErrIntegrity)
}

func TestMapError(t *testing.T) {
	assert.Nil(t, mapError("op", nil))

	plain := errors.New("disk on fire")
	err := mapError("op", plain)
	assert.ErrorIs(t, err, plain)
	assert.Equal(t, "internal_error", core.ErrorType(err))
}

func TestDSN(t *testing.T) {
	dsn := DSN("/tmp/ledger.db", 2*time.Second, true)
	assert.Contains(t, dsn, "file:/tmp/ledger.db?")
	assert.Contains(t, dsn, "busy_timeout%282000%29")
	assert.Contains(t, dsn, "foreign_keys%281%29")
	assert.Contains(t, dsn, "_txlock=immediate")
	assert.NotContains(t, DSN("/tmp/ledger.db", time.Second, false), "_txlock")
}
