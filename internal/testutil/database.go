// Package testutil provides shared test helpers for databases seeded with
// accounts and transactions.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/the-books-must-balance/internal/storage"
	"github.com/Veraticus/the-books-must-balance/internal/testutil/ledger"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage  *storage.SQLiteStorage
	t        *testing.T
	Accounts ledger.Accounts
}

// SetupTestDB creates a new, empty, migrated in-memory test database.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{})
}

// SetupTestDBWithBuilder creates a test database seeded by a ledger builder.
//
// Example:
//
//	db := testutil.SetupTestDBWithBuilder(t, func(b ledger.Builder) ledger.Builder {
//		return b.WithLegacyAccount("Checking", "1200", ledger.Income("1500", 1))
//	})
func SetupTestDBWithBuilder(t *testing.T, configure func(ledger.Builder) ledger.Builder) *TestDB {
	t.Helper()

	builder := ledger.NewBuilder(t)
	if configure != nil {
		builder = configure(builder)
	}
	return SetupTestDBWithOptions(t, TestDBOptions{Builder: builder})
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	CustomSetup    func(context.Context, *storage.SQLiteStorage) error
	Builder        ledger.Builder
	SkipMigrations bool
}

// SetupTestDBWithOptions creates a test database with custom options.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	ctx := context.Background()

	if !opts.SkipMigrations {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
	}

	var accounts ledger.Accounts
	if opts.Builder != nil {
		accounts, err = opts.Builder.Build(ctx, store)
		if err != nil {
			t.Fatalf("failed to seed ledger: %v", err)
		}
	}

	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	return &TestDB{
		Storage:  store,
		Accounts: accounts,
		t:        t,
	}
}

// MustAccountID returns the id of the seeded account with the given name.
func (db *TestDB) MustAccountID(name ledger.AccountName) string {
	db.t.Helper()
	return db.Accounts.MustFind(db.t, name).ID
}
