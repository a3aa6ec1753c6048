package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Veraticus/the-books-must-balance/internal/model"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

// transactionTypeSigns seeds the transaction_types taxonomy.
var transactionTypeSigns = []struct {
	Type model.TransactionType
	Sign int
}{
	{model.TypeIncome, 1},
	{model.TypeExpense, -1},
	{model.TypeTransfer, -1},
	{model.TypeReimbursement, 1},
	{model.TypeAccountTransferIn, 0},
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS currencies (
					code TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					symbol TEXT NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS transaction_types (
					name TEXT PRIMARY KEY,
					sign INTEGER NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS accounts (
					id TEXT PRIMARY KEY,
					owner_id TEXT NOT NULL DEFAULT '',
					name TEXT NOT NULL,
					type TEXT NOT NULL,
					currency TEXT NOT NULL REFERENCES currencies(code),
					balance TEXT NOT NULL DEFAULT '0',
					external_id TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
					hash TEXT UNIQUE NOT NULL,
					date DATE NOT NULL,
					amount TEXT NOT NULL,
					type TEXT NOT NULL REFERENCES transaction_types(name),
					description TEXT NOT NULL DEFAULT '',
					external_id TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}

			for _, c := range model.DefaultCurrencies {
				if _, err := tx.Exec(`INSERT OR IGNORE INTO currencies (code, name, symbol) VALUES (?, ?, ?)`,
					c.Code, c.Name, c.Symbol); err != nil {
					return fmt.Errorf("failed to seed currency %s: %w", c.Code, err)
				}
			}

			for _, t := range transactionTypeSigns {
				if _, err := tx.Exec(`INSERT OR IGNORE INTO transaction_types (name, sign) VALUES (?, ?)`,
					string(t.Type), t.Sign); err != nil {
					return fmt.Errorf("failed to seed transaction type %s: %w", t.Type, err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add initial_balance to accounts",
		Up: func(tx *sql.Tx) error {
			// Existing rows get '0' and are picked up by reconcile all.
			_, err := tx.Exec(`ALTER TABLE accounts ADD COLUMN initial_balance TEXT NOT NULL DEFAULT '0'`)
			return err
		},
	},
	{
		Version:     3,
		Description: "Add lookup indexes for owners, imports and account history",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE INDEX IF NOT EXISTS idx_accounts_owner ON accounts(owner_id)`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_external_id ON accounts(external_id) WHERE external_id <> ''`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_account_date ON transactions(account_id, date)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	if err := s.migrateTo(ctx, ExpectedSchemaVersion); err != nil {
		return err
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion returns the schema version recorded in the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// PendingMigrations lists the migrations Migrate would apply.
func (s *SQLiteStorage) PendingMigrations(ctx context.Context) ([]Migration, error) {
	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, migration := range migrations {
		if migration.Version > current {
			pending = append(pending, migration)
		}
	}
	return pending, nil
}

func (s *SQLiteStorage) migrateTo(ctx context.Context, target int) error {
	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion || migration.Version > target {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	return nil
}
