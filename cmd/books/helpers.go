package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/the-books-must-balance/internal/config"
	"github.com/Veraticus/the-books-must-balance/internal/storage"
	"github.com/shopspring/decimal"
)

// initStorage opens the configured database and brings its schema up to date.
// Callers own the returned storage and must Close it.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := config.DatabasePath()

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// autoSnapshot copies the database before a write. Failing to snapshot aborts
// the write.
func autoSnapshot(ctx context.Context, store *storage.SQLiteStorage, operation string) (*storage.Snapshot, error) {
	manager, err := store.Snapshots(slog.Default())
	if err != nil {
		return nil, err
	}
	return manager.Auto(ctx, operation)
}

func formatMoney(d decimal.Decimal, currency string) string {
	if currency == "" {
		return d.StringFixed(2)
	}
	return d.StringFixed(2) + " " + strings.ToUpper(currency)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
