// Package service defines the interfaces shared between application layers.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/shopspring/decimal"
)

// AccountFilter narrows account listings. Zero values match everything.
type AccountFilter struct {
	OwnerID string
	Type    model.AccountType
}

// TransactionFilter narrows transaction listings for a single account.
type TransactionFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
}

// ImportResult reports what an import did to storage.
type ImportResult struct {
	AccountID            string
	TransactionsSeen     int
	TransactionsInserted int
	AccountCreated       bool
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Account operations
	CreateAccount(ctx context.Context, account *model.Account) error
	FindAccount(ctx context.Context, id string) (*model.Account, error)
	FindAccountByExternalID(ctx context.Context, externalID string) (*model.Account, error)
	ListAccounts(ctx context.Context, filter AccountFilter) ([]model.Account, error)
	UpdateInitialBalance(ctx context.Context, id string, initialBalance decimal.Decimal) error
	UpsertImportedAccount(ctx context.Context, account *model.Account) (*model.Account, bool, error)

	// Transaction operations
	AddTransactions(ctx context.Context, transactions []model.Transaction) error
	SaveImportedTransactions(ctx context.Context, transactions []model.Transaction) (int, error)
	ListTransactions(ctx context.Context, accountID string) ([]model.Transaction, error)
	ListTransactionsFiltered(ctx context.Context, accountID string, filter TransactionFilter) ([]model.Transaction, error)

	// Currency operations
	GetCurrencies(ctx context.Context) ([]model.Currency, error)

	// Database management
	Migrate(ctx context.Context) error
	SchemaVersion(ctx context.Context) (int, error)
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
