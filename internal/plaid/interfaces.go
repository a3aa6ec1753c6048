package plaid

import (
	"context"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/shopspring/decimal"
)

// Account is a linked institution account with its current balance.
type Account struct {
	CurrentBalance decimal.Decimal
	ID             string
	Name           string
	Mask           string
	Currency       string
	Type           model.AccountType
}

// ExternalID is the key imported accounts are matched on.
func (a *Account) ExternalID() string {
	return "plaid:" + a.ID
}

// Fetcher defines the contract for pulling linked accounts and their
// transactions. Transactions returned by GetTransactions carry the Plaid
// account id in AccountID until the importer maps them onto ledger accounts.
type Fetcher interface {
	GetAccounts(ctx context.Context) ([]Account, error)
	GetTransactions(ctx context.Context, startDate, endDate time.Time) ([]model.Transaction, error)
}
