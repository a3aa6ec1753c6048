// Package ledger seeds test databases with accounts and their transaction
// histories through a fluent builder.
//
// Example usage:
//
//	db := testutil.SetupTestDBWithBuilder(t, func(b ledger.Builder) ledger.Builder {
//		return b.WithFixture(ledger.FixtureMixed)
//	})
//	checking := db.Accounts.MustFind(t, ledger.AccountLegacyChecking)
package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/shopspring/decimal"
)

// Seeder is the slice of storage the builder writes through.
type Seeder interface {
	CreateAccount(ctx context.Context, account *model.Account) error
	SaveImportedTransactions(ctx context.Context, transactions []model.Transaction) (int, error)
}

// Builder provides a fluent interface for constructing test ledgers.
type Builder interface {
	// WithAccount adds an account with explicit balances.
	WithAccount(spec AccountSpec) Builder

	// WithLegacyAccount adds an account whose opening balance was never
	// recorded: InitialBalance is zero while Balance is not.
	WithLegacyAccount(name AccountName, balance string, txns ...TxnSpec) Builder

	// WithFixture adds every account from a predefined fixture.
	WithFixture(fixture Fixture) Builder

	// Build creates the accounts and transactions in the provided storage.
	// Transactions are stored without moving the account balances, so the
	// balances are exactly what the specs say.
	Build(ctx context.Context, seeder Seeder) (Accounts, error)
}

// AccountName is a strongly-typed test account name.
type AccountName string

// Account names used across tests.
const (
	AccountLegacyChecking    AccountName = "Legacy Checking"
	AccountReconciledSavings AccountName = "Reconciled Savings"
	AccountEmptyCash         AccountName = "Empty Cash"
	AccountLegacyCard        AccountName = "Legacy Card"
)

// AccountSpec describes one account to seed.
type AccountSpec struct {
	Name         AccountName
	OwnerID      string
	Type         model.AccountType
	Currency     string
	Balance      string
	Initial      string
	Transactions []TxnSpec
}

// TxnSpec describes one transaction to seed.
type TxnSpec struct {
	Type   model.TransactionType
	Amount string
	Day    int
}

// Income builds an INCOME transaction on the given day of January 2024.
func Income(amount string, day int) TxnSpec {
	return TxnSpec{Type: model.TypeIncome, Amount: amount, Day: day}
}

// Expense builds an EXPENSE transaction on the given day of January 2024.
func Expense(amount string, day int) TxnSpec {
	return TxnSpec{Type: model.TypeExpense, Amount: amount, Day: day}
}

// Accounts represents a collection of created test accounts.
type Accounts []model.Account

// Find returns the account with the given name, or nil if not found.
func (a Accounts) Find(name AccountName) *model.Account {
	for i := range a {
		if a[i].Name == string(name) {
			return &a[i]
		}
	}
	return nil
}

// MustFind returns the account with the given name, or fails the test.
func (a Accounts) MustFind(t *testing.T, name AccountName) model.Account {
	t.Helper()
	account := a.Find(name)
	if account == nil {
		t.Fatalf("account %q not found in test data", name)
	}
	return *account
}

type ledgerBuilder struct {
	t     *testing.T
	specs []AccountSpec
}

// NewBuilder creates a new ledger builder for the given test.
func NewBuilder(t *testing.T) Builder {
	t.Helper()
	return &ledgerBuilder{t: t}
}

func (b *ledgerBuilder) WithAccount(spec AccountSpec) Builder {
	b.specs = append(b.specs, spec)
	return b
}

func (b *ledgerBuilder) WithLegacyAccount(name AccountName, balance string, txns ...TxnSpec) Builder {
	return b.WithAccount(AccountSpec{
		Name:         name,
		Balance:      balance,
		Initial:      "0",
		Transactions: txns,
	})
}

func (b *ledgerBuilder) WithFixture(fixture Fixture) Builder {
	for _, spec := range fixture.Accounts() {
		b.WithAccount(spec)
	}
	return b
}

func (b *ledgerBuilder) Build(ctx context.Context, seeder Seeder) (Accounts, error) {
	b.t.Helper()

	accounts := make(Accounts, 0, len(b.specs))
	for _, spec := range b.specs {
		account, err := b.buildAccount(ctx, seeder, spec)
		if err != nil {
			return nil, fmt.Errorf("failed to seed account %q: %w", spec.Name, err)
		}
		accounts = append(accounts, *account)
	}
	return accounts, nil
}

func (b *ledgerBuilder) buildAccount(ctx context.Context, seeder Seeder, spec AccountSpec) (*model.Account, error) {
	balance, err := parseOrZero(spec.Balance)
	if err != nil {
		return nil, err
	}
	initial, err := parseOrZero(spec.Initial)
	if err != nil {
		return nil, err
	}

	account := &model.Account{
		Name:           string(spec.Name),
		OwnerID:        spec.OwnerID,
		Type:           spec.Type,
		Currency:       spec.Currency,
		Balance:        balance,
		InitialBalance: initial,
	}
	if account.Type == "" {
		account.Type = model.AccountTypeChecking
	}
	if account.Currency == "" {
		account.Currency = "USD"
	}
	if err := seeder.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	if len(spec.Transactions) == 0 {
		return account, nil
	}

	txns := make([]model.Transaction, 0, len(spec.Transactions))
	for i, ts := range spec.Transactions {
		amount, err := decimal.NewFromString(ts.Amount)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		txns = append(txns, model.Transaction{
			AccountID:   account.ID,
			Date:        time.Date(2024, time.January, ts.Day, 0, 0, 0, 0, time.UTC),
			Amount:      amount,
			Type:        ts.Type,
			Description: fmt.Sprintf("%s #%d", spec.Name, i+1),
		})
	}
	if _, err := seeder.SaveImportedTransactions(ctx, txns); err != nil {
		return nil, err
	}
	return account, nil
}

func parseOrZero(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
