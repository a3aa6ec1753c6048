package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/shopspring/decimal"
)

// TestStorageValidation tests that validation is applied at the storage layer.
func TestStorageValidation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	t.Run("nil context validation", func(t *testing.T) {
		txns := []model.Transaction{{AccountID: "acc1", Date: time.Now(), Amount: decimal.NewFromInt(1), Type: model.TypeIncome}}

		//nolint:staticcheck // nil context is the case under test
		if err := store.AddTransactions(nil, txns); !errors.Is(err, ErrNilContext) {
			t.Errorf("AddTransactions should fail with nil context, got: %v", err)
		}
		//nolint:staticcheck // nil context is the case under test
		if _, err := store.FindAccount(nil, "id"); !errors.Is(err, ErrNilContext) {
			t.Errorf("FindAccount should fail with nil context, got: %v", err)
		}
		//nolint:staticcheck // nil context is the case under test
		if _, err := store.ListAccounts(nil, service.AccountFilter{}); !errors.Is(err, ErrNilContext) {
			t.Errorf("ListAccounts should fail with nil context, got: %v", err)
		}
		//nolint:staticcheck // nil context is the case under test
		if err := store.UpdateInitialBalance(nil, "id", decimal.Zero); !errors.Is(err, ErrNilContext) {
			t.Errorf("UpdateInitialBalance should fail with nil context, got: %v", err)
		}
		//nolint:staticcheck // nil context is the case under test
		if err := store.Migrate(nil); !errors.Is(err, ErrNilContext) {
			t.Errorf("Migrate should fail with nil context, got: %v", err)
		}
	})

	t.Run("empty string validation", func(t *testing.T) {
		ctx := context.Background()

		if _, err := store.FindAccount(ctx, ""); err == nil || !strings.Contains(err.Error(), "string parameter cannot be empty") {
			t.Errorf("FindAccount should fail with empty ID, got: %v", err)
		}
		if err := store.UpdateInitialBalance(ctx, "   ", decimal.Zero); !errors.Is(err, common.ErrInvalidArgument) {
			t.Errorf("UpdateInitialBalance should fail with whitespace ID, got: %v", err)
		}
		if _, err := store.ListTransactions(ctx, ""); !errors.Is(err, ErrEmptyString) {
			t.Errorf("ListTransactions should fail with empty account ID, got: %v", err)
		}
		if _, err := store.FindAccountByExternalID(ctx, ""); !errors.Is(err, ErrEmptyString) {
			t.Errorf("FindAccountByExternalID should fail with empty ID, got: %v", err)
		}
	})

	t.Run("nil parameter validation", func(t *testing.T) {
		ctx := context.Background()

		if err := store.CreateAccount(ctx, nil); !errors.Is(err, ErrNilParameter) {
			t.Errorf("CreateAccount should fail with nil account, got: %v", err)
		}
		if _, _, err := store.UpsertImportedAccount(ctx, nil); !errors.Is(err, ErrNilParameter) {
			t.Errorf("UpsertImportedAccount should fail with nil account, got: %v", err)
		}
		if err := store.AddTransactions(ctx, nil); !errors.Is(err, ErrNilParameter) {
			t.Errorf("AddTransactions should fail with nil slice, got: %v", err)
		}
		if err := store.AddTransactions(ctx, []model.Transaction{}); !errors.Is(err, ErrEmptySlice) {
			t.Errorf("AddTransactions should fail with empty slice, got: %v", err)
		}
	})

	t.Run("imported account without external ID", func(t *testing.T) {
		account := &model.Account{Name: "Orphan", Type: model.AccountTypeChecking, Currency: "USD"}
		if _, _, err := store.UpsertImportedAccount(context.Background(), account); !errors.Is(err, ErrEmptyString) {
			t.Errorf("UpsertImportedAccount should require an external ID, got: %v", err)
		}
	})

	t.Run("invalid account", func(t *testing.T) {
		account := &model.Account{Name: "Bad", Type: "LOAN", Currency: "USD"}
		if err := store.CreateAccount(context.Background(), account); !errors.Is(err, ErrInvalidAccount) {
			t.Errorf("CreateAccount should reject an unknown type, got: %v", err)
		}
	})
}

// TestTransactionValidation tests the transaction rules the storage layer enforces.
func TestTransactionValidation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	account := createTestAccount(t, store, "Checking", "0")
	valid := model.Transaction{
		AccountID: account.ID,
		Date:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Amount:    decimal.NewFromInt(10),
		Type:      model.TypeExpense,
	}

	tests := []struct {
		mutate  func(*model.Transaction)
		name    string
		wantErr bool
	}{
		{name: "valid", mutate: func(*model.Transaction) {}},
		{name: "missing account", mutate: func(t *model.Transaction) { t.AccountID = "" }, wantErr: true},
		{name: "zero date", mutate: func(t *model.Transaction) { t.Date = time.Time{} }, wantErr: true},
		{name: "negative amount", mutate: func(t *model.Transaction) { t.Amount = decimal.NewFromInt(-10) }, wantErr: true},
		{name: "unknown type", mutate: func(t *model.Transaction) { t.Type = "REFUND" }, wantErr: true},
		{name: "amount out of range", mutate: func(t *model.Transaction) { t.Amount = decimal.New(1, 8000000) }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := valid
			tt.mutate(&txn)

			err := store.AddTransactions(ctx, []model.Transaction{txn})
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransaction) {
					t.Errorf("AddTransactions() error = %v, want ErrInvalidTransaction", err)
				}
				if !errors.Is(err, common.ErrInvalidArgument) {
					t.Errorf("AddTransactions() error = %v, want it to wrap ErrInvalidArgument", err)
				}
				return
			}
			if err != nil {
				t.Errorf("AddTransactions() unexpected error = %v", err)
			}
		})
	}
}
