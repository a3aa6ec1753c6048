package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/shopspring/decimal"
)

func newTxn(accountID string, txnType model.TransactionType, amount string, d int, desc string) model.Transaction {
	return model.Transaction{
		AccountID:   accountID,
		Date:        day(d),
		Amount:      decimal.RequireFromString(amount),
		Type:        txnType,
		Description: desc,
	}
}

func TestSQLiteStorage_AddTransactions_MovesBalance(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	account := createTestAccount(t, store, "Checking", "100")

	txns := []model.Transaction{
		newTxn(account.ID, model.TypeIncome, "1500", 2, "Salary"),
		newTxn(account.ID, model.TypeExpense, "499.99", 3, "Rent"),
		newTxn(account.ID, model.TypeAccountTransferIn, "50", 4, "Moved in"),
	}
	if err := store.AddTransactions(ctx, txns); err != nil {
		t.Fatalf("AddTransactions() error = %v", err)
	}

	got, err := store.FindAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("FindAccount() error = %v", err)
	}
	if !got.Balance.Equal(decimal.RequireFromString("1100.01")) {
		t.Errorf("Balance = %s, want 1100.01", got.Balance)
	}
	if !got.InitialBalance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("InitialBalance = %s, want 100", got.InitialBalance)
	}
	for _, txn := range txns {
		if txn.ID == "" || txn.Hash == "" {
			t.Errorf("transaction %+v was not assigned an id and hash", txn)
		}
	}
}

func TestSQLiteStorage_AddTransactions_Errors(t *testing.T) {
	tests := []struct {
		wantErr error
		build   func(accountID string) []model.Transaction
		name    string
	}{
		{
			name:    "empty slice",
			build:   func(string) []model.Transaction { return []model.Transaction{} },
			wantErr: ErrEmptySlice,
		},
		{
			name: "negative amount",
			build: func(id string) []model.Transaction {
				return []model.Transaction{newTxn(id, model.TypeExpense, "-5", 1, "bad")}
			},
			wantErr: ErrInvalidTransaction,
		},
		{
			name: "unknown account",
			build: func(string) []model.Transaction {
				return []model.Transaction{newTxn("nope", model.TypeIncome, "5", 1, "orphan")}
			},
			wantErr: common.ErrNotFound,
		},
		{
			name: "duplicate within batch",
			build: func(id string) []model.Transaction {
				return []model.Transaction{
					newTxn(id, model.TypeIncome, "5", 1, "same"),
					newTxn(id, model.TypeIncome, "5", 1, "same"),
				}
			},
			wantErr: common.ErrDuplicateEntry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, cleanup := createTestStorage(t)
			defer cleanup()
			ctx := context.Background()
			account := createTestAccount(t, store, "Checking", "10")

			err := store.AddTransactions(ctx, tt.build(account.ID))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("AddTransactions() error = %v, want %v", err, tt.wantErr)
			}

			// A failed batch leaves nothing behind.
			got, err := store.FindAccount(ctx, account.ID)
			if err != nil {
				t.Fatalf("FindAccount() error = %v", err)
			}
			if !got.Balance.Equal(decimal.NewFromInt(10)) {
				t.Errorf("Balance = %s after failed batch, want 10", got.Balance)
			}
			txns, err := store.ListTransactions(ctx, account.ID)
			if err != nil {
				t.Fatalf("ListTransactions() error = %v", err)
			}
			if len(txns) != 0 {
				t.Errorf("ListTransactions() returned %d rows after failed batch", len(txns))
			}
		})
	}
}

func TestSQLiteStorage_SaveImportedTransactions_Dedup(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	account := createTestAccount(t, store, "Imported", "0")
	batch := func() []model.Transaction {
		a := newTxn(account.ID, model.TypeExpense, "12.50", 5, "Coffee")
		a.ExternalID = "FIT-1"
		b := newTxn(account.ID, model.TypeIncome, "40", 6, "Refund")
		b.ExternalID = "FIT-2"
		return []model.Transaction{a, b}
	}

	inserted, err := store.SaveImportedTransactions(ctx, batch())
	if err != nil {
		t.Fatalf("SaveImportedTransactions() error = %v", err)
	}
	if inserted != 2 {
		t.Errorf("first import inserted %d, want 2", inserted)
	}

	inserted, err = store.SaveImportedTransactions(ctx, batch())
	if err != nil {
		t.Fatalf("SaveImportedTransactions() repeat error = %v", err)
	}
	if inserted != 0 {
		t.Errorf("repeat import inserted %d, want 0", inserted)
	}

	got, err := store.FindAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("FindAccount() error = %v", err)
	}
	if !got.Balance.IsZero() {
		t.Errorf("imported transactions moved the balance to %s", got.Balance)
	}

	if n, err := store.SaveImportedTransactions(ctx, nil); err != nil || n != 0 {
		t.Errorf("SaveImportedTransactions(nil) = %d, %v", n, err)
	}
}

func TestSQLiteStorage_SaveImportedTransactions_SubCentAmountsAreDistinct(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	account := createTestAccount(t, store, "Brokerage cash", "0")
	txns := []model.Transaction{
		newTxn(account.ID, model.TypeExpense, "1.001", 5, "FX fee"),
		newTxn(account.ID, model.TypeExpense, "1.004", 5, "FX fee"),
	}

	inserted, err := store.SaveImportedTransactions(ctx, txns)
	if err != nil {
		t.Fatalf("SaveImportedTransactions() error = %v", err)
	}
	if inserted != 2 {
		t.Errorf("inserted %d, want 2", inserted)
	}

	stored, err := store.ListTransactions(ctx, account.ID)
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	sum := decimal.Zero
	for i := range stored {
		sum = sum.Add(stored[i].Amount)
	}
	if !sum.Equal(decimal.RequireFromString("2.005")) {
		t.Errorf("stored amounts sum to %s, want 2.005", sum)
	}
}

func TestSQLiteStorage_ListTransactions_OrderAndFilter(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	account := createTestAccount(t, store, "Checking", "0")
	other := createTestAccount(t, store, "Other", "0")

	if err := store.AddTransactions(ctx, []model.Transaction{
		newTxn(account.ID, model.TypeExpense, "3", 20, "third"),
		newTxn(account.ID, model.TypeIncome, "1", 1, "first"),
		newTxn(account.ID, model.TypeIncome, "2", 10, "second"),
		newTxn(other.ID, model.TypeIncome, "9", 5, "elsewhere"),
	}); err != nil {
		t.Fatalf("AddTransactions() error = %v", err)
	}

	all, err := store.ListTransactions(ctx, account.ID)
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	want := []string{"first", "second", "third"}
	if len(all) != len(want) {
		t.Fatalf("ListTransactions() returned %d rows, want %d", len(all), len(want))
	}
	for i, txn := range all {
		if txn.Description != want[i] {
			t.Errorf("ListTransactions()[%d] = %s, want %s", i, txn.Description, want[i])
		}
	}
	if !all[1].Date.Equal(day(10)) {
		t.Errorf("Date = %v, want %v", all[1].Date, day(10))
	}
	if all[2].Type != model.TypeExpense || !all[2].Amount.Equal(decimal.NewFromInt(3)) {
		t.Errorf("third transaction = %+v", all[2])
	}

	start, end := day(5), day(15)
	filtered, err := store.ListTransactionsFiltered(ctx, account.ID, service.TransactionFilter{StartDate: &start, EndDate: &end})
	if err != nil {
		t.Fatalf("ListTransactionsFiltered() error = %v", err)
	}
	if len(filtered) != 1 || filtered[0].Description != "second" {
		t.Errorf("ListTransactionsFiltered() = %+v, want only the second transaction", filtered)
	}

	limited, err := store.ListTransactionsFiltered(ctx, account.ID, service.TransactionFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListTransactionsFiltered() error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limited listing returned %d rows, want 2", len(limited))
	}

	_, err = store.ListTransactionsFiltered(ctx, account.ID, service.TransactionFilter{StartDate: &end, EndDate: &start})
	if !errors.Is(err, ErrInvalidDateRange) {
		t.Errorf("reversed range error = %v, want ErrInvalidDateRange", err)
	}
}
