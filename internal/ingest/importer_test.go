package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/plaid"
	"github.com/Veraticus/the-books-must-balance/internal/reconcile"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/Veraticus/the-books-must-balance/internal/simplefin"
	"github.com/Veraticus/the-books-must-balance/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statementOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>5550001234
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240105120000[0:GMT]
<TRNAMT>1500.00
<FITID>A1
<NAME>PAYROLL
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240110120000[0:GMT]
<TRNAMT>-500.00
<FITID>A2
<NAME>RENT
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1200.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

func TestImporter_ImportOFX(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	importer := NewImporter(db.Storage, "alice", common.DiscardLogger())

	results, err := importer.ImportOFX(ctx, strings.NewReader(statementOFX))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].AccountCreated)
	assert.Equal(t, 2, results[0].TransactionsSeen)
	assert.Equal(t, 2, results[0].TransactionsInserted)

	account, err := db.Storage.FindAccount(ctx, results[0].AccountID)
	require.NoError(t, err)
	assert.Equal(t, "ofx:5550001234", account.ExternalID)
	assert.Equal(t, "alice", account.OwnerID)
	assert.True(t, account.Balance.Equal(decimal.NewFromInt(1200)))
	assert.True(t, account.InitialBalance.IsZero())

	// Importing the same file again changes nothing.
	again, err := importer.ImportOFX(ctx, strings.NewReader(statementOFX))
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.False(t, again[0].AccountCreated)
	assert.Equal(t, results[0].AccountID, again[0].AccountID)
	assert.Equal(t, 0, again[0].TransactionsInserted)

	// The imported account reconciles like any legacy account.
	result, err := reconcile.New(db.Storage, common.DiscardLogger()).
		ReconcileAccount(ctx, account.ID, reconcile.Options{})
	require.NoError(t, err)
	assert.Equal(t, reconcile.ActionDerived, result.Action)
	assert.True(t, result.InitialBalance.Equal(decimal.NewFromInt(200)), "initial %s", result.InitialBalance)
	assert.True(t, result.Drift().IsZero())
}

func TestImporter_ImportOFX_BadFile(t *testing.T) {
	db := testutil.SetupTestDB(t)
	importer := NewImporter(db.Storage, "", common.DiscardLogger())

	_, err := importer.ImportOFX(context.Background(), strings.NewReader("garbage"))
	assert.Error(t, err)

	accounts, err := db.Storage.ListAccounts(context.Background(), service.AccountFilter{})
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestImporter_SyncPlaid(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	importer := NewImporter(db.Storage, "", common.DiscardLogger())

	mock := plaid.NewMockClient()
	mock.GetAccountsFn = func(context.Context) ([]plaid.Account, error) {
		return []plaid.Account{
			{ID: "p1", Name: "Everyday", Mask: "0001", Currency: "USD", Type: model.AccountTypeChecking, CurrentBalance: decimal.RequireFromString("75.25")},
			{ID: "p2", Name: "Rainy Day", Currency: "USD", Type: model.AccountTypeSavings, CurrentBalance: decimal.NewFromInt(0)},
		}, nil
	}
	mock.GetTransactionsFn = func(context.Context, time.Time, time.Time) ([]model.Transaction, error) {
		return []model.Transaction{
			{ExternalID: "x1", AccountID: "p1", Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Amount: decimal.NewFromInt(100), Type: model.TypeIncome, Description: "Deposit"},
			{ExternalID: "x2", AccountID: "p1", Date: time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC), Amount: decimal.RequireFromString("24.75"), Type: model.TypeExpense, Description: "Groceries"},
		}, nil
	}

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	results, err := importer.SyncPlaid(ctx, mock, since)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0].TransactionsInserted)
	assert.Equal(t, 0, results[1].TransactionsSeen)
	require.Len(t, mock.GetTransactionsCalls, 1)
	assert.Equal(t, since, mock.GetTransactionsCalls[0].StartDate)

	account, err := db.Storage.FindAccountByExternalID(ctx, "plaid:p1")
	require.NoError(t, err)
	assert.Equal(t, "Everyday ****0001", account.Name)
	assert.True(t, account.Balance.Equal(decimal.RequireFromString("75.25")))

	txns, err := db.Storage.ListTransactions(ctx, account.ID)
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}

func TestImporter_SyncPlaid_FetchError(t *testing.T) {
	db := testutil.SetupTestDB(t)
	importer := NewImporter(db.Storage, "", common.DiscardLogger())

	mock := plaid.NewMockClient()
	mock.GetAccountsFn = func(context.Context) ([]plaid.Account, error) {
		return nil, common.ErrPlaidConnection
	}

	_, err := importer.SyncPlaid(context.Background(), mock, time.Now().AddDate(0, -1, 0))
	assert.True(t, errors.Is(err, common.ErrPlaidConnection))
	assert.Empty(t, mock.GetTransactionsCalls)
}

func TestImporter_SyncSimpleFIN(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	importer := NewImporter(db.Storage, "bob", common.DiscardLogger())

	mock := &simplefin.MockClient{Accounts: []simplefin.Account{{
		ID:       "ACT-1",
		Name:     "Everyday Checking",
		Org:      "First Bank",
		Currency: "USD",
		Type:     model.AccountTypeChecking,
		Balance:  decimal.NewFromInt(900),
		Transactions: []model.Transaction{
			{ExternalID: "TRN-1", AccountID: "ACT-1", Date: time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), Amount: decimal.NewFromInt(400), Type: model.TypeIncome, Description: "Payroll"},
			{ExternalID: "TRN-2", AccountID: "ACT-1", Date: time.Date(2024, 2, 4, 0, 0, 0, 0, time.UTC), Amount: decimal.NewFromInt(100), Type: model.TypeExpense, Description: "Groceries"},
		},
	}}}

	results, err := importer.SyncSimpleFIN(ctx, mock, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].AccountCreated)
	assert.Equal(t, 2, results[0].TransactionsInserted)
	assert.Equal(t, 1, mock.Calls)

	account, err := db.Storage.FindAccountByExternalID(ctx, "simplefin:ACT-1")
	require.NoError(t, err)
	assert.Equal(t, "First Bank Everyday Checking", account.Name)
	assert.Equal(t, "bob", account.OwnerID)

	// 900 - (400 - 100)
	result, err := reconcile.New(db.Storage, common.DiscardLogger()).
		ReconcileAccount(ctx, account.ID, reconcile.Options{})
	require.NoError(t, err)
	assert.True(t, result.InitialBalance.Equal(decimal.NewFromInt(600)), "initial %s", result.InitialBalance)
}

func TestImporter_SyncSimpleFIN_FetchError(t *testing.T) {
	db := testutil.SetupTestDB(t)
	importer := NewImporter(db.Storage, "", common.DiscardLogger())

	mock := &simplefin.MockClient{
		GetAccountsFn: func(context.Context, time.Time, time.Time) ([]simplefin.Account, error) {
			return nil, common.ErrSimpleFINConnection
		},
	}

	_, err := importer.SyncSimpleFIN(context.Background(), mock, time.Now().AddDate(0, -1, 0))
	assert.ErrorIs(t, err, common.ErrSimpleFINConnection)

	accounts, err := db.Storage.ListAccounts(context.Background(), service.AccountFilter{})
	require.NoError(t, err)
	assert.Empty(t, accounts)
}
