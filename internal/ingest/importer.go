// Package ingest loads statement files and bank syncs into storage.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/ofx"
	"github.com/Veraticus/the-books-must-balance/internal/plaid"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/Veraticus/the-books-must-balance/internal/simplefin"
)

// Store is the slice of storage the importer writes through.
type Store interface {
	UpsertImportedAccount(ctx context.Context, account *model.Account) (*model.Account, bool, error)
	SaveImportedTransactions(ctx context.Context, transactions []model.Transaction) (int, error)
}

// Importer upserts accounts by their institution id and stores their
// transactions deduplicated by hash. Imported balances come from the
// institution, so a newly created account has no opening balance until it
// is reconciled.
type Importer struct {
	store   Store
	parser  *ofx.Parser
	logger  *slog.Logger
	ownerID string
}

// NewImporter creates an Importer. ownerID is stamped on created accounts.
func NewImporter(store Store, ownerID string, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		store:   store,
		parser:  ofx.NewParser(logger),
		logger:  logger.With("component", "ingest"),
		ownerID: ownerID,
	}
}

// ImportOFX imports every statement in one OFX/QFX file.
func (i *Importer) ImportOFX(ctx context.Context, r io.Reader) ([]service.ImportResult, error) {
	statements, err := i.parser.ParseFile(ctx, r)
	if err != nil {
		return nil, err
	}

	results := make([]service.ImportResult, 0, len(statements))
	for idx := range statements {
		stmt := &statements[idx]
		account := &model.Account{
			OwnerID:    i.ownerID,
			Name:       stmt.DisplayName(),
			Type:       stmt.AccountType,
			Currency:   stmt.Currency,
			ExternalID: stmt.ExternalID(),
			Balance:    stmt.LedgerBalance,
		}

		result, err := i.importAccount(ctx, account, stmt.Transactions)
		if err != nil {
			return results, fmt.Errorf("statement for account %s: %w", stmt.AccountNumber, err)
		}
		results = append(results, result)
	}
	return results, nil
}

// SyncPlaid pulls every linked account and the transactions posted since
// the given date.
func (i *Importer) SyncPlaid(ctx context.Context, fetcher plaid.Fetcher, since time.Time) ([]service.ImportResult, error) {
	accounts, err := fetcher.GetAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch accounts: %w", err)
	}

	txns, err := fetcher.GetTransactions(ctx, since, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	byAccount := make(map[string][]model.Transaction, len(accounts))
	for _, txn := range txns {
		byAccount[txn.AccountID] = append(byAccount[txn.AccountID], txn)
	}

	results := make([]service.ImportResult, 0, len(accounts))
	for idx := range accounts {
		pa := &accounts[idx]
		name := pa.Name
		if pa.Mask != "" {
			name = fmt.Sprintf("%s ****%s", pa.Name, pa.Mask)
		}
		account := &model.Account{
			OwnerID:    i.ownerID,
			Name:       name,
			Type:       pa.Type,
			Currency:   pa.Currency,
			ExternalID: pa.ExternalID(),
			Balance:    pa.CurrentBalance,
		}

		result, err := i.importAccount(ctx, account, byAccount[pa.ID])
		if err != nil {
			return results, fmt.Errorf("plaid account %s: %w", pa.ID, err)
		}
		results = append(results, result)
	}
	return results, nil
}

// SyncSimpleFIN pulls every bridge account with the transactions posted
// since the given date.
func (i *Importer) SyncSimpleFIN(ctx context.Context, fetcher simplefin.Fetcher, since time.Time) ([]service.ImportResult, error) {
	accounts, err := fetcher.GetAccounts(ctx, since, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch accounts: %w", err)
	}

	results := make([]service.ImportResult, 0, len(accounts))
	for idx := range accounts {
		sa := &accounts[idx]
		account := &model.Account{
			OwnerID:    i.ownerID,
			Name:       sa.DisplayName(),
			Type:       sa.Type,
			Currency:   sa.Currency,
			ExternalID: sa.ExternalID(),
			Balance:    sa.Balance,
		}

		result, err := i.importAccount(ctx, account, sa.Transactions)
		if err != nil {
			return results, fmt.Errorf("simplefin account %s: %w", sa.ID, err)
		}
		results = append(results, result)
	}
	return results, nil
}

func (i *Importer) importAccount(ctx context.Context, incoming *model.Account, txns []model.Transaction) (service.ImportResult, error) {
	account, created, err := i.store.UpsertImportedAccount(ctx, incoming)
	if err != nil {
		return service.ImportResult{}, err
	}

	result := service.ImportResult{
		AccountID:        account.ID,
		AccountCreated:   created,
		TransactionsSeen: len(txns),
	}

	if len(txns) > 0 {
		for idx := range txns {
			txns[idx].AccountID = account.ID
			txns[idx].Hash = ""
		}
		inserted, err := i.store.SaveImportedTransactions(ctx, txns)
		if err != nil {
			return result, err
		}
		result.TransactionsInserted = inserted
	}

	i.logger.Info("Imported account",
		"account_id", account.ID,
		"external_id", account.ExternalID,
		"created", created,
		"balance", account.Balance.String(),
		"transactions_seen", result.TransactionsSeen,
		"transactions_inserted", result.TransactionsInserted)

	return result, nil
}
