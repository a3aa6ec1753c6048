package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, account_id, hash, date, amount, type, description, external_id, created_at`

// AddTransactions records manually entered transactions. Each account's
// running balance moves by the signed amount of its new transactions in the
// same database transaction, so the ledger stays consistent.
func (s *SQLiteStorage) AddTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		deltas := make(map[string]decimal.Decimal)
		var order []string

		for i := range transactions {
			txn := &transactions[i]
			if _, err := s.insertTransactionTx(ctx, tx, txn, false); err != nil {
				return err
			}
			if _, seen := deltas[txn.AccountID]; !seen {
				order = append(order, txn.AccountID)
			}
			deltas[txn.AccountID] = deltas[txn.AccountID].Add(txn.SignedAmount())
		}

		for _, accountID := range order {
			if err := s.adjustBalanceTx(ctx, tx, accountID, deltas[accountID]); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveImportedTransactions stores transactions from a statement or sync,
// skipping any whose hash is already present. Imported statements carry
// their own balance, so account balances are left alone. It returns the
// number of rows inserted.
func (s *SQLiteStorage) SaveImportedTransactions(ctx context.Context, transactions []model.Transaction) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if len(transactions) == 0 {
		return 0, nil
	}
	if err := validateTransactions(transactions); err != nil {
		return 0, err
	}

	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for i := range transactions {
			ok, err := s.insertTransactionTx(ctx, tx, &transactions[i], true)
			if err != nil {
				return err
			}
			if ok {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// insertTransactionTx fills in missing ids and hashes and inserts txn,
// reporting whether a row was written. With ignoreDuplicates a hash
// collision is skipped; otherwise it is an ErrDuplicateEntry.
func (s *SQLiteStorage) insertTransactionTx(ctx context.Context, q queryable, txn *model.Transaction, ignoreDuplicates bool) (bool, error) {
	if txn.ID == "" {
		txn.ID = model.NewID()
	}
	txn.Date = model.TruncateToDate(txn.Date)
	if txn.Hash == "" {
		txn.Hash = txn.GenerateHash()
	}
	createdAt := s.now()

	verb := "INSERT"
	if ignoreDuplicates {
		verb = "INSERT OR IGNORE"
	}

	result, err := q.ExecContext(ctx, verb+` INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		txn.ID,
		txn.AccountID,
		txn.Hash,
		txn.Date.Format(model.DateLayout),
		txn.Amount.String(),
		string(txn.Type),
		txn.Description,
		txn.ExternalID,
		createdAt,
	)
	switch {
	case err == nil:
	case isUniqueViolation(err):
		return false, fmt.Errorf("%w: transaction %s", common.ErrDuplicateEntry, txn.Hash)
	case isForeignKeyViolation(err):
		return false, common.NotFoundf("account %s", txn.AccountID)
	default:
		return false, fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check insert result: %w", err)
	}
	if affected == 0 {
		return false, nil
	}
	txn.CreatedAt = createdAt
	return true, nil
}

func (s *SQLiteStorage) adjustBalanceTx(ctx context.Context, q queryable, accountID string, delta decimal.Decimal) error {
	var balance decimal.Decimal
	err := q.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = ?`, accountID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return common.NotFoundf("account %s", accountID)
	}
	if err != nil {
		return fmt.Errorf("failed to read balance: %w", err)
	}

	if _, err := q.ExecContext(ctx, `
		UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?
	`, balance.Add(delta).String(), s.now(), accountID); err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return nil
}

// ListTransactions returns every transaction of an account ordered by date
// ascending.
func (s *SQLiteStorage) ListTransactions(ctx context.Context, accountID string) ([]model.Transaction, error) {
	return s.ListTransactionsFiltered(ctx, accountID, service.TransactionFilter{})
}

// ListTransactionsFiltered returns an account's transactions within the
// filter's inclusive date range, ordered by date ascending.
func (s *SQLiteStorage) ListTransactionsFiltered(ctx context.Context, accountID string, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return nil, err
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, fmt.Errorf("%w: end date %s is before start date %s", ErrInvalidDateRange,
			filter.EndDate.Format(model.DateLayout), filter.StartDate.Format(model.DateLayout))
	}

	var query strings.Builder
	query.WriteString(`SELECT ` + transactionColumns + ` FROM transactions WHERE account_id = ?`)
	args := []any{accountID}
	if filter.StartDate != nil {
		query.WriteString(` AND date >= ?`)
		args = append(args, filter.StartDate.Format(model.DateLayout))
	}
	if filter.EndDate != nil {
		query.WriteString(` AND date <= ?`)
		args = append(args, filter.EndDate.Format(model.DateLayout))
	}
	query.WriteString(` ORDER BY date ASC, created_at ASC, id ASC`)
	if filter.Limit > 0 {
		query.WriteString(` LIMIT ?`)
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, scanErr := scanTransaction(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", scanErr)
		}
		transactions = append(transactions, *txn)
	}

	return transactions, rows.Err()
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var (
		txn     model.Transaction
		txnType string
	)
	err := row.Scan(
		&txn.ID,
		&txn.AccountID,
		&txn.Hash,
		&txn.Date,
		&txn.Amount,
		&txnType,
		&txn.Description,
		&txn.ExternalID,
		&txn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	txn.Type = model.TransactionType(txnType)
	txn.Date = model.TruncateToDate(txn.Date)
	return &txn, nil
}
