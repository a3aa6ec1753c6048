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

const accountColumns = `id, owner_id, name, type, currency, balance, initial_balance, external_id, created_at, updated_at`

// CreateAccount inserts a new account. An empty ID is filled with a new one.
// Balance and InitialBalance are stored as given; a freshly opened account
// normally has both set to its opening balance.
func (s *SQLiteStorage) CreateAccount(ctx context.Context, account *model.Account) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAccount(account); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.createAccountTx(ctx, tx, account)
	})
}

func (s *SQLiteStorage) createAccountTx(ctx context.Context, q queryable, account *model.Account) error {
	account.Currency = strings.ToUpper(account.Currency)
	if err := s.requireCurrency(ctx, q, account.Currency); err != nil {
		return err
	}

	if account.ID == "" {
		account.ID = model.NewID()
	}
	now := s.now()
	account.CreatedAt = now
	account.UpdatedAt = now

	_, err := q.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		account.ID,
		account.OwnerID,
		account.Name,
		string(account.Type),
		account.Currency,
		account.Balance.String(),
		account.InitialBalance.String(),
		account.ExternalID,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: account %s", common.ErrDuplicateEntry, account.ID)
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) requireCurrency(ctx context.Context, q queryable, code string) error {
	var found string
	err := q.QueryRowContext(ctx, `SELECT code FROM currencies WHERE code = ?`, code).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return common.InvalidArgumentf("unknown currency %q", code)
	}
	if err != nil {
		return fmt.Errorf("failed to look up currency: %w", err)
	}
	return nil
}

// FindAccount returns the account with the given id or an error wrapping
// common.ErrNotFound.
func (s *SQLiteStorage) FindAccount(ctx context.Context, id string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.findAccountTx(ctx, s.db, `id = ?`, id)
}

// FindAccountByExternalID returns the imported account with the given
// institution id or an error wrapping common.ErrNotFound.
func (s *SQLiteStorage) FindAccountByExternalID(ctx context.Context, externalID string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(externalID, "externalID"); err != nil {
		return nil, err
	}
	return s.findAccountTx(ctx, s.db, `external_id = ?`, externalID)
}

func (s *SQLiteStorage) findAccountTx(ctx context.Context, q queryable, where string, arg any) (*model.Account, error) {
	row := q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+where, arg)

	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundf("account %v", arg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// ListAccounts returns the accounts matching filter ordered by name.
func (s *SQLiteStorage) ListAccounts(ctx context.Context, filter service.AccountFilter) ([]model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE 1=1`
	var args []any
	if filter.OwnerID != "" {
		query += ` AND owner_id = ?`
		args = append(args, filter.OwnerID)
	}
	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(filter.Type))
	}
	query += ` ORDER BY name, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []model.Account
	for rows.Next() {
		account, scanErr := scanAccount(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan account: %w", scanErr)
		}
		accounts = append(accounts, *account)
	}

	return accounts, rows.Err()
}

// UpdateInitialBalance sets the opening balance of one account in a single
// statement.
func (s *SQLiteStorage) UpdateInitialBalance(ctx context.Context, id string, initialBalance decimal.Decimal) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET initial_balance = ?, updated_at = ? WHERE id = ?
	`, initialBalance.String(), s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to update initial balance: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return common.NotFoundf("account %s", id)
	}
	return nil
}

// UpsertImportedAccount creates or refreshes an account keyed by its
// ExternalID. A new account starts with a zero opening balance; an existing
// one only has its balance refreshed. The bool reports whether a row was
// created.
func (s *SQLiteStorage) UpsertImportedAccount(ctx context.Context, account *model.Account) (*model.Account, bool, error) {
	if err := validateContext(ctx); err != nil {
		return nil, false, err
	}
	if err := validateAccount(account); err != nil {
		return nil, false, err
	}
	if err := validateString(account.ExternalID, "externalID"); err != nil {
		return nil, false, err
	}

	var (
		stored  *model.Account
		created bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := s.findAccountTx(ctx, tx, `external_id = ?`, account.ExternalID)
		switch {
		case errors.Is(err, common.ErrNotFound):
			fresh := *account
			fresh.InitialBalance = decimal.Zero
			if err := s.createAccountTx(ctx, tx, &fresh); err != nil {
				return err
			}
			stored, created = &fresh, true
			return nil
		case err != nil:
			return err
		}

		existing.Balance = account.Balance
		existing.UpdatedAt = s.now()
		if _, err := tx.ExecContext(ctx, `
			UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?
		`, existing.Balance.String(), existing.UpdatedAt, existing.ID); err != nil {
			return fmt.Errorf("failed to update account balance: %w", err)
		}
		stored = existing
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func scanAccount(row rowScanner) (*model.Account, error) {
	var (
		account     model.Account
		accountType string
	)
	err := row.Scan(
		&account.ID,
		&account.OwnerID,
		&account.Name,
		&accountType,
		&account.Currency,
		&account.Balance,
		&account.InitialBalance,
		&account.ExternalID,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	account.Type = model.AccountType(accountType)
	return &account, nil
}
