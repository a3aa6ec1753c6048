package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
)

// Validation errors. The input-shaped ones wrap common.ErrInvalidArgument so
// callers can map them without knowing about storage.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptyString        = fmt.Errorf("%w: string parameter cannot be empty", common.ErrInvalidArgument)
	ErrEmptySlice         = fmt.Errorf("%w: slice cannot be empty", common.ErrInvalidArgument)
	ErrInvalidDateRange   = fmt.Errorf("%w: start date must be before end date", common.ErrInvalidArgument)
	ErrInvalidAccount     = fmt.Errorf("%w: invalid account", common.ErrInvalidArgument)
	ErrInvalidTransaction = fmt.Errorf("%w: invalid transaction", common.ErrInvalidArgument)
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateAccount(account *model.Account) error {
	if account == nil {
		return fmt.Errorf("%w: account", ErrNilParameter)
	}
	if err := account.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAccount, err)
	}
	return nil
}

// validateTransactions validates a slice of transactions.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i := range transactions {
		if err := transactions[i].Validate(); err != nil {
			return fmt.Errorf("transaction at index %d: %w: %w", i, ErrInvalidTransaction, err)
		}
	}
	return nil
}
