package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the storage and display layout for transaction dates.
const DateLayout = "2006-01-02"

// Transaction is a single money movement on an account. Amount is never
// negative; its direction comes from Type.
type Transaction struct {
	Date        time.Time
	CreatedAt   time.Time
	Amount      decimal.Decimal
	ID          string
	AccountID   string
	Description string
	Hash        string
	ExternalID  string
	Type        TransactionType
}

// SignedAmount returns the effect this transaction has on its account balance.
func (t *Transaction) SignedAmount() decimal.Decimal {
	return t.Type.Signed(t.Amount)
}

// GenerateHash creates a unique hash for duplicate detection. Amounts that
// differ only in trailing zeros hash the same; sub-cent differences do not.
func (t *Transaction) GenerateHash() string {
	key := t.ExternalID
	if key == "" {
		key = strings.ToLower(strings.TrimSpace(t.Description))
	}
	data := fmt.Sprintf("%s:%s:%s:%s:%s",
		t.Date.Format(DateLayout),
		FormatAmount(t.Amount),
		t.Type,
		key,
		t.AccountID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// Validate checks the fields required to persist a transaction.
func (t *Transaction) Validate() error {
	if t.AccountID == "" {
		return fmt.Errorf("account ID is required")
	}
	if t.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	if t.Amount.IsNegative() {
		return fmt.Errorf("amount must not be negative, use the transaction type for direction")
	}
	if err := CheckAmount(t.Amount); err != nil {
		return err
	}
	if _, err := ParseTransactionType(string(t.Type)); err != nil {
		return err
	}
	return nil
}

// TruncateToDate drops the time of day, keeping the calendar date in UTC.
func TruncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
