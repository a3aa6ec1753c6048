// Package model holds the core domain types shared across the application.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies what kind of account a ledger tracks.
type AccountType string

const (
	// AccountTypeChecking is a current/checking bank account.
	AccountTypeChecking AccountType = "CHECKING"
	// AccountTypeSavings is a savings bank account.
	AccountTypeSavings AccountType = "SAVINGS"
	// AccountTypeCreditCard is a credit card account.
	AccountTypeCreditCard AccountType = "CREDIT_CARD"
	// AccountTypeCash tracks physical cash.
	AccountTypeCash AccountType = "CASH"
	// AccountTypeInvestment is a brokerage or other investment account.
	AccountTypeInvestment AccountType = "INVESTMENT"
)

// AccountTypes lists every supported account type.
var AccountTypes = []AccountType{
	AccountTypeChecking,
	AccountTypeSavings,
	AccountTypeCreditCard,
	AccountTypeCash,
	AccountTypeInvestment,
}

// ParseAccountType converts user input into an AccountType.
func ParseAccountType(s string) (AccountType, error) {
	candidate := AccountType(strings.ToUpper(strings.TrimSpace(s)))
	for _, t := range AccountTypes {
		if t == candidate {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown account type %q", s)
}

// Account is a single ledger account.
//
// Balance is the cached running balance shown to users. InitialBalance is the
// opening balance at account creation; rows created before the column existed
// carry zero until reconciled.
type Account struct {
	CreatedAt      time.Time
	UpdatedAt      time.Time
	InitialBalance decimal.Decimal
	Balance        decimal.Decimal
	ID             string
	OwnerID        string
	Name           string
	Currency       string
	ExternalID     string
	Type           AccountType
}

// Validate checks the fields required to persist an account.
func (a *Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("account name is required")
	}
	if _, err := ParseAccountType(string(a.Type)); err != nil {
		return err
	}
	if len(a.Currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter ISO code")
	}
	if err := CheckAmount(a.Balance); err != nil {
		return fmt.Errorf("balance: %w", err)
	}
	if err := CheckAmount(a.InitialBalance); err != nil {
		return fmt.Errorf("initial balance: %w", err)
	}
	return nil
}
