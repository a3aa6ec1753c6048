package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TransactionType is an entry in the fixed transaction taxonomy.
type TransactionType string

// Transaction types.
const (
	TypeIncome            TransactionType = "INCOME"
	TypeExpense           TransactionType = "EXPENSE"
	TypeTransfer          TransactionType = "TRANSFER"
	TypeReimbursement     TransactionType = "REIMBURSEMENT"
	TypeAccountTransferIn TransactionType = "ACCOUNT_TRANSFER_IN"
)

// TransactionTypes lists the taxonomy in the order it is seeded.
var TransactionTypes = []TransactionType{
	TypeIncome,
	TypeExpense,
	TypeTransfer,
	TypeReimbursement,
	TypeAccountTransferIn,
}

// ParseTransactionType converts user input into a TransactionType.
func ParseTransactionType(s string) (TransactionType, error) {
	candidate := TransactionType(strings.ToUpper(strings.TrimSpace(s)))
	for _, t := range TransactionTypes {
		if t == candidate {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown transaction type %q", s)
}

// Sign returns the direction a transaction of this type moves an account
// balance: +1 for INCOME and REIMBURSEMENT, -1 for EXPENSE and TRANSFER.
// Every other type, ACCOUNT_TRANSFER_IN included, returns 0 and does not
// contribute to balance sums.
func (t TransactionType) Sign() int {
	switch t {
	case TypeIncome, TypeReimbursement:
		return 1
	case TypeExpense, TypeTransfer:
		return -1
	default:
		return 0
	}
}

// Signed applies the sign of t to a non-negative amount.
func (t TransactionType) Signed(amount decimal.Decimal) decimal.Decimal {
	switch t.Sign() {
	case 1:
		return amount
	case -1:
		return amount.Neg()
	default:
		return decimal.Zero
	}
}
