package model

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestTransactionType_Signed(t *testing.T) {
	amount := decimal.RequireFromString("42.10")

	tests := []struct {
		name     string
		txnType  TransactionType
		expected string
	}{
		{name: "income increases balance", txnType: TypeIncome, expected: "42.1"},
		{name: "reimbursement increases balance", txnType: TypeReimbursement, expected: "42.1"},
		{name: "expense decreases balance", txnType: TypeExpense, expected: "-42.1"},
		{name: "transfer decreases balance", txnType: TypeTransfer, expected: "-42.1"},
		{name: "account transfer in is neutral", txnType: TypeAccountTransferIn, expected: "0"},
		{name: "unknown type is neutral", txnType: TransactionType("DIVIDEND"), expected: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.txnType.Signed(amount)
			if !got.Equal(decimal.RequireFromString(tt.expected)) {
				t.Errorf("Signed() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestParseTransactionType(t *testing.T) {
	tests := []struct {
		input   string
		want    TransactionType
		wantErr bool
	}{
		{input: "income", want: TypeIncome},
		{input: " EXPENSE ", want: TypeExpense},
		{input: "account_transfer_in", want: TypeAccountTransferIn},
		{input: "refund", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTransactionType(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTransactionType(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseTransactionType(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
