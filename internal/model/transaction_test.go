package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTransaction_Validate(t *testing.T) {
	valid := func() Transaction {
		return Transaction{
			AccountID: "acc-1",
			Date:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Amount:    decimal.NewFromInt(10),
			Type:      TypeExpense,
		}
	}

	tests := []struct {
		mutate  func(*Transaction)
		name    string
		wantErr bool
	}{
		{name: "valid", mutate: func(*Transaction) {}},
		{name: "zero amount is allowed", mutate: func(t *Transaction) { t.Amount = decimal.Zero }},
		{name: "missing account", mutate: func(t *Transaction) { t.AccountID = "" }, wantErr: true},
		{name: "missing date", mutate: func(t *Transaction) { t.Date = time.Time{} }, wantErr: true},
		{name: "negative amount", mutate: func(t *Transaction) { t.Amount = decimal.NewFromInt(-1) }, wantErr: true},
		{name: "unknown type", mutate: func(t *Transaction) { t.Type = "GIFT" }, wantErr: true},
		{name: "huge exponent", mutate: func(t *Transaction) { t.Amount = decimal.RequireFromString("1e2147483647") }, wantErr: true},
		{name: "tiny exponent", mutate: func(t *Transaction) { t.Amount = decimal.RequireFromString("1e-40") }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := valid()
			tt.mutate(&txn)
			if err := txn.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransaction_GenerateHash(t *testing.T) {
	base := Transaction{
		AccountID:   "acc-1",
		Date:        time.Date(2024, 3, 1, 15, 4, 5, 0, time.UTC),
		Amount:      decimal.RequireFromString("12.5"),
		Type:        TypeExpense,
		Description: "Coffee",
	}

	sameDay := base
	sameDay.Date = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	sameDay.Description = "  coffee "
	if base.GenerateHash() != sameDay.GenerateHash() {
		t.Error("expected hash to ignore time of day and description case")
	}

	otherType := base
	otherType.Type = TypeIncome
	if base.GenerateHash() == otherType.GenerateHash() {
		t.Error("expected hash to differ by transaction type")
	}

	withExternal := base
	withExternal.ExternalID = "FIT-1"
	if base.GenerateHash() == withExternal.GenerateHash() {
		t.Error("expected external id to take part in the hash")
	}

	trailingZeros := base
	trailingZeros.Amount = decimal.RequireFromString("12.500")
	if base.GenerateHash() != trailingZeros.GenerateHash() {
		t.Error("expected 12.5 and 12.500 to hash the same")
	}
}

func TestTransaction_GenerateHash_SubCentAmounts(t *testing.T) {
	first := Transaction{
		AccountID:   "acc-1",
		Date:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString("1.001"),
		Type:        TypeExpense,
		Description: "FX fee",
	}
	second := first
	second.Amount = decimal.RequireFromString("1.004")

	if first.GenerateHash() == second.GenerateHash() {
		t.Error("expected amounts differing below one cent to hash differently")
	}
}

func TestTransaction_SignedAmount(t *testing.T) {
	txn := Transaction{Amount: decimal.RequireFromString("0.10"), Type: TypeTransfer}
	if got := txn.SignedAmount(); !got.Equal(decimal.RequireFromString("-0.1")) {
		t.Errorf("SignedAmount() = %s, want -0.1", got)
	}
}
