package reconcile

import (
	"strings"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/shopspring/decimal"
)

// ComputeTransactionSum returns the net signed effect of txns, independent of
// any opening balance. Order does not matter and an empty slice sums to zero.
func ComputeTransactionSum(txns []model.Transaction) decimal.Decimal {
	sum, _ := summarize(txns)
	return sum
}

// summarize returns the signed sum of txns and how many of them have a type
// that carries no sign.
func summarize(txns []model.Transaction) (decimal.Decimal, int) {
	sum := decimal.Zero
	unsigned := 0
	for i := range txns {
		if txns[i].Type.Sign() == 0 {
			unsigned++
			continue
		}
		sum = sum.Add(txns[i].SignedAmount())
	}
	return sum, unsigned
}

// DeriveInitialBalance solves the balance invariant for the opening balance.
func DeriveInitialBalance(account model.Account, transactionSum decimal.Decimal) decimal.Decimal {
	return account.Balance.Sub(transactionSum)
}

// ParseInitialBalance turns untrusted override text into a decimal. Anything
// that is not a finite decimal number within model.CheckAmount bounds is
// rejected with common.ErrInvalidArgument.
func ParseInitialBalance(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, common.InvalidArgumentf("initial balance is empty")
	}

	switch strings.ToLower(strings.TrimLeft(s, "+-")) {
	case "nan", "inf", "infinity":
		return decimal.Zero, common.InvalidArgumentf("initial balance %q is not finite", raw)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, common.InvalidArgumentf("initial balance %q is not a decimal number", raw)
	}
	if err := model.CheckAmount(d); err != nil {
		return decimal.Zero, common.InvalidArgumentf("initial balance %q is out of range: %v", raw, err)
	}
	return d, nil
}
