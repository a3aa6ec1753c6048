package ledger

// Fixture represents a predefined set of accounts for testing.
type Fixture interface {
	Name() string
	Accounts() []AccountSpec
}

type fixture struct {
	name     string
	accounts []AccountSpec
}

func (f *fixture) Name() string            { return f.name }
func (f *fixture) Accounts() []AccountSpec { return f.accounts }

// Predefined fixtures for common test scenarios.
var (
	// FixtureMixed has one account of each batch outcome: one to derive,
	// one already reconciled and one with nothing to derive.
	FixtureMixed = &fixture{
		name: "Mixed",
		accounts: []AccountSpec{
			{
				Name:         AccountLegacyChecking,
				Balance:      "1200",
				Initial:      "0",
				Transactions: []TxnSpec{Income("1500", 1), Expense("500", 2)},
			},
			{
				Name:         AccountReconciledSavings,
				Balance:      "1000",
				Initial:      "250",
				Transactions: []TxnSpec{Income("750", 3)},
			},
			{
				Name:    AccountEmptyCash,
				Type:    "CASH",
				Balance: "0",
				Initial: "0",
			},
		},
	}

	// FixtureLegacyOnly holds accounts that all need deriving.
	FixtureLegacyOnly = &fixture{
		name: "LegacyOnly",
		accounts: []AccountSpec{
			{
				Name:         AccountLegacyChecking,
				Balance:      "1200",
				Initial:      "0",
				Transactions: []TxnSpec{Income("1500", 1), Expense("500", 2)},
			},
			{
				Name:         AccountLegacyCard,
				Type:         "CREDIT_CARD",
				Balance:      "-150",
				Initial:      "0",
				Transactions: []TxnSpec{Expense("100", 4), Expense("50", 5)},
			},
		},
	}
)
