package reconcile

import (
	"fmt"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/shopspring/decimal"
)

// Status is the outcome of one account in a batch run.
type Status string

// Batch statuses.
const (
	StatusDerived    Status = "derived"
	StatusReconciled Status = "already-reconciled"
	StatusEmpty      Status = "nothing-to-derive"
	StatusFailed     Status = "failed"
)

// AccountReport is one line of a batch run: the account before and after.
type AccountReport struct {
	Err               error
	AccountID         string
	Name              string
	Currency          string
	Status            Status
	Before            decimal.Decimal
	After             decimal.Decimal
	Balance           decimal.Decimal
	TransactionSum    decimal.Decimal
	CalculatedBalance decimal.Decimal
	TransactionCount  int
	UnsignedCount     int
}

// Changed reports whether the opening balance moved.
func (a *AccountReport) Changed() bool {
	return !a.Before.Equal(a.After)
}

// Summary renders a one-line, human readable before/after description.
func (a *AccountReport) Summary() string {
	switch a.Status {
	case StatusDerived:
		return fmt.Sprintf("%s: initial balance %s -> %s (balance %s, transactions %s)",
			a.Name, model.FormatAmount(a.Before), model.FormatAmount(a.After),
			model.FormatAmount(a.Balance), model.FormatAmount(a.TransactionSum))
	case StatusReconciled:
		return fmt.Sprintf("%s: already reconciled with initial balance %s", a.Name, model.FormatAmount(a.Before))
	case StatusEmpty:
		return fmt.Sprintf("%s: nothing to derive, balance is zero", a.Name)
	default:
		return fmt.Sprintf("%s: failed: %v", a.Name, a.Err)
	}
}

// Report is the structured result of ReconcileAll.
type Report struct {
	StartedAt  time.Time
	FinishedAt time.Time
	OwnerID    string
	Accounts   []AccountReport
	DryRun     bool
	// Interrupted is set when the context ended before every account was visited.
	Interrupted bool
}

// ReportSummary counts batch outcomes.
type ReportSummary struct {
	Total   int
	Derived int
	Skipped int
	Failed  int
}

// Summary counts the accounts in each outcome.
func (r *Report) Summary() ReportSummary {
	s := ReportSummary{Total: len(r.Accounts)}
	for i := range r.Accounts {
		switch r.Accounts[i].Status {
		case StatusDerived:
			s.Derived++
		case StatusFailed:
			s.Failed++
		default:
			s.Skipped++
		}
	}
	return s
}

// PlanAccount decides what the batch run does with one account without
// touching storage.
func PlanAccount(account model.Account, txns []model.Transaction) AccountReport {
	entry := newAccountReport(account)
	sum, unsigned := summarize(txns)
	entry.TransactionSum = sum
	entry.TransactionCount = len(txns)
	entry.UnsignedCount = unsigned

	switch {
	case needsDerivation(&account):
		entry.Status = StatusDerived
		entry.After = DeriveInitialBalance(account, sum)
	case !account.InitialBalance.IsZero():
		entry.Status = StatusReconciled
	default:
		entry.Status = StatusEmpty
	}
	entry.CalculatedBalance = entry.After.Add(sum)

	return entry
}

func newAccountReport(account model.Account) AccountReport {
	return AccountReport{
		AccountID: account.ID,
		Name:      account.Name,
		Currency:  account.Currency,
		Before:    account.InitialBalance,
		After:     account.InitialBalance,
		Balance:   account.Balance,
	}
}
