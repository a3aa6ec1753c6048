package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/shopspring/decimal"
)

// Store is the persistence the reconciler reads from and writes to.
type Store interface {
	FindAccount(ctx context.Context, id string) (*model.Account, error)
	ListAccounts(ctx context.Context, filter service.AccountFilter) ([]model.Account, error)
	// ListTransactions returns an account's transactions ordered by date ascending.
	ListTransactions(ctx context.Context, accountID string) ([]model.Transaction, error)
	UpdateInitialBalance(ctx context.Context, id string, initialBalance decimal.Decimal) error
}

// Action describes how ReconcileAccount chose the opening balance.
type Action string

// Reconcile actions.
const (
	ActionOverridden Action = "overridden"
	ActionDerived    Action = "derived"
	ActionUnchanged  Action = "unchanged"
)

// Options tune a single-account reconciliation.
type Options struct {
	// InitialBalance, when set, is used as the opening balance as-is.
	InitialBalance *decimal.Decimal
}

// Result is the outcome of reconciling one account.
type Result struct {
	AccountID         string
	Action            Action
	InitialBalance    decimal.Decimal
	PreviousInitial   decimal.Decimal
	CalculatedBalance decimal.Decimal
	Balance           decimal.Decimal
	TransactionSum    decimal.Decimal
	TransactionCount  int
	UnsignedCount     int
}

// Drift is how far the stored balance is from InitialBalance plus the
// transaction sum. It is zero for a consistent account.
func (r *Result) Drift() decimal.Decimal {
	return r.Balance.Sub(r.CalculatedBalance)
}

// Reconciler derives and repairs account opening balances.
type Reconciler struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Reconciler backed by store.
func New(store Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:  store,
		logger: logger.With("component", "reconcile"),
		now:    time.Now,
	}
}

// ReconcileAccount picks the opening balance for one account and persists it.
//
// An explicit override always wins. Without one, an account whose opening
// balance is zero but whose balance is not gets its opening balance derived
// from its transactions; any other account keeps its current value. The
// chosen value is written back exactly once per call.
func (r *Reconciler) ReconcileAccount(ctx context.Context, accountID string, opts Options) (*Result, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, common.InvalidArgumentf("account id is required")
	}
	if opts.InitialBalance != nil {
		if err := model.CheckAmount(*opts.InitialBalance); err != nil {
			return nil, common.InvalidArgumentf("initial balance override is out of range: %v", err)
		}
	}

	account, txns, err := r.load(ctx, accountID)
	if err != nil {
		return nil, err
	}

	sum, unsigned := summarize(txns)

	result := &Result{
		AccountID:        account.ID,
		PreviousInitial:  account.InitialBalance,
		Balance:          account.Balance,
		TransactionSum:   sum,
		TransactionCount: len(txns),
		UnsignedCount:    unsigned,
	}

	switch {
	case opts.InitialBalance != nil:
		result.InitialBalance = *opts.InitialBalance
		result.Action = ActionOverridden
	case needsDerivation(account):
		result.InitialBalance = DeriveInitialBalance(*account, sum)
		result.Action = ActionDerived
	default:
		result.InitialBalance = account.InitialBalance
		result.Action = ActionUnchanged
	}
	result.CalculatedBalance = result.InitialBalance.Add(sum)

	if err := r.store.UpdateInitialBalance(ctx, account.ID, result.InitialBalance); err != nil {
		return nil, fmt.Errorf("failed to save initial balance for account %s: %w", account.ID, err)
	}

	if unsigned > 0 {
		r.logger.Warn("Transactions without a balance sign were left out of the sum",
			"account_id", account.ID,
			"count", unsigned)
	}

	r.logger.Info("Reconciled account",
		"account_id", account.ID,
		"action", result.Action,
		"initial_before", result.PreviousInitial.String(),
		"initial_after", result.InitialBalance.String(),
		"calculated_balance", result.CalculatedBalance.String(),
		"balance", result.Balance.String())

	return result, nil
}

// BatchOptions tune ReconcileAll.
type BatchOptions struct {
	// Start is called once with the number of accounts the run will visit.
	Start func(total int)
	// Progress is called after each account is processed.
	Progress func(AccountReport)
	// OwnerID limits the run to one owner's accounts. Empty means every account.
	OwnerID string
	// DryRun computes the report without writing anything.
	DryRun bool
}

// ReconcileAll runs the auto-derivation path over every matching account,
// one at a time. Accounts that are already reconciled, or that have nothing
// to derive, are skipped without a write. A failure on one account is
// recorded in its report entry and the run continues; the returned error
// joins every per-account failure.
func (r *Reconciler) ReconcileAll(ctx context.Context, opts BatchOptions) (*Report, error) {
	accounts, err := r.store.ListAccounts(ctx, service.AccountFilter{OwnerID: opts.OwnerID})
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	report := &Report{
		OwnerID:   opts.OwnerID,
		DryRun:    opts.DryRun,
		StartedAt: r.now(),
		Accounts:  make([]AccountReport, 0, len(accounts)),
	}

	r.logger.Info("Starting batch reconciliation",
		"accounts", len(accounts),
		"owner_id", opts.OwnerID,
		"dry_run", opts.DryRun)

	if opts.Start != nil {
		opts.Start(len(accounts))
	}

	var failures []error
	for i := range accounts {
		if ctxErr := ctx.Err(); ctxErr != nil {
			report.FinishedAt = r.now()
			report.Interrupted = true
			r.logger.Warn("Batch reconciliation interrupted",
				"processed", len(report.Accounts),
				"total", len(accounts))
			return report, ctxErr
		}

		entry := r.reconcileOne(ctx, accounts[i], opts.DryRun)
		if entry.Err != nil {
			failures = append(failures, fmt.Errorf("account %s: %w", entry.AccountID, entry.Err))
		}
		report.Accounts = append(report.Accounts, entry)

		if opts.Progress != nil {
			opts.Progress(entry)
		}
	}

	report.FinishedAt = r.now()

	summary := report.Summary()
	r.logger.Info("Batch reconciliation finished",
		"total", summary.Total,
		"derived", summary.Derived,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"duration", report.FinishedAt.Sub(report.StartedAt))

	return report, errors.Join(failures...)
}

func (r *Reconciler) reconcileOne(ctx context.Context, account model.Account, dryRun bool) AccountReport {
	txns, err := r.store.ListTransactions(ctx, account.ID)
	if err != nil {
		entry := newAccountReport(account)
		entry.Status = StatusFailed
		entry.Err = fmt.Errorf("failed to list transactions: %w", err)
		r.logger.Error("Failed to reconcile account", "account_id", account.ID, "error", err)
		return entry
	}

	entry := PlanAccount(account, txns)
	if entry.Status == StatusDerived && !dryRun {
		if err := r.store.UpdateInitialBalance(ctx, account.ID, entry.After); err != nil {
			entry.Status = StatusFailed
			entry.After = entry.Before
			entry.CalculatedBalance = entry.Before.Add(entry.TransactionSum)
			entry.Err = fmt.Errorf("failed to save initial balance: %w", err)
			r.logger.Error("Failed to reconcile account", "account_id", account.ID, "error", err)
			return entry
		}
	}

	r.logger.Info(entry.Summary(),
		"account_id", entry.AccountID,
		"status", entry.Status,
		"dry_run", dryRun)

	return entry
}

// needsDerivation reports whether an account looks like a legacy row whose
// opening balance was never recorded.
func needsDerivation(account *model.Account) bool {
	return account.InitialBalance.IsZero() && !account.Balance.IsZero()
}

func (r *Reconciler) load(ctx context.Context, accountID string) (*model.Account, []model.Transaction, error) {
	account, err := r.store.FindAccount(ctx, accountID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load account %s: %w", accountID, err)
	}
	if account == nil {
		return nil, nil, common.NotFoundf("account %s", accountID)
	}

	txns, err := r.store.ListTransactions(ctx, account.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list transactions for account %s: %w", account.ID, err)
	}

	return account, txns, nil
}
