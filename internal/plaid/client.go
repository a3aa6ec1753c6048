// Package plaid syncs linked bank accounts and transactions from the Plaid API.
package plaid

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/plaid/plaid-go/v20/plaid"
	"github.com/shopspring/decimal"
)

// Plaid's max page size for /transactions/get.
const pageSize = int32(500)

// Config holds Plaid API configuration.
type Config struct {
	ClientID    string
	Secret      string
	Environment string // sandbox or production
	AccessToken string
}

// Validate ensures all required fields are present.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("%w: plaid client ID is required", common.ErrMissingConfig)
	}
	if c.Secret == "" {
		return fmt.Errorf("%w: plaid secret is required", common.ErrMissingConfig)
	}
	if c.AccessToken == "" {
		return fmt.Errorf("%w: plaid access token is required", common.ErrMissingConfig)
	}
	if c.Environment == "" {
		return fmt.Errorf("%w: plaid environment is required", common.ErrMissingConfig)
	}
	if c.Environment != "sandbox" && c.Environment != "production" {
		return fmt.Errorf("%w: invalid Plaid environment %q, must be sandbox or production", common.ErrInvalidConfig, c.Environment)
	}
	return nil
}

// Client implements Fetcher against the Plaid API.
type Client struct {
	client      *plaid.APIClient
	logger      *slog.Logger
	retryOpts   *service.RetryOptions
	accessToken string
}

// NewClient creates a new Plaid client with the given configuration.
func NewClient(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)

	switch cfg.Environment {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	}

	retryOpts := common.DefaultRetryOptions()
	return &Client{
		client:      plaid.NewAPIClient(configuration),
		accessToken: cfg.AccessToken,
		logger:      slog.Default().With("component", "plaid"),
		retryOpts:   &retryOpts,
	}, nil
}

// GetAccounts fetches every account on the linked item with its current balance.
func (c *Client) GetAccounts(ctx context.Context) ([]Account, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}

	c.logger.Info("Fetching accounts from Plaid")

	var accounts []plaid.AccountBase
	err := c.call(ctx, "accounts", func() error {
		request := plaid.NewAccountsGetRequest(c.accessToken)
		resp, _, err := c.client.PlaidApi.AccountsGet(ctx).AccountsGetRequest(*request).Execute()
		if err != nil {
			return err
		}
		accounts = resp.GetAccounts()
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]Account, 0, len(accounts))
	for i := range accounts {
		out = append(out, mapAccount(accounts[i]))
	}

	c.logger.Info("Fetched accounts", "count", len(out))
	return out, nil
}

// GetTransactions fetches posted transactions within the specified date
// range, following Plaid's offset pagination.
func (c *Client) GetTransactions(ctx context.Context, startDate, endDate time.Time) ([]model.Transaction, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}
	if startDate.After(endDate) {
		return nil, fmt.Errorf("%w: start date must be before end date", common.ErrInvalidArgument)
	}

	c.logger.Info("Fetching transactions from Plaid",
		"start_date", startDate.Format(model.DateLayout),
		"end_date", endDate.Format(model.DateLayout))

	var all []plaid.Transaction
	offset := int32(0)
	for {
		var page []plaid.Transaction
		var total int32

		err := c.call(ctx, "transactions", func() error {
			request := plaid.NewTransactionsGetRequest(
				c.accessToken,
				startDate.Format(model.DateLayout),
				endDate.Format(model.DateLayout),
			)
			request.SetOptions(plaid.TransactionsGetRequestOptions{
				Count:  plaid.PtrInt32(pageSize),
				Offset: plaid.PtrInt32(offset),
			})

			resp, _, err := c.client.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*request).Execute()
			if err != nil {
				return err
			}
			page = resp.GetTransactions()
			total = resp.GetTotalTransactions()
			return nil
		})
		if err != nil {
			return nil, err
		}

		all = append(all, page...)
		c.logger.Debug("Fetched transaction batch",
			"count", len(page),
			"offset", offset,
			"total", total)

		if len(page) < int(pageSize) || int32(len(all)) >= total {
			break
		}
		offset += pageSize
	}

	transactions := make([]model.Transaction, 0, len(all))
	skipped := 0
	for i := range all {
		txn, ok := c.mapTransaction(all[i])
		if !ok {
			skipped++
			continue
		}
		transactions = append(transactions, txn)
	}

	c.logger.Info("Fetched all transactions",
		"count", len(transactions),
		"skipped", skipped)

	return transactions, nil
}

// call runs one API request with retries, turning rate limits into
// retryable errors and other API errors into permanent ones.
func (c *Client) call(ctx context.Context, what string, fn func() error) error {
	return common.WithRetry(ctx, func() error {
		err := fn()
		if err == nil {
			return nil
		}

		if plaidError := extractPlaidError(err); plaidError != nil {
			if plaidError.ErrorCode == "RATE_LIMIT_EXCEEDED" {
				c.logger.Warn("Rate limit hit, will retry", "error", plaidError.ErrorMessage)
				return &common.RetryableError{Err: fmt.Errorf("%w: %s", common.ErrPlaidRateLimit, plaidError.ErrorMessage), Retryable: true}
			}
			return common.Permanent(fmt.Errorf("%w: plaid API error: %s - %s",
				common.ErrPlaidConnection, plaidError.ErrorCode, plaidError.ErrorMessage))
		}
		return fmt.Errorf("%w: failed to fetch %s: %w", common.ErrPlaidConnection, what, err)
	}, *c.retryOpts)
}

// mapTransaction converts a Plaid transaction to the ledger model. Pending
// transactions are skipped; they are replaced by a posted one later.
func (c *Client) mapTransaction(pt plaid.Transaction) (model.Transaction, bool) {
	if pt.GetPending() {
		return model.Transaction{}, false
	}

	date, err := time.Parse(model.DateLayout, pt.GetDate())
	if err != nil {
		c.logger.Error("Failed to parse transaction date", "date", pt.GetDate(), "error", err)
		return model.Transaction{}, false
	}

	description := strings.TrimSpace(pt.GetMerchantName())
	if description == "" {
		description = strings.TrimSpace(pt.GetName())
	}

	// Plaid amounts are positive for money leaving the account.
	amount := toDecimal(pt.GetAmount())
	txnType := model.TypeExpense
	if amount.IsNegative() {
		txnType = model.TypeIncome
	}

	return model.Transaction{
		ExternalID:  pt.GetTransactionId(),
		AccountID:   pt.GetAccountId(),
		Date:        date,
		Description: description,
		Amount:      amount.Abs(),
		Type:        txnType,
	}, true
}

func mapAccount(a plaid.AccountBase) Account {
	balances := a.GetBalances()
	currency := strings.ToUpper(balances.GetIsoCurrencyCode())
	if currency == "" {
		currency = "USD"
	}

	balance := toDecimal(balances.GetCurrent())
	accountType := mapAccountType(string(a.GetType()), string(a.GetSubtype()))
	if accountType == model.AccountTypeCreditCard {
		// Plaid reports credit balances as the amount owed.
		balance = balance.Neg()
	}

	return Account{
		ID:             a.GetAccountId(),
		Name:           a.GetName(),
		Mask:           a.GetMask(),
		Currency:       currency,
		Type:           accountType,
		CurrentBalance: balance,
	}
}

func mapAccountType(plaidType, subtype string) model.AccountType {
	switch plaidType {
	case "credit":
		return model.AccountTypeCreditCard
	case "investment", "brokerage":
		return model.AccountTypeInvestment
	}
	switch subtype {
	case "savings", "money market", "cd", "hsa":
		return model.AccountTypeSavings
	}
	return model.AccountTypeChecking
}

// Plaid sends amounts as JSON numbers; cents are all that is meaningful.
func toDecimal(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}

// extractPlaidError attempts to extract a Plaid error from a generic error.
func extractPlaidError(err error) *plaid.PlaidError {
	plaidErr, convErr := plaid.ToPlaidError(err)
	if convErr != nil {
		return nil
	}
	return &plaidErr
}

// Ensure Client implements Fetcher interface.
var _ Fetcher = (*Client)(nil)
