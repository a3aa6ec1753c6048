// Package simplefin syncs accounts and transactions from a SimpleFIN Bridge.
package simplefin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/shopspring/decimal"
)

// Account is one bridge account with the transactions posted in the
// requested window. Transactions carry the bridge account id in AccountID.
type Account struct {
	BalanceDate  time.Time
	Balance      decimal.Decimal
	ID           string
	Name         string
	Org          string
	Currency     string
	Type         model.AccountType
	Transactions []model.Transaction
}

// ExternalID is the key imported accounts are matched on.
func (a *Account) ExternalID() string {
	return "simplefin:" + a.ID
}

// DisplayName prefixes the institution when the bridge reports one.
func (a *Account) DisplayName() string {
	if a.Org == "" {
		return a.Name
	}
	return a.Org + " " + a.Name
}

// Fetcher pulls accounts with their transactions.
type Fetcher interface {
	GetAccounts(ctx context.Context, startDate, endDate time.Time) ([]Account, error)
}

type accountSet struct {
	Errors   []string      `json:"errors"`
	Accounts []accountJSON `json:"accounts"`
}

type accountJSON struct {
	Org          orgJSON           `json:"org"`
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Currency     string            `json:"currency"`
	Balance      string            `json:"balance"`
	Transactions []transactionJSON `json:"transactions"`
	BalanceDate  int64             `json:"balance-date"`
}

type orgJSON struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

type transactionJSON struct {
	ID          string `json:"id"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Payee       string `json:"payee"`
	Posted      int64  `json:"posted"`
	Pending     bool   `json:"pending"`
}

// Client implements Fetcher against a claimed access URL.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	retryOpts  service.RetryOptions
	accessURL  string
}

// NewClient creates a client for accessURL, which carries its own
// credentials as URL userinfo.
func NewClient(accessURL string, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(accessURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid SimpleFIN access URL", common.ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		accessURL:  strings.TrimSuffix(accessURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With("component", "simplefin"),
		retryOpts:  common.DefaultRetryOptions(),
	}, nil
}

// GetAccounts fetches every account and the posted transactions between
// startDate and endDate inclusive. Pending transactions are skipped.
func (c *Client) GetAccounts(ctx context.Context, startDate, endDate time.Time) ([]Account, error) {
	if endDate.Before(startDate) {
		return nil, common.InvalidArgumentf("end date %s is before start date %s",
			endDate.Format(model.DateLayout), startDate.Format(model.DateLayout))
	}

	u, err := url.Parse(c.accessURL + "/accounts")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("start-date", strconv.FormatInt(startDate.Unix(), 10))
	// end-date is exclusive.
	q.Set("end-date", strconv.FormatInt(endDate.AddDate(0, 0, 1).Unix(), 10))
	u.RawQuery = q.Encode()

	c.logger.Debug("Requesting SimpleFIN accounts",
		"start_date", startDate.Format(model.DateLayout),
		"end_date", endDate.Format(model.DateLayout))

	var set accountSet
	err = common.WithRetry(ctx, func() error {
		return c.get(ctx, u.String(), &set)
	}, c.retryOpts)
	if err != nil {
		return nil, err
	}

	for _, msg := range set.Errors {
		c.logger.Warn("SimpleFIN bridge reported a problem", "message", msg)
	}

	accounts := make([]Account, 0, len(set.Accounts))
	for i := range set.Accounts {
		account, err := c.mapAccount(&set.Accounts[i], startDate, endDate)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	c.logger.Info("Fetched SimpleFIN accounts", "count", len(accounts))
	return accounts, nil
}

func (c *Client) get(ctx context.Context, target string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return common.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrSimpleFINConnection, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", common.ErrSimpleFINConnection, common.ErrRateLimit)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: bridge returned %d", common.ErrSimpleFINConnection, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return common.Permanent(fmt.Errorf("%w: bridge returned %d: %s",
			common.ErrSimpleFINConnection, resp.StatusCode, strings.TrimSpace(string(body))))
	}

	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return common.Permanent(fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

func (c *Client) mapAccount(a *accountJSON, startDate, endDate time.Time) (Account, error) {
	balance, err := decimal.NewFromString(a.Balance)
	if err != nil {
		return Account{}, fmt.Errorf("account %s has invalid balance %q: %w", a.ID, a.Balance, err)
	}

	currency := strings.ToUpper(strings.TrimSpace(a.Currency))
	if len(currency) != 3 {
		// Custom currencies are reported as URLs.
		currency = "USD"
	}

	account := Account{
		ID:       a.ID,
		Name:     strings.TrimSpace(a.Name),
		Org:      strings.TrimSpace(a.Org.Name),
		Currency: currency,
		Balance:  balance,
		Type:     guessAccountType(a.Name),
	}
	if a.BalanceDate > 0 {
		account.BalanceDate = time.Unix(a.BalanceDate, 0).UTC()
	}

	first := model.TruncateToDate(startDate)
	last := model.TruncateToDate(endDate)
	for _, tx := range a.Transactions {
		if tx.Pending || tx.Posted == 0 {
			continue
		}
		date := model.TruncateToDate(time.Unix(tx.Posted, 0).UTC())
		if date.Before(first) || date.After(last) {
			continue
		}

		amount, err := decimal.NewFromString(tx.Amount)
		if err != nil {
			return Account{}, fmt.Errorf("transaction %s has invalid amount %q: %w", tx.ID, tx.Amount, err)
		}

		// Negative amounts leave the account.
		txnType := model.TypeIncome
		if amount.IsNegative() {
			txnType = model.TypeExpense
		}

		description := strings.TrimSpace(tx.Payee)
		if description == "" {
			description = strings.TrimSpace(tx.Description)
		}

		account.Transactions = append(account.Transactions, model.Transaction{
			ExternalID:  tx.ID,
			AccountID:   a.ID,
			Date:        date,
			Description: description,
			Amount:      amount.Abs(),
			Type:        txnType,
		})
	}
	return account, nil
}

// SimpleFIN has no account type field, so the name is the only hint.
func guessAccountType(name string) model.AccountType {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "credit") || strings.Contains(lower, "card"):
		return model.AccountTypeCreditCard
	case strings.Contains(lower, "saving") || strings.Contains(lower, "money market"):
		return model.AccountTypeSavings
	case strings.Contains(lower, "brokerage") || strings.Contains(lower, "ira") ||
		strings.Contains(lower, "401k") || strings.Contains(lower, "invest"):
		return model.AccountTypeInvestment
	default:
		return model.AccountTypeChecking
	}
}

var _ Fetcher = (*Client)(nil)
