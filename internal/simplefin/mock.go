package simplefin

import (
	"context"
	"time"
)

// MockClient is a Fetcher for tests.
type MockClient struct {
	GetAccountsFn func(ctx context.Context, startDate, endDate time.Time) ([]Account, error)
	Accounts      []Account
	Calls         int
}

// GetAccounts implements Fetcher.
func (m *MockClient) GetAccounts(ctx context.Context, startDate, endDate time.Time) ([]Account, error) {
	m.Calls++
	if m.GetAccountsFn != nil {
		return m.GetAccountsFn(ctx, startDate, endDate)
	}
	return m.Accounts, nil
}

var _ Fetcher = (*MockClient)(nil)
