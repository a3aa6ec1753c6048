package reconcile

import (
	"context"
	"sort"
	"sync"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/shopspring/decimal"
)

// fakeStore is an in-memory Store with failure hooks and write tracking.
type fakeStore struct {
	accounts     map[string]*model.Account
	transactions map[string][]model.Transaction

	FindErr   error
	ListErr   error
	TxnErr    map[string]error
	UpdateErr map[string]error

	Updates []updateCall
	mu      sync.Mutex
}

type updateCall struct {
	AccountID      string
	InitialBalance decimal.Decimal
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:     make(map[string]*model.Account),
		transactions: make(map[string][]model.Transaction),
		TxnErr:       make(map[string]error),
		UpdateErr:    make(map[string]error),
	}
}

func (f *fakeStore) addAccount(a model.Account, txns ...model.Transaction) {
	acct := a
	f.accounts[a.ID] = &acct
	for i := range txns {
		txns[i].AccountID = a.ID
	}
	f.transactions[a.ID] = append(f.transactions[a.ID], txns...)
}

func (f *fakeStore) FindAccount(_ context.Context, id string) (*model.Account, error) {
	if f.FindErr != nil {
		return nil, f.FindErr
	}
	a, ok := f.accounts[id]
	if !ok {
		return nil, common.NotFoundf("account %s", id)
	}
	acct := *a
	return &acct, nil
}

func (f *fakeStore) ListAccounts(_ context.Context, filter service.AccountFilter) ([]model.Account, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	out := make([]model.Account, 0, len(f.accounts))
	for _, a := range f.accounts {
		if filter.OwnerID != "" && a.OwnerID != filter.OwnerID {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) ListTransactions(_ context.Context, accountID string) ([]model.Transaction, error) {
	if err := f.TxnErr[accountID]; err != nil {
		return nil, err
	}
	txns := append([]model.Transaction(nil), f.transactions[accountID]...)
	sort.SliceStable(txns, func(i, j int) bool { return txns[i].Date.Before(txns[j].Date) })
	return txns, nil
}

func (f *fakeStore) UpdateInitialBalance(_ context.Context, id string, initialBalance decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Updates = append(f.Updates, updateCall{AccountID: id, InitialBalance: initialBalance})
	if err := f.UpdateErr[id]; err != nil {
		return err
	}
	a, ok := f.accounts[id]
	if !ok {
		return common.NotFoundf("account %s", id)
	}
	a.InitialBalance = initialBalance
	return nil
}
