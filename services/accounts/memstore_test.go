package accounts

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// fakeStore is a minimal in-memory StoreInterface used by accounts' own
// tests, so they exercise service logic without a live Supabase endpoint.
type fakeStore struct {
	mu        sync.Mutex
	accounts  map[string]*Account
	wallets   map[string]*Wallet
	assetBook map[string]*AccountAssetBook
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:  map[string]*Account{},
		wallets:   map[string]*Wallet{},
		assetBook: map[string]*AccountAssetBook{},
	}
}

func (f *fakeStore) Initialize(ctx context.Context) error { return nil }
func (f *fakeStore) Shutdown(ctx context.Context) error   { return nil }
func (f *fakeStore) Close(ctx context.Context) error      { return nil }
func (f *fakeStore) Health(ctx context.Context) error     { return nil }

func (f *fakeStore) CreateAccount(ctx context.Context, account *Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	account.GenerateID()
	account.SetTimestamps()
	f.accounts[account.ID] = account
	return nil
}

func (f *fakeStore) GetAccount(ctx context.Context, id string) (*Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account not found: %s", id)
	}
	return a, nil
}

func (f *fakeStore) UpdateAccount(ctx context.Context, account *Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[account.ID]; !ok {
		return fmt.Errorf("account not found: %s", account.ID)
	}
	f.accounts[account.ID] = account
	return nil
}

func (f *fakeStore) DeleteAccount(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.accounts, id)
	return nil
}

func (f *fakeStore) ListAccounts(ctx context.Context) ([]*Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Account, 0, len(f.accounts))
	for _, a := range f.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeStore) CreateWallet(ctx context.Context, wallet *Wallet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	wallet.GenerateID()
	wallet.SetTimestamps()
	f.wallets[wallet.ID] = wallet
	return nil
}

func (f *fakeStore) GetWallet(ctx context.Context, id string) (*Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.wallets[id]
	if !ok {
		return nil, fmt.Errorf("wallet not found: %s", id)
	}
	return w, nil
}

func (f *fakeStore) ListWalletsByAccount(ctx context.Context, accountID string) ([]*Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Wallet
	for _, w := range f.wallets {
		if w.AccountID == accountID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertAssetBookEntry(ctx context.Context, entry *AccountAssetBook) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.SetTimestamps()
	key := entry.AssetID + "|" + entry.AccountID
	f.assetBook[key] = entry
	return nil
}

func (f *fakeStore) GetAssetBookEntry(ctx context.Context, assetID, accountID string) (*AccountAssetBook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.assetBook[assetID+"|"+accountID], nil
}

func (f *fakeStore) ListAssetBookByAccount(ctx context.Context, accountID string) ([]*AccountAssetBook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*AccountAssetBook
	for _, e := range f.assetBook {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out, nil
}

// fakeAssetLister is a static AssetLister for tests.
type fakeAssetLister struct {
	refs []AssetRef
}

func (f *fakeAssetLister) ListAssetRefs(ctx context.Context) ([]AssetRef, error) {
	return f.refs, nil
}
