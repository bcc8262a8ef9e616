package router

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cradle-labs/cradle-core/internal/svctest"
	"github.com/cradle-labs/cradle-core/platform/os"
	"github.com/cradle-labs/cradle-core/services/accounts"
	"github.com/cradle-labs/cradle-core/services/assetbook"
	"github.com/cradle-labs/cradle-core/services/contracts"
	"github.com/cradle-labs/cradle-core/services/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- minimal in-memory accounts store ---

type fakeAccountsStore struct {
	mu        sync.Mutex
	accounts  map[string]*accounts.Account
	wallets   map[string]*accounts.Wallet
	assetBook map[string]*accounts.AccountAssetBook
}

func newFakeAccountsStore() *fakeAccountsStore {
	return &fakeAccountsStore{
		accounts:  map[string]*accounts.Account{},
		wallets:   map[string]*accounts.Wallet{},
		assetBook: map[string]*accounts.AccountAssetBook{},
	}
}

func (f *fakeAccountsStore) Initialize(ctx context.Context) error { return nil }
func (f *fakeAccountsStore) Shutdown(ctx context.Context) error   { return nil }
func (f *fakeAccountsStore) Close(ctx context.Context) error      { return nil }
func (f *fakeAccountsStore) Health(ctx context.Context) error     { return nil }

func (f *fakeAccountsStore) CreateAccount(ctx context.Context, a *accounts.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.GenerateID()
	a.SetTimestamps()
	cp := *a
	f.accounts[a.ID] = &cp
	return nil
}

func (f *fakeAccountsStore) GetAccount(ctx context.Context, id string) (*accounts.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account not found: %s", id)
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAccountsStore) UpdateAccount(ctx context.Context, a *accounts.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *a
	f.accounts[a.ID] = &cp
	return nil
}

func (f *fakeAccountsStore) DeleteAccount(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.accounts, id)
	return nil
}

func (f *fakeAccountsStore) ListAccounts(ctx context.Context) ([]*accounts.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*accounts.Account
	for _, a := range f.accounts {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeAccountsStore) CreateWallet(ctx context.Context, w *accounts.Wallet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.GenerateID()
	w.SetTimestamps()
	cp := *w
	f.wallets[w.ID] = &cp
	return nil
}

func (f *fakeAccountsStore) GetWallet(ctx context.Context, id string) (*accounts.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.wallets[id]
	if !ok {
		return nil, fmt.Errorf("wallet not found: %s", id)
	}
	cp := *w
	return &cp, nil
}

func (f *fakeAccountsStore) ListWalletsByAccount(ctx context.Context, accountID string) ([]*accounts.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*accounts.Wallet
	for _, w := range f.wallets {
		if w.AccountID == accountID {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeAccountsStore) UpsertAssetBookEntry(ctx context.Context, e *accounts.AccountAssetBook) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := e.AssetID + "|" + e.AccountID
	e.GenerateID()
	e.SetTimestamps()
	cp := *e
	f.assetBook[key] = &cp
	return nil
}

func (f *fakeAccountsStore) GetAssetBookEntry(ctx context.Context, assetID, accountID string) (*accounts.AccountAssetBook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.assetBook[assetID+"|"+accountID]
	if !ok {
		return nil, fmt.Errorf("asset book entry not found")
	}
	cp := *e
	return &cp, nil
}

func (f *fakeAccountsStore) ListAssetBookByAccount(ctx context.Context, accountID string) ([]*accounts.AccountAssetBook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*accounts.AccountAssetBook
	for _, e := range f.assetBook {
		if e.AccountID == accountID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- minimal in-memory assetbook store ---

type fakeAssetBookStore struct {
	mu     sync.Mutex
	assets map[string]*assetbook.Asset
}

func newFakeAssetBookStore() *fakeAssetBookStore {
	return &fakeAssetBookStore{assets: map[string]*assetbook.Asset{}}
}

func (f *fakeAssetBookStore) Initialize(ctx context.Context) error { return nil }
func (f *fakeAssetBookStore) Shutdown(ctx context.Context) error   { return nil }
func (f *fakeAssetBookStore) Close(ctx context.Context) error      { return nil }
func (f *fakeAssetBookStore) Health(ctx context.Context) error     { return nil }

func (f *fakeAssetBookStore) CreateAsset(ctx context.Context, a *assetbook.Asset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.GenerateID()
	a.SetTimestamps()
	cp := *a
	f.assets[a.ID] = &cp
	return nil
}

func (f *fakeAssetBookStore) GetAsset(ctx context.Context, id string) (*assetbook.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assets[id]
	if !ok {
		return nil, fmt.Errorf("asset not found: %s", id)
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAssetBookStore) GetAssetBySymbol(ctx context.Context, symbol string) (*assetbook.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.assets {
		if a.Symbol == symbol {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("asset not found for symbol %s", symbol)
}

func (f *fakeAssetBookStore) ListAssets(ctx context.Context) ([]*assetbook.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*assetbook.Asset
	for _, a := range f.assets {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

// --- minimal in-memory market store ---

type fakeMarketStore struct {
	mu         sync.Mutex
	markets    map[string]*market.Market
	timeSeries []*market.MarketTimeSeries
}

func newFakeMarketStore() *fakeMarketStore {
	return &fakeMarketStore{markets: map[string]*market.Market{}}
}

func (f *fakeMarketStore) Initialize(ctx context.Context) error { return nil }
func (f *fakeMarketStore) Shutdown(ctx context.Context) error   { return nil }
func (f *fakeMarketStore) Close(ctx context.Context) error      { return nil }
func (f *fakeMarketStore) Health(ctx context.Context) error     { return nil }

func (f *fakeMarketStore) CreateMarket(ctx context.Context, m *market.Market) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.GenerateID()
	m.SetTimestamps()
	cp := *m
	f.markets[m.ID] = &cp
	return nil
}

func (f *fakeMarketStore) GetMarket(ctx context.Context, id string) (*market.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.markets[id]
	if !ok {
		return nil, fmt.Errorf("market not found: %s", id)
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMarketStore) ListMarkets(ctx context.Context, filter market.ListFilter) ([]*market.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*market.Market
	for _, m := range f.markets {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeMarketStore) CreateMarketTimeSeries(ctx context.Context, row *market.MarketTimeSeries) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row.GenerateID()
	row.SetTimestamps()
	cp := *row
	f.timeSeries = append(f.timeSeries, &cp)
	return nil
}

func (f *fakeMarketStore) ListMarketTimeSeries(ctx context.Context, filter market.TimeSeriesFilter) ([]*market.MarketTimeSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*market.MarketTimeSeries
	for _, row := range f.timeSeries {
		if row.MarketID == filter.Market && row.Asset == filter.Asset {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- harness ---

type testDeps struct {
	router    *Router
	accounts  *accounts.Service
	assetBook *assetbook.Service
	market    *market.Service
}

func newTestRouter(t *testing.T) *testDeps {
	t.Helper()
	ctx := context.Background()

	accOS, accCleanup := svctest.New(t, accounts.ServiceID, os.CapStorage)
	t.Cleanup(accCleanup)
	accSvc, err := accounts.NewWithStore(accOS, newFakeAccountsStore(), contracts.NewDisabled(), nil)
	require.NoError(t, err)
	require.NoError(t, accSvc.Start(ctx))
	t.Cleanup(func() { _ = accSvc.Stop(ctx) })

	abOS, abCleanup := svctest.New(t, assetbook.ServiceID, os.CapStorage)
	t.Cleanup(abCleanup)
	abSvc, err := assetbook.NewWithStore(abOS, newFakeAssetBookStore(), contracts.NewDisabled())
	require.NoError(t, err)
	require.NoError(t, abSvc.Start(ctx))
	t.Cleanup(func() { _ = abSvc.Stop(ctx) })

	mktOS, mktCleanup := svctest.New(t, market.ServiceID, os.CapStorage)
	t.Cleanup(mktCleanup)
	mktSvc, err := market.NewWithStore(mktOS, newFakeMarketStore())
	require.NoError(t, err)
	require.NoError(t, mktSvc.Start(ctx))
	t.Cleanup(func() { _ = mktSvc.Stop(ctx) })

	r := New(accSvc, abSvc, mktSvc, nil, nil, nil)
	return &testDeps{router: r, accounts: accSvc, assetBook: abSvc, market: mktSvc}
}

func TestDispatch_CreateAndGetAccount(t *testing.T) {
	deps := newTestRouter(t)
	ctx := context.Background()

	out, err := deps.router.Dispatch(ctx, CreateAccountAction{
		Type: accounts.AccountTypeRetail, Controller: "controller-1",
	})
	require.NoError(t, err)
	created, ok := out.(AccountsOutput)
	require.True(t, ok)
	require.NotNil(t, created.Account)
	require.NotNil(t, created.Wallet)
	assert.Equal(t, DomainAccounts, out.Domain())

	out, err = deps.router.Dispatch(ctx, GetAccountAction{AccountID: created.Account.ID})
	require.NoError(t, err)
	fetched := out.(AccountsOutput)
	assert.Equal(t, created.Account.ID, fetched.Account.ID)
}

func TestDispatch_CreateAssetThenMintAndAirdrop(t *testing.T) {
	deps := newTestRouter(t)
	ctx := context.Background()

	out, err := deps.router.Dispatch(ctx, CreateAssetAction{Args: assetbook.NewAssetArgs{
		Issuer: "issuer-1", Symbol: "USDC", Name: "USD Coin", Decimals: 6,
	}})
	require.NoError(t, err)
	created := out.(AssetBookOutput)
	require.NotNil(t, created.Asset)

	_, err = deps.router.Dispatch(ctx, MintAssetAction{AssetID: created.Asset.ID, Amount: decimal.NewFromInt(1000)})
	require.NoError(t, err)

	_, err = deps.router.Dispatch(ctx, AirdropAssetAction{
		AssetID: created.Asset.ID, TargetContract: "contract-1", Amount: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	out, err = deps.router.Dispatch(ctx, ListAssetsAction{})
	require.NoError(t, err)
	listed := out.(AssetBookOutput)
	assert.Len(t, listed.Assets, 1)
}

func TestDispatch_MarketsAndTimeSeries(t *testing.T) {
	deps := newTestRouter(t)
	ctx := context.Background()

	out, err := deps.router.Dispatch(ctx, CreateMarketAction{Args: market.CreateMarketArgs{
		Name: "BTC/USD", AssetOne: "btc", AssetTwo: "usd",
	}})
	require.NoError(t, err)
	created := out.(MarketsOutput)
	require.NotNil(t, created.Market)

	out, err = deps.router.Dispatch(ctx, GetMarketAction{MarketID: created.Market.ID})
	require.NoError(t, err)
	assert.Equal(t, created.Market.ID, out.(MarketsOutput).Market.ID)

	out, err = deps.router.Dispatch(ctx, ListMarketsAction{})
	require.NoError(t, err)
	assert.Len(t, out.(MarketsOutput).Markets, 1)

	require.NoError(t, deps.market.RecordTimeSeries(ctx, &market.MarketTimeSeries{
		MarketID: created.Market.ID, Asset: "btc", Interval: market.IntervalOneDay,
		StartTime: time.Now().Add(-24 * time.Hour), EndTime: time.Now(),
	}))

	out, err = deps.router.Dispatch(ctx, ListMarketTimeSeriesAction{Filter: market.TimeSeriesFilter{
		Market: created.Market.ID, Asset: "btc",
	}})
	require.NoError(t, err)
	assert.Len(t, out.(MarketTimeSeriesOutput).Rows, 1)
}

type unregisteredAction struct{}

func (unregisteredAction) action()        {}
func (unregisteredAction) Domain() Domain { return Domain("unknown") }

func TestDispatch_UnhandledActionReturnsValidationError(t *testing.T) {
	deps := newTestRouter(t)
	_, err := deps.router.Dispatch(context.Background(), unregisteredAction{})
	require.Error(t, err)
}
