package listing

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/cradle-labs/cradle-core/internal/svctest"
	"github.com/cradle-labs/cradle-core/platform/os"
	"github.com/cradle-labs/cradle-core/services/accounts"
	"github.com/cradle-labs/cradle-core/services/assetbook"
	"github.com/cradle-labs/cradle-core/services/contracts"
	"github.com/cradle-labs/cradle-core/services/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fake accounts store ---

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
	e.SetTimestamps()
	cp := *e
	f.assetBook[e.AssetID+"|"+e.AccountID] = &cp
	return nil
}

func (f *fakeAccountsStore) GetAssetBookEntry(ctx context.Context, assetID, accountID string) (*accounts.AccountAssetBook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.assetBook[assetID+"|"+accountID]
	if !ok {
		return nil, nil
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

type fakeAssetLister struct{}

func (f *fakeAssetLister) ListAssetRefs(ctx context.Context) ([]accounts.AssetRef, error) {
	return nil, nil
}

// --- fake assetbook store ---

type fakeAssetbookStore struct {
	mu     sync.Mutex
	assets map[string]*assetbook.Asset
}

func newFakeAssetbookStore() *fakeAssetbookStore {
	return &fakeAssetbookStore{assets: map[string]*assetbook.Asset{}}
}

func (f *fakeAssetbookStore) Initialize(ctx context.Context) error { return nil }
func (f *fakeAssetbookStore) Shutdown(ctx context.Context) error   { return nil }
func (f *fakeAssetbookStore) Close(ctx context.Context) error      { return nil }
func (f *fakeAssetbookStore) Health(ctx context.Context) error     { return nil }

func (f *fakeAssetbookStore) CreateAsset(ctx context.Context, a *assetbook.Asset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.GenerateID()
	a.SetTimestamps()
	cp := *a
	f.assets[a.ID] = &cp
	return nil
}

func (f *fakeAssetbookStore) GetAsset(ctx context.Context, id string) (*assetbook.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assets[id]
	if !ok {
		return nil, fmt.Errorf("asset not found: %s", id)
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAssetbookStore) GetAssetBySymbol(ctx context.Context, symbol string) (*assetbook.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.assets {
		if a.Symbol == symbol {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("asset not found for symbol: %s", symbol)
}

func (f *fakeAssetbookStore) ListAssets(ctx context.Context) ([]*assetbook.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*assetbook.Asset
	for _, a := range f.assets {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

// --- fake ledger store ---

type fakeLedgerStore struct {
	mu   sync.Mutex
	rows []*ledger.Row
}

func newFakeLedgerStore() *fakeLedgerStore { return &fakeLedgerStore{} }

func (f *fakeLedgerStore) Initialize(ctx context.Context) error { return nil }
func (f *fakeLedgerStore) Shutdown(ctx context.Context) error   { return nil }
func (f *fakeLedgerStore) Close(ctx context.Context) error      { return nil }
func (f *fakeLedgerStore) Health(ctx context.Context) error     { return nil }

func (f *fakeLedgerStore) InsertRow(ctx context.Context, row *ledger.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row.GenerateID()
	row.SetTimestamps()
	cp := *row
	f.rows = append(f.rows, &cp)
	return nil
}

func (f *fakeLedgerStore) rowsOfType(t ledger.TransactionType) []*ledger.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*ledger.Row
	for _, r := range f.rows {
		if r.TransactionType == t {
			out = append(out, r)
		}
	}
	return out
}

// --- fake listing store ---

type fakeStore struct {
	mu        sync.Mutex
	companies map[string]*Company
	listings  map[string]*Listing
}

func newFakeStore() *fakeStore {
	return &fakeStore{companies: map[string]*Company{}, listings: map[string]*Listing{}}
}

func (f *fakeStore) Initialize(ctx context.Context) error { return nil }
func (f *fakeStore) Shutdown(ctx context.Context) error   { return nil }
func (f *fakeStore) Close(ctx context.Context) error      { return nil }
func (f *fakeStore) Health(ctx context.Context) error     { return nil }

func (f *fakeStore) CreateCompany(ctx context.Context, c *Company) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.GenerateID()
	c.SetTimestamps()
	cp := *c
	f.companies[c.ID] = &cp
	return nil
}

func (f *fakeStore) GetCompany(ctx context.Context, id string) (*Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.companies[id]
	if !ok {
		return nil, fmt.Errorf("company not found: %s", id)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) CreateListing(ctx context.Context, l *Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l.GenerateID()
	l.SetTimestamps()
	cp := *l
	f.listings[l.ID] = &cp
	return nil
}

func (f *fakeStore) GetListing(ctx context.Context, id string) (*Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.listings[id]
	if !ok {
		return nil, fmt.Errorf("listing not found: %s", id)
	}
	cp := *l
	return &cp, nil
}

func (f *fakeStore) UpdateListing(ctx context.Context, l *Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *l
	f.listings[l.ID] = &cp
	return nil
}

func (f *fakeStore) ListListings(ctx context.Context) ([]*Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Listing
	for _, l := range f.listings {
		cp := *l
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeStore) ListListingsByCompany(ctx context.Context, companyID string) ([]*Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Listing
	for _, l := range f.listings {
		if l.Company == companyID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- test harness ---

type testDeps struct {
	svc           *Service
	store         *fakeStore
	accountsSvc   *accounts.Service
	accountsStore *fakeAccountsStore
	assetsSvc     *assetbook.Service
	assetsStore   *fakeAssetbookStore
	ledgerSvc     *ledger.Service
	ledgerStore   *fakeLedgerStore
}

func newTestService(t *testing.T) *testDeps {
	t.Helper()
	ctx := context.Background()

	accOS, accCleanup := svctest.New(t, accounts.ServiceID, os.CapStorage)
	t.Cleanup(accCleanup)
	accountsStore := newFakeAccountsStore()
	accountsSvc, err := accounts.NewWithStore(accOS, accountsStore, contracts.NewDisabled(), &fakeAssetLister{})
	require.NoError(t, err)
	require.NoError(t, accountsSvc.Start(ctx))
	t.Cleanup(func() { _ = accountsSvc.Stop(ctx) })

	assetOS, assetCleanup := svctest.New(t, assetbook.ServiceID, os.CapStorage)
	t.Cleanup(assetCleanup)
	assetsStore := newFakeAssetbookStore()
	assetsSvc, err := assetbook.NewWithStore(assetOS, assetsStore, contracts.NewDisabled())
	require.NoError(t, err)
	require.NoError(t, assetsSvc.Start(ctx))
	t.Cleanup(func() { _ = assetsSvc.Stop(ctx) })

	ledgerOS, ledgerCleanup := svctest.New(t, ledger.ServiceID, os.CapStorage)
	t.Cleanup(ledgerCleanup)
	ledgerStore := newFakeLedgerStore()
	ledgerSvc, err := ledger.NewWithStore(ledgerOS, ledgerStore)
	require.NoError(t, err)
	require.NoError(t, ledgerSvc.Start(ctx))
	t.Cleanup(func() { _ = ledgerSvc.Stop(ctx) })

	listingOS, listingCleanup := svctest.New(t, ServiceID, os.CapStorage)
	t.Cleanup(listingCleanup)
	store := newFakeStore()
	svc, err := NewWithStore(listingOS, store, contracts.NewDisabled(), accountsSvc, assetsSvc, ledgerSvc)
	require.NoError(t, err)
	require.NoError(t, svc.Start(ctx))
	t.Cleanup(func() { _ = svc.Stop(ctx) })

	return &testDeps{
		svc: svc, store: store,
		accountsSvc: accountsSvc, accountsStore: accountsStore,
		assetsSvc: assetsSvc, assetsStore: assetsStore,
		ledgerSvc: ledgerSvc, ledgerStore: ledgerStore,
	}
}

func createTestCompany(t *testing.T, d *testDeps) *Company {
	t.Helper()
	_, beneficiaryWallet, err := d.accountsSvc.CreateAccount(context.Background(), accounts.AccountTypeRetail, "controller-1", nil)
	require.NoError(t, err)
	company, err := d.svc.CreateCompany(context.Background(), CreateCompanyArgs{
		Name: "Acme Corp", Description: "A test issuer", BeneficiaryWallet: beneficiaryWallet.ID,
	})
	require.NoError(t, err)
	return company
}

func createTestListing(t *testing.T, d *testDeps) (*Listing, *assetbook.Asset) {
	t.Helper()
	company := createTestCompany(t, d)
	purchaseAsset, err := d.assetsSvc.CreateAsset(context.Background(), assetbook.NewAssetArgs{
		Issuer: "issuer-1", Type: assetbook.AssetTypeStableCoin, Name: "USD Coin", Symbol: "USDC", Decimals: 6,
	})
	require.NoError(t, err)

	listing, err := d.svc.CreateListing(context.Background(), CreateListingArgs{
		Name: "Acme Bond", Documents: "doc-1", Company: company.ID,
		PurchaseAsset: purchaseAsset.ID,
		PurchasePrice: decimal.NewFromFloat(1.5),
		MaxSupply:     decimal.NewFromInt(1000),
		NewListedAsset: &NewListedAsset{
			Issuer: "issuer-1", Name: "Acme Bond Token", Symbol: "ACME", Decimals: 6,
		},
	})
	require.NoError(t, err)
	return listing, purchaseAsset
}

func createTestWallet(t *testing.T, d *testDeps) *accounts.Wallet {
	t.Helper()
	_, wallet, err := d.accountsSvc.CreateAccount(context.Background(), accounts.AccountTypeRetail, "controller-1", nil)
	require.NoError(t, err)
	return wallet
}

func TestCreateCompany_PersistsBeneficiaryWallet(t *testing.T) {
	d := newTestService(t)
	company := createTestCompany(t, d)

	assert.NotEmpty(t, company.ID)
	assert.NotEmpty(t, company.BeneficiaryWallet)

	rows, err := d.store.ListListings(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCreateListing_BootstrapsTreasuryAndShadowAsset(t *testing.T) {
	d := newTestService(t)
	listing, purchaseAsset := createTestListing(t, d)

	assert.NotEmpty(t, listing.ListingContractID)
	assert.NotEmpty(t, listing.ListedAsset)
	assert.NotEmpty(t, listing.ShadowAsset)
	assert.NotEqual(t, listing.ListedAsset, listing.ShadowAsset)
	assert.Equal(t, StatusPending, listing.Status)
	assert.Equal(t, purchaseAsset.ID, listing.PurchaseWithAsset)

	treasuryWallet, err := d.accountsSvc.GetWallet(context.Background(), listing.Treasury)
	require.NoError(t, err)

	entries, err := d.accountsStore.ListAssetBookByAccount(context.Background(), treasuryWallet.AccountID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.True(t, e.Associated)
		assert.True(t, e.Kyced)
	}

	shadowAsset, err := d.assetsSvc.GetAsset(context.Background(), listing.ShadowAsset)
	require.NoError(t, err)
	assert.Equal(t, "s-ACME", shadowAsset.Symbol)
}

func TestPurchase_RecordsBuyListedRow(t *testing.T) {
	d := newTestService(t)
	listing, _ := createTestListing(t, d)
	buyer := createTestWallet(t, d)

	txID, err := d.svc.Purchase(context.Background(), buyer.ID, listing.ID, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.NotEmpty(t, txID)

	rows := d.ledgerStore.rowsOfType(ledger.TransactionBuyListed)
	require.Len(t, rows, 1)
	assert.Equal(t, buyer.Address, rows[0].FromAddress)
	assert.Equal(t, ledger.SystemParty, rows[0].ToAddress)
	assert.Equal(t, listing.ListedAsset, rows[0].Asset)

	entries, err := d.accountsStore.ListAssetBookByAccount(context.Background(), buyer.AccountID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestReturnAsset_RecordsSellListedRow(t *testing.T) {
	d := newTestService(t)
	listing, _ := createTestListing(t, d)
	seller := createTestWallet(t, d)

	_, err := d.svc.Purchase(context.Background(), seller.ID, listing.ID, decimal.NewFromInt(10))
	require.NoError(t, err)

	txID, err := d.svc.ReturnAsset(context.Background(), seller.ID, listing.ID, decimal.NewFromInt(4))
	require.NoError(t, err)
	assert.NotEmpty(t, txID)

	rows := d.ledgerStore.rowsOfType(ledger.TransactionSellListed)
	require.Len(t, rows, 1)
	assert.Equal(t, listing.ListedAsset, rows[0].Asset)
}

func TestWithdrawToBeneficiary_RecordsUntrackedFromRow(t *testing.T) {
	d := newTestService(t)
	listing, purchaseAsset := createTestListing(t, d)

	txID, err := d.svc.WithdrawToBeneficiary(context.Background(), listing.ID, decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.NotEmpty(t, txID)

	rows := d.ledgerStore.rowsOfType(ledger.TransactionListingBeneficiaryWithdraw)
	require.Len(t, rows, 1)
	assert.Equal(t, ledger.SystemParty, rows[0].FromAddress)
	assert.Equal(t, purchaseAsset.ID, rows[0].Asset)

	company, err := d.svc.GetCompany(context.Background(), listing.Company)
	require.NoError(t, err)
	beneficiaryWallet, err := d.accountsSvc.GetWallet(context.Background(), company.BeneficiaryWallet)
	require.NoError(t, err)
	assert.Equal(t, beneficiaryWallet.Address, rows[0].ToAddress)
}

func TestGetListingStats_ReadsThroughContract(t *testing.T) {
	d := newTestService(t)
	listing, _ := createTestListing(t, d)

	stats, err := d.svc.GetListingStats(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.True(t, stats.RemainingSupply.GreaterThanOrEqual(decimal.Zero))
}

func TestGetPurchaseFee_ReadsThroughContract(t *testing.T) {
	d := newTestService(t)
	listing, _ := createTestListing(t, d)

	fee, err := d.svc.GetPurchaseFee(context.Background(), listing.ID, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.True(t, fee.GreaterThanOrEqual(decimal.Zero))
}

func TestUpdateListingStatus_PersistsAndStampsOpenedAt(t *testing.T) {
	d := newTestService(t)
	listing, _ := createTestListing(t, d)

	opened, err := d.svc.UpdateListingStatus(context.Background(), listing.ID, StatusOpen)
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, opened.Status)
	require.NotNil(t, opened.OpenedAt)

	closed, err := d.svc.UpdateListingStatus(context.Background(), listing.ID, StatusClosed)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, closed.Status)
	require.NotNil(t, closed.StoppedAt)
}
