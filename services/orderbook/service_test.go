package orderbook

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
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu     sync.Mutex
	orders map[string]*Order
	trades map[string]*Trade
	// matches is returned verbatim for whichever order MatchingOrders is
	// asked about next, regardless of the requested taker id.
	matches []matchCandidate
}

func newFakeStore() *fakeStore {
	return &fakeStore{orders: map[string]*Order{}, trades: map[string]*Trade{}}
}

func (f *fakeStore) Initialize(ctx context.Context) error { return nil }
func (f *fakeStore) Shutdown(ctx context.Context) error   { return nil }
func (f *fakeStore) Close(ctx context.Context) error      { return nil }
func (f *fakeStore) Health(ctx context.Context) error     { return nil }

func (f *fakeStore) CreateOrder(ctx context.Context, order *Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	order.GenerateID()
	order.SetTimestamps()
	cp := *order
	f.orders[order.ID] = &cp
	return nil
}

func (f *fakeStore) GetOrder(ctx context.Context, id string) (*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("order not found: %s", id)
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) ListOrders(ctx context.Context, filter OrderFilter) ([]*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Order
	for _, o := range f.orders {
		if filter.Wallet != "" && o.Wallet != filter.Wallet {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeStore) UpdateOrderFill(ctx context.Context, id string, expectedFilledBid, expectedFilledAsk decimal.Decimal, order *Order) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.orders[id]
	if !ok {
		return false, fmt.Errorf("order not found: %s", id)
	}
	if !existing.FilledBidAmount.Equal(expectedFilledBid) || !existing.FilledAskAmount.Equal(expectedFilledAsk) {
		return false, nil
	}
	cp := *order
	f.orders[id] = &cp
	return true, nil
}

func (f *fakeStore) UpdateOrderStatus(ctx context.Context, id string, order *Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *order
	f.orders[id] = &cp
	return nil
}

func (f *fakeStore) CreateTrade(ctx context.Context, trade *Trade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	trade.GenerateID()
	trade.SetTimestamps()
	trade.SettlementStatus = SettlementMatched
	cp := *trade
	f.trades[trade.ID] = &cp
	return nil
}

func (f *fakeStore) ListMatchedTradesForTaker(ctx context.Context, takerOrderID string) ([]*Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Trade
	for _, t := range f.trades {
		if t.TakerOrderID == takerOrderID && t.SettlementStatus == SettlementMatched {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) SettleTrade(ctx context.Context, id string, txID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trades[id]
	if !ok {
		return fmt.Errorf("trade not found: %s", id)
	}
	t.SettlementStatus = SettlementSettled
	t.SettlementTx = txID
	return nil
}

func (f *fakeStore) MatchingOrders(ctx context.Context, takerOrderID string) ([]matchCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.matches, nil
}

type fakeWallets struct{ wallets map[string]*accounts.Wallet }

func (f *fakeWallets) GetWallet(ctx context.Context, id string) (*accounts.Wallet, error) {
	w, ok := f.wallets[id]
	if !ok {
		return nil, fmt.Errorf("wallet not found: %s", id)
	}
	return w, nil
}

type fakeAssets struct{ assets map[string]*assetbook.Asset }

func (f *fakeAssets) GetAsset(ctx context.Context, id string) (*assetbook.Asset, error) {
	a, ok := f.assets[id]
	if !ok {
		return nil, fmt.Errorf("asset not found: %s", id)
	}
	return a, nil
}

func newTestService(t *testing.T) (*Service, *fakeStore, *fakeWallets, *fakeAssets) {
	t.Helper()
	svcOS, cleanup := svctest.New(t, ServiceID, os.CapStorage)
	t.Cleanup(cleanup)

	store := newFakeStore()
	wallets := &fakeWallets{wallets: map[string]*accounts.Wallet{
		"wallet-taker": {ContractID: "contract-taker", Address: "0xtaker"},
		"wallet-maker": {ContractID: "contract-maker", Address: "0xmaker"},
	}}
	assets := &fakeAssets{assets: map[string]*assetbook.Asset{
		"USDC": {Token: "token-usdc"},
		"ETH":  {Token: "token-eth"},
	}}
	assets.assets["USDC"].ID, assets.assets["ETH"].ID = "USDC", "ETH"
	wallets.wallets["wallet-taker"].ID = "wallet-taker"
	wallets.wallets["wallet-maker"].ID = "wallet-maker"

	svc, err := NewWithStore(svcOS, store, contracts.NewDisabled(), wallets, assets, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })

	return svc, store, wallets, assets
}

func TestPlaceOrder_NoMatchStaysOpen(t *testing.T) {
	svc, store, _, _ := newTestService(t)

	result, err := svc.PlaceOrder(context.Background(), NewOrderArgs{
		Wallet: "wallet-taker", MarketID: "m1", BidAsset: "USDC", AskAsset: "ETH",
		BidAmount: decimal.NewFromInt(100), AskAmount: decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	assert.Equal(t, OrderFillStatusPartial, result.Status)
	assert.True(t, result.BidAmountFilled.IsZero())

	order, err := store.GetOrder(context.Background(), result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusOpen, order.Status)
}

func TestPlaceOrder_FullMatchCloses(t *testing.T) {
	svc, store, _, _ := newTestService(t)

	maker := &Order{Wallet: "wallet-maker", MarketID: "m1", BidAsset: "ETH", AskAsset: "USDC",
		BidAmount: decimal.NewFromInt(10), AskAmount: decimal.NewFromInt(100), Status: OrderStatusOpen}
	require.NoError(t, store.CreateOrder(context.Background(), maker))

	store.matches = []matchCandidate{{
		Order:          maker,
		RemainingBid:   maker.BidAmount,
		RemainingAsk:   maker.AskAmount,
		ExecutionPrice: decimal.NewFromFloat(10),
	}}

	result, err := svc.PlaceOrder(context.Background(), NewOrderArgs{
		Wallet: "wallet-taker", MarketID: "m1", BidAsset: "USDC", AskAsset: "ETH",
		BidAmount: decimal.NewFromInt(100), AskAmount: decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	assert.Equal(t, OrderFillStatusFilled, result.Status)
	assert.Len(t, result.MatchedTradeIDs, 1)

	order, err := store.GetOrder(context.Background(), result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusClosed, order.Status)
	assert.NotNil(t, order.FilledAt)
}

func TestPlaceOrder_FillOrKillCancelsOnNoMatch(t *testing.T) {
	svc, store, _, _ := newTestService(t)

	result, err := svc.PlaceOrder(context.Background(), NewOrderArgs{
		Wallet: "wallet-taker", MarketID: "m1", BidAsset: "USDC", AskAsset: "ETH",
		BidAmount: decimal.NewFromInt(100), AskAmount: decimal.NewFromInt(10), Mode: FillModeFillOrKill,
	})
	require.NoError(t, err)
	assert.Equal(t, OrderFillStatusCancelled, result.Status)

	order, err := store.GetOrder(context.Background(), result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusCancelled, order.Status)
}

func TestCancelOrder_UnlocksBidSideResidual(t *testing.T) {
	svc, store, _, _ := newTestService(t)

	order := &Order{Wallet: "wallet-taker", MarketID: "m1", BidAsset: "USDC", AskAsset: "ETH",
		BidAmount: decimal.NewFromInt(100), AskAmount: decimal.NewFromInt(10),
		FilledBidAmount: decimal.NewFromInt(40), Status: OrderStatusOpen}
	require.NoError(t, store.CreateOrder(context.Background(), order))

	require.NoError(t, svc.CancelOrder(context.Background(), order.ID))

	updated, err := store.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusCancelled, updated.Status)
}

func TestGetOrders_FiltersByWallet(t *testing.T) {
	svc, store, _, _ := newTestService(t)

	require.NoError(t, store.CreateOrder(context.Background(), &Order{Wallet: "wallet-taker", BidAsset: "USDC", AskAsset: "ETH"}))
	require.NoError(t, store.CreateOrder(context.Background(), &Order{Wallet: "wallet-maker", BidAsset: "USDC", AskAsset: "ETH"}))

	orders, err := svc.GetOrders(context.Background(), OrderFilter{Wallet: "wallet-taker"})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "wallet-taker", orders[0].Wallet)
}
