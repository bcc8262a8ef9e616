package market

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/cradle-labs/cradle-core/internal/svctest"
	"github.com/cradle-labs/cradle-core/platform/os"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	markets map[string]*Market
	series  []*MarketTimeSeries
}

func newFakeStore() *fakeStore {
	return &fakeStore{markets: map[string]*Market{}}
}

func (f *fakeStore) Initialize(ctx context.Context) error { return nil }
func (f *fakeStore) Shutdown(ctx context.Context) error   { return nil }
func (f *fakeStore) Close(ctx context.Context) error      { return nil }
func (f *fakeStore) Health(ctx context.Context) error     { return nil }

func (f *fakeStore) CreateMarket(ctx context.Context, m *Market) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.GenerateID()
	m.SetTimestamps()
	f.markets[m.ID] = m
	return nil
}

func (f *fakeStore) GetMarket(ctx context.Context, id string) (*Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.markets[id]
	if !ok {
		return nil, fmt.Errorf("market not found: %s", id)
	}
	return m, nil
}

func (f *fakeStore) ListMarkets(ctx context.Context, filter ListFilter) ([]*Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Market
	for _, m := range f.markets {
		if filter.Status != nil && m.MarketStatus != *filter.Status {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeStore) CreateMarketTimeSeries(ctx context.Context, row *MarketTimeSeries) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row.GenerateID()
	row.SetTimestamps()
	f.series = append(f.series, row)
	return nil
}

func (f *fakeStore) ListMarketTimeSeries(ctx context.Context, filter TimeSeriesFilter) ([]*MarketTimeSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*MarketTimeSeries
	for _, r := range f.series {
		if r.MarketID == filter.Market && r.Asset == filter.Asset && r.Interval == filter.Interval {
			out = append(out, r)
		}
	}
	return out, nil
}

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	svcOS, cleanup := svctest.New(t, ServiceID, os.CapStorage)
	t.Cleanup(cleanup)

	store := newFakeStore()
	svc, err := NewWithStore(svcOS, store)
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })

	return svc, store
}

func TestCreateMarket_DefaultsToActive(t *testing.T) {
	svc, _ := newTestService(t)

	m, err := svc.CreateMarket(context.Background(), CreateMarketArgs{
		Name: "USDC/ETH", AssetOne: "usdc", AssetTwo: "eth", Type: MarketTypeSpot,
	})
	require.NoError(t, err)
	assert.Equal(t, MarketStatusActive, m.MarketStatus)
}

func TestCreateMarket_RequiresBothAssets(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateMarket(context.Background(), CreateMarketArgs{Name: "bad", AssetOne: "usdc"})
	assert.Error(t, err)
}

func TestRecordAndListTimeSeries(t *testing.T) {
	svc, _ := newTestService(t)

	m, err := svc.CreateMarket(context.Background(), CreateMarketArgs{Name: "USDC/ETH", AssetOne: "usdc", AssetTwo: "eth"})
	require.NoError(t, err)

	row := &MarketTimeSeries{
		MarketID: m.ID, Asset: "eth", Interval: IntervalOneMinute,
		Open: decimal.NewFromInt(100), Close: decimal.NewFromInt(110),
		High: decimal.NewFromInt(115), Low: decimal.NewFromInt(95),
		Volume: decimal.NewFromInt(10),
	}
	require.NoError(t, svc.RecordTimeSeries(context.Background(), row))

	rows, err := svc.ListMarketTimeSeries(context.Background(), TimeSeriesFilter{Market: m.ID, Asset: "eth", Interval: IntervalOneMinute})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Close.Equal(decimal.NewFromInt(110)))
}
