package market

import (
	"context"
	"fmt"
	"time"

	"github.com/cradle-labs/cradle-core/services/base"
)

// ListFilter narrows ListMarkets results.
type ListFilter struct {
	Status *MarketStatus
	Type   *MarketType
}

// TimeSeriesFilter narrows ListMarketTimeSeries results.
type TimeSeriesFilter struct {
	Market   string
	Asset    string
	Interval TimeSeriesInterval
	Start    time.Time
	End      time.Time
}

// StoreInterface defines the storage surface the market registries depend on.
type StoreInterface interface {
	base.Store
	CreateMarket(ctx context.Context, m *Market) error
	GetMarket(ctx context.Context, id string) (*Market, error)
	ListMarkets(ctx context.Context, filter ListFilter) ([]*Market, error)

	CreateMarketTimeSeries(ctx context.Context, row *MarketTimeSeries) error
	ListMarketTimeSeries(ctx context.Context, filter TimeSeriesFilter) ([]*MarketTimeSeries, error)
}

// Store persists markets and time series bars via Supabase PostgREST.
type Store struct {
	markets    *base.SupabaseStore[*Market]
	timeSeries *base.SupabaseStore[*MarketTimeSeries]
	ready      bool
}

// NewStore creates a store using the default Supabase configuration.
func NewStore() *Store {
	return NewStoreWithConfig(base.DefaultSupabaseConfig())
}

// NewStoreWithConfig creates a store with explicit Supabase configuration.
func NewStoreWithConfig(config base.SupabaseConfig) *Store {
	return &Store{
		markets:    base.NewSupabaseStore[*Market](config, "markets"),
		timeSeries: base.NewSupabaseStore[*MarketTimeSeries](config, "markets_time_series"),
	}
}

func (s *Store) Initialize(ctx context.Context) error {
	if err := s.markets.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize markets store: %w", err)
	}
	if err := s.timeSeries.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize markets_time_series store: %w", err)
	}
	s.ready = true
	return nil
}

func (s *Store) Shutdown(ctx context.Context) error { return s.Close(ctx) }

func (s *Store) Close(ctx context.Context) error {
	s.markets.Close(ctx)
	s.timeSeries.Close(ctx)
	s.ready = false
	return nil
}

func (s *Store) Health(ctx context.Context) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	return s.markets.Health(ctx)
}

func (s *Store) CreateMarket(ctx context.Context, m *Market) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	m.GenerateID()
	m.SetTimestamps()
	return s.markets.Create(ctx, m)
}

func (s *Store) GetMarket(ctx context.Context, id string) (*Market, error) {
	if !s.ready {
		return nil, fmt.Errorf("store not ready")
	}
	return s.markets.Get(ctx, id)
}

func (s *Store) ListMarkets(ctx context.Context, filter ListFilter) ([]*Market, error) {
	if !s.ready {
		return nil, fmt.Errorf("store not ready")
	}
	var clauses string
	if filter.Status != nil {
		clauses += "market_status=eq." + string(*filter.Status) + "&"
	}
	if filter.Type != nil {
		clauses += "market_type=eq." + string(*filter.Type) + "&"
	}
	if clauses == "" {
		return s.markets.List(ctx)
	}
	return s.markets.ListWithFilter(ctx, clauses[:len(clauses)-1])
}

func (s *Store) CreateMarketTimeSeries(ctx context.Context, row *MarketTimeSeries) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	row.GenerateID()
	row.SetTimestamps()
	return s.timeSeries.Create(ctx, row)
}

func (s *Store) ListMarketTimeSeries(ctx context.Context, filter TimeSeriesFilter) ([]*MarketTimeSeries, error) {
	if !s.ready {
		return nil, fmt.Errorf("store not ready")
	}
	clauses := fmt.Sprintf("market_id=eq.%s&asset=eq.%s&interval=eq.%s", filter.Market, filter.Asset, filter.Interval)
	if !filter.Start.IsZero() {
		clauses += "&start_time=gte." + filter.Start.UTC().Format(time.RFC3339)
	}
	if !filter.End.IsZero() {
		clauses += "&end_time=lte." + filter.End.UTC().Format(time.RFC3339)
	}
	return s.timeSeries.ListWithFilter(ctx, clauses)
}
