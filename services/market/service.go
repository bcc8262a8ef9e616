package market

import (
	"context"
	"time"

	"github.com/cradle-labs/cradle-core/internal/errs"
	"github.com/cradle-labs/cradle-core/platform/os"
	"github.com/cradle-labs/cradle-core/services/base"
)

const (
	ServiceID   = "market"
	ServiceName = "Market Registry Service"
	Version     = "1.0.0"
)

// Manifest returns the service manifest.
func Manifest() *os.LegacyManifest {
	return &os.LegacyManifest{
		ServiceID:   ServiceID,
		Version:     Version,
		Description: "Market and market time series registries",
		RequiredCapabilities: []os.Capability{
			os.CapStorage,
		},
		OptionalCapabilities: []os.Capability{
			os.CapDatabase,
			os.CapDatabaseWrite,
			os.CapMetrics,
			os.CapCache,
		},
		ResourceLimits: os.ResourceLimits{
			MaxMemory:  32 * 1024 * 1024,
			MaxCPUTime: 5 * time.Second,
		},
	}
}

// CreateMarketArgs describes a new trading pair.
type CreateMarketArgs struct {
	Name             string
	Description      string
	Icon             string
	AssetOne         string
	AssetTwo         string
	Type             MarketType
	Status           MarketStatus
	Regulation       MarketRegulation
}

// Service implements the Market & MarketTimeSeries registries.
type Service struct {
	*base.BaseService
	store StoreInterface
}

// New creates a new market registry service.
func New(serviceOS os.ServiceOS) (*Service, error) {
	return NewWithStore(serviceOS, NewStore())
}

// NewWithStore creates a new market registry service against an explicit store.
func NewWithStore(serviceOS os.ServiceOS, store StoreInterface) (*Service, error) {
	s := &Service{
		BaseService: base.NewBaseService(ServiceID, ServiceName, Version, serviceOS),
		store:       store,
	}
	s.SetStore(s.store)
	return s, nil
}

// CreateMarket registers a new trading pair.
func (s *Service) CreateMarket(ctx context.Context, args CreateMarketArgs) (*Market, error) {
	if args.AssetOne == "" || args.AssetTwo == "" {
		return nil, errs.Validation("market requires both asset_one and asset_two")
	}
	m := &Market{
		Name:             args.Name,
		Description:      args.Description,
		Icon:             args.Icon,
		AssetOne:         args.AssetOne,
		AssetTwo:         args.AssetTwo,
		MarketType:       args.Type,
		MarketStatus:     args.Status,
		MarketRegulation: args.Regulation,
	}
	if m.MarketStatus == "" {
		m.MarketStatus = MarketStatusActive
	}
	if err := s.store.CreateMarket(ctx, m); err != nil {
		return nil, errs.Database(err, "create market %s", args.Name)
	}
	return m, nil
}

// GetMarket reads a market by id.
func (s *Service) GetMarket(ctx context.Context, id string) (*Market, error) {
	m, err := s.store.GetMarket(ctx, id)
	if err != nil {
		return nil, errs.NotFound("market %s: %v", id, err)
	}
	return m, nil
}

// ListMarkets lists markets, optionally filtered.
func (s *Service) ListMarkets(ctx context.Context, filter ListFilter) ([]*Market, error) {
	return s.store.ListMarkets(ctx, filter)
}

// RecordTimeSeries persists one OHLCV bar. It is called exclusively by the
// aggregator.
func (s *Service) RecordTimeSeries(ctx context.Context, row *MarketTimeSeries) error {
	if err := s.store.CreateMarketTimeSeries(ctx, row); err != nil {
		return errs.Database(err, "persist market time series for market %s asset %s", row.MarketID, row.Asset)
	}
	return nil
}

// ListMarketTimeSeries reads bars for chart endpoints and for the
// aggregator's own OneWeek fold over already-persisted daily bars.
func (s *Service) ListMarketTimeSeries(ctx context.Context, filter TimeSeriesFilter) ([]*MarketTimeSeries, error) {
	return s.store.ListMarketTimeSeries(ctx, filter)
}
