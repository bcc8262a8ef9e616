package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cradle-labs/cradle-core/internal/errs"
	"github.com/cradle-labs/cradle-core/platform/os"
	"github.com/cradle-labs/cradle-core/services/base"
	"github.com/cradle-labs/cradle-core/services/market"
	"github.com/robfig/cron/v3"
)

const (
	ServiceID   = "aggregator"
	ServiceName = "Trade Aggregator Service"
	Version     = "1.0.0"
)

// Manifest returns the service manifest.
func Manifest() *os.LegacyManifest {
	return &os.LegacyManifest{
		ServiceID:   ServiceID,
		Version:     Version,
		Description: "OHLCV aggregation over order book trades",
		RequiredCapabilities: []os.Capability{
			os.CapStorage,
		},
		OptionalCapabilities: []os.Capability{
			os.CapDatabase,
			os.CapDatabaseWrite,
			os.CapMetrics,
		},
		ResourceLimits: os.ResourceLimits{
			MaxMemory:  64 * 1024 * 1024,
			MaxCPUTime: 30 * time.Second,
		},
	}
}

// realtimeTarget is one (market, asset) pair the cron-driven tick keeps a
// rolling base-interval bar for.
type realtimeTarget struct {
	MarketID string
	Asset    string
}

// Service implements the Aggregator: AggregateTrades, BackfillTrades,
// ResumeBackfill, and ClearCheckpoint over order book trades, plus a
// cron-driven realtime tick that keeps the base (15-second) interval warm
// for registered market/asset pairs.
type Service struct {
	*base.BaseService
	store        StoreInterface
	market       *market.Service
	baseInterval time.Duration

	mu      sync.Mutex
	targets []realtimeTarget
	cron    *cron.Cron
}

// New creates a new aggregator service against the default store configuration.
func New(serviceOS os.ServiceOS, marketSvc *market.Service, cfg StoreConfig, baseInterval time.Duration) (*Service, error) {
	return NewWithStore(serviceOS, NewStoreWithConfig(cfg), marketSvc, baseInterval)
}

// NewWithStore creates a new aggregator service against an explicit store.
func NewWithStore(serviceOS os.ServiceOS, store StoreInterface, marketSvc *market.Service, baseInterval time.Duration) (*Service, error) {
	if baseInterval <= 0 {
		baseInterval = 15 * time.Second
	}
	s := &Service{
		BaseService:  base.NewBaseService(ServiceID, ServiceName, Version, serviceOS),
		store:        store,
		market:       marketSvc,
		baseInterval: baseInterval,
	}
	s.SetStore(s.store)
	s.SetHooks(base.LifecycleHooks{
		OnAfterStart: s.startRealtimeTick,
		OnBeforeStop: s.stopRealtimeTick,
	})
	return s, nil
}

// RegisterRealtimeTarget adds a (market, asset) pair the realtime tick keeps
// aggregating at the base interval.
func (s *Service) RegisterRealtimeTarget(marketID, asset string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.targets {
		if t.MarketID == marketID && t.Asset == asset {
			return
		}
	}
	s.targets = append(s.targets, realtimeTarget{MarketID: marketID, Asset: asset})
}

func (s *Service) startRealtimeTick(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cron = cron.New(cron.WithSeconds())
	schedule := fmt.Sprintf("@every %s", s.baseInterval.String())
	if _, err := s.cron.AddFunc(schedule, func() {
		tickCtx := context.Background()
		if err := s.runRealtimeTick(tickCtx); err != nil {
			s.Logger().Error("aggregator realtime tick failed", "err", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule aggregator realtime tick: %w", err)
	}
	s.cron.Start()
	return nil
}

func (s *Service) stopRealtimeTick(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	return nil
}

func (s *Service) runRealtimeTick(ctx context.Context) error {
	s.mu.Lock()
	targets := make([]realtimeTarget, len(s.targets))
	copy(targets, s.targets)
	s.mu.Unlock()

	now := time.Now().UTC()
	for _, t := range targets {
		key := checkpointKey(t.MarketID, t.Asset, IntervalFifteenSeconds)
		start := now.Add(-s.baseInterval)
		if raw, ok, err := s.store.GetCheckpoint(ctx, key); err == nil && ok {
			if parsed, perr := time.Parse(checkpointTimeLayout, raw); perr == nil {
				start = parsed
			}
		}
		if _, _, err := s.aggregateWindow(ctx, t.MarketID, t.Asset, IntervalFifteenSeconds, start, now, false, "orderbook_trades_realtime"); err != nil {
			s.Logger().Error("aggregator realtime tick window failed", "market", t.MarketID, "asset", t.Asset, "err", err)
			continue
		}
		if err := s.store.SaveCheckpoint(ctx, key, now.Format(checkpointTimeLayout)); err != nil {
			s.Logger().Error("aggregator realtime checkpoint save failed", "market", t.MarketID, "asset", t.Asset, "err", err)
		}
	}
	return nil
}

// checkpointKey builds the persisted checkpoint key. Interval values are the
// same tag strings market.TimeSeriesInterval stamps on MarketTimeSeries rows
// (e.g. "15secs", "1week"), so no separate interval-to-string mapping is
// needed here.
func checkpointKey(marketID, asset string, interval Interval) string {
	return fmt.Sprintf("aggregator:%s:%s:%s:last_processed", marketID, asset, string(interval))
}

// aggregateWindow folds trades for [start, end) and persists the resulting
// bar unless it carries no volume and alwaysWrite is false. It returns the
// persisted row id (empty if suppressed) and whether a row was written.
func (s *Service) aggregateWindow(ctx context.Context, marketID, asset string, interval Interval, start, end time.Time, alwaysWrite bool, dataProvider string) (string, bool, error) {
	block, err := s.buildBlock(ctx, marketID, asset, interval, start, end)
	if err != nil {
		return "", false, err
	}
	bar, err := block.Fold(ctx, s.store)
	if err != nil {
		return "", false, errs.Database(err, "fold aggregation block for market %s asset %s", marketID, asset)
	}
	if bar.IsZero() && !alwaysWrite {
		return "", false, nil
	}

	providerType := market.DataProviderOrderBook
	if interval == IntervalOneWeek {
		providerType = market.DataProviderAggregated
	}
	row := &market.MarketTimeSeries{
		MarketID:         marketID,
		Asset:            asset,
		Open:             bar.Open,
		High:             bar.High,
		Low:              bar.Low,
		Close:            bar.Close,
		Volume:           bar.Volume,
		StartTime:        start,
		EndTime:          end,
		Interval:         interval,
		DataProviderType: providerType,
		DataProvider:     dataProvider,
	}
	if err := s.market.RecordTimeSeries(ctx, row); err != nil {
		return "", false, err
	}
	return row.ID, true, nil
}

// buildBlock constructs the aggregation block for one window: the OneWeek
// interval folds over already-persisted daily bars, every other interval is
// a direct trade-query leaf.
func (s *Service) buildBlock(ctx context.Context, marketID, asset string, interval Interval, start, end time.Time) (*Block, error) {
	if interval == IntervalOneWeek {
		return NewWeekBlock(ctx, marketID, asset, start, &marketDailyBarReader{market: s.market})
	}
	return &Block{Start: start, End: end, Interval: interval, MarketID: marketID, Asset: asset}, nil
}

// marketDailyBarReader adapts services/market's registry reads to the
// DailyBarReader interface Block.Fold's OneWeek case needs.
type marketDailyBarReader struct {
	market *market.Service
}

func (m *marketDailyBarReader) DailyBar(ctx context.Context, marketID, asset string, dayStart, dayEnd time.Time) (*OHLCBlock, bool, error) {
	rows, err := m.market.ListMarketTimeSeries(ctx, market.TimeSeriesFilter{
		Market:   marketID,
		Asset:    asset,
		Interval: IntervalOneDay,
		Start:    dayStart,
		End:      dayEnd,
	})
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	r := rows[0]
	return &OHLCBlock{
		Open:   r.Open,
		High:   r.High,
		Low:    r.Low,
		Close:  r.Close,
		Volume: r.Volume,
		Market: marketID,
		Asset:  asset,
	}, true, nil
}

// AggregateTrades computes and persists one bar for the given window,
// always written regardless of volume.
func (s *Service) AggregateTrades(ctx context.Context, args AggregateTradesArgs) (string, error) {
	if args.MarketID == "" || args.Asset == "" {
		return "", errs.Validation("aggregate trades requires market and asset")
	}
	if !args.End.After(args.Start) {
		return "", errs.Validation("aggregate trades requires end after start")
	}
	id, _, err := s.aggregateWindow(ctx, args.MarketID, args.Asset, args.Interval, args.Start, args.End, true, "orderbook_trades")
	return id, err
}

// BackfillTrades steps from args.Start to args.End in interval-duration
// chunks, writing a bar for every non-zero-volume step and saving a
// checkpoint of the step's end after each one.
func (s *Service) BackfillTrades(ctx context.Context, args BackfillArgs) (int, error) {
	if args.MarketID == "" || args.Asset == "" {
		return 0, errs.Validation("backfill trades requires market and asset")
	}
	return s.stepBackfill(ctx, args, args.Start)
}

// ResumeBackfill reads the last checkpoint and continues a backfill from
// there; if the checkpoint already reached args.End it reports zero without
// doing any work.
func (s *Service) ResumeBackfill(ctx context.Context, args BackfillArgs) (int, error) {
	if args.MarketID == "" || args.Asset == "" {
		return 0, errs.Validation("resume backfill requires market and asset")
	}
	key := checkpointKey(args.MarketID, args.Asset, args.Interval)
	start := args.Start
	if raw, ok, err := s.store.GetCheckpoint(ctx, key); err != nil {
		return 0, errs.Database(err, "read checkpoint %s", key)
	} else if ok {
		parsed, perr := time.Parse(checkpointTimeLayout, raw)
		if perr != nil {
			return 0, errs.Database(perr, "parse checkpoint %s", key)
		}
		start = parsed
	}
	if !start.Before(args.End) {
		return 0, nil
	}
	return s.stepBackfill(ctx, args, start)
}

func (s *Service) stepBackfill(ctx context.Context, args BackfillArgs, from time.Time) (int, error) {
	key := checkpointKey(args.MarketID, args.Asset, args.Interval)
	step := IntervalDuration(args.Interval)
	written := 0
	current := from
	for current.Before(args.End) {
		end := current.Add(step)
		if end.After(args.End) {
			end = args.End
		}
		_, wrote, err := s.aggregateWindow(ctx, args.MarketID, args.Asset, args.Interval, current, end, false, "orderbook_trades_backfill")
		if err != nil {
			return written, err
		}
		if wrote {
			written++
		}
		if err := s.store.SaveCheckpoint(ctx, key, end.Format(checkpointTimeLayout)); err != nil {
			return written, errs.Database(err, "save checkpoint %s", key)
		}
		current = end
	}
	return written, nil
}

// ClearCheckpoint resets the last-processed marker for a (market, asset,
// interval) stream back to empty.
func (s *Service) ClearCheckpoint(ctx context.Context, args ClearCheckpointArgs) error {
	if args.MarketID == "" || args.Asset == "" {
		return errs.Validation("clear checkpoint requires market and asset")
	}
	key := checkpointKey(args.MarketID, args.Asset, args.Interval)
	if err := s.store.ClearCheckpoint(ctx, key); err != nil {
		return errs.Database(err, "clear checkpoint %s", key)
	}
	return nil
}
