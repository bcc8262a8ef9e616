package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/cradle-labs/cradle-core/services/base"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// StoreConfig bundles the three backends the aggregator store talks to: the
// Supabase checkpoint table (persistence of record), a direct Postgres
// connection for the trade/order join the base-case query needs, and Redis
// as a read-through mirror for checkpoint lookups.
type StoreConfig struct {
	Supabase    base.SupabaseConfig
	DatabaseURL string
	RedisURL    string
}

// StoreInterface defines the storage surface the aggregator depends on.
type StoreInterface interface {
	base.Store

	TradesForAggregation(ctx context.Context, marketID, asset string, start, end time.Time) ([]TradeData, error)

	GetCheckpoint(ctx context.Context, key string) (string, bool, error)
	SaveCheckpoint(ctx context.Context, key, value string) error
	ClearCheckpoint(ctx context.Context, key string) error
}

// Store queries trades directly against Postgres (the maker-order join
// PostgREST's embedding grammar can't express cleanly), persists checkpoints
// of record via Supabase, and mirrors checkpoint reads through Redis.
type Store struct {
	db          *sqlx.DB
	checkpoints *base.SupabaseStore[*Checkpoint]
	redis       *redis.Client
	ready       bool
}

// NewStore creates a store using the default environment-derived configuration.
func NewStore() *Store {
	return NewStoreWithConfig(StoreConfig{Supabase: base.DefaultSupabaseConfig()})
}

// NewStoreWithConfig creates a store with explicit configuration.
func NewStoreWithConfig(cfg StoreConfig) *Store {
	s := &Store{
		checkpoints: base.NewSupabaseStore[*Checkpoint](cfg.Supabase, "aggregatorcheckpoints"),
	}
	if cfg.DatabaseURL != "" {
		if db, err := sqlx.Connect("postgres", cfg.DatabaseURL); err == nil {
			s.db = db
		}
	}
	if cfg.RedisURL != "" {
		if opts, err := redis.ParseURL(cfg.RedisURL); err == nil {
			s.redis = redis.NewClient(opts)
		}
	}
	return s
}

func (s *Store) Initialize(ctx context.Context) error {
	if err := s.checkpoints.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize aggregator checkpoint store: %w", err)
	}
	if s.db == nil {
		return fmt.Errorf("aggregator store: no database connection configured")
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping aggregator trade database: %w", err)
	}
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping aggregator checkpoint redis: %w", err)
		}
	}
	s.ready = true
	return nil
}

func (s *Store) Shutdown(ctx context.Context) error { return s.Close(ctx) }

func (s *Store) Close(ctx context.Context) error {
	s.checkpoints.Close(ctx)
	if s.db != nil {
		s.db.Close()
	}
	if s.redis != nil {
		s.redis.Close()
	}
	s.ready = false
	return nil
}

func (s *Store) Health(ctx context.Context) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	return s.db.PingContext(ctx)
}

// tradeRow is the shape one joined trade/maker-order row scans into.
type tradeRow struct {
	ExecutionPrice    decimal.Decimal `db:"execution_price"`
	MakerFilledAmount decimal.Decimal `db:"maker_filled_amount"`
	TakerFilledAmount decimal.Decimal `db:"taker_filled_amount"`
	CreatedAt         time.Time       `db:"created_at"`
}

const tradesForAggregationQuery = `
SELECT
	mo.price AS execution_price,
	ot.maker_filled_amount,
	ot.taker_filled_amount,
	ot.created_at
FROM orderbooktrades ot
INNER JOIN orderbook mo ON ot.maker_order_id = mo.id
WHERE ot.created_at >= $1
  AND ot.created_at < $2
  AND mo.market_id = $3
  AND (mo.bid_asset = $4 OR mo.ask_asset = $4)
ORDER BY ot.created_at ASC
`

// TradesForAggregation returns every trade in [start, end) for marketID
// whose maker order trades asset, priced off that maker order. Matched
// trades are always between a complementary bid/ask pair, so checking the
// maker side is sufficient without a second lookup against the taker order.
func (s *Store) TradesForAggregation(ctx context.Context, marketID, asset string, start, end time.Time) ([]TradeData, error) {
	if !s.ready {
		return nil, fmt.Errorf("store not ready")
	}
	var rows []tradeRow
	if err := s.db.SelectContext(ctx, &rows, tradesForAggregationQuery, start, end, marketID, asset); err != nil {
		return nil, fmt.Errorf("query trades for aggregation: %w", err)
	}
	trades := make([]TradeData, 0, len(rows))
	for _, r := range rows {
		trades = append(trades, TradeData{
			ExecutionPrice:    r.ExecutionPrice,
			MakerFilledAmount: r.MakerFilledAmount,
			TakerFilledAmount: r.TakerFilledAmount,
			CreatedAt:         r.CreatedAt,
		})
	}
	return trades, nil
}

func (s *Store) GetCheckpoint(ctx context.Context, key string) (string, bool, error) {
	if !s.ready {
		return "", false, fmt.Errorf("store not ready")
	}
	if s.redis != nil {
		if v, err := s.redis.Get(ctx, key).Result(); err == nil {
			return v, v != "", nil
		}
	}
	cp, err := s.checkpoints.Get(ctx, key)
	if err != nil {
		return "", false, nil
	}
	if s.redis != nil && cp.Value != "" {
		s.redis.Set(ctx, key, cp.Value, 0)
	}
	return cp.Value, cp.Value != "", nil
}

func (s *Store) SaveCheckpoint(ctx context.Context, key, value string) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	cp := &Checkpoint{Value: value}
	cp.ID = key
	cp.SetTimestamps()
	if err := s.checkpoints.Upsert(ctx, cp); err != nil {
		return fmt.Errorf("upsert checkpoint %s: %w", key, err)
	}
	if s.redis != nil {
		if err := s.redis.Set(ctx, key, value, 0).Err(); err != nil {
			return fmt.Errorf("mirror checkpoint %s to redis: %w", key, err)
		}
	}
	return nil
}

func (s *Store) ClearCheckpoint(ctx context.Context, key string) error {
	return s.SaveCheckpoint(ctx, key, "")
}
