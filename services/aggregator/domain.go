// Package aggregator computes OHLCV bars for a market/asset pair by folding
// order book trades (or, for the week interval, already-persisted daily
// bars) over a time window, and persists them as market.MarketTimeSeries
// rows through services/market.
package aggregator

import (
	"time"

	"github.com/cradle-labs/cradle-core/services/base"
	"github.com/cradle-labs/cradle-core/services/market"
	"github.com/shopspring/decimal"
)

// Interval is the aggregation window the scheduler or a backfill request
// operates at. It reuses market.TimeSeriesInterval's full eleven-value set
// (including the week interval) rather than maintaining a second, narrower
// enum the way the original source did.
type Interval = market.TimeSeriesInterval

const (
	IntervalFifteenSeconds = market.IntervalFifteenSecs
	IntervalThirtySeconds  = market.IntervalThirtySecs
	IntervalFortyFiveSecs  = market.IntervalFortyFiveSecs
	IntervalOneMinute      = market.IntervalOneMinute
	IntervalFiveMinutes    = market.IntervalFiveMinutes
	IntervalFifteenMinutes = market.IntervalFifteenMinutes
	IntervalThirtyMinutes  = market.IntervalThirtyMinutes
	IntervalOneHour        = market.IntervalOneHour
	IntervalFourHours      = market.IntervalFourHours
	IntervalOneDay         = market.IntervalOneDay
	IntervalOneWeek        = market.IntervalOneWeek
)

// IntervalDuration returns the wall-clock span one bar of the given interval
// covers. OneWeek is seven genuine days, not an alias of OneDay.
func IntervalDuration(i Interval) time.Duration {
	switch i {
	case IntervalFifteenSeconds:
		return 15 * time.Second
	case IntervalThirtySeconds:
		return 30 * time.Second
	case IntervalFortyFiveSecs:
		return 45 * time.Second
	case IntervalOneMinute:
		return time.Minute
	case IntervalFiveMinutes:
		return 5 * time.Minute
	case IntervalFifteenMinutes:
		return 15 * time.Minute
	case IntervalThirtyMinutes:
		return 30 * time.Minute
	case IntervalOneHour:
		return time.Hour
	case IntervalFourHours:
		return 4 * time.Hour
	case IntervalOneDay:
		return 24 * time.Hour
	case IntervalOneWeek:
		return 7 * 24 * time.Hour
	default:
		return 15 * time.Second
	}
}

// OHLCBlock is one computed OHLCV bar, not yet stamped with a window or
// persisted.
type OHLCBlock struct {
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
	Market string
	Asset  string
}

// IsZero reports whether the bar carries no trade volume.
func (b OHLCBlock) IsZero() bool {
	return b.Volume.IsZero()
}

// TradeData is one matched trade, priced off its maker order, ready for
// OHLC computation.
type TradeData struct {
	ExecutionPrice    decimal.Decimal
	MakerFilledAmount decimal.Decimal
	TakerFilledAmount decimal.Decimal
	CreatedAt         time.Time
}

// Block is a recursive description of an OHLC computation: either a leaf
// that queries trades directly for [Start, End), or (for OneWeek only) a
// fold over its SubBlocks' own computed bars.
type Block struct {
	Start       time.Time
	End         time.Time
	Interval    Interval
	MarketID    string
	Asset       string
	SubBlocks   []*Block
	Precomputed *OHLCBlock
}

// Checkpoint is the last-processed-timestamp marker for one
// (market, asset, interval) aggregation stream, keyed the way the store
// persists it.
type Checkpoint struct {
	base.BaseEntity
	Value string `json:"value"`
}

// AggregateTradesArgs is the input to AggregateTrades: a single window,
// always written regardless of volume.
type AggregateTradesArgs struct {
	MarketID string
	Asset    string
	Interval Interval
	Start    time.Time
	End      time.Time
}

// BackfillArgs is the input to BackfillTrades and ResumeBackfill.
type BackfillArgs struct {
	MarketID string
	Asset    string
	Interval Interval
	Start    time.Time
	End      time.Time
}

// ClearCheckpointArgs is the input to ClearCheckpoint.
type ClearCheckpointArgs struct {
	MarketID string
	Asset    string
	Interval Interval
}

// checkpointTimeLayout is the ISO-like timestamp format checkpoint values
// are persisted as.
const checkpointTimeLayout = "2006-01-02 15:04:05"
