// Package market provides the Market and MarketTimeSeries registries: trading
// pair metadata and the OHLC bars the aggregator writes against it.
package market

import (
	"time"

	"github.com/cradle-labs/cradle-core/services/base"
	"github.com/shopspring/decimal"
)

// MarketType classifies the kind of instrument a market trades.
type MarketType string

const (
	MarketTypeSpot       MarketType = "spot"
	MarketTypeDerivative MarketType = "derivative"
	MarketTypeFutures    MarketType = "futures"
)

// MarketStatus controls whether new orders may be placed against a market.
type MarketStatus string

const (
	MarketStatusActive    MarketStatus = "active"
	MarketStatusInactive  MarketStatus = "inactive"
	MarketStatusSuspended MarketStatus = "suspended"
)

// MarketRegulation flags whether a market is subject to regulatory controls.
type MarketRegulation string

const (
	MarketRegulationRegulated   MarketRegulation = "regulated"
	MarketRegulationUnregulated MarketRegulation = "unregulated"
)

// Market describes a trading pair.
type Market struct {
	base.BaseEntity
	Name             string           `json:"name"`
	Description      string           `json:"description,omitempty"`
	Icon             string           `json:"icon,omitempty"`
	AssetOne         string           `json:"asset_one"`
	AssetTwo         string           `json:"asset_two"`
	MarketType       MarketType       `json:"market_type"`
	MarketStatus     MarketStatus     `json:"market_status"`
	MarketRegulation MarketRegulation `json:"market_regulation"`
}

// TimeSeriesInterval is the interval a MarketTimeSeries row is stamped with.
// The aggregator schedules against this same type (aggregator.Interval is an
// alias of it).
type TimeSeriesInterval string

const (
	IntervalFifteenSecs   TimeSeriesInterval = "15secs"
	IntervalThirtySecs    TimeSeriesInterval = "30secs"
	IntervalFortyFiveSecs TimeSeriesInterval = "45secs"
	IntervalOneMinute     TimeSeriesInterval = "1min"
	IntervalFiveMinutes   TimeSeriesInterval = "5min"
	IntervalFifteenMinutes TimeSeriesInterval = "15min"
	IntervalThirtyMinutes TimeSeriesInterval = "30min"
	IntervalOneHour       TimeSeriesInterval = "1hr"
	IntervalFourHours     TimeSeriesInterval = "4hr"
	IntervalOneDay        TimeSeriesInterval = "1day"
	IntervalOneWeek       TimeSeriesInterval = "1week"
)

// DataProviderType identifies who produced a time series bar.
type DataProviderType string

const (
	DataProviderOrderBook  DataProviderType = "order_book"
	DataProviderExchange   DataProviderType = "exchange"
	DataProviderAggregated DataProviderType = "aggregated"
)

// MarketTimeSeries is one OHLCV bar for an asset within a market.
type MarketTimeSeries struct {
	base.BaseEntity
	MarketID         string             `json:"market_id"`
	Asset            string             `json:"asset"`
	Open             decimal.Decimal    `json:"open"`
	High             decimal.Decimal    `json:"high"`
	Low              decimal.Decimal    `json:"low"`
	Close            decimal.Decimal    `json:"close"`
	Volume           decimal.Decimal    `json:"volume"`
	StartTime        time.Time          `json:"start_time"`
	EndTime          time.Time          `json:"end_time"`
	Interval         TimeSeriesInterval `json:"interval"`
	DataProviderType DataProviderType   `json:"data_provider_type"`
	DataProvider     string             `json:"data_provider,omitempty"`
}
