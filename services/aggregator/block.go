package aggregator

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// TradeReader fetches the trades an aggregation leaf block folds into one
// OHLC bar. Implemented by Store against orderbooktrades/orderbook directly,
// since the join and asset-membership filter it needs don't map cleanly
// onto PostgREST's embedding grammar.
type TradeReader interface {
	TradesForAggregation(ctx context.Context, marketID, asset string, start, end time.Time) ([]TradeData, error)
}

// DailyBarReader fetches already-persisted daily bars for the OneWeek fold.
type DailyBarReader interface {
	DailyBar(ctx context.Context, marketID, asset string, dayStart, dayEnd time.Time) (*OHLCBlock, bool, error)
}

// NewWeekBlock builds the seven daily sub-blocks a OneWeek fold reads
// instead of re-querying raw trades, per the registry note that the week
// bar is computed over already-persisted daily bars.
func NewWeekBlock(ctx context.Context, marketID, asset string, start time.Time, bars DailyBarReader) (*Block, error) {
	block := &Block{
		Start:    start,
		End:      start.Add(IntervalDuration(IntervalOneWeek)),
		Interval: IntervalOneWeek,
		MarketID: marketID,
		Asset:    asset,
	}
	day := 24 * time.Hour
	for i := 0; i < 7; i++ {
		dayStart := start.Add(time.Duration(i) * day)
		dayEnd := dayStart.Add(day)
		bar, found, err := bars.DailyBar(ctx, marketID, asset, dayStart, dayEnd)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		block.SubBlocks = append(block.SubBlocks, &Block{
			Start:       dayStart,
			End:         dayEnd,
			Interval:    IntervalOneDay,
			MarketID:    marketID,
			Asset:       asset,
			Precomputed: bar,
		})
	}
	return block, nil
}

// Fold computes the block's OHLC bar: a direct trade query for every
// interval except OneWeek, which instead sums its daily sub-blocks in
// chronological order. Sub-blocks are never re-sorted by price — a
// price-sort fold would misreport open/close whenever price moves
// non-monotonically across the window.
func (b *Block) Fold(ctx context.Context, trades TradeReader) (OHLCBlock, error) {
	if b.Precomputed != nil {
		return *b.Precomputed, nil
	}

	if b.Interval == IntervalOneWeek {
		if len(b.SubBlocks) == 0 {
			return OHLCBlock{Market: b.MarketID, Asset: b.Asset}, nil
		}
		bars := make([]OHLCBlock, 0, len(b.SubBlocks))
		for _, sub := range b.SubBlocks {
			bar, err := sub.Fold(ctx, trades)
			if err != nil {
				return OHLCBlock{}, err
			}
			bars = append(bars, bar)
		}
		return sumBlocks(bars), nil
	}

	data, err := trades.TradesForAggregation(ctx, b.MarketID, b.Asset, b.Start, b.End)
	if err != nil {
		return OHLCBlock{}, err
	}
	return computeOHLC(data, b.MarketID, b.Asset), nil
}

// computeOHLC folds raw trades into one bar. Trades are sorted by
// created_at first since callers (the realtime cron tick in particular)
// make no ordering guarantee on the rows a query returns.
func computeOHLC(trades []TradeData, marketID, asset string) OHLCBlock {
	if len(trades) == 0 {
		return OHLCBlock{Market: marketID, Asset: asset}
	}
	sorted := make([]TradeData, len(trades))
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	bar := OHLCBlock{
		Open:   sorted[0].ExecutionPrice,
		Close:  sorted[len(sorted)-1].ExecutionPrice,
		High:   sorted[0].ExecutionPrice,
		Low:    sorted[0].ExecutionPrice,
		Volume: decimal.Zero,
		Market: marketID,
		Asset:  asset,
	}
	for _, t := range sorted {
		if t.ExecutionPrice.GreaterThan(bar.High) {
			bar.High = t.ExecutionPrice
		}
		if t.ExecutionPrice.LessThan(bar.Low) {
			bar.Low = t.ExecutionPrice
		}
		bar.Volume = bar.Volume.Add(t.TakerFilledAmount)
	}
	return bar
}

// sumBlocks folds already-computed bars in construction order: open/market/
// asset from the first, close from the last, high/low as the extremes,
// volume as the sum.
func sumBlocks(blocks []OHLCBlock) OHLCBlock {
	if len(blocks) == 0 {
		return OHLCBlock{}
	}
	sum := OHLCBlock{
		Open:   blocks[0].Open,
		Close:  blocks[len(blocks)-1].Close,
		High:   blocks[0].High,
		Low:    blocks[0].Low,
		Volume: decimal.Zero,
		Market: blocks[0].Market,
		Asset:  blocks[0].Asset,
	}
	for _, b := range blocks {
		if b.High.GreaterThan(sum.High) {
			sum.High = b.High
		}
		if b.Low.LessThan(sum.Low) {
			sum.Low = b.Low
		}
		sum.Volume = sum.Volume.Add(b.Volume)
	}
	return sum
}
