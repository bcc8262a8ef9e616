// Package orderbook implements the price-time-priority matching engine: an
// order is locked, persisted, matched against resting orders, settled
// through the on-chain settler, and its fills reconciled back down the
// maker chain.
package orderbook

import (
	"time"

	"github.com/cradle-labs/cradle-core/services/base"
	"github.com/shopspring/decimal"
)

// FillMode controls what happens to the unfilled remainder of an order.
type FillMode string

const (
	FillModeFillOrKill        FillMode = "fill-or-kill"
	FillModeImmediateOrCancel FillMode = "immediate-or-cancel"
	FillModeGoodTillCancel    FillMode = "good-till-cancel"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusClosed    OrderStatus = "closed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderType distinguishes resting limit orders from immediately-priced ones.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// SettlementStatus tracks a Trade's on-chain settlement.
type SettlementStatus string

const (
	SettlementMatched SettlementStatus = "matched"
	SettlementSettled SettlementStatus = "settled"
	SettlementFailed  SettlementStatus = "failed"
)

// Order is a resting or filled entry in the order book.
type Order struct {
	base.BaseEntity
	Wallet          string          `json:"wallet"`
	MarketID        string          `json:"market_id"`
	BidAsset        string          `json:"bid_asset"`
	AskAsset        string          `json:"ask_asset"`
	BidAmount       decimal.Decimal `json:"bid_amount"`
	AskAmount       decimal.Decimal `json:"ask_amount"`
	Price           decimal.Decimal `json:"price"`
	FilledBidAmount decimal.Decimal `json:"filled_bid_amount"`
	FilledAskAmount decimal.Decimal `json:"filled_ask_amount"`
	Mode            FillMode        `json:"mode"`
	Status          OrderStatus     `json:"status"`
	OrderType       OrderType       `json:"order_type"`
	FilledAt        *time.Time      `json:"filled_at,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	ExpiresAt       *time.Time      `json:"expires_at,omitempty"`
}

// Trade is a single match between a maker and a taker order.
type Trade struct {
	base.BaseEntity
	MakerOrderID      string           `json:"maker_order_id"`
	TakerOrderID      string           `json:"taker_order_id"`
	MakerFilledAmount decimal.Decimal  `json:"maker_filled_amount"`
	TakerFilledAmount decimal.Decimal  `json:"taker_filled_amount"`
	SettlementTx      string           `json:"settlement_tx,omitempty"`
	SettlementStatus  SettlementStatus `json:"settlement_status"`
	SettledAt         *time.Time       `json:"settled_at,omitempty"`
}

// OrderFillStatus is the outcome PlaceOrder reports.
type OrderFillStatus string

const (
	OrderFillStatusFilled    OrderFillStatus = "filled"
	OrderFillStatusPartial   OrderFillStatus = "partial"
	OrderFillStatusCancelled OrderFillStatus = "cancelled"
)

// OrderFillResult is PlaceOrder's return value.
type OrderFillResult struct {
	OrderID           string
	Status            OrderFillStatus
	BidAmountFilled   decimal.Decimal
	AskAmountFilled   decimal.Decimal
	MatchedTradeIDs   []string
}

// NewOrderArgs is the input to PlaceOrder.
type NewOrderArgs struct {
	Wallet    string
	MarketID  string
	BidAsset  string
	AskAsset  string
	BidAmount decimal.Decimal
	AskAmount decimal.Decimal
	Mode      FillMode
	OrderType OrderType
	ExpiresAt *time.Time
}

// OrderFilter narrows GetOrders results.
type OrderFilter struct {
	Wallet    string
	MarketID  string
	Status    OrderStatus
	OrderType OrderType
	Mode      FillMode
}

// matchCandidate is one resting order returned by the matching query, along
// with the remaining room it has and the price the taker fills it at.
type matchCandidate struct {
	Order           *Order
	RemainingBid    decimal.Decimal
	RemainingAsk    decimal.Decimal
	ExecutionPrice  decimal.Decimal
}
