package orderbook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cradle-labs/cradle-core/services/base"
	"github.com/shopspring/decimal"
)

// StoreInterface defines the storage surface OrderBookEngine depends on.
type StoreInterface interface {
	base.Store

	CreateOrder(ctx context.Context, order *Order) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]*Order, error)
	// UpdateOrderFill conditionally applies newFilledBid/newFilledAsk and, when
	// status transitions, filledAt/cancelledAt; it reports whether the row
	// still matched expectedFilledBid/expectedFilledAsk at write time so
	// callers can retry on a concurrent update (optimistic concurrency).
	UpdateOrderFill(ctx context.Context, id string, expectedFilledBid, expectedFilledAsk decimal.Decimal, order *Order) (bool, error)
	UpdateOrderStatus(ctx context.Context, id string, order *Order) error

	CreateTrade(ctx context.Context, trade *Trade) error
	ListMatchedTradesForTaker(ctx context.Context, takerOrderID string) ([]*Trade, error)
	SettleTrade(ctx context.Context, id string, txID string) error

	// MatchingOrders returns resting orders complementary to the taker order,
	// best price first then oldest first, each annotated with its remaining
	// room and the execution price it would fill at. Backed by a Postgres
	// function so the price/time-priority sort and remaining-amount math run
	// inside the database rather than being re-implemented client-side.
	MatchingOrders(ctx context.Context, takerOrderID string) ([]matchCandidate, error)
}

// Store persists orders and trades via Supabase PostgREST, delegating the
// matching query to a Postgres function exposed through PostgREST's RPC route.
type Store struct {
	orders *base.SupabaseStore[*Order]
	trades *base.SupabaseStore[*Trade]
	ready  bool
}

// NewStore creates a store using the default Supabase configuration.
func NewStore() *Store {
	return NewStoreWithConfig(base.DefaultSupabaseConfig())
}

// NewStoreWithConfig creates a store with explicit Supabase configuration.
func NewStoreWithConfig(config base.SupabaseConfig) *Store {
	return &Store{
		orders: base.NewSupabaseStore[*Order](config, "orderbook"),
		trades: base.NewSupabaseStore[*Trade](config, "orderbooktrades"),
	}
}

func (s *Store) Initialize(ctx context.Context) error {
	if err := s.orders.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize orderbook store: %w", err)
	}
	if err := s.trades.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize orderbooktrades store: %w", err)
	}
	s.ready = true
	return nil
}

func (s *Store) Shutdown(ctx context.Context) error { return s.Close(ctx) }

func (s *Store) Close(ctx context.Context) error {
	s.orders.Close(ctx)
	s.trades.Close(ctx)
	s.ready = false
	return nil
}

func (s *Store) Health(ctx context.Context) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	return s.orders.Health(ctx)
}

func (s *Store) CreateOrder(ctx context.Context, order *Order) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	order.GenerateID()
	order.SetTimestamps()
	return s.orders.Create(ctx, order)
}

func (s *Store) GetOrder(ctx context.Context, id string) (*Order, error) {
	if !s.ready {
		return nil, fmt.Errorf("store not ready")
	}
	return s.orders.Get(ctx, id)
}

func (s *Store) ListOrders(ctx context.Context, filter OrderFilter) ([]*Order, error) {
	if !s.ready {
		return nil, fmt.Errorf("store not ready")
	}
	var clauses string
	if filter.Wallet != "" {
		clauses += "wallet=eq." + filter.Wallet + "&"
	}
	if filter.MarketID != "" {
		clauses += "market_id=eq." + filter.MarketID + "&"
	}
	if filter.Status != "" {
		clauses += "status=eq." + string(filter.Status) + "&"
	}
	if filter.OrderType != "" {
		clauses += "order_type=eq." + string(filter.OrderType) + "&"
	}
	if filter.Mode != "" {
		clauses += "mode=eq." + string(filter.Mode) + "&"
	}
	if clauses == "" {
		return s.orders.List(ctx)
	}
	return s.orders.ListWithFilter(ctx, clauses[:len(clauses)-1])
}

func (s *Store) UpdateOrderFill(ctx context.Context, id string, expectedFilledBid, expectedFilledAsk decimal.Decimal, order *Order) (bool, error) {
	if !s.ready {
		return false, fmt.Errorf("store not ready")
	}
	filter := fmt.Sprintf("filled_bid_amount=eq.%s&filled_ask_amount=eq.%s", expectedFilledBid.String(), expectedFilledAsk.String())
	return s.orders.UpdateWhere(ctx, id, filter, order)
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, order *Order) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	return s.orders.Update(ctx, order)
}

func (s *Store) CreateTrade(ctx context.Context, trade *Trade) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	trade.GenerateID()
	trade.SetTimestamps()
	trade.SettlementStatus = SettlementMatched
	return s.trades.Create(ctx, trade)
}

func (s *Store) ListMatchedTradesForTaker(ctx context.Context, takerOrderID string) ([]*Trade, error) {
	if !s.ready {
		return nil, fmt.Errorf("store not ready")
	}
	filter := fmt.Sprintf("taker_order_id=eq.%s&settlement_status=eq.%s", takerOrderID, SettlementMatched)
	return s.trades.ListWithFilter(ctx, filter)
}

func (s *Store) SettleTrade(ctx context.Context, id string, txID string) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	trade, err := s.trades.Get(ctx, id)
	if err != nil {
		return err
	}
	trade.SettlementStatus = SettlementSettled
	trade.SettlementTx = txID
	now := trade.UpdatedAt
	trade.SettledAt = &now
	return s.trades.Update(ctx, trade)
}

type matchingOrderRow struct {
	ID             string          `json:"id"`
	Wallet         string          `json:"wallet"`
	BidAsset       string          `json:"bid_asset"`
	AskAsset       string          `json:"ask_asset"`
	BidAmount      decimal.Decimal `json:"bid_amount"`
	AskAmount      decimal.Decimal `json:"ask_amount"`
	Price          decimal.Decimal `json:"price"`
	OrderType      OrderType       `json:"order_type"`
	Mode           FillMode        `json:"mode"`
	RemainingBid   decimal.Decimal `json:"remaining_bid_amount"`
	RemainingAsk   decimal.Decimal `json:"remaining_ask_amount"`
	ExecutionPrice decimal.Decimal `json:"execution_price"`
}

func (s *Store) MatchingOrders(ctx context.Context, takerOrderID string) ([]matchCandidate, error) {
	if !s.ready {
		return nil, fmt.Errorf("store not ready")
	}
	raw, err := s.orders.RPC(ctx, "get_matching_orders", map[string]any{"taker_order_id": takerOrderID})
	if err != nil {
		return nil, fmt.Errorf("matching orders rpc: %w", err)
	}
	var rows []matchingOrderRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode matching orders: %w", err)
	}
	candidates := make([]matchCandidate, 0, len(rows))
	for _, r := range rows {
		candidates = append(candidates, matchCandidate{
			Order: &Order{
				BaseEntity: base.BaseEntity{ID: r.ID},
				Wallet:     r.Wallet,
				BidAsset:   r.BidAsset,
				AskAsset:   r.AskAsset,
				BidAmount:  r.BidAmount,
				AskAmount:  r.AskAmount,
				Price:      r.Price,
				OrderType:  r.OrderType,
				Mode:       r.Mode,
			},
			RemainingBid:   r.RemainingBid,
			RemainingAsk:   r.RemainingAsk,
			ExecutionPrice: r.ExecutionPrice,
		})
	}
	return candidates, nil
}
