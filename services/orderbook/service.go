package orderbook

import (
	"context"
	"fmt"
	stdos "os"
	"time"

	"github.com/cradle-labs/cradle-core/internal/errs"
	"github.com/cradle-labs/cradle-core/platform/os"
	"github.com/cradle-labs/cradle-core/services/accounts"
	"github.com/cradle-labs/cradle-core/services/assetbook"
	"github.com/cradle-labs/cradle-core/services/base"
	"github.com/cradle-labs/cradle-core/services/contracts"
	"github.com/cradle-labs/cradle-core/services/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	ServiceID   = "orderbook"
	ServiceName = "Order Book Service"
	Version     = "1.0.0"
)

// Manifest returns the service manifest.
func Manifest() *os.LegacyManifest {
	return &os.LegacyManifest{
		ServiceID:   ServiceID,
		Version:     Version,
		Description: "Price-time-priority matching engine and settlement cascade",
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
			MaxCPUTime: 15 * time.Second,
		},
	}
}

// WalletResolver is the minimal wallet lookup OrderBookEngine depends on.
// accounts.Service satisfies it structurally.
type WalletResolver interface {
	GetWallet(ctx context.Context, id string) (*accounts.Wallet, error)
}

// AssetResolver is the minimal asset lookup OrderBookEngine depends on.
// assetbook.Service satisfies it structurally.
type AssetResolver interface {
	GetAsset(ctx context.Context, id string) (*assetbook.Asset, error)
}

// Service implements the OrderBookEngine component.
type Service struct {
	*base.BaseService
	store    StoreInterface
	executor contracts.Executor
	wallets  WalletResolver
	assets   AssetResolver
	ledger   *ledger.Service
}

// New creates a new order book service.
func New(serviceOS os.ServiceOS, executor contracts.Executor, wallets WalletResolver, assets AssetResolver, ledgerSvc *ledger.Service) (*Service, error) {
	return NewWithStore(serviceOS, NewStore(), executor, wallets, assets, ledgerSvc)
}

// NewWithStore creates a new order book service against an explicit store.
func NewWithStore(serviceOS os.ServiceOS, store StoreInterface, executor contracts.Executor, wallets WalletResolver, assets AssetResolver, ledgerSvc *ledger.Service) (*Service, error) {
	s := &Service{
		BaseService: base.NewBaseService(ServiceID, ServiceName, Version, serviceOS),
		store:       store,
		executor:    executor,
		wallets:     wallets,
		assets:      assets,
		ledger:      ledgerSvc,
	}
	s.SetStore(s.store)
	return s, nil
}

// LockWalletAssets resolves the wallet contract id and asset token, then
// asks ContractExecutor to lock amount of asset in the wallet's on-chain
// account.
func (s *Service) LockWalletAssets(ctx context.Context, walletID, assetID string, amount decimal.Decimal) error {
	wallet, err := s.wallets.GetWallet(ctx, walletID)
	if err != nil {
		return errs.NotFound("wallet %s: %v", walletID, err)
	}
	asset, err := s.assets.GetAsset(ctx, assetID)
	if err != nil {
		return errs.NotFound("asset %s: %v", assetID, err)
	}
	_, err = s.executor.Execute(ctx, contracts.LockAssetInput{
		AccountContract: wallet.ContractID,
		Asset:           asset.Token,
		Amount:          amount,
	})
	if err != nil {
		return errs.Contract(err, "lock asset")
	}
	return nil
}

// UnLockWalletAssets is LockWalletAssets's inverse. Like LockWalletAssets it
// reads no environment flag and always calls the executor; with
// contracts.DisabledExecutor that call returns a synthetic id, which is
// discarded here.
func (s *Service) UnLockWalletAssets(ctx context.Context, walletID, assetID string, amount decimal.Decimal) error {
	wallet, err := s.wallets.GetWallet(ctx, walletID)
	if err != nil {
		return errs.NotFound("wallet %s: %v", walletID, err)
	}
	asset, err := s.assets.GetAsset(ctx, assetID)
	if err != nil {
		return errs.NotFound("asset %s: %v", assetID, err)
	}
	_, err = s.executor.Execute(ctx, contracts.UnlockAssetInput{
		AccountContract: wallet.ContractID,
		Asset:           asset.Token,
		Amount:          amount,
	})
	if err != nil {
		return errs.Contract(err, "unlock asset")
	}
	return nil
}

// PlaceOrder locks the bid amount, persists the order, matches it against
// resting complementary orders, emits trades, settles and reconciles fills,
// and enforces the order's fill mode.
func (s *Service) PlaceOrder(ctx context.Context, args NewOrderArgs) (*OrderFillResult, error) {
	if args.BidAmount.LessThanOrEqual(decimal.Zero) || args.AskAmount.LessThanOrEqual(decimal.Zero) {
		return nil, errs.Validation("bid_amount and ask_amount must be positive")
	}
	if args.Mode == "" {
		args.Mode = FillModeGoodTillCancel
	}
	if args.OrderType == "" {
		args.OrderType = OrderTypeLimit
	}

	if err := s.LockWalletAssets(ctx, args.Wallet, args.BidAsset, args.BidAmount); err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}

	order := &Order{
		Wallet:    args.Wallet,
		MarketID:  args.MarketID,
		BidAsset:  args.BidAsset,
		AskAsset:  args.AskAsset,
		BidAmount: args.BidAmount,
		AskAmount: args.AskAmount,
		Price:     args.AskAmount.Div(args.BidAmount),
		Mode:      args.Mode,
		OrderType: args.OrderType,
		Status:    OrderStatusOpen,
		ExpiresAt: args.ExpiresAt,
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, errs.Database(err, "create order")
	}

	candidates, err := s.store.MatchingOrders(ctx, order.ID)
	if err != nil {
		return nil, errs.Database(err, "matching orders")
	}

	remainingBid, remainingAsk, trades := foldMatches(order, candidates)

	if order.Mode == FillModeFillOrKill && (remainingBid.GreaterThan(decimal.Zero) || remainingAsk.GreaterThan(decimal.Zero)) {
		if err := s.CancelOrder(ctx, order.ID); err != nil {
			return nil, fmt.Errorf("place order: cancel on fill-or-kill: %w", err)
		}
		return &OrderFillResult{
			OrderID:         order.ID,
			Status:          OrderFillStatusCancelled,
			BidAmountFilled: decimal.Zero,
			AskAmountFilled: decimal.Zero,
		}, nil
	}

	matchedIDs := make([]string, 0, len(trades))
	for _, t := range trades {
		if err := s.store.CreateTrade(ctx, t); err != nil {
			return nil, errs.Database(err, "create trade")
		}
		matchedIDs = append(matchedIDs, t.ID)
	}

	if err := s.SettleOrder(ctx, order.ID); err != nil {
		return nil, fmt.Errorf("place order: settle: %w", err)
	}

	if err := s.UpdateOrderFill(ctx, order.ID, remainingBid, remainingAsk, trades); err != nil {
		return nil, fmt.Errorf("place order: update fill: %w", err)
	}

	status := OrderFillStatusPartial
	if remainingBid.IsZero() && remainingAsk.IsZero() {
		status = OrderFillStatusFilled
	}
	if order.Mode == FillModeImmediateOrCancel && (remainingBid.GreaterThan(decimal.Zero) || remainingAsk.GreaterThan(decimal.Zero)) {
		if err := s.CancelOrder(ctx, order.ID); err != nil {
			return nil, fmt.Errorf("place order: cancel on immediate-or-cancel: %w", err)
		}
		status = OrderFillStatusPartial
	}

	return &OrderFillResult{
		OrderID:         order.ID,
		Status:          status,
		BidAmountFilled: order.BidAmount.Sub(remainingBid),
		AskAmountFilled: order.AskAmount.Sub(remainingAsk),
		MatchedTradeIDs: matchedIDs,
	}, nil
}

// foldMatches walks the matching candidates in the order the matching query
// returned them (best price, then oldest first) consuming the taker's
// remaining bid/ask room, producing one Trade per candidate consumed.
func foldMatches(taker *Order, candidates []matchCandidate) (remainingBid, remainingAsk decimal.Decimal, trades []*Trade) {
	remainingBid = taker.BidAmount
	remainingAsk = taker.AskAmount

	for _, c := range candidates {
		if remainingBid.LessThanOrEqual(decimal.Zero) && remainingAsk.LessThanOrEqual(decimal.Zero) {
			break
		}
		fillAmount := decimal.Min(remainingBid, c.RemainingAsk)
		if fillAmount.LessThanOrEqual(decimal.Zero) {
			continue
		}
		takerFilled := fillAmount
		makerFilled := fillAmount.Mul(c.ExecutionPrice)
		if makerFilled.GreaterThan(remainingAsk) {
			makerFilled = remainingAsk
		}

		trades = append(trades, &Trade{
			MakerOrderID:      c.Order.ID,
			TakerOrderID:      taker.ID,
			MakerFilledAmount: makerFilled,
			TakerFilledAmount: takerFilled,
		})

		remainingBid = remainingBid.Sub(takerFilled)
		remainingAsk = remainingAsk.Sub(makerFilled)
	}

	if remainingBid.LessThan(decimal.Zero) {
		remainingBid = decimal.Zero
	}
	if remainingAsk.LessThan(decimal.Zero) {
		remainingAsk = decimal.Zero
	}
	return remainingBid, remainingAsk, trades
}

// SettleOrder dispatches on-chain settlement for every matched-not-settled
// trade whose taker is orderID, and records the ledger entry for the fill.
// When DISABLE_ONCHAIN_SETTLEMENT is "true" the executor is skipped and each
// trade is marked settled with a "test_transaction_<uuid>" id and no ledger
// row. A trade whose settlement call fails is logged and left matched; the
// remaining trades are still processed.
func (s *Service) SettleOrder(ctx context.Context, orderID string) error {
	trades, err := s.store.ListMatchedTradesForTaker(ctx, orderID)
	if err != nil {
		return errs.Database(err, "list matched trades")
	}

	for _, trade := range trades {
		if stdos.Getenv("DISABLE_ONCHAIN_SETTLEMENT") == "true" {
			if err := s.store.SettleTrade(ctx, trade.ID, "test_transaction_"+uuid.NewString()); err != nil {
				return errs.Database(err, "settle trade")
			}
			continue
		}
		maker, err := s.store.GetOrder(ctx, trade.MakerOrderID)
		if err != nil {
			return errs.NotFound("maker order %s: %v", trade.MakerOrderID, err)
		}
		taker, err := s.store.GetOrder(ctx, trade.TakerOrderID)
		if err != nil {
			return errs.NotFound("taker order %s: %v", trade.TakerOrderID, err)
		}

		makerWallet, err := s.wallets.GetWallet(ctx, maker.Wallet)
		if err != nil {
			return errs.NotFound("maker wallet %s: %v", maker.Wallet, err)
		}
		takerWallet, err := s.wallets.GetWallet(ctx, taker.Wallet)
		if err != nil {
			return errs.NotFound("taker wallet %s: %v", taker.Wallet, err)
		}
		makerAsset, err := s.assets.GetAsset(ctx, maker.AskAsset)
		if err != nil {
			return errs.NotFound("maker ask asset %s: %v", maker.AskAsset, err)
		}
		takerAsset, err := s.assets.GetAsset(ctx, taker.AskAsset)
		if err != nil {
			return errs.NotFound("taker ask asset %s: %v", taker.AskAsset, err)
		}

		out, err := s.executor.Execute(ctx, contracts.SettleOrderInput{
			Bidder:    makerWallet.Address,
			Asker:     takerWallet.Address,
			BidAsset:  takerAsset.Token,
			AskAsset:  makerAsset.Token,
			BidAmount: trade.TakerFilledAmount,
			AskAmount: trade.MakerFilledAmount,
		})
		if err != nil {
			s.Logger().Error("settle order failed", "trade", trade.ID, "err", errs.Contract(err, "settle order"))
			continue
		}
		settleOut, ok := out.(contracts.SettleOrderOutput)
		if !ok {
			return errs.Contract(nil, "unexpected settle order output %T", out)
		}

		if err := s.store.SettleTrade(ctx, trade.ID, settleOut.TransactionID()); err != nil {
			return errs.Database(err, "settle trade")
		}

		if s.ledger != nil {
			if _, err := s.ledger.RecordTransaction(ctx, makerWallet.Address, takerWallet.Address,
				ledger.Single{Asset: makerAsset.Token}, trade.MakerFilledAmount, settleOut,
				ledger.TransactionFillOrder, settleOut.TransactionID(), ""); err != nil {
				return fmt.Errorf("settle order: record ledger: %w", err)
			}
		}
	}
	return nil
}

// UpdateOrderFill increments the order's filled amounts, closes it when both
// remainders reach zero, unlocks the newly-filled bid portion, and cascades
// a symmetric update into each supplied trade's maker order.
func (s *Service) UpdateOrderFill(ctx context.Context, orderID string, remainingBid, remainingAsk decimal.Decimal, trades []*Trade) error {
	const maxAttempts = 3

	var order *Order
	var newFilledBid, newFilledAsk decimal.Decimal

	for attempt := 0; ; attempt++ {
		var err error
		order, err = s.store.GetOrder(ctx, orderID)
		if err != nil {
			return errs.NotFound("order %s: %v", orderID, err)
		}

		newFilledBid = order.FilledBidAmount.Add(order.BidAmount.Sub(remainingBid))
		newFilledAsk = order.FilledAskAmount.Add(order.AskAmount.Sub(remainingAsk))

		updated := *order
		updated.FilledBidAmount = newFilledBid
		updated.FilledAskAmount = newFilledAsk
		if remainingBid.IsZero() && remainingAsk.IsZero() {
			now := time.Now().UTC()
			updated.Status = OrderStatusClosed
			updated.FilledAt = &now
		}

		ok, err := s.store.UpdateOrderFill(ctx, orderID, order.FilledBidAmount, order.FilledAskAmount, &updated)
		if err != nil {
			return errs.Database(err, "update order fill")
		}
		if ok {
			break
		}
		if attempt == maxAttempts-1 {
			return errs.Database(nil, "concurrent fill update on order %s exceeded retries", orderID)
		}
	}

	if err := s.UnLockWalletAssets(ctx, order.Wallet, order.BidAsset, newFilledBid.Sub(order.FilledBidAmount)); err != nil {
		return fmt.Errorf("update order fill: unlock: %w", err)
	}

	for _, trade := range trades {
		makerOrder, err := s.store.GetOrder(ctx, trade.MakerOrderID)
		if err != nil {
			return errs.NotFound("maker order %s: %v", trade.MakerOrderID, err)
		}
		makerRemainingBid := makerOrder.BidAmount.Sub(makerOrder.FilledBidAmount.Add(trade.MakerFilledAmount))
		makerRemainingAsk := makerOrder.AskAmount.Sub(makerOrder.FilledAskAmount.Add(trade.TakerFilledAmount))
		if err := s.UpdateOrderFill(ctx, trade.MakerOrderID, makerRemainingBid, makerRemainingAsk, nil); err != nil {
			return fmt.Errorf("update order fill: cascade to maker: %w", err)
		}
	}
	return nil
}

// CancelOrder unlocks the bid-side residual (bid_amount - filled_bid_amount)
// if any remains locked, then marks the order cancelled.
func (s *Service) CancelOrder(ctx context.Context, orderID string) error {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return errs.NotFound("order %s: %v", orderID, err)
	}

	residual := order.BidAmount.Sub(order.FilledBidAmount)
	if residual.GreaterThan(decimal.Zero) {
		if err := s.UnLockWalletAssets(ctx, order.Wallet, order.BidAsset, residual); err != nil {
			return fmt.Errorf("cancel order: unlock residual: %w", err)
		}
	}

	order.Status = OrderStatusCancelled
	if err := s.store.UpdateOrderStatus(ctx, orderID, order); err != nil {
		return errs.Database(err, "update order status")
	}
	return nil
}

// GetOrder returns a single order by id.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, errs.NotFound("order %s: %v", orderID, err)
	}
	return order, nil
}

// GetOrders returns orders matching the given filter.
func (s *Service) GetOrders(ctx context.Context, filter OrderFilter) ([]*Order, error) {
	orders, err := s.store.ListOrders(ctx, filter)
	if err != nil {
		return nil, errs.Database(err, "list orders")
	}
	return orders, nil
}
