package router

import (
	"context"

	"github.com/cradle-labs/cradle-core/internal/errs"
	"github.com/cradle-labs/cradle-core/services/accounts"
	"github.com/cradle-labs/cradle-core/services/assetbook"
	"github.com/cradle-labs/cradle-core/services/lendingpool"
	"github.com/cradle-labs/cradle-core/services/listing"
	"github.com/cradle-labs/cradle-core/services/market"
	"github.com/cradle-labs/cradle-core/services/orderbook"
)

// Router dispatches a tagged Action to the one domain service that owns it.
// It holds no store of its own and runs no lifecycle: each domain service
// already owns and initializes its own store, so a call here simply forwards
// to an already-running service. A processor that reenters the router (e.g.
// a pool action that needs a ledger write) does so by calling straight into
// the domain service's own method, which acquires whatever store handle it
// needs independently — there is no shared handle to accidentally reuse.
type Router struct {
	accounts  *accounts.Service
	assetBook *assetbook.Service
	market    *market.Service
	orderBook *orderbook.Service
	pool      *lendingpool.Service
	listing   *listing.Service
}

// New builds a Router over already-constructed, already-started domain
// services.
func New(
	accountsSvc *accounts.Service,
	assetBookSvc *assetbook.Service,
	marketSvc *market.Service,
	orderBookSvc *orderbook.Service,
	poolSvc *lendingpool.Service,
	listingSvc *listing.Service,
) *Router {
	return &Router{
		accounts:  accountsSvc,
		assetBook: assetBookSvc,
		market:    marketSvc,
		orderBook: orderBookSvc,
		pool:      poolSvc,
		listing:   listingSvc,
	}
}

// Dispatch routes action to its owning domain service and wraps the result
// in the matching Output variant. A domain error propagates verbatim; there
// is no retry at this layer (the simulator and API layer own retry policy).
func (r *Router) Dispatch(ctx context.Context, action Action) (Output, error) {
	switch a := action.(type) {

	// --- Accounts ---
	case CreateAccountAction:
		acct, wallet, err := r.accounts.CreateAccount(ctx, a.Type, a.Controller, a.AllowList)
		if err != nil {
			return nil, err
		}
		return AccountsOutput{Account: acct, Wallet: wallet}, nil
	case RegisterWalletAction:
		wallet, err := r.accounts.RegisterWallet(ctx, a.AccountID, a.Address)
		if err != nil {
			return nil, err
		}
		return AccountsOutput{Wallet: wallet}, nil
	case HandleAssociateAssetsAction:
		wallet, err := r.accounts.GetWallet(ctx, a.WalletID)
		if err != nil {
			return nil, err
		}
		if err := r.accounts.HandleAssociateAssets(ctx, wallet); err != nil {
			return nil, err
		}
		return AccountsOutput{Wallet: wallet}, nil
	case HandleKYCAssetsAction:
		wallet, err := r.accounts.GetWallet(ctx, a.WalletID)
		if err != nil {
			return nil, err
		}
		if err := r.accounts.HandleKYCAssets(ctx, wallet); err != nil {
			return nil, err
		}
		return AccountsOutput{Wallet: wallet}, nil
	case GetAccountAction:
		acct, err := r.accounts.GetAccount(ctx, a.AccountID)
		if err != nil {
			return nil, err
		}
		return AccountsOutput{Account: acct}, nil
	case GetWalletAction:
		wallet, err := r.accounts.GetWallet(ctx, a.WalletID)
		if err != nil {
			return nil, err
		}
		return AccountsOutput{Wallet: wallet}, nil

	// --- AssetBook ---
	case CreateAssetAction:
		asset, err := r.assetBook.CreateAsset(ctx, a.Args)
		if err != nil {
			return nil, err
		}
		return AssetBookOutput{Asset: asset}, nil
	case MintAssetAction:
		asset, err := r.assetBook.GetAsset(ctx, a.AssetID)
		if err != nil {
			return nil, err
		}
		if err := r.assetBook.MintAsset(ctx, asset, a.Amount); err != nil {
			return nil, err
		}
		return AssetBookOutput{Asset: asset}, nil
	case AirdropAssetAction:
		asset, err := r.assetBook.GetAsset(ctx, a.AssetID)
		if err != nil {
			return nil, err
		}
		if err := r.assetBook.AirdropAsset(ctx, asset, a.TargetContract, a.Amount); err != nil {
			return nil, err
		}
		return AssetBookOutput{Asset: asset}, nil
	case GetAssetAction:
		asset, err := r.assetBook.GetAsset(ctx, a.AssetID)
		if err != nil {
			return nil, err
		}
		return AssetBookOutput{Asset: asset}, nil
	case ListAssetsAction:
		assets, err := r.assetBook.ListAssets(ctx)
		if err != nil {
			return nil, err
		}
		return AssetBookOutput{Assets: assets}, nil

	// --- Markets ---
	case CreateMarketAction:
		m, err := r.market.CreateMarket(ctx, a.Args)
		if err != nil {
			return nil, err
		}
		return MarketsOutput{Market: m}, nil
	case GetMarketAction:
		m, err := r.market.GetMarket(ctx, a.MarketID)
		if err != nil {
			return nil, err
		}
		return MarketsOutput{Market: m}, nil
	case ListMarketsAction:
		markets, err := r.market.ListMarkets(ctx, a.Filter)
		if err != nil {
			return nil, err
		}
		return MarketsOutput{Markets: markets}, nil

	// --- MarketTimeSeries ---
	case ListMarketTimeSeriesAction:
		rows, err := r.market.ListMarketTimeSeries(ctx, a.Filter)
		if err != nil {
			return nil, err
		}
		return MarketTimeSeriesOutput{Rows: rows}, nil

	// --- OrderBook ---
	case PlaceOrderAction:
		result, err := r.orderBook.PlaceOrder(ctx, a.Args)
		if err != nil {
			return nil, err
		}
		return OrderBookOutput{FillResult: result}, nil
	case CancelOrderAction:
		if err := r.orderBook.CancelOrder(ctx, a.OrderID); err != nil {
			return nil, err
		}
		return OrderBookOutput{}, nil
	case GetOrderAction:
		order, err := r.orderBook.GetOrder(ctx, a.OrderID)
		if err != nil {
			return nil, err
		}
		return OrderBookOutput{Order: order}, nil
	case GetOrdersAction:
		orders, err := r.orderBook.GetOrders(ctx, a.Filter)
		if err != nil {
			return nil, err
		}
		return OrderBookOutput{Orders: orders}, nil

	// --- Pool ---
	case CreatePoolAction:
		pool, err := r.pool.CreatePool(ctx, a.Args)
		if err != nil {
			return nil, err
		}
		return PoolOutput{Pool: pool}, nil
	case SupplyAction:
		tx, err := r.pool.Supply(ctx, a.WalletID, a.PoolID, a.Amount)
		if err != nil {
			return nil, err
		}
		return PoolOutput{Transaction: tx}, nil
	case WithdrawPoolAction:
		tx, err := r.pool.Withdraw(ctx, a.WalletID, a.PoolID, a.YieldAmount)
		if err != nil {
			return nil, err
		}
		return PoolOutput{Transaction: tx}, nil
	case BorrowAction:
		loan, err := r.pool.Borrow(ctx, a.WalletID, a.PoolID, a.CollateralAmount, a.CollateralAssetID)
		if err != nil {
			return nil, err
		}
		return PoolOutput{Loan: loan}, nil
	case RepayAction:
		loan, err := r.pool.Repay(ctx, a.WalletID, a.LoanID, a.Amount)
		if err != nil {
			return nil, err
		}
		return PoolOutput{Loan: loan}, nil
	case LiquidateAction:
		liq, err := r.pool.Liquidate(ctx, a.LiquidatorWalletID, a.LoanID, a.Amount)
		if err != nil {
			return nil, err
		}
		return PoolOutput{Liquidation: liq}, nil
	case GetPoolAction:
		pool, err := r.pool.GetPool(ctx, a.PoolID)
		if err != nil {
			return nil, err
		}
		return PoolOutput{Pool: pool}, nil
	case ListPoolsAction:
		pools, err := r.pool.ListPools(ctx)
		if err != nil {
			return nil, err
		}
		return PoolOutput{Pools: pools}, nil
	case GetLoanAction:
		loan, err := r.pool.GetLoan(ctx, a.LoanID)
		if err != nil {
			return nil, err
		}
		return PoolOutput{Loan: loan}, nil

	// --- Listing ---
	case CreateCompanyAction:
		company, err := r.listing.CreateCompany(ctx, a.Args)
		if err != nil {
			return nil, err
		}
		return ListingOutput{Company: company}, nil
	case CreateListingAction:
		l, err := r.listing.CreateListing(ctx, a.Args)
		if err != nil {
			return nil, err
		}
		return ListingOutput{Listing: l}, nil
	case PurchaseAction:
		txID, err := r.listing.Purchase(ctx, a.WalletID, a.ListingID, a.Amount)
		if err != nil {
			return nil, err
		}
		return ListingOutput{TxID: txID}, nil
	case ReturnAssetAction:
		txID, err := r.listing.ReturnAsset(ctx, a.WalletID, a.ListingID, a.Amount)
		if err != nil {
			return nil, err
		}
		return ListingOutput{TxID: txID}, nil
	case WithdrawToBeneficiaryAction:
		txID, err := r.listing.WithdrawToBeneficiary(ctx, a.ListingID, a.Amount)
		if err != nil {
			return nil, err
		}
		return ListingOutput{TxID: txID}, nil
	case GetListingAction:
		l, err := r.listing.GetListing(ctx, a.ListingID)
		if err != nil {
			return nil, err
		}
		return ListingOutput{Listing: l}, nil
	case ListListingsAction:
		listings, err := r.listing.ListListings(ctx)
		if err != nil {
			return nil, err
		}
		return ListingOutput{Listings: listings}, nil

	default:
		return nil, errs.Validation("router: unhandled action type %T", action)
	}
}
