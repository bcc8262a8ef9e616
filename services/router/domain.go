// Package router implements the ActionRouter: a single dispatch point that
// takes a tagged action and forwards it to the one domain service that owns
// it, wrapping the result in the matching output variant. It holds no store
// of its own — each domain service already manages its own store lifecycle,
// so routing adds no additional persistence concern, only the tagged
// dispatch surface itself.
package router

import (
	"github.com/cradle-labs/cradle-core/services/accounts"
	"github.com/cradle-labs/cradle-core/services/assetbook"
	"github.com/cradle-labs/cradle-core/services/lendingpool"
	"github.com/cradle-labs/cradle-core/services/listing"
	"github.com/cradle-labs/cradle-core/services/market"
	"github.com/cradle-labs/cradle-core/services/orderbook"
	"github.com/shopspring/decimal"
)

// Domain names one of the seven routed action families.
type Domain string

const (
	DomainAccounts         Domain = "accounts"
	DomainAssetBook        Domain = "asset_book"
	DomainMarkets          Domain = "markets"
	DomainMarketTimeSeries Domain = "market_time_series"
	DomainOrderBook        Domain = "order_book"
	DomainPool             Domain = "pool"
	DomainListing          Domain = "listing"
)

// Action is the sealed union of every action the router can dispatch. Each
// concrete type below belongs to exactly one Domain, reported by Domain().
type Action interface {
	action()
	Domain() Domain
}

// Output is the sealed union of every result the router can return, paired
// one-to-one with the Action that produced it.
type Output interface {
	output()
	Domain() Domain
}

// --- Accounts ----------------------------------------------------------

type CreateAccountAction struct {
	Type       accounts.AccountType
	Controller string
	AllowList  []string
}

func (CreateAccountAction) action()        {}
func (CreateAccountAction) Domain() Domain { return DomainAccounts }

type RegisterWalletAction struct {
	AccountID string
	Address   string
}

func (RegisterWalletAction) action()        {}
func (RegisterWalletAction) Domain() Domain { return DomainAccounts }

type HandleAssociateAssetsAction struct {
	WalletID string
}

func (HandleAssociateAssetsAction) action()        {}
func (HandleAssociateAssetsAction) Domain() Domain { return DomainAccounts }

type HandleKYCAssetsAction struct {
	WalletID string
}

func (HandleKYCAssetsAction) action()        {}
func (HandleKYCAssetsAction) Domain() Domain { return DomainAccounts }

type GetAccountAction struct {
	AccountID string
}

func (GetAccountAction) action()        {}
func (GetAccountAction) Domain() Domain { return DomainAccounts }

type GetWalletAction struct {
	WalletID string
}

func (GetWalletAction) action()        {}
func (GetWalletAction) Domain() Domain { return DomainAccounts }

type AccountsOutput struct {
	Account *accounts.Account
	Wallet  *accounts.Wallet
}

func (AccountsOutput) output()        {}
func (AccountsOutput) Domain() Domain { return DomainAccounts }

// --- AssetBook -----------------------------------------------------------

type CreateAssetAction struct {
	Args assetbook.NewAssetArgs
}

func (CreateAssetAction) action()        {}
func (CreateAssetAction) Domain() Domain { return DomainAssetBook }

type MintAssetAction struct {
	AssetID string
	Amount  decimal.Decimal
}

func (MintAssetAction) action()        {}
func (MintAssetAction) Domain() Domain { return DomainAssetBook }

type AirdropAssetAction struct {
	AssetID        string
	TargetContract string
	Amount         decimal.Decimal
}

func (AirdropAssetAction) action()        {}
func (AirdropAssetAction) Domain() Domain { return DomainAssetBook }

type GetAssetAction struct {
	AssetID string
}

func (GetAssetAction) action()        {}
func (GetAssetAction) Domain() Domain { return DomainAssetBook }

type ListAssetsAction struct{}

func (ListAssetsAction) action()        {}
func (ListAssetsAction) Domain() Domain { return DomainAssetBook }

type AssetBookOutput struct {
	Asset  *assetbook.Asset
	Assets []*assetbook.Asset
}

func (AssetBookOutput) output()        {}
func (AssetBookOutput) Domain() Domain { return DomainAssetBook }

// --- Markets ---------------------------------------------------------------

type CreateMarketAction struct {
	Args market.CreateMarketArgs
}

func (CreateMarketAction) action()        {}
func (CreateMarketAction) Domain() Domain { return DomainMarkets }

type GetMarketAction struct {
	MarketID string
}

func (GetMarketAction) action()        {}
func (GetMarketAction) Domain() Domain { return DomainMarkets }

type ListMarketsAction struct {
	Filter market.ListFilter
}

func (ListMarketsAction) action()        {}
func (ListMarketsAction) Domain() Domain { return DomainMarkets }

type MarketsOutput struct {
	Market  *market.Market
	Markets []*market.Market
}

func (MarketsOutput) output()        {}
func (MarketsOutput) Domain() Domain { return DomainMarkets }

// --- MarketTimeSeries --------------------------------------------------------

// ListMarketTimeSeriesAction is the registry's only routed action; rows are
// otherwise written exclusively by the aggregator, never through the router.
type ListMarketTimeSeriesAction struct {
	Filter market.TimeSeriesFilter
}

func (ListMarketTimeSeriesAction) action()        {}
func (ListMarketTimeSeriesAction) Domain() Domain { return DomainMarketTimeSeries }

type MarketTimeSeriesOutput struct {
	Rows []*market.MarketTimeSeries
}

func (MarketTimeSeriesOutput) output()        {}
func (MarketTimeSeriesOutput) Domain() Domain { return DomainMarketTimeSeries }

// --- OrderBook ---------------------------------------------------------------

type PlaceOrderAction struct {
	Args orderbook.NewOrderArgs
}

func (PlaceOrderAction) action()        {}
func (PlaceOrderAction) Domain() Domain { return DomainOrderBook }

type CancelOrderAction struct {
	OrderID string
}

func (CancelOrderAction) action()        {}
func (CancelOrderAction) Domain() Domain { return DomainOrderBook }

type GetOrderAction struct {
	OrderID string
}

func (GetOrderAction) action()        {}
func (GetOrderAction) Domain() Domain { return DomainOrderBook }

type GetOrdersAction struct {
	Filter orderbook.OrderFilter
}

func (GetOrdersAction) action()        {}
func (GetOrdersAction) Domain() Domain { return DomainOrderBook }

type OrderBookOutput struct {
	FillResult *orderbook.OrderFillResult
	Order      *orderbook.Order
	Orders     []*orderbook.Order
}

func (OrderBookOutput) output()        {}
func (OrderBookOutput) Domain() Domain { return DomainOrderBook }

// --- Pool (LendingPool) ------------------------------------------------------

type CreatePoolAction struct {
	Args lendingpool.CreatePoolArgs
}

func (CreatePoolAction) action()        {}
func (CreatePoolAction) Domain() Domain { return DomainPool }

type SupplyAction struct {
	WalletID string
	PoolID   string
	Amount   decimal.Decimal
}

func (SupplyAction) action()        {}
func (SupplyAction) Domain() Domain { return DomainPool }

type WithdrawPoolAction struct {
	WalletID   string
	PoolID      string
	YieldAmount decimal.Decimal
}

func (WithdrawPoolAction) action()        {}
func (WithdrawPoolAction) Domain() Domain { return DomainPool }

type BorrowAction struct {
	WalletID          string
	PoolID            string
	CollateralAmount  decimal.Decimal
	CollateralAssetID string
}

func (BorrowAction) action()        {}
func (BorrowAction) Domain() Domain { return DomainPool }

type RepayAction struct {
	WalletID string
	LoanID   string
	Amount   decimal.Decimal
}

func (RepayAction) action()        {}
func (RepayAction) Domain() Domain { return DomainPool }

type LiquidateAction struct {
	LiquidatorWalletID string
	LoanID             string
	Amount             decimal.Decimal
}

func (LiquidateAction) action()        {}
func (LiquidateAction) Domain() Domain { return DomainPool }

type GetPoolAction struct {
	PoolID string
}

func (GetPoolAction) action()        {}
func (GetPoolAction) Domain() Domain { return DomainPool }

type ListPoolsAction struct{}

func (ListPoolsAction) action()        {}
func (ListPoolsAction) Domain() Domain { return DomainPool }

type GetLoanAction struct {
	LoanID string
}

func (GetLoanAction) action()        {}
func (GetLoanAction) Domain() Domain { return DomainPool }

type PoolOutput struct {
	Pool        *lendingpool.LendingPool
	Pools       []*lendingpool.LendingPool
	Transaction *lendingpool.PoolTransaction
	Loan        *lendingpool.Loan
	Liquidation *lendingpool.LoanLiquidation
}

func (PoolOutput) output()        {}
func (PoolOutput) Domain() Domain { return DomainPool }

// --- Listing -------------------------------------------------------------

type CreateCompanyAction struct {
	Args listing.CreateCompanyArgs
}

func (CreateCompanyAction) action()        {}
func (CreateCompanyAction) Domain() Domain { return DomainListing }

type CreateListingAction struct {
	Args listing.CreateListingArgs
}

func (CreateListingAction) action()        {}
func (CreateListingAction) Domain() Domain { return DomainListing }

type PurchaseAction struct {
	WalletID  string
	ListingID string
	Amount    decimal.Decimal
}

func (PurchaseAction) action()        {}
func (PurchaseAction) Domain() Domain { return DomainListing }

type ReturnAssetAction struct {
	WalletID  string
	ListingID string
	Amount    decimal.Decimal
}

func (ReturnAssetAction) action()        {}
func (ReturnAssetAction) Domain() Domain { return DomainListing }

type WithdrawToBeneficiaryAction struct {
	ListingID string
	Amount    decimal.Decimal
}

func (WithdrawToBeneficiaryAction) action()        {}
func (WithdrawToBeneficiaryAction) Domain() Domain { return DomainListing }

type GetListingAction struct {
	ListingID string
}

func (GetListingAction) action()        {}
func (GetListingAction) Domain() Domain { return DomainListing }

type ListListingsAction struct{}

func (ListListingsAction) action()        {}
func (ListListingsAction) Domain() Domain { return DomainListing }

type ListingOutput struct {
	Company  *listing.Company
	Listing  *listing.Listing
	Listings []*listing.Listing
	TxID     string
}

func (ListingOutput) output()        {}
func (ListingOutput) Domain() Domain { return DomainListing }
