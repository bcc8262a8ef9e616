// Package contracts defines the ContractExecutor capability: the opaque,
// external smart-contract execution layer every domain engine calls through.
// Nothing in this package talks to a chain; it only describes the tagged
// call/response shapes the real integration library (out of scope for this
// module, per spec §1) is expected to implement.
package contracts

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CallInput is the sealed union of every contract call the core can issue.
// Each concrete type below implements it; callers type-switch on the
// concrete type they expect back is unnecessary since CallOutput pairs
// one-to-one with CallInput by convention (same suffix).
type CallInput interface {
	callInput()
}

// CallOutput is the sealed union of every contract call response.
type CallOutput interface {
	callOutput()
	// TransactionID returns the on-chain transaction identifier every
	// successful call produces.
	TransactionID() string
}

// base is embedded by every concrete output to provide TransactionID().
type base struct {
	TxID string
}

func (b base) TransactionID() string { return b.TxID }

// --- CradleAccountFactory ----------------------------------------------------

type CreateAccountInput struct {
	Controller string
	AllowList  []string
}

func (CreateAccountInput) callInput() {}

type CreateAccountOutput struct {
	base
	Address string
}

func (CreateAccountOutput) callOutput() {}

// --- CradleAccount -----------------------------------------------------------

type AssociateTokenInput struct {
	AccountContract string
	Token           string
}

func (AssociateTokenInput) callInput() {}

type LockAssetInput struct {
	AccountContract string
	Asset           string
	Amount          decimal.Decimal
}

func (LockAssetInput) callInput() {}

type UnlockAssetInput struct {
	AccountContract string
	Asset           string
	Amount          decimal.Decimal
}

func (UnlockAssetInput) callInput() {}

type TransferAssetInput struct {
	AccountContract string
	Asset           string
	To              string
	Amount          decimal.Decimal
}

func (TransferAssetInput) callInput() {}

type WithdrawInput struct {
	AccountContract string
	Asset           string
	Amount          decimal.Decimal
}

func (WithdrawInput) callInput() {}

// AccountActionOutput is returned by AssociateToken, the one account action
// the ledger never needs to distinguish further.
type AccountActionOutput struct {
	base
}

func (AccountActionOutput) callOutput() {}

// LockAssetOutput is returned by CradleAccount.LockAsset.
type LockAssetOutput struct{ base }

func (LockAssetOutput) callOutput() {}

// UnlockAssetOutput is returned by CradleAccount.UnLockAsset.
type UnlockAssetOutput struct{ base }

func (UnlockAssetOutput) callOutput() {}

// TransferAssetOutput is returned by CradleAccount.TransferAsset.
type TransferAssetOutput struct{ base }

func (TransferAssetOutput) callOutput() {}

// WithdrawOutput is returned by CradleAccount.Withdraw, carrying the
// underlying amount actually returned to the caller.
type WithdrawOutput struct {
	base
	UnderlyingAmount decimal.Decimal
}

func (WithdrawOutput) callOutput() {}

// --- AssetManager / AssetIssuer ----------------------------------------------

type GrantKYCInput struct {
	Manager string
	Address string
}

func (GrantKYCInput) callInput() {}

type AirdropInput struct {
	AssetContract string
	Target        string
	Amount        decimal.Decimal
}

func (AirdropInput) callInput() {}

type MintInput struct {
	AssetContract string
	Amount        decimal.Decimal
}

func (MintInput) callInput() {}

type CreateAssetInput struct {
	Issuer    string
	Symbol    string
	Name      string
	ACL       int
	AllowList []string
}

func (CreateAssetInput) callInput() {}

type AssetActionOutput struct {
	base
	Token string
}

func (AssetActionOutput) callOutput() {}

// --- AssetLendingPoolFactory / AssetLendingPool ------------------------------

type CreatePoolInput struct {
	ReserveAsset         string
	LoanToValue          decimal.Decimal
	BaseRate             decimal.Decimal
	Slope1               decimal.Decimal
	Slope2               decimal.Decimal
	LiquidationThreshold decimal.Decimal
	LiquidationDiscount  decimal.Decimal
	ReserveFactor        decimal.Decimal
}

func (CreatePoolInput) callInput() {}

type CreatePoolOutput struct {
	base
	PoolAddress      string
	TreasuryAddress  string
	ReserveAddress   string
}

func (CreatePoolOutput) callOutput() {}

type PoolDepositInput struct {
	PoolAddress string
	Wallet      string
	Amount      decimal.Decimal
}

func (PoolDepositInput) callInput() {}

type PoolWithdrawInput struct {
	PoolAddress string
	Wallet      string
	YieldAmount decimal.Decimal
}

func (PoolWithdrawInput) callInput() {}

type PoolBorrowInput struct {
	PoolAddress      string
	Wallet           string
	CollateralAmount decimal.Decimal
	CollateralAsset  string
}

func (PoolBorrowInput) callInput() {}

type PoolRepayInput struct {
	PoolAddress string
	Wallet      string
	LoanID      uuid.UUID
	Amount      decimal.Decimal
}

func (PoolRepayInput) callInput() {}

type PoolLiquidateInput struct {
	PoolAddress      string
	LiquidatorWallet string
	LoanID           uuid.UUID
	Amount           decimal.Decimal
}

func (PoolLiquidateInput) callInput() {}

// PoolDepositOutput carries the yield tokens minted for a Supply.
type PoolDepositOutput struct {
	base
	YieldTokensMinted decimal.Decimal
}

func (PoolDepositOutput) callOutput() {}

// PoolWithdrawOutput carries the underlying amount returned for a Withdraw.
type PoolWithdrawOutput struct {
	base
	UnderlyingReturned decimal.Decimal
}

func (PoolWithdrawOutput) callOutput() {}

// PoolBorrowOutput carries the amount actually borrowed.
type PoolBorrowOutput struct {
	base
	BorrowedAmount decimal.Decimal
}

func (PoolBorrowOutput) callOutput() {}

// PoolRepayOutput carries the collateral released by a Repay.
type PoolRepayOutput struct {
	base
	CollateralUnlocked decimal.Decimal
}

func (PoolRepayOutput) callOutput() {}

// PoolLiquidateOutput carries the collateral seized by a Liquidate.
type PoolLiquidateOutput struct {
	base
	ObtainedCollateral decimal.Decimal
}

func (PoolLiquidateOutput) callOutput() {}

type GetPoolStatsInput struct {
	PoolAddress string
}

func (GetPoolStatsInput) callInput() {}

type PoolStats struct {
	TotalSupply       decimal.Decimal
	TotalBorrow       decimal.Decimal
	AvailableLiquidity decimal.Decimal
	UtilizationRate   decimal.Decimal
	SupplyAPY         decimal.Decimal
	BorrowAPY         decimal.Decimal
}

type GetPoolStatsOutput struct {
	base
	Stats PoolStats
}

func (GetPoolStatsOutput) callOutput() {}

// --- OrderBookSettler ---------------------------------------------------------

type SettleOrderInput struct {
	Bidder    string
	Asker     string
	BidAsset  string
	AskAsset  string
	BidAmount decimal.Decimal
	AskAmount decimal.Decimal
}

func (SettleOrderInput) callInput() {}

type SettleOrderOutput struct {
	base
}

func (SettleOrderOutput) callOutput() {}

// --- AccessController ----------------------------------------------------------

type GrantAccessInput struct {
	Account string
	Level   int
}

func (GrantAccessInput) callInput() {}

type GrantAccessOutput struct {
	base
}

func (GrantAccessOutput) callOutput() {}

// --- CradleListingFactory / CradleNativeListing -------------------------------

type CreateListingInput struct {
	FeeCollectorAddress string
	ReserveAccount      string
	MaxSupply           decimal.Decimal
	ListingAsset        string
	PurchaseAsset       string
	PurchasePrice       decimal.Decimal
	BeneficiaryAddress  string
	ShadowAsset         string
}

func (CreateListingInput) callInput() {}

type CreateListingOutput struct {
	base
	ListingAddress string
}

func (CreateListingOutput) callOutput() {}

type ListingPurchaseInput struct {
	ContractID string
	Buyer      string
	Amount     decimal.Decimal
}

func (ListingPurchaseInput) callInput() {}

type ListingReturnInput struct {
	ContractID string
	Account    string
	Amount     decimal.Decimal
}

func (ListingReturnInput) callInput() {}

type ListingWithdrawToBeneficiaryInput struct {
	ContractID string
	Amount     decimal.Decimal
}

func (ListingWithdrawToBeneficiaryInput) callInput() {}

type ListingActionOutput struct {
	base
}

func (ListingActionOutput) callOutput() {}

type GetListingStatsInput struct {
	ContractID string
}

func (GetListingStatsInput) callInput() {}

type ListingStats struct {
	TotalSold       decimal.Decimal
	TotalReturned   decimal.Decimal
	RemainingSupply decimal.Decimal
}

type GetListingStatsOutput struct {
	base
	Stats ListingStats
}

func (GetListingStatsOutput) callOutput() {}

type GetFeeInput struct {
	ContractID string
	Amount     decimal.Decimal
}

func (GetFeeInput) callInput() {}

type GetFeeOutput struct {
	base
	Fee decimal.Decimal
}

func (GetFeeOutput) callOutput() {}

// ListingStatus mirrors the contract-side status enum for UpdateListingStatus.
type ListingStatus string

const (
	ListingStatusPending   ListingStatus = "pending"
	ListingStatusOpen      ListingStatus = "open"
	ListingStatusClosed    ListingStatus = "closed"
	ListingStatusPaused    ListingStatus = "paused"
	ListingStatusCancelled ListingStatus = "cancelled"
)

type UpdateListingStatusInput struct {
	ContractID string
	NewStatus  ListingStatus
}

func (UpdateListingStatusInput) callInput() {}

// --- Balances & address helpers ------------------------------------------------

// Balance is the shape returned by wallet balance reads.
type Balance struct {
	Native decimal.Decimal
	Tokens map[string]decimal.Decimal
}

// Executor is the ContractExecutor capability consumed by every engine.
// Implementations submit a typed CallInput and receive a typed CallOutput
// or a classified error (internal/errs.Contract).
type Executor interface {
	Execute(ctx context.Context, input CallInput) (CallOutput, error)

	// ContractIDFromEVMAddress derives an on-chain contract id from a wallet's
	// EVM-style hex address, the way AccountsCore provisions a new Wallet row.
	ContractIDFromEVMAddress(ctx context.Context, hexAddress string) (string, error)

	// Balance reads a wallet's native and token balances.
	Balance(ctx context.Context, accountContract string) (Balance, error)
}
