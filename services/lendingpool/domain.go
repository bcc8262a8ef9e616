// Package lendingpool implements LendingPoolEngine: pool bootstrapping,
// supply/withdraw/borrow/repay/liquidate and the loan status machine that
// follows from the repayment trail.
package lendingpool

import (
	"github.com/cradle-labs/cradle-core/services/base"
	"github.com/shopspring/decimal"
)

// LoanStatus tracks a Loan's repayment lifecycle.
type LoanStatus string

const (
	LoanStatusActive     LoanStatus = "active"
	LoanStatusRepaid     LoanStatus = "repaid"
	LoanStatusLiquidated LoanStatus = "liquidated"
)

// PoolTransactionType classifies a PoolTransaction row.
type PoolTransactionType string

const (
	PoolTransactionSupply    PoolTransactionType = "supply"
	PoolTransactionWithdraw  PoolTransactionType = "withdraw"
	PoolTransactionBorrow    PoolTransactionType = "borrow"
	PoolTransactionRepay     PoolTransactionType = "repay"
	PoolTransactionLiquidate PoolTransactionType = "liquidate"
)

// LendingPool is a single pool's configuration and on-chain linkage. Pools
// are append-only except for their configuration fields.
type LendingPool struct {
	base.BaseEntity
	PoolAddress          string          `json:"pool_address"`
	PoolContractID       string          `json:"pool_contract_id"`
	ReserveAsset         string          `json:"reserve_asset"`
	YieldAsset           string          `json:"yield_asset"`
	LoanToValue          decimal.Decimal `json:"loan_to_value"`
	BaseRate             decimal.Decimal `json:"base_rate"`
	Slope1               decimal.Decimal `json:"slope1"`
	Slope2               decimal.Decimal `json:"slope2"`
	LiquidationThreshold decimal.Decimal `json:"liquidation_threshold"`
	LiquidationDiscount  decimal.Decimal `json:"liquidation_discount"`
	ReserveFactor        decimal.Decimal `json:"reserve_factor"`
	TreasuryWallet       string          `json:"treasury_wallet"`
	ReserveWallet        string          `json:"reserve_wallet"`
	PoolAccountID        string          `json:"pool_account_id"`
	Name                 string          `json:"name,omitempty"`
	Title                string          `json:"title,omitempty"`
	Description          string          `json:"description,omitempty"`
}

// Loan is a single borrow position against a pool's collateral.
type Loan struct {
	base.BaseEntity
	AccountID       string          `json:"account_id"`
	WalletID        string          `json:"wallet_id"`
	Pool            string          `json:"pool"`
	CollateralAsset string          `json:"collateral_asset"`
	BorrowIndex     decimal.Decimal `json:"borrow_index"`
	PrincipalAmount decimal.Decimal `json:"principal_amount"`
	Status          LoanStatus      `json:"status"`
	Transaction     string          `json:"transaction,omitempty"`
}

// LoanRepayment is one append-only repayment against a Loan.
type LoanRepayment struct {
	base.BaseEntity
	LoanID      string          `json:"loan_id"`
	Amount      decimal.Decimal `json:"amount"`
	Transaction string          `json:"transaction,omitempty"`
}

// LoanLiquidation records a single liquidation of a Loan.
type LoanLiquidation struct {
	base.BaseEntity
	LoanID            string          `json:"loan_id"`
	LiquidatorWalletID string         `json:"liquidator_wallet_id"`
	AmountRepaid      decimal.Decimal `json:"amount_repaid"`
	CollateralSeized  decimal.Decimal `json:"collateral_seized"`
	Transaction       string          `json:"transaction,omitempty"`
}

// PoolTransaction is an append-only record of every supply/withdraw/
// borrow/repay/liquidate action taken against a pool.
type PoolTransaction struct {
	base.BaseEntity
	PoolID          string              `json:"pool_id"`
	WalletID        string              `json:"wallet_id"`
	Amount          decimal.Decimal     `json:"amount"`
	TransactionType PoolTransactionType `json:"transaction_type"`
	Transaction     string              `json:"transaction,omitempty"`
}

// PoolSnapshot is an immutable point-in-time reading of a pool's on-chain
// stats. The "latest" snapshot for a pool is the one with the greatest
// CreatedAt.
type PoolSnapshot struct {
	base.BaseEntity
	LendingPoolID      string          `json:"lending_pool_id"`
	TotalSupply        decimal.Decimal `json:"total_supply"`
	TotalBorrow        decimal.Decimal `json:"total_borrow"`
	AvailableLiquidity decimal.Decimal `json:"available_liquidity"`
	UtilizationRate    decimal.Decimal `json:"utilization_rate"`
	SupplyAPY          decimal.Decimal `json:"supply_apy"`
	BorrowAPY          decimal.Decimal `json:"borrow_apy"`
}

// NewYieldAsset describes a yield-bearing asset to mint fresh for a pool
// rather than reusing an already-registered one.
type NewYieldAsset struct {
	Name     string
	Symbol   string
	Decimals int
	Icon     string
}

// CreatePoolArgs is the input to CreatePool.
type CreatePoolArgs struct {
	ReserveAsset         string
	LoanToValue          decimal.Decimal
	BaseRate             decimal.Decimal
	Slope1               decimal.Decimal
	Slope2               decimal.Decimal
	LiquidationThreshold decimal.Decimal
	LiquidationDiscount  decimal.Decimal
	ReserveFactor        decimal.Decimal
	Name                 string
	// ExistingYieldAsset references an already-registered yield asset by id.
	// When empty, NewYieldAsset is used to mint one.
	ExistingYieldAsset string
	NewYieldAsset      *NewYieldAsset
}
