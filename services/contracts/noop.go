package contracts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DisabledExecutor is an Executor that never talks to a chain: every call
// returns a synthetic transaction id ("simulated-" plus a short hash of the
// call kind and a fresh random uuid, so ids differ from call to call), and the
// engines above it can still exercise their full read-after-write paths in
// tests and local runs. No environment variable selects it; callers construct
// it with NewDisabled.
type DisabledExecutor struct{}

// NewDisabled returns an Executor that performs no on-chain interaction.
func NewDisabled() *DisabledExecutor {
	return &DisabledExecutor{}
}

func syntheticTxID(kind string) string {
	sum := sha256.Sum256([]byte(kind + uuid.NewString()))
	return "simulated-" + hex.EncodeToString(sum[:8])
}

func (d *DisabledExecutor) Execute(ctx context.Context, input CallInput) (CallOutput, error) {
	switch in := input.(type) {
	case CreateAccountInput:
		return CreateAccountOutput{
			base:    base{TxID: syntheticTxID("create_account")},
			Address: syntheticAddress(in.Controller),
		}, nil

	case AssociateTokenInput:
		return AccountActionOutput{base: base{TxID: syntheticTxID("associate_token")}}, nil

	case LockAssetInput:
		return LockAssetOutput{base: base{TxID: syntheticTxID("lock_asset")}}, nil

	case UnlockAssetInput:
		return UnlockAssetOutput{base: base{TxID: syntheticTxID("unlock_asset")}}, nil

	case TransferAssetInput:
		return TransferAssetOutput{base: base{TxID: syntheticTxID("transfer_asset")}}, nil

	case WithdrawInput:
		return WithdrawOutput{base: base{TxID: syntheticTxID("withdraw")}, UnderlyingAmount: in.Amount}, nil

	case GrantKYCInput:
		return AccountActionOutput{base: base{TxID: syntheticTxID("grant_kyc")}}, nil

	case AirdropInput, MintInput:
		return AssetActionOutput{base: base{TxID: syntheticTxID("asset_action")}}, nil

	case CreateAssetInput:
		return AssetActionOutput{
			base:  base{TxID: syntheticTxID("create_asset")},
			Token: syntheticAddress(in.Symbol),
		}, nil

	case CreatePoolInput:
		return CreatePoolOutput{
			base:            base{TxID: syntheticTxID("create_pool")},
			PoolAddress:     syntheticAddress(in.ReserveAsset + "-pool"),
			TreasuryAddress: syntheticAddress(in.ReserveAsset + "-treasury"),
			ReserveAddress:  syntheticAddress(in.ReserveAsset + "-reserve"),
		}, nil

	case PoolDepositInput:
		return PoolDepositOutput{base: base{TxID: syntheticTxID("pool_deposit")}, YieldTokensMinted: in.Amount}, nil

	case PoolWithdrawInput:
		return PoolWithdrawOutput{base: base{TxID: syntheticTxID("pool_withdraw")}, UnderlyingReturned: in.YieldAmount}, nil

	case PoolBorrowInput:
		return PoolBorrowOutput{base: base{TxID: syntheticTxID("pool_borrow")}, BorrowedAmount: in.CollateralAmount}, nil

	case PoolRepayInput:
		return PoolRepayOutput{base: base{TxID: syntheticTxID("pool_repay")}, CollateralUnlocked: in.Amount}, nil

	case PoolLiquidateInput:
		return PoolLiquidateOutput{base: base{TxID: syntheticTxID("pool_liquidate")}, ObtainedCollateral: in.Amount}, nil

	case GetPoolStatsInput:
		return GetPoolStatsOutput{base: base{TxID: syntheticTxID("pool_stats")}, Stats: PoolStats{}}, nil

	case SettleOrderInput:
		return SettleOrderOutput{base: base{TxID: syntheticTxID("settle_order")}}, nil

	case GrantAccessInput:
		return GrantAccessOutput{base: base{TxID: syntheticTxID("grant_access")}}, nil

	case CreateListingInput:
		return CreateListingOutput{
			base:           base{TxID: syntheticTxID("create_listing")},
			ListingAddress: syntheticAddress(in.ListingAsset + "-listing"),
		}, nil

	case ListingPurchaseInput, ListingReturnInput, ListingWithdrawToBeneficiaryInput, UpdateListingStatusInput:
		return ListingActionOutput{base: base{TxID: syntheticTxID("listing_action")}}, nil

	case GetListingStatsInput:
		return GetListingStatsOutput{base: base{TxID: syntheticTxID("listing_stats")}, Stats: ListingStats{}}, nil

	case GetFeeInput:
		return GetFeeOutput{base: base{TxID: syntheticTxID("get_fee")}, Fee: decimal.Zero}, nil

	default:
		return nil, fmt.Errorf("contracts: unhandled call input %T", input)
	}
}

func (d *DisabledExecutor) ContractIDFromEVMAddress(ctx context.Context, hexAddress string) (string, error) {
	return syntheticAddress(hexAddress), nil
}

func (d *DisabledExecutor) Balance(ctx context.Context, accountContract string) (Balance, error) {
	return Balance{Native: decimal.Zero, Tokens: map[string]decimal.Decimal{}}, nil
}

func syntheticAddress(seed string) string {
	sum := sha256.Sum256([]byte("addr:" + seed))
	return "0x" + hex.EncodeToString(sum[:20])
}
