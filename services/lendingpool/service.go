package lendingpool

import (
	"context"
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
	ServiceID   = "lendingpool"
	ServiceName = "Lending Pool Service"
	Version     = "1.0.0"
)

// Manifest returns the service manifest.
func Manifest() *os.LegacyManifest {
	return &os.LegacyManifest{
		ServiceID:   ServiceID,
		Version:     Version,
		Description: "Pool bootstrap, supply/withdraw/borrow/repay/liquidate, and loan status tracking",
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

// Service implements LendingPoolEngine.
type Service struct {
	*base.BaseService
	store    StoreInterface
	executor contracts.Executor
	accounts *accounts.Service
	assets   *assetbook.Service
	ledger   *ledger.Service
}

// New creates a new lending pool service backed by a Supabase-backed store.
func New(serviceOS os.ServiceOS, executor contracts.Executor, accountsSvc *accounts.Service, assetsSvc *assetbook.Service, ledgerSvc *ledger.Service) (*Service, error) {
	return NewWithStore(serviceOS, NewStore(), executor, accountsSvc, assetsSvc, ledgerSvc)
}

// NewWithStore creates a new lending pool service against an explicit store,
// letting tests substitute an in-memory StoreInterface.
func NewWithStore(serviceOS os.ServiceOS, store StoreInterface, executor contracts.Executor, accountsSvc *accounts.Service, assetsSvc *assetbook.Service, ledgerSvc *ledger.Service) (*Service, error) {
	s := &Service{
		BaseService: base.NewBaseService(ServiceID, ServiceName, Version, serviceOS),
		store:       store,
		executor:    executor,
		accounts:    accountsSvc,
		assets:      assetsSvc,
		ledger:      ledgerSvc,
	}
	s.SetStore(s.store)
	return s, nil
}

// CreatePool bootstraps a pool: resolves the yield asset, calls the pool
// factory, creates a System account with treasury and reserve wallets
// attached to the addresses the factory returned, associates and KYCs both
// wallets against the reserve asset, and grants the pool access levels 0 and
// 1 so it can mint yield tokens and call account primitives.
func (s *Service) CreatePool(ctx context.Context, args CreatePoolArgs) (*LendingPool, error) {
	reserveAsset, err := s.assets.GetAsset(ctx, args.ReserveAsset)
	if err != nil {
		return nil, err
	}

	yieldAsset, err := s.resolveYieldAsset(ctx, reserveAsset, args)
	if err != nil {
		return nil, err
	}

	out, err := s.executor.Execute(ctx, contracts.CreatePoolInput{
		ReserveAsset:         reserveAsset.Token,
		LoanToValue:          args.LoanToValue,
		BaseRate:             args.BaseRate,
		Slope1:               args.Slope1,
		Slope2:               args.Slope2,
		LiquidationThreshold: args.LiquidationThreshold,
		LiquidationDiscount:  args.LiquidationDiscount,
		ReserveFactor:        args.ReserveFactor,
	})
	if err != nil {
		return nil, errs.Contract(err, "create pool factory call")
	}
	created, ok := out.(contracts.CreatePoolOutput)
	if !ok {
		return nil, errs.Contract(nil, "unexpected create-pool output %T", out)
	}

	poolContractID, err := s.executor.ContractIDFromEVMAddress(ctx, created.PoolAddress)
	if err != nil {
		return nil, errs.Contract(err, "derive pool contract id from %s", created.PoolAddress)
	}

	poolAccount, err := s.accounts.CreateBareAccount(ctx, accounts.AccountTypeSystem, accounts.AccountStatusVerified)
	if err != nil {
		return nil, err
	}

	treasuryWallet, err := s.accounts.RegisterWallet(ctx, poolAccount.ID, created.TreasuryAddress)
	if err != nil {
		return nil, err
	}
	reserveWallet, err := s.accounts.RegisterWallet(ctx, poolAccount.ID, created.ReserveAddress)
	if err != nil {
		return nil, err
	}

	for _, w := range []*accounts.Wallet{treasuryWallet, reserveWallet} {
		if err := s.accounts.AssociateAsset(ctx, w, reserveAsset.ID, reserveAsset.Token); err != nil {
			return nil, err
		}
		if err := s.accounts.KYCAsset(ctx, w, reserveAsset.ID, reserveAsset.Token); err != nil {
			return nil, err
		}
	}

	if _, err := s.executor.Execute(ctx, contracts.GrantAccessInput{Account: created.PoolAddress, Level: 0}); err != nil {
		return nil, errs.Contract(err, "grant pool access level 0")
	}
	if _, err := s.executor.Execute(ctx, contracts.GrantAccessInput{Account: created.PoolAddress, Level: 1}); err != nil {
		return nil, errs.Contract(err, "grant pool access level 1")
	}

	pool := &LendingPool{
		PoolAddress:          created.PoolAddress,
		PoolContractID:       poolContractID,
		ReserveAsset:         reserveAsset.ID,
		YieldAsset:           yieldAsset.ID,
		LoanToValue:          args.LoanToValue,
		BaseRate:             args.BaseRate,
		Slope1:               args.Slope1,
		Slope2:               args.Slope2,
		LiquidationThreshold: args.LiquidationThreshold,
		LiquidationDiscount:  args.LiquidationDiscount,
		ReserveFactor:        args.ReserveFactor,
		TreasuryWallet:       treasuryWallet.ID,
		ReserveWallet:        reserveWallet.ID,
		PoolAccountID:        poolAccount.ID,
		Name:                 args.Name,
		Title:                args.Name,
	}
	if err := s.store.CreatePool(ctx, pool); err != nil {
		return nil, errs.Database(err, "persist pool")
	}
	return pool, nil
}

func (s *Service) resolveYieldAsset(ctx context.Context, reserveAsset *assetbook.Asset, args CreatePoolArgs) (*assetbook.Asset, error) {
	if args.ExistingYieldAsset != "" {
		return s.assets.GetAsset(ctx, args.ExistingYieldAsset)
	}
	if args.NewYieldAsset == nil {
		return nil, errs.Validation("either an existing yield asset id or new yield asset args must be supplied")
	}
	decimals := args.NewYieldAsset.Decimals
	if decimals == 0 {
		decimals = reserveAsset.Decimals
	}
	return s.assets.CreateAsset(ctx, assetbook.NewAssetArgs{
		Issuer:   reserveAsset.AssetManager,
		Type:     assetbook.AssetTypeYieldBearing,
		Name:     args.NewYieldAsset.Name,
		Symbol:   args.NewYieldAsset.Symbol,
		Decimals: decimals,
		Icon:     args.NewYieldAsset.Icon,
	})
}

// Supply deposits amount of a pool's reserve asset, associating and KYCing
// the wallet against the yield asset before the call so the minted yield
// tokens can land.
func (s *Service) Supply(ctx context.Context, walletID, poolID string, amount decimal.Decimal) (*PoolTransaction, error) {
	if amount.Sign() <= 0 {
		return nil, errs.Validation("supply amount must be positive")
	}
	pool, err := s.GetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	wallet, err := s.accounts.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	yieldAsset, err := s.assets.GetAsset(ctx, pool.YieldAsset)
	if err != nil {
		return nil, err
	}
	reserveAsset, err := s.assets.GetAsset(ctx, pool.ReserveAsset)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.AssociateAsset(ctx, wallet, yieldAsset.ID, yieldAsset.Token); err != nil {
		return nil, err
	}
	if err := s.accounts.KYCAsset(ctx, wallet, yieldAsset.ID, yieldAsset.Token); err != nil {
		return nil, err
	}

	out, err := s.executor.Execute(ctx, contracts.PoolDepositInput{PoolAddress: pool.PoolAddress, Wallet: wallet.ContractID, Amount: amount})
	if err != nil {
		return nil, errs.Contract(err, "pool deposit")
	}
	depositOut, ok := out.(contracts.PoolDepositOutput)
	if !ok {
		return nil, errs.Contract(nil, "unexpected pool-deposit output %T", out)
	}

	if _, err := s.ledger.RecordTransaction(ctx, wallet.Address, ledger.SystemParty,
		ledger.Deposit{Deposited: reserveAsset.ID, YieldAsset: yieldAsset.ID}, amount, out, ledger.TransactionLend, "", ""); err != nil {
		return nil, err
	}

	tx := &PoolTransaction{PoolID: pool.ID, WalletID: wallet.ID, Amount: amount, TransactionType: PoolTransactionSupply, Transaction: depositOut.TransactionID()}
	if err := s.store.CreatePoolTransaction(ctx, tx); err != nil {
		return nil, errs.Database(err, "persist pool transaction")
	}
	return tx, nil
}

// Withdraw burns yieldAmount of yield tokens and returns the corresponding
// underlying reserve asset, as reported by the contract.
func (s *Service) Withdraw(ctx context.Context, walletID, poolID string, yieldAmount decimal.Decimal) (*PoolTransaction, error) {
	if yieldAmount.Sign() <= 0 {
		return nil, errs.Validation("withdraw amount must be positive")
	}
	pool, err := s.GetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	wallet, err := s.accounts.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	yieldAsset, err := s.assets.GetAsset(ctx, pool.YieldAsset)
	if err != nil {
		return nil, err
	}
	reserveAsset, err := s.assets.GetAsset(ctx, pool.ReserveAsset)
	if err != nil {
		return nil, err
	}

	out, err := s.executor.Execute(ctx, contracts.PoolWithdrawInput{PoolAddress: pool.PoolAddress, Wallet: wallet.ContractID, YieldAmount: yieldAmount})
	if err != nil {
		return nil, errs.Contract(err, "pool withdraw")
	}
	withdrawOut, ok := out.(contracts.PoolWithdrawOutput)
	if !ok {
		return nil, errs.Contract(nil, "unexpected pool-withdraw output %T", out)
	}

	if _, err := s.ledger.RecordTransaction(ctx, wallet.Address, ledger.SystemParty,
		ledger.Withdraw{YieldAsset: yieldAsset.ID, UnderlyingAsset: reserveAsset.ID}, yieldAmount, out, ledger.TransactionWithdraw, "", ""); err != nil {
		return nil, err
	}

	tx := &PoolTransaction{PoolID: pool.ID, WalletID: wallet.ID, Amount: withdrawOut.UnderlyingReturned, TransactionType: PoolTransactionWithdraw, Transaction: withdrawOut.TransactionID()}
	if err := s.store.CreatePoolTransaction(ctx, tx); err != nil {
		return nil, errs.Database(err, "persist pool transaction")
	}
	return tx, nil
}

// Borrow opens a new loan collateralized by collateralAmount of
// collateralAssetID, associating and KYCing the borrower against the
// reserve asset before the call.
func (s *Service) Borrow(ctx context.Context, walletID, poolID string, collateralAmount decimal.Decimal, collateralAssetID string) (*Loan, error) {
	if collateralAmount.Sign() <= 0 {
		return nil, errs.Validation("collateral amount must be positive")
	}
	pool, err := s.GetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	wallet, err := s.accounts.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	reserveAsset, err := s.assets.GetAsset(ctx, pool.ReserveAsset)
	if err != nil {
		return nil, err
	}
	collateralAsset, err := s.assets.GetAsset(ctx, collateralAssetID)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.AssociateAsset(ctx, wallet, reserveAsset.ID, reserveAsset.Token); err != nil {
		return nil, err
	}
	if err := s.accounts.KYCAsset(ctx, wallet, reserveAsset.ID, reserveAsset.Token); err != nil {
		return nil, err
	}

	out, err := s.executor.Execute(ctx, contracts.PoolBorrowInput{
		PoolAddress: pool.PoolAddress, Wallet: wallet.ContractID,
		CollateralAmount: collateralAmount, CollateralAsset: collateralAsset.Token,
	})
	if err != nil {
		return nil, errs.Contract(err, "pool borrow")
	}
	borrowOut, ok := out.(contracts.PoolBorrowOutput)
	if !ok {
		return nil, errs.Contract(nil, "unexpected pool-borrow output %T", out)
	}

	if _, err := s.ledger.RecordTransaction(ctx, wallet.Address, ledger.SystemParty,
		ledger.Borrow{Collateral: collateralAsset.ID, Borrowed: reserveAsset.ID}, collateralAmount, out, ledger.TransactionBorrow, "", ""); err != nil {
		return nil, err
	}

	loan := &Loan{
		AccountID: wallet.AccountID, WalletID: wallet.ID, Pool: pool.ID,
		CollateralAsset: collateralAsset.ID, PrincipalAmount: borrowOut.BorrowedAmount,
		Status: LoanStatusActive, Transaction: borrowOut.TransactionID(),
	}
	if err := s.store.CreateLoan(ctx, loan); err != nil {
		return nil, errs.Database(err, "persist loan")
	}

	tx := &PoolTransaction{PoolID: pool.ID, WalletID: wallet.ID, Amount: borrowOut.BorrowedAmount, TransactionType: PoolTransactionBorrow, Transaction: borrowOut.TransactionID()}
	if err := s.store.CreatePoolTransaction(ctx, tx); err != nil {
		return nil, errs.Database(err, "persist pool transaction")
	}
	return loan, nil
}

// Repay books a repayment against a loan and recomputes its status from the
// repayment-sum query: once cumulative repayments meet or exceed the
// principal the loan closes as Repaid.
func (s *Service) Repay(ctx context.Context, walletID, loanID string, amount decimal.Decimal) (*Loan, error) {
	if amount.Sign() <= 0 {
		return nil, errs.Validation("repay amount must be positive")
	}
	loan, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	pool, err := s.GetPool(ctx, loan.Pool)
	if err != nil {
		return nil, err
	}
	wallet, err := s.accounts.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	reserveAsset, err := s.assets.GetAsset(ctx, pool.ReserveAsset)
	if err != nil {
		return nil, err
	}
	collateralAsset, err := s.assets.GetAsset(ctx, loan.CollateralAsset)
	if err != nil {
		return nil, err
	}

	loanUUID, err := uuid.Parse(loan.ID)
	if err != nil {
		return nil, errs.Validation("invalid loan id %s", loan.ID)
	}

	out, err := s.executor.Execute(ctx, contracts.PoolRepayInput{PoolAddress: pool.PoolAddress, Wallet: wallet.ContractID, LoanID: loanUUID, Amount: amount})
	if err != nil {
		return nil, errs.Contract(err, "pool repay")
	}
	repayOut, ok := out.(contracts.PoolRepayOutput)
	if !ok {
		return nil, errs.Contract(nil, "unexpected pool-repay output %T", out)
	}

	if _, err := s.ledger.RecordTransaction(ctx, wallet.Address, ledger.SystemParty,
		ledger.Repay{Collateral: collateralAsset.ID, Borrowed: reserveAsset.ID}, amount, out, ledger.TransactionRepay, "", ""); err != nil {
		return nil, err
	}

	repayment := &LoanRepayment{LoanID: loan.ID, Amount: amount, Transaction: repayOut.TransactionID()}
	if err := s.store.CreateLoanRepayment(ctx, repayment); err != nil {
		return nil, errs.Database(err, "persist repayment")
	}

	repaid, err := s.store.RepaidAmount(ctx, loan.ID)
	if err != nil {
		return nil, errs.Database(err, "compute repaid amount")
	}
	if repaid.GreaterThanOrEqual(loan.PrincipalAmount) {
		loan.Status = LoanStatusRepaid
	} else {
		loan.Status = LoanStatusActive
	}
	if err := s.store.UpdateLoan(ctx, loan); err != nil {
		return nil, errs.Database(err, "update loan status")
	}
	return loan, nil
}

// Liquidate repays a defaulted loan on the liquidator's behalf and seizes the
// collateral the contract reports as obtained, associating and KYCing the
// liquidator against the collateral asset before the call.
func (s *Service) Liquidate(ctx context.Context, liquidatorWalletID, loanID string, amount decimal.Decimal) (*LoanLiquidation, error) {
	if amount.Sign() <= 0 {
		return nil, errs.Validation("liquidation amount must be positive")
	}
	loan, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	pool, err := s.GetPool(ctx, loan.Pool)
	if err != nil {
		return nil, err
	}
	liquidatorWallet, err := s.accounts.GetWallet(ctx, liquidatorWalletID)
	if err != nil {
		return nil, err
	}
	borrowerWallet, err := s.accounts.GetWallet(ctx, loan.WalletID)
	if err != nil {
		return nil, err
	}
	reserveAsset, err := s.assets.GetAsset(ctx, pool.ReserveAsset)
	if err != nil {
		return nil, err
	}
	collateralAsset, err := s.assets.GetAsset(ctx, loan.CollateralAsset)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.AssociateAsset(ctx, liquidatorWallet, collateralAsset.ID, collateralAsset.Token); err != nil {
		return nil, err
	}
	if err := s.accounts.KYCAsset(ctx, liquidatorWallet, collateralAsset.ID, collateralAsset.Token); err != nil {
		return nil, err
	}

	loanUUID, err := uuid.Parse(loan.ID)
	if err != nil {
		return nil, errs.Validation("invalid loan id %s", loan.ID)
	}

	out, err := s.executor.Execute(ctx, contracts.PoolLiquidateInput{
		PoolAddress: pool.PoolAddress, LiquidatorWallet: liquidatorWallet.ContractID,
		LoanID: loanUUID, Amount: amount,
	})
	if err != nil {
		return nil, errs.Contract(err, "pool liquidate")
	}
	liquidateOut, ok := out.(contracts.PoolLiquidateOutput)
	if !ok {
		return nil, errs.Contract(nil, "unexpected pool-liquidate output %T", out)
	}

	if _, err := s.ledger.RecordTransaction(ctx, liquidatorWallet.Address, ledger.SystemParty,
		ledger.LiquidateLoan{Reserve: reserveAsset.ID, Collateral: collateralAsset.ID}, amount, out, ledger.TransactionLiquidate, "", borrowerWallet.Address); err != nil {
		return nil, err
	}

	loan.Status = LoanStatusLiquidated
	if err := s.store.UpdateLoan(ctx, loan); err != nil {
		return nil, errs.Database(err, "update loan status")
	}

	liquidation := &LoanLiquidation{
		LoanID: loan.ID, LiquidatorWalletID: liquidatorWallet.ID,
		AmountRepaid: amount, CollateralSeized: liquidateOut.ObtainedCollateral,
		Transaction: liquidateOut.TransactionID(),
	}
	if err := s.store.CreateLoanLiquidation(ctx, liquidation); err != nil {
		return nil, errs.Database(err, "persist liquidation")
	}
	return liquidation, nil
}

// CreateSnapShot reads the pool's on-chain stats and persists them as a new
// immutable PoolSnapshot.
func (s *Service) CreateSnapShot(ctx context.Context, poolID string) (*PoolSnapshot, error) {
	pool, err := s.GetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	out, err := s.executor.Execute(ctx, contracts.GetPoolStatsInput{PoolAddress: pool.PoolAddress})
	if err != nil {
		return nil, errs.Contract(err, "get pool stats")
	}
	statsOut, ok := out.(contracts.GetPoolStatsOutput)
	if !ok {
		return nil, errs.Contract(nil, "unexpected pool-stats output %T", out)
	}

	snap := &PoolSnapshot{
		LendingPoolID:      pool.ID,
		TotalSupply:        statsOut.Stats.TotalSupply,
		TotalBorrow:        statsOut.Stats.TotalBorrow,
		AvailableLiquidity: statsOut.Stats.AvailableLiquidity,
		UtilizationRate:    statsOut.Stats.UtilizationRate,
		SupplyAPY:          statsOut.Stats.SupplyAPY,
		BorrowAPY:          statsOut.Stats.BorrowAPY,
	}
	if err := s.store.CreateSnapshot(ctx, snap); err != nil {
		return nil, errs.Database(err, "persist snapshot")
	}
	return snap, nil
}

// GetSnapShot returns the most recently created snapshot for a pool.
func (s *Service) GetSnapShot(ctx context.Context, poolID string) (*PoolSnapshot, error) {
	snap, err := s.store.LatestSnapshot(ctx, poolID)
	if err != nil {
		return nil, errs.NotFound("snapshot for pool %s: %v", poolID, err)
	}
	return snap, nil
}

// GetPool reads a pool by id.
func (s *Service) GetPool(ctx context.Context, id string) (*LendingPool, error) {
	pool, err := s.store.GetPool(ctx, id)
	if err != nil {
		return nil, errs.NotFound("pool %s: %v", id, err)
	}
	return pool, nil
}

// ListPools lists every registered pool.
func (s *Service) ListPools(ctx context.Context) ([]*LendingPool, error) {
	return s.store.ListPools(ctx)
}

// GetLoan reads a loan by id.
func (s *Service) GetLoan(ctx context.Context, id string) (*Loan, error) {
	loan, err := s.store.GetLoan(ctx, id)
	if err != nil {
		return nil, errs.NotFound("loan %s: %v", id, err)
	}
	return loan, nil
}

// ListLoansByAccount lists every loan an account has opened, across pools.
func (s *Service) ListLoansByAccount(ctx context.Context, accountID string) ([]*Loan, error) {
	return s.store.ListLoansByAccount(ctx, accountID)
}
