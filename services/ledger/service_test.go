package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/cradle-labs/cradle-core/internal/svctest"
	"github.com/cradle-labs/cradle-core/platform/os"
	"github.com/cradle-labs/cradle-core/services/contracts"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu   sync.Mutex
	rows []*Row
}

func newFakeStore() *fakeStore { return &fakeStore{} }

func (f *fakeStore) Initialize(ctx context.Context) error { return nil }
func (f *fakeStore) Shutdown(ctx context.Context) error   { return nil }
func (f *fakeStore) Close(ctx context.Context) error      { return nil }
func (f *fakeStore) Health(ctx context.Context) error     { return nil }

func (f *fakeStore) InsertRow(ctx context.Context, row *Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row.GenerateID()
	row.SetTimestamps()
	f.rows = append(f.rows, row)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	svcOS, cleanup := svctest.New(t, ServiceID, os.CapStorage)
	t.Cleanup(cleanup)

	store := newFakeStore()
	svc, err := NewWithStore(svcOS, store)
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })

	return svc, store
}

func TestRecordTransaction_PlainLockHasNoCascade(t *testing.T) {
	svc, store := newTestService(t)

	id, err := svc.RecordTransaction(context.Background(), "alice", "", Single{Asset: "USDC"},
		decimal.NewFromInt(100), contracts.LockAssetOutput{}, TransactionLock, "tx-1", "")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Len(t, store.rows, 1)
	assert.Equal(t, "alice", store.rows[0].FromAddress)
	assert.Equal(t, SystemParty, store.rows[0].ToAddress)
	assert.Equal(t, TransactionLock, store.rows[0].TransactionType)
}

func TestRecordTransaction_DepositCascadesSecondaryTransfer(t *testing.T) {
	svc, store := newTestService(t)

	out := contracts.PoolDepositOutput{YieldTokensMinted: decimal.NewFromInt(95)}
	_, err := svc.RecordTransaction(context.Background(), "alice", "pool-1",
		Deposit{Deposited: "USDC", YieldAsset: "yUSDC"}, decimal.NewFromInt(100), out, TransactionLend, "", "")
	require.NoError(t, err)

	require.Len(t, store.rows, 2)
	primary, secondary := store.rows[1], store.rows[0]
	assert.Equal(t, TransactionLend, primary.TransactionType)
	assert.Equal(t, "USDC", primary.Asset)

	assert.Equal(t, TransactionTransfer, secondary.TransactionType)
	assert.Equal(t, "yUSDC", secondary.Asset)
	assert.True(t, secondary.Amount.Equal(decimal.NewFromInt(95)))
	assert.Equal(t, "pool-1", secondary.FromAddress)
	assert.Equal(t, "alice", secondary.ToAddress)
}

func TestRecordTransaction_WithdrawSwapsDirectionAndAmount(t *testing.T) {
	svc, store := newTestService(t)

	out := contracts.PoolWithdrawOutput{UnderlyingReturned: decimal.NewFromInt(110)}
	_, err := svc.RecordTransaction(context.Background(), "alice", "pool-1",
		Withdraw{YieldAsset: "yUSDC", UnderlyingAsset: "USDC"}, decimal.NewFromInt(100), out, TransactionWithdraw, "", "")
	require.NoError(t, err)

	require.Len(t, store.rows, 2)
	primary := store.rows[1]
	assert.Equal(t, TransactionWithdraw, primary.TransactionType)
	assert.Equal(t, "USDC", primary.Asset)
	assert.True(t, primary.Amount.Equal(decimal.NewFromInt(110)))
	assert.Equal(t, "pool-1", primary.FromAddress)
	assert.Equal(t, "alice", primary.ToAddress)
}

func TestRecordTransaction_BorrowCascadesSecondaryLock(t *testing.T) {
	svc, store := newTestService(t)

	out := contracts.PoolBorrowOutput{BorrowedAmount: decimal.NewFromInt(50)}
	_, err := svc.RecordTransaction(context.Background(), "pool-1", "alice",
		Borrow{Collateral: "ETH", Borrowed: "USDC"}, decimal.NewFromInt(50), out, TransactionBorrow, "", "")
	require.NoError(t, err)

	require.Len(t, store.rows, 2)
	primary, secondary := store.rows[1], store.rows[0]
	assert.Equal(t, TransactionBorrow, primary.TransactionType)
	assert.Equal(t, "USDC", primary.Asset)
	assert.Equal(t, TransactionLock, secondary.TransactionType)
	assert.Equal(t, "ETH", secondary.Asset)
}

func TestRecordTransaction_RepayCascadesSecondaryUnlock(t *testing.T) {
	svc, store := newTestService(t)

	out := contracts.PoolRepayOutput{CollateralUnlocked: decimal.NewFromInt(10)}
	_, err := svc.RecordTransaction(context.Background(), "alice", "pool-1",
		Repay{Collateral: "ETH", Borrowed: "USDC"}, decimal.NewFromInt(50), out, TransactionRepay, "", "")
	require.NoError(t, err)

	require.Len(t, store.rows, 2)
	assert.Equal(t, TransactionRepay, store.rows[1].TransactionType)
	assert.Equal(t, TransactionUnlock, store.rows[0].TransactionType)
	assert.True(t, store.rows[0].Amount.Equal(decimal.NewFromInt(10)))
}

func TestRecordTransaction_LiquidateCascadesToSecondaryParty(t *testing.T) {
	svc, store := newTestService(t)

	out := contracts.PoolLiquidateOutput{ObtainedCollateral: decimal.NewFromInt(20)}
	_, err := svc.RecordTransaction(context.Background(), "liquidator", "pool-1",
		LiquidateLoan{Reserve: "USDC", Collateral: "ETH"}, decimal.NewFromInt(20), out, TransactionLiquidate, "", "borrower")
	require.NoError(t, err)

	require.Len(t, store.rows, 2)
	secondary := store.rows[0]
	assert.Equal(t, TransactionUnlock, secondary.TransactionType)
	assert.Equal(t, "ETH", secondary.Asset)
	assert.Equal(t, "pool-1", secondary.FromAddress)
	assert.Equal(t, "borrower", secondary.ToAddress)
}

func TestRecordTransaction_SettleOrderHasNoCascade(t *testing.T) {
	svc, store := newTestService(t)

	out := contracts.SettleOrderOutput{}
	_, err := svc.RecordTransaction(context.Background(), "bidder", "asker",
		Single{Asset: "USDC"}, decimal.NewFromInt(30), out, TransactionFillOrder, "", "")
	require.NoError(t, err)

	require.Len(t, store.rows, 1)
	assert.Equal(t, TransactionFillOrder, store.rows[0].TransactionType)
}

func TestRecordTransaction_ListingPurchaseBooksBuyListed(t *testing.T) {
	svc, store := newTestService(t)

	out := contracts.ListingActionOutput{}
	_, err := svc.RecordTransaction(context.Background(), "buyer", "listing-1",
		ListingPurchase{Purchased: "ASSET", PayingWith: "USDC"}, decimal.NewFromInt(5), out, TransactionBuyListed, "", "")
	require.NoError(t, err)

	require.Len(t, store.rows, 1)
	assert.Equal(t, TransactionBuyListed, store.rows[0].TransactionType)
	assert.Equal(t, "ASSET", store.rows[0].Asset)
}

func TestRecordTransaction_WithdrawToBeneficiaryIsNotBuyListed(t *testing.T) {
	svc, store := newTestService(t)

	out := contracts.ListingActionOutput{}
	_, err := svc.RecordTransaction(context.Background(), "listing-1", "beneficiary",
		Single{Asset: "USDC"}, decimal.NewFromInt(5), out, TransactionListingBeneficiaryWithdraw, "", "")
	require.NoError(t, err)

	require.Len(t, store.rows, 1)
	assert.Equal(t, TransactionListingBeneficiaryWithdraw, store.rows[0].TransactionType)
	assert.NotEqual(t, TransactionBuyListed, store.rows[0].TransactionType)
}
