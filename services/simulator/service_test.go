package simulator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountBudget_LockMovesAvailableIntoLocked(t *testing.T) {
	b := NewAccountBudget("acct-1", decimal.NewFromInt(100))

	require.NoError(t, b.Lock(decimal.NewFromInt(40)))
	assert.True(t, b.Available.Equal(decimal.NewFromInt(60)))
	assert.True(t, b.Locked.Equal(decimal.NewFromInt(40)))
	assert.True(t, b.Initial.Equal(b.Available.Add(b.Locked).Add(b.Spent)))
}

func TestAccountBudget_LockRejectsOverAvailable(t *testing.T) {
	b := NewAccountBudget("acct-1", decimal.NewFromInt(10))
	err := b.Lock(decimal.NewFromInt(11))
	require.Error(t, err)
}

func TestAccountBudget_SpendConsumesLockedNotAvailable(t *testing.T) {
	b := NewAccountBudget("acct-1", decimal.NewFromInt(100))
	require.NoError(t, b.Lock(decimal.NewFromInt(40)))
	require.NoError(t, b.Spend(decimal.NewFromInt(40)))

	assert.True(t, b.Locked.IsZero())
	assert.True(t, b.Spent.Equal(decimal.NewFromInt(40)))
	assert.True(t, b.Available.Equal(decimal.NewFromInt(60)))
	assert.True(t, b.Initial.Equal(b.Available.Add(b.Locked).Add(b.Spent)))
}

func TestAccountBudget_UnlockReturnsFundsToAvailable(t *testing.T) {
	b := NewAccountBudget("acct-1", decimal.NewFromInt(100))
	require.NoError(t, b.Lock(decimal.NewFromInt(40)))
	require.NoError(t, b.Unlock(decimal.NewFromInt(40)))

	assert.True(t, b.Available.Equal(decimal.NewFromInt(100)))
	assert.True(t, b.Locked.IsZero())
}

func TestBudgetStore_RoundTripsThroughGetAndSummary(t *testing.T) {
	store := NewBudgetStore()
	ctx := context.Background()
	store.Seed(ctx, "acct-1", decimal.NewFromInt(50))

	require.NoError(t, store.Lock(ctx, "acct-1", decimal.NewFromInt(20)))
	b, err := store.Get(ctx, "acct-1")
	require.NoError(t, err)
	assert.True(t, b.Locked.Equal(decimal.NewFromInt(20)))

	summary := store.Summary(ctx)
	require.Len(t, summary, 1)
	assert.Equal(t, "acct-1", summary[0].AccountID)
}

func TestBudgetStore_UnseededAccountIsNotFound(t *testing.T) {
	store := NewBudgetStore()
	_, err := store.Get(context.Background(), "ghost")
	require.Error(t, err)
}

func TestSlotScheduler_GeneratesOneSlotPerAccountPerTrade(t *testing.T) {
	cfg := SchedulerConfig{
		AccountIDs: []string{"a1", "a2", "a3"},
		Markets: []MarketDistribution{
			{MarketID: "m1", AssetOne: "btc", AssetTwo: "usd", Weight: 1},
			{MarketID: "m2", AssetOne: "eth", AssetTwo: "usd", Weight: 1},
		},
		TradesPerAccount: 4,
		MinAmount:        decimal.NewFromInt(1),
		MaxAmount:        decimal.NewFromInt(10),
	}
	slots := NewSlotScheduler(cfg, 42).GenerateSchedule()
	require.Len(t, slots, 12)

	for _, s := range slots {
		assert.Equal(t, SlotStatePending, s.State)
		assert.True(t, s.Action.BidAmount.GreaterThanOrEqual(cfg.MinAmount))
		assert.True(t, s.Action.BidAmount.LessThanOrEqual(cfg.MaxAmount))
	}
}

func TestSlotScheduler_AlternatesSideWithinAnAccount(t *testing.T) {
	cfg := SchedulerConfig{
		AccountIDs:       []string{"a1"},
		Markets:          []MarketDistribution{{MarketID: "m1", AssetOne: "btc", AssetTwo: "usd", Weight: 1}},
		TradesPerAccount: 4,
		MinAmount:        decimal.NewFromInt(1),
		MaxAmount:        decimal.NewFromInt(1),
	}
	slots := NewSlotScheduler(cfg, 7).GenerateSchedule()
	require.Len(t, slots, 4)

	assert.Equal(t, SideBid, slots[0].Action.Side)
	assert.Equal(t, SideAsk, slots[1].Action.Side)
	assert.Equal(t, SideBid, slots[2].Action.Side)
	assert.Equal(t, SideAsk, slots[3].Action.Side)
}

func TestSlotScheduler_SwapsAssetOrderOnOddAccountIndex(t *testing.T) {
	cfg := SchedulerConfig{
		AccountIDs:       []string{"a1", "a2"},
		Markets:          []MarketDistribution{{MarketID: "m1", AssetOne: "btc", AssetTwo: "usd", Weight: 1}},
		TradesPerAccount: 1,
		MinAmount:        decimal.NewFromInt(1),
		MaxAmount:        decimal.NewFromInt(1),
	}
	slots := NewSlotScheduler(cfg, 1).GenerateSchedule()
	require.Len(t, slots, 2)

	assert.Equal(t, "btc", slots[0].Action.BidAsset)
	assert.Equal(t, "usd", slots[0].Action.AskAsset)
	assert.Equal(t, "usd", slots[1].Action.BidAsset)
	assert.Equal(t, "btc", slots[1].Action.AskAsset)
}

func TestStatePersistence_SaveLoadDeleteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := NewStatePersistence(dir)

	state := SimulationState{
		Slots: []*ActionSlot{NewActionSlot("acct-1", OrderAction{MarketID: "m1"})},
		Stats: SimulationStats{TotalSlots: 1},
	}
	require.NoError(t, p.Save(state))

	loaded, err := p.Load()
	require.NoError(t, err)
	require.Len(t, loaded.Slots, 1)
	assert.Equal(t, "acct-1", loaded.Slots[0].AccountID)

	require.NoError(t, p.Delete())
	_, err = p.Load()
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, checkpointFileName))
	assert.True(t, os.IsNotExist(statErr))
}
