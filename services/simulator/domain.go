// Package simulator drives a scripted stream of order-book actions against
// the router: it schedules a batch of trades across a set of test accounts
// and markets, spends each account's budget as its slots execute, and pauses
// for operator recovery when a slot fails outright rather than just being
// rejected by matching.
package simulator

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ActionSlotState tracks a single scheduled action through its lifecycle.
type ActionSlotState string

const (
	SlotStatePending   ActionSlotState = "pending"
	SlotStateRunning   ActionSlotState = "running"
	SlotStateCompleted ActionSlotState = "completed"
	SlotStateFailed    ActionSlotState = "failed"
	SlotStateSkipped   ActionSlotState = "skipped"
)

// OrderActionSide is which side of a market an account is trading.
type OrderActionSide string

const (
	SideBid OrderActionSide = "bid"
	SideAsk OrderActionSide = "ask"
)

// OrderMatchingStrategy controls how a slot expects its order to fill.
type OrderMatchingStrategy string

const (
	MatchingStrategyTaker     OrderMatchingStrategy = "taker"
	MatchingStrategyMaker     OrderMatchingStrategy = "maker"
	MatchingStrategyCrossBook OrderMatchingStrategy = "cross_book"
)

// OrderAction is the order-placement payload a slot replays through the
// router when it runs.
type OrderAction struct {
	WalletID  string
	MarketID  string
	BidAsset  string
	AskAsset  string
	Side      OrderActionSide
	Strategy  OrderMatchingStrategy
	BidAmount decimal.Decimal
	AskAmount decimal.Decimal
}

// ActionSlot is one scheduled step of a simulation run: an account, an
// order action, and the bookkeeping needed to retry or recover it.
type ActionSlot struct {
	ID          string
	AccountID   string
	Action      OrderAction
	State       ActionSlotState
	Attempts    int
	ScheduledAt time.Time
	RanAt       *time.Time
	Err         string
}

// NewActionSlot builds a pending slot for the given account and action.
func NewActionSlot(accountID string, action OrderAction) *ActionSlot {
	return &ActionSlot{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Action:      action,
		State:       SlotStatePending,
		ScheduledAt: time.Now().UTC(),
	}
}

// SlotExecutionResult is what running a slot produced.
type SlotExecutionResult struct {
	Slot     *ActionSlot
	OrderID  string
	Status   string
	Attempts int
}

// SlotExecutionError wraps a failed slot run with the recovery action the
// operator chose (or the default when running unattended).
type SlotExecutionError struct {
	Slot     *ActionSlot
	Cause    error
	Recovery RecoveryAction
}

func (e *SlotExecutionError) Error() string {
	return fmt.Sprintf("slot %s failed after %d attempt(s): %v", e.Slot.ID, e.Slot.Attempts, e.Cause)
}

func (e *SlotExecutionError) Unwrap() error { return e.Cause }

// RecoveryAction is the decision made (by an operator, or a default policy)
// after a slot exhausts its retries.
type RecoveryAction string

const (
	RecoveryRetry RecoveryAction = "retry"
	RecoverySkip  RecoveryAction = "skip"
	RecoveryAbort RecoveryAction = "abort"
)

// SchedulerConfig shapes a generated schedule: how many accounts and trades
// to spread across which markets, and the amount range each trade draws from.
type SchedulerConfig struct {
	AccountIDs       []string
	Markets          []MarketDistribution
	TradesPerAccount int
	MinAmount        decimal.Decimal
	MaxAmount        decimal.Decimal
}

// MarketDistribution is one market (and its two assets) the scheduler can
// place orders against, weighted by Weight relative to its siblings.
type MarketDistribution struct {
	MarketID string
	AssetOne string
	AssetTwo string
	Weight   int
}

// SimulationStats summarizes a run for reporting and for the on-disk
// checkpoint.
type SimulationStats struct {
	TotalSlots     int
	Completed      int
	Failed         int
	Skipped        int
	StartedAt      time.Time
	LastCheckpoint time.Time
}

// SimulationState is the full checkpoint: the schedule's slots plus the stats
// accumulated so far, written to disk by Checkpoint so that a restarted
// simulator can load it with ResumeFromCheckpoint instead of replaying from
// scratch.
type SimulationState struct {
	Slots []*ActionSlot
	Stats SimulationStats
}
