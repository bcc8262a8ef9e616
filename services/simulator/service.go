package simulator

import (
	"context"
	"fmt"
	"time"

	"github.com/cradle-labs/cradle-core/platform/os"
	"github.com/cradle-labs/cradle-core/services/base"
	"github.com/cradle-labs/cradle-core/services/orderbook"
	"github.com/cradle-labs/cradle-core/services/router"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	ServiceID   = "simulator"
	ServiceName = "Order Book Simulator"
	Version     = "1.0.0"

	maxAttemptsPerSlot = 3
)

// Manifest returns the service manifest.
func Manifest() *os.LegacyManifest {
	return &os.LegacyManifest{
		ServiceID:   ServiceID,
		Version:     Version,
		Description: "Scripted order flow generator for exercising the order book",
		RequiredCapabilities: []os.Capability{
			os.CapStorage,
		},
		ResourceLimits: os.ResourceLimits{
			MaxMemory:  64 * 1024 * 1024,
			MaxCPUTime: 60 * time.Second,
		},
	}
}

// RecoveryPrompter asks an operator what to do about a slot that failed
// every retry. ConsolePrompter blocks on stdin; WebSocket-backed prompters
// forward the same decision over a connected operator session.
type RecoveryPrompter interface {
	AskRecoveryAction(ctx context.Context, slot *ActionSlot, cause error) RecoveryAction
}

// Service runs scheduled ActionSlots through the router, pacing dispatch
// with a token bucket and tracking each account's spend against its budget.
type Service struct {
	*base.BaseService

	router    *router.Router
	budgets   *BudgetStore
	prompter  RecoveryPrompter
	persister *StatePersistence

	limiter *rate.Limiter

	state SimulationState
}

// New creates a simulator service. limiter paces slot execution (e.g.
// rate.NewLimiter(rate.Every(200*time.Millisecond), 1) for ~5 actions/sec).
// prompter may be nil, in which case a failed slot after max retries is
// always skipped rather than interactively recovered.
func New(serviceOS os.ServiceOS, r *router.Router, limiter *rate.Limiter, prompter RecoveryPrompter, checkpointDir string) *Service {
	s := &Service{
		BaseService: base.NewBaseService(ServiceID, ServiceName, Version, serviceOS),
		router:      r,
		budgets:     NewBudgetStore(),
		prompter:    prompter,
		limiter:     limiter,
		persister:   NewStatePersistence(checkpointDir),
	}
	return s
}

// SeedBudget registers accountID's starting budget for this run.
func (s *Service) SeedBudget(accountID string, initial decimal.Decimal) {
	s.budgets.Seed(context.Background(), accountID, initial)
}

// BudgetSummary returns a snapshot of every tracked account budget.
func (s *Service) BudgetSummary() []*AccountBudget {
	return s.budgets.Summary(context.Background())
}

// Schedule replaces the pending work queue with a freshly generated one.
func (s *Service) Schedule(cfg SchedulerConfig, seed int64) {
	s.state = SimulationState{
		Slots: NewSlotScheduler(cfg, seed).GenerateSchedule(),
		Stats: SimulationStats{StartedAt: time.Now().UTC()},
	}
	s.state.Stats.TotalSlots = len(s.state.Slots)
}

// Run executes every pending slot in order, pacing dispatch through the
// rate limiter and retrying a failing slot up to maxAttemptsPerSlot times
// before asking the configured RecoveryPrompter (or defaulting to skip).
func (s *Service) Run(ctx context.Context) (SimulationStats, error) {
	for _, slot := range s.state.Slots {
		if slot.State == SlotStateCompleted || slot.State == SlotStateSkipped {
			continue
		}
		if err := s.runSlot(ctx, slot); err != nil {
			var slotErr *SlotExecutionError
			if as, ok := err.(*SlotExecutionError); ok {
				slotErr = as
			}
			if slotErr != nil && slotErr.Recovery == RecoveryAbort {
				return s.state.Stats, err
			}
		}
	}
	return s.state.Stats, nil
}

// runSlot executes one slot with retry, pacing each attempt through the
// limiter, and resolves a recovery decision if every attempt fails.
func (s *Service) runSlot(ctx context.Context, slot *ActionSlot) error {
	slot.State = SlotStateRunning
	var lastErr error

	for slot.Attempts < maxAttemptsPerSlot {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		slot.Attempts++
		_, err := s.dispatchSlot(ctx, slot)
		if err == nil {
			now := time.Now().UTC()
			slot.State = SlotStateCompleted
			slot.RanAt = &now
			s.state.Stats.Completed++
			return nil
		}
		lastErr = err
		slot.Err = err.Error()
	}

	recovery := RecoverySkip
	if s.prompter != nil {
		recovery = s.prompter.AskRecoveryAction(ctx, slot, lastErr)
	}

	switch recovery {
	case RecoveryRetry:
		slot.Attempts = 0
		return s.runSlot(ctx, slot)
	case RecoveryAbort:
		slot.State = SlotStateFailed
		s.state.Stats.Failed++
		return &SlotExecutionError{Slot: slot, Cause: lastErr, Recovery: RecoveryAbort}
	default:
		slot.State = SlotStateSkipped
		s.state.Stats.Skipped++
		return &SlotExecutionError{Slot: slot, Cause: lastErr, Recovery: RecoverySkip}
	}
}

func (s *Service) dispatchSlot(ctx context.Context, slot *ActionSlot) (*orderbook.OrderFillResult, error) {
	amount := slot.Action.BidAmount
	if err := s.budgets.Lock(ctx, slot.AccountID, amount); err != nil {
		return nil, err
	}

	orderType := orderbook.OrderTypeLimit
	mode := orderbook.FillModeGoodTillCancel
	switch slot.Action.Strategy {
	case MatchingStrategyTaker:
		orderType = orderbook.OrderTypeMarket
		mode = orderbook.FillModeImmediateOrCancel
	case MatchingStrategyCrossBook:
		mode = orderbook.FillModeFillOrKill
	}

	out, err := s.router.Dispatch(ctx, router.PlaceOrderAction{Args: orderbook.NewOrderArgs{
		Wallet:    slot.Action.WalletID,
		MarketID:  slot.Action.MarketID,
		BidAsset:  slot.Action.BidAsset,
		AskAsset:  slot.Action.AskAsset,
		BidAmount: slot.Action.BidAmount,
		AskAmount: slot.Action.AskAmount,
		Mode:      mode,
		OrderType: orderType,
	}})
	if err != nil {
		_ = s.budgets.Unlock(ctx, slot.AccountID, amount)
		return nil, err
	}

	obOut, ok := out.(router.OrderBookOutput)
	if !ok || obOut.FillResult == nil {
		_ = s.budgets.Unlock(ctx, slot.AccountID, amount)
		return nil, fmt.Errorf("router returned unexpected output for PlaceOrderAction: %T", out)
	}
	if err := s.budgets.Spend(ctx, slot.AccountID, amount); err != nil {
		return nil, err
	}
	return obOut.FillResult, nil
}

// Checkpoint persists the current run state to disk so ResumeFromCheckpoint
// can load it after a restart.
func (s *Service) Checkpoint() error {
	s.state.Stats.LastCheckpoint = time.Now().UTC()
	return s.persister.Save(s.state)
}

// ResumeFromCheckpoint loads a previously persisted run state, replacing
// whatever schedule is currently pending.
func (s *Service) ResumeFromCheckpoint() error {
	state, err := s.persister.Load()
	if err != nil {
		return err
	}
	s.state = state
	return nil
}
