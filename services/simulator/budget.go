package simulator

import (
	"context"
	"sync"

	"github.com/cradle-labs/cradle-core/internal/errs"
	"github.com/shopspring/decimal"
)

// AccountBudget tracks one account's spending capacity for a simulation run.
// The invariant held at every transition is Initial = Available + Locked + Spent.
type AccountBudget struct {
	AccountID string
	Initial   decimal.Decimal
	Available decimal.Decimal
	Locked    decimal.Decimal
	Spent     decimal.Decimal
}

// NewAccountBudget starts a budget fully available and nothing locked or spent.
func NewAccountBudget(accountID string, initial decimal.Decimal) *AccountBudget {
	return &AccountBudget{
		AccountID: accountID,
		Initial:   initial,
		Available: initial,
	}
}

// Lock reserves amount against a slot about to run, moving it out of
// Available and into Locked. Unlike the budget this was ported from, Lock
// here decrements Available when it increments Locked — leaving Available
// unchanged would let two concurrently scheduled slots both pass this check
// against the same funds.
func (b *AccountBudget) Lock(amount decimal.Decimal) error {
	if amount.GreaterThan(b.Available) {
		return errs.Validation("insufficient available budget for account %s: have %s, need %s", b.AccountID, b.Available, amount)
	}
	b.Available = b.Available.Sub(amount)
	b.Locked = b.Locked.Add(amount)
	return nil
}

// Unlock releases a previously locked amount back to Available, for a slot
// that was skipped or aborted before spending anything.
func (b *AccountBudget) Unlock(amount decimal.Decimal) error {
	if amount.GreaterThan(b.Locked) {
		return errs.Validation("cannot unlock more than locked for account %s: locked %s, unlock %s", b.AccountID, b.Locked, amount)
	}
	b.Locked = b.Locked.Sub(amount)
	b.Available = b.Available.Add(amount)
	return nil
}

// Spend converts a locked amount into permanently spent budget, for a slot
// whose order actually executed.
func (b *AccountBudget) Spend(amount decimal.Decimal) error {
	if amount.GreaterThan(b.Locked) {
		return errs.Validation("cannot spend more than locked for account %s: locked %s, spend %s", b.AccountID, b.Locked, amount)
	}
	b.Locked = b.Locked.Sub(amount)
	b.Spent = b.Spent.Add(amount)
	return nil
}

// BudgetStore is the in-memory ledger of account budgets for a single
// simulation run. It is intentionally not backed by Supabase: budgets are
// scoped to one run's lifetime, reset on every new run, and never queried
// outside the simulator itself.
type BudgetStore struct {
	mu      sync.Mutex
	budgets map[string]*AccountBudget
}

// NewBudgetStore creates an empty budget store.
func NewBudgetStore() *BudgetStore {
	return &BudgetStore{budgets: map[string]*AccountBudget{}}
}

// Seed registers a budget for an account, overwriting any existing one.
func (s *BudgetStore) Seed(ctx context.Context, accountID string, initial decimal.Decimal) *AccountBudget {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := NewAccountBudget(accountID, initial)
	s.budgets[accountID] = b
	return b
}

// Get returns the budget for an account, or an error if it was never seeded.
func (s *BudgetStore) Get(ctx context.Context, accountID string) (*AccountBudget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[accountID]
	if !ok {
		return nil, errs.NotFound("no budget seeded for account %s", accountID)
	}
	return b, nil
}

// Lock locks amount against accountID's budget.
func (s *BudgetStore) Lock(ctx context.Context, accountID string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[accountID]
	if !ok {
		return errs.NotFound("no budget seeded for account %s", accountID)
	}
	return b.Lock(amount)
}

// Unlock releases a previously locked amount back to accountID's available budget.
func (s *BudgetStore) Unlock(ctx context.Context, accountID string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[accountID]
	if !ok {
		return errs.NotFound("no budget seeded for account %s", accountID)
	}
	return b.Unlock(amount)
}

// Spend converts a locked amount into spent for accountID.
func (s *BudgetStore) Spend(ctx context.Context, accountID string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[accountID]
	if !ok {
		return errs.NotFound("no budget seeded for account %s", accountID)
	}
	return b.Spend(amount)
}

// Summary returns a snapshot of every tracked budget.
func (s *BudgetStore) Summary(ctx context.Context) []*AccountBudget {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*AccountBudget, 0, len(s.budgets))
	for _, b := range s.budgets {
		cp := *b
		out = append(out, &cp)
	}
	return out
}
