package lendingpool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cradle-labs/cradle-core/services/base"
	"github.com/shopspring/decimal"
)

// StoreInterface defines the storage surface LendingPoolEngine depends on.
type StoreInterface interface {
	base.Store

	CreatePool(ctx context.Context, pool *LendingPool) error
	GetPool(ctx context.Context, id string) (*LendingPool, error)
	ListPools(ctx context.Context) ([]*LendingPool, error)

	CreateLoan(ctx context.Context, loan *Loan) error
	GetLoan(ctx context.Context, id string) (*Loan, error)
	UpdateLoan(ctx context.Context, loan *Loan) error
	ListLoansByAccount(ctx context.Context, accountID string) ([]*Loan, error)

	CreateLoanRepayment(ctx context.Context, repayment *LoanRepayment) error
	// RepaidAmount sums every repayment booked against a loan. Backed by a
	// Postgres function so the aggregation runs inside the database rather
	// than pulling every repayment row client-side.
	RepaidAmount(ctx context.Context, loanID string) (decimal.Decimal, error)

	CreateLoanLiquidation(ctx context.Context, liquidation *LoanLiquidation) error

	CreatePoolTransaction(ctx context.Context, tx *PoolTransaction) error

	CreateSnapshot(ctx context.Context, snap *PoolSnapshot) error
	LatestSnapshot(ctx context.Context, poolID string) (*PoolSnapshot, error)
}

// Store persists lending pool state via Supabase PostgREST, delegating the
// repayment-sum aggregation to a Postgres function exposed through
// PostgREST's RPC route.
type Store struct {
	pools        *base.SupabaseStore[*LendingPool]
	loans        *base.SupabaseStore[*Loan]
	repayments   *base.SupabaseStore[*LoanRepayment]
	liquidations *base.SupabaseStore[*LoanLiquidation]
	transactions *base.SupabaseStore[*PoolTransaction]
	snapshots    *base.SupabaseStore[*PoolSnapshot]
	ready        bool
}

// NewStore creates a store using the default Supabase configuration.
func NewStore() *Store {
	return NewStoreWithConfig(base.DefaultSupabaseConfig())
}

// NewStoreWithConfig creates a store with explicit Supabase configuration.
func NewStoreWithConfig(config base.SupabaseConfig) *Store {
	return &Store{
		pools:        base.NewSupabaseStore[*LendingPool](config, "lendingpool"),
		loans:        base.NewSupabaseStore[*Loan](config, "loans"),
		repayments:   base.NewSupabaseStore[*LoanRepayment](config, "loanrepayments"),
		liquidations: base.NewSupabaseStore[*LoanLiquidation](config, "loanliquidations"),
		transactions: base.NewSupabaseStore[*PoolTransaction](config, "pooltransactions"),
		snapshots:    base.NewSupabaseStore[*PoolSnapshot](config, "lendingpoolsnapshots"),
	}
}

func (s *Store) Initialize(ctx context.Context) error {
	for _, init := range []func(context.Context) error{
		s.pools.Initialize, s.loans.Initialize, s.repayments.Initialize,
		s.liquidations.Initialize, s.transactions.Initialize, s.snapshots.Initialize,
	} {
		if err := init(ctx); err != nil {
			return fmt.Errorf("initialize lendingpool store: %w", err)
		}
	}
	s.ready = true
	return nil
}

func (s *Store) Shutdown(ctx context.Context) error { return s.Close(ctx) }

func (s *Store) Close(ctx context.Context) error {
	s.pools.Close(ctx)
	s.loans.Close(ctx)
	s.repayments.Close(ctx)
	s.liquidations.Close(ctx)
	s.transactions.Close(ctx)
	s.snapshots.Close(ctx)
	s.ready = false
	return nil
}

func (s *Store) Health(ctx context.Context) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	return s.pools.Health(ctx)
}

func (s *Store) CreatePool(ctx context.Context, pool *LendingPool) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	pool.GenerateID()
	pool.SetTimestamps()
	return s.pools.Create(ctx, pool)
}

func (s *Store) GetPool(ctx context.Context, id string) (*LendingPool, error) {
	if !s.ready {
		return nil, fmt.Errorf("store not ready")
	}
	return s.pools.Get(ctx, id)
}

func (s *Store) ListPools(ctx context.Context) ([]*LendingPool, error) {
	if !s.ready {
		return nil, fmt.Errorf("store not ready")
	}
	return s.pools.List(ctx)
}

func (s *Store) CreateLoan(ctx context.Context, loan *Loan) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	loan.GenerateID()
	loan.SetTimestamps()
	return s.loans.Create(ctx, loan)
}

func (s *Store) GetLoan(ctx context.Context, id string) (*Loan, error) {
	if !s.ready {
		return nil, fmt.Errorf("store not ready")
	}
	return s.loans.Get(ctx, id)
}

func (s *Store) UpdateLoan(ctx context.Context, loan *Loan) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	return s.loans.Update(ctx, loan)
}

func (s *Store) ListLoansByAccount(ctx context.Context, accountID string) ([]*Loan, error) {
	if !s.ready {
		return nil, fmt.Errorf("store not ready")
	}
	return s.loans.ListWithFilter(ctx, "account_id=eq."+accountID)
}

func (s *Store) CreateLoanRepayment(ctx context.Context, repayment *LoanRepayment) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	repayment.GenerateID()
	repayment.SetTimestamps()
	return s.repayments.Create(ctx, repayment)
}

type repaidAmountRow struct {
	RepaidAmount decimal.Decimal `json:"repaid_amount"`
}

func (s *Store) RepaidAmount(ctx context.Context, loanID string) (decimal.Decimal, error) {
	if !s.ready {
		return decimal.Zero, fmt.Errorf("store not ready")
	}
	raw, err := s.repayments.RPC(ctx, "get_repaid_amount", map[string]any{"loan_id_value": loanID})
	if err != nil {
		return decimal.Zero, fmt.Errorf("repaid amount rpc: %w", err)
	}
	var rows []repaidAmountRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return decimal.Zero, fmt.Errorf("decode repaid amount: %w", err)
	}
	if len(rows) == 0 {
		return decimal.Zero, nil
	}
	return rows[0].RepaidAmount, nil
}

func (s *Store) CreateLoanLiquidation(ctx context.Context, liquidation *LoanLiquidation) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	liquidation.GenerateID()
	liquidation.SetTimestamps()
	return s.liquidations.Create(ctx, liquidation)
}

func (s *Store) CreatePoolTransaction(ctx context.Context, tx *PoolTransaction) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	tx.GenerateID()
	tx.SetTimestamps()
	return s.transactions.Create(ctx, tx)
}

func (s *Store) CreateSnapshot(ctx context.Context, snap *PoolSnapshot) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	snap.GenerateID()
	snap.SetTimestamps()
	return s.snapshots.Create(ctx, snap)
}

func (s *Store) LatestSnapshot(ctx context.Context, poolID string) (*PoolSnapshot, error) {
	if !s.ready {
		return nil, fmt.Errorf("store not ready")
	}
	rows, err := s.snapshots.ListWithFilter(ctx, fmt.Sprintf("lending_pool_id=eq.%s&order=created_at.desc&limit=1", poolID))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no snapshots for pool %s", poolID)
	}
	return rows[0], nil
}
