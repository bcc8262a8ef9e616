package ledger

import (
	"context"
	"fmt"

	"github.com/cradle-labs/cradle-core/services/base"
)

// StoreInterface defines the storage surface the ledger depends on.
type StoreInterface interface {
	base.Store
	InsertRow(ctx context.Context, row *Row) error
}

// Store appends ledger rows via Supabase PostgREST.
type Store struct {
	rows  *base.SupabaseStore[*Row]
	ready bool
}

// NewStore creates a store using the default Supabase configuration.
func NewStore() *Store {
	return NewStoreWithConfig(base.DefaultSupabaseConfig())
}

// NewStoreWithConfig creates a store with explicit Supabase configuration.
func NewStoreWithConfig(config base.SupabaseConfig) *Store {
	return &Store{rows: base.NewSupabaseStore[*Row](config, "account_assets_ledger")}
}

func (s *Store) Initialize(ctx context.Context) error {
	if err := s.rows.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize ledger store: %w", err)
	}
	s.ready = true
	return nil
}

func (s *Store) Shutdown(ctx context.Context) error { return s.Close(ctx) }

func (s *Store) Close(ctx context.Context) error {
	s.rows.Close(ctx)
	s.ready = false
	return nil
}

func (s *Store) Health(ctx context.Context) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	return s.rows.Health(ctx)
}

func (s *Store) InsertRow(ctx context.Context, row *Row) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	row.GenerateID()
	row.SetTimestamps()
	return s.rows.Create(ctx, row)
}
