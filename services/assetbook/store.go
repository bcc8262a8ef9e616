package assetbook

import (
	"context"
	"fmt"

	"github.com/cradle-labs/cradle-core/services/base"
)

// StoreInterface defines the storage surface the asset registry depends on.
type StoreInterface interface {
	base.Store
	CreateAsset(ctx context.Context, asset *Asset) error
	GetAsset(ctx context.Context, id string) (*Asset, error)
	GetAssetBySymbol(ctx context.Context, symbol string) (*Asset, error)
	ListAssets(ctx context.Context) ([]*Asset, error)
}

// Store persists assets via Supabase PostgREST.
type Store struct {
	assets *base.SupabaseStore[*Asset]
	ready  bool
}

// NewStore creates a store using the default Supabase configuration.
func NewStore() *Store {
	return NewStoreWithConfig(base.DefaultSupabaseConfig())
}

// NewStoreWithConfig creates a store with explicit Supabase configuration.
func NewStoreWithConfig(config base.SupabaseConfig) *Store {
	return &Store{assets: base.NewSupabaseStore[*Asset](config, "asset_book")}
}

func (s *Store) Initialize(ctx context.Context) error {
	if err := s.assets.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize asset_book store: %w", err)
	}
	s.ready = true
	return nil
}

func (s *Store) Shutdown(ctx context.Context) error { return s.Close(ctx) }

func (s *Store) Close(ctx context.Context) error {
	s.assets.Close(ctx)
	s.ready = false
	return nil
}

func (s *Store) Health(ctx context.Context) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	return s.assets.Health(ctx)
}

func (s *Store) CreateAsset(ctx context.Context, asset *Asset) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	asset.GenerateID()
	asset.SetTimestamps()
	return s.assets.Create(ctx, asset)
}

func (s *Store) GetAsset(ctx context.Context, id string) (*Asset, error) {
	if !s.ready {
		return nil, fmt.Errorf("store not ready")
	}
	return s.assets.Get(ctx, id)
}

func (s *Store) GetAssetBySymbol(ctx context.Context, symbol string) (*Asset, error) {
	if !s.ready {
		return nil, fmt.Errorf("store not ready")
	}
	rows, err := s.assets.ListWithFilter(ctx, "symbol=eq."+symbol+"&limit=1")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("asset not found for symbol: %s", symbol)
	}
	return rows[0], nil
}

func (s *Store) ListAssets(ctx context.Context) ([]*Asset, error) {
	if !s.ready {
		return nil, fmt.Errorf("store not ready")
	}
	return s.assets.List(ctx)
}
