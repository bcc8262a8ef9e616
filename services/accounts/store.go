package accounts

import (
	"context"
	"fmt"
	"sync"

	"github.com/cradle-labs/cradle-core/services/base"
)

// StoreInterface defines the storage surface AccountsCore depends on.
type StoreInterface interface {
	base.Store
	CreateAccount(ctx context.Context, account *Account) error
	GetAccount(ctx context.Context, id string) (*Account, error)
	UpdateAccount(ctx context.Context, account *Account) error
	DeleteAccount(ctx context.Context, id string) error
	ListAccounts(ctx context.Context) ([]*Account, error)

	CreateWallet(ctx context.Context, wallet *Wallet) error
	GetWallet(ctx context.Context, id string) (*Wallet, error)
	ListWalletsByAccount(ctx context.Context, accountID string) ([]*Wallet, error)

	UpsertAssetBookEntry(ctx context.Context, entry *AccountAssetBook) error
	GetAssetBookEntry(ctx context.Context, assetID, accountID string) (*AccountAssetBook, error)
	ListAssetBookByAccount(ctx context.Context, accountID string) ([]*AccountAssetBook, error)
}

// Store persists accounts, wallets and asset-book rows via Supabase PostgREST.
type Store struct {
	mu        sync.RWMutex
	accounts  *base.SupabaseStore[*Account]
	wallets   *base.SupabaseStore[*Wallet]
	assetBook *base.SupabaseStore[*AccountAssetBook]
	ready     bool
}

// NewStore creates a store using the default Supabase configuration.
func NewStore() *Store {
	config := base.DefaultSupabaseConfig()
	return NewStoreWithConfig(config)
}

// NewStoreWithConfig creates a store with explicit Supabase configuration.
func NewStoreWithConfig(config base.SupabaseConfig) *Store {
	return &Store{
		accounts:  base.NewSupabaseStore[*Account](config, "accounts"),
		wallets:   base.NewSupabaseStore[*Wallet](config, "wallets"),
		assetBook: base.NewSupabaseStore[*AccountAssetBook](config, "account_asset_book"),
	}
}

// Initialize initializes the store.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.accounts.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize accounts store: %w", err)
	}
	if err := s.wallets.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize wallets store: %w", err)
	}
	if err := s.assetBook.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize account_asset_book store: %w", err)
	}

	s.ready = true
	return nil
}

// Shutdown shuts down the store (implements Component interface).
func (s *Store) Shutdown(ctx context.Context) error {
	return s.Close(ctx)
}

// Close closes the store.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts.Close(ctx)
	s.wallets.Close(ctx)
	s.assetBook.Close(ctx)
	s.ready = false
	return nil
}

// Health checks store health.
func (s *Store) Health(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	return s.accounts.Health(ctx)
}

// =============================================================================
// Account operations
// =============================================================================

func (s *Store) CreateAccount(ctx context.Context, account *Account) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	account.GenerateID()
	account.SetTimestamps()
	return s.accounts.Create(ctx, account)
}

func (s *Store) GetAccount(ctx context.Context, id string) (*Account, error) {
	if !s.ready {
		return nil, fmt.Errorf("store not ready")
	}
	return s.accounts.Get(ctx, id)
}

func (s *Store) UpdateAccount(ctx context.Context, account *Account) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	account.SetTimestamps()
	return s.accounts.Update(ctx, account)
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	return s.accounts.Delete(ctx, id)
}

func (s *Store) ListAccounts(ctx context.Context) ([]*Account, error) {
	if !s.ready {
		return nil, fmt.Errorf("store not ready")
	}
	return s.accounts.List(ctx)
}

// =============================================================================
// Wallet operations
// =============================================================================

func (s *Store) CreateWallet(ctx context.Context, wallet *Wallet) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	wallet.GenerateID()
	wallet.SetTimestamps()
	return s.wallets.Create(ctx, wallet)
}

func (s *Store) GetWallet(ctx context.Context, id string) (*Wallet, error) {
	if !s.ready {
		return nil, fmt.Errorf("store not ready")
	}
	return s.wallets.Get(ctx, id)
}

func (s *Store) UpdateWallet(ctx context.Context, wallet *Wallet) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	wallet.SetTimestamps()
	return s.wallets.Update(ctx, wallet)
}

func (s *Store) ListWalletsByAccount(ctx context.Context, accountID string) ([]*Wallet, error) {
	if !s.ready {
		return nil, fmt.Errorf("store not ready")
	}
	return s.wallets.ListWithFilter(ctx, "account_id=eq."+accountID)
}

// =============================================================================
// Asset book operations
// =============================================================================

func (s *Store) UpsertAssetBookEntry(ctx context.Context, entry *AccountAssetBook) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	entry.GenerateID()
	entry.SetTimestamps()
	return s.assetBook.Upsert(ctx, entry)
}

func (s *Store) GetAssetBookEntry(ctx context.Context, assetID, accountID string) (*AccountAssetBook, error) {
	if !s.ready {
		return nil, fmt.Errorf("store not ready")
	}
	filter := fmt.Sprintf("asset_id=eq.%s&account_id=eq.%s&limit=1", assetID, accountID)
	rows, err := s.assetBook.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (s *Store) ListAssetBookByAccount(ctx context.Context, accountID string) ([]*AccountAssetBook, error) {
	if !s.ready {
		return nil, fmt.Errorf("store not ready")
	}
	return s.assetBook.ListWithFilter(ctx, "account_id=eq."+accountID)
}
