package listing

import (
	"context"
	"fmt"

	"github.com/cradle-labs/cradle-core/services/base"
)

// StoreInterface defines the storage surface ListingEngine depends on.
type StoreInterface interface {
	base.Store

	CreateCompany(ctx context.Context, company *Company) error
	GetCompany(ctx context.Context, id string) (*Company, error)

	CreateListing(ctx context.Context, listing *Listing) error
	GetListing(ctx context.Context, id string) (*Listing, error)
	UpdateListing(ctx context.Context, listing *Listing) error
	ListListings(ctx context.Context) ([]*Listing, error)
	ListListingsByCompany(ctx context.Context, companyID string) ([]*Listing, error)
}

// Store persists company and listing state via Supabase PostgREST.
type Store struct {
	companies *base.SupabaseStore[*Company]
	listings  *base.SupabaseStore[*Listing]
	ready     bool
}

// NewStore creates a store using the default Supabase configuration.
func NewStore() *Store {
	return NewStoreWithConfig(base.DefaultSupabaseConfig())
}

// NewStoreWithConfig creates a store with explicit Supabase configuration.
func NewStoreWithConfig(config base.SupabaseConfig) *Store {
	return &Store{
		companies: base.NewSupabaseStore[*Company](config, "cradlelistedcompanies"),
		listings:  base.NewSupabaseStore[*Listing](config, "cradlenativelistings"),
	}
}

func (s *Store) Initialize(ctx context.Context) error {
	for _, init := range []func(context.Context) error{s.companies.Initialize, s.listings.Initialize} {
		if err := init(ctx); err != nil {
			return fmt.Errorf("initialize listing store: %w", err)
		}
	}
	s.ready = true
	return nil
}

func (s *Store) Shutdown(ctx context.Context) error { return s.Close(ctx) }

func (s *Store) Close(ctx context.Context) error {
	s.companies.Close(ctx)
	s.listings.Close(ctx)
	s.ready = false
	return nil
}

func (s *Store) Health(ctx context.Context) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	return s.companies.Health(ctx)
}

func (s *Store) CreateCompany(ctx context.Context, company *Company) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	company.GenerateID()
	company.SetTimestamps()
	return s.companies.Create(ctx, company)
}

func (s *Store) GetCompany(ctx context.Context, id string) (*Company, error) {
	if !s.ready {
		return nil, fmt.Errorf("store not ready")
	}
	return s.companies.Get(ctx, id)
}

func (s *Store) CreateListing(ctx context.Context, listing *Listing) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	listing.GenerateID()
	listing.SetTimestamps()
	return s.listings.Create(ctx, listing)
}

func (s *Store) GetListing(ctx context.Context, id string) (*Listing, error) {
	if !s.ready {
		return nil, fmt.Errorf("store not ready")
	}
	return s.listings.Get(ctx, id)
}

func (s *Store) UpdateListing(ctx context.Context, listing *Listing) error {
	if !s.ready {
		return fmt.Errorf("store not ready")
	}
	return s.listings.Update(ctx, listing)
}

func (s *Store) ListListings(ctx context.Context) ([]*Listing, error) {
	if !s.ready {
		return nil, fmt.Errorf("store not ready")
	}
	return s.listings.List(ctx)
}

func (s *Store) ListListingsByCompany(ctx context.Context, companyID string) ([]*Listing, error) {
	if !s.ready {
		return nil, fmt.Errorf("store not ready")
	}
	return s.listings.ListWithFilter(ctx, "company=eq."+companyID)
}
