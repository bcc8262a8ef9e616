package assetbook

import (
	"context"
	"fmt"
	"time"

	"github.com/cradle-labs/cradle-core/internal/errs"
	"github.com/cradle-labs/cradle-core/platform/os"
	"github.com/cradle-labs/cradle-core/services/accounts"
	"github.com/cradle-labs/cradle-core/services/base"
	"github.com/cradle-labs/cradle-core/services/contracts"
	"github.com/shopspring/decimal"
)

const (
	ServiceID   = "assetbook"
	ServiceName = "Asset Book Service"
	Version     = "1.0.0"
)

// Manifest returns the service manifest.
func Manifest() *os.LegacyManifest {
	return &os.LegacyManifest{
		ServiceID:   ServiceID,
		Version:     Version,
		Description: "Asset registry, mint and airdrop primitives",
		RequiredCapabilities: []os.Capability{
			os.CapStorage,
		},
		OptionalCapabilities: []os.Capability{
			os.CapDatabase,
			os.CapDatabaseWrite,
			os.CapMetrics,
		},
		ResourceLimits: os.ResourceLimits{
			MaxMemory:  32 * 1024 * 1024,
			MaxCPUTime: 10 * time.Second,
		},
	}
}

// NewAssetArgs describes a brand new asset to register and mint on-chain.
type NewAssetArgs struct {
	Issuer   string
	Type     AssetType
	Name     string
	Symbol   string
	Decimals int
	Icon     string
	ACL      int
	AllowList []string
}

// Service implements the AssetBook component.
type Service struct {
	*base.BaseService
	store    StoreInterface
	executor contracts.Executor
}

// New creates a new AssetBook service.
func New(serviceOS os.ServiceOS, executor contracts.Executor) (*Service, error) {
	return NewWithStore(serviceOS, NewStore(), executor)
}

// NewWithStore creates a new AssetBook service against an explicit store.
func NewWithStore(serviceOS os.ServiceOS, store StoreInterface, executor contracts.Executor) (*Service, error) {
	s := &Service{
		BaseService: base.NewBaseService(ServiceID, ServiceName, Version, serviceOS),
		store:       store,
		executor:    executor,
	}
	s.SetStore(s.store)
	return s, nil
}

// ResolveOrCreateAsset either references an existing asset by id, or
// registers a brand new one via AssetIssuer.CreateAsset.
func (s *Service) ResolveOrCreateAsset(ctx context.Context, existingID string, newArgs *NewAssetArgs) (*Asset, error) {
	if existingID != "" {
		asset, err := s.store.GetAsset(ctx, existingID)
		if err != nil {
			return nil, errs.NotFound("asset %s: %v", existingID, err)
		}
		return asset, nil
	}
	if newArgs == nil {
		return nil, errs.Validation("either an existing asset id or new asset args must be supplied")
	}
	return s.CreateAsset(ctx, *newArgs)
}

// CreateAsset registers a brand new asset: it calls AssetIssuer.CreateAsset
// and persists the returned token/asset-manager pair.
func (s *Service) CreateAsset(ctx context.Context, args NewAssetArgs) (*Asset, error) {
	out, err := s.executor.Execute(ctx, contracts.CreateAssetInput{
		Issuer:    args.Issuer,
		Symbol:    args.Symbol,
		Name:      args.Name,
		ACL:       args.ACL,
		AllowList: args.AllowList,
	})
	if err != nil {
		return nil, errs.Contract(err, "create asset %s", args.Symbol)
	}
	created, ok := out.(contracts.AssetActionOutput)
	if !ok {
		return nil, errs.Contract(nil, "unexpected create-asset output %T", out)
	}

	asset := &Asset{
		AssetManager: args.Issuer,
		Token:        created.Token,
		Type:         args.Type,
		Name:         args.Name,
		Symbol:       args.Symbol,
		Decimals:     args.Decimals,
		Icon:         args.Icon,
	}
	if err := s.store.CreateAsset(ctx, asset); err != nil {
		return nil, errs.Database(err, "persist asset %s", args.Symbol)
	}
	return asset, nil
}

// MintAsset mints additional supply of an already-registered asset.
func (s *Service) MintAsset(ctx context.Context, asset *Asset, amount decimal.Decimal) error {
	_, err := s.executor.Execute(ctx, contracts.MintInput{AssetContract: asset.Token, Amount: amount})
	if err != nil {
		return errs.Contract(err, "mint asset %s", asset.Symbol)
	}
	return nil
}

// AirdropAsset transfers freshly minted supply of an asset to a target
// account's wallet contract.
func (s *Service) AirdropAsset(ctx context.Context, asset *Asset, targetContract string, amount decimal.Decimal) error {
	_, err := s.executor.Execute(ctx, contracts.AirdropInput{AssetContract: asset.Token, Target: targetContract, Amount: amount})
	if err != nil {
		return errs.Contract(err, "airdrop asset %s to %s", asset.Symbol, targetContract)
	}
	return nil
}

// GetAsset reads an asset by id.
func (s *Service) GetAsset(ctx context.Context, id string) (*Asset, error) {
	asset, err := s.store.GetAsset(ctx, id)
	if err != nil {
		return nil, errs.NotFound("asset %s: %v", id, err)
	}
	return asset, nil
}

// ListAssets lists every registered asset.
func (s *Service) ListAssets(ctx context.Context) ([]*Asset, error) {
	return s.store.ListAssets(ctx)
}

// ListAssetRefs satisfies accounts.AssetLister: it hands AccountsCore the
// minimal (id, token) pairs it needs to sweep wallets for association/KYC.
func (s *Service) ListAssetRefs(ctx context.Context) ([]accounts.AssetRef, error) {
	assets, err := s.store.ListAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	refs := make([]accounts.AssetRef, 0, len(assets))
	for _, a := range assets {
		refs = append(refs, accounts.AssetRef{ID: a.ID, Token: a.Token})
	}
	return refs, nil
}
