package listing

import (
	"context"
	"time"

	"github.com/cradle-labs/cradle-core/internal/errs"
	"github.com/cradle-labs/cradle-core/platform/os"
	"github.com/cradle-labs/cradle-core/services/accounts"
	"github.com/cradle-labs/cradle-core/services/assetbook"
	"github.com/cradle-labs/cradle-core/services/base"
	"github.com/cradle-labs/cradle-core/services/contracts"
	"github.com/cradle-labs/cradle-core/services/ledger"
	"github.com/shopspring/decimal"
)

const (
	ServiceID   = "listing"
	ServiceName = "Listing Service"
	Version     = "1.0.0"
)

// Manifest returns the service manifest.
func Manifest() *os.LegacyManifest {
	return &os.LegacyManifest{
		ServiceID:   ServiceID,
		Version:     Version,
		Description: "Company registration, primary-issuance listings, and their purchase/return/withdraw cash flows",
		RequiredCapabilities: []os.Capability{
			os.CapStorage,
		},
		OptionalCapabilities: []os.Capability{
			os.CapDatabase,
			os.CapDatabaseWrite,
			os.CapMetrics,
		},
		ResourceLimits: os.ResourceLimits{
			MaxMemory:  64 * 1024 * 1024,
			MaxCPUTime: 15 * time.Second,
		},
	}
}

// Service implements ListingEngine.
type Service struct {
	*base.BaseService
	store    StoreInterface
	executor contracts.Executor
	accounts *accounts.Service
	assets   *assetbook.Service
	ledger   *ledger.Service
}

// New creates a new listing service backed by a Supabase-backed store.
func New(serviceOS os.ServiceOS, executor contracts.Executor, accountsSvc *accounts.Service, assetsSvc *assetbook.Service, ledgerSvc *ledger.Service) (*Service, error) {
	return NewWithStore(serviceOS, NewStore(), executor, accountsSvc, assetsSvc, ledgerSvc)
}

// NewWithStore creates a new listing service against an explicit store,
// letting tests substitute an in-memory StoreInterface.
func NewWithStore(serviceOS os.ServiceOS, store StoreInterface, executor contracts.Executor, accountsSvc *accounts.Service, assetsSvc *assetbook.Service, ledgerSvc *ledger.Service) (*Service, error) {
	s := &Service{
		BaseService: base.NewBaseService(ServiceID, ServiceName, Version, serviceOS),
		store:       store,
		executor:    executor,
		accounts:    accountsSvc,
		assets:      assetsSvc,
		ledger:      ledgerSvc,
	}
	s.SetStore(s.store)
	return s, nil
}

// CreateCompany registers a company. The beneficiary wallet is supplied by
// the caller rather than provisioned here, so registering a company never
// by itself creates on-chain state.
func (s *Service) CreateCompany(ctx context.Context, args CreateCompanyArgs) (*Company, error) {
	if args.Name == "" {
		return nil, errs.Validation("company name is required")
	}
	if args.BeneficiaryWallet == "" {
		return nil, errs.Validation("beneficiary wallet is required")
	}
	company := &Company{
		Name:              args.Name,
		Description:       args.Description,
		LegalDocuments:    args.LegalDocuments,
		BeneficiaryWallet: args.BeneficiaryWallet,
	}
	if err := s.store.CreateCompany(ctx, company); err != nil {
		return nil, errs.Database(err, "persist company")
	}
	return company, nil
}

// CreateListing bootstraps a full listing: resolves or mints the listed
// asset, mints a matching shadow asset for accounting, provisions a
// treasury wallet associated and KYCed against all three tied assets, mints
// and airdrops max supply of the listed and shadow assets to the treasury,
// calls the listing factory, grants the returned listing contract ACL level
// 1, and persists the Listing row in status Pending.
func (s *Service) CreateListing(ctx context.Context, args CreateListingArgs) (*Listing, error) {
	company, err := s.store.GetCompany(ctx, args.Company)
	if err != nil {
		return nil, errs.NotFound("company %s: %v", args.Company, err)
	}
	beneficiaryWallet, err := s.accounts.GetWallet(ctx, company.BeneficiaryWallet)
	if err != nil {
		return nil, err
	}

	listedAsset, err := s.resolveListedAsset(ctx, args)
	if err != nil {
		return nil, err
	}

	shadowAsset, err := s.assets.CreateAsset(ctx, assetbook.NewAssetArgs{
		Issuer:   listedAsset.AssetManager,
		Type:     listedAsset.Type,
		Name:     "shadow-" + listedAsset.Name,
		Symbol:   "s-" + listedAsset.Symbol,
		Decimals: listedAsset.Decimals,
	})
	if err != nil {
		return nil, err
	}

	purchaseAsset, err := s.assets.GetAsset(ctx, args.PurchaseAsset)
	if err != nil {
		return nil, err
	}

	treasuryAccount, treasuryWallet, err := s.accounts.CreateAccount(ctx, accounts.AccountTypeInstitutional, "listing-treasury", nil)
	if err != nil {
		return nil, err
	}
	if _, err := s.accounts.VerifyAccount(ctx, treasuryAccount.ID); err != nil {
		return nil, err
	}
	for _, asset := range []*assetbook.Asset{purchaseAsset, listedAsset, shadowAsset} {
		if err := s.accounts.AssociateAsset(ctx, treasuryWallet, asset.ID, asset.Token); err != nil {
			return nil, err
		}
		if err := s.accounts.KYCAsset(ctx, treasuryWallet, asset.ID, asset.Token); err != nil {
			return nil, err
		}
	}

	if err := s.assets.MintAsset(ctx, listedAsset, args.MaxSupply); err != nil {
		return nil, err
	}
	if err := s.assets.MintAsset(ctx, shadowAsset, args.MaxSupply); err != nil {
		return nil, err
	}
	if err := s.assets.AirdropAsset(ctx, listedAsset, treasuryWallet.ContractID, args.MaxSupply); err != nil {
		return nil, err
	}
	if err := s.assets.AirdropAsset(ctx, shadowAsset, treasuryWallet.ContractID, args.MaxSupply); err != nil {
		return nil, err
	}

	out, err := s.executor.Execute(ctx, contracts.CreateListingInput{
		FeeCollectorAddress: treasuryWallet.Address,
		ReserveAccount:      treasuryWallet.Address,
		MaxSupply:           args.MaxSupply,
		ListingAsset:        listedAsset.Token,
		PurchaseAsset:       purchaseAsset.Token,
		PurchasePrice:       args.PurchasePrice,
		BeneficiaryAddress:  beneficiaryWallet.Address,
		ShadowAsset:         shadowAsset.Token,
	})
	if err != nil {
		return nil, errs.Contract(err, "create listing factory call")
	}
	created, ok := out.(contracts.CreateListingOutput)
	if !ok {
		return nil, errs.Contract(nil, "unexpected create-listing output %T", out)
	}

	listingContractID, err := s.executor.ContractIDFromEVMAddress(ctx, created.ListingAddress)
	if err != nil {
		return nil, errs.Contract(err, "derive listing contract id from %s", created.ListingAddress)
	}
	if _, err := s.executor.Execute(ctx, contracts.GrantAccessInput{Account: created.ListingAddress, Level: 1}); err != nil {
		return nil, errs.Contract(err, "grant listing access level 1")
	}

	listing := &Listing{
		ListingContractID: listingContractID,
		Name:              args.Name,
		Description:       args.Description,
		Documents:         args.Documents,
		Company:           company.ID,
		Status:            StatusPending,
		ListedAsset:       listedAsset.ID,
		PurchaseWithAsset: purchaseAsset.ID,
		PurchasePrice:     args.PurchasePrice,
		MaxSupply:         args.MaxSupply,
		Treasury:          treasuryWallet.ID,
		ShadowAsset:       shadowAsset.ID,
	}
	if err := s.store.CreateListing(ctx, listing); err != nil {
		return nil, errs.Database(err, "persist listing")
	}
	return listing, nil
}

func (s *Service) resolveListedAsset(ctx context.Context, args CreateListingArgs) (*assetbook.Asset, error) {
	if args.ExistingListedAsset != "" {
		return s.assets.GetAsset(ctx, args.ExistingListedAsset)
	}
	if args.NewListedAsset == nil {
		return nil, errs.Validation("either an existing listed asset id or new listed asset args must be supplied")
	}
	return s.assets.CreateAsset(ctx, assetbook.NewAssetArgs{
		Issuer:   args.NewListedAsset.Issuer,
		Type:     assetbook.AssetTypeNative,
		Name:     args.NewListedAsset.Name,
		Symbol:   args.NewListedAsset.Symbol,
		Decimals: args.NewListedAsset.Decimals,
		Icon:     args.NewListedAsset.Icon,
	})
}

// Purchase associates and KYCs the buyer against the listed and shadow
// assets, calls the listing's Purchase primitive, and records the resulting
// ledger row.
func (s *Service) Purchase(ctx context.Context, walletID, listingID string, amount decimal.Decimal) (string, error) {
	if amount.Sign() <= 0 {
		return "", errs.Validation("purchase amount must be positive")
	}
	listing, wallet, _, _, err := s.loadActionContext(ctx, walletID, listingID)
	if err != nil {
		return "", err
	}

	out, err := s.executor.Execute(ctx, contracts.ListingPurchaseInput{ContractID: listing.ListingContractID, Buyer: wallet.ContractID, Amount: amount})
	if err != nil {
		return "", errs.Contract(err, "listing purchase")
	}

	return s.ledger.RecordTransaction(ctx, wallet.Address, ledger.SystemParty,
		ledger.ListingPurchase{Purchased: listing.ListedAsset, PayingWith: listing.PurchaseWithAsset}, amount, out, ledger.TransactionBuyListed, "", "")
}

// ReturnAsset associates and KYCs the seller against the listed and shadow
// assets, calls the listing's ReturnAsset primitive, and records the
// resulting ledger row.
func (s *Service) ReturnAsset(ctx context.Context, walletID, listingID string, amount decimal.Decimal) (string, error) {
	if amount.Sign() <= 0 {
		return "", errs.Validation("return amount must be positive")
	}
	listing, wallet, _, _, err := s.loadActionContext(ctx, walletID, listingID)
	if err != nil {
		return "", err
	}

	out, err := s.executor.Execute(ctx, contracts.ListingReturnInput{ContractID: listing.ListingContractID, Account: wallet.ContractID, Amount: amount})
	if err != nil {
		return "", errs.Contract(err, "listing return")
	}

	return s.ledger.RecordTransaction(ctx, wallet.Address, ledger.SystemParty,
		ledger.ListingSell{Sold: listing.ListedAsset, Received: listing.PurchaseWithAsset}, amount, out, ledger.TransactionSellListed, "", "")
}

// loadActionContext resolves and prepares the wallet state Purchase and
// ReturnAsset share: both associate and KYC the acting wallet against the
// listed and shadow assets before calling their respective contract
// primitive.
func (s *Service) loadActionContext(ctx context.Context, walletID, listingID string) (*Listing, *accounts.Wallet, *assetbook.Asset, *assetbook.Asset, error) {
	listing, err := s.GetListing(ctx, listingID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	wallet, err := s.accounts.GetWallet(ctx, walletID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	listedAsset, err := s.assets.GetAsset(ctx, listing.ListedAsset)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	shadowAsset, err := s.assets.GetAsset(ctx, listing.ShadowAsset)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	for _, asset := range []*assetbook.Asset{listedAsset, shadowAsset} {
		if err := s.accounts.AssociateAsset(ctx, wallet, asset.ID, asset.Token); err != nil {
			return nil, nil, nil, nil, err
		}
		if err := s.accounts.KYCAsset(ctx, wallet, asset.ID, asset.Token); err != nil {
			return nil, nil, nil, nil, err
		}
	}
	return listing, wallet, listedAsset, shadowAsset, nil
}

// WithdrawToBeneficiary sends amount of a listing's purchase asset to its
// company's beneficiary wallet. There is no tracked "from": the withdrawal
// originates from the listing contract itself, not a wallet this system
// manages.
func (s *Service) WithdrawToBeneficiary(ctx context.Context, listingID string, amount decimal.Decimal) (string, error) {
	if amount.Sign() <= 0 {
		return "", errs.Validation("withdraw amount must be positive")
	}
	listing, err := s.GetListing(ctx, listingID)
	if err != nil {
		return "", err
	}
	company, err := s.store.GetCompany(ctx, listing.Company)
	if err != nil {
		return "", errs.NotFound("company %s: %v", listing.Company, err)
	}
	beneficiaryWallet, err := s.accounts.GetWallet(ctx, company.BeneficiaryWallet)
	if err != nil {
		return "", err
	}
	purchaseAsset, err := s.assets.GetAsset(ctx, listing.PurchaseWithAsset)
	if err != nil {
		return "", err
	}

	if err := s.accounts.AssociateAsset(ctx, beneficiaryWallet, purchaseAsset.ID, purchaseAsset.Token); err != nil {
		return "", err
	}
	if err := s.accounts.KYCAsset(ctx, beneficiaryWallet, purchaseAsset.ID, purchaseAsset.Token); err != nil {
		return "", err
	}

	out, err := s.executor.Execute(ctx, contracts.ListingWithdrawToBeneficiaryInput{ContractID: listing.ListingContractID, Amount: amount})
	if err != nil {
		return "", errs.Contract(err, "listing withdraw to beneficiary")
	}

	return s.ledger.RecordTransaction(ctx, "", beneficiaryWallet.Address,
		ledger.Single{Asset: purchaseAsset.ID}, amount, out, ledger.TransactionListingBeneficiaryWithdraw, "", "")
}

// GetListingStats reads a listing's on-chain sold/returned/remaining figures.
func (s *Service) GetListingStats(ctx context.Context, listingID string) (contracts.ListingStats, error) {
	listing, err := s.GetListing(ctx, listingID)
	if err != nil {
		return contracts.ListingStats{}, err
	}
	out, err := s.executor.Execute(ctx, contracts.GetListingStatsInput{ContractID: listing.ListingContractID})
	if err != nil {
		return contracts.ListingStats{}, errs.Contract(err, "get listing stats")
	}
	statsOut, ok := out.(contracts.GetListingStatsOutput)
	if !ok {
		return contracts.ListingStats{}, errs.Contract(nil, "unexpected listing-stats output %T", out)
	}
	return statsOut.Stats, nil
}

// GetPurchaseFee reads the fee the contract would charge for purchasing
// amount of a listing's listed asset.
func (s *Service) GetPurchaseFee(ctx context.Context, listingID string, amount decimal.Decimal) (decimal.Decimal, error) {
	listing, err := s.GetListing(ctx, listingID)
	if err != nil {
		return decimal.Zero, err
	}
	out, err := s.executor.Execute(ctx, contracts.GetFeeInput{ContractID: listing.ListingContractID, Amount: amount})
	if err != nil {
		return decimal.Zero, errs.Contract(err, "get purchase fee")
	}
	feeOut, ok := out.(contracts.GetFeeOutput)
	if !ok {
		return decimal.Zero, errs.Contract(nil, "unexpected get-fee output %T", out)
	}
	return feeOut.Fee, nil
}

// UpdateListingStatus calls the listing's status transition primitive and,
// on success, persists the new status, stamping OpenedAt/StoppedAt the
// first time a listing opens or stops.
func (s *Service) UpdateListingStatus(ctx context.Context, listingID string, newStatus Status) (*Listing, error) {
	listing, err := s.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}

	if _, err := s.executor.Execute(ctx, contracts.UpdateListingStatusInput{
		ContractID: listing.ListingContractID,
		NewStatus:  contracts.ListingStatus(newStatus),
	}); err != nil {
		return nil, errs.Contract(err, "update listing status")
	}

	listing.Status = newStatus
	now := time.Now()
	switch newStatus {
	case StatusOpen:
		if listing.OpenedAt == nil {
			listing.OpenedAt = &now
		}
	case StatusClosed, StatusCancelled:
		if listing.StoppedAt == nil {
			listing.StoppedAt = &now
		}
	}
	if err := s.store.UpdateListing(ctx, listing); err != nil {
		return nil, errs.Database(err, "update listing status")
	}
	return listing, nil
}

// GetListing reads a listing by id.
func (s *Service) GetListing(ctx context.Context, id string) (*Listing, error) {
	listing, err := s.store.GetListing(ctx, id)
	if err != nil {
		return nil, errs.NotFound("listing %s: %v", id, err)
	}
	return listing, nil
}

// ListListings lists every registered listing.
func (s *Service) ListListings(ctx context.Context) ([]*Listing, error) {
	return s.store.ListListings(ctx)
}

// ListListingsByCompany lists every listing a company has created.
func (s *Service) ListListingsByCompany(ctx context.Context, companyID string) ([]*Listing, error) {
	return s.store.ListListingsByCompany(ctx, companyID)
}

// GetCompany reads a company by id.
func (s *Service) GetCompany(ctx context.Context, id string) (*Company, error) {
	company, err := s.store.GetCompany(ctx, id)
	if err != nil {
		return nil, errs.NotFound("company %s: %v", id, err)
	}
	return company, nil
}
