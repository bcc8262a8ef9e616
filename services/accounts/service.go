package accounts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cradle-labs/cradle-core/internal/errs"
	"github.com/cradle-labs/cradle-core/platform/os"
	"github.com/cradle-labs/cradle-core/services/base"
	"github.com/cradle-labs/cradle-core/services/contracts"
)

const (
	ServiceID   = "accounts"
	ServiceName = "Accounts Core Service"
	Version     = "1.0.0"
)

// Manifest returns the service manifest.
func Manifest() *os.LegacyManifest {
	return &os.LegacyManifest{
		ServiceID:   ServiceID,
		Version:     Version,
		Description: "Account and wallet provisioning, asset association and KYC",
		RequiredCapabilities: []os.Capability{
			os.CapStorage,
		},
		OptionalCapabilities: []os.Capability{
			os.CapDatabase,
			os.CapDatabaseWrite,
			os.CapMetrics,
			os.CapCache,
		},
		ResourceLimits: os.ResourceLimits{
			MaxMemory:  64 * 1024 * 1024,
			MaxCPUTime: 10 * time.Second,
		},
	}
}

// AssetRef is the minimal asset shape AccountsCore needs from the asset
// registry to drive the association/KYC sweep — it does not need the full
// Asset entity.
type AssetRef struct {
	ID    string
	Token string
}

// AssetLister is the dependency AccountsCore uses to enumerate known assets
// when sweeping a wallet for unassociated or un-KYCed tokens. services/assetbook
// satisfies this.
type AssetLister interface {
	ListAssetRefs(ctx context.Context) ([]AssetRef, error)
}

// Service implements AccountsCore.
type Service struct {
	*base.BaseService
	mu        sync.RWMutex
	enclave   *Enclave
	store     StoreInterface
	executor  contracts.Executor
	assetList AssetLister
}

// New creates a new AccountsCore service backed by a Supabase-backed store.
func New(serviceOS os.ServiceOS, executor contracts.Executor, assetList AssetLister) (*Service, error) {
	return NewWithStore(serviceOS, NewStore(), executor, assetList)
}

// NewWithStore creates a new AccountsCore service against an explicit store,
// letting tests substitute an in-memory StoreInterface.
func NewWithStore(serviceOS os.ServiceOS, store StoreInterface, executor contracts.Executor, assetList AssetLister) (*Service, error) {
	s := &Service{
		BaseService: base.NewBaseService(ServiceID, ServiceName, Version, serviceOS),
		enclave:     NewEnclave(serviceOS),
		store:       store,
		executor:    executor,
		assetList:   assetList,
	}

	s.SetEnclave(s.enclave)
	s.SetStore(s.store)

	return s, nil
}

// CreateAccount provisions an Account row and its first Wallet: a factory
// contract call creates the on-chain account, the returned address is turned
// into a contract id, and the wallet row is inserted. If wallet provisioning
// fails the account row is rolled back.
func (s *Service) CreateAccount(ctx context.Context, accountType AccountType, controller string, allowList []string) (*Account, *Wallet, error) {
	if s.State() != base.StateRunning {
		return nil, nil, fmt.Errorf("service not running")
	}

	account := &Account{
		Type:   accountType,
		Status: AccountStatusUnverified,
	}
	account.GenerateID()
	account.SetTimestamps()

	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, nil, errs.Database(err, "create account")
	}

	wallet, err := s.provisionWallet(ctx, account.ID, controller, allowList)
	if err != nil {
		if delErr := s.store.DeleteAccount(ctx, account.ID); delErr != nil {
			s.Logger().Warn("rollback account after wallet failure", "account_id", account.ID, "err", delErr)
		}
		return nil, nil, err
	}

	return account, wallet, nil
}

// CreateBareAccount inserts an Account row without provisioning any wallet.
// Used by callers that already have external wallet addresses to attach via
// RegisterWallet — a lending pool's treasury and reserve accounts, for
// instance — rather than going through CradleAccountFactory via CreateAccount.
func (s *Service) CreateBareAccount(ctx context.Context, accountType AccountType, status AccountStatus) (*Account, error) {
	account := &Account{Type: accountType, Status: status}
	account.GenerateID()
	account.SetTimestamps()
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, errs.Database(err, "create bare account")
	}
	return account, nil
}

func (s *Service) provisionWallet(ctx context.Context, accountID, controller string, allowList []string) (*Wallet, error) {
	out, err := s.executor.Execute(ctx, contracts.CreateAccountInput{Controller: controller, AllowList: allowList})
	if err != nil {
		return nil, errs.Contract(err, "create account factory call")
	}
	created, ok := out.(contracts.CreateAccountOutput)
	if !ok {
		return nil, errs.Contract(nil, "unexpected create-account output %T", out)
	}

	contractID, err := s.executor.ContractIDFromEVMAddress(ctx, created.Address)
	if err != nil {
		return nil, errs.Contract(err, "derive contract id from address %s", created.Address)
	}

	wallet := &Wallet{
		AccountID:  accountID,
		Address:    created.Address,
		ContractID: contractID,
		Status:     WalletStatusActive,
	}
	wallet.GenerateID()
	wallet.SetTimestamps()

	if err := s.store.CreateWallet(ctx, wallet); err != nil {
		return nil, errs.Database(err, "persist wallet")
	}
	return wallet, nil
}

// RegisterWallet attaches an already-deployed on-chain address as a Wallet
// under an existing account. Used when a contract other than
// CradleAccountFactory hands back a ready-made address — e.g. a lending
// pool's treasury and reserve accounts — instead of CreateAccount minting one
// itself.
func (s *Service) RegisterWallet(ctx context.Context, accountID, address string) (*Wallet, error) {
	contractID, err := s.executor.ContractIDFromEVMAddress(ctx, address)
	if err != nil {
		return nil, errs.Contract(err, "derive contract id from address %s", address)
	}

	wallet := &Wallet{
		AccountID:  accountID,
		Address:    address,
		ContractID: contractID,
		Status:     WalletStatusActive,
	}
	wallet.GenerateID()
	wallet.SetTimestamps()

	if err := s.store.CreateWallet(ctx, wallet); err != nil {
		return nil, errs.Database(err, "persist wallet")
	}
	return wallet, nil
}

// AssociateAsset associates a single named asset against a wallet's on-chain
// account, independent of HandleAssociateAssets' sweep-every-known-asset
// shape. Callers that only ever need one specific asset associated — a
// lending pool's treasury and reserve wallets against the pool's reserve
// asset, for instance — use this instead of paying for a full sweep.
func (s *Service) AssociateAsset(ctx context.Context, wallet *Wallet, assetID, token string) error {
	return s.applyAssetBookEntry(ctx, wallet, assetID, func(ctx context.Context) error {
		_, err := s.executor.Execute(ctx, contracts.AssociateTokenInput{AccountContract: wallet.ContractID, Token: token})
		return err
	}, func(e *AccountAssetBook, now time.Time) {
		e.Associated = true
		e.AssociatedAt = &now
	})
}

// KYCAsset clears KYC for a single named asset against a wallet's on-chain
// account. Symmetric with AssociateAsset.
func (s *Service) KYCAsset(ctx context.Context, wallet *Wallet, assetID, token string) error {
	return s.applyAssetBookEntry(ctx, wallet, assetID, func(ctx context.Context) error {
		_, err := s.executor.Execute(ctx, contracts.GrantKYCInput{Manager: token, Address: wallet.ContractID})
		return err
	}, func(e *AccountAssetBook, now time.Time) {
		e.Kyced = true
		e.KycedAt = &now
	})
}

// applyAssetBookEntry reads (or creates) the asset-book row for a single
// asset, applies the contract call, and persists the transition. Shares its
// read-modify-write shape with sweepAssetBook but targets one asset instead
// of enumerating every known one.
func (s *Service) applyAssetBookEntry(
	ctx context.Context,
	wallet *Wallet,
	assetID string,
	apply func(ctx context.Context) error,
	mark func(*AccountAssetBook, time.Time),
) error {
	entry, err := s.store.GetAssetBookEntry(ctx, assetID, wallet.AccountID)
	if err != nil {
		return errs.Database(err, "look up asset book entry for asset %s", assetID)
	}
	if entry == nil {
		entry = &AccountAssetBook{AssetID: assetID, AccountID: wallet.AccountID}
	}

	if err := apply(ctx); err != nil {
		return errs.Contract(err, "asset %s action for wallet %s", assetID, wallet.ID)
	}

	mark(entry, time.Now().UTC())
	if err := s.store.UpsertAssetBookEntry(ctx, entry); err != nil {
		return errs.Database(err, "persist asset book entry for asset %s", assetID)
	}
	return nil
}

// GetAccount reads an account by id.
func (s *Service) GetAccount(ctx context.Context, id string) (*Account, error) {
	account, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return nil, errs.NotFound("account %s: %v", id, err)
	}
	return account, nil
}

// GetWallet reads a wallet by id.
func (s *Service) GetWallet(ctx context.Context, id string) (*Wallet, error) {
	wallet, err := s.store.GetWallet(ctx, id)
	if err != nil {
		return nil, errs.NotFound("wallet %s: %v", id, err)
	}
	return wallet, nil
}

// ListWallets lists every wallet owned by an account.
func (s *Service) ListWallets(ctx context.Context, accountID string) ([]*Wallet, error) {
	return s.store.ListWalletsByAccount(ctx, accountID)
}

// VerifyAccount flips an account from Unverified to Verified.
func (s *Service) VerifyAccount(ctx context.Context, id string) (*Account, error) {
	account, err := s.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if account.Status != AccountStatusUnverified {
		return account, nil
	}
	account.Status = AccountStatusVerified
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return nil, errs.Database(err, "verify account %s", id)
	}
	return account, nil
}

// HandleAssociateAssets associates every asset the given wallet's account has
// not yet associated. It is idempotent: already-associated assets are
// skipped, and re-invocation after a partial failure only retries the
// remainder.
func (s *Service) HandleAssociateAssets(ctx context.Context, wallet *Wallet) error {
	return s.sweepAssetBook(ctx, wallet, func(e *AccountAssetBook) bool { return e.Associated }, func(ctx context.Context, token string) error {
		_, err := s.executor.Execute(ctx, contracts.AssociateTokenInput{AccountContract: wallet.ContractID, Token: token})
		return err
	}, func(e *AccountAssetBook, now time.Time) {
		e.Associated = true
		e.AssociatedAt = &now
	})
}

// HandleKYCAssets clears KYC for every asset the given wallet's account has
// not yet cleared. Symmetric with HandleAssociateAssets.
func (s *Service) HandleKYCAssets(ctx context.Context, wallet *Wallet) error {
	return s.sweepAssetBook(ctx, wallet, func(e *AccountAssetBook) bool { return e.Kyced }, func(ctx context.Context, token string) error {
		_, err := s.executor.Execute(ctx, contracts.GrantKYCInput{Manager: token, Address: wallet.ContractID})
		return err
	}, func(e *AccountAssetBook, now time.Time) {
		e.Kyced = true
		e.KycedAt = &now
	})
}

// sweepAssetBook is the shared left-join-then-process shape behind
// HandleAssociateAssets and HandleKYCAssets: it lists every known asset,
// lists the account's existing asset-book rows, and for each asset whose
// existing row (if any) does not yet satisfy `done`, calls `apply` and then
// persists the transition via `mark`.
func (s *Service) sweepAssetBook(
	ctx context.Context,
	wallet *Wallet,
	done func(*AccountAssetBook) bool,
	apply func(ctx context.Context, token string) error,
	mark func(*AccountAssetBook, time.Time),
) error {
	assets, err := s.assetList.ListAssetRefs(ctx)
	if err != nil {
		return errs.Database(err, "list assets for association sweep")
	}

	existing, err := s.store.ListAssetBookByAccount(ctx, wallet.AccountID)
	if err != nil {
		return errs.Database(err, "list asset book for account %s", wallet.AccountID)
	}
	byAsset := make(map[string]*AccountAssetBook, len(existing))
	for _, e := range existing {
		byAsset[e.AssetID] = e
	}

	for _, asset := range assets {
		entry, ok := byAsset[asset.ID]
		if ok && done(entry) {
			continue
		}
		if entry == nil {
			entry = &AccountAssetBook{AssetID: asset.ID, AccountID: wallet.AccountID}
		}

		if err := apply(ctx, asset.Token); err != nil {
			return errs.Contract(err, "asset %s sweep for wallet %s", asset.ID, wallet.ID)
		}

		mark(entry, time.Now().UTC())
		if err := s.store.UpsertAssetBookEntry(ctx, entry); err != nil {
			return errs.Database(err, "persist asset book entry for asset %s", asset.ID)
		}
	}
	return nil
}
