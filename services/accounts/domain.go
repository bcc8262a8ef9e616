// Package accounts implements AccountsCore: account/wallet provisioning and
// the idempotent asset-association and KYC workflows every other engine
// relies on before it can move value for a wallet.
package accounts

import (
	"time"

	"github.com/cradle-labs/cradle-core/services/base"
)

// AccountType classifies who an Account represents.
type AccountType string

const (
	AccountTypeRetail        AccountType = "retail"
	AccountTypeInstitutional AccountType = "institutional"
	AccountTypeSystem        AccountType = "system"
)

// AccountStatus tracks the monotonic verification lifecycle of an Account.
type AccountStatus string

const (
	AccountStatusUnverified AccountStatus = "unverified"
	AccountStatusVerified   AccountStatus = "verified"
	AccountStatusSuspended  AccountStatus = "suspended"
	AccountStatusClosed     AccountStatus = "closed"
)

// Account is a holder of one or more Wallets.
type Account struct {
	base.BaseEntity
	LinkedAccountID string        `json:"linked_account_id,omitempty"`
	Type            AccountType   `json:"type"`
	Status          AccountStatus `json:"status"`
}

// WalletStatus tracks whether a wallet can still be used in new actions.
type WalletStatus string

const (
	WalletStatusActive    WalletStatus = "active"
	WalletStatusInactive  WalletStatus = "inactive"
	WalletStatusSuspended WalletStatus = "suspended"
)

// Wallet is a single on-chain account contract owned by an Account.
type Wallet struct {
	base.BaseEntity
	AccountID  string       `json:"account_id"`
	Address    string       `json:"address"`
	ContractID string       `json:"contract_id"`
	Status     WalletStatus `json:"status"`
}

// AccountAssetBook tracks, per (asset, account) pair, whether the wallet's
// on-chain account has associated the asset's token and cleared KYC for it.
// Both flags are idempotent and only ever transition false -> true.
type AccountAssetBook struct {
	base.BaseEntity
	AssetID      string     `json:"asset_id"`
	AccountID    string     `json:"account_id"`
	Associated   bool       `json:"associated"`
	Kyced        bool       `json:"kyced"`
	AssociatedAt *time.Time `json:"associated_at,omitempty"`
	KycedAt      *time.Time `json:"kyced_at,omitempty"`
}
