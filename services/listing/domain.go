// Package listing implements ListingEngine: company registration, native
// asset listings backed by a shadow-asset treasury, and the purchase/return/
// beneficiary-withdrawal cash flows a listing goes through once open.
package listing

import (
	"time"

	"github.com/cradle-labs/cradle-core/services/base"
	"github.com/shopspring/decimal"
)

// Status tracks a Listing's lifecycle against the on-chain contract's own
// status enum.
type Status string

const (
	StatusPending   Status = "pending"
	StatusOpen      Status = "open"
	StatusClosed    Status = "closed"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
)

// Company is the legal entity behind one or more Listings. Its beneficiary
// wallet is where WithdrawToBeneficiary sends purchase-asset proceeds.
type Company struct {
	base.BaseEntity
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	LegalDocuments    string `json:"legal_documents,omitempty"`
	BeneficiaryWallet string `json:"beneficiary_wallet"`
}

// Listing is a single native asset offering: a fixed max supply of
// ListedAsset sold for PurchaseWithAsset at PurchasePrice, mirrored one-for-
// one by a non-transferable ShadowAsset the contract uses to track
// remaining supply without letting buyers trade the listed asset directly.
type Listing struct {
	base.BaseEntity
	ListingContractID string          `json:"listing_contract_id"`
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	Documents         string          `json:"documents,omitempty"`
	Company           string          `json:"company"`
	Status            Status          `json:"status"`
	OpenedAt          *time.Time      `json:"opened_at,omitempty"`
	StoppedAt         *time.Time      `json:"stopped_at,omitempty"`
	ListedAsset       string          `json:"listed_asset"`
	PurchaseWithAsset string          `json:"purchase_with_asset"`
	PurchasePrice     decimal.Decimal `json:"purchase_price"`
	MaxSupply         decimal.Decimal `json:"max_supply"`
	Treasury          string          `json:"treasury"`
	ShadowAsset       string          `json:"shadow_asset"`
}

// NewListedAsset describes a brand new asset to mint for a listing rather
// than reusing an already-registered one.
type NewListedAsset struct {
	Issuer   string
	Symbol   string
	Name     string
	Decimals int
	Icon     string
}

// CreateCompanyArgs is the input to CreateCompany.
type CreateCompanyArgs struct {
	Name              string
	Description       string
	LegalDocuments    string
	BeneficiaryWallet string
}

// CreateListingArgs is the input to CreateListing.
type CreateListingArgs struct {
	Name          string
	Description   string
	Documents     string
	Company       string
	PurchaseAsset string
	PurchasePrice decimal.Decimal
	MaxSupply     decimal.Decimal

	// ExistingListedAsset references an already-registered asset by id.
	// When empty, NewListedAsset is used to mint one.
	ExistingListedAsset string
	NewListedAsset      *NewListedAsset
}
