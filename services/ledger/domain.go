// Package ledger is the append-only accounting trail: every asset movement
// the core performs is recorded through a single RecordTransaction entry
// point, never written to directly.
package ledger

import (
	"github.com/cradle-labs/cradle-core/services/base"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger row's movement.
type TransactionType string

const (
	TransactionLock                       TransactionType = "lock"
	TransactionUnlock                     TransactionType = "unlock"
	TransactionLend                       TransactionType = "lend"
	TransactionBorrow                     TransactionType = "borrow"
	TransactionRepay                      TransactionType = "repay"
	TransactionLiquidate                  TransactionType = "liquidate"
	TransactionFillOrder                  TransactionType = "fill_order"
	TransactionWithdraw                   TransactionType = "withdraw"
	TransactionTransfer                   TransactionType = "transfer"
	TransactionBuyListed                  TransactionType = "buy_listed"
	TransactionSellListed                 TransactionType = "sell_listed"
	TransactionListingBeneficiaryWithdraw TransactionType = "listing_beneficiary_withdrawal"
)

// SystemParty is the sentinel address used when a ledger row has no tracked
// counter-party.
const SystemParty = "system"

// Row is one append-only ledger entry.
type Row struct {
	base.BaseEntity
	Transaction     string          `json:"transaction,omitempty"`
	FromAddress     string          `json:"from_address"`
	ToAddress       string          `json:"to_address"`
	Asset           string          `json:"asset"`
	TransactionType TransactionType `json:"transaction_type"`
	Amount          decimal.Decimal `json:"amount"`
	Ref             string          `json:"ref,omitempty"`
}

// Assets is the sealed union of asset shapes RecordTransaction accepts. Each
// variant selects which asset is primary (the one the visible ledger row
// books against) and which, if any, is secondary (the one a cascaded second
// row books against).
type Assets interface {
	primaryAsset() string
	secondaryAsset() string
}

// Single books one asset; there is no secondary cascade.
type Single struct{ Asset string }

func (s Single) primaryAsset() string   { return s.Asset }
func (s Single) secondaryAsset() string { return s.Asset }

// Borrow books the borrowed asset primary, the collateral asset secondary.
type Borrow struct{ Collateral, Borrowed string }

func (b Borrow) primaryAsset() string   { return b.Borrowed }
func (b Borrow) secondaryAsset() string { return b.Collateral }

// Repay mirrors Borrow's shape for repayment rows.
type Repay struct{ Collateral, Borrowed string }

func (r Repay) primaryAsset() string   { return r.Borrowed }
func (r Repay) secondaryAsset() string { return r.Collateral }

// Deposit books the deposited asset primary, the minted yield asset secondary.
type Deposit struct{ Deposited, YieldAsset string }

func (d Deposit) primaryAsset() string   { return d.Deposited }
func (d Deposit) secondaryAsset() string { return d.YieldAsset }

// Withdraw books the underlying asset primary, the burned yield asset secondary.
type Withdraw struct{ YieldAsset, UnderlyingAsset string }

func (w Withdraw) primaryAsset() string   { return w.UnderlyingAsset }
func (w Withdraw) secondaryAsset() string { return w.YieldAsset }

// ListingPurchase books the purchased asset primary, the paying asset secondary.
type ListingPurchase struct{ Purchased, PayingWith string }

func (l ListingPurchase) primaryAsset() string   { return l.Purchased }
func (l ListingPurchase) secondaryAsset() string { return l.PayingWith }

// ListingSell books the sold asset primary, the received asset secondary.
type ListingSell struct{ Sold, Received string }

func (l ListingSell) primaryAsset() string   { return l.Sold }
func (l ListingSell) secondaryAsset() string { return l.Received }

// LiquidateLoan books the reserve asset primary, the seized collateral secondary.
type LiquidateLoan struct{ Reserve, Collateral string }

func (l LiquidateLoan) primaryAsset() string   { return l.Reserve }
func (l LiquidateLoan) secondaryAsset() string { return l.Collateral }
