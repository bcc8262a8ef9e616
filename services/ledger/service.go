package ledger

import (
	"context"
	"time"

	"github.com/cradle-labs/cradle-core/internal/errs"
	"github.com/cradle-labs/cradle-core/platform/os"
	"github.com/cradle-labs/cradle-core/services/base"
	"github.com/cradle-labs/cradle-core/services/contracts"
	"github.com/shopspring/decimal"
)

const (
	ServiceID   = "ledger"
	ServiceName = "Ledger Service"
	Version     = "1.0.0"
)

// Manifest returns the service manifest.
func Manifest() *os.LegacyManifest {
	return &os.LegacyManifest{
		ServiceID:   ServiceID,
		Version:     Version,
		Description: "Append-only accounting trail for every asset movement",
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
			MaxCPUTime: 5 * time.Second,
		},
	}
}

// Service implements the Ledger component.
type Service struct {
	*base.BaseService
	store StoreInterface
}

// New creates a new ledger service.
func New(serviceOS os.ServiceOS) (*Service, error) {
	return NewWithStore(serviceOS, NewStore())
}

// NewWithStore creates a new ledger service against an explicit store.
func NewWithStore(serviceOS os.ServiceOS, store StoreInterface) (*Service, error) {
	s := &Service{
		BaseService: base.NewBaseService(ServiceID, ServiceName, Version, serviceOS),
		store:       store,
	}
	s.SetStore(s.store)
	return s, nil
}

func nonEmpty(v string) string {
	if v == "" {
		return SystemParty
	}
	return v
}

// RecordTransaction is the single write entry point for the ledger. assets
// selects which of its two parts is primary (the asset the visible row
// books against) and which is secondary. When contractOutput is supplied its
// concrete type determines the transaction id, sometimes overrides the
// primary transaction type or amount or direction, and may trigger a
// recursive secondary RecordTransaction call for the paired asset.
func (s *Service) RecordTransaction(
	ctx context.Context,
	from, to string,
	assets Assets,
	amount decimal.Decimal,
	contractOutput contracts.CallOutput,
	txType TransactionType,
	txID string,
	secondaryParty string,
) (string, error) {
	fromAddr := nonEmpty(from)
	toAddr := nonEmpty(to)

	row := &Row{
		FromAddress:     fromAddr,
		ToAddress:       toAddr,
		Transaction:     txID,
		Asset:           assets.primaryAsset(),
		TransactionType: txType,
		Amount:          amount,
	}
	if row.TransactionType == "" {
		row.TransactionType = TransactionLock
	}

	if contractOutput != nil {
		if err := s.applyContractOutput(ctx, row, from, to, assets, amount, secondaryParty, contractOutput); err != nil {
			return "", err
		}
	}

	if err := s.store.InsertRow(ctx, row); err != nil {
		return "", errs.Database(err, "insert ledger row")
	}
	return row.ID, nil
}

// applyContractOutput mirrors the contract-output-driven cascade: the
// concrete output type picks the primary row's transaction id and type
// (sometimes amount and direction too) and, where the original system
// recurses to book the paired asset, issues that secondary
// RecordTransaction call here.
func (s *Service) applyContractOutput(
	ctx context.Context,
	row *Row,
	from, to string,
	assets Assets,
	amount decimal.Decimal,
	secondaryParty string,
	out contracts.CallOutput,
) error {
	secondary := assets.secondaryAsset()

	switch o := out.(type) {
	case contracts.LockAssetOutput:
		row.Transaction = o.TransactionID()
		row.TransactionType = TransactionLock

	case contracts.UnlockAssetOutput:
		row.Transaction = o.TransactionID()
		row.TransactionType = TransactionUnlock

	case contracts.PoolDepositOutput:
		row.Transaction = o.TransactionID()
		row.TransactionType = TransactionLend
		_, err := s.RecordTransaction(ctx, to, from, Single{Asset: secondary}, o.YieldTokensMinted, nil, TransactionTransfer, o.TransactionID(), "")
		if err != nil {
			return err
		}

	case contracts.PoolWithdrawOutput:
		row.Transaction = o.TransactionID()
		row.TransactionType = TransactionWithdraw
		row.Amount = o.UnderlyingReturned
		row.FromAddress = nonEmpty(to)
		row.ToAddress = nonEmpty(from)
		_, err := s.RecordTransaction(ctx, from, to, Single{Asset: secondary}, amount, nil, TransactionTransfer, o.TransactionID(), "")
		if err != nil {
			return err
		}

	case contracts.PoolBorrowOutput:
		row.Transaction = o.TransactionID()
		row.TransactionType = TransactionBorrow
		row.Amount = o.BorrowedAmount
		_, err := s.RecordTransaction(ctx, to, from, Single{Asset: secondary}, amount, nil, TransactionLock, o.TransactionID(), "")
		if err != nil {
			return err
		}

	case contracts.PoolRepayOutput:
		row.Transaction = o.TransactionID()
		row.TransactionType = TransactionRepay
		_, err := s.RecordTransaction(ctx, to, from, Single{Asset: secondary}, o.CollateralUnlocked, nil, TransactionUnlock, o.TransactionID(), "")
		if err != nil {
			return err
		}

	case contracts.PoolLiquidateOutput:
		row.Transaction = o.TransactionID()
		row.TransactionType = TransactionLiquidate
		_, err := s.RecordTransaction(ctx, to, secondaryParty, Single{Asset: secondary}, o.ObtainedCollateral, nil, TransactionUnlock, o.TransactionID(), "")
		if err != nil {
			return err
		}

	case contracts.SettleOrderOutput:
		row.Transaction = o.TransactionID()
		row.TransactionType = TransactionFillOrder

	case contracts.ListingActionOutput:
		// Purchase, ReturnAsset and WithdrawToBeneficiary all return this
		// shape; the caller distinguishes them via the txType it passed in,
		// since the contract output alone does not carry enough to tell
		// purchase from sale from beneficiary withdrawal.
		row.Transaction = o.TransactionID()

	default:
		return errs.Contract(nil, "unsupported ledger contract output %T", out)
	}
	return nil
}
