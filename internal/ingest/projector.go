package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/vehemi/marketplace-indexer/internal/adapter"
	"github.com/vehemi/marketplace-indexer/internal/domain"
	"github.com/vehemi/marketplace-indexer/internal/logger"
	"github.com/vehemi/marketplace-indexer/internal/store"
	"github.com/vehemi/marketplace-indexer/internal/store/schema"
)

// hemiDecimals is used for formatting locked amounts; the veHEMI
// contract locks HEMI which has 18 decimals
const hemiDecimals = 18

// Projector translates decoded chain events into store mutations.
// Each event is applied inside store.ApplyEvent so the event row and
// its projection commit atomically; a (tx_hash, log_index) pair that
// was already recorded is skipped without side effects.
type Projector struct {
	store store.Store
	json  adapter.JSON
}

// NewProjector creates a new projector
func NewProjector(st store.Store, jsonAdapter adapter.JSON) *Projector {
	return &Projector{store: st, json: jsonAdapter}
}

// Apply records and projects a single event. Returns false when the
// event was already applied.
func (p *Projector) Apply(ctx context.Context, event *domain.MarketplaceEvent) (bool, error) {
	raw, err := p.json.Marshal(event)
	if err != nil {
		return false, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	row := &schema.MarketplaceEvent{
		TokenID:     event.TokenID,
		EventName:   event.EventName,
		TxHash:      event.TxHash,
		LogIndex:    event.LogIndex,
		BlockNumber: event.BlockNumber,
		BlockHash:   event.BlockHash,
		Timestamp:   event.Timestamp,
		Raw:         raw,
	}

	return p.store.ApplyEvent(ctx, row, func(ctx context.Context, tx store.Store) error {
		switch event.EventName {
		case domain.EventNFTListed:
			return p.projectListed(ctx, tx, event)
		case domain.EventNFTSold:
			return p.projectSold(ctx, tx, event)
		case domain.EventListingCancelled:
			return p.projectCancelled(ctx, tx, event)
		case domain.EventTransfer:
			return p.projectTransfer(ctx, tx, event)
		case domain.EventLockCreated:
			return p.projectLockCreated(ctx, tx, event)
		default:
			return fmt.Errorf("unknown event name: %s", event.EventName)
		}
	})
}

func (p *Projector) projectListed(ctx context.Context, tx store.Store, event *domain.MarketplaceEvent) error {
	// The contract forbids listing an already-listed token, so an active
	// row here means we missed a terminal event. Supersede and flag it
	// rather than refusing the fresher state.
	superseded, err := tx.SupersedeActiveListings(ctx, event.TokenID, event.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to supersede active listings: %w", err)
	}
	if superseded > 0 {
		logger.WarnCtx(ctx, "Superseded stale active listings",
			zap.Uint64("token_id", event.TokenID),
			zap.Int64("count", superseded),
			zap.String("tx_hash", event.TxHash))
	}

	paymentToken := domain.NormalizeAddress(*event.PaymentToken)
	decimals, err := p.resolvePaymentTokenDecimals(ctx, tx, paymentToken)
	if err != nil {
		return err
	}

	priceFormatted, err := domain.FormatUnits(event.PriceWei, decimals)
	if err != nil {
		return fmt.Errorf("failed to format price: %w", err)
	}

	listing := &schema.Listing{
		TokenID:             event.TokenID,
		SellerAddress:       domain.NormalizeAddress(*event.Seller),
		PriceWei:            event.PriceWei,
		PriceFormatted:      priceFormatted,
		PaymentTokenAddress: paymentToken,
		DurationSeconds:     event.DurationSeconds,
		CreatedAtTimestamp:  event.Timestamp,
		DeadlineTimestamp:   event.Timestamp.Add(time.Duration(event.DurationSeconds) * time.Second),
		Status:              domain.ListingStatusActive,
		TransactionHash:     event.TxHash,
		BlockNumber:         event.BlockNumber,
	}

	if err := tx.CreateListing(ctx, listing); err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}

	return nil
}

func (p *Projector) projectSold(ctx context.Context, tx store.Store, event *domain.MarketplaceEvent) error {
	buyer := domain.NormalizeAddress(*event.Buyer)

	matched, err := tx.MarkListingSold(ctx, event.TokenID, buyer, event.Timestamp, event.TxHash)
	if err != nil {
		return fmt.Errorf("failed to mark listing sold: %w", err)
	}
	if matched {
		return nil
	}

	// Orphan sale: the creating NFTListed event was never applied.
	// Materialize the sold row from the sale payload and flag it so the
	// gap is visible.
	reconcileID := ulid.Make().String()
	logger.WarnCtx(ctx, "Materializing orphan sale",
		zap.Uint64("token_id", event.TokenID),
		zap.String("tx_hash", event.TxHash),
		zap.String("reconcile_id", reconcileID))

	paymentToken := domain.NormalizeAddress(*event.PaymentToken)
	decimals, err := p.resolvePaymentTokenDecimals(ctx, tx, paymentToken)
	if err != nil {
		return err
	}

	priceFormatted, err := domain.FormatUnits(event.PriceWei, decimals)
	if err != nil {
		return fmt.Errorf("failed to format price: %w", err)
	}

	soldAt := event.Timestamp
	saleTxHash := event.TxHash
	listing := &schema.Listing{
		TokenID:             event.TokenID,
		SellerAddress:       domain.NormalizeAddress(*event.Seller),
		PriceWei:            event.PriceWei,
		PriceFormatted:      priceFormatted,
		PaymentTokenAddress: paymentToken,
		CreatedAtTimestamp:  event.Timestamp,
		DeadlineTimestamp:   event.Timestamp,
		Status:              domain.ListingStatusSold,
		BuyerAddress:        &buyer,
		SoldAtTimestamp:     &soldAt,
		TransactionHash:     event.TxHash,
		SaleTransactionHash: &saleTxHash,
		BlockNumber:         event.BlockNumber,
		ReconcileFlag:       true,
		ReconcileID:         &reconcileID,
	}

	if err := tx.CreateListing(ctx, listing); err != nil {
		return fmt.Errorf("failed to materialize orphan sale: %w", err)
	}

	return nil
}

func (p *Projector) projectCancelled(ctx context.Context, tx store.Store, event *domain.MarketplaceEvent) error {
	matched, err := tx.MarkListingCancelled(ctx, event.TokenID, event.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to mark listing cancelled: %w", err)
	}
	if !matched {
		// The cancel payload carries no price, so there is nothing to
		// materialize. The event row itself keeps the audit trail.
		logger.WarnCtx(ctx, "Cancel event without active listing",
			zap.Uint64("token_id", event.TokenID),
			zap.String("tx_hash", event.TxHash))
	}

	return nil
}

func (p *Projector) projectTransfer(ctx context.Context, tx store.Store, event *domain.MarketplaceEvent) error {
	if event.IsBurn() {
		if err := tx.ClosePosition(ctx, event.TokenID, domain.CLOSURE_TYPE_WITHDRAWN, event.Timestamp); err != nil {
			return fmt.Errorf("failed to close position: %w", err)
		}
		return nil
	}

	position, err := tx.GetPosition(ctx, event.TokenID)
	if err != nil {
		return fmt.Errorf("failed to get position: %w", err)
	}

	if position == nil {
		if event.IsMint() {
			// The LockCreated event in the same transaction establishes
			// the position, including its owner
			return nil
		}
		logger.WarnCtx(ctx, "Transfer for unknown position",
			zap.Uint64("token_id", event.TokenID),
			zap.String("tx_hash", event.TxHash))
		return nil
	}

	owner := domain.NormalizeAddress(*event.ToAddress)
	if err := tx.UpdatePositionOwner(ctx, event.TokenID, owner, event.Timestamp); err != nil {
		return fmt.Errorf("failed to update position owner: %w", err)
	}

	return nil
}

func (p *Projector) projectLockCreated(ctx context.Context, tx store.Store, event *domain.MarketplaceEvent) error {
	amountFormatted, err := domain.FormatUnits(event.LockedAmountWei, hemiDecimals)
	if err != nil {
		return fmt.Errorf("failed to format locked amount: %w", err)
	}

	lockStart := event.Timestamp
	if event.LockStart != nil {
		lockStart = *event.LockStart
	}

	position := &schema.Position{
		TokenID:               event.TokenID,
		OwnerAddress:          domain.NormalizeAddress(*event.ToAddress),
		LockedAmountWei:       event.LockedAmountWei,
		LockedAmountFormatted: amountFormatted,
		LockStart:             lockStart,
		LockEnd:               *event.LockEnd,
		Transferable:          true,
		Status:                domain.PositionStatusOpen,
	}

	if err := tx.UpsertPositionLock(ctx, position); err != nil {
		return fmt.Errorf("failed to upsert position lock: %w", err)
	}

	return nil
}

// resolvePaymentTokenDecimals returns the registered decimals for a
// payment token, registering a placeholder on first sight so listing
// rows always join to a registry entry
func (p *Projector) resolvePaymentTokenDecimals(ctx context.Context, tx store.Store, address string) (int, error) {
	token, err := tx.GetPaymentToken(ctx, address)
	if err != nil {
		return 0, fmt.Errorf("failed to get payment token: %w", err)
	}
	if token != nil {
		return token.Decimals, nil
	}

	logger.WarnCtx(ctx, "Registering unknown payment token", zap.String("address", address))
	placeholder := &schema.PaymentToken{
		TokenAddress: address,
		TokenSymbol:  "UNKNOWN",
		TokenName:    "Unknown Token",
		Decimals:     hemiDecimals,
		IsActive:     false,
	}
	if err := tx.RegisterPaymentToken(ctx, placeholder); err != nil {
		return 0, fmt.Errorf("failed to register payment token: %w", err)
	}

	return placeholder.Decimals, nil
}
