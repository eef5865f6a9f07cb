package store

import (
	"context"
	"time"

	"github.com/vehemi/marketplace-indexer/internal/domain"
	"github.com/vehemi/marketplace-indexer/internal/store/schema"
)

// ListingSort identifies the supported listing sort keys
type ListingSort string

const (
	ListingSortUnitPriceUSD ListingSort = "unit_price_usd"
	ListingSortPriceUSD     ListingSort = "price_usd"
	ListingSortTokenID      ListingSort = "token_id"
	ListingSortCreatedAt    ListingSort = "created_at"
)

// ListingFilter holds filters and pagination for listing queries.
// Ranges are inclusive; nil means unbounded.
type ListingFilter struct {
	MinPriceWei        *string
	MaxPriceWei        *string
	MinLockedAmountWei *string
	MaxLockedAmountWei *string
	UnlockAfter        *time.Time
	UnlockBefore       *time.Time
	PaymentTokens      []string
	Seller             *string

	Sort     ListingSort
	SortDesc bool
	Limit    int
	Offset   int
}

// Watermark is the durably-applied ingestion position. Events at or
// below it have been applied; on restart the pipeline re-requests from
// here and relies on idempotency to absorb re-delivery.
type Watermark struct {
	BlockNumber uint64
	LogIndex    uint
}

// SoldListing joins a sold listing with its position and payment token
// for valuation
type SoldListing struct {
	Listing      schema.Listing
	Position     *schema.Position
	PaymentToken *schema.PaymentToken
}

// Store defines the interface for database operations. All listing and
// position mutation goes through ApplyEvent; no other writer touches
// those tables.
type Store interface {
	// ApplyEvent atomically records the event and runs the projection in
	// one transaction. Returns (false, nil) without invoking project when
	// the (tx_hash, log_index) pair was already applied.
	ApplyEvent(ctx context.Context, event *schema.MarketplaceEvent, project func(ctx context.Context, tx Store) error) (applied bool, err error)

	// GetPosition retrieves a position by token id, nil if absent
	GetPosition(ctx context.Context, tokenID uint64) (*schema.Position, error)
	// ListPositionsByOwner retrieves all positions held by an address
	ListPositionsByOwner(ctx context.Context, owner string) ([]*schema.Position, error)
	// UpsertPositionLock creates the position on first sight of a lock
	// event, or refreshes lock_end/transferable on later ones. The locked
	// amount is never overwritten once set.
	UpsertPositionLock(ctx context.Context, position *schema.Position) error
	// UpdatePositionOwner records an ownership change
	UpdatePositionOwner(ctx context.Context, tokenID uint64, owner string, at time.Time) error
	// ClosePosition marks a position closed with the given closure type
	ClosePosition(ctx context.Context, tokenID uint64, closureType string, at time.Time) error

	// GetActiveListing retrieves the active listing row for a token
	// regardless of deadline, nil if absent. Read-time expiry is the
	// caller's concern (marketplace.EffectiveStatus).
	GetActiveListing(ctx context.Context, tokenID uint64) (*schema.Listing, error)
	// GetBuyableListing retrieves the active, not-yet-expired listing for
	// a token, nil if absent
	GetBuyableListing(ctx context.Context, tokenID uint64, now time.Time) (*schema.Listing, error)
	// CreateListing inserts a new listing row
	CreateListing(ctx context.Context, listing *schema.Listing) error
	// SupersedeActiveListings force-cancels any active rows for the token
	// and flags them for reconciliation. Returns the number of superseded
	// rows.
	SupersedeActiveListings(ctx context.Context, tokenID uint64, at time.Time) (int64, error)
	// MarkListingSold transitions the active listing to sold. Returns
	// false when no active listing exists.
	MarkListingSold(ctx context.Context, tokenID uint64, buyer string, soldAt time.Time, saleTxHash string) (bool, error)
	// MarkListingCancelled transitions the active listing to cancelled.
	// Returns false when no active listing exists.
	MarkListingCancelled(ctx context.Context, tokenID uint64, cancelledAt time.Time) (bool, error)
	// ListActiveListings retrieves buyable listings with their positions
	// and payment tokens, filtered, sorted and paginated; also returns
	// the total matching count
	ListActiveListings(ctx context.Context, filter ListingFilter, now time.Time) ([]*SoldListing, int64, error)
	// ListListingsBySeller retrieves all listings created by an address
	ListListingsBySeller(ctx context.Context, seller string) ([]*schema.Listing, error)
	// ListSoldListings retrieves sold listings with position and payment
	// token, optionally restricted to sales at or after since
	ListSoldListings(ctx context.Context, since *time.Time) ([]*SoldListing, error)
	// ListListingsByStatus retrieves listings in a given mirrored status,
	// newest first
	ListListingsByStatus(ctx context.Context, status domain.ListingStatus, limit, offset int) ([]*SoldListing, error)

	// GetPaymentToken retrieves a payment token by address, nil if absent
	GetPaymentToken(ctx context.Context, address string) (*schema.PaymentToken, error)
	// ListPaymentTokens retrieves registered payment tokens
	ListPaymentTokens(ctx context.Context, activeOnly bool) ([]*schema.PaymentToken, error)
	// RegisterPaymentToken inserts a payment token if not already present
	RegisterPaymentToken(ctx context.Context, token *schema.PaymentToken) error

	// InsertPriceSample appends a price sample; duplicate
	// (token_address, recorded_at) pairs are ignored, never overwritten
	InsertPriceSample(ctx context.Context, sample *schema.PriceSample) error
	// LatestPriceSample retrieves the most recent sample for a token,
	// nil if none exists
	LatestPriceSample(ctx context.Context, tokenAddress string) (*schema.PriceSample, error)
	// PriceSampleAsOf retrieves the sample with the largest recorded_at
	// <= at, nil if none exists
	PriceSampleAsOf(ctx context.Context, tokenAddress string, at time.Time) (*schema.PriceSample, error)
	// SparklinePoints returns bucketed average prices between since and
	// now, oldest first
	SparklinePoints(ctx context.Context, tokenAddress string, since time.Time, bucket time.Duration) ([]float64, error)

	// ListEventsByToken retrieves a token's decoded event history
	ListEventsByToken(ctx context.Context, tokenID uint64, limit, offset int, desc bool) ([]*schema.MarketplaceEvent, error)
	// ListRecentEvents retrieves the newest events across all tokens
	ListRecentEvents(ctx context.Context, names []domain.EventName, limit, offset int) ([]*schema.MarketplaceEvent, error)

	// GetBlockCursor retrieves the last published block for a chain
	GetBlockCursor(ctx context.Context, chain string) (uint64, error)
	// SetBlockCursor stores the last published block for a chain
	SetBlockCursor(ctx context.Context, chain string, blockNumber uint64) error
	// GetWatermark retrieves the last durably-applied ingestion position
	GetWatermark(ctx context.Context, chain string) (*Watermark, error)
	// SetWatermark stores the last durably-applied ingestion position
	SetWatermark(ctx context.Context, chain string, w Watermark) error
}
