package schema

import (
	"time"

	"github.com/vehemi/marketplace-indexer/internal/domain"
)

// Listing represents the listings table - the mirrored escrow listing
// lifecycle. At most one active row may exist per token id; this is
// enforced by a partial unique index in addition to the apply logic:
//
//	CREATE UNIQUE INDEX idx_listings_one_active_per_token
//	ON listings (token_id) WHERE status = 'active';
//
// Expiry is never materialized: an active row whose deadline has passed
// is logically expired and excluded from active queries at read time.
type Listing struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// TokenID references the listed position
	TokenID uint64 `gorm:"column:token_id;not null;index:idx_listings_token"`
	// SellerAddress is the address that created the listing
	SellerAddress string `gorm:"column:seller_address;not null;type:text;index:idx_listings_seller"`
	// PriceWei is the asking price in the payment token's smallest unit
	PriceWei string `gorm:"column:price_wei;not null;type:numeric(78,0)"`
	// PriceFormatted is the human-readable price
	PriceFormatted string `gorm:"column:price_formatted;not null;type:text"`
	// PaymentTokenAddress identifies the ERC20 the sale settles in
	PaymentTokenAddress string `gorm:"column:payment_token_address;not null;type:text"`
	// DurationSeconds is the listing lifetime fixed at creation
	DurationSeconds uint64 `gorm:"column:duration_seconds;not null"`
	// CreatedAtTimestamp is the chain timestamp of the NFTListed event
	CreatedAtTimestamp time.Time `gorm:"column:created_at_timestamp;not null;type:timestamptz"`
	// DeadlineTimestamp = CreatedAtTimestamp + DurationSeconds
	DeadlineTimestamp time.Time `gorm:"column:deadline_timestamp;not null;type:timestamptz;index:idx_listings_deadline"`
	// Status is the mirrored lifecycle state (active, sold, cancelled, expired)
	Status domain.ListingStatus `gorm:"column:status;not null;type:text;index:idx_listings_status"`
	// BuyerAddress is set only when the listing is sold
	BuyerAddress *string `gorm:"column:buyer_address;type:text"`
	// SoldAtTimestamp is the chain timestamp of the NFTSold event
	SoldAtTimestamp *time.Time `gorm:"column:sold_at_timestamp;type:timestamptz"`
	// CancelledAtTimestamp is the chain timestamp of the ListingCancelled event
	CancelledAtTimestamp *time.Time `gorm:"column:cancelled_at_timestamp;type:timestamptz"`
	// TransactionHash is the hash of the transaction that created the listing
	TransactionHash string `gorm:"column:transaction_hash;not null;type:text"`
	// SaleTransactionHash is the hash of the settlement transaction
	SaleTransactionHash *string `gorm:"column:sale_transaction_hash;type:text"`
	// BlockNumber is the block of the creating event
	BlockNumber uint64 `gorm:"column:block_number;not null"`
	// ReconcileFlag marks rows materialized from anomalous event
	// sequences (orphan sale, superseded duplicate active listing) for
	// operator review
	ReconcileFlag bool `gorm:"column:reconcile_flag;not null;default:false"`
	// ReconcileID is a ULID correlating the anomaly across rows and logs
	ReconcileID *string `gorm:"column:reconcile_id;type:text"`
	// CreatedAt is when this record was first indexed
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is when this record was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`

	// Associations
	Position     *Position     `gorm:"foreignKey:TokenID;references:TokenID"`
	PaymentToken *PaymentToken `gorm:"foreignKey:PaymentTokenAddress;references:TokenAddress"`
}

// TableName specifies the table name for the Listing model
func (Listing) TableName() string {
	return "listings"
}
