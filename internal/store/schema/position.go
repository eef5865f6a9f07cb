package schema

import (
	"time"

	"github.com/vehemi/marketplace-indexer/internal/domain"
)

// Position represents the positions table - one row per locked veHEMI NFT.
// LockedAmountWei is immutable once set at mint/lock time; only ownership,
// status and closure type change afterwards.
type Position struct {
	// TokenID is the veNFT token id and primary key
	TokenID uint64 `gorm:"column:token_id;primaryKey"`
	// OwnerAddress is the current owner's address, updated on every transfer
	OwnerAddress string `gorm:"column:owner_address;not null;type:text;index:idx_positions_owner"`
	// LockedAmountWei is the locked HEMI amount in the token's smallest unit
	LockedAmountWei string `gorm:"column:locked_amount_wei;not null;type:numeric(78,0)"`
	// LockedAmountFormatted is the human-readable locked amount
	LockedAmountFormatted string `gorm:"column:locked_amount_formatted;not null;type:text"`
	// LockStart is the instant the lock began
	LockStart time.Time `gorm:"column:lock_start_timestamp;not null;type:timestamptz"`
	// LockEnd is the unlock instant; always >= LockStart
	LockEnd time.Time `gorm:"column:lock_end_timestamp;not null;type:timestamptz;index:idx_positions_lock_end"`
	// Transferable indicates the NFT may still change hands (unlock not
	// yet claimed, lock not forfeited)
	Transferable bool `gorm:"column:transferable;not null;default:true"`
	// Status is open while the lock is live, closed once withdrawn
	Status domain.PositionStatus `gorm:"column:status;not null;type:text;default:'open'"`
	// ClosureType records how a closed position ended (withdrawn, forfeited)
	ClosureType *string `gorm:"column:closure_type;type:text"`
	// CreatedAt is when this record was first indexed
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is when this record was last touched by the indexer
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`

	// Associations
	Listings []Listing `gorm:"foreignKey:TokenID;references:TokenID"`
}

// TableName specifies the table name for the Position model
func (Position) TableName() string {
	return "positions"
}
