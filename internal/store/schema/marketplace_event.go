package schema

import (
	"time"

	"gorm.io/datatypes"

	"github.com/vehemi/marketplace-indexer/internal/domain"
)

// MarketplaceEvent represents the marketplace_events table - the
// ingestion pipeline's idempotency ledger and per-token audit trail.
// (TxHash, LogIndex) is unique; inserting a duplicate is how the
// pipeline detects an already-applied event. Rows are immutable.
type MarketplaceEvent struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// TokenID references the position this event relates to
	TokenID uint64 `gorm:"column:token_id;not null;index:idx_marketplace_events_token"`
	// EventName identifies the decoded event type
	EventName domain.EventName `gorm:"column:event_name;not null;type:text"`
	// TxHash is the transaction hash of the emitting transaction
	TxHash string `gorm:"column:tx_hash;not null;type:text;uniqueIndex:idx_marketplace_events_tx_log,priority:1"`
	// LogIndex is the log's index within the block
	LogIndex uint `gorm:"column:log_index;not null;uniqueIndex:idx_marketplace_events_tx_log,priority:2"`
	// BlockNumber is the block the event was emitted in
	BlockNumber uint64 `gorm:"column:block_number;not null;index:idx_marketplace_events_block"`
	// BlockHash is kept for reorg forensics alongside the number
	BlockHash string `gorm:"column:block_hash;not null;type:text"`
	// Timestamp is the block timestamp
	Timestamp time.Time `gorm:"column:timestamp;not null;type:timestamptz"`
	// Raw contains the full decoded event payload as JSON
	Raw datatypes.JSON `gorm:"column:raw;type:jsonb"`
	// CreatedAt is when this record was indexed
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the MarketplaceEvent model
func (MarketplaceEvent) TableName() string {
	return "marketplace_events"
}
