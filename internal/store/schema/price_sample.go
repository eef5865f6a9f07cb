package schema

import "time"

// PriceSample represents the price_history table - an append-only USD
// price time series per payment token. Rows are never updated or
// deleted; gaps are expected when the upstream feed is unavailable.
type PriceSample struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// TokenAddress identifies the payment token this sample belongs to
	TokenAddress string `gorm:"column:token_address;not null;type:text;uniqueIndex:idx_price_history_token_time,priority:1"`
	// UsdPrice is the observed USD price
	UsdPrice float64 `gorm:"column:usd_price;not null"`
	// RecordedAt is the observation instant
	RecordedAt time.Time `gorm:"column:recorded_at;not null;type:timestamptz;uniqueIndex:idx_price_history_token_time,priority:2"`
}

// TableName specifies the table name for the PriceSample model
func (PriceSample) TableName() string {
	return "price_history"
}
