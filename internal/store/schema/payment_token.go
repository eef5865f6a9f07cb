package schema

import "time"

// PaymentToken represents the payment_tokens table - reference data for
// the ERC20s a listing may be priced in. A registry, not a ledger;
// immutable once registered.
type PaymentToken struct {
	// TokenAddress is the ERC20 contract address and primary key
	TokenAddress string `gorm:"column:token_address;primaryKey;type:text"`
	// TokenSymbol is the display symbol (HEMI, USDC)
	TokenSymbol string `gorm:"column:token_symbol;not null;type:text"`
	// TokenName is the full token name
	TokenName string `gorm:"column:token_name;not null;type:text"`
	// Decimals is the ERC20 decimals used for formatting amounts
	Decimals int `gorm:"column:decimals;not null"`
	// IsActive indicates the token is currently accepted for new listings
	IsActive bool `gorm:"column:is_active;not null;default:true"`
	// AddedAtTimestamp is when the token was registered
	AddedAtTimestamp time.Time `gorm:"column:added_at_timestamp;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the PaymentToken model
func (PaymentToken) TableName() string {
	return "payment_tokens"
}
