package dto

import (
	"time"

	"github.com/vehemi/marketplace-indexer/internal/domain"
	"github.com/vehemi/marketplace-indexer/internal/store"
	"github.com/vehemi/marketplace-indexer/internal/store/schema"
	"github.com/vehemi/marketplace-indexer/internal/valuation"
)

// ListingResponse represents a listing with its valuation and position
type ListingResponse struct {
	TokenID             uint64               `json:"token_id"`
	SellerAddress       string               `json:"seller_address"`
	PriceWei            string               `json:"price_wei"`
	PriceFormatted      string               `json:"price_formatted"`
	PaymentTokenAddress string               `json:"payment_token_address"`
	DurationSeconds     uint64               `json:"duration_seconds"`
	CreatedAt           time.Time            `json:"created_at"`
	Deadline            time.Time            `json:"deadline"`
	Status              domain.ListingStatus `json:"status"`
	BuyerAddress        *string              `json:"buyer_address,omitempty"`
	SoldAt              *time.Time           `json:"sold_at,omitempty"`
	CancelledAt         *time.Time           `json:"cancelled_at,omitempty"`
	TransactionHash     string               `json:"transaction_hash"`
	SaleTransactionHash *string              `json:"sale_transaction_hash,omitempty"`

	// USD valuation (omitted when no price sample exists)
	PriceUsd       *float64 `json:"price_usd,omitempty"`
	UnitPriceUsd   *float64 `json:"unit_price_usd,omitempty"`
	ValuationBasis string   `json:"valuation_basis"`

	PaymentToken *PaymentTokenResponse `json:"payment_token,omitempty"`
	Position     *PositionResponse     `json:"position,omitempty"`
}

// PaymentTokenResponse represents a registered payment token
type PaymentTokenResponse struct {
	TokenAddress string `json:"token_address"`
	TokenSymbol  string `json:"token_symbol"`
	TokenName    string `json:"token_name"`
	Decimals     int    `json:"decimals"`
	IsActive     bool   `json:"is_active"`
}

// ListingListResponse represents a paginated list of listings
type ListingListResponse struct {
	Listings []ListingResponse `json:"items"`
	Offset   *int              `json:"offset,omitempty"`
	Total    uint64            `json:"total"`
}

// MapListingToDTO maps a joined listing row and its valuation to a
// ListingResponse. effectiveStatus already accounts for read-time
// expiry; val may be nil when valuation was skipped or unavailable.
func MapListingToDTO(row *store.SoldListing, effectiveStatus domain.ListingStatus, val *valuation.Valuation) *ListingResponse {
	l := row.Listing
	dto := &ListingResponse{
		TokenID:             l.TokenID,
		SellerAddress:       l.SellerAddress,
		PriceWei:            l.PriceWei,
		PriceFormatted:      l.PriceFormatted,
		PaymentTokenAddress: l.PaymentTokenAddress,
		DurationSeconds:     l.DurationSeconds,
		CreatedAt:           l.CreatedAtTimestamp,
		Deadline:            l.DeadlineTimestamp,
		Status:              effectiveStatus,
		BuyerAddress:        l.BuyerAddress,
		SoldAt:              l.SoldAtTimestamp,
		CancelledAt:         l.CancelledAtTimestamp,
		TransactionHash:     l.TransactionHash,
		SaleTransactionHash: l.SaleTransactionHash,
		ValuationBasis:      string(valuation.BasisNone),
	}

	if val != nil {
		dto.ValuationBasis = string(val.Basis)
		if val.Basis != valuation.BasisNone {
			priceUsd := val.PriceUsd
			unitPriceUsd := val.UnitPriceUsd
			dto.PriceUsd = &priceUsd
			dto.UnitPriceUsd = &unitPriceUsd
		}
	}

	if row.PaymentToken != nil {
		dto.PaymentToken = MapPaymentTokenToDTO(row.PaymentToken)
	}
	if row.Position != nil {
		dto.Position = MapPositionToDTO(row.Position)
	}

	return dto
}

// MapPaymentTokenToDTO maps a schema.PaymentToken to PaymentTokenResponse
func MapPaymentTokenToDTO(token *schema.PaymentToken) *PaymentTokenResponse {
	return &PaymentTokenResponse{
		TokenAddress: token.TokenAddress,
		TokenSymbol:  token.TokenSymbol,
		TokenName:    token.TokenName,
		Decimals:     token.Decimals,
		IsActive:     token.IsActive,
	}
}
