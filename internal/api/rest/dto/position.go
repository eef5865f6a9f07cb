package dto

import (
	"encoding/json"
	"time"

	"github.com/vehemi/marketplace-indexer/internal/domain"
	"github.com/vehemi/marketplace-indexer/internal/store/schema"
)

// PositionResponse represents a locked veHEMI position
type PositionResponse struct {
	TokenID               uint64                `json:"token_id"`
	OwnerAddress          string                `json:"owner_address"`
	LockedAmountWei       string                `json:"locked_amount_wei"`
	LockedAmountFormatted string                `json:"locked_amount_formatted"`
	LockStart             time.Time             `json:"lock_start"`
	LockEnd               time.Time             `json:"lock_end"`
	Transferable          bool                  `json:"transferable"`
	Status                domain.PositionStatus `json:"status"`
	ClosureType           *string               `json:"closure_type,omitempty"`
	UpdatedAt             time.Time             `json:"updated_at"`
}

// EventResponse represents a decoded marketplace event for the
// activity and per-token history endpoints. Price and participant
// fields are surfaced from the stored payload when the event carries
// them.
type EventResponse struct {
	ID           uint64           `json:"id"`
	TokenID      uint64           `json:"token_id"`
	EventName    domain.EventName `json:"event_name"`
	TxHash       string           `json:"tx_hash"`
	LogIndex     uint             `json:"log_index"`
	BlockNumber  uint64           `json:"block_number"`
	Timestamp    time.Time        `json:"timestamp"`
	Seller       *string          `json:"seller,omitempty"`
	Buyer        *string          `json:"buyer,omitempty"`
	FromAddress  *string          `json:"from_address,omitempty"`
	ToAddress    *string          `json:"to_address,omitempty"`
	PriceWei     string           `json:"price_wei,omitempty"`
	FeeWei       string           `json:"fee_wei,omitempty"`
	PaymentToken *string          `json:"payment_token,omitempty"`

	// Derived from the payment token registry
	PriceFormatted     string  `json:"price_formatted,omitempty"`
	PaymentTokenSymbol *string `json:"payment_token_symbol,omitempty"`

	Raw json.RawMessage `json:"raw,omitempty"`
}

// UserPositionResponse pairs a held position with its buyable listing,
// when one exists
type UserPositionResponse struct {
	PositionResponse
	Listing *ListingResponse `json:"listing,omitempty"`
}

// UserPositionsResponse represents the positions held by an address
type UserPositionsResponse struct {
	Positions []UserPositionResponse `json:"items"`
}

// EventListResponse represents a paginated list of events
type EventListResponse struct {
	Events []EventResponse `json:"items"`
	Offset *int            `json:"offset,omitempty"`
}

// MapPositionToDTO maps a schema.Position to PositionResponse
func MapPositionToDTO(position *schema.Position) *PositionResponse {
	return &PositionResponse{
		TokenID:               position.TokenID,
		OwnerAddress:          position.OwnerAddress,
		LockedAmountWei:       position.LockedAmountWei,
		LockedAmountFormatted: position.LockedAmountFormatted,
		LockStart:             position.LockStart,
		LockEnd:               position.LockEnd,
		Transferable:          position.Transferable,
		Status:                position.Status,
		ClosureType:           position.ClosureType,
		UpdatedAt:             position.UpdatedAt,
	}
}

// MapEventToDTO maps a schema.MarketplaceEvent to EventResponse.
// tokens is the payment token registry keyed by normalized address;
// it supplies the derived price_formatted and payment_token_symbol
// fields for events that carry a price.
func MapEventToDTO(event *schema.MarketplaceEvent, tokens map[string]*schema.PaymentToken) *EventResponse {
	dto := &EventResponse{
		ID:          event.ID,
		TokenID:     event.TokenID,
		EventName:   event.EventName,
		TxHash:      event.TxHash,
		LogIndex:    event.LogIndex,
		BlockNumber: event.BlockNumber,
		Timestamp:   event.Timestamp,
		Raw:         json.RawMessage(event.Raw),
	}

	var payload domain.MarketplaceEvent
	if err := json.Unmarshal(event.Raw, &payload); err == nil {
		dto.Seller = payload.Seller
		dto.Buyer = payload.Buyer
		dto.FromAddress = payload.FromAddress
		dto.ToAddress = payload.ToAddress
		dto.PriceWei = payload.PriceWei
		dto.FeeWei = payload.FeeWei
		dto.PaymentToken = payload.PaymentToken
	}

	if dto.PaymentToken != nil {
		if token, ok := tokens[domain.NormalizeAddress(*dto.PaymentToken)]; ok {
			symbol := token.TokenSymbol
			dto.PaymentTokenSymbol = &symbol
			if dto.PriceWei != "" {
				if formatted, err := domain.FormatUnits(dto.PriceWei, token.Decimals); err == nil {
					dto.PriceFormatted = formatted
				}
			}
		}
	}

	return dto
}
