package domain

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Chain represents the blockchain network identifier using CAIP-2 format
type Chain string

const (
	ChainHemiMainnet Chain = "eip155:43111"
	ChainHemiSepolia Chain = "eip155:743111"
)

// IsValidChain checks if a chain is valid
func IsValidChain(chain Chain) bool {
	return chain == ChainHemiMainnet || chain == ChainHemiSepolia
}

// EventName identifies the decoded marketplace/veNFT event
type EventName string

const (
	EventNFTListed        EventName = "nft_listed"
	EventNFTSold          EventName = "nft_sold"
	EventListingCancelled EventName = "listing_cancelled"
	EventTransfer         EventName = "transfer"
	EventLockCreated      EventName = "lock_created"
)

// ListingStatus is the mirrored lifecycle state of a listing.
// Active is the only non-terminal state; Expired is derived at read time
// from deadline and is never written by the ingestion pipeline.
type ListingStatus string

const (
	ListingStatusActive    ListingStatus = "active"
	ListingStatusSold      ListingStatus = "sold"
	ListingStatusCancelled ListingStatus = "cancelled"
	ListingStatusExpired   ListingStatus = "expired"
)

// Terminal reports whether the status is absorbing
func (s ListingStatus) Terminal() bool {
	return s == ListingStatusSold || s == ListingStatusCancelled || s == ListingStatusExpired
}

// PositionStatus is the lifecycle state of a locked veNFT position
type PositionStatus string

const (
	PositionStatusOpen   PositionStatus = "open"
	PositionStatusClosed PositionStatus = "closed"
)

// MarketplaceEvent represents a normalized, decoded chain event.
// (TxHash, LogIndex) is the natural idempotency key; the ingestion
// pipeline treats re-application of the same pair as a no-op.
type MarketplaceEvent struct {
	Chain           Chain     `json:"chain"`
	ContractAddress string    `json:"contract_address"`
	EventName       EventName `json:"event_name"`
	TokenID         uint64    `json:"token_id"`
	TxHash          string    `json:"tx_hash"`
	LogIndex        uint      `json:"log_index"`
	BlockNumber     uint64    `json:"block_number"`
	BlockHash       string    `json:"block_hash"`
	Timestamp       time.Time `json:"timestamp"`

	// Listing payload (nft_listed, nft_sold, listing_cancelled)
	Seller          *string `json:"seller,omitempty"`
	Buyer           *string `json:"buyer,omitempty"`
	PriceWei        string  `json:"price_wei,omitempty"`
	PaymentToken    *string `json:"payment_token,omitempty"`
	FeeWei          string  `json:"fee_wei,omitempty"`
	DurationSeconds uint64  `json:"duration_seconds,omitempty"`

	// Transfer payload
	FromAddress *string `json:"from_address,omitempty"`
	ToAddress   *string `json:"to_address,omitempty"`

	// Lock payload (lock_created)
	LockedAmountWei string     `json:"locked_amount_wei,omitempty"`
	LockStart       *time.Time `json:"lock_start,omitempty"`
	LockEnd         *time.Time `json:"lock_end,omitempty"`
}

// Key returns the idempotency key of the event
func (e *MarketplaceEvent) Key() string {
	return fmt.Sprintf("%s:%d", e.TxHash, e.LogIndex)
}

// IsMint reports whether the event is a transfer from the zero address
func (e *MarketplaceEvent) IsMint() bool {
	return e.EventName == EventTransfer && StringNilOrZeroAddress(e.FromAddress)
}

// IsBurn reports whether the event is a transfer to the zero address
func (e *MarketplaceEvent) IsBurn() bool {
	return e.EventName == EventTransfer && StringNilOrZeroAddress(e.ToAddress)
}

// Valid checks structural validity of a decoded event before it is
// published or applied
func (e *MarketplaceEvent) Valid() bool {
	if !IsValidChain(e.Chain) {
		return false
	}
	if e.TxHash == "" || e.BlockNumber == 0 || e.Timestamp.IsZero() {
		return false
	}

	switch e.EventName {
	case EventNFTListed:
		if StringNilOrZeroAddress(e.Seller) || e.PaymentToken == nil {
			return false
		}
		if !PositiveWei(e.PriceWei) {
			return false
		}
		if e.DurationSeconds == 0 || e.DurationSeconds > MAX_LISTING_DURATION_SECONDS {
			return false
		}
	case EventNFTSold:
		if StringNilOrZeroAddress(e.Seller) || StringNilOrZeroAddress(e.Buyer) || e.PaymentToken == nil {
			return false
		}
		if !PositiveWei(e.PriceWei) {
			return false
		}
	case EventListingCancelled:
		if StringNilOrZeroAddress(e.Seller) {
			return false
		}
	case EventTransfer:
		// Mint and burn both appear as transfers against the zero address;
		// from == to is never emitted by the contract
		if e.FromAddress == nil && e.ToAddress == nil {
			return false
		}
	case EventLockCreated:
		// The owner rides in ToAddress; projections dereference it
		if StringNilOrZeroAddress(e.ToAddress) {
			return false
		}
		if !PositiveWei(e.LockedAmountWei) || e.LockEnd == nil {
			return false
		}
		if e.LockStart != nil && e.LockEnd.Before(*e.LockStart) {
			return false
		}
	default:
		return false
	}

	return true
}

// CalculateFee computes the marketplace fee for a sale price in wei,
// flooring so the fee never exceeds feeBps of the price. The returned
// values satisfy fee + proceeds == price exactly.
func CalculateFee(priceWei string, feeBps int64) (fee *big.Int, proceeds *big.Int, err error) {
	price, ok := new(big.Int).SetString(priceWei, 10)
	if !ok || price.Sign() < 0 {
		return nil, nil, fmt.Errorf("invalid price amount: %q", priceWei)
	}

	fee = new(big.Int).Mul(price, big.NewInt(feeBps))
	fee.Div(fee, big.NewInt(BPS_DENOMINATOR)) // big.Int.Div floors for non-negative operands
	proceeds = new(big.Int).Sub(price, fee)
	return fee, proceeds, nil
}

// FormatUnits converts an integer amount in the token's smallest unit to
// a human-readable decimal string (e.g. 1500000 with 6 decimals -> "1.5")
func FormatUnits(wei string, decimals int) (string, error) {
	amount, ok := new(big.Int).SetString(wei, 10)
	if !ok {
		return "", fmt.Errorf("invalid amount: %q", wei)
	}
	if decimals == 0 {
		return amount.String(), nil
	}

	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	quo, rem := new(big.Int).QuoRem(amount, divisor, new(big.Int))
	if rem.Sign() == 0 {
		return quo.String(), nil
	}

	frac := strings.TrimRight(fmt.Sprintf("%0*s", decimals, rem.Abs(rem).String()), "0")
	return fmt.Sprintf("%s.%s", quo.String(), frac), nil
}

// FormatUnitsFloat converts a smallest-unit amount to a float64.
// Only used for USD math where the original storefront accepted float
// precision; never used for on-chain amounts.
func FormatUnitsFloat(wei string, decimals int) (float64, error) {
	amount, ok := new(big.Float).SetString(wei)
	if !ok {
		return 0, fmt.Errorf("invalid amount: %q", wei)
	}
	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	out, _ := new(big.Float).Quo(amount, divisor).Float64()
	return out, nil
}

// PositiveWei reports whether s parses as a strictly positive integer amount
func PositiveWei(s string) bool {
	v, ok := new(big.Int).SetString(s, 10)
	return ok && v.Sign() > 0
}

// StringNilOrZeroAddress reports whether an address pointer is unset,
// empty, or the zero address
func StringNilOrZeroAddress(s *string) bool {
	return s == nil || *s == "" || strings.EqualFold(*s, ETHEREUM_ZERO_ADDRESS)
}

// NormalizeAddress normalizes an Ethereum address to its checksummed form
func NormalizeAddress(address string) string {
	if common.IsHexAddress(address) {
		return common.HexToAddress(address).Hex()
	}
	return address
}

// NormalizeAddresses normalizes a list of addresses in place
func NormalizeAddresses(addresses []string) []string {
	for i, address := range addresses {
		addresses[i] = NormalizeAddress(address)
	}
	return addresses
}
