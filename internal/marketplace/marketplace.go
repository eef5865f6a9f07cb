// Package marketplace expresses the escrow contract's listing lifecycle
// as pure functions. The ingestion pipeline uses it to validate
// projected transitions and the API uses it to reject operations
// against listings the mirror has not caught up with yet.
package marketplace

import (
	"strings"
	"time"

	"github.com/vehemi/marketplace-indexer/internal/domain"
	"github.com/vehemi/marketplace-indexer/internal/store/schema"
)

// Settlement is the exact split of a sale price between the fee
// recipient and the seller. FeeWei + SellerProceedsWei == price.
type Settlement struct {
	FeeWei            string
	SellerProceedsWei string
}

// Settle computes the fee (floored, never rounding up) and seller
// proceeds for a sale at priceWei with the given fee rate.
func Settle(priceWei string, feeBps int64) (*Settlement, error) {
	if !domain.PositiveWei(priceWei) {
		return nil, domain.NewValidationError("price must be a positive integer amount, got %q", priceWei)
	}
	fee, proceeds, err := domain.CalculateFee(priceWei, feeBps)
	if err != nil {
		return nil, domain.NewValidationError("settlement: %v", err)
	}
	return &Settlement{
		FeeWei:            fee.String(),
		SellerProceedsWei: proceeds.String(),
	}, nil
}

// CanTransition reports whether a mirrored listing may move from one
// status to another. Terminal states are absorbing; expired is only
// reachable from active by the passage of time.
func CanTransition(from, to domain.ListingStatus) bool {
	if from == to {
		return false
	}
	return from == domain.ListingStatusActive && to.Terminal()
}

// EffectiveStatus derives the status a reader must treat the listing as
// having at instant now. An active listing past its deadline is expired
// even before the mirror materializes that fact.
func EffectiveStatus(l *schema.Listing, now time.Time) domain.ListingStatus {
	if l.Status == domain.ListingStatusActive && !l.DeadlineTimestamp.After(now) {
		return domain.ListingStatusExpired
	}
	return l.Status
}

// ValidateListing checks the preconditions of the list operation:
// positive price, registered payment token, positive duration, a
// transferable position, and no existing active listing for the token.
func ValidateListing(position *schema.Position, priceWei string, paymentToken *schema.PaymentToken, durationSeconds uint64, existingActive *schema.Listing) error {
	if !domain.PositiveWei(priceWei) {
		return domain.NewValidationError("price must be a positive integer amount, got %q", priceWei)
	}
	if durationSeconds == 0 || durationSeconds > domain.MAX_LISTING_DURATION_SECONDS {
		return domain.NewValidationError("duration %d is out of range", durationSeconds)
	}
	if paymentToken == nil || !paymentToken.IsActive {
		return domain.NewValidationError("payment token is not registered")
	}
	if position == nil {
		return domain.NewPreconditionError("position does not exist")
	}
	if !position.Transferable || position.Status != domain.PositionStatusOpen {
		return domain.NewPreconditionError("position %d is not transferable", position.TokenID)
	}
	if existingActive != nil {
		return domain.NewPreconditionError("token %d already has an active listing", position.TokenID)
	}
	return nil
}

// CanBuy checks the preconditions of the buy operation against the
// mirrored listing state at instant now.
func CanBuy(l *schema.Listing, buyer string, now time.Time) error {
	if l == nil {
		return domain.ErrListingNotFound
	}
	switch EffectiveStatus(l, now) {
	case domain.ListingStatusActive:
		// buyable
	case domain.ListingStatusExpired:
		return domain.NewPreconditionError("listing for token %d expired at %s", l.TokenID, l.DeadlineTimestamp.UTC().Format(time.RFC3339))
	default:
		return domain.NewPreconditionError("listing for token %d is %s", l.TokenID, l.Status)
	}
	if strings.EqualFold(buyer, l.SellerAddress) {
		return domain.NewPreconditionError("seller cannot buy their own listing")
	}
	return nil
}

// CanCancel checks the preconditions of the cancel operation: only the
// seller may cancel, and only while the listing is still active.
func CanCancel(l *schema.Listing, caller string, now time.Time) error {
	if l == nil {
		return domain.ErrListingNotFound
	}
	if !strings.EqualFold(caller, l.SellerAddress) {
		return domain.NewPreconditionError("only the seller may cancel")
	}
	if status := EffectiveStatus(l, now); status != domain.ListingStatusActive {
		return domain.NewPreconditionError("listing for token %d is %s", l.TokenID, status)
	}
	return nil
}
