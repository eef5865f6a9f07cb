package valuation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vehemi/marketplace-indexer/internal/adapter"
	"github.com/vehemi/marketplace-indexer/internal/domain"
	"github.com/vehemi/marketplace-indexer/internal/pricing"
	"github.com/vehemi/marketplace-indexer/internal/store"
)

// Basis records which price observation backed a USD valuation
type Basis string

const (
	// BasisSpot means the latest sample priced an active listing
	BasisSpot Basis = "spot"
	// BasisHistorical means the sample in effect at sale time priced a
	// sold listing
	BasisHistorical Basis = "historical"
	// BasisSpotFallback means a sold listing predates the price history
	// and the latest sample was used instead
	BasisSpotFallback Basis = "spot_fallback"
	// BasisNone means no sample exists at all; USD fields are zero
	BasisNone Basis = "none"
)

// Valuation is the USD view of a single listing
type Valuation struct {
	// PriceUsd is the listing price converted to USD
	PriceUsd float64
	// UnitPriceUsd is PriceUsd divided by the locked HEMI amount, zero
	// when the position is unknown or empty
	UnitPriceUsd float64
	// Basis tells which observation produced the numbers
	Basis Basis
}

// TokenStats aggregates sales per payment token
type TokenStats struct {
	SalesCount int
	UsdVolume  float64
}

// Stats aggregates settled sales over a window
type Stats struct {
	SalesCount      int
	TotalHemiLocked float64
	TotalUsdVolume  float64
	ByToken         map[string]TokenStats
}

// Engine values listings and aggregates sale statistics. Sold listings
// are priced with the sample in effect at sale time so historical
// volume does not drift as the price moves.
type Engine struct {
	store   store.Store
	pricing *pricing.Service
	clock   adapter.Clock
}

// NewEngine creates a new valuation engine
func NewEngine(st store.Store, pricingService *pricing.Service, clock adapter.Clock) *Engine {
	return &Engine{store: st, pricing: pricingService, clock: clock}
}

// Valuate computes the USD view of a listing
func (e *Engine) Valuate(ctx context.Context, l *store.SoldListing) (*Valuation, error) {
	quote, basis, err := e.quoteFor(ctx, l)
	if err != nil {
		return nil, err
	}
	if basis == BasisNone {
		return &Valuation{Basis: BasisNone}, nil
	}

	decimals := 18
	if l.PaymentToken != nil {
		decimals = l.PaymentToken.Decimals
	}

	price, err := domain.FormatUnitsFloat(l.Listing.PriceWei, decimals)
	if err != nil {
		return nil, fmt.Errorf("failed to convert listing price: %w", err)
	}

	v := &Valuation{
		PriceUsd: price * quote.PriceUsd,
		Basis:    basis,
	}

	if l.Position != nil {
		locked, err := domain.FormatUnitsFloat(l.Position.LockedAmountWei, 18)
		if err != nil {
			return nil, fmt.Errorf("failed to convert locked amount: %w", err)
		}
		if locked > 0 {
			v.UnitPriceUsd = v.PriceUsd / locked
		}
	}

	return v, nil
}

// quoteFor picks the observation for a listing: historical at sale time
// for sold rows, spot otherwise, degrading one step at a time
func (e *Engine) quoteFor(ctx context.Context, l *store.SoldListing) (*pricing.Quote, Basis, error) {
	token := l.Listing.PaymentTokenAddress

	if l.Listing.Status == domain.ListingStatusSold && l.Listing.SoldAtTimestamp != nil {
		quote, err := e.pricing.PriceAsOf(ctx, token, *l.Listing.SoldAtTimestamp)
		if err == nil {
			return quote, BasisHistorical, nil
		}
		if !errors.Is(err, domain.ErrNoPriceSample) {
			return nil, BasisNone, err
		}

		quote, err = e.pricing.CurrentPrice(ctx, token)
		if err == nil {
			return quote, BasisSpotFallback, nil
		}
		if !errors.Is(err, domain.ErrNoPriceSample) {
			return nil, BasisNone, err
		}
		return nil, BasisNone, nil
	}

	quote, err := e.pricing.CurrentPrice(ctx, token)
	if err == nil {
		return quote, BasisSpot, nil
	}
	if !errors.Is(err, domain.ErrNoPriceSample) {
		return nil, BasisNone, err
	}
	return nil, BasisNone, nil
}

// StatsForWindow aggregates sales settled within the trailing window.
// days <= 0 means all time.
func (e *Engine) StatsForWindow(ctx context.Context, days int) (*Stats, error) {
	var since *time.Time
	if days > 0 {
		t := e.clock.Now().Add(-time.Duration(days) * 24 * time.Hour)
		since = &t
	}

	sold, err := e.store.ListSoldListings(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list sold listings: %w", err)
	}

	stats := &Stats{ByToken: map[string]TokenStats{}}
	for _, l := range sold {
		valuation, err := e.Valuate(ctx, l)
		if err != nil {
			return nil, err
		}

		stats.SalesCount++
		stats.TotalUsdVolume += valuation.PriceUsd

		if l.Position != nil {
			locked, err := domain.FormatUnitsFloat(l.Position.LockedAmountWei, 18)
			if err != nil {
				return nil, fmt.Errorf("failed to convert locked amount: %w", err)
			}
			stats.TotalHemiLocked += locked
		}

		symbol := l.Listing.PaymentTokenAddress
		if l.PaymentToken != nil {
			symbol = l.PaymentToken.TokenSymbol
		}
		byToken := stats.ByToken[symbol]
		byToken.SalesCount++
		byToken.UsdVolume += valuation.PriceUsd
		stats.ByToken[symbol] = byToken
	}

	return stats, nil
}
