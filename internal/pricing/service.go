package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/vehemi/marketplace-indexer/internal/adapter"
	"github.com/vehemi/marketplace-indexer/internal/domain"
	"github.com/vehemi/marketplace-indexer/internal/store"
)

// Quote is a USD price observation
type Quote struct {
	PriceUsd   float64
	RecordedAt time.Time
}

// Service answers USD price questions from the recorded sample history.
// All lookups degrade to domain.ErrNoPriceSample when the series has no
// applicable observation.
type Service struct {
	store store.Store
	clock adapter.Clock
}

// NewService creates a new pricing service
func NewService(st store.Store, clock adapter.Clock) *Service {
	return &Service{store: st, clock: clock}
}

// CurrentPrice returns the most recent sample for a token
func (s *Service) CurrentPrice(ctx context.Context, tokenAddress string) (*Quote, error) {
	sample, err := s.store.LatestPriceSample(ctx, domain.NormalizeAddress(tokenAddress))
	if err != nil {
		return nil, fmt.Errorf("failed to get latest price sample: %w", err)
	}
	if sample == nil {
		return nil, domain.ErrNoPriceSample
	}

	return &Quote{PriceUsd: sample.UsdPrice, RecordedAt: sample.RecordedAt}, nil
}

// PriceAsOf returns the last sample recorded at or before the given
// instant. Used for historical valuation of sales.
func (s *Service) PriceAsOf(ctx context.Context, tokenAddress string, at time.Time) (*Quote, error) {
	sample, err := s.store.PriceSampleAsOf(ctx, domain.NormalizeAddress(tokenAddress), at)
	if err != nil {
		return nil, fmt.Errorf("failed to get price sample as of %s: %w", at, err)
	}
	if sample == nil {
		return nil, domain.ErrNoPriceSample
	}

	return &Quote{PriceUsd: sample.UsdPrice, RecordedAt: sample.RecordedAt}, nil
}

// Change24h returns the percent change between the current price and
// the price 24 hours ago
func (s *Service) Change24h(ctx context.Context, tokenAddress string) (float64, error) {
	current, err := s.CurrentPrice(ctx, tokenAddress)
	if err != nil {
		return 0, err
	}

	previous, err := s.PriceAsOf(ctx, tokenAddress, s.clock.Now().Add(-24*time.Hour))
	if err != nil {
		return 0, err
	}
	if previous.PriceUsd == 0 {
		return 0, domain.ErrNoPriceSample
	}

	return (current.PriceUsd - previous.PriceUsd) / previous.PriceUsd * 100, nil
}

// Sparkline returns bucketed average prices over the trailing window,
// oldest first
func (s *Service) Sparkline(ctx context.Context, tokenAddress string, window, bucket time.Duration) ([]float64, error) {
	since := s.clock.Now().Add(-window)
	points, err := s.store.SparklinePoints(ctx, domain.NormalizeAddress(tokenAddress), since, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get sparkline points: %w", err)
	}

	return points, nil
}
