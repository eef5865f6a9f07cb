package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vehemi/marketplace-indexer/internal/adapter"
	"github.com/vehemi/marketplace-indexer/internal/domain"
	"github.com/vehemi/marketplace-indexer/internal/logger"
	"github.com/vehemi/marketplace-indexer/internal/store"
	"github.com/vehemi/marketplace-indexer/internal/store/schema"
)

// SamplerConfig holds the configuration for the price sampler
type SamplerConfig struct {
	// TokenAddress is the payment token the samples are recorded under
	TokenAddress string
	// Schedule is a cron spec, e.g. "@every 5m"
	Schedule string
	// RetryInitialInterval seeds the backoff between feed retries
	RetryInitialInterval time.Duration
}

// Sampler periodically records USD price observations into the
// append-only price history
type Sampler struct {
	feed   PriceFeed
	store  store.Store
	clock  adapter.Clock
	config SamplerConfig
}

// NewSampler creates a new price sampler
func NewSampler(feed PriceFeed, st store.Store, clock adapter.Clock, cfg SamplerConfig) *Sampler {
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = time.Second
	}
	return &Sampler{
		feed:   feed,
		store:  st,
		clock:  clock,
		config: cfg,
	}
}

// Run samples once immediately, then on the configured schedule until
// the context is cancelled
func (s *Sampler) Run(ctx context.Context) error {
	logger.Info("Starting price sampler",
		zap.String("token", s.config.TokenAddress),
		zap.String("schedule", s.config.Schedule))

	if err := s.Sample(ctx); err != nil {
		// Feed outages leave gaps in the series; they never stop the
		// sampler
		logger.Error(err)
	}

	c := cron.New()
	_, err := c.AddFunc(s.config.Schedule, func() {
		if err := s.Sample(ctx); err != nil {
			logger.Error(err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sample schedule %q: %w", s.config.Schedule, err)
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	return ctx.Err()
}

// Sample fetches the current price and appends one observation. Feed
// hiccups are retried briefly; a tick that still fails is skipped and
// leaves a gap in the series.
func (s *Sampler) Sample(ctx context.Context) error {
	var price float64
	fetch := func() error {
		var err error
		price, err = s.feed.FetchPrice(ctx)
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.config.RetryInitialInterval
	if err := backoff.Retry(fetch, backoff.WithContext(backoff.WithMaxRetries(bo, 3), ctx)); err != nil {
		return fmt.Errorf("failed to sample price: %w", err)
	}

	sample := &schema.PriceSample{
		TokenAddress: domain.NormalizeAddress(s.config.TokenAddress),
		UsdPrice:     price,
		RecordedAt:   s.clock.Now().UTC(),
	}

	if err := s.store.InsertPriceSample(ctx, sample); err != nil {
		return fmt.Errorf("failed to insert price sample: %w", err)
	}

	logger.Debug("Recorded price sample",
		zap.String("token", sample.TokenAddress),
		zap.Float64("usd_price", sample.UsdPrice))

	return nil
}
