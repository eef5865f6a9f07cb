package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/vehemi/marketplace-indexer/internal/adapter"
	"github.com/vehemi/marketplace-indexer/internal/config"
	"github.com/vehemi/marketplace-indexer/internal/logger"
	"github.com/vehemi/marketplace-indexer/internal/pricing"
	"github.com/vehemi/marketplace-indexer/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadPriceSamplerConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "price-sampler",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Price Sampler")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("dsn", cfg.Database.DSN()))
	}
	logger.InfoCtx(ctx, "Connected to database")

	// Initialize store
	dataStore := store.NewPGStore(db)

	// Initialize adapters
	clockAdapter := adapter.NewClock()
	jsonAdapter := adapter.NewJSON()

	// Create the upstream feed and sampler
	feed := pricing.NewCoinGeckoFeed(pricing.FeedConfig{
		APIURL:  cfg.PriceFeed.APIURL,
		APIKey:  cfg.PriceFeed.APIKey,
		CoinID:  cfg.PriceFeed.CoinID,
		Timeout: cfg.PriceFeed.Timeout,
	}, jsonAdapter)

	sampler := pricing.NewSampler(feed, dataStore, clockAdapter, pricing.SamplerConfig{
		TokenAddress: cfg.PriceFeed.TokenAddress,
		Schedule:     cfg.PriceFeed.SampleCron,
	})

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel for sampler errors
	errCh := make(chan error, 1)

	// Start the sampler
	go func() {
		if err := sampler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	logger.InfoCtx(ctx, "Price sampler scheduled",
		zap.String("coin_id", cfg.PriceFeed.CoinID),
		zap.String("cron", cfg.PriceFeed.SampleCron))

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "sampler"))
		cancel()
	}

	// Give some time for graceful shutdown
	time.Sleep(time.Second)

	logger.Info("Price Sampler stopped")
}
