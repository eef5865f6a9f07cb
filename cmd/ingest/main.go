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
	"github.com/vehemi/marketplace-indexer/internal/block"
	"github.com/vehemi/marketplace-indexer/internal/config"
	"github.com/vehemi/marketplace-indexer/internal/ingest"
	"github.com/vehemi/marketplace-indexer/internal/logger"
	"github.com/vehemi/marketplace-indexer/internal/providers/ethereum"
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
	cfg, err := config.LoadIngestConfig(*configFile, *envPath)
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
			"service": "ingest",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Marketplace Ingest")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("dsn", cfg.Database.DSN()))
	}
	logger.InfoCtx(ctx, "Connected to database")

	// Run migrations; the ingest owns the schema
	if err := store.Migrate(db); err != nil {
		logger.FatalCtx(ctx, "Failed to run migrations", zap.Error(err))
	}

	// Initialize store
	dataStore := store.NewPGStore(db)

	// Initialize adapters
	clockAdapter := adapter.NewClock()
	jsonAdapter := adapter.NewJSON()
	natsJS := adapter.NewNatsJetStream()

	// Initialize Hemi client for the confirmation gate
	ethDialer := adapter.NewEthClientDialer()
	adapterEthClient, err := ethDialer.Dial(ctx, cfg.Ethereum.RPCURL)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to dial Hemi RPC", zap.Error(err), zap.String("rpc_url", cfg.Ethereum.RPCURL))
	}
	defer adapterEthClient.Close()

	blockFetcher := ethereum.NewBlockFetcher(adapterEthClient)
	blockProvider := block.NewBlockProvider(blockFetcher, block.Config{
		TTL:         cfg.Ethereum.BlockHeadTTL,
		StaleWindow: cfg.Ethereum.BlockHeadStaleWindow,
	}, clockAdapter)

	// Build the apply pipeline
	projector := ingest.NewProjector(dataStore, jsonAdapter)
	pipeline := ingest.NewPipeline(dataStore, projector, ingest.PipelineConfig{
		ChainID:   cfg.Ethereum.ChainID,
		Shards:    cfg.Worker.Shards,
		QueueSize: cfg.Worker.WorkerQueueSize,
	})
	if err := pipeline.Start(ctx); err != nil {
		logger.FatalCtx(ctx, "Failed to start apply pipeline", zap.Error(err))
	}
	defer pipeline.Stop()

	// Create the stream consumer
	consumer, err := ingest.NewIngest(
		ingest.Config{
			URL:               cfg.NATS.URL,
			StreamName:        cfg.NATS.StreamName,
			ConsumerName:      cfg.NATS.ConsumerName,
			MaxReconnects:     cfg.NATS.MaxReconnects,
			ReconnectWait:     cfg.NATS.ReconnectWait,
			ConnectionName:    cfg.NATS.ConnectionName,
			AckWaitTimeout:    cfg.NATS.AckWait,
			MaxDeliver:        cfg.NATS.MaxDeliver,
			ConfirmationDepth: cfg.Ethereum.ConfirmationDepth,
		},
		natsJS,
		pipeline,
		blockProvider,
		jsonAdapter,
	)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create ingest consumer", zap.Error(err), zap.String("url", cfg.NATS.URL))
	}
	defer consumer.Close()
	logger.InfoCtx(ctx, "Ingest consumer created",
		zap.String("stream", cfg.NATS.StreamName),
		zap.String("consumer", cfg.NATS.ConsumerName))

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel for consumer errors
	errCh := make(chan error, 1)

	// Start the consumer
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "ingest"))
		cancel()
	}

	// Give some time for graceful shutdown
	time.Sleep(time.Second)

	logger.Info("Marketplace Ingest stopped")
}
