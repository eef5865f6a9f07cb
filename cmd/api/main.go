package main

import (
	"context"
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
	"gorm.io/plugin/dbresolver"

	"github.com/vehemi/marketplace-indexer/internal/adapter"
	"github.com/vehemi/marketplace-indexer/internal/api/server"
	"github.com/vehemi/marketplace-indexer/internal/config"
	"github.com/vehemi/marketplace-indexer/internal/logger"
	"github.com/vehemi/marketplace-indexer/internal/pricing"
	"github.com/vehemi/marketplace-indexer/internal/store"
	"github.com/vehemi/marketplace-indexer/internal/valuation"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadAPIConfig(*configFile, *envPath)
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
			"service": "api-server",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Marketplace API")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("dsn", cfg.Database.DSN()))
	}

	// Route reads through the replica when one is configured
	if cfg.Database.ReadHost != "" {
		err = db.Use(dbresolver.Register(dbresolver.Config{
			Replicas: []gorm.Dialector{postgres.Open(cfg.Database.ReadDSN())},
			Policy:   dbresolver.RandomPolicy{},
		}))
		if err != nil {
			logger.FatalCtx(ctx, "Failed to register read replica", zap.Error(err), zap.String("read_host", cfg.Database.ReadHost))
		}
		logger.InfoCtx(ctx, "Registered read replica", zap.String("read_host", cfg.Database.ReadHost))
	}

	// Configure connection pool
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	// Initialize store
	dataStore := store.NewPGStore(db)

	// Initialize adapters and services
	clockAdapter := adapter.NewClock()
	pricingService := pricing.NewService(dataStore, clockAdapter)
	valuationEngine := valuation.NewEngine(dataStore, pricingService, clockAdapter)

	// Create server config
	serverConfig := server.Config{
		Debug:            cfg.Debug,
		Host:             cfg.Server.Host,
		Port:             cfg.Server.Port,
		ReadTimeout:      time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:     time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:      time.Duration(cfg.Server.IdleTimeout) * time.Second,
		HemiTokenAddress: cfg.PriceFeed.TokenAddress,
	}

	// Create and start server
	srv := server.New(serverConfig, dataStore, pricingService, valuationEngine, clockAdapter)

	// Start server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "server"))
		cancel()
	}

	// Create shutdown context with timeout (don't use canceled ctx)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	logger.InfoCtx(shutdownCtx, "Shutting down server...")

	// Shutdown server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.FatalCtx(shutdownCtx, "Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Marketplace API stopped")
}
