package emitter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vehemi/marketplace-indexer/internal/adapter"
	"github.com/vehemi/marketplace-indexer/internal/domain"
	"github.com/vehemi/marketplace-indexer/internal/logger"
	"github.com/vehemi/marketplace-indexer/internal/messaging"
	"github.com/vehemi/marketplace-indexer/internal/store"
)

// Config holds the configuration for the event emitter
type Config struct {
	ChainID         domain.Chain
	StartBlock      uint64
	CursorSaveFreq  uint64        // Save cursor every N blocks
	CursorSaveDelay time.Duration // Or save cursor every N seconds
}

// Emitter defines the interface for the event emitter
type Emitter interface {
	// Run starts the event emitter
	Run(ctx context.Context) error
	// Close closes the emitter and cleans up resources
	Close()
}

// Emitter handles chain event subscription and publishing to NATS
type emitter struct {
	subscriber messaging.Subscriber
	publisher  messaging.Publisher
	store      store.Store
	config     Config
	clock      adapter.Clock
}

// NewEmitter creates a new event emitter
func NewEmitter(
	sub messaging.Subscriber,
	pub messaging.Publisher,
	st store.Store,
	cfg Config,
	clock adapter.Clock,
) Emitter {
	return &emitter{
		subscriber: sub,
		publisher:  pub,
		store:      st,
		config:     cfg,
		clock:      clock,
	}
}

// Run starts the event emitter
func (e *emitter) Run(ctx context.Context) error {
	// Determine starting block
	startBlock := e.config.StartBlock
	if startBlock == 0 {
		// Get last processed block from store
		lastBlock, err := e.store.GetBlockCursor(ctx, string(e.config.ChainID))
		if err != nil {
			return fmt.Errorf("failed to get block cursor: %w", err)
		}

		if lastBlock > 0 {
			// The cursor is saved at block granularity, so the cursor block
			// may have been only partially published before a crash.
			// Re-request it in full; the apply side is idempotent on
			// (tx_hash, log_index) and absorbs the duplicates.
			startBlock = lastBlock
			logger.Info("Resuming from last processed block", zap.String("chain", string(e.config.ChainID)), zap.Uint64("block", startBlock))
		} else {
			// Start from latest block
			latestBlock, err := e.subscriber.GetLatestBlock(ctx)
			if err != nil {
				return fmt.Errorf("failed to get latest block number: %w", err)
			}
			startBlock = latestBlock
			logger.Info("Starting from latest block", zap.String("chain", string(e.config.ChainID)), zap.Uint64("block", startBlock))
		}
	} else {
		logger.Info("Starting from configured block", zap.String("chain", string(e.config.ChainID)), zap.Uint64("block", startBlock))
	}

	errCh := make(chan error, 1)

	// Start subscribing to events
	go func() {
		logger.Info("Starting event subscription", zap.String("chain", string(e.config.ChainID)))

		lastSavedBlock := uint64(0)
		lastSaveTime := e.clock.Now()

		handler := func(event *domain.MarketplaceEvent) error {
			if !event.Valid() {
				// Malformed events are dropped here rather than poisoning the stream
				logger.Warn("Dropping invalid event",
					zap.String("tx_hash", event.TxHash),
					zap.Uint("log_index", event.LogIndex),
					zap.String("event_name", string(event.EventName)))
				return nil
			}

			// Publish to NATS
			if err := e.publisher.PublishEvent(ctx, event); err != nil {
				return fmt.Errorf("failed to publish event %s: %w", event.TxHash, err)
			}

			// Save cursor periodically (every N blocks or N seconds)
			shouldSave := event.BlockNumber-lastSavedBlock >= e.config.CursorSaveFreq ||
				e.clock.Since(lastSaveTime) >= e.config.CursorSaveDelay

			if shouldSave {
				if err := e.store.SetBlockCursor(ctx, string(e.config.ChainID), event.BlockNumber); err != nil {
					logger.Error(fmt.Errorf("failed to save block cursor: %w", err), zap.Uint64("block", event.BlockNumber))
				} else {
					lastSavedBlock = event.BlockNumber
					lastSaveTime = e.clock.Now()
				}
			}

			return nil
		}

		err := e.subscriber.SubscribeEvents(ctx, startBlock, handler)
		if err != nil {
			errCh <- err
		}
	}()

	// Wait for error or context cancellation
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the emitter and cleans up resources
func (e *emitter) Close() {
	e.subscriber.Close()
}
