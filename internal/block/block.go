// Package block caches the chain head so the confirmation gate does
// not hit the RPC node for every consumed message.
package block

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vehemi/marketplace-indexer/internal/adapter"
	"github.com/vehemi/marketplace-indexer/internal/logger"
)

// BlockProvider provides cached access to the latest block number
type BlockProvider interface {
	// GetLatestBlock returns the latest block number, potentially from cache
	GetLatestBlock(ctx context.Context) (uint64, error)
}

// BlockFetcher fetches the chain head from the blockchain
type BlockFetcher interface {
	FetchLatestBlock(ctx context.Context) (uint64, error)
}

// Config holds configuration for the BlockProvider
type Config struct {
	// TTL is how long a fetched head stays fresh
	TTL time.Duration

	// StaleWindow is how long an expired head may still be served when a
	// refresh fails. Past the window the fetch error surfaces.
	StaleWindow time.Duration
}

type headCache struct {
	number    uint64
	fetchedAt time.Time
}

type blockProvider struct {
	fetcher BlockFetcher
	config  Config
	clock   adapter.Clock

	mu   sync.RWMutex
	head *headCache
}

// NewBlockProvider creates a BlockProvider with TTL-based head caching
func NewBlockProvider(fetcher BlockFetcher, config Config, clock adapter.Clock) BlockProvider {
	return &blockProvider{
		fetcher: fetcher,
		config:  config,
		clock:   clock,
	}
}

// GetLatestBlock returns the latest block number, using cache if valid
func (p *blockProvider) GetLatestBlock(ctx context.Context) (uint64, error) {
	p.mu.RLock()
	cached := p.head
	p.mu.RUnlock()

	now := p.clock.Now()

	if cached != nil && now.Sub(cached.fetchedAt) < p.config.TTL {
		logger.DebugCtx(ctx, "Using cached block number", zap.Uint64("block_number", cached.number))
		return cached.number, nil
	}

	head, err := p.fetcher.FetchLatestBlock(ctx)
	if err != nil {
		if cached != nil && now.Sub(cached.fetchedAt) < p.config.StaleWindow {
			logger.DebugCtx(ctx, "Using stale block number", zap.Uint64("block_number", cached.number))
			return cached.number, nil
		}
		return 0, fmt.Errorf("failed to fetch latest block and no valid cache available: %w", err)
	}

	p.mu.Lock()
	p.head = &headCache{number: head, fetchedAt: now}
	p.mu.Unlock()

	return head, nil
}
