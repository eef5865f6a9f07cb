package messaging

import (
	"context"

	"github.com/vehemi/marketplace-indexer/internal/domain"
)

// EventHandler is called when a new marketplace event is received
type EventHandler func(event *domain.MarketplaceEvent) error

// Subscriber defines the interface for subscribing to chain events
type Subscriber interface {
	// SubscribeEvents subscribes to marketplace and veHEMI contract events
	// fromBlock: starting point for subscription (0 for latest)
	// handler: callback function to process each event
	SubscribeEvents(ctx context.Context, fromBlock uint64, handler EventHandler) error

	// GetLatestBlock returns the latest block number
	GetLatestBlock(ctx context.Context) (uint64, error)

	// Close closes the connection and cleans up resources
	Close()
}
