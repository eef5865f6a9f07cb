package messaging

import (
	"context"

	"github.com/vehemi/marketplace-indexer/internal/domain"
)

// Publisher defines the interface for publishing events to message queue
type Publisher interface {
	// PublishEvent publishes a decoded marketplace event to the message broker
	PublishEvent(ctx context.Context, event *domain.MarketplaceEvent) error
	// Close closes the connection
	Close()
	// CloseChan returns a channel that is closed when the publisher is closed
	CloseChan() <-chan struct{}
}
