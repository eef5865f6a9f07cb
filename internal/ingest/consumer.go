package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/vehemi/marketplace-indexer/internal/adapter"
	"github.com/vehemi/marketplace-indexer/internal/block"
	"github.com/vehemi/marketplace-indexer/internal/domain"
	"github.com/vehemi/marketplace-indexer/internal/logger"
)

// Config holds the configuration for the ingest consumer
type Config struct {
	URL            string
	StreamName     string
	ConsumerName   string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string
	AckWaitTimeout time.Duration
	MaxDeliver     int
	// ConfirmationDepth is how many blocks below the chain head an event
	// must be before it is applied. Events above the gate are redelivered
	// after ConfirmationDelay.
	ConfirmationDepth uint64
	ConfirmationDelay time.Duration
}

// Ingest defines the interface for the ingest consumer
type Ingest interface {
	// Run starts consuming events from the stream
	Run(ctx context.Context) error
	// Close closes the consumer and cleans up resources
	Close()
}

type ingest struct {
	nc      adapter.NatsConn
	js      adapter.JetStream
	applier Applier
	blocks  block.BlockProvider
	json    adapter.JSON
	config  Config
}

// NewIngest creates a new ingest consumer
func NewIngest(
	cfg Config,
	natsJS adapter.NatsJetStream,
	applier Applier,
	blocks block.BlockProvider,
	jsonAdapter adapter.JSON,
) (Ingest, error) {
	opts := []nats.Option{
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error(err, zap.String("message", "Disconnected from NATS"))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, js, err := natsJS.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}

	if cfg.ConfirmationDelay <= 0 {
		cfg.ConfirmationDelay = 15 * time.Second
	}

	return &ingest{
		nc:      nc,
		js:      js,
		applier: applier,
		blocks:  blocks,
		json:    jsonAdapter,
		config:  cfg,
	}, nil
}

// Run starts consuming events from the stream
func (i *ingest) Run(ctx context.Context) error {
	logger.Info("Starting ingest consumer", zap.String("stream", i.config.StreamName), zap.String("consumer", i.config.ConsumerName))

	consumerConfig := jetstream.ConsumerConfig{
		Durable:       i.config.ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       i.config.AckWaitTimeout,
		MaxDeliver:    i.config.MaxDeliver,
		FilterSubject: "marketplace.>",
	}

	consumer, err := i.js.CreateOrUpdateConsumer(ctx, i.config.StreamName, consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create/update consumer: %w", err)
	}

	consumerInfo, err := consumer.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to get consumer info: %w", err)
	}
	logger.Info("Consumer created/retrieved", zap.String("consumer", consumerInfo.Name))

	msgChan := make(chan adapter.Message, 100)
	sub, err := consumer.Consume(func(msg adapter.Message) {
		msgChan <- msg
	})
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	defer sub.Stop()

	logger.Info("Started consuming messages")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down ingest consumer")
			return ctx.Err()
		case msg := <-msgChan:
			i.handleMessage(ctx, msg)
		}
	}
}

// handleMessage gates, decodes and hands a single message to the
// apply pipeline
func (i *ingest) handleMessage(ctx context.Context, msg adapter.Message) {
	metadata, _ := msg.Metadata()

	var event domain.MarketplaceEvent
	if err := i.json.Unmarshal(msg.Data(), &event); err != nil {
		logger.Error(err, zap.String("message", "Failed to unmarshal event"))
		if err := msg.Term(); err != nil {
			logger.Error(err, zap.String("message", "Failed to terminate message"))
		}
		return
	}

	if !event.Valid() {
		logger.Warn("Terminating invalid event",
			zap.String("tx_hash", event.TxHash),
			zap.Uint("log_index", event.LogIndex),
			zap.String("event_name", string(event.EventName)))
		if err := msg.Term(); err != nil {
			logger.Error(err, zap.String("message", "Failed to terminate message"))
		}
		return
	}

	// Confirmation gate: hold events until the chain head has moved far
	// enough past them to make reorgs unlikely
	head, err := i.blocks.GetLatestBlock(ctx)
	if err != nil {
		logger.Error(err, zap.String("message", "Failed to get latest block"))
		if err := msg.Nak(); err != nil {
			logger.Error(err, zap.String("message", "Failed to NAK message"))
		}
		return
	}

	if event.BlockNumber+i.config.ConfirmationDepth > head {
		logger.Debug("Event not yet confirmed",
			zap.String("tx_hash", event.TxHash),
			zap.Uint64("block", event.BlockNumber),
			zap.Uint64("head", head))
		if err := msg.NakWithDelay(i.config.ConfirmationDelay); err != nil {
			logger.Error(err, zap.String("message", "Failed to NAK message"))
		}
		return
	}

	if metadata != nil {
		logger.Info("Received event",
			zap.String("event_name", string(event.EventName)),
			zap.Uint64("token_id", event.TokenID),
			zap.String("tx_hash", event.TxHash),
			zap.Uint64("delivery_count", metadata.NumDelivered),
		)
	}

	i.applier.Submit(ctx, &event, func(applyErr error) {
		if applyErr != nil {
			if err := msg.Nak(); err != nil {
				logger.Error(err, zap.String("message", "Failed to NAK message"))
			}
			return
		}
		if err := msg.Ack(); err != nil {
			logger.Error(err, zap.String("message", "Failed to ACK message"))
		}
	})
}

// Close closes the consumer and cleans up resources
func (i *ingest) Close() {
	if i.nc == nil {
		return
	}

	i.nc.Close()
}
