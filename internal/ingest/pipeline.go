package ingest

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/vehemi/marketplace-indexer/internal/domain"
	"github.com/vehemi/marketplace-indexer/internal/logger"
	"github.com/vehemi/marketplace-indexer/internal/store"
)

// PipelineConfig holds configuration for the apply pipeline
type PipelineConfig struct {
	ChainID domain.Chain
	// Shards is the number of single-worker apply lanes. Events for the
	// same token always land on the same lane, which keeps per-token
	// apply order without serializing unrelated tokens.
	Shards int
	// QueueSize is the per-shard task queue capacity
	QueueSize int
	// MaxRetries bounds storage retries per event before the message is
	// redelivered by the broker
	MaxRetries uint64
	// RetryInitialInterval seeds the exponential backoff between retries
	RetryInitialInterval time.Duration
}

// Applier accepts decoded events for ordered, idempotent application
type Applier interface {
	// Submit enqueues an event; ack is invoked with the apply outcome
	// once the event has been processed
	Submit(ctx context.Context, event *domain.MarketplaceEvent, ack func(error))
}

// Pipeline fans events out to per-token apply lanes and advances the
// ingestion watermark as events commit
type Pipeline struct {
	store     store.Store
	projector *Projector
	config    PipelineConfig
	shards    []pond.Pool

	mu        sync.Mutex
	watermark store.Watermark
}

// NewPipeline creates a new apply pipeline
func NewPipeline(st store.Store, projector *Projector, cfg PipelineConfig) *Pipeline {
	if cfg.Shards <= 0 {
		cfg.Shards = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = 200 * time.Millisecond
	}

	return &Pipeline{
		store:     st,
		projector: projector,
		config:    cfg,
	}
}

// Start loads the persisted watermark and spins up the apply lanes
func (p *Pipeline) Start(ctx context.Context) error {
	w, err := p.store.GetWatermark(ctx, string(p.config.ChainID))
	if err != nil {
		return fmt.Errorf("failed to load watermark: %w", err)
	}
	if w != nil {
		p.watermark = *w
		logger.Info("Resuming from watermark",
			zap.String("chain", string(p.config.ChainID)),
			zap.Uint64("block", w.BlockNumber),
			zap.Uint("log_index", w.LogIndex))
	}

	p.shards = make([]pond.Pool, p.config.Shards)
	for i := range p.shards {
		p.shards[i] = pond.NewPool(
			1,
			pond.WithQueueSize(p.config.QueueSize),
			pond.WithContext(ctx),
		)
	}

	return nil
}

// Submit enqueues an event on its token's lane
func (p *Pipeline) Submit(ctx context.Context, event *domain.MarketplaceEvent, ack func(error)) {
	shard := p.shardFor(event.TokenID)
	p.shards[shard].Submit(func() {
		ack(p.apply(ctx, event))
	})
}

// Stop drains the lanes and waits for in-flight events to finish
func (p *Pipeline) Stop() {
	for _, shard := range p.shards {
		shard.StopAndWait()
	}
}

// Watermark returns the current in-memory watermark
func (p *Pipeline) Watermark() store.Watermark {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watermark
}

func (p *Pipeline) shardFor(tokenID uint64) int {
	h := fnv.New32a()
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(tokenID >> (8 * i))
	}
	_, _ = h.Write(buf[:])
	return int(h.Sum32() % uint32(p.config.Shards))
}

func (p *Pipeline) apply(ctx context.Context, event *domain.MarketplaceEvent) error {
	var applied bool

	operation := func() error {
		var err error
		applied, err = p.projector.Apply(ctx, event)
		if err != nil {
			if domain.IsDecode(err) || domain.IsValidation(err) {
				// Retrying cannot fix a malformed event
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.config.RetryInitialInterval
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, p.config.MaxRetries), ctx))
	if err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to apply event: %w", err),
			zap.String("tx_hash", event.TxHash),
			zap.Uint("log_index", event.LogIndex))
		return err
	}

	if !applied {
		logger.DebugCtx(ctx, "Skipping already-applied event",
			zap.String("tx_hash", event.TxHash),
			zap.Uint("log_index", event.LogIndex))
		return nil
	}

	p.advanceWatermark(ctx, event)
	return nil
}

// advanceWatermark persists the new position when the event moves it
// forward. Watermark only moves monotonically; out-of-order lanes may
// commit older events after newer ones and those must not rewind it.
func (p *Pipeline) advanceWatermark(ctx context.Context, event *domain.MarketplaceEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.BlockNumber < p.watermark.BlockNumber {
		return
	}
	if event.BlockNumber == p.watermark.BlockNumber && event.LogIndex <= p.watermark.LogIndex {
		return
	}

	next := store.Watermark{BlockNumber: event.BlockNumber, LogIndex: event.LogIndex}
	if err := p.store.SetWatermark(ctx, string(p.config.ChainID), next); err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to persist watermark: %w", err),
			zap.Uint64("block", next.BlockNumber),
			zap.Uint("log_index", next.LogIndex))
		return
	}
	p.watermark = next
}
