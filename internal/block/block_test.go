package block_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vehemi/marketplace-indexer/internal/block"
	"github.com/vehemi/marketplace-indexer/internal/logger"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

// fakeFetcher is a scripted BlockFetcher
type fakeFetcher struct {
	mu sync.Mutex

	latest     uint64
	latestErr  error
	latestHits int
}

func (f *fakeFetcher) FetchLatestBlock(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latestHits++
	if f.latestErr != nil {
		return 0, f.latestErr
	}
	return f.latest, nil
}

// fakeClock is a manually advanced clock
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time                  { return c.now }
func (c *fakeClock) Since(t time.Time) time.Duration { return c.now.Sub(t) }
func (c *fakeClock) Sleep(d time.Duration)           { c.now = c.now.Add(d) }
func (c *fakeClock) Parse(layout, value string) (time.Time, error) {
	return time.Parse(layout, value)
}
func (c *fakeClock) Unix(sec int64, nsec int64) time.Time { return time.Unix(sec, nsec) }
func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.now.Add(d)
	return ch
}

func newTestProvider(fetcher *fakeFetcher, clock *fakeClock) block.BlockProvider {
	return block.NewBlockProvider(fetcher, block.Config{
		TTL:         10 * time.Second,
		StaleWindow: 2 * time.Minute,
	}, clock)
}

func TestGetLatestBlockCaching(t *testing.T) {
	fetcher := &fakeFetcher{latest: 1000}
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	provider := newTestProvider(fetcher, clock)

	ctx := context.Background()

	got, err := provider.GetLatestBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), got)
	assert.Equal(t, 1, fetcher.latestHits)

	// Within TTL: served from cache, no second fetch
	clock.now = clock.now.Add(5 * time.Second)
	fetcher.latest = 1001
	got, err = provider.GetLatestBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), got)
	assert.Equal(t, 1, fetcher.latestHits)

	// Past TTL: refetched
	clock.now = clock.now.Add(10 * time.Second)
	got, err = provider.GetLatestBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1001), got)
	assert.Equal(t, 2, fetcher.latestHits)
}

func TestGetLatestBlockStaleFallback(t *testing.T) {
	fetcher := &fakeFetcher{latest: 1000}
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	provider := newTestProvider(fetcher, clock)

	ctx := context.Background()

	_, err := provider.GetLatestBlock(ctx)
	require.NoError(t, err)

	// Fetch fails past TTL but within the stale window: stale value served
	fetcher.latestErr = errors.New("rpc unavailable")
	clock.now = clock.now.Add(30 * time.Second)

	got, err := provider.GetLatestBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), got)

	// Past the stale window the error surfaces
	clock.now = clock.now.Add(3 * time.Minute)
	_, err = provider.GetLatestBlock(ctx)
	assert.Error(t, err)
}

func TestGetLatestBlockNoCacheError(t *testing.T) {
	fetcher := &fakeFetcher{latestErr: errors.New("rpc unavailable")}
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	provider := newTestProvider(fetcher, clock)

	_, err := provider.GetLatestBlock(context.Background())
	assert.Error(t, err)
}
