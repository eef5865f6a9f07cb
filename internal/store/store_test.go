package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vehemi/marketplace-indexer/internal/domain"
	"github.com/vehemi/marketplace-indexer/internal/store/schema"
)

// =============================================================================
// Test Data Builders
// =============================================================================

const (
	testSeller = "0x1111111111111111111111111111111111111111"
	testBuyer  = "0x2222222222222222222222222222222222222222"
	testHemi   = "0x99e3de3817f6081b2568208337ef83295b7f591d"
)

// buildTestPosition creates a test position row
func buildTestPosition(tokenID uint64, owner string, lockedWei string) *schema.Position {
	lockStart := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	formatted, _ := domain.FormatUnits(lockedWei, 18)
	return &schema.Position{
		TokenID:               tokenID,
		OwnerAddress:          domain.NormalizeAddress(owner),
		LockedAmountWei:       lockedWei,
		LockedAmountFormatted: formatted,
		LockStart:             lockStart,
		LockEnd:               lockStart.AddDate(1, 0, 0),
		Transferable:          true,
		Status:                domain.PositionStatusOpen,
	}
}

// buildTestListing creates a test listing row in active state
func buildTestListing(tokenID uint64, seller string, priceWei string, createdAt time.Time, durationSeconds uint64) *schema.Listing {
	formatted, _ := domain.FormatUnits(priceWei, 18)
	return &schema.Listing{
		TokenID:             tokenID,
		SellerAddress:       domain.NormalizeAddress(seller),
		PriceWei:            priceWei,
		PriceFormatted:      formatted,
		PaymentTokenAddress: domain.NormalizeAddress(testHemi),
		DurationSeconds:     durationSeconds,
		CreatedAtTimestamp:  createdAt,
		DeadlineTimestamp:   createdAt.Add(time.Duration(durationSeconds) * time.Second),
		Status:              domain.ListingStatusActive,
		TransactionHash:     fmt.Sprintf("0xlist%d", tokenID),
		BlockNumber:         100,
	}
}

// buildTestEvent creates a test marketplace event row
func buildTestEvent(name domain.EventName, tokenID uint64, txHash string, logIndex uint, blockNumber uint64) *schema.MarketplaceEvent {
	raw, _ := json.Marshal(map[string]interface{}{
		"token_id": tokenID,
		"event":    string(name),
	})
	return &schema.MarketplaceEvent{
		TokenID:     tokenID,
		EventName:   name,
		TxHash:      txHash,
		LogIndex:    logIndex,
		BlockNumber: blockNumber,
		BlockHash:   fmt.Sprintf("0xblock%d", blockNumber),
		Timestamp:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Raw:         raw,
	}
}

func seedPaymentToken(t *testing.T, s Store) {
	t.Helper()
	require.NoError(t, s.RegisterPaymentToken(context.Background(), &schema.PaymentToken{
		TokenAddress:     testHemi,
		TokenSymbol:      "HEMI",
		TokenName:        "Hemi",
		Decimals:         18,
		IsActive:         true,
		AddedAtTimestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}))
}

// =============================================================================
// Event Application
// =============================================================================

func testApplyEventIdempotency(t *testing.T, s Store) {
	ctx := context.Background()

	projections := 0
	project := func(ctx context.Context, tx Store) error {
		projections++
		return tx.CreateListing(ctx, buildTestListing(1, testSeller, "1000000000000000000", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), 86400))
	}

	applied, err := s.ApplyEvent(ctx, buildTestEvent(domain.EventNFTListed, 1, "0xaaa", 3, 100), project)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 1, projections)

	// Same (tx_hash, log_index) again: no projection, no error
	applied, err = s.ApplyEvent(ctx, buildTestEvent(domain.EventNFTListed, 1, "0xaaa", 3, 100), project)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 1, projections)

	// Same tx hash, different log index is a distinct event
	applied, err = s.ApplyEvent(ctx, buildTestEvent(domain.EventListingCancelled, 1, "0xaaa", 4, 100), func(ctx context.Context, tx Store) error {
		_, err := tx.MarkListingCancelled(ctx, 1, time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC))
		return err
	})
	require.NoError(t, err)
	assert.True(t, applied)

	listing, err := s.GetActiveListing(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, listing)
}

func testApplyEventRollbackOnProjectionError(t *testing.T, s Store) {
	ctx := context.Background()

	applied, err := s.ApplyEvent(ctx, buildTestEvent(domain.EventNFTListed, 2, "0xbbb", 0, 101), func(ctx context.Context, tx Store) error {
		return fmt.Errorf("projection failed")
	})
	require.Error(t, err)
	assert.False(t, applied)

	// The event row must have been rolled back with the projection, so a
	// retry applies cleanly
	applied, err = s.ApplyEvent(ctx, buildTestEvent(domain.EventNFTListed, 2, "0xbbb", 0, 101), nil)
	require.NoError(t, err)
	assert.True(t, applied)
}

// =============================================================================
// Positions
// =============================================================================

func testUpsertPositionLock(t *testing.T, s Store) {
	ctx := context.Background()

	position := buildTestPosition(10, testSeller, "5000000000000000000000")
	require.NoError(t, s.UpsertPositionLock(ctx, position))

	got, err := s.GetPosition(ctx, 10)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "5000000000000000000000", got.LockedAmountWei)
	assert.Equal(t, domain.PositionStatusOpen, got.Status)

	// Re-upsert with a different amount and a later lock end: the amount
	// is immutable, the lock end is refreshed
	updated := buildTestPosition(10, testSeller, "9999000000000000000000")
	updated.LockEnd = position.LockEnd.AddDate(1, 0, 0)
	require.NoError(t, s.UpsertPositionLock(ctx, updated))

	got, err = s.GetPosition(ctx, 10)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "5000000000000000000000", got.LockedAmountWei)
	assert.WithinDuration(t, updated.LockEnd, got.LockEnd, time.Second)
}

func testUpdatePositionOwner(t *testing.T, s Store) {
	ctx := context.Background()

	require.NoError(t, s.UpsertPositionLock(ctx, buildTestPosition(11, testSeller, "100")))
	require.NoError(t, s.UpdatePositionOwner(ctx, 11, testBuyer, time.Now().UTC()))

	got, err := s.GetPosition(ctx, 11)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, testBuyer, got.OwnerAddress)

	byOwner, err := s.ListPositionsByOwner(ctx, testBuyer)
	require.NoError(t, err)
	require.Len(t, byOwner, 1)
	assert.Equal(t, uint64(11), byOwner[0].TokenID)

	byOld, err := s.ListPositionsByOwner(ctx, testSeller)
	require.NoError(t, err)
	assert.Empty(t, byOld)
}

func testClosePosition(t *testing.T, s Store) {
	ctx := context.Background()

	require.NoError(t, s.UpsertPositionLock(ctx, buildTestPosition(12, testSeller, "100")))
	require.NoError(t, s.ClosePosition(ctx, 12, "withdrawn", time.Now().UTC()))

	got, err := s.GetPosition(ctx, 12)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.PositionStatusClosed, got.Status)
	assert.False(t, got.Transferable)
	require.NotNil(t, got.ClosureType)
	assert.Equal(t, "withdrawn", *got.ClosureType)
}

func testGetPositionNotFound(t *testing.T, s Store) {
	got, err := s.GetPosition(context.Background(), 999999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

// =============================================================================
// Listings
// =============================================================================

func testListingSoldLifecycle(t *testing.T, s Store) {
	ctx := context.Background()
	createdAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertPositionLock(ctx, buildTestPosition(20, testSeller, "100")))
	require.NoError(t, s.CreateListing(ctx, buildTestListing(20, testSeller, "2000000000000000000", createdAt, 86400)))

	soldAt := createdAt.Add(time.Hour)
	updated, err := s.MarkListingSold(ctx, 20, testBuyer, soldAt, "0xsale20")
	require.NoError(t, err)
	assert.True(t, updated)

	active, err := s.GetActiveListing(ctx, 20)
	require.NoError(t, err)
	assert.Nil(t, active)

	sold, err := s.ListSoldListings(ctx, nil)
	require.NoError(t, err)
	require.Len(t, sold, 1)
	assert.Equal(t, domain.ListingStatusSold, sold[0].Listing.Status)
	require.NotNil(t, sold[0].Listing.BuyerAddress)
	assert.Equal(t, testBuyer, *sold[0].Listing.BuyerAddress)
	require.NotNil(t, sold[0].Position)
	assert.Equal(t, uint64(20), sold[0].Position.TokenID)

	// Terminal states are final
	updated, err = s.MarkListingSold(ctx, 20, testSeller, soldAt.Add(time.Hour), "0xsale20b")
	require.NoError(t, err)
	assert.False(t, updated)
	updated, err = s.MarkListingCancelled(ctx, 20, soldAt.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, updated)
}

func testListingCancelledLifecycle(t *testing.T, s Store) {
	ctx := context.Background()
	createdAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateListing(ctx, buildTestListing(21, testSeller, "100", createdAt, 86400)))

	updated, err := s.MarkListingCancelled(ctx, 21, createdAt.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, updated)

	rows, err := s.ListListingsByStatus(ctx, domain.ListingStatusCancelled, 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].Listing.CancelledAtTimestamp)
	assert.False(t, rows[0].Listing.ReconcileFlag)
}

func testSupersedeActiveListings(t *testing.T, s Store) {
	ctx := context.Background()
	createdAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateListing(ctx, buildTestListing(22, testSeller, "100", createdAt, 86400)))

	n, err := s.SupersedeActiveListings(ctx, 22, createdAt.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rows, err := s.ListListingsByStatus(ctx, domain.ListingStatusCancelled, 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Listing.ReconcileFlag)

	// A fresh listing for the token can now be created
	require.NoError(t, s.CreateListing(ctx, buildTestListing(22, testSeller, "200", createdAt.Add(time.Minute), 86400)))

	n, err = s.SupersedeActiveListings(ctx, 22, createdAt.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func testGetBuyableListingExcludesExpired(t *testing.T, s Store) {
	ctx := context.Background()
	createdAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateListing(ctx, buildTestListing(23, testSeller, "100", createdAt, 3600)))

	listing, err := s.GetBuyableListing(ctx, 23, createdAt.Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, listing)

	// Past the deadline the row is still active in the database but no
	// longer buyable
	listing, err = s.GetBuyableListing(ctx, 23, createdAt.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, listing)

	active, err := s.GetActiveListing(ctx, 23)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, domain.ListingStatusActive, active.Status)
}

func testListActiveListingsFilters(t *testing.T, s Store) {
	ctx := context.Background()
	seedPaymentToken(t, s)
	createdAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	now := createdAt.Add(time.Hour)

	otherSeller := "0x3333333333333333333333333333333333333333"

	require.NoError(t, s.UpsertPositionLock(ctx, buildTestPosition(30, testSeller, "1000000000000000000000")))
	require.NoError(t, s.UpsertPositionLock(ctx, buildTestPosition(31, otherSeller, "4000000000000000000000")))
	require.NoError(t, s.UpsertPositionLock(ctx, buildTestPosition(32, testSeller, "2000000000000000000000")))

	require.NoError(t, s.CreateListing(ctx, buildTestListing(30, testSeller, "1000000000000000000", createdAt, 86400)))
	require.NoError(t, s.CreateListing(ctx, buildTestListing(31, otherSeller, "5000000000000000000", createdAt, 86400)))
	// Already expired at query time
	require.NoError(t, s.CreateListing(ctx, buildTestListing(32, testSeller, "3000000000000000000", createdAt, 60)))

	rows, total, err := s.ListActiveListings(ctx, ListingFilter{}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, rows, 2)
	for _, r := range rows {
		require.NotNil(t, r.Position)
		require.NotNil(t, r.PaymentToken)
		assert.Equal(t, "HEMI", r.PaymentToken.TokenSymbol)
	}

	minPrice := "2000000000000000000"
	rows, total, err = s.ListActiveListings(ctx, ListingFilter{MinPriceWei: &minPrice}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, rows, 1)
	assert.Equal(t, uint64(31), rows[0].Listing.TokenID)

	maxLocked := "1500000000000000000000"
	rows, total, err = s.ListActiveListings(ctx, ListingFilter{MaxLockedAmountWei: &maxLocked}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, rows, 1)
	assert.Equal(t, uint64(30), rows[0].Listing.TokenID)

	seller := testSeller
	rows, total, err = s.ListActiveListings(ctx, ListingFilter{Seller: &seller}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, rows, 1)
	assert.Equal(t, uint64(30), rows[0].Listing.TokenID)
}

func testListActiveListingsUSDSort(t *testing.T, s Store) {
	ctx := context.Background()
	seedPaymentToken(t, s)
	createdAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	now := createdAt.Add(time.Hour)

	require.NoError(t, s.InsertPriceSample(ctx, &schema.PriceSample{
		TokenAddress: testHemi,
		UsdPrice:     0.05,
		RecordedAt:   createdAt,
	}))

	// token 40: 10 HEMI price over 1000 locked -> unit price 0.0005 USD
	// token 41: 4 HEMI price over 100 locked -> unit price 0.002 USD
	require.NoError(t, s.UpsertPositionLock(ctx, buildTestPosition(40, testSeller, "1000000000000000000000")))
	require.NoError(t, s.UpsertPositionLock(ctx, buildTestPosition(41, testSeller, "100000000000000000000")))
	require.NoError(t, s.CreateListing(ctx, buildTestListing(40, testSeller, "10000000000000000000", createdAt, 86400)))
	require.NoError(t, s.CreateListing(ctx, buildTestListing(41, testSeller, "4000000000000000000", createdAt, 86400)))

	rows, _, err := s.ListActiveListings(ctx, ListingFilter{Sort: ListingSortUnitPriceUSD}, now)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, uint64(40), rows[0].Listing.TokenID)
	assert.Equal(t, uint64(41), rows[1].Listing.TokenID)

	rows, _, err = s.ListActiveListings(ctx, ListingFilter{Sort: ListingSortPriceUSD, SortDesc: true}, now)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, uint64(40), rows[0].Listing.TokenID)
}

func testOneActiveListingPerToken(t *testing.T, s Store) {
	ctx := context.Background()
	createdAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateListing(ctx, buildTestListing(50, testSeller, "100", createdAt, 86400)))

	// The partial unique index rejects a second active row for the token.
	// Keep this statement last: the violation aborts the test transaction.
	err := s.CreateListing(ctx, buildTestListing(50, testBuyer, "200", createdAt, 86400))
	require.Error(t, err)
}

// =============================================================================
// Payment Tokens
// =============================================================================

func testPaymentTokens(t *testing.T, s Store) {
	ctx := context.Background()
	seedPaymentToken(t, s)

	// Registering again is a no-op
	seedPaymentToken(t, s)

	require.NoError(t, s.RegisterPaymentToken(ctx, &schema.PaymentToken{
		TokenAddress:     "0x4444444444444444444444444444444444444444",
		TokenSymbol:      "USDC",
		TokenName:        "USD Coin",
		Decimals:         6,
		IsActive:         false,
		AddedAtTimestamp: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}))

	all, err := s.ListPaymentTokens(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := s.ListPaymentTokens(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "HEMI", active[0].TokenSymbol)

	got, err := s.GetPaymentToken(ctx, testHemi)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 18, got.Decimals)

	missing, err := s.GetPaymentToken(ctx, "0x9999999999999999999999999999999999999999")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

// =============================================================================
// Price Samples
// =============================================================================

func testPriceSamples(t *testing.T, s Store) {
	ctx := context.Background()
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, price := range []float64{0.040, 0.045, 0.050} {
		require.NoError(t, s.InsertPriceSample(ctx, &schema.PriceSample{
			TokenAddress: testHemi,
			UsdPrice:     price,
			RecordedAt:   t0.Add(time.Duration(i) * time.Hour),
		}))
	}

	// Duplicate (token, recorded_at) is silently dropped
	require.NoError(t, s.InsertPriceSample(ctx, &schema.PriceSample{
		TokenAddress: testHemi,
		UsdPrice:     99.0,
		RecordedAt:   t0,
	}))

	latest, err := s.LatestPriceSample(ctx, testHemi)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 0.050, latest.UsdPrice)

	// As-of picks the newest sample at or before the instant
	asOf, err := s.PriceSampleAsOf(ctx, testHemi, t0.Add(90*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, asOf)
	assert.Equal(t, 0.045, asOf.UsdPrice)

	asOf, err = s.PriceSampleAsOf(ctx, testHemi, t0.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, asOf)
	assert.Equal(t, 0.045, asOf.UsdPrice)

	// Before the first sample there is no defined price
	asOf, err = s.PriceSampleAsOf(ctx, testHemi, t0.Add(-time.Minute))
	require.NoError(t, err)
	assert.Nil(t, asOf)

	latest, err = s.LatestPriceSample(ctx, "0x9999999999999999999999999999999999999999")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func testSparklinePoints(t *testing.T, s Store) {
	ctx := context.Background()
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	// Two samples in the first 4h bucket, one in the next
	for _, sample := range []struct {
		at    time.Time
		price float64
	}{
		{t0, 0.040},
		{t0.Add(time.Hour), 0.060},
		{t0.Add(5 * time.Hour), 0.070},
	} {
		require.NoError(t, s.InsertPriceSample(ctx, &schema.PriceSample{
			TokenAddress: testHemi,
			UsdPrice:     sample.price,
			RecordedAt:   sample.at,
		}))
	}

	points, err := s.SparklinePoints(ctx, testHemi, t0.Add(-time.Minute), 4*time.Hour)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.InDelta(t, 0.050, points[0], 1e-9)
	assert.InDelta(t, 0.070, points[1], 1e-9)

	// Window start excludes older buckets
	points, err = s.SparklinePoints(ctx, testHemi, t0.Add(4*time.Hour), 4*time.Hour)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.InDelta(t, 0.070, points[0], 1e-9)
}

// =============================================================================
// Events
// =============================================================================

func testEventQueries(t *testing.T, s Store) {
	ctx := context.Background()

	for i := uint(0); i < 3; i++ {
		applied, err := s.ApplyEvent(ctx, buildTestEvent(domain.EventTransfer, 60, fmt.Sprintf("0xtx%d", i), i, 200+uint64(i)), nil)
		require.NoError(t, err)
		require.True(t, applied)
	}
	applied, err := s.ApplyEvent(ctx, buildTestEvent(domain.EventNFTListed, 61, "0xother", 0, 300), nil)
	require.NoError(t, err)
	require.True(t, applied)

	events, err := s.ListEventsByToken(ctx, 60, 10, 0, false)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, uint64(200), events[0].BlockNumber)
	assert.Equal(t, uint64(202), events[2].BlockNumber)

	events, err = s.ListEventsByToken(ctx, 60, 10, 0, true)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, uint64(202), events[0].BlockNumber)

	recent, err := s.ListRecentEvents(ctx, nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, recent, 4)
	assert.Equal(t, uint64(300), recent[0].BlockNumber)

	listed, err := s.ListRecentEvents(ctx, []domain.EventName{domain.EventNFTListed}, 10, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, uint64(61), listed[0].TokenID)
}

// =============================================================================
// Cursors
// =============================================================================

func testBlockCursor(t *testing.T, s Store) {
	ctx := context.Background()
	chain := string(domain.ChainHemiMainnet)

	block, err := s.GetBlockCursor(ctx, chain)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), block)

	require.NoError(t, s.SetBlockCursor(ctx, chain, 12345))
	require.NoError(t, s.SetBlockCursor(ctx, chain, 12350))

	block, err = s.GetBlockCursor(ctx, chain)
	require.NoError(t, err)
	assert.Equal(t, uint64(12350), block)
}

func testWatermark(t *testing.T, s Store) {
	ctx := context.Background()
	chain := string(domain.ChainHemiMainnet)

	w, err := s.GetWatermark(ctx, chain)
	require.NoError(t, err)
	assert.Nil(t, w)

	require.NoError(t, s.SetWatermark(ctx, chain, Watermark{BlockNumber: 500, LogIndex: 7}))

	w, err = s.GetWatermark(ctx, chain)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, uint64(500), w.BlockNumber)
	assert.Equal(t, uint(7), w.LogIndex)

	// Watermarks are per chain
	other, err := s.GetWatermark(ctx, string(domain.ChainHemiSepolia))
	require.NoError(t, err)
	assert.Nil(t, other)
}

// =============================================================================
// Suite Runner
// =============================================================================

// RunStoreTests runs the shared store test suite against an implementation
func RunStoreTests(t *testing.T, initDB func(t *testing.T) Store, cleanupDB func(t *testing.T)) {
	tests := []struct {
		name string
		fn   func(*testing.T, Store)
	}{
		{"ApplyEventIdempotency", testApplyEventIdempotency},
		{"ApplyEventRollbackOnProjectionError", testApplyEventRollbackOnProjectionError},
		{"UpsertPositionLock", testUpsertPositionLock},
		{"UpdatePositionOwner", testUpdatePositionOwner},
		{"ClosePosition", testClosePosition},
		{"GetPositionNotFound", testGetPositionNotFound},
		{"ListingSoldLifecycle", testListingSoldLifecycle},
		{"ListingCancelledLifecycle", testListingCancelledLifecycle},
		{"SupersedeActiveListings", testSupersedeActiveListings},
		{"GetBuyableListingExcludesExpired", testGetBuyableListingExcludesExpired},
		{"ListActiveListingsFilters", testListActiveListingsFilters},
		{"ListActiveListingsUSDSort", testListActiveListingsUSDSort},
		{"OneActiveListingPerToken", testOneActiveListingPerToken},
		{"PaymentTokens", testPaymentTokens},
		{"PriceSamples", testPriceSamples},
		{"SparklinePoints", testSparklinePoints},
		{"EventQueries", testEventQueries},
		{"BlockCursor", testBlockCursor},
		{"Watermark", testWatermark},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := initDB(t)
			defer cleanupDB(t)
			tt.fn(t, store)
		})
	}
}
