package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vehemi/marketplace-indexer/internal/domain"
	"github.com/vehemi/marketplace-indexer/internal/logger"
	"github.com/vehemi/marketplace-indexer/internal/pricing"
	"github.com/vehemi/marketplace-indexer/internal/store"
	"github.com/vehemi/marketplace-indexer/internal/store/schema"
	"github.com/vehemi/marketplace-indexer/internal/valuation"
)

var (
	testNow    = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	testHemi   = domain.NormalizeAddress("0x99e3de3817f6081b2568208337ef83295b7f591d")
	testSeller = domain.NormalizeAddress("0x1111111111111111111111111111111111111111")
	testBuyer  = domain.NormalizeAddress("0x2222222222222222222222222222222222222222")
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := logger.Initialize(logger.Config{Debug: true}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type stubClock struct{ now time.Time }

func (c *stubClock) Now() time.Time                                { return c.now }
func (c *stubClock) Since(t time.Time) time.Duration               { return c.now.Sub(t) }
func (c *stubClock) Sleep(d time.Duration)                         {}
func (c *stubClock) Parse(layout, value string) (time.Time, error) { return time.Parse(layout, value) }
func (c *stubClock) Unix(sec int64, nsec int64) time.Time          { return time.Unix(sec, nsec) }
func (c *stubClock) After(d time.Duration) <-chan time.Time        { return make(chan time.Time) }

// apiStore serves handlers canned rows. Only the read methods the API
// touches are implemented; anything else panics through the embedded
// nil interface.
type apiStore struct {
	store.Store

	active    []*store.SoldListing
	sold      []*store.SoldListing
	positions map[uint64]*schema.Position
	tokens    map[string]*schema.PaymentToken
	events    []*schema.MarketplaceEvent
	samples   []*schema.PriceSample
}

func (s *apiStore) ListActiveListings(ctx context.Context, filter store.ListingFilter, now time.Time) ([]*store.SoldListing, int64, error) {
	return s.active, int64(len(s.active)), nil
}

func (s *apiStore) ListSoldListings(ctx context.Context, since *time.Time) ([]*store.SoldListing, error) {
	var out []*store.SoldListing
	for _, row := range s.sold {
		if since != nil && row.Listing.SoldAtTimestamp.Before(*since) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *apiStore) GetActiveListing(ctx context.Context, tokenID uint64) (*schema.Listing, error) {
	for _, row := range s.active {
		if row.Listing.TokenID == tokenID {
			l := row.Listing
			return &l, nil
		}
	}
	return nil, nil
}

func (s *apiStore) GetBuyableListing(ctx context.Context, tokenID uint64, now time.Time) (*schema.Listing, error) {
	for _, row := range s.active {
		if row.Listing.TokenID == tokenID && row.Listing.DeadlineTimestamp.After(now) {
			l := row.Listing
			l.Position = row.Position
			l.PaymentToken = row.PaymentToken
			return &l, nil
		}
	}
	return nil, nil
}

func (s *apiStore) ListListingsBySeller(ctx context.Context, seller string) ([]*schema.Listing, error) {
	var out []*schema.Listing
	for _, row := range append(append([]*store.SoldListing{}, s.active...), s.sold...) {
		if row.Listing.SellerAddress == domain.NormalizeAddress(seller) {
			l := row.Listing
			out = append(out, &l)
		}
	}
	return out, nil
}

func (s *apiStore) GetPosition(ctx context.Context, tokenID uint64) (*schema.Position, error) {
	return s.positions[tokenID], nil
}

func (s *apiStore) ListPositionsByOwner(ctx context.Context, owner string) ([]*schema.Position, error) {
	var out []*schema.Position
	for _, position := range s.positions {
		if position.OwnerAddress == domain.NormalizeAddress(owner) {
			out = append(out, position)
		}
	}
	return out, nil
}

func (s *apiStore) GetPaymentToken(ctx context.Context, address string) (*schema.PaymentToken, error) {
	return s.tokens[domain.NormalizeAddress(address)], nil
}

func (s *apiStore) ListEventsByToken(ctx context.Context, tokenID uint64, limit, offset int, desc bool) ([]*schema.MarketplaceEvent, error) {
	var out []*schema.MarketplaceEvent
	for _, e := range s.events {
		if e.TokenID == tokenID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *apiStore) ListRecentEvents(ctx context.Context, names []domain.EventName, limit, offset int) ([]*schema.MarketplaceEvent, error) {
	if len(names) == 0 {
		return s.events, nil
	}
	wanted := make(map[domain.EventName]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	var out []*schema.MarketplaceEvent
	for _, e := range s.events {
		if wanted[e.EventName] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *apiStore) ListPaymentTokens(ctx context.Context, activeOnly bool) ([]*schema.PaymentToken, error) {
	var out []*schema.PaymentToken
	for _, token := range s.tokens {
		if activeOnly && !token.IsActive {
			continue
		}
		out = append(out, token)
	}
	return out, nil
}

func (s *apiStore) LatestPriceSample(ctx context.Context, tokenAddress string) (*schema.PriceSample, error) {
	var latest *schema.PriceSample
	for _, sample := range s.samples {
		if latest == nil || sample.RecordedAt.After(latest.RecordedAt) {
			latest = sample
		}
	}
	return latest, nil
}

func (s *apiStore) PriceSampleAsOf(ctx context.Context, tokenAddress string, at time.Time) (*schema.PriceSample, error) {
	var best *schema.PriceSample
	for _, sample := range s.samples {
		if sample.RecordedAt.After(at) {
			continue
		}
		if best == nil || sample.RecordedAt.After(best.RecordedAt) {
			best = sample
		}
	}
	return best, nil
}

func (s *apiStore) SparklinePoints(ctx context.Context, tokenAddress string, since time.Time, bucket time.Duration) ([]float64, error) {
	var out []float64
	for _, sample := range s.samples {
		if !sample.RecordedAt.Before(since) {
			out = append(out, sample.UsdPrice)
		}
	}
	return out, nil
}

func seededStore() *apiStore {
	soldAt := testNow.Add(-20 * time.Hour)
	hemi := &schema.PaymentToken{
		TokenAddress: testHemi,
		TokenSymbol:  "HEMI",
		TokenName:    "Hemi",
		Decimals:     18,
		IsActive:     true,
	}
	position := &schema.Position{
		TokenID:               7,
		OwnerAddress:          testSeller,
		LockedAmountWei:       "10000000000000000000000",
		LockedAmountFormatted: "10000",
		LockStart:             testNow.Add(-90 * 24 * time.Hour),
		LockEnd:               testNow.Add(275 * 24 * time.Hour),
		Transferable:          true,
		Status:                domain.PositionStatusOpen,
	}
	return &apiStore{
		active: []*store.SoldListing{{
			Listing: schema.Listing{
				TokenID:             7,
				SellerAddress:       testSeller,
				PriceWei:            "5000000000000000000000",
				PriceFormatted:      "5000",
				PaymentTokenAddress: testHemi,
				DurationSeconds:     86400,
				CreatedAtTimestamp:  testNow.Add(-time.Hour),
				DeadlineTimestamp:   testNow.Add(23 * time.Hour),
				Status:              domain.ListingStatusActive,
				TransactionHash:     "0xlist7",
				BlockNumber:         4100,
			},
			Position:     position,
			PaymentToken: hemi,
		}},
		sold: []*store.SoldListing{{
			Listing: schema.Listing{
				TokenID:             8,
				SellerAddress:       testSeller,
				PriceWei:            "4000000000000000000000",
				PriceFormatted:      "4000",
				PaymentTokenAddress: testHemi,
				Status:              domain.ListingStatusSold,
				BuyerAddress:        &testBuyer,
				SoldAtTimestamp:     &soldAt,
			},
			Position:     position,
			PaymentToken: hemi,
		}},
		positions: map[uint64]*schema.Position{7: position},
		tokens:    map[string]*schema.PaymentToken{testHemi: hemi},
		events: []*schema.MarketplaceEvent{
			{
				ID:          2,
				TokenID:     7,
				EventName:   domain.EventNFTListed,
				TxHash:      "0xlist7",
				LogIndex:    3,
				BlockNumber: 4100,
				Timestamp:   testNow.Add(-time.Hour),
				Raw:         []byte(`{"event_name":"nft_listed","token_id":7,"price_wei":"5000000000000000000000","payment_token":"` + testHemi + `"}`),
			},
			{
				ID:          1,
				TokenID:     7,
				EventName:   domain.EventLockCreated,
				TxHash:      "0xlock7",
				LogIndex:    1,
				BlockNumber: 4000,
				Timestamp:   testNow.Add(-2 * time.Hour),
				Raw:         []byte(`{"event_name":"lock_created","token_id":7}`),
			},
		},
		samples: []*schema.PriceSample{
			{TokenAddress: testHemi, UsdPrice: 0.020, RecordedAt: testNow.Add(-25 * time.Hour)},
			{TokenAddress: testHemi, UsdPrice: 0.022, RecordedAt: testNow.Add(-12 * time.Hour)},
			{TokenAddress: testHemi, UsdPrice: 0.025, RecordedAt: testNow.Add(-time.Hour)},
		},
	}
}

func newTestRouter(s *apiStore) *gin.Engine {
	clock := &stubClock{now: testNow}
	pricingService := pricing.NewService(s, clock)
	valuationEngine := valuation.NewEngine(s, pricingService, clock)
	router := gin.New()
	SetupRoutes(router, NewHandler(s, pricingService, valuationEngine, testHemi, clock))
	return router
}

func doRequest(t *testing.T, router *gin.Engine, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)

	var body map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestListListings(t *testing.T) {
	w, body := doRequest(t, newTestRouter(seededStore()), "/api/v1/listings")

	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["total"])

	items := body["items"].([]any)
	require.Len(t, items, 1)
	listing := items[0].(map[string]any)
	assert.EqualValues(t, 7, listing["token_id"])
	assert.Equal(t, "active", listing["status"])
	assert.Equal(t, "5000000000000000000000", listing["price_wei"])
	// 5000 HEMI at the latest 0.025 sample
	assert.InDelta(t, 125.0, listing["price_usd"].(float64), 1e-9)
	assert.InDelta(t, 0.0125, listing["unit_price_usd"].(float64), 1e-9)
	assert.Equal(t, "spot", listing["valuation_basis"])
}

func TestListListingsRejectsUnknownSort(t *testing.T) {
	w, body := doRequest(t, newTestRouter(seededStore()), "/api/v1/listings?sort=price_eur")

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_failed", body["error"].(map[string]any)["code"])
}

func TestListListingsRejectsMalformedWei(t *testing.T) {
	w, _ := doRequest(t, newTestRouter(seededStore()), "/api/v1/listings?min_price=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetListing(t *testing.T) {
	w, body := doRequest(t, newTestRouter(seededStore()), "/api/v1/listings/7")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "active", body["status"])
	assert.Equal(t, testSeller, body["seller_address"])
	assert.Equal(t, "HEMI", body["payment_token"].(map[string]any)["token_symbol"])
	assert.Equal(t, "10000", body["position"].(map[string]any)["locked_amount_formatted"])
}

func TestGetListingExpiredAtReadTime(t *testing.T) {
	s := seededStore()
	s.active[0].Listing.DeadlineTimestamp = testNow.Add(-time.Minute)

	w, body := doRequest(t, newTestRouter(s), "/api/v1/listings/7")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "expired", body["status"])
}

func TestGetListingNotFound(t *testing.T) {
	w, body := doRequest(t, newTestRouter(seededStore()), "/api/v1/listings/999")

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", body["error"].(map[string]any)["code"])
}

func TestGetListingInvalidTokenID(t *testing.T) {
	w, _ := doRequest(t, newTestRouter(seededStore()), "/api/v1/listings/not-a-number")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetPosition(t *testing.T) {
	w, body := doRequest(t, newTestRouter(seededStore()), "/api/v1/positions/7")

	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 7, body["token_id"])
	assert.Equal(t, testSeller, body["owner_address"])
	assert.Equal(t, "open", body["status"])
	assert.Equal(t, true, body["transferable"])
}

func TestGetPositionNotFound(t *testing.T) {
	w, _ := doRequest(t, newTestRouter(seededStore()), "/api/v1/positions/999")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetPositionEvents(t *testing.T) {
	w, body := doRequest(t, newTestRouter(seededStore()), "/api/v1/positions/7/events")

	require.Equal(t, http.StatusOK, w.Code)
	items := body["items"].([]any)
	require.Len(t, items, 2)

	first := items[0].(map[string]any)
	assert.Equal(t, "nft_listed", first["event_name"])
	assert.Equal(t, "5000000000000000000000", first["price_wei"])
	assert.Equal(t, "5000", first["price_formatted"])
	assert.Equal(t, "HEMI", first["payment_token_symbol"])
	assert.Equal(t, "0xlist7", first["tx_hash"])
}

func TestGetUserPositions(t *testing.T) {
	w, body := doRequest(t, newTestRouter(seededStore()), "/api/v1/users/"+testSeller+"/positions")

	require.Equal(t, http.StatusOK, w.Code)
	items := body["items"].([]any)
	require.Len(t, items, 1)

	position := items[0].(map[string]any)
	assert.EqualValues(t, 7, position["token_id"])
	assert.Equal(t, testSeller, position["owner_address"])

	listing := position["listing"].(map[string]any)
	assert.Equal(t, "active", listing["status"])
	assert.Equal(t, "5000000000000000000000", listing["price_wei"])
	assert.InDelta(t, 125.0, listing["price_usd"].(float64), 1e-9)
}

func TestGetUserPositionsOmitsExpiredListing(t *testing.T) {
	s := seededStore()
	s.active[0].Listing.DeadlineTimestamp = testNow.Add(-time.Minute)

	w, body := doRequest(t, newTestRouter(s), "/api/v1/users/"+testSeller+"/positions")

	require.Equal(t, http.StatusOK, w.Code)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].(map[string]any)["listing"])
}

func TestGetUserPositionsEmptyForUnknownOwner(t *testing.T) {
	w, body := doRequest(t, newTestRouter(seededStore()), "/api/v1/users/"+testBuyer+"/positions")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["items"])
}

func TestGetUserListings(t *testing.T) {
	w, body := doRequest(t, newTestRouter(seededStore()), "/api/v1/users/"+testSeller+"/listings")

	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, body["total"])

	items := body["items"].([]any)
	require.Len(t, items, 2)
	statuses := []string{
		items[0].(map[string]any)["status"].(string),
		items[1].(map[string]any)["status"].(string),
	}
	assert.Contains(t, statuses, "active")
	assert.Contains(t, statuses, "sold")
}

func TestGetUserListingsRejectsBadAddress(t *testing.T) {
	w, _ := doRequest(t, newTestRouter(seededStore()), "/api/v1/users/not-an-address/listings")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetActivityFiltersByType(t *testing.T) {
	w, body := doRequest(t, newTestRouter(seededStore()), "/api/v1/activity?type=lock")

	require.Equal(t, http.StatusOK, w.Code)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "lock_created", items[0].(map[string]any)["event_name"])
}

func TestGetActivityRejectsUnknownType(t *testing.T) {
	w, _ := doRequest(t, newTestRouter(seededStore()), "/api/v1/activity?type=mint")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetStats(t *testing.T) {
	w, body := doRequest(t, newTestRouter(seededStore()), "/api/v1/stats/7d")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "7d", body["period"])
	assert.EqualValues(t, 1, body["sales_count"])
	// 4000 HEMI at the 0.020 sample in effect at sale time
	assert.InDelta(t, 80.0, body["total_usd_volume"].(float64), 1e-9)
	assert.InDelta(t, 10000.0, body["total_hemi_locked"].(float64), 1e-9)
}

func TestGetStatsRejectsBadPeriod(t *testing.T) {
	w, _ := doRequest(t, newTestRouter(seededStore()), "/api/v1/stats/fortnight")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetPrice(t *testing.T) {
	w, body := doRequest(t, newTestRouter(seededStore()), "/api/v1/price")

	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 0.025, body["price_usd"].(float64), 1e-9)
	// 0.020 was the sample in effect 24h ago
	assert.InDelta(t, (0.025-0.020)/0.020*100, body["change_24h"].(float64), 1e-9)
	assert.NotEmpty(t, body["sparkline"])
	assert.NotEmpty(t, body["last_updated"])
}

func TestGetPriceWithoutSamples(t *testing.T) {
	s := seededStore()
	s.samples = nil

	w, body := doRequest(t, newTestRouter(s), "/api/v1/price")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, body["price_usd"])
	assert.Nil(t, body["change_24h"])
	assert.Empty(t, body["sparkline"])
}

func TestHealthCheck(t *testing.T) {
	w, body := doRequest(t, newTestRouter(seededStore()), "/health")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}
