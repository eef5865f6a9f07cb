package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vehemi/marketplace-indexer/internal/adapter"
	"github.com/vehemi/marketplace-indexer/internal/api/rest/dto"
	"github.com/vehemi/marketplace-indexer/internal/domain"
	"github.com/vehemi/marketplace-indexer/internal/logger"
	"github.com/vehemi/marketplace-indexer/internal/marketplace"
	"github.com/vehemi/marketplace-indexer/internal/pricing"
	"github.com/vehemi/marketplace-indexer/internal/store"
	"github.com/vehemi/marketplace-indexer/internal/store/schema"
	"github.com/vehemi/marketplace-indexer/internal/valuation"
)

const (
	sparklineWindow = 24 * time.Hour
	sparklineBucket = 4 * time.Hour
)

// Handler defines the interface for REST API handlers
type Handler interface {
	// ListListings retrieves buyable listings with filtering, sorting
	// and pagination
	// GET /api/v1/listings?min_price=<wei>&max_price=<wei>&min_locked=<wei>&max_locked=<wei>&unlock_after=<ts>&unlock_before=<ts>&payment_token=<addr1>,<addr2>&seller=<addr>&sort=<key>&order=<order>&limit=<limit>&offset=<offset>
	ListListings(c *gin.Context)

	// GetListing retrieves the latest listing for a token with its
	// read-time effective status
	// GET /api/v1/listings/:tokenId
	GetListing(c *gin.Context)

	// GetPosition retrieves a locked position by token id
	// GET /api/v1/positions/:tokenId
	GetPosition(c *gin.Context)

	// GetPositionEvents retrieves a token's event history, newest first
	// GET /api/v1/positions/:tokenId/events?limit=<limit>&offset=<offset>
	GetPositionEvents(c *gin.Context)

	// GetUserPositions retrieves the positions held by an address, each
	// with its buyable listing when one exists
	// GET /api/v1/users/:address/positions
	GetUserPositions(c *gin.Context)

	// GetUserListings retrieves the listings created by an address,
	// newest first
	// GET /api/v1/users/:address/listings
	GetUserListings(c *gin.Context)

	// GetActivity retrieves recent marketplace events across all tokens
	// GET /api/v1/activity?type=<list,sale,cancel,transfer,lock>&token_id=<id>&limit=<limit>&offset=<offset>
	GetActivity(c *gin.Context)

	// GetStats retrieves aggregated sale statistics for a trailing
	// window ("7d", "30d") or all time ("total")
	// GET /api/v1/stats/:period
	GetStats(c *gin.Context)

	// GetPrice retrieves the current HEMI price with 24h change and a
	// sparkline
	// GET /api/v1/price
	GetPrice(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	store     store.Store
	pricing   *pricing.Service
	valuation *valuation.Engine
	hemiToken string
	clock     adapter.Clock
}

// NewHandler creates a new REST API handler
func NewHandler(st store.Store, pricingService *pricing.Service, valuationEngine *valuation.Engine, hemiToken string, clock adapter.Clock) Handler {
	return &handler{
		store:     st,
		pricing:   pricingService,
		valuation: valuationEngine,
		hemiToken: domain.NormalizeAddress(hemiToken),
		clock:     clock,
	}
}

// ListListings retrieves buyable listings with filtering, sorting and pagination
func (h *handler) ListListings(c *gin.Context) {
	filter, err := ParseListListingsQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	now := h.clock.Now()
	rows, total, err := h.store.ListActiveListings(c.Request.Context(), *filter, now)
	if err != nil {
		respondInternalError(c, err, "Failed to list listings")
		return
	}

	response := dto.ListingListResponse{
		Listings: make([]dto.ListingResponse, 0, len(rows)),
		Offset:   &filter.Offset,
		Total:    uint64(total),
	}
	for _, row := range rows {
		val := h.valuate(c, row)
		response.Listings = append(response.Listings, *dto.MapListingToDTO(row, marketplace.EffectiveStatus(&row.Listing, now), val))
	}

	c.JSON(http.StatusOK, response)
}

// GetListing retrieves the latest listing for a token
func (h *handler) GetListing(c *gin.Context) {
	tokenID, ok := parseTokenIDParam(c)
	if !ok {
		return
	}

	listing, err := h.store.GetActiveListing(c.Request.Context(), tokenID)
	if err != nil {
		respondInternalError(c, err, "Failed to get listing")
		return
	}
	if listing == nil {
		respondNotFound(c, "Listing not found")
		return
	}

	row := &store.SoldListing{Listing: *listing}
	if row.Position, err = h.store.GetPosition(c.Request.Context(), tokenID); err != nil {
		respondInternalError(c, err, "Failed to get listing")
		return
	}
	if row.PaymentToken, err = h.store.GetPaymentToken(c.Request.Context(), listing.PaymentTokenAddress); err != nil {
		respondInternalError(c, err, "Failed to get listing")
		return
	}

	val := h.valuate(c, row)
	c.JSON(http.StatusOK, dto.MapListingToDTO(row, marketplace.EffectiveStatus(listing, h.clock.Now()), val))
}

// GetPosition retrieves a locked position by token id
func (h *handler) GetPosition(c *gin.Context) {
	tokenID, ok := parseTokenIDParam(c)
	if !ok {
		return
	}

	position, err := h.store.GetPosition(c.Request.Context(), tokenID)
	if err != nil {
		respondInternalError(c, err, "Failed to get position")
		return
	}
	if position == nil {
		respondNotFound(c, "Position not found")
		return
	}

	c.JSON(http.StatusOK, dto.MapPositionToDTO(position))
}

// GetPositionEvents retrieves a token's event history, newest first
func (h *handler) GetPositionEvents(c *gin.Context) {
	tokenID, ok := parseTokenIDParam(c)
	if !ok {
		return
	}

	var params ActivityQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		respondValidationError(c, err.Error())
		return
	}
	if params.Limit <= 0 || params.Limit > MAX_PAGE_SIZE {
		params.Limit = 50
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	events, err := h.store.ListEventsByToken(c.Request.Context(), tokenID, params.Limit, params.Offset, true)
	if err != nil {
		respondInternalError(c, err, "Failed to get position events")
		return
	}

	response, err := h.mapEventList(c.Request.Context(), events, params.Offset)
	if err != nil {
		respondInternalError(c, err, "Failed to get position events")
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetUserPositions retrieves the positions held by an address
func (h *handler) GetUserPositions(c *gin.Context) {
	owner, ok := parseAddressParam(c)
	if !ok {
		return
	}

	positions, err := h.store.ListPositionsByOwner(c.Request.Context(), owner)
	if err != nil {
		respondInternalError(c, err, "Failed to get user positions")
		return
	}

	now := h.clock.Now()
	response := dto.UserPositionsResponse{Positions: make([]dto.UserPositionResponse, 0, len(positions))}
	for _, position := range positions {
		item := dto.UserPositionResponse{PositionResponse: *dto.MapPositionToDTO(position)}

		listing, err := h.store.GetBuyableListing(c.Request.Context(), position.TokenID, now)
		if err != nil {
			respondInternalError(c, err, "Failed to get user positions")
			return
		}
		if listing != nil {
			row := &store.SoldListing{Listing: *listing, Position: listing.Position, PaymentToken: listing.PaymentToken}
			item.Listing = dto.MapListingToDTO(row, marketplace.EffectiveStatus(listing, now), h.valuate(c, row))
		}

		response.Positions = append(response.Positions, item)
	}

	c.JSON(http.StatusOK, response)
}

// GetUserListings retrieves the listings created by an address
func (h *handler) GetUserListings(c *gin.Context) {
	seller, ok := parseAddressParam(c)
	if !ok {
		return
	}

	listings, err := h.store.ListListingsBySeller(c.Request.Context(), seller)
	if err != nil {
		respondInternalError(c, err, "Failed to get user listings")
		return
	}

	now := h.clock.Now()
	response := dto.ListingListResponse{
		Listings: make([]dto.ListingResponse, 0, len(listings)),
		Total:    uint64(len(listings)),
	}
	for _, listing := range listings {
		row := &store.SoldListing{Listing: *listing}
		response.Listings = append(response.Listings, *dto.MapListingToDTO(row, marketplace.EffectiveStatus(listing, now), nil))
	}

	c.JSON(http.StatusOK, response)
}

// GetActivity retrieves recent marketplace events across all tokens
func (h *handler) GetActivity(c *gin.Context) {
	names, tokenID, limit, offset, err := ParseActivityQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	var events []*schema.MarketplaceEvent
	if tokenID != nil {
		rows, listErr := h.store.ListEventsByToken(c.Request.Context(), *tokenID, limit, offset, true)
		if listErr != nil {
			respondInternalError(c, listErr, "Failed to get activity")
			return
		}
		events = filterEventsByName(rows, names)
	} else {
		rows, listErr := h.store.ListRecentEvents(c.Request.Context(), names, limit, offset)
		if listErr != nil {
			respondInternalError(c, listErr, "Failed to get activity")
			return
		}
		events = rows
	}

	response, err := h.mapEventList(c.Request.Context(), events, offset)
	if err != nil {
		respondInternalError(c, err, "Failed to get activity")
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetStats retrieves aggregated sale statistics for a period
func (h *handler) GetStats(c *gin.Context) {
	period := c.Param("period")
	days, err := ParseStatsPeriod(period)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	stats, err := h.valuation.StatsForWindow(c.Request.Context(), days)
	if err != nil {
		respondInternalError(c, err, "Failed to get stats")
		return
	}

	c.JSON(http.StatusOK, dto.MapStatsToDTO(period, stats))
}

// GetPrice retrieves the current HEMI price view
func (h *handler) GetPrice(c *gin.Context) {
	ctx := c.Request.Context()
	response := dto.PriceResponse{Sparkline: []float64{}}

	quote, err := h.pricing.CurrentPrice(ctx, h.hemiToken)
	switch {
	case errors.Is(err, domain.ErrNoPriceSample):
		// no samples yet, all fields stay null
		c.JSON(http.StatusOK, response)
		return
	case err != nil:
		respondInternalError(c, err, "Failed to get price")
		return
	}
	response.PriceUsd = &quote.PriceUsd
	response.LastUpdated = &quote.RecordedAt

	if change, changeErr := h.pricing.Change24h(ctx, h.hemiToken); changeErr == nil {
		response.Change24h = &change
	} else if !errors.Is(changeErr, domain.ErrNoPriceSample) {
		respondInternalError(c, changeErr, "Failed to get price")
		return
	}

	sparkline, err := h.pricing.Sparkline(ctx, h.hemiToken, sparklineWindow, sparklineBucket)
	if err != nil {
		respondInternalError(c, err, "Failed to get price")
		return
	}
	if sparkline != nil {
		response.Sparkline = sparkline
	}

	c.JSON(http.StatusOK, response)
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":  "ok",
		"service": "vehemi-marketplace-api",
	})
}

// valuate values a listing row, tolerating pricing failures so a feed
// outage does not take listing queries down with it
func (h *handler) valuate(c *gin.Context, row *store.SoldListing) *valuation.Valuation {
	val, err := h.valuation.Valuate(c.Request.Context(), row)
	if err != nil {
		logger.WarnCtx(c.Request.Context(), "failed to valuate listing",
			zap.Uint64("token_id", row.Listing.TokenID),
			zap.Error(err))
		return nil
	}
	return val
}

func parseAddressParam(c *gin.Context) (string, bool) {
	raw := c.Param("address")
	if !common.IsHexAddress(raw) {
		respondBadRequest(c, "Invalid address")
		return "", false
	}
	return domain.NormalizeAddress(raw), true
}

func parseTokenIDParam(c *gin.Context) (uint64, bool) {
	raw := c.Param("tokenId")
	tokenID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		respondBadRequest(c, "Invalid token id")
		return 0, false
	}
	return tokenID, true
}

func filterEventsByName(events []*schema.MarketplaceEvent, names []domain.EventName) []*schema.MarketplaceEvent {
	if len(names) == 0 {
		return events
	}
	wanted := make(map[domain.EventName]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	filtered := make([]*schema.MarketplaceEvent, 0, len(events))
	for _, event := range events {
		if wanted[event.EventName] {
			filtered = append(filtered, event)
		}
	}
	return filtered
}

// mapEventList maps events to DTOs with price_formatted and
// payment_token_symbol derived from the payment token registry
func (h *handler) mapEventList(ctx context.Context, events []*schema.MarketplaceEvent, offset int) (*dto.EventListResponse, error) {
	registry, err := h.store.ListPaymentTokens(ctx, false)
	if err != nil {
		return nil, err
	}
	tokens := make(map[string]*schema.PaymentToken, len(registry))
	for _, token := range registry {
		tokens[token.TokenAddress] = token
	}

	response := &dto.EventListResponse{
		Events: make([]dto.EventResponse, 0, len(events)),
		Offset: &offset,
	}
	for _, event := range events {
		response.Events = append(response.Events, *dto.MapEventToDTO(event, tokens))
	}
	return response, nil
}
