package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vehemi/marketplace-indexer/internal/domain"
	"github.com/vehemi/marketplace-indexer/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// Migrate creates/updates all mirror tables plus the partial unique
// index guaranteeing at most one active listing per token, which GORM
// tags cannot express.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&schema.Position{},
		&schema.Listing{},
		&schema.PaymentToken{},
		&schema.PriceSample{},
		&schema.MarketplaceEvent{},
		&schema.KeyValueStore{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_listings_one_active_per_token
		ON listings (token_id) WHERE status = 'active'`).Error
	if err != nil {
		return fmt.Errorf("failed to create active-listing index: %w", err)
	}

	return nil
}

// ConfigureConnectionPool configures the connection pool settings for a
// GORM database connection. Zero values fall back to defaults.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool
// settings into safe values.
//
// Defaults (when zero):
//   - MaxOpenConns: 20
//   - MaxIdleConns: 5
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

// ApplyEvent atomically records the event and runs the projection in one
// transaction. The unique (tx_hash, log_index) index is the idempotency
// gate: a conflicting insert affects zero rows and the projection is
// skipped entirely.
func (s *pgStore) ApplyEvent(ctx context.Context, event *schema.MarketplaceEvent, project func(ctx context.Context, tx Store) error) (bool, error) {
	applied := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tx_hash"}, {Name: "log_index"}},
			DoNothing: true,
		}).Create(event)
		if res.Error != nil {
			return fmt.Errorf("failed to record event: %w", res.Error)
		}

		if res.RowsAffected == 0 {
			// Already applied; idempotent no-op
			return nil
		}

		applied = true
		if project == nil {
			return nil
		}
		return project(ctx, &pgStore{db: tx})
	})
	if err != nil {
		return false, err
	}

	return applied, nil
}

// GetPosition retrieves a position by token id
func (s *pgStore) GetPosition(ctx context.Context, tokenID uint64) (*schema.Position, error) {
	var position schema.Position
	err := s.db.WithContext(ctx).Where("token_id = ?", tokenID).First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	return &position, nil
}

// ListPositionsByOwner retrieves all positions held by an address
func (s *pgStore) ListPositionsByOwner(ctx context.Context, owner string) ([]*schema.Position, error) {
	var positions []*schema.Position
	err := s.db.WithContext(ctx).
		Where("owner_address = ?", domain.NormalizeAddress(owner)).
		Order("token_id ASC").
		Find(&positions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list positions by owner: %w", err)
	}
	return positions, nil
}

// UpsertPositionLock creates the position on first sight, or refreshes
// the mutable lock attributes. locked_amount_wei is deliberately absent
// from the conflict assignment list: it is immutable once set.
func (s *pgStore) UpsertPositionLock(ctx context.Context, position *schema.Position) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "token_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"lock_end_timestamp", "transferable", "status", "updated_at",
		}),
	}).Create(position).Error
	if err != nil {
		return fmt.Errorf("failed to upsert position lock: %w", err)
	}
	return nil
}

// UpdatePositionOwner records an ownership change
func (s *pgStore) UpdatePositionOwner(ctx context.Context, tokenID uint64, owner string, at time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&schema.Position{}).
		Where("token_id = ?", tokenID).
		Updates(map[string]interface{}{
			"owner_address": domain.NormalizeAddress(owner),
			"updated_at":    at,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update position owner: %w", err)
	}
	return nil
}

// ClosePosition marks a position closed with the given closure type
func (s *pgStore) ClosePosition(ctx context.Context, tokenID uint64, closureType string, at time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&schema.Position{}).
		Where("token_id = ?", tokenID).
		Updates(map[string]interface{}{
			"status":       domain.PositionStatusClosed,
			"closure_type": closureType,
			"transferable": false,
			"updated_at":   at,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to close position: %w", err)
	}
	return nil
}

// GetActiveListing retrieves the active listing row for a token
// regardless of deadline
func (s *pgStore) GetActiveListing(ctx context.Context, tokenID uint64) (*schema.Listing, error) {
	var listing schema.Listing
	err := s.db.WithContext(ctx).
		Where("token_id = ? AND status = ?", tokenID, domain.ListingStatusActive).
		First(&listing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active listing: %w", err)
	}
	return &listing, nil
}

// GetBuyableListing retrieves the active, not-yet-expired listing for a token
func (s *pgStore) GetBuyableListing(ctx context.Context, tokenID uint64, now time.Time) (*schema.Listing, error) {
	var listing schema.Listing
	err := s.db.WithContext(ctx).
		Preload("Position").
		Preload("PaymentToken").
		Where("token_id = ? AND status = ? AND deadline_timestamp > ?", tokenID, domain.ListingStatusActive, now).
		First(&listing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get buyable listing: %w", err)
	}
	return &listing, nil
}

// CreateListing inserts a new listing row
func (s *pgStore) CreateListing(ctx context.Context, listing *schema.Listing) error {
	if err := s.db.WithContext(ctx).Create(listing).Error; err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}
	return nil
}

// SupersedeActiveListings force-cancels any active rows for the token
// and flags them for reconciliation. Used when an NFTListed event
// arrives while the mirror still holds an active listing, which correct
// contract semantics should never produce.
func (s *pgStore) SupersedeActiveListings(ctx context.Context, tokenID uint64, at time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&schema.Listing{}).
		Where("token_id = ? AND status = ?", tokenID, domain.ListingStatusActive).
		Updates(map[string]interface{}{
			"status":                 domain.ListingStatusCancelled,
			"cancelled_at_timestamp": at,
			"reconcile_flag":         true,
			"reconcile_id":           ulid.Make().String(),
			"updated_at":             at,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to supersede active listings: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// MarkListingSold transitions the active listing to sold
func (s *pgStore) MarkListingSold(ctx context.Context, tokenID uint64, buyer string, soldAt time.Time, saleTxHash string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&schema.Listing{}).
		Where("token_id = ? AND status = ?", tokenID, domain.ListingStatusActive).
		Updates(map[string]interface{}{
			"status":                domain.ListingStatusSold,
			"buyer_address":         domain.NormalizeAddress(buyer),
			"sold_at_timestamp":     soldAt,
			"sale_transaction_hash": saleTxHash,
			"updated_at":            soldAt,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark listing sold: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// MarkListingCancelled transitions the active listing to cancelled
func (s *pgStore) MarkListingCancelled(ctx context.Context, tokenID uint64, cancelledAt time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&schema.Listing{}).
		Where("token_id = ? AND status = ?", tokenID, domain.ListingStatusActive).
		Updates(map[string]interface{}{
			"status":                 domain.ListingStatusCancelled,
			"cancelled_at_timestamp": cancelledAt,
			"updated_at":             cancelledAt,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark listing cancelled: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// latestPriceSubquery yields the most recent usd_price for a listing's
// payment token, for SQL-side USD sorting
const latestPriceSubquery = `(SELECT ph.usd_price FROM price_history ph
	WHERE ph.token_address = listings.payment_token_address
	ORDER BY ph.recorded_at DESC LIMIT 1)`

// ListActiveListings retrieves buyable listings with their positions and
// payment tokens. USD sorts are computed against the latest price sample
// in SQL; listings without any sample sort last.
func (s *pgStore) ListActiveListings(ctx context.Context, filter ListingFilter, now time.Time) ([]*SoldListing, int64, error) {
	base := s.db.WithContext(ctx).
		Model(&schema.Listing{}).
		Joins("LEFT JOIN positions ON positions.token_id = listings.token_id").
		Where("listings.status = ? AND listings.deadline_timestamp > ?", domain.ListingStatusActive, now)

	if filter.MinPriceWei != nil {
		base = base.Where("listings.price_wei >= ?::numeric", *filter.MinPriceWei)
	}
	if filter.MaxPriceWei != nil {
		base = base.Where("listings.price_wei <= ?::numeric", *filter.MaxPriceWei)
	}
	if filter.MinLockedAmountWei != nil {
		base = base.Where("positions.locked_amount_wei >= ?::numeric", *filter.MinLockedAmountWei)
	}
	if filter.MaxLockedAmountWei != nil {
		base = base.Where("positions.locked_amount_wei <= ?::numeric", *filter.MaxLockedAmountWei)
	}
	if filter.UnlockAfter != nil {
		base = base.Where("positions.lock_end_timestamp >= ?", *filter.UnlockAfter)
	}
	if filter.UnlockBefore != nil {
		base = base.Where("positions.lock_end_timestamp <= ?", *filter.UnlockBefore)
	}
	if len(filter.PaymentTokens) > 0 {
		base = base.Where("listings.payment_token_address IN ?", domain.NormalizeAddresses(filter.PaymentTokens))
	}
	if filter.Seller != nil {
		base = base.Where("listings.seller_address = ?", domain.NormalizeAddress(*filter.Seller))
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count active listings: %w", err)
	}

	dir := "ASC"
	if filter.SortDesc {
		dir = "DESC"
	}
	var orderExpr string
	switch filter.Sort {
	case ListingSortUnitPriceUSD:
		orderExpr = fmt.Sprintf(`(listings.price_formatted::numeric * %s) / NULLIF(positions.locked_amount_formatted::numeric, 0) %s NULLS LAST`, latestPriceSubquery, dir)
	case ListingSortPriceUSD:
		orderExpr = fmt.Sprintf(`listings.price_formatted::numeric * %s %s NULLS LAST`, latestPriceSubquery, dir)
	case ListingSortTokenID:
		orderExpr = fmt.Sprintf("listings.token_id %s", dir)
	default:
		orderExpr = fmt.Sprintf("listings.created_at_timestamp %s", dir)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	var listings []*schema.Listing
	err := base.
		Preload("Position").
		Preload("PaymentToken").
		Order(orderExpr).
		Limit(limit).
		Offset(filter.Offset).
		Find(&listings).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list active listings: %w", err)
	}

	return attachAssociations(listings), total, nil
}

// ListListingsBySeller retrieves all listings created by an address
func (s *pgStore) ListListingsBySeller(ctx context.Context, seller string) ([]*schema.Listing, error) {
	var listings []*schema.Listing
	err := s.db.WithContext(ctx).
		Where("seller_address = ?", domain.NormalizeAddress(seller)).
		Order("created_at_timestamp DESC").
		Find(&listings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list listings by seller: %w", err)
	}
	return listings, nil
}

// ListSoldListings retrieves sold listings with position and payment token
func (s *pgStore) ListSoldListings(ctx context.Context, since *time.Time) ([]*SoldListing, error) {
	q := s.db.WithContext(ctx).
		Preload("Position").
		Preload("PaymentToken").
		Where("status = ?", domain.ListingStatusSold)
	if since != nil {
		q = q.Where("sold_at_timestamp >= ?", *since)
	}

	var listings []*schema.Listing
	if err := q.Order("sold_at_timestamp DESC").Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("failed to list sold listings: %w", err)
	}

	return attachAssociations(listings), nil
}

// ListListingsByStatus retrieves listings in a given mirrored status, newest first
func (s *pgStore) ListListingsByStatus(ctx context.Context, status domain.ListingStatus, limit, offset int) ([]*SoldListing, error) {
	if limit <= 0 {
		limit = 50
	}

	var listings []*schema.Listing
	err := s.db.WithContext(ctx).
		Preload("Position").
		Preload("PaymentToken").
		Where("status = ?", status).
		Order("created_at_timestamp DESC").
		Limit(limit).
		Offset(offset).
		Find(&listings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list listings by status: %w", err)
	}

	return attachAssociations(listings), nil
}

func attachAssociations(listings []*schema.Listing) []*SoldListing {
	out := make([]*SoldListing, 0, len(listings))
	for _, l := range listings {
		out = append(out, &SoldListing{
			Listing:      *l,
			Position:     l.Position,
			PaymentToken: l.PaymentToken,
		})
	}
	return out
}

// GetPaymentToken retrieves a payment token by address
func (s *pgStore) GetPaymentToken(ctx context.Context, address string) (*schema.PaymentToken, error) {
	var token schema.PaymentToken
	err := s.db.WithContext(ctx).
		Where("token_address = ?", domain.NormalizeAddress(address)).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment token: %w", err)
	}
	return &token, nil
}

// ListPaymentTokens retrieves registered payment tokens
func (s *pgStore) ListPaymentTokens(ctx context.Context, activeOnly bool) ([]*schema.PaymentToken, error) {
	q := s.db.WithContext(ctx).Order("added_at_timestamp ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}

	var tokens []*schema.PaymentToken
	if err := q.Find(&tokens).Error; err != nil {
		return nil, fmt.Errorf("failed to list payment tokens: %w", err)
	}
	return tokens, nil
}

// RegisterPaymentToken inserts a payment token if not already present
func (s *pgStore) RegisterPaymentToken(ctx context.Context, token *schema.PaymentToken) error {
	token.TokenAddress = domain.NormalizeAddress(token.TokenAddress)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token_address"}},
		DoNothing: true,
	}).Create(token).Error
	if err != nil {
		return fmt.Errorf("failed to register payment token: %w", err)
	}
	return nil
}

// InsertPriceSample appends a price sample; duplicates are ignored
func (s *pgStore) InsertPriceSample(ctx context.Context, sample *schema.PriceSample) error {
	sample.TokenAddress = domain.NormalizeAddress(sample.TokenAddress)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token_address"}, {Name: "recorded_at"}},
		DoNothing: true,
	}).Create(sample).Error
	if err != nil {
		return fmt.Errorf("failed to insert price sample: %w", err)
	}
	return nil
}

// LatestPriceSample retrieves the most recent sample for a token
func (s *pgStore) LatestPriceSample(ctx context.Context, tokenAddress string) (*schema.PriceSample, error) {
	var sample schema.PriceSample
	err := s.db.WithContext(ctx).
		Where("token_address = ?", domain.NormalizeAddress(tokenAddress)).
		Order("recorded_at DESC").
		First(&sample).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest price sample: %w", err)
	}
	return &sample, nil
}

// PriceSampleAsOf retrieves the sample with the largest recorded_at <= at
func (s *pgStore) PriceSampleAsOf(ctx context.Context, tokenAddress string, at time.Time) (*schema.PriceSample, error) {
	var sample schema.PriceSample
	err := s.db.WithContext(ctx).
		Where("token_address = ? AND recorded_at <= ?", domain.NormalizeAddress(tokenAddress), at).
		Order("recorded_at DESC").
		First(&sample).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get price sample as of %s: %w", at, err)
	}
	return &sample, nil
}

// SparklinePoints returns bucketed average prices between since and now,
// oldest first
func (s *pgStore) SparklinePoints(ctx context.Context, tokenAddress string, since time.Time, bucket time.Duration) ([]float64, error) {
	secs := int64(bucket.Seconds())
	if secs <= 0 {
		secs = 3600
	}

	var rows []struct {
		AvgPrice float64 `gorm:"column:avg_price"`
		Bucket   int64   `gorm:"column:bucket"`
	}
	err := s.db.WithContext(ctx).Raw(`
		SELECT AVG(usd_price) AS avg_price,
		       FLOOR(EXTRACT(EPOCH FROM recorded_at) / ?) AS bucket
		FROM price_history
		WHERE token_address = ? AND recorded_at >= ?
		GROUP BY bucket
		ORDER BY bucket ASC`,
		secs, domain.NormalizeAddress(tokenAddress), since,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get sparkline points: %w", err)
	}

	points := make([]float64, 0, len(rows))
	for _, r := range rows {
		points = append(points, r.AvgPrice)
	}
	return points, nil
}

// ListEventsByToken retrieves a token's decoded event history
func (s *pgStore) ListEventsByToken(ctx context.Context, tokenID uint64, limit, offset int, desc bool) ([]*schema.MarketplaceEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	order := "block_number ASC, log_index ASC"
	if desc {
		order = "block_number DESC, log_index DESC"
	}

	var events []*schema.MarketplaceEvent
	err := s.db.WithContext(ctx).
		Where("token_id = ?", tokenID).
		Order(order).
		Limit(limit).
		Offset(offset).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list events by token: %w", err)
	}
	return events, nil
}

// ListRecentEvents retrieves the newest events across all tokens
func (s *pgStore) ListRecentEvents(ctx context.Context, names []domain.EventName, limit, offset int) ([]*schema.MarketplaceEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	q := s.db.WithContext(ctx)
	if len(names) > 0 {
		q = q.Where("event_name IN ?", names)
	}

	var events []*schema.MarketplaceEvent
	err := q.
		Order("block_number DESC, log_index DESC").
		Limit(limit).
		Offset(offset).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent events: %w", err)
	}
	return events, nil
}

// GetBlockCursor retrieves the last published block for a chain
func (s *pgStore) GetBlockCursor(ctx context.Context, chain string) (uint64, error) {
	key := fmt.Sprintf("block_cursor:%s", chain)

	var kv schema.KeyValueStore
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&kv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get block cursor: %w", err)
	}

	blockNumber, err := strconv.ParseUint(kv.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse block cursor: %w", err)
	}

	return blockNumber, nil
}

// SetBlockCursor stores the last published block for a chain
func (s *pgStore) SetBlockCursor(ctx context.Context, chain string, blockNumber uint64) error {
	kv := schema.KeyValueStore{
		Key:   fmt.Sprintf("block_cursor:%s", chain),
		Value: strconv.FormatUint(blockNumber, 10),
	}

	if err := s.db.WithContext(ctx).Save(&kv).Error; err != nil {
		return fmt.Errorf("failed to set block cursor: %w", err)
	}

	return nil
}

// GetWatermark retrieves the last durably-applied ingestion position
func (s *pgStore) GetWatermark(ctx context.Context, chain string) (*Watermark, error) {
	key := fmt.Sprintf("ingest_watermark:%s", chain)

	var kv schema.KeyValueStore
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&kv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get watermark: %w", err)
	}

	parts := strings.SplitN(kv.Value, ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("malformed watermark value: %q", kv.Value)
	}
	blockNumber, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse watermark block: %w", err)
	}
	logIndex, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to parse watermark log index: %w", err)
	}

	return &Watermark{BlockNumber: blockNumber, LogIndex: uint(logIndex)}, nil
}

// SetWatermark stores the last durably-applied ingestion position
func (s *pgStore) SetWatermark(ctx context.Context, chain string, w Watermark) error {
	kv := schema.KeyValueStore{
		Key:   fmt.Sprintf("ingest_watermark:%s", chain),
		Value: fmt.Sprintf("%d:%d", w.BlockNumber, w.LogIndex),
	}

	if err := s.db.WithContext(ctx).Save(&kv).Error; err != nil {
		return fmt.Errorf("failed to set watermark: %w", err)
	}

	return nil
}
