package rest

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vehemi/marketplace-indexer/internal/domain"
	"github.com/vehemi/marketplace-indexer/internal/store"
)

const MAX_PAGE_SIZE = 100

type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

func (o Order) Desc() bool {
	return o == OrderDesc
}

// ListListingsQueryParams holds query parameters for GET /listings
type ListListingsQueryParams struct {
	MinPrice      string `form:"min_price"`
	MaxPrice      string `form:"max_price"`
	MinLocked     string `form:"min_locked"`
	MaxLocked     string `form:"max_locked"`
	UnlockAfter   string `form:"unlock_after"`
	UnlockBefore  string `form:"unlock_before"`
	PaymentTokens string `form:"payment_token"`
	Seller        string `form:"seller"`

	Sort  string `form:"sort,default=created_at"`
	Order Order  `form:"order,default=desc"`

	Limit  int `form:"limit,default=20"`
	Offset int `form:"offset,default=0"`
}

// ParseListListingsQuery parses and validates GET /listings parameters
// into a store filter
func ParseListListingsQuery(c *gin.Context) (*store.ListingFilter, error) {
	var params ListListingsQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, err
	}

	if params.Limit <= 0 || params.Limit > MAX_PAGE_SIZE {
		params.Limit = 20
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	filter := &store.ListingFilter{
		Limit:    params.Limit,
		Offset:   params.Offset,
		SortDesc: params.Order.Desc(),
	}

	switch params.Sort {
	case "unit_price_usd":
		filter.Sort = store.ListingSortUnitPriceUSD
	case "price_usd":
		filter.Sort = store.ListingSortPriceUSD
	case "token_id":
		filter.Sort = store.ListingSortTokenID
	case "created_at", "":
		filter.Sort = store.ListingSortCreatedAt
	default:
		return nil, fmt.Errorf("unknown sort key: %q", params.Sort)
	}

	var err error
	if filter.MinPriceWei, err = parseWeiParam("min_price", params.MinPrice); err != nil {
		return nil, err
	}
	if filter.MaxPriceWei, err = parseWeiParam("max_price", params.MaxPrice); err != nil {
		return nil, err
	}
	if filter.MinLockedAmountWei, err = parseWeiParam("min_locked", params.MinLocked); err != nil {
		return nil, err
	}
	if filter.MaxLockedAmountWei, err = parseWeiParam("max_locked", params.MaxLocked); err != nil {
		return nil, err
	}
	if filter.UnlockAfter, err = parseTimeParam("unlock_after", params.UnlockAfter); err != nil {
		return nil, err
	}
	if filter.UnlockBefore, err = parseTimeParam("unlock_before", params.UnlockBefore); err != nil {
		return nil, err
	}

	if params.PaymentTokens != "" {
		for _, address := range strings.Split(params.PaymentTokens, ",") {
			address = strings.TrimSpace(address)
			if address == "" {
				continue
			}
			filter.PaymentTokens = append(filter.PaymentTokens, domain.NormalizeAddress(address))
		}
	}

	if params.Seller != "" {
		seller := domain.NormalizeAddress(params.Seller)
		filter.Seller = &seller
	}

	return filter, nil
}

// ActivityQueryParams holds query parameters for GET /activity
type ActivityQueryParams struct {
	Types   string `form:"type"`
	TokenID string `form:"token_id"`
	Limit   int    `form:"limit,default=50"`
	Offset  int    `form:"offset,default=0"`
}

// ParseActivityQuery parses GET /activity parameters
func ParseActivityQuery(c *gin.Context) (names []domain.EventName, tokenID *uint64, limit, offset int, err error) {
	var params ActivityQueryParams
	if err = c.ShouldBindQuery(&params); err != nil {
		return nil, nil, 0, 0, err
	}

	if params.Limit <= 0 || params.Limit > MAX_PAGE_SIZE {
		params.Limit = 50
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	if params.Types != "" {
		for _, raw := range strings.Split(params.Types, ",") {
			switch strings.TrimSpace(raw) {
			case "list":
				names = append(names, domain.EventNFTListed)
			case "sale":
				names = append(names, domain.EventNFTSold)
			case "cancel":
				names = append(names, domain.EventListingCancelled)
			case "transfer":
				names = append(names, domain.EventTransfer)
			case "lock":
				names = append(names, domain.EventLockCreated)
			case "":
			default:
				return nil, nil, 0, 0, fmt.Errorf("unknown activity type: %q", raw)
			}
		}
	}

	if params.TokenID != "" {
		id, parseErr := strconv.ParseUint(params.TokenID, 10, 64)
		if parseErr != nil {
			return nil, nil, 0, 0, fmt.Errorf("invalid token_id: %q", params.TokenID)
		}
		tokenID = &id
	}

	return names, tokenID, params.Limit, params.Offset, nil
}

// ParseStatsPeriod parses a stats period path segment: "<N>d" for a
// trailing window in days, or "total" for all time (0)
func ParseStatsPeriod(period string) (int, error) {
	if period == "total" {
		return 0, nil
	}

	if !strings.HasSuffix(period, "d") {
		return 0, fmt.Errorf("invalid period: %q", period)
	}
	days, err := strconv.Atoi(strings.TrimSuffix(period, "d"))
	if err != nil || days <= 0 {
		return 0, fmt.Errorf("invalid period: %q", period)
	}

	return days, nil
}

func parseWeiParam(name, value string) (*string, error) {
	if value == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(value, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid %s: %q", name, value)
	}
	s := v.String()
	return &s, nil
}

func parseTimeParam(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	// RFC3339 or unix seconds
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		t := time.Unix(secs, 0).UTC()
		return &t, nil
	}
	return nil, fmt.Errorf("invalid %s: %q", name, value)
}
