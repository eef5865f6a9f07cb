package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vehemi/marketplace-indexer/internal/adapter"
)

// PriceFeed fetches the current USD price of a coin from an upstream
// oracle
type PriceFeed interface {
	// FetchPrice returns the current USD price
	FetchPrice(ctx context.Context) (float64, error)
}

// FeedConfig holds the configuration for the CoinGecko price feed
type FeedConfig struct {
	APIURL  string
	APIKey  string
	CoinID  string
	Timeout time.Duration
}

type coingeckoFeed struct {
	client *resty.Client
	config FeedConfig
	json   adapter.JSON
}

// NewCoinGeckoFeed creates a price feed backed by the CoinGecko simple
// price endpoint
func NewCoinGeckoFeed(cfg FeedConfig, jsonAdapter adapter.JSON) PriceFeed {
	client := resty.New()
	client.SetBaseURL(cfg.APIURL)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	if cfg.APIKey != "" {
		client.SetHeader("x-cg-demo-api-key", cfg.APIKey)
	}

	return &coingeckoFeed{
		client: client,
		config: cfg,
		json:   jsonAdapter,
	}
}

// FetchPrice returns the current USD price of the configured coin
func (f *coingeckoFeed) FetchPrice(ctx context.Context) (float64, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParam("ids", f.config.CoinID).
		SetQueryParam("vs_currencies", "usd").
		Get("/simple/price")
	if err != nil {
		return 0, fmt.Errorf("failed to fetch price: %w", err)
	}

	if resp.IsError() {
		return 0, fmt.Errorf("price feed returned status %d", resp.StatusCode())
	}

	var payload map[string]map[string]float64
	if err := f.json.Unmarshal(resp.Body(), &payload); err != nil {
		return 0, fmt.Errorf("failed to parse price response: %w", err)
	}

	price, ok := payload[f.config.CoinID]["usd"]
	if !ok {
		return 0, fmt.Errorf("price feed response missing %s/usd", f.config.CoinID)
	}
	if price <= 0 {
		return 0, fmt.Errorf("price feed returned non-positive price: %f", price)
	}

	return price, nil
}
