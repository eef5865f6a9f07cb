package dto

import (
	"time"

	"github.com/vehemi/marketplace-indexer/internal/valuation"
)

// PriceResponse represents the current HEMI price view
type PriceResponse struct {
	PriceUsd    *float64   `json:"price_usd"`
	Change24h   *float64   `json:"change_24h"`
	LastUpdated *time.Time `json:"last_updated"`
	Sparkline   []float64  `json:"sparkline"`
}

// TokenStatsResponse aggregates sales per payment token
type TokenStatsResponse struct {
	SalesCount int     `json:"sales_count"`
	UsdVolume  float64 `json:"usd_volume"`
}

// StatsResponse represents aggregated sale statistics over a period
type StatsResponse struct {
	Period          string                        `json:"period"`
	SalesCount      int                           `json:"sales_count"`
	TotalHemiLocked float64                       `json:"total_hemi_locked"`
	TotalUsdVolume  float64                       `json:"total_usd_volume"`
	ByToken         map[string]TokenStatsResponse `json:"by_token"`
}

// MapStatsToDTO maps valuation.Stats to StatsResponse
func MapStatsToDTO(period string, stats *valuation.Stats) *StatsResponse {
	dto := &StatsResponse{
		Period:          period,
		SalesCount:      stats.SalesCount,
		TotalHemiLocked: stats.TotalHemiLocked,
		TotalUsdVolume:  stats.TotalUsdVolume,
		ByToken:         make(map[string]TokenStatsResponse, len(stats.ByToken)),
	}
	for symbol, ts := range stats.ByToken {
		dto.ByToken[symbol] = TokenStatsResponse{
			SalesCount: ts.SalesCount,
			UsdVolume:  ts.UsdVolume,
		}
	}
	return dto
}
