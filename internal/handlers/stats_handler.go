package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nichesite/directory/internal/infrastructure/metrics"
)

// StatsSource exposes the in-process counters
type StatsSource interface {
	GetWriteMetrics() *metrics.WriteMetrics
	GetAPIMetrics() *metrics.APIMetrics
	GetCacheMetrics() *metrics.CacheMetrics
}

// StatsResponse is the body of the stats endpoint
type StatsResponse struct {
	Writes   map[string]uint64  `json:"relationship_writes"`
	Requests map[string]uint64  `json:"requests"`
	Errors   map[string]uint64  `json:"errors"`
	Duration map[string]float64 `json:"duration_seconds"`
	Cache    CacheStats         `json:"name_cache"`
}

// CacheStats summarizes the display-name cache
type CacheStats struct {
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	HitRate     float64 `json:"hit_rate"`
	Keys        int64   `json:"keys"`
	MemoryBytes int64   `json:"memory_bytes"`
	Evictions   uint64  `json:"evictions"`
}

// StatsHandler serves a JSON snapshot of the collector for administrators
type StatsHandler struct {
	source StatsSource
}

// NewStatsHandler creates a new StatsHandler
func NewStatsHandler(source StatsSource) *StatsHandler {
	return &StatsHandler{source: source}
}

// Stats returns write outcomes, request counters and cache statistics
func (h *StatsHandler) Stats(c echo.Context) error {
	api := h.source.GetAPIMetrics()
	cache := h.source.GetCacheMetrics()

	return c.JSON(http.StatusOK, StatsResponse{
		Writes:   h.source.GetWriteMetrics().Counts,
		Requests: api.RequestCounts,
		Errors:   api.ErrorCounts,
		Duration: api.TotalDurationSeconds,
		Cache: CacheStats{
			Hits:        cache.Hits,
			Misses:      cache.Misses,
			HitRate:     cache.HitRate,
			Keys:        cache.KeysCurrent,
			MemoryBytes: cache.MemoryBytes,
			Evictions:   cache.Evictions,
		},
	})
}
