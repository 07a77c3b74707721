package aggregate

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	httperr "github.com/pricewize-lab/pricewize/internal/core/errors"
	"github.com/pricewize-lab/pricewize/internal/core/storage"
)

const (
	defaultTrendingLimit = 10
	defaultRunsLimit     = 20
	maxListLimit         = 100

	msgDeviceNotFound = "Device not found"
	msgQueryFailed    = "Failed to compute aggregate"
)

// RegisterRoutes registers the read-side query routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/devices/:slug", s.DeviceDetailHandler)
	r.GET("/v1/devices/:slug/stats", s.DeviceStatsHandler)
	r.GET("/v1/devices/:slug/prices", s.DevicePricesHandler)
	r.GET("/v1/trending", s.TrendingHandler)
	r.GET("/v1/locations", s.LocationsHandler)
	r.GET("/v1/platforms/stats", s.PlatformStatsHandler)
	r.GET("/v1/runs", s.RunsHandler)
}

// DeviceDetailHandler serves the full per-device view.
func (s *Service) DeviceDetailHandler(c *gin.Context) {
	slug := c.Param("slug")
	detail, err := s.DeviceDetail(c.Request.Context(), slug)
	if err != nil {
		writeStoreError(c, slug, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// DeviceStatsHandler serves min/max/average/median/count for one device.
func (s *Service) DeviceStatsHandler(c *gin.Context) {
	slug := c.Param("slug")
	priceStats, err := s.DeviceStats(c.Request.Context(), slug)
	if err != nil {
		writeStoreError(c, slug, err)
		return
	}
	c.JSON(http.StatusOK, priceStats)
}

// DevicePricesHandler serves the device's listings, cheapest first.
func (s *Service) DevicePricesHandler(c *gin.Context) {
	slug := c.Param("slug")
	prices, err := s.DevicePrices(c.Request.Context(), slug)
	if err != nil {
		writeStoreError(c, slug, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"listings": prices, "count": len(prices)})
}

// TrendingHandler serves the listing-count ranking.
func (s *Service) TrendingHandler(c *gin.Context) {
	limit := parseLimit(c, defaultTrendingLimit)
	trending, err := s.Trending(c.Request.Context(), limit)
	if err != nil {
		writeStoreError(c, "", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trending": trending})
}

// LocationsHandler serves the distinct observed seller locations.
func (s *Service) LocationsHandler(c *gin.Context) {
	locations, err := s.Locations(c.Request.Context())
	if err != nil {
		writeStoreError(c, "", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"locations": locations})
}

// PlatformStatsHandler serves per-platform listing counts and price stats.
func (s *Service) PlatformStatsHandler(c *gin.Context) {
	platformStats, err := s.PlatformStats(c.Request.Context())
	if err != nil {
		writeStoreError(c, "", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"platforms": platformStats})
}

// RunsHandler serves recent run log entries, newest first.
func (s *Service) RunsHandler(c *gin.Context) {
	limit := parseLimit(c, defaultRunsLimit)
	runs, err := s.Runs(c.Request.Context(), limit)
	if err != nil {
		writeStoreError(c, "", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// parseLimit reads ?limit=N, clamped to [1, maxListLimit].
func parseLimit(c *gin.Context, fallback int) int {
	raw := c.Query("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return fallback
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func writeStoreError(c *gin.Context, slug string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpNotFoundError,
			Message:   msgDeviceNotFound,
			Details:   map[string]interface{}{"model_slug": slug},
		})
		return
	}

	slog.Error("[Aggregate] Query failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
		ErrorType: httperr.HttpStoreError,
		Message:   msgQueryFailed,
	})
}
