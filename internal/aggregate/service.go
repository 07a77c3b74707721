package aggregate

import (
	"context"
	"fmt"
	"sort"

	v1 "github.com/pricewize-lab/pricewize/internal/api/v1"
	"github.com/pricewize-lab/pricewize/internal/core/stats"
	"github.com/pricewize-lab/pricewize/internal/core/storage"
)

const defaultTrendingMultiplier = 10

// Cache key families. Per-device keys carry the model slug; catalog-wide
// key families carry the request limit where one applies.
const (
	keyPrefixDetail   = "detail:"
	keyPrefixStats    = "stats:"
	keyPrefixPrices   = "prices:"
	keyPrefixTrending = "trending:"
	keyLocations      = "locations"
	keyPlatformStats  = "platform_stats"
)

// DeviceDetail is the full per-device view: catalog entry, current listings
// sorted by ascending price, and overall plus per-platform statistics.
type DeviceDetail struct {
	Device        v1.Device                   `json:"device"`
	Listings      []*v1.Price                 `json:"listings"`
	Stats         stats.PriceStats            `json:"stats"`
	PlatformStats map[string]stats.PriceStats `json:"platform_stats"`
}

// TrendingEntry is one row of the trending ranking. Searches is the display
// popularity figure: listing count scaled by the configured multiplier.
type TrendingEntry struct {
	Device       v1.Device `json:"device"`
	ListingCount int       `json:"listing_count"`
	LowestPrice  int64     `json:"lowest_price"`
	Searches     int       `json:"searches"`
}

// PlatformStat summarizes observed listings for one source platform.
type PlatformStat struct {
	Platform     string           `json:"platform"`
	ListingCount int              `json:"listing_count"`
	Stats        stats.PriceStats `json:"stats"`
}

// Service computes read-side aggregates over the store, fronted by the TTL
// cache. It never writes listing data; the ingestion engine owns the write
// path and calls the invalidation hooks here.
type Service struct {
	store              storage.Store
	cache              *Cache
	trendingMultiplier int
}

func NewService(store storage.Store, cache *Cache, trendingMultiplier int) *Service {
	if store == nil {
		panic("aggregate: store must not be nil")
	}
	if cache == nil {
		panic("aggregate: cache must not be nil")
	}
	if trendingMultiplier <= 0 {
		trendingMultiplier = defaultTrendingMultiplier
	}
	return &Service{
		store:              store,
		cache:              cache,
		trendingMultiplier: trendingMultiplier,
	}
}

// DeviceDetail returns the cached full view for one device.
func (s *Service) DeviceDetail(ctx context.Context, modelSlug string) (*DeviceDetail, error) {
	value, err := s.cache.GetOrCompute(keyPrefixDetail+modelSlug, func() (interface{}, error) {
		return s.computeDeviceDetail(ctx, modelSlug)
	})
	if err != nil {
		return nil, err
	}
	return value.(*DeviceDetail), nil
}

func (s *Service) computeDeviceDetail(ctx context.Context, modelSlug string) (*DeviceDetail, error) {
	device, err := s.store.GetDeviceBySlug(ctx, modelSlug)
	if err != nil {
		return nil, err
	}

	prices, err := s.store.ListPricesByDevice(ctx, device.ID)
	if err != nil {
		return nil, fmt.Errorf("list prices for %q: %w", modelSlug, err)
	}

	all := make([]int64, len(prices))
	byPlatform := make(map[string][]int64)
	for i, p := range prices {
		all[i] = p.Price
		byPlatform[p.Platform] = append(byPlatform[p.Platform], p.Price)
	}

	platformStats := make(map[string]stats.PriceStats, len(byPlatform))
	for platform, values := range byPlatform {
		platformStats[platform] = stats.Compute(values)
	}

	return &DeviceDetail{
		Device:        *device,
		Listings:      prices,
		Stats:         stats.Compute(all),
		PlatformStats: platformStats,
	}, nil
}

// DeviceStats returns the cached overall price statistics for one device.
func (s *Service) DeviceStats(ctx context.Context, modelSlug string) (stats.PriceStats, error) {
	value, err := s.cache.GetOrCompute(keyPrefixStats+modelSlug, func() (interface{}, error) {
		device, err := s.store.GetDeviceBySlug(ctx, modelSlug)
		if err != nil {
			return nil, err
		}
		prices, err := s.store.ListPricesByDevice(ctx, device.ID)
		if err != nil {
			return nil, fmt.Errorf("list prices for %q: %w", modelSlug, err)
		}
		values := make([]int64, len(prices))
		for i, p := range prices {
			values[i] = p.Price
		}
		return stats.Compute(values), nil
	})
	if err != nil {
		return stats.PriceStats{}, err
	}
	return value.(stats.PriceStats), nil
}

// DevicePrices returns the cached listings for one device, cheapest first.
func (s *Service) DevicePrices(ctx context.Context, modelSlug string) ([]*v1.Price, error) {
	value, err := s.cache.GetOrCompute(keyPrefixPrices+modelSlug, func() (interface{}, error) {
		device, err := s.store.GetDeviceBySlug(ctx, modelSlug)
		if err != nil {
			return nil, err
		}
		return s.store.ListPricesByDevice(ctx, device.ID)
	})
	if err != nil {
		return nil, err
	}
	return value.([]*v1.Price), nil
}

// Trending returns the cached ranking of devices by listing count.
func (s *Service) Trending(ctx context.Context, limit int) ([]TrendingEntry, error) {
	key := fmt.Sprintf("%s%d", keyPrefixTrending, limit)
	value, err := s.cache.GetOrCompute(key, func() (interface{}, error) {
		trending, err := s.store.TrendingDevices(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("trending devices: %w", err)
		}
		entries := make([]TrendingEntry, len(trending))
		for i, td := range trending {
			entries[i] = TrendingEntry{
				Device:       td.Device,
				ListingCount: td.ListingCount,
				LowestPrice:  td.LowestPrice,
				Searches:     td.ListingCount * s.trendingMultiplier,
			}
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]TrendingEntry), nil
}

// Locations returns the cached distinct seller locations.
func (s *Service) Locations(ctx context.Context) ([]string, error) {
	value, err := s.cache.GetOrCompute(keyLocations, func() (interface{}, error) {
		return s.store.DistinctLocations(ctx)
	})
	if err != nil {
		return nil, err
	}
	return value.([]string), nil
}

// PlatformStats returns the cached per-platform listing summary, sorted by
// platform name.
func (s *Service) PlatformStats(ctx context.Context) ([]PlatformStat, error) {
	value, err := s.cache.GetOrCompute(keyPlatformStats, func() (interface{}, error) {
		listings, err := s.store.ListPlatformListings(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform listings: %w", err)
		}

		byPlatform := make(map[string][]int64)
		for _, l := range listings {
			byPlatform[l.Platform] = append(byPlatform[l.Platform], l.Price)
		}

		result := make([]PlatformStat, 0, len(byPlatform))
		for platform, values := range byPlatform {
			result = append(result, PlatformStat{
				Platform:     platform,
				ListingCount: len(values),
				Stats:        stats.Compute(values),
			})
		}
		sort.Slice(result, func(i, j int) bool { return result[i].Platform < result[j].Platform })
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]PlatformStat), nil
}

// Runs returns recent run log entries, newest first. Never cached: the audit
// trail is read for freshness.
func (s *Service) Runs(ctx context.Context, limit int) ([]*v1.RunLog, error) {
	return s.store.ListRunLogs(ctx, limit)
}

// InvalidateDeviceKeys drops cached views of one device.
func (s *Service) InvalidateDeviceKeys(modelSlug string) {
	s.cache.Invalidate(
		keyPrefixDetail+modelSlug,
		keyPrefixStats+modelSlug,
		keyPrefixPrices+modelSlug,
	)
}

// InvalidateCatalogKeys drops the catalog-wide aggregates after a batch.
func (s *Service) InvalidateCatalogKeys() {
	s.cache.Invalidate(keyLocations, keyPlatformStats)
	s.cache.InvalidatePrefix(keyPrefixTrending)
}
