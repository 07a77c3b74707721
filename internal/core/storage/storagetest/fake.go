// Package storagetest provides an in-memory Store for handler and engine
// tests. It mirrors the postgres adapter's upsert semantics closely enough
// to exercise idempotency without a database.
package storagetest

import (
	"context"
	"sort"
	"sync"
	"time"

	v1 "github.com/pricewize-lab/pricewize/internal/api/v1"
	"github.com/pricewize-lab/pricewize/internal/core/storage"
)

// FakeStore implements storage.Store over maps. Error fields, when set, are
// returned by the corresponding method to simulate store failures.
type FakeStore struct {
	mu sync.Mutex

	devicesBySlug map[string]*v1.Device
	pricesByURL   map[string]*v1.Price
	runLogs       map[string]*v1.RunLog

	priceSeq int64

	UpsertDeviceErr error
	UpsertPriceErr  error
	CreateRunLogErr error
	FinishRunLogErr error
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		devicesBySlug: make(map[string]*v1.Device),
		pricesByURL:   make(map[string]*v1.Price),
		runLogs:       make(map[string]*v1.RunLog),
	}
}

var _ storage.Store = (*FakeStore)(nil)

func (f *FakeStore) UpsertDevice(_ context.Context, device *v1.Device) (*v1.Device, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UpsertDeviceErr != nil {
		return nil, false, f.UpsertDeviceErr
	}

	now := time.Now().UTC()
	if existing, ok := f.devicesBySlug[device.ModelSlug]; ok {
		if existing.ImageURL == "" && device.ImageURL != "" {
			existing.ImageURL = device.ImageURL
		}
		existing.UpdatedAt = now
		cp := *existing
		return &cp, false, nil
	}

	stored := *device
	stored.CreatedAt = now
	stored.UpdatedAt = now
	f.devicesBySlug[device.ModelSlug] = &stored
	cp := stored
	return &cp, true, nil
}

func (f *FakeStore) GetDeviceBySlug(_ context.Context, modelSlug string) (*v1.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	device, ok := f.devicesBySlug[modelSlug]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *device
	return &cp, nil
}

func (f *FakeStore) ListDevices(_ context.Context, limit int) ([]*v1.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	devices := make([]*v1.Device, 0, len(f.devicesBySlug))
	for _, d := range f.devicesBySlug {
		cp := *d
		devices = append(devices, &cp)
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].ModelSlug < devices[j].ModelSlug
	})
	if limit > 0 && len(devices) > limit {
		devices = devices[:limit]
	}
	return devices, nil
}

func (f *FakeStore) TrendingDevices(_ context.Context, limit int) ([]storage.TrendingDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	counts := make(map[string]int)
	lowest := make(map[string]int64)
	for _, p := range f.pricesByURL {
		counts[p.DeviceID]++
		if low, ok := lowest[p.DeviceID]; !ok || p.Price < low {
			lowest[p.DeviceID] = p.Price
		}
	}

	var trending []storage.TrendingDevice
	for _, d := range f.devicesBySlug {
		if counts[d.ID] == 0 {
			continue
		}
		trending = append(trending, storage.TrendingDevice{
			Device:       *d,
			ListingCount: counts[d.ID],
			LowestPrice:  lowest[d.ID],
		})
	}
	sort.SliceStable(trending, func(i, j int) bool {
		if trending[i].ListingCount != trending[j].ListingCount {
			return trending[i].ListingCount > trending[j].ListingCount
		}
		return trending[i].Device.CreatedAt.Before(trending[j].Device.CreatedAt)
	})
	if limit > 0 && len(trending) > limit {
		trending = trending[:limit]
	}
	return trending, nil
}

func (f *FakeStore) UpsertPrice(_ context.Context, price *v1.Price) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UpsertPriceErr != nil {
		return false, f.UpsertPriceErr
	}

	now := time.Now().UTC()
	if existing, ok := f.pricesByURL[price.URL]; ok {
		existing.Price = price.Price
		existing.Condition = price.Condition
		existing.Location = price.Location
		existing.SellerName = price.SellerName
		existing.ImageURL = price.ImageURL
		existing.LastSeenAt = price.LastSeenAt
		price.ID = existing.ID
		return false, nil
	}

	f.priceSeq++
	stored := *price
	stored.ID = f.priceSeq
	stored.CreatedAt = now
	f.pricesByURL[price.URL] = &stored
	price.ID = stored.ID
	return true, nil
}

func (f *FakeStore) ListPricesByDevice(_ context.Context, deviceID string) ([]*v1.Price, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var prices []*v1.Price
	for _, p := range f.pricesByURL {
		if p.DeviceID != deviceID {
			continue
		}
		cp := *p
		prices = append(prices, &cp)
	}
	sort.Slice(prices, func(i, j int) bool {
		if prices[i].Price != prices[j].Price {
			return prices[i].Price < prices[j].Price
		}
		return prices[i].ID < prices[j].ID
	})
	return prices, nil
}

func (f *FakeStore) ListPlatformListings(_ context.Context) ([]storage.PlatformListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var listings []storage.PlatformListing
	for _, p := range f.pricesByURL {
		listings = append(listings, storage.PlatformListing{
			Platform: p.Platform,
			Price:    p.Price,
			Location: p.Location,
		})
	}
	sort.Slice(listings, func(i, j int) bool {
		if listings[i].Platform != listings[j].Platform {
			return listings[i].Platform < listings[j].Platform
		}
		return listings[i].Price < listings[j].Price
	})
	return listings, nil
}

func (f *FakeStore) DistinctLocations(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]struct{})
	var locations []string
	for _, p := range f.pricesByURL {
		if p.Location == "" {
			continue
		}
		if _, dup := seen[p.Location]; dup {
			continue
		}
		seen[p.Location] = struct{}{}
		locations = append(locations, p.Location)
	}
	sort.Strings(locations)
	return locations, nil
}

func (f *FakeStore) DeletePricesNotSeenSince(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for url, p := range f.pricesByURL {
		if p.LastSeenAt.Before(cutoff) {
			delete(f.pricesByURL, url)
			deleted++
		}
	}
	return deleted, nil
}

func (f *FakeStore) CreateRunLog(_ context.Context, entry *v1.RunLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateRunLogErr != nil {
		return f.CreateRunLogErr
	}
	cp := *entry
	f.runLogs[entry.ID] = &cp
	return nil
}

func (f *FakeStore) FinishRunLog(_ context.Context, entry *v1.RunLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FinishRunLogErr != nil {
		return f.FinishRunLogErr
	}
	if existing, ok := f.runLogs[entry.ID]; ok {
		*existing = *entry
	}
	return nil
}

func (f *FakeStore) ListRunLogs(_ context.Context, limit int) ([]*v1.RunLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := make([]*v1.RunLog, 0, len(f.runLogs))
	for _, e := range f.runLogs {
		cp := *e
		entries = append(entries, &cp)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].StartedAt.After(entries[j].StartedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (f *FakeStore) DeleteRunLogsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for id, e := range f.runLogs {
		if e.StartedAt.Before(cutoff) {
			delete(f.runLogs, id)
			deleted++
		}
	}
	return deleted, nil
}

// DeviceCount reports how many distinct devices the store holds.
func (f *FakeStore) DeviceCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.devicesBySlug)
}

// PriceCount reports how many price rows the store holds.
func (f *FakeStore) PriceCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pricesByURL)
}

// RunLog returns the stored run log entry by id, or nil.
func (f *FakeStore) RunLog(id string) *v1.RunLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.runLogs[id]
	if !ok {
		return nil
	}
	cp := *entry
	return &cp
}
