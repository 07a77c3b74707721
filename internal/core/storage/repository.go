package storage

import (
	"context"
	"errors"
	"time"

	v1 "github.com/pricewize-lab/pricewize/internal/api/v1"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// TrendingDevice is one row of the trending ranking: a device with its
// listing count (the popularity proxy) and cheapest observed price.
type TrendingDevice struct {
	Device       v1.Device
	ListingCount int
	LowestPrice  int64
}

// PlatformListing is the minimal projection of a Price row used for
// platform-wide statistics.
type PlatformListing struct {
	Platform string
	Price    int64
	Location string
}

// DeviceStore owns the canonical device catalog. Only the ingestion engine
// creates devices; the aggregate layer reads.
type DeviceStore interface {
	// UpsertDevice inserts the device if its model slug is new and returns
	// the stored row plus whether it was created. An existing slug wins:
	// the stored identity is returned untouched except for metadata refresh.
	UpsertDevice(ctx context.Context, device *v1.Device) (*v1.Device, bool, error)

	GetDeviceBySlug(ctx context.Context, modelSlug string) (*v1.Device, error)
	ListDevices(ctx context.Context, limit int) ([]*v1.Device, error)

	// TrendingDevices ranks devices by listing count descending,
	// ties broken by creation order.
	TrendingDevices(ctx context.Context, limit int) ([]TrendingDevice, error)
}

// PriceStore owns observed listings, keyed by source URL.
type PriceStore interface {
	// UpsertPrice inserts a new Price row or updates the row with the same
	// URL in place. The store's unique constraint on url is the atomicity
	// guarantee for concurrent batches. Returns whether a new row was created.
	UpsertPrice(ctx context.Context, price *v1.Price) (bool, error)

	ListPricesByDevice(ctx context.Context, deviceID string) ([]*v1.Price, error)
	ListPlatformListings(ctx context.Context) ([]PlatformListing, error)
	DistinctLocations(ctx context.Context) ([]string, error)

	// DeletePricesNotSeenSince removes listings last observed before cutoff.
	// Used by the retention sweep, never by the ingestion path.
	DeletePricesNotSeenSince(ctx context.Context, cutoff time.Time) (int64, error)
}

// RunLogStore is the append-only audit trail of orchestration runs.
type RunLogStore interface {
	CreateRunLog(ctx context.Context, entry *v1.RunLog) error
	FinishRunLog(ctx context.Context, entry *v1.RunLog) error
	ListRunLogs(ctx context.Context, limit int) ([]*v1.RunLog, error)
	DeleteRunLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store aggregates the three collections the pipeline persists.
type Store interface {
	DeviceStore
	PriceStore
	RunLogStore
}
