// Package ingest turns raw scraped listings into canonical devices and
// deduplicated price rows.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	v1 "github.com/pricewize-lab/pricewize/internal/api/v1"
	"github.com/pricewize-lab/pricewize/internal/core/normalize"
	"github.com/pricewize-lab/pricewize/internal/core/storage"
)

// CacheInvalidator drops cached aggregates whose inputs an ingestion batch
// touched. Implemented by the aggregate layer; a nil invalidator is valid.
type CacheInvalidator interface {
	InvalidateDeviceKeys(modelSlug string)
	InvalidateCatalogKeys()
}

// Summary is the per-batch outcome used to finalize the run log.
type Summary struct {
	Added   int
	Updated int
	Skipped int
}

// Engine persists one batch of raw listings: normalize, resolve the canonical
// device, then upsert the price row keyed by listing URL.
type Engine struct {
	store       storage.Store
	invalidator CacheInvalidator
}

func NewEngine(store storage.Store, invalidator CacheInvalidator) *Engine {
	if store == nil {
		panic("ingest: store must not be nil")
	}
	return &Engine{store: store, invalidator: invalidator}
}

// Ingest processes listings sequentially. Malformed listings are skipped and
// counted; a store error aborts the batch and returns the partial summary.
// Upserts are idempotent: re-ingesting the same batch counts updates, not adds.
func (e *Engine) Ingest(ctx context.Context, listings []v1.RawListing) (Summary, error) {
	var summary Summary
	touchedSlugs := make(map[string]struct{})

	defer func() {
		if e.invalidator == nil || len(touchedSlugs) == 0 {
			return
		}
		for slug := range touchedSlugs {
			e.invalidator.InvalidateDeviceKeys(slug)
		}
		e.invalidator.InvalidateCatalogKeys()
	}()

	for i := range listings {
		listing := listings[i]
		if err := listing.Validate(); err != nil {
			slog.Debug("[Ingest] Skipping malformed listing",
				"platform", listing.Platform,
				"url", listing.URL,
				"error", err,
			)
			summary.Skipped++
			continue
		}

		device, err := e.resolveDevice(ctx, &listing)
		if err != nil {
			return summary, err
		}

		created, err := e.upsertPrice(ctx, device, &listing)
		if err != nil {
			return summary, err
		}
		if created {
			summary.Added++
		} else {
			summary.Updated++
		}
		touchedSlugs[device.ModelSlug] = struct{}{}
	}

	slog.Info("[Ingest] Batch complete",
		"scraped", len(listings),
		"added", summary.Added,
		"updated", summary.Updated,
		"skipped", summary.Skipped,
	)
	return summary, nil
}

// resolveDevice maps the listing title to its canonical device, creating the
// catalog entry on first sight. An adapter-supplied category overrides the
// normalizer's inference.
func (e *Engine) resolveDevice(ctx context.Context, listing *v1.RawListing) (*v1.Device, error) {
	identity := normalize.Model(listing.Title)

	category := identity.Category
	if v1.ValidCategory(listing.Category) {
		category = listing.Category
	}

	device := &v1.Device{
		ID:        uuid.NewString(),
		Name:      identity.CanonicalName,
		Brand:     identity.Brand,
		Category:  category,
		ModelSlug: identity.ModelSlug,
		ImageURL:  listing.ImageURL,
	}

	stored, created, err := e.store.UpsertDevice(ctx, device)
	if err != nil {
		return nil, fmt.Errorf("upsert device %q: %w", identity.ModelSlug, err)
	}
	if created {
		slog.Info("[Ingest] New device",
			"model_slug", stored.ModelSlug,
			"brand", stored.Brand,
			"category", stored.Category,
		)
	}
	return stored, nil
}

func (e *Engine) upsertPrice(ctx context.Context, device *v1.Device, listing *v1.RawListing) (bool, error) {
	price := &v1.Price{
		DeviceID:   device.ID,
		Platform:   listing.Platform,
		Price:      listing.Price,
		Condition:  normalize.Condition(listing.RawCondition),
		Location:   listing.Location,
		SellerName: listing.SellerName,
		ImageURL:   listing.ImageURL,
		URL:        listing.URL,
		LastSeenAt: time.Now().UTC(),
	}

	created, err := e.store.UpsertPrice(ctx, price)
	if err != nil {
		return false, fmt.Errorf("upsert price %q: %w", listing.URL, err)
	}
	return created, nil
}
