// Package runlog maintains the scrape-run audit trail: retention of old run
// entries and expiry of listings no source has re-observed.
package runlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/pricewize-lab/pricewize/internal/core/storage"
)

const (
	defaultSweepInterval    = time.Hour
	defaultRunRetention     = 30 * 24 * time.Hour
	defaultListingRetention = 14 * 24 * time.Hour
)

// Sweeper periodically deletes run log entries past the retention window and
// price rows whose listing no run has re-observed. It is stateless: each tick
// derives its cutoffs from the wall clock.
type Sweeper struct {
	runLogs          storage.RunLogStore
	prices           storage.PriceStore
	interval         time.Duration
	runRetention     time.Duration
	listingRetention time.Duration
}

// NewSweeper creates a retention sweeper. Non-positive durations fall back to
// defaults; a zero listingRetention uses the default, a negative one disables
// listing expiry.
func NewSweeper(runLogs storage.RunLogStore, prices storage.PriceStore, interval, runRetention, listingRetention time.Duration) *Sweeper {
	if runLogs == nil {
		panic("runlog: run log store must not be nil")
	}
	if prices == nil {
		panic("runlog: price store must not be nil")
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if runRetention <= 0 {
		runRetention = defaultRunRetention
	}
	if listingRetention == 0 {
		listingRetention = defaultListingRetention
	}
	return &Sweeper{
		runLogs:          runLogs,
		prices:           prices,
		interval:         interval,
		runRetention:     runRetention,
		listingRetention: listingRetention,
	}
}

// Start begins periodic sweeping. Runs until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Sweeper] Starting retention sweeper",
		"interval", s.interval,
		"run_retention", s.runRetention,
		"listing_retention", s.listingRetention,
	)

	s.SweepOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.SweepOnce(ctx)
		case <-ctx.Done():
			slog.Info("[Sweeper] Stopping (context cancelled)")
			return nil
		}
	}
}

// SweepOnce performs one retention pass. Failures are logged, never fatal:
// the next tick retries.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	now := time.Now().UTC()

	deleted, err := s.runLogs.DeleteRunLogsBefore(ctx, now.Add(-s.runRetention))
	if err != nil {
		slog.Error("[Sweeper] Run log sweep failed", "error", err)
	} else if deleted > 0 {
		slog.Info("[Sweeper] Deleted expired run logs", "deleted", deleted)
	}

	if s.listingRetention < 0 {
		return
	}

	expired, err := s.prices.DeletePricesNotSeenSince(ctx, now.Add(-s.listingRetention))
	if err != nil {
		slog.Error("[Sweeper] Listing expiry sweep failed", "error", err)
	} else if expired > 0 {
		slog.Info("[Sweeper] Deleted stale listings", "deleted", expired)
	}
}
