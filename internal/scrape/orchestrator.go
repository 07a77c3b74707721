package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	v1 "github.com/pricewize-lab/pricewize/internal/api/v1"
)

const (
	defaultPerAdapterTimeout = 30 * time.Second
	defaultGlobalTimeout     = 90 * time.Second
)

// PlatformResult is the outcome of one adapter's fetch within a run.
type PlatformResult struct {
	Platform string
	Count    int
	Duration time.Duration
	Err      error
}

// RunResult aggregates per-platform outcomes of one orchestration run.
// Listings is flat and deduplicated by URL within the run; each listing is
// annotated with its source platform.
type RunResult struct {
	Listings  []v1.RawListing
	Platforms []PlatformResult
}

// FailedPlatforms returns one formatted error string per failed adapter.
func (r RunResult) FailedPlatforms() []string {
	var errs []string
	for _, p := range r.Platforms {
		if p.Err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", p.Platform, p.Err))
		}
	}
	return errs
}

// Orchestrator fans a query out to all configured source adapters.
// Each adapter runs concurrently under its own deadline; one adapter failing,
// timing out or returning nothing never affects its siblings. A global
// deadline bounds the whole run, after which best-effort partial results are
// returned.
type Orchestrator struct {
	adapters          []SourceAdapter
	perAdapterTimeout time.Duration
	globalTimeout     time.Duration
}

// NewOrchestrator creates an orchestrator over the given adapters.
// Non-positive timeouts fall back to defaults.
func NewOrchestrator(adapters []SourceAdapter, perAdapterTimeout, globalTimeout time.Duration) *Orchestrator {
	if perAdapterTimeout <= 0 {
		perAdapterTimeout = defaultPerAdapterTimeout
	}
	if globalTimeout <= 0 {
		globalTimeout = defaultGlobalTimeout
	}
	return &Orchestrator{
		adapters:          adapters,
		perAdapterTimeout: perAdapterTimeout,
		globalTimeout:     globalTimeout,
	}
}

// Platforms returns the configured platform names in adapter order.
func (o *Orchestrator) Platforms() []string {
	names := make([]string, len(o.adapters))
	for i, a := range o.adapters {
		names[i] = a.Platform()
	}
	return names
}

type adapterOutcome struct {
	index    int
	listings []v1.RawListing
	duration time.Duration
	err      error
}

// RunAll executes one orchestration run for query. An empty platformScope
// (or "all") runs every adapter; otherwise only the named platform runs.
func (o *Orchestrator) RunAll(ctx context.Context, query, platformScope string) RunResult {
	adapters := o.scopedAdapters(platformScope)
	if len(adapters) == 0 {
		return RunResult{}
	}

	runCtx, cancel := context.WithTimeout(ctx, o.globalTimeout)
	defer cancel()

	slog.Info("[Orchestrator] Starting run",
		"query", query,
		"platforms", len(adapters),
		"per_adapter_timeout", o.perAdapterTimeout,
		"global_timeout", o.globalTimeout,
	)

	// Fan-out: one goroutine per adapter, each under its own deadline
	// derived from the run context. The buffered channel lets stragglers
	// finish without leaking after the global deadline fires.
	outcomes := make(chan adapterOutcome, len(adapters))
	for i, adapter := range adapters {
		go func(idx int, a SourceAdapter) {
			start := time.Now()

			fetchCtx, fetchCancel := context.WithTimeout(runCtx, o.perAdapterTimeout)
			defer fetchCancel()

			listings, err := a.Fetch(fetchCtx, query)
			outcomes <- adapterOutcome{
				index:    idx,
				listings: listings,
				duration: time.Since(start),
				err:      err,
			}
		}(i, adapter)
	}

	// Fan-in: collect until every adapter reported or the global deadline
	// fires. Adapters that never reported are recorded as timed out.
	results := make([]PlatformResult, len(adapters))
	for i := range results {
		results[i] = PlatformResult{Platform: adapters[i].Platform()}
	}
	collected := make([][]v1.RawListing, len(adapters))
	received := make([]bool, len(adapters))

	done := 0
collect:
	for done < len(adapters) {
		select {
		case out := <-outcomes:
			results[out.index].Count = len(out.listings)
			results[out.index].Duration = out.duration
			results[out.index].Err = out.err
			collected[out.index] = out.listings
			received[out.index] = true
			done++

			if out.err != nil {
				slog.Warn("[Orchestrator] Adapter failed",
					"platform", adapters[out.index].Platform(),
					"error", out.err,
					"duration", out.duration,
				)
			}
		case <-runCtx.Done():
			break collect
		}
	}

	for i := range results {
		if !received[i] {
			results[i].Err = fmt.Errorf("global run timeout: %w", runCtx.Err())
		}
	}

	listings := mergeListings(collected, results)

	result := RunResult{Listings: listings, Platforms: results}
	slog.Info("[Orchestrator] Run complete",
		"query", query,
		"listings", len(listings),
		"failed_platforms", len(result.FailedPlatforms()),
	)
	return result
}

// mergeListings flattens successful outcomes into one URL-deduplicated list
// in adapter order, so within-run dedup is deterministic.
func mergeListings(collected [][]v1.RawListing, results []PlatformResult) []v1.RawListing {
	seen := make(map[string]struct{})
	var merged []v1.RawListing
	for i, listings := range collected {
		if results[i].Err != nil {
			continue
		}
		for _, l := range listings {
			key := strings.TrimSpace(l.URL)
			if key != "" {
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
			}
			merged = append(merged, l)
		}
	}
	return merged
}

func (o *Orchestrator) scopedAdapters(platformScope string) []SourceAdapter {
	scope := strings.ToLower(strings.TrimSpace(platformScope))
	if scope == "" || scope == "all" {
		return o.adapters
	}
	for _, a := range o.adapters {
		if strings.EqualFold(a.Platform(), scope) {
			return []SourceAdapter{a}
		}
	}
	return nil
}
