// Package scrape fans queries out to marketplace source adapters and
// collects their raw listings with per-platform failure isolation.
package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	v1 "github.com/pricewize-lab/pricewize/internal/api/v1"
)

const (
	defaultFetchTimeout = 20 * time.Second
	defaultRateInterval = time.Second
	maxResponseBytes    = 5 * 1024 * 1024
)

// SourceAdapter provides raw listings for one marketplace. Implementations
// are expected to deduplicate within a single call's result set and to fail
// fast rather than hang; the orchestrator enforces deadlines regardless.
type SourceAdapter interface {
	Platform() string
	Fetch(ctx context.Context, query string) ([]v1.RawListing, error)
}

// PlatformDef is the on-disk YAML shape of one source platform definition.
// One file per platform, loaded once at startup.
type PlatformDef struct {
	Name         string `yaml:"name"`
	Kind         string `yaml:"kind"` // http_json
	BaseURL      string `yaml:"base_url"`
	UserAgent    string `yaml:"user_agent"`
	RateInterval string `yaml:"rate_interval"` // min delay between calls, e.g. "1s"
	Timeout      string `yaml:"timeout"`
	Enabled      *bool  `yaml:"enabled"` // default true
}

func (d PlatformDef) enabled() bool {
	return d.Enabled == nil || *d.Enabled
}

func (d PlatformDef) validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("source name is required")
	}
	if d.Kind != "http_json" {
		return fmt.Errorf("source %q: unsupported kind %q", d.Name, d.Kind)
	}
	if strings.TrimSpace(d.BaseURL) == "" {
		return fmt.Errorf("source %q: base_url is required", d.Name)
	}
	if _, err := url.Parse(d.BaseURL); err != nil {
		return fmt.Errorf("source %q: invalid base_url: %w", d.Name, err)
	}
	if d.RateInterval != "" {
		if _, err := time.ParseDuration(d.RateInterval); err != nil {
			return fmt.Errorf("source %q: invalid rate_interval: %w", d.Name, err)
		}
	}
	if d.Timeout != "" {
		if _, err := time.ParseDuration(d.Timeout); err != nil {
			return fmt.Errorf("source %q: invalid timeout: %w", d.Name, err)
		}
	}
	return nil
}

// LoadPlatformDefs loads all *.yaml source definitions from dir.
// A missing directory is valid and yields zero sources.
func LoadPlatformDefs(dir string) ([]PlatformDef, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("source config dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source config path %q is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read source config dir: %w", err)
	}

	var defs []PlatformDef
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read source file %q: %w", path, err)
		}

		var def PlatformDef
		if err := yaml.Unmarshal(raw, &def); err != nil {
			return nil, fmt.Errorf("parse source file %q: %w", path, err)
		}
		if err := def.validate(); err != nil {
			return nil, fmt.Errorf("source file %q: %w", path, err)
		}
		if prev, dup := seen[def.Name]; dup {
			return nil, fmt.Errorf("duplicate source %q in %q and %q", def.Name, prev, path)
		}
		seen[def.Name] = path

		defs = append(defs, def)
	}
	return defs, nil
}

// BuildAdapters constructs one throttled adapter per enabled definition.
func BuildAdapters(defs []PlatformDef) ([]SourceAdapter, error) {
	var adapters []SourceAdapter
	for _, def := range defs {
		if !def.enabled() {
			continue
		}
		inner, err := NewHTTPJSONAdapter(def)
		if err != nil {
			return nil, err
		}

		interval := defaultRateInterval
		if def.RateInterval != "" {
			interval, _ = time.ParseDuration(def.RateInterval)
		}
		adapters = append(adapters, Throttled(inner, interval))
	}
	return adapters, nil
}

// HTTPJSONAdapter fetches listings from a JSON search endpoint:
//
//	GET {base}/api/search?q=...
//	  -> {"listings":[...]} or a bare array
//
// Marketplace-specific parsing (HTML selectors, session handling) lives in
// out-of-tree adapters implementing SourceAdapter; this one covers sources
// exposing a plain JSON API.
type HTTPJSONAdapter struct {
	platform  string
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewHTTPJSONAdapter builds an adapter from a validated platform definition.
func NewHTTPJSONAdapter(def PlatformDef) (*HTTPJSONAdapter, error) {
	if err := def.validate(); err != nil {
		return nil, err
	}

	timeout := defaultFetchTimeout
	if def.Timeout != "" {
		timeout, _ = time.ParseDuration(def.Timeout)
	}
	ua := strings.TrimSpace(def.UserAgent)
	if ua == "" {
		ua = "pricewize-scraper/1.0"
	}

	return &HTTPJSONAdapter{
		platform:  def.Name,
		baseURL:   strings.TrimRight(def.BaseURL, "/"),
		userAgent: ua,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

func (a *HTTPJSONAdapter) Platform() string { return a.platform }

// Fetch queries the search endpoint and returns listings stamped with this
// adapter's platform, deduplicated by URL within the result set.
func (a *HTTPJSONAdapter) Fetch(ctx context.Context, query string) ([]v1.RawListing, error) {
	u, err := url.Parse(a.baseURL + "/api/search")
	if err != nil {
		return nil, fmt.Errorf("build search url: %w", err)
	}
	q := u.Query()
	q.Set("q", strings.TrimSpace(query))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	listings, err := parseSearchPayload(body)
	if err != nil {
		return nil, err
	}

	return a.stampAndDedup(listings), nil
}

// parseSearchPayload accepts both object-wrapped and bare-array payloads.
func parseSearchPayload(body []byte) ([]v1.RawListing, error) {
	var wrapped struct {
		Listings []v1.RawListing `json:"listings"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Listings != nil {
		return wrapped.Listings, nil
	}

	var arr []v1.RawListing
	if err := json.Unmarshal(body, &arr); err != nil {
		return nil, fmt.Errorf("search payload parse: %w", err)
	}
	return arr, nil
}

func (a *HTTPJSONAdapter) stampAndDedup(listings []v1.RawListing) []v1.RawListing {
	seen := make(map[string]struct{}, len(listings))
	out := make([]v1.RawListing, 0, len(listings))
	for _, l := range listings {
		l.Platform = a.platform
		key := strings.TrimSpace(l.URL)
		if key != "" {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, l)
	}
	return out
}

// throttledAdapter enforces a minimum interval between this adapter's own
// sequential calls. Throttling is per adapter: the orchestrator never
// rate-limits across platforms.
type throttledAdapter struct {
	inner    SourceAdapter
	interval time.Duration

	mu       sync.Mutex
	lastCall time.Time
}

// Throttled wraps an adapter with a per-adapter minimum call interval.
func Throttled(inner SourceAdapter, interval time.Duration) SourceAdapter {
	if interval <= 0 {
		return inner
	}
	return &throttledAdapter{inner: inner, interval: interval}
}

func (t *throttledAdapter) Platform() string { return t.inner.Platform() }

func (t *throttledAdapter) Fetch(ctx context.Context, query string) ([]v1.RawListing, error) {
	if err := t.waitTurn(ctx); err != nil {
		return nil, err
	}
	return t.inner.Fetch(ctx, query)
}

func (t *throttledAdapter) waitTurn(ctx context.Context) error {
	t.mu.Lock()
	wait := t.interval - time.Since(t.lastCall)
	if wait < 0 {
		wait = 0
	}
	t.lastCall = time.Now().Add(wait)
	t.mu.Unlock()

	if wait == 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
