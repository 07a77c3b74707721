package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	v1 "github.com/pricewize-lab/pricewize/internal/api/v1"
)

func writeSourceFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadPlatformDefs(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "olx.yaml", `
name: olx
kind: http_json
base_url: https://olx.example
rate_interval: 500ms
`)
	writeSourceFile(t, dir, "daraz.yml", `
name: daraz
kind: http_json
base_url: https://daraz.example
enabled: false
`)
	writeSourceFile(t, dir, "notes.txt", "ignored")

	defs, err := LoadPlatformDefs(dir)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	require.Equal(t, "olx", defs[1].Name)
	require.Equal(t, "daraz", defs[0].Name)
	require.False(t, defs[0].enabled())
	require.True(t, defs[1].enabled())
}

func TestLoadPlatformDefsMissingDir(t *testing.T) {
	defs, err := LoadPlatformDefs(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	require.Empty(t, defs)
}

func TestLoadPlatformDefsRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "a.yaml", "name: olx\nkind: http_json\nbase_url: https://a.example\n")
	writeSourceFile(t, dir, "b.yaml", "name: olx\nkind: http_json\nbase_url: https://b.example\n")

	_, err := LoadPlatformDefs(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate source")
}

func TestPlatformDefValidate(t *testing.T) {
	tests := []struct {
		name    string
		def     PlatformDef
		wantErr string
	}{
		{
			name:    "missing name",
			def:     PlatformDef{Kind: "http_json", BaseURL: "https://x.example"},
			wantErr: "name is required",
		},
		{
			name:    "unsupported kind",
			def:     PlatformDef{Name: "olx", Kind: "grpc", BaseURL: "https://x.example"},
			wantErr: "unsupported kind",
		},
		{
			name:    "missing base_url",
			def:     PlatformDef{Name: "olx", Kind: "http_json"},
			wantErr: "base_url is required",
		},
		{
			name:    "bad rate_interval",
			def:     PlatformDef{Name: "olx", Kind: "http_json", BaseURL: "https://x.example", RateInterval: "soon"},
			wantErr: "invalid rate_interval",
		},
		{
			name: "valid",
			def:  PlatformDef{Name: "olx", Kind: "http_json", BaseURL: "https://x.example", Timeout: "10s"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.def.validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestBuildAdaptersSkipsDisabled(t *testing.T) {
	enabled := false
	adapters, err := BuildAdapters([]PlatformDef{
		{Name: "olx", Kind: "http_json", BaseURL: "https://olx.example"},
		{Name: "daraz", Kind: "http_json", BaseURL: "https://daraz.example", Enabled: &enabled},
	})
	require.NoError(t, err)
	require.Len(t, adapters, 1)
	require.Equal(t, "olx", adapters[0].Platform())
}

func TestHTTPJSONAdapterFetchWrappedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/search", r.URL.Path)
		require.Equal(t, "iphone 13", r.URL.Query().Get("q"))
		require.Equal(t, "pricewize-scraper/1.0", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"listings":[
			{"title":"iPhone 13 128GB","price":1450,"url":"https://olx.example/item/1","raw_condition":"like new"},
			{"title":"iPhone 13 dup","price":1500,"url":"https://olx.example/item/1"},
			{"title":"iPhone 13 Pro","price":2100,"url":"https://olx.example/item/2"}
		]}`))
	}))
	defer srv.Close()

	adapter, err := NewHTTPJSONAdapter(PlatformDef{Name: "olx", Kind: "http_json", BaseURL: srv.URL})
	require.NoError(t, err)

	listings, err := adapter.Fetch(context.Background(), "iphone 13")
	require.NoError(t, err)
	require.Len(t, listings, 2)
	for _, l := range listings {
		require.Equal(t, "olx", l.Platform)
	}
	require.Equal(t, "https://olx.example/item/1", listings[0].URL)
	require.Equal(t, v1.RawListing{
		Title:        "iPhone 13 128GB",
		Price:        1450,
		RawCondition: "like new",
		URL:          "https://olx.example/item/1",
		Platform:     "olx",
	}, listings[0])
}

func TestHTTPJSONAdapterFetchBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"title":"Pixel 8","price":1900,"url":"https://d.example/1"}]`))
	}))
	defer srv.Close()

	adapter, err := NewHTTPJSONAdapter(PlatformDef{Name: "daraz", Kind: "http_json", BaseURL: srv.URL})
	require.NoError(t, err)

	listings, err := adapter.Fetch(context.Background(), "pixel 8")
	require.NoError(t, err)
	require.Len(t, listings, 1)
	require.Equal(t, "daraz", listings[0].Platform)
}

func TestHTTPJSONAdapterFetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr string
	}{
		{
			name: "non-200 status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantErr: "unexpected status 502",
		},
		{
			name: "malformed payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"listings": "nope"`))
			},
			wantErr: "search payload parse",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			adapter, err := NewHTTPJSONAdapter(PlatformDef{Name: "olx", Kind: "http_json", BaseURL: srv.URL})
			require.NoError(t, err)

			_, err = adapter.Fetch(context.Background(), "iphone")
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestThrottledEnforcesInterval(t *testing.T) {
	inner := &fakeAdapter{platform: "olx", listings: listingsFor("olx", 1)}
	throttled := Throttled(inner, 60*time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := throttled.Fetch(context.Background(), "iphone")
		require.NoError(t, err)
	}
	// First call is free; the next two wait one interval each.
	require.GreaterOrEqual(t, time.Since(start), 120*time.Millisecond)
}

func TestThrottledRespectsContext(t *testing.T) {
	inner := &fakeAdapter{platform: "olx", listings: listingsFor("olx", 1)}
	throttled := Throttled(inner, time.Minute)

	_, err := throttled.Fetch(context.Background(), "warmup")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = throttled.Fetch(ctx, "blocked")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestThrottledZeroIntervalPassesThrough(t *testing.T) {
	inner := &fakeAdapter{platform: "olx"}
	require.Same(t, SourceAdapter(inner), Throttled(inner, 0))
}
