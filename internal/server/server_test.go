package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeHealth struct {
	err error
}

func (f fakeHealth) Ping(context.Context) error {
	return f.err
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		store      HealthChecker
		wantCode   int
		wantStatus string
	}{
		{name: "store reachable", store: fakeHealth{}, wantCode: http.StatusOK, wantStatus: "healthy"},
		{name: "store down", store: fakeHealth{err: errors.New("refused")}, wantCode: http.StatusServiceUnavailable, wantStatus: "unhealthy"},
		{name: "no store configured", store: nil, wantCode: http.StatusOK, wantStatus: "healthy"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := New("127.0.0.1:0", tc.store, "release")

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			resp := httptest.NewRecorder()
			s.Engine.ServeHTTP(resp, req)

			require.Equal(t, tc.wantCode, resp.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
			require.Equal(t, "pricewize", body["service"])
			require.Equal(t, tc.wantStatus, body["status"])
		})
	}
}
