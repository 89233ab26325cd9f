// ABOUTME: Tests for stats aggregation and the health/stats HTTP handlers.
// ABOUTME: Uses real component instances rather than stubs where cheap.

package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vic767343/foodbot-gateway/internal/cache"
	"github.com/vic767343/foodbot-gateway/internal/dedupe"
	"github.com/vic767343/foodbot-gateway/internal/responder"
)

func newTestMonitor(t *testing.T) (*Monitor, *cache.Set) {
	t.Helper()

	caches := cache.NewSet()
	t.Cleanup(caches.Close)

	r, err := responder.New(responder.DefaultTables(), caches.Response)
	require.NoError(t, err)

	d := dedupe.New(time.Minute, 100)
	t.Cleanup(d.Close)

	return New(caches, nil, r, d), caches
}

func TestMonitor_Snapshot(t *testing.T) {
	m, caches := newTestMonitor(t)

	caches.App.Set("k1", "v1")
	caches.App.Get("k1")

	snap := m.Snapshot()

	require.Len(t, snap.Caches, 5)
	assert.Equal(t, "app", snap.Caches[0].Name)
	assert.Equal(t, 1, snap.Caches[0].Size)
	assert.NotEmpty(t, snap.Uptime)
}

func TestMonitor_Report(t *testing.T) {
	m, caches := newTestMonitor(t)

	caches.Response.Set("k", "v")

	report := m.Report()
	assert.Contains(t, report, "uptime:")
	assert.Contains(t, report, "cache response")
	assert.Contains(t, report, "responder:")
	assert.Contains(t, report, "dedup: tracked=0")
}

func TestMonitor_HealthzAllPassing(t *testing.T) {
	m, _ := newTestMonitor(t)
	m.RegisterCheck("database", func(ctx context.Context) error { return nil })

	rec := httptest.NewRecorder()
	m.HealthzHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Checks["database"])
}

func TestMonitor_HealthzDegraded(t *testing.T) {
	m, _ := newTestMonitor(t)
	m.RegisterCheck("database", func(ctx context.Context) error { return nil })
	m.RegisterCheck("line", func(ctx context.Context) error { return errors.New("connection refused") })

	rec := httptest.NewRecorder()
	m.HealthzHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "ok", resp.Checks["database"])
	assert.Contains(t, resp.Checks["line"], "connection refused")
}

func TestMonitor_StatsHandler(t *testing.T) {
	m, caches := newTestMonitor(t)
	caches.User.Set("U-alice", "profile")

	rec := httptest.NewRecorder()
	m.StatsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var snap Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Caches, 5)

	var userCache *cache.Stats
	for i := range snap.Caches {
		if snap.Caches[i].Name == "user" {
			userCache = &snap.Caches[i]
		}
	}
	require.NotNil(t, userCache)
	assert.Equal(t, 1, userCache.Size)
}

func TestMonitor_NilComponents(t *testing.T) {
	m := New(nil, nil, nil, nil)

	snap := m.Snapshot()
	assert.Empty(t, snap.Caches)
	assert.Zero(t, snap.DedupSize)
	assert.NotPanics(t, func() { m.Report() })
}
