// ABOUTME: Stats aggregation across gateway components plus HTTP health/stats handlers.
// ABOUTME: Health checks are pluggable named probes registered at wiring time.

package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/vic767343/foodbot-gateway/internal/cache"
	"github.com/vic767343/foodbot-gateway/internal/dedupe"
	"github.com/vic767343/foodbot-gateway/internal/pool"
	"github.com/vic767343/foodbot-gateway/internal/responder"
)

// probeTimeout bounds each health check so a stuck dependency cannot hang
// the endpoint.
const probeTimeout = 2 * time.Second

// Check is a named health probe.
type Check func(ctx context.Context) error

// Snapshot is the aggregated stats document served on /stats.
type Snapshot struct {
	Uptime    string          `json:"uptime"`
	Caches    []cache.Stats   `json:"caches"`
	Pool      pool.Stats      `json:"pool"`
	Responder responder.Stats `json:"responder"`
	DedupSize int             `json:"dedup_size"`
}

// Monitor aggregates stats from the components it is handed at startup.
type Monitor struct {
	caches    *cache.Set
	pool      *pool.Pool
	responder *responder.Responder
	dedupe    *dedupe.Deduplicator
	checks    map[string]Check
	started   time.Time
	logger    *slog.Logger
}

// New creates a monitor over the given components. Any of them may be nil;
// nil components are omitted from snapshots.
func New(caches *cache.Set, p *pool.Pool, r *responder.Responder, d *dedupe.Deduplicator) *Monitor {
	return &Monitor{
		caches:    caches,
		pool:      p,
		responder: r,
		dedupe:    d,
		checks:    make(map[string]Check),
		started:   time.Now(),
		logger:    slog.Default().With("component", "monitor"),
	}
}

// RegisterCheck adds a named health probe run by the /healthz endpoint.
func (m *Monitor) RegisterCheck(name string, check Check) {
	m.checks[name] = check
}

// Snapshot collects current stats from every wired component.
func (m *Monitor) Snapshot() Snapshot {
	snap := Snapshot{Uptime: time.Since(m.started).Round(time.Second).String()}
	if m.caches != nil {
		for _, c := range m.caches.All() {
			snap.Caches = append(snap.Caches, c.Stats())
		}
	}
	if m.pool != nil {
		snap.Pool = m.pool.Stats()
	}
	if m.responder != nil {
		snap.Responder = m.responder.Stats()
	}
	if m.dedupe != nil {
		snap.DedupSize = m.dedupe.Size()
	}
	return snap
}

// Report renders the snapshot as a line-oriented text report.
func (m *Monitor) Report() string {
	snap := m.Snapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "uptime: %s\n", snap.Uptime)
	for _, cs := range snap.Caches {
		fmt.Fprintf(&b, "cache %-8s size=%-4d accesses=%-6d popular=%-4d hit_rate=%.1f%%\n",
			cs.Name, cs.Size, cs.TotalAccesses, cs.PopularKeys, cs.HitRate*100)
	}
	if m.pool != nil {
		fmt.Fprintf(&b, "pool: active=%d idle=%d requests=%d avg_latency=%s\n",
			snap.Pool.Active, snap.Pool.Idle, snap.Pool.TotalRequests, snap.Pool.AvgLatency)
	}
	if m.responder != nil {
		fmt.Fprintf(&b, "responder: requests=%d quick=%d rate=%.1f%% (cache=%d exact=%d pattern=%d faq=%d)\n",
			snap.Responder.TotalRequests, snap.Responder.QuickResponses,
			snap.Responder.QuickResponseRate*100,
			snap.Responder.CacheHits, snap.Responder.ExactHits,
			snap.Responder.PatternHits, snap.Responder.FAQHits)
	}
	if m.dedupe != nil {
		fmt.Fprintf(&b, "dedup: tracked=%d\n", snap.DedupSize)
	}
	return b.String()
}

// healthResponse is the /healthz document.
type healthResponse struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthzHandler runs every registered probe. Any failure turns the status
// degraded and the response 503.
func (m *Monitor) HealthzHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status: "ok",
			Uptime: time.Since(m.started).Round(time.Second).String(),
		}

		names := make([]string, 0, len(m.checks))
		for name := range m.checks {
			names = append(names, name)
		}
		sort.Strings(names)

		code := http.StatusOK
		for _, name := range names {
			ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
			err := m.checks[name](ctx)
			cancel()

			if resp.Checks == nil {
				resp.Checks = make(map[string]string)
			}
			if err != nil {
				m.logger.Warn("health check failed", "check", name, "error", err)
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
			} else {
				resp.Checks[name] = "ok"
			}
		}

		writeJSON(w, code, resp)
	})
}

// StatsHandler serves the aggregated snapshot as JSON.
func (m *Monitor) StatsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, m.Snapshot())
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("encoding response", "error", err)
	}
}
