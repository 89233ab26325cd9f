// ABOUTME: Gateway orchestrator wiring the webhook pipeline and HTTP server.
// ABOUTME: Owns component lifetimes; everything is constructed here and injected.

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/vic767343/foodbot-gateway/internal/cache"
	"github.com/vic767343/foodbot-gateway/internal/config"
	"github.com/vic767343/foodbot-gateway/internal/dedupe"
	"github.com/vic767343/foodbot-gateway/internal/line"
	"github.com/vic767343/foodbot-gateway/internal/monitor"
	"github.com/vic767343/foodbot-gateway/internal/pool"
	"github.com/vic767343/foodbot-gateway/internal/responder"
	"github.com/vic767343/foodbot-gateway/internal/slowpath"
	"github.com/vic767343/foodbot-gateway/internal/store"
	"github.com/vic767343/foodbot-gateway/internal/webhook"
	"github.com/vic767343/foodbot-gateway/internal/worker"
)

// shutdownTimeout bounds graceful shutdown of the HTTP server and the
// worker drain.
const shutdownTimeout = 10 * time.Second

// Gateway orchestrates the foodbot-gateway server components. Everything is
// wired explicitly at construction; no package-level singletons.
type Gateway struct {
	config     *config.Config
	store      *store.Store
	caches     *cache.Set
	dedupe     *dedupe.Deduplicator
	responder  *responder.Responder
	lineClient *line.Client
	workers    *worker.Pool
	monitor    *monitor.Monitor
	httpServer *http.Server
	logger     *slog.Logger
}

// New builds the full pipeline from configuration: store and connection
// pool, caches, deduplicator, responder, LINE client, worker pool, slow
// path, coordinator, and the HTTP mux.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	st, err := store.Open(cfg.Database.Path, pool.Config{
		MinConnections: cfg.Database.MinConnections,
		MaxConnections: cfg.Database.MaxConnections,
		AcquireTimeout: cfg.Database.AcquireTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	var cacheOpts []cache.Option
	if cfg.Caches.MaxEntries > 0 {
		cacheOpts = append(cacheOpts, cache.WithMaxEntries(cfg.Caches.MaxEntries))
	}
	if cfg.Caches.PopularityThreshold > 0 {
		cacheOpts = append(cacheOpts, cache.WithPopularityThreshold(cfg.Caches.PopularityThreshold))
	}
	caches := cache.NewSet(cacheOpts...)

	tables := responder.DefaultTables()
	if cfg.Responder.TablesPath != "" {
		tables, err = responder.LoadTables(cfg.Responder.TablesPath)
		if err != nil {
			st.Close()
			caches.Close()
			return nil, fmt.Errorf("loading response tables: %w", err)
		}
	}

	resp, err := responder.New(tables, caches.Response)
	if err != nil {
		st.Close()
		caches.Close()
		return nil, fmt.Errorf("building responder: %w", err)
	}

	dedup := dedupe.New(cfg.Dedupe.Window, cfg.Dedupe.MaxEntries)

	lineClient := line.New(line.Config{
		ChannelToken: cfg.Line.ChannelAccessToken,
		APIBase:      cfg.Line.APIBase,
		DataAPIBase:  cfg.Line.DataAPIBase,
	})

	workers := worker.New(cfg.Worker.MaxWorkers, cfg.Worker.TaskTimeout)
	slow := slowpath.New(workers, st, lineClient)

	coordinator := webhook.NewCoordinator(dedup, resp, lineClient, slow)
	webhookHandler := webhook.NewHandler(coordinator, cfg.Line.ChannelSecret)

	mon := monitor.New(caches, st.Pool(), resp, dedup)
	mon.RegisterCheck("database", st.Prewarm)

	mux := http.NewServeMux()
	mux.Handle("/webhook", webhookHandler)
	mux.Handle("/healthz", mon.HealthzHandler())
	mux.Handle("/stats", mon.StatsHandler())

	return &Gateway{
		config:     cfg,
		store:      st,
		caches:     caches,
		dedupe:     dedup,
		responder:  resp,
		lineClient: lineClient,
		workers:    workers,
		monitor:    mon,
		httpServer: &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.With("component", "gateway"),
	}, nil
}

// Monitor exposes the stats aggregator for CLI reporting.
func (g *Gateway) Monitor() *monitor.Monitor {
	return g.monitor
}

// Run serves HTTP until the context is cancelled, then shuts down
// gracefully: stop accepting requests, drain in-flight slow-path work,
// close components.
func (g *Gateway) Run(ctx context.Context) error {
	warmCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := g.store.Prewarm(warmCtx); err != nil {
		g.logger.Warn("store prewarm failed", "error", err)
	}
	cancel()

	ln, err := net.Listen("tcp", g.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.httpServer.Addr, err)
	}

	g.logger.Info("gateway listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		g.logger.Info("shutdown signal received")
	case err, ok := <-errCh:
		if ok {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownErr := g.shutdown()
	if serveErr != nil {
		return serveErr
	}
	return shutdownErr
}

func (g *Gateway) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var firstErr error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("http shutdown: %w", err)
	}

	if err := g.workers.Drain(ctx); err != nil {
		g.logger.Warn("worker drain incomplete", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	g.dedupe.Close()
	g.caches.Close()
	if err := g.store.Close(); err != nil {
		g.logger.Warn("closing store", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	g.logger.Info("gateway stopped")
	return firstErr
}
