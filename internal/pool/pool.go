// ABOUTME: Bounded connection pool with liveness probing and timeout acquisition.
// ABOUTME: Serializes access to a scarce backing store while tolerating broken connections.

package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Defaults mirror the production deployment: a small pool in front of a
// single relational database.
const (
	DefaultMinConnections = 2
	DefaultMaxConnections = 5
	DefaultAcquireTimeout = 5 * time.Second

	// probeTimeout bounds the liveness round-trip on acquire/release.
	probeTimeout = 2 * time.Second
)

// Pool errors. Acquire never panics; callers must check for these.
var (
	// ErrTimeout means no connection became available within the acquire timeout.
	ErrTimeout = errors.New("pool: acquire timed out")

	// ErrClosed means the pool has been shut down.
	ErrClosed = errors.New("pool: closed")
)

// Conn is the backing-store handle the pool manages. *sql.Conn satisfies it;
// beyond the liveness probe the pool treats it as a black box.
type Conn interface {
	PingContext(ctx context.Context) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Close() error
}

// Factory creates a new backing-store connection. A factory error means the
// backing store itself is unreachable, not that one connection went bad.
type Factory func(ctx context.Context) (Conn, error)

// Stats is a point-in-time snapshot of pool activity. Counters are
// accumulated atomically and read without blocking producers, so the
// snapshot is approximate rather than linearizable.
type Stats struct {
	TotalRequests int64         `json:"total_requests"`
	AvgLatency    time.Duration `json:"avg_latency"`
	Active        int           `json:"active_connections"`
	Idle          int           `json:"idle_count"`
}

// Config tunes a pool instance.
type Config struct {
	MinConnections int
	MaxConnections int
	AcquireTimeout time.Duration
}

// Pool is a bounded pool of reusable backing-store connections.
//
// Invariant: the number of connections in existence (idle plus checked out)
// never exceeds MaxConnections. The counter and the idle queue are mutated
// under one mutex so a burst of acquires cannot overshoot the bound.
type Pool struct {
	mu      sync.Mutex
	idle    chan Conn
	factory Factory
	min     int
	max     int
	timeout time.Duration
	active  int // connections in existence, idle + in use
	closed  bool
	logger  *slog.Logger

	totalRequests atomic.Int64
	totalLatency  atomic.Int64 // nanoseconds
}

// New creates a pool and eagerly opens MinConnections connections. A factory
// failure during warm-up is logged and skipped; the pool still starts, and
// Acquire will retry creation on demand.
func New(factory Factory, cfg Config) *Pool {
	if cfg.MinConnections <= 0 {
		cfg.MinConnections = DefaultMinConnections
	}
	if cfg.MaxConnections < cfg.MinConnections {
		cfg.MaxConnections = DefaultMaxConnections
		if cfg.MaxConnections < cfg.MinConnections {
			cfg.MaxConnections = cfg.MinConnections
		}
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultAcquireTimeout
	}

	p := &Pool{
		idle:    make(chan Conn, cfg.MaxConnections),
		factory: factory,
		min:     cfg.MinConnections,
		max:     cfg.MaxConnections,
		timeout: cfg.AcquireTimeout,
		logger:  slog.Default().With("component", "pool"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	for i := 0; i < p.min; i++ {
		conn, err := p.factory(ctx)
		if err != nil {
			p.logger.Warn("warm-up connection failed", "error", err)
			continue
		}
		p.mu.Lock()
		p.active++
		p.mu.Unlock()
		p.idle <- conn
	}

	return p
}

// Acquire returns a validated connection, blocking up to the configured
// acquire timeout (or the caller's earlier deadline). On timeout it returns
// ErrTimeout; if the backing store refuses new connections the creation
// error is returned. Either way the caller gets no connection and must treat
// the failure as retryable in its own terms.
func (p *Pool) Acquire(ctx context.Context) (Conn, error) {
	deadline := time.Now().Add(p.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrClosed
		}

		// Prefer an idle connection.
		select {
		case conn := <-p.idle:
			p.mu.Unlock()
			if p.validate(conn) {
				return conn, nil
			}
			p.discard(conn)
			continue

		default:
		}

		// None idle: grow the pool if there is room.
		if p.active < p.max {
			p.active++ // reserve the slot before releasing the lock
			p.mu.Unlock()

			conn, err := p.factory(ctx)
			if err != nil {
				p.mu.Lock()
				p.active--
				p.mu.Unlock()
				return nil, fmt.Errorf("creating connection: %w", err)
			}
			return conn, nil
		}
		p.mu.Unlock()

		// At capacity: wait for a release or the deadline.
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrTimeout
		}

		timer := time.NewTimer(remaining)
		select {
		case conn := <-p.idle:
			timer.Stop()
			if p.validate(conn) {
				return conn, nil
			}
			p.discard(conn)

		case <-timer.C:
			return nil, ErrTimeout

		case <-ctx.Done():
			timer.Stop()
			return nil, ErrTimeout
		}
	}
}

// Release returns a connection to the pool. The connection is probed first:
// a healthy one goes back to idle, a broken one is closed and its slot freed
// so a future Acquire may create a replacement.
func (p *Pool) Release(conn Conn) {
	if conn == nil {
		return
	}
	if !p.validate(conn) {
		p.discard(conn)
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.discard(conn)
		return
	}
	select {
	case p.idle <- conn:
		p.mu.Unlock()
	default:
		// Queue full; should not happen while the invariant holds.
		p.mu.Unlock()
		p.discard(conn)
	}
}

// RecordQuery accumulates statement latency for Stats. Called by the store
// helpers around each statement they run on a pooled connection.
func (p *Pool) RecordQuery(latency time.Duration) {
	p.totalRequests.Add(1)
	p.totalLatency.Add(int64(latency))
}

// Stats returns an approximate snapshot of pool activity.
func (p *Pool) Stats() Stats {
	requests := p.totalRequests.Load()
	var avg time.Duration
	if requests > 0 {
		avg = time.Duration(p.totalLatency.Load() / requests)
	}

	p.mu.Lock()
	active := p.active
	p.mu.Unlock()

	return Stats{
		TotalRequests: requests,
		AvgLatency:    avg,
		Active:        active,
		Idle:          len(p.idle),
	}
}

// Close shuts the pool down and closes every idle connection. Connections
// still checked out are closed when released.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	for {
		select {
		case conn := <-p.idle:
			p.discard(conn)
		default:
			return
		}
	}
}

// validate probes a connection with a bounded round-trip. A probe failure
// marks this particular connection bad; it does not mean the backing store
// is down.
func (p *Pool) validate(conn Conn) bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		p.logger.Warn("connection failed liveness probe", "error", err)
		return false
	}
	return true
}

// discard closes a connection and frees its slot.
func (p *Pool) discard(conn Conn) {
	if err := conn.Close(); err != nil {
		p.logger.Debug("closing discarded connection", "error", err)
	}
	p.mu.Lock()
	p.active--
	p.mu.Unlock()
}
