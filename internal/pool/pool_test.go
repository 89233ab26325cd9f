// ABOUTME: Tests for the bounded connection pool.
// ABOUTME: Covers the size bound, timeout sentinel, probe-based discard, release, and stats.

package pool

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn implements Conn in memory. failPing makes the liveness probe fail,
// simulating a connection the backing store dropped.
type fakeConn struct {
	id       int
	failPing atomic.Bool
	closed   atomic.Bool
}

func (f *fakeConn) PingContext(ctx context.Context) error {
	if f.failPing.Load() {
		return errors.New("connection reset")
	}
	return nil
}

func (f *fakeConn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, nil
}

func (f *fakeConn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, nil
}

func (f *fakeConn) Close() error {
	f.closed.Store(true)
	return nil
}

// fakeFactory counts creations and can be told to fail.
type fakeFactory struct {
	mu      sync.Mutex
	created []*fakeConn
	fail    bool
}

func (f *fakeFactory) new(ctx context.Context) (Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("backing store unreachable")
	}
	conn := &fakeConn{id: len(f.created)}
	f.created = append(f.created, conn)
	return conn, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func TestPool_EagerMinConnections(t *testing.T) {
	f := &fakeFactory{}
	p := New(f.new, Config{MinConnections: 2, MaxConnections: 5})
	defer p.Close()

	assert.Equal(t, 2, f.count(), "pool must warm up min connections")

	st := p.Stats()
	assert.Equal(t, 2, st.Active)
	assert.Equal(t, 2, st.Idle)
}

func TestPool_AcquireRelease(t *testing.T) {
	f := &fakeFactory{}
	p := New(f.new, Config{MinConnections: 1, MaxConnections: 3})
	defer p.Close()

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, conn)

	assert.Equal(t, 0, p.Stats().Idle)

	p.Release(conn)
	assert.Equal(t, 1, p.Stats().Idle)
}

func TestPool_LazyGrowthUpToMax(t *testing.T) {
	f := &fakeFactory{}
	p := New(f.new, Config{MinConnections: 1, MaxConnections: 3, AcquireTimeout: 100 * time.Millisecond})
	defer p.Close()

	var conns []Conn
	for i := 0; i < 3; i++ {
		conn, err := p.Acquire(context.Background())
		require.NoError(t, err)
		conns = append(conns, conn)
	}

	assert.Equal(t, 3, f.count())
	assert.Equal(t, 3, p.Stats().Active)

	for _, c := range conns {
		p.Release(c)
	}
}

func TestPool_AcquireTimeoutAtCapacity(t *testing.T) {
	f := &fakeFactory{}
	p := New(f.new, Config{MinConnections: 1, MaxConnections: 1, AcquireTimeout: 50 * time.Millisecond})
	defer p.Close()

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer p.Release(conn)

	start := time.Now()
	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestPool_Bound(t *testing.T) {
	// Six near-simultaneous acquires against max=5: five succeed, the sixth
	// times out with the sentinel.
	f := &fakeFactory{}
	p := New(f.new, Config{MinConnections: 2, MaxConnections: 5, AcquireTimeout: time.Second})
	defer p.Close()

	var wg sync.WaitGroup
	var succeeded, timedOut atomic.Int32
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := p.Acquire(context.Background())
			if errors.Is(err, ErrTimeout) {
				timedOut.Add(1)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, conn)
			succeeded.Add(1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), succeeded.Load())
	assert.Equal(t, int32(1), timedOut.Load())
	assert.Equal(t, 5, p.Stats().Active, "never more than max connections in existence")
}

func TestPool_WaiterGetsReleasedConnection(t *testing.T) {
	f := &fakeFactory{}
	p := New(f.new, Config{MinConnections: 1, MaxConnections: 1, AcquireTimeout: time.Second})
	defer p.Close()

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)

	done := make(chan Conn, 1)
	go func() {
		c, err := p.Acquire(context.Background())
		require.NoError(t, err)
		done <- c
	}()

	time.Sleep(20 * time.Millisecond)
	p.Release(conn)

	select {
	case c := <-done:
		p.Release(c)
	case <-time.After(time.Second):
		t.Fatal("waiter never received the released connection")
	}

	assert.Equal(t, 1, f.count(), "the same connection must be reused")
}

func TestPool_DiscardsBrokenIdleConnection(t *testing.T) {
	f := &fakeFactory{}
	p := New(f.new, Config{MinConnections: 1, MaxConnections: 2, AcquireTimeout: time.Second})
	defer p.Close()

	// Break the warmed-up idle connection.
	f.created[0].failPing.Store(true)

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer p.Release(conn)

	assert.True(t, f.created[0].closed.Load(), "broken connection must be closed, not handed out")
	assert.Equal(t, 2, f.count(), "a replacement must be created")
	assert.Equal(t, 1, p.Stats().Active)
}

func TestPool_ReleaseBrokenConnectionFreesSlot(t *testing.T) {
	f := &fakeFactory{}
	p := New(f.new, Config{MinConnections: 1, MaxConnections: 1, AcquireTimeout: time.Second})
	defer p.Close()

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)

	// Connection dies while checked out.
	f.created[0].failPing.Store(true)
	p.Release(conn)

	assert.True(t, f.created[0].closed.Load())
	assert.Equal(t, 0, p.Stats().Active, "slot must be freed for a replacement")

	// A future acquire creates a fresh connection.
	replacement, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(replacement)
	assert.Equal(t, 2, f.count())
}

func TestPool_CreationFailureSurfaced(t *testing.T) {
	f := &fakeFactory{fail: true}
	p := New(f.new, Config{MinConnections: 1, MaxConnections: 2, AcquireTimeout: 50 * time.Millisecond})
	defer p.Close()

	conn, err := p.Acquire(context.Background())
	assert.Nil(t, conn)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimeout, "creation failure is not a timeout")
	assert.Equal(t, 0, p.Stats().Active, "failed creation must not leak a slot")
}

func TestPool_AcquireAfterClose(t *testing.T) {
	f := &fakeFactory{}
	p := New(f.new, Config{MinConnections: 1, MaxConnections: 2})
	p.Close()

	_, err := p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.True(t, f.created[0].closed.Load(), "idle connections closed on shutdown")
}

func TestPool_Stats(t *testing.T) {
	f := &fakeFactory{}
	p := New(f.new, Config{MinConnections: 1, MaxConnections: 2})
	defer p.Close()

	p.RecordQuery(10 * time.Millisecond)
	p.RecordQuery(20 * time.Millisecond)

	st := p.Stats()
	assert.Equal(t, int64(2), st.TotalRequests)
	assert.Equal(t, 15*time.Millisecond, st.AvgLatency)
	assert.Equal(t, 1, st.Idle)
}

func TestPool_CallerDeadlineWins(t *testing.T) {
	f := &fakeFactory{}
	p := New(f.new, Config{MinConnections: 1, MaxConnections: 1, AcquireTimeout: 5 * time.Second})
	defer p.Close()

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer p.Release(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second, "caller deadline must cut the wait short")
}
