// ABOUTME: Tests for the bounded task executor.
// ABOUTME: Covers tagged outcomes, per-task timeout isolation, and the concurrency bound.

package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDo_OK(t *testing.T) {
	p := New(2, time.Second)

	res := p.Do(context.Background(), "quick", func(ctx context.Context) error {
		return nil
	})

	assert.Equal(t, StatusOK, res.Status)
	assert.NoError(t, res.Err)
}

func TestDo_Failed(t *testing.T) {
	p := New(2, time.Second)

	boom := errors.New("boom")
	res := p.Do(context.Background(), "failing", func(ctx context.Context) error {
		return boom
	})

	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, boom)
}

func TestDo_Timeout(t *testing.T) {
	p := New(2, 30*time.Millisecond)

	res := p.Do(context.Background(), "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	assert.Equal(t, StatusTimeout, res.Status)
	require.NoError(t, p.Drain(context.Background()))
}

func TestDo_TimeoutDoesNotAffectOthers(t *testing.T) {
	p := New(2, 50*time.Millisecond)

	var wg sync.WaitGroup
	results := make([]Result, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0] = p.Do(context.Background(), "stuck", func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
	}()
	go func() {
		defer wg.Done()
		results[1] = p.Do(context.Background(), "healthy", func(ctx context.Context) error {
			time.Sleep(10 * time.Millisecond)
			return nil
		})
	}()
	wg.Wait()

	assert.Equal(t, StatusTimeout, results[0].Status)
	assert.Equal(t, StatusOK, results[1].Status, "one task timing out must not fail its neighbor")
	require.NoError(t, p.Drain(context.Background()))
}

func TestDo_Bounded(t *testing.T) {
	p := New(2, time.Second)

	var running, peak atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Do(context.Background(), "bounded", func(ctx context.Context) error {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				running.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2), "no more than maxWorkers tasks may run at once")
}

func TestDo_CallerCancelled(t *testing.T) {
	p := New(1, time.Second)

	// Occupy the only slot.
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Do(context.Background(), "holder", func(ctx context.Context) error {
			<-release
			return nil
		})
	}()

	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := p.Do(ctx, "cancelled", func(ctx context.Context) error { return nil })
	assert.Equal(t, StatusFailed, res.Status, "a cancelled caller cannot wait for a slot")

	close(release)
	wg.Wait()
	require.NoError(t, p.Drain(context.Background()))
}
