// ABOUTME: Bounded task executor with per-task timeout for slow-path work.
// ABOUTME: Overruns are cancelled and tagged as timeouts rather than propagated as panics.

package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"
)

// Defaults match the production deployment: a few workers, generous task
// budget for AI completion calls.
const (
	DefaultMaxWorkers  = 3
	DefaultTaskTimeout = 30 * time.Second
)

// Status tags the outcome of a task.
type Status string

const (
	StatusOK      Status = "ok"
	StatusTimeout Status = "timeout"
	StatusFailed  Status = "failed"
)

// Result is the tagged outcome of a task run.
type Result struct {
	Status  Status
	Err     error
	Elapsed time.Duration
}

// Pool bounds concurrent slow-path tasks.
type Pool struct {
	sem     *semaphore.Weighted
	slots   int64
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a pool with the given concurrency bound and per-task timeout.
// Non-positive arguments fall back to the defaults.
func New(maxWorkers int, taskTimeout time.Duration) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	if taskTimeout <= 0 {
		taskTimeout = DefaultTaskTimeout
	}
	return &Pool{
		sem:     semaphore.NewWeighted(int64(maxWorkers)),
		slots:   int64(maxWorkers),
		timeout: taskTimeout,
		logger:  slog.Default().With("component", "worker"),
	}
}

// Do runs task on a pool slot, blocking the caller until the task finishes
// or its timeout elapses. On timeout the task's context is cancelled, the
// slot is freed when the task honors the cancellation, and the caller gets
// a timeout-tagged result immediately.
func (p *Pool) Do(ctx context.Context, name string, task func(ctx context.Context) error) Result {
	start := time.Now()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return Result{Status: StatusFailed, Err: fmt.Errorf("acquiring worker slot: %w", err), Elapsed: time.Since(start)}
	}

	taskCtx, cancel := context.WithTimeout(ctx, p.timeout)

	done := make(chan error, 1)
	go func() {
		defer p.sem.Release(1)
		done <- task(taskCtx)
	}()

	select {
	case err := <-done:
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				p.logger.Warn("task timed out", "task", name, "timeout", p.timeout)
				return Result{Status: StatusTimeout, Err: err, Elapsed: time.Since(start)}
			}
			p.logger.Error("task failed", "task", name, "error", err)
			return Result{Status: StatusFailed, Err: err, Elapsed: time.Since(start)}
		}
		return Result{Status: StatusOK, Elapsed: time.Since(start)}

	case <-taskCtx.Done():
		cancel()
		p.logger.Warn("task timed out", "task", name, "timeout", p.timeout)
		return Result{
			Status:  StatusTimeout,
			Err:     taskCtx.Err(),
			Elapsed: time.Since(start),
		}
	}
}

// Drain blocks until every slot is free, up to the context deadline. Used on
// shutdown so in-flight tasks can finish.
func (p *Pool) Drain(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, p.slots); err != nil {
		return fmt.Errorf("draining workers: %w", err)
	}
	p.sem.Release(p.slots)
	return nil
}
