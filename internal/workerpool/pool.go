package workerpool

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// DefaultWorkers is the pool size used when none is configured
const DefaultWorkers = 4

// Pool bounds the number of blocking calls running at once. Callers wait for
// their result or for their context, whichever comes first.
type Pool struct {
	sem     *semaphore.Weighted
	workers int
}

// New creates a pool running at most workers calls concurrently
func New(workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pool{
		sem:     semaphore.NewWeighted(int64(workers)),
		workers: workers,
	}
}

// Workers returns the pool size
func (p *Pool) Workers() int {
	return p.workers
}

type outcome[T any] struct {
	value T
	err   error
}

// Do runs fn on the pool. If ctx is cancelled first, Do returns ctx.Err() and
// fn keeps its slot until it returns.
func Do[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, fmt.Errorf("waiting for worker: %w", err)
	}

	done := make(chan outcome[T], 1)
	go func() {
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				done <- outcome[T]{err: fmt.Errorf("worker panic: %v", r)}
			}
		}()
		value, err := fn(ctx)
		done <- outcome[T]{value: value, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
