// Package workpool runs independent units of work with bounded parallelism
// and reports every outcome, in submission order.
package workpool

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Config configures a Pool.
type Config struct {
	MaxConcurrent int // Maximum concurrently executing items (default: 8)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{MaxConcurrent: 8}
}

// Pool executes work items with a semaphore bounding concurrency.
type Pool struct {
	config Config
	logger *zap.Logger
}

// New creates a Pool.
func New(config Config, logger *zap.Logger) *Pool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	return &Pool{
		config: config,
		logger: logger.Named("workpool"),
	}
}

// MaxConcurrent returns the configured concurrency bound.
func (p *Pool) MaxConcurrent() int {
	return p.config.MaxConcurrent
}

// Item is a unit of work.
type Item[T any] struct {
	ID      string                               // For logging/tracking
	Execute func(ctx context.Context) (T, error) // The work to be executed
}

// Result is the outcome of one Item.
type Result[T any] struct {
	ID     string
	Result T
	Err    error
}

// Process executes all items and returns results indexed like items.
// A failing item does not stop the others. Items still waiting for a slot
// when ctx is cancelled report ctx.Err().
func Process[T any](ctx context.Context, pool *Pool, items []Item[T]) []Result[T] {
	if len(items) == 0 {
		return nil
	}

	results := make([]Result[T], len(items))
	sem := make(chan struct{}, pool.config.MaxConcurrent)

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item Item[T]) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = Result[T]{ID: item.ID, Err: ctx.Err()}
				return
			}

			r, err := item.Execute(ctx)
			if err != nil {
				pool.logger.Debug("Work item failed", zap.String("id", item.ID), zap.Error(err))
			}
			results[i] = Result[T]{ID: item.ID, Result: r, Err: err}
		}(i, item)
	}
	wg.Wait()

	return results
}
