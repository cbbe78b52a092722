package workpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProcess_ResultsInSubmissionOrder(t *testing.T) {
	pool := New(Config{MaxConcurrent: 3}, zap.NewNop())

	items := []Item[int]{
		{ID: "slow", Execute: func(ctx context.Context) (int, error) {
			time.Sleep(20 * time.Millisecond)
			return 1, nil
		}},
		{ID: "fast", Execute: func(ctx context.Context) (int, error) { return 2, nil }},
		{ID: "fails", Execute: func(ctx context.Context) (int, error) { return 0, errors.New("boom") }},
	}

	results := Process(context.Background(), pool, items)

	require.Len(t, results, 3)
	assert.Equal(t, "slow", results[0].ID)
	assert.Equal(t, 1, results[0].Result)
	assert.Equal(t, "fast", results[1].ID)
	assert.EqualError(t, results[2].Err, "boom")
}

func TestProcess_BoundsConcurrency(t *testing.T) {
	pool := New(Config{MaxConcurrent: 2}, zap.NewNop())

	var current, peak int32
	items := make([]Item[struct{}], 8)
	for i := range items {
		items[i] = Item[struct{}]{ID: "x", Execute: func(ctx context.Context) (struct{}, error) {
			n := atomic.AddInt32(&current, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&current, -1)
			return struct{}{}, nil
		}}
	}

	Process(context.Background(), pool, items)

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestProcess_CancelledContext(t *testing.T) {
	pool := New(Config{MaxConcurrent: 1}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := Process(ctx, pool, []Item[int]{
		{ID: "a", Execute: func(ctx context.Context) (int, error) { return 1, ctx.Err() }},
	})

	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}

func TestProcess_Empty(t *testing.T) {
	assert.Nil(t, Process[int](context.Background(), New(Config{}, zap.NewNop()), nil))
}

func TestNew_DefaultsConcurrency(t *testing.T) {
	assert.Equal(t, 8, New(Config{}, zap.NewNop()).MaxConcurrent())
}
