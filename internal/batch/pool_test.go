package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTask struct {
	id    string
	delay time.Duration
	err   error

	mu        *sync.Mutex
	active    *int
	maxActive *int
}

func (t *countingTask) ID() string { return t.id }

func (t *countingTask) Execute(ctx context.Context) (interface{}, error) {
	t.mu.Lock()
	*t.active++
	if *t.active > *t.maxActive {
		*t.maxActive = *t.active
	}
	t.mu.Unlock()

	time.Sleep(t.delay)

	t.mu.Lock()
	*t.active--
	t.mu.Unlock()

	if t.err != nil {
		return nil, t.err
	}
	return "done-" + t.id, nil
}

func TestProcessAllRespectsWorkerBound(t *testing.T) {
	var mu sync.Mutex
	var active, maxActive int

	pool := NewPool(3)
	for i := 0; i < 10; i++ {
		pool.Add(&countingTask{
			id:        fmt.Sprintf("task-%d", i),
			delay:     10 * time.Millisecond,
			mu:        &mu,
			active:    &active,
			maxActive: &maxActive,
		})
	}

	results := pool.ProcessAll(context.Background())

	require.Len(t, results, 10)
	assert.LessOrEqual(t, maxActive, 3, "worker bound exceeded")
	for id, result := range results {
		require.NoError(t, result.Err)
		assert.Equal(t, "done-"+id, result.Value)
	}
}

func TestProcessAllCapturesFailuresPerTask(t *testing.T) {
	var mu sync.Mutex
	var active, maxActive int

	boom := errors.New("boom")
	pool := NewPool(2)
	pool.Add(&countingTask{id: "ok", mu: &mu, active: &active, maxActive: &maxActive})
	pool.Add(&countingTask{id: "bad", err: boom, mu: &mu, active: &active, maxActive: &maxActive})

	results := pool.ProcessAll(context.Background())

	require.Len(t, results, 2)
	require.NoError(t, results["ok"].Err)
	assert.Equal(t, boom, results["bad"].Err)
	assert.Nil(t, results["bad"].Value)
}

func TestProcessAllEmptyPool(t *testing.T) {
	pool := NewPool(4)
	results := pool.ProcessAll(context.Background())
	assert.Empty(t, results)
}

func TestProcessAllDrainsQueuedTasks(t *testing.T) {
	var mu sync.Mutex
	var active, maxActive int

	pool := NewPool(1)
	pool.Add(&countingTask{id: "first", mu: &mu, active: &active, maxActive: &maxActive})
	require.Len(t, pool.ProcessAll(context.Background()), 1)

	// A second run only sees tasks added after the first.
	pool.Add(&countingTask{id: "second", mu: &mu, active: &active, maxActive: &maxActive})
	results := pool.ProcessAll(context.Background())
	require.Len(t, results, 1)
	assert.Contains(t, results, "second")
}
