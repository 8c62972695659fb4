package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPool_ProcessesQueuedJobs(t *testing.T) {
	var mu sync.Mutex
	processed := []string{}

	pool := NewPool(2, 10, func(ctx context.Context, jobID string) {
		mu.Lock()
		processed = append(processed, jobID)
		mu.Unlock()
	})
	pool.Start()

	assert.True(t, pool.Enqueue("job-1"))
	assert.True(t, pool.Enqueue("job-2"))
	assert.True(t, pool.Enqueue("job-3"))

	pool.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, processed, 3)
	assert.ElementsMatch(t, []string{"job-1", "job-2", "job-3"}, processed)
}

func TestPool_EnqueueAfterStop(t *testing.T) {
	pool := NewPool(1, 1, func(ctx context.Context, jobID string) {})
	pool.Start()
	pool.Stop()

	assert.False(t, pool.Enqueue("late-job"))
}

func TestPool_QueueFullDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	pool := NewPool(1, 1, func(ctx context.Context, jobID string) {
		<-release
	})
	pool.Start()
	defer func() {
		close(release)
		pool.Stop()
	}()

	// First job occupies the worker, second fills the queue.
	assert.True(t, pool.Enqueue("job-1"))

	accepted := 0
	deadline := time.After(time.Second)
	for accepted < 1 {
		select {
		case <-deadline:
			t.Fatal("queue never accepted a second job")
		default:
		}
		if pool.Enqueue("job-2") {
			accepted++
		}
	}

	// Queue now full; the next enqueue must return immediately.
	done := make(chan bool, 1)
	go func() { done <- pool.Enqueue("job-3") }()
	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on full queue")
	}
}

func TestPool_StopCancelsHandlerContext(t *testing.T) {
	started := make(chan struct{})
	cancelled := make(chan struct{})

	pool := NewPool(1, 1, func(ctx context.Context, jobID string) {
		close(started)
		select {
		case <-ctx.Done():
			close(cancelled)
		case <-time.After(2 * time.Second):
		}
	})
	pool.Start()
	assert.True(t, pool.Enqueue("job-1"))

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("handler never started")
	}

	pool.Stop()

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("handler context was not cancelled on Stop")
	}
}
