package workers

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Handler processes one queued diagnosis job.
type Handler func(ctx context.Context, jobID string)

// Pool is a fixed-size in-process worker pool draining a bounded job queue.
// Enqueue never blocks the caller: when the queue is full the job stays
// PENDING in storage and is surfaced again by the requeue sweep at startup.
type Pool struct {
	handler     Handler
	queue       chan string
	concurrency int

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewPool creates a worker pool with the given concurrency and queue size.
func NewPool(concurrency, queueSize int, handler Handler) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	if queueSize < 1 {
		queueSize = concurrency
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		handler:     handler,
		queue:       make(chan string, queueSize),
		concurrency: concurrency,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		log.Info().Int("concurrency", p.concurrency).Msg("starting diagnosis worker pool")
		for i := 0; i < p.concurrency; i++ {
			p.wg.Add(1)
			go p.run(i + 1)
		}
	})
}

// Enqueue submits a job id for processing. Returns false when the queue is
// full or the pool is shutting down.
func (p *Pool) Enqueue(jobID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}

	select {
	case p.queue <- jobID:
		return true
	default:
		log.Warn().Str("job_id", jobID).Msg("worker queue full, job left pending")
		return false
	}
}

// Stop cancels in-flight handlers and shuts the pool down. Queued but
// unstarted jobs remain PENDING in storage.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()
		p.wg.Wait()
		log.Info().Msg("diagnosis worker pool stopped")
	})
}

func (p *Pool) run(workerID int) {
	defer p.wg.Done()
	for jobID := range p.queue {
		p.process(workerID, jobID)
	}
}

func (p *Pool) process(workerID int, jobID string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Int("worker_id", workerID).
				Str("job_id", jobID).
				Interface("panic", r).
				Msg("job handler panic")
		}
	}()
	// Handlers see the pool context so Stop cancels in-flight work.
	p.handler(p.ctx, jobID)
}
