package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is a unit of background work. Run receives a context detached from the
// request that enqueued it, bounded by the pool's job timeout.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

type Pool struct {
	jobs        chan Job
	workerCount int
	timeout     time.Duration
	log         *zap.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

func NewPool(workerCount, queueSize int, timeout time.Duration, log *zap.Logger) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Pool{
		jobs:        make(chan Job, queueSize),
		workerCount: workerCount,
		timeout:     timeout,
		log:         log,
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.log.Info("started worker goroutines", zap.Int("workers", p.workerCount), zap.Int("queue", cap(p.jobs)))
}

// Submit enqueues a job without blocking. It reports false when the queue is
// full or the pool is stopping.
func (p *Pool) Submit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false
	}

	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

// Stop rejects new jobs, runs everything already queued, and waits for the
// workers to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Info("worker pool drained")
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		p.run(id, job)
	}
}

func (p *Pool) run(id int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return job.Run(ctx)
	}()

	if err != nil {
		p.log.Error("job failed",
			zap.Int("worker", id), zap.String("job", job.Name),
			zap.Duration("duration", time.Since(start)), zap.Error(err))
		return
	}
	p.log.Debug("job completed",
		zap.Int("worker", id), zap.String("job", job.Name), zap.Duration("duration", time.Since(start)))
}
