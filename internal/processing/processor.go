// Package processing runs analysis jobs on an in-process worker pool. It is
// the Scheduler of the single-process server, where no Redis is available.
package processing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dharsanguruparan/docvalidator/internal/analysis"
	"github.com/dharsanguruparan/docvalidator/internal/logging"
	"github.com/dharsanguruparan/docvalidator/internal/model"
)

// ErrQueueFull is returned by Schedule when the buffer cannot take more work.
var ErrQueueFull = errors.New("processing queue full")

// ErrStopped is returned by Schedule once the pool has been stopped.
var ErrStopped = errors.New("processing pool stopped")

// Runner executes one analysis job.
type Runner interface {
	Run(ctx context.Context, jobID, correlationID string) (analysis.Result, error)
}

// Job represents background processing work.
type Job struct {
	JobID         string
	CorrelationID string
}

// Processor consumes Jobs with a fixed number of goroutines.
type Processor struct {
	runner  Runner
	queue   chan Job
	workers int
	log     *slog.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// New builds a Processor with queue capacity tied to worker count.
func New(runner Runner, workers int, logger *slog.Logger) *Processor {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Processor{
		runner:  runner,
		queue:   make(chan Job, workers*16),
		workers: workers,
		log:     logger,
	}
}

// Start launches worker goroutines. They exit when ctx is cancelled or Stop
// is called.
func (p *Processor) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Schedule queues a job for async processing.
func (p *Processor) Schedule(_ context.Context, jobID, correlationID string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.queue <- Job{JobID: jobID, CorrelationID: correlationID}:
		return nil
	default:
		p.log.Error("processing.queue.full", "job_id", jobID)
		return ErrQueueFull
	}
}

// Stop refuses new work, lets the workers drain the queue and waits for them.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Processor) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.queue:
			if !ok {
				return
			}
			p.process(ctx, job)
		}
	}
}

func (p *Processor) process(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("processing.job.panic", "job_id", job.JobID, "panic", fmt.Sprint(r))
		}
	}()
	res, err := p.runner.Run(ctx, job.JobID, job.CorrelationID)
	switch {
	case errors.Is(err, analysis.ErrNotClaimable):
		p.log.Warn("processing.job.skipped", "job_id", job.JobID, "status", res.Status)
	case err != nil:
		p.log.Error("processing.job.error", "job_id", job.JobID, "error", err)
	case res.Status == model.StatusFailed:
		p.log.Warn("processing.job.failed", "job_id", job.JobID, "error_code", res.Error.Code)
	default:
		p.log.Info("processing.job.done", "job_id", job.JobID, "status", res.Status)
	}
}
