// Package worker runs analysis jobs delivered by asynq.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/docvalidator/internal/analysis"
	"github.com/dharsanguruparan/docvalidator/internal/apperr"
	"github.com/dharsanguruparan/docvalidator/internal/logging"
	"github.com/dharsanguruparan/docvalidator/internal/queue"
)

// Runner executes one analysis job.
type Runner interface {
	Run(ctx context.Context, jobID, correlationID string) (analysis.Result, error)
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	runner Runner
	log    *slog.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(runner Runner, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Processor{runner: runner, log: logger}
}

// Handler registers the analysis handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.RunAnalysisTask, p.HandleRun)
	return mux
}

// HandleRun runs the job named by the task. Jobs that do not exist or that
// another run already owns are not retried; a run that reached FAILED is
// reported as done because the failure is already recorded on the job.
func (p *Processor) HandleRun(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.ParseRunPayload(task.Payload())
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	res, err := p.runner.Run(ctx, payload.JobID, payload.CorrelationID)
	switch {
	case errors.Is(err, analysis.ErrNotClaimable):
		p.log.Warn("worker.task.skipped", "job_id", payload.JobID, "status", res.Status)
		return nil
	case apperr.IsKind(err, apperr.KindNotFound):
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	case err != nil:
		return err
	}
	p.log.Info("worker.task.done", "job_id", payload.JobID, "status", res.Status)
	return nil
}
