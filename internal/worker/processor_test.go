package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/docvalidator/internal/analysis"
	"github.com/dharsanguruparan/docvalidator/internal/apperr"
	"github.com/dharsanguruparan/docvalidator/internal/model"
	"github.com/dharsanguruparan/docvalidator/internal/queue"
)

type fakeRunner struct {
	res     analysis.Result
	err     error
	gotJob  string
	gotCorr string
}

func (f *fakeRunner) Run(_ context.Context, jobID, correlationID string) (analysis.Result, error) {
	f.gotJob, f.gotCorr = jobID, correlationID
	return f.res, f.err
}

func runTask(t *testing.T, runner *fakeRunner) error {
	t.Helper()
	task, err := queue.NewRunTask(queue.RunPayload{JobID: "job-1", CorrelationID: "req-1"})
	if err != nil {
		t.Fatalf("task: %v", err)
	}
	return NewProcessor(runner, nil).HandleRun(context.Background(), task)
}

func TestHandleRun(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		status    model.AnalysisStatus
		wantErr   bool
		skipRetry bool
	}{
		{name: "succeeded", status: model.StatusSucceeded},
		{name: "failed run is recorded, not retried", status: model.StatusFailed},
		{name: "already claimed", err: analysis.ErrNotClaimable, status: model.StatusRunning},
		{name: "missing job", err: apperr.NotFound(apperr.CodeJobNotFound, "analysis_job", "job-1"), wantErr: true, skipRetry: true},
		{name: "load failure retries", err: errors.New("connection refused"), wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &fakeRunner{res: analysis.Result{JobID: "job-1", Status: tc.status}, err: tc.err}
			err := runTask(t, runner)
			if (err != nil) != tc.wantErr {
				t.Fatalf("unexpected error %v", err)
			}
			if errors.Is(err, asynq.SkipRetry) != tc.skipRetry {
				t.Fatalf("skip retry = %v, want %v", errors.Is(err, asynq.SkipRetry), tc.skipRetry)
			}
			if runner.gotJob != "job-1" || runner.gotCorr != "req-1" {
				t.Fatalf("runner called with %q %q", runner.gotJob, runner.gotCorr)
			}
		})
	}
}

func TestHandleRunBadPayload(t *testing.T) {
	err := NewProcessor(&fakeRunner{}, nil).HandleRun(context.Background(), asynq.NewTask(queue.RunAnalysisTask, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}
