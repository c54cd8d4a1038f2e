package processing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dharsanguruparan/docvalidator/internal/analysis"
	"github.com/dharsanguruparan/docvalidator/internal/model"
)

type countingRunner struct {
	mu   sync.Mutex
	seen map[string]string
}

func (c *countingRunner) Run(_ context.Context, jobID, correlationID string) (analysis.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[jobID] = correlationID
	return analysis.Result{JobID: jobID, Status: model.StatusSucceeded}, nil
}

func TestProcessorRunsScheduledJobs(t *testing.T) {
	runner := &countingRunner{seen: map[string]string{}}
	p := New(runner, 3, nil)
	p.Start(context.Background())

	for _, id := range []string{"a", "b", "c", "d"} {
		if err := p.Schedule(context.Background(), id, "corr-"+id); err != nil {
			t.Fatalf("schedule %s: %v", id, err)
		}
	}
	p.Stop()

	if len(runner.seen) != 4 || runner.seen["c"] != "corr-c" {
		t.Fatalf("unexpected runs %v", runner.seen)
	}
	if err := p.Schedule(context.Background(), "late", ""); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestScheduleReportsFullQueue(t *testing.T) {
	p := New(&countingRunner{seen: map[string]string{}}, 1, nil)
	// Not started: nothing drains the queue.
	var err error
	for i := 0; i < 17 && err == nil; i++ {
		err = p.Schedule(context.Background(), "job", "")
	}
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

type panickingRunner struct {
	countingRunner
}

func (r *panickingRunner) Run(ctx context.Context, jobID, correlationID string) (analysis.Result, error) {
	if jobID == "bad" {
		panic("runner exploded")
	}
	return r.countingRunner.Run(ctx, jobID, correlationID)
}

func TestWorkerSurvivesPanickingRun(t *testing.T) {
	runner := &panickingRunner{countingRunner{seen: map[string]string{}}}
	p := New(runner, 1, nil)
	p.Start(context.Background())

	for _, id := range []string{"bad", "good"} {
		if err := p.Schedule(context.Background(), id, ""); err != nil {
			t.Fatalf("schedule %s: %v", id, err)
		}
	}
	p.Stop()

	if _, ok := runner.seen["good"]; !ok {
		t.Fatalf("the worker must keep running after a panic, saw %v", runner.seen)
	}
}
