// Package queue schedules analysis runs on Redis through asynq.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// RunAnalysisTask is scheduled once per created job.
	RunAnalysisTask = "analysis:run"
)

// RunPayload is serialized into the task payload.
type RunPayload struct {
	JobID         string `json:"job_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// NewRunTask builds the task for a job. The task id is the job id, so the
// same job cannot be queued twice while asynq still remembers it.
func NewRunTask(payload RunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(RunAnalysisTask, data,
		asynq.TaskID(payload.JobID),
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Retention(24*time.Hour),
	), nil
}

// ParseRunPayload decodes a task payload.
func ParseRunPayload(data []byte) (RunPayload, error) {
	var payload RunPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return RunPayload{}, fmt.Errorf("decode payload: %w", err)
	}
	if payload.JobID == "" {
		return RunPayload{}, errors.New("payload has no job_id")
	}
	return payload, nil
}

// Scheduler enqueues analysis runs.
type Scheduler struct {
	client *asynq.Client
}

// NewScheduler wraps an asynq client.
func NewScheduler(client *asynq.Client) *Scheduler {
	return &Scheduler{client: client}
}

// Schedule enqueues the run of jobID. A job that is already queued is not an
// error.
func (s *Scheduler) Schedule(ctx context.Context, jobID, correlationID string) error {
	task, err := NewRunTask(RunPayload{JobID: jobID, CorrelationID: correlationID})
	if err != nil {
		return err
	}
	if _, err := s.client.EnqueueContext(ctx, task); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("enqueue analysis task: %w", err)
	}
	return nil
}
