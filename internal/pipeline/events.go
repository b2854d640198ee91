package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cuongbtq/job-pipeline/internal/pipeline/domain"
)

const (
	eventJobStarted  = "job.started"
	eventJobFinished = "job.finished"

	eventContentType = "application/json"
)

// JobEvent is the message published on job lifecycle transitions
type JobEvent struct {
	Type        string     `json:"type"`
	RunID       string     `json:"run_id"`
	JobID       int        `json:"job_id"`
	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

func newJobEvent(eventType, runID string, job domain.JobRecord) JobEvent {
	return JobEvent{
		Type:        eventType,
		RunID:       runID,
		JobID:       job.ID,
		SubmittedAt: job.SubmittedAt,
		StartedAt:   job.StartedAt,
		FinishedAt:  job.FinishedAt,
	}
}

// publish sends a job event when a publisher is configured.
// Failures are logged and never affect the run.
func (p *Pipeline) publish(ctx context.Context, logger *slog.Logger, eventType string, job domain.JobRecord) {
	if p.publisher == nil {
		return
	}

	body, err := json.Marshal(newJobEvent(eventType, p.runID, job))
	if err != nil {
		logger.Warn("Failed to marshal job event",
			slog.String("event", eventType),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := p.publisher.PublishWithRetry(ctx, body, eventContentType); err != nil {
		logger.Warn("Failed to publish job event",
			slog.String("event", eventType),
			slog.String("error", err.Error()),
		)
	}
}
