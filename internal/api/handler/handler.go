package handler

import (
	"log/slog"

	"github.com/cuongbtq/job-pipeline/internal/pipeline"
	"github.com/cuongbtq/job-pipeline/internal/pipeline/domain"
)

// JobReader is the read side of the job registry
type JobReader interface {
	Get(jobID int) (domain.JobRecord, error)
	Snapshot() []domain.JobRecord
}

// StatsProvider exposes live run statistics
type StatsProvider interface {
	Stats() pipeline.Stats
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger *slog.Logger
	Jobs   JobReader
	Stats  StatsProvider
}

// JobHandler serves the job status endpoints
type JobHandler struct {
	logger *slog.Logger
	jobs   JobReader
	stats  StatsProvider
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		jobs:   deps.Jobs,
		stats:  deps.Stats,
	}
}
