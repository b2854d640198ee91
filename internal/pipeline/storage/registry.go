package storage

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cuongbtq/job-pipeline/internal/pipeline/domain"
)

// Registry holds the lifecycle timestamps of every job in a run.
// Completion workers write to it, status workers and the orchestrator read from it.
type Registry struct {
	mu     sync.RWMutex
	jobs   map[int]*domain.JobRecord
	order  []int
	logger *slog.Logger
}

// NewRegistry creates an empty Registry
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		jobs:   make(map[int]*domain.JobRecord),
		logger: logger,
	}
}

// Create inserts a new running job
func (r *Registry) Create(jobID int, submittedAt, startedAt time.Time) error {
	if startedAt.Before(submittedAt) {
		return domain.NewRegistryViolation("create", jobID, domain.ErrInvalidTimestamps)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[jobID]; exists {
		return domain.NewRegistryViolation("create", jobID, domain.ErrDuplicateJob)
	}

	r.jobs[jobID] = &domain.JobRecord{
		ID:          jobID,
		SubmittedAt: submittedAt,
		StartedAt:   startedAt,
	}
	r.order = append(r.order, jobID)

	r.logger.Debug("Job registered",
		slog.Int("job_id", jobID),
	)

	return nil
}

// MarkFinished sets the completion timestamp of a running job
func (r *Registry) MarkFinished(jobID int, finishedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return domain.NewRegistryViolation("finish", jobID, domain.ErrJobNotFound)
	}
	if job.FinishedAt != nil {
		return domain.NewRegistryViolation("finish", jobID, domain.ErrJobAlreadyFinished)
	}
	if finishedAt.Before(job.StartedAt) {
		return domain.NewRegistryViolation("finish", jobID, domain.ErrInvalidTimestamps)
	}

	t := finishedAt
	job.FinishedAt = &t

	r.logger.Debug("Job marked finished",
		slog.Int("job_id", jobID),
		slog.Duration("runtime", job.Runtime()),
	)

	return nil
}

// Get returns a copy of one job
func (r *Registry) Get(jobID int) (domain.JobRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return domain.JobRecord{}, domain.ErrJobNotFound
	}
	return copyRecord(job), nil
}

// Counts returns the running and finished totals from a single consistent view
func (r *Registry) Counts() (running, finished int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, job := range r.jobs {
		if job.FinishedAt == nil {
			running++
		} else {
			finished++
		}
	}
	return running, finished
}

// CountRunning returns the number of jobs without a completion timestamp
func (r *Registry) CountRunning() int {
	running, _ := r.Counts()
	return running
}

// CountFinished returns the number of completed jobs
func (r *Registry) CountFinished() int {
	_, finished := r.Counts()
	return finished
}

// Len returns the number of jobs ever created
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Snapshot returns copies of all jobs in ascending id order
func (r *Registry) Snapshot() []domain.JobRecord {
	r.mu.RLock()
	out := make([]domain.JobRecord, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, copyRecord(job))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

// CreationOrder returns job ids in the order they were created
func (r *Registry) CreationOrder() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]int, len(r.order))
	copy(out, r.order)
	return out
}

func copyRecord(job *domain.JobRecord) domain.JobRecord {
	c := *job
	if job.FinishedAt != nil {
		t := *job.FinishedAt
		c.FinishedAt = &t
	}
	return c
}
