package domain

import (
	"fmt"
	"time"
)

// DelayRange is an inclusive range of whole seconds
type DelayRange struct {
	Min int
	Max int
}

// Validate checks that the range is non-negative and ordered
func (r DelayRange) Validate() error {
	if r.Min < 0 || r.Max < r.Min {
		return fmt.Errorf("invalid delay range [%d,%d]", r.Min, r.Max)
	}
	return nil
}

func (r DelayRange) String() string {
	return fmt.Sprintf("[%d,%d]", r.Min, r.Max)
}

// SubmissionRequest is emitted by the submit producer
type SubmissionRequest struct {
	Seq         int
	SubmittedAt time.Time
}

// AcceptedSubmission is forwarded by a submit worker once the executor accepted it
type AcceptedSubmission struct {
	Seq         int
	SubmittedAt time.Time
	StartedAt   time.Time
}

// StatusTick triggers one registry scan by a status worker
type StatusTick struct {
	At time.Time
}

// JobRecord tracks one job through its lifecycle.
// FinishedAt is nil while the job is running.
type JobRecord struct {
	ID          int
	SubmittedAt time.Time
	StartedAt   time.Time
	FinishedAt  *time.Time
}

// Running reports whether the job has not finished yet
func (r JobRecord) Running() bool {
	return r.FinishedAt == nil
}

// State returns the job state name
func (r JobRecord) State() string {
	if r.Running() {
		return JobStateRunning
	}
	return JobStateFinished
}

// Runtime is the time between acceptance and completion (zero while running)
func (r JobRecord) Runtime() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Roundtrip is the time between submission and completion (zero while running)
func (r JobRecord) Roundtrip() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.SubmittedAt)
}
