package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateJob is returned when a job id is registered twice
	ErrDuplicateJob = errors.New("job already exists")

	// ErrJobNotFound is returned when a job cannot be found in the registry
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyFinished is returned when a finished job is finished again
	ErrJobAlreadyFinished = errors.New("job already finished")

	// ErrInvalidTimestamps is returned when submitted <= started <= finished would be violated
	ErrInvalidTimestamps = errors.New("job timestamps out of order")

	// ErrNotDrained is returned when a pool is about to be stopped while its queue still holds work
	ErrNotDrained = errors.New("queue not drained")
)

// RegistryViolation wraps a broken registry invariant. It is always fatal for a run.
type RegistryViolation struct {
	Op    string
	JobID int
	Err   error
}

func (e *RegistryViolation) Error() string {
	return fmt.Sprintf("registry violation: %s job %d: %s", e.Op, e.JobID, e.Err.Error())
}

func (e *RegistryViolation) Unwrap() error {
	return e.Err
}

// NewRegistryViolation creates a new registry violation
func NewRegistryViolation(op string, jobID int, err error) error {
	return &RegistryViolation{Op: op, JobID: jobID, Err: err}
}

// IsFatal reports whether err must abort the run
func IsFatal(err error) bool {
	var violation *RegistryViolation
	return errors.As(err, &violation)
}

// ExecutorFailure describes a unit of work that did not succeed. It is absorbed by dropping the item.
type ExecutorFailure struct {
	Stage  string
	JobID  int
	Stderr string
	Err    error
}

func (e *ExecutorFailure) Error() string {
	msg := fmt.Sprintf("%s failed for job %d", e.Stage, e.JobID)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += " (stderr: " + e.Stderr + ")"
	}
	return msg
}

func (e *ExecutorFailure) Unwrap() error {
	return e.Err
}
