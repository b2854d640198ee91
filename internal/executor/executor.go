// Package executor runs (or simulates) the units of work the pipeline stages submit.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/cuongbtq/job-pipeline/internal/pipeline/domain"
)

// Executor kinds selectable from configuration
const (
	KindSimulated = "simulated"
	KindShell     = "shell"
)

// Request describes one unit of work
type Request struct {
	Stage string
	JobID int
	Label string
	Delay domain.DelayRange
}

// Result is the outcome of a unit of work. OK is false when the work failed.
type Result struct {
	OK     bool
	Stdout string
	Stderr string
	Delay  time.Duration
}

// Executor runs a unit of work for a randomized duration.
// The returned error is reserved for cancellation and infrastructure problems;
// a failed unit of work is reported through Result.OK.
type Executor interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

// ExecutorFunc adapts a function to the Executor interface
type ExecutorFunc func(ctx context.Context, req Request) (Result, error)

// Execute calls f(ctx, req)
func (f ExecutorFunc) Execute(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// New returns the executor of the given kind.
// unit is the wall-clock length of one delay step (one second in normal runs).
func New(kind string, delays *Delays, unit time.Duration) (Executor, error) {
	switch kind {
	case KindSimulated, "":
		return NewSimulated(delays, unit), nil
	case KindShell:
		return NewShell(delays, unit), nil
	default:
		return nil, fmt.Errorf("unknown executor kind %q", kind)
	}
}
