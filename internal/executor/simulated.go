package executor

import (
	"context"
	"fmt"
	"time"
)

// Simulated waits for the drawn delay and always succeeds
type Simulated struct {
	delays *Delays
	unit   time.Duration
}

// NewSimulated creates a Simulated executor. A zero unit skips the wait entirely.
func NewSimulated(delays *Delays, unit time.Duration) *Simulated {
	return &Simulated{delays: delays, unit: unit}
}

// Execute implements Executor
func (s *Simulated) Execute(ctx context.Context, req Request) (Result, error) {
	steps := s.delays.Draw(req.Delay)
	delay := time.Duration(steps) * s.unit

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return Result{Delay: delay}, fmt.Errorf("simulated work canceled: %w", ctx.Err())
		}
	}

	return Result{OK: true, Stdout: req.Label, Delay: delay}, nil
}
