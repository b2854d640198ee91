package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Shell emulates work by running `sleep <n>; echo '<label>'` in a shell
type Shell struct {
	delays *Delays
	unit   time.Duration
	shell  string
}

// NewShell creates a Shell executor
func NewShell(delays *Delays, unit time.Duration) *Shell {
	return &Shell{delays: delays, unit: unit, shell: "sh"}
}

// Execute implements Executor. A non-zero exit status is reported as OK=false.
func (s *Shell) Execute(ctx context.Context, req Request) (Result, error) {
	steps := s.delays.Draw(req.Delay)
	delay := time.Duration(steps) * s.unit

	script := fmt.Sprintf("sleep %s; echo '%s'", formatSeconds(delay), quoteLabel(req.Label))
	cmd := exec.CommandContext(ctx, s.shell, "-c", script)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
		Delay:  delay,
	}

	if ctx.Err() != nil {
		return result, fmt.Errorf("shell work canceled: %w", ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("failed to run shell work: %w", err)
	}

	result.OK = true
	return result, nil
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

// quoteLabel escapes single quotes for use inside a single-quoted shell string
func quoteLabel(label string) string {
	return strings.ReplaceAll(label, "'", `'\''`)
}
