package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/job-pipeline/internal/executor"
	"github.com/cuongbtq/job-pipeline/internal/pipeline/domain"
)

// handleSubmission submits one request to the executor and forwards it to the
// completion stage on success. Failed submissions are dropped, never retried.
func (p *Pipeline) handleSubmission(ctx context.Context, workerName string, req domain.SubmissionRequest) error {
	logger := p.logger.With(
		slog.String("stage", domain.StageSubmit),
		slog.String("worker_name", workerName),
		slog.Int("job_id", req.Seq),
	)

	res, err := p.exec.Execute(ctx, executor.Request{
		Stage: domain.StageSubmit,
		JobID: req.Seq,
		Label: fmt.Sprintf("Consumer %s, executing submit #%d", workerName, req.Seq),
		Delay: domain.SubmitDelay,
	})
	now := time.Now()

	if err != nil || !res.OK {
		failure := &domain.ExecutorFailure{
			Stage:  domain.StageSubmit,
			JobID:  req.Seq,
			Stderr: res.Stderr,
			Err:    err,
		}
		p.stats.dropped.Add(1)
		p.metrics.RecordDropped(ctx, domain.StageSubmit)

		logger.Error("Submit failed, dropping request",
			slog.String("error", failure.Error()),
		)
		return nil
	}

	logger.Info("Submit accepted",
		slog.String("output", res.Stdout),
		slog.Duration("elapsed", now.Sub(req.SubmittedAt)),
	)

	p.acceptQ.Put(domain.AcceptedSubmission{
		Seq:         req.Seq,
		SubmittedAt: req.SubmittedAt,
		StartedAt:   now,
	})
	p.stats.accepted.Add(1)
	p.metrics.RecordAccepted(ctx, res.Delay.Seconds())

	logger.Info("Started job")
	return nil
}

// handleAccepted registers the job, emulates its runtime and marks it finished.
// Registry violations are returned and abort the run.
func (p *Pipeline) handleAccepted(ctx context.Context, workerName string, acc domain.AcceptedSubmission) error {
	logger := p.logger.With(
		slog.String("stage", domain.StageCompletion),
		slog.String("worker_name", workerName),
		slog.Int("job_id", acc.Seq),
	)

	// Step 1: make the job visible as running before it executes
	if err := p.registry.Create(acc.Seq, acc.SubmittedAt, acc.StartedAt); err != nil {
		return fmt.Errorf("failed to register job: %w", err)
	}
	p.stats.created.Add(1)
	p.metrics.RecordJobCreated(ctx)
	p.publish(ctx, logger, eventJobStarted, domain.JobRecord{
		ID:          acc.Seq,
		SubmittedAt: acc.SubmittedAt,
		StartedAt:   acc.StartedAt,
	})

	// Step 2: emulate the job runtime; the emulated job always completes
	res, err := p.exec.Execute(ctx, executor.Request{
		Stage: domain.StageCompletion,
		JobID: acc.Seq,
		Label: fmt.Sprintf("Consumer %s, executing submitted #%d", workerName, acc.Seq),
		Delay: domain.CompletionDelay,
	})
	if ctx.Err() != nil {
		// run is being aborted
		return nil
	}
	if err != nil {
		logger.Warn("Job execution reported an error",
			slog.String("error", err.Error()),
		)
	}

	// Step 3: mark completion
	finishedAt := time.Now()
	if err := p.registry.MarkFinished(acc.Seq, finishedAt); err != nil {
		return fmt.Errorf("failed to finish job: %w", err)
	}
	p.stats.finished.Add(1)

	job := domain.JobRecord{
		ID:          acc.Seq,
		SubmittedAt: acc.SubmittedAt,
		StartedAt:   acc.StartedAt,
		FinishedAt:  &finishedAt,
	}
	p.metrics.RecordJobFinished(ctx, job.Runtime().Seconds(), job.Roundtrip().Seconds())
	p.publish(ctx, logger, eventJobFinished, job)

	logger.Debug("Job processed",
		slog.Duration("runtime", job.Runtime()),
		slog.Duration("delay", res.Delay),
	)
	return nil
}

// handleStatusTick emulates a status query and reports running vs finished jobs
func (p *Pipeline) handleStatusTick(ctx context.Context, workerName string, tick domain.StatusTick) error {
	logger := p.logger.With(
		slog.String("stage", domain.StageStatus),
		slog.String("worker_name", workerName),
	)

	res, err := p.exec.Execute(ctx, executor.Request{
		Stage: domain.StageStatus,
		JobID: -1,
		Label: fmt.Sprintf("Consumer %s, executing status request", workerName),
		Delay: domain.StatusDelay,
	})
	if ctx.Err() != nil {
		return nil
	}
	if err != nil || !res.OK {
		logger.Warn("Status query failed, reporting registry state anyway")
	}

	running, finished := p.registry.Counts()
	p.stats.lastRunning.Store(int64(running))
	p.stats.lastFinished.Store(int64(finished))
	p.metrics.RecordStatusReport(ctx, running, finished)

	logger.Info(fmt.Sprintf("%d jobs are running, %d are finished", running, finished),
		slog.Duration("tick_age", time.Since(tick.At)),
	)
	return nil
}
