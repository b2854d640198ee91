// Package pipeline wires the submit, completion and status stages through
// three queues and sequences their shutdown.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cuongbtq/job-pipeline/internal/executor"
	"github.com/cuongbtq/job-pipeline/internal/pipeline/domain"
	"github.com/cuongbtq/job-pipeline/internal/pipeline/storage"
)

// Run phases reported by Stats
const (
	PhaseIdle               = "idle"
	PhaseProducing          = "producing"
	PhaseDrainingSubmit     = "draining_submit"
	PhaseDrainingCompletion = "draining_completion"
	PhaseDrainingStatus     = "draining_status"
	PhaseDone               = "done"
	PhaseAborted            = "aborted"
)

// Config holds pipeline configuration
type Config struct {
	Interval       time.Duration // spacing between submissions
	MaxCount       int           // total submissions
	StatusInterval time.Duration // spacing between status ticks
	PoolSize       int           // workers per submit/completion pool
	StatusPoolSize int           // status workers (default: 2)
}

// Validate checks the configuration values
func (c Config) Validate() error {
	if c.Interval < 0 {
		return fmt.Errorf("interval must not be negative")
	}
	if c.StatusInterval < 0 {
		return fmt.Errorf("status interval must not be negative")
	}
	if c.MaxCount < 0 {
		return fmt.Errorf("max count must not be negative")
	}
	if c.PoolSize < 1 {
		return fmt.Errorf("pool size must be greater than 0")
	}
	return nil
}

// MetricsRecorder is an optional interface for recording pipeline metrics
type MetricsRecorder interface {
	RecordSubmitted(ctx context.Context)
	RecordAccepted(ctx context.Context, delaySeconds float64)
	RecordDropped(ctx context.Context, stage string)
	RecordJobCreated(ctx context.Context)
	RecordJobFinished(ctx context.Context, runtimeSeconds, roundtripSeconds float64)
	RecordStatusReport(ctx context.Context, running, finished int)
	RecordQueueDepth(ctx context.Context, queue string, depth int64)
}

// EventPublisher delivers job lifecycle events. rabbitmq.Client implements it.
type EventPublisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// Deps holds the collaborators of a pipeline
type Deps struct {
	Logger    *slog.Logger
	Executor  executor.Executor
	Registry  *storage.Registry // created when nil
	Metrics   MetricsRecorder   // optional
	Publisher EventPublisher    // optional
	RunID     string            // generated when empty
}

// Checkpoint records queue state at the moment a pool was canceled
type Checkpoint struct {
	Stage      string
	QueueLen   int
	Unfinished int
}

// Stats is a point-in-time view of a run
type Stats struct {
	RunID        string `json:"run_id"`
	Phase        string `json:"phase"`
	Submitted    int64  `json:"submitted"`
	Accepted     int64  `json:"accepted"`
	Dropped      int64  `json:"dropped"`
	Created      int64  `json:"created"`
	Finished     int64  `json:"finished"`
	StatusTicks  int64  `json:"status_ticks"`
	LastRunning  int64  `json:"last_running"`
	LastFinished int64  `json:"last_finished"`
	SubmitQueue  int    `json:"submit_queue"`
	AcceptQueue  int    `json:"accept_queue"`
	StatusQueue  int    `json:"status_queue"`
}

type counters struct {
	submitted    atomic.Int64
	accepted     atomic.Int64
	dropped      atomic.Int64
	created      atomic.Int64
	finished     atomic.Int64
	ticks        atomic.Int64
	lastRunning  atomic.Int64
	lastFinished atomic.Int64
}

// Pipeline runs one batch of jobs through the three stages
type Pipeline struct {
	cfg       Config
	runID     string
	logger    *slog.Logger
	exec      executor.Executor
	registry  *storage.Registry
	metrics   MetricsRecorder
	publisher EventPublisher

	submitQ *Queue[domain.SubmissionRequest]
	acceptQ *Queue[domain.AcceptedSubmission]
	statusQ *Queue[domain.StatusTick]

	stats   counters
	phase   atomic.Value
	started atomic.Bool

	mu          sync.Mutex
	checkpoints []Checkpoint
}

// New creates a new pipeline
func New(cfg Config, deps Deps) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if deps.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.StatusPoolSize < 1 {
		cfg.StatusPoolSize = domain.StatusPoolSize
	}

	runID := deps.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("run_id", runID))

	registry := deps.Registry
	if registry == nil {
		registry = storage.NewRegistry(logger)
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	p := &Pipeline{
		cfg:       cfg,
		runID:     runID,
		logger:    logger,
		exec:      deps.Executor,
		registry:  registry,
		metrics:   metrics,
		publisher: deps.Publisher,
		submitQ:   NewQueue[domain.SubmissionRequest](),
		acceptQ:   NewQueue[domain.AcceptedSubmission](),
		statusQ:   NewQueue[domain.StatusTick](),
	}
	p.phase.Store(PhaseIdle)
	return p, nil
}

// Run executes the whole pipeline and returns the final report.
//
// Shutdown happens in phases: both producers finish, then each queue is
// drained and acknowledged before the pool consuming it is canceled.
// A registry violation or cancellation of ctx aborts the run without a report.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	if !p.started.CompareAndSwap(false, true) {
		return nil, errors.New("pipeline already started")
	}

	start := time.Now()
	runCtx, abort := context.WithCancelCause(ctx)
	defer abort(nil)

	p.logger.Info("Starting pipeline",
		slog.Int("max_count", p.cfg.MaxCount),
		slog.Int("pool_size", p.cfg.PoolSize),
		slog.Duration("interval", p.cfg.Interval),
		slog.Duration("status_interval", p.cfg.StatusInterval),
	)

	onFatal := func(err error) {
		abort(err)
	}

	submitPool := StartPool(runCtx, PoolConfig{
		Name: domain.StageSubmit, Size: p.cfg.PoolSize, Logger: p.logger, OnFatal: onFatal,
	}, p.submitQ, p.handleSubmission)
	completionPool := StartPool(runCtx, PoolConfig{
		Name: domain.StageCompletion, Size: p.cfg.PoolSize, Logger: p.logger, OnFatal: onFatal,
	}, p.acceptQ, p.handleAccepted)
	statusPool := StartPool(runCtx, PoolConfig{
		Name: domain.StageStatus, Size: p.cfg.StatusPoolSize, Logger: p.logger, OnFatal: onFatal,
	}, p.statusQ, p.handleStatusTick)

	// Stop is idempotent; this only matters on the abort paths
	defer func() {
		submitPool.Stop()
		completionPool.Stop()
		statusPool.Stop()
	}()

	go p.reportQueueDepth(runCtx)

	// Phase 1: producers
	p.phase.Store(PhaseProducing)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return p.produceSubmissions(gctx) })
	g.Go(func() error { return p.produceStatusTicks(gctx) })
	if err := g.Wait(); err != nil {
		return nil, p.fail(runCtx, err)
	}
	p.logger.Debug("All submit requests produced")

	// Phase 2: submission queue
	p.phase.Store(PhaseDrainingSubmit)
	if err := drainAndStop(runCtx, p, p.submitQ, submitPool); err != nil {
		return nil, p.fail(runCtx, err)
	}
	p.logger.Debug("All submit requests executed")

	// Phase 3: acceptance queue
	p.phase.Store(PhaseDrainingCompletion)
	if err := drainAndStop(runCtx, p, p.acceptQ, completionPool); err != nil {
		return nil, p.fail(runCtx, err)
	}
	p.logger.Info("All job requests executed")

	// Phase 4: status queue
	p.phase.Store(PhaseDrainingStatus)
	if err := drainAndStop(runCtx, p, p.statusQ, statusPool); err != nil {
		return nil, p.fail(runCtx, err)
	}

	// a fatal error may have been raised by the last item of a queue
	if cause := context.Cause(runCtx); cause != nil {
		return nil, p.fail(runCtx, cause)
	}

	p.phase.Store(PhaseDone)
	report := NewReport(p.registry.Snapshot())

	p.logger.Info("Pipeline completed",
		slog.Int("jobs", len(report.Rows)),
		slog.Int64("dropped", p.stats.dropped.Load()),
		slog.Duration("elapsed", time.Since(start)),
	)
	return report, nil
}

// drainAndStop waits until q is drained and acknowledged, then stops its pool
func drainAndStop[T any](ctx context.Context, p *Pipeline, q *Queue[T], pool *Pool) error {
	if err := q.Join(ctx); err != nil {
		return err
	}

	cp := Checkpoint{Stage: pool.Name(), QueueLen: q.Len(), Unfinished: q.Unfinished()}
	p.mu.Lock()
	p.checkpoints = append(p.checkpoints, cp)
	p.mu.Unlock()

	if cp.QueueLen != 0 || cp.Unfinished != 0 {
		return fmt.Errorf("%w: %s queue has %d queued and %d unacknowledged items",
			domain.ErrNotDrained, cp.Stage, cp.QueueLen, cp.Unfinished)
	}

	pool.Stop()
	p.logger.Debug("Worker pool stopped",
		slog.String("stage", pool.Name()),
	)
	return nil
}

// fail resolves the error that ended the run, preferring the abort cause
func (p *Pipeline) fail(runCtx context.Context, err error) error {
	p.phase.Store(PhaseAborted)
	if cause := context.Cause(runCtx); cause != nil {
		err = cause
	}
	p.logger.Error("Pipeline aborted",
		slog.String("error", err.Error()),
		slog.Bool("fatal", domain.IsFatal(err)),
	)
	return err
}

// reportQueueDepth periodically records queue depth metrics
func (p *Pipeline) reportQueueDepth(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.metrics.RecordQueueDepth(ctx, domain.StageSubmit, int64(p.submitQ.Len()))
			p.metrics.RecordQueueDepth(ctx, domain.StageCompletion, int64(p.acceptQ.Len()))
			p.metrics.RecordQueueDepth(ctx, domain.StageStatus, int64(p.statusQ.Len()))
		}
	}
}

// RunID returns the identifier attached to logs and events of this run
func (p *Pipeline) RunID() string {
	return p.runID
}

// Registry returns the job registry of this run
func (p *Pipeline) Registry() *storage.Registry {
	return p.registry
}

// Checkpoints returns the queue state recorded at every pool cancellation
func (p *Pipeline) Checkpoints() []Checkpoint {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Checkpoint, len(p.checkpoints))
	copy(out, p.checkpoints)
	return out
}

// Stats returns current run statistics
func (p *Pipeline) Stats() Stats {
	return Stats{
		RunID:        p.runID,
		Phase:        p.phase.Load().(string),
		Submitted:    p.stats.submitted.Load(),
		Accepted:     p.stats.accepted.Load(),
		Dropped:      p.stats.dropped.Load(),
		Created:      p.stats.created.Load(),
		Finished:     p.stats.finished.Load(),
		StatusTicks:  p.stats.ticks.Load(),
		LastRunning:  p.stats.lastRunning.Load(),
		LastFinished: p.stats.lastFinished.Load(),
		SubmitQueue:  p.submitQ.Len(),
		AcceptQueue:  p.acceptQ.Len(),
		StatusQueue:  p.statusQ.Len(),
	}
}

type noopMetrics struct{}

func (noopMetrics) RecordSubmitted(context.Context) {}
func (noopMetrics) RecordAccepted(context.Context, float64) {}
func (noopMetrics) RecordDropped(context.Context, string) {}
func (noopMetrics) RecordJobCreated(context.Context) {}
func (noopMetrics) RecordJobFinished(context.Context, float64, float64) {}
func (noopMetrics) RecordStatusReport(context.Context, int, int) {}
func (noopMetrics) RecordQueueDepth(context.Context, string, int64) {}
