package pipeline

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/time/rate"

	"github.com/cuongbtq/job-pipeline/internal/pipeline/domain"
)

// produceSubmissions emits maxCount submission requests, one per interval.
// The first request is emitted immediately. The queue is not closed afterwards.
func (p *Pipeline) produceSubmissions(ctx context.Context) error {
	limit := rate.Inf
	if p.cfg.Interval > 0 {
		limit = rate.Every(p.cfg.Interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	p.logger.Debug("Starting submit producer",
		slog.Int("max_count", p.cfg.MaxCount),
		slog.Duration("interval", p.cfg.Interval),
	)

	for seq := 0; seq < p.cfg.MaxCount; seq++ {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		p.submitQ.Put(domain.SubmissionRequest{
			Seq:         seq,
			SubmittedAt: time.Now(),
		})
		p.stats.submitted.Add(1)
		p.metrics.RecordSubmitted(ctx)

		p.logger.Debug("Added submit request to queue",
			slog.Int("job_id", seq),
		)
	}

	p.logger.Debug("Finished sending submit requests")
	return nil
}

// produceStatusTicks emits a status tick every statusInterval until every
// submission has either finished as a job or been dropped
func (p *Pipeline) produceStatusTicks(ctx context.Context) error {
	p.logger.Debug("Watching status",
		slog.Duration("interval", p.cfg.StatusInterval),
	)

	for !p.settled() {
		if err := sleep(ctx, p.cfg.StatusInterval); err != nil {
			return err
		}

		p.statusQ.Put(domain.StatusTick{At: time.Now()})
		p.stats.ticks.Add(1)

		p.logger.Debug("Added status request to queue")
	}

	p.logger.Debug("Finished watching status")
	return nil
}

// settled reports whether every submission reached a final outcome
func (p *Pipeline) settled() bool {
	finished := p.registry.CountFinished()
	return finished+int(p.stats.dropped.Load()) >= p.cfg.MaxCount
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		runtime.Gosched()
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
