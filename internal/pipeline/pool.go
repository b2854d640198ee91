package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Handler processes one dequeued item. A returned error is fatal for the run.
type Handler[T any] func(ctx context.Context, workerName string, item T) error

// PoolConfig holds worker pool configuration
type PoolConfig struct {
	Name    string
	Size    int
	Logger  *slog.Logger
	OnFatal func(err error)
}

// Pool is a fixed set of long-lived workers draining one queue
type Pool struct {
	name   string
	size   int
	logger *slog.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// StartPool spawns cfg.Size workers consuming from q.
//
// Workers observe Stop only while waiting in q.Get, so an item that has been
// dequeued is always handled and acknowledged. Handlers receive ctx, which is
// not canceled by Stop.
func StartPool[T any](ctx context.Context, cfg PoolConfig, q *Queue[T], handle Handler[T]) *Pool {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	size := cfg.Size
	if size < 1 {
		size = 1
	}

	stopCtx, cancel := context.WithCancel(ctx)
	p := &Pool{
		name:   cfg.Name,
		size:   size,
		logger: logger.With(slog.String("stage", cfg.Name)),
		cancel: cancel,
	}

	p.logger.Debug("Spawning worker pool",
		slog.Int("concurrency", size),
	)

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go workerLoop(p, ctx, stopCtx, i, cfg.OnFatal, q, handle)
	}

	return p
}

// workerLoop is the processing loop of one worker goroutine
func workerLoop[T any](p *Pool, ctx, stopCtx context.Context, workerNum int, onFatal func(error), q *Queue[T], handle Handler[T]) {
	defer p.wg.Done()

	workerName := fmt.Sprintf("%s-%d", p.name, workerNum)
	p.logger.Debug("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		item, err := q.Get(stopCtx)
		if err != nil {
			p.logger.Debug("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return
		}

		err = handle(ctx, workerName, item)
		q.Done()

		if err != nil {
			p.logger.Error("Worker goroutine stopping - fatal error",
				slog.String("worker_name", workerName),
				slog.String("error", err.Error()),
			)
			if onFatal != nil {
				onFatal(err)
			}
			return
		}
	}
}

// Name returns the stage name of the pool
func (p *Pool) Name() string {
	return p.name
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return p.size
}

// Stop cancels all idle workers and waits for every worker to exit
func (p *Pool) Stop() {
	p.once.Do(func() {
		p.logger.Debug("Stopping worker pool")
		p.cancel()
	})
	p.wg.Wait()
}
