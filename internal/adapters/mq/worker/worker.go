// Package worker runs recording jobs off the queue through a processor and
// hands each outcome to a collector.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Phlares/wow-arena-analysis/internal/adapters/mq/queue"
	"github.com/Phlares/wow-arena-analysis/internal/domain/model"
	"github.com/Phlares/wow-arena-analysis/pkg/logger"
	"github.com/Phlares/wow-arena-analysis/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Job abstracts what workers read off the queue.
type Job = queue.Job

// Processor resolves one recording. It never panics on bad input; failures
// travel in Outcome.Err.
type Processor interface {
	Process(ctx context.Context, rec model.Recording) model.Outcome
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, rec model.Recording) model.Outcome

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, rec model.Recording) model.Outcome { //nolint:gocritic // hugeParam
	return f(ctx, rec)
}

// Collector receives finished outcomes. A returned error stops the worker
// that delivered it.
type Collector interface {
	Collect(ctx context.Context, out model.Outcome) error
}

// CollectorFunc adapts a function to Collector.
type CollectorFunc func(ctx context.Context, out model.Outcome) error

// Collect calls f.
func (f CollectorFunc) Collect(ctx context.Context, out model.Outcome) error { //nolint:gocritic // hugeParam
	return f(ctx, out)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes jobs until the queue drains or it is told to stop.
type Worker interface {
	// Run starts the worker loop. It returns nil when the queue drains or
	// shutdown is requested, and an error when a collector refuses an outcome.
	Run(ctx context.Context) error

	// Shutdown stops the worker once its current job is finished.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	processor Processor
	collector Collector
	name      string

	active *atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, processor Processor, collector Collector, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		processor: processor,
		collector: collector,
		name:      "worker",
		active:    new(atomic.Int64),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) error {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		// Shutdown wins over a ready job.
		select {
		case <-w.shutdown:
			return nil
		default:
		}

		select {
		case <-ctx.Done():
			return nil
		case <-w.shutdown:
			return nil
		case j, ok := <-jobs:
			if !ok {
				return nil
			}
			if err := w.processJob(ctx, j); err != nil {
				return err
			}
		}
	}
}

// Shutdown signals the worker and waits for the current job to finish.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processJob runs one recording and delivers its outcome. An outcome cut
// short by cancellation is discarded rather than collected.
func (w *InMemoryWorker) processJob(ctx context.Context, j Job) error { //nolint:gocritic // hugeParam: Job must be passed by value for channel semantics
	start := time.Now()
	metrics.UpdateWorkerActiveCount(int(w.active.Add(1)))
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.active.Add(-1)))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	out := w.processor.Process(ctx, j.Recording)
	out.Seq = j.Seq
	out.Recording = j.Recording
	if out.Elapsed == 0 {
		out.Elapsed = time.Since(start)
	}

	if out.Err != nil && ctx.Err() != nil && errors.Is(out.Err, ctx.Err()) {
		w.logger.Debug(ctx, "discarding cancelled recording", logger.String("recording", j.Recording.ID))
		return nil
	}

	if out.Err != nil {
		kind := model.KindOf(out.Err)
		if model.IsFatal(out.Err) {
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", kind)
		}
		w.logger.Debug(ctx, "recording unresolved",
			logger.String("recording", j.Recording.ID),
			logger.String("kind", kind),
			logger.Error(out.Err),
		)
	}

	if err := w.collector.Collect(ctx, out); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "collect")
		w.logger.Error(ctx, "collector rejected outcome",
			logger.String("recording", j.Recording.ID),
			logger.Error(err),
		)
		return fmt.Errorf("collect %s: %w", j.Recording.ID, err)
	}
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	active *atomic.Int64

	logger logger.Logger
}

// NewPool creates a new worker pool. workerCount below one means two per CPU.
func NewPool(workerCount int, q Queue, processor Processor, collector Collector) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		active:  new(atomic.Int64),
		logger:  logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		w := NewInMemoryWorker(
			q,
			processor,
			collector,
			WithName("worker-"+strconv.Itoa(i)),
		)
		w.active = pool.active
		pool.workers[i] = w
	}

	metrics.UpdateWorkerActiveCount(0)

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Run starts every worker and blocks until all of them return. The first
// worker error cancels the others and is returned.
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		g.Go(func() error { return w.Run(gctx) })
	}
	err := g.Wait()
	if err != nil {
		p.logger.Error(ctx, "worker pool stopped", logger.Error(err))
	}
	return err
}

// Shutdown closes the queue and stops every worker after its current job.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var errs []error
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
