// Package service runs batches of recordings through the resolution
// pipeline and serves the stored results to the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Phlares/wow-arena-analysis/internal/adapters/mq/queue"
	"github.com/Phlares/wow-arena-analysis/internal/adapters/mq/worker"
	"github.com/Phlares/wow-arena-analysis/internal/adapters/repository"
	"github.com/Phlares/wow-arena-analysis/internal/domain/dedupe"
	"github.com/Phlares/wow-arena-analysis/internal/domain/model"
	"github.com/Phlares/wow-arena-analysis/internal/domain/types"
	"github.com/Phlares/wow-arena-analysis/pkg/logger"
	"github.com/Phlares/wow-arena-analysis/pkg/metrics"
)

// Default batch configuration.
const (
	defaultQueueSize     = 1024
	defaultProgressEvery = 50
)

// Summary describes one finished batch.
type Summary struct {
	RunID    string
	Total    int
	Resolved int
	// Pending counts recordings left unprocessed by a cancelled batch.
	Pending int
	// ByKind counts outcomes per error kind; "ok" counts resolved ones.
	ByKind   map[string]int
	Elapsed  time.Duration
	Outcomes []model.Outcome // in input order
}

// Unresolved is Total minus Resolved.
func (s Summary) Unresolved() int { return s.Total - s.Resolved }

// Service implements the batch runner and the API dependencies.
type Service struct {
	processor worker.Processor
	store     repository.Store

	workerCount   int
	queueSize     int
	progressEvery int

	// one batch at a time
	mu sync.Mutex

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize bounds the recording queue between producer and workers.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithProgressEvery logs batch progress every n outcomes.
func WithProgressEvery(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.progressEvery = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a Service. processor may be nil for a read-only service
// that only serves stored results.
func New(processor worker.Processor, store repository.Store, opts ...Option) *Service {
	s := &Service{
		processor:     processor,
		store:         store,
		workerCount:   runtime.NumCPU() * 2,
		queueSize:     defaultQueueSize,
		progressEvery: defaultProgressEvery,
		logger:        logger.Get().Named("service"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// collector gathers outcomes from the pool.
type collector struct {
	mu       sync.Mutex
	outcomes []model.Outcome
	total    int
	queue    *queue.InMemoryQueue
	progress rate.Sometimes
	logger   logger.Logger
}

func (c *collector) Collect(ctx context.Context, out model.Outcome) error { //nolint:gocritic // hugeParam
	if model.IsFatal(out.Err) {
		return fmt.Errorf("recording %s: %w", out.Recording.ID, out.Err)
	}

	c.mu.Lock()
	c.outcomes = append(c.outcomes, out)
	done := len(c.outcomes)
	c.mu.Unlock()

	c.progress.Do(func() {
		c.logger.Info(ctx, "batch progress",
			logger.Int("done", done),
			logger.Int("total", c.total),
			logger.Int("queued", c.queue.Len(ctx)),
		)
	})
	return nil
}

// Run processes recs and writes one record per recording. Per-recording
// failures are recorded, not returned; only storage failures abort the
// batch and are returned. When ctx is cancelled the workers stop after
// their current recording, the recordings already finished are still
// written, and ctx's error is returned with the partial summary.
func (s *Service) Run(ctx context.Context, recs []model.Recording) (Summary, error) {
	if s.processor == nil {
		return Summary{}, errors.New("service has no processor")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	runID := uuid.NewString()
	log := s.logger.With(logger.String("run_id", runID))
	log.Info(ctx, "batch started",
		logger.Int("recordings", len(recs)),
		logger.Int("workers", s.workerCount),
	)

	q := queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	col := &collector{
		outcomes: make([]model.Outcome, 0, len(recs)),
		total:    len(recs),
		queue:    q,
		progress: rate.Sometimes{Every: s.progressEvery},
		logger:   log,
	}
	pool := worker.NewPool(s.workerCount, q, s.processor, col)

	stopShutdown := context.AfterFunc(ctx, func() {
		log.Info(ctx, "batch cancelled, stopping workers")
		if err := pool.Shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Warn(ctx, "worker shutdown incomplete", logger.Error(err))
		}
	})
	defer stopShutdown()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer q.Close()
		for i, rec := range recs {
			err := q.EnqueueWait(gctx, model.Job{Seq: i, Recording: rec})
			if errors.Is(err, queue.ErrClosed) {
				return nil
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error { return pool.Run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, ctx.Err()) {
		log.Error(ctx, "batch aborted", logger.Error(err))
		return Summary{RunID: runID, Total: len(recs), Elapsed: time.Since(start)}, err
	}

	outcomes := col.outcomes
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Seq < outcomes[j].Seq })
	claimed := s.arbitrate(ctx, outcomes)

	sum := Summary{
		RunID:    runID,
		Total:    len(outcomes),
		Pending:  len(recs) - len(outcomes),
		ByKind:   make(map[string]int),
		Outcomes: outcomes,
	}
	// Finished recordings are written even when ctx is already cancelled.
	wctx := context.WithoutCancel(ctx)
	for i := range outcomes {
		out := &outcomes[i]
		if err := s.write(wctx, runID, out); err != nil {
			log.Error(ctx, "batch aborted", logger.Error(err))
			sum.Elapsed = time.Since(start)
			return sum, err
		}

		kind := model.KindOf(out.Err)
		sum.ByKind[kind]++
		metrics.RecordRecordingProcessed()
		if out.Resolved() {
			sum.Resolved++
			metrics.RecordRecordingResolved()
		} else {
			metrics.RecordRecordingUnresolved(kind)
		}
	}
	sum.Elapsed = time.Since(start)

	log.Info(ctx, "batch finished",
		logger.Int("total", sum.Total),
		logger.Int("resolved", sum.Resolved),
		logger.Int("unresolved", sum.Unresolved()),
		logger.Int("pending", sum.Pending),
		logger.Int64("sessions_claimed", claimed),
		logger.Duration("elapsed", sum.Elapsed),
	)
	return sum, ctx.Err()
}

// arbitrate enforces one recording per session and returns how many
// sessions were claimed. Higher confidence claims first; recording ID
// breaks ties so the result does not depend on worker scheduling.
func (s *Service) arbitrate(ctx context.Context, outcomes []model.Outcome) int64 {
	order := make([]int, 0, len(outcomes))
	for i := range outcomes {
		if outcomes[i].Resolved() {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		x, y := outcomes[order[a]], outcomes[order[b]]
		if x.Match.Confidence != y.Match.Confidence {
			return x.Match.Confidence > y.Match.Confidence
		}
		return x.Recording.ID < y.Recording.ID
	})

	ledger := dedupe.NewInMemoryLedger()
	for _, i := range order {
		out := &outcomes[i]
		holder, won := ledger.Claim(ctx, out.Match.SessionKey, out.Recording.ID)
		if won {
			continue
		}
		metrics.RecordClaimConflict()
		s.logger.Info(ctx, "session already claimed",
			logger.String("recording", out.Recording.ID),
			logger.String("session", out.Match.SessionKey),
			logger.String("holder", holder),
		)
		out.Err = fmt.Errorf("recording %s: session %s held by %s: %w",
			out.Recording.ID, out.Match.SessionKey, holder, model.ErrSessionClaimed)
		out.Match = nil
		out.Metrics = nil
	}
	return ledger.Size()
}

func (s *Service) write(ctx context.Context, runID string, out *model.Outcome) error {
	rec := types.NewMatchRecord(out.Recording, out.Match, out.Metrics, out.Err)
	rec.RunID = runID
	rec.ProcessedAt = time.Now().UTC()
	if err := s.store.Put(ctx, rec); err != nil {
		return fmt.Errorf("write %s: %w", out.Recording.ID, err)
	}
	return nil
}

// Match returns the stored record for one recording.
func (s *Service) Match(ctx context.Context, recordingID string) (types.MatchRecord, error) {
	return s.store.Get(ctx, recordingID)
}

// Latest returns up to n resolved records, most recent session first.
func (s *Service) Latest(ctx context.Context, n int) ([]types.MatchRecord, error) {
	return s.store.Latest(ctx, n)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) (map[string]interface{}, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	return map[string]interface{}{
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"records":     total,
		"resolved":    counts[types.StatusResolved],
		"unresolved":  counts[types.StatusUnresolved],
	}, nil
}

// RunSystemMetrics samples memory and goroutine gauges until ctx is done.
func RunSystemMetrics(ctx context.Context) {
	interval := metrics.RefreshInterval()
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sample := func() {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		metrics.UpdateSystemMemoryUsage(ms.HeapInuse)
		metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	}

	sample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample()
		}
	}
}
