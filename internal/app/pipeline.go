package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Phlares/wow-arena-analysis/internal/adapters/companion"
	"github.com/Phlares/wow-arena-analysis/internal/domain/disambiguate"
	"github.com/Phlares/wow-arena-analysis/internal/domain/estimate"
	"github.com/Phlares/wow-arena-analysis/internal/domain/model"
	"github.com/Phlares/wow-arena-analysis/internal/domain/scoring"
	"github.com/Phlares/wow-arena-analysis/internal/domain/session"
	"github.com/Phlares/wow-arena-analysis/internal/domain/verify"
	"github.com/Phlares/wow-arena-analysis/pkg/logger"
	"github.com/Phlares/wow-arena-analysis/pkg/metrics"
)

// Default pipeline scan extents.
const (
	DefaultSessionHorizon = 45 * time.Minute
	DefaultLookback       = 30 * time.Minute
)

// Stream serves sorted events for a time range.
type Stream interface {
	EventsIn(ctx context.Context, r model.TimeRange) ([]model.RawEvent, error)
}

// Tables is the static lookup the pipeline's stages share.
type Tables interface {
	session.Tables
	disambiguate.Tables
	verify.RoundTable
}

// Pipeline resolves one recording end to end: estimate, extract, pick,
// verify, then score. It implements worker.Processor and is safe for
// concurrent use.
type Pipeline struct {
	stream     Stream
	estimator  *estimate.Resolver
	extractor  *session.Extractor
	picker     *disambiguate.Disambiguator
	scorer     scoring.Scorer
	companions companion.Resolver

	horizon  time.Duration
	lookback time.Duration

	logger logger.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*pipelineConfig)

type pipelineConfig struct {
	estimator  *estimate.Resolver
	verifier   *verify.Verifier
	scorer     scoring.Scorer
	companions companion.Resolver
	horizon    time.Duration
	lookback   time.Duration
	logger     logger.Logger
}

// WithEstimator replaces the default evidence resolver.
func WithEstimator(r *estimate.Resolver) PipelineOption {
	return func(c *pipelineConfig) {
		if r != nil {
			c.estimator = r
		}
	}
}

// WithVerifier replaces the default boundary verifier.
func WithVerifier(v *verify.Verifier) PipelineOption {
	return func(c *pipelineConfig) {
		if v != nil {
			c.verifier = v
		}
	}
}

// WithScorer replaces the default metrics extractor.
func WithScorer(s scoring.Scorer) PipelineOption {
	return func(c *pipelineConfig) {
		if s != nil {
			c.scorer = s
		}
	}
}

// WithCompanions sets how the subject's companion is found. Without it the
// companion is always unknown.
func WithCompanions(r companion.Resolver) PipelineOption {
	return func(c *pipelineConfig) {
		c.companions = r
	}
}

// WithSessionHorizon sets how far past the search window the extractor
// looks for closing markers.
func WithSessionHorizon(d time.Duration) PipelineOption {
	return func(c *pipelineConfig) {
		if d >= 0 {
			c.horizon = d
		}
	}
}

// WithLookback sets how far before the search window events are folded.
func WithLookback(d time.Duration) PipelineOption {
	return func(c *pipelineConfig) {
		if d >= 0 {
			c.lookback = d
		}
	}
}

// WithPipelineLogger sets the pipeline's logger.
func WithPipelineLogger(l logger.Logger) PipelineOption {
	return func(c *pipelineConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewPipeline wires the resolution stages over stream and tables.
func NewPipeline(stream Stream, tables Tables, opts ...PipelineOption) *Pipeline {
	cfg := pipelineConfig{
		horizon:  DefaultSessionHorizon,
		lookback: DefaultLookback,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.estimator == nil {
		cfg.estimator = estimate.New()
	}
	if cfg.verifier == nil {
		cfg.verifier = verify.New(tables)
	}
	if cfg.scorer == nil {
		cfg.scorer = scoring.NewExtractor()
	}
	if cfg.logger == nil {
		cfg.logger = logger.Get().Named("pipeline")
	}

	return &Pipeline{
		stream:     stream,
		estimator:  cfg.estimator,
		extractor:  session.New(tables),
		picker:     disambiguate.New(tables, cfg.verifier),
		scorer:     cfg.scorer,
		companions: cfg.companions,
		horizon:    cfg.horizon,
		lookback:   cfg.lookback,
		logger:     cfg.logger,
	}
}

// Process implements worker.Processor.
func (p *Pipeline) Process(ctx context.Context, rec model.Recording) model.Outcome { //nolint:gocritic // hugeParam
	start := time.Now()
	out := model.Outcome{Recording: rec}
	defer func() {
		out.Elapsed = time.Since(start)
		metrics.RecordResolveLatency(float64(out.Elapsed.Milliseconds()))
	}()

	est, err := p.estimator.Resolve(rec)
	if err != nil {
		out.Err = fmt.Errorf("recording %s: %w", rec.ID, err)
		return out
	}
	out.Estimate = &est
	metrics.RecordEstimate(est.Tier.String())

	scan := session.Scan{
		Window:   est.Window(),
		Lookback: p.lookback,
		Horizon:  p.horizonFor(rec, est),
	}
	events, err := p.stream.EventsIn(ctx, scan.Range())
	if err != nil {
		out.Err = fmt.Errorf("recording %s: %w", rec.ID, err)
		return out
	}

	res := p.extractor.Extract(events, scan)
	out.Candidates = len(res.Candidates)
	metrics.RecordCandidatesPerWindow(len(res.Candidates))
	for _, id := range res.UnknownLocations {
		metrics.RecordUnknownLocation(id)
		p.logger.Warn(ctx, "session at unmapped location",
			logger.String("recording", rec.ID),
			logger.Error(fmt.Errorf("%w: %s", model.ErrUnknownLocationID, id)),
		)
	}

	pick, err := p.picker.Pick(disambiguate.Request{
		RecordingID:      rec.ID,
		Candidates:       res.Candidates,
		Estimate:         est,
		MatchType:        rec.MatchType,
		Location:         rec.Location,
		Events:           events,
		DeclaredDuration: rec.Duration,
		DeathCount:       rec.DeathCount,
		Participants:     rec.Participants,
	})
	if err != nil {
		out.Err = err
		return out
	}

	c := pick.Candidate
	if pick.Ambiguous {
		metrics.RecordAmbiguousMatch()
		p.logger.Warn(ctx, "ambiguous session pick",
			logger.String("recording", rec.ID),
			logger.String("session", c.Key()),
			logger.Error(model.ErrAmbiguousMatch),
		)
	}

	match := model.ResolvedMatch{
		RecordingID:  rec.ID,
		SessionKey:   c.Key(),
		Start:        c.Start.Instant,
		End:          c.Bound,
		Open:         c.Open(),
		Confidence:   verify.Confidence(est.Tier, pick.Verdict, c.Open(), pick.Ambiguous),
		Tier:         est.Tier,
		Ambiguous:    pick.Ambiguous,
		LocationID:   c.LocationID,
		LocationName: c.LocationName,
		MatchType:    c.MatchType,
		Rounds:       len(c.Rounds),
	}

	var mate model.Identity
	if p.companions != nil {
		mate, _ = p.companions.Companion(ctx, companion.Query{
			Subject: rec.Subject,
			Span:    match.Span(),
			Events:  events,
		})
	}

	mm, err := p.scorer.Score(ctx, scoring.Input{
		Match:     match,
		Subject:   rec.Subject,
		Companion: mate,
		Opponents: rec.Opponents,
		Events:    events,
	})
	if err != nil {
		out.Err = fmt.Errorf("recording %s: %w", rec.ID, err)
		return out
	}
	mm.RecordingID = rec.ID

	p.logger.Debug(ctx, "recording resolved",
		logger.String("recording", rec.ID),
		logger.String("session", match.SessionKey),
		logger.String("tier", est.Tier.String()),
		logger.Float64("confidence", match.Confidence),
		logger.Int("survivors", pick.Survivors),
	)

	out.Match = &match
	out.Metrics = &mm
	return out
}

// horizonFor extends the horizon so a long declared duration still reaches
// its end marker.
func (p *Pipeline) horizonFor(rec model.Recording, est model.TimestampEstimate) time.Duration { //nolint:gocritic // hugeParam
	h := p.horizon
	if need := rec.Duration + est.Radius; need > h {
		h = need
	}
	return h
}
