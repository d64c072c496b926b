// Package poller watches a single stored input until the result store holds
// one result per requested metric.
//
// A Session ticks at a fixed interval with no backoff and no jitter. A failed
// query is a no-op for its tick. The session ends when it converges, when the
// owning view closes it, or, if MaxAttempts is set, when the attempt budget
// runs out.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahrav/go-wuieval/internal/domain"
	"github.com/ahrav/go-wuieval/pkg/events"
)

// DefaultInterval is the fixed delay between two result queries.
const DefaultInterval = 3 * time.Second

// ResultStore answers the two queries a detail view needs.
type ResultStore interface {
	FetchResults(ctx context.Context, inputID string) ([]domain.MetricResult, error)
	FetchInputMetadata(ctx context.Context, inputID string) (domain.InputMetadata, error)
}

// Config controls the polling cadence.
type Config struct {
	// Interval between ticks. Zero means DefaultInterval.
	Interval time.Duration `json:"interval" yaml:"interval"`

	// MaxAttempts caps the number of ticks. Zero polls until convergence or
	// teardown.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" validate:"min=0"`
}

// DefaultConfig returns the unbounded 3 second cadence.
func DefaultConfig() Config {
	return Config{Interval: DefaultInterval}
}

// Poller opens sessions against a ResultStore.
type Poller struct {
	store    ResultStore
	cfg      Config
	logger   *slog.Logger
	sink     events.EventSink
	onUpdate func(inputID string, results []domain.MetricResult)
}

// Option configures a Poller.
type Option func(*Poller)

// WithEventSink emits PollConverged events to sink.
func WithEventSink(sink events.EventSink) Option {
	return func(p *Poller) { p.sink = sink }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// WithOnUpdate registers a callback receiving every successfully fetched
// result set, including the initial one. It runs on the session goroutine and
// never after Close has returned, unless Close was called from the callback.
func WithOnUpdate(fn func(inputID string, results []domain.MetricResult)) Option {
	return func(p *Poller) { p.onUpdate = fn }
}

// New creates a poller.
func New(store ResultStore, cfg Config, opts ...Option) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxAttempts < 0 {
		cfg.MaxAttempts = 0
	}
	p := &Poller{
		store:  store,
		cfg:    cfg,
		logger: slog.Default().With("component", "poller"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Open starts watching inputID. Metadata is required: its error is returned
// and no session exists. A failed initial results query counts as zero
// observed results.
//
// The session polls only when at least one metric was requested and fewer
// results than that are present. Cancelling ctx has the same effect as Close.
func (p *Poller) Open(ctx context.Context, inputID string) (*Session, error) {
	meta, err := p.store.FetchInputMetadata(ctx, inputID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch input metadata %s: %w", inputID, err)
	}
	target, err := domain.NewPollTarget(meta)
	if err != nil {
		return nil, fmt.Errorf("input %s: %w", inputID, err)
	}

	s := &Session{
		poller:   p,
		target:   target,
		metadata: meta,
		state:    StateIdle,
		done:     make(chan struct{}),
		logger:   p.logger.With("input_id", target.InputID),
	}
	if !target.NeedsPolling() {
		s.logger.Debug("no metrics requested, not polling")
		s.cancel = func() {}
		close(s.done)
		return s, nil
	}

	results, err := p.store.FetchResults(ctx, target.InputID)
	if err != nil {
		s.logger.Warn("initial results query failed", "error", err)
	} else {
		s.results = results
		p.notify(target.InputID, results)
	}

	if target.Converged(s.results) {
		s.state = StateConverged
		s.cancel = func() {}
		close(s.done)
		p.emitConverged(ctx, s.target, 0)
		return s, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StatePolling
	s.logger.Info("polling for results",
		"expected", target.ExpectedCount,
		"observed", target.ObservedCount(s.results),
		"interval", p.cfg.Interval)
	go s.run(runCtx)
	return s, nil
}

func (p *Poller) notify(inputID string, results []domain.MetricResult) {
	if p.onUpdate != nil {
		p.onUpdate(inputID, cloneResults(results))
	}
}

func (p *Poller) emitConverged(ctx context.Context, t domain.PollTarget, ticks int) {
	if p.sink == nil {
		return
	}
	payload := domain.PollConvergedPayload{
		InputID:       t.InputID,
		ExpectedCount: t.ExpectedCount,
		Ticks:         ticks,
	}
	key := domain.GenerateIdempotencyKey(t.InputID, ":converged")
	env, err := events.NewEnvelope(string(domain.EventTypePollConverged), "poller", t.InputID, key, payload)
	if err != nil {
		p.logger.Error("failed to build event", "error", err)
		return
	}
	if err := p.sink.Append(context.WithoutCancel(ctx), env); err != nil {
		p.logger.Warn("failed to emit event", "event_type", env.Type, "error", err)
	}
}

func cloneResults(in []domain.MetricResult) []domain.MetricResult {
	if in == nil {
		return nil
	}
	out := make([]domain.MetricResult, len(in))
	for i, r := range in {
		out[i] = domain.MetricResult{MetricID: r.MetricID, Results: append([]string(nil), r.Results...)}
	}
	return out
}
