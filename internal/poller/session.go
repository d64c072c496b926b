package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ahrav/go-wuieval/internal/domain"
)

// State is the lifecycle position of a Session.
type State uint8

const (
	// StateIdle is a session that never polls: no metrics were requested.
	StateIdle State = iota
	// StatePolling is a session waiting for more results.
	StatePolling
	// StateConverged is a session that saw one result per requested metric.
	StateConverged
	// StateStopped is a session torn down before convergence.
	StateStopped
	// StateExhausted is a session that used up MaxAttempts.
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateConverged:
		return "converged"
	case StateStopped:
		return "stopped"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Session is the poll loop of one opened view. It is owned by that view and
// must be closed when the view goes away.
type Session struct {
	poller   *Poller
	target   domain.PollTarget
	metadata domain.InputMetadata
	logger   *slog.Logger

	mu      sync.Mutex
	state   State
	results []domain.MetricResult
	ticks   int

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once

	// notifying is set while the update callback runs on the poll goroutine.
	notifying atomic.Bool
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.poller.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.stop()
			return
		case <-ticker.C:
		}

		results, err := s.poller.store.FetchResults(ctx, s.target.InputID)
		if ctx.Err() != nil {
			s.stop()
			return
		}

		state, ticks, fresh := s.apply(results, err)
		switch state {
		case StateConverged:
			s.logger.Info("results converged", "expected", s.target.ExpectedCount, "ticks", ticks)
			s.poller.emitConverged(ctx, s.target, ticks)
		case StateExhausted:
			s.logger.Warn("poll attempts exhausted",
				"expected", s.target.ExpectedCount,
				"observed", s.Observed(),
				"ticks", ticks)
		}
		if fresh {
			s.notifying.Store(true)
			s.poller.notify(s.target.InputID, results)
			s.notifying.Store(false)
		}
		if state != StatePolling {
			return
		}
	}
}

// apply records one tick. It reports the resulting state, the tick count and
// whether a fresh result set was stored.
func (s *Session) apply(results []domain.MetricResult, err error) (State, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ticks++
	fresh := false
	if err != nil {
		s.logger.Debug("results query failed", "tick", s.ticks, "error", err)
	} else {
		s.results = results
		fresh = true
	}

	switch {
	case s.target.Converged(s.results):
		s.state = StateConverged
	case s.poller.cfg.MaxAttempts > 0 && s.ticks >= s.poller.cfg.MaxAttempts:
		s.state = StateExhausted
	}
	return s.state, s.ticks, fresh
}

func (s *Session) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StatePolling {
		s.state = StateStopped
	}
}

// Close tears the session down. It cancels the timer and waits for the poll
// goroutine to return, so no state changes once Close returns. Closing a
// finished session keeps its final state.
//
// Close may be called from the update callback. It then returns without
// waiting; the poll goroutine exits once the callback returns.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		if !s.notifying.Load() {
			<-s.done
		}
		s.mu.Lock()
		if s.state == StatePolling {
			s.state = StateStopped
		}
		s.mu.Unlock()
	})
}

// Done returns a channel closed once the session stops polling for any reason.
func (s *Session) Done() <-chan struct{} { return s.done }

// Target returns what the session waits for.
func (s *Session) Target() domain.PollTarget { return s.target }

// Metadata returns the stored input metadata loaded at Open.
func (s *Session) Metadata() domain.InputMetadata { return s.metadata }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ticks returns the number of results queries issued after Open.
func (s *Session) Ticks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

// Results returns a copy of the latest successfully fetched results.
func (s *Session) Results() []domain.MetricResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneResults(s.results)
}

// Observed returns how many requested metrics currently have a result.
func (s *Session) Observed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target.ObservedCount(s.results)
}

// Statuses returns per-metric readiness for the latest results.
func (s *Session) Statuses() []domain.MetricStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target.MetricStatuses(s.results)
}
