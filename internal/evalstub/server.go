// Package evalstub is an in-memory stand-in for the evaluation service and
// its result store. It speaks the same HTTP API, so the CLI and the worker
// can run locally and the HTTP client can be tested end to end.
//
// Submissions are accepted immediately; metric results appear later, one by
// one, either on a timer (WithComputeDelay) or when a test calls Complete.
package evalstub

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/ahrav/go-wuieval/internal/domain"
)

// input is one stored submission.
type input struct {
	meta    domain.InputMetadata
	results []domain.MetricResult
	timers  []*time.Timer
}

// Server holds submitted inputs and their results.
type Server struct {
	logger       *slog.Logger
	catalog      map[string]domain.Metric
	computeDelay time.Duration
	reject       map[string]int
	now          func() time.Time

	mu     sync.Mutex
	inputs map[string]*input
	closed bool
}

// Option configures a Server.
type Option func(*Server)

// WithComputeDelay makes each requested metric complete d after the previous
// one. Zero leaves computation to Complete.
func WithComputeDelay(d time.Duration) Option {
	return func(s *Server) { s.computeDelay = d }
}

// WithCatalog replaces the default metric catalog.
func WithCatalog(catalog map[string]domain.Metric) Option {
	return func(s *Server) { s.catalog = catalog }
}

// WithRejection makes submissions of the given URL or file name answer with
// status.
func WithRejection(name string, status int) Option {
	return func(s *Server) { s.reject[name] = status }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates an empty stub service.
func New(opts ...Option) *Server {
	s := &Server{
		logger:  slog.Default().With("component", "evalstub"),
		catalog: DefaultCatalog(),
		reject:  make(map[string]int),
		now:     time.Now,
		inputs:  make(map[string]*input),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP API mounted under /api.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/api", func(r chi.Router) {
		r.Get("/metrics", s.handleListMetrics)
		r.Get("/metrics/{metric_id}", s.handleGetMetric)
		r.Post("/evaluate_url_input", s.handleEvaluateURL)
		r.Post("/evaluate_file_input", s.handleEvaluateFile)
		r.Get("/data/{wui_id}", s.handleInputData)
		r.Get("/result/{wui_id}", s.handleResults)
	})
	return r
}

// Complete stores a result for one metric of an input. It reports false when
// the input is unknown or the metric already has a result.
func (s *Server) Complete(inputID, metricID string, results ...string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, ok := s.inputs[inputID]
	if !ok {
		return false
	}
	for _, r := range in.results {
		if r.MetricID == metricID {
			return false
		}
	}
	if results == nil {
		results = []string{}
	}
	in.results = append(in.results, domain.MetricResult{MetricID: metricID, Results: results})
	return true
}

// Inputs returns the ids of every stored input.
func (s *Server) Inputs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.inputs))
	for id := range s.inputs {
		ids = append(ids, id)
	}
	return ids
}

// Close stops pending computations.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, in := range s.inputs {
		for _, t := range in.timers {
			t.Stop()
		}
	}
}

// store records a new input and schedules its metrics.
func (s *Server) store(name string, kind domain.InputKind, metricIDs []string) domain.ResultHandle {
	id := uuid.New().String()
	meta := domain.InputMetadata{
		ID:               id,
		Name:             name,
		MetricsRequested: append([]string(nil), metricIDs...),
		CreatedAt:        s.now().UTC(),
	}
	switch kind {
	case domain.InputHTML, domain.InputZIP:
		meta.ScreenshotURL = "/files/" + id + ".png"
		meta.HTMLURL = "/files/" + id + ".html"
	default:
		meta.ScreenshotURL = "/files/" + id + ".png"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	in := &input{meta: meta}
	s.inputs[id] = in
	if s.computeDelay > 0 && !s.closed {
		for i, metricID := range metricIDs {
			delay := time.Duration(i+1) * s.computeDelay
			in.timers = append(in.timers, time.AfterFunc(delay, func() {
				s.Complete(id, metricID, "computed")
			}))
		}
	}

	s.logger.Info("input stored", "input_id", id, "kind", kind, "metrics", len(metricIDs))
	return domain.ResultHandle{ResultID: id, DisplayName: name, Kind: kind}
}

func (s *Server) lookup(id string) (domain.InputMetadata, []domain.MetricResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.inputs[id]
	if !ok {
		return domain.InputMetadata{}, nil, false
	}
	results := make([]domain.MetricResult, len(in.results))
	copy(results, in.results)
	return in.meta, results, true
}

// DefaultCatalog returns a small metric catalog.
func DefaultCatalog() map[string]domain.Metric {
	all := []string{"url", "html", "zip", "png"}
	dom := []string{"url", "html", "zip"}
	return map[string]domain.Metric{
		"m1":  {Name: "PNG file size", Description: "Size of the screenshot encoded as PNG.", AcceptedInput: all},
		"m3":  {Name: "Colorfulness", Description: "Perceived colorfulness of the screenshot.", AcceptedInput: all},
		"m5":  {Name: "White space", Description: "Share of the page that is white space.", AcceptedInput: all},
		"m8":  {Name: "Word count", Description: "Number of words rendered on the page.", AcceptedInput: dom},
		"m13": {Name: "Accessibility checks", Description: "Automated accessibility audit of the DOM.", AcceptedInput: dom},
	}
}
