// Package batch dispatches a batch of evaluation inputs to the evaluation
// service and tracks every job independently.
//
// One goroutine is spawned per job with no concurrency cap and no ordering
// between jobs. A failed job is logged and counted; it never cancels or
// delays its siblings. Successful handles are collected in settlement order.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ahrav/go-wuieval/internal/domain"
	"github.com/ahrav/go-wuieval/pkg/events"
)

// Submitter sends one input to the evaluation service.
type Submitter interface {
	SubmitURLEvaluation(ctx context.Context, url string, metricIDs []string) (domain.ResultHandle, error)
	SubmitFileEvaluation(ctx context.Context, file domain.FilePayload, metricIDs []string) (domain.ResultHandle, error)
}

// Orchestrator fans a batch of descriptors out to a Submitter.
type Orchestrator struct {
	submitter Submitter
	events    *EventEmitter
	logger    *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithEventSink emits job lifecycle events to sink.
func WithEventSink(sink events.EventSink) Option {
	return func(o *Orchestrator) { o.events.sink = sink }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
		o.events.logger = l
	}
}

// NewOrchestrator creates an orchestrator submitting through s.
func NewOrchestrator(s Submitter, opts ...Option) *Orchestrator {
	logger := slog.Default().With("component", "batch")
	o := &Orchestrator{
		submitter: s,
		logger:    logger,
		events:    NewEventEmitter(nil, logger),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Batch is one dispatched set of jobs. It offers no cancellation: once
// dispatched every job runs until it succeeds or fails.
type Batch struct {
	ID string

	mu       sync.Mutex
	jobs     []*domain.EvaluationJob
	agg      *Aggregator
	wg       sync.WaitGroup
	finished chan struct{}
	settled  atomic.Bool
}

// Dispatch creates one job per descriptor and submits them all concurrently.
// The batch total is fixed to len(descriptors) before any job starts.
// Submissions use a context detached from ctx's cancellation.
func (o *Orchestrator) Dispatch(ctx context.Context, descriptors []domain.RequestDescriptor) *Batch {
	b := &Batch{
		ID:       uuid.New().String(),
		jobs:     make([]*domain.EvaluationJob, len(descriptors)),
		agg:      NewAggregator(len(descriptors)),
		finished: make(chan struct{}),
	}
	for i, d := range descriptors {
		job := domain.NewEvaluationJob(i, d)
		_ = job.MarkSubmitted() // fresh job, always pending
		b.jobs[i] = job
	}

	o.logger.Info("dispatching batch", "batch_id", b.ID, "total", len(descriptors))

	jobCtx := context.WithoutCancel(ctx)
	b.wg.Add(len(b.jobs))
	for _, job := range b.jobs {
		go o.run(jobCtx, b, job)
	}
	go func() {
		b.wg.Wait()
		close(b.finished)
	}()
	return b
}

func (o *Orchestrator) run(ctx context.Context, b *Batch, job *domain.EvaluationJob) {
	defer b.wg.Done()

	o.events.EmitJob(ctx, domain.EventTypeJobSubmitted, b.ID, b.snapshot(job))

	handle, err := o.submit(ctx, job.Descriptor)
	if err == nil {
		err = handle.Validate()
	}
	if err != nil {
		o.settleFailure(ctx, b, job, err)
		return
	}
	o.settleSuccess(ctx, b, job, handle)
}

// submit calls the submitter for the descriptor's source kind. A panicking
// submitter is converted into that job's failure.
func (o *Orchestrator) submit(ctx context.Context, d domain.RequestDescriptor) (h domain.ResultHandle, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("submitter panic: %v", r)
		}
	}()

	switch d.Kind {
	case domain.SourceURL:
		return o.submitter.SubmitURLEvaluation(ctx, d.URL, d.Metrics())
	case domain.SourceFile:
		return o.submitter.SubmitFileEvaluation(ctx, *d.File, d.Metrics())
	default:
		return domain.ResultHandle{}, fmt.Errorf("%w: unknown source kind %q", domain.ErrInvalidDescriptor, d.Kind)
	}
}

func (o *Orchestrator) settleSuccess(ctx context.Context, b *Batch, job *domain.EvaluationJob, h domain.ResultHandle) {
	b.mu.Lock()
	added, err := b.agg.Succeed(h)
	if err == nil && added {
		_ = job.MarkSucceeded(h)
	}
	snap := job.Snapshot()
	b.mu.Unlock()

	switch {
	case err != nil:
		o.logger.Error("aggregator rejected success", "batch_id", b.ID, "job_id", job.ID, "error", err)
		return
	case !added:
		// The service returned a result id already seen in this batch.
		o.logger.Warn("duplicate result handle", "batch_id", b.ID, "job_id", job.ID, "result_id", h.ResultID)
		o.settleFailure(ctx, b, job, fmt.Errorf("%w: %s", domain.ErrDuplicateHandle, h.ResultID))
		return
	}

	o.logger.Info("job succeeded",
		"batch_id", b.ID,
		"job_id", job.ID,
		"result_id", h.ResultID,
		"input", job.Descriptor.Label())
	o.events.EmitJob(ctx, domain.EventTypeJobSucceeded, b.ID, snap)
	o.maybeSettled(ctx, b)
}

func (o *Orchestrator) settleFailure(ctx context.Context, b *Batch, job *domain.EvaluationJob, cause error) {
	b.mu.Lock()
	_ = job.MarkFailed(cause)
	snap := job.Snapshot()
	b.mu.Unlock()

	if err := b.agg.Fail(); err != nil {
		o.logger.Error("aggregator rejected failure", "batch_id", b.ID, "error", err)
		return
	}
	o.logger.Error("job failed",
		"batch_id", b.ID,
		"job_id", job.ID,
		"input", job.Descriptor.Label(),
		"error", cause)

	o.events.EmitJob(ctx, domain.EventTypeJobFailed, b.ID, snap)
	o.maybeSettled(ctx, b)
}

func (o *Orchestrator) maybeSettled(ctx context.Context, b *Batch) {
	p := b.agg.Snapshot()
	if !p.Settled || !b.markSettledOnce() {
		return
	}
	o.logger.Info("batch settled", "batch_id", b.ID, "completed", len(p.Completed), "failed", p.Failed)
	o.events.EmitBatchSettled(ctx, b.ID, p)
}

func (b *Batch) markSettledOnce() bool { return b.settled.CompareAndSwap(false, true) }

func (b *Batch) snapshot(job *domain.EvaluationJob) domain.EvaluationJob {
	b.mu.Lock()
	defer b.mu.Unlock()
	return job.Snapshot()
}

// Jobs returns copies of the batch's jobs in submission order.
func (b *Batch) Jobs() []domain.EvaluationJob {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.EvaluationJob, len(b.jobs))
	for i, j := range b.jobs {
		out[i] = j.Snapshot()
	}
	return out
}

// Total returns the fixed number of jobs.
func (b *Batch) Total() int { return len(b.jobs) }

// Progress returns the current aggregation snapshot.
func (b *Batch) Progress() Progress { return b.agg.Snapshot() }

// Changed returns a channel closed at the next settlement.
func (b *Batch) Changed() <-chan struct{} { return b.agg.Changed() }

// Done returns a channel closed once every job has settled.
func (b *Batch) Done() <-chan struct{} { return b.agg.Done() }

// Wait blocks until every job goroutine has returned or ctx ends.
// It is bookkeeping only; it never influences the jobs.
func (b *Batch) Wait(ctx context.Context) (Progress, error) {
	select {
	case <-b.finished:
		return b.agg.Snapshot(), nil
	case <-ctx.Done():
		return b.agg.Snapshot(), ctx.Err()
	}
}
