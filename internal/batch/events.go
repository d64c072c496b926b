package batch

import (
	"context"
	"log/slog"

	"github.com/ahrav/go-wuieval/internal/domain"
	"github.com/ahrav/go-wuieval/pkg/events"
)

const eventSource = "batch.orchestrator"

// EventEmitter turns job settlements into envelopes on an EventSink.
// Emission is best-effort: failures are logged and never reach the job.
type EventEmitter struct {
	sink   events.EventSink
	logger *slog.Logger
}

// NewEventEmitter creates an emitter. A nil sink disables emission.
func NewEventEmitter(sink events.EventSink, logger *slog.Logger) *EventEmitter {
	return &EventEmitter{sink: sink, logger: logger}
}

// EmitJob emits a job lifecycle event for the given job snapshot.
func (e *EventEmitter) EmitJob(ctx context.Context, eventType domain.EventType, batchID string, job domain.EvaluationJob) {
	payload := domain.JobEventPayload{
		BatchID:   batchID,
		JobID:     job.ID,
		Index:     job.Index,
		Source:    job.Descriptor.Kind,
		Label:     job.Descriptor.Label(),
		MetricIDs: job.Descriptor.Metrics(),
		Error:     job.Err,
	}
	if job.Handle != nil {
		payload.ResultID = job.Handle.ResultID
	}
	if err := payload.Validate(); err != nil {
		e.logger.Error("invalid job event payload", "job_id", job.ID, "error", err)
		return
	}
	e.emit(ctx, eventType, batchID, domain.JobEventIdempotencyKey(batchID, job.Index, eventType), payload)
}

// EmitBatchSettled emits the summary event of a settled batch.
func (e *EventEmitter) EmitBatchSettled(ctx context.Context, batchID string, p Progress) {
	payload := domain.BatchSettledPayload{
		BatchID:   batchID,
		Total:     p.Total,
		Completed: len(p.Completed),
		Failed:    p.Failed,
	}
	key := domain.GenerateIdempotencyKey(batchID, ":settled")
	e.emit(ctx, domain.EventTypeBatchSettled, batchID, key, payload)
}

func (e *EventEmitter) emit(ctx context.Context, eventType domain.EventType, subject, key string, payload any) {
	if e.sink == nil {
		return
	}
	env, err := events.NewEnvelope(string(eventType), eventSource, subject, key, payload)
	if err != nil {
		e.logger.Error("failed to build event", "event_type", eventType, "error", err)
		return
	}
	if err := e.sink.Append(ctx, env); err != nil {
		e.logger.Warn("failed to emit event", "event_type", eventType, "subject", subject, "error", err)
	}
}
