package activity

import (
	"context"

	"github.com/ahrav/go-wuieval/internal/domain"
	pkgactivity "github.com/ahrav/go-wuieval/pkg/activity"
	"github.com/ahrav/go-wuieval/pkg/events"
)

const eventSource = "activity.submit"

// EventEmitter builds job settlement events for the submit activities.
type EventEmitter struct{ base pkgactivity.BaseActivities }

// NewEventEmitter creates an emitter on top of the base activity sink.
func NewEventEmitter(base pkgactivity.BaseActivities) *EventEmitter {
	return &EventEmitter{base: base}
}

// EmitJobSucceeded emits JobSucceeded for a submitted job.
func (e *EventEmitter) EmitJobSucceeded(ctx context.Context, input domain.SubmitEvaluationInput, h domain.ResultHandle) {
	p := jobPayload(input)
	p.ResultID = h.ResultID
	e.emit(ctx, domain.EventTypeJobSucceeded, input, p)
}

// EmitJobFailed emits JobFailed for a submitted job.
func (e *EventEmitter) EmitJobFailed(ctx context.Context, input domain.SubmitEvaluationInput, cause error) {
	p := jobPayload(input)
	p.Error = cause.Error()
	e.emit(ctx, domain.EventTypeJobFailed, input, p)
}

func (e *EventEmitter) emit(
	ctx context.Context,
	eventType domain.EventType,
	input domain.SubmitEvaluationInput,
	payload domain.JobEventPayload,
) {
	if err := payload.Validate(); err != nil {
		pkgactivity.SafeLogError(ctx, "Invalid job event payload", "job_id", input.JobID, "error", err)
		return
	}
	key := domain.JobEventIdempotencyKey(input.BatchID, input.Index, eventType)
	env, err := events.NewEnvelope(string(eventType), eventSource, input.BatchID, key, payload)
	if err != nil {
		pkgactivity.SafeLogError(ctx, "Failed to build job event", "job_id", input.JobID, "error", err)
		return
	}
	e.base.EmitEventSafe(ctx, env, string(eventType))
}

func jobPayload(input domain.SubmitEvaluationInput) domain.JobEventPayload {
	return domain.JobEventPayload{
		BatchID:   input.BatchID,
		JobID:     input.JobID,
		Index:     input.Index,
		Source:    input.Descriptor.Kind,
		Label:     input.Descriptor.Label(),
		MetricIDs: input.Descriptor.Metrics(),
	}
}
