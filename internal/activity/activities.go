// Package activity implements the Temporal activities that call the
// evaluation service and its result store on behalf of the workflows.
package activity

import (
	"context"
	"fmt"

	"github.com/ahrav/go-wuieval/internal/domain"
	pkgactivity "github.com/ahrav/go-wuieval/pkg/activity"
)

// EvaluationService is the remote side the activities talk to.
// *evalclient.Client implements it.
type EvaluationService interface {
	SubmitURLEvaluation(ctx context.Context, url string, metricIDs []string) (domain.ResultHandle, error)
	SubmitFileEvaluation(ctx context.Context, file domain.FilePayload, metricIDs []string) (domain.ResultHandle, error)
	FetchResults(ctx context.Context, inputID string) ([]domain.MetricResult, error)
	FetchInputMetadata(ctx context.Context, inputID string) (domain.InputMetadata, error)
}

// Activities groups the evaluation activities around one service client.
type Activities struct {
	pkgactivity.BaseActivities
	service EvaluationService
	events  *EventEmitter
}

// NewActivities creates the activities.
func NewActivities(base pkgactivity.BaseActivities, service EvaluationService) *Activities {
	return &Activities{
		BaseActivities: base,
		service:        service,
		events:         NewEventEmitter(base),
	}
}

// SubmitURLEvaluation submits a URL-sourced job.
func (a *Activities) SubmitURLEvaluation(
	ctx context.Context,
	input domain.SubmitEvaluationInput,
) (*domain.SubmitEvaluationOutput, error) {
	if err := a.checkSubmit(input, domain.SourceURL); err != nil {
		return nil, err
	}
	return a.submit(ctx, input, func(ctx context.Context) (domain.ResultHandle, error) {
		return a.service.SubmitURLEvaluation(ctx, input.Descriptor.URL, input.Descriptor.Metrics())
	})
}

// SubmitFileEvaluation submits a file-sourced job.
func (a *Activities) SubmitFileEvaluation(
	ctx context.Context,
	input domain.SubmitEvaluationInput,
) (*domain.SubmitEvaluationOutput, error) {
	if err := a.checkSubmit(input, domain.SourceFile); err != nil {
		return nil, err
	}
	return a.submit(ctx, input, func(ctx context.Context) (domain.ResultHandle, error) {
		return a.service.SubmitFileEvaluation(ctx, *input.Descriptor.File, input.Descriptor.Metrics())
	})
}

func (a *Activities) checkSubmit(input domain.SubmitEvaluationInput, kind domain.SourceKind) error {
	if err := input.Validate(); err != nil {
		return nonRetryable(ErrTypeValidation, err, "invalid submit input")
	}
	if input.Descriptor.Kind != kind {
		return nonRetryable(ErrTypeValidation,
			fmt.Errorf("%w: got %s, want %s", ErrWrongSourceKind, input.Descriptor.Kind, kind),
			"invalid submit input")
	}
	return nil
}

func (a *Activities) submit(
	ctx context.Context,
	input domain.SubmitEvaluationInput,
	call func(context.Context) (domain.ResultHandle, error),
) (*domain.SubmitEvaluationOutput, error) {
	wfCtx := a.GetWorkflowContext(ctx)
	pkgactivity.SafeLog(ctx, "Submitting evaluation",
		"workflow_id", wfCtx.WorkflowID,
		"batch_id", input.BatchID,
		"index", input.Index,
		"input", input.Descriptor.Label(),
		"metrics", len(input.Descriptor.MetricIDs))

	handle, err := call(ctx)
	if err == nil {
		if verr := handle.Validate(); verr != nil {
			err = nonRetryable(ErrTypeInvalidHandle, verr, "evaluation service returned an invalid handle")
		}
	} else {
		err = classify(err, "evaluation submission failed")
	}
	if err != nil {
		pkgactivity.SafeLogError(ctx, "Evaluation submission failed",
			"batch_id", input.BatchID,
			"index", input.Index,
			"input", input.Descriptor.Label(),
			"error", err)
		a.events.EmitJobFailed(ctx, input, err)
		return nil, err
	}

	pkgactivity.SafeLog(ctx, "Evaluation submitted",
		"batch_id", input.BatchID,
		"index", input.Index,
		"result_id", handle.ResultID)
	a.events.EmitJobSucceeded(ctx, input, handle)
	return &domain.SubmitEvaluationOutput{Handle: handle}, nil
}

// FetchResults returns the results stored so far for an input.
func (a *Activities) FetchResults(ctx context.Context, input domain.InputQuery) (*domain.FetchResultsOutput, error) {
	if err := input.Validate(); err != nil {
		return nil, nonRetryable(ErrTypeValidation, err, "invalid results query")
	}
	results, err := a.service.FetchResults(ctx, input.InputID)
	if err != nil {
		pkgactivity.SafeLogWarn(ctx, "Results query failed", "input_id", input.InputID, "error", err)
		return nil, classify(err, "results query failed")
	}
	return &domain.FetchResultsOutput{Results: results}, nil
}

// FetchInputMetadata returns what the store keeps about an input.
func (a *Activities) FetchInputMetadata(
	ctx context.Context,
	input domain.InputQuery,
) (*domain.FetchInputMetadataOutput, error) {
	if err := input.Validate(); err != nil {
		return nil, nonRetryable(ErrTypeValidation, err, "invalid metadata query")
	}
	meta, err := a.service.FetchInputMetadata(ctx, input.InputID)
	if err != nil {
		pkgactivity.SafeLogError(ctx, "Metadata query failed", "input_id", input.InputID, "error", err)
		return nil, classify(err, "metadata query failed")
	}
	return &domain.FetchInputMetadataOutput{Metadata: meta}, nil
}
