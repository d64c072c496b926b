// Package worker exposes helpers to register workflows and activities with a
// Temporal worker.
package worker

import (
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/go-wuieval/internal/activity"
	"github.com/ahrav/go-wuieval/internal/workflow"
	pkgactivity "github.com/ahrav/go-wuieval/pkg/activity"
	"github.com/ahrav/go-wuieval/pkg/events"
)

// Registry is the subset of a Temporal worker used for registration.
type Registry interface {
	RegisterWorkflow(w any)
	RegisterActivity(a any)
}

var _ Registry = (sdkworker.Worker)(nil)

// RegisterAll registers both workflows and every evaluation activity. It must
// be called once, before the worker starts. A nil sink disables events.
func RegisterAll(w Registry, service activity.EvaluationService, sink events.EventSink) *activity.Activities {
	if sink == nil {
		sink = events.NewNoOpEventSink()
	}
	base := pkgactivity.NewBaseActivities(sink)
	acts := activity.NewActivities(base, service)

	w.RegisterWorkflow(workflow.BatchEvaluationWorkflow)
	w.RegisterWorkflow(workflow.ConvergenceWorkflow)

	w.RegisterActivity(acts.SubmitURLEvaluation)
	w.RegisterActivity(acts.SubmitFileEvaluation)
	w.RegisterActivity(acts.FetchResults)
	w.RegisterActivity(acts.FetchInputMetadata)
	return acts
}
