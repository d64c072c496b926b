package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ahrav/go-wuieval/internal/activity"
	"github.com/ahrav/go-wuieval/internal/domain"
	"github.com/ahrav/go-wuieval/internal/poller"
)

// QueryStatus is the query name answering with the current ConvergenceStatus.
const QueryStatus = "status"

// fetchTimeout bounds one result store query.
const fetchTimeout = 30 * time.Second

// ConvergenceInput starts watching one input.
type ConvergenceInput struct {
	InputID string `json:"input_id"`

	// Interval between ticks. Zero means poller.DefaultInterval.
	Interval time.Duration `json:"interval,omitempty"`

	// MaxAttempts caps the ticks. Zero polls until convergence or cancellation.
	MaxAttempts int `json:"max_attempts,omitempty"`
}

// ConvergenceStatus is the view answered by the status query and returned
// when the workflow ends.
type ConvergenceStatus struct {
	InputID       string                `json:"input_id"`
	State         string                `json:"state"`
	ExpectedCount int                   `json:"expected_count"`
	Observed      int                   `json:"observed"`
	Ticks         int                   `json:"ticks"`
	Metrics       []domain.MetricStatus `json:"metrics"`
	Results       []domain.MetricResult `json:"results"`
}

// ConvergenceWorkflow polls the result store for one input at a fixed
// interval until it holds a result for every requested metric.
//
// Metadata is loaded first; failing to load it fails the workflow. An input
// that requested no metrics ends immediately in the idle state. A failed
// tick query is ignored. Cancelling the workflow stops the timer and ends it
// in the stopped state.
func ConvergenceWorkflow(ctx workflow.Context, in ConvergenceInput) (*ConvergenceStatus, error) {
	const currentVersion = 1
	_ = workflow.GetVersion(ctx, "convergence.v", workflow.DefaultVersion, currentVersion)

	query := domain.InputQuery{InputID: in.InputID}
	if err := query.Validate(); err != nil {
		return nil, temporal.NewNonRetryableApplicationError("invalid convergence input", activity.ErrTypeValidation, err)
	}

	logger := workflow.GetLogger(ctx)
	interval := in.Interval
	if interval <= 0 {
		interval = poller.DefaultInterval
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: fetchTimeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})

	var a *activity.Activities

	var metaOut domain.FetchInputMetadataOutput
	if err := workflow.ExecuteActivity(ctx, a.FetchInputMetadata, query).Get(ctx, &metaOut); err != nil {
		return nil, err
	}
	target, err := domain.NewPollTarget(metaOut.Metadata)
	if err != nil {
		return nil, temporal.NewNonRetryableApplicationError("invalid input metadata", activity.ErrTypeValidation, err)
	}

	state := poller.StateIdle
	var (
		results []domain.MetricResult
		ticks   int
	)
	status := func() ConvergenceStatus {
		return ConvergenceStatus{
			InputID:       target.InputID,
			State:         state.String(),
			ExpectedCount: target.ExpectedCount,
			Observed:      target.ObservedCount(results),
			Ticks:         ticks,
			Metrics:       target.MetricStatuses(results),
			Results:       results,
		}
	}
	if err := workflow.SetQueryHandler(ctx, QueryStatus, func() (ConvergenceStatus, error) {
		return status(), nil
	}); err != nil {
		return nil, err
	}

	if !target.NeedsPolling() {
		logger.Info("No metrics requested, not polling", "input_id", target.InputID)
		out := status()
		return &out, nil
	}

	fetch := func() {
		var res domain.FetchResultsOutput
		if err := workflow.ExecuteActivity(ctx, a.FetchResults, query).Get(ctx, &res); err != nil {
			logger.Debug("Results query failed", "input_id", target.InputID, "tick", ticks, "error", err)
			return
		}
		results = res.Results
	}

	fetch()
	state = poller.StatePolling
	for !target.Converged(results) {
		if in.MaxAttempts > 0 && ticks >= in.MaxAttempts {
			state = poller.StateExhausted
			logger.Warn("Poll attempts exhausted", "input_id", target.InputID, "ticks", ticks)
			out := status()
			return &out, nil
		}
		if err := workflow.NewTimer(ctx, interval).Get(ctx, nil); err != nil {
			if ctx.Err() == nil {
				return nil, err
			}
			state = poller.StateStopped
			logger.Info("Polling cancelled", "input_id", target.InputID, "ticks", ticks)
			out := status()
			return &out, nil
		}
		ticks++
		fetch()
		if ctx.Err() != nil {
			state = poller.StateStopped
			out := status()
			return &out, nil
		}
	}

	state = poller.StateConverged
	logger.Info("Results converged", "input_id", target.InputID, "expected", target.ExpectedCount, "ticks", ticks)
	out := status()
	return &out, nil
}
