package workflow

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ahrav/go-wuieval/internal/activity"
	"github.com/ahrav/go-wuieval/internal/domain"
)

// QueryProgress is the query name answering with the current BatchProgress.
const QueryProgress = "progress"

// DefaultSubmitTimeout bounds one submit activity.
const DefaultSubmitTimeout = 10 * time.Minute

// ErrMissingBatchID indicates a batch input without identifier.
var ErrMissingBatchID = errors.New("batch id is required")

// MaxInlineFileSize bounds the bytes of one file descriptor carried in the
// workflow input. File contents travel in the start payload and the history,
// and the server rejects payloads over 2 MiB by default.
const MaxInlineFileSize = 1 << 20

// ErrFileTooLarge indicates a file descriptor over MaxInlineFileSize.
var ErrFileTooLarge = errors.New("file too large for a workflow batch")

// BatchInput starts a batch.
type BatchInput struct {
	BatchID     string                     `json:"batch_id"`
	Descriptors []domain.RequestDescriptor `json:"descriptors"`

	// SubmitTimeout bounds each submission. Zero means DefaultSubmitTimeout.
	SubmitTimeout time.Duration `json:"submit_timeout,omitempty"`
}

// Validate checks the batch id, every descriptor and the inline file sizes.
// Callers should validate before starting the workflow: an oversized input is
// refused by the server before any job runs.
func (in *BatchInput) Validate() error {
	if in.BatchID == "" {
		return ErrMissingBatchID
	}
	for i, d := range in.Descriptors {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("descriptor %d: %w", i, err)
		}
		if d.File != nil && len(d.File.Data) > MaxInlineFileSize {
			return fmt.Errorf("descriptor %d (%s, %d bytes): %w", i, d.File.Name, len(d.File.Data), ErrFileTooLarge)
		}
	}
	return nil
}

// BatchProgress is the point-in-time view answered by the progress query.
type BatchProgress struct {
	Total     int                   `json:"total"`
	Completed []domain.ResultHandle `json:"completed"`
	Failed    int                   `json:"failed"`
	Fraction  float64               `json:"fraction"`
	Settled   bool                  `json:"settled"`
}

// BatchOutput is the settled batch.
type BatchOutput struct {
	BatchProgress
	BatchID string                 `json:"batch_id"`
	Jobs    []domain.EvaluationJob `json:"jobs"`
}

// BatchEvaluationWorkflow submits every descriptor concurrently and waits
// until each job has succeeded or failed. Submissions are attempted once. A
// failed job is counted and logged; it never fails the workflow or cancels
// its siblings.
func BatchEvaluationWorkflow(ctx workflow.Context, in BatchInput) (*BatchOutput, error) {
	const currentVersion = 1
	_ = workflow.GetVersion(ctx, "batch.v", workflow.DefaultVersion, currentVersion)

	if err := in.Validate(); err != nil {
		return nil, temporal.NewNonRetryableApplicationError("invalid batch input", activity.ErrTypeValidation, err)
	}

	logger := workflow.GetLogger(ctx)

	timeout := in.SubmitTimeout
	if timeout <= 0 {
		timeout = DefaultSubmitTimeout
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})

	state := domain.NewBatchState(len(in.Descriptors))
	jobs := make([]*domain.EvaluationJob, len(in.Descriptors))
	for i, d := range in.Descriptors {
		jobs[i] = domain.MakeEvaluationJob(fmt.Sprintf("%s/%d", in.BatchID, i), i, d)
	}

	if err := workflow.SetQueryHandler(ctx, QueryProgress, func() (BatchProgress, error) {
		return progressOf(state), nil
	}); err != nil {
		return nil, fmt.Errorf("failed to register progress query: %w", err)
	}

	logger.Info("Dispatching batch", "batch_id", in.BatchID, "total", len(jobs))

	var a *activity.Activities
	wg := workflow.NewWaitGroup(ctx)
	for _, job := range jobs {
		_ = job.MarkSubmitted()
		wg.Add(1)
		workflow.Go(ctx, func(ctx workflow.Context) {
			defer wg.Done()

			input := domain.SubmitEvaluationInput{
				BatchID:    in.BatchID,
				JobID:      job.ID,
				Index:      job.Index,
				Descriptor: job.Descriptor,
			}
			submit := a.SubmitURLEvaluation
			if job.Descriptor.Kind == domain.SourceFile {
				submit = a.SubmitFileEvaluation
			}

			var out domain.SubmitEvaluationOutput
			if err := workflow.ExecuteActivity(ctx, submit, input).Get(ctx, &out); err != nil {
				_ = job.MarkFailed(err)
				if rerr := state.RecordFailure(); rerr != nil {
					logger.Error("Batch rejected failure", "batch_id", in.BatchID, "error", rerr)
				}
				logger.Error("Job failed", "batch_id", in.BatchID, "index", job.Index, "input", job.Descriptor.Label(), "error", err)
				return
			}

			added, err := state.RecordSuccess(out.Handle)
			switch {
			case err != nil:
				logger.Error("Batch rejected success", "batch_id", in.BatchID, "error", err)
			case !added:
				logger.Warn("Duplicate result handle", "batch_id", in.BatchID, "result_id", out.Handle.ResultID)
				_ = job.MarkFailed(fmt.Errorf("%w: %s", domain.ErrDuplicateHandle, out.Handle.ResultID))
				_ = state.RecordFailure()
			default:
				_ = job.MarkSucceeded(out.Handle)
				logger.Info("Job succeeded", "batch_id", in.BatchID, "index", job.Index, "result_id", out.Handle.ResultID)
			}
		})
	}
	wg.Wait(ctx)

	out := &BatchOutput{
		BatchProgress: progressOf(state),
		BatchID:       in.BatchID,
		Jobs:          make([]domain.EvaluationJob, len(jobs)),
	}
	for i, job := range jobs {
		out.Jobs[i] = job.Snapshot()
	}
	logger.Info("Batch settled", "batch_id", in.BatchID, "completed", len(out.Completed), "failed", out.Failed)
	return out, nil
}

func progressOf(state *domain.BatchState) BatchProgress {
	return BatchProgress{
		Total:     state.Total(),
		Completed: state.Completed(),
		Failed:    state.Failed(),
		Fraction:  state.Progress(),
		Settled:   state.Settled(),
	}
}
