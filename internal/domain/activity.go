package domain

import "fmt"

// Activity contracts shared by the workflows and the activities that call the
// evaluation service. Inputs validate themselves; activities reject invalid
// inputs as non-retryable.

// SubmitEvaluationInput submits one job of a batch.
type SubmitEvaluationInput struct {
	BatchID    string            `json:"batch_id" validate:"required"`
	JobID      string            `json:"job_id" validate:"required"`
	Index      int               `json:"index" validate:"min=0"`
	Descriptor RequestDescriptor `json:"descriptor"`
}

// Validate checks the input and its descriptor.
func (in *SubmitEvaluationInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("invalid submit input: %w", err)
	}
	return in.Descriptor.Validate()
}

// SubmitEvaluationOutput is the handle the service returned for the job.
type SubmitEvaluationOutput struct {
	Handle ResultHandle `json:"handle"`
}

// InputQuery addresses one stored input.
type InputQuery struct {
	InputID string `json:"input_id" validate:"required"`
}

// Validate checks the input id is present.
func (q *InputQuery) Validate() error {
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("%w: %w", ErrMissingInputID, err)
	}
	return nil
}

// FetchResultsOutput carries the results stored so far for an input.
type FetchResultsOutput struct {
	Results []MetricResult `json:"results"`
}

// FetchInputMetadataOutput carries stored input metadata.
type FetchInputMetadataOutput struct {
	Metadata InputMetadata `json:"metadata"`
}
