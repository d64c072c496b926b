package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidDescriptor indicates that a request descriptor failed validation.
var ErrInvalidDescriptor = errors.New("invalid request descriptor")

// ErrEmptyMetricSet indicates a descriptor without any metric selected.
var ErrEmptyMetricSet = errors.New("metric set must not be empty")

// ErrInvalidHandle indicates that a result handle is missing required fields.
var ErrInvalidHandle = errors.New("invalid result handle")

// ErrDuplicateHandle indicates a result id already recorded in the same batch.
var ErrDuplicateHandle = errors.New("duplicate result handle")

// ErrInvalidTransition indicates an attempt to move a job backwards or out of a terminal state.
var ErrInvalidTransition = errors.New("invalid job state transition")

// ErrBatchOverflow indicates that more settlements were recorded than the batch holds.
var ErrBatchOverflow = errors.New("batch settlement exceeds total")

// TransitionError describes a rejected job state change.
type TransitionError struct {
	JobID string
	From  JobState
	To    JobState
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("job %s: cannot move from %s to %s", e.JobID, e.From, e.To)
}

// Unwrap allows errors.Is(err, ErrInvalidTransition).
func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
