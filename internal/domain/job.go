package domain

import (
	"github.com/google/uuid"
)

// JobState represents where an evaluation job is in its lifecycle.
// States only move forward: pending → submitted → succeeded | failed.
type JobState uint8

const (
	// JobPending is the state of a job that has not been sent yet.
	JobPending JobState = iota

	// JobSubmitted marks a job whose remote call is in flight.
	JobSubmitted

	// JobSucceeded is terminal; the job carries a ResultHandle.
	JobSucceeded

	// JobFailed is terminal; the remote call was rejected or errored.
	JobFailed
)

// String returns the string representation of a JobState.
func (s JobState) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobSubmitted:
		return "submitted"
	case JobSucceeded:
		return "succeeded"
	case JobFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is a settlement state.
func (s JobState) Terminal() bool { return s == JobSucceeded || s == JobFailed }

// EvaluationJob wraps one RequestDescriptor with its lifecycle state.
// A job is owned by the goroutine (or workflow coroutine) that settles it;
// readers should work on copies.
type EvaluationJob struct {
	ID         string
	Index      int
	Descriptor RequestDescriptor
	State      JobState
	Handle     *ResultHandle
	Err        string
}

// NewEvaluationJob creates a pending job for the descriptor at position index
// of its batch.
//
// WARNING: uses uuid.New and must not be called from workflow code; use
// MakeEvaluationJob there.
func NewEvaluationJob(index int, d RequestDescriptor) *EvaluationJob {
	return MakeEvaluationJob(uuid.New().String(), index, d)
}

// MakeEvaluationJob creates a pending job with a caller-provided id.
func MakeEvaluationJob(id string, index int, d RequestDescriptor) *EvaluationJob {
	return &EvaluationJob{ID: id, Index: index, Descriptor: d, State: JobPending}
}

// MarkSubmitted moves the job from pending to submitted.
func (j *EvaluationJob) MarkSubmitted() error {
	return j.transition(JobPending, JobSubmitted)
}

// MarkSucceeded settles the job with the handle returned by the service.
func (j *EvaluationJob) MarkSucceeded(h ResultHandle) error {
	if err := j.transition(JobSubmitted, JobSucceeded); err != nil {
		return err
	}
	j.Handle = &h
	return nil
}

// MarkFailed settles the job as failed and records the cause.
func (j *EvaluationJob) MarkFailed(cause error) error {
	if err := j.transition(JobSubmitted, JobFailed); err != nil {
		return err
	}
	if cause != nil {
		j.Err = cause.Error()
	}
	return nil
}

func (j *EvaluationJob) transition(from, to JobState) error {
	if j.State != from {
		return &TransitionError{JobID: j.ID, From: j.State, To: to}
	}
	j.State = to
	return nil
}

// Snapshot returns a copy of the job safe to hand to other goroutines.
func (j *EvaluationJob) Snapshot() EvaluationJob {
	c := *j
	if j.Handle != nil {
		h := *j.Handle
		c.Handle = &h
	}
	return c
}
