package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// EventType represents the type of event emitted by the system.
type EventType string

const (
	// EventTypeJobSubmitted is emitted when a job's remote call starts.
	EventTypeJobSubmitted EventType = "JobSubmitted"

	// EventTypeJobSucceeded is emitted when a job settles with a handle.
	EventTypeJobSucceeded EventType = "JobSucceeded"

	// EventTypeJobFailed is emitted when a job settles with an error.
	EventTypeJobFailed EventType = "JobFailed"

	// EventTypeBatchSettled is emitted once every job of a batch has settled.
	EventTypeBatchSettled EventType = "BatchSettled"

	// EventTypePollConverged is emitted when a poll session sees all results.
	EventTypePollConverged EventType = "PollConverged"
)

// JobEventPayload is the payload of the job lifecycle events.
type JobEventPayload struct {
	BatchID   string     `json:"batch_id" validate:"required"`
	JobID     string     `json:"job_id" validate:"required"`
	Index     int        `json:"index" validate:"min=0"`
	Source    SourceKind `json:"source" validate:"required"`
	Label     string     `json:"label"`
	MetricIDs []string   `json:"metric_ids"`
	ResultID  string     `json:"result_id,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Validate checks if the payload meets all requirements.
func (p *JobEventPayload) Validate() error { return validate.Struct(p) }

// BatchSettledPayload summarizes a settled batch.
type BatchSettledPayload struct {
	BatchID   string `json:"batch_id" validate:"required"`
	Total     int    `json:"total" validate:"min=0"`
	Completed int    `json:"completed" validate:"min=0"`
	Failed    int    `json:"failed" validate:"min=0"`
}

// Validate checks if the payload meets all requirements.
func (p *BatchSettledPayload) Validate() error { return validate.Struct(p) }

// PollConvergedPayload records how a poll session ended.
type PollConvergedPayload struct {
	InputID       string `json:"input_id" validate:"required"`
	ExpectedCount int    `json:"expected_count" validate:"min=0"`
	Ticks         int    `json:"ticks" validate:"min=0"`
}

// Validate checks if the payload meets all requirements.
func (p *PollConvergedPayload) Validate() error { return validate.Struct(p) }

// GenerateIdempotencyKey creates a deterministic key for event deduplication
// from the subject (batch or input id) and an event-specific suffix.
func GenerateIdempotencyKey(subject, suffix string) string {
	sum := sha256.Sum256([]byte(subject + suffix))
	return hex.EncodeToString(sum[:])
}

// JobEventIdempotencyKey generates the key for a job lifecycle event:
// H(batch_id || ":job:" || index || ":" || type).
func JobEventIdempotencyKey(batchID string, index int, t EventType) string {
	return GenerateIdempotencyKey(batchID, fmt.Sprintf(":job:%d:%s", index, t))
}
