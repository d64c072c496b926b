// Package events provides the generic event infrastructure for domain event emission.
// It defines the Envelope type for wrapping domain events with consistent metadata
// and the EventSink interface for event storage/transmission.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CurrentVersion is the envelope schema version written by this package.
const CurrentVersion = "1.0.0"

// Envelope wraps domain events with consistent metadata for reliable event processing.
//
// The envelope pattern enables:
// - Schema evolution through versioning
// - Event deduplication via idempotency keys
// - Correlation of every job event with its batch (Subject).
type Envelope struct {
	// ID uniquely identifies this event instance.
	ID string `json:"id"`

	// Type identifies the event for routing and processing.
	// Examples: "JobSucceeded", "PollConverged".
	Type string `json:"type"`

	// Source identifies the component that emitted this event.
	// Examples: "batch.orchestrator", "activity.submit_url".
	Source string `json:"source"`

	// Version enables schema evolution and backward compatibility.
	Version string `json:"version"`

	// Timestamp records when the event was emitted.
	Timestamp time.Time `json:"timestamp"`

	// IdempotencyKey lets consumers drop duplicates after retries or replays.
	IdempotencyKey string `json:"idempotency_key"`

	// Subject is the batch id or input id the event is about.
	Subject string `json:"subject"`

	// WorkflowID and RunID are set when the event comes from a Temporal activity.
	WorkflowID string `json:"workflow_id,omitempty"`
	RunID      string `json:"run_id,omitempty"`

	// Payload contains the domain-specific event data as JSON.
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload and wraps it with fresh metadata.
func NewEnvelope(eventType, source, subject, idemKey string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		ID:             uuid.New().String(),
		Type:           eventType,
		Source:         source,
		Version:        CurrentVersion,
		Timestamp:      time.Now().UTC(),
		IdempotencyKey: idemKey,
		Subject:        subject,
		Payload:        raw,
	}, nil
}

// EventSink defines the interface for emitting events to downstream consumers.
//
// Returns error if the event cannot be queued, but callers should
// not fail their primary operation due to event sink failures.
type EventSink interface {
	// Append adds an event to the sink with best-effort delivery.
	Append(ctx context.Context, envelope Envelope) error
}

// NoOpEventSink is a null implementation of EventSink for testing or when events are disabled.
type NoOpEventSink struct{}

// Append implements EventSink.Append with no-op behavior.
func (n *NoOpEventSink) Append(_ context.Context, _ Envelope) error {
	return nil
}

// NewNoOpEventSink creates a new no-op event sink.
func NewNoOpEventSink() EventSink {
	return &NoOpEventSink{}
}

// MemorySink keeps every appended envelope in memory. Duplicate idempotency
// keys are dropped. It is safe for concurrent use.
type MemorySink struct {
	mu     sync.Mutex
	events []Envelope
	keys   map[string]struct{}
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{keys: make(map[string]struct{})}
}

// Append implements EventSink.
func (m *MemorySink) Append(_ context.Context, e Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.IdempotencyKey != "" {
		if _, dup := m.keys[e.IdempotencyKey]; dup {
			return nil
		}
		m.keys[e.IdempotencyKey] = struct{}{}
	}
	m.events = append(m.events, e)
	return nil
}

// Events returns a copy of the recorded envelopes in append order.
func (m *MemorySink) Events() []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Envelope, len(m.events))
	copy(out, m.events)
	return out
}

// OfType returns the recorded envelopes with the given type.
func (m *MemorySink) OfType(eventType string) []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Envelope
	for _, e := range m.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
