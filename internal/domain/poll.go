package domain

import (
	"errors"
	"slices"
)

// ErrMissingInputID indicates input metadata without an identifier.
var ErrMissingInputID = errors.New("input id is required")

// PollTarget is what a detail view waits for: the input and the number of
// metrics it requested. ExpectedCount never changes during a poll session.
type PollTarget struct {
	InputID       string
	ExpectedCount int
	MetricIDs     []string
}

// NewPollTarget builds the target from stored input metadata.
func NewPollTarget(meta InputMetadata) (PollTarget, error) {
	if meta.ID == "" {
		return PollTarget{}, ErrMissingInputID
	}
	ids := normalizeMetricIDs(meta.MetricsRequested)
	return PollTarget{InputID: meta.ID, ExpectedCount: len(ids), MetricIDs: ids}, nil
}

// NeedsPolling reports whether a session for this target may ever poll.
func (t PollTarget) NeedsPolling() bool { return t.ExpectedCount > 0 }

// ObservedCount returns how many requested metrics have a result record.
// Records for metrics that were not requested, and repeated records for the
// same metric, do not count.
func (t PollTarget) ObservedCount(results []MetricResult) int {
	seen := make(map[string]struct{}, len(results))
	for _, r := range results {
		if _, ok := slices.BinarySearch(t.MetricIDs, r.MetricID); ok {
			seen[r.MetricID] = struct{}{}
		}
	}
	return len(seen)
}

// Converged reports whether results cover every requested metric.
func (t PollTarget) Converged(results []MetricResult) bool {
	return t.ObservedCount(results) == t.ExpectedCount
}

// MetricStatus is the readiness of one requested metric.
type MetricStatus struct {
	MetricID string `json:"metric_id"`
	Ready    bool   `json:"ready"`
}

// MetricStatuses lists every requested metric with whether a result exists.
func (t PollTarget) MetricStatuses(results []MetricResult) []MetricStatus {
	ready := make(map[string]bool, len(results))
	for _, r := range results {
		ready[r.MetricID] = true
	}
	out := make([]MetricStatus, len(t.MetricIDs))
	for i, id := range t.MetricIDs {
		out[i] = MetricStatus{MetricID: id, Ready: ready[id]}
	}
	return out
}
