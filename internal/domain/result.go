package domain

import (
	"fmt"
	"time"
)

// InputKind is the format the evaluation service stored an input as.
type InputKind string

const (
	// InputURL is a page captured from a URL.
	InputURL InputKind = "url"

	// InputHTML is an uploaded HTML document.
	InputHTML InputKind = "html"

	// InputPNG is an uploaded screenshot.
	InputPNG InputKind = "png"

	// InputZIP is an uploaded bundle containing an index.html.
	InputZIP InputKind = "zip"
)

// ResultHandle identifies the stored evaluation of one input. ResultID is
// stable and reusable as the retrieval key for metadata and results.
type ResultHandle struct {
	ResultID    string    `json:"result_id" validate:"required"`
	DisplayName string    `json:"wui_name"`
	Kind        InputKind `json:"wui_type" validate:"required"`
}

// Validate checks the handle carries a usable retrieval key.
func (h *ResultHandle) Validate() error {
	if err := validate.Struct(h); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidHandle, err)
	}
	return nil
}

// InputMetadata is what the result store keeps about a submitted input.
type InputMetadata struct {
	ID               string    `json:"id"`
	Name             string    `json:"wui_name"`
	ScreenshotURL    string    `json:"screenshot_url,omitempty"`
	HTMLURL          string    `json:"html_url,omitempty"`
	MetricsRequested []string  `json:"metrics_to_evaluate"`
	CreatedAt        time.Time `json:"created_at"`
}

// MetricResult is one computed metric for an input. Results holds the
// rendered outputs (text, JSON or image URLs) in the order the metric defines.
type MetricResult struct {
	MetricID string   `json:"metric_id"`
	Results  []string `json:"results"`
}

// Metric describes an entry of the service's metric catalog.
type Metric struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	AcceptedInput []string `json:"accepted_input"`
}

// Accepts reports whether the metric can be computed for the input kind.
func (m Metric) Accepts(kind InputKind) bool {
	for _, k := range m.AcceptedInput {
		if InputKind(k) == kind {
			return true
		}
	}
	return false
}
