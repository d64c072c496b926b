// Package domain provides the core types of the batch evaluation orchestrator.
// It defines request descriptors, evaluation jobs and their lifecycle, result
// handles, batch bookkeeping and poll targets shared by the in-process
// orchestrator, the convergence poller and the Temporal workflows.
package domain

import (
	"fmt"
	"mime"
	"strings"
)

// SourceKind identifies where the content of an evaluation input comes from.
type SourceKind string

const (
	// SourceURL is an input addressed by a public URL the service will capture.
	SourceURL SourceKind = "url"

	// SourceFile is an uploaded file (HTML page, ZIP bundle or PNG screenshot).
	SourceFile SourceKind = "file"
)

// String returns the string representation of a SourceKind.
func (k SourceKind) String() string { return string(k) }

// FilePayload carries the bytes of a file-sourced input.
type FilePayload struct {
	// Name is the original file name, used by the service as the display name.
	Name string `json:"name" validate:"required"`

	// ContentType selects how the service renders the input.
	ContentType string `json:"content_type" validate:"required"`

	// Data is the raw file content.
	Data []byte `json:"data" validate:"required,min=1"`
}

// InputKind reports how the evaluation service will treat the file.
// Unknown content types fall back to PNG, matching the service behaviour.
func (f FilePayload) InputKind() InputKind {
	mediaType, _, err := mime.ParseMediaType(f.ContentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(f.ContentType))
	}
	switch mediaType {
	case "application/zip", "application/x-zip-compressed":
		return InputZIP
	case "text/html":
		return InputHTML
	default:
		return InputPNG
	}
}

// RequestDescriptor is the normalized representation of one input together
// with the metrics selected for it. A descriptor is immutable once created and
// may be shared read-only between the selection layer and the orchestrator.
type RequestDescriptor struct {
	// Kind tells whether URL or File holds the payload.
	Kind SourceKind `json:"kind" validate:"required,oneof=url file"`

	// URL is set for SourceURL descriptors.
	URL string `json:"url,omitempty" validate:"omitempty,url"`

	// File is set for SourceFile descriptors.
	File *FilePayload `json:"file,omitempty"`

	// MetricIDs is the sorted, de-duplicated set of metrics requested.
	MetricIDs []string `json:"metric_ids" validate:"required,min=1,dive,required"`
}

// NewURLDescriptor creates a descriptor for a URL-sourced input.
// The metric set is normalized and must not be empty.
func NewURLDescriptor(url string, metricIDs []string) (RequestDescriptor, error) {
	d := RequestDescriptor{
		Kind:      SourceURL,
		URL:       strings.TrimSpace(url),
		MetricIDs: normalizeMetricIDs(metricIDs),
	}
	if err := d.Validate(); err != nil {
		return RequestDescriptor{}, err
	}
	return d, nil
}

// NewFileDescriptor creates a descriptor for a file-sourced input.
// The data slice is copied so later writes by the caller cannot leak into it.
func NewFileDescriptor(name, contentType string, data []byte, metricIDs []string) (RequestDescriptor, error) {
	d := RequestDescriptor{
		Kind: SourceFile,
		File: &FilePayload{
			Name:        name,
			ContentType: contentType,
			Data:        append([]byte(nil), data...),
		},
		MetricIDs: normalizeMetricIDs(metricIDs),
	}
	if err := d.Validate(); err != nil {
		return RequestDescriptor{}, err
	}
	return d, nil
}

// Validate checks the descriptor is ready for submission.
func (d *RequestDescriptor) Validate() error {
	if len(d.MetricIDs) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidDescriptor, ErrEmptyMetricSet)
	}
	switch {
	case d.Kind == SourceURL && d.URL == "":
		return fmt.Errorf("%w: url source without url", ErrInvalidDescriptor)
	case d.Kind == SourceFile && d.File == nil:
		return fmt.Errorf("%w: file source without file", ErrInvalidDescriptor)
	}
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
	}
	return nil
}

// Metrics returns a copy of the requested metric ids.
func (d RequestDescriptor) Metrics() []string { return cloneStrings(d.MetricIDs) }

// Label returns a short human-readable name for logs.
func (d RequestDescriptor) Label() string {
	if d.Kind == SourceFile && d.File != nil {
		return d.File.Name
	}
	return d.URL
}
