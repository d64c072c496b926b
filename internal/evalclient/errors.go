package evalclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound indicates an unknown input or metric.
	ErrNotFound = errors.New("not found")

	// ErrClient indicates the service rejected the request (4xx).
	ErrClient = errors.New("request rejected by evaluation service")

	// ErrServer indicates the service failed while handling the request (5xx).
	ErrServer = errors.New("evaluation service error")
)

// StatusError is a non-2xx answer from the evaluation service.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	// Detail is the service's error message, when it sent one.
	Detail string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap classifies the status as ErrNotFound, ErrClient or ErrServer.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode >= 500:
		return ErrServer
	default:
		return ErrClient
	}
}
