package activity

import (
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/go-wuieval/internal/evalclient"
)

// Application error types attached to activity failures. Workflows match on
// them through temporal.ApplicationError.Type().
const (
	// ErrTypeValidation marks an input rejected before any remote call.
	ErrTypeValidation = "Validation"

	// ErrTypeRejected marks a request the evaluation service refused (4xx).
	ErrTypeRejected = "Rejected"

	// ErrTypeNotFound marks an unknown input.
	ErrTypeNotFound = "NotFound"

	// ErrTypeUnavailable marks a transport failure or a 5xx answer.
	ErrTypeUnavailable = "Unavailable"

	// ErrTypeInvalidHandle marks a success answer without a usable result id.
	ErrTypeInvalidHandle = "InvalidHandle"
)

// ErrWrongSourceKind indicates a descriptor routed to the activity for the
// other source kind.
var ErrWrongSourceKind = errors.New("descriptor source kind does not match activity")

// nonRetryable wraps cause as a Temporal application error that is never retried.
func nonRetryable(errType string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, errType, cause)
}

// classify converts a service error into an application error. Client-side
// rejections and unknown inputs are non-retryable; everything else is left
// retryable so a caller with a retry policy may try again.
func classify(cause error, msg string) error {
	switch {
	case errors.Is(cause, evalclient.ErrNotFound):
		return nonRetryable(ErrTypeNotFound, cause, msg)
	case errors.Is(cause, evalclient.ErrClient):
		return nonRetryable(ErrTypeRejected, cause, msg)
	default:
		return temporal.NewApplicationErrorWithCause(msg, ErrTypeUnavailable, cause)
	}
}
