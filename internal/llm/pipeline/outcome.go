package pipeline

import (
	"context"
	"errors"
	"net"
	"os"

	"github.com/polittech/stratagem/internal/llm"
	"github.com/polittech/stratagem/internal/llm/provider"
	"github.com/polittech/stratagem/internal/pkg/httpclient"
)

// OutcomeKind tags the result of one provider call. The retry loop branches
// on the tag, never on error message text.
type OutcomeKind int

const (
	// OutcomeSuccess carries usable text.
	OutcomeSuccess OutcomeKind = iota

	// OutcomeRetryable marks transient failures: transport errors, timeouts,
	// rate limits, server errors and empty responses.
	OutcomeRetryable

	// OutcomeFatal marks failures a retry cannot fix: validation errors,
	// unknown identifiers, request rejections.
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// AttemptOutcome records how one provider call ended.
type AttemptOutcome struct {
	Provider string
	Kind     OutcomeKind
	Err      error
}

// Classify maps an adapter error to its outcome kind using structured error
// kinds only: sentinel errors, typed HTTP errors and net.Error.
func Classify(err error) OutcomeKind {
	if err == nil {
		return OutcomeSuccess
	}

	switch {
	case errors.Is(err, llm.ErrInvalidRequest),
		errors.Is(err, llm.ErrUnknownModel),
		errors.Is(err, llm.ErrUnknownProvider):
		return OutcomeFatal

	case errors.Is(err, provider.ErrUnsupportedModel):
		// Final for this provider, but the next one may serve the model.
		return OutcomeFatal

	case errors.Is(err, llm.ErrEmptyResponse):
		return OutcomeRetryable

	case errors.Is(err, context.DeadlineExceeded), os.IsTimeout(err):
		return OutcomeRetryable
	}

	var httpErr *httpclient.Error
	if errors.As(err, &httpErr) {
		if httpclient.IsHTTPStatusCodeRetryable(httpErr.StatusCode) {
			return OutcomeRetryable
		}

		return OutcomeFatal
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return OutcomeRetryable
	}

	// Unrecognized errors default to retryable: over free backends an odd
	// failure is far more often transient than structural.
	return OutcomeRetryable
}
