package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest marks malformed generation requests. Never retried.
	ErrInvalidRequest = errors.New("llm: invalid request")

	// ErrEmptyResponse marks a backend call that technically succeeded but
	// produced no visible text. Retryable soft failure.
	ErrEmptyResponse = errors.New("llm: empty response")

	// ErrUnknownModel marks a model identifier the catalog cannot resolve.
	ErrUnknownModel = errors.New("llm: unknown model identifier")

	// ErrUnknownProvider marks a provider identifier the registry cannot resolve.
	ErrUnknownProvider = errors.New("llm: unknown provider identifier")
)

// ProviderError wraps a failure from one backend attempt with its origin, so
// the orchestrator can log and aggregate per-provider causes.
type ProviderError struct {
	Provider string
	Model    string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s (model %s): %v", e.Provider, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
