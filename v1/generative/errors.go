package generative

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig = errors.New("generative: invalid config")

	// ErrEmptyCompletion is returned when the provider answers without a choice.
	ErrEmptyCompletion = errors.New("generative: empty completion")

	ErrMalformedResponse = errors.New("generative: malformed response")

	// ErrMissingProperty is returned when a prompt template references a property the
	// object does not have.
	ErrMissingProperty = errors.New("generative: prompt references missing property")
)

// APIError is a non-2xx answer of the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("generative: provider returned %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed when repeated.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
