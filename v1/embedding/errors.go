package embedding

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned by NewClient for unusable settings.
	ErrInvalidConfig = errors.New("embedding: invalid config")

	// ErrEmptyInput is returned when no text, or an empty text, is passed.
	ErrEmptyInput = errors.New("embedding: empty input")

	// ErrMalformedResponse is returned when the provider answers with fewer
	// embeddings than requested or with unknown indexes.
	ErrMalformedResponse = errors.New("embedding: malformed response")
)

// APIError is a non-2xx answer of the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("embedding: provider returned %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed when repeated.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
