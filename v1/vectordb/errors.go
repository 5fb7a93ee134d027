package vectordb

import "errors"

var (
	// ErrNotReady is returned when the store did not pass its readiness check.
	ErrNotReady = errors.New("vectordb: store not ready")

	// ErrCollectionNotFound is returned for operations on a missing collection.
	ErrCollectionNotFound = errors.New("vectordb: collection not found")

	// ErrCollectionExists is returned when creating a collection that already exists.
	ErrCollectionExists = errors.New("vectordb: collection already exists")

	// ErrInvalidSchema is returned for collection schemas that cannot be created.
	ErrInvalidSchema = errors.New("vectordb: invalid collection schema")

	// ErrInvalidQuery is returned for malformed query or generate requests.
	ErrInvalidQuery = errors.New("vectordb: invalid query")

	// ErrInvalidFilter is returned for malformed filter conditions.
	ErrInvalidFilter = errors.New("vectordb: invalid filter")

	// ErrNoVectorizer is returned when text has to be embedded but no embedder is configured.
	ErrNoVectorizer = errors.New("vectordb: no vectorizer configured")

	// ErrNoGenerator is returned by Generate when no generative provider is configured.
	ErrNoGenerator = errors.New("vectordb: no generator configured")
)

// IsCollectionNotFound reports whether err is ErrCollectionNotFound.
func IsCollectionNotFound(err error) bool {
	return errors.Is(err, ErrCollectionNotFound)
}

// IsCollectionExists reports whether err is ErrCollectionExists.
func IsCollectionExists(err error) bool {
	return errors.Is(err, ErrCollectionExists)
}
