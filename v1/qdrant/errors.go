package qdrant

import (
	"errors"
	"fmt"

	"github.com/Aleph-Alpha/vecmigrate/v1/transfer"
	"github.com/Aleph-Alpha/vecmigrate/v1/vectordb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrInvalidPointID is returned for record IDs that are neither a UUID nor an
	// unsigned integer.
	ErrInvalidPointID = errors.New("qdrant: point id must be a UUID or an unsigned integer")

	// ErrDuplicateID is returned for the second and later records sharing an ID in one batch.
	ErrDuplicateID = errors.New("qdrant: duplicate key in batch")

	// ErrUnknownVector is returned for records carrying a vector the collection does not declare.
	ErrUnknownVector = errors.New("qdrant: unknown vector name")

	// ErrVectorSize is returned for vectors whose dimension differs from the collection schema.
	ErrVectorSize = errors.New("qdrant: vector dimension mismatch")

	// ErrVectorize is returned for records the vectorizer could not embed.
	ErrVectorize = errors.New("qdrant: vectorization failed")

	// ErrInvalidPayload is returned for properties that cannot be stored as payload.
	ErrInvalidPayload = errors.New("qdrant: invalid payload")
)

// IsUnavailable reports whether err is a gRPC Unavailable status.
func IsUnavailable(err error) bool {
	return status.Code(err) == codes.Unavailable
}

// IsInvalidArgument reports whether err is a gRPC InvalidArgument status.
func IsInvalidArgument(err error) bool {
	return status.Code(err) == codes.InvalidArgument
}

// classify maps a gRPC error onto the package level sentinels callers match on.
func classify(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.Unavailable:
		return fmt.Errorf("[Qdrant] %s on %q: %w: %w", op, collection, transfer.ErrSinkUnavailable, err)
	case codes.NotFound:
		return fmt.Errorf("[Qdrant] %s on %q: %w: %w", op, collection, vectordb.ErrCollectionNotFound, err)
	case codes.AlreadyExists:
		return fmt.Errorf("[Qdrant] %s on %q: %w: %w", op, collection, vectordb.ErrCollectionExists, err)
	default:
		return fmt.Errorf("[Qdrant] %s on %q failed: %w", op, collection, err)
	}
}
