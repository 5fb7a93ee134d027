package vectordb

import (
	"context"

	"github.com/Aleph-Alpha/vecmigrate/v1/transfer"
)

// Service is the contract with a remote vector store.
//
// Callers must not write or query before IsReady returned true.
//
//go:generate mockgen -source=interface.go -destination=mock_service.go -package=vectordb
type Service interface {
	// IsReady reports whether the store answers its health check.
	IsReady(ctx context.Context) bool

	// ListCollections returns the names of all collections.
	ListCollections(ctx context.Context) ([]string, error)

	// CollectionExists reports whether a collection named name exists.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// CreateCollection creates a collection. It fails with ErrCollectionExists when
	// the name is taken.
	CreateCollection(ctx context.Context, schema CollectionSchema) error

	// DeleteCollection drops a collection and all its records.
	DeleteCollection(ctx context.Context, name string) error

	// Count returns the exact number of records in a collection.
	Count(ctx context.Context, name string) (uint64, error)

	// SubmitBatch writes records and returns one outcome per record, nil meaning
	// stored. Writes are idempotent by record ID. A non-nil error rejects the batch.
	SubmitBatch(ctx context.Context, collection string, records []transfer.Record) ([]error, error)

	// Iterate returns a finite, restartable cursor over a collection. Vectors are only
	// fetched when includeVector is set.
	Iterate(ctx context.Context, collection string, includeVector bool) transfer.Source

	// Query runs a similarity or hybrid query, best match first.
	Query(ctx context.Context, req QueryRequest) ([]QueryResult, error)

	// Generate retrieves objects and generates one text per object from the prompt template.
	Generate(ctx context.Context, req GenerateRequest) ([]GeneratedResult, error)
}

// Sink adapts a collection of svc to the transfer.Sink interface.
func Sink(svc Service, collection string) transfer.Sink {
	return transfer.SinkFunc(func(ctx context.Context, batch transfer.Batch) ([]error, error) {
		return svc.SubmitBatch(ctx, collection, batch)
	})
}
