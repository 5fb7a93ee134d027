package qdrant

import (
	"time"

	"github.com/Aleph-Alpha/vecmigrate/v1/observability"
)

// observeOperation notifies the observer about an operation if one is configured.
func (a *Adapter) observeOperation(operation, collection string, start time.Time, err error, size int64) {
	if a.observer == nil {
		return
	}
	a.observer.ObserveOperation(observability.OperationContext{
		Component: "qdrant",
		Operation: operation,
		Resource:  collection,
		Duration:  time.Since(start),
		Error:     err,
		Size:      size,
	})
}
