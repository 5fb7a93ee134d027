package transfer

import (
	"time"

	"github.com/Aleph-Alpha/vecmigrate/v1/observability"
)

// observeOperation notifies the observer about an operation if one is configured.
//
// Notes:
//   - resource: engine name
//   - subResource: run ID
//   - size: records in the batch, or records pulled for a run
func (e *Engine) observeOperation(operation, runID string, duration time.Duration, err error, size int64, metadata map[string]interface{}) {
	if e == nil || e.observer == nil {
		return
	}

	e.observer.ObserveOperation(observability.OperationContext{
		Component:   "transfer",
		Operation:   operation,
		Resource:    e.name,
		SubResource: runID,
		Duration:    duration,
		Error:       err,
		Size:        size,
		Metadata:    metadata,
	})
}
