package observability

import "time"

// Observer receives a notification for every operation a component performs.
//
// Implementations must be safe for concurrent use: the transfer engine reports
// batch submissions from several goroutines when more than one batch is in flight.
type Observer interface {
	ObserveOperation(ctx OperationContext)
}

// OperationContext describes a single finished operation.
type OperationContext struct {
	// Component is the reporting package, e.g. "transfer", "qdrant", "minio".
	Component string

	// Operation is the action performed, e.g. "submit_batch", "scroll", "put".
	Operation string

	// Resource is the primary target (collection, bucket, topic).
	Resource string

	// SubResource is an optional secondary target (object key, run ID).
	SubResource string

	// Duration is the wall-clock time the operation took.
	Duration time.Duration

	// Error is the operation error, nil on success.
	Error error

	// Size is the number of records or bytes processed, depending on the component.
	Size int64

	// Metadata carries component specific details.
	Metadata map[string]interface{}
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(ctx OperationContext)

// ObserveOperation calls f(ctx).
func (f ObserverFunc) ObserveOperation(ctx OperationContext) {
	f(ctx)
}

// Multi fans a notification out to several observers. Nil observers are skipped.
func Multi(observers ...Observer) Observer {
	var active []Observer
	for _, o := range observers {
		if o != nil {
			active = append(active, o)
		}
	}
	return multiObserver(active)
}

type multiObserver []Observer

func (m multiObserver) ObserveOperation(ctx OperationContext) {
	for _, o := range m {
		o.ObserveOperation(ctx)
	}
}
