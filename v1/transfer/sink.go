package transfer

import "context"

// Sink writes a batch to a destination.
//
// On success it returns one outcome per record, in batch order; a nil outcome means
// the record was stored. A non-nil error rejects the whole batch. Errors wrapping
// ErrSinkUnavailable mark connectivity loss.
type Sink interface {
	SubmitBatch(ctx context.Context, batch Batch) ([]error, error)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, batch Batch) ([]error, error)

// SubmitBatch calls f(ctx, batch).
func (f SinkFunc) SubmitBatch(ctx context.Context, batch Batch) ([]error, error) {
	return f(ctx, batch)
}
