package transfer

import (
	"context"
	"io"
)

// Source yields records one at a time. The engine is its only consumer.
//
// Next returns io.EOF once the source is exhausted. A *RecordError reports a record
// that could not be produced; the run continues. A *FatalError, or any other error,
// aborts the run.
type Source interface {
	Next(ctx context.Context) (Record, error)
}

// Acknowledger is implemented by sources that need to know which records have been
// fully processed, for example to commit consumer offsets. The engine calls Ack in
// source order with the number of records processed since the previous call.
type Acknowledger interface {
	Ack(ctx context.Context, n int) error
}

// Resetter is implemented by sources that can restart from the beginning.
type Resetter interface {
	Reset()
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (Record, error)

// Next calls f(ctx).
func (f SourceFunc) Next(ctx context.Context) (Record, error) {
	return f(ctx)
}

// SliceSource serves an in-memory list of records.
type SliceSource struct {
	records []Record
	next    int
}

// NewSliceSource returns a source over records. The slice is not copied.
func NewSliceSource(records []Record) *SliceSource {
	return &SliceSource{records: records}
}

// Next returns the next record or io.EOF.
func (s *SliceSource) Next(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if s.next >= len(s.records) {
		return Record{}, io.EOF
	}
	r := s.records[s.next]
	s.next++
	return r, nil
}

// Reset rewinds the source to its first record.
func (s *SliceSource) Reset() {
	s.next = 0
}
