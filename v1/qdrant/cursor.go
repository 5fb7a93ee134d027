package qdrant

import (
	"context"
	"io"
	"time"

	"github.com/Aleph-Alpha/vecmigrate/v1/transfer"
	qdrant "github.com/qdrant/go-client/qdrant"
)

// Cursor pages through a collection in point ID order. It implements transfer.Source
// and transfer.Resetter; it cannot resume from an arbitrary position.
type Cursor struct {
	adapter       *Adapter
	collection    string
	includeVector bool

	page    []*qdrant.RetrievedPoint
	offset  *qdrant.PointId
	started bool
	done    bool
}

var (
	_ transfer.Source   = (*Cursor)(nil)
	_ transfer.Resetter = (*Cursor)(nil)
)

// Iterate returns a cursor over collection. Vectors are fetched only when
// includeVector is set; sparse slots are never returned.
func (a *Adapter) Iterate(_ context.Context, collection string, includeVector bool) transfer.Source {
	return a.Cursor(collection, includeVector)
}

// Cursor is Iterate with the concrete return type.
func (a *Adapter) Cursor(collection string, includeVector bool) *Cursor {
	return &Cursor{adapter: a, collection: collection, includeVector: includeVector}
}

// Next returns the next point as a record, or io.EOF after the last one. Scroll
// failures are returned as is and end the run.
func (c *Cursor) Next(ctx context.Context) (transfer.Record, error) {
	for len(c.page) == 0 {
		if c.done {
			return transfer.Record{}, io.EOF
		}
		if err := c.fetch(ctx); err != nil {
			return transfer.Record{}, err
		}
	}

	point := c.page[0]
	c.page = c.page[1:]

	rec := transfer.Record{Properties: fromPayload(point.GetPayload())}
	if c.includeVector {
		rec.Vectors = fromVectorsOutput(point.GetVectors())
	}
	id, err := fromPointID(point.GetId())
	if err != nil {
		return transfer.Record{}, &transfer.RecordError{Record: rec, Err: err}
	}
	rec.ID = id
	return rec, nil
}

func (c *Cursor) fetch(ctx context.Context) error {
	start := time.Now()
	req := &qdrant.ScrollPoints{
		CollectionName: c.collection,
		Limit:          qdrant.PtrOf(c.adapter.cfg.pageSize()),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(c.includeVector),
	}
	if c.started {
		req.Offset = c.offset
	}

	points, next, err := c.adapter.api.ScrollAndOffset(ctx, req)
	err = classify("scroll", c.collection, err)
	c.adapter.observeOperation("scroll", c.collection, start, err, int64(len(points)))
	if err != nil {
		return err
	}

	c.started = true
	c.page = points
	c.offset = next
	c.done = next == nil
	return nil
}

// Reset rewinds the cursor to the first point.
func (c *Cursor) Reset() {
	c.page = nil
	c.offset = nil
	c.started = false
	c.done = false
}
