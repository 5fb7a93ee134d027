package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/Aleph-Alpha/vecmigrate/v1/transfer"
	"github.com/Aleph-Alpha/vecmigrate/v1/vectordb"
	qdrant "github.com/qdrant/go-client/qdrant"
)

// pendingPoint is a record that passed pre-validation and still has to be written.
type pendingPoint struct {
	index   int
	id      string
	record  transfer.Record
	payload map[string]*qdrant.Value
	vectors map[string]*qdrant.Vector
}

func (p *pendingPoint) point() *qdrant.PointStruct {
	pointID, _, _ := toPointID(p.id)
	return &qdrant.PointStruct{
		Id:      pointID,
		Vectors: qdrant.NewVectorsMap(p.vectors),
		Payload: p.payload,
	}
}

// SubmitBatch upserts records into collection and waits for the write to be applied.
//
// Records are pre-validated one by one: the ID must be empty, a UUID or an unsigned
// integer, it must be unique within the batch, and every vector must match a slot
// of the collection schema. Missing vectors of slots with source properties are
// filled by the vectorizer. When the server rejects the batch as invalid, the points
// are resubmitted one at a time to isolate the offending records.
//
// Connectivity loss is reported as a batch error wrapping transfer.ErrSinkUnavailable.
func (a *Adapter) SubmitBatch(ctx context.Context, collection string, records []transfer.Record) ([]error, error) {
	start := time.Now()
	outcomes, err := a.submitBatch(ctx, collection, records)
	a.observeOperation("submit_batch", collection, start, err, int64(len(records)))
	if err != nil {
		a.logError(ctx, "Qdrant batch rejected", err, map[string]interface{}{
			"collection": collection,
			"records":    len(records),
		})
	}
	return outcomes, err
}

func (a *Adapter) submitBatch(ctx context.Context, collection string, records []transfer.Record) ([]error, error) {
	outcomes := make([]error, len(records))
	if len(records) == 0 {
		return outcomes, nil
	}

	schema, err := a.schemaFor(ctx, collection)
	if err != nil {
		return nil, err
	}

	pending := preparePoints(records, schema, outcomes)
	if schema != nil {
		a.vectorize(ctx, *schema, pending, outcomes)
	}

	points := make([]*qdrant.PointStruct, 0, len(pending))
	writable := make([]*pendingPoint, 0, len(pending))
	for _, p := range pending {
		if outcomes[p.index] != nil {
			continue
		}
		points = append(points, p.point())
		writable = append(writable, p)
	}
	if len(points) == 0 {
		return outcomes, nil
	}

	_, err = a.api.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	switch {
	case err == nil:
		return outcomes, nil
	case IsInvalidArgument(err) && len(points) > 1:
		a.logWarn(ctx, "Qdrant rejected batch, isolating invalid points", err, map[string]interface{}{
			"collection": collection,
			"points":     len(points),
		})
		return a.isolate(ctx, collection, writable, outcomes)
	case IsInvalidArgument(err):
		outcomes[writable[0].index] = fmt.Errorf("[Qdrant] point %q rejected: %w", writable[0].id, err)
		return outcomes, nil
	default:
		return nil, classify("upsert", collection, err)
	}
}

// isolate writes points one at a time and records each rejection on its record.
func (a *Adapter) isolate(ctx context.Context, collection string, pending []*pendingPoint, outcomes []error) ([]error, error) {
	for _, p := range pending {
		_, err := a.api.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         []*qdrant.PointStruct{p.point()},
			Wait:           qdrant.PtrOf(true),
		})
		if err == nil {
			continue
		}
		if !IsInvalidArgument(err) {
			return nil, classify("upsert", collection, err)
		}
		outcomes[p.index] = fmt.Errorf("[Qdrant] point %q rejected: %w", p.id, err)
	}
	return outcomes, nil
}

// preparePoints validates records against schema and converts the valid ones. The
// rejection of every invalid record is stored in outcomes at its batch position.
// A nil schema skips the vector name and size checks.
func preparePoints(records []transfer.Record, schema *vectordb.CollectionSchema, outcomes []error) []*pendingPoint {
	pending := make([]*pendingPoint, 0, len(records))
	seen := make(map[string]int, len(records))

	for i, rec := range records {
		_, id, err := toPointID(rec.ID)
		if err != nil {
			outcomes[i] = err
			continue
		}
		if first, dup := seen[id]; dup {
			outcomes[i] = fmt.Errorf("%w: %q already used by record %d", ErrDuplicateID, id, first)
			continue
		}
		seen[id] = i

		vectors, err := toVectors(rec, schema)
		if err != nil {
			outcomes[i] = err
			continue
		}
		payload, err := toPayload(rec.Properties)
		if err != nil {
			outcomes[i] = err
			continue
		}
		if schema != nil && schema.Hybrid {
			if text := lexicalText(rec.Properties, schema.LexicalProperties()); text != "" {
				vectors[LexicalVectorName] = qdrant.NewVectorDocument(&qdrant.Document{Text: text, Model: LexicalModel})
			}
		}

		pending = append(pending, &pendingPoint{index: i, id: id, record: rec, payload: payload, vectors: vectors})
	}
	return pending
}

func toVectors(rec transfer.Record, schema *vectordb.CollectionSchema) (map[string]*qdrant.Vector, error) {
	vectors := make(map[string]*qdrant.Vector, len(rec.Vectors)+1)
	for _, name := range sortedKeys(rec.Vectors) {
		data := rec.Vectors[name]
		if schema != nil {
			slot, ok := schema.Vector(name)
			if !ok {
				return nil, fmt.Errorf("%w: %q is not declared by collection %q", ErrUnknownVector, name, schema.Name)
			}
			if uint64(len(data)) != slot.Size {
				return nil, fmt.Errorf("%w: %q has %d dimensions, collection %q expects %d", ErrVectorSize, name, len(data), schema.Name, slot.Size)
			}
		}
		vectors[name] = qdrant.NewVectorDense(data)
	}
	return vectors, nil
}

// vectorize embeds the source properties of every slot a pending record has no vector
// for. Failures are recorded per record.
func (a *Adapter) vectorize(ctx context.Context, schema vectordb.CollectionSchema, pending []*pendingPoint, outcomes []error) {
	if a.vectorizer == nil {
		return
	}
	for _, slot := range schema.Vectors {
		if len(slot.SourceProperties) == 0 {
			continue
		}

		var targets []*pendingPoint
		var texts []string
		for _, p := range pending {
			if outcomes[p.index] != nil {
				continue
			}
			if _, ok := p.vectors[slot.Name]; ok {
				continue
			}
			text := lexicalText(p.record.Properties, slot.SourceProperties)
			if text == "" {
				continue
			}
			targets = append(targets, p)
			texts = append(texts, text)
		}
		if len(targets) == 0 {
			continue
		}

		embeddings, err := a.vectorizer.Embed(ctx, texts)
		if err == nil && len(embeddings) != len(texts) {
			err = fmt.Errorf("got %d embeddings for %d texts", len(embeddings), len(texts))
		}
		if err != nil {
			for _, p := range targets {
				outcomes[p.index] = fmt.Errorf("%w: slot %q: %v", ErrVectorize, slot.Name, err)
			}
			continue
		}

		for i, p := range targets {
			if uint64(len(embeddings[i])) != slot.Size {
				outcomes[p.index] = fmt.Errorf("%w: vectorizer returned %d dimensions for %q, collection %q expects %d",
					ErrVectorSize, len(embeddings[i]), slot.Name, schema.Name, slot.Size)
				continue
			}
			p.vectors[slot.Name] = qdrant.NewVectorDense(embeddings[i])
		}
	}
}
