package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/Aleph-Alpha/vecmigrate/v1/generative"
	"github.com/Aleph-Alpha/vecmigrate/v1/vectordb"
	qdrant "github.com/qdrant/go-client/qdrant"
)

// Query runs a similarity or hybrid query and returns matches best first.
//
// Similarity queries embed the text with the vectorizer and search one dense slot.
// Hybrid queries prefetch from the dense slot and from the BM25 slot and fuse both
// rankings with reciprocal rank fusion.
//
// Example:
//
//	results, err := adapter.Query(ctx, vectordb.QueryRequest{
//	    Collection: "Movies",
//	    Mode:       vectordb.ModeHybrid,
//	    Text:       "pixar",
//	    Limit:      2,
//	})
func (a *Adapter) Query(ctx context.Context, req vectordb.QueryRequest) ([]vectordb.QueryResult, error) {
	start := time.Now()
	results, err := a.query(ctx, req)
	a.observeOperation("query_"+string(req.Mode), req.Collection, start, err, int64(len(results)))
	return results, err
}

func (a *Adapter) query(ctx context.Context, req vectordb.QueryRequest) ([]vectordb.QueryResult, error) {
	qp, err := a.buildQuery(ctx, req)
	if err != nil {
		return nil, err
	}
	points, err := a.api.Query(ctx, qp)
	if err != nil {
		return nil, classify("query", req.Collection, err)
	}
	return toQueryResults(points)
}

func (a *Adapter) buildQuery(ctx context.Context, req vectordb.QueryRequest) (*qdrant.QueryPoints, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	filterSet, err := req.Filter()
	if err != nil {
		return nil, err
	}
	if a.vectorizer == nil {
		return nil, fmt.Errorf("%w: %s query on %q", vectordb.ErrNoVectorizer, req.Mode, req.Collection)
	}

	using, err := a.denseSlot(ctx, req)
	if err != nil {
		return nil, err
	}
	embeddings, err := a.vectorizer.Embed(ctx, []string{req.Text})
	if err != nil {
		return nil, fmt.Errorf("[Qdrant] embed query text: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("[Qdrant] embed query text: got %d embeddings", len(embeddings))
	}

	return newQueryPoints(req, filterSet, using, embeddings[0]), nil
}

// newQueryPoints assembles the request for an already embedded query text.
func newQueryPoints(req vectordb.QueryRequest, filterSet *vectordb.FilterSet, using string, vector []float32) *qdrant.QueryPoints {
	filter := toFilter(filterSet)
	limit := uint64(req.Limit)

	qp := &qdrant.QueryPoints{
		CollectionName: req.Collection,
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if threshold, ok := req.ScoreThreshold(); ok {
		qp.ScoreThreshold = qdrant.PtrOf(threshold)
	}

	dense := &qdrant.PrefetchQuery{
		Query:  qdrant.NewQueryDense(vector),
		Filter: filter,
	}
	if using != "" {
		dense.Using = qdrant.PtrOf(using)
	}

	if req.Mode == vectordb.ModeHybrid {
		// Each leg fetches more than the final limit so fusion has candidates to reorder.
		prefetchLimit := qdrant.PtrOf(limit * 2)
		dense.Limit = prefetchLimit
		lexical := &qdrant.PrefetchQuery{
			Query: qdrant.NewQueryNearest(qdrant.NewVectorInputDocument(&qdrant.Document{
				Text:  req.Text,
				Model: LexicalModel,
			})),
			Using:  qdrant.PtrOf(LexicalVectorName),
			Filter: filter,
			Limit:  prefetchLimit,
		}
		qp.Prefetch = []*qdrant.PrefetchQuery{dense, lexical}
		qp.Query = qdrant.NewQueryFusion(qdrant.Fusion_RRF)
		return qp
	}

	qp.Query = dense.Query
	qp.Using = dense.Using
	qp.Filter = filter
	return qp
}

// denseSlot resolves the vector parameter, defaulting to the first slot of the schema.
// Collections with an unknown schema use their unnamed vector.
func (a *Adapter) denseSlot(ctx context.Context, req vectordb.QueryRequest) (string, error) {
	name := req.VectorName()
	schema, err := a.schemaFor(ctx, req.Collection)
	if err != nil {
		return "", err
	}
	if schema == nil {
		return name, nil
	}
	if name == "" {
		if len(schema.Vectors) == 0 {
			return "", fmt.Errorf("%w: collection %q has no dense vector", vectordb.ErrInvalidQuery, req.Collection)
		}
		return schema.Vectors[0].Name, nil
	}
	if _, ok := schema.Vector(name); !ok {
		return "", fmt.Errorf("%w: collection %q has no vector %q", vectordb.ErrInvalidQuery, req.Collection, name)
	}
	return name, nil
}

func toQueryResults(points []*qdrant.ScoredPoint) ([]vectordb.QueryResult, error) {
	results := make([]vectordb.QueryResult, 0, len(points))
	for _, p := range points {
		id, err := fromPointID(p.GetId())
		if err != nil {
			return nil, fmt.Errorf("[Qdrant] %w", err)
		}
		results = append(results, vectordb.QueryResult{
			ID:         id,
			Properties: fromPayload(p.GetPayload()),
			Score:      p.GetScore(),
		})
	}
	return results, nil
}

// Generate retrieves objects with Query and generates one text per object from the
// prompt template, e.g. "Categorize genre: {title}".
func (a *Adapter) Generate(ctx context.Context, req vectordb.GenerateRequest) ([]vectordb.GeneratedResult, error) {
	start := time.Now()
	results, err := a.generate(ctx, req)
	a.observeOperation("generate", req.Collection, start, err, int64(len(results)))
	return results, err
}

func (a *Adapter) generate(ctx context.Context, req vectordb.GenerateRequest) ([]vectordb.GeneratedResult, error) {
	if a.generator == nil {
		return nil, vectordb.ErrNoGenerator
	}
	if req.PromptTemplate == "" {
		return nil, fmt.Errorf("%w: prompt template is required", vectordb.ErrInvalidQuery)
	}

	matches, err := a.query(ctx, req.Query())
	if err != nil {
		return nil, err
	}

	prompts := make([]string, len(matches))
	for i, m := range matches {
		prompt, err := generative.RenderPrompt(req.PromptTemplate, m.Properties)
		if err != nil {
			return nil, fmt.Errorf("%w: object %q: %w", vectordb.ErrInvalidQuery, m.ID, err)
		}
		prompts[i] = prompt
	}

	texts, err := a.generator.CompleteAll(ctx, prompts)
	if err != nil {
		return nil, fmt.Errorf("[Qdrant] generate on %q: %w", req.Collection, err)
	}
	if len(texts) != len(matches) {
		return nil, fmt.Errorf("[Qdrant] generate on %q: got %d texts for %d objects", req.Collection, len(texts), len(matches))
	}

	out := make([]vectordb.GeneratedResult, len(matches))
	for i, m := range matches {
		out[i] = vectordb.GeneratedResult{ID: m.ID, Properties: m.Properties, Generated: texts[i]}
	}
	return out, nil
}
