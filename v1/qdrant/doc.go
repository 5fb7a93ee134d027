// Package qdrant implements vectordb.Service against a Qdrant server over gRPC.
//
// # Collections
//
// CreateCollection maps a vectordb.CollectionSchema onto named dense vectors, one per
// NamedVector, and adds a sparse "bm25" slot with IDF weighting for hybrid schemas.
// The schema is stored in the collection metadata so that any adapter writing to
// the collection later knows which properties feed which slot.
//
// # Writing
//
// SubmitBatch upserts a batch with Wait=true and returns one outcome per record.
// Records are checked before the request is sent:
//
//   - the ID must be empty (a random UUID is assigned), a UUID or an unsigned integer
//   - IDs must be unique within the batch; later duplicates fail with ErrDuplicateID
//   - vectors must name a declared slot and match its dimension
//
// Slots with SourceProperties are filled by the configured Vectorizer when a record
// has no vector for them. The lexical slot is computed server side from the text
// properties with the "qdrant/bm25" model. If the server rejects a batch as invalid,
// its points are written one by one so only the offending records fail. Unavailable
// servers surface as batch errors wrapping transfer.ErrSinkUnavailable.
//
// # Reading
//
// Iterate returns a Cursor, a transfer.Source scrolling the collection page by page.
// Reset rewinds it; there is no resume from an arbitrary point.
//
// Query embeds the query text and searches one dense slot (ModeSimilarity), or fuses
// a dense and a BM25 prefetch with reciprocal rank fusion (ModeHybrid). Generate runs
// a query and completes one prompt per match through the configured Generator.
//
// # Usage
//
//	embedder, _ := embedding.NewClient(embeddingCfg)
//	adapter, err := qdrant.NewAdapter(qdrant.FromEndpoint("localhost"),
//	    qdrant.WithVectorizer(embedder),
//	    qdrant.WithLogger(log),
//	)
//	if err != nil {
//	    return err
//	}
//	defer adapter.Close()
//
//	if !adapter.IsReady(ctx) {
//	    return vectordb.ErrNotReady
//	}
//	result := transfer.Transfer(ctx, transfer.NewSliceSource(records), transfer.DefaultConfig(), vectordb.Sink(adapter, "Movies"))
//
// With fx, include FXModule and provide a *qdrant.Config; Logger, Observer, Vectorizer
// and Generator are injected when present.
package qdrant
