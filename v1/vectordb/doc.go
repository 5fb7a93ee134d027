// Package vectordb defines the boundary between this module and a remote vector
// store.
//
// The Service interface lists everything the bulk loader and the migration need from
// the store: a readiness check, collection management, batched writes with per-record
// outcomes, a restartable cursor, similarity and hybrid queries, and generative
// augmentation. The qdrant package implements it; MockService is a gomock mock for
// tests.
//
// # Collections
//
// A CollectionSchema lists named dense vector slots. Each slot may name the properties
// it is computed from, in which case records written without that vector are embedded
// on the way in:
//
//	schema := vectordb.CollectionSchema{
//	    Name:              "OriginalCollection",
//	    ReplicationFactor: 3,
//	    Hybrid:            true,
//	    Vectors: []vectordb.NamedVector{
//	        {Name: "title_vector", SourceProperties: []string{"title"}, Size: 1536},
//	    },
//	}
//
// # Queries
//
// Query ranks by vector similarity (ModeSimilarity) or by a fusion of vector and
// lexical relevance (ModeHybrid). Params carries store specific options, see the
// Param* constants:
//
//	results, err := svc.Query(ctx, vectordb.QueryRequest{
//	    Collection: "OriginalCollection",
//	    Mode:       vectordb.ModeHybrid,
//	    Text:       "funny animated movie",
//	    Limit:      2,
//	    Params: map[string]any{
//	        vectordb.ParamFilter: vectordb.NewFilterSet(vectordb.Must(vectordb.NewMatch("genre", "Animation"))),
//	    },
//	})
//
// # Transfers
//
// Iterate returns a transfer.Source and Sink wraps a collection as a transfer.Sink,
// so a collection to collection copy is a single engine run:
//
//	res := engine.Run(ctx, svc.Iterate(ctx, "OriginalCollection", true), vectordb.Sink(svc, "NewCollection"))
package vectordb
