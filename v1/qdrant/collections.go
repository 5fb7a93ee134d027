package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Aleph-Alpha/vecmigrate/v1/vectordb"
	qdrant "github.com/qdrant/go-client/qdrant"
)

const schemaMetadataKey = "vecmigrate_schema"

// ListCollections returns the names of all collections.
func (a *Adapter) ListCollections(ctx context.Context) ([]string, error) {
	start := time.Now()
	names, err := a.api.ListCollections(ctx)
	err = classify("list collections", "", err)
	a.observeOperation("list_collections", "", start, err, int64(len(names)))
	if err != nil {
		return nil, err
	}
	return names, nil
}

// CollectionExists reports whether name exists.
func (a *Adapter) CollectionExists(ctx context.Context, name string) (bool, error) {
	start := time.Now()
	exists, err := a.api.CollectionExists(ctx, name)
	err = classify("collection exists", name, err)
	a.observeOperation("collection_exists", name, start, err, 0)
	return exists, err
}

// CreateCollection creates a collection with one dense slot per schema vector and,
// for hybrid schemas, a BM25 sparse slot named LexicalVectorName.
//
// Example:
//
//	err := adapter.CreateCollection(ctx, vectordb.CollectionSchema{
//	    Name:    "Movies",
//	    Vectors: []vectordb.NamedVector{{Name: "title_vector", SourceProperties: []string{"title"}, Size: 1536}},
//	    Hybrid:  true,
//	})
func (a *Adapter) CreateCollection(ctx context.Context, schema vectordb.CollectionSchema) error {
	start := time.Now()
	err := a.createCollection(ctx, schema)
	a.observeOperation("create_collection", schema.Name, start, err, int64(len(schema.Vectors)))
	return err
}

func (a *Adapter) createCollection(ctx context.Context, schema vectordb.CollectionSchema) error {
	if err := schema.Validate(); err != nil {
		return err
	}
	for _, v := range schema.Vectors {
		if v.Name == LexicalVectorName {
			return fmt.Errorf("%w: vector name %q is reserved for the lexical slot", vectordb.ErrInvalidSchema, v.Name)
		}
	}

	exists, err := a.api.CollectionExists(ctx, schema.Name)
	if err != nil {
		return classify("collection exists", schema.Name, err)
	}
	if exists {
		return fmt.Errorf("[Qdrant] create collection %q: %w", schema.Name, vectordb.ErrCollectionExists)
	}

	encoded, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("[Qdrant] encode schema of %q: %w", schema.Name, err)
	}
	if err := a.api.CreateCollection(ctx, toCreateCollection(schema, string(encoded))); err != nil {
		return classify("create collection", schema.Name, err)
	}

	a.rememberSchema(schema)
	a.logInfo(ctx, "Qdrant collection created", map[string]interface{}{
		"collection": schema.Name,
		"vectors":    len(schema.Vectors),
		"hybrid":     schema.Hybrid,
	})
	return nil
}

// DeleteCollection drops a collection and all its points.
func (a *Adapter) DeleteCollection(ctx context.Context, name string) error {
	start := time.Now()
	err := classify("delete collection", name, a.api.DeleteCollection(ctx, name))
	a.observeOperation("delete_collection", name, start, err, 0)
	if err != nil {
		return err
	}
	a.mu.Lock()
	delete(a.schemas, name)
	a.mu.Unlock()
	return nil
}

// Count returns the exact number of points in a collection.
func (a *Adapter) Count(ctx context.Context, name string) (uint64, error) {
	start := time.Now()
	n, err := a.api.Count(ctx, &qdrant.CountPoints{
		CollectionName: name,
		Exact:          qdrant.PtrOf(true),
	})
	err = classify("count", name, err)
	a.observeOperation("count", name, start, err, int64(n))
	return n, err
}

// RegisterSchema makes schema known for a collection created elsewhere without
// metadata, enabling vectorization on write.
func (a *Adapter) RegisterSchema(schema vectordb.CollectionSchema) {
	a.rememberSchema(schema)
}

func (a *Adapter) rememberSchema(schema vectordb.CollectionSchema) {
	a.mu.Lock()
	a.schemas[schema.Name] = &schema
	a.mu.Unlock()
}

// schemaFor returns the schema of name from the cache or the collection metadata.
// Collections without metadata yield nil.
func (a *Adapter) schemaFor(ctx context.Context, name string) (*vectordb.CollectionSchema, error) {
	a.mu.RLock()
	schema, ok := a.schemas[name]
	a.mu.RUnlock()
	if ok {
		return schema, nil
	}

	info, err := a.api.GetCollectionInfo(ctx, name)
	if err != nil {
		return nil, classify("get collection", name, err)
	}
	raw := info.GetConfig().GetMetadata()[schemaMetadataKey].GetStringValue()
	if raw == "" {
		return nil, nil
	}
	var decoded vectordb.CollectionSchema
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		a.logWarn(ctx, "Ignoring unreadable collection schema metadata", err, map[string]interface{}{
			"collection": name,
		})
		return nil, nil
	}
	a.rememberSchema(decoded)
	return &decoded, nil
}
