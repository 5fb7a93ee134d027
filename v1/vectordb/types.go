package vectordb

import (
	"fmt"
	"strings"
)

// Distance is the similarity metric of a dense vector slot.
type Distance string

const (
	DistanceCosine    Distance = "cosine"
	DistanceDot       Distance = "dot"
	DistanceEuclidean Distance = "euclid"
	DistanceManhattan Distance = "manhattan"
)

// NamedVector describes one dense vector slot of a collection.
type NamedVector struct {
	// Name of the slot, e.g. "title_vector".
	Name string `yaml:"name"`

	// SourceProperties are the properties concatenated and embedded when a record is
	// written without a vector for this slot. Empty disables vectorization.
	SourceProperties []string `yaml:"source_properties"`

	// Size is the vector dimension.
	Size uint64 `yaml:"size"`

	// Distance defaults to cosine.
	Distance Distance `yaml:"distance"`
}

// CollectionSchema is everything needed to create a collection.
type CollectionSchema struct {
	Name string `yaml:"name"`

	// ReplicationFactor is the number of copies of each shard. Zero keeps the server default.
	ReplicationFactor uint32 `yaml:"replication_factor"`

	// Vectors lists the dense vector slots.
	Vectors []NamedVector `yaml:"vectors"`

	// Hybrid adds a lexical (BM25) slot so the collection supports hybrid queries.
	Hybrid bool `yaml:"hybrid"`

	// TextProperties feed the lexical slot. Defaults to the union of all vector
	// SourceProperties.
	TextProperties []string `yaml:"text_properties"`
}

// Validate checks names, sizes and metrics.
func (s CollectionSchema) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: collection name is required", ErrInvalidSchema)
	}
	if len(s.Vectors) == 0 && !s.Hybrid {
		return fmt.Errorf("%w: collection %q defines no vector slot", ErrInvalidSchema, s.Name)
	}
	seen := make(map[string]bool, len(s.Vectors))
	for _, v := range s.Vectors {
		if v.Name == "" {
			return fmt.Errorf("%w: collection %q has an unnamed vector", ErrInvalidSchema, s.Name)
		}
		if seen[v.Name] {
			return fmt.Errorf("%w: collection %q declares vector %q twice", ErrInvalidSchema, s.Name, v.Name)
		}
		seen[v.Name] = true
		if v.Size == 0 {
			return fmt.Errorf("%w: vector %q has no size", ErrInvalidSchema, v.Name)
		}
		switch v.Distance {
		case "", DistanceCosine, DistanceDot, DistanceEuclidean, DistanceManhattan:
		default:
			return fmt.Errorf("%w: vector %q has unknown distance %q", ErrInvalidSchema, v.Name, v.Distance)
		}
	}
	return nil
}

// Vector returns the slot named name.
func (s CollectionSchema) Vector(name string) (NamedVector, bool) {
	for _, v := range s.Vectors {
		if v.Name == name {
			return v, true
		}
	}
	return NamedVector{}, false
}

// LexicalProperties returns the properties indexed by the lexical slot.
func (s CollectionSchema) LexicalProperties() []string {
	if len(s.TextProperties) > 0 {
		return s.TextProperties
	}
	var props []string
	seen := make(map[string]bool)
	for _, v := range s.Vectors {
		for _, p := range v.SourceProperties {
			if !seen[p] {
				seen[p] = true
				props = append(props, p)
			}
		}
	}
	return props
}

// QueryMode selects how query text is matched.
type QueryMode string

const (
	// ModeSimilarity ranks by dense vector similarity to the embedded query text.
	ModeSimilarity QueryMode = "similarity"
	// ModeHybrid fuses dense similarity with lexical relevance.
	ModeHybrid QueryMode = "hybrid"
)

// Well-known keys of QueryRequest.Params.
const (
	// ParamFilter holds a *FilterSet or a map[string]any of equality conditions.
	ParamFilter = "filter"
	// ParamVector names the dense slot to search. Defaults to the first slot.
	ParamVector = "vector"
	// ParamScoreThreshold drops results scoring below the given float.
	ParamScoreThreshold = "score_threshold"
)

// QueryRequest is a similarity or hybrid query.
type QueryRequest struct {
	Collection string
	Mode       QueryMode
	Text       string
	Limit      int
	Params     map[string]any
}

// Validate checks the request shape.
func (q QueryRequest) Validate() error {
	if q.Collection == "" {
		return fmt.Errorf("%w: collection is required", ErrInvalidQuery)
	}
	if q.Mode != ModeSimilarity && q.Mode != ModeHybrid {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidQuery, q.Mode)
	}
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: query text is required", ErrInvalidQuery)
	}
	if q.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidQuery, q.Limit)
	}
	return nil
}

// Filter extracts the filter parameter.
func (q QueryRequest) Filter() (*FilterSet, error) {
	switch f := q.Params[ParamFilter].(type) {
	case nil:
		return nil, nil
	case *FilterSet:
		return f, f.Validate()
	case map[string]any:
		fs := FilterFromMap(f)
		return fs, fs.Validate()
	default:
		return nil, fmt.Errorf("%w: filter parameter of type %T", ErrInvalidQuery, f)
	}
}

// VectorName extracts the vector parameter.
func (q QueryRequest) VectorName() string {
	name, _ := q.Params[ParamVector].(string)
	return name
}

// ScoreThreshold extracts the score_threshold parameter.
func (q QueryRequest) ScoreThreshold() (float32, bool) {
	switch v := q.Params[ParamScoreThreshold].(type) {
	case float32:
		return v, true
	case float64:
		return float32(v), true
	default:
		return 0, false
	}
}

// QueryResult is one ranked match.
type QueryResult struct {
	ID         string
	Properties map[string]any
	Score      float32
}

// GenerateRequest retrieves objects and runs one generation per object.
type GenerateRequest struct {
	Collection string
	Text       string

	// PromptTemplate references object properties as {name}, e.g. "Categorize genre: {title}".
	PromptTemplate string

	Limit int

	// Mode selects the retrieval; defaults to similarity.
	Mode   QueryMode
	Params map[string]any
}

// Query returns the retrieval part of the request.
func (g GenerateRequest) Query() QueryRequest {
	mode := g.Mode
	if mode == "" {
		mode = ModeSimilarity
	}
	return QueryRequest{Collection: g.Collection, Mode: mode, Text: g.Text, Limit: g.Limit, Params: g.Params}
}

// GeneratedResult pairs an object with the text generated for it.
type GeneratedResult struct {
	ID         string
	Properties map[string]any
	Generated  string
}
