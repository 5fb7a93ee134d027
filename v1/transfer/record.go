package transfer

import (
	"fmt"
	"sort"
)

// Record is a single unit moved by the engine.
//
// ID is optional; an empty ID lets the destination assign one. Properties must hold
// scalar values only. Vectors maps a named vector slot to its values.
type Record struct {
	ID         string
	Properties map[string]any
	Vectors    map[string][]float32
}

// Batch is an ordered group of records submitted to a sink in one call.
type Batch []Record

// VectorNames returns the names of the record's vector slots in lexical order.
func (r Record) VectorNames() []string {
	names := make([]string, 0, len(r.Vectors))
	for name := range r.Vectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the record invariants and returns a *ValidationError when one is broken.
func (r Record) Validate() error {
	if len(r.Properties) == 0 && len(r.Vectors) == 0 {
		return &ValidationError{ID: r.ID, Reason: "record has neither properties nor vectors"}
	}
	for key, value := range r.Properties {
		if key == "" {
			return &ValidationError{ID: r.ID, Reason: "property with empty name"}
		}
		if !isScalar(value) {
			return &ValidationError{ID: r.ID, Reason: fmt.Sprintf("property %q has non-scalar value of type %T", key, value)}
		}
	}
	for name, vector := range r.Vectors {
		if len(vector) == 0 {
			return &ValidationError{ID: r.ID, Reason: fmt.Sprintf("vector %q is empty", name)}
		}
	}
	return nil
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}
