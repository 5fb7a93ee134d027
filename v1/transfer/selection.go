package transfer

import (
	"context"
	"fmt"
	"slices"
)

// VectorSelection configures how a migration picks the vector slot it copies.
type VectorSelection struct {
	// Priority lists acceptable slot names, most preferred first. When empty, the
	// lexically first slot of the first record carrying vectors is used.
	Priority []string `yaml:"priority"`

	// Target renames the slot on the destination. Empty keeps the source name.
	Target string `yaml:"target"`
}

// VectorSelector wraps a Source and reduces every record to a single named vector.
//
// The slot is chosen on the first record that carries vectors and is locked for the
// rest of the run. A record lacking the locked slot fails on its own with
// ErrVectorNotFound, unless it exposes another acceptable slot, in which case the run
// is aborted with ErrInconsistentVectorKey.
type VectorSelector struct {
	src    Source
	sel    VectorSelection
	locked string
}

// SelectVector returns a VectorSelector reading from src.
func SelectVector(src Source, sel VectorSelection) *VectorSelector {
	return &VectorSelector{src: src, sel: sel}
}

// Locked returns the slot chosen for the run, or "" before the first vector was seen.
func (s *VectorSelector) Locked() string {
	return s.locked
}

// Next returns the next record carrying only the selected vector.
func (s *VectorSelector) Next(ctx context.Context) (Record, error) {
	rec, err := s.src.Next(ctx)
	if err != nil {
		return rec, err
	}

	if s.locked == "" {
		name := s.choose(rec)
		if name == "" {
			return Record{}, &RecordError{
				Record: rec,
				Err:    fmt.Errorf("%w: record %q carries none of %v", ErrVectorNotFound, rec.ID, s.candidates(rec)),
			}
		}
		s.locked = name
	}

	vector, ok := rec.Vectors[s.locked]
	if !ok {
		for _, name := range rec.VectorNames() {
			if s.acceptable(name) {
				return Record{}, &FatalError{
					Record: rec,
					Err:    fmt.Errorf("%w: run uses %q but record %q carries %q", ErrInconsistentVectorKey, s.locked, rec.ID, name),
				}
			}
		}
		return Record{}, &RecordError{
			Record: rec,
			Err:    fmt.Errorf("%w: record %q has no vector %q", ErrVectorNotFound, rec.ID, s.locked),
		}
	}

	target := s.sel.Target
	if target == "" {
		target = s.locked
	}
	return Record{
		ID:         rec.ID,
		Properties: rec.Properties,
		Vectors:    map[string][]float32{target: slices.Clone(vector)},
	}, nil
}

// Ack forwards acknowledgements to the wrapped source.
func (s *VectorSelector) Ack(ctx context.Context, n int) error {
	if a, ok := s.src.(Acknowledger); ok {
		return a.Ack(ctx, n)
	}
	return nil
}

// Reset rewinds the wrapped source and releases the locked slot.
func (s *VectorSelector) Reset() {
	if r, ok := s.src.(Resetter); ok {
		r.Reset()
	}
	s.locked = ""
}

func (s *VectorSelector) choose(rec Record) string {
	if len(s.sel.Priority) == 0 {
		names := rec.VectorNames()
		if len(names) == 0 {
			return ""
		}
		return names[0]
	}
	for _, name := range s.sel.Priority {
		if _, ok := rec.Vectors[name]; ok {
			return name
		}
	}
	return ""
}

func (s *VectorSelector) acceptable(name string) bool {
	if len(s.sel.Priority) == 0 {
		return true
	}
	return slices.Contains(s.sel.Priority, name)
}

func (s *VectorSelector) candidates(rec Record) []string {
	if len(s.sel.Priority) > 0 {
		return s.sel.Priority
	}
	return rec.VectorNames()
}
