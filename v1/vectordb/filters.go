package vectordb

import (
	"fmt"
	"sort"
	"time"
)

// FilterCondition is implemented by every payload condition.
type FilterCondition interface {
	isFilterCondition()
	// FieldName returns the payload property the condition applies to.
	FieldName() string
}

// FilterSet combines conditions the way Qdrant filters do: every Must condition has
// to hold, at least one Should condition has to hold when any are given, and no
// MustNot condition may hold.
type FilterSet struct {
	Must    []FilterCondition
	Should  []FilterCondition
	MustNot []FilterCondition
}

// IsEmpty reports whether the set has no conditions at all.
func (f *FilterSet) IsEmpty() bool {
	return f == nil || (len(f.Must) == 0 && len(f.Should) == 0 && len(f.MustNot) == 0)
}

// Validate checks every condition for a field name and well-formed values.
func (f *FilterSet) Validate() error {
	if f == nil {
		return nil
	}
	for _, group := range [][]FilterCondition{f.Must, f.Should, f.MustNot} {
		for _, c := range group {
			if c == nil {
				return fmt.Errorf("%w: nil condition", ErrInvalidFilter)
			}
			if c.FieldName() == "" {
				return fmt.Errorf("%w: condition %T without field", ErrInvalidFilter, c)
			}
			if err := validateCondition(c); err != nil {
				return err
			}
		}
	}
	return nil
}

// MatchCondition matches a property equal to Value (string, bool or integer).
type MatchCondition struct {
	Field string
	Value any
}

// TextCondition matches a full-text indexed property containing Text.
type TextCondition struct {
	Field string
	Text  string
}

// MatchAnyCondition matches a property equal to one of Values.
type MatchAnyCondition struct {
	Field  string
	Values []any
}

// MatchExceptCondition matches a property equal to none of Values.
type MatchExceptCondition struct {
	Field  string
	Values []any
}

// NumericRange bounds a numeric property. Nil bounds are open.
type NumericRange struct {
	Gt  *float64
	Gte *float64
	Lt  *float64
	Lte *float64
}

// NumericRangeCondition matches a numeric property within Range.
type NumericRangeCondition struct {
	Field string
	Range NumericRange
}

// TimeRange bounds a datetime property. Nil bounds are open.
type TimeRange struct {
	Gt  *time.Time
	Gte *time.Time
	Lt  *time.Time
	Lte *time.Time
}

// TimeRangeCondition matches a datetime property within Range.
type TimeRangeCondition struct {
	Field string
	Range TimeRange
}

// IsNullCondition matches a property explicitly set to null.
type IsNullCondition struct {
	Field string
}

// IsEmptyCondition matches a property that is missing, null or an empty list.
type IsEmptyCondition struct {
	Field string
}

func (*MatchCondition) isFilterCondition()        {}
func (*TextCondition) isFilterCondition()         {}
func (*MatchAnyCondition) isFilterCondition()     {}
func (*MatchExceptCondition) isFilterCondition()  {}
func (*NumericRangeCondition) isFilterCondition() {}
func (*TimeRangeCondition) isFilterCondition()    {}
func (*IsNullCondition) isFilterCondition()       {}
func (*IsEmptyCondition) isFilterCondition()      {}

func (c *MatchCondition) FieldName() string        { return c.Field }
func (c *TextCondition) FieldName() string         { return c.Field }
func (c *MatchAnyCondition) FieldName() string     { return c.Field }
func (c *MatchExceptCondition) FieldName() string  { return c.Field }
func (c *NumericRangeCondition) FieldName() string { return c.Field }
func (c *TimeRangeCondition) FieldName() string    { return c.Field }
func (c *IsNullCondition) FieldName() string       { return c.Field }
func (c *IsEmptyCondition) FieldName() string      { return c.Field }

// NewFilterSet builds a FilterSet from Must, Should and MustNot clauses.
//
//	filter := vectordb.NewFilterSet(
//	    vectordb.Must(vectordb.NewMatch("genre", "Comedy")),
//	    vectordb.MustNot(vectordb.NewNumericRange("year", vectordb.NumericRange{Lt: ptr(1990.0)})),
//	)
func NewFilterSet(clauses ...func(*FilterSet)) *FilterSet {
	fs := &FilterSet{}
	for _, clause := range clauses {
		clause(fs)
	}
	return fs
}

// Must adds conditions that all have to hold.
func Must(conditions ...FilterCondition) func(*FilterSet) {
	return func(fs *FilterSet) { fs.Must = append(fs.Must, conditions...) }
}

// Should adds conditions of which at least one has to hold.
func Should(conditions ...FilterCondition) func(*FilterSet) {
	return func(fs *FilterSet) { fs.Should = append(fs.Should, conditions...) }
}

// MustNot adds conditions that must not hold.
func MustNot(conditions ...FilterCondition) func(*FilterSet) {
	return func(fs *FilterSet) { fs.MustNot = append(fs.MustNot, conditions...) }
}

func NewMatch(field string, value any) *MatchCondition {
	return &MatchCondition{Field: field, Value: value}
}

func NewText(field, text string) *TextCondition {
	return &TextCondition{Field: field, Text: text}
}

func NewMatchAny(field string, values ...any) *MatchAnyCondition {
	return &MatchAnyCondition{Field: field, Values: values}
}

func NewMatchExcept(field string, values ...any) *MatchExceptCondition {
	return &MatchExceptCondition{Field: field, Values: values}
}

func NewNumericRange(field string, r NumericRange) *NumericRangeCondition {
	return &NumericRangeCondition{Field: field, Range: r}
}

func NewTimeRange(field string, r TimeRange) *TimeRangeCondition {
	return &TimeRangeCondition{Field: field, Range: r}
}

func NewIsNull(field string) *IsNullCondition {
	return &IsNullCondition{Field: field}
}

func NewIsEmpty(field string) *IsEmptyCondition {
	return &IsEmptyCondition{Field: field}
}

// FilterFromMap turns a property→value map into a FilterSet of equality conditions.
// Slice values become MatchAny conditions. Keys are processed in lexical order.
func FilterFromMap(m map[string]any) *FilterSet {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fs := &FilterSet{}
	for _, k := range keys {
		switch v := m[k].(type) {
		case []any:
			fs.Must = append(fs.Must, NewMatchAny(k, v...))
		case []string:
			values := make([]any, len(v))
			for i, s := range v {
				values[i] = s
			}
			fs.Must = append(fs.Must, NewMatchAny(k, values...))
		case nil:
			fs.Must = append(fs.Must, NewIsNull(k))
		default:
			fs.Must = append(fs.Must, NewMatch(k, v))
		}
	}
	return fs
}

func validateCondition(c FilterCondition) error {
	switch cond := c.(type) {
	case *MatchCondition:
		if !isMatchable(cond.Value) {
			return fmt.Errorf("%w: match on %q with unsupported value type %T", ErrInvalidFilter, cond.Field, cond.Value)
		}
	case *MatchAnyCondition:
		return validateValues(cond.Field, cond.Values)
	case *MatchExceptCondition:
		return validateValues(cond.Field, cond.Values)
	case *NumericRangeCondition:
		r := cond.Range
		if r.Gt == nil && r.Gte == nil && r.Lt == nil && r.Lte == nil {
			return fmt.Errorf("%w: range on %q without bounds", ErrInvalidFilter, cond.Field)
		}
	case *TimeRangeCondition:
		r := cond.Range
		if r.Gt == nil && r.Gte == nil && r.Lt == nil && r.Lte == nil {
			return fmt.Errorf("%w: time range on %q without bounds", ErrInvalidFilter, cond.Field)
		}
	case *TextCondition:
		if cond.Text == "" {
			return fmt.Errorf("%w: empty text match on %q", ErrInvalidFilter, cond.Field)
		}
	}
	return nil
}

// validateValues requires a non-empty list of values sharing one matchable kind.
func validateValues(field string, values []any) error {
	if len(values) == 0 {
		return fmt.Errorf("%w: %q needs at least one value", ErrInvalidFilter, field)
	}
	kind := valueKind(values[0])
	for _, v := range values {
		if !isMatchable(v) {
			return fmt.Errorf("%w: %q has unsupported value type %T", ErrInvalidFilter, field, v)
		}
		if valueKind(v) != kind {
			return fmt.Errorf("%w: %q mixes %s and %s values", ErrInvalidFilter, field, kind, valueKind(v))
		}
	}
	return nil
}

func isMatchable(v any) bool {
	return valueKind(v) != ""
}

func valueKind(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "bool"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32:
		return "integer"
	default:
		return ""
	}
}
