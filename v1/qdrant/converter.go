package qdrant

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Aleph-Alpha/vecmigrate/v1/vectordb"
	"github.com/google/uuid"
	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const (
	// LexicalVectorName is the sparse slot holding BM25 term weights of hybrid collections.
	LexicalVectorName = "bm25"

	// LexicalModel is the server-side model that turns documents into BM25 vectors.
	LexicalModel = "qdrant/bm25"

	// DefaultVectorName is the record vector name of a collection's unnamed vector.
	DefaultVectorName = "default"
)

// ── Point IDs ────────────────────────────────────────────────────────────────

// toPointID converts a record ID. Empty IDs get a random UUID.
func toPointID(id string) (*qdrant.PointId, string, error) {
	if id == "" {
		u := uuid.NewString()
		return qdrant.NewIDUUID(u), u, nil
	}
	if u, err := uuid.Parse(id); err == nil {
		return qdrant.NewIDUUID(u.String()), u.String(), nil
	}
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return qdrant.NewIDNum(n), strconv.FormatUint(n, 10), nil
	}
	return nil, "", fmt.Errorf("%w: %q", ErrInvalidPointID, id)
}

// fromPointID extracts a string ID from Qdrant's PointId type.
func fromPointID(id *qdrant.PointId) (string, error) {
	if id == nil {
		return "", fmt.Errorf("nil point ID")
	}
	switch v := id.PointIdOptions.(type) {
	case *qdrant.PointId_Num:
		return strconv.FormatUint(v.Num, 10), nil
	case *qdrant.PointId_Uuid:
		return v.Uuid, nil
	default:
		return "", fmt.Errorf("unexpected PointId type: %T", v)
	}
}

// ── Vectors ──────────────────────────────────────────────────────────────────

// fromVectorsOutput returns the dense vectors of a point keyed by name. Sparse slots
// are skipped; the unnamed vector is returned as DefaultVectorName.
func fromVectorsOutput(out *qdrant.VectorsOutput) map[string][]float32 {
	if out == nil {
		return nil
	}
	if single := out.GetVector(); single != nil {
		if data := denseData(single); len(data) > 0 {
			return map[string][]float32{DefaultVectorName: data}
		}
		return nil
	}
	named := out.GetVectors().GetVectors()
	if len(named) == 0 {
		return nil
	}
	vectors := make(map[string][]float32, len(named))
	for name, v := range named {
		if data := denseData(v); len(data) > 0 {
			vectors[name] = data
		}
	}
	if len(vectors) == 0 {
		return nil
	}
	return vectors
}

func denseData(v *qdrant.VectorOutput) []float32 {
	if d := v.GetDense(); d != nil {
		return d.GetData()
	}
	if v.GetSparse() != nil || v.GetMultiDense() != nil {
		return nil
	}
	return v.GetData()
}

// lexicalText joins the string form of the named properties, skipping missing ones.
func lexicalText(props map[string]any, names []string) string {
	parts := make([]string, 0, len(names))
	for _, name := range names {
		v, ok := props[name]
		if !ok || v == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprint(v))
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// ── Payload ──────────────────────────────────────────────────────────────────

// fromPayload converts Qdrant's protobuf payload to a generic map.
func fromPayload(payload map[string]*qdrant.Value) map[string]any {
	if payload == nil {
		return nil
	}
	result := make(map[string]any, len(payload))
	for k, v := range payload {
		result[k] = fromValue(v)
	}
	return result
}

// fromValue recursively converts a Qdrant Value to a Go native type.
func fromValue(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch val := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_NullValue:
		return nil
	case *qdrant.Value_StructValue:
		if val.StructValue == nil {
			return nil
		}
		return fromPayload(val.StructValue.Fields)
	case *qdrant.Value_ListValue:
		if val.ListValue == nil {
			return nil
		}
		items := make([]any, len(val.ListValue.Values))
		for i, item := range val.ListValue.Values {
			items[i] = fromValue(item)
		}
		return items
	default:
		return nil
	}
}

// toPayload converts record properties. Narrow integer kinds are widened to int64 and
// float32 to float64, the payload model knows no other numeric types.
func toPayload(props map[string]any) (map[string]*qdrant.Value, error) {
	if len(props) == 0 {
		return nil, nil
	}
	normalized := make(map[string]any, len(props))
	for k, v := range props {
		switch n := v.(type) {
		case float32:
			normalized[k] = float64(n)
		case float64, bool, string, nil:
			normalized[k] = n
		default:
			if i, ok := asInt64(v); ok {
				normalized[k] = i
			} else {
				normalized[k] = v
			}
		}
	}
	payload, err := qdrant.TryValueMap(normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return payload, nil
}

// ── Filter Conversion ────────────────────────────────────────────────────────

// toFilter converts a vectordb.FilterSet to a Qdrant filter. Empty sets yield nil.
func toFilter(filters *vectordb.FilterSet) *qdrant.Filter {
	if filters == nil || filters.IsEmpty() {
		return nil
	}
	filter := &qdrant.Filter{
		Must:    toConditions(filters.Must),
		Should:  toConditions(filters.Should),
		MustNot: toConditions(filters.MustNot),
	}
	if len(filter.Must) == 0 && len(filter.Should) == 0 && len(filter.MustNot) == 0 {
		return nil
	}
	return filter
}

func toConditions(conds []vectordb.FilterCondition) []*qdrant.Condition {
	var out []*qdrant.Condition
	for _, c := range conds {
		if qc := toCondition(c); qc != nil {
			out = append(out, qc)
		}
	}
	return out
}

func toCondition(c vectordb.FilterCondition) *qdrant.Condition {
	switch cond := c.(type) {
	case *vectordb.MatchCondition:
		return toMatch(cond.Field, cond.Value)
	case *vectordb.TextCondition:
		return qdrant.NewMatchText(cond.Field, cond.Text)
	case *vectordb.MatchAnyCondition:
		return toMatchAny(cond.Field, cond.Values, false)
	case *vectordb.MatchExceptCondition:
		return toMatchAny(cond.Field, cond.Values, true)
	case *vectordb.NumericRangeCondition:
		r := &qdrant.Range{Gt: cond.Range.Gt, Gte: cond.Range.Gte, Lt: cond.Range.Lt, Lte: cond.Range.Lte}
		if r.Gt == nil && r.Gte == nil && r.Lt == nil && r.Lte == nil {
			return nil
		}
		return qdrant.NewRange(cond.Field, r)
	case *vectordb.TimeRangeCondition:
		r := &qdrant.DatetimeRange{
			Gt:  toTimestamp(cond.Range.Gt),
			Gte: toTimestamp(cond.Range.Gte),
			Lt:  toTimestamp(cond.Range.Lt),
			Lte: toTimestamp(cond.Range.Lte),
		}
		if r.Gt == nil && r.Gte == nil && r.Lt == nil && r.Lte == nil {
			return nil
		}
		return qdrant.NewDatetimeRange(cond.Field, r)
	case *vectordb.IsNullCondition:
		return qdrant.NewIsNull(cond.Field)
	case *vectordb.IsEmptyCondition:
		return qdrant.NewIsEmpty(cond.Field)
	default:
		return nil
	}
}

func toMatch(field string, value any) *qdrant.Condition {
	switch v := value.(type) {
	case string:
		return qdrant.NewMatch(field, v)
	case bool:
		return qdrant.NewMatchBool(field, v)
	default:
		if n, ok := asInt64(v); ok {
			return qdrant.NewMatchInt(field, n)
		}
		return nil
	}
}

func toMatchAny(field string, values []any, except bool) *qdrant.Condition {
	if len(values) == 0 {
		return nil
	}
	if _, ok := values[0].(string); ok {
		strs := make([]string, 0, len(values))
		for _, v := range values {
			if s, ok := v.(string); ok {
				strs = append(strs, s)
			}
		}
		if except {
			return qdrant.NewMatchExceptKeywords(field, strs...)
		}
		return qdrant.NewMatchKeywords(field, strs...)
	}
	ints := make([]int64, 0, len(values))
	for _, v := range values {
		if n, ok := asInt64(v); ok {
			ints = append(ints, n)
		}
	}
	if len(ints) == 0 {
		return nil
	}
	if except {
		return qdrant.NewMatchExceptInts(field, ints...)
	}
	return qdrant.NewMatchInts(field, ints...)
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		// JSON numbers decode as float64.
		return int64(n), n == float64(int64(n))
	default:
		return 0, false
	}
}

func toTimestamp(t *time.Time) *timestamppb.Timestamp {
	if t == nil {
		return nil
	}
	return timestamppb.New(*t)
}

// ── Collections ──────────────────────────────────────────────────────────────

func toDistance(d vectordb.Distance) qdrant.Distance {
	switch d {
	case vectordb.DistanceDot:
		return qdrant.Distance_Dot
	case vectordb.DistanceEuclidean:
		return qdrant.Distance_Euclid
	case vectordb.DistanceManhattan:
		return qdrant.Distance_Manhattan
	default:
		return qdrant.Distance_Cosine
	}
}

// toCreateCollection builds the create request for schema. The schema itself is kept
// in the collection metadata under schemaMetadataKey.
func toCreateCollection(schema vectordb.CollectionSchema, encoded string) *qdrant.CreateCollection {
	req := &qdrant.CreateCollection{
		CollectionName: schema.Name,
		Metadata:       map[string]*qdrant.Value{schemaMetadataKey: qdrant.NewValueString(encoded)},
	}
	if schema.ReplicationFactor > 0 {
		req.ReplicationFactor = qdrant.PtrOf(schema.ReplicationFactor)
	}
	if len(schema.Vectors) > 0 {
		params := make(map[string]*qdrant.VectorParams, len(schema.Vectors))
		for _, v := range schema.Vectors {
			params[v.Name] = &qdrant.VectorParams{Size: v.Size, Distance: toDistance(v.Distance)}
		}
		req.VectorsConfig = qdrant.NewVectorsConfigMap(params)
	}
	if schema.Hybrid {
		req.SparseVectorsConfig = qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
			LexicalVectorName: {Modifier: qdrant.Modifier_Idf.Enum()},
		})
	}
	return req
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
