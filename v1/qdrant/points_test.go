package qdrant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Aleph-Alpha/vecmigrate/v1/transfer"
	"github.com/Aleph-Alpha/vecmigrate/v1/vectordb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func moviesSchema() *vectordb.CollectionSchema {
	return &vectordb.CollectionSchema{
		Name:    "Movies",
		Vectors: []vectordb.NamedVector{{Name: "title_vector", SourceProperties: []string{"title"}, Size: 3}},
		Hybrid:  true,
	}
}

// fakeVectorizer embeds a text as {len, first byte, 1}.
type fakeVectorizer struct {
	calls [][]string
	err   error
	size  int
}

func (f *fakeVectorizer) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := []float32{float32(len(text)), float32(text[0]), 1}
		if f.size > 0 {
			v = v[:f.size]
		}
		out[i] = v
	}
	return out, nil
}

func TestPreparePointsValidatesRecords(t *testing.T) {
	records := []transfer.Record{
		{Properties: map[string]any{"title": "Toy Story"}, Vectors: map[string][]float32{"title_vector": {1, 2, 3}}},
		{ID: "toy-story", Properties: map[string]any{"title": "Toy Story"}},
		{ID: "42", Properties: map[string]any{"title": "Jumanji"}},
		{ID: "42", Properties: map[string]any{"title": "Grumpier Old Men"}},
		{ID: "6ba7b810-9dad-11d1-80b4-00c04fd430c8", Vectors: map[string][]float32{"plot_vector": {1, 2, 3}}},
		{ID: "7", Vectors: map[string][]float32{"title_vector": {1, 2}}},
		{ID: "8", Properties: map[string]any{"title": "Heat"}},
	}
	outcomes := make([]error, len(records))

	pending := preparePoints(records, moviesSchema(), outcomes)

	assert.NoError(t, outcomes[0])
	assert.ErrorIs(t, outcomes[1], ErrInvalidPointID)
	assert.NoError(t, outcomes[2])
	assert.ErrorIs(t, outcomes[3], ErrDuplicateID)
	assert.Contains(t, outcomes[3].Error(), "duplicate key")
	assert.ErrorIs(t, outcomes[4], ErrUnknownVector)
	assert.ErrorIs(t, outcomes[5], ErrVectorSize)
	assert.NoError(t, outcomes[6])

	require.Len(t, pending, 3)
	assert.Equal(t, []int{0, 2, 6}, []int{pending[0].index, pending[1].index, pending[2].index})
	assert.NotEmpty(t, pending[0].id)
	assert.Equal(t, "42", pending[1].id)

	assert.Equal(t, []float32{1, 2, 3}, pending[0].vectors["title_vector"].GetDense().GetData())
	assert.Equal(t, "Heat", pending[2].vectors[LexicalVectorName].GetDocument().GetText())
	assert.Equal(t, LexicalModel, pending[2].vectors[LexicalVectorName].GetDocument().GetModel())
}

func TestPreparePointsWithoutSchema(t *testing.T) {
	records := []transfer.Record{
		{ID: "1", Vectors: map[string][]float32{"anything": {1}}},
	}
	outcomes := make([]error, len(records))

	pending := preparePoints(records, nil, outcomes)

	require.Len(t, pending, 1)
	assert.NoError(t, outcomes[0])
	assert.NotContains(t, pending[0].vectors, LexicalVectorName)
}

func TestPendingPointKeepsAssignedID(t *testing.T) {
	outcomes := make([]error, 1)
	pending := preparePoints([]transfer.Record{{Properties: map[string]any{"title": "Heat"}}}, nil, outcomes)
	require.Len(t, pending, 1)

	first := pending[0].point()
	second := pending[0].point()
	assert.Equal(t, first.GetId().GetUuid(), second.GetId().GetUuid())
	assert.Equal(t, pending[0].id, first.GetId().GetUuid())
}

func TestVectorizeFillsMissingSlots(t *testing.T) {
	records := []transfer.Record{
		{ID: "1", Properties: map[string]any{"title": "Heat"}},
		{ID: "2", Properties: map[string]any{"title": "Casino"}, Vectors: map[string][]float32{"title_vector": {9, 9, 9}}},
		{ID: "3", Properties: map[string]any{"year": 1995}},
	}
	outcomes := make([]error, len(records))
	schema := moviesSchema()
	pending := preparePoints(records, schema, outcomes)

	vec := &fakeVectorizer{}
	a := &Adapter{vectorizer: vec}
	a.vectorize(context.Background(), *schema, pending, outcomes)

	require.Len(t, vec.calls, 1)
	assert.Equal(t, []string{"Heat"}, vec.calls[0])
	assert.Equal(t, []float32{4, 'H', 1}, pending[0].vectors["title_vector"].GetDense().GetData())
	assert.Equal(t, []float32{9, 9, 9}, pending[1].vectors["title_vector"].GetDense().GetData())
	assert.NotContains(t, pending[2].vectors, "title_vector")
	for _, err := range outcomes {
		assert.NoError(t, err)
	}
}

func TestVectorizeFailuresArePerRecord(t *testing.T) {
	records := []transfer.Record{
		{ID: "1", Properties: map[string]any{"title": "Heat"}},
		{ID: "2", Properties: map[string]any{"title": "Casino"}, Vectors: map[string][]float32{"title_vector": {9, 9, 9}}},
	}
	outcomes := make([]error, len(records))
	schema := moviesSchema()
	pending := preparePoints(records, schema, outcomes)

	a := &Adapter{vectorizer: &fakeVectorizer{err: errors.New("quota exceeded")}}
	a.vectorize(context.Background(), *schema, pending, outcomes)

	assert.ErrorIs(t, outcomes[0], ErrVectorize)
	assert.True(t, strings.Contains(outcomes[0].Error(), "quota exceeded"))
	assert.NoError(t, outcomes[1])
}

func TestVectorizeRejectsWrongDimension(t *testing.T) {
	records := []transfer.Record{{ID: "1", Properties: map[string]any{"title": "Heat"}}}
	outcomes := make([]error, len(records))
	schema := moviesSchema()
	pending := preparePoints(records, schema, outcomes)

	a := &Adapter{vectorizer: &fakeVectorizer{size: 2}}
	a.vectorize(context.Background(), *schema, pending, outcomes)

	assert.ErrorIs(t, outcomes[0], ErrVectorSize)
}
