package qdrant

import (
	"testing"

	"github.com/Aleph-Alpha/vecmigrate/v1/vectordb"
	qdrant "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQueryPointsSimilarity(t *testing.T) {
	req := vectordb.QueryRequest{
		Collection: "Movies",
		Mode:       vectordb.ModeSimilarity,
		Text:       "dystopia",
		Limit:      2,
		Params:     map[string]any{vectordb.ParamScoreThreshold: 0.5},
	}
	filter := vectordb.FilterFromMap(map[string]any{"genre": "sci-fi"})

	qp := newQueryPoints(req, filter, "title_vector", []float32{0.1, 0.2})

	assert.Equal(t, "Movies", qp.GetCollectionName())
	assert.Equal(t, uint64(2), qp.GetLimit())
	assert.Equal(t, "title_vector", qp.GetUsing())
	assert.Equal(t, float32(0.5), qp.GetScoreThreshold())
	assert.Equal(t, []float32{0.1, 0.2}, qp.GetQuery().GetNearest().GetDense().GetData())
	require.Len(t, qp.GetFilter().GetMust(), 1)
	assert.Empty(t, qp.GetPrefetch())
}

func TestNewQueryPointsHybrid(t *testing.T) {
	req := vectordb.QueryRequest{Collection: "Movies", Mode: vectordb.ModeHybrid, Text: "pixar", Limit: 2}

	qp := newQueryPoints(req, nil, "title_vector", []float32{1, 0})

	_, fused := qp.GetQuery().GetVariant().(*qdrant.Query_Fusion)
	assert.True(t, fused)
	assert.Equal(t, qdrant.Fusion_RRF, qp.GetQuery().GetFusion())
	assert.Equal(t, uint64(2), qp.GetLimit())
	assert.Nil(t, qp.GetFilter())

	require.Len(t, qp.GetPrefetch(), 2)
	dense, lexical := qp.GetPrefetch()[0], qp.GetPrefetch()[1]
	assert.Equal(t, "title_vector", dense.GetUsing())
	assert.Equal(t, []float32{1, 0}, dense.GetQuery().GetNearest().GetDense().GetData())
	assert.Equal(t, uint64(4), dense.GetLimit())
	assert.Equal(t, LexicalVectorName, lexical.GetUsing())
	assert.Equal(t, "pixar", lexical.GetQuery().GetNearest().GetDocument().GetText())
	assert.Equal(t, LexicalModel, lexical.GetQuery().GetNearest().GetDocument().GetModel())
}

func TestToQueryResults(t *testing.T) {
	results, err := toQueryResults([]*qdrant.ScoredPoint{
		{Id: qdrant.NewIDNum(2), Score: 0.9, Payload: qdrant.NewValueMap(map[string]any{"title": "Jumanji"})},
		{Id: qdrant.NewIDUUID("6ba7b810-9dad-11d1-80b4-00c04fd430c8"), Score: 0.4},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, vectordb.QueryResult{ID: "2", Properties: map[string]any{"title": "Jumanji"}, Score: 0.9}, results[0])
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", results[1].ID)
	assert.Nil(t, results[1].Properties)
}
