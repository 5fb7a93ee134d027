package transfer

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vectorRecords() []Record {
	return []Record{
		{ID: "1", Properties: map[string]any{"title": "Toy Story"}, Vectors: map[string][]float32{"title_vector": {0.1, 0.2, 0.3}}},
		{ID: "2", Properties: map[string]any{"title": "Heat"}, Vectors: map[string][]float32{"title_vector": {math.SmallestNonzeroFloat32, -0, 1e-7}}},
		{ID: "3", Properties: map[string]any{"title": "Casino"}},
		{ID: "4", Properties: map[string]any{"title": "Sabrina"}, Vectors: map[string][]float32{"title_vector": {float32(math.Pi), 2, 3}}},
	}
}

func TestMigrationCopiesSelectedVectorExactly(t *testing.T) {
	records := vectorRecords()
	sink := newRecordingSink()

	src := SelectVector(NewSliceSource(records), VectorSelection{Priority: []string{"title_vector"}})
	res := Transfer(context.Background(), src, Config{MaxBatchSize: 100, ErrorThreshold: 10}, sink)

	require.Equal(t, StatusExhausted, res.Status)
	assert.Equal(t, 3, res.SuccessCount)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "3", res.Failures[0].Record.ID)
	assert.ErrorIs(t, res.Failures[0].Err, ErrVectorNotFound)

	for _, id := range []string{"1", "2", "4"} {
		var original []float32
		for _, rec := range records {
			if rec.ID == id {
				original = rec.Vectors["title_vector"]
			}
		}
		stored := sink.stored[id].Vectors["title_vector"]
		require.Len(t, stored, len(original))
		for i := range original {
			assert.Equal(t, math.Float32bits(original[i]), math.Float32bits(stored[i]))
		}
	}
}

func TestSelectVectorUsesPriorityOrder(t *testing.T) {
	src := SelectVector(NewSliceSource([]Record{
		{ID: "1", Vectors: map[string][]float32{"a": {1}, "b": {2}, "c": {3}}},
	}), VectorSelection{Priority: []string{"c", "b"}})

	rec, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "c", src.Locked())
	assert.Equal(t, map[string][]float32{"c": {3}}, rec.Vectors)
}

func TestSelectVectorDefaultsToFirstName(t *testing.T) {
	src := SelectVector(NewSliceSource([]Record{
		{ID: "1", Vectors: map[string][]float32{"zeta": {1}, "alpha": {2}}},
	}), VectorSelection{Target: "vector"})

	rec, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alpha", src.Locked())
	assert.Equal(t, map[string][]float32{"vector": {2}}, rec.Vectors)
	assert.Equal(t, "1", rec.ID)
}

func TestSelectVectorInconsistentKeyIsFatal(t *testing.T) {
	records := []Record{
		{ID: "1", Vectors: map[string][]float32{"title_vector": {1}}},
		{ID: "2", Vectors: map[string][]float32{"title_vector": {2}}},
		{ID: "3", Vectors: map[string][]float32{"plot_vector": {3}}},
	}
	src := SelectVector(NewSliceSource(records), VectorSelection{Priority: []string{"title_vector", "plot_vector"}})

	res := Transfer(context.Background(), src, Config{MaxBatchSize: 1, ErrorThreshold: 10}, newRecordingSink())

	assert.Equal(t, StatusFatal, res.Status)
	assert.ErrorIs(t, res.Err, ErrInconsistentVectorKey)
	assert.Equal(t, 0, res.SuccessCount)
	assert.Equal(t, 2, res.Committed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "3", res.Failures[0].Record.ID)
}

func TestSelectVectorIgnoresUnlistedSlots(t *testing.T) {
	records := []Record{
		{ID: "1", Vectors: map[string][]float32{"title_vector": {1}}},
		{ID: "2", Vectors: map[string][]float32{"legacy": {2}}},
	}
	src := SelectVector(NewSliceSource(records), VectorSelection{Priority: []string{"title_vector"}})

	res := Transfer(context.Background(), src, Config{MaxBatchSize: 10, ErrorThreshold: 10}, newRecordingSink())

	assert.Equal(t, StatusExhausted, res.Status)
	assert.Equal(t, 1, res.SuccessCount)
	require.Len(t, res.Failures, 1)
	assert.ErrorIs(t, res.Failures[0].Err, ErrVectorNotFound)
}

func TestSelectVectorReset(t *testing.T) {
	src := SelectVector(NewSliceSource(vectorRecords()), VectorSelection{})

	_, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "title_vector", src.Locked())

	src.Reset()
	assert.Empty(t, src.Locked())
	rec, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", rec.ID)
}

func TestRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		record  Record
		wantErr bool
	}{
		{name: "properties only", record: Record{Properties: map[string]any{"title": "Heat", "year": 1995, "rating": 8.3, "released": true, "note": nil}}},
		{name: "vectors only", record: Record{Vectors: map[string][]float32{"v": {1}}}},
		{name: "empty", record: Record{ID: "x"}, wantErr: true},
		{name: "non scalar property", record: Record{Properties: map[string]any{"tags": map[string]string{}}}, wantErr: true},
		{name: "empty vector", record: Record{Vectors: map[string][]float32{"v": {}}}, wantErr: true},
		{name: "empty property name", record: Record{Properties: map[string]any{"": "x"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if tt.wantErr {
				var vErr *ValidationError
				assert.ErrorAs(t, err, &vErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.ErrorIs(t, Config{MaxBatchSize: 1, ErrorThreshold: -1}.Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, Config{MaxBatchSize: 1, BatchesPerSecond: -2}.Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, Config{MaxBatchSize: 1, MaxInFlight: -1}.Validate(), ErrInvalidConfig)

	cfg := Config{MaxBatchSize: 5}.withDefaults()
	assert.Equal(t, DefaultSubmitTimeout, cfg.SubmitTimeout)
	assert.Equal(t, 1, cfg.MaxInFlight)
}
