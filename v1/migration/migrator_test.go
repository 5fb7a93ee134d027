package migration

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Aleph-Alpha/vecmigrate/v1/rabbit"
	"github.com/Aleph-Alpha/vecmigrate/v1/transfer"
	"github.com/Aleph-Alpha/vecmigrate/v1/vectordb"
	"github.com/Aleph-Alpha/vecmigrate/v1/watermark"
)

type fakeArchiver struct {
	results []*transfer.Result
}

func (a *fakeArchiver) ArchiveFailures(_ context.Context, res *transfer.Result) (string, error) {
	a.results = append(a.results, res)
	return "failures/" + res.RunID + ".jsonl.zst", nil
}

type fakeReporter struct {
	mu      sync.Mutex
	reports []rabbit.Report
}

func (r *fakeReporter) Publish(_ context.Context, report rabbit.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}

func newMarks(t *testing.T) watermark.Store {
	t.Helper()
	s, err := watermark.NewSQLiteStore(watermark.Config{Driver: watermark.DriverSQLite, SQLitePath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sourceRecords() []transfer.Record {
	return []transfer.Record{
		{ID: "1", Properties: map[string]any{"title": "The Godfather"}, Vectors: map[string][]float32{"title_vector": {0.1, 0.2}}},
		{ID: "2", Properties: map[string]any{"title": "The Dark Knight"}, Vectors: map[string][]float32{"title_vector": {float32(math.Pi), -1}}},
		{ID: "3", Properties: map[string]any{"title": "A Christmas Carol"}, Vectors: map[string][]float32{"title_vector": {1e-7, 0}}},
	}
}

func acceptAll(_ context.Context, _ string, records []transfer.Record) ([]error, error) {
	return make([]error, len(records)), nil
}

func TestBootstrapCreatesAndSeeds(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := vectordb.NewMockService(ctrl)
	cfg := DefaultConfig()

	db.EXPECT().IsReady(gomock.Any()).Return(true)
	db.EXPECT().CollectionExists(gomock.Any(), "OriginalCollection").Return(false, nil)
	db.EXPECT().CreateCollection(gomock.Any(), cfg.Source).Return(nil)
	db.EXPECT().CollectionExists(gomock.Any(), "NewCollection").Return(false, nil)
	db.EXPECT().CreateCollection(gomock.Any(), cfg.Target).Return(nil)

	var seeded []transfer.Record
	db.EXPECT().SubmitBatch(gomock.Any(), "OriginalCollection", gomock.Any()).
		DoAndReturn(func(ctx context.Context, coll string, records []transfer.Record) ([]error, error) {
			seeded = append(seeded, records...)
			return acceptAll(ctx, coll, records)
		})

	reporter := &fakeReporter{}
	m, err := NewMigrator(cfg, db, nil, WithReporter(reporter))
	require.NoError(t, err)

	out, err := m.Bootstrap(context.Background())
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, transfer.StatusExhausted, out.Result.Status)
	assert.Equal(t, 5, out.Result.SuccessCount)
	require.Len(t, seeded, 5)
	assert.Equal(t, "The Shawshank Redemption", seeded[0].Properties["title"])

	require.Len(t, reporter.reports, 1)
	assert.Equal(t, "seed", reporter.reports[0].Name)
	assert.Equal(t, "OriginalCollection", reporter.reports[0].Target)
}

func TestBootstrapExistingCollections(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := vectordb.NewMockService(ctrl)

	db.EXPECT().IsReady(gomock.Any()).Return(true)
	db.EXPECT().CollectionExists(gomock.Any(), "OriginalCollection").Return(true, nil)
	db.EXPECT().CollectionExists(gomock.Any(), "NewCollection").Return(false, nil)
	db.EXPECT().CreateCollection(gomock.Any(), gomock.Any()).Return(vectordb.ErrCollectionExists)

	m, err := NewMigrator(DefaultConfig(), db, nil)
	require.NoError(t, err)

	out, err := m.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestBootstrapNotReady(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := vectordb.NewMockService(ctrl)
	db.EXPECT().IsReady(gomock.Any()).Return(false)

	m, err := NewMigrator(DefaultConfig(), db, nil)
	require.NoError(t, err)

	_, err = m.Bootstrap(context.Background())
	assert.ErrorIs(t, err, vectordb.ErrNotReady)
}

func expectCollections(db *vectordb.MockService) {
	db.EXPECT().IsReady(gomock.Any()).Return(true)
	db.EXPECT().CollectionExists(gomock.Any(), "OriginalCollection").Return(true, nil)
	db.EXPECT().CollectionExists(gomock.Any(), "NewCollection").Return(true, nil)
}

func TestMigrateCopiesAndMarksCompleted(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := vectordb.NewMockService(ctrl)
	marks := newMarks(t)
	ctx := context.Background()

	expectCollections(db)
	db.EXPECT().Iterate(gomock.Any(), "OriginalCollection", true).Return(transfer.NewSliceSource(sourceRecords()))

	stored := make(map[string]transfer.Record)
	db.EXPECT().SubmitBatch(gomock.Any(), "NewCollection", gomock.Any()).
		DoAndReturn(func(ctx context.Context, coll string, records []transfer.Record) ([]error, error) {
			for _, rec := range records {
				stored[rec.ID] = rec
			}
			return acceptAll(ctx, coll, records)
		})

	m, err := NewMigrator(DefaultConfig(), db, marks)
	require.NoError(t, err)

	out, err := m.Migrate(ctx)
	require.NoError(t, err)
	assert.False(t, out.Skipped)
	assert.Equal(t, 3, out.Result.SuccessCount)
	assert.Equal(t, watermark.StateCompleted, out.Mark.State)
	assert.Equal(t, out.Result.RunID, out.Mark.RunID)
	assert.Equal(t, 3, out.Mark.Processed)

	for _, rec := range sourceRecords() {
		got, ok := stored[rec.ID]
		require.True(t, ok, rec.ID)
		assert.Equal(t, rec.Properties, got.Properties)
		want := rec.Vectors["title_vector"]
		have := got.Vectors["title_vector"]
		require.Len(t, have, len(want))
		for i := range want {
			assert.Equal(t, math.Float32bits(want[i]), math.Float32bits(have[i]))
		}
	}

	// A second run finds the completed marker and does not touch the source.
	expectCollections(db)
	again, err := m.Migrate(ctx)
	require.NoError(t, err)
	assert.True(t, again.Skipped)
	assert.Nil(t, again.Result)
	assert.Equal(t, out.Mark.RunID, again.Mark.RunID)
}

func TestMigrateFailureMarksFailedAndRestarts(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := vectordb.NewMockService(ctrl)
	marks := newMarks(t)
	archiver := &fakeArchiver{}
	reporter := &fakeReporter{}
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.Migrate.ErrorThreshold = 0

	m, err := NewMigrator(cfg, db, marks, WithArchiver(archiver), WithReporter(reporter))
	require.NoError(t, err)

	expectCollections(db)
	db.EXPECT().Iterate(gomock.Any(), "OriginalCollection", true).Return(transfer.NewSliceSource(sourceRecords()))
	db.EXPECT().SubmitBatch(gomock.Any(), "NewCollection", gomock.Any()).Return(nil, errors.New("write rejected"))

	out, err := m.Migrate(ctx)
	require.Error(t, err)
	assert.True(t, IsRunFailed(err))
	require.NotNil(t, out)
	assert.Equal(t, transfer.StatusThresholdTripped, out.Result.Status)
	assert.Equal(t, watermark.StateFailed, out.Mark.State)
	assert.NotEmpty(t, out.Mark.Reason)
	assert.Equal(t, "failures/"+out.Result.RunID+".jsonl.zst", out.ArchiveKey)
	require.Len(t, archiver.results, 1)

	require.Len(t, reporter.reports, 1)
	assert.Equal(t, string(transfer.StatusThresholdTripped), reporter.reports[0].Status)
	assert.Equal(t, out.ArchiveKey, reporter.reports[0].ArchiveKey)
	assert.Equal(t, "OriginalCollection", reporter.reports[0].Source)

	// The failed marker does not block a restart from the beginning.
	expectCollections(db)
	db.EXPECT().Iterate(gomock.Any(), "OriginalCollection", true).Return(transfer.NewSliceSource(sourceRecords()))
	db.EXPECT().SubmitBatch(gomock.Any(), "NewCollection", gomock.Any()).DoAndReturn(acceptAll)

	retry, err := m.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, watermark.StateCompleted, retry.Mark.State)
	assert.NotEqual(t, out.Result.RunID, retry.Result.RunID)
	assert.Len(t, archiver.results, 1)
}

func TestMigrateWithoutStoredRecordsIsNotCompleted(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := vectordb.NewMockService(ctrl)
	marks := newMarks(t)
	ctx := context.Background()

	// No record carries the configured title_vector slot.
	records := sourceRecords()
	for i := range records {
		records[i].Vectors = map[string][]float32{"body_vector": {0.5}}
	}

	m, err := NewMigrator(DefaultConfig(), db, marks)
	require.NoError(t, err)

	expectCollections(db)
	db.EXPECT().Iterate(gomock.Any(), "OriginalCollection", true).Return(transfer.NewSliceSource(records))

	out, err := m.Migrate(ctx)
	assert.True(t, IsRunFailed(err))
	require.NotNil(t, out)
	assert.Equal(t, transfer.StatusExhausted, out.Result.Status)
	assert.Zero(t, out.Result.SuccessCount)
	require.Len(t, out.Result.Failures, 3)
	assert.ErrorIs(t, out.Result.Failures[0].Err, transfer.ErrVectorNotFound)
	assert.Equal(t, watermark.StateFailed, out.Mark.State)

	// The pair is not skipped on the next run.
	expectCollections(db)
	db.EXPECT().Iterate(gomock.Any(), "OriginalCollection", true).Return(transfer.NewSliceSource(sourceRecords()))
	db.EXPECT().SubmitBatch(gomock.Any(), "NewCollection", gomock.Any()).DoAndReturn(acceptAll)

	again, err := m.Migrate(ctx)
	require.NoError(t, err)
	assert.False(t, again.Skipped)
	assert.Equal(t, watermark.StateCompleted, again.Mark.State)
}

func TestMigrateThresholdOnSelectionFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := vectordb.NewMockService(ctrl)

	records := sourceRecords()
	for i := range records {
		records[i].Vectors = map[string][]float32{"body_vector": {0.5}}
	}

	cfg := DefaultConfig()
	cfg.Migrate.ErrorThreshold = 1
	m, err := NewMigrator(cfg, db, newMarks(t))
	require.NoError(t, err)

	expectCollections(db)
	db.EXPECT().Iterate(gomock.Any(), "OriginalCollection", true).Return(transfer.NewSliceSource(records))

	out, err := m.Migrate(context.Background())
	assert.True(t, IsRunFailed(err))
	assert.Equal(t, transfer.StatusThresholdTripped, out.Result.Status)
	assert.Equal(t, 2, out.Result.Pulled)
	assert.Equal(t, watermark.StateFailed, out.Mark.State)
}

func TestMigrateMissingSource(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := vectordb.NewMockService(ctrl)

	db.EXPECT().IsReady(gomock.Any()).Return(true)
	db.EXPECT().CollectionExists(gomock.Any(), "OriginalCollection").Return(false, nil)

	m, err := NewMigrator(DefaultConfig(), db, newMarks(t))
	require.NoError(t, err)

	_, err = m.Migrate(context.Background())
	assert.True(t, vectordb.IsCollectionNotFound(err))
}

func TestMigrateRequiresMarks(t *testing.T) {
	ctrl := gomock.NewController(t)
	m, err := NewMigrator(DefaultConfig(), vectordb.NewMockService(ctrl), nil)
	require.NoError(t, err)

	_, err = m.Migrate(context.Background())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestDemoSkipsGenerationWithoutGenerator(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := vectordb.NewMockService(ctrl)

	db.EXPECT().Query(gomock.Any(), vectordb.QueryRequest{
		Collection: "NewCollection", Mode: vectordb.ModeSimilarity, Text: "Christmas", Limit: 2,
	}).Return([]vectordb.QueryResult{{ID: "5", Properties: map[string]any{"title": "A Christmas Carol"}, Score: 0.9}}, nil)
	db.EXPECT().Query(gomock.Any(), vectordb.QueryRequest{
		Collection: "NewCollection", Mode: vectordb.ModeHybrid, Text: "Family friendly", Limit: 2,
	}).Return([]vectordb.QueryResult{{ID: "4"}}, nil)
	db.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(nil, vectordb.ErrNoGenerator)

	m, err := NewMigrator(DefaultConfig(), db, nil)
	require.NoError(t, err)

	res, err := m.Demo(context.Background(), "NewCollection")
	require.NoError(t, err)
	require.Len(t, res.Similarity, 1)
	assert.Equal(t, "A Christmas Carol", res.Similarity[0].Properties["title"])
	assert.Len(t, res.Hybrid, 1)
	assert.Empty(t, res.Generated)
}

func TestDemoPropagatesQueryErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := vectordb.NewMockService(ctrl)
	db.EXPECT().Query(gomock.Any(), gomock.Any()).Return(nil, vectordb.ErrNoVectorizer)

	m, err := NewMigrator(DefaultConfig(), db, nil)
	require.NoError(t, err)

	_, err = m.Demo(context.Background(), "NewCollection")
	assert.ErrorIs(t, err, vectordb.ErrNoVectorizer)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.SeedRecords(), 5)

	same := DefaultConfig()
	same.Target.Name = same.Source.Name
	assert.ErrorIs(t, same.Validate(), ErrInvalidConfig)

	badLoad := DefaultConfig()
	badLoad.Load.MaxBatchSize = 0
	assert.ErrorIs(t, badLoad.Validate(), transfer.ErrInvalidConfig)

	badSchema := DefaultConfig()
	badSchema.Source.Vectors[0].Size = 0
	assert.ErrorIs(t, badSchema.Validate(), vectordb.ErrInvalidSchema)

	_, err := NewMigrator(DefaultConfig(), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestExportStreamsCollectionIntoSink(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := vectordb.NewMockService(ctrl)
	db.EXPECT().Iterate(gomock.Any(), "NewCollection", true).Return(transfer.NewSliceSource(sourceRecords()))

	var exported []string
	sink := transfer.SinkFunc(func(_ context.Context, batch transfer.Batch) ([]error, error) {
		for _, rec := range batch {
			exported = append(exported, rec.ID)
		}
		return make([]error, len(batch)), nil
	})

	reporter := &fakeReporter{}
	m, err := NewMigrator(DefaultConfig(), db, nil, WithReporter(reporter))
	require.NoError(t, err)

	out := m.Export(context.Background(), "NewCollection", sink)
	assert.Equal(t, transfer.StatusExhausted, out.Result.Status)
	assert.Equal(t, []string{"1", "2", "3"}, exported)
	require.Len(t, reporter.reports, 1)
	assert.Equal(t, "export", reporter.reports[0].Name)
	assert.Equal(t, "NewCollection", reporter.reports[0].Source)
}
