package qdrant

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Aleph-Alpha/vecmigrate/v1/transfer"
	"github.com/Aleph-Alpha/vecmigrate/v1/vectordb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

// QdrantContainer represents a Qdrant container for testing
type QdrantContainer struct {
	testcontainers.Container
	Host string
	Port int
}

// setupQdrantContainer starts a Qdrant server with server-side BM25 inference.
func setupQdrantContainer(ctx context.Context) (*QdrantContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        "qdrant/qdrant:v1.16.0",
		ExposedPorts: []string{"6334/tcp"},
		WaitingFor:   wait.ForListeningPort("6334/tcp").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start qdrant container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get host: %w", err)
	}
	mappedPort, err := container.MappedPort(ctx, "6334")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}

	if err := waitForQdrantReady(host, mappedPort.Port(), 30*time.Second); err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("qdrant container not ready: %w", err)
	}

	port, err := strconv.Atoi(mappedPort.Port())
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	return &QdrantContainer{Container: container, Host: host, Port: port}, nil
}

// waitForQdrantReady attempts to connect to Qdrant until it's ready or times out
func waitForQdrantReady(host, port string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, port), 2*time.Second)
		if err == nil {
			_ = conn.Close()
			time.Sleep(2 * time.Second)
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("timed out waiting for Qdrant to be ready after %s", timeout)
}

// keywordVectorizer embeds texts onto three axes so similarity results are predictable.
type keywordVectorizer struct{}

func (keywordVectorizer) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		v := []float32{0.01, 0.01, 0.01}
		if strings.Contains(lower, "toy") || strings.Contains(lower, "pixar") {
			v[0] = 1
		}
		if strings.Contains(lower, "heat") || strings.Contains(lower, "casino") || strings.Contains(lower, "crime") {
			v[1] = 1
		}
		if strings.Contains(lower, "jumanji") || strings.Contains(lower, "sabrina") {
			v[2] = 1
		}
		out[i] = v
	}
	return out, nil
}

type echoGenerator struct{}

func (echoGenerator) CompleteAll(_ context.Context, prompts []string) ([]string, error) {
	out := make([]string, len(prompts))
	for i, p := range prompts {
		out[i] = "answer: " + p
	}
	return out, nil
}

func movies() []transfer.Record {
	titles := []string{"Toy Story", "Jumanji", "Grumpier Old Men", "Heat", "Casino"}
	records := make([]transfer.Record, len(titles))
	for i, title := range titles {
		records[i] = transfer.Record{
			ID:         strconv.Itoa(i + 1),
			Properties: map[string]any{"title": title, "year": 1995},
		}
	}
	return records
}

func TestQdrantAdapterIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	containerInstance, err := setupQdrantContainer(ctx)
	require.NoError(t, err)
	defer func() {
		if err := containerInstance.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	}()

	var adapter *Adapter
	var service vectordb.Service
	app := fxtest.New(t,
		fx.Provide(
			func() *Config {
				cfg := FromEndpoint(containerInstance.Host).
					WithCompatibilityCheck(false).
					WithTimeout(10 * time.Second).
					WithScrollPageSize(2)
				cfg.Port = containerInstance.Port
				return cfg
			},
			func() Vectorizer { return keywordVectorizer{} },
			func() Generator { return echoGenerator{} },
		),
		FXModule,
		fx.Populate(&adapter, &service),
	)
	app.RequireStart()
	defer app.RequireStop()

	require.True(t, service.IsReady(ctx))

	schema := vectordb.CollectionSchema{
		Name:    "Movies",
		Vectors: []vectordb.NamedVector{{Name: "title_vector", SourceProperties: []string{"title"}, Size: 3}},
		Hybrid:  true,
	}

	t.Run("CreateCollection", func(t *testing.T) {
		require.NoError(t, service.CreateCollection(ctx, schema))

		err := service.CreateCollection(ctx, schema)
		assert.True(t, vectordb.IsCollectionExists(err))

		names, err := service.ListCollections(ctx)
		require.NoError(t, err)
		assert.Contains(t, names, "Movies")
	})

	t.Run("TransferSeedRecords", func(t *testing.T) {
		res := transfer.Transfer(ctx, transfer.NewSliceSource(movies()),
			transfer.Config{MaxBatchSize: 100, ErrorThreshold: 10}, vectordb.Sink(service, "Movies"))
		require.Equal(t, transfer.StatusExhausted, res.Status, res.Err)
		assert.Equal(t, 5, res.SuccessCount)
		assert.Empty(t, res.Failures)

		n, err := service.Count(ctx, "Movies")
		require.NoError(t, err)
		assert.Equal(t, uint64(5), n)
	})

	t.Run("SubmitBatchPerRecordOutcomes", func(t *testing.T) {
		outcomes, err := service.SubmitBatch(ctx, "Movies", []transfer.Record{
			{ID: "6", Properties: map[string]any{"title": "Sabrina"}},
			{ID: "not-a-point-id", Properties: map[string]any{"title": "Tom and Huck"}},
			{ID: "6", Properties: map[string]any{"title": "Sabrina again"}},
		})
		require.NoError(t, err)
		require.Len(t, outcomes, 3)
		assert.NoError(t, outcomes[0])
		assert.ErrorIs(t, outcomes[1], ErrInvalidPointID)
		assert.ErrorIs(t, outcomes[2], ErrDuplicateID)
	})

	t.Run("SimilarityQuery", func(t *testing.T) {
		results, err := service.Query(ctx, vectordb.QueryRequest{
			Collection: "Movies", Mode: vectordb.ModeSimilarity, Text: "pixar toys", Limit: 1,
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "Toy Story", results[0].Properties["title"])
	})

	t.Run("HybridQuery", func(t *testing.T) {
		results, err := service.Query(ctx, vectordb.QueryRequest{
			Collection: "Movies", Mode: vectordb.ModeHybrid, Text: "casino", Limit: 2,
			Params: map[string]any{vectordb.ParamFilter: map[string]any{"year": 1995}},
		})
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, "Casino", results[0].Properties["title"])
	})

	t.Run("Generate", func(t *testing.T) {
		results, err := service.Generate(ctx, vectordb.GenerateRequest{
			Collection: "Movies", Text: "heat", PromptTemplate: "Categorize genre: {title}", Limit: 1,
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "answer: Categorize genre: Heat", results[0].Generated)
	})

	t.Run("MigrateSelectedVector", func(t *testing.T) {
		target := vectordb.CollectionSchema{Name: "MoviesCopy", Vectors: []vectordb.NamedVector{{Name: "vector", Size: 3}}}
		require.NoError(t, service.CreateCollection(ctx, target))

		src := transfer.SelectVector(service.Iterate(ctx, "Movies", true), transfer.VectorSelection{
			Priority: []string{"title_vector"},
			Target:   "vector",
		})
		res := transfer.Transfer(ctx, src, transfer.Config{MaxBatchSize: 2, ErrorThreshold: 0}, vectordb.Sink(service, "MoviesCopy"))
		require.Equal(t, transfer.StatusExhausted, res.Status, res.Err)
		assert.Equal(t, 6, res.SuccessCount)

		n, err := service.Count(ctx, "MoviesCopy")
		require.NoError(t, err)
		assert.Equal(t, uint64(6), n)
	})

	t.Run("CursorReset", func(t *testing.T) {
		cursor := adapter.Cursor("Movies", false)
		first, err := cursor.Next(ctx)
		require.NoError(t, err)
		assert.Nil(t, first.Vectors)

		cursor.Reset()
		again, err := cursor.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)

		seen := 1
		for {
			_, err := cursor.Next(ctx)
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			seen++
		}
		assert.Equal(t, 6, seen)
	})

	t.Run("DeleteCollection", func(t *testing.T) {
		require.NoError(t, service.DeleteCollection(ctx, "MoviesCopy"))
		exists, err := service.CollectionExists(ctx, "MoviesCopy")
		require.NoError(t, err)
		assert.False(t, exists)

		_, err = service.Count(ctx, "MoviesCopy")
		assert.True(t, vectordb.IsCollectionNotFound(err))
	})
}
