package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate clears the provider keys so the host environment does not leak in.
func isolate(t *testing.T) string {
	t.Helper()
	for _, name := range []string{EnvOpenAIKey, EnvCohereKey, "GENERATIVE_API_KEY"} {
		t.Setenv(name, "")
	}
	return filepath.Join(t.TempDir(), "missing.env")
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "OriginalCollection", cfg.Migration.Source.Name)
	assert.Equal(t, "NewCollection", cfg.Migration.Target.Name)
	assert.Equal(t, 100, cfg.Migration.Load.MaxBatchSize)
	assert.Equal(t, 10, cfg.Migration.Load.ErrorThreshold)
	assert.False(t, cfg.VectorizerEnabled())
	assert.False(t, cfg.GeneratorEnabled())
}

func TestLoadWithoutFile(t *testing.T) {
	envFile := isolate(t)

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, Default().Qdrant, cfg.Qdrant)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	envFile := isolate(t)
	path := writeFile(t, "vecmigrate.yaml", `
qdrant:
  endpoint: qdrant.internal
  timeout: 12s
migration:
  migrate:
    max_batch_size: 50
    error_threshold: 0
  vector:
    priority: [title_vector, plot_vector]
    target: vector
archive:
  enabled: true
  connection:
    endpoint: minio.internal:9000
    bucket_name: failures
kafka:
  brokers: [kafka-1:9092]
`)

	cfg, err := Load(path, envFile)
	require.NoError(t, err)
	assert.Equal(t, "qdrant.internal", cfg.Qdrant.Endpoint)
	assert.Equal(t, 12*time.Second, cfg.Qdrant.Timeout)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	assert.Equal(t, 50, cfg.Migration.Migrate.MaxBatchSize)
	assert.Equal(t, 0, cfg.Migration.Migrate.ErrorThreshold)
	assert.Equal(t, 100, cfg.Migration.Load.MaxBatchSize)
	assert.Equal(t, []string{"title_vector", "plot_vector"}, cfg.Migration.Vector.Priority)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, "minio.internal:9000", cfg.Archive.Minio.Connection.Endpoint)
	assert.Equal(t, "failures", cfg.Archive.Minio.Prefix)
	assert.Equal(t, []string{"kafka-1:9092"}, cfg.Kafka.Brokers)
	assert.Len(t, cfg.Migration.Seed, 5)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	envFile := isolate(t)
	path := writeFile(t, "vecmigrate.yaml", "qdrant:\n  hostname: typo\n")

	_, err := Load(path, envFile)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadMissingFile(t *testing.T) {
	envFile := isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), envFile)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEnvOverrides(t *testing.T) {
	envFile := isolate(t)
	t.Setenv("QDRANT_PORT", "1")
	t.Setenv("VECMIGRATE_QDRANT_PORT", "7334")
	t.Setenv("QDRANT_TIMEOUT", "2s")
	t.Setenv("QDRANT_CHECK_COMPATIBILITY", "false")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("TRANSFER_MAX_BATCH_SIZE", "25")
	t.Setenv("SERVICE_NAME", "vecmigrate-test")
	t.Setenv("GENERATIVE_TEMPERATURE", "0.5")

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, 7334, cfg.Qdrant.Port)
	assert.Equal(t, 2*time.Second, cfg.Qdrant.Timeout)
	assert.False(t, cfg.Qdrant.CheckCompatibility)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 25, cfg.Migration.Load.MaxBatchSize)
	assert.Equal(t, 25, cfg.Migration.Migrate.MaxBatchSize)
	assert.Equal(t, "vecmigrate-test", cfg.Logger.ServiceName)
	assert.Equal(t, "vecmigrate-test", cfg.Metrics.ServiceName)
	assert.Equal(t, "vecmigrate-test", cfg.Tracer.ServiceName)
	assert.InDelta(t, 0.5, cfg.Generative.Temperature, 1e-9)
}

func TestEnvOverrideInvalidValue(t *testing.T) {
	envFile := isolate(t)
	t.Setenv("QDRANT_PORT", "not-a-port")

	_, err := Load("", envFile)
	assert.ErrorIs(t, err, ErrInvalidEnv)
}

func TestEnvFileIsLoaded(t *testing.T) {
	isolate(t)
	t.Cleanup(func() { _ = os.Unsetenv("VECMIGRATE_QDRANT_API_KEY") })
	envFile := writeFile(t, ".env", "VECMIGRATE_QDRANT_API_KEY=from-env-file\n")

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-env-file", cfg.Qdrant.ApiKey)
}

func TestProviderKeyFallback(t *testing.T) {
	envFile := isolate(t)
	t.Setenv(EnvCohereKey, "co-key")
	path := writeFile(t, "vecmigrate.yaml", `
generative:
  endpoint: https://api.cohere.ai/compatibility/v1
  model: command-r
`)

	cfg, err := Load(path, envFile)
	require.NoError(t, err)
	assert.Equal(t, "co-key", cfg.Generative.APIKey)
	assert.True(t, cfg.GeneratorEnabled())
	assert.Empty(t, cfg.Embedding.APIKey)
	assert.False(t, cfg.VectorizerEnabled())
}

func TestValidateEmbeddingDimensions(t *testing.T) {
	cfg := Default()
	cfg.Embedding.APIKey = "sk-test"
	require.NoError(t, cfg.Validate())

	cfg.Embedding.Dimensions = 1536
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestValidatePostgresWatermark(t *testing.T) {
	cfg := Default()
	cfg.Watermark.Driver = "postgres"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg.Postgres.Connection.Host = "db.internal"
	assert.NoError(t, cfg.Validate())
}
