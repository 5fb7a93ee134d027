package embedding

import (
	"fmt"
	"time"
)

// Config holds the settings of an OpenAI compatible /embeddings endpoint.
type Config struct {
	// Endpoint is the API base URL, e.g. "https://api.openai.com/v1".
	Endpoint string `yaml:"endpoint" env:"EMBEDDING_ENDPOINT"`

	// APIKey is sent as a bearer token.
	APIKey string `yaml:"api_key" env:"OPENAI_APIKEY"`

	// Model is the embedding model name.
	Model string `yaml:"model" env:"EMBEDDING_MODEL"`

	// Dimensions requests shortened embeddings from models that support it. Zero keeps
	// the model default.
	Dimensions int `yaml:"dimensions" env:"EMBEDDING_DIMENSIONS"`

	// BatchSize caps the number of texts per request.
	BatchSize int `yaml:"batch_size" env:"EMBEDDING_BATCH_SIZE"`

	// HTTPTimeout bounds a single HTTP request.
	HTTPTimeout time.Duration `yaml:"http_timeout" env:"EMBEDDING_HTTP_TIMEOUT"`

	// MaxRetries is the number of attempts for rate limited or failed requests.
	MaxRetries uint `yaml:"max_retries" env:"EMBEDDING_MAX_RETRIES"`
}

// DefaultConfig targets OpenAI's text-embedding-3-small.
func DefaultConfig() Config {
	return Config{
		Endpoint:    "https://api.openai.com/v1",
		Model:       "text-embedding-3-small",
		BatchSize:   64,
		HTTPTimeout: 30 * time.Second,
		MaxRetries:  3,
	}
}

// Validate checks the required settings.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", ErrInvalidConfig)
	}
	if c.APIKey == "" {
		return fmt.Errorf("%w: api key is required", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidConfig)
	}
	if c.BatchSize < 0 || c.Dimensions < 0 {
		return fmt.Errorf("%w: batch size and dimensions must not be negative", ErrInvalidConfig)
	}
	return nil
}
