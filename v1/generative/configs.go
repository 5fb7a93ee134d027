package generative

import (
	"fmt"
	"time"
)

// Config holds the settings of an OpenAI compatible /chat/completions endpoint.
type Config struct {
	Endpoint string `yaml:"endpoint" env:"GENERATIVE_ENDPOINT"`
	APIKey   string `yaml:"api_key" env:"GENERATIVE_API_KEY"`
	Model    string `yaml:"model" env:"GENERATIVE_MODEL"`

	// SystemPrompt is prepended to every conversation when set.
	SystemPrompt string `yaml:"system_prompt" env:"GENERATIVE_SYSTEM_PROMPT"`

	Temperature float64 `yaml:"temperature" env:"GENERATIVE_TEMPERATURE"`
	MaxTokens   int     `yaml:"max_tokens" env:"GENERATIVE_MAX_TOKENS"`

	// Concurrency caps parallel requests issued by CompleteAll.
	Concurrency int `yaml:"concurrency" env:"GENERATIVE_CONCURRENCY"`

	HTTPTimeout time.Duration `yaml:"http_timeout" env:"GENERATIVE_HTTP_TIMEOUT"`
	MaxRetries  uint          `yaml:"max_retries" env:"GENERATIVE_MAX_RETRIES"`
}

// DefaultConfig targets OpenAI's gpt-4o-mini.
func DefaultConfig() Config {
	return Config{
		Endpoint:    "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		Concurrency: 4,
		HTTPTimeout: 60 * time.Second,
		MaxRetries:  3,
	}
}

// Validate checks the required settings.
func (c Config) Validate() error {
	switch {
	case c.Endpoint == "":
		return fmt.Errorf("%w: endpoint is required", ErrInvalidConfig)
	case c.APIKey == "":
		return fmt.Errorf("%w: api key is required", ErrInvalidConfig)
	case c.Model == "":
		return fmt.Errorf("%w: model is required", ErrInvalidConfig)
	case c.Concurrency < 0:
		return fmt.Errorf("%w: concurrency must not be negative", ErrInvalidConfig)
	}
	return nil
}
