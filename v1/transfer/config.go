package transfer

import (
	"fmt"
	"time"
)

const (
	DefaultMaxBatchSize   = 100
	DefaultErrorThreshold = 10
	DefaultSubmitTimeout  = 30 * time.Second
)

// Config controls a single transfer run. It is read once when the run starts.
type Config struct {
	// MaxBatchSize is the upper bound on records per submitted batch. Must be > 0.
	MaxBatchSize int `yaml:"max_batch_size" env:"TRANSFER_MAX_BATCH_SIZE"`

	// ErrorThreshold is the number of failures tolerated. The run stops once
	// cumulative failures exceed it. Must be >= 0.
	ErrorThreshold int `yaml:"error_threshold" env:"TRANSFER_ERROR_THRESHOLD"`

	// SubmitTimeout bounds every sink submission. Zero means DefaultSubmitTimeout.
	SubmitTimeout time.Duration `yaml:"submit_timeout" env:"TRANSFER_SUBMIT_TIMEOUT"`

	// MaxInFlight is the number of batches that may be submitted concurrently.
	// Zero means 1 (strictly sequential).
	MaxInFlight int `yaml:"max_in_flight" env:"TRANSFER_MAX_IN_FLIGHT"`

	// BatchesPerSecond throttles submissions. Zero disables throttling.
	BatchesPerSecond float64 `yaml:"batches_per_second" env:"TRANSFER_BATCHES_PER_SECOND"`

	// AbandonOnCancel stops waiting for in-flight submissions when the run is cancelled.
	AbandonOnCancel bool `yaml:"abandon_on_cancel" env:"TRANSFER_ABANDON_ON_CANCEL"`
}

// DefaultConfig returns the batch size and threshold used by the bulk loader.
func DefaultConfig() Config {
	return Config{
		MaxBatchSize:   DefaultMaxBatchSize,
		ErrorThreshold: DefaultErrorThreshold,
		SubmitTimeout:  DefaultSubmitTimeout,
		MaxInFlight:    1,
	}
}

// Validate reports whether the config can drive a run.
func (c Config) Validate() error {
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("%w: max batch size must be positive, got %d", ErrInvalidConfig, c.MaxBatchSize)
	}
	if c.ErrorThreshold < 0 {
		return fmt.Errorf("%w: error threshold must not be negative, got %d", ErrInvalidConfig, c.ErrorThreshold)
	}
	if c.SubmitTimeout < 0 {
		return fmt.Errorf("%w: submit timeout must not be negative", ErrInvalidConfig)
	}
	if c.MaxInFlight < 0 {
		return fmt.Errorf("%w: max in-flight must not be negative", ErrInvalidConfig)
	}
	if c.BatchesPerSecond < 0 {
		return fmt.Errorf("%w: batches per second must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.SubmitTimeout == 0 {
		c.SubmitTimeout = DefaultSubmitTimeout
	}
	if c.MaxInFlight == 0 {
		c.MaxInFlight = 1
	}
	return c
}
