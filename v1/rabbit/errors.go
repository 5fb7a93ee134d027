package rabbit

import (
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	// ErrConnectionFailed is returned when connection to RabbitMQ cannot be established
	ErrConnectionFailed = errors.New("connection failed")

	// ErrChannelClosed is returned when the publishing channel is closed
	ErrChannelClosed = errors.New("channel closed")

	// ErrPublishNacked is returned when the broker refused a published message
	ErrPublishNacked = errors.New("publish not acknowledged by broker")

	// ErrExchangeNotFound is returned when the exchange doesn't exist
	ErrExchangeNotFound = errors.New("exchange not found")

	// ErrAccessDenied is returned when access is denied to a resource
	ErrAccessDenied = errors.New("access denied")

	// ErrPreconditionFailed is returned when a declaration conflicts with an existing one
	ErrPreconditionFailed = errors.New("precondition failed")
)

// TranslateError maps AMQP protocol errors onto the package sentinels, keeping the
// original error in the chain.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, amqp.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrChannelClosed, err)
	}

	var amqpErr *amqp.Error
	if !errors.As(err, &amqpErr) {
		return err
	}
	switch amqpErr.Code {
	case amqp.NotFound:
		return fmt.Errorf("%w: %w", ErrExchangeNotFound, err)
	case amqp.AccessRefused:
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	case amqp.PreconditionFailed:
		return fmt.Errorf("%w: %w", ErrPreconditionFailed, err)
	case amqp.ChannelError:
		return fmt.Errorf("%w: %w", ErrChannelClosed, err)
	}
	return err
}

// IsRetryableError reports whether publishing again after a reconnect may succeed.
func IsRetryableError(err error) bool {
	if errors.Is(err, ErrChannelClosed) || errors.Is(err, ErrConnectionFailed) {
		return true
	}
	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) {
		return amqpErr.Recover
	}
	return false
}
