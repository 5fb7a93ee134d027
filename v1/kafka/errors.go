package kafka

import "errors"

var (
	// ErrMalformedMessage marks a message whose body is not a JSON record.
	ErrMalformedMessage = errors.New("kafka: malformed record message")
	// ErrAckOverflow is returned when Ack covers more records than were fetched.
	ErrAckOverflow = errors.New("kafka: acknowledged more records than fetched")
	// ErrInvalidConfig is returned when brokers or topic are missing.
	ErrInvalidConfig = errors.New("kafka: invalid config")
)
