package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Aleph-Alpha/vecmigrate/v1/observability"
	"github.com/Aleph-Alpha/vecmigrate/v1/transfer"
)

// messageReader is the part of *kafka.Reader the source needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RecordSource reads JSON records from a topic. It implements transfer.Source and
// transfer.Acknowledger: offsets are committed only once the engine acknowledged the
// records, so an interrupted run resumes after the last merged batch.
//
// The source ends with io.EOF once no message arrived for Config.IdleTimeout.
type RecordSource struct {
	reader   messageReader
	topic    string
	group    bool
	idle     time.Duration
	logger   Logger
	observer observability.Observer

	mu      sync.Mutex
	pending []kafka.Message
}

var (
	_ transfer.Source       = (*RecordSource)(nil)
	_ transfer.Acknowledger = (*RecordSource)(nil)
)

// NewRecordSource connects a reader for cfg.Topic.
//
// Example:
//
//	src, err := kafka.NewRecordSource(kafka.Config{
//	    Brokers: []string{"localhost:9092"},
//	    Topic:   "movies",
//	    GroupID: "vecmigrate-loader",
//	}, log)
//	if err != nil {
//	    return err
//	}
//	defer src.Close()
//	res := engine.Run(ctx, src, sink)
func NewRecordSource(cfg Config, logger Logger) (*RecordSource, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("%w: brokers and topic are required", ErrInvalidConfig)
	}
	cfg = cfg.withDefaults()
	dialer, err := newDialer(cfg)
	if err != nil {
		return nil, err
	}
	return newRecordSource(createReader(cfg, dialer, logger), cfg, logger), nil
}

func newRecordSource(reader messageReader, cfg Config, logger Logger) *RecordSource {
	return &RecordSource{
		reader: reader,
		topic:  cfg.Topic,
		group:  cfg.GroupID != "",
		idle:   cfg.IdleTimeout,
		logger: logger,
	}
}

// WithObserver attaches an observer notified about fetches and commits.
func (s *RecordSource) WithObserver(observer observability.Observer) *RecordSource {
	s.observer = observer
	return s
}

// Next fetches the next message and decodes it. A malformed message is reported as a
// *transfer.RecordError and still counts towards acknowledgement.
func (s *RecordSource) Next(ctx context.Context) (transfer.Record, error) {
	fetchCtx := ctx
	if s.idle > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.idle)
		defer cancel()
	}

	start := time.Now()
	msg, err := s.reader.FetchMessage(fetchCtx)
	if err != nil {
		if ctx.Err() != nil {
			return transfer.Record{}, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
			s.logInfo(ctx, "Kafka topic idle, ending source", map[string]interface{}{
				"topic":        s.topic,
				"idle_timeout": s.idle.String(),
			})
			return transfer.Record{}, io.EOF
		}
		s.observe("fetch", time.Since(start), err, 0)
		return transfer.Record{}, fmt.Errorf("fetch from %s: %w", s.topic, err)
	}
	s.observe("fetch", time.Since(start), nil, int64(len(msg.Value)))

	s.mu.Lock()
	s.pending = append(s.pending, msg)
	s.mu.Unlock()

	rec, err := decodeRecord(msg)
	if err != nil {
		return transfer.Record{}, &transfer.RecordError{Record: rec, Err: err}
	}
	return rec, nil
}

// Ack commits the offsets of the next n fetched messages.
func (s *RecordSource) Ack(ctx context.Context, n int) error {
	s.mu.Lock()
	if n > len(s.pending) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d > %d", ErrAckOverflow, n, len(s.pending))
	}
	msgs := s.pending[:n:n]
	s.pending = s.pending[n:]
	s.mu.Unlock()

	if !s.group || n == 0 {
		return nil
	}

	start := time.Now()
	err := s.reader.CommitMessages(ctx, msgs...)
	s.observe("commit", time.Since(start), err, int64(n))
	if err != nil {
		return fmt.Errorf("commit %d offsets on %s: %w", n, s.topic, err)
	}
	return nil
}

// Pending returns the number of fetched messages not yet acknowledged.
func (s *RecordSource) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close closes the reader. Unacknowledged messages are redelivered to the group.
func (s *RecordSource) Close() error {
	if pending := s.Pending(); pending > 0 {
		s.logWarn(context.Background(), "Closing Kafka source with unacknowledged messages", map[string]interface{}{
			"topic":   s.topic,
			"pending": pending,
		})
	}
	return s.reader.Close()
}

func (s *RecordSource) observe(operation string, d time.Duration, err error, size int64) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveOperation(observability.OperationContext{
		Component: "kafka",
		Operation: operation,
		Resource:  s.topic,
		Duration:  d,
		Error:     err,
		Size:      size,
	})
}

func (s *RecordSource) logInfo(ctx context.Context, msg string, fields map[string]interface{}) {
	if s.logger != nil {
		s.logger.InfoWithContext(ctx, msg, nil, fields)
	}
}

func (s *RecordSource) logWarn(ctx context.Context, msg string, fields map[string]interface{}) {
	if s.logger != nil {
		s.logger.WarnWithContext(ctx, msg, nil, fields)
	}
}
