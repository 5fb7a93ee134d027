package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Aleph-Alpha/vecmigrate/v1/observability"
	"github.com/Aleph-Alpha/vecmigrate/v1/transfer"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RecordSink publishes batches to a topic, keyed by record ID. It implements
// transfer.Sink, so a collection can be exported with a cursor as the source.
type RecordSink struct {
	writer   messageWriter
	topic    string
	observer observability.Observer
}

var _ transfer.Sink = (*RecordSink)(nil)

// NewRecordSink creates a writer for cfg.Topic.
func NewRecordSink(cfg Config, logger Logger) (*RecordSink, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("%w: brokers and topic are required", ErrInvalidConfig)
	}
	cfg = cfg.withDefaults()
	dialer, err := newDialer(cfg)
	if err != nil {
		return nil, err
	}
	return &RecordSink{writer: createWriter(cfg, dialer, logger), topic: cfg.Topic}, nil
}

// WithObserver attaches an observer notified about every published batch.
func (s *RecordSink) WithObserver(observer observability.Observer) *RecordSink {
	s.observer = observer
	return s
}

// SubmitBatch publishes the batch. Records that cannot be encoded fail individually;
// partial write failures are reported per message.
func (s *RecordSink) SubmitBatch(ctx context.Context, batch transfer.Batch) (outcomes []error, err error) {
	start := time.Now()
	defer func() {
		if s.observer != nil {
			s.observer.ObserveOperation(observability.OperationContext{
				Component: "kafka",
				Operation: "publish",
				Resource:  s.topic,
				Duration:  time.Since(start),
				Error:     err,
				Size:      int64(len(batch)),
			})
		}
	}()

	outcomes = make([]error, len(batch))
	msgs := make([]kafka.Message, 0, len(batch))
	index := make([]int, 0, len(batch))
	for i, rec := range batch {
		msg, err := encodeRecord(rec)
		if err != nil {
			outcomes[i] = err
			continue
		}
		msgs = append(msgs, msg)
		index = append(index, i)
	}
	if len(msgs) == 0 {
		return outcomes, nil
	}

	err = s.writer.WriteMessages(ctx, msgs...)
	var writeErrs kafka.WriteErrors
	switch {
	case err == nil:
	case errors.As(err, &writeErrs) && len(writeErrs) == len(msgs):
		for j, werr := range writeErrs {
			outcomes[index[j]] = werr
		}
	default:
		return nil, fmt.Errorf("publish to %s: %w", s.topic, err)
	}
	return outcomes, nil
}

// Close flushes and closes the writer.
func (s *RecordSink) Close() error {
	return s.writer.Close()
}
