package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Aleph-Alpha/vecmigrate/v1/tracer"
	"github.com/Aleph-Alpha/vecmigrate/v1/transfer"
)

// Report summarizes a finished transfer run.
type Report struct {
	RunID        string    `json:"run_id"`
	Name         string    `json:"name"`
	Source       string    `json:"source,omitempty"`
	Target       string    `json:"target,omitempty"`
	Status       string    `json:"status"`
	Pulled       int       `json:"pulled"`
	SuccessCount int       `json:"success_count"`
	FailureCount int       `json:"failure_count"`
	Batches      int       `json:"batches"`
	Committed    int       `json:"committed"`
	Error        string    `json:"error,omitempty"`
	ArchiveKey   string    `json:"archive_key,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	DurationMs   int64     `json:"duration_ms"`
}

// NewReport builds a report from res. Name labels the kind of run, e.g. "migration".
func NewReport(name string, res *transfer.Result) Report {
	r := Report{
		RunID:        res.RunID,
		Name:         name,
		Status:       string(res.Status),
		Pulled:       res.Pulled,
		SuccessCount: res.SuccessCount,
		FailureCount: len(res.Failures),
		Batches:      res.Batches,
		Committed:    res.Committed,
		StartedAt:    res.StartedAt,
		FinishedAt:   res.FinishedAt,
		DurationMs:   res.Duration().Milliseconds(),
	}
	if res.Err != nil {
		r.Error = res.Err.Error()
	}
	return r
}

// Publisher sends a message to an exchange. *RabbitClient implements it.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte, headers amqp.Table) error
}

// Reporter publishes run reports.
type Reporter struct {
	publisher  Publisher
	routingKey string
}

// NewReporter returns a reporter publishing under routingKey.<status>.
func NewReporter(publisher Publisher, routingKey string) *Reporter {
	return &Reporter{publisher: publisher, routingKey: routingKey}
}

// Publish sends report as JSON. The trace context of ctx travels in the headers.
func (r *Reporter) Publish(ctx context.Context, report Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report %s: %w", report.RunID, err)
	}

	headers := amqp.Table{
		"run-id": report.RunID,
		"status": report.Status,
	}
	for k, v := range tracer.GetCarrier(ctx) {
		headers[k] = v
	}

	if err := r.publisher.Publish(ctx, r.key(report.Status), body, headers); err != nil {
		return fmt.Errorf("publish report %s: %w", report.RunID, err)
	}
	return nil
}

func (r *Reporter) key(status string) string {
	if r.routingKey == "" {
		return status
	}
	return r.routingKey + "." + status
}
