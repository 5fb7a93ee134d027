package rabbit

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publish sends body to the configured exchange with routingKey and waits for the
// broker's confirmation. Headers may carry trace context.
//
// Example:
//
//	err := client.Publish(ctx, "vecmigrate.transfer.exhausted", body, amqp.Table{"run-id": runID})
func (rb *RabbitClient) Publish(ctx context.Context, routingKey string, body []byte, headers amqp.Table) (err error) {
	start := time.Now()
	defer func() {
		rb.observeOperation("produce", rb.cfg.Channel.ExchangeName, routingKey, time.Since(start), err, int64(len(body)))
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	rb.mu.RLock()
	ch := rb.channel
	rb.mu.RUnlock()
	if ch == nil || ch.IsClosed() {
		return ErrChannelClosed
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx,
		rb.cfg.Channel.ExchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			Headers:      headers,
			ContentType:  rb.cfg.Channel.ContentType,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return TranslateError(err)
	}
	if confirm == nil {
		return nil
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !acked {
		return fmt.Errorf("%w: exchange %s key %s", ErrPublishNacked, rb.cfg.Channel.ExchangeName, routingKey)
	}
	return nil
}
