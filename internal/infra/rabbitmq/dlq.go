package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DLQPublisher publishes terminally failed payloads to the dead-letter
// queue with a diagnostic reason header.
type DLQPublisher struct {
	channel *amqp.Channel
	queue   string
}

func NewDLQPublisher(conn *amqp.Connection, dlqQueue string) (*DLQPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open dlq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(dlqQueue, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare dlq %s: %w", dlqQueue, err)
	}
	return &DLQPublisher{channel: ch, queue: dlqQueue}, nil
}

func (dp *DLQPublisher) PublishToDLQ(ctx context.Context, body []byte, reason string) error {
	return dp.channel.PublishWithContext(ctx,
		"",
		dp.queue,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Headers: amqp.Table{
				"x-dlq-reason": reason,
			},
		},
	)
}

func (dp *DLQPublisher) Close() error {
	if dp.channel != nil {
		return dp.channel.Close()
	}
	return nil
}
