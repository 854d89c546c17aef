package rabbitmq

import (
	"context"
	"fmt"
	"strconv"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/mario-guerra/translation-service/internal/domain/port"
)

// Queue is a pull-mode adapter over RabbitMQ. The worker polls with
// basic.get instead of a push consumer so that it controls batch size
// and pacing; unacked deliveries return to the queue when the channel
// closes, which stands in for a visibility window.
type Queue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	name    string
	logger  *zap.Logger
}

type QueueConfig struct {
	URL   string
	Queue string
	DLQ   string
}

func NewQueue(cfg QueueConfig, logger *zap.Logger) (*Queue, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	for _, q := range []string{cfg.Queue, cfg.DLQ} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	return &Queue{
		conn:    conn,
		channel: ch,
		name:    cfg.Queue,
		logger:  logger,
	}, nil
}

func (q *Queue) Receive(ctx context.Context, max int) ([]port.Message, error) {
	msgs := make([]port.Message, 0, max)
	for i := 0; i < max; i++ {
		if err := ctx.Err(); err != nil {
			return msgs, err
		}
		d, ok, err := q.channel.Get(q.name, false)
		if err != nil {
			return msgs, fmt.Errorf("get from queue %s: %w", q.name, err)
		}
		if !ok {
			break
		}
		msgs = append(msgs, port.Message{
			ID:      strconv.FormatUint(d.DeliveryTag, 10),
			Receipt: d.DeliveryTag,
			Body:    d.Body,
		})
	}
	return msgs, nil
}

func (q *Queue) Delete(ctx context.Context, msg port.Message) error {
	if err := q.channel.Ack(msg.Receipt, false); err != nil {
		return fmt.Errorf("ack delivery %d: %w", msg.Receipt, err)
	}
	return nil
}

func (q *Queue) Purge(ctx context.Context) error {
	n, err := q.channel.QueuePurge(q.name, false)
	if err != nil {
		return fmt.Errorf("purge queue %s: %w", q.name, err)
	}
	if n > 0 {
		q.logger.Info("purged stale messages from previous run",
			zap.Int("count", n),
			zap.String("queue", q.name),
		)
	}
	return nil
}

func (q *Queue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
