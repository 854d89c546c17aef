package port

import "context"

// Message is one received queue message. Receipt identifies the
// delivery for acknowledgment; the message becomes eligible for
// redelivery if the consumer dies before deleting it.
type Message struct {
	ID      string
	Receipt uint64
	Body    []byte
}

// TaskQueue is a pull-style FIFO queue with at-least-once delivery and
// explicit per-message acknowledgment.
type TaskQueue interface {
	// Receive returns up to max messages without blocking for new ones.
	Receive(ctx context.Context, max int) ([]Message, error)
	// Delete acknowledges a message so it is never redelivered.
	Delete(ctx context.Context, msg Message) error
	// Purge drops all messages currently in the queue.
	Purge(ctx context.Context) error
}

// DeadLetter receives payloads that reached a terminal failure the
// pipeline cannot recover by redelivery, with a diagnostic reason.
type DeadLetter interface {
	PublishToDLQ(ctx context.Context, body []byte, reason string) error
}
