package port

import "context"

// Notifier delivers a notification to a recipient address.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}
