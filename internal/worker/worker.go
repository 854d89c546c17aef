package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mario-guerra/translation-service/internal/domain/port"
)

// Handler processes one raw message body to a terminal outcome.
type Handler func(ctx context.Context, body []byte) error

// Worker is the long-lived loop draining the task queue. It polls in
// fixed batches, processes messages strictly one at a time, and
// isolates each message's outcome from the batch and from the loop's
// own liveness.
type Worker struct {
	queue   port.TaskQueue
	handler Handler
	logger  *zap.Logger

	batchSize    int
	pollInterval time.Duration
	purgeOnStart bool

	cancel context.CancelFunc
	done   chan struct{}
}

type Config struct {
	BatchSize    int
	PollInterval time.Duration
	PurgeOnStart bool
}

func New(queue port.TaskQueue, handler Handler, logger *zap.Logger, cfg Config) *Worker {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 10
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Worker{
		queue:        queue,
		handler:      handler,
		logger:       logger,
		batchSize:    batch,
		pollInterval: interval,
		purgeOnStart: cfg.PurgeOnStart,
		done:         make(chan struct{}),
	}
}

// Start launches the polling loop and returns immediately.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	go w.run(ctx)
}

// Stop signals cancellation and waits until the loop has observed it
// or ctx expires, whichever comes first. The in-flight message is
// finished, not interrupted.
func (w *Worker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)

	if w.purgeOnStart {
		// Stale messages from a previous deployment are dropped rather
		// than reprocessed against state that may no longer exist.
		if err := w.queue.Purge(ctx); err != nil {
			w.logger.Warn("failed to purge stale messages", zap.Error(err))
		}
	}

	w.logger.Info("worker started",
		zap.Int("batch_size", w.batchSize),
		zap.Duration("poll_interval", w.pollInterval),
	)

	for {
		if ctx.Err() != nil {
			w.logger.Info("worker stopping")
			return
		}

		msgs, err := w.queue.Receive(ctx, w.batchSize)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("worker stopping")
				return
			}
			// A collaborator error never terminates the loop.
			w.logger.Error("failed to receive messages", zap.Error(err))
			w.sleep(ctx)
			continue
		}

		if len(msgs) == 0 {
			w.sleep(ctx)
			continue
		}

		w.drain(ctx, msgs)
	}
}

// drain processes one batch sequentially. Each message reaches a
// terminal outcome independently and is acknowledged afterwards; only
// a crash of the process itself leaves a message for redelivery.
// Cancellation is honored between messages only: the in-flight run and
// its acknowledgment use a detached context so that shutdown never
// aborts a pipeline mid-step.
func (w *Worker) drain(ctx context.Context, msgs []port.Message) {
	msgCtx := context.WithoutCancel(ctx)
	for _, msg := range msgs {
		if ctx.Err() != nil {
			return
		}

		if err := w.handler(msgCtx, msg.Body); err != nil {
			w.logger.Error("message handler returned an error",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}

		if err := w.queue.Delete(msgCtx, msg); err != nil {
			w.logger.Error("failed to delete message",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}
	}
}

func (w *Worker) sleep(ctx context.Context) {
	select {
	case <-time.After(w.pollInterval):
	case <-ctx.Done():
	}
}
