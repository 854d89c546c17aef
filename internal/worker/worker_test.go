package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mario-guerra/translation-service/internal/domain/port"
)

type fakeQueue struct {
	mu          sync.Mutex
	pending     []port.Message
	deleted     []uint64
	purgeCalls  int
	receiveErrs int
}

func (q *fakeQueue) push(bodies ...string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, b := range bodies {
		tag := uint64(len(q.pending) + len(q.deleted) + 1)
		q.pending = append(q.pending, port.Message{
			ID:      fmt.Sprintf("%d", tag),
			Receipt: tag,
			Body:    []byte(b),
		})
	}
}

func (q *fakeQueue) Receive(_ context.Context, max int) ([]port.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.receiveErrs > 0 {
		q.receiveErrs--
		return nil, fmt.Errorf("queue unavailable")
	}
	n := max
	if n > len(q.pending) {
		n = len(q.pending)
	}
	batch := q.pending[:n]
	q.pending = q.pending[n:]
	return batch, nil
}

func (q *fakeQueue) Delete(_ context.Context, msg port.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deleted = append(q.deleted, msg.Receipt)
	return nil
}

func (q *fakeQueue) Purge(_ context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.purgeCalls++
	q.pending = nil
	return nil
}

func (q *fakeQueue) deletedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.deleted)
}

type recordingHandler struct {
	mu     sync.Mutex
	bodies []string
	errOn  map[string]error
}

func (h *recordingHandler) handle(_ context.Context, body []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bodies = append(h.bodies, string(body))
	if err, ok := h.errOn[string(body)]; ok {
		return err
	}
	return nil
}

func (h *recordingHandler) seen() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.bodies...)
}

func startWorker(t *testing.T, q *fakeQueue, h Handler, cfg Config) *Worker {
	t.Helper()
	w := New(q, h, zap.NewNop(), cfg)
	w.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = w.Stop(ctx)
	})
	return w
}

func TestWorkerProcessesBatchSequentiallyAndDeletes(t *testing.T) {
	q := &fakeQueue{}
	h := &recordingHandler{}
	startWorker(t, q, h.handle, Config{BatchSize: 10, PollInterval: 5 * time.Millisecond})

	q.push("a", "b", "c")

	require.Eventually(t, func() bool { return q.deletedCount() == 3 },
		time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"a", "b", "c"}, h.seen(), "messages processed in order, one at a time")
	assert.Equal(t, []uint64{1, 2, 3}, q.deleted)
}

func TestWorkerHandlerErrorDoesNotAbortBatch(t *testing.T) {
	q := &fakeQueue{}
	h := &recordingHandler{errOn: map[string]error{"b": fmt.Errorf("boom")}}
	startWorker(t, q, h.handle, Config{BatchSize: 10, PollInterval: 5 * time.Millisecond})

	q.push("a", "b", "c")

	require.Eventually(t, func() bool { return q.deletedCount() == 3 },
		time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"a", "b", "c"}, h.seen(),
		"one message's failure never aborts the batch")
}

func TestWorkerSurvivesReceiveErrors(t *testing.T) {
	q := &fakeQueue{receiveErrs: 3}
	h := &recordingHandler{}
	startWorker(t, q, h.handle, Config{BatchSize: 10, PollInterval: 5 * time.Millisecond})

	q.push("a")

	require.Eventually(t, func() bool { return q.deletedCount() == 1 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a"}, h.seen())
}

func TestWorkerPurgesStaleMessagesOnStart(t *testing.T) {
	q := &fakeQueue{}
	q.push("stale-1", "stale-2")
	h := &recordingHandler{}
	startWorker(t, q, h.handle, Config{BatchSize: 10, PollInterval: 5 * time.Millisecond, PurgeOnStart: true})

	// New work after startup is still processed.
	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return q.purgeCalls == 1
	}, time.Second, 5*time.Millisecond)

	q.push("fresh")
	require.Eventually(t, func() bool { return q.deletedCount() >= 1 },
		time.Second, 5*time.Millisecond)

	assert.NotContains(t, h.seen(), "stale-1")
	assert.NotContains(t, h.seen(), "stale-2")
	assert.Contains(t, h.seen(), "fresh")
}

func TestWorkerSkipsPurgeWhenDisabled(t *testing.T) {
	q := &fakeQueue{}
	q.push("kept")
	h := &recordingHandler{}
	startWorker(t, q, h.handle, Config{BatchSize: 10, PollInterval: 5 * time.Millisecond, PurgeOnStart: false})

	require.Eventually(t, func() bool { return q.deletedCount() == 1 },
		time.Second, 5*time.Millisecond)

	assert.Zero(t, q.purgeCalls)
	assert.Equal(t, []string{"kept"}, h.seen())
}

func TestWorkerStopReturnsOnceLoopExits(t *testing.T) {
	q := &fakeQueue{}
	h := &recordingHandler{}
	w := New(q, h.handle, zap.NewNop(), Config{BatchSize: 10, PollInterval: 5 * time.Millisecond})
	w.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Stop(ctx))

	select {
	case <-w.done:
	default:
		t.Fatal("done channel should be closed after Stop")
	}
}

func TestWorkerStopDeadline(t *testing.T) {
	q := &fakeQueue{}
	blocker := make(chan struct{})
	h := func(ctx context.Context, _ []byte) error {
		select {
		case <-blocker:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	w := New(q, h, zap.NewNop(), Config{BatchSize: 1, PollInterval: time.Millisecond})
	w.Start(context.Background())
	defer close(blocker)

	q.push("slow")

	// The in-flight message is not interrupted, so Stop hits its
	// deadline while the handler blocks.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := w.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWorkerInFlightRunSurvivesStop(t *testing.T) {
	q := &fakeQueue{}
	started := make(chan struct{})
	release := make(chan struct{})
	var handlerCtx context.Context
	h := func(ctx context.Context, _ []byte) error {
		handlerCtx = ctx
		close(started)
		<-release
		return ctx.Err()
	}
	w := New(q, h, zap.NewNop(), Config{BatchSize: 1, PollInterval: time.Millisecond})
	w.Start(context.Background())

	q.push("inflight")
	<-started

	stopCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, w.Stop(stopCtx), context.DeadlineExceeded)

	// Shutdown must not propagate into the running handler: a run in
	// retry backoff would otherwise make fewer attempts than it
	// reports, and a run past translation would be dead-lettered.
	assert.NoError(t, handlerCtx.Err(), "in-flight run must keep an uncancelled context across Stop")

	close(release)

	// The finished run is still acknowledged and the loop exits cleanly.
	require.Eventually(t, func() bool { return q.deletedCount() == 1 },
		time.Second, 5*time.Millisecond)
	ctx, cancelWait := context.WithTimeout(context.Background(), time.Second)
	defer cancelWait()
	require.NoError(t, w.Stop(ctx))
}
