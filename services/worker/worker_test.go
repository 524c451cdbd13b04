package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sjsage522/estateworker/logger"
	apperrors "sjsage522/estateworker/pkg/errors"
	"sjsage522/estateworker/pkg/retry"
	"sjsage522/estateworker/services/queue"
	"sjsage522/estateworker/services/queue/queuetest"
	"sjsage522/estateworker/services/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockProcessor records messages and fails the first failures[url] calls.
type MockProcessor struct {
	mu       sync.Mutex
	q        *queuetest.Queue
	failures map[string]int
	calls    []string
	// pendingAtProcess is the queue length seen while processing, so tests
	// can check the message was still there.
	pendingAtProcess []int
}

var _ Processor = (*MockProcessor)(nil)

func (m *MockProcessor) Process(ctx context.Context, msg queue.Message) (store.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, msg.URL)
	if m.q != nil {
		m.pendingAtProcess = append(m.pendingAtProcess, m.q.Len())
	}
	if m.failures[msg.URL] > 0 {
		m.failures[msg.URL]--
		return "", apperrors.NewNavigation("test", "timeout", nil)
	}
	return store.OutcomeInserted, nil
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) ObserveMessage(outcome string, took time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func testOptions() Options {
	return Options{
		MaxEmptyReceives: 2,
		Retry:            retry.Policy{MaxAttempts: 3, Backoff: retry.Fixed(0), Retryable: apperrors.IsRetryable},
	}
}

func TestWorkerDeletesAfterProcessing(t *testing.T) {
	q := queuetest.New()
	require.NoError(t, q.Publish(context.Background(), queue.NewMessage("https://site/p/123", 1, time.Now())))
	proc := &MockProcessor{q: q}
	obs := &recordingObserver{}

	err := NewWorker(q, proc, obs, testOptions(), logger.Nop()).Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"https://site/p/123"}, proc.calls)
	assert.Equal(t, []int{1}, proc.pendingAtProcess, "message is still queued while processing")
	assert.Equal(t, []string{"1"}, q.Deleted)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, []string{"inserted"}, obs.outcomes)
}

func TestWorkerAbandonsFailedMessage(t *testing.T) {
	q := queuetest.New()
	q.Push(`{"url":"https://site/p/1"}`)
	proc := &MockProcessor{failures: map[string]int{"https://site/p/1": 1}}
	obs := &recordingObserver{}

	err := NewWorker(q, proc, obs, testOptions(), logger.Nop()).Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"1"}, q.Abandoned)
	assert.Equal(t, []string{"https://site/p/1", "https://site/p/1"}, proc.calls)
	assert.Equal(t, []string{"1"}, q.Deleted)
	assert.Equal(t, []string{"failed", "inserted"}, obs.outcomes)
}

func TestWorkerDeletesMalformedMessage(t *testing.T) {
	q := queuetest.New()
	q.Push(`{"urlNumber":3}`)
	q.Push(`https://site/p/2`)
	proc := &MockProcessor{}

	err := NewWorker(q, proc, nil, testOptions(), logger.Nop()).Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"https://site/p/2"}, proc.calls)
	assert.Equal(t, []string{"1", "2"}, q.Deleted)
	assert.Empty(t, q.Abandoned)
}

func TestWorkerStopsAfterEmptyReceives(t *testing.T) {
	q := queuetest.New()
	opts := testOptions()
	opts.MaxEmptyReceives = 5

	err := NewWorker(q, &MockProcessor{}, nil, opts, logger.Nop()).Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, q.Receives)
}

func TestWorkerRetriesQueueErrors(t *testing.T) {
	q := queuetest.New()
	q.Push(`{"url":"https://site/p/1"}`)
	q.ReceiveErrs = []error{apperrors.NewQueue("test", "connection reset", nil)}
	q.DeleteErrs = []error{apperrors.NewQueue("test", "connection reset", nil)}
	proc := &MockProcessor{}

	err := NewWorker(q, proc, nil, testOptions(), logger.Nop()).Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"https://site/p/1"}, proc.calls)
	assert.Equal(t, []string{"1"}, q.Deleted)
}

func TestWorkerBacksOffOnPersistentReceiveError(t *testing.T) {
	q := queuetest.New()
	q.ReceiveErrs = []error{errors.New("boom"), errors.New("boom")}
	q.Push(`{"url":"https://site/p/1"}`)
	proc := &MockProcessor{}

	err := NewWorker(q, proc, nil, testOptions(), logger.Nop()).Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://site/p/1"}, proc.calls)
}

func TestWorkerStopsOnCancel(t *testing.T) {
	q := queuetest.New()
	opts := testOptions()
	opts.MaxEmptyReceives = 0
	opts.EmptyBackoff = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(q, &MockProcessor{}, nil, opts, logger.Nop())

	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
		assert.Equal(t, StateIdle, w.State())
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "receiving", StateReceiving.String())
	assert.Equal(t, "processing", StateProcessing.String())
	assert.Equal(t, "deleting", StateDeleting.String())
}
