package worker

import (
	"context"
	"sync/atomic"
	"time"

	"sjsage522/estateworker/helpers"
	"sjsage522/estateworker/logger"
	"sjsage522/estateworker/pkg/retry"
	"sjsage522/estateworker/services/queue"
	"sjsage522/estateworker/services/store"
)

// cleanupTimeout bounds the delete or abandon that follows processing, which
// still runs after the worker context is cancelled.
const cleanupTimeout = 10 * time.Second

// Processor handles one decoded message
type Processor interface {
	Process(ctx context.Context, msg queue.Message) (store.Outcome, error)
}

// Observer receives per-message metrics
type Observer interface {
	ObserveMessage(outcome string, took time.Duration)
}

// State is the worker's position in its receive loop
type State int32

const (
	StateIdle State = iota
	StateReceiving
	StateProcessing
	StateDeleting
)

func (s State) String() string {
	switch s {
	case StateReceiving:
		return "receiving"
	case StateProcessing:
		return "processing"
	case StateDeleting:
		return "deleting"
	default:
		return "idle"
	}
}

// Options configures the receive loop
type Options struct {
	// MaxEmptyReceives stops the worker after that many consecutive empty
	// receives. Zero loops forever.
	MaxEmptyReceives int
	EmptyBackoff     time.Duration
	ErrorBackoff     time.Duration
	// Retry wraps receive and delete calls.
	Retry retry.Policy
}

// Worker consumes listing URLs one at a time
type Worker struct {
	queue     queue.Queue
	processor Processor
	observer  Observer
	opts      Options
	logger    *logger.Logger
	state     atomic.Int32
}

// NewWorker creates a new worker. observer may be nil.
func NewWorker(q queue.Queue, processor Processor, observer Observer, opts Options, log *logger.Logger) *Worker {
	return &Worker{
		queue:     q,
		processor: processor,
		observer:  observer,
		opts:      opts,
		logger:    log.ForComponent("worker"),
	}
}

// State returns the current loop state
func (w *Worker) State() State {
	return State(w.state.Load())
}

func (w *Worker) setState(s State) {
	w.state.Store(int32(s))
}

// Start runs the receive loop until ctx is cancelled or the empty receive
// bound is reached. A message is deleted only after it was processed
// successfully; a failed one is abandoned for redelivery.
func (w *Worker) Start(ctx context.Context) error {
	defer w.setState(StateIdle)

	empty := 0
	for {
		if ctx.Err() != nil {
			w.logger.Info().Msg("Worker stopping")
			return nil
		}

		w.setState(StateReceiving)
		d, err := w.receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.setState(StateIdle)
			w.logger.Error().Err(err).Dur("backoff", w.opts.ErrorBackoff).Msg("Failed to receive message")
			helpers.Sleep(ctx, w.opts.ErrorBackoff)
			continue
		}

		if d == nil {
			empty++
			w.setState(StateIdle)
			if w.opts.MaxEmptyReceives > 0 && empty >= w.opts.MaxEmptyReceives {
				w.logger.Info().Int("empty_receives", empty).Msg("Queue drained, worker finished")
				return nil
			}
			w.logger.Debug().Int("empty_receives", empty).Msg("No messages")
			helpers.Sleep(ctx, w.opts.EmptyBackoff)
			continue
		}

		empty = 0
		w.handle(ctx, d)
		w.setState(StateIdle)
	}
}

func (w *Worker) receive(ctx context.Context) (*queue.Delivery, error) {
	var d *queue.Delivery
	err := w.opts.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		d, err = w.queue.Receive(ctx)
		return err
	})
	return d, err
}

func (w *Worker) handle(ctx context.Context, d *queue.Delivery) {
	start := time.Now()
	log := w.logger.WithFields(logger.Fields{"message_id": d.ID, "attempt": d.Attempt})

	msg, err := queue.DecodeMessage(d.Body)
	if err != nil {
		log.Error().Err(err).Str("body", string(d.Body)).Msg("Dropping malformed message")
		w.setState(StateDeleting)
		if err := w.delete(ctx, d); err != nil {
			log.Error().Err(err).Msg("Failed to delete malformed message")
		}
		w.observe("malformed", start)
		return
	}
	log = log.WithField("url", msg.URL)

	w.setState(StateProcessing)
	outcome, err := w.processor.Process(ctx, msg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to process message, leaving it for redelivery")
		w.abandon(ctx, d, log)
		w.observe("failed", start)
		return
	}

	w.setState(StateDeleting)
	if err := w.delete(ctx, d); err != nil {
		// Redelivery will hit the dedup path in the sink.
		log.Error().Err(err).Msg("Failed to delete processed message")
	}
	w.observe(string(outcome), start)
	log.Info().
		Str("outcome", string(outcome)).
		Dur("took", time.Since(start)).
		Msg("Message done")
}

func (w *Worker) delete(ctx context.Context, d *queue.Delivery) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	return w.opts.Retry.Do(ctx, func(ctx context.Context) error {
		return w.queue.Delete(ctx, d)
	})
}

func (w *Worker) abandon(ctx context.Context, d *queue.Delivery, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := w.queue.Abandon(ctx, d); err != nil {
		log.Warn().Err(err).Msg("Failed to abandon message")
	}
}

func (w *Worker) observe(outcome string, start time.Time) {
	if w.observer != nil {
		w.observer.ObserveMessage(outcome, time.Since(start))
	}
}
