package queue

import (
	"context"
	"sync"
	"time"

	"sjsage522/estateworker/logger"
	apperrors "sjsage522/estateworker/pkg/errors"
	"sjsage522/estateworker/services/cache"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitOptions configures a RabbitQueue
type RabbitOptions struct {
	URL   string
	Queue string

	// Visibility is the delay before an abandoned message is redelivered.
	Visibility time.Duration
	// Block is how long Receive polls for a message.
	Block time.Duration
	// MaxDeliveries moves a message to the dead letter queue once reached.
	MaxDeliveries int

	// Dedup, when set, remembers published URLs for DedupWindow.
	Dedup       cache.CacheService
	DedupWindow time.Duration
}

// RabbitQueue implements Queue on RabbitMQ. An abandoned message is rejected
// into a retry queue whose TTL dead-letters it back to the main queue, which
// stands in for a visibility timeout. The x-death count of the main queue is
// the delivery count.
type RabbitQueue struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	mu     sync.Mutex
	opts   RabbitOptions
	logger *logger.Logger
}

func (o RabbitOptions) exchange() string      { return o.Queue }
func (o RabbitOptions) retryExchange() string { return o.Queue + ".retry" }
func (o RabbitOptions) retryQueue() string    { return o.Queue + ".retry" }
func (o RabbitOptions) deadExchange() string  { return o.Queue + ".dlx" }
func (o RabbitOptions) deadQueue() string     { return o.Queue + ".dead" }

// NewRabbitQueue connects and declares the exchange and queue topology
func NewRabbitQueue(opts RabbitOptions, log *logger.Logger) (*RabbitQueue, error) {
	if opts.Block <= 0 {
		opts.Block = time.Second
	}

	conn, err := amqp.Dial(opts.URL)
	if err != nil {
		return nil, apperrors.NewQueue("rabbitmq", "failed to connect", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, apperrors.NewQueue("rabbitmq", "failed to open channel", err)
	}

	q := &RabbitQueue{
		conn:   conn,
		ch:     ch,
		opts:   opts,
		logger: log.ForComponent("rabbitmq-queue"),
	}
	if err := q.declare(); err != nil {
		q.Close()
		return nil, apperrors.NewQueue("rabbitmq", "failed to declare topology", err)
	}
	q.logger.Info().Str("queue", opts.Queue).Msg("RabbitMQ queue ready")
	return q, nil
}

func (q *RabbitQueue) declare() error {
	o := q.opts

	if err := q.ch.ExchangeDeclare(o.exchange(), "direct", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := q.ch.QueueDeclare(o.Queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange": o.retryExchange(),
	}); err != nil {
		return err
	}
	if err := q.ch.QueueBind(o.Queue, o.Queue, o.exchange(), false, nil); err != nil {
		return err
	}

	if err := q.ch.ExchangeDeclare(o.retryExchange(), "fanout", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := q.ch.QueueDeclare(o.retryQueue(), true, false, false, false, amqp.Table{
		"x-message-ttl":             int32(o.Visibility / time.Millisecond),
		"x-dead-letter-exchange":    o.exchange(),
		"x-dead-letter-routing-key": o.Queue,
	}); err != nil {
		return err
	}
	if err := q.ch.QueueBind(o.retryQueue(), "", o.retryExchange(), false, nil); err != nil {
		return err
	}

	if err := q.ch.ExchangeDeclare(o.deadExchange(), "direct", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := q.ch.QueueDeclare(o.deadQueue(), true, false, false, false, nil); err != nil {
		return err
	}
	return q.ch.QueueBind(o.deadQueue(), o.deadQueue(), o.deadExchange(), false, nil)
}

// Publish sends a persistent JSON message to the main queue
func (q *RabbitQueue) Publish(ctx context.Context, msg Message) error {
	body, err := msg.Encode()
	if err != nil {
		return apperrors.NewValidation("rabbitmq", "failed to encode message")
	}

	id := dedupID(msg.URL)
	if q.opts.Dedup != nil && q.opts.DedupWindow > 0 {
		added, err := q.opts.Dedup.Add(q.opts.Queue+":dedup:"+id, []byte{1}, q.opts.DedupWindow)
		if err != nil {
			q.logger.Warn().Err(err).Msg("Dedup cache unavailable, publishing anyway")
		} else if !added {
			return ErrDuplicate
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	err = q.ch.PublishWithContext(ctx, q.opts.exchange(), q.opts.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    id,
		Timestamp:    msg.Timestamp,
		Body:         body,
	})
	if err != nil {
		return apperrors.NewQueue("rabbitmq", "failed to publish message", err)
	}
	return nil
}

// Receive polls the main queue until a message arrives or Block elapses.
// Messages that died MaxDeliveries times are moved to the dead letter queue.
func (q *RabbitQueue) Receive(ctx context.Context) (*Delivery, error) {
	deadline := time.Now().Add(q.opts.Block)
	for {
		d, ok, err := q.get()
		if err != nil {
			return nil, apperrors.NewQueue("rabbitmq", "failed to get message", err)
		}
		if ok {
			attempt := int(getDeathCount(d, q.opts.Queue)) + 1
			if q.opts.MaxDeliveries > 0 && attempt > q.opts.MaxDeliveries {
				if err := q.deadLetter(ctx, d); err != nil {
					return nil, err
				}
				continue
			}
			return &Delivery{ID: d.MessageId, Body: d.Body, Attempt: attempt, tag: d.DeliveryTag}, nil
		}

		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func (q *RabbitQueue) get() (amqp.Delivery, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ch.Get(q.opts.Queue, false)
}

func (q *RabbitQueue) deadLetter(ctx context.Context, d amqp.Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	err := q.ch.PublishWithContext(ctx, q.opts.deadExchange(), q.opts.deadQueue(), false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Headers:      d.Headers,
		Body:         d.Body,
	})
	if err != nil {
		return apperrors.NewQueue("rabbitmq", "failed to dead-letter message", err)
	}
	if err := q.ch.Ack(d.DeliveryTag, false); err != nil {
		return apperrors.NewQueue("rabbitmq", "failed to ack dead-lettered message", err)
	}
	q.logger.Error().Str("id", d.MessageId).Msg("Message exceeded max deliveries, moved to dead letter queue")
	return nil
}

// Delete acks the message
func (q *RabbitQueue) Delete(ctx context.Context, d *Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.ch.Ack(d.tag, false); err != nil {
		return apperrors.NewQueue("rabbitmq", "failed to ack message", err)
	}
	return nil
}

// Abandon rejects the message into the retry queue
func (q *RabbitQueue) Abandon(ctx context.Context, d *Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.ch.Nack(d.tag, false, false); err != nil {
		return apperrors.NewQueue("rabbitmq", "failed to reject message", err)
	}
	return nil
}

// Close closes the channel and the connection
func (q *RabbitQueue) Close() error {
	if q.ch != nil {
		q.ch.Close()
	}
	return q.conn.Close()
}

// getDeathCount returns how many times the message was dead-lettered out of
// queueName, read from the x-death header.
func getDeathCount(d amqp.Delivery, queueName string) int64 {
	if d.Headers == nil {
		return 0
	}
	deaths, ok := d.Headers["x-death"].([]interface{})
	if !ok {
		return 0
	}
	for _, death := range deaths {
		tbl, ok := death.(amqp.Table)
		if !ok {
			continue
		}
		if queue, _ := tbl["queue"].(string); queue != queueName {
			continue
		}
		if count, ok := tbl["count"].(int64); ok {
			return count
		}
	}
	return 0
}
