package queue

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"sjsage522/estateworker/logger"
	apperrors "sjsage522/estateworker/pkg/errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const bodyField = "body"

// RedisOptions configures a RedisQueue
type RedisOptions struct {
	Addr     string
	Password string
	DB       int

	Stream   string
	Group    string
	Consumer string

	// DedupWindow is how long a published URL blocks republishing it.
	DedupWindow time.Duration
	// Visibility is how long a received entry stays pending before another
	// consumer may claim it.
	Visibility time.Duration
	// Block is how long Receive waits for a new entry.
	Block time.Duration
	// MaxDeliveries moves an entry to the dead stream once exceeded.
	MaxDeliveries int
}

// RedisQueue implements Queue on a Redis stream read through a consumer
// group. Pending entries idle longer than Visibility are reclaimed with
// XAUTOCLAIM, which gives the at-least-once redelivery.
type RedisQueue struct {
	client *redis.Client
	opts   RedisOptions
	logger *logger.Logger
}

// NewRedisQueue connects and creates the consumer group if needed
func NewRedisQueue(ctx context.Context, opts RedisOptions, log *logger.Logger) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	q, err := newRedisQueue(ctx, client, opts, log)
	if err != nil {
		client.Close()
		return nil, err
	}
	return q, nil
}

func newRedisQueue(ctx context.Context, client *redis.Client, opts RedisOptions, log *logger.Logger) (*RedisQueue, error) {
	if opts.Consumer == "" {
		opts.Consumer = consumerName()
	}
	if opts.Block <= 0 {
		opts.Block = time.Second
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, apperrors.NewQueue("redis", "failed to connect to "+opts.Addr, err)
	}
	err := client.XGroupCreateMkStream(ctx, opts.Stream, opts.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, apperrors.NewQueue("redis", "failed to create consumer group", err)
	}

	return &RedisQueue{
		client: client,
		opts:   opts,
		logger: log.ForComponent("redis-queue").WithField("consumer", opts.Consumer),
	}, nil
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return host + "-" + uuid.NewString()[:8]
}

func (q *RedisQueue) dedupKey(url string) string {
	return q.opts.Stream + ":dedup:" + dedupID(url)
}

func (q *RedisQueue) deadStream() string {
	return q.opts.Stream + ":dead"
}

// Publish adds the message to the stream. A URL published again inside the
// dedup window returns ErrDuplicate.
func (q *RedisQueue) Publish(ctx context.Context, msg Message) error {
	body, err := msg.Encode()
	if err != nil {
		return apperrors.NewValidation("redis", "failed to encode message")
	}

	key := ""
	if q.opts.DedupWindow > 0 {
		key = q.dedupKey(msg.URL)
		ok, err := q.client.SetNX(ctx, key, 1, q.opts.DedupWindow).Result()
		if err != nil {
			return apperrors.NewQueue("redis", "failed to set dedup key", err)
		}
		if !ok {
			return ErrDuplicate
		}
	}

	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.opts.Stream,
		Values: map[string]interface{}{bodyField: string(body)},
	}).Err()
	if err != nil {
		if key != "" {
			q.client.Del(ctx, key)
		}
		return apperrors.NewQueue("redis", "failed to publish message", err)
	}
	return nil
}

// Receive first reclaims one entry whose visibility timeout expired, then
// reads a new one. It returns nil, nil when nothing arrived within Block.
func (q *RedisQueue) Receive(ctx context.Context) (*Delivery, error) {
	for {
		d, retry, err := q.claim(ctx)
		if err != nil {
			return nil, err
		}
		if d != nil {
			return d, nil
		}
		if !retry {
			break
		}
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.opts.Group,
		Consumer: q.opts.Consumer,
		Streams:  []string{q.opts.Stream, ">"},
		Count:    1,
		Block:    q.opts.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.NewQueue("redis", "failed to read from stream", err)
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}
	m := streams[0].Messages[0]
	return &Delivery{ID: m.ID, Body: entryBody(m), Attempt: 1}, nil
}

// claim takes over one expired pending entry. retry is true when the entry
// was dropped or dead-lettered and the caller should look again.
func (q *RedisQueue) claim(ctx context.Context) (d *Delivery, retry bool, err error) {
	if q.opts.Visibility <= 0 {
		return nil, false, nil
	}

	msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.opts.Stream,
		Group:    q.opts.Group,
		Consumer: q.opts.Consumer,
		MinIdle:  q.opts.Visibility,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, false, apperrors.NewQueue("redis", "failed to claim pending entries", err)
	}
	if len(msgs) == 0 {
		return nil, false, nil
	}

	m := msgs[0]
	if len(m.Values) == 0 {
		// trimmed away while pending
		q.client.XAck(ctx, q.opts.Stream, q.opts.Group, m.ID)
		return nil, true, nil
	}

	attempt := 2
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.opts.Stream,
		Group:  q.opts.Group,
		Start:  m.ID,
		End:    m.ID,
		Count:  1,
	}).Result()
	if err == nil && len(pending) == 1 {
		attempt = int(pending[0].RetryCount)
	}

	if q.opts.MaxDeliveries > 0 && attempt > q.opts.MaxDeliveries {
		if err := q.deadLetter(ctx, m); err != nil {
			return nil, false, err
		}
		return nil, true, nil
	}

	q.logger.Warn().Str("id", m.ID).Int("attempt", attempt).Msg("Reclaimed expired message")
	return &Delivery{ID: m.ID, Body: entryBody(m), Attempt: attempt}, false, nil
}

func (q *RedisQueue) deadLetter(ctx context.Context, m redis.XMessage) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: q.deadStream(),
			Values: map[string]interface{}{bodyField: string(entryBody(m)), "id": m.ID},
		})
		pipe.XAck(ctx, q.opts.Stream, q.opts.Group, m.ID)
		pipe.XDel(ctx, q.opts.Stream, m.ID)
		return nil
	})
	if err != nil {
		return apperrors.NewQueue("redis", "failed to dead-letter "+m.ID, err)
	}
	q.logger.Error().Str("id", m.ID).Msg("Message exceeded max deliveries, moved to dead stream")
	return nil
}

// Delete acknowledges and removes the entry
func (q *RedisQueue) Delete(ctx context.Context, d *Delivery) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAck(ctx, q.opts.Stream, q.opts.Group, d.ID)
		pipe.XDel(ctx, q.opts.Stream, d.ID)
		return nil
	})
	if err != nil {
		return apperrors.NewQueue("redis", "failed to delete "+d.ID, err)
	}
	return nil
}

// Abandon leaves the entry pending; it becomes claimable again once its
// visibility timeout expires.
func (q *RedisQueue) Abandon(ctx context.Context, d *Delivery) error {
	return nil
}

// Trim drops entries the group has already acknowledged but which are still
// in the stream, e.g. when the XDEL after an ack failed. Pending and
// undelivered entries are never touched.
func (q *RedisQueue) Trim(ctx context.Context) error {
	minID, err := q.oldestUnacked(ctx)
	if err != nil {
		return err
	}
	if minID == "" {
		return nil
	}
	if err := q.client.XTrimMinID(ctx, q.opts.Stream, minID).Err(); err != nil {
		return apperrors.NewQueue("redis", "failed to trim stream", err)
	}
	return nil
}

// oldestUnacked returns the lowest id the group still needs: the oldest
// pending entry, or else the last delivered id, since everything after it is
// undelivered. Empty means nothing may be trimmed.
func (q *RedisQueue) oldestUnacked(ctx context.Context) (string, error) {
	pending, err := q.client.XPending(ctx, q.opts.Stream, q.opts.Group).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", apperrors.NewQueue("redis", "failed to read pending summary", err)
	}
	if pending != nil && pending.Count > 0 {
		return pending.Lower, nil
	}

	groups, err := q.client.XInfoGroups(ctx, q.opts.Stream).Result()
	if err != nil {
		return "", apperrors.NewQueue("redis", "failed to read group info", err)
	}
	for _, g := range groups {
		if g.Name != q.opts.Group {
			continue
		}
		if g.LastDeliveredID == "" || g.LastDeliveredID == "0-0" {
			return "", nil
		}
		return g.LastDeliveredID, nil
	}
	return "", nil
}

// Close closes the Redis connection
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

func entryBody(m redis.XMessage) []byte {
	switch v := m.Values[bodyField].(type) {
	case string:
		return []byte(v)
	case []byte:
		return v
	default:
		return nil
	}
}
