// Package queuetest provides an in-memory queue.Queue for tests.
package queuetest

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"sjsage522/estateworker/services/queue"
)

type entry struct {
	id       string
	body     []byte
	attempt  int
	inFlight bool
}

// Queue holds messages in memory. An abandoned message becomes visible
// again immediately.
type Queue struct {
	mu      sync.Mutex
	entries []*entry
	seq     int
	urls    map[string]struct{}

	// Dedup makes Publish reject URLs it has already seen.
	Dedup bool
	// PublishErr, when set, fails every Publish.
	PublishErr error
	// ReceiveErrs are returned by the next Receive calls, one each.
	ReceiveErrs []error
	// DeleteErrs are returned by the next Delete calls, one each.
	DeleteErrs []error

	Published []queue.Message
	Deleted   []string
	Abandoned []string
	Receives  int
	Closed    bool
}

// New creates an empty queue
func New() *Queue {
	return &Queue{urls: map[string]struct{}{}}
}

func (q *Queue) Publish(ctx context.Context, msg queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.PublishErr != nil {
		return q.PublishErr
	}
	if q.Dedup {
		if _, ok := q.urls[msg.URL]; ok {
			return queue.ErrDuplicate
		}
		q.urls[msg.URL] = struct{}{}
	}
	body, err := msg.Encode()
	if err != nil {
		return err
	}
	q.Published = append(q.Published, msg)
	q.push(body)
	return nil
}

// Push enqueues a raw body.
func (q *Queue) Push(body string) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.push([]byte(body))
}

func (q *Queue) push(body []byte) string {
	q.seq++
	id := strconv.Itoa(q.seq)
	q.entries = append(q.entries, &entry{id: id, body: body})
	return id
}

func (q *Queue) Receive(ctx context.Context) (*queue.Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Receives++

	if len(q.ReceiveErrs) > 0 {
		err := q.ReceiveErrs[0]
		q.ReceiveErrs = q.ReceiveErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	for _, e := range q.entries {
		if e.inFlight {
			continue
		}
		e.inFlight = true
		e.attempt++
		return &queue.Delivery{ID: e.id, Body: e.body, Attempt: e.attempt}, nil
	}
	return nil, nil
}

func (q *Queue) Delete(ctx context.Context, d *queue.Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.DeleteErrs) > 0 {
		err := q.DeleteErrs[0]
		q.DeleteErrs = q.DeleteErrs[1:]
		if err != nil {
			return err
		}
	}
	for i, e := range q.entries {
		if e.id == d.ID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			q.Deleted = append(q.Deleted, d.ID)
			return nil
		}
	}
	return errors.New("unknown delivery " + d.ID)
}

func (q *Queue) Abandon(ctx context.Context, d *queue.Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.id == d.ID {
			e.inFlight = false
		}
	}
	q.Abandoned = append(q.Abandoned, d.ID)
	return nil
}

// Len returns the number of messages not yet deleted.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *Queue) Close() error {
	q.mu.Lock()
	q.Closed = true
	q.mu.Unlock()
	return nil
}
