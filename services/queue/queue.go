// Package queue carries listing URLs from the dispatcher to the workers.
package queue

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
)

// ErrDuplicate is returned by Publish when the URL was already published
// inside the dedup window.
var ErrDuplicate = errors.New("queue: duplicate message")

// Delivery is a received message. It stays invisible to other consumers
// until it is deleted or its visibility timeout expires.
type Delivery struct {
	ID      string
	Body    []byte
	Attempt int

	tag uint64
}

// Queue is an at-least-once work queue
type Queue interface {
	// Publish enqueues a message
	Publish(ctx context.Context, msg Message) error

	// Receive returns the next message, or nil when none arrived within the
	// configured wait
	Receive(ctx context.Context) (*Delivery, error)

	// Delete acknowledges a message so it is never delivered again
	Delete(ctx context.Context, d *Delivery) error

	// Abandon gives a message back for a later retry
	Abandon(ctx context.Context, d *Delivery) error

	// Close releases the connection
	Close() error
}

// Trimmer is implemented by queues that can reclaim space held by
// acknowledged messages.
type Trimmer interface {
	Trim(ctx context.Context) error
}

func dedupID(url string) string {
	sum := sha1.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}
