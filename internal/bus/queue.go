// Package bus is the in-memory fan-out between the execution core and its
// subscribers (audit recorder, broadcast). Publishing never blocks the
// provider callback path; a full queue drops and counts.
package bus

import (
	"context"
	"sync/atomic"

	"github.com/yanun0323/errors"

	"main/internal/schema"
)

var (
	ErrQueueFull   = errors.New("event queue full")
	ErrQueueClosed = errors.New("event queue closed")
)

// Queue is a bounded, non-blocking message queue.
type Queue struct {
	ch     chan schema.Message
	closed uint32
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan schema.Message, capacity)}
}

// TryPublish enqueues a message without blocking.
func (q *Queue) TryPublish(msg schema.Message) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}
	select {
	case q.ch <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the queue from accepting new messages. Buffered messages are
// still delivered to Run.
func (q *Queue) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}

// Run consumes messages until the context is done or the queue is closed.
func (q *Queue) Run(ctx context.Context, handler func(schema.Message)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-q.ch:
			if !ok {
				return
			}
			handler(msg)
		}
	}
}
