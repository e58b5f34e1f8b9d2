package gojob

import (
	"context"
	"fmt"
	"sync"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

// DeadLetter records a message the queue gave up on.
type DeadLetter struct {
	Message *job.ExecutionMessage
	Reason  string
}

// MemoryQueue is an in-process go-job queue used when no broker is configured.
// Messages sharing an idempotency key are collapsed while one is pending.
type MemoryQueue struct {
	mu      sync.Mutex
	items   []*job.ExecutionMessage
	pending map[string]struct{}
	dead    []DeadLetter
	timers  map[*time.Timer]struct{}
	notify  chan struct{}
	closed  bool
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		pending: map[string]struct{}{},
		timers:  map[*time.Timer]struct{}{},
		notify:  make(chan struct{}, 1),
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("gojob: queue is closed")
	}
	if key := msg.IdempotencyKey; key != "" {
		if _, ok := q.pending[key]; ok && msg.DedupPolicy == job.DeduplicationPolicy(defaultDedupPolicy) {
			return nil
		}
		q.pending[key] = struct{}{}
	}
	q.pushLocked(msg)
	return nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (queue.Delivery, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, fmt.Errorf("gojob: queue is closed")
		}
		if len(q.items) > 0 {
			msg := q.items[0]
			q.items = q.items[1:]
			if len(q.items) > 0 {
				q.signalLocked()
			}
			q.mu.Unlock()
			return &memoryDelivery{queue: q, msg: msg}, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		}
	}
}

// Len reports ready messages, excluding delayed retries.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *MemoryQueue) DeadLetters() []DeadLetter {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]DeadLetter(nil), q.dead...)
}

// Close stops delayed redeliveries and wakes blocked consumers.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	for timer := range q.timers {
		timer.Stop()
	}
	q.timers = map[*time.Timer]struct{}{}
	close(q.notify)
}

func (q *MemoryQueue) pushLocked(msg *job.ExecutionMessage) {
	q.items = append(q.items, msg)
	q.signalLocked()
}

func (q *MemoryQueue) signalLocked() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *MemoryQueue) release(msg *job.ExecutionMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if msg.IdempotencyKey != "" {
		delete(q.pending, msg.IdempotencyKey)
	}
}

func (q *MemoryQueue) requeue(msg *job.ExecutionMessage, delay time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	if delay <= 0 {
		q.pushLocked(msg)
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.timers, timer)
		if !q.closed {
			q.pushLocked(msg)
		}
	})
	q.timers[timer] = struct{}{}
}

func (q *MemoryQueue) deadLetter(msg *job.ExecutionMessage, reason string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if msg.IdempotencyKey != "" {
		delete(q.pending, msg.IdempotencyKey)
	}
	q.dead = append(q.dead, DeadLetter{Message: msg, Reason: reason})
}

type memoryDelivery struct {
	queue *MemoryQueue
	msg   *job.ExecutionMessage
	once  sync.Once
}

func (d *memoryDelivery) Message() *job.ExecutionMessage {
	return d.msg
}

func (d *memoryDelivery) Ack(context.Context) error {
	if !d.settle() {
		return fmt.Errorf("gojob: delivery already settled")
	}
	d.queue.release(d.msg)
	return nil
}

func (d *memoryDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	if !d.settle() {
		return fmt.Errorf("gojob: delivery already settled")
	}
	switch {
	case opts.DeadLetter:
		d.queue.deadLetter(d.msg, opts.Reason)
	case opts.Requeue:
		d.queue.requeue(d.msg, opts.Delay)
	default:
		d.queue.release(d.msg)
	}
	return nil
}

func (d *memoryDelivery) settle() bool {
	first := false
	d.once.Do(func() { first = true })
	return first
}

var (
	_ queue.Enqueuer = (*MemoryQueue)(nil)
	_ queue.Dequeuer = (*MemoryQueue)(nil)
	_ queue.Delivery = (*memoryDelivery)(nil)
)
