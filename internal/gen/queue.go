package gen

import (
	"context"
	"sync"
)

// RollerQueue limits how many expensive seed rolls run at once. Waiters
// form an explicit FIFO so their queue position can be reported; positions
// only ever decrease, and only when another waiter departs.
type RollerQueue struct {
	mu      sync.Mutex
	permits int
	waiting []*waiter
}

type waiter struct {
	pos    int
	notify func(pos int)
	ready  chan struct{}
}

// NewRollerQueue returns a queue with the given number of permits.
func NewRollerQueue(capacity int) *RollerQueue {
	return &RollerQueue{permits: capacity}
}

// Acquire takes a permit, waiting in line if none is free. While queued,
// notify is called with the current position: once on entry, then once per
// departure ahead of us. notify runs under the queue lock and must not call
// back into the queue.
func (q *RollerQueue) Acquire(ctx context.Context, notify func(pos int)) error {
	q.mu.Lock()
	if len(q.waiting) == 0 && q.permits > 0 {
		q.permits--
		q.mu.Unlock()
		return nil
	}
	w := &waiter{pos: len(q.waiting), notify: notify, ready: make(chan struct{})}
	q.waiting = append(q.waiting, w)
	if notify != nil {
		notify(w.pos)
	}
	q.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		if !q.remove(w) {
			// The permit was granted while we were giving up.
			q.Release()
		}
		return ctx.Err()
	}
}

// TryAcquire takes a permit without waiting.
func (q *RollerQueue) TryAcquire() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.waiting) == 0 && q.permits > 0 {
		q.permits--
		return true
	}
	return false
}

// Release returns a permit and hands it to the head of the line if anyone
// is waiting.
func (q *RollerQueue) Release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.permits++
	q.grant()
}

// grant is called with the lock held.
func (q *RollerQueue) grant() {
	for q.permits > 0 && len(q.waiting) > 0 {
		head := q.waiting[0]
		q.waiting = q.waiting[1:]
		q.permits--
		close(head.ready)
		q.renumber()
	}
}

// remove is used when a waiter gives up. It reports whether the waiter was
// still in line.
func (q *RollerQueue) remove(w *waiter) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, x := range q.waiting {
		if x == w {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			q.renumber()
			return true
		}
	}
	return false
}

// renumber is called with the lock held after any departure.
func (q *RollerQueue) renumber() {
	for i, w := range q.waiting {
		if w.pos != i {
			w.pos = i
			if w.notify != nil {
				w.notify(i)
			}
		}
	}
}
