// Package queue holds recorded rows between batched storage writes.
package queue

import "sync"

// Queue is a FIFO of pending rows, safe for concurrent producers and a
// single draining writer.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	peak  int
}

func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push appends rows at the back.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	q.items = append(q.items, items...)
	q.peak = max(q.peak, len(q.items))
	q.mu.Unlock()
}

// Take removes up to n rows from the front. n <= 0 takes everything.
func (q *Queue[T]) Take(n int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n <= 0 || n >= len(q.items) {
		out := q.items
		q.items = nil
		return out
	}
	out := make([]T, n)
	copy(out, q.items)
	q.items = append(q.items[:0], q.items[n:]...)
	return out
}

// Requeue puts rows back at the front, ahead of anything pushed since they
// were taken.
func (q *Queue[T]) Requeue(items ...T) {
	if len(items) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append(append(make([]T, 0, len(items)+len(q.items)), items...), q.items...)
	q.mu.Unlock()
}

// Drain hands batches of at most size rows to write until the queue is
// empty. A failed batch is requeued and its error returned; rows written
// before the failure stay written. It returns the number of rows written.
func (q *Queue[T]) Drain(size int, write func([]T) error) (int, error) {
	written := 0
	for {
		batch := q.Take(size)
		if len(batch) == 0 {
			return written, nil
		}
		if err := write(batch); err != nil {
			q.Requeue(batch...)
			return written, err
		}
		written += len(batch)
	}
}

// Len returns the number of pending rows.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Peak returns the largest backlog seen since New.
func (q *Queue[T]) Peak() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.peak
}
