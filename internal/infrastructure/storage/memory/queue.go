package memory

import (
	"context"
	"time"

	"NewsPoster/internal/ports"
)

// Queue is a buffered in-process DraftQueue.
type Queue struct {
	ch chan string
}

var _ ports.DraftQueue = (*Queue)(nil)

func NewQueue(size int) *Queue {
	return &Queue{ch: make(chan string, size)}
}

func (q *Queue) Enqueue(ctx context.Context, draftID string) error {
	select {
	case q.ch <- draftID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (string, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case id := <-q.ch:
		return id, true, nil
	case <-timer.C:
		return "", false, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

// Len reports queued items.
func (q *Queue) Len() int {
	return len(q.ch)
}
