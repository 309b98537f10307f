package audit

import (
	"sync"
	"time"

	"github.com/sbshrey/Neighborhood-Library-Service/pkg/models"
)

const maxRetryAttempts = 5

// pendingRecord is an audit row whose first write failed, waiting for
// another attempt.
type pendingRecord struct {
	record   models.AuditLog
	retryAt  time.Time
	attempts int
}

// retryQueue holds failed audit writes. Bounded by attempt count, not
// size: audit rows are small and failures here mean the database is
// already unhappy.
type retryQueue struct {
	items []*pendingRecord
	mu    sync.Mutex
}

func newRetryQueue() *retryQueue {
	return &retryQueue{}
}

func (q *retryQueue) enqueue(record models.AuditLog) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, &pendingRecord{
		record:  record,
		retryAt: time.Now().Add(5 * time.Second),
	})
}

// dequeueDue removes and returns the first entry whose retry time has
// passed, or nil.
func (q *retryQueue) dequeueDue(now time.Time) *pendingRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, item := range q.items {
		if !item.retryAt.After(now) {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return item
		}
	}
	return nil
}

// requeue puts a failed attempt back with backoff, dropping it after
// maxRetryAttempts.
func (q *retryQueue) requeue(item *pendingRecord) {
	item.attempts++
	if item.attempts >= maxRetryAttempts {
		return
	}
	item.retryAt = time.Now().Add(time.Duration(item.attempts) * 10 * time.Second)
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
}

func (q *retryQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
