package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flashmart/seckill/internal/model"
)

// MemoryOrderQueue implements OrderQueue in memory with the same
// delivered-until-acknowledged semantics as the Redis stream implementation:
// ReadNext moves an entry to the pending list, and only Ack removes it.
type MemoryOrderQueue struct {
	mu      sync.Mutex
	seq     int64
	backlog []*QueueEntry
	pending []*QueueEntry
}

// NewMemoryOrderQueue creates a new in-memory order queue
func NewMemoryOrderQueue() *MemoryOrderQueue {
	return &MemoryOrderQueue{}
}

// EnsureGroup is a no-op for the in-memory queue
func (q *MemoryOrderQueue) EnsureGroup(ctx context.Context) error {
	return nil
}

// Append adds an order to the tail of the queue
func (q *MemoryOrderQueue) Append(ctx context.Context, order *model.VoucherOrder) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	entry := &QueueEntry{
		ID:    fmt.Sprintf("%d-0", q.seq),
		Order: *order,
	}
	q.backlog = append(q.backlog, entry)
	return entry.ID, nil
}

// ReadNext waits up to block for a new entry and marks it pending
func (q *MemoryOrderQueue) ReadNext(ctx context.Context, block time.Duration) (*QueueEntry, error) {
	deadline := time.Now().Add(block)
	for {
		q.mu.Lock()
		if len(q.backlog) > 0 {
			entry := q.backlog[0]
			q.backlog = q.backlog[1:]
			q.pending = append(q.pending, entry)
			q.mu.Unlock()
			copied := *entry
			return &copied, nil
		}
		q.mu.Unlock()

		if !time.Now().Before(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

// ReadPending returns the oldest delivered-but-unacknowledged entry
func (q *MemoryOrderQueue) ReadPending(ctx context.Context) (*QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil, nil
	}
	copied := *q.pending[0]
	return &copied, nil
}

// Ack removes the entry from the pending list
func (q *MemoryOrderQueue) Ack(ctx context.Context, entryID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, entry := range q.pending {
		if entry.ID == entryID {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return nil
		}
	}
	return nil
}

// PendingCount reports how many delivered entries await acknowledgment.
func (q *MemoryOrderQueue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
