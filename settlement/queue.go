package settlement

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Queue priorities. Settlements that exhausted their retries re-enter
// at low priority so fresh work is attempted first.
const (
	PriorityNormal = 0
	PriorityLow    = -1
)

// QueuedSettlement is a settlement waiting for reprocessing.
type QueuedSettlement struct {
	ID         string
	SessionID  string
	ChainID    uint64
	Priority   int
	Attempts   int
	LastError  string
	EnqueuedAt time.Time
}

// Queue is a concurrency-safe settlement retry queue.
type Queue struct {
	mu    sync.Mutex
	items []*QueuedSettlement
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue adds a settlement request and returns its generated id.
func (q *Queue) Enqueue(sessionID string, chainID uint64, priority, attempts int, lastError string) *QueuedSettlement {
	item := &QueuedSettlement{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		ChainID:    chainID,
		Priority:   priority,
		Attempts:   attempts,
		LastError:  lastError,
		EnqueuedAt: time.Now().UTC(),
	}
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	return item
}

// Drain removes and returns all queued settlements, highest priority
// first and FIFO within a priority.
func (q *Queue) Drain() []*QueuedSettlement {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Priority > items[j].Priority
	})
	return items
}

// Cancel removes a queued settlement by id. Returns false if the id is
// not queued.
func (q *Queue) Cancel(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, item := range q.items {
		if item.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// Pending returns a copy of the queued settlements without removing
// them.
func (q *Queue) Pending() []*QueuedSettlement {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*QueuedSettlement, len(q.items))
	copy(out, q.items)
	return out
}

// Len returns the queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
