package settlement

import (
	"sync"
	"time"

	"github.com/lattica-ai/settle/chain"
)

// EventType classifies settlement lifecycle events.
type EventType string

const (
	EventInitiated EventType = "settlement_initiated"
	EventRetry     EventType = "settlement_retry"
	EventQueued    EventType = "settlement_queued"
	EventFailed    EventType = "settlement_failed"
	EventConfirmed EventType = "settlement_confirmed"
)

// Event is one step of a session's settlement lifecycle.
type Event struct {
	Type      EventType
	SessionID string
	ChainID   uint64
	Attempt   int
	Error     string
	TxHash    chain.TxHandle
	Timestamp time.Time
}

// subscriberBuffer is the channel capacity per subscriber. A subscriber
// that falls this far behind loses events rather than blocking
// settlement.
const subscriberBuffer = 64

// EventLog records settlement events per session and fans them out to
// live subscribers.
type EventLog struct {
	mu        sync.Mutex
	bySession map[string][]Event
	subs      map[int]chan Event
	nextSub   int
}

// NewEventLog creates an empty event log.
func NewEventLog() *EventLog {
	return &EventLog{
		bySession: make(map[string][]Event),
		subs:      make(map[int]chan Event),
	}
}

// Append records an event and notifies subscribers.
func (l *EventLog) Append(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	l.bySession[e.SessionID] = append(l.bySession[e.SessionID], e)
	for _, ch := range l.subs {
		select {
		case ch <- e:
		default:
		}
	}
	l.mu.Unlock()
}

// Events returns a copy of the recorded events for a session, in order.
func (l *EventLog) Events(sessionID string) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	events := l.bySession[sessionID]
	out := make([]Event, len(events))
	copy(out, events)
	return out
}

// Subscribe returns a live event feed and a cancel function. The feed
// is closed when cancelled.
func (l *EventLog) Subscribe() (<-chan Event, func()) {
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	ch := make(chan Event, subscriberBuffer)
	l.subs[id] = ch
	l.mu.Unlock()

	cancel := func() {
		l.mu.Lock()
		if sub, ok := l.subs[id]; ok {
			delete(l.subs, id)
			close(sub)
		}
		l.mu.Unlock()
	}
	return ch, cancel
}

// ClearOldEvents drops events older than the given age and returns how
// many were removed. Sessions left with no events are forgotten.
func (l *EventLog) ClearOldEvents(age time.Duration) int {
	cutoff := time.Now().UTC().Add(-age)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for sessionID, events := range l.bySession {
		kept := events[:0]
		for _, e := range events {
			if e.Timestamp.After(cutoff) {
				kept = append(kept, e)
			} else {
				removed++
			}
		}
		if len(kept) == 0 {
			delete(l.bySession, sessionID)
		} else {
			l.bySession[sessionID] = kept
		}
	}
	return removed
}
