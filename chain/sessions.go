package chain

import (
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
)

// Session is one client's inference session, opened with a deposit on a
// specific chain. The session id is the key the transport layer uses;
// the numeric job id is what goes on chain.
type Session struct {
	ID            string
	ChainID       uint64
	JobID         uint64
	Deposit       sdkmath.Int
	PricePerToken sdkmath.Int
	MaxTokens     uint64
	StartedAt     time.Time
}

// SessionRegistry resolves session ids to their chain and payment terms.
type SessionRegistry interface {
	Session(id string) (*Session, bool)
	Put(s *Session)
	Remove(id string)
	Len() int
}

// MemorySessionRegistry is an in-memory SessionRegistry.
type MemorySessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemorySessionRegistry creates an empty session registry.
func NewMemorySessionRegistry() *MemorySessionRegistry {
	return &MemorySessionRegistry{sessions: make(map[string]*Session)}
}

// Session looks up a session by id.
func (r *MemorySessionRegistry) Session(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Put stores or replaces a session.
func (r *MemorySessionRegistry) Put(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

// Remove deletes a session. Removing an unknown id is a no-op.
func (r *MemorySessionRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Len returns the number of tracked sessions.
func (r *MemorySessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
