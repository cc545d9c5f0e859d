package store

import (
	"sync"
	"time"
)

// InferenceResult is the completed output of one inference job, kept
// until the job settles.
type InferenceResult struct {
	JobID           uint64
	ModelID         string
	Prompt          string
	Response        string
	TokensGenerated uint64
	InferenceTimeMs uint64
	Timestamp       time.Time
	NodeID          string
	Metadata        map[string]string
}

// ResultStore holds inference results keyed by job id. Storing a result
// for an existing job replaces the previous one.
type ResultStore struct {
	mu      sync.RWMutex
	results map[uint64]*InferenceResult
}

// NewResultStore creates an empty result store.
func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[uint64]*InferenceResult)}
}

// Put stores the result under its job id.
func (s *ResultStore) Put(res *InferenceResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[res.JobID] = res
}

// Get returns the result for a job, if present.
func (s *ResultStore) Get(jobID uint64) (*InferenceResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.results[jobID]
	return res, ok
}

// Has reports whether a result is stored for the job.
func (s *ResultStore) Has(jobID uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.results[jobID]
	return ok
}

// Remove deletes the result for a job. Unknown ids are a no-op.
func (s *ResultStore) Remove(jobID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.results, jobID)
}

// Len returns the number of stored results.
func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}
