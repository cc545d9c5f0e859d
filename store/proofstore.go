package store

import (
	"sync"

	"github.com/lattica-ai/settle/proof"
)

// ProofStore holds the latest proof record per job. Checkpoints for the
// same job overwrite each other; settlement only ever needs the most
// recent proof.
type ProofStore struct {
	mu     sync.RWMutex
	proofs map[uint64]*proof.Record
}

// NewProofStore creates an empty proof store.
func NewProofStore() *ProofStore {
	return &ProofStore{proofs: make(map[uint64]*proof.Record)}
}

// Put stores the proof record for a job, replacing any previous one.
func (s *ProofStore) Put(jobID uint64, rec *proof.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proofs[jobID] = rec
}

// Get returns the latest proof record for a job, if present.
func (s *ProofStore) Get(jobID uint64) (*proof.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.proofs[jobID]
	return rec, ok
}

// Has reports whether a proof is stored for the job.
func (s *ProofStore) Has(jobID uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.proofs[jobID]
	return ok
}

// Remove deletes the proof for a job. Unknown ids are a no-op.
func (s *ProofStore) Remove(jobID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.proofs, jobID)
}

// Len returns the number of jobs with a stored proof.
func (s *ProofStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.proofs)
}
