package proof

import "time"

// Record is a generated proof together with the hashes it commits to.
// The job identity is committed inside the proof itself, so the record
// carries only the model, input, and output hashes for later lookups.
type Record struct {
	ProofBytes []byte
	Timestamp  time.Time
	ModelHash  [HashSize]byte
	InputHash  [HashSize]byte
	OutputHash [HashSize]byte
}
