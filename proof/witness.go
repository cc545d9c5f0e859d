package proof

import (
	"crypto/sha256"

	sdkerrors "cosmossdk.io/errors"
)

// HashSize is the size of each witness field in bytes.
const HashSize = sha256.Size

// WitnessSize is the serialized size of a witness: four 32-byte hashes.
const WitnessSize = 4 * HashSize

// Witness binds a single inference to its commitments: the job identity,
// the model that served it, and the exact input and output. All four
// fields are SHA-256 digests, so the witness is content-addressed and
// deterministic for identical inference data.
type Witness struct {
	JobID      [HashSize]byte
	ModelHash  [HashSize]byte
	InputHash  [HashSize]byte
	OutputHash [HashSize]byte
}

// Bytes serializes the witness as job || model || input || output.
func (w *Witness) Bytes() []byte {
	out := make([]byte, 0, WitnessSize)
	out = append(out, w.JobID[:]...)
	out = append(out, w.ModelHash[:]...)
	out = append(out, w.InputHash[:]...)
	out = append(out, w.OutputHash[:]...)
	return out
}

// Digest returns the SHA-256 digest of the serialized witness.
func (w *Witness) Digest() [HashSize]byte {
	return sha256.Sum256(w.Bytes())
}

// WitnessFromBytes reconstructs a witness from its 128-byte serialization.
func WitnessFromBytes(data []byte) (*Witness, error) {
	if len(data) != WitnessSize {
		return nil, sdkerrors.Wrapf(ErrInvalidWitness, "expected %d bytes, got %d", WitnessSize, len(data))
	}
	var w Witness
	copy(w.JobID[:], data[0:32])
	copy(w.ModelHash[:], data[32:64])
	copy(w.InputHash[:], data[64:96])
	copy(w.OutputHash[:], data[96:128])
	return &w, nil
}

// WitnessBuilder assembles a witness field by field. Build fails if any
// field was never set; the error names the missing field.
type WitnessBuilder struct {
	jobID      *[HashSize]byte
	modelHash  *[HashSize]byte
	inputHash  *[HashSize]byte
	outputHash *[HashSize]byte
}

// NewWitnessBuilder creates an empty builder.
func NewWitnessBuilder() *WitnessBuilder {
	return &WitnessBuilder{}
}

// WithJobID sets the job commitment from a raw hash.
func (b *WitnessBuilder) WithJobID(h [HashSize]byte) *WitnessBuilder {
	b.jobID = &h
	return b
}

// WithJobIDString sets the job commitment from the SHA-256 of a job id string.
func (b *WitnessBuilder) WithJobIDString(jobID string) *WitnessBuilder {
	h := sha256.Sum256([]byte(jobID))
	b.jobID = &h
	return b
}

// WithModelHash sets the model commitment from a raw hash.
func (b *WitnessBuilder) WithModelHash(h [HashSize]byte) *WitnessBuilder {
	b.modelHash = &h
	return b
}

// WithModelPath sets the model commitment from the SHA-256 of a model path.
func (b *WitnessBuilder) WithModelPath(path string) *WitnessBuilder {
	h := sha256.Sum256([]byte(path))
	b.modelHash = &h
	return b
}

// WithInputHash sets the input commitment from a raw hash.
func (b *WitnessBuilder) WithInputHash(h [HashSize]byte) *WitnessBuilder {
	b.inputHash = &h
	return b
}

// WithInputString sets the input commitment from the SHA-256 of the prompt.
func (b *WitnessBuilder) WithInputString(input string) *WitnessBuilder {
	h := sha256.Sum256([]byte(input))
	b.inputHash = &h
	return b
}

// WithOutputHash sets the output commitment from a raw hash.
func (b *WitnessBuilder) WithOutputHash(h [HashSize]byte) *WitnessBuilder {
	b.outputHash = &h
	return b
}

// WithOutputString sets the output commitment from the SHA-256 of the response.
func (b *WitnessBuilder) WithOutputString(output string) *WitnessBuilder {
	h := sha256.Sum256([]byte(output))
	b.outputHash = &h
	return b
}

// Build validates that every field was set and returns the witness.
func (b *WitnessBuilder) Build() (*Witness, error) {
	if b.jobID == nil {
		return nil, sdkerrors.Wrap(ErrMissingField, "job_id")
	}
	if b.modelHash == nil {
		return nil, sdkerrors.Wrap(ErrMissingField, "model_hash")
	}
	if b.inputHash == nil {
		return nil, sdkerrors.Wrap(ErrMissingField, "input_hash")
	}
	if b.outputHash == nil {
		return nil, sdkerrors.Wrap(ErrMissingField, "output_hash")
	}
	return &Witness{
		JobID:      *b.jobID,
		ModelHash:  *b.modelHash,
		InputHash:  *b.inputHash,
		OutputHash: *b.outputHash,
	}, nil
}
