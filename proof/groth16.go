package proof

import (
	"bytes"
	"context"
	"time"

	sdkerrors "cosmossdk.io/errors"
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// Groth16Engine produces Groth16 proofs over BN254 for the commitment
// circuit. The circuit is compiled and the keys generated once at
// construction; proof size is constant and verification is sub-second.
type Groth16Engine struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
}

// NewGroth16Engine compiles the commitment circuit and runs the Groth16
// setup. Setup here is local; a deployment that needs a shared verifying
// key would distribute the keys out of band instead.
func NewGroth16Engine() (*Groth16Engine, error) {
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &commitmentCircuit{})
	if err != nil {
		return nil, sdkerrors.Wrap(ErrMalformedProof, err.Error())
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, sdkerrors.Wrap(ErrMalformedProof, err.Error())
	}
	return &Groth16Engine{ccs: ccs, pk: pk, vk: vk}, nil
}

// assignment builds the full circuit assignment for a witness.
func (e *Groth16Engine) assignment(w *Witness) *commitmentCircuit {
	a := &commitmentCircuit{Commitment: commitWitness(w)}
	for i := 0; i < HashSize; i++ {
		a.JobID[i] = w.JobID[i]
		a.ModelHash[i] = w.ModelHash[i]
		a.InputHash[i] = w.InputHash[i]
		a.OutputHash[i] = w.OutputHash[i]
	}
	return a
}

// GenerateProof proves knowledge of the witness behind its commitment and
// returns the serialized proof.
func (e *Groth16Engine) GenerateProof(ctx context.Context, w *Witness) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	full, err := frontend.NewWitness(e.assignment(w), ecc.BN254.ScalarField())
	if err != nil {
		return nil, sdkerrors.Wrap(ErrInvalidWitness, err.Error())
	}
	prf, err := groth16.Prove(e.ccs, e.pk, full)
	if err != nil {
		return nil, sdkerrors.Wrap(ErrInvalidWitness, err.Error())
	}

	var buf bytes.Buffer
	if _, err := prf.WriteTo(&buf); err != nil {
		return nil, sdkerrors.Wrap(ErrMalformedProof, err.Error())
	}

	return &Record{
		ProofBytes: buf.Bytes(),
		Timestamp:  time.Now().UTC(),
		ModelHash:  w.ModelHash,
		InputHash:  w.InputHash,
		OutputHash: w.OutputHash,
	}, nil
}

// VerifyProof recomputes the commitment from the presented witness and
// verifies the proof against it. A proof that fails to deserialize is a
// structural error; a deserializable proof for a different witness
// verifies false.
func (e *Groth16Engine) VerifyProof(ctx context.Context, rec *Record, w *Witness) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if rec == nil || len(rec.ProofBytes) == 0 {
		return false, sdkerrors.Wrap(ErrMalformedProof, "empty proof")
	}

	prf := groth16.NewProof(ecc.BN254)
	if _, err := prf.ReadFrom(bytes.NewReader(rec.ProofBytes)); err != nil {
		return false, sdkerrors.Wrap(ErrMalformedProof, err.Error())
	}

	public, err := frontend.NewWitness(
		&commitmentCircuit{Commitment: commitWitness(w)},
		ecc.BN254.ScalarField(),
		frontend.PublicOnly(),
	)
	if err != nil {
		return false, sdkerrors.Wrap(ErrInvalidWitness, err.Error())
	}

	if err := groth16.Verify(prf, e.vk, public); err != nil {
		return false, nil
	}
	return true, nil
}
