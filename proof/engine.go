package proof

import (
	"context"

	sdkerrors "cosmossdk.io/errors"
)

// Prover generates a commitment proof over a witness.
type Prover interface {
	GenerateProof(ctx context.Context, w *Witness) (*Record, error)
}

// Verifier checks a proof record against a presented witness. The boolean
// result reports whether the proof commits to exactly that witness; an
// error is returned only for structurally invalid proof bytes.
type Verifier interface {
	VerifyProof(ctx context.Context, rec *Record, w *Witness) (bool, error)
}

// Engine is a matched prover/verifier pair.
type Engine interface {
	Prover
	Verifier
}

// Mode selects the proof backend.
type Mode string

const (
	// ModeMock produces structured placeholder proofs. Fast, no trusted
	// setup, suitable for tests and development networks.
	ModeMock Mode = "mock"

	// ModeGroth16 produces Groth16 proofs over BN254 with a MiMC
	// commitment circuit.
	ModeGroth16 Mode = "groth16"
)

// NewEngine constructs the proof engine for the given mode.
func NewEngine(mode Mode) (Engine, error) {
	switch mode {
	case ModeMock:
		return NewMockEngine(), nil
	case ModeGroth16:
		return NewGroth16Engine()
	default:
		return nil, sdkerrors.Wrapf(ErrUnknownMode, "%q", mode)
	}
}
