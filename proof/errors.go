package proof

import (
	sdkerrors "cosmossdk.io/errors"
)

// Proof module sentinel errors. Structural failures only; a proof that
// decodes but does not match its witness is reported as a false
// verification result, not an error.

const codespace = "proof"

var (
	ErrMissingField   = sdkerrors.Register(codespace, 2, "witness field missing")
	ErrInvalidWitness = sdkerrors.Register(codespace, 3, "invalid witness encoding")
	ErrMalformedProof = sdkerrors.Register(codespace, 4, "malformed proof bytes")
	ErrUnknownMode    = sdkerrors.Register(codespace, 5, "unknown proof engine mode")
)
