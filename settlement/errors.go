package settlement

import (
	sdkerrors "cosmossdk.io/errors"
)

// Settlement module sentinel errors. A proof that verifies false or a
// split that fails its audit is a boolean result, not an error; errors
// here mean settlement could not even be attempted or did not land.

const codespace = "settlement"

var (
	ErrMissingResult         = sdkerrors.Register(codespace, 2, "no inference result stored for job")
	ErrMissingProof          = sdkerrors.Register(codespace, 3, "no proof stored for job")
	ErrSessionNotFound       = sdkerrors.Register(codespace, 4, "session not found")
	ErrSettlementFailed      = sdkerrors.Register(codespace, 5, "settlement failed")
	ErrUnsupportedChain      = sdkerrors.Register(codespace, 6, "unsupported chain")
	ErrMaxRetriesExceeded    = sdkerrors.Register(codespace, 7, "settlement retries exhausted")
	ErrPaymentExceedsDeposit = sdkerrors.Register(codespace, 8, "payment exceeds session deposit")
)
