package checkpoint

import (
	sdkerrors "cosmossdk.io/errors"
)

const codespace = "checkpoint"

var (
	ErrJobNotTracked        = sdkerrors.Register(codespace, 2, "job is not tracked")
	ErrSubmissionInProgress = sdkerrors.Register(codespace, 3, "checkpoint submission already in progress")
	ErrSubmissionFailed     = sdkerrors.Register(codespace, 4, "checkpoint submission failed")
)
