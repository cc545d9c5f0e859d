package chain

import (
	"context"

	sdkmath "cosmossdk.io/math"
)

// TxHandle identifies a submitted transaction on its chain.
type TxHandle string

// Receipt statuses.
const (
	StatusFailed  uint64 = 0
	StatusSuccess uint64 = 1
)

// Receipt is the confirmed outcome of a transaction.
type Receipt struct {
	Status      uint64
	BlockNumber uint64
	TxHash      TxHandle
}

// Succeeded reports whether the transaction executed successfully.
func (r *Receipt) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Client is the transaction surface of a settlement chain. Key
// management, nonce handling, gas pricing, and reconnection live behind
// this interface; the settlement core only submits calldata and waits
// for confirmation.
type Client interface {
	// SubmitTransaction sends calldata to the target contract and
	// returns a handle for the pending transaction.
	SubmitTransaction(ctx context.Context, to string, value sdkmath.Int, calldata []byte) (TxHandle, error)

	// WaitForConfirmation blocks until the transaction is confirmed to
	// the chain's configured depth or ctx is done.
	WaitForConfirmation(ctx context.Context, tx TxHandle) (*Receipt, error)
}
