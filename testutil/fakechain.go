package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/lattica-ai/settle/chain"
)

// SubmittedTx records one transaction sent through the fake client.
type SubmittedTx struct {
	To       string
	Value    sdkmath.Int
	Calldata []byte
	Hash     chain.TxHandle
}

// FakeChainClient is an in-memory chain.Client for tests. Failures are
// injected per call: the next N submissions, confirmations, or receipts
// can be made to fail, after which the client recovers.
type FakeChainClient struct {
	mu           sync.Mutex
	seq          int
	submissions  []SubmittedTx
	failSubmits  int
	failConfirms int
	revertNext   int
	blockNumber  uint64
}

// NewFakeChainClient creates a fake client that confirms everything.
func NewFakeChainClient() *FakeChainClient {
	return &FakeChainClient{blockNumber: 1000}
}

// FailSubmissions makes the next n SubmitTransaction calls fail.
func (c *FakeChainClient) FailSubmissions(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failSubmits = n
}

// FailConfirmations makes the next n WaitForConfirmation calls fail.
func (c *FakeChainClient) FailConfirmations(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failConfirms = n
}

// RevertNext makes the next n confirmations report a reverted receipt.
func (c *FakeChainClient) RevertNext(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revertNext = n
}

// SubmitTransaction records the calldata and returns a synthetic handle.
func (c *FakeChainClient) SubmitTransaction(ctx context.Context, to string, value sdkmath.Int, calldata []byte) (chain.TxHandle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failSubmits > 0 {
		c.failSubmits--
		return "", errors.New("rpc: connection refused")
	}

	c.seq++
	data := make([]byte, len(calldata))
	copy(data, calldata)
	tx := SubmittedTx{
		To:       to,
		Value:    value,
		Calldata: data,
		Hash:     chain.TxHandle(fmt.Sprintf("0xtx%04d", c.seq)),
	}
	c.submissions = append(c.submissions, tx)
	return tx.Hash, nil
}

// WaitForConfirmation returns a receipt for the handle.
func (c *FakeChainClient) WaitForConfirmation(ctx context.Context, tx chain.TxHandle) (*chain.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failConfirms > 0 {
		c.failConfirms--
		return nil, errors.New("rpc: timeout waiting for receipt")
	}

	c.blockNumber++
	status := chain.StatusSuccess
	if c.revertNext > 0 {
		c.revertNext--
		status = chain.StatusFailed
	}
	return &chain.Receipt{Status: status, BlockNumber: c.blockNumber, TxHash: tx}, nil
}

// Submissions returns a copy of all recorded transactions.
func (c *FakeChainClient) Submissions() []SubmittedTx {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SubmittedTx, len(c.submissions))
	copy(out, c.submissions)
	return out
}

// SubmissionCount returns the number of accepted transactions.
func (c *FakeChainClient) SubmissionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.submissions)
}

var _ chain.Client = (*FakeChainClient)(nil)
