package settlement

import (
	"context"
	"testing"
	"time"

	"cosmossdk.io/log"
	sdkmath "cosmossdk.io/math"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/lattica-ai/settle/chain"
	"github.com/lattica-ai/settle/proof"
	"github.com/lattica-ai/settle/store"
	"github.com/lattica-ai/settle/testutil"
)

type orchestratorFixture struct {
	orch      *Orchestrator
	client    *testutil.FakeChainClient
	sessions  *chain.MemorySessionRegistry
	validator *Validator
	results   *store.ResultStore
	clock     *clockwork.FakeClock
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	registry := chain.DefaultRegistry()
	client := testutil.NewFakeChainClient()
	sessions := chain.NewMemorySessionRegistry()
	results := store.NewResultStore()
	proofs := store.NewProofStore()
	logger := log.NewNopLogger()

	validator := NewValidator(results, proofs, proof.NewMockEngine(), testModelPath, logger)
	distributor := NewDistributor(registry, logger)
	clock := clockwork.NewFakeClock()

	orch := NewOrchestrator(DefaultConfig(), sessions, registry, client, validator, distributor, clock, logger)
	return &orchestratorFixture{
		orch:      orch,
		client:    client,
		sessions:  sessions,
		validator: validator,
		results:   results,
		clock:     clock,
	}
}

// addSettleableSession registers a session with a proven result, ready
// to settle.
func (f *orchestratorFixture) addSettleableSession(t *testing.T, sessionID string, jobID uint64) *chain.Session {
	t.Helper()
	s := &chain.Session{
		ID:            sessionID,
		ChainID:       testChainID,
		JobID:         jobID,
		Deposit:       sdkmath.NewInt(1_000_000),
		PricePerToken: sdkmath.NewInt(100),
		MaxTokens:     10_000,
		StartedAt:     time.Now(),
	}
	f.sessions.Put(s)

	res := testResult(jobID)
	f.results.Put(res)
	_, err := f.validator.ProveResult(context.Background(), jobID)
	require.NoError(t, err)
	return s
}

// settleAsync runs SettleSession in the background and releases the
// fake clock whenever the orchestrator sleeps between retries.
func (f *orchestratorFixture) settleAsync(ctx context.Context, sessionID string, chainID uint64) <-chan error {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		err := f.orch.SettleSession(ctx, sessionID, chainID)
		cancel()
		done <- err
	}()
	go func() {
		for {
			if f.clock.BlockUntilContext(ctx, 1) != nil {
				return
			}
			f.clock.Advance(2 * time.Minute)
		}
	}()
	return done
}

func TestSettleSessionHappyPath(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.addSettleableSession(t, "sess-1", 7)

	require.NoError(t, f.orch.SettleSession(context.Background(), "sess-1", testChainID))

	subs := f.client.Submissions()
	require.Len(t, subs, 1)

	// settleSession(jobID, host, treasury, refund): 1000 tokens at
	// price 100 from a 1,000,000 deposit.
	require.EqualValues(t, 7, chain.DecodeWord(subs[0].Calldata, 0).Uint64())
	require.EqualValues(t, 90_000, chain.DecodeWord(subs[0].Calldata, 1).Uint64())
	require.EqualValues(t, 10_000, chain.DecodeWord(subs[0].Calldata, 2).Uint64())
	require.EqualValues(t, 900_000, chain.DecodeWord(subs[0].Calldata, 3).Uint64())

	// Settlement cleans up the session and the validator's state.
	_, ok := f.sessions.Session("sess-1")
	require.False(t, ok)
	require.False(t, f.validator.HasRequiredData(7))

	events := f.orch.Events("sess-1")
	require.Len(t, events, 2)
	require.Equal(t, EventInitiated, events[0].Type)
	require.Equal(t, EventConfirmed, events[1].Type)
	require.NotEmpty(t, events[1].TxHash)
}

func TestSettleSessionUnknownSession(t *testing.T) {
	f := newOrchestratorFixture(t)

	err := f.orch.SettleSession(context.Background(), "nope", testChainID)
	require.ErrorIs(t, err, ErrSessionNotFound)
	require.Zero(t, f.client.SubmissionCount())
}

func TestSettleSessionWrongChain(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.addSettleableSession(t, "sess-1", 7)

	err := f.orch.SettleSession(context.Background(), "sess-1", otherChainID)
	require.ErrorIs(t, err, ErrSettlementFailed)

	// Nothing was submitted anywhere and the session survives.
	require.Zero(t, f.client.SubmissionCount())
	_, ok := f.sessions.Session("sess-1")
	require.True(t, ok)
}

func TestSettleSessionValidationFailureDoesNotRetry(t *testing.T) {
	f := newOrchestratorFixture(t)

	// Session without a result: validation fails immediately and the
	// failure is not retried on chain.
	f.sessions.Put(&chain.Session{
		ID:            "sess-1",
		ChainID:       testChainID,
		JobID:         7,
		Deposit:       sdkmath.NewInt(1_000_000),
		PricePerToken: sdkmath.NewInt(100),
		MaxTokens:     10_000,
	})

	err := f.orch.SettleSession(context.Background(), "sess-1", testChainID)
	require.ErrorIs(t, err, ErrMissingResult)
	require.Zero(t, f.client.SubmissionCount())

	events := f.orch.Events("sess-1")
	require.Equal(t, EventFailed, events[len(events)-1].Type)
}

func TestSettleSessionRetriesTransientFailure(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.addSettleableSession(t, "sess-1", 7)

	f.client.FailSubmissions(1)

	err := <-f.settleAsync(context.Background(), "sess-1", testChainID)
	require.NoError(t, err)
	require.Equal(t, 1, f.client.SubmissionCount())

	var retries int
	for _, e := range f.orch.Events("sess-1") {
		if e.Type == EventRetry {
			retries++
		}
	}
	require.Equal(t, 1, retries)
}

func TestSettleSessionSucceedsOnFinalRetry(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.addSettleableSession(t, "sess-1", 7)

	// MaxRetries of 3 allows four attempts: the initial one plus three
	// retries. Exhaust everything but the last.
	f.client.FailSubmissions(3)

	err := <-f.settleAsync(context.Background(), "sess-1", testChainID)
	require.NoError(t, err)
	require.Equal(t, 1, f.client.SubmissionCount())

	var retries int
	for _, e := range f.orch.Events("sess-1") {
		if e.Type == EventRetry {
			retries++
		}
	}
	require.Equal(t, 3, retries)
}

func TestSettleSessionQueuesAfterExhaustion(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.addSettleableSession(t, "sess-1", 7)

	// The initial attempt and all three retries fail; the settlement
	// lands in the queue.
	f.client.FailSubmissions(4)

	err := <-f.settleAsync(context.Background(), "sess-1", testChainID)
	require.ErrorIs(t, err, ErrMaxRetriesExceeded)

	queued := f.orch.QueuedSettlements()
	require.Len(t, queued, 1)
	require.Equal(t, "sess-1", queued[0].SessionID)
	require.Equal(t, PriorityLow, queued[0].Priority)
	require.Equal(t, 4, queued[0].Attempts)
	require.NotEmpty(t, queued[0].ID)

	// The full lifecycle is on the event log: Initiated, three Retry
	// events, the terminal Failed, then Queued.
	events := f.orch.Events("sess-1")
	require.Len(t, events, 6)
	require.Equal(t, EventInitiated, events[0].Type)
	require.Equal(t, EventRetry, events[1].Type)
	require.Equal(t, EventRetry, events[2].Type)
	require.Equal(t, EventRetry, events[3].Type)
	require.Equal(t, EventFailed, events[4].Type)
	require.Equal(t, 4, events[4].Attempt)
	require.NotEmpty(t, events[4].Error)
	require.Equal(t, EventQueued, events[5].Type)

	// The session was not consumed; the chain recovers and the queue
	// drains successfully.
	f.orch.ProcessQueue(context.Background())
	require.Empty(t, f.orch.QueuedSettlements())
	require.Equal(t, 1, f.client.SubmissionCount())
	_, ok := f.sessions.Session("sess-1")
	require.False(t, ok)
}

func TestCancelQueuedSettlement(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.addSettleableSession(t, "sess-1", 7)
	f.client.FailSubmissions(4)

	err := <-f.settleAsync(context.Background(), "sess-1", testChainID)
	require.ErrorIs(t, err, ErrMaxRetriesExceeded)

	queued := f.orch.QueuedSettlements()
	require.Len(t, queued, 1)
	require.True(t, f.orch.CancelQueued(queued[0].ID))
	require.False(t, f.orch.CancelQueued(queued[0].ID))
	require.Empty(t, f.orch.QueuedSettlements())
}

func TestProcessQueueDropsMissingSessions(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.addSettleableSession(t, "sess-1", 7)
	f.client.FailSubmissions(4)

	err := <-f.settleAsync(context.Background(), "sess-1", testChainID)
	require.ErrorIs(t, err, ErrMaxRetriesExceeded)

	f.sessions.Remove("sess-1")
	f.orch.ProcessQueue(context.Background())
	require.Empty(t, f.orch.QueuedSettlements())
	require.Zero(t, f.client.SubmissionCount())
}

func TestHandleDisconnectSettlesOnSessionChain(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.addSettleableSession(t, "sess-1", 7)

	require.NoError(t, f.orch.HandleDisconnect(context.Background(), "sess-1"))
	require.Equal(t, 1, f.client.SubmissionCount())

	require.ErrorIs(t, f.orch.HandleDisconnect(context.Background(), "sess-1"), ErrSessionNotFound)
}

func TestConcurrentSettlementsIndependent(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.addSettleableSession(t, "sess-1", 1)
	f.addSettleableSession(t, "sess-2", 2)

	errs := make(chan error, 2)
	go func() { errs <- f.orch.SettleSession(context.Background(), "sess-1", testChainID) }()
	go func() { errs <- f.orch.SettleSession(context.Background(), "sess-2", testChainID) }()

	require.NoError(t, <-errs)
	require.NoError(t, <-errs)
	require.Equal(t, 2, f.client.SubmissionCount())
}

func TestSubscribeReceivesLiveEvents(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.addSettleableSession(t, "sess-1", 7)

	feed, cancel := f.orch.Subscribe()
	defer cancel()

	require.NoError(t, f.orch.SettleSession(context.Background(), "sess-1", testChainID))

	first := <-feed
	require.Equal(t, EventInitiated, first.Type)
	second := <-feed
	require.Equal(t, EventConfirmed, second.Type)
}
