package settlement

import (
	"context"
	"strconv"
	"time"

	sdkerrors "cosmossdk.io/errors"
	"cosmossdk.io/log"
	sdkmath "cosmossdk.io/math"
	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/lattica-ai/settle/chain"
)

// RetryConfig controls retry behavior for transient settlement
// failures.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt,
	// so MaxRetries of 3 allows up to four attempts in total.
	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
}

// DefaultRetryConfig returns the standard retry policy: an initial
// attempt plus three retries, with delays growing 1s, 2s, ... capped at
// one minute.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialDelay:    1 * time.Second,
		MaxDelay:        60 * time.Second,
		ExponentialBase: 2.0,
	}
}

// Config configures the orchestrator.
type Config struct {
	Retry RetryConfig

	// ConcurrentSettlements bounds parallelism when reprocessing the
	// queue.
	ConcurrentSettlements int
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		Retry:                 DefaultRetryConfig(),
		ConcurrentSettlements: 10,
	}
}

// Orchestrator drives session settlement end to end: validation,
// payment split, on-chain submission with retry, and queueing when the
// chain stays unreachable. Settlements for different sessions are
// independent and may run concurrently.
type Orchestrator struct {
	cfg         Config
	sessions    chain.SessionRegistry
	chains      *chain.Registry
	client      chain.Client
	validator   *Validator
	distributor *Distributor
	queue       *Queue
	events      *EventLog
	clock       clockwork.Clock
	logger      log.Logger
	metrics     *Metrics
}

// NewOrchestrator creates a settlement orchestrator. Pass
// clockwork.NewRealClock() outside of tests.
func NewOrchestrator(
	cfg Config,
	sessions chain.SessionRegistry,
	chains *chain.Registry,
	client chain.Client,
	validator *Validator,
	distributor *Distributor,
	clock clockwork.Clock,
	logger log.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		sessions:    sessions,
		chains:      chains,
		client:      client,
		validator:   validator,
		distributor: distributor,
		queue:       NewQueue(),
		events:      NewEventLog(),
		clock:       clock,
		logger:      logger.With("component", "settlement_orchestrator"),
		metrics:     NewMetrics(),
	}
}

// HandleDisconnect settles a session on the chain it was opened on,
// triggered by the client's transport going away.
func (o *Orchestrator) HandleDisconnect(ctx context.Context, sessionID string) error {
	s, ok := o.sessions.Session(sessionID)
	if !ok {
		return sdkerrors.Wrapf(ErrSessionNotFound, "session %s", sessionID)
	}
	return o.SettleSession(ctx, sessionID, s.ChainID)
}

// SettleSession settles a session on the named chain. The chain id must
// match the one the session was opened on; a mismatch fails without
// touching any chain. Transient submission failures are retried with
// exponential backoff; exhaustion queues the settlement and returns
// ErrMaxRetriesExceeded.
func (o *Orchestrator) SettleSession(ctx context.Context, sessionID string, chainID uint64) error {
	s, ok := o.sessions.Session(sessionID)
	if !ok {
		return sdkerrors.Wrapf(ErrSessionNotFound, "session %s", sessionID)
	}
	if s.ChainID != chainID {
		return sdkerrors.Wrapf(ErrSettlementFailed,
			"session %s was opened on chain %d, refusing to settle on chain %d", sessionID, s.ChainID, chainID)
	}
	cfg, ok := o.chains.Config(chainID)
	if !ok {
		return sdkerrors.Wrapf(ErrUnsupportedChain, "chain %d", chainID)
	}

	o.events.Append(Event{Type: EventInitiated, SessionID: sessionID, ChainID: chainID})

	bo := o.newBackoff()
	retries := o.cfg.Retry.MaxRetries
	if retries < 0 {
		retries = 0
	}
	// MaxRetries counts retries beyond the initial attempt.
	attempts := 1 + retries

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		tx, retryable, err := o.settleOnce(ctx, s, cfg)
		if err == nil {
			o.events.Append(Event{Type: EventConfirmed, SessionID: sessionID, ChainID: chainID, Attempt: attempt, TxHash: tx})
			o.metrics.SettlementsConfirmed.WithLabelValues(strconv.FormatUint(chainID, 10)).Inc()
			o.logger.Info("session settled", "session_id", sessionID, "chain_id", chainID, "tx", tx, "attempt", attempt)
			return nil
		}
		if !retryable {
			o.events.Append(Event{Type: EventFailed, SessionID: sessionID, ChainID: chainID, Attempt: attempt, Error: err.Error()})
			o.metrics.SettlementsFailed.WithLabelValues(strconv.FormatUint(chainID, 10), "validation").Inc()
			return err
		}

		lastErr = err
		if attempt < attempts {
			delay := bo.NextBackOff()
			o.events.Append(Event{Type: EventRetry, SessionID: sessionID, ChainID: chainID, Attempt: attempt, Error: err.Error()})
			o.metrics.SettlementRetries.Inc()
			o.logger.Info("settlement attempt failed, retrying",
				"session_id", sessionID, "attempt", attempt, "delay", delay, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-o.clock.After(delay):
			}
		}
	}

	// Retries exhausted: record the terminal failure, then park the
	// settlement instead of dropping it.
	o.events.Append(Event{Type: EventFailed, SessionID: sessionID, ChainID: chainID, Attempt: attempts, Error: lastErr.Error()})
	o.metrics.SettlementsFailed.WithLabelValues(strconv.FormatUint(chainID, 10), "retries_exhausted").Inc()
	item := o.queue.Enqueue(sessionID, chainID, PriorityLow, attempts, lastErr.Error())
	o.events.Append(Event{Type: EventQueued, SessionID: sessionID, ChainID: chainID, Attempt: attempts, Error: lastErr.Error()})
	o.metrics.SettlementsQueued.Inc()
	o.metrics.QueueDepth.Set(float64(o.queue.Len()))
	o.logger.Error("settlement queued after exhausting retries",
		"session_id", sessionID, "chain_id", chainID, "queue_id", item.ID, "error", lastErr)
	return sdkerrors.Wrapf(ErrMaxRetriesExceeded, "session %s after %d attempts: %v", sessionID, attempts, lastErr)
}

// settleOnce runs a single settlement attempt. The retryable flag is
// false for validation and calculation failures, which no amount of
// resubmission can fix.
func (o *Orchestrator) settleOnce(ctx context.Context, s *chain.Session, cfg chain.Config) (chain.TxHandle, bool, error) {
	verified, err := o.validator.ValidateBeforeSettlement(ctx, s.JobID)
	if err != nil {
		return "", false, err
	}
	if !verified {
		return "", false, sdkerrors.Wrapf(ErrSettlementFailed, "proof verification failed for job %d", s.JobID)
	}

	res, ok := o.validator.Result(s.JobID)
	if !ok {
		return "", false, sdkerrors.Wrapf(ErrMissingResult, "job %d", s.JobID)
	}

	split, err := o.distributor.CalculatePaymentSplit(cfg.ChainID, s.Deposit, res.TokensGenerated, s.MaxTokens, s.PricePerToken)
	if err != nil {
		return "", false, err
	}

	calldata := chain.EncodeSessionSettlement(s.JobID, split.HostAmount, split.TreasuryAmount, split.RefundAmount)
	tx, err := o.client.SubmitTransaction(ctx, cfg.ContractAddress, sdkmath.ZeroInt(), calldata)
	if err != nil {
		return "", true, sdkerrors.Wrapf(ErrSettlementFailed, "submit: %v", err)
	}
	rcpt, err := o.client.WaitForConfirmation(ctx, tx)
	if err != nil {
		return "", true, sdkerrors.Wrapf(ErrSettlementFailed, "confirm %s: %v", tx, err)
	}
	if !rcpt.Succeeded() {
		return "", true, sdkerrors.Wrapf(ErrSettlementFailed, "transaction %s reverted", tx)
	}

	if _, err := o.distributor.ProcessPayment(cfg.ChainID, s.JobID, res.NodeID, split, NativeToken(cfg)); err != nil {
		// The chain transaction already landed; the local ledger
		// failure must not fail the settlement.
		o.logger.Error("payment ledger update failed", "session_id", s.ID, "error", err)
	}

	o.validator.CleanupJob(s.JobID)
	o.sessions.Remove(s.ID)
	return tx, false, nil
}

// ProcessQueue reattempts every queued settlement with bounded
// parallelism. Settlements whose session has since disappeared are
// dropped; ones that fail again re-enter the queue through the normal
// exhaustion path.
func (o *Orchestrator) ProcessQueue(ctx context.Context) {
	items := o.queue.Drain()
	o.metrics.QueueDepth.Set(float64(o.queue.Len()))
	if len(items) == 0 {
		return
	}

	g := new(errgroup.Group)
	g.SetLimit(o.cfg.ConcurrentSettlements)
	for _, item := range items {
		g.Go(func() error {
			err := o.SettleSession(ctx, item.SessionID, item.ChainID)
			switch {
			case err == nil:
				o.logger.Info("queued settlement completed", "session_id", item.SessionID, "queue_id", item.ID)
			case sdkerrors.IsOf(err, ErrSessionNotFound):
				o.logger.Info("dropping queued settlement for missing session", "session_id", item.SessionID)
			default:
				o.logger.Error("queued settlement failed", "session_id", item.SessionID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	o.metrics.QueueDepth.Set(float64(o.queue.Len()))
}

// CancelQueued removes a queued settlement by id.
func (o *Orchestrator) CancelQueued(id string) bool {
	ok := o.queue.Cancel(id)
	o.metrics.QueueDepth.Set(float64(o.queue.Len()))
	return ok
}

// QueuedSettlements returns the settlements currently parked in the
// queue.
func (o *Orchestrator) QueuedSettlements() []*QueuedSettlement {
	return o.queue.Pending()
}

// Events returns the recorded settlement events for a session.
func (o *Orchestrator) Events(sessionID string) []Event {
	return o.events.Events(sessionID)
}

// Subscribe returns a live feed of settlement events.
func (o *Orchestrator) Subscribe() (<-chan Event, func()) {
	return o.events.Subscribe()
}

// ClearOldEvents drops settlement events older than age.
func (o *Orchestrator) ClearOldEvents(age time.Duration) int {
	return o.events.ClearOldEvents(age)
}

func (o *Orchestrator) newBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = o.cfg.Retry.InitialDelay
	bo.MaxInterval = o.cfg.Retry.MaxDelay
	bo.Multiplier = o.cfg.Retry.ExponentialBase
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}
