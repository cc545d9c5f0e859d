package checkpoint

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	sdkerrors "cosmossdk.io/errors"
	"cosmossdk.io/log"
	sdkmath "cosmossdk.io/math"

	"github.com/lattica-ai/settle/chain"
	"github.com/lattica-ai/settle/proof"
	"github.com/lattica-ai/settle/store"
)

// jobState is the tracked token counters of one job. Guarded by the
// tracker mutex.
type jobState struct {
	tokensGenerated      uint64
	lastCheckpoint       uint64
	sessionID            string
	submissionInProgress bool
}

// Snapshot is a read-only view of one job's checkpoint state.
type Snapshot struct {
	TokensGenerated uint64
	LastCheckpoint  uint64
	SessionID       string
	InFlight        bool
}

// Tracker accumulates generated tokens per job and periodically anchors
// them on chain. Checkpoints are optimistic: the counter advances before
// the transaction is sent and rolls back if it fails, so a crashed
// submission never loses tokens. At most one submission per job is in
// flight at a time; threshold crossings while one is pending are picked
// up by the next delta.
type Tracker struct {
	cfg     Config
	client  chain.Client
	engine  proof.Prover
	proofs  *store.ProofStore
	logger  log.Logger
	metrics *Metrics

	mu   sync.Mutex
	jobs map[uint64]*jobState
	wg   sync.WaitGroup
}

// NewTracker creates a checkpoint tracker.
func NewTracker(cfg Config, client chain.Client, engine proof.Prover, proofs *store.ProofStore, logger log.Logger) *Tracker {
	return &Tracker{
		cfg:     cfg,
		client:  client,
		engine:  engine,
		proofs:  proofs,
		logger:  logger.With("component", "checkpoint_tracker"),
		metrics: NewMetrics(),
		jobs:    make(map[uint64]*jobState),
	}
}

// TrackTokens records newly generated tokens for a job. When the
// unproven delta reaches the configured threshold and no submission is
// in flight, a checkpoint is submitted asynchronously.
func (t *Tracker) TrackTokens(ctx context.Context, jobID, tokensDelta uint64, sessionID string) error {
	t.mu.Lock()

	st, ok := t.jobs[jobID]
	if !ok {
		st = &jobState{}
		t.jobs[jobID] = st
		t.metrics.TrackedJobs.Inc()
	}
	st.tokensGenerated += tokensDelta
	st.sessionID = sessionID
	t.metrics.TokensTracked.Add(float64(tokensDelta))

	pending := st.tokensGenerated - st.lastCheckpoint
	if pending < t.cfg.Threshold || st.submissionInProgress {
		t.mu.Unlock()
		return nil
	}

	from := t.beginSubmissionLocked(st)
	to := st.lastCheckpoint
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if err := t.submit(context.WithoutCancel(ctx), jobID, from, to); err != nil {
			t.logger.Error("checkpoint submission failed", "job_id", jobID, "error", err)
		}
	}()
	return nil
}

// ForceCheckpoint synchronously submits whatever unproven delta the job
// has, bypassing the threshold. A zero delta is a no-op.
func (t *Tracker) ForceCheckpoint(ctx context.Context, jobID uint64) error {
	t.mu.Lock()
	st, ok := t.jobs[jobID]
	if !ok {
		t.mu.Unlock()
		return sdkerrors.Wrapf(ErrJobNotTracked, "job %d", jobID)
	}
	if st.submissionInProgress {
		t.mu.Unlock()
		return sdkerrors.Wrapf(ErrSubmissionInProgress, "job %d", jobID)
	}
	if st.tokensGenerated == st.lastCheckpoint {
		t.mu.Unlock()
		return nil
	}

	from := t.beginSubmissionLocked(st)
	to := st.lastCheckpoint
	t.mu.Unlock()

	return t.submit(ctx, jobID, from, to)
}

// CleanupJob submits a final checkpoint for any remaining tokens and
// removes the job's tracking state. The final checkpoint is best
// effort; a failure is logged and the state is removed regardless.
func (t *Tracker) CleanupJob(ctx context.Context, jobID uint64) {
	if err := t.ForceCheckpoint(ctx, jobID); err != nil && !sdkerrors.IsOf(err, ErrJobNotTracked) {
		t.logger.Error("final checkpoint failed during cleanup", "job_id", jobID, "error", err)
	}

	t.mu.Lock()
	if _, ok := t.jobs[jobID]; ok {
		delete(t.jobs, jobID)
		t.metrics.TrackedJobs.Dec()
	}
	t.mu.Unlock()
}

// TokenCount returns the total tokens recorded for a job.
func (t *Tracker) TokenCount(jobID uint64) (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.jobs[jobID]
	if !ok {
		return 0, false
	}
	return st.tokensGenerated, true
}

// Snapshot returns the current checkpoint state of a job.
func (t *Tracker) Snapshot(jobID uint64) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.jobs[jobID]
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{
		TokensGenerated: st.tokensGenerated,
		LastCheckpoint:  st.lastCheckpoint,
		SessionID:       st.sessionID,
		InFlight:        st.submissionInProgress,
	}, true
}

// Close waits for all in-flight submissions to finish.
func (t *Tracker) Close() {
	t.wg.Wait()
}

// beginSubmissionLocked marks the job as submitting and optimistically
// advances its checkpoint to the current total. Returns the previous
// checkpoint, which is both the rollback target and the start of the
// submitted range. Caller holds the tracker mutex.
func (t *Tracker) beginSubmissionLocked(st *jobState) (from uint64) {
	from = st.lastCheckpoint
	st.lastCheckpoint = st.tokensGenerated
	st.submissionInProgress = true
	t.metrics.SubmissionsInFlight.Inc()
	return from
}

// submit proves and anchors the token range (from, to] on chain. The
// tracker mutex is not held across proof generation or network I/O.
func (t *Tracker) submit(ctx context.Context, jobID, from, to uint64) error {
	delta := to - from
	submitted := delta
	// First checkpoint of a job can be padded up to a minimum proven
	// amount, when configured.
	if from == 0 && t.cfg.MinProvenTokens > 0 && submitted < t.cfg.MinProvenTokens {
		submitted = t.cfg.MinProvenTokens
	}

	err := t.submitOnce(ctx, jobID, from, to, submitted)

	t.mu.Lock()
	st, ok := t.jobs[jobID]
	if ok {
		st.submissionInProgress = false
		if err != nil && st.lastCheckpoint == to {
			st.lastCheckpoint = from
			t.metrics.Rollbacks.Inc()
		}
	}
	t.mu.Unlock()
	t.metrics.SubmissionsInFlight.Dec()

	if err != nil {
		t.metrics.CheckpointsFailed.Inc()
		return err
	}
	t.metrics.CheckpointsSubmitted.Inc()
	t.logger.Info("checkpoint confirmed", "job_id", jobID, "tokens", submitted, "total", to)
	return nil
}

// submitOnce performs one proof generation and transaction round trip.
func (t *Tracker) submitOnce(ctx context.Context, jobID, from, to, submitted uint64) error {
	w, err := proof.NewWitnessBuilder().
		WithJobIDString(strconv.FormatUint(jobID, 10)).
		WithModelPath(t.cfg.ModelPath).
		WithInputString(fmt.Sprintf("checkpoint:%d:%d", jobID, from)).
		WithOutputString(fmt.Sprintf("tokens:%d:%d", from, to)).
		Build()
	if err != nil {
		return sdkerrors.Wrap(ErrSubmissionFailed, err.Error())
	}

	rec, err := t.engine.GenerateProof(ctx, w)
	if err != nil {
		return sdkerrors.Wrap(ErrSubmissionFailed, err.Error())
	}
	// The store keeps only the latest proof per job and is shared with
	// settlement validation. A checkpoint landing after the final
	// result proof replaces it, so settle a session before forcing its
	// last checkpoint.
	t.proofs.Put(jobID, rec)

	calldata := chain.EncodeCheckpoint(jobID, submitted, rec.ProofBytes)
	tx, err := t.client.SubmitTransaction(ctx, t.cfg.Contract, sdkmath.ZeroInt(), calldata)
	if err != nil {
		return sdkerrors.Wrapf(ErrSubmissionFailed, "submit: %v", err)
	}
	rcpt, err := t.client.WaitForConfirmation(ctx, tx)
	if err != nil {
		return sdkerrors.Wrapf(ErrSubmissionFailed, "confirm %s: %v", tx, err)
	}
	if !rcpt.Succeeded() {
		return sdkerrors.Wrapf(ErrSubmissionFailed, "transaction %s reverted", tx)
	}
	return nil
}
