package settlement

import (
	"context"
	"strconv"
	"sync/atomic"

	sdkerrors "cosmossdk.io/errors"
	"cosmossdk.io/log"

	"github.com/lattica-ai/settle/proof"
	"github.com/lattica-ai/settle/store"
)

// ValidationStats are the validator's running counters. Every
// validation attempt lands in exactly one of Passed or Failed.
type ValidationStats struct {
	Total  uint64
	Passed uint64
	Failed uint64
}

// Validator gates settlement on proof verification: no stored result or
// proof, or a proof that does not match the result, means the session
// must not settle. A host that never produces a valid proof simply never
// gets paid.
type Validator struct {
	results   *store.ResultStore
	proofs    *store.ProofStore
	engine    proof.Engine
	modelPath string
	logger    log.Logger
	metrics   *Metrics

	total  atomic.Uint64
	passed atomic.Uint64
	failed atomic.Uint64
}

// NewValidator creates a settlement validator.
func NewValidator(results *store.ResultStore, proofs *store.ProofStore, engine proof.Engine, modelPath string, logger log.Logger) *Validator {
	return &Validator{
		results:   results,
		proofs:    proofs,
		engine:    engine,
		modelPath: modelPath,
		logger:    logger.With("component", "settlement_validator"),
		metrics:   NewMetrics(),
	}
}

// resultWitness rebuilds the commitment witness from a stored result.
func resultWitness(res *store.InferenceResult, modelPath string) (*proof.Witness, error) {
	return proof.NewWitnessBuilder().
		WithJobIDString(strconv.FormatUint(res.JobID, 10)).
		WithModelPath(modelPath).
		WithInputString(res.Prompt).
		WithOutputString(res.Response).
		Build()
}

// ValidateBeforeSettlement checks that the job's stored proof matches
// its stored result. The result is checked before the proof, so a job
// with neither reports the missing result first. A structurally valid
// proof that does not verify returns (false, nil).
func (v *Validator) ValidateBeforeSettlement(ctx context.Context, jobID uint64) (bool, error) {
	v.total.Add(1)
	v.metrics.ValidationsTotal.Inc()

	res, ok := v.results.Get(jobID)
	if !ok {
		v.fail()
		return false, sdkerrors.Wrapf(ErrMissingResult, "job %d", jobID)
	}

	rec, ok := v.proofs.Get(jobID)
	if !ok {
		v.fail()
		return false, sdkerrors.Wrapf(ErrMissingProof, "job %d", jobID)
	}

	w, err := resultWitness(res, v.modelPath)
	if err != nil {
		v.fail()
		return false, err
	}

	verified, err := v.engine.VerifyProof(ctx, rec, w)
	if err != nil {
		v.fail()
		return false, err
	}
	if !verified {
		v.fail()
		v.logger.Info("proof did not verify against stored result", "job_id", jobID)
		return false, nil
	}

	v.passed.Add(1)
	v.metrics.ValidationsPassed.Inc()
	return true, nil
}

// ProveResult generates and stores the settlement proof for a job from
// its stored result. Called when inference completes, before the
// session can settle.
func (v *Validator) ProveResult(ctx context.Context, jobID uint64) (*proof.Record, error) {
	res, ok := v.results.Get(jobID)
	if !ok {
		return nil, sdkerrors.Wrapf(ErrMissingResult, "job %d", jobID)
	}
	w, err := resultWitness(res, v.modelPath)
	if err != nil {
		return nil, err
	}
	rec, err := v.engine.GenerateProof(ctx, w)
	if err != nil {
		return nil, err
	}
	v.proofs.Put(jobID, rec)
	return rec, nil
}

// HasRequiredData reports whether both the result and the proof are
// stored for the job.
func (v *Validator) HasRequiredData(jobID uint64) bool {
	return v.results.Has(jobID) && v.proofs.Has(jobID)
}

// Result returns the stored inference result for a job.
func (v *Validator) Result(jobID uint64) (*store.InferenceResult, bool) {
	return v.results.Get(jobID)
}

// CleanupJob drops the job's result and proof. Later validations for
// the job fail with the missing-data errors.
func (v *Validator) CleanupJob(jobID uint64) {
	v.results.Remove(jobID)
	v.proofs.Remove(jobID)
}

// Stats returns the validator's counters.
func (v *Validator) Stats() ValidationStats {
	return ValidationStats{
		Total:  v.total.Load(),
		Passed: v.passed.Load(),
		Failed: v.failed.Load(),
	}
}

func (v *Validator) fail() {
	v.failed.Add(1)
	v.metrics.ValidationsFailed.Inc()
}
