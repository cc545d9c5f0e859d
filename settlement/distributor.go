package settlement

import (
	"strconv"
	"sync"
	"time"

	sdkerrors "cosmossdk.io/errors"
	"cosmossdk.io/log"
	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"

	"github.com/lattica-ai/settle/chain"
)

// Distributor computes per-chain payment splits and keeps the treasury
// and host earnings ledgers. Split calculation is pure; the ledgers are
// independent per chain.
type Distributor struct {
	chains  *chain.Registry
	logger  log.Logger
	metrics *Metrics

	mu           sync.Mutex
	treasury     map[uint64]sdkmath.Int
	hostEarnings map[uint64]map[string]sdkmath.Int
	stats        map[uint64]*ChainStats
	history      []PaymentRecord
}

// NewDistributor creates a payment distributor over the given chains.
func NewDistributor(chains *chain.Registry, logger log.Logger) *Distributor {
	return &Distributor{
		chains:       chains,
		logger:       logger.With("component", "payment_distributor"),
		metrics:      NewMetrics(),
		treasury:     make(map[uint64]sdkmath.Int),
		hostEarnings: make(map[uint64]map[string]sdkmath.Int),
		stats:        make(map[uint64]*ChainStats),
	}
}

// NativeToken returns the PaymentToken for a chain's native currency.
func NativeToken(cfg chain.Config) PaymentToken {
	return PaymentToken{
		Kind:     TokenNative,
		Symbol:   cfg.NativeToken.Symbol,
		Decimals: cfg.NativeToken.Decimals,
	}
}

// CalculatePaymentSplit splits a session deposit by actual token usage
// under the chain's configured percentages.
//
//	payment  = pricePerToken * tokensUsed
//	host     = payment * hostPercent / 100
//	treasury = payment - host
//	refund   = deposit - payment
//
// The treasury side takes the division remainder, so the three parts
// always reassemble the deposit exactly.
func (d *Distributor) CalculatePaymentSplit(chainID uint64, deposit sdkmath.Int, tokensUsed, totalTokens uint64, pricePerToken sdkmath.Int) (*PaymentSplit, error) {
	cfg, ok := d.chains.Config(chainID)
	if !ok {
		return nil, sdkerrors.Wrapf(ErrUnsupportedChain, "chain %d", chainID)
	}

	payment := pricePerToken.Mul(sdkmath.NewIntFromUint64(tokensUsed))
	if payment.GT(deposit) {
		return nil, sdkerrors.Wrapf(ErrPaymentExceedsDeposit, "payment %s exceeds deposit %s", payment, deposit)
	}

	host := payment.MulRaw(int64(cfg.HostEarningsPercent)).QuoRaw(100)
	treasury := payment.Sub(host)
	refund := deposit.Sub(payment)

	return &PaymentSplit{
		ChainID:        chainID,
		Deposit:        deposit,
		TokensUsed:     tokensUsed,
		TotalTokens:    totalTokens,
		PricePerToken:  pricePerToken,
		Payment:        payment,
		HostAmount:     host,
		TreasuryAmount: treasury,
		RefundAmount:   refund,
	}, nil
}

// CalculateRefund computes the client refund for a session. A session
// that used no tokens is fully refunded; one that used its whole
// allowance gets back only what the deposit exceeds the payment by.
func (d *Distributor) CalculateRefund(deposit sdkmath.Int, tokensUsed, maxTokens uint64, pricePerToken sdkmath.Int) (*RefundCalculation, error) {
	payment := pricePerToken.Mul(sdkmath.NewIntFromUint64(tokensUsed))
	if payment.GT(deposit) {
		return nil, sdkerrors.Wrapf(ErrPaymentExceedsDeposit, "payment %s exceeds deposit %s", payment, deposit)
	}
	var unused uint64
	if tokensUsed < maxTokens {
		unused = maxTokens - tokensUsed
	}
	return &RefundCalculation{
		Deposit:       deposit,
		TokensUsed:    tokensUsed,
		TokensUnused:  unused,
		MaxTokens:     maxTokens,
		PricePerToken: pricePerToken,
		Payment:       payment,
		Refund:        deposit.Sub(payment),
		FullRefund:    tokensUsed == 0,
	}, nil
}

// VerifyPaymentSplit audits a split independently of how it was
// produced: recomputed payment, exact reassembly of the deposit, and no
// negative parts.
func (d *Distributor) VerifyPaymentSplit(s *PaymentSplit) bool {
	if s == nil {
		return false
	}
	if s.Payment.IsNegative() || s.HostAmount.IsNegative() || s.TreasuryAmount.IsNegative() || s.RefundAmount.IsNegative() {
		return false
	}
	if !s.PricePerToken.Mul(sdkmath.NewIntFromUint64(s.TokensUsed)).Equal(s.Payment) {
		return false
	}
	if !s.HostAmount.Add(s.TreasuryAmount).Equal(s.Payment) {
		return false
	}
	return s.HostAmount.Add(s.TreasuryAmount).Add(s.RefundAmount).Equal(s.Deposit)
}

// ProcessPayment verifies the split and applies it to the ledgers: host
// earnings and treasury fees accumulate, statistics and history are
// updated. Returns the payment record.
func (d *Distributor) ProcessPayment(chainID, jobID uint64, host string, split *PaymentSplit, token PaymentToken) (*PaymentRecord, error) {
	if split == nil || split.ChainID != chainID || !d.VerifyPaymentSplit(split) {
		return nil, sdkerrors.Wrapf(ErrSettlementFailed, "payment split failed verification for chain %d", chainID)
	}
	if !d.chains.Supported(chainID) {
		return nil, sdkerrors.Wrapf(ErrUnsupportedChain, "chain %d", chainID)
	}

	rec := PaymentRecord{
		ID:             uuid.NewString(),
		ChainID:        chainID,
		JobID:          jobID,
		Host:           host,
		Token:          token,
		Payment:        split.Payment,
		HostAmount:     split.HostAmount,
		TreasuryAmount: split.TreasuryAmount,
		RefundAmount:   split.RefundAmount,
		Timestamp:      time.Now().UTC(),
	}

	d.mu.Lock()
	d.addHostLocked(chainID, host, split.HostAmount)
	d.treasury[chainID] = d.treasuryLocked(chainID).Add(split.TreasuryAmount)
	st := d.statsLocked(chainID)
	st.PaymentsProcessed++
	st.TotalVolume = st.TotalVolume.Add(split.Payment)
	st.TotalHostPaid = st.TotalHostPaid.Add(split.HostAmount)
	st.TotalTreasury = st.TotalTreasury.Add(split.TreasuryAmount)
	st.TotalRefunded = st.TotalRefunded.Add(split.RefundAmount)
	d.history = append(d.history, rec)
	d.mu.Unlock()

	d.metrics.PaymentsProcessed.WithLabelValues(strconv.FormatUint(chainID, 10), token.Symbol).Inc()
	d.logger.Info("payment processed",
		"chain_id", chainID,
		"host", host,
		"payment", split.Payment,
		"treasury", split.TreasuryAmount,
		"refund", split.RefundAmount,
	)
	return &rec, nil
}

// AccumulateTreasuryFee adds a fee to a chain's treasury balance.
func (d *Distributor) AccumulateTreasuryFee(chainID uint64, amount sdkmath.Int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.treasury[chainID] = d.treasuryLocked(chainID).Add(amount)
}

// TreasuryBalance returns a chain's accumulated, unwithdrawn fees.
func (d *Distributor) TreasuryBalance(chainID uint64) sdkmath.Int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.treasuryLocked(chainID)
}

// WithdrawTreasuryFees atomically reads and zeroes a chain's treasury
// balance. Historical statistics are unaffected.
func (d *Distributor) WithdrawTreasuryFees(chainID uint64) sdkmath.Int {
	d.mu.Lock()
	amount := d.treasuryLocked(chainID)
	d.treasury[chainID] = sdkmath.ZeroInt()
	d.mu.Unlock()

	if amount.IsPositive() {
		d.metrics.TreasuryWithdrawals.Inc()
		d.logger.Info("treasury fees withdrawn", "chain_id", chainID, "amount", amount)
	}
	return amount
}

// HostBalance returns a host's accumulated earnings on a chain.
func (d *Distributor) HostBalance(chainID uint64, host string) sdkmath.Int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if perHost, ok := d.hostEarnings[chainID]; ok {
		if bal, ok := perHost[host]; ok {
			return bal
		}
	}
	return sdkmath.ZeroInt()
}

// WithdrawHostEarnings atomically reads and zeroes a host's earnings on
// a chain.
func (d *Distributor) WithdrawHostEarnings(chainID uint64, host string) sdkmath.Int {
	d.mu.Lock()
	defer d.mu.Unlock()
	perHost, ok := d.hostEarnings[chainID]
	if !ok {
		return sdkmath.ZeroInt()
	}
	bal, ok := perHost[host]
	if !ok {
		return sdkmath.ZeroInt()
	}
	perHost[host] = sdkmath.ZeroInt()
	return bal
}

// Stats returns the settlement statistics of one chain.
func (d *Distributor) Stats(chainID uint64) (ChainStats, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.stats[chainID]
	if !ok {
		return ChainStats{}, false
	}
	return *st, true
}

// AllStats returns statistics for every chain that has processed a
// payment.
func (d *Distributor) AllStats() []ChainStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]ChainStats, 0, len(d.stats))
	for _, st := range d.stats {
		out = append(out, *st)
	}
	return out
}

// History returns a copy of all processed payment records.
func (d *Distributor) History() []PaymentRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]PaymentRecord, len(d.history))
	copy(out, d.history)
	return out
}

func (d *Distributor) treasuryLocked(chainID uint64) sdkmath.Int {
	if bal, ok := d.treasury[chainID]; ok {
		return bal
	}
	return sdkmath.ZeroInt()
}

func (d *Distributor) addHostLocked(chainID uint64, host string, amount sdkmath.Int) {
	perHost, ok := d.hostEarnings[chainID]
	if !ok {
		perHost = make(map[string]sdkmath.Int)
		d.hostEarnings[chainID] = perHost
	}
	if bal, ok := perHost[host]; ok {
		perHost[host] = bal.Add(amount)
	} else {
		perHost[host] = amount
	}
}

func (d *Distributor) statsLocked(chainID uint64) *ChainStats {
	st, ok := d.stats[chainID]
	if !ok {
		st = &ChainStats{
			ChainID:       chainID,
			TotalVolume:   sdkmath.ZeroInt(),
			TotalHostPaid: sdkmath.ZeroInt(),
			TotalTreasury: sdkmath.ZeroInt(),
			TotalRefunded: sdkmath.ZeroInt(),
		}
		d.stats[chainID] = st
	}
	return st
}
