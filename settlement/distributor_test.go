package settlement

import (
	"testing"

	"cosmossdk.io/log"
	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/lattica-ai/settle/chain"
)

const (
	testChainID  = uint64(84532)
	otherChainID = uint64(5611)
)

func newTestDistributor(t *testing.T) *Distributor {
	t.Helper()
	return NewDistributor(chain.DefaultRegistry(), log.NewNopLogger())
}

func TestCalculatePaymentSplit(t *testing.T) {
	d := newTestDistributor(t)

	split, err := d.CalculatePaymentSplit(testChainID, sdkmath.NewInt(1_000_000), 1000, 10_000, sdkmath.NewInt(100))
	require.NoError(t, err)

	require.Equal(t, sdkmath.NewInt(100_000), split.Payment)
	require.Equal(t, sdkmath.NewInt(90_000), split.HostAmount)
	require.Equal(t, sdkmath.NewInt(10_000), split.TreasuryAmount)
	require.Equal(t, sdkmath.NewInt(900_000), split.RefundAmount)
	require.True(t, d.VerifyPaymentSplit(split))
}

func TestSplitReassemblesDepositExactly(t *testing.T) {
	d := newTestDistributor(t)

	// 999 tokens at price 1: host share 899.1 truncates to 899, the
	// treasury takes the remainder. No unit may vanish.
	cases := []struct {
		deposit uint64
		used    uint64
		price   int64
	}{
		{1_000_000, 999, 1},
		{1_000_000, 1, 1},
		{5_000_000, 3333, 7},
		{1_000_000, 0, 100},
		{100_000, 1000, 100}, // payment == deposit, zero refund
	}
	for _, tc := range cases {
		split, err := d.CalculatePaymentSplit(testChainID, sdkmath.NewIntFromUint64(tc.deposit), tc.used, 10_000, sdkmath.NewInt(tc.price))
		require.NoError(t, err)

		total := split.HostAmount.Add(split.TreasuryAmount).Add(split.RefundAmount)
		require.Equal(t, split.Deposit, total, "deposit=%d used=%d price=%d", tc.deposit, tc.used, tc.price)
		require.True(t, d.VerifyPaymentSplit(split))
	}
}

func TestSplitRemainderGoesToTreasury(t *testing.T) {
	d := newTestDistributor(t)

	split, err := d.CalculatePaymentSplit(testChainID, sdkmath.NewInt(10_000), 999, 10_000, sdkmath.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(899), split.HostAmount)
	require.Equal(t, sdkmath.NewInt(100), split.TreasuryAmount)
	require.Equal(t, split.Payment, split.HostAmount.Add(split.TreasuryAmount))
}

func TestSplitPaymentExceedsDeposit(t *testing.T) {
	d := newTestDistributor(t)

	_, err := d.CalculatePaymentSplit(testChainID, sdkmath.NewInt(100), 1000, 10_000, sdkmath.NewInt(100))
	require.ErrorIs(t, err, ErrPaymentExceedsDeposit)
}

func TestSplitUnsupportedChain(t *testing.T) {
	d := newTestDistributor(t)

	_, err := d.CalculatePaymentSplit(1, sdkmath.NewInt(1_000_000), 10, 100, sdkmath.NewInt(1))
	require.ErrorIs(t, err, ErrUnsupportedChain)
}

func TestCalculateRefundBounds(t *testing.T) {
	d := newTestDistributor(t)
	deposit := sdkmath.NewInt(1_000_000)
	price := sdkmath.NewInt(100)

	// Unused session refunds everything.
	rc, err := d.CalculateRefund(deposit, 0, 10_000, price)
	require.NoError(t, err)
	require.True(t, rc.FullRefund)
	require.Equal(t, deposit, rc.Refund)
	require.True(t, rc.Payment.IsZero())
	require.EqualValues(t, 10_000, rc.TokensUnused)

	// Partially consumed session reports what was left on the table.
	rc, err = d.CalculateRefund(deposit, 1_000, 10_000, price)
	require.NoError(t, err)
	require.EqualValues(t, 9_000, rc.TokensUnused)

	// Fully consumed session refunds only the surplus.
	rc, err = d.CalculateRefund(deposit, 10_000, 10_000, price)
	require.NoError(t, err)
	require.False(t, rc.FullRefund)
	require.Equal(t, sdkmath.NewInt(1_000_000), rc.Payment)
	require.True(t, rc.Refund.IsZero())
	require.Zero(t, rc.TokensUnused)
}

func TestVerifyPaymentSplitRejectsTampering(t *testing.T) {
	d := newTestDistributor(t)

	split, err := d.CalculatePaymentSplit(testChainID, sdkmath.NewInt(1_000_000), 1000, 10_000, sdkmath.NewInt(100))
	require.NoError(t, err)

	tampered := *split
	tampered.HostAmount = tampered.HostAmount.AddRaw(1)
	require.False(t, d.VerifyPaymentSplit(&tampered))

	tampered = *split
	tampered.RefundAmount = tampered.RefundAmount.SubRaw(1)
	require.False(t, d.VerifyPaymentSplit(&tampered))

	require.False(t, d.VerifyPaymentSplit(nil))
}

func TestTreasuryAccumulateAndWithdraw(t *testing.T) {
	d := newTestDistributor(t)

	require.True(t, d.TreasuryBalance(testChainID).IsZero())

	d.AccumulateTreasuryFee(testChainID, sdkmath.NewInt(500))
	d.AccumulateTreasuryFee(testChainID, sdkmath.NewInt(250))
	d.AccumulateTreasuryFee(otherChainID, sdkmath.NewInt(42))

	require.Equal(t, sdkmath.NewInt(750), d.TreasuryBalance(testChainID))
	require.Equal(t, sdkmath.NewInt(42), d.TreasuryBalance(otherChainID))

	withdrawn := d.WithdrawTreasuryFees(testChainID)
	require.Equal(t, sdkmath.NewInt(750), withdrawn)
	require.True(t, d.TreasuryBalance(testChainID).IsZero())

	// The other chain's balance is untouched.
	require.Equal(t, sdkmath.NewInt(42), d.TreasuryBalance(otherChainID))

	// Withdrawing again yields zero.
	require.True(t, d.WithdrawTreasuryFees(testChainID).IsZero())
}

func TestHostEarnings(t *testing.T) {
	d := newTestDistributor(t)

	require.True(t, d.HostBalance(testChainID, "host-a").IsZero())

	split, err := d.CalculatePaymentSplit(testChainID, sdkmath.NewInt(1_000_000), 1000, 10_000, sdkmath.NewInt(100))
	require.NoError(t, err)

	cfg, _ := chain.DefaultRegistry().Config(testChainID)
	_, err = d.ProcessPayment(testChainID, 7, "host-a", split, NativeToken(cfg))
	require.NoError(t, err)

	require.Equal(t, sdkmath.NewInt(90_000), d.HostBalance(testChainID, "host-a"))
	require.True(t, d.HostBalance(otherChainID, "host-a").IsZero())

	withdrawn := d.WithdrawHostEarnings(testChainID, "host-a")
	require.Equal(t, sdkmath.NewInt(90_000), withdrawn)
	require.True(t, d.HostBalance(testChainID, "host-a").IsZero())
}

func TestProcessPaymentUpdatesStatsAndHistory(t *testing.T) {
	d := newTestDistributor(t)
	cfg, _ := chain.DefaultRegistry().Config(testChainID)

	split, err := d.CalculatePaymentSplit(testChainID, sdkmath.NewInt(1_000_000), 1000, 10_000, sdkmath.NewInt(100))
	require.NoError(t, err)

	rec, err := d.ProcessPayment(testChainID, 7, "host-a", split, NativeToken(cfg))
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	require.EqualValues(t, 7, rec.JobID)
	require.Equal(t, "ETH", rec.Token.Symbol)
	require.Equal(t, TokenNative, rec.Token.Kind)

	st, ok := d.Stats(testChainID)
	require.True(t, ok)
	require.EqualValues(t, 1, st.PaymentsProcessed)
	require.Equal(t, sdkmath.NewInt(100_000), st.TotalVolume)
	require.Equal(t, sdkmath.NewInt(90_000), st.TotalHostPaid)
	require.Equal(t, sdkmath.NewInt(10_000), st.TotalTreasury)
	require.Equal(t, sdkmath.NewInt(900_000), st.TotalRefunded)

	require.Len(t, d.History(), 1)
	require.Len(t, d.AllStats(), 1)

	// Treasury fees from the payment are withdrawable, but withdrawal
	// leaves the historical totals alone.
	require.Equal(t, sdkmath.NewInt(10_000), d.WithdrawTreasuryFees(testChainID))
	st, _ = d.Stats(testChainID)
	require.Equal(t, sdkmath.NewInt(10_000), st.TotalTreasury)
}

func TestProcessPaymentRejectsBadSplit(t *testing.T) {
	d := newTestDistributor(t)
	cfg, _ := chain.DefaultRegistry().Config(testChainID)

	split, err := d.CalculatePaymentSplit(testChainID, sdkmath.NewInt(1_000_000), 1000, 10_000, sdkmath.NewInt(100))
	require.NoError(t, err)

	split.HostAmount = split.HostAmount.AddRaw(1)
	_, err = d.ProcessPayment(testChainID, 7, "host-a", split, NativeToken(cfg))
	require.ErrorIs(t, err, ErrSettlementFailed)
	require.Empty(t, d.History())
}

func TestERC20ArithmeticIdentical(t *testing.T) {
	d := newTestDistributor(t)

	split, err := d.CalculatePaymentSplit(testChainID, sdkmath.NewInt(1_000_000), 1000, 10_000, sdkmath.NewInt(100))
	require.NoError(t, err)

	usdc := PaymentToken{Kind: TokenERC20, Symbol: "USDC", Decimals: 6, Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"}
	rec, err := d.ProcessPayment(testChainID, 7, "host-a", split, usdc)
	require.NoError(t, err)
	require.Equal(t, TokenERC20, rec.Token.Kind)

	native, err := d.CalculatePaymentSplit(testChainID, sdkmath.NewInt(1_000_000), 1000, 10_000, sdkmath.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, native.HostAmount, rec.HostAmount)
	require.Equal(t, native.TreasuryAmount, rec.TreasuryAmount)
}
