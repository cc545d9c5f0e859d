package settlement

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// PaymentSplit is the settlement breakdown of one session's deposit.
// The invariant HostAmount + TreasuryAmount + RefundAmount == Deposit
// holds exactly; the treasury takes the integer-division remainder so
// nothing leaks to rounding.
type PaymentSplit struct {
	ChainID        uint64
	Deposit        sdkmath.Int
	TokensUsed     uint64
	TotalTokens    uint64
	PricePerToken  sdkmath.Int
	Payment        sdkmath.Int
	HostAmount     sdkmath.Int
	TreasuryAmount sdkmath.Int
	RefundAmount   sdkmath.Int
}

// RefundCalculation is the client-side view of a settlement: what was
// consumed and what comes back.
type RefundCalculation struct {
	Deposit       sdkmath.Int
	TokensUsed    uint64
	TokensUnused  uint64
	MaxTokens     uint64
	PricePerToken sdkmath.Int
	Payment       sdkmath.Int
	Refund        sdkmath.Int
	FullRefund    bool
}

// TokenKind distinguishes native-coin payments from ERC-20 payments.
type TokenKind string

const (
	TokenNative TokenKind = "native"
	TokenERC20  TokenKind = "erc20"
)

// PaymentToken identifies the currency a settlement pays out in. The
// split arithmetic is identical for both kinds; only the transfer
// mechanics on chain differ.
type PaymentToken struct {
	Kind     TokenKind
	Symbol   string
	Decimals uint8
	Address  string
}

// PaymentRecord is one completed payout.
type PaymentRecord struct {
	ID             string
	ChainID        uint64
	JobID          uint64
	Host           string
	Token          PaymentToken
	Payment        sdkmath.Int
	HostAmount     sdkmath.Int
	TreasuryAmount sdkmath.Int
	RefundAmount   sdkmath.Int
	Timestamp      time.Time
}

// ChainStats are running settlement totals for one chain.
type ChainStats struct {
	ChainID           uint64
	PaymentsProcessed uint64
	TotalVolume       sdkmath.Int
	TotalHostPaid     sdkmath.Int
	TotalTreasury     sdkmath.Int
	TotalRefunded     sdkmath.Int
}
