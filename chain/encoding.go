package chain

import (
	"encoding/binary"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"golang.org/x/crypto/sha3"
)

// ABI-style calldata encoding: a 4-byte selector followed by 32-byte
// words, with dynamic bytes referenced by offset and padded to a word
// boundary.

const wordSize = 32

// Contract method signatures for the settlement contracts.
const (
	checkpointSig = "submitCheckpoint(uint256,uint256,bytes)"
	settlementSig = "settleSession(uint256,uint256,uint256,uint256)"
)

// selector returns the first four bytes of the Keccak-256 of a method
// signature.
func selector(sig string) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(sig))
	return h.Sum(nil)[:4]
}

// word encodes v as a left-padded 32-byte big-endian word.
func word(v uint64) []byte {
	out := make([]byte, wordSize)
	binary.BigEndian.PutUint64(out[wordSize-8:], v)
	return out
}

// intWord encodes a non-negative sdkmath.Int as a 32-byte word.
func intWord(v sdkmath.Int) []byte {
	out := make([]byte, wordSize)
	v.BigInt().FillBytes(out)
	return out
}

// padRight pads data with zeros to the next word boundary.
func padRight(data []byte) []byte {
	rem := len(data) % wordSize
	if rem == 0 {
		return data
	}
	return append(data, make([]byte, wordSize-rem)...)
}

// EncodeCheckpoint builds calldata for submitCheckpoint(jobID, tokens,
// proof). Tokens is the delta generated since the previous checkpoint,
// not a running total.
func EncodeCheckpoint(jobID, tokens uint64, proofBytes []byte) []byte {
	data := selector(checkpointSig)
	data = append(data, word(jobID)...)
	data = append(data, word(tokens)...)
	// Offset of the dynamic bytes argument, relative to the start of
	// the argument block: three head words.
	data = append(data, word(3*wordSize)...)
	data = append(data, word(uint64(len(proofBytes)))...)
	data = append(data, padRight(proofBytes)...)
	return data
}

// EncodeSessionSettlement builds calldata for settleSession(jobID,
// hostAmount, treasuryAmount, refundAmount). Amounts are in the chain's
// smallest native unit.
func EncodeSessionSettlement(jobID uint64, hostAmount, treasuryAmount, refundAmount sdkmath.Int) []byte {
	data := selector(settlementSig)
	data = append(data, word(jobID)...)
	data = append(data, intWord(hostAmount)...)
	data = append(data, intWord(treasuryAmount)...)
	data = append(data, intWord(refundAmount)...)
	return data
}

// DecodeWord reads the 32-byte word at the given index of the argument
// block (after the selector). Intended for tests and debugging.
func DecodeWord(calldata []byte, index int) *big.Int {
	start := 4 + index*wordSize
	return new(big.Int).SetBytes(calldata[start : start+wordSize])
}
