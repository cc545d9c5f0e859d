package proof

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	mimcnative "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// commitmentCircuit proves knowledge of the four witness hashes behind a
// public MiMC commitment.
//
// Public input:
//   - Commitment: MiMC(job || model || input || output), one field
//     element per byte in order.
//
// Private inputs: the 128 witness bytes.
//
// The prover demonstrates it knows a full witness whose commitment equals
// the public value; the verifier recomputes the commitment from the
// witness it was presented with, so a proof generated for a different
// witness can never verify.
type commitmentCircuit struct {
	Commitment frontend.Variable `gnark:",public"`

	JobID      [HashSize]frontend.Variable `gnark:",private"`
	ModelHash  [HashSize]frontend.Variable `gnark:",private"`
	InputHash  [HashSize]frontend.Variable `gnark:",private"`
	OutputHash [HashSize]frontend.Variable `gnark:",private"`
}

// Define implements the gnark circuit interface.
func (c *commitmentCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	for i := 0; i < HashSize; i++ {
		h.Write(c.JobID[i])
	}
	for i := 0; i < HashSize; i++ {
		h.Write(c.ModelHash[i])
	}
	for i := 0; i < HashSize; i++ {
		h.Write(c.InputHash[i])
	}
	for i := 0; i < HashSize; i++ {
		h.Write(c.OutputHash[i])
	}
	api.AssertIsEqual(h.Sum(), c.Commitment)
	return nil
}

// commitWitness computes the public commitment outside the circuit. Each
// witness byte is absorbed as a full field element, matching the
// in-circuit hasher which consumes one variable per byte.
func commitWitness(w *Witness) *big.Int {
	h := mimcnative.NewMiMC()
	var e fr.Element
	absorb := func(hash [HashSize]byte) {
		for _, b := range hash {
			e.SetUint64(uint64(b))
			eb := e.Bytes()
			h.Write(eb[:])
		}
	}
	absorb(w.JobID)
	absorb(w.ModelHash)
	absorb(w.InputHash)
	absorb(w.OutputHash)

	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out.BigInt(new(big.Int))
}
