package core

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// Fr is a scalar-field element of the proving system's field. Per spec §9,
// the field width and hash arity are configuration rather than hardcoded
// constants: this package defaults to bn254's scalar field and a MiMC
// sponge, but every tree/codec algorithm interacts with Fr only through
// this type and the Hasher interface below, never the concrete curve.
type Fr = fr.Element

// ZeroFr is the additive identity of the scalar field.
var ZeroFr = Fr{}

// Hasher folds an arbitrary number of field elements into one, used for
// Merkle node/leaf folding and for the block commitment formula of §4.3.
type Hasher interface {
	Hash(elements ...Fr) Fr
}

// mimcHasher is the default Hasher, backed by gnark-crypto's MiMC sponge
// over bn254 — the same scalar field rollup circuits built on bn254
// Groth16/PLONK proving systems use for leaf and commitment hashing.
type mimcHasher struct{}

// DefaultHasher is the production Hasher used by NewAccountTree.
var DefaultHasher Hasher = mimcHasher{}

func (mimcHasher) Hash(elements ...Fr) Fr {
	h := mimc.NewMiMC()
	for _, e := range elements {
		b := e.Bytes()
		h.Write(b[:])
	}
	var out Fr
	out.SetBytes(h.Sum(nil))
	return out
}

// FrFromUint64 lifts a small integer into the scalar field.
func FrFromUint64(v uint64) Fr {
	var out Fr
	out.SetUint64(v)
	return out
}

// FrFromBytes reduces an arbitrary-length big-endian byte string into the
// scalar field (used for addresses, pub-key hashes, and balances, which are
// narrower than Fr but must still be folded into a tree node).
func FrFromBytes(b []byte) Fr {
	var out Fr
	out.SetBytes(b)
	return out
}

// FrFromBigInt reduces a big.Int into the scalar field; used for 128-bit
// balances.
func FrFromBigInt(v *big.Int) Fr {
	var out Fr
	out.SetBigInt(v)
	return out
}

// FrBytes returns the canonical 32-byte big-endian encoding of f.
func FrBytes(f Fr) [32]byte {
	return f.Bytes()
}
