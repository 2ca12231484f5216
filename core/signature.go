package core

// signature.go models the two signature kinds named in spec §4.2 as small
// interfaces rather than inventing a circuit-compatible twisted-Edwards
// curve from scratch (that belongs to the out-of-scope SNARK circuit). The
// in-system signature defaults to secp256k1 via go-ethereum/crypto, the
// same curve stack already used for settlement-chain signing, with a
// bounded LRU cache for the signer-pubkey-hash lookup named in §4.2.

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Signature is an opaque in-system signature over a transaction's canonical
// byte layout (the pre-pubdata wire format referenced in spec §6).
type Signature []byte

// Signer verifies in-system signatures against a PubKeyHash, without
// exposing the underlying curve to callers.
type Signer interface {
	Verify(pub PubKeyHash, message []byte, sig Signature) bool
	PubKeyHashOf(pub *ecdsa.PublicKey) PubKeyHash
}

type secp256k1Signer struct{}

// DefaultSigner is the production Signer.
var DefaultSigner Signer = secp256k1Signer{}

func (secp256k1Signer) PubKeyHashOf(pub *ecdsa.PublicKey) PubKeyHash {
	full := crypto.FromECDSAPub(pub)
	digest := crypto.Keccak256(full[1:]) // drop the 0x04 uncompressed-point prefix
	var out PubKeyHash
	copy(out[:], digest[len(digest)-20:])
	return out
}

func (s secp256k1Signer) Verify(pub PubKeyHash, message []byte, sig Signature) bool {
	if len(sig) != 65 {
		return false
	}
	digest := crypto.Keccak256(message)
	recovered, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return false
	}
	return s.PubKeyHashOf(recovered) == pub
}

// SignerCache memoizes AccountId -> PubKeyHash lookups so C2 handlers don't
// re-read the tree on every signature check within a block.
type SignerCache struct {
	cache *lru.Cache[AccountId, PubKeyHash]
}

// NewSignerCache constructs a cache holding up to size entries.
func NewSignerCache(size int) (*SignerCache, error) {
	c, err := lru.New[AccountId, PubKeyHash](size)
	if err != nil {
		return nil, fmt.Errorf("signer cache: %w", err)
	}
	return &SignerCache{cache: c}, nil
}

func (c *SignerCache) Get(id AccountId) (PubKeyHash, bool) { return c.cache.Get(id) }
func (c *SignerCache) Put(id AccountId, pub PubKeyHash)    { c.cache.Add(id, pub) }
func (c *SignerCache) Invalidate(id AccountId)             { c.cache.Remove(id) }

// VerifyTwoFactorAuth recovers the settlement-chain signer from an ECDSA
// signature over a ChangePubKey's canonical message and checks it against
// the account's on-chain address, per spec §4.2's "two-factor" requirement.
func VerifyTwoFactorAuth(message []byte, sig []byte, expected Address) error {
	if len(sig) != 65 {
		return fmt.Errorf("verify two-factor auth: %w", ErrInvalidSignature)
	}
	digest := crypto.Keccak256(message)
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return fmt.Errorf("verify two-factor auth: %w", ErrInvalidSignature)
	}
	recovered := FromCommon(crypto.PubkeyToAddress(*pub))
	if recovered != expected {
		return fmt.Errorf("verify two-factor auth: %w", ErrInvalidSignature)
	}
	return nil
}
