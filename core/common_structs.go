package core

// common_structs.go – centralised scalar/identifier definitions shared across
// the core package. Kept deliberately dependency-light, following the
// teacher's own convention of isolating shared structs from behaviour to
// avoid cyclic imports between the op handlers, the tree, and the codec.

// Address represents a 20-byte settlement-chain account identifier.
type Address [20]byte

// PubKeyHash represents the 20-byte hash of an in-system public key.
type PubKeyHash [20]byte

// Hash represents a 32-byte cryptographic hash (onchain_ops_hash, content
// hashes, NFT content hashes).
type Hash [32]byte

func (a Address) String() string {
	const hextable = "0123456789abcdef"
	buf := make([]byte, 2+len(a)*2)
	buf[0], buf[1] = '0', 'x'
	for i, b := range a {
		buf[2+i*2] = hextable[b>>4]
		buf[3+i*2] = hextable[b&0x0f]
	}
	return string(buf)
}

func (p PubKeyHash) String() string { return Address(p).String() }

// IsZero reports whether the address has never been assigned.
func (a Address) IsZero() bool { return a == Address{} }

// IsZero reports whether the pub-key hash has been cleared (a logical
// account Close).
func (p PubKeyHash) IsZero() bool { return p == PubKeyHash{} }
