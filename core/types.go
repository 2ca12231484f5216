package core

import "math/big"

// Scalar identifiers and protocol-wide constants, per spec §3.1.

type (
	// AccountId indexes the account (leaf) subtree. Valid range [0, 2^24).
	AccountId uint32
	// TokenId indexes a balance within an account's balance subtree.
	TokenId uint32
	// Nonce is monotonic per account.
	Nonce uint32
	// BlockNumber indexes a committed block.
	BlockNumber uint32
	// SerialId is the settlement contract's strictly-ascending priority-op index.
	SerialId uint64
)

const (
	// AccountTreeDepth is the depth of the sparse tree over AccountId.
	AccountTreeDepth = 32
	// BalanceTreeDepth is the depth of the per-account sparse tree over TokenId.
	BalanceTreeDepth = 32

	// MaxAccountId is the largest admissible user account id (exclusive of
	// the reserved NFT storage account).
	MaxAccountId AccountId = (1 << 24) - 2
	// NFTStorageAccountId is reserved for the NFT-minting subtree; never
	// owned by a user.
	NFTStorageAccountId AccountId = (1 << 24) - 1

	// MinNFTTokenId is the first id reserved for NFTs; ids below it are
	// fungible tokens.
	MinNFTTokenId TokenId = 1 << 16
	// NFTTokenId is the counter token living in the NFT storage account,
	// whose balance is the next serial id to mint.
	NFTTokenId TokenId = (1 << 31) - 2
	// ETHTokenId is the base fungible token (token id 0).
	ETHTokenId TokenId = 0

	// MaxProcessableTokenId bounds the fee token to the tree's "cheap" left
	// subtree of size 2^10, per spec §4.2.
	MaxProcessableTokenId TokenId = 1 << 10

	// BalanceBitWidth is the maximum width of any balance value.
	BalanceBitWidth = 128
)

// maxBalance is the inclusive upper bound any token balance must fit under.
var maxBalance = new(big.Int).Lsh(big.NewInt(1), BalanceBitWidth)

// fitsInBalance reports whether v is non-negative and representable in
// BalanceBitWidth bits.
func fitsInBalance(v *big.Int) bool {
	return v.Sign() >= 0 && v.Cmp(maxBalance) < 0
}
