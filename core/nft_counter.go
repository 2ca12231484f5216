package core

// nft_counter.go adapts the teacher's Coin mint-cap manager (coin.go: a
// mutex-guarded counter tracking total minted supply against a cap,
// verified against the ledger snapshot at construction) to the global NFT
// serial counter described in spec §3.2/§3.3: the NFT storage account's
// balance on NFTTokenId equals MinNFTTokenId + (total NFTs ever minted),
// and must increase strictly monotonically.

import (
	"fmt"
	"math/big"
)

// NFTCounter reads and advances the global NFT serial counter held in the
// NFT storage account. MintNFT operations go through this type instead of
// touching NFTStorageAccountId's balance directly, so the invariant is
// enforced in one place.
type NFTCounter struct {
	tree *AccountTree
}

// NewNFTCounter constructs a counter bound to tree. The caller must ensure
// NFTStorageAccountId exists (genesis bootstraps it via InsertAccount).
func NewNFTCounter(tree *AccountTree) *NFTCounter {
	return &NFTCounter{tree: tree}
}

// NextSerialId returns the serial id that would be assigned to the next
// minted NFT, without mutating state.
func (c *NFTCounter) NextSerialId() uint64 {
	v := c.tree.BalanceOf(NFTStorageAccountId, NFTTokenId)
	if v.Sign() == 0 {
		return uint64(MinNFTTokenId)
	}
	return v.Uint64()
}

// AdvanceUpdate builds the AccountUpdate that increments the counter by one,
// to be appended to a MintNFT operation's update batch. It does not apply
// the update itself — ApplyUpdates validates and commits it atomically
// alongside the rest of that operation's balance changes.
func (c *NFTCounter) AdvanceUpdate() (AccountUpdate, uint64, error) {
	current := c.NextSerialId()
	next := current + 1
	if next <= current {
		return AccountUpdate{}, 0, fmt.Errorf("nft counter: overflow")
	}
	acc, ok := c.tree.GetAccount(NFTStorageAccountId)
	if !ok {
		return AccountUpdate{}, 0, fmt.Errorf("nft counter: %w", ErrUnknownAccount)
	}
	return AccountUpdate{
		Kind:       UpdateBalance,
		AccountId:  NFTStorageAccountId,
		Token:      NFTTokenId,
		OldBalance: new(big.Int).SetUint64(current),
		NewBalance: new(big.Int).SetUint64(next),
		OldNonce:   acc.Nonce,
		NewNonce:   acc.Nonce,
	}, current, nil
}
