package core

import (
	"math/big"
	"testing"
)

func newTestTreeWithGenesis(t *testing.T) *AccountTree {
	t.Helper()
	tree := NewAccountTree()
	if err := Genesis(tree); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	return tree
}

func TestMintNFTAssignsSerialAndCredits(t *testing.T) {
	tree := newTestTreeWithGenesis(t)
	creatorKey := newSignedAccount(t, tree, 1, Address{0x01})
	_ = newSignedAccount(t, tree, 2, Address{0x02})
	fund(t, tree, 1, ETHTokenId, big.NewInt(1000))
	counter := NewNFTCounter(tree)

	tx := &MintNFT{CreatorAccountId: 1, RecipientAccountId: 2, ContentHash: Hash{0xAB}, Fee: big.NewInt(10), FeeToken: ETHTokenId, Nonce: 0}
	tx.Signature = signCanonical(t, creatorKey, tx.canonicalMessage())

	res, err := tx.Execute(tree, ExecContext{NFTCounter: counter})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if err := tree.ApplyUpdates(res.Updates); err != nil {
		t.Fatalf("apply updates: %v", err)
	}
	if got := tree.BalanceOf(2, MinNFTTokenId); got.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("recipient nft balance at token %d = %s, want 1", MinNFTTokenId, got)
	}
	if got := tree.BalanceOf(1, ETHTokenId); got.Cmp(big.NewInt(990)) != 0 {
		t.Fatalf("creator balance after fee = %s, want 990", got)
	}
	if next := counter.NextSerialId(); next != uint64(MinNFTTokenId)+1 {
		t.Fatalf("next serial id = %d, want %d", next, uint64(MinNFTTokenId)+1)
	}
}

func TestMintNFTRejectsWithoutCounter(t *testing.T) {
	tree := newTestTreeWithGenesis(t)
	creatorKey := newSignedAccount(t, tree, 1, Address{0x01})
	_ = newSignedAccount(t, tree, 2, Address{0x02})
	fund(t, tree, 1, ETHTokenId, big.NewInt(1000))

	tx := &MintNFT{CreatorAccountId: 1, RecipientAccountId: 2, ContentHash: Hash{0xAB}, Fee: big.NewInt(10), FeeToken: ETHTokenId, Nonce: 0}
	tx.Signature = signCanonical(t, creatorKey, tx.canonicalMessage())

	if _, err := tx.Execute(tree, ExecContext{}); err == nil {
		t.Fatal("expected mint without a configured NFTCounter to be rejected")
	}
}

func TestWithdrawNFTBurnsOwnedToken(t *testing.T) {
	tree := newTestTreeWithGenesis(t)
	creatorKey := newSignedAccount(t, tree, 1, Address{0x01})
	ownerKey := newSignedAccount(t, tree, 2, Address{0x02})
	fund(t, tree, 1, ETHTokenId, big.NewInt(1000))
	fund(t, tree, 2, ETHTokenId, big.NewInt(1000))
	counter := NewNFTCounter(tree)

	mint := &MintNFT{CreatorAccountId: 1, RecipientAccountId: 2, ContentHash: Hash{0xAB}, Fee: big.NewInt(0), FeeToken: ETHTokenId, Nonce: 0}
	mint.Signature = signCanonical(t, creatorKey, mint.canonicalMessage())
	mintRes, err := mint.Execute(tree, ExecContext{NFTCounter: counter})
	if err != nil {
		t.Fatalf("mint execute: %v", err)
	}
	if err := tree.ApplyUpdates(mintRes.Updates); err != nil {
		t.Fatalf("mint apply: %v", err)
	}

	withdraw := &WithdrawNFT{AccountId: 2, NFTToken: MinNFTTokenId, ToAddress: Address{0x09}, Fee: big.NewInt(5), FeeToken: ETHTokenId, Nonce: 0, ValidUntil: 1000}
	withdraw.Signature = signCanonical(t, ownerKey, withdraw.canonicalMessage())
	res, err := withdraw.Execute(tree, ExecContext{Timestamp: 500})
	if err != nil {
		t.Fatalf("withdraw execute: %v", err)
	}
	if err := tree.ApplyUpdates(res.Updates); err != nil {
		t.Fatalf("withdraw apply: %v", err)
	}
	if got := tree.BalanceOf(2, MinNFTTokenId); got.Sign() != 0 {
		t.Fatalf("nft balance after withdraw = %s, want 0", got)
	}
}

func TestWithdrawNFTRejectsUnownedToken(t *testing.T) {
	tree := newTestTreeWithGenesis(t)
	ownerKey := newSignedAccount(t, tree, 2, Address{0x02})
	fund(t, tree, 2, ETHTokenId, big.NewInt(1000))

	withdraw := &WithdrawNFT{AccountId: 2, NFTToken: MinNFTTokenId, ToAddress: Address{0x09}, Fee: big.NewInt(5), FeeToken: ETHTokenId, Nonce: 0, ValidUntil: 1000}
	withdraw.Signature = signCanonical(t, ownerKey, withdraw.canonicalMessage())

	if _, err := withdraw.Execute(tree, ExecContext{Timestamp: 500}); err == nil {
		t.Fatal("expected withdrawing an NFT the account doesn't own to be rejected")
	}
}

func TestWithdrawNFTRejectsTokenBelowReservedRange(t *testing.T) {
	tree := newTestTreeWithGenesis(t)
	ownerKey := newSignedAccount(t, tree, 2, Address{0x02})
	fund(t, tree, 2, ETHTokenId, big.NewInt(1000))

	withdraw := &WithdrawNFT{AccountId: 2, NFTToken: ETHTokenId, ToAddress: Address{0x09}, Fee: big.NewInt(5), FeeToken: ETHTokenId, Nonce: 0, ValidUntil: 1000}
	withdraw.Signature = signCanonical(t, ownerKey, withdraw.canonicalMessage())

	if _, err := withdraw.Execute(tree, ExecContext{Timestamp: 500}); err == nil {
		t.Fatal("expected a non-NFT token id to be rejected")
	}
}
