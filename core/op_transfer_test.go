package core

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

// signCanonical produces a 65-byte [R||S||V] signature DefaultSigner.Verify accepts.
func signCanonical(t *testing.T, priv []byte, message []byte) Signature {
	t.Helper()
	key, err := crypto.ToECDSA(priv)
	if err != nil {
		t.Fatalf("ToECDSA: %v", err)
	}
	digest := crypto.Keccak256(message)
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		t.Fatalf("crypto.Sign: %v", err)
	}
	return Signature(sig)
}

// newSignedAccount generates a fresh secp256k1 key, inserts an account with
// its PubKeyHash already set (as if ChangePubKey had already run), and
// returns the raw private key bytes for signing future transactions from it.
func newSignedAccount(t *testing.T, tree *AccountTree, id AccountId, addr Address) []byte {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pubHash := DefaultSigner.PubKeyHashOf(&key.PublicKey)
	if err := tree.InsertAccount(id, Account{Address: addr, PubKeyHash: pubHash}); err != nil {
		t.Fatalf("insert account: %v", err)
	}
	return crypto.FromECDSA(key)
}

func fund(t *testing.T, tree *AccountTree, id AccountId, token TokenId, amount *big.Int) {
	t.Helper()
	if err := tree.ApplyUpdates([]AccountUpdate{
		{Kind: UpdateBalance, AccountId: id, Token: token, OldBalance: big.NewInt(0), NewBalance: amount},
	}); err != nil {
		t.Fatalf("fund: %v", err)
	}
}

func TestTransferExecuteMovesBalanceAndChargesFee(t *testing.T) {
	tree := NewAccountTree()
	fromKey := newSignedAccount(t, tree, 1, Address{0x01})
	_ = newSignedAccount(t, tree, 2, Address{0x02})
	fund(t, tree, 1, ETHTokenId, big.NewInt(1000))

	tx := &Transfer{FromAccountId: 1, ToAccountId: 2, Token: ETHTokenId, Amount: big.NewInt(300), Fee: big.NewInt(10), Nonce: 0, ValidUntil: 1000}
	tx.Signature = signCanonical(t, fromKey, tx.CanonicalMessage())

	res, err := tx.Execute(tree, ExecContext{Timestamp: 500})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Fee == nil || res.Fee.Amount.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("fee = %+v, want 10", res.Fee)
	}
	if err := tree.ApplyUpdates(res.Updates); err != nil {
		t.Fatalf("apply updates: %v", err)
	}
	if got := tree.BalanceOf(1, ETHTokenId); got.Cmp(big.NewInt(690)) != 0 {
		t.Fatalf("sender balance = %s, want 690", got)
	}
	if got := tree.BalanceOf(2, ETHTokenId); got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("recipient balance = %s, want 300", got)
	}
}

func TestTransferExecuteRejectsBadSignature(t *testing.T) {
	tree := NewAccountTree()
	_ = newSignedAccount(t, tree, 1, Address{0x01})
	_ = newSignedAccount(t, tree, 2, Address{0x02})
	fund(t, tree, 1, ETHTokenId, big.NewInt(1000))

	otherKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tx := &Transfer{FromAccountId: 1, ToAccountId: 2, Token: ETHTokenId, Amount: big.NewInt(300), Fee: big.NewInt(10), Nonce: 0, ValidUntil: 1000}
	tx.Signature = signCanonical(t, crypto.FromECDSA(otherKey), tx.CanonicalMessage())

	if _, err := tx.Execute(tree, ExecContext{Timestamp: 500}); err == nil {
		t.Fatal("expected signature from an unrelated key to be rejected")
	}
}

func TestTransferExecuteRejectsInsufficientBalance(t *testing.T) {
	tree := NewAccountTree()
	fromKey := newSignedAccount(t, tree, 1, Address{0x01})
	_ = newSignedAccount(t, tree, 2, Address{0x02})
	fund(t, tree, 1, ETHTokenId, big.NewInt(100))

	tx := &Transfer{FromAccountId: 1, ToAccountId: 2, Token: ETHTokenId, Amount: big.NewInt(300), Fee: big.NewInt(10), Nonce: 0, ValidUntil: 1000}
	tx.Signature = signCanonical(t, fromKey, tx.CanonicalMessage())

	if _, err := tx.Execute(tree, ExecContext{Timestamp: 500}); err == nil {
		t.Fatal("expected insufficient balance to be rejected")
	}
}

func TestTransferExecuteRejectsStaleNonce(t *testing.T) {
	tree := NewAccountTree()
	fromKey := newSignedAccount(t, tree, 1, Address{0x01})
	_ = newSignedAccount(t, tree, 2, Address{0x02})
	fund(t, tree, 1, ETHTokenId, big.NewInt(1000))

	tx := &Transfer{FromAccountId: 1, ToAccountId: 2, Token: ETHTokenId, Amount: big.NewInt(300), Fee: big.NewInt(10), Nonce: 1, ValidUntil: 1000}
	tx.Signature = signCanonical(t, fromKey, tx.CanonicalMessage())

	if _, err := tx.Execute(tree, ExecContext{Timestamp: 500}); err == nil {
		t.Fatal("expected nonce mismatch (account nonce is 0, tx claims 1) to be rejected")
	}
}

func TestTransferToNewExecuteCreatesAccount(t *testing.T) {
	tree := NewAccountTree()
	fromKey := newSignedAccount(t, tree, 1, Address{0x01})
	fund(t, tree, 1, ETHTokenId, big.NewInt(1000))

	tx := &TransferToNew{FromAccountId: 1, Token: ETHTokenId, Amount: big.NewInt(400), ToAddress: Address{0x09}, ToAccountId: 2, Fee: big.NewInt(5), Nonce: 0, ValidUntil: 1000}
	tx.Signature = signCanonical(t, fromKey, tx.CanonicalMessage())

	res, err := tx.Execute(tree, ExecContext{Timestamp: 500})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if err := tree.ApplyUpdates(res.Updates); err != nil {
		t.Fatalf("apply updates: %v", err)
	}
	acc, ok := tree.GetAccount(2)
	if !ok || acc.Address != (Address{0x09}) {
		t.Fatalf("expected account 2 created with address 0x09, got %+v ok=%v", acc, ok)
	}
	if got := tree.BalanceOf(2, ETHTokenId); got.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("new account balance = %s, want 400", got)
	}
}

func TestTransferToNewExecuteRejectsAddressAlreadyTaken(t *testing.T) {
	tree := NewAccountTree()
	fromKey := newSignedAccount(t, tree, 1, Address{0x01})
	_ = newSignedAccount(t, tree, 2, Address{0x02})
	fund(t, tree, 1, ETHTokenId, big.NewInt(1000))

	tx := &TransferToNew{FromAccountId: 1, Token: ETHTokenId, Amount: big.NewInt(400), ToAddress: Address{0x02}, ToAccountId: 3, Fee: big.NewInt(5), Nonce: 0, ValidUntil: 1000}
	tx.Signature = signCanonical(t, fromKey, tx.CanonicalMessage())

	if _, err := tx.Execute(tree, ExecContext{Timestamp: 500}); err == nil {
		t.Fatal("expected address already registered to another account to be rejected")
	}
}

func TestWithdrawExecuteBurnsBalance(t *testing.T) {
	tree := NewAccountTree()
	key := newSignedAccount(t, tree, 1, Address{0x01})
	fund(t, tree, 1, ETHTokenId, big.NewInt(1000))

	tx := &Withdraw{AccountId: 1, Token: ETHTokenId, Amount: big.NewInt(600), Fee: big.NewInt(20), ToAddress: Address{0x05}, Nonce: 0, ValidUntil: 1000}
	tx.Signature = signCanonical(t, key, tx.CanonicalMessage())

	res, err := tx.Execute(tree, ExecContext{Timestamp: 500})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if err := tree.ApplyUpdates(res.Updates); err != nil {
		t.Fatalf("apply updates: %v", err)
	}
	if got := tree.BalanceOf(1, ETHTokenId); got.Cmp(big.NewInt(380)) != 0 {
		t.Fatalf("balance = %s, want 380", got)
	}
}

func TestWithdrawExecuteRejectsOutsideValidTimeRange(t *testing.T) {
	tree := NewAccountTree()
	key := newSignedAccount(t, tree, 1, Address{0x01})
	fund(t, tree, 1, ETHTokenId, big.NewInt(1000))

	tx := &Withdraw{AccountId: 1, Token: ETHTokenId, Amount: big.NewInt(600), Fee: big.NewInt(20), ToAddress: Address{0x05}, Nonce: 0, ValidFrom: 100, ValidUntil: 200}
	tx.Signature = signCanonical(t, key, tx.CanonicalMessage())

	if _, err := tx.Execute(tree, ExecContext{Timestamp: 500}); err == nil {
		t.Fatal("expected a timestamp outside [ValidFrom, ValidUntil] to be rejected")
	}
}

func TestForcedExitExecuteDrainsTargetFully(t *testing.T) {
	tree := NewAccountTree()
	initKey := newSignedAccount(t, tree, 1, Address{0x01})
	_ = newSignedAccount(t, tree, 2, Address{0x02})
	fund(t, tree, 1, ETHTokenId, big.NewInt(100))
	fund(t, tree, 2, ETHTokenId, big.NewInt(50))

	tx := &ForcedExit{InitiatorAccountId: 1, TargetAccountId: 2, Token: ETHTokenId, Fee: big.NewInt(10), Nonce: 0, ValidUntil: 1000}
	tx.Signature = signCanonical(t, initKey, tx.CanonicalMessage())

	res, err := tx.Execute(tree, ExecContext{Timestamp: 500})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if err := tree.ApplyUpdates(res.Updates); err != nil {
		t.Fatalf("apply updates: %v", err)
	}
	if got := tree.BalanceOf(2, ETHTokenId); got.Sign() != 0 {
		t.Fatalf("target balance = %s, want 0", got)
	}
	if got := tree.BalanceOf(1, ETHTokenId); got.Cmp(big.NewInt(90)) != 0 {
		t.Fatalf("initiator balance = %s, want 90", got)
	}
}

func TestForcedExitExecuteRejectsEmptyTarget(t *testing.T) {
	tree := NewAccountTree()
	initKey := newSignedAccount(t, tree, 1, Address{0x01})
	_ = newSignedAccount(t, tree, 2, Address{0x02})
	fund(t, tree, 1, ETHTokenId, big.NewInt(100))

	tx := &ForcedExit{InitiatorAccountId: 1, TargetAccountId: 2, Token: ETHTokenId, Fee: big.NewInt(10), Nonce: 0, ValidUntil: 1000}
	tx.Signature = signCanonical(t, initKey, tx.CanonicalMessage())

	if _, err := tx.Execute(tree, ExecContext{Timestamp: 500}); err == nil {
		t.Fatal("expected forced exit on an already-empty target balance to be rejected")
	}
}
