package core

import (
	"math/big"
	"testing"
)

func TestAccountManagerCreateAndTransfer(t *testing.T) {
	tree := NewAccountTree()
	am := NewAccountManager(tree)

	if err := am.CreateAccount(1, Address{0x01}); err != nil {
		t.Fatalf("create account 1: %v", err)
	}
	if err := am.CreateAccount(2, Address{0x02}); err != nil {
		t.Fatalf("create account 2: %v", err)
	}
	fund(t, tree, 1, ETHTokenId, big.NewInt(500))

	if err := am.Transfer(1, 2, ETHTokenId, big.NewInt(200)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := am.Balance(1, ETHTokenId); got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("src balance = %s, want 300", got)
	}
	if got := am.Balance(2, ETHTokenId); got.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("dst balance = %s, want 200", got)
	}
}

func TestAccountManagerTransferRejectsNonPositiveAmount(t *testing.T) {
	tree := NewAccountTree()
	am := NewAccountManager(tree)
	if err := am.CreateAccount(1, Address{0x01}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := am.CreateAccount(2, Address{0x02}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := am.Transfer(1, 2, ETHTokenId, big.NewInt(0)); err == nil {
		t.Fatal("expected a zero transfer amount to be rejected")
	}
	if err := am.Transfer(1, 2, ETHTokenId, big.NewInt(-5)); err == nil {
		t.Fatal("expected a negative transfer amount to be rejected")
	}
}

func TestAccountManagerTransferRejectsInsufficientBalance(t *testing.T) {
	tree := NewAccountTree()
	am := NewAccountManager(tree)
	if err := am.CreateAccount(1, Address{0x01}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := am.CreateAccount(2, Address{0x02}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := am.Transfer(1, 2, ETHTokenId, big.NewInt(100)); err == nil {
		t.Fatal("expected transfer with no funded balance to be rejected")
	}
}

func TestAccountManagerTransferRejectsUnknownAccounts(t *testing.T) {
	tree := NewAccountTree()
	am := NewAccountManager(tree)
	if err := am.CreateAccount(1, Address{0x01}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := am.Transfer(1, 2, ETHTokenId, big.NewInt(10)); err == nil {
		t.Fatal("expected transfer to an unknown destination account to be rejected")
	}
}
