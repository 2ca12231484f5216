package core

import "testing"

func TestCollectWitnessDedupsTouchedAccountsPreservingFirstOccurrence(t *testing.T) {
	tree := NewAccountTree()
	if err := tree.InsertAccount(1, Account{Address: Address{0x01}}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tree.InsertAccount(2, Account{Address: Address{0x02}}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	prevRoot := tree.RootHash()

	w := CollectWitness(tree, 7, prevRoot, nil, []AccountId{1, 2, 1})
	if w.BlockNumber != 7 {
		t.Fatalf("block number = %d, want 7", w.BlockNumber)
	}
	if w.PreviousRoot != prevRoot {
		t.Fatal("previous root not preserved")
	}
	if w.NewRoot != tree.RootHash() {
		t.Fatal("new root should reflect the tree's current committed root")
	}
	if len(w.Accounts) != 2 {
		t.Fatalf("expected 2 deduped accounts, got %d", len(w.Accounts))
	}
	if w.Accounts[0].AccountId != 1 || w.Accounts[1].AccountId != 2 {
		t.Fatalf("unexpected account order: %+v", w.Accounts)
	}
}
