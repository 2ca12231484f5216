package datarestore

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"rollupnode/contract"
	"rollupnode/core"
)

func TestDecodeBlockPubdataSplitsOperationsAndPriorityOps(t *testing.T) {
	dep, err := core.EncodePubdata(&core.Deposit{AccountId: 1, Token: core.ETHTokenId, Amount: big.NewInt(100), To: core.Address{0x01}, SerialId: 5})
	if err != nil {
		t.Fatalf("encode deposit: %v", err)
	}
	noop, err := core.EncodePubdata(&core.Noop{})
	if err != nil {
		t.Fatalf("encode noop: %v", err)
	}
	fullExit, err := core.EncodePubdata(&core.FullExit{AccountId: 2, EthAddress: core.Address{0x02}, Token: core.ETHTokenId, SerialId: 6})
	if err != nil {
		t.Fatalf("encode full exit: %v", err)
	}

	pubdata := append(append(append([]byte{}, dep...), noop...), fullExit...)
	ops, priorityOps, err := decodeBlockPubdata(pubdata)
	if err != nil {
		t.Fatalf("decodeBlockPubdata: %v", err)
	}
	if len(ops) != 3 {
		t.Fatalf("got %d ops, want 3", len(ops))
	}
	if len(priorityOps) != 2 {
		t.Fatalf("got %d priority ops, want 2", len(priorityOps))
	}
}

type fakeCheckpoint struct {
	last  core.BlockNumber
	saved []*core.IncompleteBlock
}

func (c *fakeCheckpoint) LastRestoredBlock(ctx context.Context) (core.BlockNumber, error) {
	return c.last, nil
}

func (c *fakeCheckpoint) SaveRestoredBlock(ctx context.Context, blk *core.IncompleteBlock) error {
	c.saved = append(c.saved, blk)
	return nil
}

func newTestDriver(t *testing.T, checkpoint Checkpoint) (*Driver, *core.AccountTree) {
	t.Helper()
	tree := core.NewAccountTree()
	if err := core.Genesis(tree); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	parsed, err := contract.Parsed()
	if err != nil {
		t.Fatalf("contract.Parsed: %v", err)
	}
	return NewDriver(nil, common.Address{}, parsed, tree, checkpoint, 0), tree
}

func TestExecuteAllAppliesOperationsInOrder(t *testing.T) {
	driver, tree := newTestDriver(t, &fakeCheckpoint{})
	if err := tree.InsertAccount(1, core.Account{Address: core.Address{0x01}}); err != nil {
		t.Fatalf("insert account: %v", err)
	}

	ops := []core.Operation{
		&core.Deposit{AccountId: 1, Token: core.ETHTokenId, Amount: big.NewInt(500), To: core.Address{0x01}},
	}
	if err := driver.executeAll(ops, 1, 100); err != nil {
		t.Fatalf("executeAll: %v", err)
	}
	if got := tree.BalanceOf(1, core.ETHTokenId); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("balance = %s, want 500", got)
	}
}

func TestExecuteAllPropagatesOperationError(t *testing.T) {
	driver, _ := newTestDriver(t, &fakeCheckpoint{})
	// Withdraw from an account that doesn't exist must fail.
	ops := []core.Operation{
		&core.Withdraw{AccountId: 99, Token: core.ETHTokenId, Amount: big.NewInt(1), Fee: big.NewInt(0)},
	}
	if err := driver.executeAll(ops, 1, 100); err == nil {
		t.Fatal("expected executeAll to propagate the operation's error")
	}
}

func TestReplayLogSkipsAlreadyRestoredBlocks(t *testing.T) {
	checkpoint := &fakeCheckpoint{}
	driver, _ := newTestDriver(t, checkpoint)
	driver.resumeAfter = 5

	parsed, err := contract.Parsed()
	if err != nil {
		t.Fatalf("contract.Parsed: %v", err)
	}
	ev := parsed.Events[eventBlockCommit]
	data, err := ev.Inputs.Pack(uint32(3), [32]byte{}, []byte{}, int64(0))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	if err := driver.replayLog(context.Background(), types.Log{Data: data}); err != nil {
		t.Fatalf("replayLog: %v", err)
	}
	if len(checkpoint.saved) != 0 {
		t.Fatal("expected a block at or below resumeAfter to be skipped, not checkpointed")
	}
}

func TestReplayLogRejectsRootMismatch(t *testing.T) {
	checkpoint := &fakeCheckpoint{}
	driver, tree := newTestDriver(t, checkpoint)

	parsed, err := contract.Parsed()
	if err != nil {
		t.Fatalf("contract.Parsed: %v", err)
	}
	ev := parsed.Events[eventBlockCommit]
	wrongRoot := [32]byte{0xFF}
	data, err := ev.Inputs.Pack(uint32(1), wrongRoot, []byte{}, int64(0))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	if err := driver.replayLog(context.Background(), types.Log{Data: data}); err == nil {
		t.Fatal("expected root mismatch to be rejected")
	}
	_ = tree
}
