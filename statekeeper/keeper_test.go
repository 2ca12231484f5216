package statekeeper

import (
	"context"
	"math/big"
	"testing"
	"time"

	"rollupnode/core"
)

func newTestKeeper(t *testing.T, budget Budget) (*Keeper, *core.AccountTree, chan *core.IncompleteBlock) {
	t.Helper()
	tree := core.NewAccountTree()
	sealedCh := make(chan *core.IncompleteBlock, 4)
	keeper, err := NewKeeper(tree, budget, 1, sealedCh)
	if err != nil {
		t.Fatalf("new keeper: %v", err)
	}
	return keeper, tree, sealedCh
}

func runKeeper(t *testing.T, keeper *Keeper) (context.CancelFunc, chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- keeper.Run(ctx, 1) }()
	return cancel, errCh
}

func TestKeeperAdmitsPriorityOpAndSealsOnDemand(t *testing.T) {
	keeper, _, sealedCh := newTestKeeper(t, DefaultBudget)
	cancel, _ := runKeeper(t, keeper)
	defer cancel()

	ctx := context.Background()
	dep := core.PriorityOp{
		SerialId: 1,
		Operation: &core.Deposit{
			AccountId: 1,
			Token:     core.ETHTokenId,
			Amount:    big.NewInt(1000),
			To:        core.Address{0x01},
		},
	}
	if err := keeper.SubmitPriorityOp(ctx, dep); err != nil {
		t.Fatalf("submit priority op: %v", err)
	}
	// Give the event loop a tick to drain the channel before sealing.
	time.Sleep(10 * time.Millisecond)

	if err := keeper.Seal(ctx); err != nil {
		t.Fatalf("seal: %v", err)
	}

	select {
	case blk := <-sealedCh:
		if len(blk.PriorityOps) != 1 {
			t.Fatalf("sealed block has %d priority ops, want 1", len(blk.PriorityOps))
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sealed block")
	}
}

func TestKeeperRejectsTxWhenPaused(t *testing.T) {
	keeper, _, _ := newTestKeeper(t, DefaultBudget)
	cancel, _ := runKeeper(t, keeper)
	defer cancel()

	keeper.Pause()
	if !keeper.Paused() {
		t.Fatal("expected keeper to report paused")
	}

	err := keeper.SubmitTx(context.Background(), &core.Noop{})
	if err == nil {
		t.Fatal("expected tx submission to be rejected while paused")
	}

	keeper.Resume()
	if keeper.Paused() {
		t.Fatal("expected keeper to report unpaused after Resume")
	}
}

func TestKeeperRejectsTxExceedingChunkBudget(t *testing.T) {
	tight := Budget{MaxChunks: 0, MaxGas: DefaultBudget.MaxGas, MaxOperations: DefaultBudget.MaxOperations}
	keeper, _, _ := newTestKeeper(t, tight)
	cancel, _ := runKeeper(t, keeper)
	defer cancel()

	err := keeper.SubmitTx(context.Background(), &core.Noop{})
	if err == nil {
		t.Fatal("expected chunk-budget-exceeding tx to be rejected")
	}
}

func TestKeeperAssignsIncreasingAccountIds(t *testing.T) {
	keeper, _, _ := newTestKeeper(t, DefaultBudget)
	first := keeper.NextAccountId()
	second := keeper.NextAccountId()
	if second != first+1 {
		t.Fatalf("expected sequential account ids, got %d then %d", first, second)
	}
}

func TestBudgetFitsRespectsAllThreeLimits(t *testing.T) {
	b := Budget{MaxChunks: 10, MaxGas: 100, MaxOperations: 1}
	if !b.Fits(0, 0, 0, core.TxNoop, 1) {
		t.Fatal("expected a fresh block to fit one no-op")
	}
	if b.Fits(0, 0, 1, core.TxNoop, 1) {
		t.Fatal("expected MaxOperations to reject a second op")
	}
	if b.Fits(10, 0, 0, core.TxNoop, 1) {
		t.Fatal("expected MaxChunks to reject when already full")
	}
	if b.Fits(0, 100, 0, core.TxDeposit, 1) {
		t.Fatal("expected MaxGas to reject when already at the ceiling")
	}
}

func TestGasCostFallsBackToDefaultForUnknownType(t *testing.T) {
	if got := GasCost(core.TxType(250)); got != DefaultGasCost {
		t.Fatalf("GasCost(unknown) = %d, want %d", got, DefaultGasCost)
	}
}
