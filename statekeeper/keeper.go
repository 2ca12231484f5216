package statekeeper

// keeper.go is the state machine described in spec §4.4, adapted from the
// teacher's rollup Aggregator (rollups.go/rollup_management.go): where the
// teacher's Aggregator accepted whole pre-formed batches and moved them
// through {Pending, Challenged, Finalised, Reverted} via on-chain fraud
// proofs, this keeper builds one block at a time from individual
// operations and priority ops, moving it through
// {Idle, PendingBlockOpen, Sealing, Finishing} — sealing is a local budget
// decision, not a challenge-period timeout, and "finalisation" is an
// external prover's proof rather than the absence of a fraud proof. The
// teacher's pause/resume admin toggle is kept as-is: a paused keeper stops
// admitting new operations but still drains its current pending block.

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"rollupnode/core"
)

// KeeperState is the block lifecycle state, per spec §4.4.
type KeeperState uint8

const (
	StateIdle KeeperState = iota
	StatePendingBlockOpen
	StateSealing
	StateFinishing
)

func (s KeeperState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePendingBlockOpen:
		return "pending_block_open"
	case StateSealing:
		return "sealing"
	case StateFinishing:
		return "finishing"
	default:
		return "unknown"
	}
}

// txRequest is a signed operation submitted for admission, paired with a
// channel the caller blocks on for the admission result.
type txRequest struct {
	op     core.Operation
	result chan<- error
}

// priorityOpRequest is a Deposit/FullExit admitted from C5's ingress queue.
// Priority ops are never rejected for resource reasons — if the current
// block has no room, it is sealed first and the op opens the next one.
type priorityOpRequest struct {
	op core.PriorityOp
}

// tickRequest sets the pending block's timestamp. It seals the block only
// when maxIdleTs is non-zero; nothing in this package sets maxIdleTs, so
// ticks do not seal blocks.
type tickRequest struct {
	timestamp int64
}

// Keeper owns the one AccountTree writer goroutine in the process, per
// spec §5's single-writer discipline: every mutation enters through Run's
// event loop, never through a directly-shared method call from another
// goroutine.
type Keeper struct {
	tree   *core.AccountTree
	budget Budget

	events chan any
	sealed chan<- *core.IncompleteBlock

	signerCache *core.SignerCache
	nftCounter  *core.NFTCounter

	mu            sync.Mutex // guards only paused/state, read by Status from other goroutines
	paused        bool
	state         KeeperState
	nextAccountId core.AccountId

	pending   *core.PendingBlock
	touched   map[core.AccountId]bool
	maxIdleTs int64 // seconds; 0 disables time-based sealing

	log *logrus.Entry
}

// NewKeeper constructs a keeper over tree, emitting sealed blocks onto
// sealedCh. firstFreeAccountId seeds the id counter past whatever genesis
// or data-restore already populated.
func NewKeeper(tree *core.AccountTree, budget Budget, firstFreeAccountId core.AccountId, sealedCh chan<- *core.IncompleteBlock) (*Keeper, error) {
	signerCache, err := core.NewSignerCache(4096)
	if err != nil {
		return nil, fmt.Errorf("statekeeper: %w", err)
	}
	return &Keeper{
		tree:          tree,
		budget:        budget,
		events:        make(chan any, 256),
		sealed:        sealedCh,
		signerCache:   signerCache,
		nftCounter:    core.NewNFTCounter(tree),
		state:         StateIdle,
		nextAccountId: firstFreeAccountId,
		log:           logrus.WithField("component", "statekeeper"),
	}, nil
}

// SubmitTx enqueues a signed operation for admission and blocks until it is
// either admitted into the pending block or rejected. Safe to call from any
// goroutine; the actual tree mutation still happens only on Run's loop.
func (k *Keeper) SubmitTx(ctx context.Context, op core.Operation) error {
	result := make(chan error, 1)
	select {
	case k.events <- txRequest{op: op, result: result}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitPriorityOp enqueues a priority op admitted by the ingress watcher.
func (k *Keeper) SubmitPriorityOp(ctx context.Context, op core.PriorityOp) error {
	select {
	case k.events <- priorityOpRequest{op: op}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tick notifies the keeper of wall-clock progress, which becomes the
// pending block's timestamp (see tickRequest on sealing).
func (k *Keeper) Tick(ctx context.Context, timestamp int64) error {
	select {
	case k.events <- tickRequest{timestamp: timestamp}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pause stops admission of new txs and priority ops; the current pending
// block still drains to a seal.
func (k *Keeper) Pause() {
	k.mu.Lock()
	k.paused = true
	k.mu.Unlock()
}

// Resume lifts Pause.
func (k *Keeper) Resume() {
	k.mu.Lock()
	k.paused = false
	k.mu.Unlock()
}

// Paused reports the current admission gate.
func (k *Keeper) Paused() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.paused
}

// Status returns the keeper's current lifecycle state.
func (k *Keeper) Status() KeeperState {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state
}

func (k *Keeper) setState(s KeeperState) {
	k.mu.Lock()
	k.state = s
	k.mu.Unlock()
}

// Run is the keeper's single writer loop. It must be the only goroutine
// that ever calls tree.ApplyUpdates, per spec §5. Run blocks until ctx is
// cancelled or the event channel closes.
func (k *Keeper) Run(ctx context.Context, startNumber core.BlockNumber) error {
	number := startNumber
	k.pending = core.NewPendingBlock(number, 0, k.tree.RootHash())
	k.touched = make(map[core.AccountId]bool)
	k.setState(StateIdle)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-k.events:
			switch e := ev.(type) {
			case txRequest:
				e.result <- k.admitTx(e.op)
			case priorityOpRequest:
				t := e.op.Operation.Type()
				if len(k.pending.Operations)+len(k.pending.PriorityOps) > 0 &&
					!k.budget.Fits(k.pending.ChunksUsed, k.pending.GasUsed, len(k.pending.Operations), t, t.Chunks()) {
					k.sealPending(&number)
				}
				k.admitPriorityOp(e.op)
			case tickRequest:
				k.pending.Timestamp = e.timestamp
				if k.shouldSealOnTick(e.timestamp) {
					k.sealPending(&number)
				}
			case sealRequest:
				k.sealPending(&number)
				close(e.done)
			}
		}
	}
}

func (k *Keeper) shouldSealOnTick(ts int64) bool {
	if k.maxIdleTs == 0 || len(k.pending.Operations) == 0 {
		return false
	}
	return ts-k.pending.Timestamp >= k.maxIdleTs
}

func (k *Keeper) admitTx(op core.Operation) error {
	if k.Paused() {
		return fmt.Errorf("statekeeper: paused")
	}
	t := op.Type()
	chunks := t.Chunks()
	if !k.budget.Fits(k.pending.ChunksUsed, k.pending.GasUsed, len(k.pending.Operations), t, chunks) {
		return fmt.Errorf("statekeeper: %w", core.ErrChunkBudgetExceeded)
	}
	ctx := core.ExecContext{
		BlockNumber: k.pending.Number,
		Timestamp:   k.pending.Timestamp,
		Signers:     k.signerCache,
		NFTCounter:  k.nftCounter,
	}
	result, err := op.Execute(k.tree, ctx)
	if err != nil {
		return err
	}
	if err := k.tree.ApplyUpdates(result.Updates); err != nil {
		return fmt.Errorf("statekeeper: apply rejected tx: %w", err)
	}
	for _, u := range result.Updates {
		k.touched[u.AccountId] = true
	}
	k.pending.Append(op, chunks, GasCost(t), result.Fee)
	k.setState(StatePendingBlockOpen)
	return nil
}

func (k *Keeper) admitPriorityOp(po core.PriorityOp) {
	t := po.Operation.Type()
	chunks := t.Chunks()
	ctx := core.ExecContext{
		BlockNumber: k.pending.Number,
		Timestamp:   k.pending.Timestamp,
		Signers:     k.signerCache,
		NFTCounter:  k.nftCounter,
	}
	result, err := po.Operation.Execute(k.tree, ctx)
	if err != nil {
		k.log.WithError(err).WithField("serial_id", po.SerialId).Error("priority op rejected by handler, skipping")
		return
	}
	if err := k.tree.ApplyUpdates(result.Updates); err != nil {
		k.log.WithError(err).WithField("serial_id", po.SerialId).Error("priority op rejected by tree, skipping")
		return
	}
	for _, u := range result.Updates {
		k.touched[u.AccountId] = true
	}
	k.pending.PriorityOps = append(k.pending.PriorityOps, po)
	k.pending.ChunksUsed += chunks
	k.pending.GasUsed += GasCost(t)
	k.setState(StatePendingBlockOpen)
}

// NextAccountId reserves and returns the next free account id, for
// TransferToNew/Deposit admission against a previously unseen address.
func (k *Keeper) NextAccountId() core.AccountId {
	id := k.nextAccountId
	k.nextAccountId++
	return id
}

// sealPending finalizes the current pending block's pubdata, resets for the
// next block, and publishes the result onto the sealed channel.
func (k *Keeper) sealPending(number *core.BlockNumber) {
	k.setState(StateSealing)
	pubdata := make([]byte, 0, k.pending.ChunksUsed*core.ChunkSize)
	for _, op := range k.pending.Operations {
		enc, err := core.EncodePubdata(op)
		if err != nil {
			k.log.WithError(err).Error("failed to encode operation into pubdata; dropping block")
			k.setState(StateIdle)
			return
		}
		pubdata = append(pubdata, enc...)
	}
	ib := &core.IncompleteBlock{
		Number:       k.pending.Number,
		NewRoot:      k.tree.RootHash(),
		PreviousRoot: k.pending.PreviousRoot,
		Pubdata:      pubdata,
		PriorityOps:  k.pending.PriorityOps,
		Timestamp:    k.pending.Timestamp,
	}
	select {
	case k.sealed <- ib:
	default:
		k.log.Warn("sealed-block channel full; blocking until consumed")
		k.sealed <- ib
	}
	k.setState(StateFinishing)
	*number++
	k.pending = core.NewPendingBlock(*number, k.pending.Timestamp, ib.NewRoot)
	k.touched = make(map[core.AccountId]bool)
	k.setState(StateIdle)
}

// Seal forces an immediate seal of the current pending block, even if under
// budget — used by CLI tooling and tests.
func (k *Keeper) Seal(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case k.events <- sealRequest{done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type sealRequest struct{ done chan struct{} }
