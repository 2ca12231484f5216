package core

// block.go defines the block lifecycle types of spec §3.2: a PendingBlock
// accumulates operations under the state keeper's open budget; sealing
// freezes it into an IncompleteBlock (pubdata finalized, proof pending);
// once the external prover returns a proof it becomes a committed Block
// ready for the settlement-chain commit queue.

import "math/big"

// PriorityOp is a Deposit or FullExit admitted into a block from the
// ingress watcher's ordered queue, carrying its originating serial id so
// data restore can verify replay order against the settlement chain's log.
type PriorityOp struct {
	SerialId  SerialId
	Operation Operation
}

// CollectedFeeTotal aggregates CollectedFee entries by token across a block,
// credited to the operator's fee account once at seal time.
type CollectedFeeTotal map[TokenId]*big.Int

func (t CollectedFeeTotal) add(fee *CollectedFee) {
	if fee == nil || fee.Amount == nil || fee.Amount.Sign() == 0 {
		return
	}
	cur, ok := t[fee.Token]
	if !ok {
		cur = new(big.Int)
		t[fee.Token] = cur
	}
	cur.Add(cur, fee.Amount)
}

// PendingBlock is the open, mutable block the state keeper is currently
// filling. It is owned exclusively by the state keeper's single writer
// goroutine.
type PendingBlock struct {
	Number         BlockNumber
	Timestamp      int64
	Operations     []Operation
	PriorityOps    []PriorityOp
	ChunksUsed     int
	GasUsed        uint64
	Fees           CollectedFeeTotal
	PreviousRoot   Fr
	FailedTxHashes [][32]byte
}

// NewPendingBlock starts a fresh block extending previousRoot.
func NewPendingBlock(number BlockNumber, timestamp int64, previousRoot Fr) *PendingBlock {
	return &PendingBlock{
		Number:       number,
		Timestamp:    timestamp,
		Fees:         make(CollectedFeeTotal),
		PreviousRoot: previousRoot,
	}
}

// Append records a successfully executed operation's chunk/gas cost and
// collected fee into the running block totals.
func (b *PendingBlock) Append(op Operation, chunks int, gas uint64, fee *CollectedFee) {
	b.Operations = append(b.Operations, op)
	b.ChunksUsed += chunks
	b.GasUsed += gas
	b.Fees.add(fee)
}

// IncompleteBlock is a sealed block: its pubdata and new root are final, but
// it has not yet received a SNARK proof from the external prover.
type IncompleteBlock struct {
	Number       BlockNumber
	NewRoot      Fr
	PreviousRoot Fr
	Pubdata      []byte
	PriorityOps  []PriorityOp
	Timestamp    int64
}

// Block is a proven block, ready to be queued for settlement-chain commit.
type Block struct {
	IncompleteBlock
	ProofBytes []byte
	Commitment Fr
}
