package contract

import (
	"fmt"

	"rollupnode/commitqueue"
	"rollupnode/core"
)

// rawABI is satisfied by abi.ABI; kept as a narrow interface so tests can
// substitute a stub encoder without pulling in go-ethereum's ABI machinery.
type rawABI interface {
	Pack(name string, args ...interface{}) ([]byte, error)
}

// Encoder builds the settlement-chain calldata for a proven block's three
// transactions, handing them to the commit queue in the order C6 expects
// them enqueued (commit, then publish-proof keyed by block index, then
// execute).
type Encoder struct {
	abiParsed rawABI
}

// NewEncoder wraps a parsed settlement contract ABI (see Parsed).
func NewEncoder(parsed rawABI) *Encoder {
	return &Encoder{abiParsed: parsed}
}

// CommitTx builds the commitBlock calldata for a newly sealed block.
func (e *Encoder) CommitTx(blk *core.IncompleteBlock) (commitqueue.RawTx, error) {
	data, err := e.abiParsed.Pack("commitBlock", uint32(blk.Number), blk.PreviousRoot.Bytes(), blk.NewRoot.Bytes(), blk.Pubdata, blk.Timestamp)
	if err != nil {
		return commitqueue.RawTx{}, fmt.Errorf("contract: encode commitBlock: %w", err)
	}
	return commitqueue.RawTx{BlockNumber: uint32(blk.Number), Data: data}, nil
}

// PublishProofTx builds the publishBlockProof calldata for a proven block.
func (e *Encoder) PublishProofTx(blk *core.Block) (commitqueue.RawTx, error) {
	data, err := e.abiParsed.Pack("publishBlockProof", uint32(blk.Number), blk.ProofBytes)
	if err != nil {
		return commitqueue.RawTx{}, fmt.Errorf("contract: encode publishBlockProof: %w", err)
	}
	return commitqueue.RawTx{BlockNumber: uint32(blk.Number), Data: data}, nil
}

// ExecuteTx builds the executeBlock calldata for a block whose proof has
// already been published.
func (e *Encoder) ExecuteTx(number core.BlockNumber) (commitqueue.RawTx, error) {
	data, err := e.abiParsed.Pack("executeBlock", uint32(number))
	if err != nil {
		return commitqueue.RawTx{}, fmt.Errorf("contract: encode executeBlock: %w", err)
	}
	return commitqueue.RawTx{BlockNumber: uint32(number), Data: data}, nil
}
