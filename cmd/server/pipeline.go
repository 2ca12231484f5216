package main

// pipeline.go is what happens to a block once statekeeper.Keeper seals it:
// durability, persistence, proving, and handing its settlement transactions
// to the commit queue, per spec §4.8/§6. Computing the real SNARK
// commitment is proof-system internals (out of scope per the Non-goals
// section); the block's own new root stands in for it here so the
// persistence/commit-queue plumbing has a well-formed value to carry.

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"rollupnode/commitqueue"
	"rollupnode/committer"
	"rollupnode/contract"
	"rollupnode/core"
	"rollupnode/prover"
)

type sealedBlockPipeline struct {
	gateway  *committer.Gateway
	wal      *committer.WAL
	prover   prover.Client
	encoder  *contract.Encoder
	queue    *commitqueue.Queue
	pollEach time.Duration
	log      *logrus.Entry
}

// run drains sealed blocks one at a time: a block must finish its own
// durability/persist/prove/enqueue sequence before the next one starts,
// since the commit queue's publish-proof sub-queue depends on blocks
// arriving in order.
func (p *sealedBlockPipeline) run(ctx context.Context, sealedCh <-chan *core.IncompleteBlock) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case blk := <-sealedCh:
			if err := p.process(ctx, blk); err != nil {
				p.log.WithError(err).WithField("block", blk.Number).Error("failed to process sealed block")
			}
		}
	}
}

func (p *sealedBlockPipeline) process(ctx context.Context, blk *core.IncompleteBlock) error {
	if err := p.wal.Append(blk); err != nil {
		return fmt.Errorf("pipeline: wal append: %w", err)
	}
	if err := p.gateway.SaveIncompleteBlock(ctx, blk); err != nil {
		return fmt.Errorf("pipeline: save incomplete block: %w", err)
	}

	commitTx, err := p.encoder.CommitTx(blk)
	if err != nil {
		return fmt.Errorf("pipeline: encode commit: %w", err)
	}
	p.queue.AddCommitOperation(commitTx)

	correlationID, err := p.prover.SubmitBlock(ctx, blk.Number, blk.Pubdata)
	if err != nil {
		return fmt.Errorf("pipeline: submit block to prover: %w", err)
	}
	proof, err := prover.PollUntilReady(ctx, p.prover, blk.Number, correlationID, p.pollEach)
	if err != nil {
		return fmt.Errorf("pipeline: poll proof: %w", err)
	}

	proven := &core.Block{IncompleteBlock: *blk, ProofBytes: proof, Commitment: blk.NewRoot}
	if err := p.gateway.FinishIncompleteBlock(ctx, proven); err != nil {
		return fmt.Errorf("pipeline: finish incomplete block: %w", err)
	}
	if err := p.gateway.StoreProof(ctx, blk.Number, proof); err != nil {
		return fmt.Errorf("pipeline: store proof: %w", err)
	}

	publishTx, err := p.encoder.PublishProofTx(proven)
	if err != nil {
		return fmt.Errorf("pipeline: encode publish proof: %w", err)
	}
	p.queue.AddPublishProofOperation(int(blk.Number), publishTx)

	executeTx, err := p.encoder.ExecuteTx(blk.Number)
	if err != nil {
		return fmt.Errorf("pipeline: encode execute: %w", err)
	}
	p.queue.AddExecuteOperation(executeTx)

	p.log.WithField("block", blk.Number).Info("sealed block proven and enqueued for settlement")
	return nil
}
