package committer

// gateway.go is the durable persistence boundary between the state keeper
// and the settlement-chain commit queue. It is grounded on the original
// implementation's committer/mod.rs and lib/storage's block/prover schemas
// (store_pending_block, save_incomplete_block, finish_incomplete_block,
// remove_reverted_block, commit_state_update, get_last_committed_block,
// get_last_verified_block, load_pending_block, store_proof, load_proof),
// translated from sqlx-over-Diesel async queries to database/sql +
// github.com/lib/pq, in the teacher's plain-query style (no ORM).

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"rollupnode/core"
)

// Gateway is the single persistence boundary used by the committer and
// commit-queue packages; every method is a direct SQL statement against
// the schema this type owns.
type Gateway struct {
	pool *Pool
	wal  *WAL
}

// NewGateway wires a Pool and WAL together into a Gateway. Callers should
// replay the WAL's returned backlog through FinishIncompleteBlock (or
// RemoveRevertedBlock) before serving new traffic, since those are blocks
// the state keeper sealed but the gateway never confirmed persisted.
func NewGateway(pool *Pool, wal *WAL) *Gateway {
	return &Gateway{pool: pool, wal: wal}
}

// StorePendingBlock persists the operator's in-progress block so an
// unclean shutdown doesn't lose partially-filled block state. Overwrites
// any existing row for the same number.
func (g *Gateway) StorePendingBlock(ctx context.Context, blk *core.PendingBlock) error {
	pubdata, err := encodePendingOps(blk)
	if err != nil {
		return fmt.Errorf("committer: encode pending block: %w", err)
	}
	_, err = g.pool.DB().ExecContext(ctx, `
		INSERT INTO pending_blocks (number, timestamp, chunks_used, gas_used, previous_root, pubdata)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (number) DO UPDATE SET
			timestamp = EXCLUDED.timestamp,
			chunks_used = EXCLUDED.chunks_used,
			gas_used = EXCLUDED.gas_used,
			previous_root = EXCLUDED.previous_root,
			pubdata = EXCLUDED.pubdata
	`, blk.Number, blk.Timestamp, blk.ChunksUsed, blk.GasUsed, rootBytes(blk.PreviousRoot), pubdata)
	if err != nil {
		return fmt.Errorf("committer: store pending block: %w", err)
	}
	return nil
}

// LoadPendingBlock restores the last stored pending block, if any, for the
// state keeper to resume filling after a restart.
func (g *Gateway) LoadPendingBlock(ctx context.Context) (*core.PendingBlock, error) {
	row := g.pool.DB().QueryRowContext(ctx, `
		SELECT number, timestamp, chunks_used, gas_used, previous_root, pubdata
		FROM pending_blocks ORDER BY number DESC LIMIT 1
	`)
	var number uint32
	var timestamp int64
	var chunksUsed int
	var gasUsed uint64
	var prevRootBytes []byte
	var pubdata []byte
	if err := row.Scan(&number, &timestamp, &chunksUsed, &gasUsed, &prevRootBytes, &pubdata); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("committer: load pending block: %w", err)
	}
	var prevRoot core.Fr
	prevRoot.SetBytes(prevRootBytes)
	blk := core.NewPendingBlock(core.BlockNumber(number), timestamp, prevRoot)
	blk.ChunksUsed = chunksUsed
	blk.GasUsed = gasUsed
	ops, err := decodePendingOps(pubdata)
	if err != nil {
		return nil, fmt.Errorf("committer: decode pending block: %w", err)
	}
	blk.Operations = ops
	return blk, nil
}

// SaveIncompleteBlock records a sealed block (final pubdata, pending
// proof) in Postgres. Call this only after WAL.Append has already made the
// block durable.
func (g *Gateway) SaveIncompleteBlock(ctx context.Context, blk *core.IncompleteBlock) error {
	_, err := g.pool.DB().ExecContext(ctx, `
		INSERT INTO blocks (number, new_root, previous_root, pubdata, timestamp, proof_bytes, commitment)
		VALUES ($1, $2, $3, $4, $5, NULL, NULL)
		ON CONFLICT (number) DO NOTHING
	`, blk.Number, rootBytes(blk.NewRoot), rootBytes(blk.PreviousRoot), blk.Pubdata, blk.Timestamp)
	if err != nil {
		return fmt.Errorf("committer: save incomplete block: %w", err)
	}
	if err := g.storePriorityOpRefs(ctx, blk.Number, blk.PriorityOps); err != nil {
		return err
	}
	return nil
}

// FinishIncompleteBlock attaches the external prover's proof and
// commitment to a previously saved incomplete block, and confirms the WAL
// entry may be pruned.
func (g *Gateway) FinishIncompleteBlock(ctx context.Context, blk *core.Block) error {
	_, err := g.pool.DB().ExecContext(ctx, `
		UPDATE blocks SET proof_bytes = $2, commitment = $3 WHERE number = $1
	`, blk.Number, blk.ProofBytes, rootBytes(blk.Commitment))
	if err != nil {
		return fmt.Errorf("committer: finish incomplete block: %w", err)
	}
	if g.wal != nil {
		if err := g.wal.Confirm(blk.Number); err != nil {
			return fmt.Errorf("committer: confirm wal: %w", err)
		}
	}
	return nil
}

// RemoveRevertedBlock deletes a block that the commit queue learned was
// reorged out of the settlement chain after being submitted.
func (g *Gateway) RemoveRevertedBlock(ctx context.Context, number core.BlockNumber) error {
	_, err := g.pool.DB().ExecContext(ctx, `DELETE FROM blocks WHERE number = $1`, number)
	if err != nil {
		return fmt.Errorf("committer: remove reverted block: %w", err)
	}
	return nil
}

// CommitStateUpdate records that a block's commit transaction landed on
// the settlement chain at txHash.
func (g *Gateway) CommitStateUpdate(ctx context.Context, number core.BlockNumber, txHash [32]byte) error {
	_, err := g.pool.DB().ExecContext(ctx, `
		UPDATE blocks SET commit_tx_hash = $2 WHERE number = $1
	`, number, txHash[:])
	if err != nil {
		return fmt.Errorf("committer: commit state update: %w", err)
	}
	return nil
}

// GetLastCommittedBlock returns the highest block number with a recorded
// commit transaction, or 0 if none.
func (g *Gateway) GetLastCommittedBlock(ctx context.Context) (core.BlockNumber, error) {
	var n sql.NullInt64
	err := g.pool.DB().QueryRowContext(ctx, `
		SELECT MAX(number) FROM blocks WHERE commit_tx_hash IS NOT NULL
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("committer: get last committed block: %w", err)
	}
	return core.BlockNumber(n.Int64), nil
}

// GetLastVerifiedBlock returns the highest block number with a stored
// proof, or 0 if none.
func (g *Gateway) GetLastVerifiedBlock(ctx context.Context) (core.BlockNumber, error) {
	var n sql.NullInt64
	err := g.pool.DB().QueryRowContext(ctx, `
		SELECT MAX(number) FROM blocks WHERE proof_bytes IS NOT NULL
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("committer: get last verified block: %w", err)
	}
	return core.BlockNumber(n.Int64), nil
}

// StoreProof persists a prover-supplied proof independently of
// FinishIncompleteBlock, for callers (e.g. the prover client's own
// polling loop) that learn of a proof before the committer does.
func (g *Gateway) StoreProof(ctx context.Context, number core.BlockNumber, proof []byte) error {
	_, err := g.pool.DB().ExecContext(ctx, `
		INSERT INTO proofs (block_number, proof_bytes) VALUES ($1, $2)
		ON CONFLICT (block_number) DO UPDATE SET proof_bytes = EXCLUDED.proof_bytes
	`, number, proof)
	if err != nil {
		return fmt.Errorf("committer: store proof: %w", err)
	}
	return nil
}

// LoadProof returns a previously stored proof for number, if any.
func (g *Gateway) LoadProof(ctx context.Context, number core.BlockNumber) ([]byte, error) {
	var proof []byte
	err := g.pool.DB().QueryRowContext(ctx, `
		SELECT proof_bytes FROM proofs WHERE block_number = $1
	`, number).Scan(&proof)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("committer: load proof: %w", err)
	}
	return proof, nil
}

func (g *Gateway) storePriorityOpRefs(ctx context.Context, number core.BlockNumber, ops []core.PriorityOp) error {
	for _, po := range ops {
		_, err := g.pool.DB().ExecContext(ctx, `
			INSERT INTO block_priority_ops (block_number, serial_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, number, uint64(po.SerialId))
		if err != nil {
			return fmt.Errorf("committer: store priority op ref: %w", err)
		}
	}
	return nil
}

func rootBytes(r core.Fr) []byte {
	b := r.Bytes()
	return b[:]
}

// pendingOpRecord is the JSON envelope used to persist a PendingBlock's
// still-open operation list, tagging each with its wire TxType so it can
// be routed back through pubdata decoding on reload.
type pendingOpRecord struct {
	Type core.TxType `json:"type"`
	Body []byte      `json:"body"`
}

func encodePendingOps(blk *core.PendingBlock) ([]byte, error) {
	recs := make([]pendingOpRecord, 0, len(blk.Operations))
	for _, op := range blk.Operations {
		body, err := core.EncodePubdata(op)
		if err != nil {
			return nil, err
		}
		recs = append(recs, pendingOpRecord{Type: op.Type(), Body: body})
	}
	return json.Marshal(recs)
}

func decodePendingOps(data []byte) ([]core.Operation, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var recs []pendingOpRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, err
	}
	ops := make([]core.Operation, 0, len(recs))
	for _, rec := range recs {
		op, _, err := core.DecodePubdata(rec.Body, core.LayoutV1)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}
