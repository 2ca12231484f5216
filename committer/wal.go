// Package committer owns everything that happens to a sealed block after
// the state keeper hands it off: durability ahead of the Postgres flush,
// the Postgres persistence gateway itself, and (in commitqueue) submission
// to the settlement chain. wal.go is grounded on the teacher's ledger.go
// WAL skeleton (open-append-replay, periodic snapshot, gzip archive and
// prune), repurposed from a full UTXO/contract ledger log to a narrow
// append-only log of sealed-but-not-yet-persisted blocks: if the process
// dies between sealing a block and finishing the Postgres write, the WAL
// lets it pick back up without re-running the state keeper.
package committer

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"rollupnode/core"
)

// WALConfig configures a WAL's on-disk layout.
type WALConfig struct {
	// Path is the active append-only log file.
	Path string
	// SnapshotPath, if set, receives the active log file itself (renamed,
	// replacing any earlier file there) every SnapshotInterval appends,
	// after which Path starts empty. No compacted image is written.
	SnapshotPath     string
	SnapshotInterval int
	// ArchivePath, if set, receives gzip-compressed copies of the entries
	// Confirm prunes. Confirm prunes only when PruneInterval > 0; the value
	// is not used as an entry count.
	ArchivePath   string
	PruneInterval int
}

// walRecord is the on-disk encoding of one sealed block. PriorityOps are
// recorded only by serial id: their full content is authoritative in the
// settlement-chain log and is re-derived there during data restore, so the
// WAL need not duplicate it.
type walRecord struct {
	Number              uint32   `json:"number"`
	NewRoot             [32]byte `json:"new_root"`
	PreviousRoot        [32]byte `json:"previous_root"`
	Pubdata             []byte   `json:"pubdata"`
	PriorityOpSerialIds []uint64 `json:"priority_op_serial_ids"`
	Timestamp           int64    `json:"timestamp"`
}

func toRecord(blk *core.IncompleteBlock) walRecord {
	ids := make([]uint64, len(blk.PriorityOps))
	for i, po := range blk.PriorityOps {
		ids[i] = uint64(po.SerialId)
	}
	return walRecord{
		Number:              uint32(blk.Number),
		NewRoot:             blk.NewRoot.Bytes(),
		PreviousRoot:        blk.PreviousRoot.Bytes(),
		Pubdata:             blk.Pubdata,
		PriorityOpSerialIds: ids,
		Timestamp:           blk.Timestamp,
	}
}

func (r walRecord) toBlock() *core.IncompleteBlock {
	blk := &core.IncompleteBlock{
		Number:    core.BlockNumber(r.Number),
		Pubdata:   r.Pubdata,
		Timestamp: r.Timestamp,
	}
	blk.NewRoot.SetBytes(r.NewRoot[:])
	blk.PreviousRoot.SetBytes(r.PreviousRoot[:])
	blk.PriorityOps = make([]core.PriorityOp, len(r.PriorityOpSerialIds))
	for i, id := range r.PriorityOpSerialIds {
		blk.PriorityOps[i] = core.PriorityOp{SerialId: core.SerialId(id)}
	}
	return blk
}

// WAL is an append-only durability log for sealed blocks awaiting Postgres
// persistence. A single Gateway owns a WAL; Append is safe to call from the
// gateway's own goroutine only (no internal concurrency is assumed beyond
// the mutex guarding file rotation).
type WAL struct {
	mu               sync.Mutex
	file             *os.File
	cfg              WALConfig
	pendingSinceSnap int
	entriesOnDisk    int
	log              *logrus.Entry
}

// OpenWAL opens (creating if absent) the WAL file at cfg.Path and replays
// its contents, returning both the handle and the recovered backlog of
// blocks that had not yet been confirmed persisted.
func OpenWAL(cfg WALConfig) (*WAL, []*core.IncompleteBlock, error) {
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("committer: open wal: %w", err)
	}

	var backlog []*core.IncompleteBlock
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var rec walRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("committer: wal replay: %w", err)
		}
		backlog = append(backlog, rec.toBlock())
	}
	if err := scanner.Err(); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("committer: wal scan: %w", err)
	}

	w := &WAL{
		file:          f,
		cfg:           cfg,
		entriesOnDisk: len(backlog),
		log:           logrus.WithField("component", "committer_wal"),
	}
	if len(backlog) > 0 {
		w.log.WithField("count", len(backlog)).Info("recovered unconfirmed blocks from wal")
	}
	return w, backlog, nil
}

// Append durably records blk. Call this as soon as the state keeper seals
// a block, before waiting on the prover or the Postgres write.
func (w *WAL) Append(blk *core.IncompleteBlock) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(toRecord(blk))
	if err != nil {
		return fmt.Errorf("committer: marshal wal record: %w", err)
	}
	if _, err := w.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("committer: write wal: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("committer: sync wal: %w", err)
	}
	w.entriesOnDisk++
	w.pendingSinceSnap++

	if w.cfg.SnapshotInterval > 0 && w.pendingSinceSnap >= w.cfg.SnapshotInterval {
		if err := w.snapshotLocked(); err != nil {
			w.log.WithError(err).Error("wal snapshot failed")
		}
	}
	return nil
}

// Confirm marks entries up to and including number as durably persisted in
// Postgres, pruning them out of the WAL (archiving first if ArchivePath is
// configured). Call this after a successful Gateway.FinishIncompleteBlock.
func (w *WAL) Confirm(number core.BlockNumber) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cfg.PruneInterval <= 0 {
		return nil
	}
	return w.pruneUpToLocked(number)
}

// snapshotLocked truncates the active log; callers should already hold mu.
// Since a snapshot here means "the active log has been fully durable long
// enough to start fresh," it simply restarts the file rather than writing a
// separate compacted snapshot file (there's no full-state image to
// compact against, unlike the teacher's ledger snapshot).
func (w *WAL) snapshotLocked() error {
	if w.cfg.SnapshotPath == "" {
		w.pendingSinceSnap = 0
		return nil
	}
	if err := w.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(w.cfg.Path, w.cfg.SnapshotPath); err != nil {
		return err
	}
	f, err := os.OpenFile(w.cfg.Path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	w.file = f
	w.pendingSinceSnap = 0
	w.log.WithField("path", w.cfg.SnapshotPath).Info("wal rotated")
	return nil
}

// pruneUpToLocked archives (if configured) and drops every record with
// Number <= number, rewriting the active log with the remainder.
func (w *WAL) pruneUpToLocked(number core.BlockNumber) error {
	if err := w.file.Sync(); err != nil {
		return err
	}
	if _, err := w.file.Seek(0, 0); err != nil {
		return err
	}

	var archive *gzip.Writer
	var archiveFile *os.File
	if w.cfg.ArchivePath != "" {
		var err error
		archiveFile, err = os.OpenFile(w.cfg.ArchivePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("committer: open wal archive: %w", err)
		}
		archive = gzip.NewWriter(archiveFile)
	}

	scanner := bufio.NewScanner(w.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var kept [][]byte
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		var rec walRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			if archive != nil {
				archive.Close()
				archiveFile.Close()
			}
			return fmt.Errorf("committer: wal prune decode: %w", err)
		}
		if core.BlockNumber(rec.Number) <= number {
			if archive != nil {
				archive.Write(line)
				archive.Write([]byte("\n"))
			}
			continue
		}
		kept = append(kept, line)
	}
	if archive != nil {
		if err := archive.Close(); err != nil {
			archiveFile.Close()
			return err
		}
		if err := archiveFile.Close(); err != nil {
			return err
		}
	}

	if err := w.file.Close(); err != nil {
		return err
	}
	f, err := os.Create(w.cfg.Path)
	if err != nil {
		return err
	}
	for _, line := range kept {
		if _, err := f.Write(append(line, '\n')); err != nil {
			f.Close()
			return err
		}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	w.file = f
	w.entriesOnDisk = len(kept)
	return nil
}

// Close releases the underlying file handle.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Close()
}
