package committer

import (
	"os"
	"path/filepath"
	"testing"

	"rollupnode/core"
)

func sampleBlock(number uint32) *core.IncompleteBlock {
	blk := &core.IncompleteBlock{
		Number:      core.BlockNumber(number),
		Pubdata:     []byte{0x01, 0x02, 0x03},
		Timestamp:   1000 + int64(number),
		PriorityOps: []core.PriorityOp{{SerialId: core.SerialId(number)}},
	}
	blk.NewRoot.SetUint64(uint64(number))
	return blk
}

func TestWALAppendAndReopenRecoversBacklog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")

	wal, backlog, err := OpenWAL(WALConfig{Path: path})
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	if len(backlog) != 0 {
		t.Fatalf("expected empty backlog on fresh wal, got %d", len(backlog))
	}
	if err := wal.Append(sampleBlock(1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := wal.Append(sampleBlock(2)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := wal.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	wal2, backlog2, err := OpenWAL(WALConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen wal: %v", err)
	}
	defer wal2.Close()
	if len(backlog2) != 2 {
		t.Fatalf("expected 2 recovered entries, got %d", len(backlog2))
	}
	if backlog2[0].Number != 1 || backlog2[1].Number != 2 {
		t.Fatalf("unexpected recovered blocks: %+v", backlog2)
	}
	if len(backlog2[0].PriorityOps) != 1 || backlog2[0].PriorityOps[0].SerialId != 1 {
		t.Fatalf("priority op serial ids not recovered: %+v", backlog2[0].PriorityOps)
	}
}

func TestWALSnapshotRotatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")
	snapPath := filepath.Join(dir, "wal.snapshot")

	wal, _, err := OpenWAL(WALConfig{Path: path, SnapshotPath: snapPath, SnapshotInterval: 2})
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	defer wal.Close()

	if err := wal.Append(sampleBlock(1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := wal.Append(sampleBlock(2)); err != nil {
		t.Fatalf("append: %v", err)
	}

	if _, err := os.Stat(snapPath); err != nil {
		t.Fatalf("expected snapshot file to exist after hitting SnapshotInterval: %v", err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat active log: %v", err)
	}
	if fi.Size() != 0 {
		t.Fatalf("expected active log to be fresh after rotation, size=%d", fi.Size())
	}
}

func TestWALConfirmPrunesUpToNumber(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")
	archivePath := filepath.Join(dir, "wal.archive.gz")

	wal, _, err := OpenWAL(WALConfig{Path: path, ArchivePath: archivePath, PruneInterval: 1})
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	defer wal.Close()

	for i := uint32(1); i <= 3; i++ {
		if err := wal.Append(sampleBlock(i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if err := wal.Confirm(core.BlockNumber(2)); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	_, backlog, err := OpenWAL(WALConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if len(backlog) != 1 || backlog[0].Number != 3 {
		t.Fatalf("expected only block 3 to remain, got %+v", backlog)
	}
	if _, err := os.Stat(archivePath); err != nil {
		t.Fatalf("expected archive file to exist: %v", err)
	}
}

func TestWALConfirmNoopWhenPruneIntervalUnset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")
	wal, _, err := OpenWAL(WALConfig{Path: path})
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	defer wal.Close()
	if err := wal.Append(sampleBlock(1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := wal.Confirm(core.BlockNumber(1)); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	_, backlog, err := OpenWAL(WALConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if len(backlog) != 1 {
		t.Fatalf("expected confirm with no PruneInterval to be a no-op, got %d entries", len(backlog))
	}
}
