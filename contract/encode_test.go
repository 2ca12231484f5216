package contract

import (
	"errors"
	"reflect"
	"testing"

	"rollupnode/core"
)

// stubABI is a rawABI whose Pack just records its call for assertions,
// standing in for abi.ABI so these tests don't depend on the real ABI
// encoding, only that Encoder calls Pack with the right name/args.
type stubABI struct {
	calls [][]interface{}
	err   error
}

func (s *stubABI) Pack(name string, args ...interface{}) ([]byte, error) {
	call := append([]interface{}{name}, args...)
	s.calls = append(s.calls, call)
	if s.err != nil {
		return nil, s.err
	}
	return []byte("encoded"), nil
}

func TestEncoderCommitTx(t *testing.T) {
	stub := &stubABI{}
	enc := NewEncoder(stub)
	blk := &core.IncompleteBlock{Number: 5, Timestamp: 123}

	tx, err := enc.CommitTx(blk)
	if err != nil {
		t.Fatalf("CommitTx: %v", err)
	}
	if tx.BlockNumber != 5 {
		t.Fatalf("BlockNumber = %d, want 5", tx.BlockNumber)
	}
	if len(stub.calls) != 1 || stub.calls[0][0] != "commitBlock" {
		t.Fatalf("unexpected calls: %+v", stub.calls)
	}
}

func TestEncoderPublishProofTx(t *testing.T) {
	stub := &stubABI{}
	enc := NewEncoder(stub)
	blk := &core.Block{IncompleteBlock: core.IncompleteBlock{Number: 9}, ProofBytes: []byte{0x01, 0x02}}

	tx, err := enc.PublishProofTx(blk)
	if err != nil {
		t.Fatalf("PublishProofTx: %v", err)
	}
	if tx.BlockNumber != 9 {
		t.Fatalf("BlockNumber = %d, want 9", tx.BlockNumber)
	}
	want := []interface{}{"publishBlockProof", uint32(9), blk.ProofBytes}
	if !reflect.DeepEqual(stub.calls[0], want) {
		t.Fatalf("calls[0] = %+v, want %+v", stub.calls[0], want)
	}
}

func TestEncoderExecuteTx(t *testing.T) {
	stub := &stubABI{}
	enc := NewEncoder(stub)

	tx, err := enc.ExecuteTx(core.BlockNumber(42))
	if err != nil {
		t.Fatalf("ExecuteTx: %v", err)
	}
	if tx.BlockNumber != 42 {
		t.Fatalf("BlockNumber = %d, want 42", tx.BlockNumber)
	}
}

func TestEncoderPropagatesPackError(t *testing.T) {
	stub := &stubABI{err: errors.New("boom")}
	enc := NewEncoder(stub)
	if _, err := enc.CommitTx(&core.IncompleteBlock{}); err == nil {
		t.Fatal("expected Pack error to propagate")
	}
}
