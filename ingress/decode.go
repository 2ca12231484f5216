package ingress

// decode.go turns one settlement-contract NewPriorityRequest log into the
// core.Operation it represents. The contract emits a single event carrying
// an opaque op-type tag and ABI-encoded payload for both priority op kinds,
// mirroring the original eth_watch.rs's Log -> typed-struct TryFrom
// conversions (there split across Token/ContractBalance, here across
// Deposit/FullExit).

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"

	"rollupnode/core"
)

const eventNewPriorityRequest = "NewPriorityRequest"

const (
	priorityOpDeposit  uint8 = 1
	priorityOpFullExit uint8 = 2
)

type priorityRequestEvent struct {
	SerialId        uint64
	OpType          uint8
	PubData         []byte
	ExpirationBlock *big.Int
}

// DecodePriorityOpLog unpacks lg as a NewPriorityRequest event and builds
// the corresponding core.Operation (Deposit or FullExit).
func DecodePriorityOpLog(contractABI abi.ABI, lg types.Log) (core.Operation, core.SerialId, error) {
	var ev priorityRequestEvent
	if err := contractABI.UnpackIntoInterface(&ev, eventNewPriorityRequest, lg.Data); err != nil {
		return nil, 0, fmt.Errorf("decode priority op log: %w", err)
	}
	switch ev.OpType {
	case priorityOpDeposit:
		op, err := decodeDepositPayload(ev.PubData)
		if err != nil {
			return nil, 0, err
		}
		return op, core.SerialId(ev.SerialId), nil
	case priorityOpFullExit:
		op, err := decodeFullExitPayload(ev.PubData)
		if err != nil {
			return nil, 0, err
		}
		return op, core.SerialId(ev.SerialId), nil
	default:
		return nil, 0, fmt.Errorf("decode priority op log: unknown op type %d", ev.OpType)
	}
}

// decodeDepositPayload parses: account_id(4) | token(4) | amount(32) | to(20)
func decodeDepositPayload(b []byte) (*core.Deposit, error) {
	if len(b) < 60 {
		return nil, fmt.Errorf("decode deposit payload: %w", core.ErrTruncatedPubdata)
	}
	d := &core.Deposit{
		AccountId: core.AccountId(binary.BigEndian.Uint32(b[0:4])),
		Token:     core.TokenId(binary.BigEndian.Uint32(b[4:8])),
		Amount:    new(big.Int).SetBytes(b[8:40]),
	}
	copy(d.To[:], b[40:60])
	return d, nil
}

// decodeFullExitPayload parses: account_id(4) | eth_address(20) | token(4)
func decodeFullExitPayload(b []byte) (*core.FullExit, error) {
	if len(b) < 28 {
		return nil, fmt.Errorf("decode full exit payload: %w", core.ErrTruncatedPubdata)
	}
	f := &core.FullExit{AccountId: core.AccountId(binary.BigEndian.Uint32(b[0:4]))}
	copy(f.EthAddress[:], b[4:24])
	f.Token = core.TokenId(binary.BigEndian.Uint32(b[24:28]))
	return f, nil
}
