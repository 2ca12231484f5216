package statekeeper

// budget.go is the per-operation-kind resource table the state keeper
// charges against a block's chunk and gas budgets (spec §4.4). It is
// adapted from the teacher's opcode gas schedule (gas_table.go): a static
// map keyed by operation kind, a punitive default for anything missing, and
// a log-once guard so a missing entry doesn't spam production logs.

import (
	"sync"

	"github.com/sirupsen/logrus"

	"rollupnode/core"
)

// DefaultGasCost is charged for any operation kind that has slipped through
// the cracks — deliberately high to surface the gap during testing rather
// than silently under-pricing it.
const DefaultGasCost uint64 = 100_000

// gasTable assigns a settlement-chain gas estimate to each operation kind,
// used by the chunk/gas budget check before admitting a tx into the pending
// block (spec §4.4's "would exceed the gas budget" rejection).
var gasTable = map[core.TxType]uint64{
	core.TxNoop:          0,
	core.TxDeposit:       60_000,
	core.TxTransferToNew: 50_000,
	core.TxTransfer:      30_000,
	core.TxWithdraw:      45_000,
	core.TxFullExit:      55_000,
	core.TxChangePubKey:  65_000,
	core.TxForcedExit:    48_000,
	core.TxMintNFT:       70_000,
	core.TxWithdrawNFT:   60_000,
	core.TxSwap:          90_000,
	core.TxClose:         20_000,
}

var (
	missingGasLogged   = make(map[core.TxType]bool)
	missingGasLoggedMu sync.Mutex
)

// GasCost returns the base settlement-chain gas estimate for t, falling back
// to DefaultGasCost (logged exactly once per missing kind) for anything not
// in the table.
func GasCost(t core.TxType) uint64 {
	if cost, ok := gasTable[t]; ok {
		return cost
	}
	missingGasLoggedMu.Lock()
	if !missingGasLogged[t] {
		missingGasLogged[t] = true
		logrus.WithField("tx_type", t).Warn("statekeeper: missing gas cost, charging default")
	}
	missingGasLoggedMu.Unlock()
	return DefaultGasCost
}

// Budget bounds how much a single block may hold, per spec §4.4.
type Budget struct {
	MaxChunks     int
	MaxGas        uint64
	MaxOperations int
}

// DefaultBudget mirrors the reference deployment's block-size limits.
var DefaultBudget = Budget{
	MaxChunks:     680,
	MaxGas:        15_000_000,
	MaxOperations: 256,
}

// Fits reports whether admitting an operation of kind t, costing chunks
// pubdata chunks, would keep the block within b given its current usage.
func (b Budget) Fits(usedChunks int, usedGas uint64, usedOps int, t core.TxType, chunks int) bool {
	if usedOps+1 > b.MaxOperations {
		return false
	}
	if usedChunks+chunks > b.MaxChunks {
		return false
	}
	if usedGas+GasCost(t) > b.MaxGas {
		return false
	}
	return true
}
