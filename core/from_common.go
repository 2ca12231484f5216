package core

import "github.com/ethereum/go-ethereum/common"

// FromCommon converts a go-ethereum common.Address (the settlement chain's
// native address type) into the core Address type.
func FromCommon(a common.Address) Address {
	var out Address
	copy(out[:], a.Bytes())
	return out
}

// ToCommon converts a core Address back into a go-ethereum common.Address,
// used whenever a signed settlement-chain transaction needs to reference an
// account (priority-op watcher, commit queue, data restore).
func ToCommon(a Address) common.Address {
	return common.BytesToAddress(a[:])
}
