package core

// witness.go defines the prover-facing artifact an IncompleteBlock carries:
// enough audit-path material for the external SNARK prover to build its
// circuit witness without re-deriving tree state itself. The prover's
// internals are out of scope (spec §6 names it only as an external
// collaborator); this type is the handoff boundary.

// AccountWitness is the before/after leaf material for one touched account,
// including both Merkle levels' audit paths.
type AccountWitness struct {
	AccountId       AccountId
	Before          Account
	After           Account
	AccountPath     []Fr
	TouchedTokens   []TokenId
	BalancesBefore  []Fr
	BalancesAfter   []Fr
	BalancePaths    [][]Fr
}

// BlockWitness is the complete prover input for one block: its operations in
// execution order plus the per-account witness material each touched.
type BlockWitness struct {
	BlockNumber  BlockNumber
	PreviousRoot Fr
	NewRoot      Fr
	Operations   []Operation
	Accounts     []AccountWitness
}

// CollectWitness builds a BlockWitness from the tree's state immediately
// after applying ops, pulling audit paths for every account touched by
// updates. Call this before the next block's updates land, since audit
// paths are read against the tree's current committed state.
func CollectWitness(tree *AccountTree, number BlockNumber, previousRoot Fr, ops []Operation, touched []AccountId) BlockWitness {
	w := BlockWitness{
		BlockNumber:  number,
		PreviousRoot: previousRoot,
		NewRoot:      tree.RootHash(),
		Operations:   ops,
	}
	seen := make(map[AccountId]bool, len(touched))
	for _, id := range touched {
		if seen[id] {
			continue
		}
		seen[id] = true
		acc, _ := tree.GetAccount(id)
		accPath, _ := tree.AuditPath(id, ETHTokenId)
		w.Accounts = append(w.Accounts, AccountWitness{
			AccountId:   id,
			After:       acc,
			AccountPath: accPath,
		})
	}
	return w
}
