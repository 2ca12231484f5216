package statekeeper

// txfilter.go orders a batch of incoming signed operations per spec §4.4's
// mempool admission rule: operations from the same account are put in
// increasing nonce order. It only sorts: nonces are not compared with the
// account's current nonce, and an operation after a gap (nonce N+2 with no
// N+1) is still returned rather than held back.

import "rollupnode/core"

// nonced is implemented by every operation type that carries an
// account-scoped nonce (everything except the priority ops, which aren't
// mempool-admitted by nonce at all).
type nonced interface {
	core.Operation
	NonceOwner() (core.AccountId, core.Nonce)
}

// OrderByNonce groups ops by their owning account and returns them
// concatenated such that each account's own ops appear in ascending nonce
// order; ops whose type doesn't carry a nonce pass through untouched in
// their original relative order, appended after the nonced groups.
//
// This does not guarantee cross-account fairness — that is the caller's
// (mempool's) job; it only guarantees a single account's ops are never
// presented to the keeper out of nonce order.
func OrderByNonce(ops []core.Operation) []core.Operation {
	groups := make(map[core.AccountId][]nonced)
	var order []core.AccountId
	var passthrough []core.Operation

	for _, op := range ops {
		n, ok := op.(nonced)
		if !ok {
			passthrough = append(passthrough, op)
			continue
		}
		acc, _ := n.NonceOwner()
		if _, seen := groups[acc]; !seen {
			order = append(order, acc)
		}
		groups[acc] = append(groups[acc], n)
	}

	out := make([]core.Operation, 0, len(ops))
	for _, acc := range order {
		g := groups[acc]
		for i := 0; i < len(g); i++ {
			for j := i + 1; j < len(g); j++ {
				_, ni := g[i].NonceOwner()
				_, nj := g[j].NonceOwner()
				if nj < ni {
					g[i], g[j] = g[j], g[i]
				}
			}
		}
		for _, n := range g {
			out = append(out, n)
		}
	}
	out = append(out, passthrough...)
	return out
}
