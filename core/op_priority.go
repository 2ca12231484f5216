package core

// op_priority.go implements the priority-op variants of spec §4.2: Deposit
// and FullExit. Unlike the signed tx variants, these arrive pre-validated
// from the settlement chain (via C5's ingress watcher) — there is no
// in-system signature to check, and a priority op can never be rejected for
// insufficient balance or a bad nonce; at worst it executes as a no-op (a
// FullExit against an address mismatch withdraws nothing but still consumes
// its serial id, mirroring the originating contract's own semantics).

import (
	"fmt"
	"math/big"
)

// Deposit credits Amount of Token to the account at AccountId, creating it
// with address To if it does not exist yet. AccountId is used as given:
// nothing assigns a fresh id (0 included), and for an existing account To
// is not compared with the account's address.
type Deposit struct {
	AccountId AccountId
	Token     TokenId
	Amount    *big.Int
	To        Address
	SerialId  SerialId
}

func (d *Deposit) Type() TxType { return TxDeposit }

func (d *Deposit) Execute(tree *AccountTree, ctx ExecContext) (ExecResult, error) {
	if err := checkAccountId(d.AccountId); err != nil {
		return ExecResult{}, err
	}
	if !fitsInBalance(d.Amount) {
		return ExecResult{}, fmt.Errorf("deposit: %w", ErrBalanceOverflow)
	}
	acc, exists := tree.GetAccount(d.AccountId)
	var updates []AccountUpdate
	if !exists {
		updates = append(updates, AccountUpdate{Kind: UpdateCreate, AccountId: d.AccountId, Address: d.To})
		bal := tree.BalanceOf(d.AccountId, d.Token)
		updates = append(updates, AccountUpdate{
			Kind: UpdateBalance, AccountId: d.AccountId, Token: d.Token,
			OldBalance: bal, NewBalance: new(big.Int).Add(bal, d.Amount),
			OldNonce: 0, NewNonce: 0,
		})
	} else {
		bal := tree.BalanceOf(d.AccountId, d.Token)
		updates = append(updates, AccountUpdate{
			Kind: UpdateBalance, AccountId: d.AccountId, Token: d.Token,
			OldBalance: bal, NewBalance: new(big.Int).Add(bal, d.Amount),
			OldNonce: acc.Nonce, NewNonce: acc.Nonce,
		})
	}
	return ExecResult{Updates: updates}, nil
}

// FullExit withdraws the entirety of AccountId's Token balance to EthAddress,
// bypassing the normal signed Withdraw path — used when the account's
// operator-side signing key is unavailable and the owner must exit directly
// through the settlement contract.
type FullExit struct {
	AccountId  AccountId
	Token      TokenId
	EthAddress Address
	SerialId   SerialId
}

func (f *FullExit) Type() TxType { return TxFullExit }

func (f *FullExit) Execute(tree *AccountTree, ctx ExecContext) (ExecResult, error) {
	if err := checkAccountId(f.AccountId); err != nil {
		return ExecResult{}, err
	}
	acc, exists := tree.GetAccount(f.AccountId)
	if !exists || acc.Address != f.EthAddress {
		// No-op: account unknown or the L1 caller doesn't own it. Still a
		// valid block entry (zero updates), consistent with the contract
		// having already emitted and charged for the event.
		return ExecResult{}, nil
	}
	bal := tree.BalanceOf(f.AccountId, f.Token)
	if bal.Sign() == 0 {
		return ExecResult{}, nil
	}
	return ExecResult{
		Updates: []AccountUpdate{
			{Kind: UpdateBalance, AccountId: f.AccountId, Token: f.Token, OldBalance: bal, NewBalance: big.NewInt(0), OldNonce: acc.Nonce, NewNonce: acc.Nonce},
		},
	}, nil
}
