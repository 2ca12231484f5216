package core

// account_manager.go adapts the teacher's AccountManager (a thin
// sync.RWMutex-guarded wrapper over a flat coin-balance map, see
// account_and_balance_operations.go in the teacher repo) into a typed
// accessor over the Merkle-backed AccountTree. It offers a small,
// test-and-CLI-friendly surface on top of the lower-level ApplyUpdates
// batch contract that the operation handlers use directly.

import (
	"fmt"
	"math/big"
)

// AccountManager provides convenience operations for genesis bootstrap and
// read-side tooling. Transfer goes through ApplyUpdates; CreateAccount
// writes directly through InsertAccount, outside any update batch.
type AccountManager struct {
	tree *AccountTree
}

// NewAccountManager constructs a manager bound to the given tree.
func NewAccountManager(t *AccountTree) *AccountManager {
	return &AccountManager{tree: t}
}

// CreateAccount initialises a zero-balance account for addr at id. Returns
// an error if id is already occupied.
func (am *AccountManager) CreateAccount(id AccountId, addr Address) error {
	return am.tree.InsertAccount(id, Account{Address: addr})
}

// Balance returns the current balance for (id, token).
func (am *AccountManager) Balance(id AccountId, token TokenId) *big.Int {
	return am.tree.BalanceOf(id, token)
}

// Transfer moves amt of token from src to dst, verifying sufficient funds.
// It is a convenience path for tests and tooling; the Transfer/Withdraw
// operation handlers build their own, richer AccountUpdate batches that
// also account for fees and nonce bumps.
func (am *AccountManager) Transfer(src, dst AccountId, token TokenId, amt *big.Int) error {
	if amt.Sign() <= 0 {
		return fmt.Errorf("account manager: transfer amount must be positive")
	}
	srcAcc, ok := am.tree.GetAccount(src)
	if !ok {
		return fmt.Errorf("account manager: %w", ErrUnknownAccount)
	}
	dstAcc, ok := am.tree.GetAccount(dst)
	if !ok {
		return fmt.Errorf("account manager: %w", ErrUnknownAccount)
	}
	srcBal := am.tree.BalanceOf(src, token)
	if srcBal.Cmp(amt) < 0 {
		return fmt.Errorf("account manager: %w", ErrInsufficientBalance)
	}
	dstBal := am.tree.BalanceOf(dst, token)
	newSrc := new(big.Int).Sub(srcBal, amt)
	newDst := new(big.Int).Add(dstBal, amt)
	updates := []AccountUpdate{
		{Kind: UpdateBalance, AccountId: src, Token: token, OldBalance: srcBal, NewBalance: newSrc, OldNonce: srcAcc.Nonce, NewNonce: srcAcc.Nonce},
		{Kind: UpdateBalance, AccountId: dst, Token: token, OldBalance: dstBal, NewBalance: newDst, OldNonce: dstAcc.Nonce, NewNonce: dstAcc.Nonce},
	}
	return am.tree.ApplyUpdates(updates)
}
