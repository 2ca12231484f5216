package core

// operations.go defines the typed operation set of spec §4.2 as a tagged
// sum (one Go type per variant) rather than a polymorphic/trait-object
// hierarchy, per spec §9's re-architecture guidance. Each handler's
// Execute method is a pure, result-returning function: it validates
// preconditions against a read-only view of the tree and returns the
// AccountUpdate batch the caller (the state keeper) applies — it never
// mutates the tree itself, so a rejected tx never touches state.

import (
	"fmt"
	"math/big"
)

// TxType is the pubdata type tag (§4.3), also used to dispatch Execute.
type TxType uint8

const (
	TxNoop          TxType = 0
	TxDeposit       TxType = 1
	TxTransferToNew TxType = 2
	TxTransfer      TxType = 3
	TxWithdraw      TxType = 4
	TxFullExit      TxType = 5
	TxChangePubKey  TxType = 6
	TxForcedExit    TxType = 7
	TxMintNFT       TxType = 8
	TxWithdrawNFT   TxType = 9
	TxSwap          TxType = 10
	TxClose         TxType = 11
)

// chunkWidths is the canonical chunk occupancy per op, per spec §4.2's table.
var chunkWidths = map[TxType]int{
	TxNoop:          1,
	TxDeposit:       6,
	TxTransferToNew: 6,
	TxTransfer:      2,
	TxWithdraw:      6,
	TxFullExit:      11,
	TxChangePubKey:  6,
	TxForcedExit:    6,
	TxMintNFT:       5,
	TxWithdrawNFT:   10,
	TxSwap:          5,
	TxClose:         1,
}

// Chunks returns the canonical pubdata chunk count for t.
func (t TxType) Chunks() int { return chunkWidths[t] }

// ExecContext carries the per-block, per-op-independent data handlers need:
// the block's own number/timestamp for the valid_from/valid_until window,
// and caches shared across the block.
type ExecContext struct {
	BlockNumber BlockNumber
	Timestamp   int64
	Signers     *SignerCache
	NFTCounter  *NFTCounter
}

// CollectedFee is the zero-or-one fee an operation yields, per spec §4.2.
type CollectedFee struct {
	Token  TokenId
	Amount *big.Int
}

// ExecResult is everything a successful Execute needs the caller to apply:
// the atomic AccountUpdate batch, and an optional fee to be aggregated into
// the block's running fee total (credited to the fee account once, at seal
// time, not per-operation).
type ExecResult struct {
	Updates []AccountUpdate
	Fee     *CollectedFee
}

// Operation is the common interface every tx/priority-op variant satisfies.
type Operation interface {
	Type() TxType
	Execute(tree *AccountTree, ctx ExecContext) (ExecResult, error)
}

// --- shared precondition helpers -------------------------------------------------

func checkAccountId(id AccountId) error {
	if id > MaxAccountId {
		return fmt.Errorf("precondition: account id %d: %w", id, ErrAccountIdTooLarge)
	}
	return nil
}

func checkFeeToken(token TokenId) error {
	if token >= MaxProcessableTokenId {
		return fmt.Errorf("precondition: fee token %d: %w", token, ErrTokenIdTooLarge)
	}
	return nil
}

func checkTimeRange(validFrom, validUntil, now int64) error {
	if now < validFrom || now > validUntil {
		return fmt.Errorf("precondition: ts=%d not in [%d,%d]: %w", now, validFrom, validUntil, ErrOutsideValidTimeRange)
	}
	return nil
}

func checkNonce(expected, got Nonce) error {
	if expected != got {
		return fmt.Errorf("precondition: expected nonce %d got %d: %w", expected, got, ErrNonceMismatch)
	}
	return nil
}

func checkPubKeyHash(expected, got PubKeyHash) error {
	if expected != got {
		return fmt.Errorf("precondition: %w", ErrPubKeyHashMismatch)
	}
	return nil
}

func checkSufficientBalance(balance, amount, fee *big.Int) error {
	need := new(big.Int).Add(amount, fee)
	if balance.Cmp(need) < 0 {
		return fmt.Errorf("precondition: have %s need %s: %w", balance, need, ErrInsufficientBalance)
	}
	return nil
}

// resolveSigner looks up the account's pub-key hash via the signer cache,
// falling back to (and populating from) the tree on a cache miss.
func resolveSigner(tree *AccountTree, cache *SignerCache, id AccountId) (PubKeyHash, error) {
	if cache != nil {
		if h, ok := cache.Get(id); ok {
			return h, nil
		}
	}
	acc, ok := tree.GetAccount(id)
	if !ok {
		return PubKeyHash{}, fmt.Errorf("resolve signer %d: %w", id, ErrUnknownAccount)
	}
	if cache != nil {
		cache.Put(id, acc.PubKeyHash)
	}
	return acc.PubKeyHash, nil
}
