package core

// op_account.go implements the account-metadata operations of spec §4.2:
// Noop (a padding chunk with no state effect), ChangePubKey (binds an
// in-system signing key to an account, authorized either by the existing
// key or by a settlement-chain "two-factor" ECDSA signature), and Close
// (accepted by the pubdata codec for wire compatibility but rejected by
// every handler, per the redesign decision recorded in DESIGN.md — account
// deletion is not supported in this engine).

import (
	"fmt"
	"math/big"
)

// Noop occupies one pubdata chunk and changes nothing.
type Noop struct{}

func (Noop) Type() TxType { return TxNoop }

func (Noop) Execute(tree *AccountTree, ctx ExecContext) (ExecResult, error) {
	return ExecResult{}, nil
}

// ChangePubKey rebinds AccountId's PubKeyHash, authorized either by
// EthSignature (a settlement-chain ECDSA signature over the new key, the
// "two-factor" path) or by Signature (a signature from the outgoing key
// itself, the "single-factor" path used when the account already trusts its
// current key).
type ChangePubKey struct {
	AccountId     AccountId
	NewPubKeyHash PubKeyHash
	Nonce         Nonce
	Fee           *big.Int
	FeeToken      TokenId
	ValidFrom     int64
	ValidUntil    int64
	EthSignature  []byte
	Signature     Signature
}

func (c *ChangePubKey) Type() TxType { return TxChangePubKey }

func (c *ChangePubKey) canonicalMessage() []byte {
	buf := make([]byte, 0, 48)
	buf = appendUint32(buf, uint32(c.AccountId))
	buf = append(buf, c.NewPubKeyHash[:]...)
	buf = appendUint32(buf, uint32(c.Nonce))
	buf = appendBigInt(buf, c.Fee)
	buf = appendUint32(buf, uint32(c.FeeToken))
	return buf
}

func (c *ChangePubKey) Execute(tree *AccountTree, ctx ExecContext) (ExecResult, error) {
	if err := checkAccountId(c.AccountId); err != nil {
		return ExecResult{}, err
	}
	if err := checkFeeToken(c.FeeToken); err != nil {
		return ExecResult{}, err
	}
	if err := checkTimeRange(c.ValidFrom, c.ValidUntil, ctx.Timestamp); err != nil {
		return ExecResult{}, err
	}
	acc, ok := tree.GetAccount(c.AccountId)
	if !ok {
		return ExecResult{}, fmt.Errorf("change pubkey: %w", ErrUnknownAccount)
	}
	if err := checkNonce(acc.Nonce, c.Nonce); err != nil {
		return ExecResult{}, err
	}
	switch {
	case len(c.EthSignature) > 0:
		if err := VerifyTwoFactorAuth(c.canonicalMessage(), c.EthSignature, acc.Address); err != nil {
			return ExecResult{}, err
		}
	case len(c.Signature) > 0:
		if !DefaultSigner.Verify(acc.PubKeyHash, c.canonicalMessage(), c.Signature) {
			return ExecResult{}, fmt.Errorf("change pubkey: %w", ErrInvalidSignature)
		}
	default:
		return ExecResult{}, fmt.Errorf("change pubkey: %w", ErrInvalidSignature)
	}
	bal := tree.BalanceOf(c.AccountId, c.FeeToken)
	if err := checkSufficientBalance(bal, big.NewInt(0), c.Fee); err != nil {
		return ExecResult{}, err
	}
	if ctx.Signers != nil {
		ctx.Signers.Invalidate(c.AccountId)
	}
	return ExecResult{
		Updates: []AccountUpdate{
			{Kind: UpdateChangePubKeyHash, AccountId: c.AccountId, NewPubKey: c.NewPubKeyHash, OldPubKey: acc.PubKeyHash, OldNonce: acc.Nonce, NewNonce: c.Nonce + 1},
			{Kind: UpdateBalance, AccountId: c.AccountId, Token: c.FeeToken, OldBalance: bal, NewBalance: new(big.Int).Sub(bal, c.Fee), OldNonce: c.Nonce + 1, NewNonce: c.Nonce + 1},
		},
		Fee: &CollectedFee{Token: c.FeeToken, Amount: c.Fee},
	}, nil
}

// Close is accepted by the pubdata codec for replay compatibility with
// historical blocks but is never admitted by the state keeper.
type Close struct {
	AccountId AccountId
	Nonce     Nonce
	Signature Signature
}

func (Close) Type() TxType { return TxClose }

func (Close) Execute(tree *AccountTree, ctx ExecContext) (ExecResult, error) {
	return ExecResult{}, fmt.Errorf("close: %w", ErrCloseDisabled)
}

func (c *ChangePubKey) NonceOwner() (AccountId, Nonce) { return c.AccountId, c.Nonce }
func (c *Close) NonceOwner() (AccountId, Nonce)        { return c.AccountId, c.Nonce }
