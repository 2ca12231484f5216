package core

// op_transfer.go implements the balance-moving operations of spec §4.2:
// Transfer (existing accounts only), TransferToNew (implicit account
// creation), Withdraw (burns to a settlement-chain address) and ForcedExit
// (a third party burns an account's ETH-token balance entirely, used to
// evict dust accounts). Each handler follows the same shape: validate
// preconditions against the read-only tree, then build the AccountUpdate
// batch — it never writes to the tree itself.

import (
	"encoding/binary"
	"fmt"
	"math/big"
)

// Transfer moves amount of token from FromAccountId to ToAccountId, both of
// which must already exist.
type Transfer struct {
	FromAccountId AccountId
	ToAccountId   AccountId
	Token         TokenId
	Amount        *big.Int
	Fee           *big.Int
	Nonce         Nonce
	ValidFrom     int64
	ValidUntil    int64
	Signature     Signature
}

func (t *Transfer) Type() TxType { return TxTransfer }

// CanonicalMessage is the byte sequence the sender's signature covers.
func (t *Transfer) CanonicalMessage() []byte {
	buf := make([]byte, 0, 64)
	buf = appendUint32(buf, uint32(t.FromAccountId))
	buf = appendUint32(buf, uint32(t.ToAccountId))
	buf = appendUint32(buf, uint32(t.Token))
	buf = appendBigInt(buf, t.Amount)
	buf = appendBigInt(buf, t.Fee)
	buf = appendUint32(buf, uint32(t.Nonce))
	return buf
}

func (t *Transfer) Execute(tree *AccountTree, ctx ExecContext) (ExecResult, error) {
	if err := checkAccountId(t.FromAccountId); err != nil {
		return ExecResult{}, err
	}
	if err := checkAccountId(t.ToAccountId); err != nil {
		return ExecResult{}, err
	}
	if err := checkTimeRange(t.ValidFrom, t.ValidUntil, ctx.Timestamp); err != nil {
		return ExecResult{}, err
	}
	fromAcc, ok := tree.GetAccount(t.FromAccountId)
	if !ok {
		return ExecResult{}, fmt.Errorf("transfer: %w", ErrUnknownAccount)
	}
	toAcc, ok := tree.GetAccount(t.ToAccountId)
	if !ok {
		return ExecResult{}, fmt.Errorf("transfer: %w", ErrUnknownAccount)
	}
	if err := checkNonce(fromAcc.Nonce, t.Nonce); err != nil {
		return ExecResult{}, err
	}
	signer, err := resolveSigner(tree, ctx.Signers, t.FromAccountId)
	if err != nil {
		return ExecResult{}, err
	}
	if !DefaultSigner.Verify(signer, t.CanonicalMessage(), t.Signature) {
		return ExecResult{}, fmt.Errorf("transfer: %w", ErrInvalidSignature)
	}
	fromBal := tree.BalanceOf(t.FromAccountId, t.Token)
	if err := checkSufficientBalance(fromBal, t.Amount, t.Fee); err != nil {
		return ExecResult{}, err
	}
	toBal := tree.BalanceOf(t.ToAccountId, t.Token)
	newFromBal := new(big.Int).Sub(fromBal, new(big.Int).Add(t.Amount, t.Fee))
	newToBal := new(big.Int).Add(toBal, t.Amount)
	newNonce := t.Nonce + 1
	return ExecResult{
		Updates: []AccountUpdate{
			{Kind: UpdateBalance, AccountId: t.FromAccountId, Token: t.Token, OldBalance: fromBal, NewBalance: newFromBal, OldNonce: fromAcc.Nonce, NewNonce: newNonce},
			{Kind: UpdateBalance, AccountId: t.ToAccountId, Token: t.Token, OldBalance: toBal, NewBalance: newToBal, OldNonce: toAcc.Nonce, NewNonce: toAcc.Nonce},
		},
		Fee: &CollectedFee{Token: t.Token, Amount: t.Fee},
	}, nil
}

// TransferToNew is a Transfer whose recipient does not yet own an account;
// the state keeper assigns ToAccountId from the next free slot and this
// handler additionally emits the UpdateCreate for it.
type TransferToNew struct {
	FromAccountId AccountId
	Token         TokenId
	Amount        *big.Int
	ToAddress     Address
	ToAccountId   AccountId
	Fee           *big.Int
	Nonce         Nonce
	ValidFrom     int64
	ValidUntil    int64
	Signature     Signature
}

func (t *TransferToNew) Type() TxType { return TxTransferToNew }

func (t *TransferToNew) CanonicalMessage() []byte {
	buf := make([]byte, 0, 72)
	buf = appendUint32(buf, uint32(t.FromAccountId))
	buf = append(buf, t.ToAddress[:]...)
	buf = appendUint32(buf, uint32(t.Token))
	buf = appendBigInt(buf, t.Amount)
	buf = appendBigInt(buf, t.Fee)
	buf = appendUint32(buf, uint32(t.Nonce))
	return buf
}

func (t *TransferToNew) Execute(tree *AccountTree, ctx ExecContext) (ExecResult, error) {
	if err := checkAccountId(t.FromAccountId); err != nil {
		return ExecResult{}, err
	}
	if err := checkAccountId(t.ToAccountId); err != nil {
		return ExecResult{}, err
	}
	if err := checkTimeRange(t.ValidFrom, t.ValidUntil, ctx.Timestamp); err != nil {
		return ExecResult{}, err
	}
	if _, _, exists := tree.GetAccountByAddress(t.ToAddress); exists {
		return ExecResult{}, fmt.Errorf("transfer to new: %w", ErrAddressAlreadyTaken)
	}
	if _, exists := tree.GetAccount(t.ToAccountId); exists {
		return ExecResult{}, fmt.Errorf("transfer to new: %w", ErrAddressAlreadyTaken)
	}
	fromAcc, ok := tree.GetAccount(t.FromAccountId)
	if !ok {
		return ExecResult{}, fmt.Errorf("transfer to new: %w", ErrUnknownAccount)
	}
	if err := checkNonce(fromAcc.Nonce, t.Nonce); err != nil {
		return ExecResult{}, err
	}
	signer, err := resolveSigner(tree, ctx.Signers, t.FromAccountId)
	if err != nil {
		return ExecResult{}, err
	}
	if !DefaultSigner.Verify(signer, t.CanonicalMessage(), t.Signature) {
		return ExecResult{}, fmt.Errorf("transfer to new: %w", ErrInvalidSignature)
	}
	fromBal := tree.BalanceOf(t.FromAccountId, t.Token)
	if err := checkSufficientBalance(fromBal, t.Amount, t.Fee); err != nil {
		return ExecResult{}, err
	}
	newFromBal := new(big.Int).Sub(fromBal, new(big.Int).Add(t.Amount, t.Fee))
	return ExecResult{
		Updates: []AccountUpdate{
			{Kind: UpdateCreate, AccountId: t.ToAccountId, Address: t.ToAddress},
			{Kind: UpdateBalance, AccountId: t.FromAccountId, Token: t.Token, OldBalance: fromBal, NewBalance: newFromBal, OldNonce: fromAcc.Nonce, NewNonce: t.Nonce + 1},
			{Kind: UpdateBalance, AccountId: t.ToAccountId, Token: t.Token, OldBalance: big.NewInt(0), NewBalance: new(big.Int).Set(t.Amount), OldNonce: 0, NewNonce: 0},
		},
		Fee: &CollectedFee{Token: t.Token, Amount: t.Fee},
	}, nil
}

// Withdraw burns amount from AccountId, to be released to ToAddress on the
// settlement chain once the block executes.
type Withdraw struct {
	AccountId  AccountId
	Token      TokenId
	Amount     *big.Int
	Fee        *big.Int
	ToAddress  Address
	Nonce      Nonce
	ValidFrom  int64
	ValidUntil int64
	Signature  Signature
}

func (w *Withdraw) Type() TxType { return TxWithdraw }

func (w *Withdraw) CanonicalMessage() []byte {
	buf := make([]byte, 0, 72)
	buf = appendUint32(buf, uint32(w.AccountId))
	buf = appendUint32(buf, uint32(w.Token))
	buf = appendBigInt(buf, w.Amount)
	buf = appendBigInt(buf, w.Fee)
	buf = append(buf, w.ToAddress[:]...)
	buf = appendUint32(buf, uint32(w.Nonce))
	return buf
}

func (w *Withdraw) Execute(tree *AccountTree, ctx ExecContext) (ExecResult, error) {
	if err := checkAccountId(w.AccountId); err != nil {
		return ExecResult{}, err
	}
	if err := checkTimeRange(w.ValidFrom, w.ValidUntil, ctx.Timestamp); err != nil {
		return ExecResult{}, err
	}
	acc, ok := tree.GetAccount(w.AccountId)
	if !ok {
		return ExecResult{}, fmt.Errorf("withdraw: %w", ErrUnknownAccount)
	}
	if err := checkNonce(acc.Nonce, w.Nonce); err != nil {
		return ExecResult{}, err
	}
	signer, err := resolveSigner(tree, ctx.Signers, w.AccountId)
	if err != nil {
		return ExecResult{}, err
	}
	if !DefaultSigner.Verify(signer, w.CanonicalMessage(), w.Signature) {
		return ExecResult{}, fmt.Errorf("withdraw: %w", ErrInvalidSignature)
	}
	bal := tree.BalanceOf(w.AccountId, w.Token)
	if err := checkSufficientBalance(bal, w.Amount, w.Fee); err != nil {
		return ExecResult{}, err
	}
	newBal := new(big.Int).Sub(bal, new(big.Int).Add(w.Amount, w.Fee))
	return ExecResult{
		Updates: []AccountUpdate{
			{Kind: UpdateBalance, AccountId: w.AccountId, Token: w.Token, OldBalance: bal, NewBalance: newBal, OldNonce: acc.Nonce, NewNonce: w.Nonce + 1},
		},
		Fee: &CollectedFee{Token: w.Token, Amount: w.Fee},
	}, nil
}

// ForcedExit lets any account pay to fully withdraw TargetAccountId's Token
// balance to its own registered address, evicting dust accounts that can no
// longer afford their own withdraw fee.
type ForcedExit struct {
	InitiatorAccountId AccountId
	TargetAccountId    AccountId
	Token              TokenId
	Fee                *big.Int
	Nonce              Nonce
	ValidFrom          int64
	ValidUntil         int64
	Signature          Signature
}

func (f *ForcedExit) Type() TxType { return TxForcedExit }

func (f *ForcedExit) CanonicalMessage() []byte {
	buf := make([]byte, 0, 48)
	buf = appendUint32(buf, uint32(f.InitiatorAccountId))
	buf = appendUint32(buf, uint32(f.TargetAccountId))
	buf = appendUint32(buf, uint32(f.Token))
	buf = appendBigInt(buf, f.Fee)
	buf = appendUint32(buf, uint32(f.Nonce))
	return buf
}

func (f *ForcedExit) Execute(tree *AccountTree, ctx ExecContext) (ExecResult, error) {
	if err := checkAccountId(f.InitiatorAccountId); err != nil {
		return ExecResult{}, err
	}
	if err := checkAccountId(f.TargetAccountId); err != nil {
		return ExecResult{}, err
	}
	if err := checkTimeRange(f.ValidFrom, f.ValidUntil, ctx.Timestamp); err != nil {
		return ExecResult{}, err
	}
	initiator, ok := tree.GetAccount(f.InitiatorAccountId)
	if !ok {
		return ExecResult{}, fmt.Errorf("forced exit: %w", ErrUnknownAccount)
	}
	target, ok := tree.GetAccount(f.TargetAccountId)
	if !ok {
		return ExecResult{}, fmt.Errorf("forced exit: %w", ErrUnknownAccount)
	}
	if target.PubKeyHash.IsZero() {
		// Target never signed anything on-chain; allowed — forced exit exists
		// precisely to evict accounts that can't pay their own fee.
	}
	if err := checkNonce(initiator.Nonce, f.Nonce); err != nil {
		return ExecResult{}, err
	}
	signer, err := resolveSigner(tree, ctx.Signers, f.InitiatorAccountId)
	if err != nil {
		return ExecResult{}, err
	}
	if !DefaultSigner.Verify(signer, f.CanonicalMessage(), f.Signature) {
		return ExecResult{}, fmt.Errorf("forced exit: %w", ErrInvalidSignature)
	}
	targetBal := tree.BalanceOf(f.TargetAccountId, f.Token)
	if targetBal.Sign() <= 0 {
		return ExecResult{}, fmt.Errorf("forced exit: %w", ErrInsufficientBalance)
	}
	initiatorBal := tree.BalanceOf(f.InitiatorAccountId, f.Token)
	if err := checkSufficientBalance(initiatorBal, big.NewInt(0), f.Fee); err != nil {
		return ExecResult{}, err
	}
	return ExecResult{
		Updates: []AccountUpdate{
			{Kind: UpdateBalance, AccountId: f.TargetAccountId, Token: f.Token, OldBalance: targetBal, NewBalance: big.NewInt(0), OldNonce: target.Nonce, NewNonce: target.Nonce},
			{Kind: UpdateBalance, AccountId: f.InitiatorAccountId, Token: f.Token, OldBalance: initiatorBal, NewBalance: new(big.Int).Sub(initiatorBal, f.Fee), OldNonce: initiator.Nonce, NewNonce: f.Nonce + 1},
		},
		Fee: &CollectedFee{Token: f.Token, Amount: f.Fee},
	}, nil
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendBigInt(buf []byte, v *big.Int) []byte {
	b := v.Bytes()
	buf = appendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

func (t *Transfer) NonceOwner() (AccountId, Nonce)       { return t.FromAccountId, t.Nonce }
func (t *TransferToNew) NonceOwner() (AccountId, Nonce)  { return t.FromAccountId, t.Nonce }
func (w *Withdraw) NonceOwner() (AccountId, Nonce)       { return w.AccountId, w.Nonce }
func (f *ForcedExit) NonceOwner() (AccountId, Nonce)     { return f.InitiatorAccountId, f.Nonce }
