package core

// op_swap.go implements Swap, spec §4.2's atomic two-party token exchange.
// Each side of the trade is an independently signed Order; the operation as
// a whole is submitted (and its fee paid) by a third account, typically one
// of the two traders. Both orders must reference amounts whose sell:buy
// ratio exactly matches their declared Ratio, so the counterparties agree
// on price without either side trusting the submitter's arithmetic.

import (
	"fmt"
	"math/big"
)

// Order is one signed half of a Swap.
type Order struct {
	AccountId          AccountId
	RecipientAccountId AccountId
	TokenSell          TokenId
	TokenBuy           TokenId
	RatioSell          *big.Int
	RatioBuy           *big.Int
	Amount             *big.Int
	Nonce              Nonce
	ValidFrom          int64
	ValidUntil         int64
	Signature          Signature
}

func (o *Order) canonicalMessage() []byte {
	buf := make([]byte, 0, 96)
	buf = appendUint32(buf, uint32(o.AccountId))
	buf = appendUint32(buf, uint32(o.RecipientAccountId))
	buf = appendUint32(buf, uint32(o.TokenSell))
	buf = appendUint32(buf, uint32(o.TokenBuy))
	buf = appendBigInt(buf, o.RatioSell)
	buf = appendBigInt(buf, o.RatioBuy)
	buf = appendBigInt(buf, o.Amount)
	buf = appendUint32(buf, uint32(o.Nonce))
	return buf
}

// Swap atomically exchanges AmountA of OrderA's sell token for AmountB of
// OrderB's sell token, crediting each to the other order's recipient.
type Swap struct {
	SubmitterAccountId AccountId
	OrderA, OrderB     Order
	AmountA, AmountB   *big.Int
	Fee                *big.Int
	FeeToken           TokenId
	Nonce              Nonce
	Signature          Signature
}

func (s *Swap) Type() TxType { return TxSwap }

func (s *Swap) canonicalMessage() []byte {
	buf := make([]byte, 0, 64)
	buf = appendUint32(buf, uint32(s.SubmitterAccountId))
	buf = appendBigInt(buf, s.AmountA)
	buf = appendBigInt(buf, s.AmountB)
	buf = appendBigInt(buf, s.Fee)
	buf = appendUint32(buf, uint32(s.FeeToken))
	buf = appendUint32(buf, uint32(s.Nonce))
	return buf
}

func (s *Swap) verifyOrder(tree *AccountTree, ctx ExecContext, o *Order) (Account, error) {
	if err := checkAccountId(o.AccountId); err != nil {
		return Account{}, err
	}
	if err := checkAccountId(o.RecipientAccountId); err != nil {
		return Account{}, err
	}
	if err := checkTimeRange(o.ValidFrom, o.ValidUntil, ctx.Timestamp); err != nil {
		return Account{}, err
	}
	acc, ok := tree.GetAccount(o.AccountId)
	if !ok {
		return Account{}, fmt.Errorf("swap: order account: %w", ErrUnknownAccount)
	}
	if err := checkNonce(acc.Nonce, o.Nonce); err != nil {
		return Account{}, fmt.Errorf("%w: %w", ErrSwapCounterpartyNonce, err)
	}
	signer, err := resolveSigner(tree, ctx.Signers, o.AccountId)
	if err != nil {
		return Account{}, err
	}
	if !DefaultSigner.Verify(signer, o.canonicalMessage(), o.Signature) {
		return Account{}, fmt.Errorf("swap: order signature: %w", ErrInvalidSignature)
	}
	return acc, nil
}

// ratioConsistent reports whether amount * ratioBuy == counterAmount * ratioSell,
// i.e. the filled amounts respect the order's declared exchange rate exactly.
func ratioConsistent(amount, counterAmount, ratioSell, ratioBuy *big.Int) bool {
	lhs := new(big.Int).Mul(amount, ratioBuy)
	rhs := new(big.Int).Mul(counterAmount, ratioSell)
	return lhs.Cmp(rhs) == 0
}

func (s *Swap) Execute(tree *AccountTree, ctx ExecContext) (ExecResult, error) {
	if err := checkAccountId(s.SubmitterAccountId); err != nil {
		return ExecResult{}, err
	}
	if err := checkFeeToken(s.FeeToken); err != nil {
		return ExecResult{}, err
	}
	accA, err := s.verifyOrder(tree, ctx, &s.OrderA)
	if err != nil {
		return ExecResult{}, err
	}
	accB, err := s.verifyOrder(tree, ctx, &s.OrderB)
	if err != nil {
		return ExecResult{}, err
	}
	if !ratioConsistent(s.AmountA, s.AmountB, s.OrderA.RatioSell, s.OrderA.RatioBuy) {
		return ExecResult{}, fmt.Errorf("swap: order A ratio violated")
	}
	if !ratioConsistent(s.AmountB, s.AmountA, s.OrderB.RatioSell, s.OrderB.RatioBuy) {
		return ExecResult{}, fmt.Errorf("swap: order B ratio violated")
	}
	if s.AmountA.Cmp(s.OrderA.Amount) > 0 || s.AmountB.Cmp(s.OrderB.Amount) > 0 {
		return ExecResult{}, fmt.Errorf("swap: fill exceeds order amount")
	}
	submitter, ok := tree.GetAccount(s.SubmitterAccountId)
	if !ok {
		return ExecResult{}, fmt.Errorf("swap: %w", ErrUnknownAccount)
	}
	if err := checkNonce(submitter.Nonce, s.Nonce); err != nil {
		return ExecResult{}, err
	}
	signer, err := resolveSigner(tree, ctx.Signers, s.SubmitterAccountId)
	if err != nil {
		return ExecResult{}, err
	}
	if !DefaultSigner.Verify(signer, s.canonicalMessage(), s.Signature) {
		return ExecResult{}, fmt.Errorf("swap: %w", ErrInvalidSignature)
	}

	balASell := tree.BalanceOf(s.OrderA.AccountId, s.OrderA.TokenSell)
	if balASell.Cmp(s.AmountA) < 0 {
		return ExecResult{}, fmt.Errorf("swap: order A: %w", ErrInsufficientBalance)
	}
	balBSell := tree.BalanceOf(s.OrderB.AccountId, s.OrderB.TokenSell)
	if balBSell.Cmp(s.AmountB) < 0 {
		return ExecResult{}, fmt.Errorf("swap: order B: %w", ErrInsufficientBalance)
	}
	feeBal := tree.BalanceOf(s.SubmitterAccountId, s.FeeToken)
	if err := checkSufficientBalance(feeBal, big.NewInt(0), s.Fee); err != nil {
		return ExecResult{}, err
	}

	recvBuyA := tree.BalanceOf(s.OrderA.RecipientAccountId, s.OrderB.TokenSell)
	recvBuyB := tree.BalanceOf(s.OrderB.RecipientAccountId, s.OrderA.TokenSell)

	updates := []AccountUpdate{
		{Kind: UpdateBalance, AccountId: s.OrderA.AccountId, Token: s.OrderA.TokenSell, OldBalance: balASell, NewBalance: new(big.Int).Sub(balASell, s.AmountA), OldNonce: accA.Nonce, NewNonce: s.OrderA.Nonce + 1},
		{Kind: UpdateBalance, AccountId: s.OrderB.AccountId, Token: s.OrderB.TokenSell, OldBalance: balBSell, NewBalance: new(big.Int).Sub(balBSell, s.AmountB), OldNonce: accB.Nonce, NewNonce: s.OrderB.Nonce + 1},
		{Kind: UpdateBalance, AccountId: s.OrderA.RecipientAccountId, Token: s.OrderB.TokenSell, OldBalance: recvBuyA, NewBalance: new(big.Int).Add(recvBuyA, s.AmountB)},
		{Kind: UpdateBalance, AccountId: s.OrderB.RecipientAccountId, Token: s.OrderA.TokenSell, OldBalance: recvBuyB, NewBalance: new(big.Int).Add(recvBuyB, s.AmountA)},
		{Kind: UpdateBalance, AccountId: s.SubmitterAccountId, Token: s.FeeToken, OldBalance: feeBal, NewBalance: new(big.Int).Sub(feeBal, s.Fee), OldNonce: submitter.Nonce, NewNonce: s.Nonce + 1},
	}
	return ExecResult{Updates: updates, Fee: &CollectedFee{Token: s.FeeToken, Amount: s.Fee}}, nil
}

func (s *Swap) NonceOwner() (AccountId, Nonce) { return s.SubmitterAccountId, s.Nonce }
