package core

// op_nft.go implements the NFT lifecycle operations of spec §4.2: MintNFT
// (creates a new NFT owned by RecipientAccountId, serial-numbered through
// the global counter held in the NFT storage account) and WithdrawNFT
// (burns an owned NFT and releases it to a settlement-chain address,
// mirroring Withdraw but for a single non-fungible unit rather than a
// fungible amount).

import (
	"fmt"
	"math/big"
)

// MintNFT creates a new NFT with ContentHash, assigning it the next serial
// id and crediting ownership (balance 1 on the new token id) to
// RecipientAccountId.
type MintNFT struct {
	CreatorAccountId   AccountId
	RecipientAccountId AccountId
	ContentHash        Hash
	Fee                *big.Int
	FeeToken           TokenId
	Nonce              Nonce
	Signature          Signature
}

func (m *MintNFT) Type() TxType { return TxMintNFT }

func (m *MintNFT) canonicalMessage() []byte {
	buf := make([]byte, 0, 96)
	buf = appendUint32(buf, uint32(m.CreatorAccountId))
	buf = appendUint32(buf, uint32(m.RecipientAccountId))
	buf = append(buf, m.ContentHash[:]...)
	buf = appendBigInt(buf, m.Fee)
	buf = appendUint32(buf, uint32(m.FeeToken))
	buf = appendUint32(buf, uint32(m.Nonce))
	return buf
}

func (m *MintNFT) Execute(tree *AccountTree, ctx ExecContext) (ExecResult, error) {
	if err := checkAccountId(m.CreatorAccountId); err != nil {
		return ExecResult{}, err
	}
	if err := checkAccountId(m.RecipientAccountId); err != nil {
		return ExecResult{}, err
	}
	if err := checkFeeToken(m.FeeToken); err != nil {
		return ExecResult{}, err
	}
	creator, ok := tree.GetAccount(m.CreatorAccountId)
	if !ok {
		return ExecResult{}, fmt.Errorf("mint nft: %w", ErrUnknownAccount)
	}
	if _, ok := tree.GetAccount(m.RecipientAccountId); !ok {
		return ExecResult{}, fmt.Errorf("mint nft: %w", ErrUnknownAccount)
	}
	if err := checkNonce(creator.Nonce, m.Nonce); err != nil {
		return ExecResult{}, err
	}
	signer, err := resolveSigner(tree, ctx.Signers, m.CreatorAccountId)
	if err != nil {
		return ExecResult{}, err
	}
	if !DefaultSigner.Verify(signer, m.canonicalMessage(), m.Signature) {
		return ExecResult{}, fmt.Errorf("mint nft: %w", ErrInvalidSignature)
	}
	feeBal := tree.BalanceOf(m.CreatorAccountId, m.FeeToken)
	if err := checkSufficientBalance(feeBal, big.NewInt(0), m.Fee); err != nil {
		return ExecResult{}, err
	}
	if ctx.NFTCounter == nil {
		return ExecResult{}, fmt.Errorf("mint nft: no nft counter configured")
	}
	counterUpdate, serialId, err := ctx.NFTCounter.AdvanceUpdate()
	if err != nil {
		return ExecResult{}, fmt.Errorf("mint nft: %w", err)
	}
	newTokenId := TokenId(serialId)
	updates := []AccountUpdate{
		counterUpdate,
		{Kind: UpdateBalance, AccountId: m.CreatorAccountId, Token: m.FeeToken, OldBalance: feeBal, NewBalance: new(big.Int).Sub(feeBal, m.Fee), OldNonce: creator.Nonce, NewNonce: m.Nonce + 1},
		{Kind: UpdateBalance, AccountId: m.RecipientAccountId, Token: newTokenId, OldBalance: big.NewInt(0), NewBalance: big.NewInt(1), OldNonce: 0, NewNonce: 0},
	}
	return ExecResult{Updates: updates, Fee: &CollectedFee{Token: m.FeeToken, Amount: m.Fee}}, nil
}

// WithdrawNFT burns the NFT held at NFTToken by AccountId and releases it to
// ToAddress on the settlement chain.
type WithdrawNFT struct {
	AccountId  AccountId
	NFTToken   TokenId
	ToAddress  Address
	Fee        *big.Int
	FeeToken   TokenId
	Nonce      Nonce
	ValidFrom  int64
	ValidUntil int64
	Signature  Signature
}

func (w *WithdrawNFT) Type() TxType { return TxWithdrawNFT }

func (w *WithdrawNFT) canonicalMessage() []byte {
	buf := make([]byte, 0, 72)
	buf = appendUint32(buf, uint32(w.AccountId))
	buf = appendUint32(buf, uint32(w.NFTToken))
	buf = append(buf, w.ToAddress[:]...)
	buf = appendBigInt(buf, w.Fee)
	buf = appendUint32(buf, uint32(w.FeeToken))
	buf = appendUint32(buf, uint32(w.Nonce))
	return buf
}

func (w *WithdrawNFT) Execute(tree *AccountTree, ctx ExecContext) (ExecResult, error) {
	if err := checkAccountId(w.AccountId); err != nil {
		return ExecResult{}, err
	}
	if err := checkFeeToken(w.FeeToken); err != nil {
		return ExecResult{}, err
	}
	if w.NFTToken < MinNFTTokenId {
		return ExecResult{}, fmt.Errorf("withdraw nft: %w", ErrTokenIdTooLarge)
	}
	if err := checkTimeRange(w.ValidFrom, w.ValidUntil, ctx.Timestamp); err != nil {
		return ExecResult{}, err
	}
	acc, ok := tree.GetAccount(w.AccountId)
	if !ok {
		return ExecResult{}, fmt.Errorf("withdraw nft: %w", ErrUnknownAccount)
	}
	if err := checkNonce(acc.Nonce, w.Nonce); err != nil {
		return ExecResult{}, err
	}
	signer, err := resolveSigner(tree, ctx.Signers, w.AccountId)
	if err != nil {
		return ExecResult{}, err
	}
	if !DefaultSigner.Verify(signer, w.canonicalMessage(), w.Signature) {
		return ExecResult{}, fmt.Errorf("withdraw nft: %w", ErrInvalidSignature)
	}
	nftBal := tree.BalanceOf(w.AccountId, w.NFTToken)
	if nftBal.Sign() == 0 {
		return ExecResult{}, fmt.Errorf("withdraw nft: %w", ErrInsufficientBalance)
	}
	feeBal := tree.BalanceOf(w.AccountId, w.FeeToken)
	if err := checkSufficientBalance(feeBal, big.NewInt(0), w.Fee); err != nil {
		return ExecResult{}, err
	}
	newNonce := w.Nonce + 1
	updates := []AccountUpdate{
		{Kind: UpdateBalance, AccountId: w.AccountId, Token: w.NFTToken, OldBalance: nftBal, NewBalance: big.NewInt(0), OldNonce: acc.Nonce, NewNonce: newNonce},
		{Kind: UpdateBalance, AccountId: w.AccountId, Token: w.FeeToken, OldBalance: feeBal, NewBalance: new(big.Int).Sub(feeBal, w.Fee), OldNonce: newNonce, NewNonce: newNonce},
	}
	return ExecResult{Updates: updates, Fee: &CollectedFee{Token: w.FeeToken, Amount: w.Fee}}, nil
}

func (m *MintNFT) NonceOwner() (AccountId, Nonce)     { return m.CreatorAccountId, m.Nonce }
func (w *WithdrawNFT) NonceOwner() (AccountId, Nonce) { return w.AccountId, w.Nonce }
