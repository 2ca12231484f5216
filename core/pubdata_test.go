package core

import (
	"math/big"
	"testing"
)

func TestPubdataRoundTripNoop(t *testing.T) {
	encoded, err := EncodePubdata(&Noop{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	op, consumed, err := DecodePubdata(encoded, LayoutV1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if consumed != len(encoded) {
		t.Fatalf("consumed %d, want %d", consumed, len(encoded))
	}
	if _, ok := op.(*Noop); !ok {
		t.Fatalf("decoded %T, want *Noop", op)
	}
}

func TestPubdataRoundTripDeposit(t *testing.T) {
	want := &Deposit{
		AccountId: 7,
		Token:     ETHTokenId,
		Amount:    big.NewInt(1_000_000),
		To:        Address{0x01, 0x02, 0x03},
	}
	encoded, err := EncodePubdata(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	op, consumed, err := DecodePubdata(encoded, LayoutV1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if consumed != len(encoded) {
		t.Fatalf("consumed %d, want %d", consumed, len(encoded))
	}
	got, ok := op.(*Deposit)
	if !ok {
		t.Fatalf("decoded %T, want *Deposit", op)
	}
	if got.AccountId != want.AccountId || got.Token != want.Token || got.To != want.To {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if got.Amount.Cmp(want.Amount) != 0 {
		t.Fatalf("amount: got %s, want %s", got.Amount, want.Amount)
	}
}

func TestPubdataRoundTripTransfer(t *testing.T) {
	want := &Transfer{
		FromAccountId: 1,
		ToAccountId:   2,
		Token:         ETHTokenId,
		Amount:        big.NewInt(5000),
		Fee:           big.NewInt(10),
	}
	encoded, err := EncodePubdata(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	op, _, err := DecodePubdata(encoded, LayoutV1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := op.(*Transfer)
	if !ok {
		t.Fatalf("decoded %T, want *Transfer", op)
	}
	if got.FromAccountId != want.FromAccountId || got.ToAccountId != want.ToAccountId || got.Token != want.Token {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if got.Amount.Cmp(want.Amount) != 0 || got.Fee.Cmp(want.Fee) != 0 {
		t.Fatalf("amount/fee mismatch: got %s/%s, want %s/%s", got.Amount, got.Fee, want.Amount, want.Fee)
	}
}

func TestPubdataRoundTripWithdraw(t *testing.T) {
	want := &Withdraw{
		AccountId: 3,
		Token:     ETHTokenId,
		Amount:    big.NewInt(123_456_789),
		Fee:       big.NewInt(7),
		ToAddress: Address{0xAA, 0xBB},
	}
	encoded, err := EncodePubdata(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	op, _, err := DecodePubdata(encoded, LayoutV1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := op.(*Withdraw)
	if !ok {
		t.Fatalf("decoded %T, want *Withdraw", op)
	}
	if got.AccountId != want.AccountId || got.Token != want.Token || got.ToAddress != want.ToAddress {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if got.Amount.Cmp(want.Amount) != 0 || got.Fee.Cmp(want.Fee) != 0 {
		t.Fatalf("amount/fee mismatch: got %s/%s, want %s/%s", got.Amount, got.Fee, want.Amount, want.Fee)
	}
}

func TestPubdataRoundTripFullExit(t *testing.T) {
	want := &FullExit{AccountId: 9, EthAddress: Address{0x09}, Token: ETHTokenId}
	encoded, err := EncodePubdata(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	op, _, err := DecodePubdata(encoded, LayoutV1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := op.(*FullExit)
	if !ok {
		t.Fatalf("decoded %T, want *FullExit", op)
	}
	if *got != *want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestPubdataRoundTripChangePubKey(t *testing.T) {
	want := &ChangePubKey{
		AccountId:     4,
		NewPubKeyHash: PubKeyHash{0x11, 0x22},
		Nonce:         3,
		Fee:           big.NewInt(20),
		FeeToken:      ETHTokenId,
	}
	encoded, err := EncodePubdata(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	op, _, err := DecodePubdata(encoded, LayoutV1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := op.(*ChangePubKey)
	if !ok {
		t.Fatalf("decoded %T, want *ChangePubKey", op)
	}
	if got.AccountId != want.AccountId || got.NewPubKeyHash != want.NewPubKeyHash || got.Nonce != want.Nonce || got.FeeToken != want.FeeToken {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if got.Fee.Cmp(want.Fee) != 0 {
		t.Fatalf("fee: got %s, want %s", got.Fee, want.Fee)
	}
}

func TestPubdataRoundTripClose(t *testing.T) {
	want := &Close{AccountId: 12, Nonce: 4}
	encoded, err := EncodePubdata(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	op, _, err := DecodePubdata(encoded, LayoutV1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := op.(*Close)
	if !ok {
		t.Fatalf("decoded %T, want *Close", op)
	}
	if got.AccountId != want.AccountId || got.Nonce != want.Nonce {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestPubdataRoundTripForcedExit(t *testing.T) {
	want := &ForcedExit{InitiatorAccountId: 1, TargetAccountId: 2, Token: ETHTokenId, Fee: big.NewInt(30)}
	encoded, err := EncodePubdata(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	op, _, err := DecodePubdata(encoded, LayoutV1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := op.(*ForcedExit)
	if !ok {
		t.Fatalf("decoded %T, want *ForcedExit", op)
	}
	if got.InitiatorAccountId != want.InitiatorAccountId || got.TargetAccountId != want.TargetAccountId || got.Token != want.Token {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if got.Fee.Cmp(want.Fee) != 0 {
		t.Fatalf("fee: got %s, want %s", got.Fee, want.Fee)
	}
}

func TestPubdataRoundTripMintNFT(t *testing.T) {
	want := &MintNFT{
		CreatorAccountId:   1,
		RecipientAccountId: 2,
		ContentHash:        Hash{0xDE, 0xAD, 0xBE, 0xEF},
		Fee:                big.NewInt(5),
		FeeToken:           ETHTokenId,
	}
	encoded, err := EncodePubdata(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	op, _, err := DecodePubdata(encoded, LayoutV1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := op.(*MintNFT)
	if !ok {
		t.Fatalf("decoded %T, want *MintNFT", op)
	}
	if got.CreatorAccountId != want.CreatorAccountId || got.RecipientAccountId != want.RecipientAccountId ||
		got.ContentHash != want.ContentHash || got.FeeToken != want.FeeToken {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if got.Fee.Cmp(want.Fee) != 0 {
		t.Fatalf("fee: got %s, want %s", got.Fee, want.Fee)
	}
}

func TestPubdataRoundTripWithdrawNFT(t *testing.T) {
	want := &WithdrawNFT{
		AccountId: 3,
		NFTToken:  MinNFTTokenId + 1,
		ToAddress: Address{0x01},
		Fee:       big.NewInt(8),
		FeeToken:  ETHTokenId,
	}
	encoded, err := EncodePubdata(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	op, _, err := DecodePubdata(encoded, LayoutV1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := op.(*WithdrawNFT)
	if !ok {
		t.Fatalf("decoded %T, want *WithdrawNFT", op)
	}
	if got.AccountId != want.AccountId || got.NFTToken != want.NFTToken || got.ToAddress != want.ToAddress || got.FeeToken != want.FeeToken {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if got.Fee.Cmp(want.Fee) != 0 {
		t.Fatalf("fee: got %s, want %s", got.Fee, want.Fee)
	}
}

func TestDecodePubdataRejectsUnknownTag(t *testing.T) {
	buf := make([]byte, ChunkSize)
	buf[0] = 0xFF
	if _, _, err := DecodePubdata(buf, LayoutV1); err == nil {
		t.Fatal("expected unknown tag to be rejected")
	}
}

func TestDecodePubdataRejectsTruncatedBuffer(t *testing.T) {
	if _, _, err := DecodePubdata(nil, LayoutV1); err == nil {
		t.Fatal("expected empty buffer to be rejected")
	}
}

func TestDecodePubdataRejectsUnknownLayout(t *testing.T) {
	buf := make([]byte, ChunkSize)
	buf[0] = byte(TxNoop)
	if _, _, err := DecodePubdata(buf, Layout(99)); err == nil {
		t.Fatal("expected unknown layout to be rejected")
	}
}
