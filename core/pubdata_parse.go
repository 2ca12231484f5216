package core

// pubdata_parse.go is EncodePubdata's exact inverse: DecodePubdata reads one
// operation starting at offset 0 of a chunk-aligned slice and reports how
// many bytes it consumed, so data restore (C7) can walk a block's full
// pubdata blob operation by operation without separately tracking chunk
// boundaries.

import "fmt"

func need(b []byte, n int) error {
	if len(b) < n {
		return fmt.Errorf("decode pubdata: %w", ErrTruncatedPubdata)
	}
	return nil
}

// DecodePubdata parses one operation from the front of b and returns it
// along with the number of bytes consumed (always a multiple of ChunkSize).
// layout is accepted for forward compatibility with future contract
// versions; LayoutV1 is the only one currently implemented.
func DecodePubdata(b []byte, layout Layout) (Operation, int, error) {
	if layout != LayoutV1 {
		return nil, 0, fmt.Errorf("decode pubdata: layout %d: %w", layout, ErrUnknownLayout)
	}
	if err := need(b, 1); err != nil {
		return nil, 0, err
	}
	t := TxType(b[0])
	consumed := t.Chunks() * ChunkSize
	if consumed == 0 {
		return nil, 0, fmt.Errorf("decode pubdata: tag %d: %w", t, ErrUnknownTxType)
	}
	if err := need(b, consumed); err != nil {
		return nil, 0, err
	}
	body := b[1:consumed]

	switch t {
	case TxNoop:
		return &Noop{}, consumed, nil

	case TxDeposit:
		if err := need(body, 4+4+8+20); err != nil {
			return nil, 0, err
		}
		d := &Deposit{
			AccountId: AccountId(readUint32(body[0:4])),
			Token:     TokenId(readUint32(body[4:8])),
			Amount:    UnpackAmount(readUint64(body[8:16])),
		}
		copy(d.To[:], body[16:36])
		return d, consumed, nil

	case TxTransferToNew:
		if err := need(body, 4+4+8+20+4+2+4); err != nil {
			return nil, 0, err
		}
		o := &TransferToNew{}
		o.FromAccountId = AccountId(readUint32(body[0:4]))
		o.Token = TokenId(readUint32(body[4:8]))
		o.Amount = UnpackAmount(readUint64(body[8:16]))
		copy(o.ToAddress[:], body[16:36])
		o.ToAccountId = AccountId(readUint32(body[36:40]))
		o.Fee = UnpackFee(uint64(body[40])<<8 | uint64(body[41]))
		o.Nonce = Nonce(readUint32(body[42:46]))
		return o, consumed, nil

	case TxTransfer:
		if err := need(body, 4+4+4+8+2); err != nil {
			return nil, 0, err
		}
		o := &Transfer{
			FromAccountId: AccountId(readUint32(body[0:4])),
			Token:         TokenId(readUint32(body[4:8])),
			ToAccountId:   AccountId(readUint32(body[8:12])),
			Amount:        UnpackAmount(readUint64(body[12:20])),
			Fee:           UnpackFee(uint64(body[20])<<8 | uint64(body[21])),
		}
		return o, consumed, nil

	case TxWithdraw:
		if err := need(body, 4+4+4+2+20); err != nil {
			return nil, 0, err
		}
		amtLen := int(readUint32(body[8:12]))
		off := 12
		if err := need(body, off+amtLen+2+20); err != nil {
			return nil, 0, err
		}
		o := &Withdraw{
			AccountId: AccountId(readUint32(body[0:4])),
			Token:     TokenId(readUint32(body[4:8])),
			Amount:    bigIntFromBytes(body[off : off+amtLen]),
		}
		off += amtLen
		o.Fee = UnpackFee(uint64(body[off])<<8 | uint64(body[off+1]))
		off += 2
		copy(o.ToAddress[:], body[off:off+20])
		return o, consumed, nil

	case TxFullExit:
		if err := need(body, 4+20+4); err != nil {
			return nil, 0, err
		}
		o := &FullExit{AccountId: AccountId(readUint32(body[0:4]))}
		copy(o.EthAddress[:], body[4:24])
		o.Token = TokenId(readUint32(body[24:28]))
		return o, consumed, nil

	case TxChangePubKey:
		if err := need(body, 4+20+4+2+4); err != nil {
			return nil, 0, err
		}
		o := &ChangePubKey{AccountId: AccountId(readUint32(body[0:4]))}
		copy(o.NewPubKeyHash[:], body[4:24])
		o.Nonce = Nonce(readUint32(body[24:28]))
		o.Fee = UnpackFee(uint64(body[28])<<8 | uint64(body[29]))
		o.FeeToken = TokenId(readUint32(body[30:34]))
		return o, consumed, nil

	case TxForcedExit:
		if err := need(body, 4+4+4+2); err != nil {
			return nil, 0, err
		}
		o := &ForcedExit{
			InitiatorAccountId: AccountId(readUint32(body[0:4])),
			TargetAccountId:    AccountId(readUint32(body[4:8])),
			Token:              TokenId(readUint32(body[8:12])),
			Fee:                UnpackFee(uint64(body[12])<<8 | uint64(body[13])),
		}
		return o, consumed, nil

	case TxMintNFT:
		if err := need(body, 4+4+32+2+4); err != nil {
			return nil, 0, err
		}
		o := &MintNFT{
			CreatorAccountId:   AccountId(readUint32(body[0:4])),
			RecipientAccountId: AccountId(readUint32(body[4:8])),
		}
		copy(o.ContentHash[:], body[8:40])
		o.Fee = UnpackFee(uint64(body[40])<<8 | uint64(body[41]))
		o.FeeToken = TokenId(readUint32(body[42:46]))
		return o, consumed, nil

	case TxWithdrawNFT:
		if err := need(body, 4+4+20+2+4); err != nil {
			return nil, 0, err
		}
		o := &WithdrawNFT{
			AccountId: AccountId(readUint32(body[0:4])),
			NFTToken:  TokenId(readUint32(body[4:8])),
		}
		copy(o.ToAddress[:], body[8:28])
		o.Fee = UnpackFee(uint64(body[28])<<8 | uint64(body[29]))
		o.FeeToken = TokenId(readUint32(body[30:34]))
		return o, consumed, nil

	case TxSwap:
		if err := need(body, 4+4+4+8+8+2+4); err != nil {
			return nil, 0, err
		}
		o := &Swap{
			SubmitterAccountId: AccountId(readUint32(body[0:4])),
			OrderA:             Order{AccountId: AccountId(readUint32(body[4:8]))},
			OrderB:             Order{AccountId: AccountId(readUint32(body[8:12]))},
			AmountA:            UnpackAmount(readUint64(body[12:20])),
			AmountB:            UnpackAmount(readUint64(body[20:28])),
		}
		o.Fee = UnpackFee(uint64(body[28])<<8 | uint64(body[29]))
		o.FeeToken = TokenId(readUint32(body[30:34]))
		return o, consumed, nil

	case TxClose:
		if err := need(body, 4+4); err != nil {
			return nil, 0, err
		}
		o := &Close{
			AccountId: AccountId(readUint32(body[0:4])),
			Nonce:     Nonce(readUint32(body[4:8])),
		}
		return o, consumed, nil

	default:
		return nil, 0, fmt.Errorf("decode pubdata: tag %d: %w", t, ErrUnknownTxType)
	}
}
