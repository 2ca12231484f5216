package core

// pubdata.go implements the bit-exact wire codec of spec §4.3: every
// operation serializes to a whole number of fixed-size chunks (so the
// settlement contract can efficiently slice calldata by chunk offset), tag
// byte first, followed by big-endian fields matching each operation's
// Execute semantics one-for-one. Fees and all amounts except Withdraw's are
// packed through fee.go's base-10 float codec; Withdraw's amount is linear
// with a 4-byte length prefix, and everything else is fixed-width linear
// big-endian. DecodePubdata takes the Layout explicitly rather than
// guessing it from the byte stream (spec §9's versioning requirement);
// LayoutV1 is the only layout, and any other value is rejected.

import (
	"encoding/binary"
	"fmt"
	"math/big"
)

// ChunkSize is the number of pubdata bytes per chunk, per spec §4.3.
const ChunkSize = 23

// Layout names one pubdata field-width table. Only LayoutV1 is implemented;
// future contract versions would add LayoutV2 etc. without touching V1's
// decode path.
type Layout uint8

const LayoutV1 Layout = 1

// padToChunks right-pads buf with zero bytes up to a whole number of
// ChunkSize-byte chunks matching t's canonical chunk count.
func padToChunks(buf []byte, t TxType) []byte {
	want := t.Chunks() * ChunkSize
	if len(buf) > want {
		panic(fmt.Sprintf("pubdata: %v encoded %d bytes, exceeds %d-byte budget", t, len(buf), want))
	}
	out := make([]byte, want)
	copy(out, buf)
	return out
}

func appendAddress(buf []byte, a Address) []byte { return append(buf, a[:]...) }
func appendPubKeyHash(buf []byte, p PubKeyHash) []byte { return append(buf, p[:]...) }

// EncodePubdata serializes a single operation into its canonical,
// chunk-padded pubdata slice. The caller concatenates these in block order
// to build the full block pubdata blob committed on-chain.
func EncodePubdata(op Operation) ([]byte, error) {
	buf := []byte{byte(op.Type())}
	switch o := op.(type) {
	case *Noop:
		// tag only
	case *Deposit:
		buf = appendUint32(buf, uint32(o.AccountId))
		buf = appendUint32(buf, uint32(o.Token))
		packed, err := PackAmount(o.Amount)
		if err != nil {
			return nil, fmt.Errorf("encode deposit: %w", err)
		}
		buf = appendUint64(buf, packed)
		buf = appendAddress(buf, o.To)
	case *TransferToNew:
		buf = appendUint32(buf, uint32(o.FromAccountId))
		packed, err := PackAmount(o.Amount)
		if err != nil {
			return nil, fmt.Errorf("encode transfer to new: %w", err)
		}
		buf = appendUint32(buf, uint32(o.Token))
		buf = appendUint64(buf, packed)
		buf = appendAddress(buf, o.ToAddress)
		buf = appendUint32(buf, uint32(o.ToAccountId))
		feePacked, err := PackFee(o.Fee)
		if err != nil {
			return nil, fmt.Errorf("encode transfer to new: %w", err)
		}
		buf = append(buf, byte(feePacked>>8), byte(feePacked))
		buf = appendUint32(buf, uint32(o.Nonce))
	case *Transfer:
		buf = appendUint32(buf, uint32(o.FromAccountId))
		buf = appendUint32(buf, uint32(o.Token))
		buf = appendUint32(buf, uint32(o.ToAccountId))
		packed, err := PackAmount(o.Amount)
		if err != nil {
			return nil, fmt.Errorf("encode transfer: %w", err)
		}
		buf = appendUint64(buf, packed)
		feePacked, err := PackFee(o.Fee)
		if err != nil {
			return nil, fmt.Errorf("encode transfer: %w", err)
		}
		buf = append(buf, byte(feePacked>>8), byte(feePacked))
	case *Withdraw:
		buf = appendUint32(buf, uint32(o.AccountId))
		buf = appendUint32(buf, uint32(o.Token))
		buf = appendBigInt(buf, o.Amount) // full linear amount, not packed
		feePacked, err := PackFee(o.Fee)
		if err != nil {
			return nil, fmt.Errorf("encode withdraw: %w", err)
		}
		buf = append(buf, byte(feePacked>>8), byte(feePacked))
		buf = appendAddress(buf, o.ToAddress)
	case *FullExit:
		buf = appendUint32(buf, uint32(o.AccountId))
		buf = appendAddress(buf, o.EthAddress)
		buf = appendUint32(buf, uint32(o.Token))
	case *ChangePubKey:
		buf = appendUint32(buf, uint32(o.AccountId))
		buf = appendPubKeyHash(buf, o.NewPubKeyHash)
		buf = appendUint32(buf, uint32(o.Nonce))
		feePacked, err := PackFee(o.Fee)
		if err != nil {
			return nil, fmt.Errorf("encode change pubkey: %w", err)
		}
		buf = append(buf, byte(feePacked>>8), byte(feePacked))
		buf = appendUint32(buf, uint32(o.FeeToken))
	case *ForcedExit:
		buf = appendUint32(buf, uint32(o.InitiatorAccountId))
		buf = appendUint32(buf, uint32(o.TargetAccountId))
		buf = appendUint32(buf, uint32(o.Token))
		feePacked, err := PackFee(o.Fee)
		if err != nil {
			return nil, fmt.Errorf("encode forced exit: %w", err)
		}
		buf = append(buf, byte(feePacked>>8), byte(feePacked))
	case *MintNFT:
		buf = appendUint32(buf, uint32(o.CreatorAccountId))
		buf = appendUint32(buf, uint32(o.RecipientAccountId))
		buf = append(buf, o.ContentHash[:]...)
		feePacked, err := PackFee(o.Fee)
		if err != nil {
			return nil, fmt.Errorf("encode mint nft: %w", err)
		}
		buf = append(buf, byte(feePacked>>8), byte(feePacked))
		buf = appendUint32(buf, uint32(o.FeeToken))
	case *WithdrawNFT:
		buf = appendUint32(buf, uint32(o.AccountId))
		buf = appendUint32(buf, uint32(o.NFTToken))
		buf = appendAddress(buf, o.ToAddress)
		feePacked, err := PackFee(o.Fee)
		if err != nil {
			return nil, fmt.Errorf("encode withdraw nft: %w", err)
		}
		buf = append(buf, byte(feePacked>>8), byte(feePacked))
		buf = appendUint32(buf, uint32(o.FeeToken))
	case *Swap:
		buf = appendUint32(buf, uint32(o.SubmitterAccountId))
		buf = appendUint32(buf, uint32(o.OrderA.AccountId))
		buf = appendUint32(buf, uint32(o.OrderB.AccountId))
		ap, err := PackAmount(o.AmountA)
		if err != nil {
			return nil, fmt.Errorf("encode swap: %w", err)
		}
		bp, err := PackAmount(o.AmountB)
		if err != nil {
			return nil, fmt.Errorf("encode swap: %w", err)
		}
		buf = appendUint64(buf, ap)
		buf = appendUint64(buf, bp)
		feePacked, err := PackFee(o.Fee)
		if err != nil {
			return nil, fmt.Errorf("encode swap: %w", err)
		}
		buf = append(buf, byte(feePacked>>8), byte(feePacked))
		buf = appendUint32(buf, uint32(o.FeeToken))
	case *Close:
		buf = appendUint32(buf, uint32(o.AccountId))
		buf = appendUint32(buf, uint32(o.Nonce))
	default:
		return nil, fmt.Errorf("encode pubdata: %w", ErrUnknownTxType)
	}
	return padToChunks(buf, op.Type()), nil
}

func readUint32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
func readUint64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

func bigIntFromBytes(b []byte) *big.Int { return new(big.Int).SetBytes(b) }
