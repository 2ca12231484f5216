package core

// fee.go implements the base-10 packed-float encoding spec §4.2/§4.3
// requires for transfer amounts (5-bit exponent, 35-bit mantissa) and fees
// (5-bit exponent, 11-bit mantissa): packed = (exponent << mantissaBits) |
// mantissa, representing mantissa * 10^exponent. A value is representable
// only if repeatedly dividing by 10 (stripping trailing decimal zeros)
// brings the mantissa under its bit width within the exponent's range —
// exactly, with no rounding.

import (
	"fmt"
	"math/big"
)

const (
	AmountExponentBits = 5
	AmountMantissaBits = 35
	FeeExponentBits    = 5
	FeeMantissaBits    = 11
)

var ten = big.NewInt(10)

func packFloat(value *big.Int, expBits, mantissaBits uint, sentinel error) (uint64, error) {
	if value.Sign() < 0 {
		return 0, fmt.Errorf("packFloat: negative value: %w", sentinel)
	}
	maxMantissa := new(big.Int).Lsh(big.NewInt(1), mantissaBits)
	maxExp := (uint64(1) << expBits) - 1

	mantissa := new(big.Int).Set(value)
	mod := new(big.Int)
	exp := uint64(0)
	for mantissa.Cmp(maxMantissa) >= 0 {
		if exp >= maxExp {
			return 0, fmt.Errorf("packFloat: exponent overflow: %w", sentinel)
		}
		q, r := new(big.Int).QuoRem(mantissa, ten, mod)
		if r.Sign() != 0 {
			return 0, fmt.Errorf("packFloat: not a multiple of 10^%d: %w", exp+1, sentinel)
		}
		mantissa = q
		exp++
	}
	return (exp << mantissaBits) | mantissa.Uint64(), nil
}

func unpackFloat(packed uint64, expBits, mantissaBits uint) *big.Int {
	mantissaMask := (uint64(1) << mantissaBits) - 1
	mantissa := packed & mantissaMask
	exp := packed >> mantissaBits
	result := new(big.Int).SetUint64(mantissa)
	pow := new(big.Int).Exp(ten, new(big.Int).SetUint64(exp), nil)
	return result.Mul(result, pow)
}

// PackAmount encodes a transfer amount into the 40-bit packed float, or
// reports ErrUnrepresentableAmount. Withdraw amounts are not packed; their
// pubdata carries them linear.
func PackAmount(amount *big.Int) (uint64, error) {
	return packFloat(amount, AmountExponentBits, AmountMantissaBits, ErrUnrepresentableAmount)
}

// UnpackAmount decodes the 40-bit packed float back into a linear amount.
func UnpackAmount(packed uint64) *big.Int {
	return unpackFloat(packed, AmountExponentBits, AmountMantissaBits)
}

// PackFee encodes a fee into the 16-bit packed float, or reports
// ErrUnrepresentableFee.
func PackFee(fee *big.Int) (uint64, error) {
	return packFloat(fee, FeeExponentBits, FeeMantissaBits, ErrUnrepresentableFee)
}

// UnpackFee decodes the 16-bit packed float back into a linear fee amount.
func UnpackFee(packed uint64) *big.Int {
	return unpackFloat(packed, FeeExponentBits, FeeMantissaBits)
}
