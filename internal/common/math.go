package common

import "math/big"

// Fixed-point convention: prices and contract sizes are integer lots with
// an implicit 6-decimal scale; quantities are integer lots. All notional
// math is done in 128-bit space to avoid overflow on the widest slabs,
// mirroring original_source/programs/common/src/math.rs.

// MulU64 multiplies two uint64 values into a big.Int, avoiding overflow.
func MulU64(a, b uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
}

// MulBig multiplies a uint64 by an existing big.Int product.
func MulBig(a uint64, b *big.Int) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(a), b)
}

// VWAP returns the volume-weighted average price, floored, of a notional
// total over a filled quantity. Returns 0 when qty is 0.
func VWAP(totalNotional *big.Int, qty uint64) uint64 {
	if qty == 0 {
		return 0
	}
	q := new(big.Int).SetUint64(qty)
	v := new(big.Int).Div(totalNotional, q)
	return v.Uint64()
}

// PnL computes qty * (currentPrice - entryPrice), signed by qty's sign.
func PnL(qty int64, entryPrice, currentPrice uint64) *big.Int {
	q := big.NewInt(qty)
	diff := new(big.Int).Sub(new(big.Int).SetUint64(currentPrice), new(big.Int).SetUint64(entryPrice))
	return new(big.Int).Mul(q, diff)
}

// FundingPayment computes qty * (cumFundingNow - cumFundingSnapshot).
func FundingPayment(qty int64, cumFundingNow, cumFundingSnapshot *big.Int) *big.Int {
	q := big.NewInt(qty)
	delta := new(big.Int).Sub(cumFundingNow, cumFundingSnapshot)
	return new(big.Int).Mul(q, delta)
}

// IsTickAligned reports whether price is a multiple of tick.
func IsTickAligned(price, tick uint64) bool {
	if tick == 0 {
		return true
	}
	return price%tick == 0
}

// IsLotAligned reports whether qty is a multiple of lot.
func IsLotAligned(qty, lot uint64) bool {
	if lot == 0 {
		return true
	}
	return qty%lot == 0
}

var bpsDivisor = big.NewInt(10_000)

// FeeOnNotional applies a (possibly negative) basis-point fee to a notional
// value, returning the fee amount as a big.Int (sign preserved: negative
// means a rebate owed back to the maker).
func FeeOnNotional(notional *big.Int, feeBps int64) *big.Int {
	fee := new(big.Int).Mul(notional, big.NewInt(feeBps))
	return fee.Div(fee, bpsDivisor)
}

// IM computes the initial-margin requirement for an absolute position size.
func IM(qty int64, contractSize, markPrice, imrBps uint64) *big.Int {
	return marginRequirement(qty, contractSize, markPrice, imrBps)
}

// MM computes the maintenance-margin requirement for an absolute position size.
func MM(qty int64, contractSize, markPrice, mmrBps uint64) *big.Int {
	return marginRequirement(qty, contractSize, markPrice, mmrBps)
}

func marginRequirement(qty int64, contractSize, markPrice, bps uint64) *big.Int {
	abs := qty
	if abs < 0 {
		abs = -abs
	}
	notional := MulU64(uint64(abs), contractSize)
	value := MulBig(markPrice, notional)
	value.Mul(value, new(big.Int).SetUint64(bps))
	return value.Div(value, bpsDivisor)
}
