/*

Checked fixed-point arithmetic for the reward and vault engines. All engine
math runs through sdkmath.Int so intermediates can exceed 64 bits (the
accumulator update needs a 192-bit product), with explicit bound checks when
a value is stored back into a u64 or u128 field. Division by zero and any
failed narrowing both surface as ErrMathOverflow.

*/

package fixedmath

import (
	"errors"
	"math"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// ErrMathOverflow is returned by every failed checked operation, including
// division by zero.
var ErrMathOverflow = errors.New("math operation overflow")

// SecondsInYear converts an annualised emission rate into a per-second one.
const SecondsInYear uint64 = 365 * 24 * 60 * 60

var (
	// precision is the fixed accumulator scale factor, u64::MAX.
	precision  = sdkmath.NewIntFromUint64(math.MaxUint64)
	maxUint64  = sdkmath.NewIntFromUint64(math.MaxUint64)
	maxUint128 = sdkmath.NewIntFromBigInt(new(big.Int).Sub(
		new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1)))
)

// Precision returns the accumulator scale factor (2^64 - 1). Accumulators
// are stored pre-scaled by this value.
func Precision() sdkmath.Int {
	return precision
}

// FromU64 lifts a uint64 into sdkmath.Int.
func FromU64(v uint64) sdkmath.Int {
	return sdkmath.NewIntFromUint64(v)
}

// ToU64 narrows back to uint64, failing if the value is negative or exceeds
// the u64 range.
func ToU64(v sdkmath.Int) (uint64, error) {
	if v.IsNegative() || v.GT(maxUint64) {
		return 0, ErrMathOverflow
	}
	return v.Uint64(), nil
}

// CheckU128 verifies that v fits the u128 storage width of an accumulator.
func CheckU128(v sdkmath.Int) (sdkmath.Int, error) {
	if v.IsNegative() || v.GT(maxUint128) {
		return sdkmath.ZeroInt(), ErrMathOverflow
	}
	return v, nil
}

// AddU64 returns a+b with an overflow check.
func AddU64(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrMathOverflow
	}
	return sum, nil
}

// SubU64 returns a-b, failing when the result would be negative.
func SubU64(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrMathOverflow
	}
	return a - b, nil
}

// MulU64 returns a*b with an overflow check.
func MulU64(a, b uint64) (uint64, error) {
	return ToU64(FromU64(a).Mul(FromU64(b)))
}

// MulDivU64 returns a*b/den with a widened intermediate. Truncates toward
// zero, matching on-chain integer division.
func MulDivU64(a, b, den uint64) (uint64, error) {
	if den == 0 {
		return 0, ErrMathOverflow
	}
	return ToU64(FromU64(a).Mul(FromU64(b)).Quo(FromU64(den)))
}
