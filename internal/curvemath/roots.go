package curvemath

import (
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// cbrtThreshold is floor(cbrt(2^256 - 1) / 10^18) scaled back up, i.e. the
// largest input that can still be multiplied by 10^36 without overflowing
// 256 bits. Inputs above it are rescaled less aggressively and the result is
// multiplied back up afterwards.
var cbrtThreshold = mustInt("115792089237316195423570985008687907853269")

// powers of 1260 and 1000 for the cube-root initial guess,
// cbrt(2) ~ 1.26 = 1260/1000.
var (
	pow1260 = [3]int64{1, 1260, 1587600}
	pow1000 = [3]int64{1, 1000, 1000000}
)

func mustInt(s string) sdkmath.Int {
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		panic("curvemath: bad integer literal " + s)
	}
	return v
}

// Cbrt returns the cube root of x in 10^18 fixed-point: for x = v * 10^18 the
// result is cbrt(v) * 10^18. The initial guess is seeded from the integer log
// base 2, after which seven Newton iterations are sufficient; fewer would not
// converge and more would be wasted.
func Cbrt(c Constants, x sdkmath.Int) sdkmath.Int {
	if x.IsNil() || x.IsZero() {
		return sdkmath.ZeroInt()
	}

	var xx sdkmath.Int
	switch {
	case x.GTE(cbrtThreshold.Mul(c.Precision)):
		xx = x
	case x.GTE(cbrtThreshold):
		xx = x.Mul(c.Precision)
	default:
		xx = x.Mul(pow10(36))
	}

	log2x := Log2(xx, false)
	remainder := log2x % 3

	// initial_guess = 2^(log2x/3) * 1260^rem / 1000^rem
	a := sdkmath.NewIntFromBigInt(new(big.Int).Lsh(big.NewInt(1), uint(log2x/3)))
	a = a.MulRaw(pow1260[remainder]).QuoRaw(pow1000[remainder])

	for i := 0; i < 7; i++ {
		a = a.MulRaw(2).Add(xx.Quo(a.Mul(a))).QuoRaw(3)
	}

	switch {
	case x.GTE(cbrtThreshold.Mul(c.Precision)):
		a = a.Mul(pow10(12))
	case x.GTE(cbrtThreshold):
		a = a.Mul(pow10(6))
	}
	return a
}

// Log2 returns the integer log base 2 of x with an explicit rounding
// direction. Log2(0) is defined as 0.
func Log2(x sdkmath.Int, roundUp bool) int {
	if x.IsNil() || !x.IsPositive() {
		return 0
	}
	b := x.BigInt()
	result := b.BitLen() - 1
	if roundUp && new(big.Int).Lsh(big.NewInt(1), uint(result)).Cmp(b) < 0 {
		result++
	}
	return result
}

// HalfPow computes 0.5^(power/10^18) in 10^18 fixed-point via the alternating
// series for the fractional part. Used for the price-oracle EMA weight.
func HalfPow(c Constants, power sdkmath.Int) (sdkmath.Int, error) {
	intPow := power.Quo(c.Precision)
	if intPow.GT(sdkmath.NewInt(59)) {
		return sdkmath.ZeroInt(), nil
	}
	otherPow := power.Sub(intPow.Mul(c.Precision))

	result := c.Precision.Quo(sdkmath.NewIntFromBigInt(new(big.Int).Lsh(big.NewInt(1), uint(intPow.Int64()))))
	if otherPow.IsZero() {
		return result, nil
	}

	term := c.Precision
	x := pow10(17).MulRaw(5) // 0.5 in 10^18
	s := c.Precision
	neg := false

	for i := int64(1); i < 256; i++ {
		k := c.Precision.MulRaw(i)
		cTerm := k.Sub(c.Precision)
		if otherPow.GT(cTerm) {
			cTerm = otherPow.Sub(cTerm)
			neg = !neg
		} else {
			cTerm = cTerm.Sub(otherPow)
		}
		term = term.Mul(cTerm.Mul(x).Quo(c.Precision)).Quo(k)
		if neg {
			s = s.Sub(term)
		} else {
			s = s.Add(term)
		}
		if term.LT(c.ExpPrecision) {
			return result.Mul(s).Quo(c.Precision), nil
		}
	}
	return sdkmath.Int{}, fmt.Errorf("%w: half-power series", ErrConvergence)
}

// ReductionCoefficient interpolates between the mid and out fee regimes:
// it is 10^18 when the pool is perfectly balanced and decays toward zero as
// the balances spread, with feeGamma controlling the decay rate.
func ReductionCoefficient(c Constants, xp []sdkmath.Int, feeGamma sdkmath.Int) (sdkmath.Int, error) {
	n := sdkmath.NewInt(int64(len(xp)))
	s := sdkmath.ZeroInt()
	for _, x := range xp {
		s = s.Add(x)
	}
	if s.IsZero() {
		return sdkmath.Int{}, fmt.Errorf("%w: zero balance sum", ErrUnsafeParameter)
	}

	k := c.Precision
	for _, x := range xp {
		k = k.Mul(n).Mul(x).Quo(s)
	}
	if feeGamma.IsPositive() {
		k = feeGamma.Mul(c.Precision).Quo(feeGamma.Add(c.Precision).Sub(k))
	}
	return k, nil
}
