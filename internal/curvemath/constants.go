/*

Fixed-point constants and safety bounds shared by every solver in this
package. A single Constants value is threaded explicitly through all calls so
solver behavior is reproducible and testable in isolation, with no ambient
global state.

*/

package curvemath

import (
	sdkmath "cosmossdk.io/math"
)

// Constants pins the fixed-point scales and iteration budgets the solvers
// operate under. Every arithmetic step downstream uses truncating integer
// division in a fixed order; these values are contractual, not heuristic.
type Constants struct {
	// Precision is the common fixed-point scale (10^18).
	Precision sdkmath.Int
	// AMultiplier scales the amplification coefficient (10^4).
	AMultiplier sdkmath.Int
	// MinGamma and MaxGamma bound the cryptoswap curvature parameter.
	MinGamma sdkmath.Int
	MaxGamma sdkmath.Int
	// ExpPrecision is the convergence cutoff for the half-power series (10^10).
	ExpPrecision sdkmath.Int
	// MaxIter caps every Newton iteration loop.
	MaxIter int
}

// DefaultConstants returns the parameter set matching the pools being modeled.
func DefaultConstants() Constants {
	return Constants{
		Precision:    pow10(18),
		AMultiplier:  sdkmath.NewInt(10000),
		MinGamma:     pow10(10),
		MaxGamma:     pow10(16).MulRaw(2),
		ExpPrecision: pow10(10),
		MaxIter:      255,
	}
}

// pow10 returns 10^n as an Int.
func pow10(n int) sdkmath.Int {
	return sdkmath.NewIntWithDecimal(1, n)
}

// intPow returns base^exp for small non-negative exponents.
func intPow(base, exp int) sdkmath.Int {
	result := sdkmath.OneInt()
	b := sdkmath.NewInt(int64(base))
	for i := 0; i < exp; i++ {
		result = result.Mul(b)
	}
	return result
}

// absDiff returns |a - b|.
func absDiff(a, b sdkmath.Int) sdkmath.Int {
	if a.GTE(b) {
		return a.Sub(b)
	}
	return b.Sub(a)
}

// maxInt returns the larger of a and b.
func maxInt(a, b sdkmath.Int) sdkmath.Int {
	if a.GTE(b) {
		return a
	}
	return b
}
