package curvemath

import (
	"fmt"
	"sort"

	sdkmath "cosmossdk.io/math"
)

// GeometricMean returns the integer n-th root of the product of n positive
// fixed-point values, computed by Newton iteration:
//
//	D <- D * ((n-1)*10^18 + prod(x)*10^18/D^n) / (n*10^18)
//
// With descending=true the inputs are pre-sorted largest first, which keeps
// the intermediate products well conditioned. The result is independent of
// input ordering either way.
func GeometricMean(c Constants, values []sdkmath.Int, descending bool) (sdkmath.Int, error) {
	n := len(values)
	if n == 0 {
		return sdkmath.Int{}, fmt.Errorf("%w: geometric mean of empty input", ErrUnsafeParameter)
	}
	for _, v := range values {
		if v.IsNil() || !v.IsPositive() {
			return sdkmath.Int{}, fmt.Errorf("%w: geometric mean requires positive values", ErrUnsafeParameter)
		}
	}

	x := make([]sdkmath.Int, n)
	copy(x, values)
	if descending {
		sort.Slice(x, func(i, j int) bool { return x[i].GT(x[j]) })
	}

	nInt := sdkmath.NewInt(int64(n))
	nMinusOne := sdkmath.NewInt(int64(n - 1))

	d := x[0]
	for i := 0; i < c.MaxIter; i++ {
		dPrev := d
		tmp := c.Precision
		for _, xi := range x {
			tmp = tmp.Mul(xi).Quo(d)
		}
		d = d.Mul(nMinusOne.Mul(c.Precision).Add(tmp)).Quo(nInt.Mul(c.Precision))

		diff := absDiff(d, dPrev)
		if diff.LTE(sdkmath.OneInt()) || diff.Mul(c.Precision).LT(d) {
			return d, nil
		}
	}
	return sdkmath.Int{}, fmt.Errorf("%w: geometric mean after %d iterations", ErrConvergence, c.MaxIter)
}
