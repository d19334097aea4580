package curvemath

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// SolveY returns the post-trade balance of coin j on a stableswap curve when
// the balance of coin i is set to x, holding the invariant fixed. ann uses the
// A*n convention. The quadratic-in-y fixed point converges within a unit.
func SolveY(c Constants, ann sdkmath.Int, xp []sdkmath.Int, i, j int, x sdkmath.Int) (sdkmath.Int, error) {
	n := len(xp)
	if i == j || i < 0 || j < 0 || i >= n || j >= n {
		return sdkmath.Int{}, fmt.Errorf("%w: coin indices %d, %d", ErrUnsafeParameter, i, j)
	}

	d, err := stableswapD(c, ann, xp)
	if err != nil {
		return sdkmath.Int{}, err
	}

	nInt := sdkmath.NewInt(int64(n))
	cc := d
	s := sdkmath.ZeroInt()
	for k := 0; k < n; k++ {
		var xk sdkmath.Int
		switch {
		case k == i:
			xk = x
		case k != j:
			xk = xp[k]
		default:
			continue
		}
		s = s.Add(xk)
		cc = cc.Mul(d).Quo(xk.Mul(nInt))
	}
	cc = cc.Mul(d).Quo(ann.Mul(nInt))
	b := s.Add(d.Quo(ann))

	return solveYQuadratic(c, cc, b, d)
}

// SolveYD returns the balance of coin i consistent with the remaining xp
// balances and a given invariant d. Used when burning LP tokens for a single
// coin, where D shrinks first and the matching balance follows.
func SolveYD(c Constants, ann sdkmath.Int, xp []sdkmath.Int, i int, d sdkmath.Int) (sdkmath.Int, error) {
	n := len(xp)
	if i < 0 || i >= n {
		return sdkmath.Int{}, fmt.Errorf("%w: coin index %d", ErrUnsafeParameter, i)
	}

	nInt := sdkmath.NewInt(int64(n))
	cc := d
	s := sdkmath.ZeroInt()
	for k := 0; k < n; k++ {
		if k == i {
			continue
		}
		s = s.Add(xp[k])
		cc = cc.Mul(d).Quo(xp[k].Mul(nInt))
	}
	cc = cc.Mul(d).Quo(ann.Mul(nInt))
	b := s.Add(d.Quo(ann))

	return solveYQuadratic(c, cc, b, d)
}

func solveYQuadratic(c Constants, cc, b, d sdkmath.Int) (sdkmath.Int, error) {
	one := sdkmath.OneInt()
	y := d
	for i := 0; i < c.MaxIter; i++ {
		yPrev := y
		y = y.Mul(y).Add(cc).Quo(y.MulRaw(2).Add(b).Sub(d))
		if absDiff(y, yPrev).LTE(one) {
			return y, nil
		}
	}
	return sdkmath.Int{}, fmt.Errorf("%w: stableswap y after %d iterations", ErrConvergence, c.MaxIter)
}

// SolveCryptoY returns the post-trade balance of the output coin on a
// two-coin cryptoswap curve, given the invariant d and the updated balance of
// the other coin. ann uses the A*n^n*AMultiplier convention. The solve halves
// the iterate and retries whenever the derivative estimate would go negative,
// mirroring the contract it models.
func SolveCryptoY(c Constants, ann, gamma sdkmath.Int, xp []sdkmath.Int, d sdkmath.Int, i int) (sdkmath.Int, error) {
	if len(xp) != 2 {
		return sdkmath.Int{}, fmt.Errorf("%w: cryptoswap y solve needs exactly two balances", ErrUnsafeParameter)
	}
	if i != 0 && i != 1 {
		return sdkmath.Int{}, fmt.Errorf("%w: coin index %d", ErrUnsafeParameter, i)
	}
	nInt := sdkmath.NewInt(2)
	one := sdkmath.OneInt()

	minA := intPow(2, 2).Mul(c.AMultiplier).QuoRaw(10)
	maxA := intPow(2, 2).Mul(c.AMultiplier).MulRaw(100000)
	if ann.LT(minA) || ann.GT(maxA) {
		return sdkmath.Int{}, fmt.Errorf("%w: A %s outside [%s, %s]", ErrUnsafeParameter, ann, minA, maxA)
	}
	if gamma.LT(c.MinGamma) || gamma.GT(c.MaxGamma) {
		return sdkmath.Int{}, fmt.Errorf("%w: gamma %s outside [%s, %s]", ErrUnsafeParameter, gamma, c.MinGamma, c.MaxGamma)
	}

	xj := xp[1-i]
	y := d.Mul(d).Quo(xj.Mul(nInt).Mul(nInt))
	k0i := c.Precision.Mul(nInt).Mul(xj).Quo(d)
	if k0i.LTE(pow10(16).Mul(nInt).Sub(one)) || k0i.GTE(pow10(20).Mul(nInt).Add(one)) {
		return sdkmath.Int{}, fmt.Errorf("%w: fixed balance to invariant ratio %s out of range", ErrUnsafeParameter, k0i)
	}

	convLimit := maxInt(maxInt(xj.Quo(pow10(14)), d.Quo(pow10(14))), sdkmath.NewInt(100))

	for iter := 0; iter < c.MaxIter; iter++ {
		yPrev := y

		k0 := k0i.Mul(y).Mul(nInt).Quo(d)
		s := xj.Add(y)

		g1k0 := absDiff(gamma.Add(c.Precision), k0).Add(one)

		mul1 := c.Precision.Mul(d).Quo(gamma).Mul(g1k0).Quo(gamma).Mul(g1k0).Mul(c.AMultiplier).Quo(ann)
		mul2 := c.Precision.Add(c.Precision.MulRaw(2).Mul(k0).Quo(g1k0))

		yfprime := c.Precision.Mul(y).Add(s.Mul(mul2)).Add(mul1)
		dyfprime := d.Mul(mul2)
		if yfprime.LT(dyfprime) {
			y = yPrev.QuoRaw(2)
			continue
		}
		yfprime = yfprime.Sub(dyfprime)
		fprime := yfprime.Quo(y)

		yMinus := mul1.Quo(fprime)
		yPlus := yfprime.Add(c.Precision.Mul(d)).Quo(fprime).Add(yMinus.Mul(c.Precision).Quo(k0))
		yMinus = yMinus.Add(c.Precision.Mul(s).Quo(fprime))

		if yPlus.LT(yMinus) {
			y = yPrev.QuoRaw(2)
		} else {
			y = yPlus.Sub(yMinus)
		}

		if absDiff(y, yPrev).LT(maxInt(convLimit, y.Quo(pow10(14)))) {
			frac := y.Mul(c.Precision).Quo(d)
			if frac.LT(pow10(16)) || frac.GT(pow10(20)) {
				return sdkmath.Int{}, fmt.Errorf("%w: output balance to invariant ratio %s outside [10^16, 10^20]", ErrUnsafeState, frac)
			}
			return y, nil
		}
	}
	return sdkmath.Int{}, fmt.Errorf("%w: cryptoswap y after %d iterations", ErrConvergence, c.MaxIter)
}
