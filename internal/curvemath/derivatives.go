package curvemath

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// PriceDerivatives returns the spot prices of coins 1 and 2 in units of coin 0
// for a three-asset cryptoswap pool, from the partial derivatives of the
// invariant at the current state. Results are in 10^18 fixed-point. The
// operation order matters for bit-exactness and must not be rearranged.
func PriceDerivatives(c Constants, ann, gamma sdkmath.Int, xp []sdkmath.Int, d sdkmath.Int) ([2]sdkmath.Int, error) {
	if len(xp) != 3 {
		return [2]sdkmath.Int{}, fmt.Errorf("%w: price derivatives need exactly three balances", ErrUnsafeParameter)
	}
	if d.LT(pow10(17)) || d.GT(pow10(15).Mul(c.Precision)) {
		return [2]sdkmath.Int{}, fmt.Errorf("%w: invariant %s out of limits", ErrUnsafeParameter, d)
	}

	k0 := sdkmath.NewInt(27).Mul(xp[0]).Mul(xp[1]).Quo(d).Mul(xp[2]).Quo(d).Mul(pow10(36)).Quo(d)
	gk0, nnag2 := priceCommonTerms(c, ann, gamma, k0)

	denominator := gk0.Add(nnag2.Mul(xp[0]).Quo(d).Mul(k0).Quo(pow10(36)))

	pxy := xp[0].Mul(gk0.Add(nnag2.Mul(xp[1]).Quo(d).Mul(k0).Quo(pow10(36)))).Quo(xp[1]).Mul(c.Precision).Quo(denominator)
	pxz := xp[0].Mul(gk0.Add(nnag2.Mul(xp[2]).Quo(d).Mul(k0).Quo(pow10(36)))).Quo(xp[2]).Mul(c.Precision).Quo(denominator)

	return [2]sdkmath.Int{pxy, pxz}, nil
}

// SpotPriceTwoCoin is the two-asset counterpart of PriceDerivatives: the spot
// price of coin 1 in units of coin 0, in 10^18 fixed-point.
func SpotPriceTwoCoin(c Constants, ann, gamma sdkmath.Int, xp []sdkmath.Int, d sdkmath.Int) (sdkmath.Int, error) {
	if len(xp) != 2 {
		return sdkmath.Int{}, fmt.Errorf("%w: two-coin spot price needs exactly two balances", ErrUnsafeParameter)
	}
	if d.LT(pow10(17)) || d.GT(pow10(15).Mul(c.Precision)) {
		return sdkmath.Int{}, fmt.Errorf("%w: invariant %s out of limits", ErrUnsafeParameter, d)
	}

	k0 := sdkmath.NewInt(4).Mul(xp[0]).Mul(xp[1]).Quo(d).Mul(pow10(36)).Quo(d)
	gk0, nnag2 := priceCommonTerms(c, ann, gamma, k0)

	denominator := gk0.Add(nnag2.Mul(xp[0]).Quo(d).Mul(k0).Quo(pow10(36)))
	numerator := xp[0].Mul(gk0.Add(nnag2.Mul(xp[1]).Quo(d).Mul(k0).Quo(pow10(36)))).Quo(xp[1])

	return numerator.Mul(c.Precision).Quo(denominator), nil
}

// priceCommonTerms computes the GK0 polynomial and the A*gamma^2 coefficient
// shared by both price formulas:
//
//	GK0 = 2*K0^3/10^72 + (gamma + 10^18)^2 - K0^2/10^36 * (2*gamma + 3*10^18)/10^18
func priceCommonTerms(c Constants, ann, gamma, k0 sdkmath.Int) (sdkmath.Int, sdkmath.Int) {
	gammaPlus := gamma.Add(c.Precision)
	k0Sq := k0.Mul(k0)

	gk0 := k0Sq.MulRaw(2).Quo(pow10(36)).Mul(k0).Quo(pow10(36)).
		Add(gammaPlus.Mul(gammaPlus)).
		Sub(k0Sq.Quo(pow10(36)).Mul(gamma.MulRaw(2).Add(c.Precision.MulRaw(3))).Quo(c.Precision))

	nnag2 := ann.Mul(gamma).Mul(gamma).Quo(c.AMultiplier)
	return gk0, nnag2
}
