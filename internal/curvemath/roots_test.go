package curvemath

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeometricMean(t *testing.T) {
	c := DefaultConstants()

	t.Run("equal values", func(t *testing.T) {
		x := pow10(24)
		gm, err := GeometricMean(c, []sdkmath.Int{x, x, x}, false)
		require.NoError(t, err)
		requireClose(t, x, gm, 15)
	})

	t.Run("order independent", func(t *testing.T) {
		a := pow10(24)
		b := pow10(24).MulRaw(3)
		d := pow10(23).MulRaw(7)

		gm1, err := GeometricMean(c, []sdkmath.Int{a, b, d}, false)
		require.NoError(t, err)
		gm2, err := GeometricMean(c, []sdkmath.Int{d, a, b}, true)
		require.NoError(t, err)
		requireClose(t, gm1, gm2, 12)
	})

	t.Run("two values", func(t *testing.T) {
		// gm(4e24, 1e24) = 2e24
		gm, err := GeometricMean(c, []sdkmath.Int{pow10(24).MulRaw(4), pow10(24)}, true)
		require.NoError(t, err)
		requireClose(t, pow10(24).MulRaw(2), gm, 12)
	})

	t.Run("rejects zero", func(t *testing.T) {
		_, err := GeometricMean(c, []sdkmath.Int{pow10(24), sdkmath.ZeroInt()}, false)
		assert.ErrorIs(t, err, ErrUnsafeParameter)
	})
}

func TestLog2(t *testing.T) {
	one := sdkmath.OneInt()

	for k := 0; k <= 255; k++ {
		p := intPow(2, k)
		assert.Equal(t, k, Log2(p, false), "floor log2 of 2^%d", k)
		assert.Equal(t, k, Log2(p, true), "ceil log2 of 2^%d", k)
	}

	assert.Equal(t, 1, Log2(sdkmath.NewInt(3), false))
	assert.Equal(t, 2, Log2(sdkmath.NewInt(3), true))
	assert.Equal(t, 2, Log2(intPow(2, 2).Add(one), false))
	assert.Equal(t, 3, Log2(intPow(2, 2).Add(one), true))
	assert.Equal(t, 0, Log2(sdkmath.ZeroInt(), false))
}

func TestCbrt(t *testing.T) {
	c := DefaultConstants()

	tests := []struct {
		name string
		in   sdkmath.Int
		want sdkmath.Int
	}{
		{"cbrt(8) = 2", pow10(18).MulRaw(8), pow10(18).MulRaw(2)},
		{"cbrt(27) = 3", pow10(18).MulRaw(27), pow10(18).MulRaw(3)},
		{"cbrt(10^6) = 100", pow10(24), pow10(20)},
		{"cbrt(27*10^18) = 3*10^6", pow10(36).MulRaw(27), pow10(24).MulRaw(3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cbrt(c, tt.in)
			requireClose(t, tt.want, got, 15)
		})
	}

	t.Run("round trip", func(t *testing.T) {
		// For a = v*10^18, a*a/10^18*a/10^18 = v^3*10^18 and the cube root
		// recovers a.
		a := newInt("123456789123456789123")
		cube := a.Mul(a).Quo(pow10(18)).Mul(a).Quo(pow10(18))
		requireClose(t, a, Cbrt(c, cube), 12)
	})

	t.Run("zero", func(t *testing.T) {
		assert.True(t, Cbrt(c, sdkmath.ZeroInt()).IsZero())
	})
}

func TestHalfPow(t *testing.T) {
	c := DefaultConstants()

	t.Run("integer exponents", func(t *testing.T) {
		got, err := HalfPow(c, sdkmath.ZeroInt())
		require.NoError(t, err)
		assert.True(t, got.Equal(pow10(18)))

		got, err = HalfPow(c, pow10(18))
		require.NoError(t, err)
		assert.True(t, got.Equal(pow10(17).MulRaw(5)))

		got, err = HalfPow(c, pow10(18).MulRaw(3))
		require.NoError(t, err)
		assert.True(t, got.Equal(pow10(18).QuoRaw(8)))
	})

	t.Run("large exponent underflows to zero", func(t *testing.T) {
		got, err := HalfPow(c, pow10(18).MulRaw(60))
		require.NoError(t, err)
		assert.True(t, got.IsZero())
	})

	t.Run("fractional exponent", func(t *testing.T) {
		// 0.5^0.5 = 0.707106781186547524...
		got, err := HalfPow(c, pow10(17).MulRaw(5))
		require.NoError(t, err)
		want := newInt("707106781186547524")
		diff := absDiff(want, got)
		assert.True(t, diff.LT(pow10(11)), "got %s, diff %s", got, diff)
	})

	t.Run("monotonic", func(t *testing.T) {
		prev := pow10(18).AddRaw(1)
		for i := int64(1); i <= 10; i++ {
			got, err := HalfPow(c, pow10(17).MulRaw(i))
			require.NoError(t, err)
			assert.True(t, got.LT(prev), "half-power must decrease with the exponent")
			prev = got
		}
	})
}

func TestReductionCoefficient(t *testing.T) {
	c := DefaultConstants()
	feeGamma := sdkmath.NewInt(89560000000000000)

	t.Run("balanced pool", func(t *testing.T) {
		x := pow10(24)
		k, err := ReductionCoefficient(c, []sdkmath.Int{x, x}, feeGamma)
		require.NoError(t, err)
		assert.True(t, k.Equal(pow10(18)))
	})

	t.Run("imbalance reduces the coefficient", func(t *testing.T) {
		k, err := ReductionCoefficient(c, []sdkmath.Int{pow10(24).MulRaw(3), pow10(24)}, feeGamma)
		require.NoError(t, err)
		assert.True(t, k.LT(pow10(18)))
		assert.True(t, k.IsPositive())
	})

	t.Run("zero fee gamma returns raw balance ratio", func(t *testing.T) {
		x := pow10(24)
		k, err := ReductionCoefficient(c, []sdkmath.Int{x, x.MulRaw(2)}, sdkmath.ZeroInt())
		require.NoError(t, err)
		// K = 2*x/S * 2*2x/S = 8/9 in 10^18 terms.
		requireClose(t, pow10(18).MulRaw(8).QuoRaw(9), k, 15)
	})

	t.Run("zero sum rejected", func(t *testing.T) {
		_, err := ReductionCoefficient(c, []sdkmath.Int{sdkmath.ZeroInt(), sdkmath.ZeroInt()}, feeGamma)
		assert.ErrorIs(t, err, ErrUnsafeParameter)
	})
}

func TestPriceDerivatives(t *testing.T) {
	c := DefaultConstants()
	gamma := sdkmath.NewInt(11809167828997)
	ann := sdkmath.NewInt(1707629)

	t.Run("balanced pool prices at parity", func(t *testing.T) {
		x := pow10(24)
		xp := []sdkmath.Int{x, x, x}
		d, err := SolveInvariant(c, ann, &gamma, xp, sdkmath.ZeroInt())
		require.NoError(t, err)

		prices, err := PriceDerivatives(c, ann, gamma, xp, d)
		require.NoError(t, err)
		requireClose(t, pow10(18), prices[0], 9)
		requireClose(t, pow10(18), prices[1], 9)
	})

	t.Run("scarcer coin prices higher", func(t *testing.T) {
		xp := []sdkmath.Int{pow10(24), pow10(23).MulRaw(9), pow10(24)}
		d, err := SolveInvariant(c, ann, &gamma, xp, sdkmath.ZeroInt())
		require.NoError(t, err)

		prices, err := PriceDerivatives(c, ann, gamma, xp, d)
		require.NoError(t, err)
		assert.True(t, prices[0].GT(pow10(18)), "coin 1 is scarce, price %s", prices[0])
		assert.True(t, prices[1].LT(prices[0]))
	})

	t.Run("wrong arity rejected", func(t *testing.T) {
		_, err := PriceDerivatives(c, ann, gamma, []sdkmath.Int{pow10(24), pow10(24)}, pow10(24).MulRaw(2))
		assert.ErrorIs(t, err, ErrUnsafeParameter)
	})
}

func TestSpotPriceTwoCoin(t *testing.T) {
	c := DefaultConstants()
	gamma := sdkmath.NewInt(25000000000000)
	ann := sdkmath.NewInt(4000000)

	t.Run("balanced pool prices at parity", func(t *testing.T) {
		x := pow10(24)
		xp := []sdkmath.Int{x, x}
		d, err := SolveInvariant(c, ann, &gamma, xp, sdkmath.ZeroInt())
		require.NoError(t, err)

		p, err := SpotPriceTwoCoin(c, ann, gamma, xp, d)
		require.NoError(t, err)
		requireClose(t, pow10(18), p, 9)
	})

	t.Run("price moves against the scarcer coin", func(t *testing.T) {
		xp := []sdkmath.Int{pow10(24), pow10(23).MulRaw(8)}
		d, err := SolveInvariant(c, ann, &gamma, xp, sdkmath.ZeroInt())
		require.NoError(t, err)

		p, err := SpotPriceTwoCoin(c, ann, gamma, xp, d)
		require.NoError(t, err)
		assert.True(t, p.GT(pow10(18)), "coin 1 is scarce, price %s", p)
	})
}
