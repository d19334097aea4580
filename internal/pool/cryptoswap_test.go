package pool

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curveforge/poolsim/internal/curvemath"
)

// liquidStakingPool mirrors a deployed liquid-staking pair: both coins at 18
// decimals, parameters from the live contract.
func liquidStakingPool(t *testing.T) *CryptoSwap {
	t.Helper()
	p, err := NewCryptoSwap(CryptoSwapParams{
		Coins:              []string{"stMATIC", "WMATIC"},
		Precisions:         []sdkmath.Int{sdkmath.OneInt(), sdkmath.OneInt()},
		A:                  sdkmath.NewInt(4000000),
		Gamma:              sdkmath.NewInt(25000000000000),
		MidFee:             sdkmath.NewInt(1542000),
		OutFee:             sdkmath.NewInt(298650000),
		FeeGamma:           sdkmath.NewInt(89560000000000000),
		AllowedExtraProfit: sdkmath.NewInt(2500000000000),
		AdjustmentStep:     sdkmath.NewInt(146000000000000),
		MAHalfTime:         sdkmath.NewInt(600),
		InitialPrice:       pow10(18),
		Balances:           []sdkmath.Int{pow10(24).MulRaw(2), pow10(24).MulRaw(2)},
	})
	require.NoError(t, err)
	return p
}

func TestCryptoSwapConstruction(t *testing.T) {
	p := liquidStakingPool(t)

	assert.Equal(t, 2, p.NumberOfCoins())
	assert.Equal(t, []string{"stMATIC", "WMATIC"}, p.CoinNames())

	// Balanced pool at parity: D is the balance sum, virtual price starts
	// at 1, no profit accrued yet.
	diff := p.d.Sub(pow10(24).MulRaw(4)).Abs()
	assert.True(t, diff.Mul(pow10(12)).LT(p.d))
	assert.True(t, p.VirtualPrice().Equal(pow10(18)))
	assert.True(t, p.XcpProfit().Equal(pow10(18)))
}

func TestCryptoSwapConstructionRejects(t *testing.T) {
	base := CryptoSwapParams{
		Coins:        []string{"A", "B"},
		Precisions:   []sdkmath.Int{sdkmath.OneInt(), sdkmath.OneInt()},
		A:            sdkmath.NewInt(4000000),
		Gamma:        sdkmath.NewInt(25000000000000),
		MidFee:       sdkmath.NewInt(1542000),
		OutFee:       sdkmath.NewInt(298650000),
		FeeGamma:     sdkmath.NewInt(89560000000000000),
		MAHalfTime:   sdkmath.NewInt(600),
		InitialPrice: pow10(18),
		Balances:     []sdkmath.Int{pow10(24), pow10(24)},
	}

	p := base
	p.A = sdkmath.NewInt(100) // below the solver's lower bound
	_, err := NewCryptoSwap(p)
	assert.ErrorIs(t, err, curvemath.ErrUnsafeParameter)

	p = base
	p.Gamma = sdkmath.NewInt(1)
	_, err = NewCryptoSwap(p)
	assert.ErrorIs(t, err, curvemath.ErrUnsafeParameter)

	p = base
	p.InitialPrice = sdkmath.ZeroInt()
	_, err = NewCryptoSwap(p)
	assert.ErrorIs(t, err, ErrUnsupportedParameter)

	p = base
	p.OutFee = FeeDenominator
	_, err = NewCryptoSwap(p)
	assert.ErrorIs(t, err, ErrUnsupportedParameter)
}

func TestCryptoSwapPriceAtParity(t *testing.T) {
	p := liquidStakingPool(t)

	spot, err := p.Price("stMATIC", "WMATIC", false)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, spot, 1e-6)

	// With the pool balanced the dynamic fee sits at midFee.
	withFee, err := p.Price("stMATIC", "WMATIC", true)
	require.NoError(t, err)
	assert.InDelta(t, 1.0-1542000.0/1e10, withFee, 1e-6)

	inverse, err := p.Price("WMATIC", "stMATIC", false)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, spot*inverse, 1e-9)
}

func TestCryptoSwapTrade(t *testing.T) {
	p := liquidStakingPool(t)
	p.PrepareForTrades(time.Unix(1700000000, 0))

	dx := pow10(21).MulRaw(5) // 5000 stMATIC into a 2M pool
	res, err := p.Trade("stMATIC", "WMATIC", dx)
	require.NoError(t, err)

	assert.True(t, res.AmountOut.IsPositive())
	assert.True(t, res.AmountOut.LT(dx), "fee and slippage must bite")
	assert.True(t, res.Fee.IsPositive())

	// WMATIC became scarcer, so its price in stMATIC rises.
	assert.True(t, p.lastPrice.GT(pow10(18)), "last price %s", p.lastPrice)

	// Fees accrue to the profit counter.
	assert.True(t, p.XcpProfit().GTE(pow10(18)))
	assert.True(t, p.VirtualPrice().GT(pow10(18)))
}

func TestCryptoSwapGetInAmount(t *testing.T) {
	p := liquidStakingPool(t)
	p.PrepareForTrades(time.Unix(1700000000, 0))

	xp0 := p.xp()
	dx, err := p.GetInAmount("stMATIC", "WMATIC", 0.8)
	require.NoError(t, err)
	require.True(t, dx.IsPositive())

	_, err = p.Trade("stMATIC", "WMATIC", dx)
	require.NoError(t, err)

	// The fee stays in the pool, so the post-trade balance lands at or just
	// above the target.
	xp1 := p.xp()
	target := xp0[1].MulRaw(8).QuoRaw(10)
	assert.True(t, xp1[1].GTE(target.Sub(pow10(18))), "balance %s below target %s", xp1[1], target)
	overshoot := xp1[1].Sub(target)
	assert.True(t, overshoot.Mul(sdkmath.NewInt(100)).LT(target),
		"balance %s overshoots target %s", xp1[1], target)
}

func TestCryptoSwapOracleFollowsTrades(t *testing.T) {
	p := liquidStakingPool(t)
	start := time.Unix(1700000000, 0)

	p.PrepareForTrades(start)
	_, err := p.Trade("stMATIC", "WMATIC", pow10(22))
	require.NoError(t, err)
	assert.True(t, p.priceOracle.Equal(pow10(18)), "oracle must lag within the same tick")

	// One hour later the EMA has pulled toward the traded price.
	p.PrepareForTrades(start.Add(time.Hour))
	_, err = p.Trade("stMATIC", "WMATIC", pow10(22))
	require.NoError(t, err)
	assert.True(t, p.priceOracle.GT(pow10(18)), "oracle %s", p.priceOracle)
	assert.True(t, p.priceOracle.LTE(p.lastPrice))
}

func TestCryptoSwapSetParameter(t *testing.T) {
	p := liquidStakingPool(t)

	d0 := p.d
	require.NoError(t, p.SetParameter("A", sdkmath.NewInt(4850000)))
	assert.True(t, p.a.Equal(sdkmath.NewInt(4850000)))
	diff := p.d.Sub(d0).Abs()
	assert.True(t, diff.Mul(sdkmath.NewInt(1000)).LT(d0), "balanced pool D barely moves with A")

	require.NoError(t, p.SetParameter("mid_fee", sdkmath.NewInt(6541100)))
	require.NoError(t, p.SetParameter("fee_gamma", sdkmath.NewInt(50000000000000000)))

	err := p.SetParameter("A", sdkmath.NewInt(1))
	assert.ErrorIs(t, err, curvemath.ErrUnsafeParameter)

	err = p.SetParameter("base_fee", sdkmath.NewInt(1))
	assert.ErrorIs(t, err, ErrUnsupportedParameter)
}

func TestCryptoSwapSetD(t *testing.T) {
	p := liquidStakingPool(t)
	target := pow10(24).MulRaw(8)

	require.NoError(t, p.SetParameter("D", target))
	assert.True(t, p.balances[0].Equal(target.QuoRaw(2)))

	d, err := curvemath.SolveInvariant(p.constants, p.a, &p.gamma, p.xp(), sdkmath.ZeroInt())
	require.NoError(t, err)
	diff := d.Sub(target).Abs()
	assert.True(t, diff.Mul(pow10(12)).LT(target))
}

func TestCryptoSwapCloneIsIndependent(t *testing.T) {
	p := liquidStakingPool(t)
	p.PrepareForTrades(time.Unix(1700000000, 0))

	c := p.Clone().(*CryptoSwap)
	_, err := c.Trade("stMATIC", "WMATIC", pow10(23))
	require.NoError(t, err)

	assert.True(t, p.balances[1].Equal(pow10(24).MulRaw(2)))
	assert.False(t, c.balances[1].Equal(p.balances[1]))
	assert.True(t, p.lastPrice.Equal(pow10(18)))
}

func TestCryptoSwapSnapshot(t *testing.T) {
	p := liquidStakingPool(t)
	snap := p.Snapshot()

	assert.Equal(t, "cryptoswap", snap.Family)
	assert.Equal(t, []string{"stMATIC", "WMATIC"}, snap.Coins)
	assert.True(t, snap.PriceScale.Equal(pow10(18)))
	assert.Nil(t, snap.Base)
}
