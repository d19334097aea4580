package pool

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curveforge/poolsim/internal/curvemath"
	"github.com/curveforge/poolsim/internal/utils"
)

func newInt(s string) sdkmath.Int {
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		panic("bad test integer: " + s)
	}
	return v
}

// threePool mirrors a live three-coin pool: an 18-decimal coin and two
// 6-decimal coins, rated up to the common basis.
func threePool(t *testing.T, fee int64) *StableSwap {
	t.Helper()
	p, err := NewStableSwap(StableSwapParams{
		Coins: []string{"DAI", "USDC", "USDT"},
		A:     sdkmath.NewInt(2000),
		Fee:   sdkmath.NewInt(fee),
		Rates: []sdkmath.Int{
			pow10(18),
			pow10(30),
			pow10(30),
		},
		Balances: []sdkmath.Int{
			newInt("295949605740077243186725223"),
			newInt("284320067518878"),
			newInt("288200854907854"),
		},
	})
	require.NoError(t, err)
	return p
}

func TestStableSwapConstruction(t *testing.T) {
	p := threePool(t, 4000000)

	assert.Equal(t, 3, p.NumberOfCoins())
	assert.Equal(t, []string{"DAI", "USDC", "USDT"}, p.CoinNames())

	d, err := p.D()
	require.NoError(t, err)
	assert.True(t, d.GT(pow10(26)), "invariant %s", d)

	// LP supply defaults to D, so the starting virtual price is exactly 1.
	vp, err := p.VirtualPrice()
	require.NoError(t, err)
	assert.True(t, vp.Equal(pow10(18)))
}

func TestStableSwapVirtualPriceReference(t *testing.T) {
	// Same live pool state as threePool, with the LP supply the contract
	// reported alongside it. The virtual price must land on the contract's
	// reading, which separates the supply from the invariant itself.
	p, err := NewStableSwap(StableSwapParams{
		Coins: []string{"DAI", "USDC", "USDT"},
		A:     sdkmath.NewInt(2000),
		Fee:   sdkmath.NewInt(4000000),
		Rates: []sdkmath.Int{pow10(18), pow10(30), pow10(30)},
		Balances: []sdkmath.Int{
			newInt("295949605740077243186725223"),
			newInt("284320067518878"),
			newInt("288200854907854"),
		},
		TotalSupply: newInt("849743149250065202008212976"),
	})
	require.NoError(t, err)

	vp, err := p.VirtualPrice()
	require.NoError(t, err)
	diff := vp.Sub(newInt("1022038799187029697")).Abs()
	assert.True(t, diff.LT(pow10(8)), "virtual price %s", vp)
}

func TestStableSwapConstructionRejects(t *testing.T) {
	base := StableSwapParams{
		Coins:    []string{"A", "B"},
		A:        sdkmath.NewInt(100),
		Fee:      sdkmath.NewInt(4000000),
		Rates:    []sdkmath.Int{pow10(18), pow10(18)},
		Balances: []sdkmath.Int{pow10(24), pow10(24)},
	}

	p := base
	p.Coins = []string{"A"}
	_, err := NewStableSwap(p)
	assert.Error(t, err)

	p = base
	p.A = sdkmath.ZeroInt()
	_, err = NewStableSwap(p)
	assert.Error(t, err)

	p = base
	p.Fee = FeeDenominator
	_, err = NewStableSwap(p)
	assert.Error(t, err)

	p = base
	p.Balances = []sdkmath.Int{pow10(24)}
	_, err = NewStableSwap(p)
	assert.Error(t, err)
}

func TestStableSwapTrade(t *testing.T) {
	p := threePool(t, 4000000)
	p.PrepareForTrades(time.Unix(1700000000, 0))

	spot, err := p.Price("DAI", "USDC", true)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, spot, 0.01)

	dx := pow10(21) // 1000 DAI
	res, err := p.Trade("DAI", "USDC", dx)
	require.NoError(t, err)

	assert.True(t, res.Fee.IsPositive())
	assert.True(t, res.AmountOut.IsPositive())

	// Output, fee, and volume all come back on the common basis: the input
	// coin carries an 18-decimal rate, so volume equals the input as is, and
	// the fee is the fee rate's share of the gross output.
	assert.True(t, res.Volume.Equal(dx))
	gross := res.AmountOut.Add(res.Fee)
	feeFrac, err := utils.RatioFloat64(res.Fee, gross)
	require.NoError(t, err)
	assert.InDelta(t, 0.0004, feeFrac, 1e-6)

	// Executed price for a small trade sits at the spot price.
	outF, err := utils.SDKIntToFloat64(res.AmountOut, 18)
	require.NoError(t, err)
	inF, err := utils.SDKIntToFloat64(dx, 18)
	require.NoError(t, err)
	assert.InDelta(t, spot, outF/inF, 0.001)
}

func TestStableSwapPriceAcrossDecimals(t *testing.T) {
	p := threePool(t, 4000000)

	// A near-balanced pool quotes close to par in both directions no matter
	// how the coins' native decimals differ.
	ab, err := p.Price("DAI", "USDC", false)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, ab, 0.01)

	ba, err := p.Price("USDC", "DAI", false)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, ba, 0.01)

	assert.InDelta(t, 1.0, ab*ba, 1e-9)
}

func TestStableSwapTradeErrors(t *testing.T) {
	p := threePool(t, 4000000)

	_, err := p.Trade("DAI", "FRAX", pow10(21))
	assert.ErrorIs(t, err, ErrUnknownCoin)

	_, err = p.Trade("DAI", "DAI", pow10(21))
	assert.ErrorIs(t, err, ErrTradeExecution)

	_, err = p.Trade("DAI", "USDC", sdkmath.ZeroInt())
	assert.ErrorIs(t, err, ErrTradeExecution)
}

func TestStableSwapGetInAmount(t *testing.T) {
	// Zero fee makes the target exact up to rounding.
	p := threePool(t, 0)

	xp0 := p.xp()
	dx, err := p.GetInAmount("DAI", "USDC", 0.5)
	require.NoError(t, err)
	require.True(t, dx.IsPositive())

	_, err = p.Trade("DAI", "USDC", dx)
	require.NoError(t, err)

	xp1 := p.xp()
	target := xp0[1].QuoRaw(2)
	diff := target.Sub(xp1[1]).Abs()
	assert.True(t, diff.Mul(pow10(9)).LT(target),
		"post-trade balance %s vs target %s", xp1[1], target)
}

func TestStableSwapGetInAmountBounds(t *testing.T) {
	p := threePool(t, 4000000)

	_, err := p.GetInAmount("DAI", "USDC", 0)
	assert.ErrorIs(t, err, ErrTradeExecution)
	_, err = p.GetInAmount("DAI", "USDC", 1)
	assert.ErrorIs(t, err, ErrTradeExecution)
}

func TestStableSwapSetParameter(t *testing.T) {
	p := threePool(t, 4000000)

	require.NoError(t, p.SetParameter("A", sdkmath.NewInt(500)))
	require.NoError(t, p.SetParameter("fee", sdkmath.NewInt(1000000)))

	err := p.SetParameter("gamma", pow10(13))
	assert.ErrorIs(t, err, ErrUnsupportedParameter)

	assert.True(t, hasSetter(p.Setters(), "D"))
	assert.False(t, hasSetter(p.Setters(), "gamma"))
}

func TestStableSwapSetD(t *testing.T) {
	p := threePool(t, 4000000)
	target := pow10(27)

	require.NoError(t, p.SetParameter("D", target))

	d, err := p.D()
	require.NoError(t, err)
	diff := d.Sub(target).Abs()
	assert.True(t, diff.Mul(pow10(12)).LT(target), "re-solved D %s vs target %s", d, target)
}

func TestStableSwapCloneIsIndependent(t *testing.T) {
	p := threePool(t, 4000000)
	c := p.Clone().(*StableSwap)

	_, err := c.Trade("DAI", "USDC", pow10(24))
	require.NoError(t, err)

	assert.True(t, p.balances[0].Equal(newInt("295949605740077243186725223")),
		"trading a clone must not move the original")
	assert.False(t, c.balances[0].Equal(p.balances[0]))
}

func TestStableSwapAddRemoveLiquidity(t *testing.T) {
	p := threePool(t, 4000000)
	supply0 := p.totalSupply

	// A balanced-ish deposit mints close to its share of the invariant.
	amounts := []sdkmath.Int{
		p.balances[0].QuoRaw(100),
		p.balances[1].QuoRaw(100),
		p.balances[2].QuoRaw(100),
	}
	minted, err := p.AddLiquidity(amounts)
	require.NoError(t, err)
	expected := supply0.QuoRaw(100)
	diff := minted.Sub(expected).Abs()
	assert.True(t, diff.Mul(sdkmath.NewInt(1000)).LT(expected),
		"minted %s vs expected %s", minted, expected)

	bal0 := p.balances[1]
	dy, err := p.RemoveLiquidityOneCoin(minted, "USDC")
	require.NoError(t, err)
	assert.True(t, dy.IsPositive())
	assert.True(t, p.balances[1].LT(bal0))
	assert.True(t, p.totalSupply.Equal(supply0))
}

func TestStableSwapVirtualPriceGrowsWithFees(t *testing.T) {
	p := threePool(t, 4000000)

	vp0, err := p.VirtualPrice()
	require.NoError(t, err)

	for k := 0; k < 5; k++ {
		_, err := p.Trade("DAI", "USDC", pow10(23))
		require.NoError(t, err)
		_, err = p.Trade("USDC", "DAI", pow10(11))
		require.NoError(t, err)
	}

	vp1, err := p.VirtualPrice()
	require.NoError(t, err)
	assert.True(t, vp1.GT(vp0), "virtual price %s -> %s", vp0, vp1)
}

func TestStableSwapSolverErrorsWrapped(t *testing.T) {
	p := threePool(t, 4000000)

	// Draining the target coin to one percent forces an enormous input but
	// must still classify failures as trade execution errors.
	_, err := p.Trade("DAI", "USDC", sdkmath.NewInt(1))
	if err != nil {
		assert.ErrorIs(t, err, ErrTradeExecution)
		assert.NotErrorIs(t, err, curvemath.ErrUnsafeParameter)
	}
}
