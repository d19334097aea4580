package pool

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/curveforge/poolsim/internal/curvemath"
	"github.com/curveforge/poolsim/internal/utils"
)

// CryptoSwap models a two-coin pool with an internal price scale that repegs
// toward an exponential moving average of traded prices. The second coin is
// quoted against the first; priceScale and priceOracle are 10^18 fixed-point
// prices of coin 1 in units of coin 0.
type CryptoSwap struct {
	constants curvemath.Constants

	coins      []string
	precisions []sdkmath.Int // raw balance -> 10^18 basis multipliers

	a     sdkmath.Int // A*n^n*AMultiplier convention
	gamma sdkmath.Int

	midFee             sdkmath.Int
	outFee             sdkmath.Int
	feeGamma           sdkmath.Int
	allowedExtraProfit sdkmath.Int
	adjustmentStep     sdkmath.Int
	maHalfTime         sdkmath.Int // seconds

	priceScale  sdkmath.Int
	priceOracle sdkmath.Int
	lastPrice   sdkmath.Int

	balances    []sdkmath.Int
	d           sdkmath.Int
	totalSupply sdkmath.Int

	xcpProfit    sdkmath.Int
	virtualPrice sdkmath.Int

	tickTime      time.Time
	lastPriceTime time.Time
}

// CryptoSwapParams configures NewCryptoSwap. A uses the contract's
// A*n^n*10^4 convention; fees are out of FeeDenominator. InitialPrice seeds
// priceScale, priceOracle, and lastPrice.
type CryptoSwapParams struct {
	Coins              []string
	Precisions         []sdkmath.Int
	A                  sdkmath.Int
	Gamma              sdkmath.Int
	MidFee             sdkmath.Int
	OutFee             sdkmath.Int
	FeeGamma           sdkmath.Int
	AllowedExtraProfit sdkmath.Int
	AdjustmentStep     sdkmath.Int
	MAHalfTime         sdkmath.Int
	InitialPrice       sdkmath.Int
	Balances           []sdkmath.Int
	TotalSupply        sdkmath.Int
}

func NewCryptoSwap(p CryptoSwapParams) (*CryptoSwap, error) {
	if len(p.Coins) != 2 || len(p.Balances) != 2 || len(p.Precisions) != 2 {
		return nil, fmt.Errorf("%w: cryptoswap pools hold exactly two coins", ErrUnsupportedParameter)
	}
	if p.InitialPrice.IsNil() || !p.InitialPrice.IsPositive() {
		return nil, fmt.Errorf("%w: initial price must be positive", ErrUnsupportedParameter)
	}
	for _, f := range []sdkmath.Int{p.MidFee, p.OutFee} {
		if f.IsNil() || f.IsNegative() || f.GTE(FeeDenominator) {
			return nil, fmt.Errorf("%w: fee must be in [0, %s)", ErrUnsupportedParameter, FeeDenominator)
		}
	}

	c := &CryptoSwap{
		constants:          curvemath.DefaultConstants(),
		coins:              copyStrings(p.Coins),
		precisions:         copyInts(p.Precisions),
		a:                  p.A,
		gamma:              p.Gamma,
		midFee:             p.MidFee,
		outFee:             p.OutFee,
		feeGamma:           p.FeeGamma,
		allowedExtraProfit: p.AllowedExtraProfit,
		adjustmentStep:     p.AdjustmentStep,
		maHalfTime:         p.MAHalfTime,
		priceScale:         p.InitialPrice,
		priceOracle:        p.InitialPrice,
		lastPrice:          p.InitialPrice,
		balances:           copyInts(p.Balances),
		xcpProfit:          curvemath.DefaultConstants().Precision,
	}
	if c.adjustmentStep.IsNil() || c.adjustmentStep.IsZero() {
		// Contract default: min step of 0.0000001 in 10^18 terms.
		c.adjustmentStep = pow10(11)
	}
	if c.maHalfTime.IsNil() || c.maHalfTime.IsZero() {
		c.maHalfTime = sdkmath.NewInt(600)
	}

	// The solve doubles as parameter validation: A, gamma, and balance
	// ratios are bounds-checked before iterating.
	d, err := curvemath.SolveInvariant(c.constants, c.a, &c.gamma, c.xp(), sdkmath.ZeroInt())
	if err != nil {
		return nil, err
	}
	c.d = d

	if !p.TotalSupply.IsNil() && p.TotalSupply.IsPositive() {
		c.totalSupply = p.TotalSupply
	} else {
		xcp, err := c.xcpAt(d, c.priceScale)
		if err != nil {
			return nil, err
		}
		c.totalSupply = xcp
	}
	if !c.totalSupply.IsPositive() {
		return nil, fmt.Errorf("%w: zero LP supply", ErrUnsupportedParameter)
	}
	xcp, err := c.xcpAt(c.d, c.priceScale)
	if err != nil {
		return nil, err
	}
	c.virtualPrice = c.constants.Precision.Mul(xcp).Quo(c.totalSupply)
	return c, nil
}

func pow10(n int) sdkmath.Int {
	return sdkmath.NewIntWithDecimal(1, n)
}

// xp returns the balances on the common 10^18 basis, with coin 1 converted
// through the price scale.
func (c *CryptoSwap) xp() []sdkmath.Int {
	return []sdkmath.Int{
		c.balances[0].Mul(c.precisions[0]),
		c.balances[1].Mul(c.precisions[1]).Mul(c.priceScale).Quo(c.constants.Precision),
	}
}

// xcpAt is the constant-product benchmark value of the pool at invariant d
// and price scale ps.
func (c *CryptoSwap) xcpAt(d, ps sdkmath.Int) (sdkmath.Int, error) {
	xp := []sdkmath.Int{
		d.QuoRaw(2),
		d.Mul(c.constants.Precision).Quo(ps.MulRaw(2)),
	}
	return curvemath.GeometricMean(c.constants, xp, true)
}

// dynamicFee interpolates between midFee and outFee by pool imbalance.
func (c *CryptoSwap) dynamicFee(xp []sdkmath.Int) (sdkmath.Int, error) {
	f, err := curvemath.ReductionCoefficient(c.constants, xp, c.feeGamma)
	if err != nil {
		return sdkmath.Int{}, err
	}
	one := c.constants.Precision
	return c.midFee.Mul(f).Add(c.outFee.Mul(one.Sub(f))).Quo(one), nil
}

func (c *CryptoSwap) PrepareForTrades(ts time.Time) {
	c.tickTime = ts
	if c.lastPriceTime.IsZero() {
		c.lastPriceTime = ts
	}
}

func (c *CryptoSwap) NumberOfCoins() int { return 2 }

func (c *CryptoSwap) CoinNames() []string { return copyStrings(c.coins) }

// Price returns the marginal rate dy/dx per display unit for swapping coinIn
// into coinOut.
func (c *CryptoSwap) Price(coinIn, coinOut string, useFee bool) (float64, error) {
	i, err := coinIndex(c.coins, coinIn)
	if err != nil {
		return 0, err
	}
	j, err := coinIndex(c.coins, coinOut)
	if err != nil {
		return 0, err
	}
	if i == j {
		return 0, fmt.Errorf("%w: price of %q against itself", ErrUnknownCoin, coinIn)
	}

	xp := c.xp()
	p, err := curvemath.SpotPriceTwoCoin(c.constants, c.a, c.gamma, xp, c.d)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTradeExecution, err)
	}

	// p is coin 1 quoted in coin 0 on the virtual basis; the precisions are
	// already folded into xp. Unwind the price scale to get back to display
	// units of the requested pair.
	var price float64
	if i == 0 {
		price, err = utils.RatioFloat64(c.constants.Precision.Mul(c.constants.Precision),
			p.Mul(c.priceScale))
	} else {
		price, err = utils.RatioFloat64(p.Mul(c.priceScale),
			c.constants.Precision.Mul(c.constants.Precision))
	}
	if err != nil {
		return 0, err
	}

	if useFee {
		fee, err := c.dynamicFee(xp)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrTradeExecution, err)
		}
		feeF, err := utils.RatioFloat64(fee, FeeDenominator)
		if err != nil {
			return 0, err
		}
		price *= 1 - feeF
	}
	return price, nil
}

// Trade swaps amountIn of coinIn for coinOut, charging the dynamic fee,
// re-solving the invariant, and repegging the price scale when profitable.
func (c *CryptoSwap) Trade(coinIn, coinOut string, amountIn sdkmath.Int) (TradeResult, error) {
	i, err := coinIndex(c.coins, coinIn)
	if err != nil {
		return TradeResult{}, err
	}
	j, err := coinIndex(c.coins, coinOut)
	if err != nil {
		return TradeResult{}, err
	}
	if i == j || amountIn.IsNil() || !amountIn.IsPositive() {
		return TradeResult{}, fmt.Errorf("%w: invalid trade %s %s -> %s", ErrTradeExecution, amountIn, coinIn, coinOut)
	}

	xp := c.xp()
	xp[i] = xp[i].Add(c.toVirtual(i, amountIn))

	y, err := curvemath.SolveCryptoY(c.constants, c.a, c.gamma, xp, c.d, j)
	if err != nil {
		return TradeResult{}, fmt.Errorf("%w: %w", ErrTradeExecution, err)
	}
	dyXp := xp[j].Sub(y).Sub(sdkmath.OneInt())
	if !dyXp.IsPositive() {
		return TradeResult{}, fmt.Errorf("%w: trade of %s too small to price", ErrTradeExecution, amountIn)
	}
	xp[j] = y

	fee, err := c.dynamicFee(xp)
	if err != nil {
		return TradeResult{}, fmt.Errorf("%w: %w", ErrTradeExecution, err)
	}
	feeXp := dyXp.Mul(fee).Quo(FeeDenominator)
	dyNetXp := dyXp.Sub(feeXp)
	if !dyNetXp.IsPositive() {
		return TradeResult{}, fmt.Errorf("%w: output rounds to zero", ErrTradeExecution)
	}

	dyRaw := c.fromVirtual(j, dyNetXp)
	if !dyRaw.IsPositive() {
		return TradeResult{}, fmt.Errorf("%w: output rounds to zero", ErrTradeExecution)
	}

	c.balances[i] = c.balances[i].Add(amountIn)
	c.balances[j] = c.balances[j].Sub(dyRaw)

	// The fee stays in the pool; re-solve the invariant on the post-fee
	// balances before repegging.
	xpFinal := c.xp()
	dNew, err := curvemath.SolveInvariant(c.constants, c.a, &c.gamma, xpFinal, sdkmath.ZeroInt())
	if err != nil {
		return TradeResult{}, fmt.Errorf("%w: %w", ErrTradeExecution, err)
	}

	p, err := curvemath.SpotPriceTwoCoin(c.constants, c.a, c.gamma, xpFinal, dNew)
	if err != nil {
		return TradeResult{}, fmt.Errorf("%w: %w", ErrTradeExecution, err)
	}
	if err := c.tweakPrice(xpFinal, p, dNew); err != nil {
		return TradeResult{}, fmt.Errorf("%w: %w", ErrTradeExecution, err)
	}

	var volume sdkmath.Int
	if i == 0 {
		volume = amountIn.Mul(c.precisions[0])
	} else {
		volume = c.toVirtual(1, amountIn)
	}
	return TradeResult{
		AmountIn:  amountIn,
		AmountOut: dyNetXp,
		Fee:       feeXp,
		Volume:    volume,
	}, nil
}

// toVirtual converts a native amount of coin idx to the 10^18 price-scaled
// basis; fromVirtual is its truncating inverse.
func (c *CryptoSwap) toVirtual(idx int, amount sdkmath.Int) sdkmath.Int {
	if idx == 0 {
		return amount.Mul(c.precisions[0])
	}
	return amount.Mul(c.precisions[1]).Mul(c.priceScale).Quo(c.constants.Precision)
}

func (c *CryptoSwap) fromVirtual(idx int, amount sdkmath.Int) sdkmath.Int {
	if idx == 0 {
		return amount.Quo(c.precisions[0])
	}
	return amount.Mul(c.constants.Precision).Quo(c.priceScale).Quo(c.precisions[1])
}

// tweakPrice folds the traded price into the oracle EMA, rolls the profit
// counters forward, and moves the price scale toward the oracle when the
// accumulated profit allows it.
func (c *CryptoSwap) tweakPrice(xp []sdkmath.Int, p, dNew sdkmath.Int) error {
	one := c.constants.Precision

	if c.tickTime.After(c.lastPriceTime) {
		dt := sdkmath.NewInt(int64(c.tickTime.Sub(c.lastPriceTime) / time.Second))
		alpha, err := curvemath.HalfPow(c.constants, dt.Mul(one).Quo(c.maHalfTime))
		if err != nil {
			return err
		}
		c.priceOracle = c.lastPrice.Mul(one.Sub(alpha)).Add(c.priceOracle.Mul(alpha)).Quo(one)
		c.lastPriceTime = c.tickTime
	}
	c.lastPrice = p

	xcp, err := c.xcpAt(dNew, c.priceScale)
	if err != nil {
		return err
	}
	vpNew := one.Mul(xcp).Quo(c.totalSupply)
	if c.virtualPrice.IsPositive() {
		c.xcpProfit = c.xcpProfit.Mul(vpNew).Quo(c.virtualPrice)
	}

	norm := c.priceOracle.Mul(one).Quo(c.priceScale)
	if norm.GT(one) {
		norm = norm.Sub(one)
	} else {
		norm = one.Sub(norm)
	}

	if norm.GT(c.adjustmentStep) &&
		vpNew.MulRaw(2).Sub(one).GT(c.xcpProfit.Add(c.allowedExtraProfit.MulRaw(2))) {

		pNew := c.priceScale.Mul(norm.Sub(c.adjustmentStep)).Add(c.adjustmentStep.Mul(c.priceOracle)).Quo(norm)

		xpAdj := []sdkmath.Int{xp[0], xp[1].Mul(pNew).Quo(c.priceScale)}
		dAdj, err := curvemath.SolveInvariant(c.constants, c.a, &c.gamma, xpAdj, sdkmath.ZeroInt())
		if err == nil {
			xcpAdj, xerr := c.xcpAt(dAdj, pNew)
			if xerr == nil {
				vpAdj := one.Mul(xcpAdj).Quo(c.totalSupply)
				if vpAdj.MulRaw(2).Sub(one).GT(c.xcpProfit) {
					c.priceScale = pNew
					c.d = dAdj
					c.virtualPrice = vpAdj
					return nil
				}
			}
		}
		// An unprofitable or unsolvable repeg falls through and keeps the
		// current scale.
	}

	c.d = dNew
	c.virtualPrice = vpNew
	return nil
}

// GetInAmount returns the input of coinIn that leaves coinOut's virtual
// balance at outBalancePerc of its current value.
func (c *CryptoSwap) GetInAmount(coinIn, coinOut string, outBalancePerc float64) (sdkmath.Int, error) {
	i, err := coinIndex(c.coins, coinIn)
	if err != nil {
		return sdkmath.Int{}, err
	}
	j, err := coinIndex(c.coins, coinOut)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if i == j || outBalancePerc <= 0 || outBalancePerc >= 1 {
		return sdkmath.Int{}, fmt.Errorf("%w: out balance fraction %f outside (0, 1)", ErrTradeExecution, outBalancePerc)
	}

	perc, err := utils.Float64ToSDKInt(outBalancePerc, 18)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: %w", ErrTradeExecution, err)
	}

	xp := c.xp()
	target := copyInts(xp)
	target[j] = xp[j].Mul(perc).Quo(c.constants.Precision)

	x, err := curvemath.SolveCryptoY(c.constants, c.a, c.gamma, target, c.d, i)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: %w", ErrTradeExecution, err)
	}
	dxXp := x.Sub(xp[i])
	if !dxXp.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	if i == 0 {
		return dxXp.Quo(c.precisions[0]), nil
	}
	return dxXp.Mul(c.constants.Precision).Quo(c.priceScale).Quo(c.precisions[1]), nil
}

// Setters lists the sweepable parameters of a cryptoswap pool.
func (c *CryptoSwap) Setters() []string {
	return []string{
		"A", "gamma", "D",
		"mid_fee", "out_fee", "fee_gamma",
		"allowed_extra_profit", "adjustment_step", "ma_half_time",
	}
}

// SetParameter applies a sweep value. Setting A or gamma re-solves the
// invariant at the current balances so the solver's bounds checks run
// immediately; setting D rebalances the pool evenly at the price scale.
func (c *CryptoSwap) SetParameter(name string, value sdkmath.Int) error {
	if value.IsNil() || value.IsNegative() {
		return fmt.Errorf("%w: %q must be non-negative", ErrUnsupportedParameter, name)
	}
	switch name {
	case "A":
		d, err := curvemath.SolveInvariant(c.constants, value, &c.gamma, c.xp(), sdkmath.ZeroInt())
		if err != nil {
			return err
		}
		c.a = value
		c.d = d
	case "gamma":
		d, err := curvemath.SolveInvariant(c.constants, c.a, &value, c.xp(), sdkmath.ZeroInt())
		if err != nil {
			return err
		}
		c.gamma = value
		c.d = d
	case "D":
		c.balances[0] = value.QuoRaw(2).Quo(c.precisions[0])
		c.balances[1] = value.Mul(c.constants.Precision).Quo(c.priceScale.MulRaw(2)).Quo(c.precisions[1])
		c.d = value
	case "mid_fee":
		c.midFee = value
	case "out_fee":
		c.outFee = value
	case "fee_gamma":
		c.feeGamma = value
	case "allowed_extra_profit":
		c.allowedExtraProfit = value
	case "adjustment_step":
		c.adjustmentStep = value
	case "ma_half_time":
		if !value.IsPositive() {
			return fmt.Errorf("%w: ma_half_time must be positive", ErrUnsupportedParameter)
		}
		c.maHalfTime = value
	default:
		return fmt.Errorf("%w: %q for cryptoswap", ErrUnsupportedParameter, name)
	}
	return nil
}

func (c *CryptoSwap) Clone() SimPool {
	dup := *c
	dup.coins = copyStrings(c.coins)
	dup.precisions = copyInts(c.precisions)
	dup.balances = copyInts(c.balances)
	return &dup
}

func (c *CryptoSwap) Snapshot() Snapshot {
	return Snapshot{
		Family:      "cryptoswap",
		Coins:       c.CoinNames(),
		Balances:    copyInts(c.balances),
		D:           c.d,
		PriceScale:  c.priceScale,
		PriceOracle: c.priceOracle,
	}
}

// VirtualPrice returns the pool's tracked virtual price.
func (c *CryptoSwap) VirtualPrice() sdkmath.Int {
	return c.virtualPrice
}

// XcpProfit returns the accumulated pool profit counter.
func (c *CryptoSwap) XcpProfit() sdkmath.Int {
	return c.xcpProfit
}
