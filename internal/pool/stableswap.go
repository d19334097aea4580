package pool

import (
	"fmt"
	"math"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/curveforge/poolsim/internal/curvemath"
	"github.com/curveforge/poolsim/internal/utils"
)

// StableSwap models a plain stableswap pool. Balances are kept in native
// token units; rates scale them to a common 10^18 basis for the solvers.
type StableSwap struct {
	constants curvemath.Constants

	coins       []string
	amp         sdkmath.Int // amplification A, plain
	fee         sdkmath.Int // out of FeeDenominator
	adminFee    sdkmath.Int
	rates       []sdkmath.Int
	balances    []sdkmath.Int
	totalSupply sdkmath.Int

	tickTime time.Time
}

// StableSwapParams configures NewStableSwap. TotalSupply may be zero, in
// which case the LP supply is initialized to the invariant so the starting
// virtual price is exactly 10^18.
type StableSwapParams struct {
	Coins       []string
	A           sdkmath.Int
	Fee         sdkmath.Int
	AdminFee    sdkmath.Int
	Rates       []sdkmath.Int
	Balances    []sdkmath.Int
	TotalSupply sdkmath.Int
}

func NewStableSwap(p StableSwapParams) (*StableSwap, error) {
	n := len(p.Coins)
	if n < 2 {
		return nil, fmt.Errorf("%w: stableswap needs at least two coins", ErrUnsupportedParameter)
	}
	if len(p.Balances) != n || len(p.Rates) != n {
		return nil, fmt.Errorf("%w: %d coins but %d balances and %d rates",
			ErrUnsupportedParameter, n, len(p.Balances), len(p.Rates))
	}
	if p.A.IsNil() || !p.A.IsPositive() {
		return nil, fmt.Errorf("%w: amplification must be positive", ErrUnsupportedParameter)
	}
	if p.Fee.IsNil() || p.Fee.IsNegative() || p.Fee.GTE(FeeDenominator) {
		return nil, fmt.Errorf("%w: fee must be in [0, %s)", ErrUnsupportedParameter, FeeDenominator)
	}

	adminFee := p.AdminFee
	if adminFee.IsNil() {
		adminFee = sdkmath.ZeroInt()
	}

	s := &StableSwap{
		constants: curvemath.DefaultConstants(),
		coins:     copyStrings(p.Coins),
		amp:       p.A,
		fee:       p.Fee,
		adminFee:  adminFee,
		rates:     copyInts(p.Rates),
		balances:  copyInts(p.Balances),
	}

	if !p.TotalSupply.IsNil() && p.TotalSupply.IsPositive() {
		s.totalSupply = p.TotalSupply
	} else {
		d, err := s.D()
		if err != nil {
			return nil, err
		}
		s.totalSupply = d
	}
	return s, nil
}

func (s *StableSwap) ann() sdkmath.Int {
	return s.amp.MulRaw(int64(len(s.coins)))
}

// xp returns the balances scaled to the common 10^18 basis.
func (s *StableSwap) xp() []sdkmath.Int {
	out := make([]sdkmath.Int, len(s.balances))
	for i, b := range s.balances {
		out[i] = b.Mul(s.rates[i]).Quo(s.constants.Precision)
	}
	return out
}

// D solves the invariant at the current balances.
func (s *StableSwap) D() (sdkmath.Int, error) {
	return curvemath.SolveInvariant(s.constants, s.ann(), nil, s.xp(), sdkmath.ZeroInt())
}

// VirtualPrice returns D scaled by the LP supply, in 10^18 fixed-point.
func (s *StableSwap) VirtualPrice() (sdkmath.Int, error) {
	d, err := s.D()
	if err != nil {
		return sdkmath.Int{}, err
	}
	return d.Mul(s.constants.Precision).Quo(s.totalSupply), nil
}

func (s *StableSwap) PrepareForTrades(ts time.Time) {
	s.tickTime = ts
}

func (s *StableSwap) NumberOfCoins() int { return len(s.coins) }

func (s *StableSwap) CoinNames() []string { return copyStrings(s.coins) }

// Price returns the marginal rate dy/dx per display unit for swapping coinIn
// into coinOut, from the invariant's partial derivatives.
func (s *StableSwap) Price(coinIn, coinOut string, useFee bool) (float64, error) {
	i, err := coinIndex(s.coins, coinIn)
	if err != nil {
		return 0, err
	}
	j, err := coinIndex(s.coins, coinOut)
	if err != nil {
		return 0, err
	}
	if i == j {
		return 0, fmt.Errorf("%w: price of %q against itself", ErrUnknownCoin, coinIn)
	}

	d, err := s.D()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTradeExecution, err)
	}

	price, err := s.dydx(i, j, s.xp(), d)
	if err != nil {
		return 0, err
	}
	if useFee {
		feeF, err := utils.RatioFloat64(s.fee, FeeDenominator)
		if err != nil {
			return 0, err
		}
		price *= 1 - feeF
	}
	return price, nil
}

// dydx evaluates the analytic spot price on the normalized balances. The
// rates already map both coins onto the common 10^18 basis, so the normalized
// derivative is the price per display unit as is. With Ap = A*n^(n+1)*prod(xp),
// where A carries the contract's n^(n-1) scaling:
//
//	dy/dx = xj*(Ap*xi + D^(n+1)) / (xi*(Ap*xj + D^(n+1)))
func (s *StableSwap) dydx(i, j int, xp []sdkmath.Int, d sdkmath.Int) (float64, error) {
	n := len(xp)
	one := s.constants.Precision

	xpf := make([]float64, n)
	for k, x := range xp {
		f, err := utils.RatioFloat64(x, one)
		if err != nil {
			return 0, err
		}
		xpf[k] = f
	}
	df, err := utils.RatioFloat64(d, one)
	if err != nil {
		return 0, err
	}
	af, err := utils.RatioFloat64(s.amp, sdkmath.OneInt())
	if err != nil {
		return 0, err
	}

	prod := 1.0
	for _, f := range xpf {
		prod *= f
	}
	aPow := af * math.Pow(float64(n), float64(n+1)) * prod
	dPow := math.Pow(df, float64(n+1))

	return xpf[j] * (aPow*xpf[i] + dPow) / (xpf[i] * (aPow*xpf[j] + dPow)), nil
}

// Trade swaps amountIn of coinIn for coinOut. The output is reduced by the
// swap fee; the admin share of the fee leaves the pool, the rest accrues to
// LP holders through the invariant.
func (s *StableSwap) Trade(coinIn, coinOut string, amountIn sdkmath.Int) (TradeResult, error) {
	i, err := coinIndex(s.coins, coinIn)
	if err != nil {
		return TradeResult{}, err
	}
	j, err := coinIndex(s.coins, coinOut)
	if err != nil {
		return TradeResult{}, err
	}
	if i == j || amountIn.IsNil() || !amountIn.IsPositive() {
		return TradeResult{}, fmt.Errorf("%w: invalid trade %s %s -> %s", ErrTradeExecution, amountIn, coinIn, coinOut)
	}

	xp := s.xp()
	x := xp[i].Add(amountIn.Mul(s.rates[i]).Quo(s.constants.Precision))

	y, err := curvemath.SolveY(s.constants, s.ann(), xp, i, j, x)
	if err != nil {
		return TradeResult{}, fmt.Errorf("%w: %w", ErrTradeExecution, err)
	}

	dyXp := xp[j].Sub(y).Sub(sdkmath.OneInt())
	if !dyXp.IsPositive() {
		return TradeResult{}, fmt.Errorf("%w: trade of %s too small to price", ErrTradeExecution, amountIn)
	}
	feeXp := dyXp.Mul(s.fee).Quo(FeeDenominator)
	adminXp := feeXp.Mul(s.adminFee).Quo(FeeDenominator)
	dyNetXp := dyXp.Sub(feeXp)

	dy := dyNetXp.Mul(s.constants.Precision).Quo(s.rates[j])
	if !dy.IsPositive() {
		return TradeResult{}, fmt.Errorf("%w: output rounds to zero", ErrTradeExecution)
	}

	s.balances[i] = s.balances[i].Add(amountIn)
	s.balances[j] = s.balances[j].Sub(dy).Sub(adminXp.Mul(s.constants.Precision).Quo(s.rates[j]))

	return TradeResult{
		AmountIn:  amountIn,
		AmountOut: dyNetXp,
		Fee:       feeXp,
		Volume:    amountIn.Mul(s.rates[i]).Quo(s.constants.Precision),
	}, nil
}

// GetInAmount returns the input of coinIn that leaves coinOut's normalized
// balance at outBalancePerc of its current value.
func (s *StableSwap) GetInAmount(coinIn, coinOut string, outBalancePerc float64) (sdkmath.Int, error) {
	i, err := coinIndex(s.coins, coinIn)
	if err != nil {
		return sdkmath.Int{}, err
	}
	j, err := coinIndex(s.coins, coinOut)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if outBalancePerc <= 0 || outBalancePerc >= 1 {
		return sdkmath.Int{}, fmt.Errorf("%w: out balance fraction %f outside (0, 1)", ErrTradeExecution, outBalancePerc)
	}

	perc, err := utils.Float64ToSDKInt(outBalancePerc, 18)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: %w", ErrTradeExecution, err)
	}

	xp := s.xp()
	target := xp[j].Mul(perc).Quo(s.constants.Precision)

	// Fix coin j at the target and solve for the matching coin i balance.
	x, err := curvemath.SolveY(s.constants, s.ann(), xp, j, i, target)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: %w", ErrTradeExecution, err)
	}
	dxXp := x.Sub(xp[i])
	if !dxXp.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	return dxXp.Mul(s.constants.Precision).Quo(s.rates[i]), nil
}

// AddLiquidity deposits amounts (native units, aligned with CoinNames) and
// returns the LP tokens minted. Imbalanced deposits pay the deposit fee
// fee*n/(4*(n-1)) on the deviation from a balanced deposit.
func (s *StableSwap) AddLiquidity(amounts []sdkmath.Int) (sdkmath.Int, error) {
	n := len(s.coins)
	if len(amounts) != n {
		return sdkmath.Int{}, fmt.Errorf("%w: %d amounts for %d coins", ErrTradeExecution, len(amounts), n)
	}

	d0, err := s.D()
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: %w", ErrTradeExecution, err)
	}

	newBalances := copyInts(s.balances)
	for i, a := range amounts {
		if a.IsNil() || a.IsNegative() {
			return sdkmath.Int{}, fmt.Errorf("%w: negative deposit", ErrTradeExecution)
		}
		newBalances[i] = newBalances[i].Add(a)
	}

	d1, err := s.dAt(newBalances)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: %w", ErrTradeExecution, err)
	}
	if !d1.GT(d0) {
		return sdkmath.Int{}, fmt.Errorf("%w: deposit did not grow the invariant", ErrTradeExecution)
	}

	// Deposit fee on the deviation from the balanced proportion.
	depositFee := s.fee.MulRaw(int64(n)).QuoRaw(int64(4 * (n - 1)))
	feeBalances := copyInts(newBalances)
	for i := range feeBalances {
		ideal := d1.Mul(s.balances[i]).Quo(d0)
		var diff sdkmath.Int
		if ideal.GT(newBalances[i]) {
			diff = ideal.Sub(newBalances[i])
		} else {
			diff = newBalances[i].Sub(ideal)
		}
		feeAmt := depositFee.Mul(diff).Quo(FeeDenominator)
		feeBalances[i] = feeBalances[i].Sub(feeAmt)
		adminAmt := feeAmt.Mul(s.adminFee).Quo(FeeDenominator)
		newBalances[i] = newBalances[i].Sub(adminAmt)
	}

	d2, err := s.dAt(feeBalances)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: %w", ErrTradeExecution, err)
	}

	minted := s.totalSupply.Mul(d2.Sub(d0)).Quo(d0)
	s.balances = newBalances
	s.totalSupply = s.totalSupply.Add(minted)
	return minted, nil
}

// RemoveLiquidityOneCoin burns tokenAmount LP tokens for coin i only,
// charging the deposit fee on the implied imbalance.
func (s *StableSwap) RemoveLiquidityOneCoin(tokenAmount sdkmath.Int, coin string) (sdkmath.Int, error) {
	i, err := coinIndex(s.coins, coin)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if tokenAmount.IsNil() || !tokenAmount.IsPositive() || tokenAmount.GTE(s.totalSupply) {
		return sdkmath.Int{}, fmt.Errorf("%w: burn amount %s outside (0, supply)", ErrTradeExecution, tokenAmount)
	}

	n := len(s.coins)
	xp := s.xp()
	ann := s.ann()

	d0, err := curvemath.SolveInvariant(s.constants, ann, nil, xp, sdkmath.ZeroInt())
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: %w", ErrTradeExecution, err)
	}
	d1 := d0.Sub(tokenAmount.Mul(d0).Quo(s.totalSupply))

	newY, err := curvemath.SolveYD(s.constants, ann, xp, i, d1)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: %w", ErrTradeExecution, err)
	}

	withdrawFee := s.fee.MulRaw(int64(n)).QuoRaw(int64(4 * (n - 1)))
	xpReduced := copyInts(xp)
	for j := range xp {
		var dxExpected sdkmath.Int
		if j == i {
			dxExpected = xp[j].Mul(d1).Quo(d0).Sub(newY)
		} else {
			dxExpected = xp[j].Sub(xp[j].Mul(d1).Quo(d0))
		}
		xpReduced[j] = xpReduced[j].Sub(withdrawFee.Mul(dxExpected).Quo(FeeDenominator))
	}

	yAfterFee, err := curvemath.SolveYD(s.constants, ann, xpReduced, i, d1)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: %w", ErrTradeExecution, err)
	}
	dy := xpReduced[i].Sub(yAfterFee).Sub(sdkmath.OneInt()).Mul(s.constants.Precision).Quo(s.rates[i])
	if !dy.IsPositive() {
		return sdkmath.Int{}, fmt.Errorf("%w: withdrawal rounds to zero", ErrTradeExecution)
	}

	s.balances[i] = s.balances[i].Sub(dy)
	s.totalSupply = s.totalSupply.Sub(tokenAmount)
	return dy, nil
}

func (s *StableSwap) dAt(balances []sdkmath.Int) (sdkmath.Int, error) {
	xp := make([]sdkmath.Int, len(balances))
	for i, b := range balances {
		xp[i] = b.Mul(s.rates[i]).Quo(s.constants.Precision)
	}
	return curvemath.SolveInvariant(s.constants, s.ann(), nil, xp, sdkmath.ZeroInt())
}

// Setters lists the sweepable parameters of a stableswap pool.
func (s *StableSwap) Setters() []string {
	return []string{"A", "fee", "admin_fee", "D"}
}

// SetParameter applies a sweep value. Setting D rebalances the pool to the
// target invariant, spread evenly across coins at their rates.
func (s *StableSwap) SetParameter(name string, value sdkmath.Int) error {
	if value.IsNil() || value.IsNegative() {
		return fmt.Errorf("%w: %q must be non-negative", ErrUnsupportedParameter, name)
	}
	switch name {
	case "A":
		if !value.IsPositive() {
			return fmt.Errorf("%w: amplification must be positive", ErrUnsupportedParameter)
		}
		s.amp = value
	case "fee":
		if value.GTE(FeeDenominator) {
			return fmt.Errorf("%w: fee %s must be below %s", ErrUnsupportedParameter, value, FeeDenominator)
		}
		s.fee = value
	case "admin_fee":
		if value.GT(FeeDenominator) {
			return fmt.Errorf("%w: admin fee %s must not exceed %s", ErrUnsupportedParameter, value, FeeDenominator)
		}
		s.adminFee = value
	case "D":
		nInt := sdkmath.NewInt(int64(len(s.coins)))
		for i := range s.balances {
			s.balances[i] = value.Quo(nInt).Mul(s.constants.Precision).Quo(s.rates[i])
		}
	default:
		return fmt.Errorf("%w: %q for stableswap", ErrUnsupportedParameter, name)
	}
	return nil
}

func (s *StableSwap) Clone() SimPool {
	return s.clone()
}

func (s *StableSwap) clone() *StableSwap {
	dup := *s
	dup.coins = copyStrings(s.coins)
	dup.rates = copyInts(s.rates)
	dup.balances = copyInts(s.balances)
	return &dup
}

func (s *StableSwap) Snapshot() Snapshot {
	d, err := s.D()
	if err != nil {
		d = sdkmath.ZeroInt()
	}
	return Snapshot{
		Family:   "stableswap",
		Coins:    s.CoinNames(),
		Balances: copyInts(s.balances),
		D:        d,
	}
}
