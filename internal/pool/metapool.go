package pool

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
)

// MetaPool pairs one coin against the LP token of a base stableswap pool and
// trades on the underlying coins: index 0 is the metapool's own coin, the
// rest are the base pool's. The LP leg is rated by the base pool's virtual
// price, which moves as base fees accrue.
type MetaPool struct {
	meta *StableSwap
	base *StableSwap

	rateMultiplier sdkmath.Int
}

// MetaPoolParams configures NewMetaPool. Coin names the metapool's own coin;
// Balances holds [own coin, base LP] in native units.
type MetaPoolParams struct {
	Coin           string
	A              sdkmath.Int
	Fee            sdkmath.Int
	AdminFee       sdkmath.Int
	RateMultiplier sdkmath.Int
	Balances       []sdkmath.Int
	Base           *StableSwap
}

func NewMetaPool(p MetaPoolParams) (*MetaPool, error) {
	if p.Base == nil {
		return nil, fmt.Errorf("%w: metapool needs a base pool", ErrUnsupportedParameter)
	}
	if len(p.Balances) != 2 {
		return nil, fmt.Errorf("%w: metapool holds its coin and the base LP", ErrUnsupportedParameter)
	}

	vp, err := p.Base.VirtualPrice()
	if err != nil {
		return nil, err
	}
	meta, err := NewStableSwap(StableSwapParams{
		Coins:    []string{p.Coin, p.Coin + "-base-lp"},
		A:        p.A,
		Fee:      p.Fee,
		AdminFee: p.AdminFee,
		Rates:    []sdkmath.Int{p.RateMultiplier, vp},
		Balances: p.Balances,
	})
	if err != nil {
		return nil, err
	}
	return &MetaPool{
		meta:           meta,
		base:           p.Base,
		rateMultiplier: p.RateMultiplier,
	}, nil
}

// refreshRates re-rates the LP leg at the base pool's current virtual price.
// Called before every operation that touches the meta invariant.
func (m *MetaPool) refreshRates() error {
	vp, err := m.base.VirtualPrice()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTradeExecution, err)
	}
	m.meta.rates[1] = vp
	return nil
}

func (m *MetaPool) PrepareForTrades(ts time.Time) {
	m.meta.PrepareForTrades(ts)
	m.base.PrepareForTrades(ts)
}

func (m *MetaPool) NumberOfCoins() int { return 1 + m.base.NumberOfCoins() }

func (m *MetaPool) CoinNames() []string {
	return append([]string{m.meta.coins[0]}, m.base.CoinNames()...)
}

// resolve maps an underlying coin reference to (meta side, base index).
// metaSide 0 is the metapool's own coin, 1 the base pool.
func (m *MetaPool) resolve(ref string) (metaSide, baseIdx int, err error) {
	idx, err := coinIndex(m.CoinNames(), ref)
	if err != nil {
		return 0, 0, err
	}
	if idx == 0 {
		return 0, -1, nil
	}
	return 1, idx - 1, nil
}

// Price returns the marginal rate dy/dx between underlying coins. Cross-pair
// prices come off the meta pair's derivative, whose LP leg is already rated
// by the base virtual price; with fees enabled the meta fee applies to the
// cross leg.
func (m *MetaPool) Price(coinIn, coinOut string, useFee bool) (float64, error) {
	si, bi, err := m.resolve(coinIn)
	if err != nil {
		return 0, err
	}
	sj, bj, err := m.resolve(coinOut)
	if err != nil {
		return 0, err
	}
	if si == sj && bi == bj {
		return 0, fmt.Errorf("%w: price of %q against itself", ErrUnknownCoin, coinIn)
	}

	if si == 1 && sj == 1 {
		return m.base.Price(m.base.coins[bi], m.base.coins[bj], useFee)
	}
	if err := m.refreshRates(); err != nil {
		return 0, err
	}

	// The meta derivative is taken on the rated balances, where one unit of
	// the LP leg is worth vp/10^18 display base coins at the margin. The
	// quote therefore already reads as base coin per own coin (or the
	// inverse) and needs no further rebasing.
	var i, j int
	if si == 0 {
		i, j = 0, 1
	} else {
		i, j = 1, 0
	}
	return m.meta.Price(m.meta.coins[i], m.meta.coins[j], useFee)
}

// Trade swaps between underlying coins. Base-to-base trades route straight
// through the base pool; cross trades route through an LP deposit or a
// one-coin withdrawal, the way the contract's exchange_underlying does.
func (m *MetaPool) Trade(coinIn, coinOut string, amountIn sdkmath.Int) (TradeResult, error) {
	si, bi, err := m.resolve(coinIn)
	if err != nil {
		return TradeResult{}, err
	}
	sj, bj, err := m.resolve(coinOut)
	if err != nil {
		return TradeResult{}, err
	}
	if si == sj && bi == bj {
		return TradeResult{}, fmt.Errorf("%w: trade of %q against itself", ErrTradeExecution, coinIn)
	}

	if si == 1 && sj == 1 {
		return m.base.Trade(m.base.coins[bi], m.base.coins[bj], amountIn)
	}
	if err := m.refreshRates(); err != nil {
		return TradeResult{}, err
	}

	if si == 0 {
		// Own coin in: swap to LP on the meta pair, withdraw one coin from
		// the base pool. The meta result is normalized; the withdrawal wants
		// raw LP tokens.
		lpRes, err := m.meta.Trade(m.meta.coins[0], m.meta.coins[1], amountIn)
		if err != nil {
			return TradeResult{}, err
		}
		lpOut := lpRes.AmountOut.Mul(m.meta.constants.Precision).Quo(m.meta.rates[1])
		dy, err := m.base.RemoveLiquidityOneCoin(lpOut, m.base.coins[bj])
		if err != nil {
			return TradeResult{}, err
		}
		return TradeResult{
			AmountIn:  amountIn,
			AmountOut: dy.Mul(m.base.rates[bj]).Quo(m.base.constants.Precision),
			Fee:       lpRes.Fee,
			Volume:    lpRes.Volume,
		}, nil
	}

	// Base coin in: deposit one-sided into the base pool, swap the minted LP
	// for the own coin.
	amounts := make([]sdkmath.Int, m.base.NumberOfCoins())
	for k := range amounts {
		amounts[k] = sdkmath.ZeroInt()
	}
	amounts[bi] = amountIn
	lp, err := m.base.AddLiquidity(amounts)
	if err != nil {
		return TradeResult{}, err
	}
	if err := m.refreshRates(); err != nil {
		return TradeResult{}, err
	}
	res, err := m.meta.Trade(m.meta.coins[1], m.meta.coins[0], lp)
	if err != nil {
		return TradeResult{}, err
	}
	return TradeResult{
		AmountIn:  amountIn,
		AmountOut: res.AmountOut,
		Fee:       res.Fee,
		Volume:    amountIn.Mul(m.base.rates[bi]).Quo(m.base.constants.Precision),
	}, nil
}

// GetInAmount bounds a trade between underlying coins. Cross-pair amounts
// scale the LP leg through the base virtual price, which is exact for the
// meta pair and a close upper bound across the base hop.
func (m *MetaPool) GetInAmount(coinIn, coinOut string, outBalancePerc float64) (sdkmath.Int, error) {
	si, bi, err := m.resolve(coinIn)
	if err != nil {
		return sdkmath.Int{}, err
	}
	sj, bj, err := m.resolve(coinOut)
	if err != nil {
		return sdkmath.Int{}, err
	}

	if si == 1 && sj == 1 {
		return m.base.GetInAmount(m.base.coins[bi], m.base.coins[bj], outBalancePerc)
	}
	if err := m.refreshRates(); err != nil {
		return sdkmath.Int{}, err
	}

	if si == 0 {
		// The LP balance of the meta pair caps how much of any base coin a
		// single trade can drain.
		return m.meta.GetInAmount(m.meta.coins[0], m.meta.coins[1], outBalancePerc)
	}

	// Needed LP to leave the own coin at the target, converted to the base
	// coin amount that mints it.
	lpIn, err := m.meta.GetInAmount(m.meta.coins[1], m.meta.coins[0], outBalancePerc)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return lpIn.Mul(m.meta.rates[1]).Quo(m.base.rates[bi]), nil
}

// Setters lists the sweepable parameters; D_base forwards to the base pool.
func (m *MetaPool) Setters() []string {
	return []string{"A", "fee", "admin_fee", "D", "D_base"}
}

func (m *MetaPool) SetParameter(name string, value sdkmath.Int) error {
	if name == "D_base" {
		return m.base.SetParameter("D", value)
	}
	if name == "D" {
		if err := m.refreshRates(); err != nil {
			return err
		}
	}
	return m.meta.SetParameter(name, value)
}

func (m *MetaPool) Clone() SimPool {
	return &MetaPool{
		meta:           m.meta.clone(),
		base:           m.base.clone(),
		rateMultiplier: m.rateMultiplier,
	}
}

func (m *MetaPool) Snapshot() Snapshot {
	snap := m.meta.Snapshot()
	snap.Family = "metapool"
	base := m.base.Snapshot()
	snap.Base = &base
	return snap
}
