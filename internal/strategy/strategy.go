/*

The strategy package drives a pool variant through a market price series with
an arbitrage trader: at every tick it sizes the trade that closes the gap
between the pool's quoted price and the market price, executes it, and logs
the resulting state.

A solver failure inside a trade is terminal for that variant only; the run
carries on with the remaining variants.

*/

package strategy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/curveforge/poolsim/internal/logger"
	"github.com/curveforge/poolsim/internal/metrics"
	"github.com/curveforge/poolsim/internal/pool"
	"github.com/curveforge/poolsim/internal/sampler"
	"github.com/curveforge/poolsim/internal/types"
	"github.com/curveforge/poolsim/internal/utils"
)

// PairKey names a directed pair: the rate is coinOut units per one coinIn.
func PairKey(coinIn, coinOut string) string {
	return coinIn + "/" + coinOut
}

// PriceSample is the market state at one tick.
type PriceSample struct {
	Timestamp time.Time
	Prices    map[string]float64
}

// Rate returns the market rate for the directed pair, inverting the opposite
// quote when only that one is present.
func (s PriceSample) Rate(coinIn, coinOut string) (float64, bool) {
	if p, ok := s.Prices[PairKey(coinIn, coinOut)]; ok {
		return p, true
	}
	if p, ok := s.Prices[PairKey(coinOut, coinIn)]; ok && p > 0 {
		return 1 / p, true
	}
	return 0, false
}

// SamplesFromSeries converts a fetched price series into per-tick samples.
func SamplesFromSeries(series types.PriceSeries) []PriceSample {
	key := PairKey(series.Base, series.Quote)
	out := make([]PriceSample, 0, len(series.Data))
	for _, d := range series.Data {
		out = append(out, PriceSample{
			Timestamp: d.Timestamp,
			Prices:    map[string]float64{key: d.Price},
		})
	}
	return out
}

// StateLog receives one record per simulated tick.
type StateLog interface {
	LogTick(types.TickRecord) error
}

// MemoryLog keeps tick records in memory. The zero value is ready to use.
type MemoryLog struct {
	Records []types.TickRecord
}

func (m *MemoryLog) LogTick(r types.TickRecord) error {
	m.Records = append(m.Records, r)
	return nil
}

// Arbitrageur sizes trades by bisection against the post-trade pool price.
type Arbitrageur struct {
	// Threshold is the minimum relative edge over the market price worth
	// trading on.
	Threshold float64
	// MinOutBalancePerc caps any single trade so the output coin keeps at
	// least this fraction of its balance.
	MinOutBalancePerc float64
	// Bisections bounds the size search.
	Bisections int
}

// NewArbitrageur returns an arbitrageur with the default sizing knobs.
func NewArbitrageur() Arbitrageur {
	// The output floor stays well inside the cryptoswap solvers' balance
	// ratio bounds; draining further would fault the solve before the
	// search converged.
	return Arbitrageur{
		Threshold:         1e-5,
		MinOutBalancePerc: 0.1,
		Bisections:        40,
	}
}

// SizeTrade returns the input amount that moves the pool's fee-inclusive
// quote for the pair down to the market rate, or zero when there is no edge.
// Sizing probes run on clones; the pool itself is never touched.
func (a Arbitrageur) SizeTrade(p pool.SimPool, coinIn, coinOut string, market float64) (sdkmath.Int, error) {
	spot, err := p.Price(coinIn, coinOut, true)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if spot <= market*(1+a.Threshold) {
		return sdkmath.ZeroInt(), nil
	}

	hi, err := p.GetInAmount(coinIn, coinOut, a.MinOutBalancePerc)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if !hi.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}

	lo := sdkmath.ZeroInt()
	for i := 0; i < a.Bisections; i++ {
		mid := lo.Add(hi).QuoRaw(2)
		if mid.Equal(lo) {
			break
		}
		probe := p.Clone()
		if _, err := probe.Trade(coinIn, coinOut, mid); err != nil {
			if errors.Is(err, pool.ErrTradeExecution) {
				hi = mid
				continue
			}
			return sdkmath.Int{}, err
		}
		post, err := probe.Price(coinIn, coinOut, true)
		if err != nil {
			if errors.Is(err, pool.ErrTradeExecution) {
				hi = mid
				continue
			}
			return sdkmath.Int{}, err
		}
		if post > market {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo, nil
}

// Strategy runs one variant per call. Safe to reuse across variants.
type Strategy struct {
	arb Arbitrageur
}

func New(arb Arbitrageur) *Strategy {
	return &Strategy{arb: arb}
}

// Run walks the variant's pool through the sample series, arbitraging every
// directed pair with a market quote. A trade execution failure marks the
// variant failed and returns a nil error; infrastructure errors (context
// cancellation, a failing log sink) abort the run.
func (s *Strategy) Run(ctx context.Context, v *sampler.Variant, samples []PriceSample, sink StateLog) (types.VariantResult, error) {
	log := logger.GetForComponent("strategy")

	res := types.VariantResult{
		VariantIndex: v.Index,
		Params:       make(map[string]string, len(v.Params)),
		Status:       types.VariantCompleted,
		TotalVolume:  sdkmath.ZeroInt(),
		TotalFees:    sdkmath.ZeroInt(),
	}
	for name, val := range v.Params {
		res.Params[name] = val.String()
	}

	coins := v.Pool.CoinNames()
	pairs := orderedPairs(coins)

	poolPrices := make([]types.PriceData, 0, len(samples))
	var errSum float64

	for _, sample := range samples {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		v.Pool.PrepareForTrades(sample.Timestamp)

		tickTrades := 0
		tickVolume := sdkmath.ZeroInt()
		tickFees := sdkmath.ZeroInt()

		for _, pr := range pairs {
			market, ok := sample.Rate(pr[0], pr[1])
			if !ok {
				continue
			}
			size, err := s.arb.SizeTrade(v.Pool, pr[0], pr[1], market)
			if err != nil {
				if errors.Is(err, pool.ErrTradeExecution) {
					return failVariant(res, log, err), nil
				}
				return res, err
			}
			if !size.IsPositive() {
				continue
			}
			tr, err := v.Pool.Trade(pr[0], pr[1], size)
			if err != nil {
				if errors.Is(err, pool.ErrTradeExecution) {
					return failVariant(res, log, err), nil
				}
				return res, err
			}
			tickTrades++
			tickVolume = tickVolume.Add(tr.Volume)
			tickFees = tickFees.Add(tr.Fee)
		}

		marketPrice, havePrimary := sample.Rate(coins[0], coins[1])
		poolPrice, err := v.Pool.Price(coins[0], coins[1], false)
		if err != nil {
			if errors.Is(err, pool.ErrTradeExecution) {
				return failVariant(res, log, err), nil
			}
			return res, err
		}

		rec := types.TickRecord{
			VariantIndex: v.Index,
			Timestamp:    sample.Timestamp,
			PoolPrice:    poolPrice,
			Trades:       tickTrades,
			Volume:       tickVolume,
			Fees:         tickFees,
		}
		if havePrimary {
			rec.MarketPrice = marketPrice
			rec.PriceError = math.Abs(poolPrice-marketPrice) / marketPrice
		}
		if err := sink.LogTick(rec); err != nil {
			return res, fmt.Errorf("logging tick: %w", err)
		}

		poolPrices = append(poolPrices, types.PriceData{Timestamp: sample.Timestamp, Price: poolPrice})
		errSum += rec.PriceError
		res.Ticks++
		res.Trades += tickTrades
		res.TotalVolume = res.TotalVolume.Add(tickVolume)
		res.TotalFees = res.TotalFees.Add(tickFees)
	}

	if res.Ticks > 0 {
		res.MeanPriceError = errSum / float64(res.Ticks)
	}
	if vol, err := metrics.AnnualizedVolatility(poolPrices, metrics.HourlyAnnualization); err == nil {
		res.AnnualizedVolatility = vol
	}
	res.FinalVirtualPrice = finalVirtualPrice(v.Pool)
	return res, nil
}

func failVariant(res types.VariantResult, log zerolog.Logger, err error) types.VariantResult {
	log.Warn().Err(err).Int("variant", res.VariantIndex).Msg("Variant terminated by trade failure")
	res.Status = types.VariantFailed
	res.FailReason = err.Error()
	return res
}

// orderedPairs lists every directed coin pair.
func orderedPairs(coins []string) [][2]string {
	var out [][2]string
	for i := range coins {
		for j := range coins {
			if i != j {
				out = append(out, [2]string{coins[i], coins[j]})
			}
		}
	}
	return out
}

// finalVirtualPrice reads the pool's virtual price where the family tracks
// one; other families report zero.
func finalVirtualPrice(p pool.SimPool) float64 {
	type vpInt interface{ VirtualPrice() sdkmath.Int }
	type vpErr interface{ VirtualPrice() (sdkmath.Int, error) }

	var v sdkmath.Int
	switch t := p.(type) {
	case vpInt:
		v = t.VirtualPrice()
	case vpErr:
		var err error
		v, err = t.VirtualPrice()
		if err != nil {
			return 0
		}
	default:
		return 0
	}
	f, err := utils.RatioFloat64(v, sdkmath.NewIntWithDecimal(1, 18))
	if err != nil {
		return 0
	}
	return f
}
