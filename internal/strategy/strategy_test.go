package strategy

import (
	"context"
	"fmt"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curveforge/poolsim/internal/pool"
	"github.com/curveforge/poolsim/internal/sampler"
	"github.com/curveforge/poolsim/internal/types"
)

func pow10(n int) sdkmath.Int {
	return sdkmath.NewIntWithDecimal(1, n)
}

func cryptoVariant(t *testing.T) *sampler.Variant {
	t.Helper()
	p, err := pool.NewCryptoSwap(pool.CryptoSwapParams{
		Coins:              []string{"stMATIC", "WMATIC"},
		Precisions:         []sdkmath.Int{sdkmath.OneInt(), sdkmath.OneInt()},
		A:                  sdkmath.NewInt(4000000),
		Gamma:              sdkmath.NewInt(25000000000000),
		MidFee:             sdkmath.NewInt(1542000),
		OutFee:             sdkmath.NewInt(298650000),
		FeeGamma:           sdkmath.NewInt(89560000000000000),
		AllowedExtraProfit: sdkmath.NewInt(2500000000000),
		MAHalfTime:         sdkmath.NewInt(600),
		InitialPrice:       pow10(18),
		Balances:           []sdkmath.Int{pow10(24).MulRaw(2), pow10(24).MulRaw(2)},
	})
	require.NoError(t, err)

	g, err := sampler.NewGrid(p, []sampler.Axis{
		{Name: "mid_fee", Values: []sdkmath.Int{sdkmath.NewInt(1542000)}},
	})
	require.NoError(t, err)
	v, err := g.Variant(0)
	require.NoError(t, err)
	return v
}

func flatSamples(n int, price float64) []PriceSample {
	start := time.Unix(1700000000, 0)
	out := make([]PriceSample, n)
	for i := range out {
		out[i] = PriceSample{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Prices:    map[string]float64{PairKey("stMATIC", "WMATIC"): price},
		}
	}
	return out
}

func TestPairKeyAndRate(t *testing.T) {
	s := PriceSample{Prices: map[string]float64{PairKey("A", "B"): 2.0}}

	r, ok := s.Rate("A", "B")
	require.True(t, ok)
	assert.Equal(t, 2.0, r)

	r, ok = s.Rate("B", "A")
	require.True(t, ok)
	assert.InDelta(t, 0.5, r, 1e-12)

	_, ok = s.Rate("A", "C")
	assert.False(t, ok)
}

func TestSamplesFromSeries(t *testing.T) {
	series := types.PriceSeries{
		Base:  "stMATIC",
		Quote: "WMATIC",
		Data: []types.PriceData{
			{Timestamp: time.Unix(1, 0), Price: 1.1},
			{Timestamp: time.Unix(2, 0), Price: 1.2},
		},
	}
	samples := SamplesFromSeries(series)
	require.Len(t, samples, 2)
	r, ok := samples[1].Rate("stMATIC", "WMATIC")
	require.True(t, ok)
	assert.Equal(t, 1.2, r)
}

func TestSizeTradeNoEdge(t *testing.T) {
	v := cryptoVariant(t)
	v.Pool.PrepareForTrades(time.Unix(1700000000, 0))
	arb := NewArbitrageur()

	// Market at the pool's own quote: nothing to pick up.
	size, err := arb.SizeTrade(v.Pool, "stMATIC", "WMATIC", 1.0)
	require.NoError(t, err)
	assert.True(t, size.IsZero())
}

func TestSizeTradeFindsEdge(t *testing.T) {
	v := cryptoVariant(t)
	v.Pool.PrepareForTrades(time.Unix(1700000000, 0))
	arb := NewArbitrageur()

	// Market well below the pool quote: selling stMATIC into the pool is
	// profitable until the quote meets the market.
	size, err := arb.SizeTrade(v.Pool, "stMATIC", "WMATIC", 0.995)
	require.NoError(t, err)
	require.True(t, size.IsPositive())

	before, err := v.Pool.Price("stMATIC", "WMATIC", true)
	require.NoError(t, err)
	_, err = v.Pool.Trade("stMATIC", "WMATIC", size)
	require.NoError(t, err)
	after, err := v.Pool.Price("stMATIC", "WMATIC", true)
	require.NoError(t, err)

	assert.Less(t, after, before)
	assert.GreaterOrEqual(t, after, 0.995*(1-1e-6), "sizing must not overshoot the market")
}

func TestRunCompletesAndLogs(t *testing.T) {
	v := cryptoVariant(t)
	samples := flatSamples(5, 0.997)
	sink := &MemoryLog{}

	res, err := New(NewArbitrageur()).Run(context.Background(), v, samples, sink)
	require.NoError(t, err)

	assert.Equal(t, types.VariantCompleted, res.Status)
	assert.Equal(t, 5, res.Ticks)
	assert.Greater(t, res.Trades, 0)
	assert.True(t, res.TotalFees.IsPositive())
	assert.True(t, res.TotalVolume.IsPositive())
	require.Len(t, sink.Records, 5)

	// Arbitrage pulls the pool toward the market across ticks.
	first := sink.Records[0].PriceError
	last := sink.Records[len(sink.Records)-1].PriceError
	assert.LessOrEqual(t, last, first)
	assert.Equal(t, "1542000", res.Params["mid_fee"])
	assert.Greater(t, res.FinalVirtualPrice, 1.0)
}

func TestRunHonorsContext(t *testing.T) {
	v := cryptoVariant(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(NewArbitrageur()).Run(ctx, v, flatSamples(3, 0.997), &MemoryLog{})
	assert.ErrorIs(t, err, context.Canceled)
}

// brokenPool fails every price query the way a diverged solver would.
type brokenPool struct {
	pool.SimPool
}

func (b brokenPool) Price(string, string, bool) (float64, error) {
	return 0, fmt.Errorf("%w: solver diverged", pool.ErrTradeExecution)
}

func (b brokenPool) Clone() pool.SimPool { return b }

func TestRunIsolatesTradeFailures(t *testing.T) {
	v := cryptoVariant(t)
	v.Pool = brokenPool{SimPool: v.Pool}

	res, err := New(NewArbitrageur()).Run(context.Background(), v, flatSamples(3, 0.997), &MemoryLog{})
	require.NoError(t, err, "a trade failure is terminal for the variant, not the run")
	assert.Equal(t, types.VariantFailed, res.Status)
	assert.NotEmpty(t, res.FailReason)
}

type failingSink struct{}

func (failingSink) LogTick(types.TickRecord) error {
	return fmt.Errorf("sink unavailable")
}

func TestRunPropagatesSinkErrors(t *testing.T) {
	v := cryptoVariant(t)

	_, err := New(NewArbitrageur()).Run(context.Background(), v, flatSamples(2, 0.997), failingSink{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging tick")
}
