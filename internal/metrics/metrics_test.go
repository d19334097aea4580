package metrics

import (
	"math"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curveforge/poolsim/internal/types"
)

func series(prices ...float64) []types.PriceData {
	start := time.Unix(1700000000, 0)
	out := make([]types.PriceData, len(prices))
	for i, p := range prices {
		out[i] = types.PriceData{Timestamp: start.Add(time.Duration(i) * time.Hour), Price: p}
	}
	return out
}

func TestAnnualizedVolatility(t *testing.T) {
	t.Run("constant series has zero volatility", func(t *testing.T) {
		vol, err := AnnualizedVolatility(series(1, 1, 1, 1), HourlyAnnualization)
		require.NoError(t, err)
		assert.Equal(t, 0.0, vol)
	})

	t.Run("alternating series", func(t *testing.T) {
		vol, err := AnnualizedVolatility(series(1.0, 1.1, 1.0, 1.1, 1.0), HourlyAnnualization)
		require.NoError(t, err)
		assert.Greater(t, vol, 0.0)

		calmer, err := AnnualizedVolatility(series(1.0, 1.01, 1.0, 1.01, 1.0), HourlyAnnualization)
		require.NoError(t, err)
		assert.Less(t, calmer, vol)
	})

	t.Run("unsorted input is sorted first", func(t *testing.T) {
		data := series(1.0, 1.1, 1.21)
		reversed := []types.PriceData{data[2], data[0], data[1]}
		a, err := AnnualizedVolatility(data, HourlyAnnualization)
		require.NoError(t, err)
		b, err := AnnualizedVolatility(reversed, HourlyAnnualization)
		require.NoError(t, err)
		assert.InDelta(t, a, b, 1e-12)
	})

	t.Run("too few points", func(t *testing.T) {
		_, err := AnnualizedVolatility(series(1.0), HourlyAnnualization)
		assert.ErrorIs(t, err, ErrInsufficientData)
	})

	t.Run("non-positive prices skipped", func(t *testing.T) {
		_, err := AnnualizedVolatility(series(0, 0), HourlyAnnualization)
		assert.ErrorIs(t, err, ErrInsufficientData)
	})
}

func completedResult(idx int, fees int64, meanErr, vol float64) types.VariantResult {
	return types.VariantResult{
		VariantIndex:         idx,
		Status:               types.VariantCompleted,
		TotalFees:            sdkmath.NewIntWithDecimal(fees, 18),
		MeanPriceError:       meanErr,
		AnnualizedVolatility: vol,
	}
}

func TestScoreVariant(t *testing.T) {
	w := DefaultWeights()

	good := completedResult(0, 1000, 0.0001, 0.05)
	bad := completedResult(1, 1000, 0.05, 0.05)
	assert.Greater(t, ScoreVariant(good, w), ScoreVariant(bad, w))

	feeless := completedResult(2, 0, 0.0001, 0.05)
	assert.Greater(t, ScoreVariant(good, w), ScoreVariant(feeless, w))

	failed := types.VariantResult{VariantIndex: 3, Status: types.VariantFailed, TotalFees: sdkmath.ZeroInt()}
	assert.True(t, math.IsInf(ScoreVariant(failed, w), -1))
}

func TestRankVariants(t *testing.T) {
	w := DefaultWeights()
	results := []types.VariantResult{
		completedResult(0, 10, 0.01, 0.1),
		{VariantIndex: 1, Status: types.VariantFailed, TotalFees: sdkmath.ZeroInt()},
		completedResult(2, 5000, 0.0001, 0.02),
	}

	ranked := RankVariants(results, w)
	require.Len(t, ranked, 3)
	assert.Equal(t, 2, ranked[0].VariantIndex)
	assert.Equal(t, 1, ranked[2].VariantIndex, "failed variants rank last")

	// Input order untouched.
	assert.Equal(t, 0, results[0].VariantIndex)
}
