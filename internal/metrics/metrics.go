/*

This file contains the analytics over finished simulation variants: realized
volatility of the pool price, a composite score per variant, and ranking
across the sweep.

*/

package metrics

import (
	"errors"
	"math"
	"sort"

	sdkmath "cosmossdk.io/math"

	"github.com/curveforge/poolsim/internal/logger"
	"github.com/curveforge/poolsim/internal/types"
	"github.com/curveforge/poolsim/internal/utils"
)

// Annualization factors by data frequency.
const (
	HourlyAnnualization = 8760.0
	DailyAnnualization  = 365.0
)

// ErrInsufficientData indicates that not enough data points were provided
// to calculate volatility (need at least 2 points for 1 return).
var ErrInsufficientData = errors.New("insufficient data points to calculate volatility")

var metricsLogger = logger.GetForComponent("metrics")

// AnnualizedVolatility calculates the annualized historical volatility from a
// series of price data, using logarithmic returns and population standard
// deviation. The data is sorted chronologically first; the annualization
// factor should match the sampling frequency.
func AnnualizedVolatility(prices []types.PriceData, annualizationFactor float64) (float64, error) {
	n := len(prices)
	if n < 2 {
		return 0, ErrInsufficientData
	}

	sort.Slice(prices, func(i, j int) bool {
		return prices[i].Timestamp.Before(prices[j].Timestamp)
	})

	logReturns := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		current := prices[i].Price
		previous := prices[i-1].Price
		if previous <= 0 || current <= 0 {
			continue
		}
		logReturns = append(logReturns, math.Log(current/previous))
	}

	numReturns := len(logReturns)
	if numReturns == 0 {
		return 0, ErrInsufficientData
	}

	var sum float64
	for _, r := range logReturns {
		sum += r
	}
	mean := sum / float64(numReturns)

	var sumSqDiff float64
	for _, r := range logReturns {
		sumSqDiff += math.Pow(r-mean, 2)
	}
	variance := sumSqDiff / float64(numReturns)

	return math.Sqrt(variance) * math.Sqrt(annualizationFactor), nil
}

// ScoringWeights weighs the components of a variant's score. Fees earn,
// tracking error and realized volatility cost.
type ScoringWeights struct {
	Fees       float64 `json:"fees"`
	PriceError float64 `json:"price_error"`
	Volatility float64 `json:"volatility"`
}

func DefaultWeights() ScoringWeights {
	return ScoringWeights{
		Fees:       1.0,
		PriceError: 100.0,
		Volatility: 0.1,
	}
}

// ScoreVariant collapses a completed variant into a single comparable number.
// Failed variants score negative infinity.
func ScoreVariant(res types.VariantResult, w ScoringWeights) float64 {
	if res.Status != types.VariantCompleted {
		return math.Inf(-1)
	}

	feesF, err := utils.RatioFloat64(res.TotalFees, sdkmath.NewIntWithDecimal(1, 18))
	if err != nil {
		metricsLogger.Warn().Err(err).Int("variant", res.VariantIndex).Msg("Fee conversion failed, scoring fees as zero")
		feesF = 0
	}

	// Log-scaled fees keep one whale variant from drowning the rest.
	feeScore := 0.0
	if feesF > 0 {
		feeScore = math.Log1p(feesF)
	}
	return w.Fees*feeScore - w.PriceError*res.MeanPriceError - w.Volatility*res.AnnualizedVolatility
}

// RankVariants orders results best first by score. The input is not modified.
func RankVariants(results []types.VariantResult, w ScoringWeights) []types.VariantResult {
	ranked := make([]types.VariantResult, len(results))
	copy(ranked, results)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ScoreVariant(ranked[i], w) > ScoreVariant(ranked[j], w)
	})
	return ranked
}
