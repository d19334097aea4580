/*

The pool package models the AMM pool families the simulator sweeps over:
plain stableswap, stableswap metapools, and two-coin cryptoswap. Every family
implements the SimPool contract so the sampler and the trading strategy can
drive any of them without knowing which curve they are on.

Balances are held in each pool's native token units; the solvers in
internal/curvemath operate on 10^18-normalized virtual balances derived from
them. Fees use the 10^10 denominator of the contracts being modeled.

*/

package pool

import (
	"fmt"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
)

// FeeDenominator is the fixed-point scale for all fee parameters.
var FeeDenominator = sdkmath.NewInt(10_000_000_000)

// TradeResult reports an executed swap. AmountIn echoes the input in its
// coin's native units; AmountOut, Fee, and Volume are normalized to the
// common 10^18 basis so they aggregate across pairs with different decimals.
type TradeResult struct {
	AmountIn  sdkmath.Int
	AmountOut sdkmath.Int
	Fee       sdkmath.Int
	Volume    sdkmath.Int
}

// Snapshot captures a pool's state for logging and persistence. Base is
// non-nil only for metapools.
type Snapshot struct {
	Family      string
	Coins       []string
	Balances    []sdkmath.Int
	D           sdkmath.Int
	PriceScale  sdkmath.Int
	PriceOracle sdkmath.Int
	Base        *Snapshot
}

// SimPool is the trading capability contract a pool exposes to the simulator.
//
// Implementations are not safe for concurrent use; the runner gives each
// worker its own Clone.
type SimPool interface {
	// PrepareForTrades readies the pool for a new tick at the given time.
	// Time-dependent state such as price oracles anchors to ts.
	PrepareForTrades(ts time.Time)

	// Price returns the spot price of coinOut denominated in coinIn,
	// optionally reduced by the swap fee.
	Price(coinIn, coinOut string, useFee bool) (float64, error)

	// Trade swaps amountIn of coinIn for coinOut, mutating pool state.
	Trade(coinIn, coinOut string, amountIn sdkmath.Int) (TradeResult, error)

	// GetInAmount returns the input amount that would leave coinOut's
	// balance at outBalancePerc of its current value. Used to bound trade
	// size searches.
	GetInAmount(coinIn, coinOut string, outBalancePerc float64) (sdkmath.Int, error)

	NumberOfCoins() int
	CoinNames() []string

	// SetParameter applies a sweep value to a named parameter. Unknown names
	// return ErrUnsupportedParameter.
	SetParameter(name string, value sdkmath.Int) error

	// Setters lists the parameter names SetParameter accepts.
	Setters() []string

	// Clone returns a deep, independent copy of the pool.
	Clone() SimPool

	Snapshot() Snapshot
}

// coinIndex resolves a coin reference against the pool's coin names. Both the
// name itself and its positional index as a decimal string are accepted, so
// callers wired from config files can address coins either way.
func coinIndex(coins []string, ref string) (int, error) {
	for i, name := range coins {
		if name == ref {
			return i, nil
		}
	}
	if idx, err := strconv.Atoi(ref); err == nil && idx >= 0 && idx < len(coins) {
		return idx, nil
	}
	return 0, fmt.Errorf("%w: %q not in %v", ErrUnknownCoin, ref, coins)
}

// hasSetter reports whether name is present in the setter list.
func hasSetter(setters []string, name string) bool {
	for _, s := range setters {
		if s == name {
			return true
		}
	}
	return false
}

func copyInts(src []sdkmath.Int) []sdkmath.Int {
	out := make([]sdkmath.Int, len(src))
	copy(out, src)
	return out
}

func copyStrings(src []string) []string {
	out := make([]string, len(src))
	copy(out, src)
	return out
}
