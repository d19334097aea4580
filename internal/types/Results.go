/*

Record types for simulation output: per-tick logs, per-variant summaries, and
whole-run metadata. These are the rows the state layer persists and the web
layer serves.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// Variant terminal statuses.
const (
	VariantCompleted = "completed"
	VariantFailed    = "failed"
)

// TickRecord is one simulated tick of one pool variant.
type TickRecord struct {
	VariantIndex int       `json:"variant_index"`
	Timestamp    time.Time `json:"timestamp"`

	MarketPrice float64 `json:"market_price"`
	PoolPrice   float64 `json:"pool_price"`
	// PriceError is |pool - market| / market after arbitrage.
	PriceError float64 `json:"price_error"`

	Trades int `json:"trades"`
	// Volume and Fees are normalized to the 10^18 basis.
	Volume sdkmath.Int `json:"volume"`
	Fees   sdkmath.Int `json:"fees"`
}

// VariantResult summarizes one finished (or failed) pool variant.
type VariantResult struct {
	VariantIndex int               `json:"variant_index"`
	Params       map[string]string `json:"params"`

	Status     string `json:"status"`
	FailReason string `json:"fail_reason,omitempty"`

	Ticks  int `json:"ticks"`
	Trades int `json:"trades"`

	TotalVolume sdkmath.Int `json:"total_volume"`
	TotalFees   sdkmath.Int `json:"total_fees"`

	MeanPriceError       float64 `json:"mean_price_error"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	FinalVirtualPrice    float64 `json:"final_virtual_price"`
}

// RunRecord is the metadata of one sweep run.
type RunRecord struct {
	ID         int64     `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	PoolFamily string   `json:"pool_family"`
	Coins      []string `json:"coins"`
	Axes       []string `json:"axes"`

	Variants  int `json:"variants"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}
