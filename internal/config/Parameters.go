/*

This file contains the default pool preset and sweep grid for the simulator.

The preset mirrors a live two-coin liquid staking pool; the sweep axes bracket
its deployed parameters so a run answers "was this parameterization the right
one" against real market data.

*/

package config

import (
	sdkmath "cosmossdk.io/math"

	"github.com/curveforge/poolsim/internal/pool"
	"github.com/curveforge/poolsim/internal/sampler"
)

// DefaultPoolParams returns the baseline pool the sweep perturbs: the
// stMATIC/WMATIC pool as deployed, seeded with a balanced two-million-coin
// position at a 1:1 price scale.
func DefaultPoolParams() pool.CryptoSwapParams {
	return pool.CryptoSwapParams{
		Coins:      []string{"stMATIC", "WMATIC"},
		Precisions: []sdkmath.Int{sdkmath.OneInt(), sdkmath.OneInt()},

		A:     sdkmath.NewInt(4000000),
		Gamma: sdkmath.NewInt(25000000000000),

		MidFee:   sdkmath.NewInt(1542000),
		OutFee:   sdkmath.NewInt(298650000),
		FeeGamma: sdkmath.NewInt(89560000000000000),

		AllowedExtraProfit: sdkmath.NewInt(2500000000000),
		AdjustmentStep:     sdkmath.NewInt(146000000000000),
		MAHalfTime:         sdkmath.NewInt(600),

		InitialPrice: sdkmath.NewIntWithDecimal(1, 18),
		Balances: []sdkmath.Int{
			sdkmath.NewIntWithDecimal(2, 24),
			sdkmath.NewIntWithDecimal(2, 24),
		},
	}
}

// DefaultSweepAxes returns the stock sweep grid. Each axis includes the
// deployed value so the baseline is always one of the variants.
func DefaultSweepAxes() []sampler.Axis {
	return []sampler.Axis{
		{
			Name: "A",
			Values: []sdkmath.Int{
				sdkmath.NewInt(4000000),
				sdkmath.NewInt(4850000),
				sdkmath.NewInt(50000000),
			},
		},
		{
			Name: "mid_fee",
			Values: []sdkmath.Int{
				sdkmath.NewInt(1542000),
				sdkmath.NewInt(6541100),
				sdkmath.NewInt(39842100),
			},
		},
		{
			Name: "fee_gamma",
			Values: []sdkmath.Int{
				sdkmath.NewInt(89560000000000000),
				sdkmath.NewInt(50000000000000000),
			},
		},
	}
}
