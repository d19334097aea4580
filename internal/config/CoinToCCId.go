/*
Crypto Compare is used for hourly market price data.

This file contains the mapping of pool coin symbols to their corresponding
Crypto Compare ID. Wrapped and liquid-staked tokens usually trade under the
symbol of the underlying asset.

If a coin doesnt have an entry here it will by default use the symbol as the
CCID. Because odds are it will work.
*/

package config

var (
	CoinToCCId = map[string]string{
		"WMATIC":  "MATIC",
		"STMATIC": "MATIC",
		"WETH":    "ETH",
		"STETH":   "STETH",
		"WBTC":    "WBTC",
		"USDC":    "USDC",
		"USDT":    "USDT",
		"DAI":     "DAI",
		"FRAX":    "FRAX",
		"CRV":     "CRV",
	}
)
