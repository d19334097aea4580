package config

import (
	"github.com/rs/zerolog/log"
)

// Price source configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// PriceAPIBaseURL is the CryptoCompare histohour endpoint.
	PriceAPIBaseURL string
	// PriceAPIKey is the CryptoCompare API key.
	PriceAPIKey string
	// PriceDataCSV is a local CSV of hourly prices. When set it takes
	// priority over the API.
	PriceDataCSV string
)

// loadPriceSourceConfig loads price source configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadPriceSourceConfig() error {
	log.Info().Msg("Loading price source configuration from environment variables...")

	var err error

	PriceAPIBaseURL, err = getEnv("PRICE_API_BASE_URL")
	if err != nil {
		return err
	}

	PriceAPIKey, err = getEnv("PRICE_API_KEY")
	if err != nil {
		return err
	}

	PriceDataCSV, err = getEnv("PRICE_DATA_CSV")
	if err != nil {
		return err
	}

	log.Debug().
		Str("PriceAPIBaseURL", PriceAPIBaseURL).
		Str("PriceDataCSV", PriceDataCSV).
		Msg("Price source configuration loaded successfully.")

	return nil
}
