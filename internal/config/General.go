package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// DBHost is the PostgreSQL host for simulation results.
	DBHost string
	// DBPort is the PostgreSQL port.
	DBPort uint64
	// DBUser is the PostgreSQL user.
	DBUser string
	// DBPassword is the PostgreSQL password.
	DBPassword string
	// DBName is the database holding sweep runs and tick logs.
	DBName string

	// WebPort is the port the results API listens on.
	WebPort uint64

	// SimWorkers is the number of concurrent variant workers per sweep.
	SimWorkers uint64

	// PriceHours is how many hours of market data each sweep replays.
	PriceHours uint64

	// ArbThreshold is the minimum relative price edge the simulated
	// arbitrageur trades on.
	ArbThreshold float64
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	DBHost, err = getEnv("DB_HOST")
	if err != nil {
		return err
	}

	DBPort, err = getEnvAsUint64("DB_PORT")
	if err != nil {
		return err
	}

	DBUser, err = getEnv("DB_USER")
	if err != nil {
		return err
	}

	DBPassword, err = getEnv("DB_PASSWORD")
	if err != nil {
		return err
	}

	DBName, err = getEnv("DB_NAME")
	if err != nil {
		return err
	}

	WebPort, err = getEnvAsUint64("WEB_PORT")
	if err != nil {
		return err
	}

	SimWorkers, err = getEnvAsUint64("SIM_WORKERS")
	if err != nil {
		return err
	}
	if SimWorkers == 0 {
		return errors.New("SIM_WORKERS must be at least 1")
	}

	PriceHours, err = getEnvAsUint64("PRICE_HOURS")
	if err != nil {
		return err
	}

	ArbThreshold, err = getEnvAsFloat64("ARB_THRESHOLD")
	if err != nil {
		return err
	}

	// Load price source configuration
	if err := loadPriceSourceConfig(); err != nil {
		return err
	}

	// Expand the tilde (~) in the CSV path to the user's home directory.
	if strings.HasPrefix(PriceDataCSV, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		PriceDataCSV = filepath.Join(home, PriceDataCSV[2:])
	}

	log.Debug().
		Str("DBHost", DBHost).
		Str("DBName", DBName).
		Uint64("WebPort", WebPort).
		Uint64("SimWorkers", SimWorkers).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsFloat64 retrieves an environment variable as a float64. Returns error if not set or invalid.
func getEnvAsFloat64(key string) (float64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid float64, got: " + valueStr)
	}
	return value, nil
}
