// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS sim_runs (
			run_id BIGSERIAL PRIMARY KEY,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ,
			pool_family VARCHAR(50) NOT NULL,
			coins TEXT[] NOT NULL,
			axes TEXT[] NOT NULL,
			variants INTEGER NOT NULL DEFAULT 0,
			completed INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_sim_runs_started_at ON sim_runs(started_at DESC);

		CREATE TABLE IF NOT EXISTS variant_results (
			result_id BIGSERIAL PRIMARY KEY,
			run_id BIGINT NOT NULL REFERENCES sim_runs(run_id) ON DELETE CASCADE,
			variant_index INTEGER NOT NULL,
			params JSONB,
			status VARCHAR(20) NOT NULL,
			fail_reason TEXT,
			ticks INTEGER NOT NULL,
			trades INTEGER NOT NULL,
			-- Volume and fee totals are 256-bit integers; NUMERIC(78, 0) holds them exactly.
			total_volume NUMERIC(78, 0) NOT NULL,
			total_fees NUMERIC(78, 0) NOT NULL,
			mean_price_error DOUBLE PRECISION NOT NULL DEFAULT 0,
			annualized_volatility DOUBLE PRECISION NOT NULL DEFAULT 0,
			final_virtual_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			CONSTRAINT uq_variant_results_run_variant UNIQUE (run_id, variant_index)
		);
		CREATE INDEX IF NOT EXISTS idx_variant_results_run ON variant_results(run_id, variant_index);

		CREATE TABLE IF NOT EXISTS tick_logs (
			tick_id BIGSERIAL PRIMARY KEY,
			run_id BIGINT NOT NULL REFERENCES sim_runs(run_id) ON DELETE CASCADE,
			variant_index INTEGER NOT NULL,
			tick_timestamp TIMESTAMPTZ NOT NULL,
			market_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			pool_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			price_error DOUBLE PRECISION NOT NULL DEFAULT 0,
			trades INTEGER NOT NULL,
			volume NUMERIC(78, 0) NOT NULL,
			fees NUMERIC(78, 0) NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tick_logs_run_variant ON tick_logs(run_id, variant_index, tick_timestamp);
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
