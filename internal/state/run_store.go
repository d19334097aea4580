// ./internal/state/run_store.go
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/lib/pq" // PostgreSQL driver for array support
	"github.com/rs/zerolog/log"

	"github.com/curveforge/poolsim/internal/types"
)

// CreateRun inserts a new sweep run and returns its ID. Tick logs reference
// the run, so the row exists before the first worker starts.
func CreateRun(run types.RunRecord) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO sim_runs (started_at, pool_family, coins, axes, variants)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING run_id;
	`

	var runID int64
	err := DB.QueryRow(
		query,
		run.StartedAt, run.PoolFamily, pq.Array(run.Coins), pq.Array(run.Axes), run.Variants,
	).Scan(&runID)
	if err != nil {
		return 0, fmt.Errorf("failed to create sweep run: %w", err)
	}

	log.Info().
		Int64("run_id", runID).
		Str("pool_family", run.PoolFamily).
		Int("variants", run.Variants).
		Msg("Sweep run created in database")

	return runID, nil
}

// FinalizeRun records the outcome of a finished sweep.
func FinalizeRun(runID int64, run types.RunRecord) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	query := `
		UPDATE sim_runs
		SET finished_at = $2, variants = $3, completed = $4, failed = $5
		WHERE run_id = $1;
	`
	res, err := DB.Exec(query, runID, run.FinishedAt, run.Variants, run.Completed, run.Failed)
	if err != nil {
		return fmt.Errorf("failed to finalize run %d: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %d not found", runID)
	}

	log.Info().
		Int64("run_id", runID).
		Int("completed", run.Completed).
		Int("failed", run.Failed).
		Msg("Sweep run finalized in database")

	return nil
}

// SaveVariantResult persists one variant summary for a run.
func SaveVariantResult(runID int64, result types.VariantResult) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	paramsJSON, err := json.Marshal(result.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal variant params: %w", err)
	}

	query := `
		INSERT INTO variant_results (
			run_id, variant_index, params, status, fail_reason,
			ticks, trades, total_volume, total_fees,
			mean_price_error, annualized_volatility, final_virtual_price
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
	`
	_, err = DB.Exec(
		query,
		runID, result.VariantIndex, paramsJSON, result.Status, result.FailReason,
		result.Ticks, result.Trades, result.TotalVolume.String(), result.TotalFees.String(),
		result.MeanPriceError, result.AnnualizedVolatility, result.FinalVirtualPrice,
	)
	if err != nil {
		return fmt.Errorf("failed to save variant result %d of run %d: %w", result.VariantIndex, runID, err)
	}
	return nil
}

// GetRuns returns the most recent sweep runs, newest first.
func GetRuns(limit int) ([]types.RunRecord, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT run_id, started_at, COALESCE(finished_at, started_at),
		       pool_family, coins, axes, variants, completed, failed
		FROM sim_runs
		ORDER BY started_at DESC
		LIMIT $1;
	`
	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sweep runs: %w", err)
	}
	defer rows.Close()

	var runs []types.RunRecord
	for rows.Next() {
		var run types.RunRecord
		err := rows.Scan(
			&run.ID, &run.StartedAt, &run.FinishedAt,
			&run.PoolFamily, pq.Array(&run.Coins), pq.Array(&run.Axes),
			&run.Variants, &run.Completed, &run.Failed,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sweep run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sweep runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one sweep run by ID.
func GetRun(runID int64) (types.RunRecord, error) {
	if DB == nil {
		return types.RunRecord{}, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT run_id, started_at, COALESCE(finished_at, started_at),
		       pool_family, coins, axes, variants, completed, failed
		FROM sim_runs
		WHERE run_id = $1;
	`
	var run types.RunRecord
	err := DB.QueryRow(query, runID).Scan(
		&run.ID, &run.StartedAt, &run.FinishedAt,
		&run.PoolFamily, pq.Array(&run.Coins), pq.Array(&run.Axes),
		&run.Variants, &run.Completed, &run.Failed,
	)
	if err == sql.ErrNoRows {
		return types.RunRecord{}, fmt.Errorf("run %d not found", runID)
	}
	if err != nil {
		return types.RunRecord{}, fmt.Errorf("failed to query run %d: %w", runID, err)
	}
	return run, nil
}

// GetVariantResults returns a run's variant summaries ordered by index.
func GetVariantResults(runID int64) ([]types.VariantResult, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT variant_index, params, status, fail_reason,
		       ticks, trades, total_volume, total_fees,
		       mean_price_error, annualized_volatility, final_virtual_price
		FROM variant_results
		WHERE run_id = $1
		ORDER BY variant_index;
	`
	rows, err := DB.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query variant results of run %d: %w", runID, err)
	}
	defer rows.Close()

	var results []types.VariantResult
	for rows.Next() {
		var (
			res        types.VariantResult
			paramsJSON []byte
			volumeStr  string
			feesStr    string
		)
		err := rows.Scan(
			&res.VariantIndex, &paramsJSON, &res.Status, &res.FailReason,
			&res.Ticks, &res.Trades, &volumeStr, &feesStr,
			&res.MeanPriceError, &res.AnnualizedVolatility, &res.FinalVirtualPrice,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan variant result: %w", err)
		}

		if len(paramsJSON) > 0 {
			if err := json.Unmarshal(paramsJSON, &res.Params); err != nil {
				return nil, fmt.Errorf("failed to unmarshal variant params: %w", err)
			}
		}
		res.TotalVolume, err = parseNumeric(volumeStr)
		if err != nil {
			return nil, fmt.Errorf("bad total_volume for variant %d: %w", res.VariantIndex, err)
		}
		res.TotalFees, err = parseNumeric(feesStr)
		if err != nil {
			return nil, fmt.Errorf("bad total_fees for variant %d: %w", res.VariantIndex, err)
		}

		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate variant results: %w", err)
	}
	return results, nil
}

// parseNumeric converts a NUMERIC column, read as text, into an Int.
func parseNumeric(s string) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("not an integer: %q", s)
	}
	return v, nil
}
