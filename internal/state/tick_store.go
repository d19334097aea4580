// ./internal/state/tick_store.go
package state

import (
	"fmt"

	"github.com/curveforge/poolsim/internal/types"
)

// TickLog writes per-tick simulation records to the tick_logs table. It
// satisfies the strategy's state log interface and is safe for concurrent
// use: sweep workers share one instance and the connection pool handles the
// fan-in.
type TickLog struct {
	runID int64
}

// NewTickLog returns a tick sink bound to an existing run.
func NewTickLog(runID int64) *TickLog {
	return &TickLog{runID: runID}
}

// LogTick persists one tick record.
func (l *TickLog) LogTick(rec types.TickRecord) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO tick_logs (
			run_id, variant_index, tick_timestamp,
			market_price, pool_price, price_error,
			trades, volume, fees
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`
	_, err := DB.Exec(
		query,
		l.runID, rec.VariantIndex, rec.Timestamp,
		rec.MarketPrice, rec.PoolPrice, rec.PriceError,
		rec.Trades, rec.Volume.String(), rec.Fees.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to log tick for variant %d: %w", rec.VariantIndex, err)
	}
	return nil
}

// GetTickLogs returns one variant's tick records in chronological order.
func GetTickLogs(runID int64, variantIndex int) ([]types.TickRecord, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT variant_index, tick_timestamp, market_price, pool_price, price_error,
		       trades, volume, fees
		FROM tick_logs
		WHERE run_id = $1 AND variant_index = $2
		ORDER BY tick_timestamp;
	`
	rows, err := DB.Query(query, runID, variantIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to query tick logs: %w", err)
	}
	defer rows.Close()

	var ticks []types.TickRecord
	for rows.Next() {
		var (
			rec       types.TickRecord
			volumeStr string
			feesStr   string
		)
		err := rows.Scan(
			&rec.VariantIndex, &rec.Timestamp, &rec.MarketPrice, &rec.PoolPrice, &rec.PriceError,
			&rec.Trades, &volumeStr, &feesStr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tick log: %w", err)
		}
		rec.Volume, err = parseNumeric(volumeStr)
		if err != nil {
			return nil, fmt.Errorf("bad volume in tick log: %w", err)
		}
		rec.Fees, err = parseNumeric(feesStr)
		if err != nil {
			return nil, fmt.Errorf("bad fees in tick log: %w", err)
		}
		ticks = append(ticks, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tick logs: %w", err)
	}
	return ticks, nil
}
