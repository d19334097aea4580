/*
This file loads a pair price series from a local CSV file.

A CSV source makes sweeps reproducible: the exact market window a decision was
based on can be checked in and replayed later, with no API key and no drift in
what the endpoint returns.
*/

package datafetcher

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/curveforge/poolsim/internal/types"
)

// LoadCSVSeries reads an hourly pair series from path. Expected columns are
// timestamp,price[,volume] where timestamp is unix seconds or RFC 3339. A
// header row is detected and skipped.
func LoadCSVSeries(path, base, quote string) (types.PriceSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.PriceSeries{}, fmt.Errorf("opening price CSV: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return types.PriceSeries{}, fmt.Errorf("reading price CSV %s: %w", path, err)
	}

	series := types.PriceSeries{Base: base, Quote: quote}
	for i, rec := range records {
		if len(rec) < 2 {
			return types.PriceSeries{}, fmt.Errorf("%w: row %d of %s has %d columns", ErrInvalidPriceData, i+1, path, len(rec))
		}

		ts, err := parseTimestamp(rec[0])
		if err != nil {
			if i == 0 {
				// Header row.
				continue
			}
			return types.PriceSeries{}, fmt.Errorf("%w: row %d of %s: %s", ErrInvalidPriceData, i+1, path, err)
		}

		price, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return types.PriceSeries{}, fmt.Errorf("%w: row %d of %s: bad price %q", ErrInvalidPriceData, i+1, path, rec[1])
		}

		var volume float64
		if len(rec) >= 3 && rec[2] != "" {
			volume, err = strconv.ParseFloat(rec[2], 64)
			if err != nil {
				return types.PriceSeries{}, fmt.Errorf("%w: row %d of %s: bad volume %q", ErrInvalidPriceData, i+1, path, rec[2])
			}
		}

		series.Data = append(series.Data, types.PriceData{
			Timestamp: ts,
			Price:     price,
			Volume:    volume,
		})
	}

	if len(series.Data) == 0 {
		return types.PriceSeries{}, fmt.Errorf("%w: no rows in %s", ErrInsufficientData, path)
	}

	series.SortChronological()
	if err := series.Validate(); err != nil {
		return types.PriceSeries{}, fmt.Errorf("%w: %s: %s", ErrInvalidPriceData, path, err)
	}

	priceLogger.Info().
		Str("path", path).
		Str("base", base).
		Str("quote", quote).
		Int("dataPoints", len(series.Data)).
		Msg("Loaded price series from CSV")

	return series, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0), nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
