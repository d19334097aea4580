/*
This file is used to fetch historical price data from the CryptoCompare API.

A sweep replays a fixed window of hourly pair prices, so the fetcher insists
on a complete, validated window: short or corrupt data fails the fetch rather
than silently shortening the simulation.
*/

package datafetcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/curveforge/poolsim/internal/config"
	"github.com/curveforge/poolsim/internal/logger"
	"github.com/curveforge/poolsim/internal/types"
)

var priceLogger = logger.GetForComponent("price_retriever")

var ErrInvalidPriceData = errors.New("invalid price data received")
var ErrInsufficientData = errors.New("insufficient price data for simulation window")
var ErrAPIConfiguration = errors.New("API configuration error")

const (
	MAX_RETRIES     = 3
	TIMEOUT_SECONDS = 30
)

type CryptoCompareResponse struct {
	Response   string   `json:"Response"`
	Message    string   `json:"Message"`
	HasWarning bool     `json:"HasWarning"`
	Type       int      `json:"Type"`
	RateLimit  struct{} `json:"RateLimit"`
	Data       struct {
		Aggregated bool          `json:"Aggregated"`
		TimeFrom   int64         `json:"TimeFrom"`
		TimeTo     int64         `json:"TimeTo"`
		Data       []ohlcvRecord `json:"Data"`
	} `json:"Data"`
}

type ohlcvRecord struct {
	Time             int64   `json:"time"`
	Close            float64 `json:"close"`
	High             float64 `json:"high"`
	Low              float64 `json:"low"`
	Open             float64 `json:"open"`
	VolumeFrom       float64 `json:"volumefrom"`
	VolumeTo         float64 `json:"volumeto"`
	ConversionType   string  `json:"conversionType"`
	ConversionSymbol string  `json:"conversionSymbol"`
}

// ccID maps a pool coin symbol to its CryptoCompare ID, falling back to the
// upper-cased symbol when no mapping exists.
func ccID(coin string) string {
	symbol := strings.TrimSpace(strings.ToUpper(coin))
	if id, ok := config.CoinToCCId[symbol]; ok {
		return id
	}
	return symbol
}

// FetchPairSeries fetches `hours` of hourly prices for the base/quote pair.
// Both legs are fetched in USD and divided, so any two listed coins form a
// pair even when the venue has no direct market for them.
func FetchPairSeries(base, quote string, hours int) (types.PriceSeries, error) {
	if hours <= 1 {
		return types.PriceSeries{}, fmt.Errorf("%w: window of %d hours is too short", ErrInsufficientData, hours)
	}

	baseLeg, err := fetchCoinUSD(base, hours)
	if err != nil {
		return types.PriceSeries{}, err
	}
	quoteLeg, err := fetchCoinUSD(quote, hours)
	if err != nil {
		return types.PriceSeries{}, err
	}

	series := types.PriceSeries{Base: base, Quote: quote}
	quoteAt := make(map[int64]types.PriceData, len(quoteLeg))
	for _, q := range quoteLeg {
		quoteAt[q.Timestamp.Unix()] = q
	}
	for _, b := range baseLeg {
		q, ok := quoteAt[b.Timestamp.Unix()]
		if !ok {
			continue
		}
		series.Data = append(series.Data, types.PriceData{
			Timestamp: b.Timestamp,
			Price:     b.Price / q.Price,
			Volume:    math.Min(b.Volume, q.Volume),
		})
	}

	if len(series.Data) < hours {
		priceLogger.Error().
			Str("base", base).
			Str("quote", quote).
			Int("aligned", len(series.Data)).
			Int("required", hours).
			Msg("Legs did not align over the requested window")
		return types.PriceSeries{}, fmt.Errorf("%w: %d aligned hours for %s/%s, required %d",
			ErrInsufficientData, len(series.Data), base, quote, hours)
	}

	series.SortChronological()
	if err := series.Validate(); err != nil {
		return types.PriceSeries{}, fmt.Errorf("%w: %s/%s: %s", ErrInvalidPriceData, base, quote, err)
	}
	return series, nil
}

// fetchCoinUSD fetches the USD leg for one coin with strict validation.
func fetchCoinUSD(coin string, hours int) ([]types.PriceData, error) {
	symbol := ccID(coin)

	if config.PriceAPIKey == "" {
		return nil, fmt.Errorf("%w: PRICE_API_KEY is empty", ErrAPIConfiguration)
	}
	if config.PriceAPIBaseURL == "" {
		return nil, fmt.Errorf("%w: PRICE_API_BASE_URL is empty", ErrAPIConfiguration)
	}

	url := fmt.Sprintf("%s?fsym=%s&tsym=USD&limit=%d&api_key=%s",
		config.PriceAPIBaseURL, symbol, hours, config.PriceAPIKey)

	client := &http.Client{
		Timeout: TIMEOUT_SECONDS * time.Second,
	}

	var lastErr error
	for attempt := 1; attempt <= MAX_RETRIES; attempt++ {
		priceLogger.Debug().
			Str("coin", coin).
			Str("symbol", symbol).
			Int("attempt", attempt).
			Int("maxRetries", MAX_RETRIES).
			Msg("Making API request")

		resp, err := client.Get(url)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed on attempt %d: %w", attempt, err)
			priceLogger.Warn().
				Err(err).
				Str("coin", coin).
				Int("attempt", attempt).
				Msg("HTTP request failed, will retry if attempts remain")

			if attempt < MAX_RETRIES {
				time.Sleep(time.Duration(attempt) * time.Second)
				continue
			}
			break
		}

		result, err := processAPIResponse(resp, coin, hours)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			if attempt < MAX_RETRIES {
				priceLogger.Warn().
					Err(err).
					Str("coin", coin).
					Int("attempt", attempt).
					Msg("API response processing failed, will retry if attempts remain")
				time.Sleep(time.Duration(attempt) * time.Second)
				continue
			}
			break
		}
		return result, nil
	}

	priceLogger.Error().
		Err(lastErr).
		Str("coin", coin).
		Int("maxRetries", MAX_RETRIES).
		Msg("All retry attempts failed")
	return nil, fmt.Errorf("failed to fetch price data for %s after %d attempts: %w", coin, MAX_RETRIES, lastErr)
}

// processAPIResponse handles the API response with strict validation.
func processAPIResponse(resp *http.Response, coin string, hours int) ([]types.PriceData, error) {
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d for %s", resp.StatusCode, coin)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body for %s: %w", coin, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response body for %s", coin)
	}

	var cryptoResp CryptoCompareResponse
	if err := json.Unmarshal(body, &cryptoResp); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response for %s: %w", coin, err)
	}

	if cryptoResp.Response != "Success" {
		priceLogger.Error().
			Str("coin", coin).
			Str("apiResponse", cryptoResp.Response).
			Str("apiMessage", cryptoResp.Message).
			Msg("API returned error response")
		return nil, fmt.Errorf("API error for %s: %s - %s", coin, cryptoResp.Response, cryptoResp.Message)
	}

	if len(cryptoResp.Data.Data) == 0 {
		return nil, fmt.Errorf("no data available for %s: %s", coin, cryptoResp.Message)
	}

	if cryptoResp.HasWarning {
		priceLogger.Warn().
			Str("coin", coin).
			Int("dataPointCount", len(cryptoResp.Data.Data)).
			Str("message", cryptoResp.Message).
			Msg("API returned warning but has data - continuing")
	}

	if len(cryptoResp.Data.Data) < hours {
		return nil, fmt.Errorf("%w: received %d hours for %s, required %d",
			ErrInsufficientData, len(cryptoResp.Data.Data), coin, hours)
	}

	priceData := make([]types.PriceData, 0, len(cryptoResp.Data.Data))
	for i, data := range cryptoResp.Data.Data {
		if err := validatePriceDataPoint(data, coin); err != nil {
			priceLogger.Error().
				Err(err).
				Str("coin", coin).
				Int("dataPointIndex", i).
				Int64("timestamp", data.Time).
				Msg("Invalid data point")
			return nil, fmt.Errorf("%w: data point %d for %s: %s", ErrInvalidPriceData, i, coin, err)
		}
		priceData = append(priceData, types.PriceData{
			Timestamp: time.Unix(data.Time, 0),
			Price:     data.Close,
			Volume:    data.VolumeTo,
		})
	}

	if err := validateTimeSequence(priceData, coin); err != nil {
		return nil, err
	}

	// Take exactly the most recent window.
	if len(priceData) > hours {
		priceData = priceData[len(priceData)-hours:]
	}

	priceLogger.Info().
		Str("coin", coin).
		Int("dataPoints", len(priceData)).
		Time("oldestData", priceData[0].Timestamp).
		Time("newestData", priceData[len(priceData)-1].Timestamp).
		Msg("Successfully retrieved and validated price data")

	return priceData, nil
}

// validatePriceDataPoint performs strict validation on individual price data points.
func validatePriceDataPoint(data ohlcvRecord, coin string) error {
	if data.Time <= 0 {
		return fmt.Errorf("invalid timestamp for %s: %d", coin, data.Time)
	}

	prices := []struct {
		value float64
		name  string
	}{
		{data.Close, "close"},
		{data.High, "high"},
		{data.Low, "low"},
		{data.Open, "open"},
	}
	for _, price := range prices {
		if math.IsNaN(price.value) || math.IsInf(price.value, 0) {
			return fmt.Errorf("%s price for %s is not finite: %f", price.name, coin, price.value)
		}
		if price.value <= 0 {
			return fmt.Errorf("%s price for %s must be positive: %f", price.name, coin, price.value)
		}
	}

	if data.High < data.Low {
		return fmt.Errorf("high price (%f) cannot be less than low price (%f) for %s", data.High, data.Low, coin)
	}
	if data.Close < data.Low || data.Close > data.High {
		return fmt.Errorf("close price (%f) must be between low (%f) and high (%f) for %s", data.Close, data.Low, data.High, coin)
	}

	volumes := []struct {
		value float64
		name  string
	}{
		{data.VolumeFrom, "volumeFrom"},
		{data.VolumeTo, "volumeTo"},
	}
	for _, volume := range volumes {
		if math.IsNaN(volume.value) || math.IsInf(volume.value, 0) {
			return fmt.Errorf("%s for %s is not finite: %f", volume.name, coin, volume.value)
		}
		if volume.value < 0 {
			return fmt.Errorf("%s for %s cannot be negative: %f", volume.name, coin, volume.value)
		}
	}

	return nil
}

// validateTimeSequence ensures the price data has proper chronological sequence.
func validateTimeSequence(priceData []types.PriceData, coin string) error {
	if len(priceData) < 2 {
		return fmt.Errorf("insufficient data points to validate sequence for %s", coin)
	}

	for i := 1; i < len(priceData); i++ {
		if priceData[i].Timestamp.Before(priceData[i-1].Timestamp) {
			return fmt.Errorf("data points not in chronological order for %s at index %d", coin, i)
		}

		timeDiff := priceData[i].Timestamp.Sub(priceData[i-1].Timestamp)
		if timeDiff < 30*time.Minute || timeDiff > 90*time.Minute {
			priceLogger.Warn().
				Str("coin", coin).
				Int("index", i).
				Dur("timeDiff", timeDiff).
				Msg("Unusual time gap between data points")
		}
	}

	return nil
}
