/*

Market price series types shared by the data fetcher, the trading strategy,
and the analytics layer.

*/

package types

import (
	"errors"
	"sort"
	"time"
)

var ErrEmptySeries = errors.New("price series is empty")

// PriceData is one observation of a market pair.
type PriceData struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
}

// PriceSeries is a chronological series of observations for one pair.
type PriceSeries struct {
	// Pair is the market being observed, quoted as units of Quote per one
	// Base (e.g. Base "stMATIC", Quote "WMATIC").
	Base  string      `json:"base"`
	Quote string      `json:"quote"`
	Data  []PriceData `json:"data"`
}

// SortChronological orders the series in place by timestamp.
func (s *PriceSeries) SortChronological() {
	sort.Slice(s.Data, func(i, j int) bool {
		return s.Data[i].Timestamp.Before(s.Data[j].Timestamp)
	})
}

// Validate checks the series is non-empty with positive prices throughout.
func (s *PriceSeries) Validate() error {
	if len(s.Data) == 0 {
		return ErrEmptySeries
	}
	for _, d := range s.Data {
		if d.Price <= 0 {
			return errors.New("non-positive price in series")
		}
	}
	return nil
}
