package types

import (
	"fmt"
	"math"
	"time"
)

// Bar is one OHLCV candle. Timestamp is epoch milliseconds.
type Bar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Time returns the bar timestamp as a UTC time.
func (b Bar) Time() time.Time {
	return time.UnixMilli(b.Timestamp).UTC()
}

// Validate checks low <= min(open, close) <= max(open, close) <= high and volume >= 0.
func (b Bar) Validate() error {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("bar %d has non-finite value: %w", b.Timestamp, ErrInvalidInputSeries)
		}
	}

	lo := math.Min(b.Open, b.Close)
	hi := math.Max(b.Open, b.Close)
	if b.Low > lo || hi > b.High {
		return fmt.Errorf("bar %d violates low<=open,close<=high (o=%v h=%v l=%v c=%v): %w",
			b.Timestamp, b.Open, b.High, b.Low, b.Close, ErrInvalidInputSeries)
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar %d has negative volume %v: %w", b.Timestamp, b.Volume, ErrInvalidInputSeries)
	}
	return nil
}

// ValidateSeries validates every bar and requires non-decreasing timestamps.
func ValidateSeries(bars []Bar) error {
	for i, b := range bars {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("index %d: %w", i, err)
		}
		if i > 0 && b.Timestamp < bars[i-1].Timestamp {
			return fmt.Errorf("index %d: timestamp %d before %d: %w", i, b.Timestamp, bars[i-1].Timestamp, ErrInvalidInputSeries)
		}
	}
	return nil
}

// Closes validates the bars and extracts their close prices.
func Closes(bars []Bar) ([]float64, error) {
	if err := ValidateSeries(bars); err != nil {
		return nil, err
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes, nil
}
