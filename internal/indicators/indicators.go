package indicators

import (
	"fmt"

	"github.com/jwtly10/tradedesk/internal/types"
)

const (
	DefaultRSIPeriod       = 14
	DefaultMACDFast        = 12
	DefaultMACDSlow        = 26
	DefaultMACDSignal      = 9
	DefaultBollingerPeriod = 20
	DefaultBollingerK      = 2.0
	DefaultATRPeriod       = 14
)

// SMA is the mean of the trailing period values. The first period-1 points are not ready.
func SMA(values []float64, period int) (Series, error) {
	if err := validatePeriod("sma", period); err != nil {
		return nil, err
	}
	if err := validateValues(values); err != nil {
		return nil, err
	}

	sma := NewSMA(period)
	out := make(Series, len(values))
	for i, v := range values {
		sma.Update(v)
		if sma.Ready() {
			out[i] = Point{Value: sma.Value(), Ready: true}
		}
	}
	return out, nil
}

// EMA is seeded with the first value and is defined from index 0.
func EMA(values []float64, period int) (Series, error) {
	if err := validatePeriod("ema", period); err != nil {
		return nil, err
	}
	if err := validateValues(values); err != nil {
		return nil, err
	}
	return ema(values, period), nil
}

func ema(values []float64, period int) Series {
	e := NewEMA(period)
	out := make(Series, len(values))
	for i, v := range values {
		e.Update(v)
		out[i] = Point{Value: e.Value(), Ready: true}
	}
	return out
}

// RSI averages gains and losses over the trailing period changes. The first
// period points are not ready since period changes need period+1 values.
func RSI(values []float64, period int) (Series, error) {
	if err := validatePeriod("rsi", period); err != nil {
		return nil, err
	}
	if err := validateValues(values); err != nil {
		return nil, err
	}

	rsi := NewRSI(period)
	out := make(Series, len(values))
	for i, v := range values {
		rsi.Update(v)
		if rsi.Ready() {
			out[i] = Point{Value: rsi.Value(), Ready: true}
		}
	}
	return out, nil
}

// ATR is the EMA of the true range. It needs period true ranges, so the first period points are not ready.
func ATR(bars []types.Bar, period int) (Series, error) {
	if err := validatePeriod("atr", period); err != nil {
		return nil, err
	}
	if err := types.ValidateSeries(bars); err != nil {
		return nil, err
	}

	atr := NewATR(period)
	out := make(Series, len(bars))
	for i, bar := range bars {
		atr.Update(bar)
		if atr.Ready() {
			out[i] = Point{Value: atr.Value(), Ready: true}
		}
	}
	return out, nil
}

type Zone string

const (
	Overbought Zone = "overbought"
	Oversold   Zone = "oversold"
	Neutral    Zone = "neutral"
)

type RSIThresholds struct {
	Overbought float64 `json:"overbought"`
	Oversold   float64 `json:"oversold"`
}

func DefaultRSIThresholds() RSIThresholds {
	return RSIThresholds{Overbought: 70, Oversold: 30}
}

func (t RSIThresholds) Validate() error {
	if t.Oversold < 0 || t.Overbought > 100 || t.Oversold >= t.Overbought {
		return fmt.Errorf("rsi thresholds oversold=%v overbought=%v: %w", t.Oversold, t.Overbought, types.ErrInvalidConfig)
	}
	return nil
}

// Classify puts a value strictly above Overbought or strictly below Oversold in that zone.
func (t RSIThresholds) Classify(value float64) Zone {
	switch {
	case value > t.Overbought:
		return Overbought
	case value < t.Oversold:
		return Oversold
	default:
		return Neutral
	}
}
