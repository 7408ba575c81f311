// Package risk computes portfolio risk statistics from an equity curve, the
// open positions and the closed trade history of a ledger snapshot.
package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/jwtly10/tradedesk/internal/logging"
	"github.com/jwtly10/tradedesk/internal/types"
)

var riskLog = logging.New("risk")

// EquityPoint is the account equity observed at Timestamp.
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// ValidateCurve requires finite, non-negative values in time order.
func ValidateCurve(curve []EquityPoint) error {
	for i, p := range curve {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) || p.Value < 0 {
			return fmt.Errorf("equity point %d value %v: %w", i, p.Value, types.ErrInvalidInputSeries)
		}
		if i > 0 && p.Timestamp.Before(curve[i-1].Timestamp) {
			return fmt.Errorf("equity point %d at %s before %s: %w", i, p.Timestamp, curve[i-1].Timestamp, types.ErrInvalidInputSeries)
		}
	}
	return nil
}

// Returns derives the simple periodic returns between consecutive equity values.
func Returns(curve []EquityPoint) ([]float64, error) {
	if err := ValidateCurve(curve); err != nil {
		return nil, err
	}
	if len(curve) < 2 {
		return []float64{}, nil
	}

	out := make([]float64, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Value
		if prev == 0 {
			return nil, fmt.Errorf("return at %d from zero equity: %w", i, types.ErrInvalidInputSeries)
		}
		out[i-1] = curve[i].Value/prev - 1
	}
	return out, nil
}

func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev is the sample standard deviation. Fewer than two values give 0.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// Sharpe is (mean return - riskFree) / std dev of returns, all per period.
// A flat return series has no defined ratio and reports 0.
func Sharpe(returns []float64, riskFreePerPeriod float64) float64 {
	sd := StdDev(returns)
	if sd == 0 {
		return 0
	}
	return (Mean(returns) - riskFreePerPeriod) / sd
}

// Volatility annualizes the per period standard deviation of returns.
func Volatility(returns []float64, periodsPerYear float64) float64 {
	return StdDev(returns) * math.Sqrt(periodsPerYear)
}

type Drawdown struct {
	MaxPercent     float64   `json:"maxPercent"`
	MaxAmount      float64   `json:"maxAmount"`
	Peak           float64   `json:"peak"`
	Trough         float64   `json:"trough"`
	PeakIndex      int       `json:"peakIndex"`
	TroughIndex    int       `json:"troughIndex"`
	PeakTime       time.Time `json:"peakTime"`
	TroughTime     time.Time `json:"troughTime"`
	CurrentPercent float64   `json:"currentPercent"`
}

// MaxDrawdown tracks the running peak and reports the deepest fall from it as a percentage.
func MaxDrawdown(curve []EquityPoint) (Drawdown, error) {
	if err := ValidateCurve(curve); err != nil {
		return Drawdown{}, err
	}
	if len(curve) == 0 {
		return Drawdown{}, nil
	}

	dd := Drawdown{Peak: curve[0].Value, Trough: curve[0].Value, PeakTime: curve[0].Timestamp, TroughTime: curve[0].Timestamp}
	peak, peakIndex := curve[0].Value, 0
	current := 0.0

	for i, p := range curve {
		if p.Value > peak {
			peak, peakIndex = p.Value, i
		}
		if peak <= 0 {
			continue
		}

		current = (peak - p.Value) / peak * 100
		if current > dd.MaxPercent {
			dd.MaxPercent = current
			dd.MaxAmount = peak - p.Value
			dd.Peak, dd.PeakIndex, dd.PeakTime = peak, peakIndex, curve[peakIndex].Timestamp
			dd.Trough, dd.TroughIndex, dd.TroughTime = p.Value, i, p.Timestamp
		}
	}
	dd.CurrentPercent = current

	riskLog.Debug("Max drawdown", "percent", dd.MaxPercent, "peak", dd.Peak, "trough", dd.Trough)
	return dd, nil
}

// DrawdownSeries is the percentage below the running peak at every point.
func DrawdownSeries(curve []EquityPoint) ([]float64, error) {
	if err := ValidateCurve(curve); err != nil {
		return nil, err
	}
	out := make([]float64, len(curve))
	peak := 0.0
	for i, p := range curve {
		peak = math.Max(peak, p.Value)
		if peak > 0 {
			out[i] = (peak - p.Value) / peak * 100
		}
	}
	return out, nil
}

// ZScore is the standard normal quantile for a one tailed confidence level in (0, 1).
func ZScore(confidence float64) (float64, error) {
	if !(confidence > 0 && confidence < 1) {
		return 0, fmt.Errorf("confidence %v: %w", confidence, types.ErrInvalidConfig)
	}
	return math.Sqrt2 * math.Erfinv(2*confidence-1), nil
}

// ValueAtRisk is the parametric VaR: portfolioValue x periodVolatility x z(confidence).
func ValueAtRisk(portfolioValue, periodVolatility, confidence float64) (float64, error) {
	z, err := ZScore(confidence)
	if err != nil {
		return 0, err
	}
	return portfolioValue * periodVolatility * z, nil
}
