package indicators

import (
	"fmt"
	"math"

	"github.com/jwtly10/tradedesk/internal/types"
)

type BollingerResult struct {
	Upper     Series `json:"upper"`
	Middle    Series `json:"middle"`
	Lower     Series `json:"lower"`
	Bandwidth Series `json:"bandwidth"`
}

// Bollinger bands use the SMA as middle band and the population standard
// deviation of the same window. Bandwidth is not ready where middle is 0.
func Bollinger(values []float64, period int, k float64) (BollingerResult, error) {
	if err := validatePeriod("bollinger", period); err != nil {
		return BollingerResult{}, err
	}
	if k < 0 || math.IsNaN(k) || math.IsInf(k, 0) {
		return BollingerResult{}, fmt.Errorf("bollinger k %v: %w", k, types.ErrInvalidConfig)
	}
	if err := validateValues(values); err != nil {
		return BollingerResult{}, err
	}

	res := BollingerResult{
		Upper:     make(Series, len(values)),
		Middle:    make(Series, len(values)),
		Lower:     make(Series, len(values)),
		Bandwidth: make(Series, len(values)),
	}

	sma := NewSMA(period)
	for i, v := range values {
		sma.Update(v)
		if !sma.Ready() {
			continue
		}

		middle := sma.Value()
		sd := populationStdDev(sma.Window(), middle)
		upper := middle + k*sd
		lower := middle - k*sd

		res.Middle[i] = Point{Value: middle, Ready: true}
		res.Upper[i] = Point{Value: upper, Ready: true}
		res.Lower[i] = Point{Value: lower, Ready: true}
		if middle != 0 {
			res.Bandwidth[i] = Point{Value: (upper - lower) / middle * 100, Ready: true}
		}

		bollingerLog.Debug("Bollinger updated", "index", i, "middle", middle, "stdDev", sd, "upper", upper, "lower", lower)
	}
	return res, nil
}

func populationStdDev(window []float64, mean float64) float64 {
	sum := 0.0
	for _, v := range window {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(window)))
}
