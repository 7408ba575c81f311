package indicators

import (
	"fmt"

	"github.com/jwtly10/tradedesk/internal/types"
)

type CrossKind string

const (
	Bullish CrossKind = "bullish"
	Bearish CrossKind = "bearish"
)

// Crossover marks the index where the MACD line crossed the signal line.
type Crossover struct {
	Index int       `json:"index"`
	Kind  CrossKind `json:"kind"`
}

type MACDResult struct {
	Line       Series      `json:"line"`
	Signal     Series      `json:"signal"`
	Histogram  Series      `json:"histogram"`
	Crossovers []Crossover `json:"crossovers"`
}

// LastCrossover returns the most recent crossover, if any.
func (m MACDResult) LastCrossover() (Crossover, bool) {
	if len(m.Crossovers) == 0 {
		return Crossover{}, false
	}
	return m.Crossovers[len(m.Crossovers)-1], true
}

// MACD computes EMA(fast) - EMA(slow), its EMA(signal) and the histogram.
// Every point is defined since both EMAs are defined from index 0.
func MACD(values []float64, fast, slow, signal int) (MACDResult, error) {
	periods := []struct {
		name   string
		period int
	}{{"macd fast", fast}, {"macd slow", slow}, {"macd signal", signal}}
	for _, p := range periods {
		if err := validatePeriod(p.name, p.period); err != nil {
			return MACDResult{}, err
		}
	}
	if fast >= slow {
		return MACDResult{}, fmt.Errorf("macd fast %d must be below slow %d: %w", fast, slow, types.ErrInvalidPeriod)
	}
	if err := validateValues(values); err != nil {
		return MACDResult{}, err
	}

	fastEMA := ema(values, fast)
	slowEMA := ema(values, slow)

	line := make([]float64, len(values))
	for i := range values {
		line[i] = fastEMA[i].Value - slowEMA[i].Value
	}
	signalEMA := ema(line, signal)

	res := MACDResult{
		Line:       make(Series, len(values)),
		Signal:     signalEMA,
		Histogram:  make(Series, len(values)),
		Crossovers: []Crossover{},
	}
	for i := range values {
		res.Line[i] = Point{Value: line[i], Ready: true}
		res.Histogram[i] = Point{Value: line[i] - signalEMA[i].Value, Ready: true}

		if i == 0 {
			continue
		}
		prevLine, prevSignal := line[i-1], signalEMA[i-1].Value
		curLine, curSignal := line[i], signalEMA[i].Value
		switch {
		case prevLine <= prevSignal && curLine > curSignal:
			res.Crossovers = append(res.Crossovers, Crossover{Index: i, Kind: Bullish})
			macdLog.Debug("MACD bullish crossover", "index", i, "line", curLine, "signal", curSignal)
		case prevLine >= prevSignal && curLine < curSignal:
			res.Crossovers = append(res.Crossovers, Crossover{Index: i, Kind: Bearish})
			macdLog.Debug("MACD bearish crossover", "index", i, "line", curLine, "signal", curSignal)
		}
	}
	return res, nil
}
