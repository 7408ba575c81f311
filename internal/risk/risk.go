package risk

import (
	"fmt"
	"math"

	"github.com/jwtly10/tradedesk/internal/ledger"
	"github.com/jwtly10/tradedesk/internal/types"
)

// AllocationTolerance bounds how far the summed percentages may exceed 100.
const AllocationTolerance = 1e-9

type Config struct {
	RiskFreeRate   float64 `json:"riskFreeRate"`   // annual
	PeriodsPerYear float64 `json:"periodsPerYear"` // equity curve sampling frequency
	VaRConfidence  float64 `json:"varConfidence"`
}

func DefaultConfig() Config {
	return Config{
		RiskFreeRate:   0,
		PeriodsPerYear: 252,
		VaRConfidence:  0.95,
	}
}

func (c Config) Validate() error {
	if !(c.PeriodsPerYear > 0) || math.IsInf(c.PeriodsPerYear, 0) {
		return fmt.Errorf("periods per year %v: %w", c.PeriodsPerYear, types.ErrInvalidConfig)
	}
	if math.IsNaN(c.RiskFreeRate) || math.IsInf(c.RiskFreeRate, 0) {
		return fmt.Errorf("risk free rate %v: %w", c.RiskFreeRate, types.ErrInvalidConfig)
	}
	if _, err := ZScore(c.VaRConfidence); err != nil {
		return err
	}
	return nil
}

// RiskFreePerPeriod de-annualizes the risk free rate.
func (c Config) RiskFreePerPeriod() float64 {
	return c.RiskFreeRate / c.PeriodsPerYear
}

type AllocationEntry struct {
	PositionID string           `json:"positionId"`
	Symbol     string           `json:"symbol"`
	Side       ledger.Direction `json:"side"`
	Value      float64          `json:"value"`
	Percent    float64          `json:"percent"`
}

// Allocation values every position at quantity x current price and reports
// its share of the total. Percentages sum to 100 within AllocationTolerance.
func Allocation(positions []ledger.Position) []AllocationEntry {
	out := make([]AllocationEntry, len(positions))
	total := 0.0
	for i, pos := range positions {
		value := pos.Quantity * pos.CurrentPrice
		out[i] = AllocationEntry{
			PositionID: pos.ID,
			Symbol:     pos.Symbol,
			Side:       pos.Direction,
			Value:      value,
		}
		total += value
	}
	if total <= 0 {
		return out
	}
	for i := range out {
		out[i].Percent = out[i].Value / total * 100
	}
	return out
}

// Snapshot is a risk summary derived from one ledger State and equity curve.
// It is recomputed on demand and never stored as a source of truth.
type Snapshot struct {
	Equity           float64           `json:"equity"`
	CashBalance      float64           `json:"cashBalance"`
	UnrealizedPnL    float64           `json:"unrealizedPnL"`
	RealizedPnL      float64           `json:"realizedPnL"`
	Exposure         float64           `json:"exposure"` // percent of equity held in positions
	SharpeRatio      float64           `json:"sharpeRatio"`
	AnnualizedSharpe float64           `json:"annualizedSharpe"`
	PeriodVolatility float64           `json:"periodVolatility"`
	Volatility       float64           `json:"volatility"`
	ValueAtRisk      float64           `json:"valueAtRisk"`
	VaRConfidence    float64           `json:"varConfidence"`
	Drawdown         Drawdown          `json:"drawdown"`
	Allocation       []AllocationEntry `json:"allocation"`
	Trades           TradeStats        `json:"trades"`
}

// Summarize builds a Snapshot. The equity curve is expected to be sampled at
// cfg.PeriodsPerYear; VaR uses the per period volatility.
func Summarize(cfg Config, state ledger.State, curve []EquityPoint) (Snapshot, error) {
	if err := cfg.Validate(); err != nil {
		return Snapshot{}, err
	}

	returns, err := Returns(curve)
	if err != nil {
		return Snapshot{}, err
	}
	dd, err := MaxDrawdown(curve)
	if err != nil {
		return Snapshot{}, err
	}

	equity := state.Equity()
	periodVol := StdDev(returns)
	sharpe := Sharpe(returns, cfg.RiskFreePerPeriod())
	varAmount, err := ValueAtRisk(equity, periodVol, cfg.VaRConfidence)
	if err != nil {
		return Snapshot{}, err
	}

	allocation := Allocation(state.Positions)
	invested := 0.0
	for _, a := range allocation {
		invested += a.Value
	}

	snap := Snapshot{
		Equity:           equity,
		CashBalance:      state.CashBalance.InexactFloat64(),
		UnrealizedPnL:    state.UnrealizedPnL(),
		RealizedPnL:      state.RealizedPnL(),
		SharpeRatio:      sharpe,
		AnnualizedSharpe: sharpe * math.Sqrt(cfg.PeriodsPerYear),
		PeriodVolatility: periodVol,
		Volatility:       Volatility(returns, cfg.PeriodsPerYear),
		ValueAtRisk:      varAmount,
		VaRConfidence:    cfg.VaRConfidence,
		Drawdown:         dd,
		Allocation:       allocation,
		Trades:           CalculateTradeStats(state.Trades),
	}
	if equity > 0 {
		snap.Exposure = invested / equity * 100
	}

	riskLog.Debug("Risk summary",
		"equity", snap.Equity,
		"sharpe", snap.SharpeRatio,
		"volatility", snap.Volatility,
		"var", snap.ValueAtRisk,
		"maxDrawdown", snap.Drawdown.MaxPercent)

	return snap, nil
}
