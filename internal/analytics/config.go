package analytics

import (
	"fmt"
	"math"
	"slices"

	"github.com/jwtly10/tradedesk/internal/indicators"
	"github.com/jwtly10/tradedesk/internal/types"
)

// Config selects which indicators are computed per symbol. Periods are fixed
// fields validated up front rather than free form keys.
type Config struct {
	RSI        bool  `json:"rsi"`
	MACD       bool  `json:"macd"`
	Bollinger  bool  `json:"bollinger"`
	ATR        bool  `json:"atr"`
	SMAPeriods []int `json:"smaPeriods"`
	EMAPeriods []int `json:"emaPeriods"`

	RSIPeriod       int                      `json:"rsiPeriod"`
	RSIThresholds   indicators.RSIThresholds `json:"rsiThresholds"`
	MACDFast        int                      `json:"macdFast"`
	MACDSlow        int                      `json:"macdSlow"`
	MACDSignal      int                      `json:"macdSignal"`
	BollingerPeriod int                      `json:"bollingerPeriod"`
	BollingerK      float64                  `json:"bollingerK"`
	ATRPeriod       int                      `json:"atrPeriod"`
}

func DefaultConfig() Config {
	return Config{
		RSI:             true,
		MACD:            true,
		Bollinger:       true,
		ATR:             false,
		SMAPeriods:      []int{20, 50},
		EMAPeriods:      []int{12, 26},
		RSIPeriod:       indicators.DefaultRSIPeriod,
		RSIThresholds:   indicators.DefaultRSIThresholds(),
		MACDFast:        indicators.DefaultMACDFast,
		MACDSlow:        indicators.DefaultMACDSlow,
		MACDSignal:      indicators.DefaultMACDSignal,
		BollingerPeriod: indicators.DefaultBollingerPeriod,
		BollingerK:      indicators.DefaultBollingerK,
		ATRPeriod:       indicators.DefaultATRPeriod,
	}
}

// clone returns c with its own period slices.
func (c Config) clone() Config {
	c.SMAPeriods = slices.Clone(c.SMAPeriods)
	c.EMAPeriods = slices.Clone(c.EMAPeriods)
	return c
}

// Validate checks every field, including the parameters of disabled indicators,
// so a config stays valid when an indicator is toggled on later.
func (c Config) Validate() error {
	for _, p := range c.SMAPeriods {
		if p < 1 {
			return fmt.Errorf("sma period %d: %w", p, types.ErrInvalidConfig)
		}
	}
	for _, p := range c.EMAPeriods {
		if p < 1 {
			return fmt.Errorf("ema period %d: %w", p, types.ErrInvalidConfig)
		}
	}
	if hasDuplicates(c.SMAPeriods) || hasDuplicates(c.EMAPeriods) {
		return fmt.Errorf("duplicate moving average period: %w", types.ErrInvalidConfig)
	}
	if c.RSIPeriod < 1 {
		return fmt.Errorf("rsi period %d: %w", c.RSIPeriod, types.ErrInvalidConfig)
	}
	if err := c.RSIThresholds.Validate(); err != nil {
		return err
	}
	if c.MACDFast < 1 || c.MACDSignal < 1 || c.MACDFast >= c.MACDSlow {
		return fmt.Errorf("macd %d/%d/%d: %w", c.MACDFast, c.MACDSlow, c.MACDSignal, types.ErrInvalidConfig)
	}
	if c.BollingerPeriod < 1 || c.BollingerK < 0 || math.IsNaN(c.BollingerK) || math.IsInf(c.BollingerK, 0) {
		return fmt.Errorf("bollinger %d/%v: %w", c.BollingerPeriod, c.BollingerK, types.ErrInvalidConfig)
	}
	if c.ATRPeriod < 1 {
		return fmt.Errorf("atr period %d: %w", c.ATRPeriod, types.ErrInvalidConfig)
	}
	return nil
}

func hasDuplicates(periods []int) bool {
	seen := make(map[int]bool, len(periods))
	for _, p := range periods {
		if seen[p] {
			return true
		}
		seen[p] = true
	}
	return false
}
