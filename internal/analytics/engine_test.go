package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwtly10/tradedesk/internal/depth"
	"github.com/jwtly10/tradedesk/internal/indicators"
	"github.com/jwtly10/tradedesk/internal/ledger"
	"github.com/jwtly10/tradedesk/internal/risk"
	"github.com/jwtly10/tradedesk/internal/types"
)

func rising(n int, start float64) []types.Bar {
	bars := make([]types.Bar, n)
	for i := range bars {
		c := start + float64(i)
		bars[i] = types.Bar{Timestamp: int64(i) * 60000, Open: c - 0.5, High: c + 1, Low: c - 1, Close: c, Volume: 100}
	}
	return bars
}

func newEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := New(cfg, risk.DefaultConfig())
	require.NoError(t, err)
	return e
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero sma period", func(c *Config) { c.SMAPeriods = []int{0} }},
		{"duplicate ema period", func(c *Config) { c.EMAPeriods = []int{9, 9} }},
		{"macd fast above slow", func(c *Config) { c.MACDFast = 30 }},
		{"negative bollinger k", func(c *Config) { c.BollingerK = -1 }},
		{"inverted rsi thresholds", func(c *Config) { c.RSIThresholds = indicators.RSIThresholds{Overbought: 20, Oversold: 80} }},
		{"zero atr period", func(c *Config) { c.ATRPeriod = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), types.ErrInvalidConfig)

			_, err := New(cfg, risk.DefaultConfig())
			assert.ErrorIs(t, err, types.ErrInvalidConfig)
		})
	}
}

func TestEngine_IndicatorsFollowConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MACD = false
	cfg.ATR = true
	cfg.SMAPeriods = []int{5}
	cfg.EMAPeriods = nil
	e := newEngine(t, cfg)

	set, err := e.Indicators("AAPL", rising(30, 100))
	require.NoError(t, err)

	assert.Equal(t, "AAPL", set.Symbol)
	assert.Len(t, set.Timestamps, 30)
	assert.Len(t, set.SMA[5], 30)
	assert.Empty(t, set.EMA)
	assert.Nil(t, set.MACD)
	require.NotNil(t, set.Bollinger)
	assert.Len(t, set.ATR, 30)

	require.NotNil(t, set.RSI)
	assert.Equal(t, 100.0, set.RSI.Latest.Value)
	assert.Equal(t, indicators.Overbought, set.RSI.Zone)
}

func TestEngine_ConfigIsNotShared(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SMAPeriods = []int{5}
	cfg.EMAPeriods = []int{8}
	e := newEngine(t, cfg)

	cfg.SMAPeriods[0] = 0
	cfg.EMAPeriods[0] = 0
	got := e.Config()
	assert.Equal(t, []int{5}, got.SMAPeriods)
	assert.Equal(t, []int{8}, got.EMAPeriods)

	got.SMAPeriods[0] = 7
	assert.Equal(t, []int{5}, e.Config().SMAPeriods)

	set, err := e.Indicators("AAPL", rising(30, 100))
	require.NoError(t, err)
	assert.Contains(t, set.SMA, 5)
	assert.Contains(t, set.EMA, 8)
}

func TestEngine_IndicatorsRejectMalformedBars(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	bars := rising(5, 10)
	bars[3].High = 1

	_, err := e.Indicators("AAPL", bars)
	assert.ErrorIs(t, err, types.ErrInvalidInputSeries)
}

func TestEngine_Build(t *testing.T) {
	e := newEngine(t, DefaultConfig())

	l, err := ledger.New(10000)
	require.NoError(t, err)
	_, err = l.OpenPosition("AAPL", ledger.LONG, 10, 120)
	require.NoError(t, err)

	in := Input{
		State: l.Snapshot(),
		History: map[string][]types.Bar{
			"AAPL": rising(40, 100),
			"MSFT": rising(40, 300),
		},
		Books: map[string]depth.RawBook{
			"AAPL": {Bids: []depth.Level{{Price: 99, Size: 1}}, Asks: []depth.Level{{Price: 101, Size: 1}}},
		},
		Equity: []risk.EquityPoint{{Value: 10000}, {Value: 10100}},
	}

	view, err := e.Build(context.Background(), in)
	require.NoError(t, err)

	assert.Len(t, view.Indicators, 2)
	assert.Equal(t, "MSFT", view.Indicators["MSFT"].Symbol)
	assert.Equal(t, 100.0, view.Depth["AAPL"].MidPrice)
	assert.InDelta(t, 10000.0, view.Risk.Equity, 1e-9)
	require.Len(t, view.Risk.Allocation, 1)
	assert.Equal(t, 100.0, view.Risk.Allocation[0].Percent)
	assert.Equal(t, in.State.CashBalance, view.Ledger.CashBalance)
}

func TestEngine_BuildFailsOnAnyBadSeries(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	l, err := ledger.New(100)
	require.NoError(t, err)

	bad := rising(10, 50)
	bad[2].Volume = -1

	_, err = e.Build(context.Background(), Input{
		State:   l.Snapshot(),
		History: map[string][]types.Bar{"OK": rising(10, 10), "BAD": bad},
	})
	assert.ErrorIs(t, err, types.ErrInvalidInputSeries)

	_, err = e.Build(context.Background(), Input{
		State: l.Snapshot(),
		Books: map[string]depth.RawBook{"X": {Bids: []depth.Level{{Price: -1, Size: 1}}}},
	})
	assert.ErrorIs(t, err, types.ErrInvalidInputSeries)
}
