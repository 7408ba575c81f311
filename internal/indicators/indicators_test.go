package indicators

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwtly10/tradedesk/internal/types"
)

func TestSMA_WindowOfFive(t *testing.T) {
	closes := []float64{10, 11, 12, 13, 14, 15, 16, 17, 18, 19}

	sma, err := SMA(closes, 5)
	require.NoError(t, err)

	require.Len(t, sma, len(closes))
	for i := 0; i < 4; i++ {
		assert.False(t, sma[i].Ready, "index %d should be undefined", i)
	}
	assert.Equal(t, Point{Value: 12, Ready: true}, sma[4])
	assert.Equal(t, 17.0, sma.Last().Value)
	assert.Equal(t, 6, sma.ReadyCount())
}

func TestSMA_ShortInputIsNeverReady(t *testing.T) {
	sma, err := SMA([]float64{1, 2}, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, sma.ReadyCount())

	empty, err := SMA(nil, 5)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.False(t, empty.Last().Ready)
}

func TestEMA_SeededWithFirstValue(t *testing.T) {
	ema, err := EMA([]float64{1, 2, 3}, 3)
	require.NoError(t, err)

	// k = 2 / (3 + 1) = 0.5
	assert.Equal(t, Series{{1, true}, {1.5, true}, {2.25, true}}, ema)
}

func TestRSI_AllGainsIsHundred(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = float64(100 + i)
	}

	rsi, err := RSI(closes, 14)
	require.NoError(t, err)

	for i := 0; i < 14; i++ {
		assert.False(t, rsi[i].Ready, "index %d should be undefined", i)
	}
	assert.True(t, rsi[14].Ready)
	assert.Equal(t, 100.0, rsi.Last().Value)
}

func TestRSI_BalancedMovesIsFifty(t *testing.T) {
	rsi, err := RSI([]float64{1, 2, 1, 2}, 2)
	require.NoError(t, err)

	assert.False(t, rsi[1].Ready)
	assert.Equal(t, 50.0, rsi[2].Value)
	assert.Equal(t, 50.0, rsi[3].Value)
}

func TestRSI_AllLossesIsZero(t *testing.T) {
	rsi, err := RSI([]float64{5, 4, 3, 2}, 3)
	require.NoError(t, err)
	assert.Equal(t, 0.0, rsi.Last().Value)
}

func TestRSIThresholds_Classify(t *testing.T) {
	th := DefaultRSIThresholds()
	require.NoError(t, th.Validate())

	assert.Equal(t, Overbought, th.Classify(70.5))
	assert.Equal(t, Neutral, th.Classify(70))
	assert.Equal(t, Neutral, th.Classify(30))
	assert.Equal(t, Oversold, th.Classify(29.9))

	custom := RSIThresholds{Overbought: 80, Oversold: 20}
	assert.Equal(t, Neutral, custom.Classify(75))

	assert.ErrorIs(t, RSIThresholds{Overbought: 30, Oversold: 70}.Validate(), types.ErrInvalidConfig)
	assert.ErrorIs(t, RSIThresholds{Overbought: 120, Oversold: 30}.Validate(), types.ErrInvalidConfig)
}

func TestMACD_DetectsBullishCrossover(t *testing.T) {
	var closes []float64
	for i := 0; i < 30; i++ {
		closes = append(closes, 50-float64(i)*0.5)
	}
	for i := 0; i < 30; i++ {
		closes = append(closes, 35+float64(i))
	}

	res, err := MACD(closes, 12, 26, 9)
	require.NoError(t, err)

	require.Len(t, res.Line, len(closes))
	require.Len(t, res.Signal, len(closes))
	require.Len(t, res.Histogram, len(closes))

	for i := range closes {
		assert.Equal(t, res.Line[i].Value-res.Signal[i].Value, res.Histogram[i].Value)
	}

	last, ok := res.LastCrossover()
	require.True(t, ok)
	assert.Equal(t, Bullish, last.Kind)

	i := last.Index
	assert.LessOrEqual(t, res.Line[i-1].Value, res.Signal[i-1].Value)
	assert.Greater(t, res.Line[i].Value, res.Signal[i].Value)
	assert.Greater(t, i, 30, "Crossover should follow the reversal")
}

func TestMACD_ValidatesPeriods(t *testing.T) {
	_, err := MACD([]float64{1, 2, 3}, 26, 12, 9)
	assert.ErrorIs(t, err, types.ErrInvalidPeriod)

	_, err = MACD([]float64{1, 2, 3}, 12, 26, 0)
	assert.ErrorIs(t, err, types.ErrInvalidPeriod)
}

func TestBollinger_PopulationStdDev(t *testing.T) {
	closes := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	bb, err := Bollinger(closes, 8, 2)
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		assert.False(t, bb.Middle[i].Ready)
		assert.False(t, bb.Bandwidth[i].Ready)
	}
	assert.Equal(t, 5.0, bb.Middle.Last().Value)
	assert.Equal(t, 9.0, bb.Upper.Last().Value)
	assert.Equal(t, 1.0, bb.Lower.Last().Value)
	assert.Equal(t, 160.0, bb.Bandwidth.Last().Value)
}

func TestBollinger_ZeroMiddleLeavesBandwidthUndefined(t *testing.T) {
	bb, err := Bollinger([]float64{-1, 1}, 2, 2)
	require.NoError(t, err)

	assert.True(t, bb.Middle[1].Ready)
	assert.Equal(t, 0.0, bb.Middle[1].Value)
	assert.False(t, bb.Bandwidth[1].Ready)
}

func TestATR_ConstantRange(t *testing.T) {
	bars := make([]types.Bar, 6)
	for i := range bars {
		bars[i] = types.Bar{Timestamp: int64(i) * 60000, Open: 100, High: 101, Low: 99, Close: 100, Volume: 10}
	}

	atr, err := ATR(bars, 3)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.False(t, atr[i].Ready)
	}
	assert.Equal(t, Point{Value: 2, Ready: true}, atr[3])
	assert.Equal(t, 2.0, atr.Last().Value)

	bars[2].Low = 102
	_, err = ATR(bars, 3)
	assert.ErrorIs(t, err, types.ErrInvalidInputSeries)
}

func TestIndicators_RecomputeIsIdentical(t *testing.T) {
	closes := []float64{44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.10, 45.42, 45.84, 46.08,
		45.89, 46.03, 45.61, 46.28, 46.28, 46.00, 46.03, 46.41, 46.22, 45.64,
		46.21, 46.25, 45.71, 46.45, 45.78, 45.35, 44.03, 44.18, 44.22, 44.57}
	input := append([]float64(nil), closes...)

	compute := func() []any {
		sma, err := SMA(closes, 5)
		require.NoError(t, err)
		ema, err := EMA(closes, 10)
		require.NoError(t, err)
		rsi, err := RSI(closes, 14)
		require.NoError(t, err)
		macd, err := MACD(closes, 12, 26, 9)
		require.NoError(t, err)
		bb, err := Bollinger(closes, 20, 2)
		require.NoError(t, err)
		return []any{sma, ema, rsi, macd, bb}
	}

	assert.Equal(t, compute(), compute())
	assert.Equal(t, input, closes, "Input must not be mutated")
}

func TestIndicators_RejectInvalidInput(t *testing.T) {
	bad := []float64{1, math.NaN(), 3}

	_, err := SMA(bad, 2)
	assert.ErrorIs(t, err, types.ErrInvalidInputSeries)
	_, err = EMA([]float64{1, math.Inf(1)}, 2)
	assert.ErrorIs(t, err, types.ErrInvalidInputSeries)
	_, err = RSI(bad, 2)
	assert.ErrorIs(t, err, types.ErrInvalidInputSeries)
	_, err = MACD(bad, 2, 3, 2)
	assert.ErrorIs(t, err, types.ErrInvalidInputSeries)
	_, err = Bollinger(bad, 2, 2)
	assert.ErrorIs(t, err, types.ErrInvalidInputSeries)

	_, err = SMA([]float64{1}, 0)
	assert.ErrorIs(t, err, types.ErrInvalidPeriod)
	_, err = Bollinger([]float64{1}, 2, -1)
	assert.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestSeries_JSONUsesNullForUndefined(t *testing.T) {
	s := Series{{}, {Value: 1.5, Ready: true}}

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `[null, 1.5]`, string(raw))

	var back Series
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, s, back)
}
