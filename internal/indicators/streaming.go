package indicators

import (
	"math"

	"github.com/jwtly10/tradedesk/internal/logging"
	"github.com/jwtly10/tradedesk/internal/types"
)

var (
	atrLog       = logging.New("atr")
	emaLog       = logging.New("ema")
	smaLog       = logging.New("sma")
	rsiLog       = logging.New("rsi")
	macdLog      = logging.New("macd")
	bollingerLog = logging.New("bollinger")
)

// EMAState - Exponential Moving Average accumulator
type EMAState struct {
	period int
	value  float64
	alpha  float64
	init   bool
}

func NewEMA(period int) *EMAState {
	return &EMAState{
		period: period,
		alpha:  2.0 / float64(period+1),
	}
}

func (e *EMAState) Update(price float64) {
	oldValue := e.value
	if !e.init {
		e.value = price
		e.init = true
		emaLog.Debug("EMA initialized", "period", e.period, "price", price, "value", e.value)
	} else {
		e.value = (price-e.value)*e.alpha + e.value
		emaLog.Debug("EMA updated", "period", e.period, "price", price, "oldValue", oldValue, "newValue", e.value)
	}
}

func (e *EMAState) Value() float64 {
	return e.value
}

func (e *EMAState) Ready() bool {
	return e.init
}

// SMAState - Simple Moving Average accumulator over the trailing window
type SMAState struct {
	period int
	values []float64
}

func NewSMA(period int) *SMAState {
	return &SMAState{
		period: period,
		values: make([]float64, 0, period),
	}
}

func (s *SMAState) Update(price float64) {
	s.values = append(s.values, price)
	if len(s.values) > s.period {
		s.values = s.values[1:]
	}
	smaLog.Debug("SMA updated", "period", s.period, "price", price, "value", s.Value(), "ready", s.Ready())
}

func (s *SMAState) Value() float64 {
	if len(s.values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range s.values {
		sum += v
	}
	return sum / float64(len(s.values))
}

// Window returns the values currently inside the window, oldest first.
func (s *SMAState) Window() []float64 {
	return s.values
}

func (s *SMAState) Ready() bool {
	return len(s.values) >= s.period
}

// RSIState averages gains and losses over the trailing window of price changes.
type RSIState struct {
	period int
	gains  *SMAState
	losses *SMAState
	prev   float64
	seen   bool
}

func NewRSI(period int) *RSIState {
	return &RSIState{
		period: period,
		gains:  NewSMA(period),
		losses: NewSMA(period),
	}
}

func (r *RSIState) Update(price float64) {
	if !r.seen {
		r.prev = price
		r.seen = true
		return
	}

	change := price - r.prev
	r.prev = price
	r.gains.Update(math.Max(change, 0))
	r.losses.Update(math.Max(-change, 0))

	rsiLog.Debug("RSI updated", "period", r.period, "price", price, "change", change,
		"avgGain", r.gains.Value(), "avgLoss", r.losses.Value(), "ready", r.Ready())
}

// Value is 100 when the window holds no losses.
func (r *RSIState) Value() float64 {
	avgLoss := r.losses.Value()
	if avgLoss == 0 {
		return 100
	}
	rs := r.gains.Value() / avgLoss
	return 100 - 100/(1+rs)
}

func (r *RSIState) Ready() bool {
	return r.gains.Ready()
}

// ATRState - Average True Range accumulator
type ATRState struct {
	period  int
	ema     *EMAState
	prevBar *types.Bar
	ready   bool
	warmup  int
}

func NewATR(period int) *ATRState {
	return &ATRState{
		period: period,
		ema:    NewEMA(period),
	}
}

func (a *ATRState) Update(bar types.Bar) {
	if a.prevBar == nil {
		a.prevBar = &bar
		atrLog.Debug("ATR first bar", "timestamp", bar.Timestamp, "close", bar.Close)
		return
	}

	// True Range = max of:
	// 1. Current High - Current Low
	// 2. |Current High - Previous Close|
	// 3. |Current Low - Previous Close|
	tr1 := bar.High - bar.Low
	tr2 := math.Abs(bar.High - a.prevBar.Close)
	tr3 := math.Abs(bar.Low - a.prevBar.Close)

	tr := math.Max(tr1, math.Max(tr2, tr3))

	atrLog.Debug("ATR calculation",
		"timestamp", bar.Timestamp,
		"tr1", tr1,
		"tr2", tr2,
		"tr3", tr3,
		"trueRange", tr,
		"prevATR", a.ema.Value())

	a.ema.Update(tr)
	a.prevBar = &bar

	a.warmup++
	if a.warmup >= a.period {
		a.ready = true
	}
}

func (a *ATRState) Value() float64 {
	return a.ema.Value()
}

func (a *ATRState) Ready() bool {
	return a.ready
}
