// Package analytics combines the ledger snapshot, indicator library, depth
// aggregator and risk statistics into the views consumed by the renderer.
package analytics

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jwtly10/tradedesk/internal/depth"
	"github.com/jwtly10/tradedesk/internal/indicators"
	"github.com/jwtly10/tradedesk/internal/ledger"
	"github.com/jwtly10/tradedesk/internal/logging"
	"github.com/jwtly10/tradedesk/internal/risk"
	"github.com/jwtly10/tradedesk/internal/types"
)

var analyticsLog = logging.New("analytics")

type RSIView struct {
	Series indicators.Series `json:"series"`
	Latest indicators.Point  `json:"latest"`
	Zone   indicators.Zone   `json:"zone,omitempty"`
}

// IndicatorSet holds every enabled indicator for one symbol, aligned with Timestamps.
type IndicatorSet struct {
	Symbol     string                      `json:"symbol"`
	Timestamps []int64                     `json:"timestamps"`
	Closes     []float64                   `json:"closes"`
	SMA        map[int]indicators.Series   `json:"sma"`
	EMA        map[int]indicators.Series   `json:"ema"`
	RSI        *RSIView                    `json:"rsi,omitempty"`
	MACD       *indicators.MACDResult      `json:"macd,omitempty"`
	Bollinger  *indicators.BollingerResult `json:"bollinger,omitempty"`
	ATR        indicators.Series           `json:"atr,omitempty"`
}

// Input is an immutable view of everything Build reads.
type Input struct {
	State   ledger.State
	History map[string][]types.Bar
	Books   map[string]depth.RawBook
	Equity  []risk.EquityPoint
}

type View struct {
	GeneratedAt time.Time               `json:"generatedAt"`
	Ledger      ledger.State            `json:"ledger"`
	Risk        risk.Snapshot           `json:"risk"`
	Indicators  map[string]IndicatorSet `json:"indicators"`
	Depth       map[string]depth.Book   `json:"depth"`
}

type Engine struct {
	cfg  Config
	risk risk.Config
	now  func() time.Time
}

func New(cfg Config, riskCfg risk.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := riskCfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg.clone(), risk: riskCfg, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Config returns a copy the caller may modify.
func (e *Engine) Config() Config {
	return e.cfg.clone()
}

func (e *Engine) RiskConfig() risk.Config {
	return e.risk
}

// Indicators computes the enabled indicators over bars.
func (e *Engine) Indicators(symbol string, bars []types.Bar) (IndicatorSet, error) {
	closes, err := types.Closes(bars)
	if err != nil {
		return IndicatorSet{}, fmt.Errorf("%s: %w", symbol, err)
	}

	set := IndicatorSet{
		Symbol:     symbol,
		Timestamps: make([]int64, len(bars)),
		Closes:     closes,
		SMA:        make(map[int]indicators.Series, len(e.cfg.SMAPeriods)),
		EMA:        make(map[int]indicators.Series, len(e.cfg.EMAPeriods)),
	}
	for i, b := range bars {
		set.Timestamps[i] = b.Timestamp
	}

	for _, p := range e.cfg.SMAPeriods {
		if set.SMA[p], err = indicators.SMA(closes, p); err != nil {
			return IndicatorSet{}, err
		}
	}
	for _, p := range e.cfg.EMAPeriods {
		if set.EMA[p], err = indicators.EMA(closes, p); err != nil {
			return IndicatorSet{}, err
		}
	}

	if e.cfg.RSI {
		series, err := indicators.RSI(closes, e.cfg.RSIPeriod)
		if err != nil {
			return IndicatorSet{}, err
		}
		view := &RSIView{Series: series, Latest: series.Last()}
		if view.Latest.Ready {
			view.Zone = e.cfg.RSIThresholds.Classify(view.Latest.Value)
		}
		set.RSI = view
	}

	if e.cfg.MACD {
		macd, err := indicators.MACD(closes, e.cfg.MACDFast, e.cfg.MACDSlow, e.cfg.MACDSignal)
		if err != nil {
			return IndicatorSet{}, err
		}
		set.MACD = &macd
	}

	if e.cfg.Bollinger {
		bb, err := indicators.Bollinger(closes, e.cfg.BollingerPeriod, e.cfg.BollingerK)
		if err != nil {
			return IndicatorSet{}, err
		}
		set.Bollinger = &bb
	}

	if e.cfg.ATR {
		if set.ATR, err = indicators.ATR(bars, e.cfg.ATRPeriod); err != nil {
			return IndicatorSet{}, err
		}
	}

	return set, nil
}

// Build computes indicator sets and depth books per symbol concurrently and the
// risk summary over the same input. The input is only read.
func (e *Engine) Build(ctx context.Context, in Input) (View, error) {
	symbols := make([]string, 0, len(in.History))
	for symbol := range in.History {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	sets := make([]IndicatorSet, len(symbols))
	var snap risk.Snapshot

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	g.Go(func() error {
		var err error
		snap, err = risk.Summarize(e.risk, in.State, in.Equity)
		return err
	})
	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			set, err := e.Indicators(symbol, in.History[symbol])
			if err != nil {
				return err
			}
			sets[i] = set
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return View{}, err
	}

	view := View{
		GeneratedAt: e.now(),
		Ledger:      in.State,
		Risk:        snap,
		Indicators:  make(map[string]IndicatorSet, len(sets)),
		Depth:       make(map[string]depth.Book, len(in.Books)),
	}
	for i, symbol := range symbols {
		view.Indicators[symbol] = sets[i]
	}
	for symbol, raw := range in.Books {
		book, err := raw.Aggregate()
		if err != nil {
			return View{}, fmt.Errorf("%s book: %w", symbol, err)
		}
		view.Depth[symbol] = book
	}

	analyticsLog.Debug("Built analytics view", "symbols", len(symbols), "books", len(in.Books), "equity", snap.Equity)
	return view, nil
}
