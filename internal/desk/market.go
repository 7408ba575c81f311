package desk

import (
	"context"
	"fmt"
	"strings"

	"github.com/jwtly10/tradedesk/internal/analytics"
	"github.com/jwtly10/tradedesk/internal/depth"
	"github.com/jwtly10/tradedesk/internal/risk"
	"github.com/jwtly10/tradedesk/internal/types"
)

// normalize upper-cases symbols on the way in so the ledger, market store
// and feed agree on keys.
func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ApplyBar appends a candle to the history, persists it and marks any open
// position on the symbol at the close. Re-applying the same bar is harmless,
// so callers may retry on error.
func (s *Service) ApplyBar(ctx context.Context, symbol string, bar types.Bar) error {
	symbol = normalize(symbol)
	if err := s.market.Append(symbol, bar); err != nil {
		return err
	}
	if s.candles != nil {
		if err := s.candles.UpsertBatch(ctx, symbol, []types.Bar{bar}); err != nil {
			return fmt.Errorf("persist %s candle: %w", symbol, err)
		}
	}
	s.publish(EventCandle, CandleEvent{Symbol: symbol, Bar: bar})

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.holdsLocked(symbol) {
		return nil
	}
	_, err := s.markLocked(ctx, map[string]float64{symbol: bar.Close})
	return err
}

// ApplyBook validates and stores the latest order book snapshot for symbol.
func (s *Service) ApplyBook(_ context.Context, symbol string, raw depth.RawBook) error {
	symbol = normalize(symbol)
	book, err := raw.Aggregate()
	if err != nil {
		return fmt.Errorf("%s book: %w", symbol, err)
	}
	s.market.SetBook(symbol, raw)
	s.publish(EventBook, BookEvent{Symbol: symbol, Book: book})
	return nil
}

func (s *Service) holdsLocked(symbol string) bool {
	for _, p := range s.ledger.Positions() {
		if p.Symbol == symbol {
			return true
		}
	}
	return false
}

// Analytics snapshots the ledger and equity curve under the lock and builds
// the view outside it.
func (s *Service) Analytics(ctx context.Context) (analytics.View, error) {
	s.mu.Lock()
	in := analytics.Input{
		State:  s.ledger.Snapshot(),
		Equity: append([]risk.EquityPoint(nil), s.equity...),
	}
	engine := s.engine
	s.mu.Unlock()

	in.History = s.market.Snapshot()
	in.Books = s.market.Books()
	return engine.Build(ctx, in)
}

func (s *Service) Indicators(symbol string) (analytics.IndicatorSet, error) {
	symbol = normalize(symbol)
	bars := s.market.History(symbol)
	if len(bars) == 0 {
		return analytics.IndicatorSet{}, fmt.Errorf("no candles for %s: %w", symbol, types.ErrSymbolNotFound)
	}
	return s.currentEngine().Indicators(symbol, bars)
}

func (s *Service) Depth(symbol string) (depth.Book, error) {
	symbol = normalize(symbol)
	raw, ok := s.market.Book(symbol)
	if !ok {
		return depth.Book{}, fmt.Errorf("no book for %s: %w", symbol, types.ErrSymbolNotFound)
	}
	return raw.Aggregate()
}

// Slippage estimates filling size against the latest book. On
// ErrInsufficientLiquidity the partial estimate is returned too.
func (s *Service) Slippage(symbol string, size float64, side depth.Side) (depth.Estimate, error) {
	book, err := s.Depth(symbol)
	if err != nil {
		return depth.Estimate{}, err
	}
	return book.Slippage(size, side)
}

// PositionSize sizes a trade risking riskPercent of the current cash balance.
func (s *Service) PositionSize(riskPercent, entry, stop float64) (float64, error) {
	s.mu.Lock()
	balance := s.ledger.CashBalance()
	s.mu.Unlock()
	return risk.PositionSize(balance, riskPercent, entry, stop)
}

func (s *Service) AnalyticsConfig() analytics.Config {
	return s.currentEngine().Config()
}

// UpdateAnalyticsConfig validates and persists cfg, then swaps the engine.
func (s *Service) UpdateAnalyticsConfig(ctx context.Context, cfg analytics.Config) (analytics.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	engine, err := analytics.New(cfg, s.engine.RiskConfig())
	if err != nil {
		return analytics.Config{}, err
	}
	if s.settings != nil {
		if err := s.settings.Put(ctx, analyticsSettingsKey, cfg); err != nil {
			return analytics.Config{}, fmt.Errorf("save analytics settings: %w", err)
		}
	}
	s.engine = engine
	s.publish(EventConfig, engine.Config())
	return engine.Config(), nil
}

func (s *Service) currentEngine() *analytics.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}
