// Package desk serializes access to the ledger and ties it to the market
// store, persistence and subscribers.
package desk

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jwtly10/tradedesk/internal/analytics"
	"github.com/jwtly10/tradedesk/internal/depth"
	"github.com/jwtly10/tradedesk/internal/ledger"
	"github.com/jwtly10/tradedesk/internal/logging"
	"github.com/jwtly10/tradedesk/internal/market"
	"github.com/jwtly10/tradedesk/internal/risk"
	"github.com/jwtly10/tradedesk/internal/types"
)

const (
	DefaultEquityLimit = 5000
	DefaultHistoryLoad = 500

	analyticsSettingsKey = "analytics"
)

// Event kinds published to the Notifier.
const (
	EventLedger = "ledger"
	EventCandle = "candle"
	EventBook   = "book"
	EventConfig = "config"
)

var deskLog = logging.New("desk")

type LedgerStore interface {
	Save(ctx context.Context, state ledger.State) error
	Load(ctx context.Context) (ledger.State, bool, error)
}

type CandleStore interface {
	UpsertBatch(ctx context.Context, symbol string, bars []types.Bar) error
	Find(ctx context.Context, symbol string, limit int) ([]types.Bar, error)
	Symbols(ctx context.Context) ([]string, error)
}

type EquityStore interface {
	Append(ctx context.Context, p risk.EquityPoint) error
	Find(ctx context.Context, limit int) ([]risk.EquityPoint, error)
}

type SettingsStore interface {
	Put(ctx context.Context, key string, value any) error
	Get(ctx context.Context, key string, dst any) (bool, error)
}

// Notifier receives a copy of every published change.
type Notifier interface {
	Publish(kind string, payload any)
}

// Params wires a Service. Every store and the notifier are optional.
type Params struct {
	Ledger   LedgerStore
	Candles  CandleStore
	Equity   EquityStore
	Settings SettingsStore
	Notifier Notifier

	Market *market.Store
	Engine *analytics.Engine

	// InitialBalance funds a new ledger when nothing was persisted.
	InitialBalance float64
	// HistoryLoad is the number of candles per symbol loaded on start.
	HistoryLoad int
	// EquityLimit caps the equity curve kept in memory.
	EquityLimit int

	Clock func() time.Time
}

// CandleEvent and BookEvent are the payloads of EventCandle and EventBook.
type CandleEvent struct {
	Symbol string    `json:"symbol"`
	Bar    types.Bar `json:"bar"`
}

type BookEvent struct {
	Symbol string     `json:"symbol"`
	Book   depth.Book `json:"book"`
}

// Service is the single writer of the ledger. Mutations run under mu and
// are persisted and published before the lock is released, so subscribers
// observe them in order. Analytics work on a snapshot outside the lock.
type Service struct {
	mu     sync.Mutex
	ledger *ledger.Ledger
	equity []risk.EquityPoint
	engine *analytics.Engine

	market   *market.Store
	ledgers  LedgerStore
	candles  CandleStore
	curve    EquityStore
	settings SettingsStore
	notifier Notifier

	equityLimit int
	now         func() time.Time
}

// New restores the ledger, equity curve, analytics settings and candle
// history from the configured stores.
func New(ctx context.Context, p Params) (*Service, error) {
	if p.Market == nil {
		p.Market = market.NewStore(market.StoreParams{})
	}
	if p.Engine == nil {
		engine, err := analytics.New(analytics.DefaultConfig(), risk.DefaultConfig())
		if err != nil {
			return nil, err
		}
		p.Engine = engine
	}
	if p.HistoryLoad <= 0 {
		p.HistoryLoad = DefaultHistoryLoad
	}
	if p.EquityLimit <= 0 {
		p.EquityLimit = DefaultEquityLimit
	}
	if p.Clock == nil {
		p.Clock = func() time.Time { return time.Now().UTC() }
	}

	s := &Service{
		engine:      p.Engine,
		market:      p.Market,
		ledgers:     p.Ledger,
		candles:     p.Candles,
		curve:       p.Equity,
		settings:    p.Settings,
		notifier:    p.Notifier,
		equityLimit: p.EquityLimit,
		now:         p.Clock,
	}

	if err := s.restoreLedger(ctx, p.InitialBalance); err != nil {
		return nil, err
	}
	if err := s.restoreSettings(ctx); err != nil {
		return nil, err
	}
	if err := s.restoreHistory(ctx, p.HistoryLoad); err != nil {
		return nil, err
	}
	if err := s.markFromHistory(); err != nil {
		return nil, err
	}
	if err := s.restoreEquity(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) restoreLedger(ctx context.Context, initialBalance float64) error {
	if s.ledgers != nil {
		state, ok, err := s.ledgers.Load(ctx)
		if err != nil {
			return fmt.Errorf("load ledger: %w", err)
		}
		if ok {
			l, err := ledger.Restore(state, ledger.WithClock(s.now))
			if err != nil {
				return err
			}
			s.ledger = l
			slog.Info("Restored ledger", "cash", l.CashBalance(), "positions", l.PositionCount(), "orders", len(state.Orders))
			return nil
		}
	}

	l, err := ledger.New(initialBalance, ledger.WithClock(s.now))
	if err != nil {
		return err
	}
	s.ledger = l
	slog.Info("Created new ledger", "balance", initialBalance)
	if s.ledgers != nil {
		if err := s.ledgers.Save(ctx, l.Snapshot()); err != nil {
			return fmt.Errorf("save new ledger: %w", err)
		}
	}
	return nil
}

func (s *Service) restoreSettings(ctx context.Context) error {
	if s.settings == nil {
		return nil
	}
	var cfg analytics.Config
	found, err := s.settings.Get(ctx, analyticsSettingsKey, &cfg)
	if err != nil {
		return fmt.Errorf("load analytics settings: %w", err)
	}
	if !found {
		return nil
	}
	engine, err := analytics.New(cfg, s.engine.RiskConfig())
	if err != nil {
		slog.Warn("Ignoring stored analytics settings", "error", err)
		return nil
	}
	s.engine = engine
	return nil
}

func (s *Service) restoreHistory(ctx context.Context, limit int) error {
	if s.candles == nil {
		return nil
	}
	symbols, err := s.candles.Symbols(ctx)
	if err != nil {
		return fmt.Errorf("list candle symbols: %w", err)
	}
	for _, symbol := range symbols {
		bars, err := s.candles.Find(ctx, symbol, limit)
		if err != nil {
			return fmt.Errorf("load %s candles: %w", symbol, err)
		}
		if err := s.market.Load(symbol, bars); err != nil {
			return err
		}
	}
	slog.Info("Loaded candle history", "symbols", len(symbols))
	return nil
}

// markFromHistory marks restored positions at the latest known close. The
// equity curve is left alone until the next live mark.
func (s *Service) markFromHistory() error {
	last := s.market.LastPrices()
	prices := make(map[string]float64)
	for _, pos := range s.ledger.Positions() {
		if price, ok := last[pos.Symbol]; ok && price > 0 {
			prices[pos.Symbol] = price
		}
	}
	if len(prices) == 0 {
		return nil
	}
	n, err := s.ledger.UpdateMarkPrices(prices)
	if err != nil {
		return fmt.Errorf("mark from history: %w", err)
	}
	deskLog.Debug("Marked positions from history", "count", n)
	return nil
}

func (s *Service) restoreEquity(ctx context.Context) error {
	if s.curve != nil {
		points, err := s.curve.Find(ctx, s.equityLimit)
		if err != nil {
			return fmt.Errorf("load equity curve: %w", err)
		}
		s.equity = points
	}
	if len(s.equity) == 0 {
		s.recordEquity(ctx, s.ledger.Snapshot())
	}
	return nil
}

// mutate runs fn against the ledger under the lock and commits the result
// when fn succeeds.
func (s *Service) mutate(ctx context.Context, action string, fn func(l *ledger.Ledger) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(s.ledger); err != nil {
		deskLog.Debug("Ledger operation rejected", "action", action, "error", err)
		return err
	}
	s.commit(ctx, action)
	return nil
}

// commit persists and publishes the current ledger state. Callers hold mu.
// A failed save is logged, not returned: the in-memory ledger is
// authoritative and the next save replaces the stored state in full.
func (s *Service) commit(ctx context.Context, action string) ledger.State {
	snap := s.ledger.Snapshot()
	if s.ledgers != nil {
		if err := s.ledgers.Save(ctx, snap); err != nil {
			slog.Error("Failed to persist ledger", "action", action, "error", err)
		}
	}
	s.publish(EventLedger, snap)
	return snap
}

// recordEquity appends the snapshot's equity to the curve. Callers hold mu
// or own s exclusively. Non-positive equity is skipped since returns are
// undefined from zero.
func (s *Service) recordEquity(ctx context.Context, snap ledger.State) {
	value := snap.Equity()
	if value <= 0 {
		deskLog.Debug("Skipping non-positive equity point", "value", value)
		return
	}

	ts := s.now()
	if n := len(s.equity); n > 0 && ts.Before(s.equity[n-1].Timestamp) {
		ts = s.equity[n-1].Timestamp
	}
	p := risk.EquityPoint{Timestamp: ts, Value: value}

	s.equity = append(s.equity, p)
	if over := len(s.equity) - s.equityLimit; over > 0 {
		s.equity = append(s.equity[:0:0], s.equity[over:]...)
	}
	if s.curve != nil {
		if err := s.curve.Append(ctx, p); err != nil {
			slog.Error("Failed to persist equity point", "error", err)
		}
	}
}

func (s *Service) publish(kind string, payload any) {
	if s.notifier != nil {
		s.notifier.Publish(kind, payload)
	}
}
