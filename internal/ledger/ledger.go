// Package ledger tracks cash, open positions and the order history of a single
// trading account.
//
// A Ledger is single-writer: callers serialize mutations themselves. Every
// mutating method either applies fully or returns a typed error from
// internal/types and leaves the ledger untouched.
package ledger

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwtly10/tradedesk/internal/logging"
	"github.com/jwtly10/tradedesk/internal/types"
)

const (
	LONG  Direction = "long"
	SHORT Direction = "short"
)

type Direction string

func (d Direction) Valid() bool {
	return d == LONG || d == SHORT
}

// Sign is +1 for long and -1 for short exposure.
func (d Direction) Sign() float64 {
	if d == SHORT {
		return -1
	}
	return 1
}

var ledgerLog = logging.New("ledger")

type Position struct {
	ID                   string    `json:"id"`
	Symbol               string    `json:"symbol"`
	Direction            Direction `json:"side"`
	Quantity             float64   `json:"quantity"`
	AveragePrice         float64   `json:"averagePrice"`
	CurrentPrice         float64   `json:"currentPrice"`
	UnrealizedPnL        float64   `json:"unrealizedPnL"`
	UnrealizedPnLPercent float64   `json:"unrealizedPnLPercent"`
	OpenedAt             time.Time `json:"openedAt"`
	LastUpdated          time.Time `json:"lastUpdated"`
}

// CostBasis is quantity x average entry price.
func (p Position) CostBasis() float64 {
	return p.Quantity * p.AveragePrice
}

// MarketValue is the cost basis plus unrealized PnL, which is quantity x mark for longs.
func (p Position) MarketValue() float64 {
	return p.CostBasis() + p.UnrealizedPnL
}

func (p *Position) mark(price float64, at time.Time) {
	p.CurrentPrice = price
	p.UnrealizedPnL = (price - p.AveragePrice) * p.Quantity * p.Direction.Sign()
	p.UnrealizedPnLPercent = (price - p.AveragePrice) / p.AveragePrice * 100 * p.Direction.Sign()
	p.LastUpdated = at
}

// Trade is the realized record of a (partial) position close.
type Trade struct {
	ID         string    `json:"id"`
	PositionID string    `json:"positionId"`
	OrderID    string    `json:"orderId"`
	Symbol     string    `json:"symbol"`
	EntryTime  time.Time `json:"entryTime"`
	ExitTime   time.Time `json:"exitTime"`
	Direction  Direction `json:"side"`
	EntryPrice float64   `json:"entryPrice"`
	ExitPrice  float64   `json:"exitPrice"`
	Size       float64   `json:"size"`
	PnL        float64   `json:"pnl"`
	PnLPercent float64   `json:"pnlPercent"`
	ExitReason string    `json:"exitReason"`
}

func (t Trade) Print() {
	fmt.Printf("#%s | %s %s | Entry: %.5f @ %s | Exit: %.5f @ %s | P&L: %.2f | %s\n",
		t.ID,
		t.Symbol,
		t.Direction,
		t.EntryPrice,
		t.EntryTime.Format("2006-01-02 15:04"),
		t.ExitPrice,
		t.ExitTime.Format("2006-01-02 15:04"),
		t.PnL,
		t.ExitReason,
	)
}

type Ledger struct {
	cash      decimal.Decimal
	funded    decimal.Decimal
	positions []*Position
	orders    []*Order
	trades    []Trade
	watchlist []string

	now   func() time.Time
	newID func() string
}

type Option func(*Ledger)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator replaces the uuid based id generator.
func WithIDGenerator(newID func() string) Option {
	return func(l *Ledger) { l.newID = newID }
}

func New(initialBalance float64, opts ...Option) (*Ledger, error) {
	if initialBalance < 0 || math.IsNaN(initialBalance) || math.IsInf(initialBalance, 0) {
		return nil, fmt.Errorf("initial balance %v: %w", initialBalance, types.ErrInvalidQuantity)
	}

	balance := decimal.NewFromFloat(initialBalance)
	l := newLedger(opts...)
	l.cash = balance
	l.funded = balance

	slog.Info("Ledger created", "initial_balance", initialBalance)
	return l, nil
}

func newLedger(opts ...Option) *Ledger {
	l := &Ledger{
		positions: []*Position{},
		orders:    []*Order{},
		trades:    []Trade{},
		watchlist: []string{},
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Deposit adds funded capital and cash.
func (l *Ledger) Deposit(amount float64) error {
	if err := validQuantity(amount); err != nil {
		return fmt.Errorf("deposit: %w", err)
	}
	d := decimal.NewFromFloat(amount)
	l.cash = l.cash.Add(d)
	l.funded = l.funded.Add(d)
	slog.Info("Deposited funds", "amount", amount, "cash", l.cash.String())
	return nil
}

func (l *Ledger) CashBalance() float64 {
	return l.cash.InexactFloat64()
}

func (l *Ledger) FundedCapital() float64 {
	return l.funded.InexactFloat64()
}

// Equity is cash plus the market value of every open position.
func (l *Ledger) Equity() float64 {
	equity := l.cash.InexactFloat64()
	for _, pos := range l.positions {
		equity += pos.MarketValue()
	}
	return equity
}

func (l *Ledger) Positions() []Position {
	out := make([]Position, len(l.positions))
	for i, pos := range l.positions {
		out[i] = *pos
	}
	return out
}

func (l *Ledger) Position(id string) (Position, error) {
	pos, _, err := l.findPosition(id)
	if err != nil {
		return Position{}, err
	}
	return *pos, nil
}

func (l *Ledger) PositionCount() int {
	return len(l.positions)
}

func (l *Ledger) Orders() []Order {
	out := make([]Order, len(l.orders))
	for i, o := range l.orders {
		out[i] = o.clone()
	}
	return out
}

func (l *Ledger) Order(id string) (Order, error) {
	o, err := l.findOrder(id)
	if err != nil {
		return Order{}, err
	}
	return o.clone(), nil
}

// Trades returns the closed trade history, oldest first.
func (l *Ledger) Trades() []Trade {
	out := make([]Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

func (l *Ledger) Watchlist() []string {
	out := make([]string, len(l.watchlist))
	copy(out, l.watchlist)
	return out
}

// Watch adds a symbol to the watchlist. Adding a symbol twice is a no-op.
func (l *Ledger) Watch(symbol string) error {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return err
	}
	for _, s := range l.watchlist {
		if s == symbol {
			return nil
		}
	}
	l.watchlist = append(l.watchlist, symbol)
	return nil
}

func (l *Ledger) Unwatch(symbol string) {
	symbol = strings.TrimSpace(symbol)
	for i, s := range l.watchlist {
		if s == symbol {
			l.watchlist = append(l.watchlist[:i:i], l.watchlist[i+1:]...)
			return
		}
	}
}

func (l *Ledger) findPosition(id string) (*Position, int, error) {
	for i, pos := range l.positions {
		if pos.ID == id {
			return pos, i, nil
		}
	}
	return nil, -1, fmt.Errorf("position %s: %w", id, types.ErrPositionNotFound)
}

func (l *Ledger) findOrder(id string) (*Order, error) {
	for _, o := range l.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, fmt.Errorf("order %s: %w", id, types.ErrOrderNotFound)
}

func normalizeSymbol(symbol string) (string, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return "", fmt.Errorf("symbol is required: %w", types.ErrInvalidOrder)
	}
	return symbol, nil
}

func validQuantity(q float64) error {
	if !(q > 0) || math.IsInf(q, 0) {
		return fmt.Errorf("quantity %v: %w", q, types.ErrInvalidQuantity)
	}
	return nil
}

func validPrice(p float64) error {
	if !(p > 0) || math.IsInf(p, 0) {
		return fmt.Errorf("price %v: %w", p, types.ErrInvalidPrice)
	}
	return nil
}

func notional(quantity, price float64) decimal.Decimal {
	return decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(price))
}
