package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jwtly10/tradedesk/internal/types"
)

// State is an immutable copy of everything a Ledger owns. It is the schema
// handed to renderers and to persistence; Restore rebuilds a Ledger from it
// without replaying history.
type State struct {
	CashBalance   decimal.Decimal `json:"cashBalance"`
	FundedCapital decimal.Decimal `json:"fundedCapital"`
	Positions     []Position      `json:"positions"`
	Orders        []Order         `json:"orders"`
	Trades        []Trade         `json:"trades"`
	Watchlist     []string        `json:"watchlist"`
	TakenAt       time.Time       `json:"takenAt"`
}

// Equity is cash plus the market value of the open positions.
func (s State) Equity() float64 {
	equity := s.CashBalance.InexactFloat64()
	for _, pos := range s.Positions {
		equity += pos.MarketValue()
	}
	return equity
}

func (s State) UnrealizedPnL() float64 {
	total := 0.0
	for _, pos := range s.Positions {
		total += pos.UnrealizedPnL
	}
	return total
}

func (s State) RealizedPnL() float64 {
	total := decimal.Zero
	for _, t := range s.Trades {
		total = total.Add(decimal.NewFromFloat(t.PnL))
	}
	return total.InexactFloat64()
}

func (l *Ledger) Snapshot() State {
	return State{
		CashBalance:   l.cash,
		FundedCapital: l.funded,
		Positions:     l.Positions(),
		Orders:        l.Orders(),
		Trades:        l.Trades(),
		Watchlist:     l.Watchlist(),
		TakenAt:       l.now(),
	}
}

// Restore rebuilds a Ledger from a persisted State.
func Restore(state State, opts ...Option) (*Ledger, error) {
	if state.CashBalance.IsNegative() {
		return nil, fmt.Errorf("restore: cash balance %s: %w", state.CashBalance.String(), types.ErrInsufficientFunds)
	}

	l := newLedger(opts...)
	l.cash = state.CashBalance
	l.funded = state.FundedCapital

	for _, pos := range state.Positions {
		if !pos.Direction.Valid() {
			return nil, fmt.Errorf("restore position %s side %q: %w", pos.ID, pos.Direction, types.ErrInvalidOrder)
		}
		if err := validQuantity(pos.Quantity); err != nil {
			return nil, fmt.Errorf("restore position %s: %w", pos.ID, err)
		}
		if err := validPrice(pos.AveragePrice); err != nil {
			return nil, fmt.Errorf("restore position %s: %w", pos.ID, err)
		}
		p := pos
		l.positions = append(l.positions, &p)
	}

	for _, o := range state.Orders {
		if !o.Status.Valid() {
			return nil, fmt.Errorf("restore order %s status %q: %w", o.ID, o.Status, types.ErrInvalidStateTransition)
		}
		c := o.clone()
		l.orders = append(l.orders, &c)
	}

	l.trades = append(l.trades, state.Trades...)
	l.watchlist = append(l.watchlist, state.Watchlist...)

	return l, nil
}
