package ledger

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jwtly10/tradedesk/internal/types"
)

const (
	ReasonManualClose = "MANUAL_CLOSE"
	ReasonOrderFill   = "ORDER_FILL"
)

// OpenPosition debits quantity x price and opens new exposure at that price.
func (l *Ledger) OpenPosition(symbol string, dir Direction, quantity, price float64) (Position, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return Position{}, err
	}
	if !dir.Valid() {
		return Position{}, fmt.Errorf("side %q: %w", dir, types.ErrInvalidOrder)
	}
	if err := validQuantity(quantity); err != nil {
		return Position{}, err
	}
	if err := validPrice(price); err != nil {
		return Position{}, err
	}

	cost := notional(quantity, price)
	if cost.GreaterThan(l.cash) {
		slog.Warn("Rejected position open", "symbol", symbol, "cost", cost.String(), "cash", l.cash.String())
		return Position{}, fmt.Errorf("open %s %s cost %s exceeds cash %s: %w",
			dir, symbol, cost.String(), l.cash.String(), types.ErrInsufficientFunds)
	}

	now := l.now()
	pos := l.open(symbol, dir, quantity, price, now)
	l.recordFill(l.newID(), symbol, entrySide(dir), quantity, price, pos.ID, nil, now)

	return *pos, nil
}

// IncreasePosition adds to an existing position and re-weights its average price.
func (l *Ledger) IncreasePosition(positionID string, quantity, price float64) (Position, error) {
	pos, _, err := l.findPosition(positionID)
	if err != nil {
		return Position{}, err
	}
	if err := validQuantity(quantity); err != nil {
		return Position{}, err
	}
	if err := validPrice(price); err != nil {
		return Position{}, err
	}

	cost := notional(quantity, price)
	if cost.GreaterThan(l.cash) {
		return Position{}, fmt.Errorf("increase %s cost %s exceeds cash %s: %w",
			positionID, cost.String(), l.cash.String(), types.ErrInsufficientFunds)
	}

	now := l.now()
	l.add(pos, quantity, price, now)
	l.recordFill(l.newID(), pos.Symbol, entrySide(pos.Direction), quantity, price, pos.ID, nil, now)

	return *pos, nil
}

// ClosePosition closes quantity of a position at exitPrice. Closing the full
// quantity removes the position; a partial close keeps the average price.
func (l *Ledger) ClosePosition(positionID string, exitPrice, quantity float64) (Trade, error) {
	pos, _, err := l.findPosition(positionID)
	if err != nil {
		return Trade{}, err
	}
	if err := validPrice(exitPrice); err != nil {
		return Trade{}, err
	}
	if err := validQuantity(quantity); err != nil {
		return Trade{}, err
	}
	if decimal.NewFromFloat(quantity).GreaterThan(decimal.NewFromFloat(pos.Quantity)) {
		return Trade{}, fmt.Errorf("close %v of %s holding %v: %w", quantity, positionID, pos.Quantity, types.ErrInvalidQuantity)
	}

	now := l.now()
	orderID := l.newID()
	trade := l.reduce(pos, quantity, exitPrice, ReasonManualClose, orderID, now)

	pnl := trade.PnL
	l.recordFill(orderID, trade.Symbol, exitSide(trade.Direction), quantity, exitPrice, positionID, &pnl, now)

	return trade, nil
}

// UpdateMarkPrices re-marks every open position whose symbol is in prices and
// returns how many positions were updated. Cash and orders are not touched.
func (l *Ledger) UpdateMarkPrices(prices map[string]float64) (int, error) {
	for symbol, price := range prices {
		if err := validPrice(price); err != nil {
			return 0, fmt.Errorf("mark %s: %w", symbol, err)
		}
	}

	now := l.now()
	updated := 0
	for _, pos := range l.positions {
		price, ok := prices[pos.Symbol]
		if !ok {
			continue
		}
		pos.mark(price, now)
		updated++
		ledgerLog.Debug("Marked position", "id", pos.ID, "symbol", pos.Symbol, "mark", price, "unrealized_pnl", pos.UnrealizedPnL)
	}
	return updated, nil
}

func (l *Ledger) open(symbol string, dir Direction, quantity, price float64, now time.Time) *Position {
	l.cash = l.cash.Sub(notional(quantity, price))

	pos := &Position{
		ID:           l.newID(),
		Symbol:       symbol,
		Direction:    dir,
		Quantity:     quantity,
		AveragePrice: price,
		CurrentPrice: price,
		OpenedAt:     now,
		LastUpdated:  now,
	}
	l.positions = append(l.positions, pos)

	slog.Info("Opened position", "id", pos.ID, "symbol", symbol, "side", dir, "quantity", quantity, "price", price, "cash", l.cash.String())
	return pos
}

func (l *Ledger) add(pos *Position, quantity, price float64, now time.Time) {
	l.cash = l.cash.Sub(notional(quantity, price))

	total := decimal.NewFromFloat(pos.Quantity).Add(decimal.NewFromFloat(quantity))
	basis := notional(pos.Quantity, pos.AveragePrice).Add(notional(quantity, price))
	oldAvg := pos.AveragePrice

	pos.Quantity = total.InexactFloat64()
	pos.AveragePrice = basis.Div(total).InexactFloat64()
	pos.mark(pos.CurrentPrice, now)

	slog.Info("Increased position", "id", pos.ID, "symbol", pos.Symbol, "added", quantity, "price", price,
		"old_avg", oldAvg, "new_avg", pos.AveragePrice, "quantity", pos.Quantity, "cash", l.cash.String())
}

// reduce closes quantity of pos at exitPrice, credits the proceeds and appends a Trade.
// Callers validate quantity <= pos.Quantity first.
func (l *Ledger) reduce(pos *Position, quantity, exitPrice float64, reason, orderID string, now time.Time) Trade {
	proceeds, pnl := settle(*pos, quantity, exitPrice)
	l.cash = l.cash.Add(proceeds)

	basis := notional(quantity, pos.AveragePrice).InexactFloat64()
	trade := Trade{
		ID:         l.newID(),
		PositionID: pos.ID,
		OrderID:    orderID,
		Symbol:     pos.Symbol,
		EntryTime:  pos.OpenedAt,
		ExitTime:   now,
		Direction:  pos.Direction,
		EntryPrice: pos.AveragePrice,
		ExitPrice:  exitPrice,
		Size:       quantity,
		PnL:        pnl,
		PnLPercent: pnl / basis * 100,
		ExitReason: reason,
	}
	l.trades = append(l.trades, trade)

	remaining := decimal.NewFromFloat(pos.Quantity).Sub(decimal.NewFromFloat(quantity))
	if remaining.IsPositive() {
		pos.Quantity = remaining.InexactFloat64()
		pos.mark(pos.CurrentPrice, now)
	} else {
		l.removePosition(pos.ID)
	}

	slog.Info("Closed position", "id", pos.ID, "symbol", pos.Symbol, "side", pos.Direction, "quantity", quantity,
		"exit_price", exitPrice, "pnl", pnl, "remaining", remaining.String(), "reason", reason, "cash", l.cash.String())
	return trade
}

func (l *Ledger) removePosition(id string) {
	kept := l.positions[:0]
	for _, p := range l.positions {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	l.positions = kept
}

// settle returns the cash released by closing quantity of pos at exitPrice and
// the realized PnL. The released cash is the cost basis plus PnL, which is
// quantity x exitPrice for longs. The cash released by a short is floored at
// zero; the realized PnL is always (exit - avg) x quantity x sign.
func settle(pos Position, quantity, exitPrice float64) (decimal.Decimal, float64) {
	basis := notional(quantity, pos.AveragePrice)
	pnl := decimal.NewFromFloat(exitPrice).Sub(decimal.NewFromFloat(pos.AveragePrice)).Mul(decimal.NewFromFloat(quantity))
	if pos.Direction == SHORT {
		pnl = pnl.Neg()
	}

	proceeds := basis.Add(pnl)
	if proceeds.IsNegative() {
		proceeds = decimal.Zero
	}
	return proceeds, pnl.InexactFloat64()
}
