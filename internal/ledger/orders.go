package ledger

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jwtly10/tradedesk/internal/types"
)

const (
	BUY  OrderSide = "buy"
	SELL OrderSide = "sell"

	MARKET     OrderType = "market"
	LIMIT      OrderType = "limit"
	STOP       OrderType = "stop"
	STOP_LIMIT OrderType = "stop-limit"

	PENDING          OrderStatus = "pending"
	OPEN             OrderStatus = "open"
	PARTIALLY_FILLED OrderStatus = "partially-filled"
	FILLED           OrderStatus = "filled"
	CANCELLED        OrderStatus = "cancelled"
	REJECTED         OrderStatus = "rejected"
)

type OrderSide string
type OrderType string
type OrderStatus string

// transitions lists the legal next states. Terminal states have no entry.
var transitions = map[OrderStatus][]OrderStatus{
	PENDING:          {OPEN, CANCELLED, REJECTED},
	OPEN:             {PARTIALLY_FILLED, FILLED, CANCELLED},
	PARTIALLY_FILLED: {PARTIALLY_FILLED, FILLED},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == FILLED || s == CANCELLED || s == REJECTED
}

func (s OrderStatus) Valid() bool {
	_, ok := transitions[s]
	return ok || s.Terminal()
}

func (s OrderSide) Valid() bool {
	return s == BUY || s == SELL
}

func (t OrderType) Valid() bool {
	switch t {
	case MARKET, LIMIT, STOP, STOP_LIMIT:
		return true
	}
	return false
}

type Order struct {
	ID             string      `json:"id"`
	Symbol         string      `json:"symbol"`
	Side           OrderSide   `json:"side"`
	Type           OrderType   `json:"type"`
	Quantity       float64     `json:"quantity"`
	Price          *float64    `json:"price"`
	Status         OrderStatus `json:"status"`
	FilledQuantity float64     `json:"filledQuantity"`
	AvgFillPrice   float64     `json:"avgFillPrice"`
	PositionID     string      `json:"positionId,omitempty"`
	RealizedPnL    *float64    `json:"realizedPnL"`
	RejectReason   string      `json:"rejectReason,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// Remaining is the unfilled quantity.
func (o Order) Remaining() float64 {
	return decimal.NewFromFloat(o.Quantity).Sub(decimal.NewFromFloat(o.FilledQuantity)).InexactFloat64()
}

func (o Order) clone() Order {
	c := o
	if o.Price != nil {
		p := *o.Price
		c.Price = &p
	}
	if o.RealizedPnL != nil {
		r := *o.RealizedPnL
		c.RealizedPnL = &r
	}
	return c
}

type OrderRequest struct {
	Symbol   string    `json:"symbol"`
	Side     OrderSide `json:"side"`
	Type     OrderType `json:"type"`
	Quantity float64   `json:"quantity"`
	Price    *float64  `json:"price"`
}

func (r OrderRequest) validate() (string, error) {
	symbol, err := normalizeSymbol(r.Symbol)
	if err != nil {
		return "", err
	}
	if !r.Side.Valid() {
		return "", fmt.Errorf("side %q: %w", r.Side, types.ErrInvalidOrder)
	}
	if !r.Type.Valid() {
		return "", fmt.Errorf("type %q: %w", r.Type, types.ErrInvalidOrder)
	}
	if err := validQuantity(r.Quantity); err != nil {
		return "", err
	}
	if r.Type != MARKET && r.Price == nil {
		return "", fmt.Errorf("%s order needs a price: %w", r.Type, types.ErrInvalidOrder)
	}
	if r.Price != nil {
		if err := validPrice(*r.Price); err != nil {
			return "", err
		}
	}
	return symbol, nil
}

// SubmitOrder records a new pending order. It does not touch cash or positions.
func (l *Ledger) SubmitOrder(req OrderRequest) (Order, error) {
	symbol, err := req.validate()
	if err != nil {
		return Order{}, err
	}

	now := l.now()
	o := &Order{
		ID:        l.newID(),
		Symbol:    symbol,
		Side:      req.Side,
		Type:      req.Type,
		Quantity:  req.Quantity,
		Status:    PENDING,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Price != nil {
		p := *req.Price
		o.Price = &p
	}
	l.orders = append(l.orders, o)

	slog.Info("Submitted order", "id", o.ID, "symbol", symbol, "side", req.Side, "type", req.Type, "quantity", req.Quantity)
	return o.clone(), nil
}

// AcceptOrder moves a pending order to open.
func (l *Ledger) AcceptOrder(orderID string) (Order, error) {
	o, err := l.transition(orderID, OPEN)
	if err != nil {
		return Order{}, err
	}
	return o.clone(), nil
}

// RejectOrder moves a pending order to rejected.
func (l *Ledger) RejectOrder(orderID, reason string) (Order, error) {
	o, err := l.transition(orderID, REJECTED)
	if err != nil {
		return Order{}, err
	}
	o.RejectReason = reason
	return o.clone(), nil
}

// CancelOrder is legal from pending or open only.
func (l *Ledger) CancelOrder(orderID string) (Order, error) {
	o, err := l.transition(orderID, CANCELLED)
	if err != nil {
		return Order{}, err
	}
	return o.clone(), nil
}

func (l *Ledger) transition(orderID string, next OrderStatus) (*Order, error) {
	o, err := l.findOrder(orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("order %s %s -> %s: %w", orderID, o.Status, next, types.ErrInvalidStateTransition)
	}

	prev := o.Status
	o.Status = next
	o.UpdatedAt = l.now()

	slog.Info("Order transition", "id", orderID, "from", prev, "to", next)
	return o, nil
}

// FillOrder applies a fill of quantity at price to an open or partially filled
// order. A buy first reduces any short exposure in the symbol and opens or
// increases a long with the remainder; a sell mirrors that.
func (l *Ledger) FillOrder(orderID string, quantity, price float64) (Order, error) {
	o, err := l.findOrder(orderID)
	if err != nil {
		return Order{}, err
	}
	if o.Status != OPEN && o.Status != PARTIALLY_FILLED {
		return Order{}, fmt.Errorf("fill order %s in status %s: %w", orderID, o.Status, types.ErrInvalidStateTransition)
	}
	if err := validQuantity(quantity); err != nil {
		return Order{}, err
	}
	if err := validPrice(price); err != nil {
		return Order{}, err
	}

	remaining := decimal.NewFromFloat(o.Quantity).Sub(decimal.NewFromFloat(o.FilledQuantity))
	fillQty := decimal.NewFromFloat(quantity)
	if fillQty.GreaterThan(remaining) {
		return Order{}, fmt.Errorf("fill %v exceeds remaining %s of order %s: %w", quantity, remaining.String(), orderID, types.ErrInvalidQuantity)
	}

	plan := l.planFill(o.Symbol, o.Side, quantity, price)
	if plan.openQty > 0 {
		available := l.cash.Add(plan.proceeds)
		cost := notional(plan.openQty, price)
		if cost.GreaterThan(available) {
			return Order{}, fmt.Errorf("fill order %s cost %s exceeds available %s: %w",
				orderID, cost.String(), available.String(), types.ErrInsufficientFunds)
		}
	}

	// Validation done, nothing below can fail.
	now := l.now()
	realized := decimal.Zero
	for _, r := range plan.reductions {
		trade := l.reduce(r.pos, r.quantity, price, ReasonOrderFill, o.ID, now)
		realized = realized.Add(decimal.NewFromFloat(trade.PnL))
		o.PositionID = r.pos.ID
	}
	if plan.openQty > 0 {
		if plan.existing != nil {
			l.add(plan.existing, plan.openQty, price, now)
			o.PositionID = plan.existing.ID
		} else {
			pos := l.open(o.Symbol, entryDirection(o.Side), plan.openQty, price, now)
			o.PositionID = pos.ID
		}
	}

	filledBefore := decimal.NewFromFloat(o.FilledQuantity)
	filledAfter := filledBefore.Add(fillQty)
	o.AvgFillPrice = filledBefore.Mul(decimal.NewFromFloat(o.AvgFillPrice)).
		Add(notional(quantity, price)).
		Div(filledAfter).
		InexactFloat64()
	o.FilledQuantity = filledAfter.InexactFloat64()
	if len(plan.reductions) > 0 {
		total := realized
		if o.RealizedPnL != nil {
			total = total.Add(decimal.NewFromFloat(*o.RealizedPnL))
		}
		pnl := total.InexactFloat64()
		o.RealizedPnL = &pnl
	}
	if filledAfter.Equal(decimal.NewFromFloat(o.Quantity)) {
		o.Status = FILLED
	} else {
		o.Status = PARTIALLY_FILLED
	}
	o.UpdatedAt = now

	slog.Info("Filled order", "id", o.ID, "symbol", o.Symbol, "quantity", quantity, "price", price,
		"filled", o.FilledQuantity, "status", o.Status)
	return o.clone(), nil
}

type reduction struct {
	pos      *Position
	quantity float64
}

type fillPlan struct {
	reductions []reduction
	proceeds   decimal.Decimal
	openQty    float64
	existing   *Position
}

func (l *Ledger) planFill(symbol string, side OrderSide, quantity, price float64) fillPlan {
	plan := fillPlan{proceeds: decimal.Zero}
	left := decimal.NewFromFloat(quantity)
	closing := exitDirection(side)
	opening := entryDirection(side)

	for _, pos := range l.positions {
		if pos.Symbol != symbol {
			continue
		}
		if pos.Direction == opening && plan.existing == nil {
			plan.existing = pos
			continue
		}
		if pos.Direction != closing || !left.IsPositive() {
			continue
		}

		take := decimal.Min(left, decimal.NewFromFloat(pos.Quantity))
		qty := take.InexactFloat64()
		proceeds, _ := settle(*pos, qty, price)
		plan.reductions = append(plan.reductions, reduction{pos: pos, quantity: qty})
		plan.proceeds = plan.proceeds.Add(proceeds)
		left = left.Sub(take)
	}

	if left.IsPositive() {
		plan.openQty = left.InexactFloat64()
	}
	return plan
}

// recordFill appends an already filled market order for a direct ledger fill.
func (l *Ledger) recordFill(orderID, symbol string, side OrderSide, quantity, price float64, positionID string, pnl *float64, now time.Time) {
	l.orders = append(l.orders, &Order{
		ID:             orderID,
		Symbol:         symbol,
		Side:           side,
		Type:           MARKET,
		Quantity:       quantity,
		Price:          &price,
		Status:         FILLED,
		FilledQuantity: quantity,
		AvgFillPrice:   price,
		PositionID:     positionID,
		RealizedPnL:    pnl,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}

func entrySide(d Direction) OrderSide {
	if d == SHORT {
		return SELL
	}
	return BUY
}

func exitSide(d Direction) OrderSide {
	if d == SHORT {
		return BUY
	}
	return SELL
}

func entryDirection(s OrderSide) Direction {
	if s == SELL {
		return SHORT
	}
	return LONG
}

func exitDirection(s OrderSide) Direction {
	if s == SELL {
		return LONG
	}
	return SHORT
}
