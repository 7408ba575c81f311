package desk

import (
	"context"

	"github.com/jwtly10/tradedesk/internal/ledger"
)

func (s *Service) State() ledger.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Snapshot()
}

func (s *Service) Trades() []ledger.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Trades()
}

func (s *Service) Deposit(ctx context.Context, amount float64) error {
	return s.mutate(ctx, "deposit", func(l *ledger.Ledger) error {
		return l.Deposit(amount)
	})
}

func (s *Service) OpenPosition(ctx context.Context, symbol string, dir ledger.Direction, quantity, price float64) (ledger.Position, error) {
	var pos ledger.Position
	err := s.mutate(ctx, "open", func(l *ledger.Ledger) (err error) {
		pos, err = l.OpenPosition(normalize(symbol), dir, quantity, price)
		return err
	})
	return pos, err
}

func (s *Service) IncreasePosition(ctx context.Context, positionID string, quantity, price float64) (ledger.Position, error) {
	var pos ledger.Position
	err := s.mutate(ctx, "increase", func(l *ledger.Ledger) (err error) {
		pos, err = l.IncreasePosition(positionID, quantity, price)
		return err
	})
	return pos, err
}

func (s *Service) ClosePosition(ctx context.Context, positionID string, exitPrice, quantity float64) (ledger.Trade, error) {
	var trade ledger.Trade
	err := s.mutate(ctx, "close", func(l *ledger.Ledger) (err error) {
		trade, err = l.ClosePosition(positionID, exitPrice, quantity)
		return err
	})
	return trade, err
}

func (s *Service) SubmitOrder(ctx context.Context, req ledger.OrderRequest) (ledger.Order, error) {
	req.Symbol = normalize(req.Symbol)
	return s.orderOp(ctx, "submit", func(l *ledger.Ledger) (ledger.Order, error) {
		return l.SubmitOrder(req)
	})
}

func (s *Service) AcceptOrder(ctx context.Context, orderID string) (ledger.Order, error) {
	return s.orderOp(ctx, "accept", func(l *ledger.Ledger) (ledger.Order, error) {
		return l.AcceptOrder(orderID)
	})
}

func (s *Service) RejectOrder(ctx context.Context, orderID, reason string) (ledger.Order, error) {
	return s.orderOp(ctx, "reject", func(l *ledger.Ledger) (ledger.Order, error) {
		return l.RejectOrder(orderID, reason)
	})
}

func (s *Service) CancelOrder(ctx context.Context, orderID string) (ledger.Order, error) {
	return s.orderOp(ctx, "cancel", func(l *ledger.Ledger) (ledger.Order, error) {
		return l.CancelOrder(orderID)
	})
}

func (s *Service) FillOrder(ctx context.Context, orderID string, quantity, price float64) (ledger.Order, error) {
	return s.orderOp(ctx, "fill", func(l *ledger.Ledger) (ledger.Order, error) {
		return l.FillOrder(orderID, quantity, price)
	})
}

func (s *Service) orderOp(ctx context.Context, action string, fn func(l *ledger.Ledger) (ledger.Order, error)) (ledger.Order, error) {
	var o ledger.Order
	err := s.mutate(ctx, action, func(l *ledger.Ledger) (err error) {
		o, err = fn(l)
		return err
	})
	return o, err
}

func (s *Service) Watch(ctx context.Context, symbol string) error {
	return s.mutate(ctx, "watch", func(l *ledger.Ledger) error {
		return l.Watch(normalize(symbol))
	})
}

func (s *Service) Unwatch(ctx context.Context, symbol string) error {
	return s.mutate(ctx, "unwatch", func(l *ledger.Ledger) error {
		l.Unwatch(normalize(symbol))
		return nil
	})
}

// UpdateMarkPrices marks open positions and records an equity point.
func (s *Service) UpdateMarkPrices(ctx context.Context, prices map[string]float64) (int, error) {
	normalized := make(map[string]float64, len(prices))
	for symbol, price := range prices {
		normalized[normalize(symbol)] = price
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markLocked(ctx, normalized)
}

func (s *Service) markLocked(ctx context.Context, prices map[string]float64) (int, error) {
	n, err := s.ledger.UpdateMarkPrices(prices)
	if err != nil {
		return 0, err
	}
	snap := s.commit(ctx, "mark")
	s.recordEquity(ctx, snap)
	return n, nil
}
