package storage

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jwtly10/tradedesk/internal/ledger"
)

const accountRowID = 1

// storedRows mirrors the position, order and trade rows as last written or
// loaded, keyed by id.
type storedRows struct {
	positions map[string]PositionModel
	orders    map[string]OrderModel
	trades    map[string]TradeModel
}

type LedgerRepository struct {
	db *gorm.DB

	mu     sync.Mutex
	stored *storedRows
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Save makes the stored ledger equal to state in one transaction. Only rows
// that differ from the last save or load are written; rows no longer present
// are deleted. The first save of a repository that has not loaded clears the
// tables and writes everything.
func (r *LedgerRepository) Save(ctx context.Context, state ledger.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	positions := make([]PositionModel, len(state.Positions))
	for i, p := range state.Positions {
		positions[i] = toPositionModel(i, p)
	}
	orders := make([]OrderModel, len(state.Orders))
	for i, o := range state.Orders {
		orders[i] = toOrderModel(i, o)
	}
	trades := make([]TradeModel, len(state.Trades))
	for i, t := range state.Trades {
		trades[i] = toTradeModel(i, t)
	}

	prev := r.stored
	var next storedRows
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account := AccountModel{
			ID:            accountRowID,
			CashBalance:   state.CashBalance.String(),
			FundedCapital: state.FundedCapital.String(),
			SavedAt:       state.TakenAt,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"cash_balance", "funded_capital", "saved_at"}),
		}).Create(&account).Error; err != nil {
			return fmt.Errorf("save account: %w", err)
		}

		if prev == nil {
			prev = &storedRows{}
			for _, model := range []any{&PositionModel{}, &OrderModel{}, &TradeModel{}} {
				if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
					return fmt.Errorf("clear %T: %w", model, err)
				}
			}
		}

		var err error
		if next.positions, err = syncRows(tx, prev.positions, positions, func(m PositionModel) string { return m.ID }); err != nil {
			return fmt.Errorf("save positions: %w", err)
		}
		if next.orders, err = syncRows(tx, prev.orders, orders, func(m OrderModel) string { return m.ID }); err != nil {
			return fmt.Errorf("save orders: %w", err)
		}
		if next.trades, err = syncRows(tx, prev.trades, trades, func(m TradeModel) string { return m.ID }); err != nil {
			return fmt.Errorf("save trades: %w", err)
		}

		// the watchlist is a handful of symbols whose order matters
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&WatchlistModel{}).Error; err != nil {
			return fmt.Errorf("clear watchlist: %w", err)
		}
		if len(state.Watchlist) > 0 {
			rows := make([]WatchlistModel, len(state.Watchlist))
			for i, s := range state.Watchlist {
				rows[i] = WatchlistModel{Symbol: s, Seq: i}
			}
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("save watchlist: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		// the tables may not match what was remembered, start over next time
		r.stored = nil
		return err
	}
	r.stored = &next
	return nil
}

// syncRows upserts the rows that differ from prev and deletes the ids in prev
// that are missing from rows. It returns rows keyed by id.
func syncRows[M any](tx *gorm.DB, prev map[string]M, rows []M, id func(M) string) (map[string]M, error) {
	next := make(map[string]M, len(rows))
	var changed []M
	for _, row := range rows {
		key := id(row)
		next[key] = row
		if old, ok := prev[key]; !ok || !reflect.DeepEqual(old, row) {
			changed = append(changed, row)
		}
	}

	var stale []string
	for key := range prev {
		if _, ok := next[key]; !ok {
			stale = append(stale, key)
		}
	}
	if len(stale) > 0 {
		if err := tx.Where("id IN ?", stale).Delete(new(M)).Error; err != nil {
			return nil, err
		}
	}

	if len(changed) > 0 {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).CreateInBatches(&changed, 200).Error; err != nil {
			return nil, err
		}
	}
	return next, nil
}

// Load returns the stored ledger state. ok is false when nothing was saved yet.
func (r *LedgerRepository) Load(ctx context.Context) (state ledger.State, ok bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	db := r.db.WithContext(ctx)

	var account AccountModel
	if err := db.First(&account, accountRowID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.State{}, false, nil
		}
		return ledger.State{}, false, fmt.Errorf("load account: %w", err)
	}

	if state.CashBalance, err = decimal.NewFromString(account.CashBalance); err != nil {
		return ledger.State{}, false, fmt.Errorf("parse cash balance: %w", err)
	}
	if state.FundedCapital, err = decimal.NewFromString(account.FundedCapital); err != nil {
		return ledger.State{}, false, fmt.Errorf("parse funded capital: %w", err)
	}
	state.TakenAt = account.SavedAt.UTC()

	var positions []PositionModel
	if err := db.Order("seq").Find(&positions).Error; err != nil {
		return ledger.State{}, false, fmt.Errorf("load positions: %w", err)
	}
	var orders []OrderModel
	if err := db.Order("seq").Find(&orders).Error; err != nil {
		return ledger.State{}, false, fmt.Errorf("load orders: %w", err)
	}
	var trades []TradeModel
	if err := db.Order("seq").Find(&trades).Error; err != nil {
		return ledger.State{}, false, fmt.Errorf("load trades: %w", err)
	}
	var watchlist []WatchlistModel
	if err := db.Order("seq").Find(&watchlist).Error; err != nil {
		return ledger.State{}, false, fmt.Errorf("load watchlist: %w", err)
	}

	state.Positions = make([]ledger.Position, len(positions))
	for i, m := range positions {
		state.Positions[i] = m.toPosition()
	}
	state.Orders = make([]ledger.Order, len(orders))
	for i, m := range orders {
		state.Orders[i] = m.toOrder()
	}
	state.Trades = make([]ledger.Trade, len(trades))
	for i, m := range trades {
		state.Trades[i] = m.toTrade()
	}
	state.Watchlist = make([]string, len(watchlist))
	for i, m := range watchlist {
		state.Watchlist[i] = m.Symbol
	}

	r.remember(state)
	return state, true, nil
}

// remember records the loaded rows in the form Save builds them, so the first
// save after a restore only writes what changed since.
func (r *LedgerRepository) remember(state ledger.State) {
	rows := storedRows{
		positions: make(map[string]PositionModel, len(state.Positions)),
		orders:    make(map[string]OrderModel, len(state.Orders)),
		trades:    make(map[string]TradeModel, len(state.Trades)),
	}
	for i, p := range state.Positions {
		rows.positions[p.ID] = toPositionModel(i, p)
	}
	for i, o := range state.Orders {
		rows.orders[o.ID] = toOrderModel(i, o)
	}
	for i, t := range state.Trades {
		rows.trades[t.ID] = toTradeModel(i, t)
	}
	r.stored = &rows
}

func toPositionModel(seq int, p ledger.Position) PositionModel {
	return PositionModel{
		ID:                   p.ID,
		Seq:                  seq,
		Symbol:               p.Symbol,
		Side:                 string(p.Direction),
		Quantity:             p.Quantity,
		AveragePrice:         p.AveragePrice,
		CurrentPrice:         p.CurrentPrice,
		UnrealizedPnL:        p.UnrealizedPnL,
		UnrealizedPnLPercent: p.UnrealizedPnLPercent,
		OpenedAt:             p.OpenedAt,
		LastUpdated:          p.LastUpdated,
	}
}

func (m PositionModel) toPosition() ledger.Position {
	return ledger.Position{
		ID:                   m.ID,
		Symbol:               m.Symbol,
		Direction:            ledger.Direction(m.Side),
		Quantity:             m.Quantity,
		AveragePrice:         m.AveragePrice,
		CurrentPrice:         m.CurrentPrice,
		UnrealizedPnL:        m.UnrealizedPnL,
		UnrealizedPnLPercent: m.UnrealizedPnLPercent,
		OpenedAt:             m.OpenedAt.UTC(),
		LastUpdated:          m.LastUpdated.UTC(),
	}
}

func toOrderModel(seq int, o ledger.Order) OrderModel {
	return OrderModel{
		ID:             o.ID,
		Seq:            seq,
		Symbol:         o.Symbol,
		Side:           string(o.Side),
		Type:           string(o.Type),
		Quantity:       o.Quantity,
		Price:          o.Price,
		Status:         string(o.Status),
		FilledQuantity: o.FilledQuantity,
		AvgFillPrice:   o.AvgFillPrice,
		PositionID:     o.PositionID,
		RealizedPnL:    o.RealizedPnL,
		RejectReason:   o.RejectReason,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func (m OrderModel) toOrder() ledger.Order {
	return ledger.Order{
		ID:             m.ID,
		Symbol:         m.Symbol,
		Side:           ledger.OrderSide(m.Side),
		Type:           ledger.OrderType(m.Type),
		Quantity:       m.Quantity,
		Price:          m.Price,
		Status:         ledger.OrderStatus(m.Status),
		FilledQuantity: m.FilledQuantity,
		AvgFillPrice:   m.AvgFillPrice,
		PositionID:     m.PositionID,
		RealizedPnL:    m.RealizedPnL,
		RejectReason:   m.RejectReason,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}

func toTradeModel(seq int, t ledger.Trade) TradeModel {
	return TradeModel{
		ID:         t.ID,
		Seq:        seq,
		PositionID: t.PositionID,
		OrderID:    t.OrderID,
		Symbol:     t.Symbol,
		Side:       string(t.Direction),
		EntryTime:  t.EntryTime,
		ExitTime:   t.ExitTime,
		EntryPrice: t.EntryPrice,
		ExitPrice:  t.ExitPrice,
		Size:       t.Size,
		PnL:        t.PnL,
		PnLPercent: t.PnLPercent,
		ExitReason: t.ExitReason,
	}
}

func (m TradeModel) toTrade() ledger.Trade {
	return ledger.Trade{
		ID:         m.ID,
		PositionID: m.PositionID,
		OrderID:    m.OrderID,
		Symbol:     m.Symbol,
		Direction:  ledger.Direction(m.Side),
		EntryTime:  m.EntryTime.UTC(),
		ExitTime:   m.ExitTime.UTC(),
		EntryPrice: m.EntryPrice,
		ExitPrice:  m.ExitPrice,
		Size:       m.Size,
		PnL:        m.PnL,
		PnLPercent: m.PnLPercent,
		ExitReason: m.ExitReason,
	}
}
