package storage

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jwtly10/tradedesk/internal/types"
)

type CandleRepository struct {
	db *gorm.DB
}

func NewCandleRepository(db *gorm.DB) *CandleRepository {
	return &CandleRepository{db: db}
}

func toCandleModel(symbol string, b types.Bar) CandleModel {
	return CandleModel{
		Symbol:    symbol,
		Timestamp: b.Timestamp,
		Open:      b.Open,
		High:      b.High,
		Low:       b.Low,
		Close:     b.Close,
		Volume:    b.Volume,
	}
}

// UpsertBatch inserts bars, overwriting any stored bar with the same timestamp.
func (r *CandleRepository) UpsertBatch(ctx context.Context, symbol string, bars []types.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	ms := make([]CandleModel, 0, len(bars))
	for _, b := range bars {
		ms = append(ms, toCandleModel(symbol, b))
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "timestamp"}},
		DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume"}),
	}).CreateInBatches(&ms, 500).Error
}

// Find returns the latest limit bars for symbol, oldest first. A limit of 0 returns everything.
func (r *CandleRepository) Find(ctx context.Context, symbol string, limit int) ([]types.Bar, error) {
	var rows []CandleModel
	q := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("timestamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]types.Bar, len(rows))
	for i, m := range rows {
		out[len(rows)-1-i] = types.Bar{
			Timestamp: m.Timestamp,
			Open:      m.Open,
			High:      m.High,
			Low:       m.Low,
			Close:     m.Close,
			Volume:    m.Volume,
		}
	}
	return out, nil
}

// Symbols lists every symbol with stored candles.
func (r *CandleRepository) Symbols(ctx context.Context) ([]string, error) {
	var symbols []string
	err := r.db.WithContext(ctx).Model(&CandleModel{}).Distinct("symbol").Order("symbol").Pluck("symbol", &symbols).Error
	return symbols, err
}
