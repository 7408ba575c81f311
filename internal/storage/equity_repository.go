package storage

import (
	"context"

	"gorm.io/gorm"

	"github.com/jwtly10/tradedesk/internal/risk"
)

type EquityRepository struct {
	db *gorm.DB
}

func NewEquityRepository(db *gorm.DB) *EquityRepository {
	return &EquityRepository{db: db}
}

func (r *EquityRepository) Append(ctx context.Context, p risk.EquityPoint) error {
	return r.db.WithContext(ctx).Create(&EquityModel{Timestamp: p.Timestamp, Value: p.Value}).Error
}

// Find returns the latest limit points, oldest first. A limit of 0 returns everything.
func (r *EquityRepository) Find(ctx context.Context, limit int) ([]risk.EquityPoint, error) {
	var rows []EquityModel
	q := r.db.WithContext(ctx).Order("timestamp DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]risk.EquityPoint, len(rows))
	for i, m := range rows {
		out[len(rows)-1-i] = risk.EquityPoint{Timestamp: m.Timestamp.UTC(), Value: m.Value}
	}
	return out, nil
}
