package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsRepository stores JSON encoded values by key.
type SettingsRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *SettingsRepository) Put(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode setting %s: %w", key, err)
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&SettingModel{Name: key, Value: string(raw), UpdatedAt: r.now()}).Error
}

// Get decodes the value stored under key into dst. found is false when the key is missing.
func (r *SettingsRepository) Get(ctx context.Context, key string, dst any) (found bool, err error) {
	var m SettingModel
	if err := r.db.WithContext(ctx).Where("name = ?", key).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal([]byte(m.Value), dst); err != nil {
		return false, fmt.Errorf("decode setting %s: %w", key, err)
	}
	return true, nil
}
