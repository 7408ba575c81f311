// Package storage persists ledger state, candle history, the equity curve and
// settings through gorm. State is stored verbatim and reloaded without replay.
package storage

import (
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jwtly10/tradedesk/internal/types"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Driver string
	DSN    string
}

// Open connects with the configured driver and migrates every model.
func Open(cfg Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case DriverSQLite, "":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "tradedesk.db"
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres needs a DSN: %w", types.ErrInvalidConfig)
		}
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("db driver %q: %w", cfg.Driver, types.ErrInvalidConfig)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}

	slog.Info("Database ready", "driver", dialector.Name())
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&AccountModel{},
		&PositionModel{},
		&OrderModel{},
		&TradeModel{},
		&WatchlistModel{},
		&SettingModel{},
		&CandleModel{},
		&EquityModel{},
	); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}
