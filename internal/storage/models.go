package storage

import "time"

// Timestamps on these models are copied verbatim from the ledger, so gorm's
// auto create/update times are disabled.

type AccountModel struct {
	ID            uint      `gorm:"primaryKey"`
	CashBalance   string    `gorm:"type:text;not null"`
	FundedCapital string    `gorm:"type:text;not null"`
	SavedAt       time.Time `gorm:"not null"`
}

func (AccountModel) TableName() string {
	return "accounts"
}

type PositionModel struct {
	ID                   string    `gorm:"primaryKey;size:64"`
	Seq                  int       `gorm:"not null;index"`
	Symbol               string    `gorm:"size:32;not null"`
	Side                 string    `gorm:"size:8;not null"`
	Quantity             float64   `gorm:"not null"`
	AveragePrice         float64   `gorm:"not null"`
	CurrentPrice         float64   `gorm:"not null"`
	UnrealizedPnL        float64   `gorm:"not null"`
	UnrealizedPnLPercent float64   `gorm:"not null"`
	OpenedAt             time.Time `gorm:"not null"`
	LastUpdated          time.Time `gorm:"not null"`
}

func (PositionModel) TableName() string {
	return "positions"
}

type OrderModel struct {
	ID             string    `gorm:"primaryKey;size:64"`
	Seq            int       `gorm:"not null;index"`
	Symbol         string    `gorm:"size:32;not null"`
	Side           string    `gorm:"size:8;not null"`
	Type           string    `gorm:"size:16;not null"`
	Quantity       float64   `gorm:"not null"`
	Price          *float64
	Status         string    `gorm:"size:24;not null;index"`
	FilledQuantity float64   `gorm:"not null;default:0"`
	AvgFillPrice   float64   `gorm:"not null;default:0"`
	PositionID     string    `gorm:"size:64"`
	RealizedPnL    *float64
	RejectReason   string
	CreatedAt      time.Time `gorm:"autoCreateTime:false;not null"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime:false;not null"`
}

func (OrderModel) TableName() string {
	return "orders"
}

type TradeModel struct {
	ID         string    `gorm:"primaryKey;size:64"`
	Seq        int       `gorm:"not null;index"`
	PositionID string    `gorm:"size:64;not null"`
	OrderID    string    `gorm:"size:64"`
	Symbol     string    `gorm:"size:32;not null"`
	Side       string    `gorm:"size:8;not null"`
	EntryTime  time.Time `gorm:"not null"`
	ExitTime   time.Time `gorm:"not null"`
	EntryPrice float64   `gorm:"not null"`
	ExitPrice  float64   `gorm:"not null"`
	Size       float64   `gorm:"not null"`
	PnL        float64   `gorm:"not null"`
	PnLPercent float64   `gorm:"not null"`
	ExitReason string    `gorm:"size:32"`
}

func (TradeModel) TableName() string {
	return "trades"
}

type WatchlistModel struct {
	Symbol string `gorm:"primaryKey;size:32"`
	Seq    int    `gorm:"not null"`
}

func (WatchlistModel) TableName() string {
	return "watchlist"
}

type SettingModel struct {
	Name      string    `gorm:"primaryKey;size:64"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (SettingModel) TableName() string {
	return "settings"
}

type CandleModel struct {
	ID        uint    `gorm:"primaryKey"`
	Symbol    string  `gorm:"size:32;not null;uniqueIndex:candle_sym_time,priority:1"`
	Timestamp int64   `gorm:"not null;uniqueIndex:candle_sym_time,priority:2"`
	Open      float64 `gorm:"not null"`
	High      float64 `gorm:"not null"`
	Low       float64 `gorm:"not null"`
	Close     float64 `gorm:"not null"`
	Volume    float64 `gorm:"not null;default:0"`
}

func (CandleModel) TableName() string {
	return "candles"
}

type EquityModel struct {
	ID        uint      `gorm:"primaryKey"`
	Timestamp time.Time `gorm:"not null;index"`
	Value     float64   `gorm:"not null"`
}

func (EquityModel) TableName() string {
	return "equity_points"
}
