// Package server exposes the desk over HTTP for the rendering layer.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwtly10/tradedesk/internal/analytics"
	"github.com/jwtly10/tradedesk/internal/depth"
	"github.com/jwtly10/tradedesk/internal/ledger"
)

// Desk is the service surface the handlers use.
type Desk interface {
	State() ledger.State
	Trades() []ledger.Trade
	Deposit(ctx context.Context, amount float64) error
	OpenPosition(ctx context.Context, symbol string, dir ledger.Direction, quantity, price float64) (ledger.Position, error)
	IncreasePosition(ctx context.Context, positionID string, quantity, price float64) (ledger.Position, error)
	ClosePosition(ctx context.Context, positionID string, exitPrice, quantity float64) (ledger.Trade, error)
	SubmitOrder(ctx context.Context, req ledger.OrderRequest) (ledger.Order, error)
	AcceptOrder(ctx context.Context, orderID string) (ledger.Order, error)
	RejectOrder(ctx context.Context, orderID, reason string) (ledger.Order, error)
	CancelOrder(ctx context.Context, orderID string) (ledger.Order, error)
	FillOrder(ctx context.Context, orderID string, quantity, price float64) (ledger.Order, error)
	UpdateMarkPrices(ctx context.Context, prices map[string]float64) (int, error)
	Watch(ctx context.Context, symbol string) error
	Unwatch(ctx context.Context, symbol string) error

	Analytics(ctx context.Context) (analytics.View, error)
	AnalyticsConfig() analytics.Config
	UpdateAnalyticsConfig(ctx context.Context, cfg analytics.Config) (analytics.Config, error)
	Indicators(symbol string) (analytics.IndicatorSet, error)
	Depth(symbol string) (depth.Book, error)
	Slippage(symbol string, size float64, side depth.Side) (depth.Estimate, error)
	PositionSize(riskPercent, entry, stop float64) (float64, error)
}

type Handler struct {
	desk Desk
	ws   http.HandlerFunc
}

// NewHandler builds the handlers. ws serves GET /ws and may be nil.
func NewHandler(desk Desk, ws http.HandlerFunc) *Handler {
	return &Handler{desk: desk, ws: ws}
}

func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", h.Health)

	router.GET("/ledger", h.GetLedger)
	router.POST("/deposits", h.Deposit)

	router.POST("/positions", h.OpenPosition)
	router.POST("/positions/:id/increase", h.IncreasePosition)
	router.POST("/positions/:id/close", h.ClosePosition)

	router.POST("/orders", h.SubmitOrder)
	router.POST("/orders/:id/accept", h.AcceptOrder)
	router.POST("/orders/:id/reject", h.RejectOrder)
	router.POST("/orders/:id/fill", h.FillOrder)
	router.POST("/orders/:id/cancel", h.CancelOrder)

	router.POST("/marks", h.UpdateMarks)

	router.PUT("/watchlist/:symbol", h.Watch)
	router.DELETE("/watchlist/:symbol", h.Unwatch)

	router.GET("/analytics", h.GetAnalytics)
	router.GET("/analytics/config", h.GetAnalyticsConfig)
	router.PUT("/analytics/config", h.PutAnalyticsConfig)
	router.GET("/indicators/:symbol", h.GetIndicators)
	router.GET("/depth/:symbol", h.GetDepth)
	router.GET("/depth/:symbol/slippage", h.GetSlippage)
	router.GET("/sizing", h.GetPositionSize)

	router.GET("/export/pine", h.ExportPine)

	if h.ws != nil {
		router.GET("/ws", gin.WrapF(h.ws))
	}

	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
