package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwtly10/tradedesk/internal/analytics"
	"github.com/jwtly10/tradedesk/internal/depth"
	"github.com/jwtly10/tradedesk/internal/ledger"
	"github.com/jwtly10/tradedesk/internal/tradingview"
)

// GET /analytics
func (h *Handler) GetAnalytics(c *gin.Context) {
	view, err := h.desk.Analytics(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) GetAnalyticsConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.desk.AnalyticsConfig())
}

// PutAnalyticsConfig replaces the indicator config. The body is a full config,
// omitted fields fall back to their zero value and usually fail validation.
func (h *Handler) PutAnalyticsConfig(c *gin.Context) {
	var cfg analytics.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		badRequest(c, err)
		return
	}
	updated, err := h.desk.UpdateAnalyticsConfig(c.Request.Context(), cfg)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// GET /indicators/:symbol
func (h *Handler) GetIndicators(c *gin.Context) {
	set, err := h.desk.Indicators(c.Param("symbol"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, set)
}

// GET /depth/:symbol
func (h *Handler) GetDepth(c *gin.Context) {
	book, err := h.desk.Depth(c.Param("symbol"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

// GetSlippage estimates the fill of a market order against the current book.
// A partial estimate is still returned alongside the liquidity error.
//
// GET /depth/:symbol/slippage?size=10&side=buy
func (h *Handler) GetSlippage(c *gin.Context) {
	size, err := floatQuery(c, "size")
	if err != nil {
		badRequest(c, err)
		return
	}
	side := depth.Side(strings.ToLower(c.DefaultQuery("side", string(depth.Buy))))

	est, err := h.desk.Slippage(c.Param("symbol"), size, side)
	if err != nil {
		if est.Filled > 0 {
			c.JSON(statusFor(err), gin.H{"error": err.Error(), "estimate": est})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, est)
}

// GET /sizing?risk=1&entry=100&stop=95
func (h *Handler) GetPositionSize(c *gin.Context) {
	var vals [3]float64
	for i, key := range []string{"risk", "entry", "stop"} {
		v, err := floatQuery(c, key)
		if err != nil {
			badRequest(c, err)
			return
		}
		vals[i] = v
	}
	size, err := h.desk.PositionSize(vals[0], vals[1], vals[2])
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quantity": size})
}

// ExportPine renders closed trades as TradingView markers, optionally
// filtered to one symbol.
//
// GET /export/pine?symbol=EURUSD
func (h *Handler) ExportPine(c *gin.Context) {
	trades := h.desk.Trades()
	if symbol := strings.ToUpper(strings.TrimSpace(c.Query("symbol"))); symbol != "" {
		filtered := make([]ledger.Trade, 0, len(trades))
		for _, t := range trades {
			if strings.EqualFold(t.Symbol, symbol) {
				filtered = append(filtered, t)
			}
		}
		trades = filtered
	}
	c.String(http.StatusOK, tradingview.GeneratePineScript(trades))
}

func floatQuery(c *gin.Context, key string) (float64, error) {
	raw, ok := c.GetQuery(key)
	if !ok {
		return 0, fmt.Errorf("missing query parameter %q", key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid query parameter %q: %w", key, err)
	}
	return v, nil
}
