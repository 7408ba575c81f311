package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwtly10/tradedesk/internal/ledger"
)

type depositRequest struct {
	Amount float64 `json:"amount"`
}

type openPositionRequest struct {
	Symbol   string           `json:"symbol"`
	Side     ledger.Direction `json:"side"`
	Quantity float64          `json:"quantity"`
	Price    float64          `json:"price"`
}

type fillRequest struct {
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type marksRequest struct {
	Prices map[string]float64 `json:"prices"`
}

// GetLedger returns the full ledger snapshot.
//
// GET /ledger
func (h *Handler) GetLedger(c *gin.Context) {
	c.JSON(http.StatusOK, h.desk.State())
}

// POST /deposits {"amount": 1000}
func (h *Handler) Deposit(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.desk.Deposit(c.Request.Context(), req.Amount); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.desk.State())
}

// POST /positions {"symbol":"AAPL","side":"long","quantity":10,"price":150}
func (h *Handler) OpenPosition(c *gin.Context) {
	var req openPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	pos, err := h.desk.OpenPosition(c.Request.Context(), req.Symbol, req.Side, req.Quantity, req.Price)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pos)
}

// POST /positions/:id/increase {"quantity":1,"price":151}
func (h *Handler) IncreasePosition(c *gin.Context) {
	var req fillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	pos, err := h.desk.IncreasePosition(c.Request.Context(), c.Param("id"), req.Quantity, req.Price)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pos)
}

// POST /positions/:id/close {"quantity":1,"price":160}
func (h *Handler) ClosePosition(c *gin.Context) {
	var req fillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	trade, err := h.desk.ClosePosition(c.Request.Context(), c.Param("id"), req.Price, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

// POST /orders {"symbol":"AAPL","side":"buy","type":"limit","quantity":5,"price":149}
func (h *Handler) SubmitOrder(c *gin.Context) {
	var req ledger.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	o, err := h.desk.SubmitOrder(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (h *Handler) AcceptOrder(c *gin.Context) {
	h.respondOrder(c)(h.desk.AcceptOrder(c.Request.Context(), c.Param("id")))
}

func (h *Handler) CancelOrder(c *gin.Context) {
	h.respondOrder(c)(h.desk.CancelOrder(c.Request.Context(), c.Param("id")))
}

// POST /orders/:id/reject {"reason":"outside trading hours"}
func (h *Handler) RejectOrder(c *gin.Context) {
	var req rejectRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	h.respondOrder(c)(h.desk.RejectOrder(c.Request.Context(), c.Param("id"), req.Reason))
}

// POST /orders/:id/fill {"quantity":2,"price":149.5}
func (h *Handler) FillOrder(c *gin.Context) {
	var req fillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.respondOrder(c)(h.desk.FillOrder(c.Request.Context(), c.Param("id"), req.Quantity, req.Price))
}

func (h *Handler) respondOrder(c *gin.Context) func(ledger.Order, error) {
	return func(o ledger.Order, err error) {
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// POST /marks {"prices":{"AAPL":151.2}}
func (h *Handler) UpdateMarks(c *gin.Context) {
	var req marksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n, err := h.desk.UpdateMarkPrices(c.Request.Context(), req.Prices)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

func (h *Handler) Watch(c *gin.Context) {
	if err := h.desk.Watch(c.Request.Context(), c.Param("symbol")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"watchlist": h.desk.State().Watchlist})
}

func (h *Handler) Unwatch(c *gin.Context) {
	if err := h.desk.Unwatch(c.Request.Context(), c.Param("symbol")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"watchlist": h.desk.State().Watchlist})
}
