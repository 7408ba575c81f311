package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwtly10/tradedesk/internal/depth"
	"github.com/jwtly10/tradedesk/internal/desk"
	"github.com/jwtly10/tradedesk/internal/ledger"
	"github.com/jwtly10/tradedesk/internal/types"
)

func setupRouter(t *testing.T) (*gin.Engine, *desk.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, err := desk.New(context.Background(), desk.Params{InitialBalance: 1000})
	require.NoError(t, err)
	return NewRouter(NewHandler(svc, nil)), svc
}

func do(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestPositionLifecycle(t *testing.T) {
	router, svc := setupRouter(t)

	w := do(router, http.MethodPost, "/deposits", `{"amount":500}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1500.0, svc.State().CashBalance.InexactFloat64())

	w = do(router, http.MethodPost, "/positions", `{"symbol":"aapl","side":"long","quantity":2,"price":100}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	pos := decode[ledger.Position](t, w)
	assert.Equal(t, "AAPL", pos.Symbol)
	assert.Equal(t, ledger.LONG, pos.Direction)

	w = do(router, http.MethodPost, "/positions/"+pos.ID+"/increase", `{"quantity":2,"price":110}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	pos = decode[ledger.Position](t, w)
	assert.Equal(t, 4.0, pos.Quantity)
	assert.InDelta(t, 105.0, pos.AveragePrice, 1e-9)

	w = do(router, http.MethodPost, "/marks", `{"prices":{"AAPL":120}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"updated":1}`, w.Body.String())

	w = do(router, http.MethodPost, "/positions/"+pos.ID+"/close", `{"quantity":4,"price":120}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	trade := decode[ledger.Trade](t, w)
	assert.InDelta(t, 60.0, trade.PnL, 1e-9)

	w = do(router, http.MethodGet, "/ledger", "")
	require.Equal(t, http.StatusOK, w.Code)
	state := decode[map[string]any](t, w)
	assert.Empty(t, state["positions"])
	assert.Len(t, state["trades"], 1)
}

func TestOrderRoutes(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(router, http.MethodPost, "/orders", `{"symbol":"eth","side":"buy","type":"limit","quantity":2,"price":100}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode[ledger.Order](t, w)
	assert.Equal(t, ledger.PENDING, order.Status)

	// pending orders cannot be filled
	w = do(router, http.MethodPost, "/orders/"+order.ID+"/fill", `{"quantity":1,"price":100}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(router, http.MethodPost, "/orders/"+order.ID+"/accept", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(router, http.MethodPost, "/orders/"+order.ID+"/fill", `{"quantity":2,"price":100}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, ledger.FILLED, decode[ledger.Order](t, w).Status)

	w = do(router, http.MethodPost, "/orders", `{"symbol":"eth","side":"sell","type":"market","quantity":1}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	second := decode[ledger.Order](t, w)

	w = do(router, http.MethodPost, "/orders/"+second.ID+"/reject", `{"reason":"halted"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, ledger.REJECTED, decode[ledger.Order](t, w).Status)

	w = do(router, http.MethodPost, "/orders/missing/cancel", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), types.ErrOrderNotFound.Error())
}

func TestErrorResponses(t *testing.T) {
	router, _ := setupRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"malformed body", http.MethodPost, "/deposits", `{"amount":`, http.StatusBadRequest},
		{"zero deposit", http.MethodPost, "/deposits", `{"amount":0}`, http.StatusUnprocessableEntity},
		{"insufficient funds", http.MethodPost, "/positions", `{"symbol":"BTC","side":"long","quantity":1,"price":5000}`, http.StatusUnprocessableEntity},
		{"unknown position", http.MethodPost, "/positions/nope/close", `{"quantity":1,"price":1}`, http.StatusNotFound},
		{"invalid mark", http.MethodPost, "/marks", `{"prices":{"AAPL":-1}}`, http.StatusUnprocessableEntity},
		{"no candles", http.MethodGet, "/indicators/AAPL", "", http.StatusNotFound},
		{"no book", http.MethodGet, "/depth/AAPL", "", http.StatusNotFound},
		{"missing size", http.MethodGet, "/depth/AAPL/slippage", "", http.StatusBadRequest},
		{"bad sizing query", http.MethodGet, "/sizing?risk=x&entry=1&stop=2", "", http.StatusBadRequest},
		{"stop equals entry", http.MethodGet, "/sizing?risk=1&entry=100&stop=100", "", http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(router, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Contains(t, decode[map[string]any](t, w), "error")
		})
	}
}

func TestWatchlist(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(router, http.MethodPut, "/watchlist/msft", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"watchlist":["MSFT"]}`, w.Body.String())

	w = do(router, http.MethodDelete, "/watchlist/MSFT", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"watchlist":[]}`, w.Body.String())
}

func TestDepthAndSlippage(t *testing.T) {
	router, svc := setupRouter(t)
	require.NoError(t, svc.ApplyBook(context.Background(), "eurusd", depth.RawBook{
		Bids: []depth.Level{{Price: 98, Size: 5}, {Price: 99, Size: 5}},
		Asks: []depth.Level{{Price: 102, Size: 3}, {Price: 101, Size: 2}},
	}))

	w := do(router, http.MethodGet, "/depth/EURUSD", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	book := decode[depth.Book](t, w)
	assert.Equal(t, 100.0, book.MidPrice)
	assert.Equal(t, 99.0, book.BestBid)

	w = do(router, http.MethodGet, "/depth/EURUSD/slippage?size=4&side=buy", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	est := decode[depth.Estimate](t, w)
	assert.InDelta(t, 101.5, est.AvgFillPrice, 1e-9)
	assert.InDelta(t, 0.5, est.Slippage, 1e-9)

	w = do(router, http.MethodGet, "/depth/EURUSD/slippage?size=10&side=buy", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	partial := decode[struct {
		Error    string         `json:"error"`
		Estimate depth.Estimate `json:"estimate"`
	}](t, w)
	assert.Equal(t, 5.0, partial.Estimate.Filled)
	assert.Contains(t, partial.Error, types.ErrInsufficientLiquidity.Error())
}

func TestAnalyticsRoutes(t *testing.T) {
	router, svc := setupRouter(t)
	ctx := context.Background()
	for i, c := range []float64{10, 11, 12, 13, 14} {
		require.NoError(t, svc.ApplyBar(ctx, "AAPL", types.Bar{Timestamp: int64(i+1) * 60000, Open: c, High: c, Low: c, Close: c, Volume: 1}))
	}

	w := do(router, http.MethodGet, "/analytics/config", "")
	require.Equal(t, http.StatusOK, w.Code)
	cfg := decode[map[string]any](t, w)
	cfg["smaPeriods"] = []int{3}
	cfg["emaPeriods"] = []int{}
	body, err := json.Marshal(cfg)
	require.NoError(t, err)

	w = do(router, http.MethodPut, "/analytics/config", string(body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []int{3}, svc.AnalyticsConfig().SMAPeriods)

	w = do(router, http.MethodPut, "/analytics/config", `{"smaPeriods":[0]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(router, http.MethodGet, "/indicators/aapl", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	set := decode[map[string]any](t, w)
	assert.Equal(t, "AAPL", set["symbol"])
	assert.Contains(t, set["sma"], "3")

	w = do(router, http.MethodGet, "/analytics", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view := decode[map[string]any](t, w)
	assert.Contains(t, view["indicators"], "AAPL")

	w = do(router, http.MethodGet, "/sizing?risk=1&entry=100&stop=95", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"quantity":2}`, w.Body.String())
}

func TestExportPine(t *testing.T) {
	router, svc := setupRouter(t)
	ctx := context.Background()

	for _, sym := range []string{"AAPL", "MSFT"} {
		pos, err := svc.OpenPosition(ctx, sym, ledger.LONG, 1, 100)
		require.NoError(t, err)
		_, err = svc.ClosePosition(ctx, pos.ID, 105, 1)
		require.NoError(t, err)
	}

	w := do(router, http.MethodGet, "/export/pine?symbol=msft", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Body.String(), "#1 MSFT LONG")
	assert.NotContains(t, w.Body.String(), "AAPL")

	w = do(router, http.MethodGet, "/export/pine", "")
	assert.Contains(t, w.Body.String(), "#2 MSFT LONG")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("close: %w", types.ErrPositionNotFound), http.StatusNotFound},
		{types.ErrSymbolNotFound, http.StatusNotFound},
		{types.ErrInvalidStateTransition, http.StatusConflict},
		{fmt.Errorf("open: %w", types.ErrInsufficientFunds), http.StatusUnprocessableEntity},
		{types.ErrInvalidPeriod, http.StatusUnprocessableEntity},
		{types.ErrInvalidConfig, http.StatusUnprocessableEntity},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, statusFor(tt.err), tt.err.Error())
	}
}
