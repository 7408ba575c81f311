package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/jwtly10/tradedesk/internal/types"
)

const (
	DefaultOandaURL      = "https://api-fxpractice.oanda.com"
	MaxCandlesPerRequest = 4000 // Limit is 5000 but we maintain a buffer

	// Oanda allows 120 requests per second per connection; stay well below it.
	defaultRequestsPerSecond = 20

	M1  CandlestickGranularity = "M1"
	M5  CandlestickGranularity = "M5"
	M15 CandlestickGranularity = "M15"
	M30 CandlestickGranularity = "M30"
	H1  CandlestickGranularity = "H1"
	H4  CandlestickGranularity = "H4"
	D   CandlestickGranularity = "D"
	W   CandlestickGranularity = "W"
)

var granularityToDuration = map[CandlestickGranularity]time.Duration{
	M1:  1 * time.Minute,
	M5:  5 * time.Minute,
	M15: 15 * time.Minute,
	M30: 30 * time.Minute,
	H1:  1 * time.Hour,
	H4:  4 * time.Hour,
	D:   24 * time.Hour,
	W:   7 * 24 * time.Hour,
}

type CandlestickGranularity string

func (g CandlestickGranularity) ToDuration() (time.Duration, error) {
	duration, ok := granularityToDuration[g]
	if !ok {
		return 0, fmt.Errorf("invalid granularity %q: %w", g, types.ErrInvalidConfig)
	}
	return duration, nil
}

func (g CandlestickGranularity) String() string {
	return string(g)
}

// https://developer.oanda.com/rest-live-v20/instrument-ep/

type Candlestick struct {
	Time     string          `json:"time"`
	Mid      CandleStickData `json:"mid"`
	Volume   int             `json:"volume"`
	Complete bool            `json:"complete"`
}

type CandleStickData struct {
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
}

type CandlestickResponse struct {
	Candles     []Candlestick          `json:"candles"`
	Instrument  string                 `json:"instrument"`
	Granularity CandlestickGranularity `json:"granularity"`
}

type CandleRequest struct {
	Instrument  string
	Granularity CandlestickGranularity
	From        time.Time
	To          time.Time
}

type OandaClient struct {
	accountID string
	apiKey    string
	apiURL    string

	http    *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

type OandaOption func(*OandaClient)

func WithHTTPClient(c *http.Client) OandaOption {
	return func(o *OandaClient) { o.http = c }
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64, burst int) OandaOption {
	return func(o *OandaClient) { o.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

func withClock(now func() time.Time) OandaOption {
	return func(o *OandaClient) { o.now = now }
}

func NewOandaClient(accountID, apiKey, apiURL string, opts ...OandaOption) *OandaClient {
	if apiURL == "" {
		apiURL = DefaultOandaURL
	}

	c := &OandaClient{
		accountID: accountID,
		apiKey:    apiKey,
		apiURL:    apiURL,
		http:      &http.Client{Timeout: 30 * time.Second},
		limiter:   rate.NewLimiter(defaultRequestsPerSecond, 1),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchBars fetches every bar between req.From and req.To in windows of
// MaxCandlesPerRequest candles.
//
// Note: the result is not capped, callers bound the range.
func (c *OandaClient) FetchBars(ctx context.Context, req CandleRequest) ([]types.Bar, error) {
	slog.Info("Initiating batched Oanda fetch", "instrument", req.Instrument, "from", req.From, "to", req.To, "period", req.Granularity.String())
	period, err := req.Granularity.ToDuration()
	if err != nil {
		return nil, err
	}

	if now := c.now(); req.To.After(now) {
		req.To = now
		slog.Debug("Adjusted 'To' time to current time as it was in the future", "newTo", req.To)
	}

	var allBars []types.Bar
	currentFrom := req.From

	for currentFrom.Before(req.To) {
		batchTo := currentFrom.Add(period * time.Duration(MaxCandlesPerRequest))
		if batchTo.After(req.To) {
			batchTo = req.To
		}

		batch, err := c.fetchHistoricCandles(ctx, CandleRequest{
			Instrument:  req.Instrument,
			Granularity: req.Granularity,
			From:        currentFrom,
			To:          batchTo,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch candles between %s and %s: %w", currentFrom, batchTo, err)
		}

		slog.Debug("Found bars in latest fetch", "count", len(batch.Candles), "from", currentFrom, "to", batchTo)

		bars, err := candlesToBars(batch.Candles)
		if err != nil {
			return nil, fmt.Errorf("convert candles: %w", err)
		}
		allBars = append(allBars, bars...)

		// includeFirst=false excludes the candle at From, so the next window
		// starts at the last bar we have. Empty windows (market closed) skip ahead.
		next := batchTo
		if len(bars) > 0 {
			if last := time.UnixMilli(bars[len(bars)-1].Timestamp); last.After(currentFrom) && last.Before(batchTo) {
				next = last
			}
		}
		currentFrom = next
	}

	slog.Info("Completed fetching all oanda bars", "instrument", req.Instrument, "totalBars", len(allBars))
	return allBars, nil
}

func candlesToBars(candles []Candlestick) ([]types.Bar, error) {
	bars := make([]types.Bar, 0, len(candles))
	for _, candle := range candles {
		timestamp, err := time.Parse(time.RFC3339, candle.Time)
		if err != nil {
			return nil, fmt.Errorf("parse candle time %s: %w", candle.Time, err)
		}

		var ohlc [4]float64
		for i, raw := range []string{candle.Mid.O, candle.Mid.H, candle.Mid.L, candle.Mid.C} {
			if ohlc[i], err = strconv.ParseFloat(raw, 64); err != nil {
				return nil, fmt.Errorf("parse candle price %q at %s: %w", raw, candle.Time, err)
			}
		}

		bars = append(bars, types.Bar{
			Timestamp: timestamp.UnixMilli(),
			Open:      ohlc[0],
			High:      ohlc[1],
			Low:       ohlc[2],
			Close:     ohlc[3],
			Volume:    float64(candle.Volume),
		})
	}
	return bars, nil
}

func (c *OandaClient) fetchHistoricCandles(ctx context.Context, req CandleRequest) (*CandlestickResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := c.apiURL + "/v3/accounts/" + url.PathEscape(c.accountID) + "/instruments/" + url.PathEscape(req.Instrument) + "/candles"

	params := url.Values{}
	params.Add("granularity", string(req.Granularity))
	params.Add("price", "M")
	params.Add("from", strconv.FormatInt(req.From.Unix(), 10))
	params.Add("to", strconv.FormatInt(req.To.Unix(), 10))
	params.Add("includeFirst", "false")

	fullURL := endpoint + "?" + params.Encode()
	slog.Debug("Fetching historic candles", "instrument", req.Instrument, "url", fullURL)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept-Datetime-Format", "RFC3339")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err != nil {
			return nil, fmt.Errorf("status code %d, could not read error body: %w", resp.StatusCode, err)
		}
		slog.Error("Oanda returned an error status", "statusCode", resp.StatusCode, "rawResponse", string(body))
		return nil, fmt.Errorf("status code %d, API response: %s", resp.StatusCode, body)
	}

	var candleResp CandlestickResponse
	if err := json.NewDecoder(resp.Body).Decode(&candleResp); err != nil {
		return nil, fmt.Errorf("decode candle response: %w", err)
	}
	return &candleResp, nil
}
