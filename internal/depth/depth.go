// Package depth aggregates raw order book levels into cumulative depth,
// top of book statistics and slippage estimates.
package depth

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jwtly10/tradedesk/internal/logging"
	"github.com/jwtly10/tradedesk/internal/types"
)

var depthLog = logging.New("depth")

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

// Level is a single price and size entry as received from the feed.
type Level struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// DepthLevel is a sorted level with the size accumulated from the best price outward.
type DepthLevel struct {
	Price      float64 `json:"price"`
	Size       float64 `json:"size"`
	Cumulative float64 `json:"cumulative"`
}

// Book is an aggregated snapshot. Bids are sorted high to low, asks low to high.
// MidPrice, Spread and SpreadPercent are 0 with MidDefined false when either side is empty.
type Book struct {
	Bids          []DepthLevel `json:"bids"`
	Asks          []DepthLevel `json:"asks"`
	BestBid       float64      `json:"bestBid"`
	BestAsk       float64      `json:"bestAsk"`
	MidPrice      float64      `json:"midPrice"`
	MidDefined    bool         `json:"midDefined"`
	Spread        float64      `json:"spread"`
	SpreadPercent float64      `json:"spreadPercent"`
	TotalBidSize  float64      `json:"totalBidSize"`
	TotalAskSize  float64      `json:"totalAskSize"`
	Imbalance     float64      `json:"imbalance"`
}

// Aggregate sorts copies of the levels and derives the book statistics. The
// inputs are not modified.
func Aggregate(bids, asks []Level) (Book, error) {
	if err := validateLevels("bid", bids); err != nil {
		return Book{}, err
	}
	if err := validateLevels("ask", asks); err != nil {
		return Book{}, err
	}

	book := Book{
		Bids: cumulate(bids, func(a, b Level) bool { return a.Price > b.Price }),
		Asks: cumulate(asks, func(a, b Level) bool { return a.Price < b.Price }),
	}

	if n := len(book.Bids); n > 0 {
		book.BestBid = book.Bids[0].Price
		book.TotalBidSize = book.Bids[n-1].Cumulative
	}
	if n := len(book.Asks); n > 0 {
		book.BestAsk = book.Asks[0].Price
		book.TotalAskSize = book.Asks[n-1].Cumulative
	}

	if len(book.Bids) > 0 && len(book.Asks) > 0 {
		book.MidDefined = true
		book.MidPrice = (book.BestBid + book.BestAsk) / 2
		book.Spread = book.BestAsk - book.BestBid
		book.SpreadPercent = book.Spread / book.MidPrice * 100
	}

	if total := book.TotalBidSize + book.TotalAskSize; total > 0 {
		book.Imbalance = (book.TotalBidSize - book.TotalAskSize) / total * 100
	}

	depthLog.Debug("Aggregated book",
		"bids", len(book.Bids),
		"asks", len(book.Asks),
		"mid", book.MidPrice,
		"spread", book.Spread,
		"imbalance", book.Imbalance)

	return book, nil
}

func cumulate(levels []Level, better func(a, b Level) bool) []DepthLevel {
	sorted := make([]Level, len(levels))
	copy(sorted, levels)
	sort.SliceStable(sorted, func(i, j int) bool { return better(sorted[i], sorted[j]) })

	out := make([]DepthLevel, len(sorted))
	running := 0.0
	for i, l := range sorted {
		running += l.Size
		out[i] = DepthLevel{Price: l.Price, Size: l.Size, Cumulative: running}
	}
	return out
}

func validateLevels(side string, levels []Level) error {
	for i, l := range levels {
		if !(l.Price > 0) || math.IsInf(l.Price, 0) {
			return fmt.Errorf("%s level %d price %v: %w", side, i, l.Price, types.ErrInvalidInputSeries)
		}
		if !(l.Size >= 0) || math.IsInf(l.Size, 0) {
			return fmt.Errorf("%s level %d size %v: %w", side, i, l.Size, types.ErrInvalidInputSeries)
		}
	}
	return nil
}

// Estimate is the result of walking the book for an order of Requested size.
type Estimate struct {
	Side            Side    `json:"side"`
	Requested       float64 `json:"requested"`
	Filled          float64 `json:"filled"`
	TotalCost       float64 `json:"totalCost"`
	AvgFillPrice    float64 `json:"avgFillPrice"`
	BestPrice       float64 `json:"bestPrice"`
	Slippage        float64 `json:"slippage"`
	SlippagePercent float64 `json:"slippagePercent"`
	LevelsUsed      int     `json:"levelsUsed"`
}

// Complete reports whether the whole requested size was filled.
func (e Estimate) Complete() bool {
	return e.Filled >= e.Requested
}

// Slippage walks the side opposite to the order: a buy consumes asks, a sell
// consumes bids. Slippage is AvgFillPrice - BestPrice, so it is negative for
// a sell that walks down the bids. When the book runs out before size is
// filled the partial estimate is returned with ErrInsufficientLiquidity.
func (b Book) Slippage(size float64, side Side) (Estimate, error) {
	if !side.Valid() {
		return Estimate{}, fmt.Errorf("side %q: %w", side, types.ErrInvalidOrder)
	}
	if !(size > 0) || math.IsInf(size, 0) {
		return Estimate{}, fmt.Errorf("order size %v: %w", size, types.ErrInvalidQuantity)
	}

	levels := b.Asks
	if side == Sell {
		levels = b.Bids
	}

	est := Estimate{Side: side, Requested: size}
	if len(levels) == 0 {
		return est, fmt.Errorf("%s %v against empty book: %w", side, size, types.ErrInsufficientLiquidity)
	}
	est.BestPrice = levels[0].Price

	// sizes are summed in decimal so a book holding exactly size fills it
	left := decimal.NewFromFloat(size)
	filled, cost := decimal.Zero, decimal.Zero
	for _, l := range levels {
		if !left.IsPositive() {
			break
		}
		if l.Size == 0 {
			continue
		}
		take := decimal.Min(left, decimal.NewFromFloat(l.Size))
		filled = filled.Add(take)
		cost = cost.Add(take.Mul(decimal.NewFromFloat(l.Price)))
		est.LevelsUsed++
		left = left.Sub(take)
	}
	est.Filled = filled.InexactFloat64()
	est.TotalCost = cost.InexactFloat64()

	if filled.IsPositive() {
		est.AvgFillPrice = cost.Div(filled).InexactFloat64()
		est.Slippage = est.AvgFillPrice - est.BestPrice
		est.SlippagePercent = est.Slippage / est.BestPrice * 100
	}

	depthLog.Debug("Slippage estimate",
		"side", side,
		"requested", size,
		"filled", est.Filled,
		"avgFillPrice", est.AvgFillPrice,
		"slippage", est.Slippage,
		"levels", est.LevelsUsed)

	if left.IsPositive() {
		return est, fmt.Errorf("%s %v filled %v of book: %w", side, size, est.Filled, types.ErrInsufficientLiquidity)
	}
	return est, nil
}

// RawBook is an unsorted level snapshot for one symbol as received from the feed.
type RawBook struct {
	Bids []Level `json:"bids"`
	Asks []Level `json:"asks"`
}

func (r RawBook) Aggregate() (Book, error) {
	return Aggregate(r.Bids, r.Asks)
}
