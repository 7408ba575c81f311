// Package market holds the per symbol candle history and the latest raw order
// book snapshot received from the feed.
package market

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jwtly10/tradedesk/internal/depth"
	"github.com/jwtly10/tradedesk/internal/types"
)

type StoreParams struct {
	// HistoryLimit is the maximum number
	// of candles to keep for each symbol.
	//
	// Defaults to 500.
	HistoryLimit int
}

// Store is an append-only cache of candles per symbol plus the latest book
// snapshot. Reads return copies.
type Store struct {
	p   StoreParams
	mtx sync.RWMutex
	// Keyed by symbol
	bars  map[string][]types.Bar
	books map[string]depth.RawBook
}

func NewStore(p StoreParams) *Store {
	if p.HistoryLimit <= 0 {
		p.HistoryLimit = 500
	}

	return &Store{
		p:     p,
		bars:  make(map[string][]types.Bar),
		books: make(map[string]depth.RawBook),
	}
}

// Append adds a candle. A candle with the same timestamp as the newest one
// replaces it, since the feed republishes the forming candle. Older
// timestamps are rejected.
func (s *Store) Append(symbol string, bar types.Bar) error {
	if err := bar.Validate(); err != nil {
		return fmt.Errorf("%s: %w", symbol, err)
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	history := s.bars[symbol]
	if n := len(history); n > 0 {
		last := history[n-1]
		switch {
		case bar.Timestamp < last.Timestamp:
			return fmt.Errorf("%s bar %d before %d: %w", symbol, bar.Timestamp, last.Timestamp, types.ErrInvalidInputSeries)
		case bar.Timestamp == last.Timestamp:
			history[n-1] = bar
			return nil
		}
	}

	history = append(history, bar)
	if len(history) > s.p.HistoryLimit {
		history = history[len(history)-s.p.HistoryLimit:]
	}
	s.bars[symbol] = history
	return nil
}

// Load replaces the history of a symbol with bars, typically from storage or a backfill.
func (s *Store) Load(symbol string, bars []types.Bar) error {
	if err := types.ValidateSeries(bars); err != nil {
		return fmt.Errorf("%s: %w", symbol, err)
	}

	history := make([]types.Bar, len(bars))
	copy(history, bars)
	if len(history) > s.p.HistoryLimit {
		history = history[len(history)-s.p.HistoryLimit:]
	}

	s.mtx.Lock()
	s.bars[symbol] = history
	s.mtx.Unlock()
	return nil
}

// History returns the candles for symbol, oldest first.
func (s *Store) History(symbol string) []types.Bar {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	history := s.bars[symbol]
	out := make([]types.Bar, len(history))
	copy(out, history)
	return out
}

// Snapshot copies the history of every symbol.
func (s *Store) Snapshot() map[string][]types.Bar {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	out := make(map[string][]types.Bar, len(s.bars))
	for symbol, history := range s.bars {
		c := make([]types.Bar, len(history))
		copy(c, history)
		out[symbol] = c
	}
	return out
}

func (s *Store) Symbols() []string {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	out := make([]string, 0, len(s.bars))
	for symbol := range s.bars {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// LastPrices maps each symbol to its latest close, for marking positions.
func (s *Store) LastPrices() map[string]float64 {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	out := make(map[string]float64, len(s.bars))
	for symbol, history := range s.bars {
		if n := len(history); n > 0 {
			out[symbol] = history[n-1].Close
		}
	}
	return out
}

// SetBook replaces the book snapshot for symbol.
func (s *Store) SetBook(symbol string, book depth.RawBook) {
	c := depth.RawBook{
		Bids: append([]depth.Level(nil), book.Bids...),
		Asks: append([]depth.Level(nil), book.Asks...),
	}

	s.mtx.Lock()
	s.books[symbol] = c
	s.mtx.Unlock()
}

func (s *Store) Book(symbol string) (depth.RawBook, bool) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	book, ok := s.books[symbol]
	if !ok {
		return depth.RawBook{}, false
	}
	return depth.RawBook{
		Bids: append([]depth.Level(nil), book.Bids...),
		Asks: append([]depth.Level(nil), book.Asks...),
	}, true
}

// Books copies every book snapshot.
func (s *Store) Books() map[string]depth.RawBook {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	out := make(map[string]depth.RawBook, len(s.books))
	for symbol, book := range s.books {
		out[symbol] = depth.RawBook{
			Bids: append([]depth.Level(nil), book.Bids...),
			Asks: append([]depth.Level(nil), book.Asks...),
		}
	}
	return out
}
