package market

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwtly10/tradedesk/internal/depth"
	"github.com/jwtly10/tradedesk/internal/types"
)

func bar(ts int64, c float64) types.Bar {
	return types.Bar{Timestamp: ts, Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1}
}

func TestStore_AppendKeepsOrderAndLimit(t *testing.T) {
	s := NewStore(StoreParams{HistoryLimit: 3})

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, s.Append("BTCUSD", bar(i, float64(i*10))))
	}

	history := s.History("BTCUSD")
	require.Len(t, history, 3)
	assert.Equal(t, []int64{3, 4, 5}, []int64{history[0].Timestamp, history[1].Timestamp, history[2].Timestamp})
}

func TestStore_AppendReplacesFormingCandle(t *testing.T) {
	s := NewStore(StoreParams{})

	require.NoError(t, s.Append("BTCUSD", bar(1, 10)))
	require.NoError(t, s.Append("BTCUSD", bar(1, 12)))

	history := s.History("BTCUSD")
	require.Len(t, history, 1)
	assert.Equal(t, 12.0, history[0].Close)
}

func TestStore_AppendRejectsBadBars(t *testing.T) {
	s := NewStore(StoreParams{})
	require.NoError(t, s.Append("BTCUSD", bar(5, 10)))

	err := s.Append("BTCUSD", bar(4, 10))
	assert.ErrorIs(t, err, types.ErrInvalidInputSeries)

	broken := bar(6, 10)
	broken.Low = 11
	assert.ErrorIs(t, s.Append("BTCUSD", broken), types.ErrInvalidInputSeries)

	assert.Len(t, s.History("BTCUSD"), 1)
}

func TestStore_HistoryIsACopy(t *testing.T) {
	s := NewStore(StoreParams{})
	require.NoError(t, s.Load("ETHUSD", []types.Bar{bar(1, 10), bar(2, 11)}))

	history := s.History("ETHUSD")
	history[0].Close = 999

	assert.Equal(t, 10.0, s.History("ETHUSD")[0].Close)
	assert.Empty(t, s.History("missing"))
}

func TestStore_LastPricesAndSymbols(t *testing.T) {
	s := NewStore(StoreParams{})
	require.NoError(t, s.Append("B", bar(1, 20)))
	require.NoError(t, s.Append("A", bar(1, 10)))
	require.NoError(t, s.Append("A", bar(2, 11)))

	assert.Equal(t, map[string]float64{"A": 11, "B": 20}, s.LastPrices())
	assert.Equal(t, []string{"A", "B"}, s.Symbols())
	assert.Len(t, s.Snapshot()["A"], 2)
}

func TestStore_Books(t *testing.T) {
	s := NewStore(StoreParams{})
	raw := depth.RawBook{Bids: []depth.Level{{Price: 99, Size: 1}}, Asks: []depth.Level{{Price: 101, Size: 2}}}

	s.SetBook("BTCUSD", raw)
	raw.Bids[0].Price = 1

	book, ok := s.Book("BTCUSD")
	require.True(t, ok)
	assert.Equal(t, 99.0, book.Bids[0].Price)

	_, ok = s.Book("missing")
	assert.False(t, ok)
	assert.Len(t, s.Books(), 1)
}

func TestStore_ConcurrentAppendAndRead(t *testing.T) {
	s := NewStore(StoreParams{HistoryLimit: 100})

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = s.History("BTCUSD")
				_ = s.LastPrices()
			}
		}()
	}
	for i := int64(1); i <= 200; i++ {
		require.NoError(t, s.Append("BTCUSD", bar(i, 100)))
	}
	wg.Wait()

	assert.Len(t, s.History("BTCUSD"), 100)
}
