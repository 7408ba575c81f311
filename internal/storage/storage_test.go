package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jwtly10/tradedesk/internal/ledger"
	"github.com/jwtly10/tradedesk/internal/risk"
	"github.com/jwtly10/tradedesk/internal/types"
)

// setupTestDB prepares an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to initialize test database")

	// Every new connection to :memory: is a fresh database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, Migrate(db), "failed to migrate tables")
	return db
}

func testLedger(t *testing.T) *ledger.Ledger {
	t.Helper()

	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	l, err := ledger.New(10000, ledger.WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
	require.NoError(t, err)

	pos, err := l.OpenPosition("AAPL", ledger.LONG, 10, 100)
	require.NoError(t, err)
	_, err = l.OpenPosition("TSLA", ledger.SHORT, 2, 250)
	require.NoError(t, err)
	_, err = l.ClosePosition(pos.ID, 104.5, 4)
	require.NoError(t, err)
	price := 95.0
	o, err := l.SubmitOrder(ledger.OrderRequest{Symbol: "MSFT", Side: ledger.BUY, Type: ledger.LIMIT, Quantity: 3, Price: &price})
	require.NoError(t, err)
	_, err = l.RejectOrder(o.ID, "outside hours")
	require.NoError(t, err)
	require.NoError(t, l.Watch("NVDA"))
	require.NoError(t, l.Watch("AMD"))
	return l
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	assert.ErrorIs(t, err, types.ErrInvalidConfig)

	_, err = Open(Config{Driver: DriverPostgres})
	assert.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestLedgerRepository_LoadEmpty(t *testing.T) {
	repo := NewLedgerRepository(setupTestDB(t))

	_, ok, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedgerRepository_SaveAndLoadVerbatim(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository(setupTestDB(t))
	l := testLedger(t)
	want := l.Snapshot()

	require.NoError(t, repo.Save(ctx, want))

	got, ok, err := repo.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	assert.True(t, want.CashBalance.Equal(got.CashBalance), "cash %s != %s", want.CashBalance, got.CashBalance)
	assert.True(t, want.FundedCapital.Equal(got.FundedCapital))
	assert.Equal(t, want.Positions, got.Positions)
	assert.Equal(t, want.Orders, got.Orders)
	assert.Equal(t, want.Trades, got.Trades)
	assert.Equal(t, []string{"NVDA", "AMD"}, got.Watchlist)

	restored, err := ledger.Restore(got)
	require.NoError(t, err)
	assert.Equal(t, l.CashBalance(), restored.CashBalance())
	assert.Equal(t, l.Equity(), restored.Equity())
}

func TestLedgerRepository_SaveReplacesPreviousState(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository(setupTestDB(t))
	l := testLedger(t)

	require.NoError(t, repo.Save(ctx, l.Snapshot()))

	for _, p := range l.Positions() {
		_, err := l.ClosePosition(p.ID, p.CurrentPrice, p.Quantity)
		require.NoError(t, err)
	}
	l.Unwatch("NVDA")
	require.NoError(t, repo.Save(ctx, l.Snapshot()))

	got, ok, err := repo.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, got.Positions)
	assert.Len(t, got.Orders, len(l.Orders()))
	assert.Equal(t, []string{"AMD"}, got.Watchlist)
	assert.Equal(t, l.CashBalance(), got.CashBalance.InexactFloat64())
}

func TestLedgerRepository_MarkOnlySaveLeavesHistoryRowsUntouched(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewLedgerRepository(db)
	l := testLedger(t)
	require.NoError(t, repo.Save(ctx, l.Snapshot()))

	// mark the stored history so any rewrite of those rows would show
	require.NoError(t, db.Model(&OrderModel{}).Where("1 = 1").Update("reject_reason", "stored").Error)
	require.NoError(t, db.Model(&TradeModel{}).Where("1 = 1").Update("exit_reason", "stored").Error)

	n, err := l.UpdateMarkPrices(map[string]float64{"TSLA": 240})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.NoError(t, repo.Save(ctx, l.Snapshot()))

	var orders []OrderModel
	require.NoError(t, db.Find(&orders).Error)
	require.Len(t, orders, len(l.Orders()))
	for _, o := range orders {
		assert.Equal(t, "stored", o.RejectReason, "order %s was rewritten", o.ID)
	}
	var trades []TradeModel
	require.NoError(t, db.Find(&trades).Error)
	require.Len(t, trades, 1)
	assert.Equal(t, "stored", trades[0].ExitReason)

	var tsla PositionModel
	require.NoError(t, db.Where("symbol = ?", "TSLA").First(&tsla).Error)
	assert.Equal(t, 240.0, tsla.CurrentPrice)

	// a repository that loaded the state also writes only what changed
	reloaded := NewLedgerRepository(db)
	state, ok, err := reloaded.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	state.Positions[0].CurrentPrice = 99
	require.NoError(t, reloaded.Save(ctx, state))

	orders = nil
	require.NoError(t, db.Where("reject_reason = ?", "stored").Find(&orders).Error)
	assert.Len(t, orders, len(l.Orders()))
}

func TestCandleRepository_UpsertAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewCandleRepository(setupTestDB(t))

	bars := []types.Bar{
		{Timestamp: 1000, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{Timestamp: 2000, Open: 1.5, High: 3, Low: 1, Close: 2.5, Volume: 12},
		{Timestamp: 3000, Open: 2.5, High: 4, Low: 2, Close: 3.5, Volume: 8},
	}
	require.NoError(t, repo.UpsertBatch(ctx, "BTCUSD", bars))
	require.NoError(t, repo.UpsertBatch(ctx, "ETHUSD", bars[:1]))

	// Overwrite the forming bar.
	updated := bars[2]
	updated.Close = 3.9
	require.NoError(t, repo.UpsertBatch(ctx, "BTCUSD", []types.Bar{updated}))

	all, err := repo.Find(ctx, "BTCUSD", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(1000), all[0].Timestamp)
	assert.Equal(t, 3.9, all[2].Close)

	latest, err := repo.Find(ctx, "BTCUSD", 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{2000, 3000}, []int64{latest[0].Timestamp, latest[1].Timestamp})

	none, err := repo.Find(ctx, "XRPUSD", 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	symbols, err := repo.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSD", "ETHUSD"}, symbols)

	assert.NoError(t, repo.UpsertBatch(ctx, "BTCUSD", nil))
}

func TestEquityRepository_AppendAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewEquityRepository(setupTestDB(t))
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, v := range []float64{100, 101, 99, 103} {
		require.NoError(t, repo.Append(ctx, risk.EquityPoint{Timestamp: t0.Add(time.Duration(i) * time.Hour), Value: v}))
	}

	all, err := repo.Find(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, 100.0, all[0].Value)
	assert.True(t, all[0].Timestamp.Equal(t0))

	last, err := repo.Find(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{99, 103}, []float64{last[0].Value, last[1].Value})
}

func TestSettingsRepository_PutAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingsRepository(setupTestDB(t))

	type prefs struct {
		Theme  string `json:"theme"`
		Period int    `json:"period"`
	}

	var got prefs
	found, err := repo.Get(ctx, "chart", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.Put(ctx, "chart", prefs{Theme: "dark", Period: 20}))
	require.NoError(t, repo.Put(ctx, "chart", prefs{Theme: "light", Period: 50}))

	found, err = repo.Get(ctx, "chart", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, prefs{Theme: "light", Period: 50}, got)
}
