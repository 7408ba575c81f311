package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jwtly10/tradedesk/internal/analytics"
	"github.com/jwtly10/tradedesk/internal/cache"
	"github.com/jwtly10/tradedesk/internal/config"
	"github.com/jwtly10/tradedesk/internal/desk"
	"github.com/jwtly10/tradedesk/internal/feed"
	"github.com/jwtly10/tradedesk/internal/logging"
	"github.com/jwtly10/tradedesk/internal/market"
	"github.com/jwtly10/tradedesk/internal/server"
	"github.com/jwtly10/tradedesk/internal/storage"
	"github.com/jwtly10/tradedesk/internal/stream"
	"github.com/jwtly10/tradedesk/internal/tradingview"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("tradedesk stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level := cfg.LogLevel
	if cfg.DebugTopics != "" {
		// topic loggers emit at debug level
		level = "debug"
		logging.SetTopics(cfg.DebugTopics)
	}
	logging.Configure(os.Stderr, level, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(cfg.DB)
	if err != nil {
		return err
	}

	rdb, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}
	candles := cache.NewCachingCandleRepository(rdb, cfg.CacheTTL, storage.NewCandleRepository(db), cache.DefaultNamespace)

	if cfg.Oanda.Enabled() {
		backfill(ctx, cfg.Oanda, candles)
	}

	engine, err := analytics.New(analytics.DefaultConfig(), cfg.Risk)
	if err != nil {
		return err
	}

	hub := stream.NewHub()
	svc, err := desk.New(ctx, desk.Params{
		Ledger:         storage.NewLedgerRepository(db),
		Candles:        candles,
		Equity:         storage.NewEquityRepository(db),
		Settings:       storage.NewSettingsRepository(db),
		Notifier:       hub,
		Market:         market.NewStore(market.StoreParams{HistoryLimit: cfg.HistoryLimit}),
		Engine:         engine,
		InitialBalance: cfg.InitialBalance,
		HistoryLoad:    cfg.HistoryLimit,
	})
	if err != nil {
		return err
	}
	defer func() { tradingview.DumpPineScript(svc.Trades()) }()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewRouter(server.NewHandler(svc, hub.ServeWS)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})

	if cfg.KafkaEnabled() {
		reader := feed.NewKafkaReader(cfg.Kafka)
		consumer := feed.NewKafkaConsumer(reader, svc, slog.Default().With("component", "kafka"), feed.DefaultConsumerConfig())
		g.Go(func() error {
			defer reader.Close()
			slog.Info("Consuming market data", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
			return consumer.Start(ctx)
		})
	}

	g.Go(func() error {
		slog.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("Shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// backfill loads recent history for every configured instrument into the
// candle store. Failures are logged so the desk still starts offline.
func backfill(ctx context.Context, cfg config.OandaConfig, candles desk.CandleStore) {
	client := feed.NewOandaClient(cfg.AccountID, cfg.APIKey, cfg.APIURL)
	to := time.Now()
	from := to.AddDate(0, 0, -cfg.BackfillDays)

	for _, instrument := range cfg.Instruments {
		instrument = strings.ToUpper(instrument)
		bars, err := client.FetchBars(ctx, feed.CandleRequest{
			Instrument:  instrument,
			Granularity: cfg.Granularity,
			From:        from,
			To:          to,
		})
		if err != nil {
			slog.Error("Failed to backfill bar data", "instrument", instrument, "error", err)
			continue
		}
		if err := candles.UpsertBatch(ctx, instrument, bars); err != nil {
			slog.Error("Failed to store backfilled bars", "instrument", instrument, "error", err)
			continue
		}
		slog.Info("Loaded bars", "instrument", instrument, "count", len(bars))
	}
}
