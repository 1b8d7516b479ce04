// Command core is the composition root: it wires every package in this
// repository into one running process, the way the teacher's
// cmd/server/main.go wires its usecases and handlers at startup.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/nse-mtf/core/internal/aggregator"
	"github.com/nse-mtf/core/internal/candle"
	"github.com/nse-mtf/core/internal/candlestore"
	"github.com/nse-mtf/core/internal/config"
	httphandler "github.com/nse-mtf/core/internal/delivery/http"
	"github.com/nse-mtf/core/internal/domain"
	"github.com/nse-mtf/core/internal/eventbus"
	"github.com/nse-mtf/core/internal/exitmonitor"
	"github.com/nse-mtf/core/internal/exits"
	"github.com/nse-mtf/core/internal/infrastructure/broker"
	"github.com/nse-mtf/core/internal/infrastructure/db"
	"github.com/nse-mtf/core/internal/infrastructure/fcm"
	"github.com/nse-mtf/core/internal/marketdata"
	"github.com/nse-mtf/core/internal/orchestrator"
	"github.com/nse-mtf/core/internal/repository"
	"github.com/nse-mtf/core/internal/screener"
	"github.com/nse-mtf/core/internal/sms"
	"github.com/nse-mtf/core/internal/zone"
)

// resolveDatabaseURL mirrors the teacher's Heroku-add-on fallback chain,
// generalized to the DATABASE_URL-first convention this deployment target
// uses instead.
func resolveDatabaseURL() string {
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		return v
	}
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key, val := parts[0], strings.TrimSpace(parts[1])
		if val == "" {
			continue
		}
		if strings.HasPrefix(key, "HEROKU_POSTGRESQL_") && strings.HasSuffix(key, "_URL") {
			return val
		}
	}
	return ""
}

func main() {
	ctx := context.Background()

	dbURL := resolveDatabaseURL()

	var store domain.Store
	var postgresEnabled bool

	if dbURL != "" {
		pool, err := db.NewPool(ctx, dbURL, db.DefaultPoolConfig())
		if err != nil {
			log.Fatalf("failed to create DB pool: %v", err)
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool); err != nil {
			log.Fatalf("DB migrate failed: %v", err)
		}
		log.Println("✓ Postgres connected (pooled) and migrated")
		postgresEnabled = true

		store = domain.Store{
			Candles:     repository.NewPostgresCandles(pool),
			Signals:     repository.NewPostgresSignals(pool),
			Deliveries:  repository.NewPostgresDeliveries(pool),
			Intents:     repository.NewPostgresTradeIntents(pool),
			ExitSignals: repository.NewPostgresExitSignals(pool),
			ExitIntents: repository.NewPostgresExitIntents(pool),
			Trades:      repository.NewPostgresTrades(pool),
			Portfolios:  repository.NewPostgresPortfolios(pool),
			UserBrokers: repository.NewPostgresUserBrokers(pool),
			Watchlist:   repository.NewPostgresWatchlist(pool),
			Config:      repository.NewPostgresMtfConfig(pool),
		}
	} else {
		log.Println("⚠ Postgres not configured (DATABASE_URL not set); using in-memory storage")
		store = domain.Store{
			Candles:     repository.NewInMemoryCandles(),
			Signals:     repository.NewInMemorySignals(),
			Deliveries:  repository.NewInMemoryDeliveries(),
			Intents:     repository.NewInMemoryTradeIntents(),
			ExitSignals: repository.NewInMemoryExitSignals(),
			ExitIntents: repository.NewInMemoryExitIntents(),
			Trades:      repository.NewInMemoryTrades(),
			Portfolios:  repository.NewInMemoryPortfolios(),
			UserBrokers: repository.NewInMemoryUserBrokers(),
			Watchlist:   repository.NewInMemoryWatchlist(demoWatchlist()...),
			Config:      repository.NewInMemoryMtfConfig(config.FromEnv()),
		}
	}

	fcmClient, err := fcm.NewClient()
	if err != nil {
		log.Printf("warning: FCM initialization failed: %v", err)
		log.Println("continuing without push notifications")
		fcmClient = nil
	} else if fcmClient.IsEnabled() {
		log.Println("✓ FCM push notifications enabled")
	} else {
		log.Println("⚠ FCM disabled - set FIREBASE_CREDENTIALS_PATH or FIREBASE_CREDENTIALS_JSON")
	}

	bus := eventbus.New(fcmClient)

	cache := marketdata.New(store.Candles)
	candles := candlestore.New(store.Candles)
	builder := candle.New(store.Candles, cache, candle.DefaultPartitions, 1024)
	agg := aggregator.New(store.Candles, builder.Closed(), 1024)

	zones := zone.New(candles)
	coord := sms.New(sms.Deps{
		Signals:     store.Signals,
		Deliveries:  store.Deliveries,
		Intents:     store.Intents,
		ExitSignals: store.ExitSignals,
		ExitIntents: store.ExitIntents,
		Trades:      store.Trades,
		UserBrokers: store.UserBrokers,
		Bus:         bus,
	})

	scr := screener.New(store.Watchlist, store.Config, zones, cache, coord)

	feed := broker.NewMockFeed()
	executor := broker.NewMockExecutor()

	orch := orchestrator.New(orchestrator.Deps{
		SMS:         coord,
		Deliveries:  store.Deliveries,
		Signals:     store.Signals,
		UserBrokers: store.UserBrokers,
		Portfolios:  store.Portfolios,
		Watchlist:   store.Watchlist,
		Config:      store.Config,
		Trades:      store.Trades,
		Cache:       cache,
		Broker:      executor,
		Bus:         bus,
	})

	brick := exits.NewBrickMovementTracker(config.FromEnv().MinBrickPct)
	exitMon := exitmonitor.New(exitmonitor.Deps{
		Trades:      store.Trades,
		UserBrokers: store.UserBrokers,
		Config:      store.Config,
		Brick:       brick,
		SMS:         coord,
	})

	feed.OnTick(builder.OnTick)
	feed.OnTick(func(tick domain.Tick) {
		exitMon.OnTick(ctx, tick)
	})

	go builder.Run(ctx)
	go agg.Run(ctx)
	go coord.Run(ctx)
	go scr.Run(ctx)
	go orch.Run(ctx)

	if err := coord.RebuildIndex(ctx); err != nil {
		log.Printf("sms: initial delivery index rebuild failed: %v", err)
	}

	go func() {
		for c := range agg.Closed() {
			bus.Emit(domain.ScopeGlobal, domain.EventCandleClosed, c, "aggregator")
		}
	}()

	health := httphandler.HealthHandler{PostgresEnabled: postgresEnabled, FCMEnabled: fcmClient != nil && fcmClient.IsEnabled()}
	http.Handle("/health", health)
	http.Handle("/ws", bus)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("core starting on port %s", port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal(err)
	}
}

// demoWatchlist seeds the in-memory watchlist store when no Postgres
// watchlist table is available; operators wire the real symbol list
// through the watchlist table in production.
func demoWatchlist() []domain.WatchlistEntry {
	return []domain.WatchlistEntry{
		{Symbol: "RELIANCE", Enabled: true},
		{Symbol: "TCS", Enabled: true},
		{Symbol: "HDFCBANK", Enabled: true},
	}
}
