package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/pos-dashboard/internal/broadcast"
	"github.com/iliyamo/pos-dashboard/internal/cart"
	"github.com/iliyamo/pos-dashboard/internal/catalog"
	"github.com/iliyamo/pos-dashboard/internal/checkout"
	"github.com/iliyamo/pos-dashboard/internal/clock"
	"github.com/iliyamo/pos-dashboard/internal/config"
	"github.com/iliyamo/pos-dashboard/internal/database"
	"github.com/iliyamo/pos-dashboard/internal/handler"
	"github.com/iliyamo/pos-dashboard/internal/kitchen"
	"github.com/iliyamo/pos-dashboard/internal/logger"
	"github.com/iliyamo/pos-dashboard/internal/metrics"
	"github.com/iliyamo/pos-dashboard/internal/middleware"
	"github.com/iliyamo/pos-dashboard/internal/queue"
	"github.com/iliyamo/pos-dashboard/internal/reporting"
	"github.com/iliyamo/pos-dashboard/internal/repository"
	"github.com/iliyamo/pos-dashboard/internal/router"
	"github.com/iliyamo/pos-dashboard/internal/store"
	"github.com/iliyamo/pos-dashboard/internal/tables"
)

// reportWindow is how much history is read back from MySQL on boot.
const reportWindow = 30 * 24 * time.Hour

func main() {
	cfg := config.Load()
	log := logger.New("pos-dashboard", cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Error("database unavailable", slog.String("action", "startup"), logger.Err(err))
		os.Exit(1)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Error("schema migration failed", slog.String("action", "startup"), logger.Err(err))
		os.Exit(1)
	}

	clk := clock.Real()
	hub := broadcast.NewHub(
		broadcast.WithLogger(log),
		broadcast.WithClock(clk),
		broadcast.WithDropHook(func(t broadcast.Topic) {
			metrics.BroadcastDropped.WithLabelValues(string(t)).Inc()
		}),
	)

	var (
		kv      store.Store
		pending checkout.Queue
	)
	rdb := config.NewRedisClient(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
		kv = store.NewRedis(rdb, cfg.Redis.Prefix)
		pending = checkout.NewRedisQueue(rdb, cfg.Redis.Prefix)
	} else {
		log.Warn("redis unreachable, local state will not survive a restart",
			slog.String("action", "startup"), slog.String("addr", cfg.Redis.Addr))
		kv = store.NewMemory()
		pending = checkout.NewMemoryQueue()
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	txRepo := repository.NewTransactionRepo(db)
	devices := repository.NewDeviceRepo(db)

	// catalog
	cat := catalog.New(repository.NewMenuRepo(db), kv, hub, clk, log)
	if err := cat.Load(ctx); err != nil {
		log.Error("menu load failed", slog.String("action", "startup"), logger.Err(err))
	}
	if n, err := cat.SeedFromFile(ctx, cfg.MenuSeedFile); err != nil {
		log.Error("menu seed failed", slog.String("action", "startup"), logger.Err(err))
	} else if n > 0 {
		log.Info("menu seeded", slog.String("action", "startup"), slog.Int("items", n))
	}

	// tables
	layout := tables.DefaultLayout()
	if cfg.TablesFile != "" {
		if layout, err = tables.LoadLayout(cfg.TablesFile); err != nil {
			log.Error("table layout invalid", slog.String("action", "startup"), logger.Err(err))
			os.Exit(1)
		}
	}
	tracker := tables.New(layout, kv, hub, clk, log)
	tracker.Load(ctx)
	defer tracker.Stop()
	go tracker.Run(ctx, cfg.TableSweepInterval)

	// kitchen and reports follow the hub
	board := kitchen.NewBoard(hub, clk, log)
	go board.Run(ctx, hub.Subscribe(kitchen.Topics()...))
	reports := reporting.New(cfg.Location, log)
	go reports.Run(ctx, hub.Subscribe(reporting.Topics()...))

	// checkout
	outbox := checkout.NewOutbox(pending, txRepo, cfg.OutboxMaxAttempts, clk, log)
	go outbox.Run(ctx, cfg.OutboxPollInterval)
	seq := checkout.NewSequencer(kv, clk, cfg.Location, log)
	svc := checkout.New(seq, outbox, hub, tracker, clk, log)

	history, err := txRepo.ListSince(ctx, clk.Now().Add(-reportWindow))
	if err != nil {
		log.Error("transaction history unavailable, reports start empty",
			slog.String("action", "startup"), logger.Err(err))
	}
	// writes still queued from the previous run are not in mysql yet
	if queued, qerr := outbox.Pending(ctx); qerr != nil {
		log.Warn("outbox backlog unreadable", slog.String("action", "startup"), logger.Err(qerr))
	} else {
		history = checkout.MergeHistory(history, queued)
	}
	svc.Seed(history)
	reports.Seed(history)

	// broker
	go queue.Forward(ctx, hub.Subscribe(broadcast.NewOrder), queue.NewPublisher(cfg.RabbitURL, log), log)
	go queue.NewReceiptConsumer(cfg.RabbitURL, cfg.ReceiptDir, log).Run(ctx)

	// http
	cache := middleware.NewResponseCache(cfg.Cache, rdb, log)
	limiter := middleware.NewTokenBucket(cfg.RateLimit, rdb, middleware.WithRateLimitLogger(log))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())

	router.Register(e, router.Handlers{
		Auth:         handler.NewAuthHandler(cfg, users, tokens, log),
		Menu:         handler.NewMenuHandler(cat, cache, log),
		Carts:        handler.NewCartHandler(cart.NewRegistry(), cat, svc, log),
		Transactions: handler.NewTransactionHandler(svc, log),
		Kitchen:      handler.NewKitchenHandler(board, hub, log),
		Tables:       handler.NewTableHandler(tracker, log),
		Reports:      handler.NewReportHandler(reports, svc, hub, log),
		Devices:      handler.NewDeviceHandler(devices, log),
		Events:       handler.NewEventsHandler(hub, log),
		Health:       handler.Health(db),
	}, router.Middleware{
		MenuCache: cache.Middleware(),
		RateLimit: limiter,
	}, cfg.JWTSecret)

	go func() {
		log.Info("listening", slog.String("action", "startup"),
			slog.String("addr", cfg.Addr()), slog.String("env", cfg.Env))
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.String("action", "serve"), logger.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", slog.String("action", "shutdown"), logger.Err(err))
	}
	// one last pass so queued writes reach MySQL before exit
	if err := outbox.Drain(shutdownCtx); err != nil {
		log.Warn("outbox not fully drained", slog.String("action", "shutdown"), logger.Err(err))
	}
	log.Info("bye", slog.String("action", "shutdown"))
}
