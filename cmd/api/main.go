package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hermagulator/shopbot/api/routes"
	"github.com/hermagulator/shopbot/internal/catalog"
	"github.com/hermagulator/shopbot/internal/discounts"
	"github.com/hermagulator/shopbot/internal/orders"
	"github.com/hermagulator/shopbot/internal/payments"
	"github.com/hermagulator/shopbot/internal/tron"
	"github.com/hermagulator/shopbot/internal/wallet"
	"github.com/hermagulator/shopbot/pkg/config"
	"github.com/hermagulator/shopbot/pkg/db"
	"github.com/hermagulator/shopbot/pkg/logger"
	"github.com/hermagulator/shopbot/pkg/metrics"
	"github.com/hermagulator/shopbot/pkg/migrate"
	"github.com/hermagulator/shopbot/pkg/outbox"
	"github.com/hermagulator/shopbot/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	promRegistry := prometheus.NewRegistry()
	paymentMetrics := metrics.NewPaymentMetrics(promRegistry)

	gdb := dbClient.DB()
	outboxSvc := outbox.NewService(outbox.NewRepository(gdb), logg)

	catalogService, err := catalog.NewService(catalog.NewRepository(gdb))
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}
	discountService, err := discounts.NewService(discounts.NewRepository(gdb))
	if err != nil {
		logg.Error(context.Background(), "failed to create discounts service", err)
		os.Exit(1)
	}
	walletService, err := wallet.NewService(wallet.NewRepository(gdb), dbClient, outboxSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}
	orderService, err := orders.NewService(
		orders.NewRepository(gdb),
		dbClient,
		outboxSvc,
		catalogService,
		catalogService,
		discountService,
		walletService,
		paymentMetrics,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	tronClient, err := tron.NewClient(cfg.Payment.NodeURL, cfg.Payment.NodeRequestTimeout)
	if err != nil {
		logg.Error(context.Background(), "failed to create tron client", err)
		os.Exit(1)
	}
	verifier, err := tron.NewVerifier(tronClient, cfg.Payment.ReceiveAddress, cfg.Payment.Tolerance(), cfg.Payment.FreshnessWindow)
	if err != nil {
		logg.Error(context.Background(), "failed to create chain verifier", err)
		os.Exit(1)
	}
	paymentService, err := payments.NewService(
		orderService,
		walletService,
		verifier,
		payments.NewChainPaymentRepository(gdb),
		paymentMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			promRegistry,
			catalogService,
			walletService,
			discountService,
			orderService,
			paymentService,
		),
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "server shutdown error", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server shut down gracefully")
}
