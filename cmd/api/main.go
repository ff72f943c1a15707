package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/thanhledev/audiomart-backend/api/routes"
	cartsvc "github.com/thanhledev/audiomart-backend/internal/cart"
	"github.com/thanhledev/audiomart-backend/internal/catalog"
	checkoutsvc "github.com/thanhledev/audiomart-backend/internal/checkout"
	"github.com/thanhledev/audiomart-backend/internal/inventory"
	"github.com/thanhledev/audiomart-backend/internal/orders"
	"github.com/thanhledev/audiomart-backend/internal/promotions"
	"github.com/thanhledev/audiomart-backend/pkg/cache"
	"github.com/thanhledev/audiomart-backend/pkg/config"
	"github.com/thanhledev/audiomart-backend/pkg/db"
	"github.com/thanhledev/audiomart-backend/pkg/logger"
	"github.com/thanhledev/audiomart-backend/pkg/metrics"
	"github.com/thanhledev/audiomart-backend/pkg/migrate"
	"github.com/thanhledev/audiomart-backend/pkg/redis"
)

const cacheTTL = 5 * time.Minute

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

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	appCache := cache.New(redisClient, cacheTTL)
	gdb := dbClient.DB()

	inventoryService, err := inventory.NewService(
		inventory.NewRepository(gdb), dbClient, cfg.Pricing.LowStockDefaultMinimum, checkoutMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(catalog.NewRepository(gdb), dbClient, appCache, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	promotionsService, err := promotions.NewService(promotions.NewRepository(gdb))
	if err != nil {
		logg.Error(context.Background(), "failed to create promotions service", err)
		os.Exit(1)
	}

	cartService, err := cartsvc.NewService(
		cartsvc.NewRepository(gdb),
		dbClient,
		inventoryService,
		catalogService,
		cartsvc.PricingOptions{
			TaxRateBps:                 cfg.Pricing.TaxRateBps,
			FreeShippingThresholdCents: cfg.Pricing.FreeShippingThreshold,
			FlatShippingFeeCents:       cfg.Pricing.FlatShippingFee,
		},
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(gdb)
	ordersService, err := orders.NewService(ordersRepo, dbClient, inventoryService, appCache, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(
		ordersRepo,
		dbClient,
		cartService,
		promotionsService,
		inventoryService,
		catalogService,
		appCache,
		checkoutMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
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
		Handler: routes.NewRouter(routes.RouterParams{
			Config:     cfg,
			Logger:     logg,
			DB:         dbClient,
			Redis:      redisClient,
			Registry:   registry,
			Catalog:    catalogService,
			Carts:      cartService,
			Checkout:   checkoutService,
			Orders:     ordersService,
			Inventory:  inventoryService,
			Promotions: promotionsService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
