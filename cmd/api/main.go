package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/frostlinehq/frostline-backend/api/routes"
	cartsvc "github.com/frostlinehq/frostline-backend/internal/cart"
	"github.com/frostlinehq/frostline-backend/internal/catalog"
	checkoutsvc "github.com/frostlinehq/frostline-backend/internal/checkout"
	"github.com/frostlinehq/frostline-backend/internal/coupon"
	ordersvc "github.com/frostlinehq/frostline-backend/internal/orders"
	"github.com/frostlinehq/frostline-backend/internal/pricing"
	"github.com/frostlinehq/frostline-backend/pkg/config"
	"github.com/frostlinehq/frostline-backend/pkg/db"
	"github.com/frostlinehq/frostline-backend/pkg/delivery"
	"github.com/frostlinehq/frostline-backend/pkg/geocode"
	"github.com/frostlinehq/frostline-backend/pkg/logger"
	"github.com/frostlinehq/frostline-backend/pkg/metrics"
	"github.com/frostlinehq/frostline-backend/pkg/migrate"
	"github.com/frostlinehq/frostline-backend/pkg/redis"
	"github.com/frostlinehq/frostline-backend/pkg/square"
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
	checkoutMetrics := metrics.NewCheckoutMetrics(promRegistry)

	calc, err := pricing.NewCalculator(cfg.Checkout.TaxRate)
	if err != nil {
		logg.Error(context.Background(), "failed to build pricing calculator", err)
		os.Exit(1)
	}

	catalogRepo := catalog.NewRepository(dbClient.DB())
	catalogService, err := catalog.NewService(catalogRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	couponService, err := coupon.NewService(coupon.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create coupon service", err)
		os.Exit(1)
	}

	guestStore, err := cartsvc.NewGuestStore(redisClient, cfg.GuestCart.TTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create guest cart store", err)
		os.Exit(1)
	}
	cartRepo := cartsvc.NewRepository(dbClient.DB())
	cartService, err := cartsvc.NewService(guestStore, cartRepo, catalogRepo, couponService, redisClient, calc, checkoutMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	handoffs, err := checkoutsvc.NewHandoffStore(redisClient, cfg.Checkout.HandoffTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout handoff store", err)
		os.Exit(1)
	}

	geocoder, err := geocode.NewClient(
		cfg.Geocoding.APIKey,
		geocode.WithBaseURL(cfg.Geocoding.BaseURL),
		geocode.WithRegion(cfg.Geocoding.Region),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create geocoding client", err)
		os.Exit(1)
	}

	courier, err := delivery.NewClient(cfg.Delivery.BaseURL, cfg.Delivery.APIKey)
	if err != nil {
		logg.Error(context.Background(), "failed to create courier client", err)
		os.Exit(1)
	}

	squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create square client", err)
		os.Exit(1)
	}

	ordersRepo := ordersvc.NewRepository(dbClient.DB())
	ordersService, err := ordersvc.NewService(ordersRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		Handoffs: handoffs,
		Carts:    cartService,
		CartRepo: cartRepo,
		Products: catalogRepo,
		Coupons:  couponService,
		Geocoder: geocoder,
		Courier:  courier,
		Payments: squareClient,
		Orders:   ordersRepo,
		Stock:    catalogRepo,
		Tx:       dbClient,
		Latch:    redisClient,
		Calc:     calc,
		Config:   cfg.Checkout,
		Metrics:  checkoutMetrics,
		Logger:   logg,
	})
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
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			promRegistry,
			catalogService,
			cartService,
			checkoutService,
			ordersService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
