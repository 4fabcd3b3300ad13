package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/marketbloom/storefront-gateway/api/routes"
	cartsvc "github.com/marketbloom/storefront-gateway/internal/cart"
	"github.com/marketbloom/storefront-gateway/internal/commerce"
	"github.com/marketbloom/storefront-gateway/internal/guestcart"
	"github.com/marketbloom/storefront-gateway/internal/payment"
	"github.com/marketbloom/storefront-gateway/pkg/config"
	"github.com/marketbloom/storefront-gateway/pkg/db"
	"github.com/marketbloom/storefront-gateway/pkg/logger"
	"github.com/marketbloom/storefront-gateway/pkg/metrics"
	pkgredis "github.com/marketbloom/storefront-gateway/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "gateway"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "gateway",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx := context.Background()

	journalDB, err := db.New(ctx, cfg.Journal, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap journal database", err)
		os.Exit(1)
	}
	defer func() {
		if err := journalDB.Close(); err != nil {
			logg.Error(ctx, "error closing journal database", err)
		}
	}()

	if err := payment.Migrate(journalDB.DB()); err != nil {
		logg.Error(ctx, "failed to migrate journal schema", err)
		os.Exit(1)
	}

	redisClient, err := pkgredis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	commerceClient, err := commerce.NewClient(cfg.Commerce, logg)
	if err != nil {
		logg.Error(ctx, "failed to build commerce client", err)
		os.Exit(1)
	}

	carts, err := cartsvc.NewManager(commerceClient, slotFactory(cfg, redisClient), logg)
	if err != nil {
		logg.Error(ctx, "failed to build cart manager", err)
		os.Exit(1)
	}

	collector, err := payment.NewSquareCollector(ctx, cfg.Square, logg)
	if err != nil {
		logg.Error(ctx, "failed to build payment collector", err)
		os.Exit(1)
	}

	journal, err := payment.NewJournal(journalDB.DB())
	if err != nil {
		logg.Error(ctx, "failed to build checkout journal", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	orchestrator, err := payment.NewOrchestrator(payment.OrchestratorParams{
		Collector: collector,
		Committer: commerceClient,
		Journal:   journal,
		Metrics:   checkoutMetrics,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to build payment orchestrator", err)
		os.Exit(1)
	}

	router := routes.NewRouter(routes.RouterParams{
		Config:      cfg,
		Logger:      logg,
		Journal:     journalDB,
		Redis:       redisClient,
		Carts:       carts,
		Commerce:    commerceClient,
		Checkout:    orchestrator,
		MetricsGath: registry,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting storefront gateway")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "gateway stopped unexpectedly", err)
		os.Exit(1)
	}
}

func slotFactory(cfg *config.Config, redisClient *pkgredis.Client) cartsvc.SlotFactory {
	if strings.EqualFold(cfg.GuestCart.Storage, "file") {
		return func(token string) (guestcart.Slot, error) {
			return guestcart.NewFileSlot(filepath.Join(cfg.GuestCart.FileDir, token+".json"))
		}
	}
	return func(token string) (guestcart.Slot, error) {
		return guestcart.NewRedisSlot(redisClient, token, cfg.GuestCart.TTL)
	}
}
