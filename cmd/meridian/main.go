package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-mfg/meridian-erp/internal/app"
	"github.com/meridian-mfg/meridian-erp/internal/audit"
	"github.com/meridian-mfg/meridian-erp/internal/bom"
	"github.com/meridian-mfg/meridian-erp/internal/ledger"
	"github.com/meridian-mfg/meridian-erp/internal/masterdata/products"
	"github.com/meridian-mfg/meridian-erp/internal/observability"
	"github.com/meridian-mfg/meridian-erp/internal/orders"
	"github.com/meridian-mfg/meridian-erp/internal/platform/cache"
	"github.com/meridian-mfg/meridian-erp/internal/platform/db"
	"github.com/meridian-mfg/meridian-erp/internal/production"
	"github.com/meridian-mfg/meridian-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, stats caching disabled", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()
	var statsCache *cache.JSONCache
	if redisClient != nil {
		statsCache = cache.NewJSONCache(redisClient, cfg.StatsTTL)
	}

	metrics := observability.NewMetrics()

	auditRepo := audit.NewRepository(pool)
	ledgerRepo := ledger.NewRepository(pool)

	ordersRepo := orders.NewRepository(pool, auditRepo)
	ordersService := orders.NewService(ordersRepo, logger, metrics, statsCache)
	ordersHandler := orders.NewHandler(logger, ordersService, auditRepo)

	bomRepo := bom.NewRepository(pool)
	bomEngine := bom.NewEngine(bomRepo)
	productionRepo := production.NewRepository(pool)
	productionService := production.NewService(productionRepo, bomEngine, logger, metrics)
	productionHandler := production.NewHandler(logger, productionService)

	productsRepo := products.NewRepository(pool)
	productsService := products.NewService(productsRepo)
	productsHandler := products.NewHandler(logger, productsService, ledgerRepo)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, jobsClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		OrdersHandler:     ordersHandler,
		ProductionHandler: productionHandler,
		ProductsHandler:   productsHandler,
		JobsHandler:       jobsHandler,
		Pool:              pool,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
