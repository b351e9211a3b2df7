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

	"github.com/scentstock/scentstock/cmd/scentstock/cli"
	"github.com/scentstock/scentstock/internal/app"
	"github.com/scentstock/scentstock/internal/attachments"
	"github.com/scentstock/scentstock/internal/bom"
	"github.com/scentstock/scentstock/internal/dashboard"
	"github.com/scentstock/scentstock/internal/export"
	"github.com/scentstock/scentstock/internal/inventory"
	"github.com/scentstock/scentstock/internal/observability"
	"github.com/scentstock/scentstock/internal/platform/cache"
	"github.com/scentstock/scentstock/internal/platform/db"
	"github.com/scentstock/scentstock/internal/products"
	"github.com/scentstock/scentstock/internal/shared"
	"github.com/scentstock/scentstock/internal/shopify"
	"github.com/scentstock/scentstock/internal/users"
	"github.com/scentstock/scentstock/jobs"
	"github.com/scentstock/scentstock/migrations"
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

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		os.Exit(cli.RunJobs(ctx, cfg, os.Args[2:], os.Stdout))
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if cfg.DBAutoMigrate {
		if err := db.Migrate(ctx, dbpool, migrations.FS, logger); err != nil {
			logger.Error("apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Warn("redis unavailable, dashboard cache disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}

	inventoryRepo := inventory.NewRepository(dbpool)
	dashboardService := dashboard.NewService(
		dashboard.NewRepository(dbpool),
		inventoryRepo,
		cache.NewVersioned(redisClient, "scentstock:dashboard", cfg.DashboardCacheTTL),
		logger,
	)
	inventoryService := inventory.NewService(inventoryRepo, logger, metrics, dashboardService)

	var syncEnqueuer products.SyncEnqueuer
	if cfg.ShopifySyncEnabled {
		jobClient, err := jobs.NewClient(redisOpts)
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		syncEnqueuer = jobClient
	}
	productService := products.NewService(products.NewRepository(dbpool), inventoryService, auditLogger, syncEnqueuer, logger, products.ServiceConfig{
		ShopifySyncEnabled: cfg.ShopifySyncEnabled,
	})
	bomService := bom.NewService(bom.NewRepository(dbpool), auditLogger, logger)
	shopifyService := shopify.NewService(shopify.NewRepository(dbpool), inventoryService, metrics, logger)

	tokens := users.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	userService := users.NewService(users.NewRepository(dbpool), tokens, auditLogger)

	storage, err := attachments.NewDiskStorage(cfg.UploadDir)
	if err != nil {
		logger.Error("prepare upload dir", slog.Any("error", err))
		os.Exit(1)
	}
	attachmentService := attachments.NewService(attachments.NewRepository(dbpool), storage, logger)
	exportService := export.NewService(productService, inventoryService)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		DB:                 dbpool,
		Metrics:            metrics,
		Tokens:             tokens,
		ProductsHandler:    products.NewHandler(logger, productService),
		InventoryHandler:   inventory.NewHandler(logger, inventoryService),
		BOMHandler:         bom.NewHandler(logger, bomService),
		ShopifyHandler:     shopify.NewHandler(logger, shopifyService, cfg.ShopifyWebhookSecret),
		UsersHandler:       users.NewHandler(logger, userService),
		AttachmentsHandler: attachments.NewHandler(logger, attachmentService, cfg.UploadMaxBytes),
		DashboardHandler:   dashboard.NewHandler(logger, dashboardService),
		ExportHandler:      export.NewHandler(logger, exportService),
		JobHandler:         jobs.NewHandler(inspector, logger),
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
