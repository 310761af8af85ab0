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

	"github.com/hibiken/asynq"

	"github.com/duka-erp/duka-erp/internal/app"
	"github.com/duka-erp/duka-erp/internal/catalog"
	"github.com/duka-erp/duka-erp/internal/customers"
	"github.com/duka-erp/duka-erp/internal/debts"
	"github.com/duka-erp/duka-erp/internal/expenses"
	"github.com/duka-erp/duka-erp/internal/notify"
	"github.com/duka-erp/duka-erp/internal/observability"
	"github.com/duka-erp/duka-erp/internal/platform/cache"
	"github.com/duka-erp/duka-erp/internal/platform/db"
	"github.com/duka-erp/duka-erp/internal/sales"
	"github.com/duka-erp/duka-erp/internal/shared"
	"github.com/duka-erp/duka-erp/jobs"
	"github.com/duka-erp/duka-erp/report"
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Warn("redis unavailable, low stock caching disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	auditLogger := shared.NewAuditLogger(pool, logger)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	metrics := observability.NewMetrics()

	catalogRepo := catalog.NewRepository(pool)
	lowStockCache := catalog.NewLowStockCache(redisClient, 5*time.Minute)
	catalogService := catalog.NewService(catalogRepo, auditLogger, lowStockCache, logger)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	customersRepo := customers.NewRepository(pool)
	customersService := customers.NewService(customersRepo)
	customersHandler := customers.NewHandler(logger, customersService)

	debtsRepo := debts.NewRepository(pool)
	debtsService := debts.NewService(debtsRepo, auditLogger, idempotencyStore, metrics, logger)
	debtsHandler := debts.NewHandler(logger, debtsService)

	salesRepo := sales.NewRepository(pool)
	salesService := sales.NewService(salesRepo, debtsService, auditLogger, metrics, logger)
	salesHandler := sales.NewHandler(logger, salesService)

	expensesRepo := expenses.NewRepository(pool)
	expensesService := expenses.NewService(expensesRepo, auditLogger, logger)
	expensesHandler := expenses.NewHandler(logger, expensesService)

	gateway := notify.NewHTTPGateway(cfg.SMSGatewayURL, cfg.SMSAPIKey, cfg.SMSUsername, cfg.SMSSenderID, logger)
	notifyRepo := notify.NewRepository(pool)
	notifyService := notify.NewService(notifyRepo, gateway, metrics, logger, cfg.DefaultCountryCode)
	notifyHandler := notify.NewHandler(logger, notifyService)

	reportClient := report.NewClient(cfg.GotenbergURL)
	reportService := report.NewService(salesService, expensesService, customersService, logger)
	reportHandler := report.NewHandler(reportClient, reportService, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		CatalogHandler:   catalogHandler,
		CustomersHandler: customersHandler,
		SalesHandler:     salesHandler,
		DebtsHandler:     debtsHandler,
		ExpensesHandler:  expensesHandler,
		NotifyHandler:    notifyHandler,
		ReportHandler:    reportHandler,
		JobsHandler:      jobsHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server starting", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", slog.Any("error", err))
	}
}
