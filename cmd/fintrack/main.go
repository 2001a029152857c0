package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/auth"
	"fintrack/internal/backend"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/core"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).Create(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, log.FieldBackend, backendCfg.Type)
		os.Exit(1)
	}

	var opts []services.Option
	opts = append(opts, services.WithLogger(logger))

	// Event publishing is optional; without a broker the API still works.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			opts = append(opts, services.WithPublisher(amqpClient))
			logger.Info("Publishing transaction events",
				"exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	if cfg.DashboardCacheTTL > 0 {
		summaries := cache.NewLRUCache[core.Summary](1000, cfg.DashboardCacheTTL)
		opts = append(opts, services.WithSummaryCache(services.NewSummaryCache(summaries)))
		go cache.NewJanitor(summaries).Run(janitorCtx, cfg.DashboardCacheTTL)
		logger.Info("Dashboard cache enabled", "ttl", cfg.DashboardCacheTTL)
	}

	store := result.Store
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Transactions:       services.NewTransactionService(store, opts...),
		Dashboard:          services.NewDashboardService(store, opts...),
		Auth:               auth.NewService(store, auth.NewTokens(cfg.JWTSecret, cfg.JWTExpiry), logger),
		Store:              store,
		Logger:             logger,
		Location:           cfg.Location(),
		CORSOrigins:        cfg.CORSOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RequestTimeout:     cfg.RequestTimeout,
	})

	sigCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		stopJanitor()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", "error", err)
			}
		}
		if err := result.Cleanup(shutdownCtx); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting fintrack server",
		"port", cfg.Port,
		log.FieldBackend, backendCfg.Type,
		"timezone", cfg.Timezone)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(sigCtx, done)
	logger.Info("Server stopped gracefully")
}
