package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/richhabits/richhabits-os/internal/activity"
	"github.com/richhabits/richhabits-os/internal/app"
	jobmetrics "github.com/richhabits/richhabits-os/internal/jobs"
	"github.com/richhabits/richhabits-os/internal/notifications"
	"github.com/richhabits/richhabits-os/internal/platform/db"
	"github.com/richhabits/richhabits-os/internal/quotes"
	"github.com/richhabits/richhabits-os/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := jobmetrics.NewMetrics(prometheus.DefaultRegisterer)
	activityStore := activity.NewStore(pool)
	notificationService := notifications.NewService(notifications.NewRepository(pool))
	// The sweep writes its own trail synchronously; the worker is the consumer of the async queue.
	quotesService := quotes.NewService(quotes.NewRepository(pool), activityStore, notificationService, logger)

	activityWriter := jobs.NewActivityWriterJob(activityStore, logger, metrics)
	expiryJob := jobs.NewQuoteExpiryJob(quotesService, logger, metrics)

	expiryTask, err := jobs.NewQuotesExpireTask(jobs.QuotesExpirePayload{})
	if err != nil {
		logger.Error("build quote expiry task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskActivityRecord, Handler: activityWriter.Handle},
			{Type: jobs.TaskQuotesExpire, Handler: expiryJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.QuoteExpiryCron, Task: expiryTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: mux, ReadHeaderTimeout: cfg.AppReadTimeout}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() { _ = metricsServer.Close() }()
	}

	logger.Info("starting worker", slog.String("quote_expiry_cron", cfg.QuoteExpiryCron))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
