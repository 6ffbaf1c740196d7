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

	"github.com/richhabits/richhabits-os/cmd/richhabits/cli"
	"github.com/richhabits/richhabits-os/internal/activity"
	"github.com/richhabits/richhabits-os/internal/app"
	"github.com/richhabits/richhabits-os/internal/auth"
	"github.com/richhabits/richhabits-os/internal/commissions"
	"github.com/richhabits/richhabits-os/internal/dashboard"
	"github.com/richhabits/richhabits-os/internal/invoices"
	"github.com/richhabits/richhabits-os/internal/manufacturing"
	"github.com/richhabits/richhabits-os/internal/notifications"
	"github.com/richhabits/richhabits-os/internal/observability"
	"github.com/richhabits/richhabits-os/internal/orders"
	"github.com/richhabits/richhabits-os/internal/platform/cache"
	"github.com/richhabits/richhabits-os/internal/platform/db"
	"github.com/richhabits/richhabits-os/internal/quotes"
	"github.com/richhabits/richhabits-os/internal/rbac"
	"github.com/richhabits/richhabits-os/internal/shared"
	"github.com/richhabits/richhabits-os/internal/tasks"
	"github.com/richhabits/richhabits-os/internal/users"
	"github.com/richhabits/richhabits-os/jobs"
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
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		jobsCLI := cli.NewJobsCLI(redisOpts)
		runErr := jobsCLI.Run(ctx, os.Args[2:], os.Stdout)
		if err := jobsCLI.Close(); err != nil {
			logger.Warn("jobs cli close", slog.Any("error", err))
		}
		if runErr != nil {
			logger.Error("jobs cli", slog.Any("error", runErr))
			os.Exit(1)
		}
		return
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "richhabits_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	metrics := observability.NewMetrics()

	usersService := users.NewService(users.NewRepository(dbpool), cache.NewJSONCache(redisClient, "principal:", cfg.PrincipalCacheTTL), logger)
	rbacMiddleware := rbac.Middleware{Resolver: usersService, Logger: logger, TrustedHeader: cfg.TrustedUserHeader}

	activityStore := activity.NewStore(dbpool)
	var recorder activity.Recorder = activityStore
	var jobClient *jobs.Client
	if cfg.ActivityAsync {
		jobClient = jobs.NewClient(redisOpts)
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("jobs client close", slog.Any("error", err))
			}
		}()
		recorder = jobs.NewActivityEnqueuer(jobClient, activityStore, logger)
	}
	recorder = metrics.CountTransitions(recorder)

	notificationService := notifications.NewService(notifications.NewRepository(dbpool))

	ordersService := orders.NewService(orders.NewRepository(dbpool), recorder, notificationService, logger)
	quotesService := quotes.NewService(quotes.NewRepository(dbpool), recorder, notificationService, logger)
	invoicesService := invoices.NewService(invoices.NewRepository(dbpool), recorder, notificationService, logger)
	commissionsService := commissions.NewService(commissions.NewRepository(dbpool), recorder, notificationService, logger)
	tasksService := tasks.NewService(tasks.NewRepository(dbpool), recorder, notificationService, logger)
	manufacturingService := manufacturing.NewService(manufacturing.NewRepository(dbpool), recorder, notificationService, logger)
	dashboardService := dashboard.NewService(
		dashboard.NewRepository(dbpool),
		commissionsService,
		notificationService,
		cache.NewJSONCache(redisClient, "dashboard:", cfg.DashboardCacheTTL),
		logger,
	)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		RBACMiddleware: rbacMiddleware,
		Metrics:        metrics,
		AuthHandler:    auth.NewHandler(logger, sessionManager, csrfManager, usersService),
		API: []app.RouteMounter{
			users.NewHandler(logger, usersService, rbacMiddleware),
			dashboard.NewHandler(logger, dashboardService, rbacMiddleware),
			orders.NewHandler(logger, ordersService, rbacMiddleware),
			quotes.NewHandler(logger, quotesService, rbacMiddleware),
			invoices.NewHandler(logger, invoicesService, rbacMiddleware),
			commissions.NewHandler(logger, commissionsService, rbacMiddleware),
			tasks.NewHandler(logger, tasksService, rbacMiddleware),
			manufacturing.NewHandler(logger, manufacturingService, rbacMiddleware),
			notifications.NewHandler(logger, notificationService, rbacMiddleware),
			activity.NewHandler(logger, activity.NewService(activityStore), rbacMiddleware),
		},
		JobHandler: jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.Bool("activity_async", cfg.ActivityAsync))
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
