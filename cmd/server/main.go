package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"golang.org/x/sync/errgroup"

	"github.com/tcn-network/banshare-api/internal/config"
	"github.com/tcn-network/banshare-api/internal/database"
	"github.com/tcn-network/banshare-api/internal/dto"
	"github.com/tcn-network/banshare-api/internal/gateway"
	"github.com/tcn-network/banshare-api/internal/handlers"
	"github.com/tcn-network/banshare-api/internal/logging"
	"github.com/tcn-network/banshare-api/internal/middleware"
	"github.com/tcn-network/banshare-api/internal/ratelimit"
	"github.com/tcn-network/banshare-api/internal/routes"
	"github.com/tcn-network/banshare-api/internal/services"
	"github.com/tcn-network/banshare-api/internal/store"
)

func main() {
	cfg := config.Load()

	// Structured logging (JSON to stdout)
	logging.Setup(cfg.AppEnv)

	for key, val := range map[string]string{
		"JWT_SECRET":  cfg.JWTSecret,
		"DB_PASSWORD": cfg.DBPassword,
		"BOT_API_URL": cfg.BotAPIURL,
	} {
		if val == "" {
			slog.Error(key + " environment variable is required")
			os.Exit(1)
		}
	}

	// Database
	db, err := database.Connect(cfg)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(db)
	slog.SetDefault(slog.New(logging.NewMultiHandler(
		logging.NewStdoutHandler(cfg.AppEnv),
		pgLogHandler,
	)))

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		}
	}

	// Rate limit counters are shared through redis when configured.
	var limiterStorage fiber.Storage
	if cfg.RedisURL != "" {
		redisStorage, err := ratelimit.NewRedisStorage(cfg.RedisURL)
		if err != nil {
			slog.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		defer redisStorage.Close()
		limiterStorage = redisStorage
	}

	// Enforcement bot
	bot := gateway.NewClient(gateway.Options{
		BaseURL:    cfg.BotAPIURL,
		Token:      cfg.BotAPIToken,
		Timeout:    cfg.BotTimeout,
		MaxRetries: cfg.BotMaxRetries,
		Logger:     slog.Default(),
	})

	// Services
	banshareStore := store.NewBanshareStore(db)
	settingsStore := store.NewSettingsStore(db)
	auditService := services.NewAuditService(db)
	permissionService := services.NewPermissionService(db, cfg.HubGuildID)
	banshareService := services.NewBanshareService(banshareStore, settingsStore, bot, permissionService, auditService)
	settingsService := services.NewSettingsService(settingsStore, bot, auditService)
	reminderService := services.NewReminderService(banshareStore, bot, services.ReminderOptions{
		Interval:    cfg.ReminderInterval,
		UrgentAfter: cfg.UrgentReminderAfter,
		NormalAfter: cfg.ReminderAfter,
	})

	// Handlers
	healthHandler := handlers.NewHealthHandler(db)
	banshareHandler := handlers.NewBanshareHandler(banshareService, permissionService)
	settingsHandler := handlers.NewSettingsHandler(settingsService)

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${locals:requestid}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		return c.Next()
	})

	// Routes
	routes.Setup(app, cfg, permissionService, routes.NewLimiters(limiterStorage), healthHandler, banshareHandler, settingsHandler)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "port", cfg.Port)
		return app.Listen(":" + cfg.Port)
	})
	g.Go(func() error {
		return reminderService.Run(gctx)
	})
	g.Go(func() error {
		return logging.RunCleanup(gctx, db, cfg.LogRetention)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server...")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server stopped with error", "error", err)
	}

	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	// Close database connections
	if err := database.Close(db); err != nil {
		slog.Error("database close error", "error", err)
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An unexpected error occurred."
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "An unexpected error occurred."
	}

	errCode := services.CodeInternal
	switch code {
	case fiber.StatusNotFound:
		errCode = services.CodeNotFound
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity, fiber.StatusRequestEntityTooLarge:
		errCode = services.CodeInvalidBody
	}

	return c.Status(code).JSON(dto.ErrorResponse{
		Error:   true,
		Code:    errCode,
		Message: message,
	})
}
