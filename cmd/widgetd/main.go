package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/chat-widget/internal/api/http"
	"github.com/spec-kit/chat-widget/internal/api/http/handlers"
	"github.com/spec-kit/chat-widget/internal/auth"
	"github.com/spec-kit/chat-widget/internal/calling"
	"github.com/spec-kit/chat-widget/internal/config"
	"github.com/spec-kit/chat-widget/internal/observability"
	"github.com/spec-kit/chat-widget/internal/persistence"
	"github.com/spec-kit/chat-widget/internal/session"
	"github.com/spec-kit/chat-widget/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	manager := session.NewManager(session.ManagerDependencies{
		Config:  cfg,
		Store:   session.NewStore(redis),
		Dialer:  &calling.NopDialer{Logger: logger},
		Mirror:  worker.StartEventMirror(redis, logger),
		Metrics: metrics,
		Logger:  logger,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version)
	widgetHandler := handlers.NewWidgetHandler(manager, tokens)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		Widget:         widgetHandler,
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	manager.Shutdown()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
