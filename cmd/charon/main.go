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

	"github.com/dawnmoon/charon/internal/app"
	"github.com/dawnmoon/charon/internal/auth"
	"github.com/dawnmoon/charon/internal/authz"
	"github.com/dawnmoon/charon/internal/observability"
	"github.com/dawnmoon/charon/internal/platform/cache"
	"github.com/dawnmoon/charon/internal/platform/db"
	"github.com/dawnmoon/charon/internal/rbac"
	"github.com/dawnmoon/charon/internal/session"
	"github.com/dawnmoon/charon/internal/users"
)

func main() {
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
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	sessions := session.NewStore(redisClient, cfg.TokenKeyPrefix)
	credRepo := rbac.NewRepository(pool)
	resolver := authz.NewResolver(credRepo)
	propagator := authz.NewPropagator(sessions, resolver, credRepo, cfg.DefaultRefreshTTL, logger, metrics)
	checker := authz.NewChecker(sessions, resolver, logger, metrics)

	authService := auth.NewService(credRepo, resolver, sessions, cfg.SessionTTL, cfg.BcryptCost, logger, metrics)
	authzMiddleware := authz.Middleware{Identity: authService, Checker: checker, Logger: logger}

	rbacService := rbac.NewService(credRepo, propagator, logger)
	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, authService, cfg.BcryptCost, logger)

	authHandler := auth.NewHandler(logger, authService, authzMiddleware, app.LoginRateLimiter(cfg))
	usersHandler := users.NewHandler(logger, usersService, authzMiddleware)
	rbacHandler := rbac.NewHandler(logger, rbacService, authzMiddleware)

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		AuthHandler:  authHandler,
		UsersHandler: usersHandler,
		RBACHandler:  rbacHandler,
		Metrics:      metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
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
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
