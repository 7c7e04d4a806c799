package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oddsmith/platform/internal/app"
	"github.com/oddsmith/platform/internal/auth"
	"github.com/oddsmith/platform/internal/infra"
)

// Exit codes: 1 runtime failure, 2 config invalid, 4 migration failure,
// 5 external dependency unavailable.
const (
	exitRuntime    = 1
	exitConfig     = 2
	exitMigration  = 4
	exitDependency = 5
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if code := run(logger); code != 0 {
		os.Exit(code)
	}
}

func run(logger *slog.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		logger.Error("load config", "error", err)
		return exitConfig
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("config invalid", "error", err)
		return exitConfig
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		return exitDependency
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	if err := infra.RunMigrations(cfg.DSN(), logger); err != nil {
		logger.Error("migrations failed", "error", err)
		return exitMigration
	}

	adminExpiry, err := time.ParseDuration(cfg.JWTAdminExpiry)
	if err != nil {
		logger.Error("parse admin JWT expiry", "error", err)
		return exitConfig
	}
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, adminExpiry)

	a := app.NewApp(app.Deps{
		Pool:   pool,
		Config: cfg,
		JWTMgr: jwtMgr,
		Logger: logger,
	})
	defer a.Producer.Close()

	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      a.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("api server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := a.Orchestrator.Run(gctx); err != nil && err != context.Canceled {
			return fmt.Errorf("orchestrator: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server failed", "error", err)
		return exitRuntime
	}

	logger.Info("server stopped gracefully")
	return 0
}
