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

	sentryhttp "github.com/getsentry/sentry-go/http"

	"github.com/jamroom/backend/internal/catalog"
	"github.com/jamroom/backend/internal/config"
	"github.com/jamroom/backend/internal/database"
	"github.com/jamroom/backend/internal/db"
	"github.com/jamroom/backend/internal/logging"
	"github.com/jamroom/backend/internal/router"
	appsentry "github.com/jamroom/backend/internal/sentry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Initialize structured logging (reads LOGGING_LEVEL env var)
	logging.Initialize()

	// Load configuration (.env first, then the environment)
	cfg := config.Load()
	if cfg.AdminSignupCode == "" {
		slog.Warn("ADMIN_SIGNUP_CODE is not set; anyone can register an admin account")
	}

	// Error reporting
	sentryEnabled, err := appsentry.Init(cfg.SentryDSN, cfg.SentryEnvironment)
	if err != nil {
		slog.Error("failed to initialize sentry", slog.String("error", err.Error()))
	}
	if sentryEnabled {
		defer appsentry.Flush(2 * time.Second)
	}

	// Initialize database
	sqlDB, err := database.New(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer sqlDB.Close()

	// Run migrations
	if err := database.RunMigrations(sqlDB); err != nil {
		slog.Error("failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Load the song catalog
	songs, err := catalog.Load(cfg.SongsDir)
	if err != nil {
		slog.Error("failed to load song catalog", slog.String("dir", cfg.SongsDir), slog.String("error", err.Error()))
		os.Exit(1)
	}

	handler := router.New(cfg, db.New(sqlDB), songs)
	if sentryEnabled {
		handler = sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle(handler)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			slog.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case <-ctx.Done():
		slog.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", slog.String("error", err.Error()))
	}
}
