package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"esign-backend/internal/bootstrap"
	"esign-backend/internal/shared/config"
	"esign-backend/internal/shared/server"
	"esign-backend/internal/shared/telemetry"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	telemetry.Init(cfg.Env, cfg.LogLevel)
	defer telemetry.Sync()

	app, err := bootstrap.Build(cfg)
	if err != nil {
		telemetry.Error("api.bootstrap_failed", map[string]any{"error": err})
		os.Exit(1)
	}
	if app.DB != nil {
		defer app.DB.Close()
	}

	srv := &http.Server{
		Addr:              server.Addr(cfg.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		telemetry.Info("api.started", map[string]any{"addr": srv.Addr, "env": cfg.Env})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			telemetry.Error("api.server_error", map[string]any{"error": err})
			os.Exit(1)
		}
	case <-ctx.Done():
		telemetry.Info("api.shutdown", map[string]any{"timeout": shutdownTimeout.String()})
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			telemetry.Error("api.shutdown_failed", map[string]any{"error": err})
		}
	}
}
