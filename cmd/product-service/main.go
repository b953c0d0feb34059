package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"product-service/internal/app"
	"product-service/internal/config"
	"product-service/internal/logger"
	"product-service/internal/tracer"
	"product-service/internal/version"
)

func main() {
	globalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.Instance()
	cfg := config.Instance()

	log.Info(cfg.AppName,
		slog.String("version", version.Version),
		slog.String("commit", version.Commit),
		slog.String("buildTime", version.BuildTime),
	)

	// Initialize telemetry (OpenTelemetry + Pyroscope)
	shutdownTracer, err := tracer.Instance(globalCtx)
	if err != nil {
		log.Warn("Continuing without tracing", slog.String("error", err.Error()))
	}

	a := app.New(cfg)
	if err := a.Start(globalCtx); err != nil {
		log.Error("Failed to start product service", slog.String("error", err.Error()))
		os.Exit(1)
	}

	exitCode := 0
	select {
	case <-globalCtx.Done():
		log.Info("Shutdown signal received")
	case err := <-a.Done():
		if err != nil {
			log.Error("Server failed", slog.String("error", err.Error()))
			exitCode = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := a.Stop(shutdownCtx); err != nil {
		log.Error("Unclean shutdown", slog.String("error", err.Error()))
		exitCode = 1
	}
	if shutdownTracer != nil {
		if err := shutdownTracer(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", slog.String("error", err.Error()))
		}
	}

	os.Exit(exitCode)
}
