package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"product-service/internal/config"
	"product-service/internal/database"
	handler "product-service/internal/handler/http"
	"product-service/internal/logger"
	"product-service/internal/metrics"
	"product-service/internal/repository"
	"product-service/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App owns the pool and the HTTP server for one process run.
type App struct {
	cfg      *config.Config
	registry *prometheus.Registry
	openPool func(context.Context, database.Options) (*database.Pool, error)

	pool     *database.Pool
	server   *http.Server
	listener net.Listener
	done     chan error

	stopOnce sync.Once
	stopErr  error
}

func New(cfg *config.Config) *App {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &App{
		cfg:      cfg,
		registry: registry,
		openPool: database.Open,
		done:     make(chan error, 1),
	}
}

// Start opens the pool, makes sure the products table exists and begins serving.
// Nothing is left open when it fails.
func (a *App) Start(ctx context.Context) error {
	pool, err := a.openPool(ctx, database.Options{
		DriverName:     a.cfg.DBDriver,
		DSN:            a.cfg.DatabaseURL,
		MaxConns:       a.cfg.DBMaxConns,
		AcquireTimeout: a.cfg.DBAcquireTimeout,
		ConnectRetries: a.cfg.DBConnectRetries,
		ConnectBackoff: a.cfg.DBConnectBackoff,
	})
	if err != nil {
		return fmt.Errorf("open pool: %w", err)
	}
	if err := database.EnsureSchema(ctx, pool); err != nil {
		_ = pool.Close()
		return err
	}

	recorder := metrics.NewRecorder(a.registry)
	recorder.WatchPool(pool)

	productRepo := repository.NewProductRepository()
	productService := service.NewProductService(pool, productRepo, a.cfg.DBQueryTimeout)

	router := handler.NewRouter(handler.RouterDeps{
		Products: handler.NewProductHandler(productService),
		Health:   handler.NewHealthHandler(),
		Recorder: recorder,
		Gatherer: a.registry,
	})

	listener, err := net.Listen("tcp", ":"+a.cfg.AppPort)
	if err != nil {
		_ = pool.Close()
		return fmt.Errorf("listen on :%s: %w", a.cfg.AppPort, err)
	}

	a.pool = pool
	a.listener = listener
	a.server = &http.Server{
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Info(ctx, "HTTP server running", slog.String("addr", listener.Addr().String()))

	go func() {
		err := a.server.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		a.done <- err
	}()
	return nil
}

// Done delivers the serve error, or nil after a clean Stop.
func (a *App) Done() <-chan error {
	return a.done
}

// Addr is the bound listen address; empty before Start.
func (a *App) Addr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Stop lets in-flight requests finish within ctx, then closes the pool.
func (a *App) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() {
		var errs []error
		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			}
		}
		if a.pool != nil {
			if err := a.pool.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close pool: %w", err))
			}
		}
		a.stopErr = errors.Join(errs...)
		logger.Info(ctx, "Product service stopped")
	})
	return a.stopErr
}
