package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"product-service/internal/apperr"
	"product-service/internal/client"
	"product-service/internal/config"
	"product-service/internal/logger"
	"product-service/internal/model"
	"product-service/internal/tracer"
	"product-service/internal/version"

	"github.com/shopspring/decimal"
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

	shutdownTracer, err := tracer.Instance(globalCtx)
	if err != nil {
		log.Warn("Continuing without tracing", slog.String("error", err.Error()))
	}
	if shutdownTracer != nil {
		defer func() { _ = shutdownTracer(context.Background()) }()
	}

	log.Info("Product client started",
		slog.String("target", cfg.ClientTargetURL),
		slog.Int64("max_sleep_ms", cfg.ClientMaxSleepMs),
	)

	products := client.NewProductClient(cfg.ClientTargetURL, 2*time.Second)
	var lastID int64

	for {
		ctx, cancel := context.WithTimeout(globalCtx, 2*time.Second)
		lastID = step(ctx, products, lastID)
		cancel()

		sleep := time.Duration(rand.Int64N(cfg.ClientMaxSleepMs+1)) * time.Millisecond
		select {
		case <-globalCtx.Done():
			log.Info("Product client stopped")
			return
		case <-time.After(sleep):
		}
	}
}

// step issues one random call and returns the newest id it has seen.
func step(ctx context.Context, products *client.ProductClient, lastID int64) int64 {
	switch n := rand.IntN(10); {
	case n < 2:
		created, err := products.Create(ctx, model.NewProduct{
			Name:  fmt.Sprintf("item-%d", rand.IntN(10000)),
			Price: decimal.New(rand.Int64N(100000), -2),
			Stock: rand.IntN(100),
		})
		if err != nil {
			logger.Error(ctx, "Create failed", slog.String("error", err.Error()))
			return lastID
		}
		logger.Info(ctx, "Created product", slog.Int64("id", created.ID))
		return created.ID
	case n < 5 && lastID > 0:
		id := rand.Int64N(lastID+5) + 1
		product, err := products.Get(ctx, id)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			logger.Info(ctx, "Product not found", slog.Int64("id", id))
		case err != nil:
			logger.Error(ctx, "Get failed", slog.String("error", err.Error()))
		default:
			logger.Info(ctx, "Received product", slog.Int64("id", product.ID))
		}
	default:
		list, err := products.List(ctx)
		if err != nil {
			logger.Error(ctx, "List failed", slog.String("error", err.Error()))
			return lastID
		}
		logger.Info(ctx, "Received products", slog.Int("count", len(list)))
		if len(list) > 0 && list[0].ID > lastID {
			return list[0].ID
		}
	}
	return lastID
}
