// cmd/historian/main.go is an asynchronous historian service that pops room events from a
// Redis queue and persists them to a PostgreSQL database.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/zing/internal/cache"
	"github.com/jason-s-yu/zing/internal/config"
	"github.com/jason-s-yu/zing/internal/database"
	"github.com/jason-s-yu/zing/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	store, err := database.Connect(ctx, cfg.PostgresDSN, logrus.NewEntry(logger))
	if err != nil {
		logger.Fatalf("failed to connect to postgres: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		logger.Fatalf("failed to migrate: %v", err)
	}

	queue := cache.NewEventQueue(rdb, cfg.QueueName)
	svc := historian.New(queue, store, historian.Options{
		BatchSize:  cfg.HistorianBatchSize,
		FlushDelay: cfg.HistorianFlush,
		Logger:     logrus.NewEntry(logger),
	})

	logger.Infof("historian draining %s (batch size %d, flush %s)", queue.Name(), cfg.HistorianBatchSize, cfg.HistorianFlush)
	if err := svc.Run(ctx); err != nil {
		logger.Fatalf("historian exited: %v", err)
	}
	logger.Info("historian stopped")
}
