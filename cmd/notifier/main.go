package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/office_hours/internal/app"
	"github.com/Freeeeeet/office_hours/internal/config"
	"github.com/Freeeeeet/office_hours/internal/notify"
	"github.com/Freeeeeet/office_hours/internal/repository"
	"github.com/go-telegram/bot"
	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	envFile := flag.String("env-file", ".env", "path to the .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment, "notifier")
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Notifier failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	if cfg.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required for the notifier")
	}
	if cfg.QueueBackend == config.QueueBackendMemory {
		return fmt.Errorf("notifier needs a shared queue, set QUEUE_BACKEND to redis or kafka")
	}
	if cfg.StorageBackend != config.StorageBackendPostgres {
		return fmt.Errorf("notifier reads users from postgres, set STORAGE_BACKEND=postgres")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := app.OpenPostgres(ctx, cfg.GetDBDSN())
	if err != nil {
		return err
	}
	defer pool.Close()

	var redisClient *redis.Client
	if cfg.UsesRedis() {
		redisClient, err = app.OpenRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	queue, err := app.NewQueue(cfg, redisClient, logger)
	if err != nil {
		return fmt.Errorf("create event queue: %w", err)
	}
	defer queue.Close()

	b, err := bot.New(cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}

	logger.Info("Starting notifier", zap.String("queue", cfg.QueueBackend))

	notifier := notify.NewNotifier(queue, repository.NewUserRepository(pool), b, time.Local, logger)
	return notifier.Run(ctx)
}
