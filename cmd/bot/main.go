package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"roastbot/internal/bot"
	"roastbot/internal/config"
	"roastbot/internal/database"
	"roastbot/internal/ops"
	"roastbot/internal/storage"
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := db.AutoMigrate(&database.ResumeProcessing{}); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
	log.Println("database ready for bot")

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	log.Printf("storage client ready, bucket=%s", cfg.MinIO.Bucket)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Error("close asynq client failed", slog.Any("error", err))
		}
	}()

	gateway, err := bot.NewTelegramGateway(cfg.Telegram.BotToken)
	if err != nil {
		log.Fatalf("init telegram gateway: %v", err)
	}

	intake := bot.NewIntake(
		db,
		asynqClient,
		gateway,
		storageClient,
		redisClient,
		logger,
		cfg.Clamd.Addr,
		cfg.Roast.DailyLimit,
	)

	go func() {
		if err := ops.Run(cfg.Ops.Port); err != nil {
			logger.Error("ops server stopped", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("bot service started", slog.String("redis_addr", cfg.Redis.Addr()))
	bot.Poll(ctx, gateway.API(), intake, logger)
}
