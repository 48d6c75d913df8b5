package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"roastbot/internal/bot"
	"roastbot/internal/config"
	"roastbot/internal/database"
	"roastbot/internal/metrics"
	"roastbot/internal/ops"
	"roastbot/internal/roast"
	"roastbot/internal/tasks"
	"roastbot/internal/worker"
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
	log.Println("database connection ready for worker")

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

	roaster := roast.NewClient(cfg.Provider, cfg.Roast.Prompt)

	extractHandler := worker.NewExtractTaskHandler(db, asynqClient, logger)
	roastHandler := worker.NewRoastTaskHandler(db, asynqClient, roaster, logger)
	notifyHandler := worker.NewNotifyTaskHandler(db, gateway, logger, cfg.Roast.AttachmentThreshold)

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeResumeExtract, extractHandler)
	mux.Handle(tasks.TypeResumeRoast, roastHandler)
	mux.HandleFunc(tasks.TypeNotifyResult, notifyHandler.ProcessResult)
	mux.HandleFunc(tasks.TypeNotifyError, notifyHandler.ProcessError)

	go func() {
		if err := ops.Run(cfg.Ops.Port); err != nil {
			logger.Error("ops server stopped", slog.Any("error", err))
		}
	}()

	server := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()}, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
	})

	logger.Info("worker service started",
		slog.String("redis_addr", cfg.Redis.Addr()),
		slog.Int("concurrency", cfg.Worker.Concurrency),
	)
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}
