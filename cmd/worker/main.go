package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/docvalidator/internal/app"
	"github.com/dharsanguruparan/docvalidator/internal/config"
	"github.com/dharsanguruparan/docvalidator/internal/database"
	"github.com/dharsanguruparan/docvalidator/internal/repository"
	"github.com/dharsanguruparan/docvalidator/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(config.NeedDatabase, config.NeedQueue, config.NeedLLM); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	logger := app.Logger(cfg)

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}
	repo := repository.NewJobRepository(pool)

	files, err := app.Files(ctx, cfg)
	if err != nil {
		log.Fatalf("init storage: %v", err)
	}

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.Workers,
		Logger:      worker.NewAsynqLogger(logger),
	})
	processor := worker.NewProcessor(app.Orchestrator(cfg, repo, files, logger), logger)
	mux := processor.Handler()

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	logger.Info("worker.start", "concurrency", cfg.Workers)
	if err := server.Run(mux); err != nil {
		logger.Error("worker.stopped", "error", err)
		os.Exit(1)
	}
}
