// Command api accepts analysis submissions and serves their results. Jobs are
// stored in Postgres and handed to the worker through asynq.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/docvalidator/internal/api"
	"github.com/dharsanguruparan/docvalidator/internal/app"
	"github.com/dharsanguruparan/docvalidator/internal/config"
	"github.com/dharsanguruparan/docvalidator/internal/database"
	"github.com/dharsanguruparan/docvalidator/internal/intake"
	"github.com/dharsanguruparan/docvalidator/internal/queue"
	"github.com/dharsanguruparan/docvalidator/internal/repository"
	"github.com/dharsanguruparan/docvalidator/internal/signing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(config.NeedDatabase, config.NeedQueue); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	logger := app.Logger(cfg)
	gin.SetMode(gin.ReleaseMode)

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

	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer client.Close()

	svc := intake.New(repo, files, queue.NewScheduler(client), cfg.MaxFileSize, logger)
	srv := api.New(cfg, svc, repo, files, signing.NewSigner(cfg.SigningSecret), logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error("api.stopped", "error", err)
		os.Exit(1)
	}
}
