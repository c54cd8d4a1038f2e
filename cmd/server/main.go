// Command server runs the whole service in one process: an in-memory job
// store, an in-process worker pool and the HTTP API. Jobs do not survive a
// restart.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/dharsanguruparan/docvalidator/internal/api"
	"github.com/dharsanguruparan/docvalidator/internal/app"
	"github.com/dharsanguruparan/docvalidator/internal/config"
	"github.com/dharsanguruparan/docvalidator/internal/intake"
	"github.com/dharsanguruparan/docvalidator/internal/processing"
	"github.com/dharsanguruparan/docvalidator/internal/signing"
	"github.com/dharsanguruparan/docvalidator/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(config.NeedLLM); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	logger := app.Logger(cfg)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := storage.NewMemoryStore()
	files, err := app.Files(ctx, cfg)
	if err != nil {
		log.Fatalf("init storage: %v", err)
	}

	pool := processing.New(app.Orchestrator(cfg, store, files, logger), cfg.Workers, logger)
	pool.Start(ctx)
	defer pool.Stop()

	svc := intake.New(store, files, pool, cfg.MaxFileSize, logger)
	srv := api.New(cfg, svc, store, files, signing.NewSigner(cfg.SigningSecret), logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server.stopped", "error", err)
		os.Exit(1)
	}
}
