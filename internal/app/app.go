// Package app assembles the collaborators shared by the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dharsanguruparan/docvalidator/internal/analysis"
	"github.com/dharsanguruparan/docvalidator/internal/config"
	"github.com/dharsanguruparan/docvalidator/internal/filestore"
	"github.com/dharsanguruparan/docvalidator/internal/llm"
	"github.com/dharsanguruparan/docvalidator/internal/logging"
	pdfutil "github.com/dharsanguruparan/docvalidator/internal/pdf"
	"github.com/dharsanguruparan/docvalidator/internal/s3storage"
)

// Logger returns the JSON logger configured by cfg.
func Logger(cfg *config.Config) *slog.Logger {
	return logging.New(cfg.LogLevel, os.Stdout)
}

// Files opens the configured document storage backend.
func Files(ctx context.Context, cfg *config.Config) (filestore.Storage, error) {
	switch cfg.StorageBackend {
	case config.StorageS3:
		store, err := s3storage.New(cfg.S3)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageLocal:
		local, err := filestore.NewLocal(cfg.StorageLocalPath)
		if err != nil {
			return nil, err
		}
		return local, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

// Orchestrator wires the analysis pipeline to the PDF extractor and the LLM.
func Orchestrator(cfg *config.Config, store analysis.JobStore, files filestore.Storage, logger *slog.Logger) *analysis.Orchestrator {
	client := llm.New(cfg.LLM, logger)
	return analysis.New(analysis.Deps{
		Store:      store,
		Files:      files,
		Text:       pdfutil.NewExtractor(logger),
		Extractor:  client,
		Summarizer: client,
	}, logger)
}
