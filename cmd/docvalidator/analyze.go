package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/docvalidator/internal/app"
	"github.com/dharsanguruparan/docvalidator/internal/config"
	"github.com/dharsanguruparan/docvalidator/internal/filestore"
	"github.com/dharsanguruparan/docvalidator/internal/intake"
	"github.com/dharsanguruparan/docvalidator/internal/logging"
	"github.com/dharsanguruparan/docvalidator/internal/model"
	"github.com/dharsanguruparan/docvalidator/internal/report"
	"github.com/dharsanguruparan/docvalidator/internal/storage"
)

// captureScheduler remembers the scheduled job so the command can run it
// inline.
type captureScheduler struct {
	jobID string
}

func (c *captureScheduler) Schedule(_ context.Context, jobID, _ string) error {
	c.jobID = jobID
	return nil
}

type analyzeFinding struct {
	Code     string         `json:"code" yaml:"code"`
	Severity model.Severity `json:"severity" yaml:"severity"`
	Message  string         `json:"message" yaml:"message"`
	Pointers model.Pointers `json:"pointers" yaml:"pointers"`
}

type analyzeResult struct {
	JobID           string                  `json:"job_id" yaml:"job_id"`
	Status          model.AnalysisStatus    `json:"status" yaml:"status"`
	Decision        *model.AnalysisDecision `json:"decision,omitempty" yaml:"decision,omitempty"`
	Confidence      *float64                `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	Summary         *string                 `json:"summary,omitempty" yaml:"summary,omitempty"`
	Error           *model.JobError         `json:"error,omitempty" yaml:"error,omitempty"`
	Inconsistencies []analyzeFinding        `json:"inconsistencies" yaml:"inconsistencies"`
}

func newAnalyzeCmd() *cobra.Command {
	var company, output, reportPath string
	paths := map[model.DocumentType]*string{}
	cmd := &cobra.Command{
		Use:   "analyze --company NAME [--contrato-social a.pdf] [--cartao-cnpj b.pdf] [--certidao-negativa c.pdf]",
		Short: "Analyze PDFs in-process using the configured LLM",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.LLM.APIKey == "" {
				return errors.New("LLM_API_KEY is required")
			}
			logger := logging.New(cfg.LogLevel, cmd.ErrOrStderr())

			dir, err := os.MkdirTemp("", "docvalidator-*")
			if err != nil {
				return err
			}
			defer os.RemoveAll(dir)
			files, err := filestore.NewLocal(dir)
			if err != nil {
				return err
			}

			req := intake.Request{CompanyName: company}
			for _, dt := range model.DocumentTypes {
				path := *paths[dt]
				if path == "" {
					continue
				}
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()
				req.Uploads = append(req.Uploads, intake.Upload{
					DocumentType: dt,
					Filename:     filepath.Base(path),
					ContentType:  "application/pdf",
					Body:         f,
				})
			}

			store := storage.NewMemoryStore()
			scheduler := &captureScheduler{}
			ctx = logging.WithCorrelationID(ctx, uuid.NewString())
			if _, err := intake.New(store, files, scheduler, cfg.MaxFileSize, logger).Create(ctx, req); err != nil {
				return err
			}
			if _, err := app.Orchestrator(cfg, store, files, logger).Run(ctx, scheduler.jobID, ""); err != nil {
				return err
			}

			view, err := store.View(ctx, scheduler.jobID)
			if err != nil {
				return err
			}
			if reportPath != "" {
				data, err := report.XLSX(view)
				if err != nil {
					return err
				}
				if err := os.WriteFile(reportPath, data, 0o644); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
			}
			return writeResult(cmd.OutOrStdout(), output, newAnalyzeResult(view))
		},
	}
	cmd.Flags().StringVar(&company, "company", "", "Company name (razão social) being validated")
	for _, dt := range model.DocumentTypes {
		flag := map[model.DocumentType]string{
			model.DocumentContratoSocial:   "contrato-social",
			model.DocumentCartaoCNPJ:       "cartao-cnpj",
			model.DocumentCertidaoNegativa: "certidao-negativa",
		}[dt]
		paths[dt] = cmd.Flags().String(flag, "", fmt.Sprintf("Path to the %s PDF", dt))
	}
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "Output format: yaml or json")
	cmd.Flags().StringVar(&reportPath, "report", "", "Also write an XLSX report to this path")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

func newAnalyzeResult(view model.JobView) analyzeResult {
	job := view.Job
	res := analyzeResult{
		JobID:           job.ID,
		Status:          job.Status,
		Decision:        job.Decision,
		Confidence:      job.Confidence,
		Summary:         job.Summary,
		Error:           job.Error,
		Inconsistencies: make([]analyzeFinding, 0, len(view.Findings)),
	}
	for _, f := range view.Findings {
		res.Inconsistencies = append(res.Inconsistencies, analyzeFinding{
			Code:     f.Code,
			Severity: f.Severity,
			Message:  f.Message,
			Pointers: f.Pointers(),
		})
	}
	return res
}
