// Package intake creates analysis jobs: it validates the submission, stores
// the files, records the job and hands it to the scheduler.
package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime"
	"strings"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/docvalidator/internal/apperr"
	"github.com/dharsanguruparan/docvalidator/internal/filestore"
	"github.com/dharsanguruparan/docvalidator/internal/logging"
	"github.com/dharsanguruparan/docvalidator/internal/model"
)

const defaultContentType = "application/pdf"

var allowedContentTypes = map[string]bool{
	"application/pdf":          true,
	"application/x-pdf":        true,
	"application/octet-stream": true,
}

// Upload is one file of a submission.
type Upload struct {
	DocumentType model.DocumentType
	Filename     string
	ContentType  string
	Body         io.Reader
}

// Request is a new analysis submission.
type Request struct {
	CompanyName string
	Uploads     []Upload
}

// Store records new jobs.
type Store interface {
	CreateJob(ctx context.Context, job model.AnalysisJob, docs []model.Document) error
}

// Scheduler hands a job to background execution.
type Scheduler interface {
	Schedule(ctx context.Context, jobID, correlationID string) error
}

// Service creates jobs.
type Service struct {
	store       Store
	files       filestore.Storage
	scheduler   Scheduler
	maxFileSize int64
	log         *slog.Logger
}

// New builds a Service. maxFileSize bounds each uploaded file in bytes.
func New(store Store, files filestore.Storage, scheduler Scheduler, maxFileSize int64, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	if maxFileSize <= 0 {
		maxFileSize = math.MaxInt64
	}
	return &Service{store: store, files: files, scheduler: scheduler, maxFileSize: maxFileSize, log: logger}
}

// Create validates req, stores its files and schedules the new PENDING job.
func (s *Service) Create(ctx context.Context, req Request) (model.AnalysisJob, error) {
	company := strings.TrimSpace(req.CompanyName)
	if err := validate(company, req.Uploads); err != nil {
		return model.AnalysisJob{}, err
	}

	correlationID := logging.CorrelationID(ctx)
	job := model.AnalysisJob{ID: uuid.NewString(), CompanyName: company, Status: model.StatusPending}
	log := s.log.With("job_id", job.ID, "correlation_id", correlationID)
	log.Info("intake.job.create", "company_name", company, "documents", len(req.Uploads))

	docs := make([]model.Document, 0, len(req.Uploads))
	for _, dt := range model.DocumentTypes {
		for _, up := range req.Uploads {
			if up.DocumentType != dt {
				continue
			}
			doc, err := s.storeUpload(ctx, job.ID, up)
			if err != nil {
				s.discard(ctx, log, docs)
				return model.AnalysisJob{}, err
			}
			log.Info("intake.document.stored",
				"document_type", doc.DocumentType,
				"object_key", doc.ObjectKey,
				"size_bytes", doc.SizeBytes,
			)
			docs = append(docs, doc)
		}
	}

	if err := s.store.CreateJob(ctx, job, docs); err != nil {
		s.discard(ctx, log, docs)
		return model.AnalysisJob{}, err
	}
	// The job stays PENDING with its files when scheduling fails. Scheduling
	// it again later is safe: the queue dedupes by job id and runs claim it.
	if err := s.scheduler.Schedule(ctx, job.ID, correlationID); err != nil {
		log.Error("intake.job.schedule_error", "error", err)
		appErr := apperr.ExternalService(apperr.CodeQueueService, "queue", "schedule analysis job", err)
		appErr.Details["job_id"] = job.ID
		return model.AnalysisJob{}, appErr
	}
	log.Info("intake.job.submitted", "status", job.Status)
	return job, nil
}

func (s *Service) storeUpload(ctx context.Context, jobID string, up Upload) (model.Document, error) {
	filename := up.Filename
	if strings.TrimSpace(filename) == "" {
		filename = "unknown.pdf"
	}
	contentType := up.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	key := filestore.ObjectKey(jobID, up.DocumentType, filename)
	body := &limitedReader{r: up.Body, remaining: s.maxFileSize}
	obj, err := s.files.Save(ctx, key, body, contentType)
	if errors.Is(err, errTooLarge) || body.exceeded {
		_ = s.files.Delete(ctx, key)
		return model.Document{}, apperr.Validation(apperr.CodeValidation, strings.ToLower(string(up.DocumentType)),
			fmt.Sprintf("file exceeds the %d byte limit", s.maxFileSize))
	}
	if err != nil {
		return model.Document{}, err
	}
	return model.Document{
		ID:             uuid.NewString(),
		JobID:          jobID,
		DocumentType:   up.DocumentType,
		Filename:       filename,
		ContentType:    contentType,
		SizeBytes:      obj.SizeBytes,
		ChecksumSHA256: obj.ChecksumSHA256,
		ObjectKey:      obj.Key,
	}, nil
}

// discard removes files stored for a submission that was not recorded.
func (s *Service) discard(ctx context.Context, log *slog.Logger, docs []model.Document) {
	for _, d := range docs {
		if err := s.files.Delete(context.WithoutCancel(ctx), d.ObjectKey); err != nil {
			log.Warn("intake.document.cleanup_error", "object_key", d.ObjectKey, "error", err)
		}
	}
}

func validate(company string, uploads []Upload) error {
	if company == "" {
		return apperr.Validation(apperr.CodeValidation, "company_name", "company_name is required")
	}
	if len(uploads) == 0 {
		return apperr.Validation(apperr.CodeValidation, "documents",
			"at least one document must be provided (contrato_social, cartao_cnpj, certidao_negativa)")
	}
	seen := make(map[model.DocumentType]bool, len(uploads))
	for _, up := range uploads {
		if _, ok := model.ParseDocumentType(string(up.DocumentType)); !ok {
			return apperr.Validation(apperr.CodeInvalidDocType, "document_type",
				fmt.Sprintf("unknown document type %q", up.DocumentType))
		}
		if seen[up.DocumentType] {
			return apperr.Validation(apperr.CodeValidation, "document_type",
				fmt.Sprintf("document type %s submitted more than once", up.DocumentType))
		}
		seen[up.DocumentType] = true
		if up.Body == nil {
			return apperr.Validation(apperr.CodeValidation, strings.ToLower(string(up.DocumentType)), "file is empty")
		}
		if up.ContentType != "" {
			mediaType, _, err := mime.ParseMediaType(up.ContentType)
			if err != nil || !allowedContentTypes[mediaType] {
				return apperr.Validation(apperr.CodeDocumentNotAllowed, strings.ToLower(string(up.DocumentType)),
					fmt.Sprintf("content type %q is not allowed; upload a PDF", up.ContentType))
			}
		}
	}
	return nil
}

var errTooLarge = errors.New("upload exceeds size limit")

// limitedReader fails once more than remaining bytes have been read.
type limitedReader struct {
	r         io.Reader
	remaining int64
	exceeded  bool
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		// Probe for one more byte to tell "exactly at the limit" from "over".
		var one [1]byte
		n, err := l.r.Read(one[:])
		if n > 0 {
			l.exceeded = true
			return 0, errTooLarge
		}
		return 0, err
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	return n, err
}
