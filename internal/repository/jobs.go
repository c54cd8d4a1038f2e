// Package repository wraps all SQL used by the API and the worker.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/docvalidator/internal/apperr"
	"github.com/dharsanguruparan/docvalidator/internal/model"
)

// JobRepository is the Postgres job store.
type JobRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewJobRepository constructs a repository.
func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

// CreateJob inserts a PENDING job and its documents in one transaction.
func (r *JobRepository) CreateJob(ctx context.Context, job model.AnalysisJob, docs []model.Document) error {
	now := r.now()
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO analysis_jobs (id, company_name, status, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$4)
		`, job.ID, job.CompanyName, string(model.StatusPending), now)
		if err != nil {
			return dbError("insert analysis job", err)
		}
		batch := &pgx.Batch{}
		for _, d := range docs {
			batch.Queue(`
				INSERT INTO documents (id, job_id, document_type, filename, content_type, size_bytes, checksum_sha256, object_key, created_at, updated_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
			`, d.ID, job.ID, string(d.DocumentType), d.Filename, d.ContentType, d.SizeBytes, d.ChecksumSHA256, d.ObjectKey, now)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return apperr.Validation(apperr.CodeValidation, "document_type", "duplicate document type")
			}
			return dbError("insert documents", err)
		}
		return nil
	})
}

// LoadJob returns the job and its documents.
func (r *JobRepository) LoadJob(ctx context.Context, jobID string) (model.AnalysisJob, []model.Document, error) {
	job, err := r.getJob(ctx, jobID)
	if err != nil {
		return model.AnalysisJob{}, nil, err
	}
	docs, err := r.listDocuments(ctx, jobID)
	if err != nil {
		return model.AnalysisJob{}, nil, err
	}
	return job, docs, nil
}

// View returns the job with its documents and findings.
func (r *JobRepository) View(ctx context.Context, jobID string) (model.JobView, error) {
	job, docs, err := r.LoadJob(ctx, jobID)
	if err != nil {
		return model.JobView{}, err
	}
	findings, err := r.listFindings(ctx, jobID)
	if err != nil {
		return model.JobView{}, err
	}
	return model.JobView{Job: job, Documents: docs, Findings: findings}, nil
}

// GetDocument returns a single document.
func (r *JobRepository) GetDocument(ctx context.Context, documentID string) (model.Document, error) {
	row := r.pool.QueryRow(ctx, selectDocument+` WHERE id=$1`, documentID)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Document{}, apperr.NotFound(apperr.CodeDocumentNotFound, "document", documentID)
	}
	if err != nil {
		return model.Document{}, dbError("select document", err)
	}
	return doc, nil
}

// MarkRunning claims a PENDING job with a conditional update so that only one
// run can move it forward.
func (r *JobRepository) MarkRunning(ctx context.Context, jobID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE analysis_jobs SET status=$1, updated_at=$2
		WHERE id=$3 AND status=$4
	`, string(model.StatusRunning), r.now(), jobID, string(model.StatusPending))
	if err != nil {
		return dbError("claim analysis job", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	job, err := r.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	return fmt.Errorf("job %s is %s: %w", jobID, job.Status, model.ErrNotClaimable)
}

// SaveExtractedText stores the raw text of a document.
func (r *JobRepository) SaveExtractedText(ctx context.Context, documentID, text string) error {
	return r.updateDocument(ctx, documentID, `
		UPDATE documents SET extracted_text=$1, updated_at=$2 WHERE id=$3
	`, text, r.now(), documentID)
}

// SaveExtractedData stores the typed record and the model that produced it.
func (r *JobRepository) SaveExtractedData(ctx context.Context, documentID string, data json.RawMessage, llmModel string) error {
	var modelName *string
	if llmModel != "" {
		modelName = &llmModel
	}
	return r.updateDocument(ctx, documentID, `
		UPDATE documents SET extracted_data=$1, llm_model=$2, updated_at=$3 WHERE id=$4
	`, []byte(data), modelName, r.now(), documentID)
}

// MarkSucceeded writes the decision, summary and findings in one transaction.
func (r *JobRepository) MarkSucceeded(ctx context.Context, jobID string, done model.Completion) error {
	now := r.now()
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE analysis_jobs
			SET status=$1, decision=$2, confidence=$3, summary=$4,
				error_code=NULL, error_message=NULL, error_details=NULL,
				finished_at=$5, updated_at=$5
			WHERE id=$6 AND status=$7
		`, string(model.StatusSucceeded), string(done.Decision), done.Confidence, done.Summary, now, jobID, string(model.StatusRunning))
		if err != nil {
			return dbError("complete analysis job", err)
		}
		if tag.RowsAffected() != 1 {
			return fmt.Errorf("job %s is not running", jobID)
		}

		batch := &pgx.Batch{}
		for i, f := range done.Findings {
			pointers, err := json.Marshal(f.Pointers())
			if err != nil {
				return fmt.Errorf("encode pointers: %w", err)
			}
			batch.Queue(`
				INSERT INTO analysis_inconsistencies (id, job_id, code, severity, message, pointers, document_id, position, created_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			`, f.ID, jobID, f.Code, string(f.Severity), f.Message, pointers, f.DocumentID, i, now)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return dbError("insert inconsistencies", err)
		}
		return nil
	})
}

// MarkFailed records the failure on a RUNNING job.
func (r *JobRepository) MarkFailed(ctx context.Context, jobID string, failure model.JobError) error {
	details, err := json.Marshal(failure.Details)
	if err != nil {
		return fmt.Errorf("encode error details: %w", err)
	}
	now := r.now()
	tag, err := r.pool.Exec(ctx, `
		UPDATE analysis_jobs
		SET status=$1, decision=NULL, error_code=$2, error_message=$3, error_details=$4,
			finished_at=$5, updated_at=$5
		WHERE id=$6 AND status=$7
	`, string(model.StatusFailed), failure.Code, failure.Message, details, now, jobID,
		string(model.StatusRunning))
	if err != nil {
		return dbError("fail analysis job", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("job %s is missing or not running", jobID)
	}
	return nil
}

func (r *JobRepository) getJob(ctx context.Context, jobID string) (model.AnalysisJob, error) {
	var (
		job          model.AnalysisJob
		status       string
		decision     *string
		errorCode    *string
		errorMessage *string
		errorDetails []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, company_name, status, decision, confidence, summary,
			error_code, error_message, error_details, finished_at, created_at, updated_at
		FROM analysis_jobs WHERE id=$1
	`, jobID).Scan(&job.ID, &job.CompanyName, &status, &decision, &job.Confidence, &job.Summary,
		&errorCode, &errorMessage, &errorDetails, &job.FinishedAt, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.AnalysisJob{}, apperr.NotFound(apperr.CodeJobNotFound, "analysis_job", jobID)
	}
	if err != nil {
		return model.AnalysisJob{}, dbError("select analysis job", err)
	}
	job.Status = model.AnalysisStatus(status)
	if decision != nil {
		d := model.AnalysisDecision(*decision)
		job.Decision = &d
	}
	if errorCode != nil {
		failure := model.JobError{Code: *errorCode}
		if errorMessage != nil {
			failure.Message = *errorMessage
		}
		if len(errorDetails) > 0 {
			if err := json.Unmarshal(errorDetails, &failure.Details); err != nil {
				return model.AnalysisJob{}, fmt.Errorf("decode error details: %w", err)
			}
		}
		job.Error = &failure
	}
	return job, nil
}

const selectDocument = `
	SELECT id, job_id, document_type, filename, content_type, size_bytes, checksum_sha256,
		object_key, extracted_text, extracted_data, llm_model, created_at, updated_at
	FROM documents`

func scanDocument(row pgx.Row) (model.Document, error) {
	var (
		doc     model.Document
		docType string
		data    []byte
	)
	err := row.Scan(&doc.ID, &doc.JobID, &docType, &doc.Filename, &doc.ContentType, &doc.SizeBytes,
		&doc.ChecksumSHA256, &doc.ObjectKey, &doc.ExtractedText, &data, &doc.LLMModel, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return model.Document{}, err
	}
	doc.DocumentType = model.DocumentType(docType)
	if len(data) > 0 {
		doc.ExtractedData = json.RawMessage(data)
	}
	return doc, nil
}

// listDocuments returns documents in priority order of their type.
func (r *JobRepository) listDocuments(ctx context.Context, jobID string) ([]model.Document, error) {
	rows, err := r.pool.Query(ctx, selectDocument+`
		WHERE job_id=$1
		ORDER BY CASE document_type WHEN $2 THEN 1 WHEN $3 THEN 2 WHEN $4 THEN 3 ELSE 4 END, created_at
	`, jobID, string(model.DocumentContratoSocial), string(model.DocumentCartaoCNPJ), string(model.DocumentCertidaoNegativa))
	if err != nil {
		return nil, dbError("select documents", err)
	}
	defer rows.Close()

	docs := make([]model.Document, 0, len(model.DocumentTypes))
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, dbError("scan document", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate documents", err)
	}
	return docs, nil
}

func (r *JobRepository) listFindings(ctx context.Context, jobID string) ([]model.Finding, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, job_id, code, severity, message, pointers, document_id
		FROM analysis_inconsistencies WHERE job_id=$1 ORDER BY position
	`, jobID)
	if err != nil {
		return nil, dbError("select inconsistencies", err)
	}
	defer rows.Close()

	findings := make([]model.Finding, 0)
	for rows.Next() {
		var (
			f        model.Finding
			severity string
			raw      []byte
			pointers model.Pointers
		)
		if err := rows.Scan(&f.ID, &f.JobID, &f.Code, &severity, &f.Message, &raw, &f.DocumentID); err != nil {
			return nil, dbError("scan inconsistency", err)
		}
		if err := json.Unmarshal(raw, &pointers); err != nil {
			return nil, fmt.Errorf("decode pointers: %w", err)
		}
		f.Severity = model.Severity(severity)
		f.ApplyPointers(pointers)
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate inconsistencies", err)
	}
	return findings, nil
}

func (r *JobRepository) updateDocument(ctx context.Context, documentID, stmt string, args ...any) error {
	tag, err := r.pool.Exec(ctx, stmt, args...)
	if err != nil {
		return dbError("update document", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodeDocumentNotFound, "document", documentID)
	}
	return nil
}

func dbError(message string, err error) error {
	return apperr.ExternalService(apperr.CodeDatabase, "postgres", message, err)
}
