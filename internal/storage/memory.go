// Package storage contains the in-memory job store used by the single-process
// server and by tests. The Postgres equivalent lives in internal/repository.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dharsanguruparan/docvalidator/internal/apperr"
	"github.com/dharsanguruparan/docvalidator/internal/model"
)

// MemoryStore keeps jobs, documents and findings in maps guarded by one
// RWMutex. Reads hand out copies so callers never share state with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	jobs      map[string]*model.AnalysisJob
	documents map[string]*model.Document
	// jobDocs keeps document ids in insertion order per job.
	jobDocs  map[string][]string
	findings map[string][]model.Finding
	now      func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:      make(map[string]*model.AnalysisJob),
		documents: make(map[string]*model.Document),
		jobDocs:   make(map[string][]string),
		findings:  make(map[string][]model.Finding),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateJob inserts a PENDING job together with its documents.
func (m *MemoryStore) CreateJob(_ context.Context, job model.AnalysisJob, docs []model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	seen := make(map[model.DocumentType]bool, len(docs))
	for _, d := range docs {
		if seen[d.DocumentType] {
			return apperr.Validation(apperr.CodeValidation, "document_type",
				fmt.Sprintf("duplicate document type %s", d.DocumentType))
		}
		seen[d.DocumentType] = true
	}

	now := m.now()
	job.Status = model.StatusPending
	job.CreatedAt, job.UpdatedAt = now, now
	m.jobs[job.ID] = &job

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		d.JobID = job.ID
		d.CreatedAt, d.UpdatedAt = now, now
		doc := d
		m.documents[d.ID] = &doc
		ids = append(ids, d.ID)
	}
	m.jobDocs[job.ID] = ids
	return nil
}

// LoadJob returns the job and its documents.
func (m *MemoryStore) LoadJob(_ context.Context, jobID string) (model.AnalysisJob, []model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return model.AnalysisJob{}, nil, apperr.NotFound(apperr.CodeJobNotFound, "analysis_job", jobID)
	}
	return *job, m.documentsLocked(jobID), nil
}

// View returns the job with its documents and findings.
func (m *MemoryStore) View(_ context.Context, jobID string) (model.JobView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return model.JobView{}, apperr.NotFound(apperr.CodeJobNotFound, "analysis_job", jobID)
	}
	return model.JobView{
		Job:       *job,
		Documents: m.documentsLocked(jobID),
		Findings:  append([]model.Finding{}, m.findings[jobID]...),
	}, nil
}

// GetDocument returns a single document.
func (m *MemoryStore) GetDocument(_ context.Context, documentID string) (model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.documents[documentID]
	if !ok {
		return model.Document{}, apperr.NotFound(apperr.CodeDocumentNotFound, "document", documentID)
	}
	return *doc, nil
}

// MarkRunning claims a PENDING job. Any other status yields
// model.ErrNotClaimable.
func (m *MemoryStore) MarkRunning(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return apperr.NotFound(apperr.CodeJobNotFound, "analysis_job", jobID)
	}
	if job.Status != model.StatusPending {
		return fmt.Errorf("job %s is %s: %w", jobID, job.Status, model.ErrNotClaimable)
	}
	job.Status = model.StatusRunning
	job.UpdatedAt = m.now()
	return nil
}

// SaveExtractedText stores the raw text of a document.
func (m *MemoryStore) SaveExtractedText(_ context.Context, documentID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.documents[documentID]
	if !ok {
		return apperr.NotFound(apperr.CodeDocumentNotFound, "document", documentID)
	}
	doc.ExtractedText = &text
	doc.UpdatedAt = m.now()
	return nil
}

// SaveExtractedData stores the typed record of a document and the model that
// produced it.
func (m *MemoryStore) SaveExtractedData(_ context.Context, documentID string, data json.RawMessage, llmModel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.documents[documentID]
	if !ok {
		return apperr.NotFound(apperr.CodeDocumentNotFound, "document", documentID)
	}
	doc.ExtractedData = append(json.RawMessage{}, data...)
	if llmModel != "" {
		doc.LLMModel = &llmModel
	}
	doc.UpdatedAt = m.now()
	return nil
}

// MarkSucceeded commits the decision and findings in one step.
func (m *MemoryStore) MarkSucceeded(_ context.Context, jobID string, done model.Completion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return apperr.NotFound(apperr.CodeJobNotFound, "analysis_job", jobID)
	}
	if job.Status != model.StatusRunning {
		return fmt.Errorf("job %s is %s, not running", jobID, job.Status)
	}
	now := m.now()
	verdict, confidence, summary := done.Decision, done.Confidence, done.Summary
	job.Status = model.StatusSucceeded
	job.Decision = &verdict
	job.Confidence = &confidence
	job.Summary = &summary
	job.Error = nil
	job.FinishedAt = &now
	job.UpdatedAt = now

	findings := make([]model.Finding, len(done.Findings))
	for i, f := range done.Findings {
		f.JobID = jobID
		findings[i] = f
	}
	m.findings[jobID] = findings
	return nil
}

// MarkFailed records the failure on a RUNNING job.
func (m *MemoryStore) MarkFailed(_ context.Context, jobID string, failure model.JobError) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return apperr.NotFound(apperr.CodeJobNotFound, "analysis_job", jobID)
	}
	if job.Status != model.StatusRunning {
		return fmt.Errorf("job %s is %s, not running", jobID, job.Status)
	}
	now := m.now()
	job.Status = model.StatusFailed
	job.Decision = nil
	job.Error = &failure
	job.FinishedAt = &now
	job.UpdatedAt = now
	return nil
}

func (m *MemoryStore) documentsLocked(jobID string) []model.Document {
	ids := m.jobDocs[jobID]
	docs := make([]model.Document, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, *m.documents[id])
	}
	return docs
}
