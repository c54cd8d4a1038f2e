// Package model contains the records shared across packages: analysis jobs,
// their documents and the findings produced by the consistency check.
package model

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotClaimable is returned by stores when a run tries to move a job that
// is no longer PENDING into RUNNING.
var ErrNotClaimable = errors.New("analysis job is not pending")

// AnalysisStatus describes the job lifecycle. The string values are stored
// as-is in the database and returned on the wire, so they must never change.
type AnalysisStatus string

const (
	StatusPending   AnalysisStatus = "PENDING"
	StatusRunning   AnalysisStatus = "RUNNING"
	StatusSucceeded AnalysisStatus = "SUCCEEDED"
	StatusFailed    AnalysisStatus = "FAILED"
)

// AnalysisDecision is the final verdict of a SUCCEEDED job.
type AnalysisDecision string

const (
	DecisionAprovado  AnalysisDecision = "APROVADO"
	DecisionReprovado AnalysisDecision = "REPROVADO"
)

// DocumentType identifies which of the three registration documents a file is.
type DocumentType string

const (
	DocumentContratoSocial   DocumentType = "CONTRATO_SOCIAL"
	DocumentCartaoCNPJ       DocumentType = "CARTAO_CNPJ"
	DocumentCertidaoNegativa DocumentType = "CERTIDAO_NEGATIVA"
)

// DocumentTypes lists every document type in priority order. Cross-document
// comparisons use the first available entry as the reference.
var DocumentTypes = []DocumentType{
	DocumentContratoSocial,
	DocumentCartaoCNPJ,
	DocumentCertidaoNegativa,
}

// ParseDocumentType accepts the canonical upper-case value.
func ParseDocumentType(s string) (DocumentType, bool) {
	for _, t := range DocumentTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Severity classifies a finding. BLOCKER forces rejection, WARN is advisory.
type Severity string

const (
	SeverityBlocker Severity = "BLOCKER"
	SeverityWarn    Severity = "WARN"
)

// JobError is the structured failure recorded on a FAILED job.
type JobError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// AnalysisJob is one validation request for a company. Decision, Confidence
// and Summary are set only on SUCCEEDED; Error only on FAILED.
type AnalysisJob struct {
	ID          string            `json:"id"`
	CompanyName string            `json:"company_name"`
	Status      AnalysisStatus    `json:"status"`
	Decision    *AnalysisDecision `json:"decision"`
	Confidence  *float64          `json:"confidence"`
	Summary     *string           `json:"summary"`
	Error       *JobError         `json:"-"`
	FinishedAt  *time.Time        `json:"finished_at"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Document is an uploaded file attached to a job. ExtractedText and
// ExtractedData stay nil until the worker processes the document.
type Document struct {
	ID             string          `json:"id"`
	JobID          string          `json:"-"`
	DocumentType   DocumentType    `json:"document_type"`
	Filename       string          `json:"filename"`
	ContentType    string          `json:"content_type"`
	SizeBytes      int64           `json:"size_bytes"`
	ChecksumSHA256 string          `json:"checksum_sha256"`
	ObjectKey      string          `json:"object_key"`
	ExtractedText  *string         `json:"extracted_text"`
	ExtractedData  json.RawMessage `json:"extracted_data"`
	LLMModel       *string         `json:"llm_model"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Finding is a single inconsistency between or within documents.
type Finding struct {
	ID         string         `json:"id"`
	JobID      string         `json:"-"`
	Code       string         `json:"code"`
	Severity   Severity       `json:"severity"`
	Message    string         `json:"message"`
	Field      string         `json:"-"`
	Documents  []DocumentType `json:"-"`
	Values     []string       `json:"-"`
	DocumentID *string        `json:"document_id"`
}

// Pointers is the persisted/wire form of the audit trail of a finding.
type Pointers struct {
	Field     *string  `json:"field"`
	Documents []string `json:"documents"`
	Values    []string `json:"values"`
}

// Pointers returns the structured evidence payload for f.
func (f Finding) Pointers() Pointers {
	p := Pointers{
		Documents: make([]string, 0, len(f.Documents)),
		Values:    append([]string{}, f.Values...),
	}
	if f.Field != "" {
		field := f.Field
		p.Field = &field
	}
	for _, d := range f.Documents {
		p.Documents = append(p.Documents, string(d))
	}
	return p
}

// JobView is everything the query path returns for one job.
type JobView struct {
	Job       AnalysisJob
	Documents []Document
	Findings  []Finding
}

// Completion is what a successful run persists in its final commit.
type Completion struct {
	Decision   AnalysisDecision
	Confidence float64
	Summary    string
	Findings   []Finding
}

// ApplyPointers fills Field, Documents and Values from their persisted form.
func (f *Finding) ApplyPointers(p Pointers) {
	f.Field = ""
	if p.Field != nil {
		f.Field = *p.Field
	}
	f.Documents = make([]DocumentType, 0, len(p.Documents))
	for _, d := range p.Documents {
		f.Documents = append(f.Documents, DocumentType(d))
	}
	f.Values = append([]string{}, p.Values...)
}
