// Package analysis runs one analysis job from PENDING to a terminal state:
// text and field extraction per document, consistency checks, the decision,
// a summary, and the final commit.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/docvalidator/internal/apperr"
	"github.com/dharsanguruparan/docvalidator/internal/consistency"
	"github.com/dharsanguruparan/docvalidator/internal/decision"
	"github.com/dharsanguruparan/docvalidator/internal/extraction"
	"github.com/dharsanguruparan/docvalidator/internal/logging"
	"github.com/dharsanguruparan/docvalidator/internal/model"
)

// ErrNotClaimable is returned by Run when another run already owns the job or
// the job has finished. The job is left untouched.
var ErrNotClaimable = model.ErrNotClaimable

// JobStore is the persistence the orchestrator needs.
type JobStore interface {
	LoadJob(ctx context.Context, jobID string) (model.AnalysisJob, []model.Document, error)
	MarkRunning(ctx context.Context, jobID string) error
	SaveExtractedText(ctx context.Context, documentID, text string) error
	SaveExtractedData(ctx context.Context, documentID string, data json.RawMessage, llmModel string) error
	MarkSucceeded(ctx context.Context, jobID string, done model.Completion) error
	MarkFailed(ctx context.Context, jobID string, failure model.JobError) error
}

// FileLoader returns the stored bytes of a document.
type FileLoader interface {
	Load(ctx context.Context, objectKey string) ([]byte, error)
}

// TextExtractor turns a stored file into plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// ExtractRequest asks a FieldExtractor for the typed record of one document.
type ExtractRequest struct {
	DocumentType model.DocumentType
	Text         string
}

// FieldExtractor produces the typed record for a document's text.
type FieldExtractor interface {
	Extract(ctx context.Context, req ExtractRequest) (extraction.Output, error)
}

// SummaryRequest carries everything a Summarizer may describe.
type SummaryRequest struct {
	CompanyName string
	Input       consistency.Input
	Findings    []model.Finding
	Outcome     decision.Outcome
}

// Summarizer writes a short human-readable summary of a finished analysis.
type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) (string, error)
}

// Deps groups the collaborators of an Orchestrator.
type Deps struct {
	Store      JobStore
	Files      FileLoader
	Text       TextExtractor
	Extractor  FieldExtractor
	Summarizer Summarizer
	// ReferenceDate overrides "today" for the date rules; nil means today.
	ReferenceDate func() extraction.Date
}

// Result is what a run reports back to its caller.
type Result struct {
	JobID    string                  `json:"job_id"`
	Status   model.AnalysisStatus    `json:"status"`
	Decision *model.AnalysisDecision `json:"decision,omitempty"`
	Error    *model.JobError         `json:"error,omitempty"`
}

// Orchestrator drives analysis jobs through their lifecycle.
type Orchestrator struct {
	deps   Deps
	logger *slog.Logger
}

// New builds an Orchestrator. A nil logger discards output.
func New(deps Deps, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.Discard()
	}
	if deps.ReferenceDate == nil {
		deps.ReferenceDate = extraction.Today
	}
	return &Orchestrator{deps: deps, logger: logger}
}

// runState is the pipeline state. Every step receives a value and returns a
// new one; nothing is mutated in place.
type runState struct {
	job       model.AnalysisJob
	documents []model.Document
	outputs   []extraction.Output
	findings  []model.Finding
	outcome   decision.Outcome
	summary   string
}

func (s runState) withOutput(out extraction.Output) runState {
	s.outputs = append(s.outputs[:len(s.outputs):len(s.outputs)], out)
	return s
}

// Run executes the job identified by jobID once.
//
// A missing job returns an apperr NotFound error, a job that cannot be
// claimed returns ErrNotClaimable and a claim the store could not write
// returns that error; in these cases nothing is written. Once the job is
// RUNNING every failure, panics included, is recorded on the job as FAILED
// and reported through the Result, with a nil error.
func (o *Orchestrator) Run(ctx context.Context, jobID, correlationID string) (res Result, err error) {
	if correlationID == "" {
		correlationID = logging.CorrelationID(ctx)
	}
	ctx = logging.WithCorrelationID(ctx, correlationID)
	log := o.logger.With("job_id", jobID, "correlation_id", correlationID)
	started := time.Now()
	log.Info("analysis.job.start")

	job, docs, err := o.deps.Store.LoadJob(ctx, jobID)
	if err != nil {
		log.Error("analysis.job.load_error", "error", err)
		return Result{}, err
	}

	if err := o.deps.Store.MarkRunning(ctx, jobID); err != nil {
		if errors.Is(err, model.ErrNotClaimable) {
			log.Warn("analysis.job.not_claimable", "status", job.Status)
		} else {
			log.Error("analysis.job.claim_error", "error", err)
		}
		return Result{JobID: jobID, Status: job.Status}, err
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("analysis.job.panic", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			res, err = o.fail(ctx, log, jobID, &PanicError{Value: r}), nil
		}
	}()

	state := runState{job: job, documents: docs}
	state, err = o.extractAll(ctx, log, state)
	if err != nil {
		return o.fail(ctx, log, jobID, err), nil
	}
	state = o.evaluate(state)
	state, err = o.summarize(ctx, state)
	if err != nil {
		return o.fail(ctx, log, jobID, err), nil
	}

	done := model.Completion{
		Decision:   state.outcome.Decision,
		Confidence: state.outcome.Confidence,
		Summary:    state.summary,
		Findings:   state.findings,
	}
	if err := o.deps.Store.MarkSucceeded(ctx, jobID, done); err != nil {
		return o.fail(ctx, log, jobID, err), nil
	}

	log.Info("analysis.job.succeeded",
		"decision", state.outcome.Decision,
		"confidence", state.outcome.Confidence,
		"findings", len(state.findings),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	verdict := state.outcome.Decision
	return Result{JobID: jobID, Status: model.StatusSucceeded, Decision: &verdict}, nil
}

func (o *Orchestrator) extractAll(ctx context.Context, log *slog.Logger, state runState) (runState, error) {
	for _, doc := range state.documents {
		out, err := o.extractOne(ctx, log, doc)
		if err != nil {
			return state, err
		}
		state = state.withOutput(out)
	}
	return state, nil
}

func (o *Orchestrator) extractOne(ctx context.Context, log *slog.Logger, doc model.Document) (extraction.Output, error) {
	log = log.With("document_id", doc.ID, "document_type", doc.DocumentType)

	raw, err := o.deps.Files.Load(ctx, doc.ObjectKey)
	if err != nil {
		return extraction.Output{}, fmt.Errorf("load %s: %w", doc.DocumentType, err)
	}
	text, err := o.deps.Text.ExtractText(ctx, raw)
	if err != nil {
		return extraction.Output{}, fmt.Errorf("extract text from %s: %w", doc.DocumentType, err)
	}
	if err := o.deps.Store.SaveExtractedText(ctx, doc.ID, text); err != nil {
		return extraction.Output{}, err
	}
	log.Info("analysis.document.text_extracted", "chars", len([]rune(text)))

	out, err := o.deps.Extractor.Extract(ctx, ExtractRequest{DocumentType: doc.DocumentType, Text: text})
	if err != nil {
		return extraction.Output{}, err
	}
	if out.Record == nil || out.Record.DocumentType() != doc.DocumentType {
		return extraction.Output{}, apperr.Processing(apperr.CodeLLMExtraction,
			"extractor returned no record for the document type",
			map[string]any{"document_type": string(doc.DocumentType)}, nil)
	}

	data, err := json.Marshal(out.Data())
	if err != nil {
		return extraction.Output{}, fmt.Errorf("encode %s record: %w", doc.DocumentType, err)
	}
	if err := o.deps.Store.SaveExtractedData(ctx, doc.ID, data, out.Model); err != nil {
		return extraction.Output{}, err
	}
	log.Info("analysis.document.extracted", "kind", out.Kind, "confidence", out.Confidence)
	return out, nil
}

func (o *Orchestrator) evaluate(state runState) runState {
	in := consistency.InputFrom(state.outputs...)
	findings := consistency.Check(in, o.deps.ReferenceDate())

	byType := make(map[model.DocumentType]string, len(state.documents))
	for _, doc := range state.documents {
		byType[doc.DocumentType] = doc.ID
	}
	resolved := make([]model.Finding, len(findings))
	for i, f := range findings {
		f.ID = uuid.NewString()
		f.JobID = state.job.ID
		if len(f.Documents) > 0 {
			if id, ok := byType[f.Documents[0]]; ok {
				f.DocumentID = &id
			}
		}
		resolved[i] = f
	}

	state.findings = resolved
	state.outcome = decision.Combine(resolved, in.Available())
	return state
}

func (o *Orchestrator) summarize(ctx context.Context, state runState) (runState, error) {
	summary, err := o.deps.Summarizer.Summarize(ctx, SummaryRequest{
		CompanyName: state.job.CompanyName,
		Input:       consistency.InputFrom(state.outputs...),
		Findings:    state.findings,
		Outcome:     state.outcome,
	})
	if err != nil {
		return state, err
	}
	state.summary = summary
	return state, nil
}

// fail records the failure on the job. It never returns an error: a store
// that cannot take the write is logged and the caller still gets FAILED.
func (o *Orchestrator) fail(ctx context.Context, log *slog.Logger, jobID string, cause error) Result {
	failure := Describe(cause)
	log.Error("analysis.job.failed", "error_code", failure.Code, "error", cause)

	if err := o.deps.Store.MarkFailed(context.WithoutCancel(ctx), jobID, failure); err != nil {
		log.Error("analysis.job.mark_failed_error", "error", err)
	}
	return Result{JobID: jobID, Status: model.StatusFailed, Error: &failure}
}

// CodeUnclassified is the failure code of errors that carry no apperr code.
const CodeUnclassified = "unclassified"

// CodePanic is the failure code of a run that panicked.
const CodePanic = "panic"

// PanicError carries a value recovered from a panicking run.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Describe converts err into the error record stored on a failed job. The code
// is the apperr code when err carries one, CodePanic for a recovered panic and
// CodeUnclassified otherwise. details["error_type"] keeps the Go type.
func Describe(err error) model.JobError {
	errType := fmt.Sprintf("%T", err)
	code := CodeUnclassified
	details := map[string]any{}

	var panicErr *PanicError
	if appErr, ok := apperr.As(err); ok {
		errType = fmt.Sprintf("%T", appErr)
		code = appErr.Code
		details["error_kind"] = string(appErr.Kind)
		for k, v := range appErr.Details {
			details[k] = v
		}
	} else if errors.As(err, &panicErr) {
		code = CodePanic
		details["panic"] = fmt.Sprint(panicErr.Value)
	}
	details["error_type"] = errType
	details["error_code"] = code

	return model.JobError{Code: code, Message: err.Error(), Details: details}
}
