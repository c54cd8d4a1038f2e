package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dharsanguruparan/docvalidator/internal/apperr"
	"github.com/dharsanguruparan/docvalidator/internal/model"
)

func seed(t *testing.T, m *MemoryStore) {
	t.Helper()
	job := model.AnalysisJob{ID: "job-1", CompanyName: "ACME"}
	docs := []model.Document{
		{ID: "doc-1", DocumentType: model.DocumentContratoSocial, ObjectKey: "job-1/CONTRATO_SOCIAL/a.pdf"},
		{ID: "doc-2", DocumentType: model.DocumentCartaoCNPJ, ObjectKey: "job-1/CARTAO_CNPJ/b.pdf"},
	}
	if err := m.CreateJob(context.Background(), job, docs); err != nil {
		t.Fatalf("create job: %v", err)
	}
}

func TestCreateAndLoad(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	seed(t, m)

	job, docs, err := m.LoadJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if job.Status != model.StatusPending {
		t.Fatalf("expected PENDING, got %s", job.Status)
	}
	if len(docs) != 2 || docs[0].ID != "doc-1" || docs[1].JobID != "job-1" {
		t.Fatalf("unexpected documents %+v", docs)
	}
	if job.CreatedAt.IsZero() || !job.CreatedAt.Equal(job.UpdatedAt) {
		t.Fatalf("timestamps not initialised: %+v", job)
	}
}

func TestCreateRejectsDuplicateDocumentType(t *testing.T) {
	m := NewMemoryStore()
	docs := []model.Document{
		{ID: "a", DocumentType: model.DocumentCartaoCNPJ},
		{ID: "b", DocumentType: model.DocumentCartaoCNPJ},
	}
	err := m.CreateJob(context.Background(), model.AnalysisJob{ID: "j"}, docs)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, _, err := m.LoadJob(context.Background(), "j"); err == nil {
		t.Fatalf("job must not be stored on rejection")
	}
}

func TestLoadUnknownJob(t *testing.T) {
	_, _, err := NewMemoryStore().LoadJob(context.Background(), "missing")
	appErr, ok := apperr.As(err)
	if !ok || appErr.Code != apperr.CodeJobNotFound {
		t.Fatalf("expected analysis_job_not_found, got %v", err)
	}
}

func TestMarkRunningClaimsOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	seed(t, m)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.MarkRunning(ctx, "job-1")
			if err == nil {
				mu.Lock()
				claimed++
				mu.Unlock()
				return
			}
			if !errors.Is(err, model.ErrNotClaimable) {
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()
	if claimed != 1 {
		t.Fatalf("expected exactly one claim, got %d", claimed)
	}
}

func TestSucceededCommit(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	seed(t, m)
	if err := m.MarkRunning(ctx, "job-1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := m.SaveExtractedText(ctx, "doc-1", "texto"); err != nil {
		t.Fatalf("save text: %v", err)
	}
	if err := m.SaveExtractedData(ctx, "doc-1", []byte(`{"cnpj":"1"}`), "gpt-test"); err != nil {
		t.Fatalf("save data: %v", err)
	}
	done := model.Completion{
		Decision:   model.DecisionReprovado,
		Confidence: 0.5,
		Summary:    "resumo",
		Findings:   []model.Finding{{ID: "f1", Code: "cnpj_mismatch", Severity: model.SeverityBlocker}},
	}
	if err := m.MarkSucceeded(ctx, "job-1", done); err != nil {
		t.Fatalf("succeed: %v", err)
	}

	view, err := m.View(ctx, "job-1")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if view.Job.Status != model.StatusSucceeded || *view.Job.Decision != model.DecisionReprovado {
		t.Fatalf("unexpected job %+v", view.Job)
	}
	if view.Job.FinishedAt == nil || view.Job.Error != nil {
		t.Fatalf("terminal fields wrong: %+v", view.Job)
	}
	if len(view.Findings) != 1 || view.Findings[0].JobID != "job-1" {
		t.Fatalf("unexpected findings %+v", view.Findings)
	}
	if *view.Documents[0].ExtractedText != "texto" || *view.Documents[0].LLMModel != "gpt-test" {
		t.Fatalf("extraction not persisted: %+v", view.Documents[0])
	}
	if view.Documents[1].ExtractedText != nil {
		t.Fatalf("untouched document gained text")
	}

	if err := m.MarkFailed(ctx, "job-1", model.JobError{Code: "x"}); err == nil {
		t.Fatalf("terminal job must not transition again")
	}
	if err := m.MarkRunning(ctx, "job-1"); !errors.Is(err, model.ErrNotClaimable) {
		t.Fatalf("expected ErrNotClaimable, got %v", err)
	}
}

func TestMarkFailed(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	seed(t, m)
	if err := m.MarkRunning(ctx, "job-1"); err != nil {
		t.Fatalf("mark running: %v", err)
	}
	if err := m.MarkFailed(ctx, "job-1", model.JobError{Code: "storage_service_error", Message: "boom"}); err != nil {
		t.Fatalf("fail: %v", err)
	}
	job, _, _ := m.LoadJob(ctx, "job-1")
	if job.Status != model.StatusFailed || job.Decision != nil || job.Error == nil || job.FinishedAt == nil {
		t.Fatalf("unexpected failed job %+v", job)
	}
	view, _ := m.View(ctx, "job-1")
	if len(view.Findings) != 0 {
		t.Fatalf("failed job must have no findings")
	}
}

func TestMarkFailedRequiresRunning(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	seed(t, m)
	if err := m.MarkFailed(ctx, "job-1", model.JobError{Code: "database_error"}); err == nil {
		t.Fatalf("a PENDING job must not be failed")
	}
	job, _, _ := m.LoadJob(ctx, "job-1")
	if job.Status != model.StatusPending || job.Error != nil || job.FinishedAt != nil {
		t.Fatalf("job changed: %+v", job)
	}
	if err := m.MarkRunning(ctx, "job-1"); err != nil {
		t.Fatalf("job must still be claimable: %v", err)
	}
}

func TestReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	seed(t, m)

	job, docs, _ := m.LoadJob(ctx, "job-1")
	job.CompanyName = "changed"
	docs[0].Filename = "changed"

	again, docs2, _ := m.LoadJob(ctx, "job-1")
	if again.CompanyName != "ACME" || docs2[0].Filename == "changed" {
		t.Fatalf("store state leaked to caller")
	}
	doc, err := m.GetDocument(ctx, "doc-2")
	if err != nil || doc.DocumentType != model.DocumentCartaoCNPJ {
		t.Fatalf("get document: %+v %v", doc, err)
	}
	if _, err := m.GetDocument(ctx, "nope"); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
