package intake

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dharsanguruparan/docvalidator/internal/apperr"
	"github.com/dharsanguruparan/docvalidator/internal/filestore"
	"github.com/dharsanguruparan/docvalidator/internal/logging"
	"github.com/dharsanguruparan/docvalidator/internal/model"
	"github.com/dharsanguruparan/docvalidator/internal/storage"
)

type recordingScheduler struct {
	jobs []string
	cids []string
	err  error
}

func (r *recordingScheduler) Schedule(_ context.Context, jobID, correlationID string) error {
	r.jobs = append(r.jobs, jobID)
	r.cids = append(r.cids, correlationID)
	return r.err
}

type harness struct {
	dir       string
	store     *storage.MemoryStore
	files     *filestore.Local
	scheduler *recordingScheduler
	svc       *Service
}

func newHarness(t *testing.T, maxSize int64) *harness {
	t.Helper()
	dir := t.TempDir()
	files, err := filestore.NewLocal(dir)
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	h := &harness{dir: dir, store: storage.NewMemoryStore(), files: files, scheduler: &recordingScheduler{}}
	h.svc = New(h.store, files, h.scheduler, maxSize, nil)
	return h
}

func upload(dt model.DocumentType, body string) Upload {
	return Upload{DocumentType: dt, Filename: "doc.pdf", ContentType: "application/pdf", Body: strings.NewReader(body)}
}

func TestCreateStoresAndSchedules(t *testing.T) {
	h := newHarness(t, 1024)
	ctx := logging.WithCorrelationID(context.Background(), "req-7")

	job, err := h.svc.Create(ctx, Request{
		CompanyName: "  ACME LTDA ",
		Uploads: []Upload{
			upload(model.DocumentCertidaoNegativa, "cnd"),
			upload(model.DocumentContratoSocial, "contrato"),
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if job.Status != model.StatusPending || job.CompanyName != "ACME LTDA" {
		t.Fatalf("unexpected job %+v", job)
	}
	if len(h.scheduler.jobs) != 1 || h.scheduler.jobs[0] != job.ID || h.scheduler.cids[0] != "req-7" {
		t.Fatalf("unexpected scheduling %+v", h.scheduler)
	}

	_, docs, err := h.store.LoadJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(docs) != 2 || docs[0].DocumentType != model.DocumentContratoSocial {
		t.Fatalf("documents should be stored in priority order: %+v", docs)
	}
	d := docs[0]
	if d.ObjectKey != job.ID+"/CONTRATO_SOCIAL/doc.pdf" || d.SizeBytes != int64(len("contrato")) {
		t.Fatalf("unexpected document %+v", d)
	}
	if d.ChecksumSHA256 != filestore.Checksum([]byte("contrato")) {
		t.Fatalf("checksum mismatch")
	}
	data, err := h.files.Load(ctx, d.ObjectKey)
	if err != nil || string(data) != "contrato" {
		t.Fatalf("stored file: %q %v", data, err)
	}
}

func TestCreateValidation(t *testing.T) {
	cases := []struct {
		name string
		req  Request
		code string
	}{
		{"missing company", Request{Uploads: []Upload{upload(model.DocumentCartaoCNPJ, "x")}}, apperr.CodeValidation},
		{"no documents", Request{CompanyName: "ACME"}, apperr.CodeValidation},
		{"unknown type", Request{CompanyName: "ACME", Uploads: []Upload{upload("RG", "x")}}, apperr.CodeInvalidDocType},
		{"duplicate type", Request{CompanyName: "ACME", Uploads: []Upload{
			upload(model.DocumentCartaoCNPJ, "x"), upload(model.DocumentCartaoCNPJ, "y"),
		}}, apperr.CodeValidation},
		{"not a pdf", Request{CompanyName: "ACME", Uploads: []Upload{{
			DocumentType: model.DocumentCartaoCNPJ, ContentType: "image/png", Body: strings.NewReader("x"),
		}}}, apperr.CodeDocumentNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, 1024)
			_, err := h.svc.Create(context.Background(), tc.req)
			appErr, ok := apperr.As(err)
			if !ok || appErr.Kind != apperr.KindValidation || appErr.Code != tc.code {
				t.Fatalf("expected %s validation error, got %v", tc.code, err)
			}
			if len(h.scheduler.jobs) != 0 {
				t.Fatalf("nothing should be scheduled")
			}
		})
	}
}

func TestCreateRejectsOversizedFile(t *testing.T) {
	h := newHarness(t, 4)
	_, err := h.svc.Create(context.Background(), Request{
		CompanyName: "ACME",
		Uploads: []Upload{
			upload(model.DocumentContratoSocial, "1234"),
			upload(model.DocumentCartaoCNPJ, "12345"),
		},
	})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	// The file that fit must have been cleaned up with the rest.
	var leftovers []string
	_ = filepath.WalkDir(h.dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			leftovers = append(leftovers, path)
		}
		return nil
	})
	if len(leftovers) != 0 {
		t.Fatalf("unexpected leftovers %v", leftovers)
	}
	if len(h.scheduler.jobs) != 0 {
		t.Fatalf("nothing should be scheduled")
	}
}

func TestCreateReportsSchedulerFailure(t *testing.T) {
	h := newHarness(t, 1024)
	h.scheduler.err = errors.New("redis down")
	_, err := h.svc.Create(context.Background(), Request{CompanyName: "ACME", Uploads: []Upload{upload(model.DocumentCartaoCNPJ, "x")}})
	appErr, ok := apperr.As(err)
	if !ok || appErr.Code != apperr.CodeQueueService {
		t.Fatalf("expected queue_service_error, got %v", err)
	}

	jobID := h.scheduler.jobs[0]
	if appErr.Details["job_id"] != jobID {
		t.Fatalf("error must name the job, got %+v", appErr.Details)
	}
	job, docs, err := h.store.LoadJob(context.Background(), jobID)
	if err != nil || job.Status != model.StatusPending {
		t.Fatalf("job must stay PENDING: %+v %v", job, err)
	}
	if _, err := h.files.Load(context.Background(), docs[0].ObjectKey); err != nil {
		t.Fatalf("stored file must be kept for a later reschedule: %v", err)
	}
}

func TestLimitedReaderExactLimit(t *testing.T) {
	h := newHarness(t, 4)
	job, err := h.svc.Create(context.Background(), Request{CompanyName: "ACME", Uploads: []Upload{upload(model.DocumentCartaoCNPJ, "1234")}})
	if err != nil {
		t.Fatalf("a file exactly at the limit must be accepted: %v", err)
	}
	_, docs, _ := h.store.LoadJob(context.Background(), job.ID)
	if docs[0].SizeBytes != 4 {
		t.Fatalf("unexpected size %d", docs[0].SizeBytes)
	}
}
