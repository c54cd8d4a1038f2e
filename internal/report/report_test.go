package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/dharsanguruparan/docvalidator/internal/model"
)

func TestXLSX(t *testing.T) {
	decision := model.DecisionReprovado
	confidence := 0.9
	docID := "doc-1"
	view := model.JobView{
		Job: model.AnalysisJob{
			ID:          "job-1",
			CompanyName: "ACME",
			Status:      model.StatusSucceeded,
			Decision:    &decision,
			Confidence:  &confidence,
			CreatedAt:   time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC),
		},
		Documents: []model.Document{{ID: "doc-1", DocumentType: model.DocumentContratoSocial, Filename: "cs.pdf", SizeBytes: 10}},
		Findings: []model.Finding{{
			Code:       "cnpj_mismatch",
			Severity:   model.SeverityBlocker,
			Message:    "CNPJ divergente",
			Field:      "cnpj",
			Documents:  []model.DocumentType{model.DocumentContratoSocial, model.DocumentCartaoCNPJ},
			Values:     []string{"1", "2"},
			DocumentID: &docID,
		}},
	}

	data, err := XLSX(view)
	if err != nil {
		t.Fatalf("xlsx: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	checks := []struct{ sheet, cell, want string }{
		{SheetSummary, "B2", "ACME"},
		{SheetSummary, "B4", "REPROVADO"},
		{SheetDocuments, "A2", "CONTRATO_SOCIAL"},
		{SheetFindings, "A2", "cnpj_mismatch"},
		{SheetFindings, "E2", "CONTRATO_SOCIAL, CARTAO_CNPJ"},
		{SheetFindings, "F2", "1 | 2"},
		{SheetFindings, "G2", "doc-1"},
	}
	for _, c := range checks {
		got, err := f.GetCellValue(c.sheet, c.cell)
		if err != nil {
			t.Fatalf("%s!%s: %v", c.sheet, c.cell, err)
		}
		if got != c.want {
			t.Fatalf("%s!%s = %q, want %q", c.sheet, c.cell, got, c.want)
		}
	}
}
