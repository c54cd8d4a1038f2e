// Package report renders an analysis job as an XLSX workbook with a summary
// sheet, a documents sheet and an inconsistencies sheet.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/dharsanguruparan/docvalidator/internal/model"
)

// Sheet names.
const (
	SheetSummary   = "Resumo"
	SheetDocuments = "Documentos"
	SheetFindings  = "Inconsistencias"
)

// XLSX returns the workbook bytes for view.
func XLSX(view model.JobView) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetDocuments, SheetFindings} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("new sheet %s: %w", name, err)
		}
	}

	writeSummary(f, view.Job)
	writeRows(f, SheetDocuments,
		[]string{"Tipo", "Arquivo", "Content-Type", "Bytes", "SHA-256", "Modelo", "Texto extraído"},
		documentRows(view.Documents))
	writeRows(f, SheetFindings,
		[]string{"Código", "Severidade", "Mensagem", "Campo", "Documentos", "Valores", "Documento"},
		findingRows(view.Findings))

	_ = f.SetColWidth(SheetSummary, "A", "A", 18)
	_ = f.SetColWidth(SheetSummary, "B", "B", 80)
	_ = f.SetColWidth(SheetDocuments, "A", "B", 24)
	_ = f.SetColWidth(SheetDocuments, "E", "E", 66)
	_ = f.SetColWidth(SheetFindings, "A", "B", 28)
	_ = f.SetColWidth(SheetFindings, "C", "C", 80)
	_ = f.SetColWidth(SheetFindings, "E", "F", 40)

	idx, _ := f.GetSheetIndex(SheetSummary)
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, job model.AnalysisJob) {
	rows := [][2]any{
		{"Job", job.ID},
		{"Empresa", job.CompanyName},
		{"Status", string(job.Status)},
		{"Decisão", ""},
		{"Confiança", ""},
		{"Resumo", ""},
		{"Erro", ""},
		{"Criado em", job.CreatedAt.Format(time.RFC3339)},
		{"Finalizado em", ""},
	}
	if job.Decision != nil {
		rows[3][1] = string(*job.Decision)
	}
	if job.Confidence != nil {
		rows[4][1] = *job.Confidence
	}
	if job.Summary != nil {
		rows[5][1] = *job.Summary
	}
	if job.Error != nil {
		rows[6][1] = job.Error.Code + ": " + job.Error.Message
	}
	if job.FinishedAt != nil {
		rows[8][1] = job.FinishedAt.Format(time.RFC3339)
	}
	for i, r := range rows {
		_ = f.SetCellValue(SheetSummary, cell(1, i+1), r[0])
		_ = f.SetCellValue(SheetSummary, cell(2, i+1), r[1])
	}
}

func documentRows(docs []model.Document) [][]any {
	out := make([][]any, 0, len(docs))
	for _, d := range docs {
		modelName, extracted := "", "não"
		if d.LLMModel != nil {
			modelName = *d.LLMModel
		}
		if d.ExtractedData != nil {
			extracted = "sim"
		}
		out = append(out, []any{string(d.DocumentType), d.Filename, d.ContentType, d.SizeBytes, d.ChecksumSHA256, modelName, extracted})
	}
	return out
}

func findingRows(findings []model.Finding) [][]any {
	out := make([][]any, 0, len(findings))
	for _, fd := range findings {
		docs := make([]string, 0, len(fd.Documents))
		for _, d := range fd.Documents {
			docs = append(docs, string(d))
		}
		docID := ""
		if fd.DocumentID != nil {
			docID = *fd.DocumentID
		}
		out = append(out, []any{fd.Code, string(fd.Severity), fd.Message, fd.Field,
			strings.Join(docs, ", "), strings.Join(fd.Values, " | "), docID})
	}
	return out
}

func writeRows(f *excelize.File, sheet string, headers []string, rows [][]any) {
	for i, h := range headers {
		_ = f.SetCellValue(sheet, cell(i+1, 1), h)
	}
	for r, row := range rows {
		for c, v := range row {
			_ = f.SetCellValue(sheet, cell(c+1, r+2), v)
		}
	}
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
