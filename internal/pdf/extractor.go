// Package pdfutil turns uploaded PDF bytes into plain text.
package pdfutil

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	pdf "github.com/ledongthuc/pdf"

	"github.com/dharsanguruparan/docvalidator/internal/apperr"
	"github.com/dharsanguruparan/docvalidator/internal/logging"
)

// MinTextChars is the length below which a PDF is assumed to be a scan
// without a text layer.
const MinTextChars = 50

// ExtractText reads PDF bytes and returns plain text using ledongthuc/pdf.
func ExtractText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", apperr.Processing(apperr.CodePDFExtraction, "empty pdf", nil, nil)
	}
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", apperr.Processing(apperr.CodePDFExtraction, "open pdf", nil, err)
	}
	var builder strings.Builder
	total := doc.NumPage()
	for page := 1; page <= total; page++ {
		p := doc.Page(page)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", apperr.Processing(apperr.CodePDFExtraction, fmt.Sprintf("read page %d", page),
				map[string]any{"page": page, "pages": total}, err)
		}
		builder.WriteString(content)
		builder.WriteString("\n")
	}
	return strings.TrimSpace(builder.String()), nil
}

// Extractor adapts ExtractText to the orchestrator and logs PDFs that look
// like scans.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor builds an Extractor. A nil logger discards output.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Extractor{logger: logger}
}

// ExtractText implements the orchestrator's text extraction step.
func (e *Extractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := ExtractText(data)
	if err != nil {
		return "", err
	}
	if n := utf8.RuneCountInString(text); n < MinTextChars {
		e.logger.Warn("pdf.extract.low_text",
			"chars", n,
			"correlation_id", logging.CorrelationID(ctx),
			"hint", "document may be scanned; OCR is not supported",
		)
	}
	return text, nil
}
