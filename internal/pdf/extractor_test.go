package pdfutil

import (
	"context"
	"errors"
	"testing"

	"github.com/dharsanguruparan/docvalidator/internal/apperr"
)

func TestExtractTextRejectsInvalidInput(t *testing.T) {
	cases := map[string][]byte{
		"empty":   nil,
		"garbage": []byte("definitely not a pdf"),
	}
	for name, data := range cases {
		_, err := ExtractText(data)
		appErr, ok := apperr.As(err)
		if !ok || appErr.Code != apperr.CodePDFExtraction {
			t.Fatalf("%s: expected pdf_extraction_error, got %v", name, err)
		}
	}
}

func TestExtractorHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewExtractor(nil).ExtractText(ctx, []byte("%PDF-1.4"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
