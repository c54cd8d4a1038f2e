package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dharsanguruparan/docvalidator/internal/analysis"
	"github.com/dharsanguruparan/docvalidator/internal/apperr"
	"github.com/dharsanguruparan/docvalidator/internal/extraction"
	"github.com/dharsanguruparan/docvalidator/internal/model"
)

var documentNames = map[model.DocumentType]string{
	model.DocumentContratoSocial:   "CONTRATO SOCIAL (sociedade empresária limitada)",
	model.DocumentCartaoCNPJ:       "CARTÃO CNPJ (comprovante de inscrição e situação cadastral)",
	model.DocumentCertidaoNegativa: "CERTIDÃO NEGATIVA DE DÉBITOS FEDERAIS (Receita Federal/PGFN)",
}

// envelope is the JSON shape the model is asked to return.
type envelope struct {
	Data       json.RawMessage     `json:"data"`
	Confidence float64             `json:"confidence"`
	Evidence   map[string][]string `json:"evidence"`
	Notes      []string            `json:"notes"`
}

// Extract asks the model for the typed record of req.DocumentType and
// validates the answer against the document's schema.
func (c *Client) Extract(ctx context.Context, req analysis.ExtractRequest) (extraction.Output, error) {
	start := time.Now()
	schema, ok := BuildExtractionSchema(req.DocumentType)
	if !ok {
		return extraction.Output{}, apperr.Validation(apperr.CodeInvalidDocType, "document_type",
			fmt.Sprintf("unsupported document type %q", req.DocumentType))
	}
	log := c.log.With("document_type", req.DocumentType)
	text := truncate(req.Text, MaxTextChars)
	log.Info("llm.extract.start", "text_len", len([]rune(text)))

	content, err := c.complete(ctx, []message{
		{Role: "system", Content: extractionPrompt(req.DocumentType)},
		{Role: "system", Content: "JSON Schema:\n" + mustJSON(schema)},
		{Role: "user", Content: fmt.Sprintf("Texto extraído do documento (pode estar parcial):\n%s", text)},
	}, true)
	if err != nil {
		return extraction.Output{}, err
	}
	content = stripFences(content)

	compiled, err := compiledSchema(req.DocumentType)
	if err != nil {
		return extraction.Output{}, extractionError(req.DocumentType, "load extraction schema", err)
	}
	if err := validateEnvelope(compiled, []byte(content)); err != nil {
		log.Error("llm.extract.schema_validation_failed", "error", err, "content", truncate(content, 2000))
		return extraction.Output{}, extractionError(req.DocumentType, "extraction does not match schema", err)
	}

	var env envelope
	if err := json.Unmarshal([]byte(content), &env); err != nil {
		return extraction.Output{}, extractionError(req.DocumentType, "decode extraction", err)
	}
	rec, _ := extraction.NewRecord(req.DocumentType)
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return extraction.Output{}, extractionError(req.DocumentType, "extraction did not produce a result", nil)
	}
	if err := json.Unmarshal(env.Data, rec); err != nil {
		return extraction.Output{}, extractionError(req.DocumentType, "decode extracted fields", err)
	}

	out := extraction.Scored(rec, env.Confidence, c.cfg.Model)
	out.Evidence = env.Evidence
	out.Notes = env.Notes
	log.Info("llm.extract.ok",
		"confidence", env.Confidence,
		"notes", len(env.Notes),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func extractionPrompt(docType model.DocumentType) string {
	return fmt.Sprintf(`Você é um assistente especializado em extrair dados estruturados de %s no Brasil.

Extraia os campos solicitados do texto fornecido e responda APENAS com JSON no formato {"data": {...}, "confidence": 0.0-1.0, "evidence": {campo: [trechos]}, "notes": [...]}.

Regras:
- Se algum campo não existir no texto, use null (ou lista vazia, quando aplicável).
- NÃO invente valores. Se estiver incerto, reduza a confidence e descreva em notes.
- Para evidências, inclua trechos curtos (até ~200 caracteres) copiados do texto.
- Datas: converta para AAAA-MM-DD.`, documentNames[docType])
}

// stripFences removes a ```json ... ``` wrapper some models add despite the
// JSON response format.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func extractionError(docType model.DocumentType, message string, err error) error {
	return apperr.Processing(apperr.CodeLLMExtraction, message, map[string]any{
		"document_type":  string(docType),
		"extractor_name": "llm",
	}, err)
}
