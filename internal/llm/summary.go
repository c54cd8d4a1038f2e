package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/dharsanguruparan/docvalidator/internal/analysis"
	"github.com/dharsanguruparan/docvalidator/internal/extraction"
)

const summaryPrompt = `Você é um analista jurídico especializado em validação de documentos empresariais.

Você recebeu os dados extraídos dos documentos de uma empresa (Contrato Social, Cartão CNPJ e Certidão Negativa de Débitos Federais) e a lista de inconsistências encontradas na validação cruzada.

Gere um RESUMO EXECUTIVO claro e objetivo para o time jurídico, explicando se os documentos estão consistentes, quais problemas foram encontrados e a decisão final (APROVADO ou REPROVADO).

Seja direto e profissional. Máximo de 3-4 frases.`

// Summarize writes the executive summary of a finished analysis.
func (c *Client) Summarize(ctx context.Context, req analysis.SummaryRequest) (string, error) {
	summary, err := c.complete(ctx, []message{
		{Role: "system", Content: summaryPrompt},
		{Role: "user", Content: summaryInput(req)},
	}, false)
	if err != nil {
		return "", err
	}
	c.log.Info("llm.summary.ok", "chars", len([]rune(summary)), "decision", req.Outcome.Decision)
	return summary, nil
}

func summaryInput(req analysis.SummaryRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Empresa\n%s\n\n## Dados extraídos\n", req.CompanyName)
	section := func(title string, rec extraction.Record, present bool) {
		fmt.Fprintf(&b, "\n### %s\n", title)
		if !present {
			b.WriteString("Não fornecido\n")
			return
		}
		b.WriteString(mustJSON(rec))
		b.WriteString("\n")
	}
	section("Contrato Social", req.Input.ContratoSocial, req.Input.ContratoSocial != nil)
	section("Cartão CNPJ", req.Input.CartaoCNPJ, req.Input.CartaoCNPJ != nil)
	section("Certidão Negativa Federal", req.Input.CertidaoNegativa, req.Input.CertidaoNegativa != nil)

	b.WriteString("\n## Inconsistências encontradas\n")
	if len(req.Findings) == 0 {
		b.WriteString("Nenhuma inconsistência encontrada.\n")
	}
	for _, f := range req.Findings {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", f.Severity, f.Code, f.Message)
	}
	fmt.Fprintf(&b, "\n## Decisão\n%s\n\n## Gere o resumo executivo:\n", req.Outcome.Decision)
	return b.String()
}
