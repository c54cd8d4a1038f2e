// Package consistency cross-checks the fields extracted from the registration
// documents of one company and reports every divergence it finds.
//
// The engine is stateless and deterministic: the same input and reference
// date always produce the same findings in the same order. Rules never fail;
// a missing document or field only skips the rules that need it.
package consistency

import (
	"fmt"

	"github.com/dharsanguruparan/docvalidator/internal/extraction"
	"github.com/dharsanguruparan/docvalidator/internal/model"
	"github.com/dharsanguruparan/docvalidator/internal/normalize"
)

// Finding codes.
const (
	CodeCNPJMismatch        = "cnpj_mismatch"
	CodeRazaoSocialMismatch = "razao_social_mismatch"
	CodeCertificateExpired  = "certificate_expired"
	CodeDocumentTooOld      = "document_older_than_6_months"
	CodeEnderecoMismatch    = "endereco_mismatch"
	CodeSocioCPFMismatch    = "socio_cpf_mismatch"
)

// maxDocumentAgeMonths is how old an issuance/status date may be.
const maxDocumentAgeMonths = 6

// Input carries at most one record per document type. Nil means the
// document was not provided or could not be extracted.
type Input struct {
	ContratoSocial   *extraction.ContratoSocial
	CartaoCNPJ       *extraction.CartaoCNPJ
	CertidaoNegativa *extraction.CertidaoNegativa
}

// InputFrom resolves extraction outputs into an Input. When two outputs share
// a document type the later one wins.
func InputFrom(outputs ...extraction.Output) Input {
	var in Input
	for _, out := range outputs {
		switch rec := out.Data().(type) {
		case *extraction.ContratoSocial:
			in.ContratoSocial = rec
		case *extraction.CartaoCNPJ:
			in.CartaoCNPJ = rec
		case *extraction.CertidaoNegativa:
			in.CertidaoNegativa = rec
		}
	}
	return in
}

// Available counts the documents present in the input.
func (in Input) Available() int {
	n := 0
	if in.ContratoSocial != nil {
		n++
	}
	if in.CartaoCNPJ != nil {
		n++
	}
	if in.CertidaoNegativa != nil {
		n++
	}
	return n
}

// Check runs every rule in a fixed order. A zero reference date means today.
func Check(in Input, reference extraction.Date) []model.Finding {
	if reference.IsZero() {
		reference = extraction.Today()
	}
	cutoff := reference.AddMonths(-maxDocumentAgeMonths)

	findings := make([]model.Finding, 0)
	findings = append(findings, checkCNPJ(in)...)
	findings = append(findings, checkRazaoSocial(in)...)
	findings = append(findings, checkCertificateValidity(in, reference)...)
	findings = append(findings, checkCertificateAge(in, cutoff)...)
	findings = append(findings, checkCardStatusAge(in, cutoff)...)
	findings = append(findings, checkAddress(in)...)
	findings = append(findings, checkPartnerIDs(in)...)
	return findings
}

// labelled is one document's normalized value for a compared field.
type labelled struct {
	doc   model.DocumentType
	value string
}

// compareToFirst measures every entry against the first one (the highest
// priority document present) and reports each one that differs.
func compareToFirst(entries []labelled, emit func(ref, other labelled) model.Finding) []model.Finding {
	if len(entries) < 2 {
		return nil
	}
	ref := entries[0]
	var out []model.Finding
	for _, e := range entries[1:] {
		if e.value != ref.value {
			out = append(out, emit(ref, e))
		}
	}
	return out
}

func checkCNPJ(in Input) []model.Finding {
	var entries []labelled
	add := func(doc model.DocumentType, raw string) {
		if raw != "" {
			entries = append(entries, labelled{doc: doc, value: normalize.ID(raw)})
		}
	}
	if in.ContratoSocial != nil {
		add(model.DocumentContratoSocial, in.ContratoSocial.CNPJ)
	}
	if in.CartaoCNPJ != nil {
		add(model.DocumentCartaoCNPJ, in.CartaoCNPJ.CNPJ)
	}
	if in.CertidaoNegativa != nil {
		add(model.DocumentCertidaoNegativa, in.CertidaoNegativa.CNPJ)
	}
	return compareToFirst(entries, func(ref, other labelled) model.Finding {
		return model.Finding{
			Code:      CodeCNPJMismatch,
			Severity:  model.SeverityBlocker,
			Message:   fmt.Sprintf("CNPJ divergente entre %s e %s.", ref.doc, other.doc),
			Field:     "cnpj",
			Documents: []model.DocumentType{ref.doc, other.doc},
			Values:    []string{ref.value, other.value},
		}
	})
}

func checkRazaoSocial(in Input) []model.Finding {
	var entries []labelled
	add := func(doc model.DocumentType, raw string) {
		if raw != "" {
			entries = append(entries, labelled{doc: doc, value: normalize.Text(raw)})
		}
	}
	if in.ContratoSocial != nil {
		add(model.DocumentContratoSocial, in.ContratoSocial.RazaoSocial)
	}
	if in.CartaoCNPJ != nil {
		add(model.DocumentCartaoCNPJ, in.CartaoCNPJ.RazaoSocial)
	}
	if in.CertidaoNegativa != nil {
		add(model.DocumentCertidaoNegativa, in.CertidaoNegativa.RazaoSocial)
	}
	return compareToFirst(entries, func(ref, other labelled) model.Finding {
		return model.Finding{
			Code:      CodeRazaoSocialMismatch,
			Severity:  model.SeverityBlocker,
			Message:   fmt.Sprintf("Razão social divergente entre %s e %s.", ref.doc, other.doc),
			Field:     "razao_social",
			Documents: []model.DocumentType{ref.doc, other.doc},
			Values:    []string{ref.value, other.value},
		}
	})
}

func checkCertificateValidity(in Input, reference extraction.Date) []model.Finding {
	cert := in.CertidaoNegativa
	if cert == nil || cert.DataValidade.IsZero() || !cert.DataValidade.Before(reference) {
		return nil
	}
	return []model.Finding{{
		Code:      CodeCertificateExpired,
		Severity:  model.SeverityBlocker,
		Message:   fmt.Sprintf("Certidão negativa vencida (validade: %s).", cert.DataValidade),
		Field:     "data_validade",
		Documents: []model.DocumentType{model.DocumentCertidaoNegativa},
		Values:    []string{cert.DataValidade.String()},
	}}
}

// checkCertificateAge flags a certificate issued strictly before the cutoff.
// A certificate issued exactly on the cutoff is still fresh.
func checkCertificateAge(in Input, cutoff extraction.Date) []model.Finding {
	cert := in.CertidaoNegativa
	if cert == nil || cert.DataEmissao.IsZero() || !cert.DataEmissao.Before(cutoff) {
		return nil
	}
	return []model.Finding{{
		Code:      CodeDocumentTooOld,
		Severity:  model.SeverityBlocker,
		Message:   fmt.Sprintf("Certidão negativa emitida há mais de 6 meses (emissão: %s).", cert.DataEmissao),
		Field:     "data_emissao",
		Documents: []model.DocumentType{model.DocumentCertidaoNegativa},
		Values:    []string{cert.DataEmissao.String()},
	}}
}

// checkCardStatusAge is advisory only: an old status date on the CNPJ card
// does not by itself reject the company.
func checkCardStatusAge(in Input, cutoff extraction.Date) []model.Finding {
	card := in.CartaoCNPJ
	if card == nil || card.DataSituacaoCadastral.IsZero() || !card.DataSituacaoCadastral.Before(cutoff) {
		return nil
	}
	return []model.Finding{{
		Code:      CodeDocumentTooOld,
		Severity:  model.SeverityWarn,
		Message:   fmt.Sprintf("Cartão CNPJ com situação cadastral desatualizada (data: %s).", card.DataSituacaoCadastral),
		Field:     "data_situacao_cadastral",
		Documents: []model.DocumentType{model.DocumentCartaoCNPJ},
		Values:    []string{card.DataSituacaoCadastral.String()},
	}}
}

func checkAddress(in Input) []model.Finding {
	if in.ContratoSocial == nil || in.ContratoSocial.Sede == nil {
		return nil
	}
	if in.CartaoCNPJ == nil || in.CartaoCNPJ.EnderecoEstabelecimento == nil {
		return nil
	}
	sede := in.ContratoSocial.Sede
	estab := in.CartaoCNPJ.EnderecoEstabelecimento

	cityContrato, ufContrato := normalize.Text(sede.Cidade), normalize.Text(sede.UF)
	cityCartao, ufCartao := normalize.Text(estab.Municipio), normalize.Text(estab.UF)
	if cityContrato == "" || cityCartao == "" {
		return nil
	}
	if cityContrato == cityCartao && ufContrato == ufCartao {
		return nil
	}
	contrato := cityContrato + "/" + ufContrato
	cartao := cityCartao + "/" + ufCartao
	return []model.Finding{{
		Code:      CodeEnderecoMismatch,
		Severity:  model.SeverityWarn,
		Message:   fmt.Sprintf("Endereço divergente entre Contrato Social (%s) e Cartão CNPJ (%s).", contrato, cartao),
		Field:     "endereco",
		Documents: []model.DocumentType{model.DocumentContratoSocial, model.DocumentCartaoCNPJ},
		Values:    []string{contrato, cartao},
	}}
}

// partner is one roster entry keyed by normalized name.
type partner struct {
	name  string // as written in the document
	rawID string
	id    string // normalized
}

// roster keeps partners in first-seen order. A repeated name overwrites the
// earlier entry's ID but keeps its position.
type roster struct {
	order []string
	byKey map[string]partner
}

func newRoster() *roster {
	return &roster{byKey: make(map[string]partner)}
}

func (r *roster) add(name, rawID string) {
	if name == "" || rawID == "" {
		return
	}
	key := normalize.Name(name)
	if _, seen := r.byKey[key]; !seen {
		r.order = append(r.order, key)
	}
	r.byKey[key] = partner{name: name, rawID: rawID, id: normalize.ID(rawID)}
}

// checkPartnerIDs matches partners of the articles of incorporation with the
// CNPJ card roster by exact normalized name and compares their IDs.
func checkPartnerIDs(in Input) []model.Finding {
	if in.ContratoSocial == nil || len(in.ContratoSocial.Socios) == 0 {
		return nil
	}
	if in.CartaoCNPJ == nil || len(in.CartaoCNPJ.QSA) == 0 {
		return nil
	}
	contrato := newRoster()
	for _, s := range in.ContratoSocial.Socios {
		contrato.add(s.Nome, s.CPF)
	}
	qsa := newRoster()
	for _, s := range in.CartaoCNPJ.QSA {
		qsa.add(s.Nome, s.CPFCNPJ)
	}

	var out []model.Finding
	for _, key := range contrato.order {
		left := contrato.byKey[key]
		right, ok := qsa.byKey[key]
		if !ok || left.id == right.id {
			continue
		}
		out = append(out, model.Finding{
			Code:      CodeSocioCPFMismatch,
			Severity:  model.SeverityBlocker,
			Message:   fmt.Sprintf("CPF divergente para o sócio '%s' entre Contrato Social e Cartão CNPJ.", originalName(in.ContratoSocial.Socios, key)),
			Field:     "socio_cpf",
			Documents: []model.DocumentType{model.DocumentContratoSocial, model.DocumentCartaoCNPJ},
			Values:    []string{left.rawID, right.rawID},
		})
	}
	return out
}

// originalName returns the first spelling of the partner name in the
// articles of incorporation.
func originalName(socios []extraction.Socio, key string) string {
	for _, s := range socios {
		if normalize.Name(s.Nome) == key {
			return s.Nome
		}
	}
	return key
}
