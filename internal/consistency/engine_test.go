package consistency

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dharsanguruparan/docvalidator/internal/extraction"
	"github.com/dharsanguruparan/docvalidator/internal/model"
)

var reference = extraction.NewDate(2025, time.June, 15)

func cleanInput() Input {
	return Input{
		ContratoSocial: &extraction.ContratoSocial{
			RazaoSocial: "ACME Comércio LTDA",
			CNPJ:        "12.345.678/0001-99",
			Sede:        &extraction.Endereco{Cidade: "São Paulo", UF: "SP"},
			Socios: []extraction.Socio{
				{Nome: "João Carlos da Silva", CPF: "123.456.789-09"},
				{Nome: "Maria Souza", CPF: "987.654.321-00"},
			},
		},
		CartaoCNPJ: &extraction.CartaoCNPJ{
			CNPJ:                    "12.345.678/0001-99",
			RazaoSocial:             "ACME  Comércio Ltda",
			DataSituacaoCadastral:   extraction.NewDate(2025, time.March, 1),
			EnderecoEstabelecimento: &extraction.EnderecoEstabelecimento{Municipio: "SÃO PAULO", UF: "sp"},
			QSA: []extraction.SocioQSA{
				{Nome: "JOÃO CARLOS DA SILVA", CPFCNPJ: "12345678909"},
				{Nome: "MARIA SOUZA", CPFCNPJ: "98765432100"},
			},
		},
		CertidaoNegativa: &extraction.CertidaoNegativa{
			CNPJ:         "12.345.678/0001-99",
			RazaoSocial:  "acme comércio ltda",
			DataEmissao:  extraction.NewDate(2025, time.May, 20),
			DataValidade: extraction.NewDate(2025, time.November, 16),
		},
	}
}

func codes(findings []model.Finding) []string {
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Code+":"+string(f.Severity))
	}
	return out
}

func TestCheckCleanSubmissionHasNoFindings(t *testing.T) {
	findings := Check(cleanInput(), reference)
	if len(findings) != 0 {
		t.Fatalf("expected no findings, got %+v", findings)
	}
}

func TestCheckIgnoresIDPunctuation(t *testing.T) {
	in := cleanInput()
	in.CartaoCNPJ.CNPJ = "12345678000199"
	in.CertidaoNegativa.CNPJ = "12 345 678 0001 99"
	for _, f := range Check(in, reference) {
		if f.Code == CodeCNPJMismatch {
			t.Fatalf("unexpected cnpj mismatch: %+v", f)
		}
	}
}

func TestCheckCNPJMismatchAgainstFirstAvailable(t *testing.T) {
	in := cleanInput()
	in.CertidaoNegativa.CNPJ = "99.999.999/0001-99"
	findings := Check(in, reference)
	want := []model.Finding{{
		Code:      CodeCNPJMismatch,
		Severity:  model.SeverityBlocker,
		Message:   "CNPJ divergente entre CONTRATO_SOCIAL e CERTIDAO_NEGATIVA.",
		Field:     "cnpj",
		Documents: []model.DocumentType{model.DocumentContratoSocial, model.DocumentCertidaoNegativa},
		Values:    []string{"12345678000199", "99999999000199"},
	}}
	if diff := cmp.Diff(want, findings); diff != "" {
		t.Fatalf("findings mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckReferenceFallsBackToSecondDocument(t *testing.T) {
	in := cleanInput()
	in.ContratoSocial = nil
	in.CertidaoNegativa.CNPJ = "11.111.111/0001-11"
	findings := Check(in, reference)
	if len(findings) != 1 {
		t.Fatalf("expected one finding, got %v", codes(findings))
	}
	got := findings[0].Documents
	if got[0] != model.DocumentCartaoCNPJ || got[1] != model.DocumentCertidaoNegativa {
		t.Fatalf("unexpected documents %v", got)
	}
}

func TestCheckRazaoSocialMismatch(t *testing.T) {
	in := cleanInput()
	in.CartaoCNPJ.RazaoSocial = "ACME Serviços LTDA"
	findings := Check(in, reference)
	if diff := cmp.Diff([]string{"razao_social_mismatch:BLOCKER"}, codes(findings)); diff != "" {
		t.Fatalf("codes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"acme comércio ltda", "acme serviços ltda"}, findings[0].Values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckExpiredAndStaleCertificate(t *testing.T) {
	in := cleanInput()
	in.CertidaoNegativa.DataEmissao = extraction.NewDate(2024, time.December, 1)
	in.CertidaoNegativa.DataValidade = extraction.NewDate(2025, time.June, 1)
	findings := Check(in, reference)
	want := []string{"certificate_expired:BLOCKER", "document_older_than_6_months:BLOCKER"}
	if diff := cmp.Diff(want, codes(findings)); diff != "" {
		t.Fatalf("codes mismatch (-want +got):\n%s", diff)
	}
	if findings[0].Values[0] != "2025-06-01" || findings[1].Values[0] != "2024-12-01" {
		t.Fatalf("unexpected values %v / %v", findings[0].Values, findings[1].Values)
	}
}

func TestCheckCertificateValidOnReferenceDate(t *testing.T) {
	in := cleanInput()
	in.CertidaoNegativa.DataValidade = reference
	if findings := Check(in, reference); len(findings) != 0 {
		t.Fatalf("certificate valid through the reference date should pass, got %v", codes(findings))
	}
}

func TestCheckSixMonthBoundary(t *testing.T) {
	cutoff := extraction.NewDate(2024, time.December, 15)
	cases := []struct {
		name  string
		issue extraction.Date
		stale bool
	}{
		{"exactly six months", cutoff, false},
		{"one day earlier", extraction.NewDate(2024, time.December, 14), true},
		{"one day later", extraction.NewDate(2024, time.December, 16), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := cleanInput()
			in.CertidaoNegativa.DataEmissao = tc.issue
			in.CartaoCNPJ.DataSituacaoCadastral = tc.issue
			findings := Check(in, reference)
			var want []string
			if tc.stale {
				want = []string{"document_older_than_6_months:BLOCKER", "document_older_than_6_months:WARN"}
			}
			if diff := cmp.Diff(want, codes(findings), cmpEmpty); diff != "" {
				t.Fatalf("codes mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCheckStaleCardIsWarnOnly(t *testing.T) {
	in := cleanInput()
	in.CartaoCNPJ.DataSituacaoCadastral = extraction.NewDate(2024, time.November, 1)
	findings := Check(in, reference)
	if diff := cmp.Diff([]string{"document_older_than_6_months:WARN"}, codes(findings)); diff != "" {
		t.Fatalf("codes mismatch (-want +got):\n%s", diff)
	}
	if findings[0].Documents[0] != model.DocumentCartaoCNPJ {
		t.Fatalf("expected finding on the CNPJ card, got %v", findings[0].Documents)
	}
}

func TestCheckAddressMismatch(t *testing.T) {
	in := cleanInput()
	in.CartaoCNPJ.EnderecoEstabelecimento = &extraction.EnderecoEstabelecimento{Municipio: "Campinas", UF: "SP"}
	findings := Check(in, reference)
	if diff := cmp.Diff([]string{"endereco_mismatch:WARN"}, codes(findings)); diff != "" {
		t.Fatalf("codes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"são paulo/sp", "campinas/sp"}, findings[0].Values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckAddressSkippedWithoutCity(t *testing.T) {
	in := cleanInput()
	in.CartaoCNPJ.EnderecoEstabelecimento = &extraction.EnderecoEstabelecimento{UF: "RJ"}
	if findings := Check(in, reference); len(findings) != 0 {
		t.Fatalf("expected address rule to skip, got %v", codes(findings))
	}
}

func TestCheckPartnerCPFMismatch(t *testing.T) {
	in := cleanInput()
	in.CartaoCNPJ.QSA[0].CPFCNPJ = "111.222.333-44"
	findings := Check(in, reference)
	want := []model.Finding{{
		Code:      CodeSocioCPFMismatch,
		Severity:  model.SeverityBlocker,
		Message:   "CPF divergente para o sócio 'João Carlos da Silva' entre Contrato Social e Cartão CNPJ.",
		Field:     "socio_cpf",
		Documents: []model.DocumentType{model.DocumentContratoSocial, model.DocumentCartaoCNPJ},
		Values:    []string{"123.456.789-09", "111.222.333-44"},
	}}
	if diff := cmp.Diff(want, findings); diff != "" {
		t.Fatalf("findings mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckPartnerWithoutIDIsIgnored(t *testing.T) {
	in := cleanInput()
	in.CartaoCNPJ.QSA[0].CPFCNPJ = ""
	in.ContratoSocial.Socios[1].CPF = ""
	in.CartaoCNPJ.QSA[1].CPFCNPJ = "000.000.000-00"
	if findings := Check(in, reference); len(findings) != 0 {
		t.Fatalf("expected partners missing an ID to be skipped, got %v", codes(findings))
	}
}

func TestCheckPartnerNamesMustMatchExactly(t *testing.T) {
	in := cleanInput()
	in.CartaoCNPJ.QSA[0] = extraction.SocioQSA{Nome: "João C. da Silva", CPFCNPJ: "000.000.000-00"}
	if findings := Check(in, reference); len(findings) != 0 {
		t.Fatalf("expected no fuzzy matching, got %v", codes(findings))
	}
}

func TestCheckWithoutDocuments(t *testing.T) {
	findings := Check(Input{}, reference)
	if findings == nil || len(findings) != 0 {
		t.Fatalf("expected empty, non-nil findings, got %#v", findings)
	}
}

func TestCheckIsDeterministic(t *testing.T) {
	in := cleanInput()
	in.CartaoCNPJ.CNPJ = "00.000.000/0000-00"
	in.CertidaoNegativa.RazaoSocial = "Outra"
	in.CertidaoNegativa.DataValidade = extraction.NewDate(2025, time.January, 1)
	in.CartaoCNPJ.EnderecoEstabelecimento.Municipio = "Santos"
	in.CartaoCNPJ.QSA[1].CPFCNPJ = "1"

	first, err := json.Marshal(Check(in, reference))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := json.Marshal(Check(in, reference))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("non-deterministic output:\n%s\n%s", first, second)
	}
	want := []string{
		"cnpj_mismatch:BLOCKER",
		"razao_social_mismatch:BLOCKER",
		"certificate_expired:BLOCKER",
		"endereco_mismatch:WARN",
		"socio_cpf_mismatch:BLOCKER",
	}
	if diff := cmp.Diff(want, codes(Check(in, reference))); diff != "" {
		t.Fatalf("rule order mismatch (-want +got):\n%s", diff)
	}
}

func TestInputFromResolvesVariants(t *testing.T) {
	contrato := &extraction.ContratoSocial{CNPJ: "1"}
	cert := &extraction.CertidaoNegativa{CNPJ: "1"}
	in := InputFrom(
		extraction.Scored(contrato, 0.9, "model-a"),
		extraction.Bare(cert),
	)
	if in.ContratoSocial != contrato || in.CertidaoNegativa != cert || in.CartaoCNPJ != nil {
		t.Fatalf("unexpected input %+v", in)
	}
	if in.Available() != 2 {
		t.Fatalf("expected 2 available documents, got %d", in.Available())
	}
}

// cmpEmpty treats nil and empty slices as equal.
var cmpEmpty = cmp.Comparer(func(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
})
