// Package extraction defines the typed field sets produced for each document
// type and the envelope an extractor returns them in.
package extraction

import (
	"github.com/dharsanguruparan/docvalidator/internal/model"
)

// Record is implemented by the typed field set of each document type.
type Record interface {
	DocumentType() model.DocumentType
}

// Endereco is an address as written in the articles of incorporation.
type Endereco struct {
	Logradouro  string `json:"logradouro,omitempty" yaml:"logradouro,omitempty"`
	Numero      string `json:"numero,omitempty" yaml:"numero,omitempty"`
	Complemento string `json:"complemento,omitempty" yaml:"complemento,omitempty"`
	Bairro      string `json:"bairro,omitempty" yaml:"bairro,omitempty"`
	Cidade      string `json:"cidade,omitempty" yaml:"cidade,omitempty"`
	UF          string `json:"uf,omitempty" yaml:"uf,omitempty"`
	CEP         string `json:"cep,omitempty" yaml:"cep,omitempty"`
}

// Socio is a partner listed in the articles of incorporation.
type Socio struct {
	Nome           string    `json:"nome" yaml:"nome"`
	CPF            string    `json:"cpf,omitempty" yaml:"cpf,omitempty"`
	RG             string    `json:"rg,omitempty" yaml:"rg,omitempty"`
	Nacionalidade  string    `json:"nacionalidade,omitempty" yaml:"nacionalidade,omitempty"`
	EstadoCivil    string    `json:"estado_civil,omitempty" yaml:"estado_civil,omitempty"`
	Profissao      string    `json:"profissao,omitempty" yaml:"profissao,omitempty"`
	DataNascimento Date      `json:"data_nascimento" yaml:"data_nascimento,omitempty"`
	Endereco       *Endereco `json:"endereco,omitempty" yaml:"endereco,omitempty"`
}

// ContratoSocial holds the fields read from the articles of incorporation.
type ContratoSocial struct {
	RazaoSocial    string    `json:"razao_social,omitempty" yaml:"razao_social,omitempty"`
	CNPJ           string    `json:"cnpj,omitempty" yaml:"cnpj,omitempty"`
	NIRE           string    `json:"nire,omitempty" yaml:"nire,omitempty"`
	DataRegistro   Date      `json:"data_registro" yaml:"data_registro,omitempty"`
	JuntaComercial string    `json:"junta_comercial,omitempty" yaml:"junta_comercial,omitempty"`
	Sede           *Endereco `json:"sede,omitempty" yaml:"sede,omitempty"`
	ObjetoSocial   string    `json:"objeto_social,omitempty" yaml:"objeto_social,omitempty"`
	Socios         []Socio   `json:"socios" yaml:"socios,omitempty"`
}

func (*ContratoSocial) DocumentType() model.DocumentType { return model.DocumentContratoSocial }

// EnderecoEstabelecimento is the establishment address on the CNPJ card.
type EnderecoEstabelecimento struct {
	Logradouro  string `json:"logradouro,omitempty" yaml:"logradouro,omitempty"`
	Numero      string `json:"numero,omitempty" yaml:"numero,omitempty"`
	Complemento string `json:"complemento,omitempty" yaml:"complemento,omitempty"`
	Bairro      string `json:"bairro,omitempty" yaml:"bairro,omitempty"`
	Municipio   string `json:"municipio,omitempty" yaml:"municipio,omitempty"`
	UF          string `json:"uf,omitempty" yaml:"uf,omitempty"`
	CEP         string `json:"cep,omitempty" yaml:"cep,omitempty"`
}

// CNAE is an economic activity code.
type CNAE struct {
	Codigo    string `json:"codigo,omitempty" yaml:"codigo,omitempty"`
	Descricao string `json:"descricao,omitempty" yaml:"descricao,omitempty"`
}

// SocioQSA is an entry of the partner/officer roster (QSA) on the CNPJ card.
type SocioQSA struct {
	Nome         string `json:"nome" yaml:"nome"`
	CPFCNPJ      string `json:"cpf_cnpj,omitempty" yaml:"cpf_cnpj,omitempty"`
	Qualificacao string `json:"qualificacao,omitempty" yaml:"qualificacao,omitempty"`
}

// CartaoCNPJ holds the fields read from the tax-registration card.
type CartaoCNPJ struct {
	CNPJ                    string                   `json:"cnpj,omitempty" yaml:"cnpj,omitempty"`
	RazaoSocial             string                   `json:"razao_social,omitempty" yaml:"razao_social,omitempty"`
	NomeFantasia            string                   `json:"nome_fantasia,omitempty" yaml:"nome_fantasia,omitempty"`
	DataAbertura            Date                     `json:"data_abertura" yaml:"data_abertura,omitempty"`
	SituacaoCadastral       string                   `json:"situacao_cadastral,omitempty" yaml:"situacao_cadastral,omitempty"`
	DataSituacaoCadastral   Date                     `json:"data_situacao_cadastral" yaml:"data_situacao_cadastral,omitempty"`
	NaturezaJuridica        string                   `json:"natureza_juridica,omitempty" yaml:"natureza_juridica,omitempty"`
	EnderecoEstabelecimento *EnderecoEstabelecimento `json:"endereco_estabelecimento,omitempty" yaml:"endereco_estabelecimento,omitempty"`
	CNAEPrincipal           *CNAE                    `json:"cnae_principal,omitempty" yaml:"cnae_principal,omitempty"`
	CNAEsSecundarios        []CNAE                   `json:"cnaes_secundarios" yaml:"cnaes_secundarios,omitempty"`
	QSA                     []SocioQSA               `json:"qsa" yaml:"qsa,omitempty"`
}

func (*CartaoCNPJ) DocumentType() model.DocumentType { return model.DocumentCartaoCNPJ }

// CertidaoNegativa holds the fields read from the federal tax-clearance
// certificate.
type CertidaoNegativa struct {
	CNPJ                string `json:"cnpj,omitempty" yaml:"cnpj,omitempty"`
	RazaoSocial         string `json:"razao_social,omitempty" yaml:"razao_social,omitempty"`
	OrgaoEmissor        string `json:"orgao_emissor,omitempty" yaml:"orgao_emissor,omitempty"`
	TipoCertidao        string `json:"tipo_certidao,omitempty" yaml:"tipo_certidao,omitempty"`
	NumeroCertidao      string `json:"numero_certidao,omitempty" yaml:"numero_certidao,omitempty"`
	CodigoAutenticidade string `json:"codigo_autenticidade,omitempty" yaml:"codigo_autenticidade,omitempty"`
	DataEmissao         Date   `json:"data_emissao" yaml:"data_emissao,omitempty"`
	DataValidade        Date   `json:"data_validade" yaml:"data_validade,omitempty"`
	Resultado           string `json:"resultado,omitempty" yaml:"resultado,omitempty"`
	Observacoes         string `json:"observacoes,omitempty" yaml:"observacoes,omitempty"`
}

func (*CertidaoNegativa) DocumentType() model.DocumentType { return model.DocumentCertidaoNegativa }

// NewRecord returns an empty record for the document type, ready to be
// unmarshalled into.
func NewRecord(t model.DocumentType) (Record, bool) {
	switch t {
	case model.DocumentContratoSocial:
		return &ContratoSocial{}, true
	case model.DocumentCartaoCNPJ:
		return &CartaoCNPJ{}, true
	case model.DocumentCertidaoNegativa:
		return &CertidaoNegativa{}, true
	}
	return nil, false
}
