package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/dharsanguruparan/docvalidator/internal/model"
)

// datePattern accepts ISO dates, the Brazilian DD/MM/YYYY layout and "".
const datePattern = `^(\d{4}-\d{2}-\d{2}|\d{2}/\d{2}/\d{4})?$`

type compiled struct {
	once   sync.Once
	schema *jsonschema.Schema
	err    error
}

// compiledSchemas holds one *compiled per document type.
var compiledSchemas sync.Map

// compiledSchema returns the compiled extraction schema of docType. Each type
// is compiled once per process.
func compiledSchema(docType model.DocumentType) (*jsonschema.Schema, error) {
	v, _ := compiledSchemas.LoadOrStore(docType, &compiled{})
	c := v.(*compiled)
	c.once.Do(func() {
		raw, ok := BuildExtractionSchema(docType)
		if !ok {
			c.err = fmt.Errorf("no extraction schema for %q", docType)
			return
		}
		c.schema, c.err = compileSchema(string(docType)+".json", raw)
	})
	return c.schema, c.err
}

func compileSchema(url string, raw map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", url, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", url, err)
	}
	return schema, nil
}

// BuildExtractionSchema returns the JSON Schema of the extraction envelope
// {data, confidence, evidence, notes} for docType.
func BuildExtractionSchema(docType model.DocumentType) (map[string]any, bool) {
	var data map[string]any
	switch docType {
	case model.DocumentContratoSocial:
		data = object(map[string]any{
			"razao_social":    str(),
			"cnpj":            str(),
			"nire":            str(),
			"data_registro":   date(),
			"junta_comercial": str(),
			"sede":            nullable(endereco("cidade")),
			"objeto_social":   str(),
			"socios": list(object(map[string]any{
				"nome":            map[string]any{"type": "string", "minLength": 1},
				"cpf":             str(),
				"rg":              str(),
				"nacionalidade":   str(),
				"estado_civil":    str(),
				"profissao":       str(),
				"data_nascimento": date(),
				"endereco":        nullable(endereco("cidade")),
			}, "nome")),
		})
	case model.DocumentCartaoCNPJ:
		cnae := object(map[string]any{"codigo": str(), "descricao": str()})
		data = object(map[string]any{
			"cnpj":                     str(),
			"razao_social":             str(),
			"nome_fantasia":            str(),
			"data_abertura":            date(),
			"situacao_cadastral":       str(),
			"data_situacao_cadastral":  date(),
			"natureza_juridica":        str(),
			"endereco_estabelecimento": nullable(endereco("municipio")),
			"cnae_principal":           nullable(cnae),
			"cnaes_secundarios":        list(cnae),
			"qsa": list(object(map[string]any{
				"nome":         map[string]any{"type": "string", "minLength": 1},
				"cpf_cnpj":     str(),
				"qualificacao": str(),
			}, "nome")),
		})
	case model.DocumentCertidaoNegativa:
		data = object(map[string]any{
			"cnpj":                 str(),
			"razao_social":         str(),
			"orgao_emissor":        str(),
			"tipo_certidao":        str(),
			"numero_certidao":      str(),
			"codigo_autenticidade": str(),
			"data_emissao":         date(),
			"data_validade":        date(),
			"resultado":            str(),
			"observacoes":          str(),
		})
	default:
		return nil, false
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"data":       data,
			"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"evidence": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
			"notes": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"data", "confidence"},
	}, true
}

func endereco(cityField string) map[string]any {
	return object(map[string]any{
		"logradouro":  str(),
		"numero":      str(),
		"complemento": str(),
		"bairro":      str(),
		cityField:     str(),
		"uf":          str(),
		"cep":         str(),
	})
}

func object(props map[string]any, required ...string) map[string]any {
	out := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func list(items map[string]any) map[string]any {
	return map[string]any{"type": []string{"array", "null"}, "items": items}
}

func nullable(schema map[string]any) map[string]any {
	return map[string]any{"anyOf": []any{schema, map[string]any{"type": "null"}}}
}

func str() map[string]any {
	return map[string]any{"type": []string{"string", "null"}}
}

func date() map[string]any {
	return map[string]any{"type": []string{"string", "null"}, "pattern": datePattern}
}
