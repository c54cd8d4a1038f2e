package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dharsanguruparan/docvalidator/internal/consistency"
	"github.com/dharsanguruparan/docvalidator/internal/decision"
	"github.com/dharsanguruparan/docvalidator/internal/extraction"
	"github.com/dharsanguruparan/docvalidator/internal/model"
)

var errRejected = errors.New("analysis rejected")

// fixture holds already-extracted records, one per document type.
type fixture struct {
	ContratoSocial   *extraction.ContratoSocial   `json:"contrato_social" yaml:"contrato_social"`
	CartaoCNPJ       *extraction.CartaoCNPJ       `json:"cartao_cnpj" yaml:"cartao_cnpj"`
	CertidaoNegativa *extraction.CertidaoNegativa `json:"certidao_negativa" yaml:"certidao_negativa"`
}

func (f fixture) input() consistency.Input {
	return consistency.Input{
		ContratoSocial:   f.ContratoSocial,
		CartaoCNPJ:       f.CartaoCNPJ,
		CertidaoNegativa: f.CertidaoNegativa,
	}
}

type checkFinding struct {
	Code     string         `json:"code" yaml:"code"`
	Severity model.Severity `json:"severity" yaml:"severity"`
	Message  string         `json:"message" yaml:"message"`
	Field    string         `json:"field,omitempty" yaml:"field,omitempty"`
	Docs     []string       `json:"documents" yaml:"documents"`
	Values   []string       `json:"values" yaml:"values"`
}

type checkResult struct {
	ReferenceDate   string                 `json:"reference_date" yaml:"reference_date"`
	Available       int                    `json:"documents_available" yaml:"documents_available"`
	Decision        model.AnalysisDecision `json:"decision" yaml:"decision"`
	Confidence      float64                `json:"confidence" yaml:"confidence"`
	Inconsistencies []checkFinding         `json:"inconsistencies" yaml:"inconsistencies"`
}

func loadFixture(path string) (fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fixture{}, err
	}
	var f fixture
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &f)
	} else {
		err = yaml.Unmarshal(data, &f)
	}
	if err != nil {
		return fixture{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}

func evaluate(f fixture, reference extraction.Date) checkResult {
	in := f.input()
	findings := consistency.Check(in, reference)
	outcome := decision.Combine(findings, in.Available())
	res := checkResult{
		ReferenceDate:   reference.String(),
		Available:       in.Available(),
		Decision:        outcome.Decision,
		Confidence:      outcome.Confidence,
		Inconsistencies: make([]checkFinding, 0, len(findings)),
	}
	for _, fd := range findings {
		p := fd.Pointers()
		res.Inconsistencies = append(res.Inconsistencies, checkFinding{
			Code:     fd.Code,
			Severity: fd.Severity,
			Message:  fd.Message,
			Field:    fd.Field,
			Docs:     p.Documents,
			Values:   p.Values,
		})
	}
	return res
}

func writeResult(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	}
	return fmt.Errorf("unknown output format %q (json or yaml)", format)
}

func newCheckCmd() *cobra.Command {
	var referenceDate, output string
	var strict bool
	cmd := &cobra.Command{
		Use:   "check <fixture.yaml|fixture.json>",
		Short: "Run the consistency rules and the decision on extracted records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reference := extraction.Today()
			if referenceDate != "" {
				d, err := extraction.ParseDate(referenceDate)
				if err != nil {
					return fmt.Errorf("--reference-date: %w", err)
				}
				reference = d
			}
			f, err := loadFixture(args[0])
			if err != nil {
				return err
			}
			res := evaluate(f, reference)
			if err := writeResult(cmd.OutOrStdout(), output, res); err != nil {
				return err
			}
			if strict && res.Decision == model.DecisionReprovado {
				return errRejected
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&referenceDate, "reference-date", "", "Date the rules treat as today (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "Output format: yaml or json")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when the decision is REPROVADO")
	return cmd
}
