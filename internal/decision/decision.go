// Package decision turns the findings of a consistency check into a verdict.
package decision

import (
	"github.com/dharsanguruparan/docvalidator/internal/model"
)

// totalDocuments is the number of document types a complete submission has.
const totalDocuments = 3

// findingPenalty is subtracted from the confidence per finding.
const findingPenalty = 0.1

// Outcome is the verdict for one job.
type Outcome struct {
	Decision   model.AnalysisDecision
	Confidence float64
}

// Combine rejects when any finding is a BLOCKER. Confidence grows with the
// share of documents available and drops by 0.1 per finding, clamped to
// [0, 1].
func Combine(findings []model.Finding, available int) Outcome {
	out := Outcome{Decision: model.DecisionAprovado}
	for _, f := range findings {
		if f.Severity == model.SeverityBlocker {
			out.Decision = model.DecisionReprovado
			break
		}
	}
	confidence := float64(available)/totalDocuments - findingPenalty*float64(len(findings))
	out.Confidence = clamp(confidence, 0, 1)
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
