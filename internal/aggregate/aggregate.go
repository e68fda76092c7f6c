// Package aggregate merges static and ML findings into the final result set:
// concatenation, deduplication, risk scoring, and severity tallies.
package aggregate

import (
	"fmt"

	"github.com/oyerishi/smart-contract-auditor/internal/model"
)

// Severity weights and normalization for the 0-100 risk score.
const (
	weightCritical = 10.0
	weightHigh     = 7.0
	weightMedium   = 4.0
	weightLow      = 2.0

	// defaultConfidence substitutes for findings that carry no confidence.
	defaultConfidence = 0.5

	maxRiskScore = 100.0
)

// Result is the outcome of aggregating one scan's findings.
type Result struct {
	// Findings is the deduplicated set in deterministic order.
	Findings []model.Finding

	// RiskScore is in [0,100]; 0 for an empty set.
	RiskScore float64

	// RiskLevel classifies RiskScore.
	RiskLevel model.RiskLevel

	// Counts are recomputed from Findings, never mutated incrementally.
	Counts model.SeverityCounts
}

// Merge aggregates static findings followed by ML findings. The
// concatenation order matters: deduplication breaks confidence ties by
// insertion order, so a fixed rule order plus a fixed ML response order
// makes the result deterministic.
func Merge(static, ml []model.Finding) Result {
	combined := make([]model.Finding, 0, len(static)+len(ml))
	combined = append(combined, static...)
	combined = append(combined, ml...)

	deduped := Dedupe(combined)
	score := RiskScore(deduped)
	return Result{
		Findings:  deduped,
		RiskScore: score,
		RiskLevel: model.RiskLevelFor(score),
		Counts:    Counts(deduped),
	}
}

// Dedupe collapses findings sharing (vulnerabilityType, lineNumber), keeping
// the higher confidence and the first-seen on ties. Idempotent.
func Dedupe(findings []model.Finding) []model.Finding {
	type slot struct {
		index   int
		finding model.Finding
	}
	seen := make(map[string]slot, len(findings))
	order := make([]string, 0, len(findings))

	for _, f := range findings {
		key := fmt.Sprintf("%s:%d", f.VulnerabilityType, f.LineNumber)
		existing, ok := seen[key]
		if !ok {
			seen[key] = slot{index: len(order), finding: f}
			order = append(order, key)
			continue
		}
		if f.ConfidenceScore > existing.finding.ConfidenceScore {
			seen[key] = slot{index: existing.index, finding: f}
		}
	}

	out := make([]model.Finding, len(order))
	for _, key := range order {
		s := seen[key]
		out[s.index] = s.finding
	}
	return out
}

// RiskScore computes the weighted, confidence-adjusted sum over findings,
// capped at 100. It is monotonic: adding any finding never decreases it, and
// the empty set scores exactly 0.
func RiskScore(findings []model.Finding) float64 {
	score := 0.0
	for _, f := range findings {
		confidence := f.ConfidenceScore
		if confidence <= 0 {
			confidence = defaultConfidence
		}
		score += severityWeight(f.Severity) * confidence
	}
	if score > maxRiskScore {
		return maxRiskScore
	}
	return score
}

func severityWeight(s model.Severity) float64 {
	switch s {
	case model.SeverityCritical:
		return weightCritical
	case model.SeverityHigh:
		return weightHigh
	case model.SeverityMedium:
		return weightMedium
	case model.SeverityLow:
		return weightLow
	default:
		return 1.0
	}
}

// Counts tallies findings per severity.
func Counts(findings []model.Finding) model.SeverityCounts {
	var c model.SeverityCounts
	for _, f := range findings {
		switch f.Severity {
		case model.SeverityCritical:
			c.Critical++
		case model.SeverityHigh:
			c.High++
		case model.SeverityMedium:
			c.Medium++
		case model.SeverityLow:
			c.Low++
		}
	}
	return c
}
