package aggregate

import (
	"math"
	"testing"

	"github.com/oyerishi/smart-contract-auditor/internal/model"
)

func finding(vulnType string, line int, sev model.Severity, confidence float64) model.Finding {
	return model.Finding{
		VulnerabilityType: vulnType,
		Severity:          sev,
		LineNumber:        line,
		ConfidenceScore:   confidence,
	}
}

// ─── Dedupe ────────────────────────────────────────────────────────────

func TestDedupe_KeepsHigherConfidence(t *testing.T) {
	t.Parallel()
	in := []model.Finding{
		finding("Reentrancy", 10, model.SeverityCritical, 0.85),
		finding("Reentrancy", 10, model.SeverityCritical, 0.92),
	}
	out := Dedupe(in)
	if len(out) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(out))
	}
	if out[0].ConfidenceScore != 0.92 {
		t.Errorf("expected confidence 0.92, got %v", out[0].ConfidenceScore)
	}
}

func TestDedupe_TieKeepsFirstSeen(t *testing.T) {
	t.Parallel()
	first := finding("Reentrancy", 10, model.SeverityCritical, 0.85)
	first.Description = "static"
	second := finding("Reentrancy", 10, model.SeverityCritical, 0.85)
	second.Description = "ml"

	out := Dedupe([]model.Finding{first, second})
	if len(out) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(out))
	}
	if out[0].Description != "static" {
		t.Errorf("tie should keep first-seen, got %q", out[0].Description)
	}
}

func TestDedupe_DistinctLinesSurvive(t *testing.T) {
	t.Parallel()
	in := []model.Finding{
		finding("Reentrancy", 10, model.SeverityCritical, 0.85),
		finding("Reentrancy", 25, model.SeverityCritical, 0.85),
		finding("Access Control", 10, model.SeverityHigh, 0.7),
	}
	out := Dedupe(in)
	if len(out) != 3 {
		t.Fatalf("expected 3 findings, got %d", len(out))
	}
}

func TestDedupe_PreservesOrderAndIsIdempotent(t *testing.T) {
	t.Parallel()
	in := []model.Finding{
		finding("A", 1, model.SeverityLow, 0.5),
		finding("B", 2, model.SeverityHigh, 0.8),
		finding("A", 1, model.SeverityLow, 0.9),
		finding("C", 3, model.SeverityMedium, 0.6),
	}
	once := Dedupe(in)
	if len(once) != 3 {
		t.Fatalf("expected 3 findings, got %d", len(once))
	}
	wantOrder := []string{"A", "B", "C"}
	for i, w := range wantOrder {
		if once[i].VulnerabilityType != w {
			t.Errorf("position %d: expected %q, got %q", i, w, once[i].VulnerabilityType)
		}
	}

	twice := Dedupe(once)
	if len(twice) != len(once) {
		t.Fatalf("dedupe not idempotent: %d vs %d", len(twice), len(once))
	}
	for i := range once {
		if twice[i] != once[i] {
			t.Errorf("position %d changed on second pass", i)
		}
	}
}

// ─── RiskScore ─────────────────────────────────────────────────────────

func TestRiskScore_EmptyIsZero(t *testing.T) {
	t.Parallel()
	if got := RiskScore(nil); got != 0 {
		t.Errorf("expected 0 for empty set, got %v", got)
	}
}

func TestRiskScore_WeightedSum(t *testing.T) {
	t.Parallel()
	in := []model.Finding{
		finding("A", 1, model.SeverityCritical, 0.9), // 10 * 0.9 = 9
		finding("B", 2, model.SeverityHigh, 0.5),     // 7 * 0.5  = 3.5
		finding("C", 3, model.SeverityMedium, 1.0),   // 4 * 1.0  = 4
		finding("D", 4, model.SeverityLow, 0.5),      // 2 * 0.5  = 1
	}
	got := RiskScore(in)
	if math.Abs(got-17.5) > 1e-9 {
		t.Errorf("expected 17.5, got %v", got)
	}
}

func TestRiskScore_MissingConfidenceDefaultsToHalf(t *testing.T) {
	t.Parallel()
	in := []model.Finding{finding("A", 1, model.SeverityCritical, 0)}
	if got := RiskScore(in); math.Abs(got-5.0) > 1e-9 {
		t.Errorf("expected 5.0, got %v", got)
	}
}

func TestRiskScore_CappedAt100(t *testing.T) {
	t.Parallel()
	var in []model.Finding
	for i := 0; i < 50; i++ {
		in = append(in, finding("A", i, model.SeverityCritical, 1.0))
	}
	if got := RiskScore(in); got != 100 {
		t.Errorf("expected cap at 100, got %v", got)
	}
}

func TestRiskScore_Monotonic(t *testing.T) {
	t.Parallel()
	base := []model.Finding{
		finding("A", 1, model.SeverityMedium, 0.6),
		finding("B", 2, model.SeverityHigh, 0.8),
	}
	before := RiskScore(base)
	for _, sev := range []model.Severity{model.SeverityLow, model.SeverityMedium, model.SeverityHigh, model.SeverityCritical} {
		after := RiskScore(append(append([]model.Finding{}, base...), finding("X", 99, sev, 0.1)))
		if after < before {
			t.Errorf("adding %s finding decreased score: %v -> %v", sev, before, after)
		}
	}
}

// ─── Merge ─────────────────────────────────────────────────────────────

func TestMerge_StaticWinsConfidenceTieAgainstML(t *testing.T) {
	t.Parallel()
	static := []model.Finding{finding("Reentrancy", 10, model.SeverityCritical, 0.85)}
	static[0].DetectionSource = model.SourceStatic
	ml := []model.Finding{finding("Reentrancy", 10, model.SeverityCritical, 0.85)}
	ml[0].DetectionSource = model.SourceML

	res := Merge(static, ml)
	if len(res.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(res.Findings))
	}
	if res.Findings[0].DetectionSource != model.SourceStatic {
		t.Errorf("expected static finding to win the tie, got %s", res.Findings[0].DetectionSource)
	}
}

func TestMerge_ComputesCountsAndLevel(t *testing.T) {
	t.Parallel()
	static := []model.Finding{
		finding("Reentrancy", 10, model.SeverityCritical, 1.0),
		finding("Access Control", 20, model.SeverityHigh, 1.0),
	}
	ml := []model.Finding{
		finding("Randomness", 30, model.SeverityMedium, 1.0),
	}

	res := Merge(static, ml)
	if res.Counts.Critical != 1 || res.Counts.High != 1 || res.Counts.Medium != 1 || res.Counts.Low != 0 {
		t.Errorf("unexpected counts: %+v", res.Counts)
	}
	// 10 + 7 + 4 = 21
	if math.Abs(res.RiskScore-21) > 1e-9 {
		t.Errorf("expected score 21, got %v", res.RiskScore)
	}
	if res.RiskLevel != model.RiskLow {
		t.Errorf("expected LOW for score 21, got %s", res.RiskLevel)
	}
}

func TestMerge_EmptyInputs(t *testing.T) {
	t.Parallel()
	res := Merge(nil, nil)
	if len(res.Findings) != 0 {
		t.Errorf("expected no findings, got %d", len(res.Findings))
	}
	if res.RiskScore != 0 {
		t.Errorf("expected score 0, got %v", res.RiskScore)
	}
	if res.RiskLevel != model.RiskMinimal {
		t.Errorf("expected MINIMAL, got %s", res.RiskLevel)
	}
}
