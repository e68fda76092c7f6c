package model

// Severity classifies the impact of a finding.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// ParseSeverity maps a free-form severity string (as the ML service emits)
// onto the closed Severity set. Unknown values map to MEDIUM, INFO to LOW,
// matching how upstream results were historically folded in.
func ParseSeverity(s string) Severity {
	switch s {
	case "CRITICAL":
		return SeverityCritical
	case "HIGH":
		return SeverityHigh
	case "MEDIUM":
		return SeverityMedium
	case "LOW", "INFO":
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// DetectionSource records which analyzer produced a finding.
type DetectionSource string

const (
	SourceStatic DetectionSource = "STATIC"
	SourceML     DetectionSource = "ML"
	SourceHybrid DetectionSource = "HYBRID"
)

// Finding is one detected issue. Findings are value objects: immutable once
// created, owned by their scan until aggregation assigns a final identity.
type Finding struct {
	// RuleID identifies the detector rule (e.g. "RE001") or the ML
	// vulnerability id.
	RuleID string `json:"rule_id"`

	// RuleName is the human-readable rule name.
	RuleName string `json:"rule_name"`

	// VulnerabilityType is the deduplication type key (usually the category
	// or the ML vulnerability name).
	VulnerabilityType string `json:"vulnerability_type"`

	Severity Severity `json:"severity"`
	Category string   `json:"category"`

	Title       string `json:"title"`
	Description string `json:"description"`

	// Location is "Contract.function".
	Location string `json:"location"`

	// LineNumber is 1-based into the original source.
	LineNumber int `json:"line_number"`

	CodeSnippet    string `json:"code_snippet,omitempty"`
	Recommendation string `json:"recommendation,omitempty"`

	// ConfidenceScore is in [0,1]; zero means "unknown" and scoring falls
	// back to the default confidence.
	ConfidenceScore float64 `json:"confidence_score"`

	CweID string `json:"cwe_id,omitempty"`
	SwcID string `json:"swc_id,omitempty"`

	DetectionSource DetectionSource `json:"detection_source"`
}
