package mlclient

import (
	"github.com/oyerishi/smart-contract-auditor/internal/model"
)

// AnalysisRequest is the payload sent to the ML service. Field names follow
// the service's JSON contract.
type AnalysisRequest struct {
	ContractCode   string                `json:"contractCode"`
	ContractName   string                `json:"contractName"`
	SolcVersion    string                `json:"solcVersion,omitempty"`
	ParsedContract *model.ParsedContract `json:"parsedContract,omitempty"`
}

// AnalysisResponse is the ML service's reply. Success=false means the
// analysis itself failed; transport failures never surface as errors to
// callers, they produce a response with Success=false and a Message.
type AnalysisResponse struct {
	Success          bool            `json:"success"`
	Message          string          `json:"message,omitempty"`
	Vulnerabilities  []Vulnerability `json:"vulnerabilities"`
	Metrics          *Metrics        `json:"metrics,omitempty"`
	ProcessingTimeMs int64           `json:"processingTimeMs"`
}

// Vulnerability is one ML-detected issue.
type Vulnerability struct {
	ID             string  `json:"id,omitempty"`
	Name           string  `json:"name"`
	Category       string  `json:"category,omitempty"`
	Severity       string  `json:"severity"`
	Description    string  `json:"description,omitempty"`
	Confidence     float64 `json:"confidence"`
	Location       string  `json:"location,omitempty"`
	LineNumber     int     `json:"lineNumber"`
	CodeSnippet    string  `json:"codeSnippet,omitempty"`
	Recommendation string  `json:"recommendation,omitempty"`
	CweID          string  `json:"cweId,omitempty"`
	SwcID          string  `json:"swcId,omitempty"`
}

// Metrics carries the service's own aggregate view. Informational only;
// the authoritative risk score is recomputed locally after merging.
type Metrics struct {
	OverallRiskScore     float64        `json:"overallRiskScore"`
	TotalVulnerabilities int            `json:"totalVulnerabilities"`
	SeverityCount        map[string]int `json:"severityCount,omitempty"`
	CategoryCount        map[string]int `json:"categoryCount,omitempty"`
	ModelConfidence      float64        `json:"modelConfidence"`
}

// HealthStatus is the reply from the service's health endpoint.
type HealthStatus struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"modelLoaded"`
	Version     string `json:"version,omitempty"`
}

// ToFindings converts the response's vulnerabilities into findings tagged as
// ML-sourced. Nil-safe: a failed or empty response converts to nil.
func (r *AnalysisResponse) ToFindings() []model.Finding {
	if r == nil || !r.Success || len(r.Vulnerabilities) == 0 {
		return nil
	}
	findings := make([]model.Finding, 0, len(r.Vulnerabilities))
	for _, v := range r.Vulnerabilities {
		vulnType := v.Name
		if vulnType == "" {
			vulnType = v.Category
		}
		if vulnType == "" {
			vulnType = "Unknown"
		}
		findings = append(findings, model.Finding{
			RuleID:            v.ID,
			RuleName:          v.Name,
			VulnerabilityType: vulnType,
			Severity:          model.ParseSeverity(v.Severity),
			Category:          v.Category,
			Title:             v.Name,
			Description:       v.Description,
			Location:          v.Location,
			LineNumber:        v.LineNumber,
			CodeSnippet:       v.CodeSnippet,
			Recommendation:    v.Recommendation,
			ConfidenceScore:   v.Confidence,
			CweID:             v.CweID,
			SwcID:             v.SwcID,
			DetectionSource:   model.SourceML,
		})
	}
	return findings
}
