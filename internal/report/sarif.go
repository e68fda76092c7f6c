// Package report renders scan results in exchange formats.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/oyerishi/smart-contract-auditor/internal/model"
)

const (
	toolName = "smart-contract-auditor"
	toolURI  = "https://github.com/oyerishi/smart-contract-auditor"
)

// SarifReport converts a completed scan into a SARIF v2.1.0 report with one
// run. Findings without a rule id (ML findings) are grouped under a
// synthetic rule named after their vulnerability type.
func SarifReport(scan *model.Scan, findings []model.Finding) (*sarif.Report, error) {
	rep, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, fmt.Errorf("create SARIF report: %w", err)
	}

	run := sarif.NewRunWithInformationURI(toolName, toolURI)
	artifact := scan.ContractName + ".sol"

	seenRules := map[string]bool{}
	for _, f := range findings {
		ruleID := f.RuleID
		if ruleID == "" {
			ruleID = "ML-" + strings.ReplaceAll(strings.ToUpper(f.VulnerabilityType), " ", "-")
		}

		if !seenRules[ruleID] {
			seenRules[ruleID] = true
			name := f.RuleName
			if name == "" {
				name = f.VulnerabilityType
			}
			run.AddRule(ruleID).
				WithDescription(name).
				WithDefaultConfiguration(&sarif.ReportingConfiguration{
					Level: toSarifLevel(f.Severity),
				})
		}

		location := sarif.NewLocation().WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(artifact)).
				WithRegion(sarif.NewRegion().WithStartLine(f.LineNumber)),
		)

		message := f.Title
		if f.Description != "" {
			message = f.Title + ": " + f.Description
		}

		result := sarif.NewRuleResult(ruleID).
			WithMessage(sarif.NewTextMessage(message)).
			WithLevel(toSarifLevel(f.Severity)).
			WithLocations([]*sarif.Location{location})
		result.Properties = map[string]interface{}{
			"severity":   string(f.Severity),
			"confidence": f.ConfidenceScore,
			"source":     string(f.DetectionSource),
		}
		if f.CweID != "" {
			result.Properties["cweId"] = f.CweID
		}
		if f.SwcID != "" {
			result.Properties["swcId"] = f.SwcID
		}
		run.AddResult(result)
	}

	run.Properties = map[string]interface{}{
		"scanId":    scan.ID,
		"riskScore": scan.RiskScore,
		"riskLevel": string(scan.RiskLevel),
	}
	rep.AddRun(run)
	return rep, nil
}

// WriteSarif renders the report as indented JSON.
func WriteSarif(w io.Writer, scan *model.Scan, findings []model.Finding) error {
	rep, err := SarifReport(scan, findings)
	if err != nil {
		return err
	}
	return rep.PrettyWrite(w)
}

func toSarifLevel(severity model.Severity) string {
	switch severity {
	case model.SeverityCritical, model.SeverityHigh:
		return "error"
	case model.SeverityMedium:
		return "warning"
	case model.SeverityLow:
		return "note"
	default:
		return "none"
	}
}
