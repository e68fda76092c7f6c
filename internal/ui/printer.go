// Package ui renders scan output for the command line.
package ui

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"

	"github.com/oyerishi/smart-contract-auditor/internal/model"
)

// PrintFindings renders the findings table, worst first as given.
func PrintFindings(findings []model.Finding) {
	if len(findings) == 0 {
		pterm.Success.Println("No vulnerabilities found! The contract looks clean.")
		return
	}

	pterm.Warning.Printf("Found %d potential issues:\n\n", len(findings))

	data := [][]string{
		{"Severity", "Rule", "Line", "Type", "Title", "Confidence", "Source"},
	}

	for _, f := range findings {
		severityStyle := ""
		switch f.Severity {
		case model.SeverityCritical:
			severityStyle = pterm.FgRed.Sprint("CRITICAL")
		case model.SeverityHigh:
			severityStyle = pterm.FgRed.Sprint("HIGH")
		case model.SeverityMedium:
			severityStyle = pterm.FgYellow.Sprint("MEDIUM")
		default:
			severityStyle = pterm.FgBlue.Sprint(string(f.Severity))
		}

		lineStr := "-"
		if f.LineNumber > 0 {
			lineStr = strconv.Itoa(f.LineNumber)
		}

		data = append(data, []string{
			severityStyle,
			pterm.FgCyan.Sprint(f.RuleID),
			lineStr,
			f.VulnerabilityType,
			f.Title,
			fmt.Sprintf("%.2f", f.ConfidenceScore),
			string(f.DetectionSource),
		})
	}

	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

// PrintRiskSummary renders the aggregate risk line under the table.
func PrintRiskSummary(score float64, level model.RiskLevel, counts model.SeverityCounts) {
	style := pterm.FgGreen
	switch level {
	case model.RiskCritical, model.RiskHigh:
		style = pterm.FgRed
	case model.RiskMedium:
		style = pterm.FgYellow
	}

	pterm.Println()
	pterm.Printf("Risk score: %s  (%s)\n",
		style.Sprintf("%.1f", score),
		style.Sprint(string(level)))
	pterm.Printf("Severity breakdown: critical=%d high=%d medium=%d low=%d\n",
		counts.Critical, counts.High, counts.Medium, counts.Low)
}

// StartSpinner starts a progress spinner with the given text.
func StartSpinner(text string) *pterm.SpinnerPrinter {
	spinner, _ := pterm.DefaultSpinner.Start(text)
	return spinner
}
