// Package mldetector is a self-contained detector service that speaks the
// same analysis contract the auditor's ML client consumes. It scores
// contracts with a pattern table and context-aware confidence adjustment,
// which makes it useful for demos and end-to-end testing without a trained
// model behind it.
package mldetector

import (
	"fmt"
	"math"
	"strings"

	"github.com/oyerishi/smart-contract-auditor/internal/mlclient"
)

const (
	// contextWindow is how far around a match the mitigation probes look.
	contextWindow = 500

	snippetContextLines = 2
)

// Detect runs the pattern table over the source and returns the detected
// vulnerabilities in detection order.
func Detect(source, contractName string) []mlclient.Vulnerability {
	var out []mlclient.Vulnerability
	seq := 1

	for _, p := range patternTable {
		if p.Exclude != nil && p.Exclude.MatchString(source) {
			continue
		}

		for _, loc := range p.Match.FindAllStringIndex(source, -1) {
			mitigated := false
			if p.CheckBefore != nil {
				before := source[:loc[0]]
				if len(before) > contextWindow {
					before = before[len(before)-contextWindow:]
				}
				if p.CheckBefore.MatchString(before) {
					mitigated = true
				}
			}
			if p.CheckAfter != nil {
				after := source[loc[1]:]
				if len(after) > contextWindow {
					after = after[:contextWindow]
				}
				if p.CheckAfter.MatchString(after) {
					mitigated = true
				}
			}

			severity := p.Severity
			confidence := baseConfidence
			if mitigated {
				// A nearby mitigation downgrades critical findings instead
				// of hiding them; everything milder is dropped outright.
				if severity != "CRITICAL" && severity != "HIGH" {
					continue
				}
				severity = "MEDIUM"
				confidence = mitigatedConfidence
			}

			line := lineOf(source, loc[0])
			out = append(out, mlclient.Vulnerability{
				ID:             fmt.Sprintf("%s-%s-%d", contractName, p.ID, seq),
				Name:           p.Name,
				Category:       p.Category,
				Severity:       severity,
				Description:    p.Description,
				Confidence:     confidence,
				LineNumber:     line,
				CodeSnippet:    snippet(source, line),
				Recommendation: p.Recommendation,
				CweID:          p.CweID,
				SwcID:          p.SwcID,
			})
			seq++
		}
	}
	return out
}

const (
	// baseConfidence is pattern hit (0.7) plus context agreement (0.2)
	// plus the neutral code-quality contribution (0.05).
	baseConfidence = 0.95

	// mitigatedConfidence is the no-context-agreement score (0.75)
	// scaled by 0.8 for the severity downgrade.
	mitigatedConfidence = 0.6
)

// RiskScore aggregates detected vulnerabilities into a 0-100 score.
func RiskScore(vulns []mlclient.Vulnerability) float64 {
	if len(vulns) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range vulns {
		total += severityWeight(v.Severity) * v.Confidence
	}
	score := total * 5
	if score > 100 {
		score = 100
	}
	return math.Round(score*100) / 100
}

func severityWeight(severity string) float64 {
	switch severity {
	case "CRITICAL":
		return 10
	case "HIGH":
		return 7
	case "MEDIUM":
		return 4
	case "LOW":
		return 2
	case "INFO":
		return 0.5
	default:
		return 1
	}
}

// BuildMetrics summarizes a detection run for the response payload.
func BuildMetrics(vulns []mlclient.Vulnerability) *mlclient.Metrics {
	m := &mlclient.Metrics{
		OverallRiskScore:     RiskScore(vulns),
		TotalVulnerabilities: len(vulns),
		SeverityCount:        map[string]int{},
		CategoryCount:        map[string]int{},
	}
	sum := 0.0
	for _, v := range vulns {
		m.SeverityCount[v.Severity]++
		m.CategoryCount[v.Category]++
		sum += v.Confidence
	}
	if len(vulns) > 0 {
		m.ModelConfidence = math.Round(sum/float64(len(vulns))*100) / 100
	}
	return m
}

func lineOf(source string, pos int) int {
	return strings.Count(source[:pos], "\n") + 1
}

// snippet renders the flagged line with two lines of context, the flagged
// line marked with ">>>".
func snippet(source string, line int) string {
	lines := strings.Split(source, "\n")
	start := line - snippetContextLines - 1
	if start < 0 {
		start = 0
	}
	end := line + snippetContextLines
	if end > len(lines) {
		end = len(lines)
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		prefix := "    "
		if i+1 == line {
			prefix = ">>> "
		}
		fmt.Fprintf(&b, "%s%d: %s", prefix, i+1, lines[i])
		if i+1 < end {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
