package rules

import (
	"regexp"
	"strings"

	"github.com/oyerishi/smart-contract-auditor/internal/model"
)

var (
	lowLevelCallRe = regexp.MustCompile(`\.(call|send|delegatecall|staticcall|callcode)\s*[({]`)
	returnCheckRe  = regexp.MustCompile(`\(\s*bool\s+\w+\s*,?.*\)\s*=.*\.(call|send|delegatecall|staticcall)`)
	requireRe      = regexp.MustCompile(`require\s*\(`)
)

// UncheckedCallRule flags low-level calls whose success is neither captured
// in a return tuple nor asserted with a require within the next two lines.
type UncheckedCallRule struct{}

func (r *UncheckedCallRule) Meta() Meta {
	return Meta{
		ID:       "UC001",
		Name:     "Unchecked External Call",
		Severity: model.SeverityHigh,
		Category: "External Calls",
	}
}

func (r *UncheckedCallRule) Analyze(c *model.ParsedContract) []model.Finding {
	var findings []model.Finding
	meta := r.Meta()

	for fi := range c.Functions {
		fn := &c.Functions[fi]
		lines := bodyLines(fn)

		for i, line := range lines {
			if !lowLevelCallRe.MatchString(line) {
				continue
			}
			if returnCheckRe.MatchString(line) {
				continue
			}

			checked := false
			for j := i + 1; j < len(lines) && j <= i+2; j++ {
				if requireRe.MatchString(lines[j]) {
					checked = true
					break
				}
			}
			if checked {
				continue
			}

			callType := extractCallType(line)
			lineNum := fn.StartLine + i
			findings = append(findings, model.Finding{
				RuleID:            meta.ID,
				RuleName:          meta.Name,
				VulnerabilityType: meta.Category,
				Severity:          meta.Severity,
				Category:          meta.Category,
				Title:             "Unchecked " + callType + " return value in function: " + fn.Name,
				Description: "The function makes a low-level " + callType + " without checking its " +
					"return value. External calls can fail silently, and unchecked failures " +
					"lead to unexpected behavior.",
				Location:        location(c, fn),
				LineNumber:      lineNum,
				CodeSnippet:     snippet(c.SourceCode, lineNum),
				Recommendation:  `Always check the return value of low-level calls: (bool success, ) = addr.call(...); require(success, "call failed");`,
				ConfidenceScore: 0.85,
				CweID:           "CWE-252",
				SwcID:           "SWC-104",
				DetectionSource: model.SourceStatic,
			})
		}
	}
	return findings
}

func extractCallType(line string) string {
	switch {
	case strings.Contains(line, ".call"):
		return "call"
	case strings.Contains(line, ".send"):
		return "send"
	case strings.Contains(line, ".delegatecall"):
		return "delegatecall"
	case strings.Contains(line, ".staticcall"):
		return "staticcall"
	case strings.Contains(line, ".callcode"):
		return "callcode"
	default:
		return "external call"
	}
}
