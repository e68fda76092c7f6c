package rules

import (
	"regexp"

	"github.com/oyerishi/smart-contract-auditor/internal/model"
)

var (
	externalCallRe = regexp.MustCompile(`\.(call|delegatecall|staticcall|send|transfer)\s*[({]`)
	stateChangeRe  = regexp.MustCompile(`\w+\s*=\s*[^=]|\w+\+\+|\w+--|\w+\s*\+=|\w+\s*-=`)
)

// ReentrancyRule flags functions that mutate state after making a low-level
// external call (checks-effects-interactions violation, SWC-107).
type ReentrancyRule struct{}

func (r *ReentrancyRule) Meta() Meta {
	return Meta{
		ID:       "RE001",
		Name:     "Reentrancy Vulnerability",
		Severity: model.SeverityCritical,
		Category: "Reentrancy",
	}
}

func (r *ReentrancyRule) Analyze(c *model.ParsedContract) []model.Finding {
	var findings []model.Finding
	meta := r.Meta()

	for fi := range c.Functions {
		fn := &c.Functions[fi]
		lines := bodyLines(fn)

		for i, line := range lines {
			if !externalCallRe.MatchString(line) {
				continue
			}
			// Any state mutation after the call re-opens the window.
			for j := i + 1; j < len(lines); j++ {
				if !stateChangeRe.MatchString(lines[j]) {
					continue
				}
				lineNum := fn.StartLine + j
				findings = append(findings, model.Finding{
					RuleID:            meta.ID,
					RuleName:          meta.Name,
					VulnerabilityType: meta.Category,
					Severity:          meta.Severity,
					Category:          meta.Category,
					Title:             "State change after external call in function: " + fn.Name,
					Description: "The function '" + fn.Name + "' modifies state after making an " +
						"external call. A malicious contract can re-enter the function before " +
						"state changes are complete.",
					Location:       location(c, fn),
					LineNumber:     lineNum,
					CodeSnippet:    snippet(c.SourceCode, lineNum),
					Recommendation: "Apply the checks-effects-interactions pattern: perform all state changes before external calls, or use a reentrancy guard.",
					ConfidenceScore: 0.85,
					CweID:           "CWE-841",
					SwcID:           "SWC-107",
					DetectionSource: model.SourceStatic,
				})
				break
			}
		}
	}
	return findings
}
