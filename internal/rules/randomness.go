package rules

import (
	"regexp"
	"strings"

	"github.com/oyerishi/smart-contract-auditor/internal/model"
)

var (
	blockTimestampRe = regexp.MustCompile(`block\.timestamp|\bnow\b`)
	blockNumberRe    = regexp.MustCompile(`block\.number`)
	blockhashRe      = regexp.MustCompile(`blockhash\s*\(|block\.blockhash`)
	randomUsageRe    = regexp.MustCompile(`random|rand|lottery|winner`)
)

// RandomnessRule flags block-variable entropy sources inside functions that
// look like they generate randomness, either by name/body keywords or by a
// modulo over a block variable.
type RandomnessRule struct{}

func (r *RandomnessRule) Meta() Meta {
	return Meta{
		ID:       "RN001",
		Name:     "Weak Randomness",
		Severity: model.SeverityMedium,
		Category: "Randomness",
	}
}

func (r *RandomnessRule) Analyze(c *model.ParsedContract) []model.Finding {
	var findings []model.Finding

	for fi := range c.Functions {
		fn := &c.Functions[fi]
		if fn.Body == "" {
			continue
		}

		suspect := randomUsageRe.MatchString(strings.ToLower(fn.Name)) ||
			randomUsageRe.MatchString(strings.ToLower(fn.Body)) ||
			seemsLikeRandomness(fn.Body)
		if !suspect {
			continue
		}

		if blockTimestampRe.MatchString(fn.Body) {
			findings = append(findings, r.finding(c, fn, "block.timestamp", blockTimestampRe, 0.8,
				"The function uses block.timestamp (or now) for randomness. Miners can manipulate timestamps within a range, making the outcome predictable."))
		}
		if blockNumberRe.MatchString(fn.Body) {
			findings = append(findings, r.finding(c, fn, "block.number", blockNumberRe, 0.8,
				"The function uses block.number for randomness. Block numbers are predictable and can be anticipated by attackers."))
		}
		if blockhashRe.MatchString(fn.Body) {
			findings = append(findings, r.finding(c, fn, "blockhash", blockhashRe, 0.75,
				"The function uses blockhash for randomness. Blockhashes can be influenced by miners and are only available for the most recent 256 blocks."))
		}
	}
	return findings
}

// seemsLikeRandomness spots modulo arithmetic over a block variable.
func seemsLikeRandomness(body string) bool {
	return strings.Contains(body, "%") &&
		(blockTimestampRe.MatchString(body) ||
			blockNumberRe.MatchString(body) ||
			blockhashRe.MatchString(body))
}

func (r *RandomnessRule) finding(c *model.ParsedContract, fn *model.FunctionInfo,
	source string, re *regexp.Regexp, confidence float64, description string) model.Finding {
	meta := r.Meta()
	lineNum := firstBodyLineMatching(fn, re)
	return model.Finding{
		RuleID:            meta.ID,
		RuleName:          meta.Name,
		VulnerabilityType: meta.Category,
		Severity:          meta.Severity,
		Category:          meta.Category,
		Title:             "Weak randomness using " + source + " in function: " + fn.Name,
		Description:       description,
		Location:          location(c, fn),
		LineNumber:        lineNum,
		CodeSnippet:       snippet(c.SourceCode, lineNum),
		Recommendation:    "Use a verifiable randomness source (e.g. Chainlink VRF) or a commit-reveal scheme; never derive randomness from block variables.",
		ConfidenceScore:   confidence,
		CweID:             "CWE-330",
		SwcID:             "SWC-120",
		DetectionSource:   model.SourceStatic,
	}
}
