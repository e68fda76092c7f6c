package rules

import (
	"regexp"
	"strconv"

	"github.com/oyerishi/smart-contract-auditor/internal/model"
)

var (
	arithmeticRe = regexp.MustCompile(`[\w\[\]]+\s*[+\-*/]\s*[\w\[\]]+`)
	uncheckedRe  = regexp.MustCompile(`unchecked\s*\{`)
	safeMathRe   = regexp.MustCompile(`using\s+SafeMath\s+for\s+uint|SafeMath\.`)
	versionNumRe = regexp.MustCompile(`(\d+)\.(\d+)`)
)

// IntegerOverflowRule gates on the compiler version: below 0.8.0 unguarded
// arithmetic overflows silently and every arithmetic line without SafeMath
// is flagged HIGH; from 0.8.0 on, arithmetic is checked by default and only
// explicit unchecked blocks are flagged MEDIUM.
type IntegerOverflowRule struct{}

func (r *IntegerOverflowRule) Meta() Meta {
	return Meta{
		ID:       "IO001",
		Name:     "Integer Overflow/Underflow",
		Severity: model.SeverityHigh,
		Category: "Arithmetic",
	}
}

func (r *IntegerOverflowRule) Analyze(c *model.ParsedContract) []model.Finding {
	var findings []model.Finding

	oldVersion := isPre080(c.SolcVersion)
	usesSafeMath := safeMathRe.MatchString(c.SourceCode)

	for fi := range c.Functions {
		fn := &c.Functions[fi]
		if fn.Body == "" || !arithmeticRe.MatchString(fn.Body) {
			continue
		}

		if oldVersion && !usesSafeMath && !safeMathRe.MatchString(fn.Body) {
			for i, line := range bodyLines(fn) {
				if arithmeticRe.MatchString(line) && !uncheckedRe.MatchString(line) {
					findings = append(findings, r.overflowFinding(c, fn, fn.StartLine+i))
				}
			}
		}

		if !oldVersion && uncheckedRe.MatchString(fn.Body) {
			findings = append(findings, r.uncheckedBlockFinding(c, fn))
		}
	}
	return findings
}

// isPre080 reports whether the declared version constraint resolves below
// 0.8.0. Missing or unparseable versions are assumed old, the conservative
// reading.
func isPre080(version string) bool {
	m := versionNumRe.FindStringSubmatch(version)
	if m == nil {
		return true
	}
	major, err1 := strconv.Atoi(m[1])
	minor, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil {
		return true
	}
	return major == 0 && minor < 8
}

func (r *IntegerOverflowRule) overflowFinding(c *model.ParsedContract, fn *model.FunctionInfo, lineNum int) model.Finding {
	meta := r.Meta()
	return model.Finding{
		RuleID:            meta.ID,
		RuleName:          meta.Name,
		VulnerabilityType: meta.Category,
		Severity:          meta.Severity,
		Category:          meta.Category,
		Title:             "Potential integer overflow/underflow in function: " + fn.Name,
		Description: "The function '" + fn.Name + "' performs arithmetic without SafeMath. " +
			"Before Solidity 0.8.0 arithmetic overflows and underflows silently.",
		Location:        location(c, fn),
		LineNumber:      lineNum,
		CodeSnippet:     snippet(c.SourceCode, lineNum),
		Recommendation:  "Use the SafeMath library for all arithmetic, or upgrade to Solidity 0.8.0+.",
		ConfidenceScore: 0.8,
		CweID:           "CWE-190",
		SwcID:           "SWC-101",
		DetectionSource: model.SourceStatic,
	}
}

func (r *IntegerOverflowRule) uncheckedBlockFinding(c *model.ParsedContract, fn *model.FunctionInfo) model.Finding {
	meta := r.Meta()
	lineNum := firstBodyLineMatching(fn, uncheckedRe)
	return model.Finding{
		RuleID:            meta.ID,
		RuleName:          meta.Name,
		VulnerabilityType: meta.Category,
		Severity:          model.SeverityMedium,
		Category:          meta.Category,
		Title:             "Unchecked arithmetic block in function: " + fn.Name,
		Description:       "The function uses an unchecked block, which disables overflow/underflow checks.",
		Location:          location(c, fn),
		LineNumber:        lineNum,
		CodeSnippet:       snippet(c.SourceCode, lineNum),
		Recommendation:    "Review unchecked blocks carefully; only disable checks where overflow is intentional.",
		ConfidenceScore:   0.7,
		CweID:             "CWE-190",
		SwcID:             "SWC-101",
		DetectionSource:   model.SourceStatic,
	}
}
