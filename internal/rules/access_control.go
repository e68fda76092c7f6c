package rules

import (
	"regexp"

	"github.com/oyerishi/smart-contract-auditor/internal/model"
)

var (
	txOriginRe      = regexp.MustCompile(`tx\.origin`)
	selfdestructRe  = regexp.MustCompile(`selfdestruct\s*\(`)
	delegatecallRe  = regexp.MustCompile(`\.delegatecall\s*[({]`)
	requireSenderRe = regexp.MustCompile(`require\s*\(.*msg\.sender`)
	requireOwnerRe  = regexp.MustCompile(`require\s*\(.*owner`)
	onlyOwnerRe     = regexp.MustCompile(`onlyOwner`)
)

// AccessControlRule covers the authorization checks: tx.origin misuse,
// unprotected selfdestruct/delegatecall, and state-changing public functions
// without any gate at all.
type AccessControlRule struct{}

func (r *AccessControlRule) Meta() Meta {
	return Meta{
		ID:       "AC001",
		Name:     "Access Control Issues",
		Severity: model.SeverityHigh,
		Category: "Access Control",
	}
}

func (r *AccessControlRule) Analyze(c *model.ParsedContract) []model.Finding {
	var findings []model.Finding

	for fi := range c.Functions {
		fn := &c.Functions[fi]
		if fn.Body == "" {
			continue
		}

		if txOriginRe.MatchString(fn.Body) {
			findings = append(findings, r.txOriginFinding(c, fn))
		}

		guarded := hasAccessControl(fn)

		if selfdestructRe.MatchString(fn.Body) && !guarded {
			findings = append(findings, r.unprotectedFinding(c, fn,
				"selfdestruct", selfdestructRe,
				"The function contains a selfdestruct call without access control. Anyone can destroy the contract and drain its funds.",
				"Add an access control modifier (e.g. onlyOwner) to restrict who can call selfdestruct."))
		}

		if delegatecallRe.MatchString(fn.Body) && !guarded {
			findings = append(findings, r.unprotectedFinding(c, fn,
				"delegatecall", delegatecallRe,
				"The function uses delegatecall without access control. Delegatecall executes foreign code in the calling contract's context and can lead to complete takeover.",
				"Restrict delegatecall to trusted addresses behind strict access control."))
		}

		if fn.IsStateChanging() && !fn.IsConstructor && !guarded &&
			(fn.Visibility == "public" || fn.Visibility == "external") {
			findings = append(findings, r.missingControlFinding(c, fn))
		}
	}
	return findings
}

// hasAccessControl treats either an applied modifier or a require on
// msg.sender/owner as a gate.
func hasAccessControl(fn *model.FunctionInfo) bool {
	if len(fn.Modifiers) > 0 {
		return true
	}
	if fn.Body == "" {
		return false
	}
	return requireSenderRe.MatchString(fn.Body) ||
		requireOwnerRe.MatchString(fn.Body) ||
		onlyOwnerRe.MatchString(fn.Body)
}

func (r *AccessControlRule) txOriginFinding(c *model.ParsedContract, fn *model.FunctionInfo) model.Finding {
	meta := r.Meta()
	lineNum := firstBodyLineMatching(fn, txOriginRe)
	return model.Finding{
		RuleID:            meta.ID,
		RuleName:          meta.Name,
		VulnerabilityType: meta.Category,
		Severity:          model.SeverityHigh,
		Category:          meta.Category,
		Title:             "Use of tx.origin for authorization in function: " + fn.Name,
		Description: "The function uses tx.origin for authorization. This can be exploited " +
			"through phishing where users are tricked into calling a malicious contract.",
		Location:        location(c, fn),
		LineNumber:      lineNum,
		CodeSnippet:     snippet(c.SourceCode, lineNum),
		Recommendation:  "Replace tx.origin with msg.sender for access control checks.",
		ConfidenceScore: 0.95,
		CweID:           "CWE-863",
		SwcID:           "SWC-115",
		DetectionSource: model.SourceStatic,
	}
}

func (r *AccessControlRule) unprotectedFinding(c *model.ParsedContract, fn *model.FunctionInfo,
	what string, re *regexp.Regexp, description, recommendation string) model.Finding {
	meta := r.Meta()
	lineNum := firstBodyLineMatching(fn, re)
	return model.Finding{
		RuleID:            meta.ID,
		RuleName:          meta.Name,
		VulnerabilityType: meta.Category,
		Severity:          model.SeverityCritical,
		Category:          meta.Category,
		Title:             "Unprotected " + what + " in function: " + fn.Name,
		Description:       description,
		Location:          location(c, fn),
		LineNumber:        lineNum,
		CodeSnippet:       snippet(c.SourceCode, lineNum),
		Recommendation:    recommendation,
		ConfidenceScore:   0.9,
		CweID:             "CWE-284",
		SwcID:             "SWC-106",
		DetectionSource:   model.SourceStatic,
	}
}

func (r *AccessControlRule) missingControlFinding(c *model.ParsedContract, fn *model.FunctionInfo) model.Finding {
	meta := r.Meta()
	return model.Finding{
		RuleID:            meta.ID,
		RuleName:          meta.Name,
		VulnerabilityType: meta.Category,
		Severity:          model.SeverityMedium,
		Category:          meta.Category,
		Title:             "Missing access control in function: " + fn.Name,
		Description: "The " + fn.Visibility + " function '" + fn.Name + "' modifies contract " +
			"state but has no access control mechanism.",
		Location:        location(c, fn),
		LineNumber:      fn.StartLine,
		CodeSnippet:     snippet(c.SourceCode, fn.StartLine),
		Recommendation:  "Add an access control modifier or a require statement restricting callers.",
		ConfidenceScore: 0.7,
		CweID:           "CWE-284",
		DetectionSource: model.SourceStatic,
	}
}
