// Package rules implements the static vulnerability detectors. Each rule is
// an independent pure function over the parsed contract model; the engine
// runs the fixed set and isolates failures so one rule can never abort the
// others.
package rules

import (
	"regexp"
	"strings"

	"github.com/oyerishi/smart-contract-auditor/internal/model"
)

// Rule is one detector in the closed rule set.
type Rule interface {
	// Meta describes the rule.
	Meta() Meta

	// Analyze inspects the contract and returns zero or more findings.
	// Rules never observe or mutate each other's findings.
	Analyze(c *model.ParsedContract) []model.Finding
}

// Meta is the static identity of a rule.
type Meta struct {
	ID       string
	Name     string
	Severity model.Severity
	Category string
}

// snippetContext is the number of lines kept on each side of the triggering
// line when extracting a code snippet.
const snippetContext = 1

// snippet returns the source lines around line (1-based), clamped to the
// source bounds.
func snippet(source string, line int) string {
	if source == "" || line < 1 {
		return ""
	}
	lines := strings.Split(source, "\n")
	start := line - snippetContext - 1
	if start < 0 {
		start = 0
	}
	end := line + snippetContext
	if end > len(lines) {
		end = len(lines)
	}
	if start >= len(lines) {
		return ""
	}
	return strings.Join(lines[start:end], "\n")
}

// bodyLines splits a function body; index i corresponds to absolute source
// line fn.StartLine + i because the body starts at the declaration line.
func bodyLines(fn *model.FunctionInfo) []string {
	if fn.Body == "" {
		return nil
	}
	return strings.Split(fn.Body, "\n")
}

// location formats "Contract.function".
func location(c *model.ParsedContract, fn *model.FunctionInfo) string {
	name := c.ContractName
	if name == "" {
		name = "contract"
	}
	return name + "." + fn.Name
}

// firstBodyLineMatching returns the absolute 1-based line of the first body
// line matching re, or fn.StartLine when nothing matches.
func firstBodyLineMatching(fn *model.FunctionInfo, re *regexp.Regexp) int {
	for i, l := range bodyLines(fn) {
		if re.MatchString(l) {
			return fn.StartLine + i
		}
	}
	return fn.StartLine
}
