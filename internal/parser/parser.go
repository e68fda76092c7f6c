// Package parser turns raw Solidity source text into a queryable
// model.ParsedContract. It is a tolerant line/regex/brace scanner, not a real
// AST builder: it locates constructs with line-accurate boundaries at low
// cost and degrades to a partial model on structurally broken input instead
// of failing. Known gap: the brace counter is not comment/string aware, so a
// literal brace inside a string or comment can mis-close a body.
package parser

import (
	"regexp"
	"strings"

	"github.com/oyerishi/smart-contract-auditor/internal/model"
)

var (
	contractRe = regexp.MustCompile(`contract\s+(\w+)(?:\s+is\s+([\w,\s]+))?\s*\{`)
	pragmaRe   = regexp.MustCompile(`pragma\s+solidity\s+([^;]+);`)
	importRe   = regexp.MustCompile(`import\s+["']([^"']+)["']`)
	funcNameRe = regexp.MustCompile(`function\s+(\w+)`)
	modifierRe = regexp.MustCompile(`modifier\s+(\w+)`)
	eventRe    = regexp.MustCompile(`event\s+(\w+)`)
	stateVarRe = regexp.MustCompile(`^(uint\d*|int\d*|bool|address(?:\s+payable)?|string|bytes\d*|mapping\([^)]+\))\s+(?:(public|private|internal)\s+)?(?:(constant|immutable)\s+)?(\w+)`)
	wordRe     = regexp.MustCompile(`\w+`)
)

// declKeywords are tokens that can trail a function signature and must not be
// mistaken for modifier names.
var declKeywords = map[string]bool{
	"public": true, "private": true, "internal": true, "external": true,
	"pure": true, "view": true, "payable": true, "returns": true,
	"virtual": true, "override": true, "memory": true, "calldata": true,
	"storage": true, "is": true,
}

// Parse builds a contract model from source. It never fails: missing pragma,
// missing contract keyword, or unbalanced braces yield a best-effort partial
// model, because the rule engine tolerates missing fields and a scan should
// not die on a text-extraction problem the rules can route around.
func Parse(source string) *model.ParsedContract {
	pc := &model.ParsedContract{
		SourceCode: source,
		TotalLines: countLines(source),
	}

	if m := contractRe.FindStringSubmatch(source); m != nil {
		pc.ContractName = m[1]
		if m[2] != "" {
			for _, base := range strings.Split(m[2], ",") {
				if b := strings.TrimSpace(base); b != "" {
					pc.InheritedContracts = append(pc.InheritedContracts, b)
				}
			}
		}
	}
	if m := pragmaRe.FindStringSubmatch(source); m != nil {
		pc.SolcVersion = strings.TrimSpace(m[1])
	}
	for _, m := range importRe.FindAllStringSubmatch(source, -1) {
		pc.Imports = append(pc.Imports, m[1])
	}

	lines := strings.Split(source, "\n")
	pc.Functions = extractFunctions(lines)
	pc.Modifiers = extractModifiers(lines)
	pc.StateVariables = extractStateVariables(lines)
	pc.Events = extractEvents(lines)

	return pc
}

// LooksLikeSolidity is an advisory upload-time check; the parser itself
// accepts anything.
func LooksLikeSolidity(source string) bool {
	if strings.TrimSpace(source) == "" {
		return false
	}
	return strings.Contains(source, "pragma solidity") &&
		(strings.Contains(source, "contract") ||
			strings.Contains(source, "interface") ||
			strings.Contains(source, "library"))
}

func countLines(source string) int {
	if source == "" {
		return 0
	}
	return strings.Count(source, "\n") + 1
}

func isDeclarationLine(trimmed string) bool {
	// Comment lines can mention "function" without declaring one.
	if strings.HasPrefix(trimmed, "//") ||
		strings.HasPrefix(trimmed, "/*") ||
		strings.HasPrefix(trimmed, "*") {
		return false
	}
	return strings.HasPrefix(trimmed, "function") ||
		strings.Contains(trimmed, " function ") ||
		strings.HasPrefix(trimmed, "constructor") ||
		strings.HasPrefix(trimmed, "fallback") ||
		strings.HasPrefix(trimmed, "receive")
}

func extractFunctions(lines []string) []model.FunctionInfo {
	var functions []model.FunctionInfo
	for i, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		if !isDeclarationLine(trimmed) {
			continue
		}
		fn, ok := parseFunctionDeclaration(trimmed)
		if !ok {
			continue
		}
		fn.StartLine = i + 1
		fn.EndLine, fn.Body = captureBody(lines, i)
		functions = append(functions, fn)
	}
	return functions
}

// parseFunctionDeclaration reads name, visibility, mutability, and modifiers
// off a single declaration line.
func parseFunctionDeclaration(decl string) (model.FunctionInfo, bool) {
	var fn model.FunctionInfo

	switch {
	case strings.HasPrefix(decl, "constructor"):
		fn.Name = "constructor"
		fn.IsConstructor = true
	case strings.HasPrefix(decl, "fallback"):
		fn.Name = "fallback"
		fn.IsFallback = true
	case strings.HasPrefix(decl, "receive"):
		fn.Name = "receive"
		fn.IsReceive = true
	default:
		m := funcNameRe.FindStringSubmatch(decl)
		if m == nil {
			return fn, false
		}
		fn.Name = m[1]
	}

	switch {
	case strings.Contains(decl, "public"):
		fn.Visibility = "public"
	case strings.Contains(decl, "private"):
		fn.Visibility = "private"
	case strings.Contains(decl, "internal"):
		fn.Visibility = "internal"
	case strings.Contains(decl, "external"):
		fn.Visibility = "external"
	default:
		fn.Visibility = "public"
	}

	switch {
	case strings.Contains(decl, "pure"):
		fn.StateMutability = "pure"
	case strings.Contains(decl, "view"):
		fn.StateMutability = "view"
	case strings.Contains(decl, "payable"):
		fn.StateMutability = "payable"
		fn.IsPayable = true
	}

	fn.Modifiers = extractDeclModifiers(decl)
	return fn, true
}

// extractDeclModifiers picks modifier names out of the signature tail: word
// tokens after the parameter list that are neither language keywords nor
// part of a returns clause.
func extractDeclModifiers(decl string) []string {
	closeParen := strings.Index(decl, ")")
	if closeParen < 0 {
		return nil
	}
	tail := decl[closeParen+1:]
	if brace := strings.Index(tail, "{"); brace >= 0 {
		tail = tail[:brace]
	}
	if ret := strings.Index(tail, "returns"); ret >= 0 {
		tail = tail[:ret]
	}

	var mods []string
	for _, tok := range wordRe.FindAllString(tail, -1) {
		if !declKeywords[tok] {
			mods = append(mods, tok)
		}
	}
	return mods
}

// captureBody tracks brace depth from the declaration line until the opening
// brace closes, returning the 1-based end line and the verbatim body. A
// declaration that ends in ";" before any brace (interface member) has a
// one-line body; unbalanced input runs to the last line.
func captureBody(lines []string, start int) (endLine int, body string) {
	depth := 0
	opened := false
	var b strings.Builder

	for j := start; j < len(lines); j++ {
		line := lines[j]
		b.WriteString(line)
		b.WriteString("\n")

		for _, c := range line {
			switch c {
			case '{':
				depth++
				opened = true
			case '}':
				depth--
			}
		}

		if opened && depth <= 0 {
			return j + 1, b.String()
		}
		if !opened && strings.Contains(line, ";") {
			return j + 1, b.String()
		}
	}
	return len(lines), b.String()
}

func extractModifiers(lines []string) []model.ModifierInfo {
	var modifiers []model.ModifierInfo
	for i, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		if !strings.HasPrefix(trimmed, "modifier") {
			continue
		}
		m := modifierRe.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		end, body := captureBody(lines, i)
		modifiers = append(modifiers, model.ModifierInfo{
			Name:      m[1],
			Body:      body,
			StartLine: i + 1,
			EndLine:   end,
		})
	}
	return modifiers
}

func extractStateVariables(lines []string) []model.StateVariableInfo {
	var variables []model.StateVariableInfo
	for i, raw := range lines {
		trimmed := strings.TrimSpace(raw)

		// Declaration lines would match on their parameter lists.
		if isDeclarationLine(trimmed) ||
			strings.HasPrefix(trimmed, "modifier") ||
			strings.HasPrefix(trimmed, "event") {
			continue
		}

		m := stateVarRe.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		visibility := m[2]
		if visibility == "" {
			visibility = "internal"
		}
		variables = append(variables, model.StateVariableInfo{
			Name:        m[4],
			Type:        m[1],
			Visibility:  visibility,
			IsConstant:  strings.Contains(trimmed, "constant"),
			IsImmutable: strings.Contains(trimmed, "immutable"),
			LineNumber:  i + 1,
		})
	}
	return variables
}

func extractEvents(lines []string) []model.EventInfo {
	var events []model.EventInfo
	for i, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		if !strings.HasPrefix(trimmed, "event") {
			continue
		}
		m := eventRe.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		events = append(events, model.EventInfo{Name: m[1], LineNumber: i + 1})
	}
	return events
}
