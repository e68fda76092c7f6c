// Package model holds the passive data structures shared across the
// analysis pipeline: the parsed contract, findings, and scan records.
package model

// ParsedContract is the queryable model produced by the structural parser.
// It is built once per scan and treated as immutable afterwards. All line
// numbers are 1-based and index into SourceCode exactly as supplied; no
// whitespace or line-ending normalization happens before indexing, so they
// are stable references for snippet extraction and UI highlighting.
type ParsedContract struct {
	// ContractName is the name of the first contract declaration found.
	ContractName string `json:"contract_name,omitempty"`

	// SolcVersion is the raw pragma version constraint (e.g. "^0.8.0").
	SolcVersion string `json:"solc_version,omitempty"`

	// SourceCode is the full original source text.
	SourceCode string `json:"source_code,omitempty"`

	// TotalLines counts the lines of SourceCode.
	TotalLines int `json:"total_lines"`

	// Imports lists import paths in declaration order.
	Imports []string `json:"imports,omitempty"`

	// InheritedContracts lists base contracts from the "is" clause.
	InheritedContracts []string `json:"inherited_contracts,omitempty"`

	Functions      []FunctionInfo      `json:"functions,omitempty"`
	Modifiers      []ModifierInfo      `json:"modifiers,omitempty"`
	StateVariables []StateVariableInfo `json:"state_variables,omitempty"`
	Events         []EventInfo         `json:"events,omitempty"`
}

// FunctionInfo describes one function declaration with its verbatim body.
type FunctionInfo struct {
	Name string `json:"name"`

	// Visibility is one of public, private, internal, external.
	Visibility string `json:"visibility"`

	// StateMutability is one of pure, view, payable, or empty (nonpayable).
	StateMutability string `json:"state_mutability,omitempty"`

	// Modifiers lists modifier names applied to the function.
	Modifiers []string `json:"modifiers,omitempty"`

	// Body is the verbatim source text from the declaration line through the
	// closing brace, including the declaration itself.
	Body string `json:"body,omitempty"`

	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`

	IsConstructor bool `json:"is_constructor,omitempty"`
	IsFallback    bool `json:"is_fallback,omitempty"`
	IsReceive     bool `json:"is_receive,omitempty"`
	IsPayable     bool `json:"is_payable,omitempty"`
}

// ModifierInfo describes one modifier declaration.
type ModifierInfo struct {
	Name      string `json:"name"`
	Body      string `json:"body,omitempty"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// StateVariableInfo describes one contract-level state variable.
type StateVariableInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Visibility  string `json:"visibility"`
	IsConstant  bool   `json:"is_constant,omitempty"`
	IsImmutable bool   `json:"is_immutable,omitempty"`
	LineNumber  int    `json:"line_number"`
}

// EventInfo describes one event declaration.
type EventInfo struct {
	Name       string `json:"name"`
	LineNumber int    `json:"line_number"`
}

// IsStateChanging reports whether the function may mutate contract state,
// judged by declared mutability only.
func (f *FunctionInfo) IsStateChanging() bool {
	return f.StateMutability != "pure" && f.StateMutability != "view"
}
