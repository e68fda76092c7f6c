package rules

import (
	"fmt"

	"github.com/oyerishi/smart-contract-auditor/internal/logging"
	"github.com/oyerishi/smart-contract-auditor/internal/model"
)

// Engine runs the builtin rule set against a parsed contract.
//
// Rules run sequentially in registration order. Deduplication downstream
// breaks confidence ties by insertion order, so the order here must stay
// deterministic.
type Engine struct {
	rules  []Rule
	logger logging.Logger
}

// NewEngine builds an engine with the full builtin rule set.
func NewEngine(logger logging.Logger) *Engine {
	return &Engine{
		rules: []Rule{
			&ReentrancyRule{},
			&UncheckedCallRule{},
			&AccessControlRule{},
			&IntegerOverflowRule{},
			&RandomnessRule{},
		},
		logger: logger,
	}
}

// Rules exposes the registered rule set (for listing/reporting).
func (e *Engine) Rules() []Rule { return e.rules }

// Run executes every rule unconditionally and concatenates their findings.
// A panic inside one rule is recovered, logged, and that rule's contribution
// treated as empty; analysis failures never fail the scan.
func (e *Engine) Run(c *model.ParsedContract) []model.Finding {
	findings := make([]model.Finding, 0)
	for _, r := range e.rules {
		findings = append(findings, e.runOne(r, c)...)
	}
	return findings
}

func (e *Engine) runOne(r Rule, c *model.ParsedContract) (out []model.Finding) {
	defer func() {
		if rec := recover(); rec != nil {
			if e.logger != nil {
				e.logger.Error("rule panicked, skipping its findings",
					logging.Field{Key: "rule", Value: r.Meta().ID},
					logging.Field{Key: "panic", Value: fmt.Sprint(rec)})
			}
			out = nil
		}
	}()
	return r.Analyze(c)
}
