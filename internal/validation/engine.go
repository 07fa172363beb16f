// Package validation checks models for shape conformance and combines the
// result with reasoner consistency.
package validation

import (
	"context"

	"modelcore/pkg/domain"
)

// Result aggregates rule violations.
type Result struct {
	Violations []domain.Violation
}

// Merge appends violations from other.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking reports whether any violation is blocking.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == domain.SeverityBlock {
			return true
		}
	}
	return false
}

// Rule is one shape check over a query graph snapshot.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, graph *domain.QueryGraph) (Result, error)
}

// Engine orchestrates rule evaluation.
type Engine struct {
	rules []Rule
}

// NewEngine constructs an engine without rules.
func NewEngine() *Engine {
	return &Engine{}
}

// NewDefaultEngine builds an engine with the built-in shape rules.
func NewDefaultEngine() *Engine {
	engine := NewEngine()
	engine.Register(UndeclaredClassRule())
	engine.Register(UndeclaredPropertyRule())
	engine.Register(DanglingEndpointRule())
	engine.Register(AnnotationSubjectRule())
	return engine
}

// Register appends a rule to the engine.
func (e *Engine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rule names in evaluation order.
func (e *Engine) Rules() []string {
	out := make([]string, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.Name()
	}
	return out
}

// Evaluate executes all registered rules and aggregates their results.
func (e *Engine) Evaluate(ctx context.Context, graph *domain.QueryGraph) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, graph)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}
