package validation

import (
	"context"
	"fmt"

	"modelcore/pkg/domain"
)

// Validator combines reasoner consistency with shape rule conformance.
type Validator struct {
	engine *Engine
}

var _ domain.Validator = (*Validator)(nil)

// NewValidator returns a validator over engine; nil selects the default rules.
func NewValidator(engine *Engine) *Validator {
	if engine == nil {
		engine = NewDefaultEngine()
	}
	return &Validator{engine: engine}
}

// Validate implements domain.Validator. An inconsistent model is reported in
// the result, not as an error.
func (v *Validator) Validate(ctx context.Context, input domain.ValidationInput) (domain.ValidationResult, error) {
	if input.Graph == nil {
		return domain.ValidationResult{}, fmt.Errorf("validate: query graph required")
	}
	out := domain.Conformant()
	if input.Reasoner != nil {
		ok, err := input.Reasoner.IsConsistent(ctx)
		if err != nil {
			return domain.ValidationResult{}, fmt.Errorf("validate consistency: %w", err)
		}
		if !ok {
			out.OWLConsistent = false
			out.Violations = append(out.Violations, domain.Violation{
				Rule:     RuleConsistency,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("model %s is inconsistent: %v", input.Graph.ModelID, domain.ErrInconsistentState),
			})
		}
	}
	res, err := v.engine.Evaluate(ctx, input.Graph)
	if err != nil {
		return domain.ValidationResult{}, fmt.Errorf("validate shapes: %w", err)
	}
	out.ShapeConformant = !res.HasBlocking()
	out.Violations = append(out.Violations, res.Violations...)
	return out, nil
}
