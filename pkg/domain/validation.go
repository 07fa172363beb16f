package domain

// Severity defines rule violation severity levels.
type Severity string

const (
	// SeverityBlock marks a violation that makes the model non-conformant.
	SeverityBlock Severity = "block"
	// SeverityWarn marks a violation that is reported but tolerated.
	SeverityWarn Severity = "warn"
	// SeverityLog marks an informational finding.
	SeverityLog Severity = "log"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Subject  IRI      `json:"subject,omitempty"`
}

// ValidationResult aggregates reasoner consistency and shape conformance.
type ValidationResult struct {
	OWLConsistent   bool        `json:"owl_consistent"`
	ShapeConformant bool        `json:"shape_conformant"`
	Violations      []Violation `json:"violations,omitempty"`
}

// Merge appends the violations of other and combines the flags.
func (r *ValidationResult) Merge(other ValidationResult) {
	r.OWLConsistent = r.OWLConsistent && other.OWLConsistent
	r.ShapeConformant = r.ShapeConformant && other.ShapeConformant
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking reports whether any violation is blocking.
func (r ValidationResult) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Valid reports whether the model is both consistent and conformant.
func (r ValidationResult) Valid() bool {
	return r.OWLConsistent && r.ShapeConformant
}

// Conformant returns an empty passing result to merge into.
func Conformant() ValidationResult {
	return ValidationResult{OWLConsistent: true, ShapeConformant: true}
}
