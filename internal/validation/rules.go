package validation

import (
	"context"
	"fmt"

	"modelcore/pkg/domain"
)

// Built-in rule names.
const (
	RuleUndeclaredClass    = "undeclared_class"
	RuleUndeclaredProperty = "undeclared_property"
	RuleDanglingEndpoint   = "dangling_relation_endpoint"
	RuleAnnotationSubject  = "annotation_subject"
	RuleConsistency        = "owl_consistency"
)

// UndeclaredClassRule blocks type assertions naming classes missing from the TBox.
func UndeclaredClassRule() Rule { return undeclaredClassRule{} }

type undeclaredClassRule struct{}

func (undeclaredClassRule) Name() string { return RuleUndeclaredClass }

func (undeclaredClassRule) Evaluate(_ context.Context, q *domain.QueryGraph) (Result, error) {
	var res Result
	if q.TBox == nil {
		return res, nil
	}
	for _, ind := range q.Individuals() {
		for _, expr := range q.AssertedTypes(ind) {
			for _, class := range expr.NamedClasses() {
				if q.TBox.HasClass(class) {
					continue
				}
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     RuleUndeclaredClass,
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("class %s is not declared", class),
					Subject:  ind,
				})
			}
		}
	}
	return res, nil
}

// UndeclaredPropertyRule blocks relations and restrictions over undeclared
// object properties and warns on unknown annotation properties.
func UndeclaredPropertyRule() Rule { return undeclaredPropertyRule{} }

type undeclaredPropertyRule struct{}

func (undeclaredPropertyRule) Name() string { return RuleUndeclaredProperty }

func (undeclaredPropertyRule) Evaluate(_ context.Context, q *domain.QueryGraph) (Result, error) {
	var res Result
	if q.TBox == nil {
		return res, nil
	}
	block := func(subject, prop domain.IRI) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     RuleUndeclaredProperty,
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("object property %s is not declared", prop),
			Subject:  subject,
		})
	}
	for _, f := range q.Facts {
		switch f.Kind {
		case domain.FactRelation:
			if !q.TBox.HasProperty(f.Predicate) || q.TBox.IsAnnotationProperty(f.Predicate) {
				block(f.Subject, f.Predicate)
			}
		case domain.FactAnnotation:
			if !q.TBox.IsAnnotationProperty(f.Predicate) {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     RuleUndeclaredProperty,
					Severity: domain.SeverityLog,
					Message:  fmt.Sprintf("annotation property %s is not declared", f.Predicate),
					Subject:  f.Subject,
				})
			}
		}
	}
	for _, ind := range q.Individuals() {
		for _, expr := range q.AssertedTypes(ind) {
			for _, prop := range expr.Properties() {
				if !q.TBox.HasProperty(prop) {
					block(ind, prop)
				}
			}
		}
	}
	return res, nil
}

// DanglingEndpointRule blocks relations whose endpoints are neither declared
// nor typed individuals.
func DanglingEndpointRule() Rule { return danglingEndpointRule{} }

type danglingEndpointRule struct{}

func (danglingEndpointRule) Name() string { return RuleDanglingEndpoint }

func (danglingEndpointRule) Evaluate(_ context.Context, q *domain.QueryGraph) (Result, error) {
	declared := declaredIndividuals(q)
	var res Result
	for _, f := range q.Facts {
		if f.Kind != domain.FactRelation {
			continue
		}
		for _, end := range []domain.IRI{f.Subject, f.Object} {
			if _, ok := declared[end]; ok {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     RuleDanglingEndpoint,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("relation %s references undeclared individual %s", f, end),
				Subject:  end,
			})
		}
	}
	return res, nil
}

// AnnotationSubjectRule blocks annotations on subjects or relations absent
// from the model.
func AnnotationSubjectRule() Rule { return annotationSubjectRule{} }

type annotationSubjectRule struct{}

func (annotationSubjectRule) Name() string { return RuleAnnotationSubject }

func (annotationSubjectRule) Evaluate(_ context.Context, q *domain.QueryGraph) (Result, error) {
	declared := declaredIndividuals(q)
	relations := make(map[string]struct{})
	for _, f := range q.Facts {
		if f.Kind == domain.FactRelation {
			relations[f.Key()] = struct{}{}
		}
	}
	var res Result
	for _, f := range q.Facts {
		if f.Kind != domain.FactAnnotation {
			continue
		}
		if f.Target != "" {
			if _, ok := relations[f.Target]; !ok {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     RuleAnnotationSubject,
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("%s annotates a missing relation", f),
				})
			}
			continue
		}
		if f.Subject == domain.IRI(q.ModelID) {
			continue
		}
		if _, ok := declared[f.Subject]; !ok {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     RuleAnnotationSubject,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("%s annotates a missing subject", f),
				Subject:  f.Subject,
			})
		}
	}
	return res, nil
}

func declaredIndividuals(q *domain.QueryGraph) map[domain.IRI]struct{} {
	out := make(map[domain.IRI]struct{})
	for _, f := range q.Facts {
		if f.Kind == domain.FactIndividual || f.Kind == domain.FactType {
			out[f.Subject] = struct{}{}
		}
	}
	return out
}
