package core

import (
	"context"

	"modelcore/pkg/domain"
)

func hasIndividual(view domain.GraphView, iri domain.IRI) bool {
	for _, ind := range view.Individuals() {
		if ind == iri {
			return true
		}
	}
	return false
}

func unknownIndividual(iri domain.IRI) error {
	return &domain.UnknownIdentifierError{Kind: domain.IdentifierIndividual, ID: string(iri)}
}

// resolveExpression parses expr and checks every class and property it names
// against the TBox.
func resolveExpression(tbox *domain.TBox, expr string) (domain.Expression, error) {
	parsed, err := domain.ParseExpression(expr)
	if err != nil {
		return domain.Expression{}, &domain.MalformedInputError{Source: expr, Reason: "class expression", Err: err}
	}
	if tbox == nil {
		return parsed, nil
	}
	for _, c := range parsed.NamedClasses() {
		if !tbox.HasClass(c) {
			return domain.Expression{}, &domain.UnknownIdentifierError{Kind: domain.IdentifierClass, ID: string(c)}
		}
	}
	for _, p := range parsed.Properties() {
		if !tbox.HasProperty(p) {
			return domain.Expression{}, &domain.UnknownIdentifierError{Kind: domain.IdentifierProperty, ID: string(p)}
		}
	}
	return parsed, nil
}

// AddFacts adds raw facts without resolving their identifiers.
func AddFacts(facts ...domain.Fact) EditProducer {
	return func(domain.GraphView) (domain.EditList, error) {
		out := make(domain.EditList, len(facts))
		for i, f := range facts {
			out[i] = domain.Add(f)
		}
		return out, nil
	}
}

// RemoveFacts removes raw facts. Absent facts are ignored. The ontology
// declaration and TBox imports belong to the model and cannot be removed.
func RemoveFacts(facts ...domain.Fact) EditProducer {
	return func(domain.GraphView) (domain.EditList, error) {
		out := make(domain.EditList, len(facts))
		for i, f := range facts {
			if f.Kind == domain.FactOntology || f.Kind == domain.FactImport {
				return nil, &domain.MalformedInputError{Source: f.String(), Reason: "model declaration facts cannot be removed"}
			}
			out[i] = domain.Remove(f)
		}
		return out, nil
	}
}

// AddIndividual declares individual with optional type expressions.
func AddIndividual(tbox *domain.TBox, individual domain.IRI, types ...string) EditProducer {
	return func(domain.GraphView) (domain.EditList, error) {
		edits := domain.EditList{domain.Add(domain.IndividualFact(individual))}
		for _, t := range types {
			expr, err := resolveExpression(tbox, t)
			if err != nil {
				return nil, err
			}
			edits = append(edits, domain.Add(domain.TypeFact(individual, expr.String())))
		}
		return edits, nil
	}
}

// DeleteIndividual removes individual together with every relation and
// annotation that references it as subject or value.
func DeleteIndividual(individual domain.IRI) EditProducer {
	return func(view domain.GraphView) (domain.EditList, error) {
		if !hasIndividual(view, individual) {
			return nil, unknownIndividual(individual)
		}
		refs := view.Referencing(individual)
		edits := make(domain.EditList, len(refs))
		for i, f := range refs {
			edits[i] = domain.Remove(f)
		}
		return edits, nil
	}
}

// AddType asserts a class expression on an existing individual.
func AddType(tbox *domain.TBox, individual domain.IRI, expr string) EditProducer {
	return func(view domain.GraphView) (domain.EditList, error) {
		if !hasIndividual(view, individual) {
			return nil, unknownIndividual(individual)
		}
		parsed, err := resolveExpression(tbox, expr)
		if err != nil {
			return nil, err
		}
		return domain.EditList{domain.Add(domain.TypeFact(individual, parsed.String()))}, nil
	}
}

// RemoveType retracts a class expression from an existing individual.
func RemoveType(individual domain.IRI, expr string) EditProducer {
	return func(view domain.GraphView) (domain.EditList, error) {
		if !hasIndividual(view, individual) {
			return nil, unknownIndividual(individual)
		}
		parsed, err := domain.ParseExpression(expr)
		if err != nil {
			return nil, &domain.MalformedInputError{Source: expr, Reason: "class expression", Err: err}
		}
		return domain.EditList{domain.Remove(domain.TypeFact(individual, parsed.String()))}, nil
	}
}

// AddRelation asserts subject -property-> object between existing individuals.
func AddRelation(tbox *domain.TBox, subject, property, object domain.IRI) EditProducer {
	return func(view domain.GraphView) (domain.EditList, error) {
		for _, ind := range []domain.IRI{subject, object} {
			if !hasIndividual(view, ind) {
				return nil, unknownIndividual(ind)
			}
		}
		if tbox != nil && !tbox.HasProperty(property) {
			return nil, &domain.UnknownIdentifierError{Kind: domain.IdentifierProperty, ID: string(property)}
		}
		return domain.EditList{domain.Add(domain.RelationFact(subject, property, object))}, nil
	}
}

// RemoveRelation retracts a relation and the annotations attached to it.
func RemoveRelation(subject, property, object domain.IRI) EditProducer {
	return func(view domain.GraphView) (domain.EditList, error) {
		rel := domain.RelationFact(subject, property, object)
		if !view.Contains(rel) {
			return nil, nil
		}
		edits := domain.EditList{}
		for _, ann := range view.BySubject(domain.IRI(rel.Key())) {
			edits = append(edits, domain.Remove(ann))
		}
		return append(edits, domain.Remove(rel)), nil
	}
}

// AddAnnotation annotates the model itself or an existing individual.
func AddAnnotation(model domain.ModelID, subject, property domain.IRI, value string) EditProducer {
	return func(view domain.GraphView) (domain.EditList, error) {
		if subject != domain.IRI(model) && !hasIndividual(view, subject) {
			return nil, unknownIndividual(subject)
		}
		return domain.EditList{domain.Add(domain.AnnotationFact(subject, property, value))}, nil
	}
}

// RemoveAnnotation retracts an annotation of the model or an individual.
func RemoveAnnotation(subject, property domain.IRI, value string) EditProducer {
	return func(domain.GraphView) (domain.EditList, error) {
		return domain.EditList{domain.Remove(domain.AnnotationFact(subject, property, value))}, nil
	}
}

// AddFact adds one raw fact to model id.
func (r *Registry) AddFact(ctx context.Context, id domain.ModelID, f domain.Fact, meta domain.Metadata) (MutationResult, error) {
	return r.ApplyMutation(ctx, id, AddFacts(f), false, meta)
}

// RemoveFact removes one raw fact from model id.
func (r *Registry) RemoveFact(ctx context.Context, id domain.ModelID, f domain.Fact, meta domain.Metadata) (MutationResult, error) {
	return r.ApplyMutation(ctx, id, RemoveFacts(f), false, meta)
}

// AddType asserts expr on individual and flushes the reasoner when flush is set.
func (r *Registry) AddType(ctx context.Context, id domain.ModelID, individual domain.IRI, expr string, flush bool, meta domain.Metadata) (MutationResult, error) {
	return r.ApplyMutation(ctx, id, AddType(r.tbox, individual, expr), flush, meta)
}

// RemoveType retracts expr from individual.
func (r *Registry) RemoveType(ctx context.Context, id domain.ModelID, individual domain.IRI, expr string, flush bool, meta domain.Metadata) (MutationResult, error) {
	return r.ApplyMutation(ctx, id, RemoveType(individual, expr), flush, meta)
}

// AddAnnotation annotates the model or one of its individuals.
func (r *Registry) AddAnnotation(ctx context.Context, id domain.ModelID, subject, property domain.IRI, value string, meta domain.Metadata) (MutationResult, error) {
	return r.ApplyMutation(ctx, id, AddAnnotation(id, subject, property, value), false, meta)
}

// RemoveAnnotation retracts an annotation.
func (r *Registry) RemoveAnnotation(ctx context.Context, id domain.ModelID, subject, property domain.IRI, value string, meta domain.Metadata) (MutationResult, error) {
	return r.ApplyMutation(ctx, id, RemoveAnnotation(subject, property, value), false, meta)
}

// DeleteIndividual removes individual and everything referencing it.
func (r *Registry) DeleteIndividual(ctx context.Context, id domain.ModelID, individual domain.IRI, flush bool, meta domain.Metadata) (MutationResult, error) {
	return r.ApplyMutation(ctx, id, DeleteIndividual(individual), flush, meta)
}
