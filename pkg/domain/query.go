package domain

import "fmt"

// QueryGraph is the derived view a reasoner is bound to: an immutable ABox
// snapshot plus the precomputed closure of nested class sub-expressions.
// It is rebuilt once per structural change, never per query.
type QueryGraph struct {
	ModelID ModelID
	TBox    *TBox
	Version uint64
	Facts   []Fact
	// Expressions holds every asserted expression and its nested sub-expressions, keyed by canonical form.
	Expressions map[string]Expression

	asserted    map[IRI][]string
	relations   map[IRI][]Fact
	individuals []IRI
}

// BuildQueryGraph snapshots view and computes the expression closure.
func BuildQueryGraph(id ModelID, tbox *TBox, view GraphView, version uint64) (*QueryGraph, error) {
	facts := view.Facts()
	q := &QueryGraph{
		ModelID:     id,
		TBox:        tbox,
		Version:     version,
		Facts:       facts,
		Expressions: make(map[string]Expression),
		asserted:    make(map[IRI][]string),
		relations:   make(map[IRI][]Fact),
		individuals: view.Individuals(),
	}
	for _, f := range facts {
		switch f.Kind {
		case FactType:
			expr, err := ParseExpression(string(f.Object))
			if err != nil {
				return nil, fmt.Errorf("type of %s: %w", f.Subject, err)
			}
			key := expr.String()
			q.asserted[f.Subject] = append(q.asserted[f.Subject], key)
			for _, sub := range expr.SubExpressions() {
				q.Expressions[sub.String()] = sub
			}
		case FactRelation:
			q.relations[f.Subject] = append(q.relations[f.Subject], f)
		}
	}
	return q, nil
}

// Individuals returns the individuals present in the snapshot.
func (q *QueryGraph) Individuals() []IRI {
	return append([]IRI(nil), q.individuals...)
}

// HasIndividual reports whether iri occurs in the snapshot.
func (q *QueryGraph) HasIndividual(iri IRI) bool {
	for _, ind := range q.individuals {
		if ind == iri {
			return true
		}
	}
	return false
}

// AssertedTypes returns the asserted expressions of individual.
func (q *QueryGraph) AssertedTypes(individual IRI) []Expression {
	keys := q.asserted[individual]
	out := make([]Expression, 0, len(keys))
	for _, k := range keys {
		out = append(out, q.Expressions[k])
	}
	return out
}

// Relations returns the outgoing relation facts of individual.
func (q *QueryGraph) Relations(individual IRI) []Fact {
	return append([]Fact(nil), q.relations[individual]...)
}

// Restrict returns a copy limited to facts about the given individuals.
// It is the syntactic module extraction used by the module reasoner.
func (q *QueryGraph) Restrict(individuals []IRI) *QueryGraph {
	keep := make(map[IRI]struct{}, len(individuals))
	for _, ind := range individuals {
		keep[ind] = struct{}{}
	}
	facts := make([]Fact, 0, len(q.Facts))
	for _, f := range q.Facts {
		if _, ok := keep[f.Subject]; ok {
			facts = append(facts, f)
		}
	}
	sub, err := BuildQueryGraph(q.ModelID, q.TBox, NewGraph(facts...), q.Version)
	if err != nil {
		// facts were already parsed once when q was built
		panic(fmt.Errorf("restrict query graph: %w", err))
	}
	return sub
}
