package domain

import "sort"

// GraphView is the read-only surface of a fact graph handed to edit
// producers, rules and reasoners.
type GraphView interface {
	Len() int
	Contains(f Fact) bool
	Facts() []Fact
	BySubject(subject IRI) []Fact
	Referencing(iri IRI) []Fact
	Individuals() []IRI
	OntologyID() (ModelID, bool)
}

type graphEntry struct {
	fact Fact
	seq  uint64
}

// Graph is an insertion-ordered set of facts indexed by subject.
// It is not safe for concurrent use; owners guard it with their own lock.
type Graph struct {
	entries   map[string]graphEntry
	bySubject map[IRI]map[string]struct{}
	next      uint64
}

var _ GraphView = (*Graph)(nil)

// NewGraph returns a graph holding facts in the given order. Duplicates collapse.
func NewGraph(facts ...Fact) *Graph {
	g := &Graph{
		entries:   make(map[string]graphEntry, len(facts)),
		bySubject: make(map[IRI]map[string]struct{}),
	}
	for _, f := range facts {
		g.Add(f)
	}
	return g
}

// Len returns the number of facts.
func (g *Graph) Len() int { return len(g.entries) }

// Contains reports whether f is present.
func (g *Graph) Contains(f Fact) bool {
	_, ok := g.entries[f.Key()]
	return ok
}

// Add inserts f and reports whether the graph changed.
func (g *Graph) Add(f Fact) bool {
	key := f.Key()
	if _, ok := g.entries[key]; ok {
		return false
	}
	g.next++
	g.entries[key] = graphEntry{fact: f, seq: g.next}
	subject := indexSubject(f)
	set, ok := g.bySubject[subject]
	if !ok {
		set = make(map[string]struct{})
		g.bySubject[subject] = set
	}
	set[key] = struct{}{}
	return true
}

// Remove deletes f and reports whether the graph changed.
func (g *Graph) Remove(f Fact) bool {
	key := f.Key()
	if _, ok := g.entries[key]; !ok {
		return false
	}
	delete(g.entries, key)
	subject := indexSubject(f)
	if set, ok := g.bySubject[subject]; ok {
		delete(set, key)
		if len(set) == 0 {
			delete(g.bySubject, subject)
		}
	}
	return true
}

// Apply performs a single edit and reports whether the graph changed.
func (g *Graph) Apply(e Edit) bool {
	switch e.Op {
	case EditAdd:
		return g.Add(e.Fact)
	case EditRemove:
		return g.Remove(e.Fact)
	}
	return false
}

// Facts returns all facts in insertion order.
func (g *Graph) Facts() []Fact {
	entries := make([]graphEntry, 0, len(g.entries))
	for _, e := range g.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]Fact, len(entries))
	for i, e := range entries {
		out[i] = e.fact
	}
	return out
}

// BySubject returns the facts whose subject is subject, in insertion order.
// Relation annotations are indexed under their Target key.
func (g *Graph) BySubject(subject IRI) []Fact {
	set := g.bySubject[subject]
	entries := make([]graphEntry, 0, len(set))
	for key := range set {
		entries = append(entries, g.entries[key])
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]Fact, len(entries))
	for i, e := range entries {
		out[i] = e.fact
	}
	return out
}

// Referencing returns every fact that mentions iri as subject or value, plus
// the annotations attached to relations among those facts, in insertion order.
func (g *Graph) Referencing(iri IRI) []Fact {
	var out []Fact
	relKeys := make(map[string]struct{})
	for _, f := range g.Facts() {
		if f.References(iri) {
			out = append(out, f)
			if f.Kind == FactRelation {
				relKeys[f.Key()] = struct{}{}
			}
		}
	}
	for key := range relKeys {
		for _, ann := range g.BySubject(IRI(key)) {
			if !ann.References(iri) {
				out = append(out, ann)
			}
		}
	}
	return out
}

// Individuals returns every declared or asserted individual, sorted.
func (g *Graph) Individuals() []IRI {
	seen := make(map[IRI]struct{})
	for _, e := range g.entries {
		switch e.fact.Kind {
		case FactIndividual, FactType:
			seen[e.fact.Subject] = struct{}{}
		case FactRelation:
			seen[e.fact.Subject] = struct{}{}
			seen[e.fact.Object] = struct{}{}
		}
	}
	out := make([]IRI, 0, len(seen))
	for iri := range seen {
		out = append(out, iri)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// OntologyID returns the self-declared identifier when exactly one is present
// or the first declared one otherwise.
func (g *Graph) OntologyID() (ModelID, bool) {
	for _, f := range g.Facts() {
		if f.Kind == FactOntology {
			return ModelID(f.Subject), true
		}
	}
	return "", false
}

// Clone returns an independent copy preserving insertion order.
func (g *Graph) Clone() *Graph {
	return NewGraph(g.Facts()...)
}

// Equal reports set equality, ignoring order.
func (g *Graph) Equal(other GraphView) bool {
	if other == nil || g.Len() != other.Len() {
		return false
	}
	for _, f := range other.Facts() {
		if !g.Contains(f) {
			return false
		}
	}
	return true
}

func indexSubject(f Fact) IRI {
	if f.Kind == FactAnnotation && f.Target != "" {
		return IRI(f.Target)
	}
	return f.Subject
}
