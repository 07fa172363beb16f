package domain

import (
	"errors"
	"testing"
)

func TestGraphAddRemoveKeepsInsertionOrder(t *testing.T) {
	a := IndividualFact("i1")
	b := TypeFact("i1", "C")
	c := RelationFact("i1", "partOf", "i2")
	g := NewGraph(a, b, c, b)
	if g.Len() != 3 {
		t.Fatalf("expected duplicates to collapse, got %d facts", g.Len())
	}
	if !g.Remove(b) {
		t.Fatalf("expected remove to report change")
	}
	if g.Remove(b) {
		t.Fatalf("expected second remove to be a no-op")
	}
	g.Add(b)
	facts := g.Facts()
	if facts[0] != a || facts[1] != c || facts[2] != b {
		t.Fatalf("unexpected order: %v", facts)
	}
	if got := g.BySubject("i1"); len(got) != 3 {
		t.Fatalf("expected 3 facts for i1, got %d", len(got))
	}
}

func TestGraphIndividualsAndOntologyID(t *testing.T) {
	g := NewGraph(OntologyFact("m1"), RelationFact("a", "p", "b"), TypeFact("c", "C"))
	id, ok := g.OntologyID()
	if !ok || id != "m1" {
		t.Fatalf("expected ontology id m1, got %q %v", id, ok)
	}
	inds := g.Individuals()
	if len(inds) != 3 || inds[0] != "a" || inds[1] != "b" || inds[2] != "c" {
		t.Fatalf("unexpected individuals: %v", inds)
	}
}

func TestGraphRelationAnnotationIndexedByTarget(t *testing.T) {
	rel := RelationFact("a", "p", "b")
	ann := RelationAnnotationFact(rel, "note", "x")
	g := NewGraph(rel, ann)
	got := g.BySubject(IRI(rel.Key()))
	if len(got) != 1 || got[0] != ann {
		t.Fatalf("expected relation annotation under target key, got %v", got)
	}
}

func TestGraphEqualIgnoresOrder(t *testing.T) {
	a := NewGraph(TypeFact("i", "C"), IndividualFact("i"))
	b := NewGraph(IndividualFact("i"), TypeFact("i", "C"))
	if !a.Equal(b) {
		t.Fatalf("expected equal graphs")
	}
	b.Add(TypeFact("i", "D"))
	if a.Equal(b) {
		t.Fatalf("expected graphs to differ")
	}
}

func TestFactValidate(t *testing.T) {
	cases := []struct {
		name string
		fact Fact
		ok   bool
	}{
		{"individual", IndividualFact("i"), true},
		{"type", TypeFact("i", "and(A, B)"), true},
		{"bad expression", TypeFact("i", "and(A"), false},
		{"relation without predicate", Fact{Kind: FactRelation, Subject: "a", Object: "b"}, false},
		{"annotation without target", Fact{Kind: FactAnnotation, Predicate: "p"}, false},
		{"annotation with both", Fact{Kind: FactAnnotation, Subject: "s", Target: "t", Predicate: "p"}, false},
		{"unknown kind", Fact{Kind: "bogus", Subject: "s"}, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			err := tc.fact.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatalf("expected error")
				}
				if !errors.Is(err, ErrMalformedInput) {
					t.Fatalf("expected malformed input, got %v", err)
				}
			}
		})
	}
}

func TestFactReferences(t *testing.T) {
	if !RelationFact("a", "p", "b").References("b") {
		t.Fatalf("expected relation object reference")
	}
	if !AnnotationFact("m", "see", "b").References("b") {
		t.Fatalf("expected annotation value reference")
	}
	if TypeFact("a", "b").References("b") {
		t.Fatalf("type object is a class, not an individual reference")
	}
}

func TestGraphReferencingIncludesRelationAnnotations(t *testing.T) {
	rel := RelationFact("a", "partOf", "b")
	g := NewGraph(
		IndividualFact("a"),
		IndividualFact("b"),
		TypeFact("b", "C"),
		rel,
		RelationAnnotationFact(rel, "evidence", "e1"),
		AnnotationFact("m", "see", "b"),
	)
	got := g.Referencing("b")
	// individual(b), type(b), relation, model annotation, relation annotation
	if len(got) != 5 {
		t.Fatalf("expected 5 referencing facts, got %d: %v", len(got), got)
	}
	if len(g.Referencing("zzz")) != 0 {
		t.Fatalf("expected no references to zzz")
	}
}
