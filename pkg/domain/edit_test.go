package domain

import (
	"encoding/json"
	"testing"
)

func TestEditListInvertIsReversedAndFlipped(t *testing.T) {
	list := EditList{Add(TypeFact("i", "C")), Remove(IndividualFact("j")), Add(RelationFact("i", "p", "j"))}
	inv := list.Invert()
	if len(inv) != 3 {
		t.Fatalf("expected 3 edits, got %d", len(inv))
	}
	if inv[0] != Remove(RelationFact("i", "p", "j")) || inv[1] != Add(IndividualFact("j")) || inv[2] != Remove(TypeFact("i", "C")) {
		t.Fatalf("unexpected inverse: %v", inv)
	}
}

func TestEditListApplyThenInverseRestores(t *testing.T) {
	g := NewGraph(IndividualFact("j"))
	before := g.Clone()
	list := EditList{Add(TypeFact("i", "C")), Remove(IndividualFact("j")), Add(RelationFact("i", "p", "j"))}
	for _, e := range list {
		g.Apply(e)
	}
	for _, e := range list.Invert() {
		g.Apply(e)
	}
	if !g.Equal(before) {
		t.Fatalf("expected inverse to restore graph, got %v", g.Facts())
	}
}

func TestEditListEffectiveDropsNoOps(t *testing.T) {
	g := NewGraph(TypeFact("i", "C"))
	list := EditList{
		Add(TypeFact("i", "C")),    // present already
		Remove(TypeFact("i", "D")), // absent
		Add(TypeFact("i", "D")),    // effective
		Add(TypeFact("i", "D")),    // now present
		Remove(TypeFact("i", "C")), // effective
		Remove(TypeFact("i", "C")), // now absent
	}
	eff := list.Effective(g)
	if len(eff) != 2 {
		t.Fatalf("expected 2 effective edits, got %v", eff)
	}
	if eff[0] != Add(TypeFact("i", "D")) || eff[1] != Remove(TypeFact("i", "C")) {
		t.Fatalf("unexpected effective edits: %v", eff)
	}
}

func TestEditOpJSON(t *testing.T) {
	b, err := json.Marshal(Add(IndividualFact("i")))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var e Edit
	if err := json.Unmarshal(b, &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.Op != EditAdd {
		t.Fatalf("expected add op, got %v", e.Op)
	}
	if err := json.Unmarshal([]byte(`{"op":"flip","fact":{"kind":"individual","subject":"i"}}`), &e); err == nil {
		t.Fatalf("expected unknown op error")
	}
}

func TestChangeEventWithActorCopies(t *testing.T) {
	ev := ChangeEvent{ActorID: "alice", Edits: EditList{Add(IndividualFact("i"))}}
	cp := ev.WithActor("bob")
	cp.Edits[0] = Remove(IndividualFact("i"))
	if ev.Edits[0].Op != EditAdd || ev.ActorID != "alice" {
		t.Fatalf("expected original event untouched")
	}
	if cp.ActorID != "bob" {
		t.Fatalf("expected actor bob, got %s", cp.ActorID)
	}
}
