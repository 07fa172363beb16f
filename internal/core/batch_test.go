package core

import (
	"context"
	"errors"
	"testing"

	"modelcore/internal/codec"
	"modelcore/pkg/domain"
)

func TestExecuteCreatesModelAndUndoesAsOneUnit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	resp := f.reg.Execute(ctx, Request{
		Metadata: domain.Metadata{ActorID: testActor},
		Ops: []Op{
			{Kind: OpCreateBlankModel},
			{Kind: OpAddIndividual, Individual: "i1", Expression: string(classA)},
			{Kind: OpAddIndividual, Individual: "i2"},
			{Kind: OpAddRelation, Individual: "i1", Property: partOf, Object: "i2"},
			{Kind: OpAddAnnotation, Individual: "i1", Property: comment, Value: "hello"},
		},
		FlushReasoner: true,
	})
	if resp.Err != nil {
		t.Fatalf("execute: %v", resp.Err)
	}
	if resp.ModelID == "" || !resp.Modified || len(resp.Results) != 5 {
		t.Fatalf("unexpected response %+v", resp)
	}
	for _, r := range resp.Results {
		if !r.Applied {
			t.Fatalf("expected op %s applied", r.Kind)
		}
	}
	inst, _ := f.reg.Get(ctx, resp.ModelID)
	if inst.State() != StateReasonerBuilt {
		t.Fatalf("expected flushed reasoner, got %s", inst.State())
	}
	undo, _ := f.reg.UndoRedoState(resp.ModelID)
	if len(undo) != 1 || len(undo[0].Edits) != 5 || undo[0].Token == "" {
		t.Fatalf("expected one undo unit for the request, got %+v", undo)
	}

	again := f.reg.Execute(ctx, Request{ModelID: resp.ModelID, Ops: []Op{{Kind: OpUndo}}})
	if again.Err != nil || !again.Results[0].Applied {
		t.Fatalf("undo op: %+v", again)
	}
	if g := graphOf(t, f.reg, resp.ModelID); g.Contains(domain.IndividualFact("i1")) {
		t.Fatalf("expected the whole request undone, got %v", g.Facts())
	}
}

func TestExecuteStopsAtFirstError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.blank(t)
	resp := f.reg.Execute(ctx, Request{
		ModelID: id,
		Ops: []Op{
			{Kind: OpAddIndividual, Individual: "i1"},
			{Kind: OpAddType, Individual: "i1", Expression: "GO:missing"},
			{Kind: OpAddIndividual, Individual: "i2"},
		},
	})
	var unknown *domain.UnknownIdentifierError
	if !errors.As(resp.Err, &unknown) || unknown.Kind != domain.IdentifierClass {
		t.Fatalf("expected unknown class error, got %v", resp.Err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected one completed op, got %d", len(resp.Results))
	}
	g := graphOf(t, f.reg, id)
	if !g.Contains(domain.IndividualFact("i1")) || g.Contains(domain.IndividualFact("i2")) {
		t.Fatalf("unexpected graph after failed batch %v", g.Facts())
	}
	if !resp.Modified {
		t.Fatalf("expected modified flag reported")
	}
}

func TestExecuteSaveExportAndRawFacts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.blank(t)
	fact := domain.IndividualFact("raw")
	resp := f.reg.Execute(ctx, Request{
		ModelID: id,
		Ops: []Op{
			{Kind: OpAddFact, Fact: fact},
			{Kind: OpAddType, Individual: "raw", Expression: string(classB)},
			{Kind: OpRemoveType, Individual: "raw", Expression: string(classB)},
			{Kind: OpAddAnnotation, Individual: domain.IRI(id), Property: domain.TitleProperty, Value: "t"},
			{Kind: OpRemoveAnnotation, Individual: domain.IRI(id), Property: domain.TitleProperty, Value: "t"},
			{Kind: OpSave, ClearUndoHistory: true},
			{Kind: OpExport},
		},
	})
	if resp.Err != nil {
		t.Fatalf("execute: %v", resp.Err)
	}
	if resp.Modified {
		t.Fatalf("expected model saved")
	}
	data := resp.Results[len(resp.Results)-1].Data
	facts, err := codec.BytesToFacts(data, codec.FormatJSONL)
	if err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if facts[0] != domain.OntologyFact(id) || !domain.NewGraph(facts...).Contains(fact) {
		t.Fatalf("unexpected export %v", facts)
	}
	if undo, _ := f.reg.UndoRedoState(id); len(undo) != 0 {
		t.Fatalf("expected undo cleared by save op")
	}

	resp = f.reg.Execute(ctx, Request{ModelID: id, Ops: []Op{
		{Kind: OpRemoveFact, Fact: fact},
		{Kind: OpDeleteIndividual, Individual: "raw"},
	}})
	var unknown *domain.UnknownIdentifierError
	if !errors.As(resp.Err, &unknown) {
		t.Fatalf("expected delete of removed individual to fail, got %v", resp.Err)
	}
}

func TestExecuteRejectsMissingTargetAndUnknownOps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if resp := f.reg.Execute(ctx, Request{Ops: []Op{{Kind: OpSave}}}); !errors.Is(resp.Err, domain.ErrMalformedInput) {
		t.Fatalf("expected malformed input without model id, got %v", resp.Err)
	}
	id := f.blank(t)
	if resp := f.reg.Execute(ctx, Request{ModelID: id, Ops: []Op{{Kind: "rename"}}}); !errors.Is(resp.Err, domain.ErrMalformedInput) {
		t.Fatalf("expected malformed input for unknown op, got %v", resp.Err)
	}
	resp := f.reg.Execute(ctx, Request{ModelID: id, Ops: []Op{{Kind: OpRedo}, {Kind: OpRemoveRelation, Individual: "a", Property: partOf, Object: "b"}}})
	if resp.Err != nil || resp.Results[0].Applied || resp.Results[1].Applied {
		t.Fatalf("expected no-op results, got %+v", resp)
	}
}
