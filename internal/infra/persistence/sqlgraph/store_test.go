package sqlgraph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"modelcore/internal/infra/persistence/postgres/testutil"
	"modelcore/pkg/domain"
)

func newStubStore(t *testing.T, numbered bool) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	store, err := New(context.Background(), db, Dialect{Name: "stub", Numbered: numbered})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store, conn
}

func collect(t *testing.T, store *Store, id domain.ModelID) []domain.Fact {
	t.Helper()
	var out []domain.Fact
	if err := store.ExportFacts(context.Background(), id, func(f domain.Fact) error {
		out = append(out, f)
		return nil
	}); err != nil {
		t.Fatalf("export %s: %v", id, err)
	}
	return out
}

func TestNewAppliesSchema(t *testing.T) {
	_, conn := newStubStore(t, false)
	var creates int
	for _, stmt := range conn.Execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE") {
			creates++
		}
	}
	if creates != len(Schema) {
		t.Fatalf("expected %d schema statements, got execs: %v", len(Schema), conn.Execs)
	}
}

func TestClearAddCommitAndExportInOrder(t *testing.T) {
	ctx := context.Background()
	store, _ := newStubStore(t, true)
	facts := []domain.Fact{
		domain.OntologyFact("m1"),
		domain.TypeFact("i1", "C"),
		domain.RelationFact("i1", "partOf", "i2"),
	}
	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.Clear(ctx, "m1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := tx.AddFacts(ctx, "m1", facts[:2]); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := tx.AddFacts(ctx, "m1", facts[2:]); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	got := collect(t, store, "m1")
	if len(got) != 3 || got[0] != facts[0] || got[2] != facts[2] {
		t.Fatalf("unexpected export: %v", got)
	}

	// appending in a later transaction continues the sequence
	tx, _ = store.Begin(ctx)
	if err := tx.AddFacts(ctx, "m1", []domain.Fact{domain.IndividualFact("i3")}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got := collect(t, store, "m1"); len(got) != 4 || got[3] != domain.IndividualFact("i3") {
		t.Fatalf("unexpected export after append: %v", got)
	}
}

func TestRollbackLeavesPartitionIntact(t *testing.T) {
	ctx := context.Background()
	store, conn := newStubStore(t, false)
	tx, _ := store.Begin(ctx)
	_ = tx.Clear(ctx, "m1")
	_ = tx.AddFacts(ctx, "m1", []domain.Fact{domain.IndividualFact("a")})
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	conn.FailTables = map[string]bool{"facts": true}
	tx, _ = store.Begin(ctx)
	if err := tx.Clear(ctx, "m1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := tx.AddFacts(ctx, "m1", []domain.Fact{domain.IndividualFact("b")}); err == nil {
		t.Fatalf("expected insert failure")
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	conn.FailTables = nil
	if got := collect(t, store, "m1"); len(got) != 1 || got[0].Subject != "a" {
		t.Fatalf("expected prior partition intact, got %v", got)
	}
}

func TestExportUnknownPartition(t *testing.T) {
	store, _ := newStubStore(t, false)
	err := store.ExportFacts(context.Background(), "missing", func(domain.Fact) error { return nil })
	if !errors.Is(err, domain.ErrUnknownIdentifier) {
		t.Fatalf("expected unknown identifier, got %v", err)
	}
}

func TestEmptyPartitionExistsAndDelete(t *testing.T) {
	ctx := context.Background()
	store, _ := newStubStore(t, false)
	tx, _ := store.Begin(ctx)
	_ = tx.Clear(ctx, "b")
	_ = tx.Clear(ctx, "a")
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	ids, err := store.ListPartitionIDs(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("unexpected ids: %v", ids)
	}
	if got := collect(t, store, "a"); len(got) != 0 {
		t.Fatalf("expected empty partition, got %v", got)
	}

	tx, _ = store.Begin(ctx)
	if err := tx.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	ok, err := store.HasPartition(ctx, "a")
	if err != nil || ok {
		t.Fatalf("expected partition a gone, ok=%v err=%v", ok, err)
	}
}

func TestNumberedPlaceholders(t *testing.T) {
	s := &Store{dialect: Dialect{Numbered: true}}
	if got := s.q(qInsertFact); !strings.Contains(got, "$8") || strings.Contains(got, "?") {
		t.Fatalf("unexpected rewrite: %s", got)
	}
	s.dialect.Numbered = false
	if got := s.q(qHasPartition); got != qHasPartition {
		t.Fatalf("expected query untouched, got %s", got)
	}
}

func TestBeginFailureSurfaces(t *testing.T) {
	store, conn := newStubStore(t, false)
	conn.FailBegin = true
	if _, err := store.Begin(context.Background()); err == nil {
		t.Fatalf("expected begin failure")
	}
}
