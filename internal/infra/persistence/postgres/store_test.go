package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"modelcore/internal/infra/persistence/postgres/testutil"
	"modelcore/pkg/domain"
)

func openStub(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	var gotDriver, gotDSN string
	restore := OverrideSQLOpen(func(driverName, dsn string) (*sql.DB, error) {
		gotDriver, gotDSN = driverName, dsn
		return db, nil
	})
	t.Cleanup(restore)
	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if gotDriver != defaultDriver || gotDSN != defaultDSN {
		t.Fatalf("unexpected open args %s %s", gotDriver, gotDSN)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, conn
}

func TestNewStoreAppliesSchema(t *testing.T) {
	_, conn := openStub(t)
	var creates int
	for _, stmt := range conn.Execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE") {
			creates++
		}
	}
	if creates < 2 {
		t.Fatalf("expected partition schema to be applied, got execs: %v", conn.Execs)
	}
}

func TestStoreReplaceUsesNumberedPlaceholders(t *testing.T) {
	ctx := context.Background()
	store, conn := openStub(t)
	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.Clear(ctx, "m1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := tx.AddFacts(ctx, "m1", []domain.Fact{domain.OntologyFact("m1"), domain.IndividualFact("i1")}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	var sawNumbered bool
	for _, stmt := range conn.Execs {
		if strings.HasPrefix(strings.TrimSpace(stmt), "INSERT INTO facts") && strings.Contains(stmt, "$1") {
			sawNumbered = true
		}
		if strings.Contains(stmt, "?") {
			t.Fatalf("unexpected positional placeholder in %q", stmt)
		}
	}
	if !sawNumbered {
		t.Fatalf("expected numbered placeholders, got %v", conn.Execs)
	}
	if rows := conn.Rows("facts"); len(rows) != 2 {
		t.Fatalf("expected 2 fact rows, got %d", len(rows))
	}
	ok, err := store.HasPartition(ctx, "m1")
	if err != nil || !ok {
		t.Fatalf("expected partition m1: %v %v", ok, err)
	}
}

func TestNewStorePingFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailExec = true
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), "postgres://ignored"); err == nil || !strings.Contains(err.Error(), "ping postgres") {
		t.Fatalf("expected ping failure, got %v", err)
	}
}

func TestNewStoreOpenFailure(t *testing.T) {
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, errors.New("boom") })
	defer restore()
	if _, err := NewStore(context.Background(), ""); err == nil || !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("expected open failure, got %v", err)
	}
}

func TestOverrideSQLOpenRestores(t *testing.T) {
	called := false
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) {
		called = true
		return nil, errors.New("x")
	})
	_, _ = NewStore(context.Background(), "")
	restore()
	if !called {
		t.Fatalf("expected override to be used")
	}
	openMu.Lock()
	defer openMu.Unlock()
	if sqlOpen == nil {
		t.Fatalf("expected sqlOpen restored")
	}
}
