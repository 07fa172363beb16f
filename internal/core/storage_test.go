package core

import (
	"context"
	"path/filepath"
	"testing"

	"modelcore/internal/config"
	"modelcore/internal/infra/persistence/badger"
	"modelcore/internal/infra/persistence/blobpart"
	"modelcore/internal/infra/persistence/memory"
	"modelcore/internal/infra/persistence/sqlite"
	"modelcore/pkg/domain"
)

func testConfig(t *testing.T, driver string) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.LoadFrom(map[string]string{
		"MODELCORE_STORAGE_DRIVER":      driver,
		"MODELCORE_STORAGE_SQLITE_PATH": filepath.Join(dir, "models.db"),
		"MODELCORE_STORAGE_BADGER_DIR":  filepath.Join(dir, "badger"),
		"MODELCORE_BLOB_DRIVER":         "memory",
	})
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func TestOpenPartitionStoreDrivers(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		driver string
		check  func(domain.PartitionStore) bool
	}{
		{"memory", func(s domain.PartitionStore) bool { _, ok := s.(*memory.Store); return ok }},
		{"sqlite", func(s domain.PartitionStore) bool { _, ok := s.(*sqlite.Store); return ok }},
		{"badger", func(s domain.PartitionStore) bool { _, ok := s.(*badger.Store); return ok }},
		{"blob", func(s domain.PartitionStore) bool { _, ok := s.(*blobpart.Store); return ok }},
	}
	for _, c := range cases {
		store, err := OpenPartitionStore(ctx, testConfig(t, c.driver))
		if err != nil {
			t.Fatalf("%s: open: %v", c.driver, err)
		}
		if !c.check(store) {
			t.Fatalf("%s: unexpected store %T", c.driver, store)
		}
		if err := store.Close(); err != nil {
			t.Fatalf("%s: close: %v", c.driver, err)
		}
	}
}

func TestOpenPartitionStoreRejectsUnknownDriver(t *testing.T) {
	cfg := testConfig(t, "memory")
	cfg.Storage.Driver = "cassandra"
	if _, err := OpenPartitionStore(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
	cfg.Storage.Driver = ""
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "default.db")
	store, err := OpenPartitionStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("default driver: %v", err)
	}
	defer store.Close()
	if _, ok := store.(*sqlite.Store); !ok {
		t.Fatalf("expected sqlite default, got %T", store)
	}
}

func TestOpenModelStoreRoundTripsThroughRegistry(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, "blob")
	store, err := OpenModelStore(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("open model store: %v", err)
	}
	defer store.Close()
	reg := NewUndoAwareRegistry(testTBox(t), store)
	defer reg.Close()

	inst, err := reg.GenerateBlankModel(ctx, domain.Metadata{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := reg.ApplyMutation(ctx, inst.ID(), AddIndividual(reg.TBox(), "i1"), false, domain.Metadata{}); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if err := reg.Save(ctx, inst.ID(), SaveOptions{}, domain.Metadata{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	ids, err := store.ListIDs(ctx)
	if err != nil || len(ids) != 1 || ids[0] != inst.ID() {
		t.Fatalf("unexpected ids %v %v", ids, err)
	}
}
