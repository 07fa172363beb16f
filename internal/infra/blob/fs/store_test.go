package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"modelcore/internal/blob/core"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return s
}

func readAll(t *testing.T, s *Store, key string) string {
	t.Helper()
	_, rc, err := s.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(b)
}

func TestPutIsCreateOnly(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	info, err := s.Put(ctx, "models/a.jsonl", strings.NewReader("one"), core.PutOptions{ContentType: "application/x-ndjson", Metadata: map[string]string{"k": "v"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 3 || info.ETag == "" || info.Metadata["k"] != "v" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "models/a.jsonl", strings.NewReader("two"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if got := readAll(t, s, "models/a.jsonl"); got != "one" {
		t.Fatalf("create-only put overwrote content: %q", got)
	}
}

func TestReplaceOverwritesAndLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for _, body := range []string{"first", "second"} {
		if _, err := s.Replace(ctx, "p/x", strings.NewReader(body), core.PutOptions{}); err != nil {
			t.Fatalf("replace: %v", err)
		}
	}
	if got := readAll(t, s, "p/x"); got != "second" {
		t.Fatalf("unexpected content %q", got)
	}
	entries, err := os.ReadDir(filepath.Join(s.Root(), "p"))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), tmpPrefix) {
			t.Fatalf("leftover temp file %s", e.Name())
		}
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("read fail") }

func TestReplaceFailureKeepsPreviousContent(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	if _, err := s.Replace(ctx, "p/x", strings.NewReader("stable"), core.PutOptions{}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if _, err := s.Replace(ctx, "p/x", io.MultiReader(bytes.NewReader([]byte("part")), failingReader{}), core.PutOptions{}); err == nil {
		t.Fatalf("expected write failure")
	}
	if got := readAll(t, s, "p/x"); got != "stable" {
		t.Fatalf("failed replace must keep prior content, got %q", got)
	}
}

func TestGetHeadDeleteMissing(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	if _, _, err := s.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Head(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from head, got %v", err)
	}
	if ok, err := s.Delete(ctx, "missing"); ok || err != nil {
		t.Fatalf("expected (false, nil), got %v %v", ok, err)
	}
}

func TestListSkipsSidecarsAndHonoursPrefix(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for _, key := range []string{"b/2", "a/1", "b/1"} {
		if _, err := s.Put(ctx, key, strings.NewReader(key), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	// a data file without sidecar is still listed
	if err := os.WriteFile(filepath.Join(s.Root(), "b", "3"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	infos, err := s.List(ctx, "b/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var keys []string
	for _, info := range infos {
		keys = append(keys, info.Key)
	}
	if strings.Join(keys, ",") != "b/1,b/2,b/3" {
		t.Fatalf("unexpected keys %v", keys)
	}
	if ok, err := s.Delete(ctx, "b/1"); !ok || err != nil {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "b", "1"+metaSuffix)); !os.IsNotExist(err) {
		t.Fatalf("expected sidecar removed, got %v", err)
	}
}

func TestSanitizeKey(t *testing.T) {
	for _, key := range []string{"", "  ", "../x", "/abs", "a/b.meta", "a/.tmp-1"} {
		if _, err := sanitizeKey(key); err == nil {
			t.Fatalf("expected %q to be rejected", key)
		}
	}
	if got, err := sanitizeKey("a//b/./c"); err != nil || got != "a/b/c" {
		t.Fatalf("unexpected clean %q %v", got, err)
	}
}
