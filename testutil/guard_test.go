package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

type recordingT struct {
	testing.TB
	failed bool
	msg    string
}

func (r *recordingT) Helper() {}

func (r *recordingT) Fatalf(format string, args ...any) {
	r.failed = true
	r.msg = format
}

func writeFile(t *testing.T, path, src string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestImportPredicates(t *testing.T) {
	cases := []struct {
		fn   func(string) bool
		in   string
		want bool
	}{
		{DomainImportForbidden, "modelcore/pkg/domain", true},
		{DomainImportForbidden, "example.com/mod/pkg/domain@v1", true},
		{DomainImportForbidden, "example.com/pkg/domainutil", false},
		{DomainImportForbidden, "", false},
		{InternalImportForbidden, "example.com/mod/internal/x", true},
		{InternalImportForbidden, "example.com/internal", false},
		{InternalImportForbidden, "notinternal", false},
		{InfraImportForbidden, "modelcore/internal/infra/blob/fs", true},
		{InfraImportForbidden, "modelcore/internal/blob", false},
	}
	for _, c := range cases {
		if got := c.fn(c.in); got != c.want {
			t.Fatalf("predicate(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestAssertNoDirectImportsIgnoresTestFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "x.go"), "package tmp\nimport (\n\t\"fmt\"\n\talias \"context\"\n)\nvar _ = alias.Background\nfunc X(){fmt.Println(1)}")
	writeFile(t, filepath.Join(dir, "x_test.go"), "package tmp\nimport \"forbidden/pkg\"\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "import \"forbidden/pkg\"")
	AssertNoDirectImports(t, dir, func(p string) bool { return p == "forbidden/pkg" }, "none")
}

func TestAssertNoDirectImportsReportsViolation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "x.go"), "package tmp\nimport \"forbidden/pkg\"\n")
	rec := &recordingT{TB: t}
	AssertNoDirectImports(rec, dir, func(p string) bool { return p == "forbidden/pkg" }, "boundary")
	if !rec.failed {
		t.Fatalf("expected violation to be reported")
	}
}

func TestImportsOutsideWalksModule(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go.mod"), "module example.com/m\n")
	writeFile(t, filepath.Join(root, "internal/infra/x/x.go"), "package x\n")
	writeFile(t, filepath.Join(root, "internal/wrap/w.go"), "package wrap\nimport _ \"example.com/m/internal/infra/x\"\n")
	writeFile(t, filepath.Join(root, "internal/leak/l_test.go"), "package leak\nimport _ \"example.com/m/internal/infra/x\"\n")
	writeFile(t, filepath.Join(root, "_examples/e/e.go"), "package e\nimport _ \"example.com/m/internal/infra/x\"\n")

	viols, err := importsOutside(root, "example.com/m", "example.com/m/internal/infra", []string{
		"example.com/m/internal/wrap",
		"example.com/m/internal/infra",
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if len(viols) != 1 || viols[0] != "example.com/m/internal/leak: example.com/m/internal/infra/x" {
		t.Fatalf("unexpected violations %v", viols)
	}
}

func TestModuleRootFindsGoMod(t *testing.T) {
	dir, module, err := ModuleRoot()
	if err != nil {
		t.Fatalf("module root: %v", err)
	}
	if module != "modelcore" {
		t.Fatalf("unexpected module %q", module)
	}
	if _, err := os.Stat(filepath.Join(dir, "go.mod")); err != nil {
		t.Fatalf("expected go.mod in %s: %v", dir, err)
	}
}
