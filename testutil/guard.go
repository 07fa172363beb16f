// Package testutil provides reusable testing helpers for enforcing package
// boundary invariants across the module.
package testutil

import (
	"bufio"
	"errors"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// AssertNoDirectImports scans all non-test .go files in dir (typically "." from within the package)
// and fails if any import path satisfies the forbidden predicate. It does not follow build tags.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	imports, err := fileImports(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var viols []string
	for _, imp := range imports {
		if forbidden(imp.path) {
			viols = append(viols, imp.path+" (in "+imp.file+")")
		}
	}
	if len(viols) > 0 {
		t.Fatalf("forbidden direct imports detected (%s):\n%s", reason, strings.Join(viols, "\n"))
	}
}

// AssertNoImportsOutside walks the whole module and fails if a package whose
// import path does not start with one of allowed imports a package under
// guarded. Test files are included since fixtures leak dependencies too.
func AssertNoImportsOutside(t testing.TB, guarded string, allowed []string) {
	t.Helper()
	root, module, err := ModuleRoot()
	if err != nil {
		t.Fatalf("module root: %v", err)
	}
	viols, err := importsOutside(root, module, guarded, allowed)
	if err != nil {
		t.Fatalf("walk module: %v", err)
	}
	if len(viols) > 0 {
		t.Fatalf("found %d forbidden imports of %s:\n%s", len(viols), guarded, strings.Join(viols, "\n"))
	}
}

// DomainImportForbidden returns a predicate matching any import path that points to the domain package.
func DomainImportForbidden(path string) bool {
	return strings.HasSuffix(path, "/pkg/domain") || strings.Contains(path, "/pkg/domain@")
}

// InternalImportForbidden returns a predicate matching any import path containing /internal/.
func InternalImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/")
}

// InfraImportForbidden matches concrete infrastructure packages.
func InfraImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/infra/")
}

// ModuleRoot locates the enclosing go.mod starting from the working directory
// and returns its directory and module path.
func ModuleRoot() (dir, module string, err error) {
	dir, err = os.Getwd()
	if err != nil {
		return "", "", err
	}
	for {
		f, openErr := os.Open(filepath.Join(dir, "go.mod"))
		if openErr == nil {
			module = modulePath(f)
			_ = f.Close()
			if module == "" {
				return "", "", errors.New("go.mod without module directive")
			}
			return dir, module, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", "", errors.New("go.mod not found")
		}
		dir = parent
	}
}

func modulePath(f *os.File) string {
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if rest, ok := strings.CutPrefix(line, "module "); ok {
			return strings.Trim(strings.TrimSpace(rest), `"`)
		}
	}
	return ""
}

type fileImport struct {
	file string
	path string
}

func fileImports(dir string) ([]fileImport, error) {
	return parseImports(dir, false)
}

func parseImports(dir string, withTests bool) ([]fileImport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var out []fileImport
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") {
			continue
		}
		if !withTests && strings.HasSuffix(name, "_test.go") {
			continue
		}
		fileAst, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range fileAst.Imports {
			out = append(out, fileImport{file: name, path: strings.Trim(imp.Path.Value, `"`)})
		}
	}
	return out, nil
}

func hasPathPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func importsOutside(root, module, guarded string, allowed []string) ([]string, error) {
	seen := make(map[string]struct{})
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || name == "testdata") {
			return filepath.SkipDir
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		pkgPath := module
		if rel != "." {
			pkgPath = module + "/" + filepath.ToSlash(rel)
		}
		for _, prefix := range allowed {
			if hasPathPrefix(pkgPath, prefix) {
				return nil
			}
		}
		imports, err := parseImports(path, true)
		if err != nil {
			return err
		}
		for _, imp := range imports {
			if hasPathPrefix(imp.path, guarded) {
				seen[pkgPath+": "+imp.path] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}
