package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("MODELCORE_STORAGE_DRIVER", "sqlite")
	t.Setenv("MODELCORE_STORAGE_SQLITE_PATH", filepath.Join(dir, "models.db"))
	t.Setenv("MODELCORE_MODEL_ID_PREFIX", "gomodel:")
	t.Setenv("MODELCORE_LOG_LEVEL", "error")
	t.Setenv("MODELCORE_TBOX_PATH", "")
	return dir
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--env-file", ""}, args...)
	code := cli(full, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	code, out, errOut := runCLI(t, args...)
	if code != 0 {
		t.Fatalf("modelctl %v exited %d: %s", args, code, errOut)
	}
	return out
}

func TestCreateListExportDelete(t *testing.T) {
	setupEnv(t)
	id := strings.TrimSpace(mustRun(t, "--actor", "orcid:0000-0001", "create", "--title", "first"))
	if !strings.HasPrefix(id, "gomodel:") {
		t.Fatalf("unexpected id %q", id)
	}
	if out := mustRun(t, "list"); strings.TrimSpace(out) != id {
		t.Fatalf("list = %q want %q", out, id)
	}
	exported := mustRun(t, "export", id)
	if !strings.Contains(exported, "first") || !strings.Contains(exported, "orcid:0000-0001") {
		t.Fatalf("export missing annotations: %s", exported)
	}
	mustRun(t, "validate", id)
	mustRun(t, "delete", id)
	if out := mustRun(t, "list"); strings.TrimSpace(out) != "" {
		t.Fatalf("expected empty list after delete, got %q", out)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	dir := setupEnv(t)
	id := strings.TrimSpace(mustRun(t, "create", "--title", "round trip"))
	exportDir := filepath.Join(dir, "dump")
	if err := os.MkdirAll(exportDir, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	mustRun(t, "export", id, "--out", filepath.Join(exportDir, "model.jsonl"))
	if err := os.WriteFile(filepath.Join(exportDir, "README.txt"), []byte("ignored"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	code, out, _ := runCLI(t, "import", exportDir)
	if code == 0 {
		t.Fatalf("expected duplicate import to fail under reject policy, got %s", out)
	}
	if !strings.Contains(out, "failed") {
		t.Fatalf("expected failed item line, got %q", out)
	}

	out = mustRun(t, "import", exportDir, "--duplicates", "overwrite")
	if !strings.HasPrefix(out, "imported\t"+id) {
		t.Fatalf("unexpected import output %q", out)
	}
	if !strings.Contains(mustRun(t, "export", id, "--format", "yaml"), "round trip") {
		t.Fatalf("expected title to survive import")
	}
}

func TestCommandErrors(t *testing.T) {
	setupEnv(t)
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"unknown model", []string{"export", "gomodel:missing"}, "gomodel:missing"},
		{"bad driver", []string{"--driver", "bogus", "list"}, "unknown storage driver"},
		{"missing dir", []string{"import", "does-not-exist"}, "read import dir"},
		{"bad args", []string{"delete"}, "accepts 1 arg"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			code, _, errOut := runCLI(t, tc.args...)
			if code != 1 {
				t.Fatalf("expected exit 1, got %d", code)
			}
			if !strings.Contains(errOut, tc.want) {
				t.Fatalf("stderr %q missing %q", errOut, tc.want)
			}
		})
	}
}

func TestMainUsesExitFunc(t *testing.T) {
	setupEnv(t)
	oldArgs, oldExit := os.Args, exitFunc
	defer func() { os.Args, exitFunc = oldArgs, oldExit }()
	os.Args = []string{"modelctl", "--env-file", "", "list"}
	var got = -1
	exitFunc = func(code int) { got = code }
	main()
	if got != 0 {
		t.Fatalf("expected exit code 0, got %d", got)
	}
}
