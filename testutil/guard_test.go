package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

type captureFatal struct{ msg string }

func (c *captureFatal) Fatalf(format string, args ...any) { c.msg = fmt.Sprintf(format, args...) }

func TestImportsContaining(t *testing.T) {
	pred := ImportsContaining("/internal/infra/", "net/http")
	cases := map[string]bool{
		"flowpanel/internal/infra/blob/s3": true,
		"net/http":                         true,
		"flowpanel/internal/core":          false,
	}
	for in, want := range cases {
		if got := pred(in); got != want {
			t.Fatalf("pred(%q)=%v want %v", in, got, want)
		}
	}
	if !InfraImportForbidden("flowpanel/internal/infra/persistence/sqlite") {
		t.Fatalf("expected infra import to be forbidden")
	}
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ok.go", "package tmp\nimport \"fmt\"\nfunc X() { fmt.Println() }\n")
	writeFile(t, dir, "bad.go", "package tmp\nimport s3 \"flowpanel/internal/infra/blob/s3\"\nvar _ = s3.DefaultRegion\n")
	writeFile(t, dir, "bad_test.go", "package tmp\nimport _ \"flowpanel/internal/infra/blob/fs\"\n")
	if err := os.Mkdir(filepath.Join(dir, "nested.go"), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	viols, err := directImportViolations(dir, InfraImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || !strings.Contains(viols[0], "bad.go") {
		t.Fatalf("unexpected violations %v", viols)
	}

	var fatal captureFatal
	failIfDirectViolations(&fatal, "shells use facades", viols)
	if !strings.Contains(fatal.msg, "shells use facades") || !strings.Contains(fatal.msg, "blob/s3") {
		t.Fatalf("unexpected failure message %q", fatal.msg)
	}
	fatal = captureFatal{}
	failIfDirectViolations(&fatal, "none", nil)
	if fatal.msg != "" {
		t.Fatalf("expected no failure, got %q", fatal.msg)
	}
}

func TestDirectImportViolationsErrors(t *testing.T) {
	if _, err := directImportViolations(filepath.Join(t.TempDir(), "missing"), InfraImportForbidden); err == nil {
		t.Fatalf("expected error for missing dir")
	}
	dir := t.TempDir()
	writeFile(t, dir, "broken.go", "package\n")
	if _, err := directImportViolations(dir, InfraImportForbidden); err == nil {
		t.Fatalf("expected parse error")
	}
}
