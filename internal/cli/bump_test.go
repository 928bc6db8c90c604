package cli

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestBumpVersion(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pyproject.toml", "[project]\nname = \"demo\"\nversion = \"0.1.2\"\n")

	out, err := runCommand(t, "", "bump-version", "--file", path)
	if err != nil {
		t.Fatalf("bump-version: %v", err)
	}
	if !strings.Contains(out, "0.1.2 -> 0.1.3") {
		t.Fatalf("output = %q", out)
	}
	if !strings.Contains(readFile(t, path), `version = "0.1.3"`) {
		t.Fatal("file not rewritten")
	}
}

func TestBumpVersionMissingFile(t *testing.T) {
	_, err := runCommand(t, "", "bump-version", "--file", filepath.Join(t.TempDir(), "absent.toml"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
