package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phobologic/pythion/internal/cache"
)

const plainAndDocumented = `def plain(a, b):
    return a + b


def documented(x):
    """Already documented."""
    return x
`

func TestBuildDocCache(t *testing.T) {
	api := newFakeAPI(t, docResult(t, "Add two numbers."))
	t.Setenv("OPENAI_API_KEY", "test-key")

	root := t.TempDir()
	writeFile(t, root, "app.py", plainAndDocumented)

	out, err := runCommand(t, "", "build-doc-cache", root, "--base-url", api.URL)
	if err != nil {
		t.Fatalf("build-doc-cache: %v", err)
	}
	if !strings.Contains(out, "1 generated") {
		t.Fatalf("output missing generation summary: %q", out)
	}

	store, err := cache.Load(root)
	if err != nil {
		t.Fatalf("loading cache: %v", err)
	}
	entry := store.Get(cache.Key("app.py", "plain"))
	if entry == nil {
		t.Fatalf("no cache entry for plain, cache has %d entries", store.Len())
	}
	if entry.Docstring != "Add two numbers." {
		t.Fatalf("Docstring = %q", entry.Docstring)
	}
	if entry.Kind != "function" || entry.Line != 1 || entry.Hash == "" {
		t.Fatalf("entry = %+v", entry)
	}
	if entry.Model != "gpt-4o-mini" {
		t.Fatalf("Model = %q, want the default", entry.Model)
	}
	if store.Get(cache.Key("app.py", "documented")) != nil {
		t.Fatal("documented symbol cached without --use-all")
	}
	if store.RunID == "" {
		t.Fatal("cache missing run id")
	}

	// A second run finds the entry fresh and skips the API.
	before := api.count()
	out, err = runCommand(t, "", "build-doc-cache", root, "--base-url", api.URL)
	if err != nil {
		t.Fatalf("second build-doc-cache: %v", err)
	}
	if !strings.Contains(out, "1 reused") {
		t.Fatalf("output missing reuse summary: %q", out)
	}
	if api.count() != before {
		t.Fatalf("second run hit the API %d more times", api.count()-before)
	}
}

func TestBuildDocCacheUseAll(t *testing.T) {
	api := newFakeAPI(t, docResult(t, "Regenerated."))
	t.Setenv("OPENAI_API_KEY", "test-key")

	root := t.TempDir()
	writeFile(t, root, "app.py", "def documented(x):\n    \"\"\"Old words.\"\"\"\n    return x\n")

	out, err := runCommand(t, "", "build-doc-cache", root, "--base-url", api.URL)
	if err != nil {
		t.Fatalf("build-doc-cache: %v", err)
	}
	if !strings.Contains(out, "nothing to document") {
		t.Fatalf("expected nothing to document, got %q", out)
	}
	if _, err := os.Stat(cache.Path(root)); !os.IsNotExist(err) {
		t.Fatal("no-op run should not create the cache")
	}

	// The historical --use_all spelling still works.
	if _, err := runCommand(t, "", "build-doc-cache", root, "--use_all", "--base-url", api.URL); err != nil {
		t.Fatalf("build-doc-cache --use_all: %v", err)
	}
	if api.count() != 1 {
		t.Fatalf("api calls = %d, want 1", api.count())
	}
	store, err := cache.Load(root)
	if err != nil {
		t.Fatalf("loading cache: %v", err)
	}
	entry := store.Get(cache.Key("app.py", "documented"))
	if entry == nil {
		t.Fatal("documented symbol not regenerated under --use_all")
	}
	if entry.Docstring != "Regenerated." {
		t.Fatalf("Docstring = %q", entry.Docstring)
	}
}

func TestBuildDocCacheDry(t *testing.T) {
	api := newFakeAPI(t, docResult(t, "unused"))

	root := t.TempDir()
	writeFile(t, root, "app.py", `def visible(a):
    return a


def hidden(b):
    # pythion:ignore
    return b
`)

	out, err := runCommand(t, "", "build-doc-cache", root, "--dry", "--base-url", api.URL)
	if err != nil {
		t.Fatalf("build-doc-cache --dry: %v", err)
	}
	if !strings.Contains(out, "would generate docstrings for 1 symbols") {
		t.Fatalf("unexpected dry output: %q", out)
	}
	if !strings.Contains(out, "visible") || strings.Contains(out, "hidden") {
		t.Fatalf("dry listing should name visible only: %q", out)
	}
	if api.count() != 0 {
		t.Fatalf("dry run hit the API %d times", api.count())
	}
	if _, err := os.Stat(filepath.Join(root, ".pythion")); !os.IsNotExist(err) {
		t.Fatal("dry run should not create the cache")
	}
}
