// Package index builds a symbol index over a Python source tree: every
// function and class definition, keyed by name (methods also by
// Class.name), with docstring state and the docstring-stripped source
// used for prompting and content hashing.
package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

// Kind classifies an indexed definition.
type Kind string

const (
	KindFunction Kind = "function"
	KindClass    Kind = "class"
)

// Symbol is one indexed function or class definition.
type Symbol struct {
	Name         string // bare definition name
	Qualified    string // "Class.name" for methods, otherwise the bare name
	Kind         Kind
	File         string // path relative to the indexed root
	Line         int    // 1-based line of the def/class keyword
	EndLine      int
	Signature    string // rendered signature, e.g. "load(path) -> Config"
	Source       string // definition text, decorators included
	Stripped     string // Source with the leading docstring removed
	HasDocstring bool
	Refs         []string // called names and annotation types, deduped and sorted
}

// ContentHash identifies the symbol's logic. It hashes the
// docstring-stripped source so that applying a generated docstring does
// not invalidate cache entries for the symbol.
func (s *Symbol) ContentHash() string {
	h := xxhash.New()
	_, _ = h.WriteString(s.Stripped)
	return fmt.Sprintf("%016x", h.Sum64())
}

// Location renders the symbol's position as file:line.
func (s *Symbol) Location() string {
	return fmt.Sprintf("%s:%d", s.File, s.Line)
}

// ignoreDirectives are the accepted spellings of the opt-out marker.
// Only the first 150 bytes of a definition are scanned, so the marker
// belongs in a decorator comment or at the top of the body.
var ignoreDirectives = []string{
	"pythion:ignore",
	"pythion: ignore",
	"pythion :ignore",
	"pythion : ignore",
}

// Ignored reports whether the symbol opts out of doc generation.
func (s *Symbol) Ignored() bool {
	head := s.Source
	if len(head) > 150 {
		head = head[:150]
	}
	for _, d := range ignoreDirectives {
		if strings.Contains(head, d) {
			return true
		}
	}
	return false
}

// commonNames are pruned from name lookup and batch candidates: dunder
// protocol methods and builtin-shadowing names that would otherwise
// pollute dependency resolution. A method such as MyClass.__init__ can
// still be targeted through its qualified name.
var commonNames = map[string]struct{}{
	"__init__":  {},
	"__enter__": {},
	"__exit__":  {},
	"str":       {},
	"dict":      {},
	"list":      {},
	"int":       {},
	"float":     {},
}

// Index holds the symbols of one source tree.
type Index struct {
	root   string
	byName map[string][]*Symbol
	byFile map[string][]*Symbol
	files  []string
}

// Build parses every file (paths relative to root) and indexes its
// definitions. Files that cannot be read or parsed are logged and
// skipped; indexing the rest proceeds.
func Build(ctx context.Context, root string, files []string, logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ix := &Index{
		root:   root,
		byName: make(map[string][]*Symbol),
		byFile: make(map[string][]*Symbol),
	}

	parser := newPythonParser()
	defer parser.Close()

	for _, rel := range files {
		source, err := os.ReadFile(filepath.Join(root, rel))
		if err != nil {
			logger.Warn("skipping unreadable file", zap.String("file", rel), zap.Error(err))
			continue
		}
		syms, err := fileSymbols(ctx, parser, rel, source)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("indexing %s: %w", rel, err)
			}
			logger.Warn("skipping unparseable file", zap.String("file", rel), zap.Error(err))
			continue
		}
		ix.add(rel, syms)
	}

	for name := range commonNames {
		delete(ix.byName, name)
	}
	sort.Strings(ix.files)

	return ix, nil
}

func (ix *Index) add(rel string, syms []*Symbol) {
	ix.files = append(ix.files, rel)
	ix.byFile[rel] = syms
	for _, s := range syms {
		ix.byName[s.Name] = append(ix.byName[s.Name], s)
		if s.Qualified != s.Name {
			ix.byName[s.Qualified] = append(ix.byName[s.Qualified], s)
		}
	}
}

// Root returns the tree the index was built from.
func (ix *Index) Root() string {
	return ix.root
}

// Files returns the indexed file paths, sorted.
func (ix *Index) Files() []string {
	return ix.files
}

// FileSymbols returns the symbols of one file in definition order.
func (ix *Index) FileSymbols(rel string) []*Symbol {
	return ix.byFile[rel]
}

// Lookup returns the symbols indexed under name, which may be a bare
// name or a Class.method qualified name.
func (ix *Index) Lookup(name string) []*Symbol {
	return ix.byName[name]
}

// All returns every symbol in file-then-line order, minus common names.
func (ix *Index) All() []*Symbol {
	var out []*Symbol
	for _, rel := range ix.files {
		for _, s := range ix.byFile[rel] {
			if _, common := commonNames[s.Name]; common {
				continue
			}
			out = append(out, s)
		}
	}
	return out
}

// Resolve returns the indexed symbols referenced by sym (its calls and
// annotation types), excluding sym itself. Order is deterministic.
func (ix *Index) Resolve(sym *Symbol) []*Symbol {
	seen := make(map[*Symbol]struct{})
	var out []*Symbol
	for _, name := range sym.Refs {
		for _, dep := range ix.byName[name] {
			if dep == sym {
				continue
			}
			if _, dup := seen[dep]; dup {
				continue
			}
			seen[dep] = struct{}{}
			out = append(out, dep)
		}
	}
	return out
}

// DuplicateNames returns index keys bound to more than one definition.
// Ambiguous names make dependency context and make-docstr targeting
// less precise, so callers surface them as a warning.
func (ix *Index) DuplicateNames() []string {
	var dups []string
	for name, syms := range ix.byName {
		if len(syms) > 1 {
			dups = append(dups, name)
		}
	}
	sort.Strings(dups)
	return dups
}
