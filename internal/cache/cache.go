// Package cache persists generated docstrings under the scanned root as
// a flat JSON file, keyed by file and symbol name. It is read before
// generation to skip symbols whose source is unchanged and consumed
// entry by entry as docstrings get applied.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	dirName  = ".pythion"
	fileName = "doc_cache.json"

	formatVersion = 1
)

// Entry is one generated docstring.
type Entry struct {
	Name      string    `json:"name"` // qualified symbol name
	Kind      string    `json:"kind"`
	File      string    `json:"file"`
	Line      int       `json:"line"`
	Hash      string    `json:"hash"` // content hash of the symbol's stripped source
	Docstring string    `json:"docstring"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Key returns the cache key for a symbol in a file.
func Key(file, name string) string {
	return file + ":" + name
}

// Cache is the documentation cache for one tree. Not safe for
// concurrent mutation.
type Cache struct {
	Version     int               `json:"version"`
	RunID       string            `json:"run_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Model       string            `json:"model,omitempty"`
	Entries     map[string]*Entry `json:"entries"`
}

// New returns an empty cache stamped with a fresh run ID.
func New(model string) *Cache {
	return &Cache{
		Version: formatVersion,
		RunID:   uuid.NewString(),
		Model:   model,
		Entries: make(map[string]*Entry),
	}
}

// Path returns the cache file location for a root directory.
func Path(root string) string {
	return filepath.Join(root, dirName, fileName)
}

// Load reads the cache for root. A missing file yields an empty cache;
// a corrupt one is an error.
func Load(root string) (*Cache, error) {
	data, err := os.ReadFile(Path(root))
	if os.IsNotExist(err) {
		return New(""), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading doc cache: %w", err)
	}
	var c Cache
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing doc cache %s: %w", Path(root), err)
	}
	if c.Entries == nil {
		c.Entries = make(map[string]*Entry)
	}
	return &c, nil
}

// Save writes the cache under root, creating the .pythion directory if
// needed, and stamps the write time.
func (c *Cache) Save(root string) error {
	if c.RunID == "" {
		c.RunID = uuid.NewString()
	}
	c.Version = formatVersion
	c.GeneratedAt = time.Now().UTC()

	dir := filepath.Join(root, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding doc cache: %w", err)
	}
	if err := os.WriteFile(Path(root), data, 0o644); err != nil {
		return fmt.Errorf("writing doc cache: %w", err)
	}
	return nil
}

// Get returns the entry under key, or nil.
func (c *Cache) Get(key string) *Entry {
	return c.Entries[key]
}

// Fresh returns the entry under key if its recorded hash matches the
// symbol's current content hash, else nil.
func (c *Cache) Fresh(key, hash string) *Entry {
	e := c.Entries[key]
	if e == nil || e.Hash != hash {
		return nil
	}
	return e
}

// Put stores an entry under its file:name key.
func (c *Cache) Put(e *Entry) {
	c.Entries[Key(e.File, e.Name)] = e
}

// Pop removes and returns the entry under key, or nil.
func (c *Cache) Pop(key string) *Entry {
	e := c.Entries[key]
	delete(c.Entries, key)
	return e
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	return len(c.Entries)
}

// Ordered returns the entries sorted by file, line, then name.
func (c *Cache) Ordered() []*Entry {
	out := make([]*Entry, 0, len(c.Entries))
	for _, e := range c.Entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Name < out[j].Name
	})
	return out
}
