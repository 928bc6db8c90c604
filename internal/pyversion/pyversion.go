// Package pyversion bumps dotted version strings in project files.
package pyversion

import (
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultFile is where Python projects usually declare their version.
	DefaultFile = "pyproject.toml"
	// DefaultPattern captures the version string of a pyproject.toml
	// version line in its first group.
	DefaultPattern = `version\s*=\s*"([^"]+)"`
)

// Bump increments the patch component of the first version matched by
// pattern in path and rewrites the file in place. It returns the old
// and new version strings.
func Bump(path, pattern string) (string, string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", "", fmt.Errorf("compiling version pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return "", "", fmt.Errorf("version pattern needs a capture group for the version string")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("reading %s: %w", path, err)
	}

	loc := re.FindSubmatchIndex(data)
	if loc == nil || loc[2] < 0 {
		return "", "", fmt.Errorf("no version matching %q in %s", pattern, path)
	}

	old := string(data[loc[2]:loc[3]])
	next, err := incrementPatch(old)
	if err != nil {
		return "", "", err
	}

	var out []byte
	out = append(out, data[:loc[2]]...)
	out = append(out, next...)
	out = append(out, data[loc[3]:]...)

	mode := fs.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode()
	}
	if err := os.WriteFile(path, out, mode); err != nil {
		return "", "", fmt.Errorf("writing %s: %w", path, err)
	}
	return old, next, nil
}

// incrementPatch bumps the final dotted component: 1.2.3 -> 1.2.4.
func incrementPatch(version string) (string, error) {
	parts := strings.Split(version, ".")
	n, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return "", fmt.Errorf("version %q does not end in a number", version)
	}
	parts[len(parts)-1] = strconv.Itoa(n + 1)
	return strings.Join(parts, "."), nil
}
