package docgen

import (
	"fmt"
	"sort"
	"strings"
)

// docProfiles are named guidance presets for docstring generation.
var docProfiles = map[string]string{
	"fastapi": "The code is a FastAPI application. For endpoint functions, " +
		"document the route's behavior, request and response models, status " +
		"codes, and dependency-injected parameters rather than HTTP plumbing.",
	"cli": "The code is a command-line tool. Document commands in terms of " +
		"their usage, arguments, options, and output, the way --help text " +
		"would read.",
}

// DocProfile resolves a profile name to its guidance text. The empty
// name resolves to no guidance.
func DocProfile(name string) (string, error) {
	if name == "" {
		return "", nil
	}
	text, ok := docProfiles[name]
	if !ok {
		return "", fmt.Errorf("unknown profile %q (available: %s)", name, strings.Join(ProfileNames(), ", "))
	}
	return text, nil
}

// ProfileNames lists the available docstring profiles, sorted.
func ProfileNames() []string {
	names := make([]string, 0, len(docProfiles))
	for name := range docProfiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
