// Package gitcommit drafts commit messages from the staged diff and
// runs the commit.
package gitcommit

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"github.com/phobologic/pythion/internal/llm"
)

const commitSystemPrompt = `You are a senior developer writing a git commit message.
Work through the reasoning steps first, then produce the final message.
The summary line starts with an imperative action verb (Add, Fix, Remove,
Refactor, ...), stays under 72 characters, and names the change, not the
process. Add body paragraphs only when the diff needs explaining.`

// maxDiffBytes caps the staged diff carried into the prompt.
const maxDiffBytes = 32000

// Completer is the LLM surface needed for message drafting.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, format *llm.ResponseFormat) (string, error)
}

// Step is one reasoning step the model records before writing.
type Step struct {
	WhatChanged  string `json:"what_changed"`
	WhyItChanged string `json:"why_it_changed"`
}

// Result is the structured completion for a commit message request.
type Result struct {
	Steps         []Step `json:"steps"`
	CommitMessage string `json:"commit_message"`
}

var (
	commitSchemaOnce sync.Once
	commitSchemaRaw  map[string]interface{}
)

func commitSchema() map[string]interface{} {
	commitSchemaOnce.Do(func() {
		commitSchemaRaw = map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"steps": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"what_changed":   map[string]interface{}{"type": "string"},
							"why_it_changed": map[string]interface{}{"type": "string"},
						},
						"required":             []string{"what_changed", "why_it_changed"},
						"additionalProperties": false,
					},
				},
				"commit_message": map[string]interface{}{"type": "string"},
			},
			"required":             []string{"steps", "commit_message"},
			"additionalProperties": false,
		}
	})
	return commitSchemaRaw
}

// MessageFormat is the response format for commit message requests.
func MessageFormat() *llm.ResponseFormat {
	return &llm.ResponseFormat{
		Type: "json_schema",
		JSONSchema: &llm.JSONSchema{
			Name:   "commit_message",
			Strict: true,
			Schema: commitSchema(),
		},
	}
}

// commitProfiles are named guidance presets for commit messages.
var commitProfiles = map[string]string{
	"no-version": "Ignore version-number bumps, changelog entries, and release " +
		"chores in the diff; describe the behavioral change only.",
}

// CommitProfile resolves a profile name to its guidance text. The empty
// name resolves to no guidance.
func CommitProfile(name string) (string, error) {
	if name == "" {
		return "", nil
	}
	text, ok := commitProfiles[name]
	if !ok {
		names := make([]string, 0, len(commitProfiles))
		for n := range commitProfiles {
			names = append(names, n)
		}
		sort.Strings(names)
		return "", fmt.Errorf("unknown profile %q (available: %s)", name, strings.Join(names, ", "))
	}
	return text, nil
}

// Options tune message drafting.
type Options struct {
	Instruction string
	Profile     string // resolved profile guidance text
}

// StagedDiff returns the staged changes in dir. An empty diff is an
// error telling the user to stage work first.
func StagedDiff(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "diff", "--cached")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("reading staged diff: %w", err)
	}
	diff := strings.TrimSpace(string(out))
	if diff == "" {
		return "", fmt.Errorf("no staged changes found; add files to the staging area first")
	}
	return diff, nil
}

// Message drafts a commit message for the staged diff.
func Message(ctx context.Context, client Completer, diff string, opts Options) (string, error) {
	var b strings.Builder
	b.WriteString("Write a commit message for the following staged diff.\n\n")
	b.WriteString("```diff\n")
	if len(diff) > maxDiffBytes {
		b.WriteString(diff[:maxDiffBytes])
		b.WriteString("\n# ... truncated")
	} else {
		b.WriteString(diff)
	}
	b.WriteString("\n```\n")
	if opts.Profile != "" {
		b.WriteString("\nGuidance: ")
		b.WriteString(opts.Profile)
		b.WriteString("\n")
	}
	if opts.Instruction != "" {
		b.WriteString("\nAdditional instruction: ")
		b.WriteString(opts.Instruction)
		b.WriteString("\n")
	}

	raw, err := client.CompleteJSON(ctx, commitSystemPrompt, b.String(), MessageFormat())
	if err != nil {
		return "", fmt.Errorf("drafting commit message: %w", err)
	}
	var res Result
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return "", fmt.Errorf("parsing commit message completion: %w", err)
	}
	message := strings.Trim(strings.TrimSpace(res.CommitMessage), "`\"'")
	if message == "" {
		return "", fmt.Errorf("empty commit message returned")
	}
	return message, nil
}

// Commit runs git commit with the message in dir and returns git's
// combined output.
func Commit(ctx context.Context, dir, message string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "commit", "-m", message)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git commit failed: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}
