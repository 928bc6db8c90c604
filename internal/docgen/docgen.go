// Package docgen turns indexed symbols into docstrings: it assembles
// prompts with dependency context, asks the model for structured
// output, and normalizes what comes back.
package docgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/phobologic/pythion/internal/index"
	"github.com/phobologic/pythion/internal/llm"
)

const systemPrompt = `You are a senior Python developer writing Google-style docstrings.
Work through the reasoning steps first, then produce the final docstring.
Describe purpose, arguments, return values, and raised exceptions where
they apply. Do not include the surrounding triple quotes. Do not restate
the code line by line.`

// maxDepSourceBytes caps each dependency's source in the prompt.
const maxDepSourceBytes = 3000

// Step is one reasoning step the model records before writing.
type Step struct {
	WhyDoesThisObjectExist string `json:"why_does_this_object_exist"`
	WhatPurposeDoesItServe string `json:"what_purpose_does_it_serve"`
}

// Result is the structured completion for one docstring request.
type Result struct {
	Steps               []Step `json:"steps"`
	MainObjectName      string `json:"main_object_name"`
	MainObjectDocstring string `json:"main_object_docstring"`
}

// Completer is the LLM surface docgen needs.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, format *llm.ResponseFormat) (string, error)
	Model() string
}

var (
	docSchemaOnce sync.Once
	docSchemaRaw  map[string]interface{}
)

func docstringSchema() map[string]interface{} {
	docSchemaOnce.Do(func() {
		docSchemaRaw = map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"steps": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"why_does_this_object_exist": map[string]interface{}{"type": "string"},
							"what_purpose_does_it_serve": map[string]interface{}{"type": "string"},
						},
						"required":             []string{"why_does_this_object_exist", "what_purpose_does_it_serve"},
						"additionalProperties": false,
					},
				},
				"main_object_name":      map[string]interface{}{"type": "string"},
				"main_object_docstring": map[string]interface{}{"type": "string"},
			},
			"required":             []string{"steps", "main_object_name", "main_object_docstring"},
			"additionalProperties": false,
		}
	})
	return docSchemaRaw
}

// DocstringFormat is the response format for docstring requests.
func DocstringFormat() *llm.ResponseFormat {
	return &llm.ResponseFormat{
		Type: "json_schema",
		JSONSchema: &llm.JSONSchema{
			Name:   "docstring_result",
			Strict: true,
			Schema: docstringSchema(),
		},
	}
}

// Options tune generation for a run.
type Options struct {
	Instruction string // free-form instruction appended to every prompt
	Profile     string // resolved profile guidance text
}

// Generator produces docstrings for indexed symbols.
type Generator struct {
	client Completer
	opts   Options
	logger *zap.Logger
}

// New creates a Generator.
func New(client Completer, opts Options, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{client: client, opts: opts, logger: logger}
}

// Model returns the underlying model name for cache stamping.
func (g *Generator) Model() string {
	return g.client.Model()
}

// ForSymbol generates a docstring for sym, with deps as prompt context.
func (g *Generator) ForSymbol(ctx context.Context, sym *index.Symbol, deps []*index.Symbol) (string, error) {
	user := buildSymbolPrompt(sym, deps, g.opts)
	g.logger.Debug("generating docstring",
		zap.String("symbol", sym.Qualified),
		zap.String("file", sym.File),
		zap.Int("deps", len(deps)))

	raw, err := g.client.CompleteJSON(ctx, systemPrompt, user, DocstringFormat())
	if err != nil {
		return "", fmt.Errorf("generating docstring for %s: %w", sym.Qualified, err)
	}
	return parseDocstring(raw, sym.Qualified)
}

// ForModule generates a module-level docstring for a file from the
// signatures it defines.
func (g *Generator) ForModule(ctx context.Context, rel string, syms []*index.Symbol) (string, error) {
	user := buildModulePrompt(rel, syms, g.opts)
	g.logger.Debug("generating module docstring", zap.String("file", rel))

	raw, err := g.client.CompleteJSON(ctx, systemPrompt, user, DocstringFormat())
	if err != nil {
		return "", fmt.Errorf("generating module docstring for %s: %w", rel, err)
	}
	return parseDocstring(raw, rel)
}

func parseDocstring(raw, subject string) (string, error) {
	var res Result
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return "", fmt.Errorf("parsing completion for %s: %w", subject, err)
	}
	doc := CleanDocstring(res.MainObjectDocstring)
	if doc == "" {
		return "", fmt.Errorf("empty docstring returned for %s", subject)
	}
	return doc, nil
}

func buildSymbolPrompt(sym *index.Symbol, deps []*index.Symbol, opts Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a docstring for the %s %q.\n\n", sym.Kind, sym.Qualified)
	b.WriteString("Source:\n```python\n")
	b.WriteString(sym.Stripped)
	b.WriteString("\n```\n")

	if len(deps) > 0 {
		b.WriteString("\nDefinitions referenced by the target, for context only:\n")
		for _, d := range deps {
			fmt.Fprintf(&b, "\n%s (%s):\n```python\n%s\n```\n",
				d.Qualified, d.Location(), truncateSource(d.Stripped))
		}
	}

	writeGuidance(&b, opts)
	return b.String()
}

func buildModulePrompt(rel string, syms []*index.Symbol, opts Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a module-level docstring for the Python file %q.\n", rel)
	if len(syms) > 0 {
		b.WriteString("\nIt defines:\n")
		for _, s := range syms {
			fmt.Fprintf(&b, "- %s %s\n", s.Kind, s.Signature)
		}
	}
	b.WriteString("\nSummarize what the module provides and how its pieces fit together.\n")
	writeGuidance(&b, opts)
	return b.String()
}

func writeGuidance(b *strings.Builder, opts Options) {
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
}

func truncateSource(src string) string {
	if len(src) <= maxDepSourceBytes {
		return src
	}
	return src[:maxDepSourceBytes] + "\n# ... truncated"
}

// CleanDocstring normalizes model output for write-back: surrounding
// quotes and blank padding go, and any embedded triple double quotes
// become single-quote form so the written docstring stays valid.
func CleanDocstring(s string) string {
	s = strings.ReplaceAll(s, `"""`, "'''")
	return strings.Trim(s, " \t\n\"'")
}
