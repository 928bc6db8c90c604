package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/pythion/internal/docgen"
	"github.com/phobologic/pythion/internal/edit"
	"github.com/phobologic/pythion/internal/index"
)

func newMakeDocstrCommand(a *app) *cobra.Command {
	var (
		name        string
		module      bool
		instruction string
		profile     string
	)
	cmd := &cobra.Command{
		Use:   "make-docstr <root_dir>",
		Short: "Generate and insert a docstring for one symbol or module",
		Long: `make-docstr documents a single function, class, or module. The target
is named with --name (bare or Class.method; a path fragment with
--module) and prompted for otherwise. The generated docstring is
written into the source file and copied to the clipboard.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot(args[0])
			if err != nil {
				return err
			}
			guidance, err := docgen.DocProfile(profile)
			if err != nil {
				return err
			}
			ix, err := a.buildIndex(cmd.Context(), root)
			if err != nil {
				return err
			}
			gen := docgen.New(a.client(), docgen.Options{
				Instruction: instruction,
				Profile:     guidance,
			}, a.logger)

			out := cmd.OutOrStdout()
			reader := bufio.NewReader(cmd.InOrStdin())
			if module {
				return a.makeModuleDoc(cmd, reader, ix, gen, name)
			}

			if name == "" {
				name, err = promptLine(reader, out, "Function or class to document (e.g. parse_args or Config.load): ")
				if err != nil {
					return err
				}
			}
			sym, err := pickSymbol(reader, out, ix, name)
			if err != nil {
				return err
			}
			doc, err := gen.ForSymbol(cmd.Context(), sym, ix.Resolve(sym))
			if err != nil {
				return err
			}
			if err := writeSourceDocstring(root, sym.File, sym.Qualified, sym.Line, doc); err != nil {
				return err
			}
			fmt.Fprintf(out, "wrote docstring for %s to %s%s\n", sym.Qualified, sym.File, a.copyNote(doc))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "symbol to document (path fragment with --module); prompted for when omitted")
	cmd.Flags().BoolVar(&module, "module", false, "document a module instead of a symbol")
	cmd.Flags().StringVarP(&instruction, "instruction", "i", "", "extra instruction for the model")
	cmd.Flags().StringVar(&profile, "profile", "", "docstring profile ("+strings.Join(docgen.ProfileNames(), ", ")+")")
	return cmd
}

func (a *app) makeModuleDoc(cmd *cobra.Command, reader *bufio.Reader, ix *index.Index, gen *docgen.Generator, fragment string) error {
	out := cmd.OutOrStdout()
	var err error
	if fragment == "" {
		fragment, err = promptLine(reader, out, "Module to document (e.g. app/models.py): ")
		if err != nil {
			return err
		}
	}
	rel, err := matchModule(ix, fragment)
	if err != nil {
		return err
	}
	doc, err := gen.ForModule(cmd.Context(), rel, ix.FileSymbols(rel))
	if err != nil {
		return err
	}

	path := filepath.Join(ix.Root(), filepath.FromSlash(rel))
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", rel, err)
	}
	updated, err := edit.InsertModuleDocstring(source, doc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, updated, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", rel, err)
	}
	fmt.Fprintf(out, "wrote module docstring to %s%s\n", rel, a.copyNote(doc))
	return nil
}

// copyNote copies the docstring to the clipboard and describes the
// outcome.
func (a *app) copyNote(doc string) string {
	if !a.clipboardCopy(doc) {
		return ""
	}
	return " (copied to clipboard)"
}

// writeSourceDocstring inserts a docstring into one file under root.
func writeSourceDocstring(root, rel, name string, line int, doc string) error {
	path := filepath.Join(root, filepath.FromSlash(rel))
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", rel, err)
	}
	updated, err := edit.InsertDocstring(source, name, line, doc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, updated, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", rel, err)
	}
	return nil
}

// pickSymbol resolves name in the index, asking the user to choose when
// it is ambiguous.
func pickSymbol(reader *bufio.Reader, out io.Writer, ix *index.Index, name string) (*index.Symbol, error) {
	matches := ix.Lookup(name)
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no function or class named %q found", name)
	case 1:
		return matches[0], nil
	}
	fmt.Fprintf(out, "%q is defined in more than one place:\n", name)
	for i, sym := range matches {
		fmt.Fprintf(out, "  %d. %s %s (%s)\n", i+1, sym.Kind, sym.Qualified, sym.Location())
	}
	line, err := promptLine(reader, out, "Which one? ")
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(matches) {
		return nil, fmt.Errorf("invalid selection %q", line)
	}
	return matches[n-1], nil
}

// matchModule resolves a path fragment to exactly one indexed file.
func matchModule(ix *index.Index, fragment string) (string, error) {
	frag := filepath.ToSlash(fragment)
	var matches []string
	for _, rel := range ix.Files() {
		if rel == frag {
			return rel, nil
		}
		if strings.Contains(rel, frag) {
			matches = append(matches, rel)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no indexed file matches %q", fragment)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("%q matches %d files (%s); use a longer fragment",
		fragment, len(matches), strings.Join(matches, ", "))
}

// promptLine reads one non-empty line from the user.
func promptLine(reader *bufio.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("reading input: %w", err)
		}
		return "", fmt.Errorf("nothing entered")
	}
	return line, nil
}
