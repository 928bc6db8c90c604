package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phobologic/pythion/internal/cache"
	"github.com/phobologic/pythion/internal/edit"
)

// clipboardWriteAll is a package variable so tests can swap it out.
var clipboardWriteAll = clipboard.WriteAll

// clipboardCopy puts text on the clipboard. Failures are logged, not
// fatal.
func (a *app) clipboardCopy(text string) bool {
	if err := clipboardWriteAll(text); err != nil {
		a.logger.Warn("clipboard copy failed", zap.Error(err))
		return false
	}
	return true
}

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63"))
	locStyle = lipgloss.NewStyle().Faint(true)
)

func newIterDocsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "iter-docs <root_dir>",
		Short: "Step through cached docstrings and apply them to the source",
		Long: `iter-docs walks the doc cache built for the root one entry at a time.
Each docstring is shown and copied to the clipboard; apply writes it
into the source file and drops it from the cache, skip keeps it for a
later pass, pop drops it without applying, quit stops and keeps the
rest.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot(args[0])
			if err != nil {
				return err
			}
			store, err := cache.Load(root)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if store.Len() == 0 {
				fmt.Fprintf(out, "doc cache is empty; run build-doc-cache %s first\n", args[0])
				return nil
			}

			reader := bufio.NewReader(cmd.InOrStdin())
			entries := store.Ordered()
			var applied, popped, skipped int
			changed := false
		review:
			for i, entry := range entries {
				fmt.Fprintln(out, renderEntry(entry, i+1, len(entries)))
				a.clipboardCopy(entry.Docstring)
				switch promptChoice(reader, out) {
				case "apply":
					if err := applyEntry(root, entry); err != nil {
						fmt.Fprintf(out, "apply failed: %v\n", err)
						skipped++
						continue
					}
					store.Pop(cache.Key(entry.File, entry.Name))
					applied++
					changed = true
					fmt.Fprintf(out, "applied %s to %s\n", entry.Name, entry.File)
				case "pop":
					store.Pop(cache.Key(entry.File, entry.Name))
					popped++
					changed = true
				case "skip":
					skipped++
				case "quit":
					break review
				}
			}

			if changed {
				if err := store.Save(root); err != nil {
					return err
				}
			}
			fmt.Fprintf(out, "%d applied, %d popped, %d skipped, %d left in the cache\n",
				applied, popped, skipped, store.Len())
			return nil
		},
	}
}

// promptChoice reads one action from the user, re-prompting on garbage.
// EOF means quit.
func promptChoice(reader *bufio.Reader, out io.Writer) string {
	for {
		fmt.Fprint(out, "[a]pply  [s]kip  [p]op  [q]uit > ")
		line, err := reader.ReadString('\n')
		choice := strings.ToLower(strings.TrimSpace(line))
		if err != nil && choice == "" {
			return "quit"
		}
		switch choice {
		case "a", "apply":
			return "apply"
		case "s", "skip", "":
			return "skip"
		case "p", "pop":
			return "pop"
		case "q", "quit":
			return "quit"
		}
		if err != nil {
			return "quit"
		}
	}
}

// applyEntry writes a cached docstring into its source file.
func applyEntry(root string, entry *cache.Entry) error {
	path := filepath.Join(root, filepath.FromSlash(entry.File))
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", entry.File, err)
	}
	updated, err := edit.InsertDocstring(source, entry.Name, entry.Line, entry.Docstring)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, updated, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", entry.File, err)
	}
	return nil
}

func renderEntry(entry *cache.Entry, pos, total int) string {
	header := titleStyle.Render(entry.Name) + "  " +
		locStyle.Render(fmt.Sprintf("%s:%d  %s  %d/%d", entry.File, entry.Line, entry.Kind, pos, total))
	return panelStyle.Render(header + "\n\n" + entry.Docstring)
}
