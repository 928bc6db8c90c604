package cli

import (
	"fmt"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/pythion/internal/cache"
	"github.com/phobologic/pythion/internal/docgen"
	"github.com/phobologic/pythion/internal/index"
)

func newBuildCommand(a *app) *cobra.Command {
	var (
		useAll  bool
		dry     bool
		workers int
	)
	cmd := &cobra.Command{
		Use:   "build-doc-cache <root_dir>",
		Short: "Generate docstrings for a tree and store them in the doc cache",
		Long: `build-doc-cache indexes every Python file under the root, selects the
functions and classes without docstrings (all of them with --use-all),
generates a docstring for each, and writes the results to
.pythion/doc_cache.json under the root. Apply them later with
iter-docs. Symbols carrying a "pythion:ignore" comment are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot(args[0])
			if err != nil {
				return err
			}
			ix, err := a.buildIndex(cmd.Context(), root)
			if err != nil {
				return err
			}

			var candidates []*index.Symbol
			for _, sym := range ix.All() {
				if sym.Ignored() {
					continue
				}
				if sym.HasDocstring && !useAll {
					continue
				}
				candidates = append(candidates, sym)
			}
			out := cmd.OutOrStdout()
			if len(candidates) == 0 {
				fmt.Fprintln(out, "nothing to document")
				return nil
			}
			if dry {
				fmt.Fprintf(out, "would generate docstrings for %d symbols:\n", len(candidates))
				for _, sym := range candidates {
					fmt.Fprintf(out, "  %s %s (%s)\n", sym.Kind, sym.Qualified, sym.Location())
				}
				return nil
			}

			store, err := cache.Load(root)
			if err != nil {
				return err
			}
			gen := docgen.New(a.client(), docgen.Options{}, a.logger)

			var work []*index.Symbol
			reused := 0
			for _, sym := range candidates {
				key := cache.Key(sym.File, sym.Qualified)
				if !useAll && store.Fresh(key, sym.ContentHash()) != nil {
					reused++
					continue
				}
				work = append(work, sym)
			}

			var generated, failed int
			if len(work) > 0 {
				if workers < 1 {
					workers = a.cfg.Workers
				}
				bar := progressbar.NewOptions(len(work),
					progressbar.OptionSetWriter(cmd.ErrOrStderr()),
					progressbar.OptionSetDescription("generating"),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)

				var mu sync.Mutex
				g, ctx := errgroup.WithContext(cmd.Context())
				g.SetLimit(workers)
				for _, sym := range work {
					sym := sym
					g.Go(func() error {
						doc, err := gen.ForSymbol(ctx, sym, ix.Resolve(sym))
						_ = bar.Add(1)
						mu.Lock()
						defer mu.Unlock()
						if err != nil {
							a.logger.Warn("generation failed",
								zap.String("symbol", sym.Qualified),
								zap.String("file", sym.File),
								zap.Error(err))
							failed++
							return nil
						}
						store.Put(&cache.Entry{
							Name:      sym.Qualified,
							Kind:      string(sym.Kind),
							File:      sym.File,
							Line:      sym.Line,
							Hash:      sym.ContentHash(),
							Docstring: doc,
							Model:     gen.Model(),
							CreatedAt: time.Now().UTC(),
						})
						generated++
						return nil
					})
				}
				if err := g.Wait(); err != nil {
					return err
				}
				_ = bar.Finish()
			}

			store.Model = gen.Model()
			if err := store.Save(root); err != nil {
				return err
			}
			fmt.Fprintf(out, "doc cache written: %s (%d generated, %d reused, %d failed)\n",
				cache.Path(root), generated, reused, failed)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&useAll, "use-all", "u", false, "regenerate docstrings for documented symbols too")
	cmd.Flags().BoolVar(&dry, "dry", false, "list the candidate symbols without calling the model")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent generation workers (default from config)")
	return cmd
}
