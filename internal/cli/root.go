// Package cli implements the pythion command tree.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/phobologic/pythion/internal/config"
	"github.com/phobologic/pythion/internal/discover"
	"github.com/phobologic/pythion/internal/index"
	"github.com/phobologic/pythion/internal/llm"
)

var version = "dev"

// app carries the state shared by every subcommand: the parsed global
// flags, the resolved configuration, and the logger.
type app struct {
	configPath  string
	verbose     bool
	modelFlag   string
	baseURLFlag string
	timeoutFlag time.Duration

	cfg     config.Config
	timeout time.Duration
	logger  *zap.Logger
}

// Execute runs the pythion command tree.
func Execute() error {
	return newRootCommand().Execute()
}

func newRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "pythion",
		Short: "AI-assisted docstrings for Python codebases",
		Long: `pythion scans a Python source tree, finds functions and classes
without docstrings, drafts them with an OpenAI-compatible model, and
writes them back into the source. Generated docstrings live in a
per-tree cache (.pythion/doc_cache.json) until they are applied, so
repeated runs never pay for the same symbol twice.

The API key is read from OPENAI_API_KEY.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	cmd.SetGlobalNormalizationFunc(normalizeFlagName)

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default "+config.DefaultFile+" in the working directory)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&a.modelFlag, "model", "", "chat model (default from config)")
	pf.StringVar(&a.baseURLFlag, "base-url", "", "OpenAI-compatible API base URL")
	pf.DurationVar(&a.timeoutFlag, "timeout", 0, "per-request timeout (default from config)")

	cmd.AddCommand(
		newBuildCommand(a),
		newIterDocsCommand(a),
		newMakeDocstrCommand(a),
		newCommitCommand(a),
		newBumpCommand(a),
	)
	return cmd
}

// normalizeFlagName maps underscores to dashes so the historical flag
// spellings (--use_all, --base_url) keep working.
func normalizeFlagName(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// setup runs before every subcommand: it builds the logger and resolves
// the configuration. Precedence is flags > config file > environment >
// defaults; the API key is environment only.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	zapConfig := zap.NewProductionConfig()
	if a.verbose {
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zapConfig.Build()
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	a.logger = logger

	path := a.configPath
	if path == "" {
		path = config.DefaultFile
	}
	cfg, err := config.Load(path, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = config.EnvBaseURL()
	}
	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.Model = a.modelFlag
	}
	if flags.Changed("base-url") {
		cfg.BaseURL = a.baseURLFlag
	}
	a.timeout = cfg.Timeout()
	if flags.Changed("timeout") {
		a.timeout = a.timeoutFlag
	}
	a.cfg = cfg
	return nil
}

// client builds the chat-completions client from the resolved
// configuration.
func (a *app) client() *llm.Client {
	return llm.New(llm.Config{
		APIKey:  config.APIKey(),
		BaseURL: a.cfg.BaseURL,
		Model:   a.cfg.Model,
		Timeout: a.timeout,
	}, a.logger)
}

// buildIndex discovers and indexes the Python files under root.
func (a *app) buildIndex(ctx context.Context, root string) (*index.Index, error) {
	files, err := discover.Files(root, a.cfg.IgnoreDirs)
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no python files found under %s", root)
	}
	ix, err := index.Build(ctx, root, files, a.logger)
	if err != nil {
		return nil, err
	}
	if dups := ix.DuplicateNames(); len(dups) > 0 {
		a.logger.Warn("ambiguous symbol names", zap.Strings("names", dups))
	}
	return ix, nil
}

// resolveRoot validates the root directory argument and makes it
// absolute.
func resolveRoot(arg string) (string, error) {
	root, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s: not a directory", root)
	}
	return root, nil
}
