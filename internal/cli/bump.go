package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phobologic/pythion/internal/pyversion"
)

func newBumpCommand(a *app) *cobra.Command {
	var (
		file    string
		pattern string
	)
	cmd := &cobra.Command{
		Use:   "bump-version",
		Short: "Increment the patch version in pyproject.toml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			old, next, err := pyversion.Bump(file, pattern)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", file, old, next)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", pyversion.DefaultFile, "file holding the version string")
	cmd.Flags().StringVar(&pattern, "pattern", pyversion.DefaultPattern, "regexp whose first capture group is the version")
	return cmd
}
