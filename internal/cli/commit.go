package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/phobologic/pythion/internal/gitcommit"
)

func newCommitCommand(a *app) *cobra.Command {
	var (
		instruction string
		profile     string
	)
	cmd := &cobra.Command{
		Use:   "make-commit",
		Short: "Draft a commit message from the staged diff and commit",
		Long: `make-commit reads the staged diff in the current repository, asks the
model for an imperative one-line commit message, prints it, and runs
git commit with it. Stage your changes first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			guidance, err := gitcommit.CommitProfile(profile)
			if err != nil {
				return err
			}
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting working directory: %w", err)
			}
			diff, err := gitcommit.StagedDiff(cmd.Context(), dir)
			if err != nil {
				return err
			}
			message, err := gitcommit.Message(cmd.Context(), a.client(), diff, gitcommit.Options{
				Instruction: instruction,
				Profile:     guidance,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, message)
			result, err := gitcommit.Commit(cmd.Context(), dir, message)
			if err != nil {
				return err
			}
			if result != "" {
				fmt.Fprintln(out, result)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&instruction, "instruction", "i", "", "extra instruction for the model")
	cmd.Flags().StringVar(&profile, "profile", "", "commit profile (no-version)")
	return cmd
}
