package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/bundle/internal/app"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove installed gems the lock file no longer references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			cache, _ := cmd.Flags().GetBool("cache")

			return c.app.Clean(cmd.Context(), app.CleanOptions{
				Options: c.options(cmd),
				DryRun:  dryRun,
				Cache:   cache,
			})
		},
	}

	cmd.Flags().String("path", "", "Look for gems in this directory")
	cmd.Flags().BoolP("dry-run", "n", false, "Only print what would be removed")
	cmd.Flags().Bool("cache", false, "Also remove the download cache")

	return cmd
}
