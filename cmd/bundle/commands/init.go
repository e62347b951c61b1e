package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/bundle/internal/app"
)

func (c *CLI) newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a new Bundlefile in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gemspec, _ := cmd.Flags().GetString("gemspec")
			return c.app.Init(cmd.Context(), app.InitOptions{Gemspec: gemspec})
		},
	}
	cmd.Flags().String("gemspec", "", "Declare the dependencies of this gem specification")
	return cmd
}
