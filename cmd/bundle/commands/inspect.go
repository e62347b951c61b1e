package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/bundle/internal/app"
)

func (c *CLI) newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify that every locked gem is installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Check(cmd.Context(), c.options(cmd))
		},
	}
	cmd.Flags().String("path", "", "Look for gems in this directory")
	return cmd
}

func (c *CLI) newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [gem]",
		Short: "List the bundled gems, or print where one is installed",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) > 0 {
				name = args[0]
			}
			return c.app.Show(cmd.Context(), name, c.options(cmd))
		},
	}
	cmd.Flags().String("path", "", "Look for gems in this directory")
	return cmd
}

func (c *CLI) newVizCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "viz",
		Short: "Render the dependency graph of the bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("file")
			return c.app.Viz(cmd.Context(), app.VizOptions{
				Options: c.options(cmd),
				Format:  format,
				Output:  output,
			})
		},
	}
	cmd.Flags().StringP("format", "F", "dot", "Graph format: dot, svg, or png")
	cmd.Flags().StringP("file", "f", "", "Write the graph to this file instead of stdout")
	return cmd
}
