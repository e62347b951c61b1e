package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/bundle/internal/app"
)

func (c *CLI) newExecCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec [flags] -- command [args...]",
		Short: "Run a command with only the bundled gems available",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tty, _ := cmd.Flags().GetBool("tty")
			return c.app.Exec(cmd.Context(), args, app.ExecOptions{
				Options: c.options(cmd),
				TTY:     tty,
			})
		},
	}
	// Everything after the command name belongs to the command.
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().String("path", "", "Look for gems in this directory")
	cmd.Flags().StringSlice("without", nil, "Exclude gems in these groups")
	cmd.Flags().BoolP("tty", "t", false, "Run the command under a pseudo terminal")
	return cmd
}
