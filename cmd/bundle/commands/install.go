package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the gems in the Bundlefile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Install(cmd.Context(), c.options(cmd))
		},
	}
	addInstallFlags(cmd)
	return cmd
}

func (c *CLI) newUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update [gems...]",
		Short: "Update gems to the latest allowed versions",
		Long: "Update re-resolves the named gems, or every gem when none are named, " +
			"ignoring their locked versions, then installs the result.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Update(cmd.Context(), args, c.options(cmd))
		},
	}
	addInstallFlags(cmd)
	return cmd
}

func (c *CLI) newLockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lock [gems...]",
		Short: "Resolve and write the lock file without installing",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Lock(cmd.Context(), args, c.options(cmd))
		},
	}
}

func (c *CLI) newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reinstall whenever the Bundlefile or a path gem changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Watch(cmd.Context(), c.options(cmd))
		},
	}
	addInstallFlags(cmd)
	return cmd
}
