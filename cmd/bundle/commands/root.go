// Package commands implements the CLI commands for the bundle dependency manager.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.trai.ch/bundle/internal/app"
	"go.trai.ch/bundle/internal/build"
)

// CLI represents the command line interface for bundle.
type CLI struct {
	app     Application
	rootCmd *cobra.Command
	gemfile string
}

// Application represents the application logic interface.
type Application interface {
	Install(ctx context.Context, opts app.Options) error
	Update(ctx context.Context, gems []string, opts app.Options) error
	Lock(ctx context.Context, gems []string, opts app.Options) error
	Check(ctx context.Context, opts app.Options) error
	Show(ctx context.Context, name string, opts app.Options) error
	Viz(ctx context.Context, opts app.VizOptions) error
	Exec(ctx context.Context, args []string, opts app.ExecOptions) error
	Clean(ctx context.Context, opts app.CleanOptions) error
	Init(ctx context.Context, opts app.InitOptions) error
	Watch(ctx context.Context, opts app.Options) error
	ConfigureLogging(verbose, json bool)
}

// New creates a new CLI instance with the given app.
func New(a Application) *CLI {
	rootCmd := &cobra.Command{
		Use:           "bundle",
		Short:         "Manage an application's gem dependencies",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.gemfile, "gemfile", "", "Use the specified Bundlefile instead of searching for one")
	flags.BoolP("verbose", "V", false, "Enable debug output")
	flags.Bool("json", false, "Log in JSON")
	flags.Bool("no-color", false, "Disable colored output")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		json, _ := cmd.Flags().GetBool("json")
		noColor, _ := cmd.Flags().GetBool("no-color")
		if noColor {
			_ = os.Setenv("NO_COLOR", "1")
		}
		c.app.ConfigureLogging(verbose, json)
	}

	rootCmd.AddCommand(c.newInstallCmd())
	rootCmd.AddCommand(c.newUpdateCmd())
	rootCmd.AddCommand(c.newLockCmd())
	rootCmd.AddCommand(c.newCheckCmd())
	rootCmd.AddCommand(c.newShowCmd())
	rootCmd.AddCommand(c.newVizCmd())
	rootCmd.AddCommand(c.newExecCmd())
	rootCmd.AddCommand(c.newCleanCmd())
	rootCmd.AddCommand(c.newInitCmd())
	rootCmd.AddCommand(c.newWatchCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// addInstallFlags registers the flags shared by commands that install.
func addInstallFlags(cmd *cobra.Command) {
	cmd.Flags().String("path", "", "Install gems into this directory")
	cmd.Flags().IntP("jobs", "j", 0, "Number of gems to install in parallel")
	cmd.Flags().Bool("frozen", false, "Fail instead of updating the lock file")
	cmd.Flags().StringSlice("without", nil, "Exclude gems in these groups")
	cmd.Flags().StringP("output", "o", "auto", "Output mode: auto, tui, or linear")
	cmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this file")
}

// options collects the project flags of cmd. Flags a command does not
// define are left at their zero value.
func (c *CLI) options(cmd *cobra.Command) app.Options {
	path, _ := cmd.Flags().GetString("path")
	jobs, _ := cmd.Flags().GetInt("jobs")
	frozen, _ := cmd.Flags().GetBool("frozen")
	without, _ := cmd.Flags().GetStringSlice("without")
	outputMode, _ := cmd.Flags().GetString("output")
	metricsFile, _ := cmd.Flags().GetString("metrics-file")
	if len(without) == 0 {
		without = nil
	}

	return app.Options{
		Gemfile:     c.gemfile,
		Path:        path,
		Jobs:        jobs,
		Frozen:      frozen,
		Without:     without,
		OutputMode:  outputMode,
		MetricsFile: metricsFile,
	}
}
