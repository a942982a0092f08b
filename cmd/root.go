package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/spkg/pkg/config"
)

// rootFlags holds the persistent flags; zero values fall through to the
// environment and settings.yaml.
var rootFlags config.Settings

// NewRootCmd builds the spkg command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "spkg",
		Short: "Install and update scripts from remote repositories",
		Long: `spkg tracks named script repositories, each serving a manifest.json of
available scripts, and installs scripts from them into the local script directory.

Examples:
  spkg repo add core https://scripts.example.com/core
  spkg script list
  spkg script install foo
  spkg script update --repo=core foo`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.Home, "home", "", "Base directory (default $SPKG_HOME or ~/.spkg)")
	pf.StringVar(&rootFlags.ScriptDir, "script-dir", "", "Directory scripts are installed into (default <home>/scripts)")
	pf.StringVar(&rootFlags.Layout, "layout", "", "Install layout: flat or per-repo")
	pf.StringVar(&rootFlags.LogLevel, "log-level", "", "Log level: debug, info, warning, error")
	pf.DurationVar(&rootFlags.HTTPTimeout, "timeout", 0, "Timeout for each repository request (default 30s)")

	rootCmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return usageError{err}
	})

	rootCmd.AddCommand(NewRepoCmd())
	rootCmd.AddCommand(NewScriptCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// Execute runs the command line and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return report(stderr, err)
	}
	return Success
}
