// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the scriptvault command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scriptvault",
		Short: "Store and browse versioned script archives",
		Long: TitleStyle.Render("scriptvault") + SubtitleStyle.Render(" - a repository for versioned script archives") + `

scriptvault packages directories of scripts together with a module spec
(identity, dependencies, compiler plugins, import/export filters, metadata)
and stores them in a repository backed by the filesystem, BadgerDB, Redis,
SQLite or S3.

` + SubtitleStyle.Render("Examples:") + `
  scriptvault spec init acme:util --dep acme:base:1.0   Write a module spec
  scriptvault repo insert ./acme-util                   Store a directory archive
  scriptvault repo list --view gold                     List a named view
  scriptvault config show                               Show current configuration`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output and debug logging")
	rootCmd.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default is $HOME/.config/scriptvault/config.cue)")

	rootCmd.AddCommand(
		newSpecCommand(app),
		newArchiveCommand(app),
		newRepoCommand(app),
		newConfigCommand(app),
	)

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// runE adapts a handler so that actionable errors print their suggestions
// before the runner prints the error itself.
func runE(app *App, fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if err != nil {
			app.reportError(err)
		}
		return err
	}
}

// Execute runs the CLI. It is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
