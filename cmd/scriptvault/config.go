// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/scriptvault/scriptvault/internal/config"
)

const redacted = "********"

// newConfigCommand creates the `scriptvault config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage scriptvault configuration",
		Long: `Manage scriptvault configuration.

Configuration is stored in CUE format at:
  - Linux: ~/.config/scriptvault/config.cue
  - macOS: ~/Library/Application Support/scriptvault/config.cue
  - Windows: %APPDATA%\scriptvault\config.cue

Every value can be overridden with a SCRIPTVAULT_* environment variable,
e.g. SCRIPTVAULT_REPOSITORY_BACKEND=memory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: runE(app, func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd, app)
		}),
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		Args:  cobra.NoArgs,
		RunE: runE(app, func(cmd *cobra.Command, args []string) error {
			path, err := config.ResolvePath(config.LoadOptions{ConfigFilePath: app.configPath})
			if err != nil {
				return err
			}
			if path == "" {
				dir, err := config.ConfigDir()
				if err != nil {
					return err
				}
				fmt.Fprintf(app.stdout, "%s (not created)\n", filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt))
				return nil
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		}),
	}

	var (
		printOnly bool
		force     bool
		dir       string
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default configuration file",
		Args:  cobra.NoArgs,
		RunE: runE(app, func(cmd *cobra.Command, args []string) error {
			if printOnly {
				content, err := config.GenerateCUE(config.DefaultConfig())
				if err != nil {
					return err
				}
				_, err = app.stdout.Write(content)
				return err
			}
			path, err := config.WriteDefaultConfig(dir, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "%s Configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		}),
	}
	initCmd.Flags().BoolVar(&printOnly, "print", false, "print the default configuration instead of writing it")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration file")
	initCmd.Flags().StringVar(&dir, "dir", "", "directory to write config.cue to (default is the platform config directory)")

	configCmd.AddCommand(showCmd, pathCmd, initCmd)
	return configCmd
}

func showConfig(cmd *cobra.Command, app *App) error {
	path, err := config.ResolvePath(config.LoadOptions{ConfigFilePath: app.configPath})
	if err != nil {
		return err
	}
	cfg, err := app.loadConfig(cmd.Context())
	if err != nil {
		return err
	}

	shown := *cfg
	if shown.Repository.Redis.Password != "" {
		shown.Repository.Redis.Password = redacted
	}
	content, err := config.GenerateCUE(&shown)
	if err != nil {
		return err
	}

	source := path
	if source == "" {
		source = "defaults (no config file found)"
	}
	fmt.Fprintln(app.stdout, TitleStyle.Render("Configuration"))
	fmt.Fprintf(app.stdout, "%s %s\n\n", KeyStyle.Render("source:"), source)
	_, err = app.stdout.Write(content)
	return err
}
