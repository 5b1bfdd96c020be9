// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scriptvault/scriptvault/internal/issue"
	"github.com/scriptvault/scriptvault/pkg/archive"
)

type specInitOptions struct {
	deps    []string
	plugins []string
	meta    []string
	imports []string
	exports []string
	format  string
	dir     string
	force   bool
}

// newSpecCommand creates the `scriptvault spec` command tree.
func newSpecCommand(app *App) *cobra.Command {
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Create and inspect module specs",
		Long: `Create and inspect module specs.

A module spec is stored next to the scripts of an archive as moduleSpec.cue,
moduleSpec.toml or moduleSpec.yaml.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var initOpts specInitOptions
	initCmd := &cobra.Command{
		Use:   "init <module-id>",
		Short: "Write a new module spec file",
		Args:  cobra.ExactArgs(1),
		RunE: runE(app, func(cmd *cobra.Command, args []string) error {
			return initSpec(cmd, app, args[0], initOpts)
		}),
	}
	initCmd.Flags().StringArrayVar(&initOpts.deps, "dep", nil, "module dependency (repeatable)")
	initCmd.Flags().StringArrayVar(&initOpts.plugins, "plugin", nil, "compiler plugin id (repeatable)")
	initCmd.Flags().StringArrayVar(&initOpts.meta, "meta", nil, "metadata entry as key=value (repeatable)")
	initCmd.Flags().StringArrayVar(&initOpts.imports, "import", nil, "module import filter path (repeatable)")
	initCmd.Flags().StringArrayVar(&initOpts.exports, "export", nil, "module export filter path (repeatable)")
	initCmd.Flags().StringVar(&initOpts.format, "format", "", "spec file format: cue, toml or yaml (default from config)")
	initCmd.Flags().StringVar(&initOpts.dir, "dir", ".", "directory to write the spec file to")
	initCmd.Flags().BoolVar(&initOpts.force, "force", false, "replace an existing spec file")

	var showFormat string
	showCmd := &cobra.Command{
		Use:   "show <dir|zip>",
		Short: "Show the module spec of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: runE(app, func(cmd *cobra.Command, args []string) error {
			return showSpec(app, args[0], showFormat)
		}),
	}
	showCmd.Flags().StringVar(&showFormat, "format", "", "print the raw spec in this format (cue, toml or yaml) instead of a summary")

	specCmd.AddCommand(initCmd, showCmd)
	return specCmd
}

func initSpec(cmd *cobra.Command, app *App, rawID string, opts specInitOptions) error {
	b, err := archive.NewModuleSpecBuilderFromString(rawID)
	if err != nil {
		return invalidModuleIDError(err)
	}
	if err := b.AddModuleDependencyStrings(opts.deps...); err != nil {
		return invalidModuleIDError(err)
	}
	metadata, err := parseKeyValues(opts.meta)
	if err != nil {
		return err
	}
	spec := b.AddCompilerPluginIDs(opts.plugins...).
		AddModuleImportFilters(opts.imports...).
		AddModuleExportFilters(opts.exports...).
		AddMetadataMap(metadata).
		Build()

	format := archive.SpecFormat(opts.format)
	if format == "" {
		cfg, err := app.loadConfig(cmd.Context())
		if err != nil {
			return err
		}
		format = cfg.SpecFormat
	}
	serializer, err := archive.SerializerFor(format)
	if err != nil {
		return err
	}

	if existing, _, err := archive.FindSpecFile(opts.dir); err == nil && !opts.force {
		return issue.NewErrorContext().
			WithOperation("write module spec").
			WithResource(existing).
			WithSuggestion("Pass --force to replace the existing spec file").
			Wrap(errors.New("a spec file already exists")).
			BuildError()
	}

	data, err := serializer.Serialize(spec)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(opts.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	path := filepath.Join(opts.dir, serializer.FileName())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write spec file: %w", err)
	}
	app.Logger().Debug("spec written", "module", spec.ModuleID(), "path", path)

	fmt.Fprintf(app.stdout, "%s Created %s for %s\n", SuccessStyle.Render("✓"), path, KeyStyle.Render(spec.ModuleID().String()))
	return nil
}

func showSpec(app *App, path, format string) error {
	a, err := loadArchive(path)
	if err != nil {
		return err
	}

	if format != "" {
		serializer, err := archive.SerializerFor(archive.SpecFormat(format))
		if err != nil {
			return err
		}
		data, err := serializer.Serialize(a.Spec())
		if err != nil {
			return err
		}
		_, err = app.stdout.Write(data)
		return err
	}

	rendered, err := app.renderMarkdown(archiveMarkdown(a))
	if err != nil {
		return err
	}
	fmt.Fprint(app.stdout, rendered)
	return nil
}

// archiveMarkdown describes an archive and its spec as Markdown.
func archiveMarkdown(a *archive.ScriptArchive) string {
	spec := a.Spec()
	var md strings.Builder

	fmt.Fprintf(&md, "# %s\n\n", spec.ModuleID())
	fmt.Fprintf(&md, "- **Name:** %s\n", spec.ModuleID().Name())
	if spec.ModuleID().HasVersion() {
		fmt.Fprintf(&md, "- **Version:** %s\n", spec.ModuleID().Version())
	}
	fmt.Fprintf(&md, "- **Entries:** %d (%d bytes)\n", len(a.EntryNames()), a.Size())
	if !a.CreateTime().IsZero() {
		fmt.Fprintf(&md, "- **Created:** %s\n", a.CreateTime().UTC().Format("2006-01-02 15:04:05 MST"))
	}

	deps := make([]string, 0, len(spec.ModuleDependencies()))
	for _, d := range spec.ModuleDependencies() {
		deps = append(deps, d.String())
	}
	writeMarkdownList(&md, "Dependencies", deps)
	writeMarkdownList(&md, "Compiler plugins", spec.CompilerPluginIDs())
	writeMarkdownList(&md, "Import filters", spec.ImportFilterPaths())
	writeMarkdownList(&md, "Export filters", spec.ExportFilterPaths())

	metadata := spec.Metadata()
	if len(metadata) > 0 {
		md.WriteString("\n## Metadata\n\n")
		keys := make([]string, 0, len(metadata))
		for k := range metadata {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(&md, "- `%s`: %v\n", k, metadata[k])
		}
	}

	writeMarkdownList(&md, "Entries", a.EntryNames())
	return md.String()
}

func writeMarkdownList(md *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(md, "\n## %s\n\n", title)
	for _, item := range items {
		fmt.Fprintf(md, "- `%s`\n", item)
	}
}
