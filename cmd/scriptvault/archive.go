// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scriptvault/scriptvault/internal/issue"
	"github.com/scriptvault/scriptvault/pkg/archive"
)

// newArchiveCommand creates the `scriptvault archive` command tree.
func newArchiveCommand(app *App) *cobra.Command {
	archiveCmd := &cobra.Command{
		Use:   "archive",
		Short: "Work with script archives on disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var output string
	packCmd := &cobra.Command{
		Use:   "pack <dir>",
		Short: "Pack a directory archive into a ZIP file",
		Long: `Pack a directory archive into a ZIP file.

The spec file of the directory is stored at the root of the ZIP. Without
--output the ZIP is named after the module id and written to the current
directory.`,
		Args: cobra.ExactArgs(1),
		RunE: runE(app, func(cmd *cobra.Command, args []string) error {
			return packArchive(app, args[0], output)
		}),
	}
	packCmd.Flags().StringVarP(&output, "output", "o", "", "path of the ZIP file to write")

	archiveCmd.AddCommand(packCmd)
	return archiveCmd
}

func packArchive(app *App, dir, output string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return archiveLoadError(dir, fmt.Errorf("%s is not a directory", dir))
	}
	a, err := loadArchive(dir)
	if err != nil {
		return err
	}

	if output == "" {
		output = zipFileName(a.ModuleID())
	}
	if err := writeZipFile(output, a); err != nil {
		return err
	}

	fmt.Fprintf(app.stdout, "%s Packed %s (%d entries, %d bytes) into %s\n",
		SuccessStyle.Render("✓"), KeyStyle.Render(a.ModuleID().String()), len(a.EntryNames()), a.Size(), output)
	return nil
}

// loadArchive loads a directory or ZIP archive.
func loadArchive(path string) (*archive.ScriptArchive, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, archiveLoadError(path, err)
	}

	var a *archive.ScriptArchive
	switch {
	case info.IsDir():
		a, err = archive.LoadDirectory(path)
	case strings.EqualFold(filepath.Ext(path), ".zip"):
		a, err = archive.LoadZip(path)
	default:
		err = errors.New("expected a directory or a .zip file")
	}
	if err != nil {
		return nil, archiveLoadError(path, err)
	}
	return a, nil
}

func archiveLoadError(path string, err error) error {
	ctx := issue.NewErrorContext().
		WithIssue(issue.ArchiveLoadFailedId).
		WithOperation("load archive").
		WithResource(path)
	if errors.Is(err, archive.ErrInvalidModuleID) {
		ctx.WithSuggestion("Add a moduleSpec.cue file with a module_id, or rename the directory to a valid module id")
	} else {
		ctx.WithSuggestion("Check that the path exists and points to a directory or a .zip file")
	}
	return ctx.Wrap(err).BuildError()
}

// zipFileName returns the file name of the ZIP for id. The id is escaped so that
// names containing path separators stay a single file name.
func zipFileName(id archive.ModuleID) string {
	return url.PathEscape(id.String()) + ".zip"
}

// writeZipFile writes a as a ZIP file at path.
func writeZipFile(path string, a *archive.ScriptArchive) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return archive.WriteZip(f, a)
}

// parseModuleIDs parses every argument as a module id.
func parseModuleIDs(args []string) ([]archive.ModuleID, error) {
	ids := make([]archive.ModuleID, 0, len(args))
	for _, arg := range args {
		id, err := archive.ParseModuleID(arg)
		if err != nil {
			return nil, invalidModuleIDError(err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func invalidModuleIDError(err error) error {
	return issue.NewErrorContext().
		WithIssue(issue.InvalidModuleIDId).
		WithOperation("parse module id").
		WithSuggestion("Module ids have the form <name> or <name>:<version>").
		WithSuggestion("The version follows the last ':' and ids must not contain whitespace").
		Wrap(err).
		BuildError()
}

// parseKeyValues parses key=value pairs. Later pairs replace earlier ones.
func parseKeyValues(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid key=value pair %q", pair)
		}
		out[key] = value
	}
	return out, nil
}
