// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/scriptvault/scriptvault/internal/issue"
	"github.com/scriptvault/scriptvault/internal/watch"
	"github.com/scriptvault/scriptvault/pkg/archive"
	"github.com/scriptvault/scriptvault/pkg/repository"
)

const timeLayout = "2006-01-02 15:04:05"

// newRepoCommand creates the `scriptvault repo` command tree.
func newRepoCommand(app *App) *cobra.Command {
	repoCmd := &cobra.Command{
		Use:   "repo",
		Short: "Insert, fetch and list archives in the configured repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	repoCmd.AddCommand(
		newRepoInsertCommand(app),
		newRepoGetCommand(app),
		newRepoDeleteCommand(app),
		newRepoListCommand(app),
		newRepoViewsCommand(app),
		newRepoWatchCommand(app),
	)
	return repoCmd
}

func newRepoInsertCommand(app *App) *cobra.Command {
	var deploy []string
	cmd := &cobra.Command{
		Use:   "insert <dir|zip>...",
		Short: "Store archives, replacing archives with the same module id",
		Args:  cobra.MinimumNArgs(1),
		RunE: runE(app, func(cmd *cobra.Command, args []string) error {
			deploySpecs, err := parseKeyValues(deploy)
			if err != nil {
				return err
			}

			archives := make([]*archive.ScriptArchive, 0, len(args))
			for _, path := range args {
				a, err := loadArchive(path)
				if err != nil {
					return err
				}
				archives = append(archives, a)
			}

			ctx := cmd.Context()
			return app.withRepository(ctx, func(repo Repository) error {
				for _, a := range archives {
					var err error
					if deploySpecs != nil {
						err = repo.InsertArchiveWithDeploySpecs(ctx, a, deploySpecs)
					} else {
						err = repo.InsertArchive(ctx, a)
					}
					if err != nil {
						return insertError(repo, a.ModuleID(), err)
					}
					fmt.Fprintf(app.stdout, "%s Inserted %s\n", SuccessStyle.Render("✓"), KeyStyle.Render(a.ModuleID().String()))
				}
				return nil
			})
		}),
	}
	cmd.Flags().StringArrayVar(&deploy, "deploy", nil, "deploy spec entry as key=value, stored with every archive (repeatable)")
	return cmd
}

func insertError(repo Repository, id archive.ModuleID, err error) error {
	if !errors.Is(err, repository.ErrUnsupportedFeature) {
		return err
	}
	return issue.NewErrorContext().
		WithIssue(issue.DeploySpecsUnsupportedId).
		WithOperation("insert archive").
		WithResource(id.String()).
		WithSuggestion(fmt.Sprintf("Set repository.deploy_specs: true for repository %q", repo.RepositoryID())).
		WithSuggestion("Omit --deploy to store the archive without deploy specs").
		Wrap(err).
		BuildError()
}

func newRepoGetCommand(app *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "get <module-id>...",
		Short: "Fetch archives by module id",
		Long: `Fetch archives by module id.

Without --output a summary of every archive found is printed. With --output
each archive is written as <module-id>.zip into that directory, with path
separators in the module id escaped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runE(app, func(cmd *cobra.Command, args []string) error {
			ids, err := parseModuleIDs(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return app.withRepository(ctx, func(repo Repository) error {
				archives, err := repo.GetScriptArchives(ctx, ids)
				if err != nil {
					return err
				}
				return printArchives(app, ids, archives, output)
			})
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "directory to write the fetched archives to as ZIP files")
	return cmd
}

func printArchives(app *App, ids []archive.ModuleID, archives []*archive.ScriptArchive, output string) error {
	found := make(map[archive.ModuleID]*archive.ScriptArchive, len(archives))
	for _, a := range archives {
		found[a.ModuleID()] = a
	}

	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok && !slices.Contains(missing, id.String()) {
			missing = append(missing, id.String())
		}
	}
	if len(archives) == 0 {
		return issue.NewErrorContext().
			WithIssue(issue.ArchiveNotFoundId).
			WithOperation("get archives").
			WithResource(strings.Join(missing, ", ")).
			WithSuggestion("Run 'scriptvault repo list' to see the stored module ids").
			Wrap(errors.New("no archive stored under the requested module ids")).
			BuildError()
	}
	for _, id := range missing {
		fmt.Fprintf(app.stderr, "%s %s not found\n", WarningStyle.Render("!"), id)
	}

	if output != "" {
		if err := os.MkdirAll(output, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	for _, a := range archives {
		if output == "" {
			fmt.Fprintf(app.stdout, "%s  %d entries  %d bytes  created %s\n",
				KeyStyle.Render(a.ModuleID().String()), len(a.EntryNames()), a.Size(), formatTime(a.CreateTime()))
			continue
		}
		path := filepath.Join(output, zipFileName(a.ModuleID()))
		if err := writeZipFile(path, a); err != nil {
			return err
		}
		fmt.Fprintf(app.stdout, "%s Wrote %s\n", SuccessStyle.Render("✓"), path)
	}
	return nil
}

func newRepoDeleteCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <module-id>...",
		Short: "Delete archives by module id",
		Args:  cobra.MinimumNArgs(1),
		RunE: runE(app, func(cmd *cobra.Command, args []string) error {
			ids, err := parseModuleIDs(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return app.withRepository(ctx, func(repo Repository) error {
				for _, id := range ids {
					if err := repo.DeleteArchive(ctx, id); err != nil {
						return err
					}
					fmt.Fprintf(app.stdout, "%s Deleted %s\n", SuccessStyle.Render("✓"), KeyStyle.Render(id.String()))
				}
				return nil
			})
		}),
	}
}

func newRepoListCommand(app *App) *cobra.Command {
	var viewName string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the archives visible through a view",
		Args:  cobra.NoArgs,
		RunE: runE(app, func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return app.withRepository(ctx, func(repo Repository) error {
				view, err := repo.View(viewName)
				if err != nil {
					return viewError(repo, viewName, err)
				}
				summary, err := view.RepositorySummary(ctx)
				if err != nil {
					return err
				}
				archives, err := view.ArchiveSummaries(ctx)
				if err != nil {
					return err
				}
				printSummaries(app, summary, archives)
				return nil
			})
		}),
	}
	cmd.Flags().StringVar(&viewName, "view", repository.DefaultViewName, "name of the view to list")
	return cmd
}

func viewError(repo Repository, name string, err error) error {
	if !errors.Is(err, repository.ErrUnsupportedView) {
		return err
	}
	return issue.NewErrorContext().
		WithIssue(issue.ViewNotFoundId).
		WithOperation("select view").
		WithResource(name).
		WithSuggestion("Available views: " + strings.Join(repo.ViewNames(), ", ")).
		WithSuggestion("Views are declared under repository.views in the config file").
		Wrap(err).
		BuildError()
}

func printSummaries(app *App, summary *repository.RepositorySummary, archives []repository.ArchiveSummary) {
	header := fmt.Sprintf("Repository %s (view %s)", summary.RepositoryID, summary.ViewName)
	fmt.Fprintln(app.stdout, TitleStyle.Render(header))
	if summary.Description != "" {
		fmt.Fprintln(app.stdout, SubtitleStyle.Render(summary.Description))
	}
	fmt.Fprintf(app.stdout, "%d archives, last updated %s\n\n", summary.ArchiveCount, formatTime(summary.LastUpdated))

	for _, s := range archives {
		fmt.Fprintf(app.stdout, "%s  %d entries  %d bytes  updated %s\n",
			KeyStyle.Render(s.ModuleID.String()), s.EntryCount, s.Size, formatTime(s.LastUpdateTime))
		if deps := s.Spec.ModuleDependencies(); len(deps) > 0 {
			names := make([]string, 0, len(deps))
			for _, d := range deps {
				names = append(names, d.String())
			}
			fmt.Fprintf(app.stdout, "    depends on: %s\n", strings.Join(names, ", "))
		}
		if len(s.DeploySpecs) > 0 {
			keys := slices.Sorted(maps.Keys(s.DeploySpecs))
			fmt.Fprintf(app.stdout, "    deploy specs: %s\n", strings.Join(keys, ", "))
		}
	}
}

func newRepoViewsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "views",
		Short: "List the views of the configured repository",
		Args:  cobra.NoArgs,
		RunE: runE(app, func(cmd *cobra.Command, args []string) error {
			return app.withRepository(cmd.Context(), func(repo Repository) error {
				for _, name := range repo.ViewNames() {
					fmt.Fprintln(app.stdout, name)
				}
				if !repo.SupportsDeploySpecs() {
					fmt.Fprintln(app.stdout, SubtitleStyle.Render("(deploy specs disabled)"))
				}
				return nil
			})
		}),
	}
}

func newRepoWatchCommand(app *App) *cobra.Command {
	var (
		debounce time.Duration
		ignore   []string
	)
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Insert a directory archive and insert it again whenever its files change",
		Long: `Insert a directory archive and insert it again whenever its files change.

Changes are collected for the debounce period before the archive is reloaded.
VCS metadata, editor swap files and ZIP files are never watched. Stop with
Ctrl+C.`,
		Args: cobra.ExactArgs(1),
		RunE: runE(app, func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			ctx := cmd.Context()
			return app.withRepository(ctx, func(repo Repository) error {
				publish := func(ctx context.Context, changed []string) error {
					a, err := loadArchive(dir)
					if err != nil {
						return err
					}
					if err := repo.InsertArchive(ctx, a); err != nil {
						return err
					}
					if changed == nil {
						fmt.Fprintf(app.stdout, "%s Inserted %s\n", SuccessStyle.Render("✓"), KeyStyle.Render(a.ModuleID().String()))
					} else {
						fmt.Fprintf(app.stdout, "%s Inserted %s (%d changed)\n", SuccessStyle.Render("✓"), KeyStyle.Render(a.ModuleID().String()), len(changed))
					}
					return nil
				}
				if err := publish(ctx, nil); err != nil {
					return err
				}

				w, err := watch.New(watch.Options{
					Dir:      dir,
					Ignore:   ignore,
					Debounce: debounce,
					Logger:   app.Logger(),
				}, publish)
				if err != nil {
					return err
				}
				fmt.Fprintln(app.stdout, SubtitleStyle.Render("Watching "+dir+" (Ctrl+C to stop)"))
				return w.Run(ctx)
			})
		}),
	}
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before a changed archive is inserted again")
	cmd.Flags().StringArrayVar(&ignore, "ignore", nil, "extra glob pattern of paths to ignore, e.g. '**/*.log' (repeatable)")
	return cmd
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(timeLayout)
}
