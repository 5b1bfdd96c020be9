// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/log"

	"github.com/scriptvault/scriptvault/internal/backend"
	"github.com/scriptvault/scriptvault/internal/config"
	"github.com/scriptvault/scriptvault/internal/issue"
	"github.com/scriptvault/scriptvault/pkg/repository"
)

type (
	// App wires CLI services and shared dependencies. All command handlers
	// receive an App reference and reach configuration and storage through it.
	App struct {
		Config         ConfigProvider
		OpenRepository RepositoryOpener
		stdout         io.Writer
		stderr         io.Writer
		markdownStyle  string

		// Set from persistent flags before a command runs.
		configPath string
		verbose    bool

		cfg    *config.Config
		logger *log.Logger
	}

	// Dependencies defines the injection points for building an App. Nil fields are
	// replaced with production defaults by NewApp.
	Dependencies struct {
		Config         ConfigProvider
		OpenRepository RepositoryOpener
		Stdout         io.Writer
		Stderr         io.Writer
		// MarkdownStyle is a glamour standard style name; empty selects the
		// style from the terminal background.
		MarkdownStyle string
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// Repository is the repository surface used by the CLI.
	Repository interface {
		repository.ArchiveRepository
		io.Closer
		ViewNames() []string
		SupportsDeploySpecs() bool
	}

	// RepositoryOpener opens the repository described by cfg.
	RepositoryOpener func(ctx context.Context, cfg config.RepositoryConfig, logger *log.Logger) (Repository, error)
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.OpenRepository == nil {
		deps.OpenRepository = openBackend
	}

	return &App{
		Config:         deps.Config,
		OpenRepository: deps.OpenRepository,
		stdout:         deps.Stdout,
		stderr:         deps.Stderr,
		markdownStyle:  deps.MarkdownStyle,
	}
}

func openBackend(ctx context.Context, cfg config.RepositoryConfig, logger *log.Logger) (Repository, error) {
	return backend.Open(ctx, cfg, backend.WithLogger(logger))
}

// loadConfig loads the configuration once per App and configures the logger
// from it.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.configPath})
	if err != nil {
		return nil, err
	}
	a.cfg = cfg
	a.Logger().SetLevel(logLevel(cfg.LogLevel, a.verbose))
	return cfg, nil
}

// Logger returns the CLI logger, which writes to stderr.
func (a *App) Logger() *log.Logger {
	if a.logger == nil {
		a.logger = log.NewWithOptions(a.stderr, log.Options{
			Prefix: config.AppName,
			Level:  logLevel(config.LogLevelInfo, a.verbose),
		})
	}
	return a.logger
}

func logLevel(level config.LogLevel, verbose bool) log.Level {
	if verbose {
		return log.DebugLevel
	}
	parsed, err := log.ParseLevel(string(level))
	if err != nil {
		return log.InfoLevel
	}
	return parsed
}

// withRepository opens the configured repository, runs fn and closes the
// repository again. A close failure is reported when fn succeeded.
func (a *App) withRepository(ctx context.Context, fn func(Repository) error) (err error) {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}
	repo, err := a.OpenRepository(ctx, cfg.Repository, a.Logger())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(repo)
}

// renderMarkdown renders md for the terminal using glamour.
func (a *App) renderMarkdown(md string) (string, error) {
	styleOpt := glamour.WithAutoStyle()
	if a.markdownStyle != "" {
		styleOpt = glamour.WithStandardStyle(a.markdownStyle)
	}
	renderer, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(100))
	if err != nil {
		return "", err
	}
	return renderer.Render(md)
}

// reportError prints the suggestions of an actionable error and, in verbose
// mode, the error chain and the matching catalog entry. The error message
// itself is printed by the command runner.
func (a *App) reportError(err error) {
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		return
	}
	if ae.HasSuggestions() {
		fmt.Fprintln(a.stderr, WarningStyle.Render("Suggestions:"))
		for _, s := range ae.Suggestions {
			fmt.Fprintf(a.stderr, "  • %s\n", s)
		}
	}
	if !a.verbose {
		return
	}
	if ae.Cause != nil {
		fmt.Fprintln(a.stderr, SubtitleStyle.Render("Error chain:"))
		depth := 1
		for cause := ae.Cause; cause != nil; cause = errors.Unwrap(cause) {
			fmt.Fprintf(a.stderr, "  %d. %s\n", depth, cause)
			depth++
		}
	}
	if entry := issue.Get(ae.Issue); entry != nil {
		style := a.markdownStyle
		if style == "" {
			style = "dark"
		}
		rendered, renderErr := entry.Render(style)
		if renderErr != nil {
			a.Logger().Warn("failed to render issue catalog entry", "issue", ae.Issue, "error", renderErr)
			return
		}
		fmt.Fprint(a.stderr, rendered)
	}
}
