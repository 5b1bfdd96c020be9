// SPDX-License-Identifier: MPL-2.0

package backend

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/scriptvault/scriptvault/internal/config"
	"github.com/scriptvault/scriptvault/internal/issue"
	"github.com/scriptvault/scriptvault/pkg/repository"
	"github.com/scriptvault/scriptvault/pkg/repository/badgerstore"
	"github.com/scriptvault/scriptvault/pkg/repository/fsstore"
	"github.com/scriptvault/scriptvault/pkg/repository/memstore"
	"github.com/scriptvault/scriptvault/pkg/repository/redisstore"
	"github.com/scriptvault/scriptvault/pkg/repository/s3store"
	"github.com/scriptvault/scriptvault/pkg/repository/sqlstore"
)

const defaultS3Region = "us-east-1"

type (
	// Option configures Open.
	Option func(*openOptions)

	openOptions struct {
		logger  *log.Logger
		dataDir string
		getenv  func(string) string
	}
)

// WithLogger sets the logger handed to the repository and to backends that log.
func WithLogger(logger *log.Logger) Option {
	return func(o *openOptions) {
		o.logger = logger
	}
}

// WithDataDir sets the directory under which backends without an explicit
// path keep their data. It defaults to config.DataDir().
func WithDataDir(dir string) Option {
	return func(o *openOptions) {
		o.dataDir = dir
	}
}

// WithGetenv replaces the environment lookup used for S3 credentials.
func WithGetenv(getenv func(string) string) Option {
	return func(o *openOptions) {
		o.getenv = getenv
	}
}

// Open opens the configured store and returns a repository over it. The
// repository owns the store: closing the repository closes the store.
func Open(ctx context.Context, cfg config.RepositoryConfig, opts ...Option) (*repository.StoreRepository, error) {
	o := openOptions{logger: log.New(io.Discard), getenv: os.Getenv}
	for _, opt := range opts {
		opt(&o)
	}

	store, location, err := openStore(ctx, cfg, &o)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithIssue(issue.RepositoryUnavailableId).
			WithOperation("open repository").
			WithResource(fmt.Sprintf("%s backend %s", cfg.Backend, location)).
			WithSuggestion("Check the repository section of your configuration").
			WithSuggestion("Use 'scriptvault config show' to see the effective configuration").
			Wrap(err).
			BuildError()
	}

	id := cfg.ID
	if id == "" && cfg.Backend == config.BackendMemory {
		id = "memory-" + uuid.NewString()
	}

	repoOpts := []repository.Option{
		repository.WithDescription(cfg.Description),
		repository.WithLogger(o.logger),
	}
	if cfg.DeploySpecs {
		repoOpts = append(repoOpts, repository.WithDeploySpecs())
	}
	for _, v := range cfg.Views {
		repoOpts = append(repoOpts, repository.WithViews(v.Name, v.Filter()))
	}

	repo, err := repository.New(id, store, repoOpts...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	o.logger.Debug("repository opened", "repository", id, "backend", cfg.Backend, "location", location)
	return repo, nil
}

// openStore returns the store and a human-readable location for messages.
func openStore(ctx context.Context, cfg config.RepositoryConfig, o *openOptions) (repository.Store, string, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memstore.New(), "(in memory)", nil

	case config.BackendFilesystem:
		dir, err := dataPath(cfg.Path, "archives", o)
		if err != nil {
			return nil, "", err
		}
		s, err := fsstore.New(dir)
		return s, dir, err

	case config.BackendBadger:
		dir, err := dataPath(cfg.Path, "badger", o)
		if err != nil {
			return nil, "", err
		}
		s, err := badgerstore.Open(badgerstore.Options{Dir: dir, Logger: o.logger})
		return s, dir, err

	case config.BackendSQL:
		file, err := dataPath(cfg.Path, "archives.db", o)
		if err != nil {
			return nil, "", err
		}
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, file, fmt.Errorf("failed to create database directory: %w", err)
		}
		s, err := sqlstore.OpenSQLite(ctx, file)
		return s, file, err

	case config.BackendRedis:
		s, err := redisstore.Open(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		return s, cfg.Redis.Addr, err

	case config.BackendS3:
		region := cfg.S3.Region
		if region == "" {
			region = o.getenv("AWS_REGION")
		}
		if region == "" {
			region = defaultS3Region
		}
		s, err := s3store.Open(s3store.Config{
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
			Region:          region,
			Endpoint:        cfg.S3.Endpoint,
			PathStyle:       cfg.S3.PathStyle,
			AccessKeyID:     o.getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: o.getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    o.getenv("AWS_SESSION_TOKEN"),
		})
		return s, "s3://" + cfg.S3.Bucket + "/" + cfg.S3.Prefix, err

	default:
		return nil, "", cfg.Backend.Validate()
	}
}

// dataPath returns path, or name under the data directory when path is empty.
func dataPath(path, name string, o *openOptions) (string, error) {
	if path != "" {
		return path, nil
	}
	dir := o.dataDir
	if dir == "" {
		var err error
		if dir, err = config.DataDir(); err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, name), nil
}
