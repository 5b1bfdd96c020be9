// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/scriptvault/scriptvault/internal/issue"
	"github.com/scriptvault/scriptvault/pkg/archive"
	"github.com/scriptvault/scriptvault/pkg/cueutil"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "scriptvault"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment variables that override config values,
	// e.g. SCRIPTVAULT_REPOSITORY_BACKEND.
	EnvPrefix = "SCRIPTVAULT"
)

//go:embed config_schema.cue
var configSchema []byte

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:   LogLevelInfo,
		SpecFormat: archive.SpecFormatCUE,
		Repository: RepositoryConfig{
			ID:          "default",
			Backend:     BackendFilesystem,
			DeploySpecs: true,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: AppName + ":",
			},
		},
	}
}

// ConfigDir returns the scriptvault configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// DataDir returns the directory holding repository data when the config leaves
// repository.path empty: $XDG_DATA_HOME/scriptvault on Linux (defaulting to
// ~/.local/share/scriptvault) and the config directory elsewhere.
func DataDir() (string, error) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		return ConfigDir()
	}
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, AppName), nil
}

// Load reads the configuration and returns it with the path of the file it came
// from. The path is empty when only defaults and environment were used.
func Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := newViper()

	resolvedPath, err := ResolvePath(opts)
	if err != nil {
		return nil, "", err
	}
	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithIssue(issue.ConfigLoadFailedId).
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Use 'scriptvault config init --print' to see a valid configuration").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithIssue(issue.ConfigLoadFailedId).
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check the values set in the config file and SCRIPTVAULT_* environment variables").
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// newViper returns a Viper instance carrying defaults and environment bindings.
// Every key gets a default so AutomaticEnv can resolve it during Unmarshal.
func newViper() *viper.Viper {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("spec_format", defaults.SpecFormat)
	v.SetDefault("repository.id", defaults.Repository.ID)
	v.SetDefault("repository.description", defaults.Repository.Description)
	v.SetDefault("repository.backend", defaults.Repository.Backend)
	v.SetDefault("repository.deploy_specs", defaults.Repository.DeploySpecs)
	v.SetDefault("repository.path", defaults.Repository.Path)
	v.SetDefault("repository.redis.addr", defaults.Repository.Redis.Addr)
	v.SetDefault("repository.redis.password", defaults.Repository.Redis.Password)
	v.SetDefault("repository.redis.db", defaults.Repository.Redis.DB)
	v.SetDefault("repository.redis.prefix", defaults.Repository.Redis.Prefix)
	v.SetDefault("repository.s3.bucket", defaults.Repository.S3.Bucket)
	v.SetDefault("repository.s3.prefix", defaults.Repository.S3.Prefix)
	v.SetDefault("repository.s3.region", defaults.Repository.S3.Region)
	v.SetDefault("repository.s3.endpoint", defaults.Repository.S3.Endpoint)
	v.SetDefault("repository.s3.path_style", defaults.Repository.S3.PathStyle)
	v.SetDefault("repository.views", []ViewConfig{})

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// ResolvePath returns the config file Load would read: the explicit path, then the config
// directory, then the current directory. No file at all is not an error.
func ResolvePath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithIssue(issue.ConfigLoadFailedId).
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir := opts.ConfigDirPath
	if cfgDir == "" {
		var err error
		if cfgDir, err = ConfigDir(); err != nil {
			return "", err
		}
	}

	fileName := ConfigFileName + "." + ConfigFileExt
	if p := filepath.Join(cfgDir, fileName); fileExists(p) {
		return p, nil
	}
	if !opts.SkipWorkingDir && fileExists(fileName) {
		return fileName, nil
	}
	return "", nil
}

// loadCUEIntoViper validates a CUE file against #Config and merges its fields
// into Viper, keeping defaults for the fields the file leaves out.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	configMap, err := cueutil.DecodeMap(configSchema, data, "#Config",
		cueutil.WithFilename(path),
		cueutil.WithConcrete(false),
	)
	if err != nil {
		return err
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// WriteDefaultConfig writes the default configuration to dir (the platform
// config directory when dir is empty). An existing file is left untouched
// unless overwrite is set. It returns the path of the file.
func WriteDefaultConfig(dir string, overwrite bool) (string, error) {
	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			return "", err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if !overwrite && fileExists(cfgPath) {
		return cfgPath, nil
	}

	content, err := GenerateCUE(DefaultConfig())
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return cfgPath, nil
}

// GenerateCUE renders cfg as a CUE config file.
func GenerateCUE(cfg *Config) ([]byte, error) {
	body, err := cueutil.Encode(cfg)
	if err != nil {
		return nil, err
	}

	header := "// scriptvault configuration file.\n" +
		"// Values may be overridden with SCRIPTVAULT_* environment variables,\n" +
		"// e.g. SCRIPTVAULT_REPOSITORY_BACKEND=memory.\n\n"
	return append([]byte(header), body...), nil
}
