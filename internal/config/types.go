// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/scriptvault/scriptvault/pkg/archive"
	"github.com/scriptvault/scriptvault/pkg/repository"
)

const (
	// BackendMemory keeps archives in process memory.
	BackendMemory BackendType = "memory"
	// BackendFilesystem stores one file per archive in a directory.
	BackendFilesystem BackendType = "filesystem"
	// BackendBadger stores archives in an embedded BadgerDB.
	BackendBadger BackendType = "badger"
	// BackendRedis stores archives in a Redis server.
	BackendRedis BackendType = "redis"
	// BackendSQL stores archives in a SQLite database file.
	BackendSQL BackendType = "sql"
	// BackendS3 stores archives as objects in an S3-compatible bucket.
	BackendS3 BackendType = "s3"

	// LogLevelDebug logs everything including store operations.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the default level.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs warnings and errors only.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs errors only.
	LogLevelError LogLevel = "error"
)

var (
	// ErrInvalidBackendType is returned when a BackendType value is not recognized.
	ErrInvalidBackendType = errors.New("invalid backend type")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidViewConfig is the sentinel error wrapped by InvalidViewConfigError.
	ErrInvalidViewConfig = errors.New("invalid view config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// BackendType selects the storage engine behind the repository.
	BackendType string

	// InvalidBackendTypeError is returned when a BackendType value is not recognized.
	// It wraps ErrInvalidBackendType for errors.Is() compatibility.
	InvalidBackendTypeError struct {
		Value BackendType
	}

	// LogLevel is the minimum level written by the CLI logger.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	// It wraps ErrInvalidLogLevel for errors.Is() compatibility.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidViewConfigError is returned when a ViewConfig is unusable.
	InvalidViewConfigError struct {
		Name   string
		Reason string
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// LogLevel is the minimum level of log output.
		LogLevel LogLevel `json:"log_level" mapstructure:"log_level"`
		// SpecFormat is the encoding used when writing new spec files.
		SpecFormat archive.SpecFormat `json:"spec_format" mapstructure:"spec_format"`
		// Repository configures the archive repository.
		Repository RepositoryConfig `json:"repository" mapstructure:"repository"`
	}

	// RepositoryConfig selects and configures the repository backend.
	RepositoryConfig struct {
		// ID is the repository identifier reported in summaries and errors.
		ID string `json:"id" mapstructure:"id"`
		// Description is shown in repository summaries.
		Description string `json:"description" mapstructure:"description"`
		// Backend selects the storage engine.
		Backend BackendType `json:"backend" mapstructure:"backend"`
		// DeploySpecs enables storing deploy specs alongside archives.
		DeploySpecs bool `json:"deploy_specs" mapstructure:"deploy_specs"`
		// Path is the data location of the filesystem, badger and sql backends.
		// Empty means a backend-specific directory under DataDir.
		Path string `json:"path" mapstructure:"path"`
		// Redis configures the redis backend.
		Redis RedisConfig `json:"redis" mapstructure:"redis"`
		// S3 configures the s3 backend.
		S3 S3Config `json:"s3" mapstructure:"s3"`
		// Views declares the named views of the repository.
		Views []ViewConfig `json:"views,omitempty" mapstructure:"views"`
	}

	// RedisConfig holds connection settings of the redis backend.
	RedisConfig struct {
		Addr     string `json:"addr" mapstructure:"addr"`
		Password string `json:"password,omitempty" mapstructure:"password"`
		DB       int    `json:"db" mapstructure:"db"`
		Prefix   string `json:"prefix" mapstructure:"prefix"`
	}

	// S3Config holds bucket settings of the s3 backend. Credentials come from the
	// standard AWS_* environment variables.
	S3Config struct {
		Bucket    string `json:"bucket" mapstructure:"bucket"`
		Prefix    string `json:"prefix" mapstructure:"prefix"`
		Region    string `json:"region" mapstructure:"region"`
		Endpoint  string `json:"endpoint" mapstructure:"endpoint"`
		PathStyle bool   `json:"path_style" mapstructure:"path_style"`
	}

	// ViewConfig declares a named view. An archive is visible when it matches
	// every criterion that is set; a view without criteria shows everything.
	ViewConfig struct {
		Name string `json:"name" mapstructure:"name"`
		// MetadataKey requires the spec metadata to contain this key.
		MetadataKey string `json:"metadata_key,omitempty" mapstructure:"metadata_key"`
		// MetadataValue additionally requires the value under MetadataKey to match.
		MetadataValue string `json:"metadata_value,omitempty" mapstructure:"metadata_value"`
		// NamePrefix requires the module name to start with this prefix.
		NamePrefix string `json:"name_prefix,omitempty" mapstructure:"name_prefix"`
	}
)

// Error implements the error interface.
func (e *InvalidBackendTypeError) Error() string {
	return fmt.Sprintf("invalid backend type %q (valid: memory, filesystem, badger, redis, sql, s3)", e.Value)
}

// Unwrap returns ErrInvalidBackendType for errors.Is() compatibility.
func (e *InvalidBackendTypeError) Unwrap() error { return ErrInvalidBackendType }

// Validate returns nil if the backend type is one of the supported values.
func (b BackendType) Validate() error {
	switch b {
	case BackendMemory, BackendFilesystem, BackendBadger, BackendRedis, BackendSQL, BackendS3:
		return nil
	default:
		return &InvalidBackendTypeError{Value: b}
	}
}

// String returns the string representation of the BackendType.
func (b BackendType) String() string { return string(b) }

// Error implements the error interface.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// Validate returns nil if the log level is one of the supported values.
func (l LogLevel) Validate() error {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return nil
	default:
		return &InvalidLogLevelError{Value: l}
	}
}

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// Error implements the error interface.
func (e *InvalidViewConfigError) Error() string {
	return fmt.Sprintf("invalid view %q: %s", e.Name, e.Reason)
}

// Unwrap returns ErrInvalidViewConfig for errors.Is() compatibility.
func (e *InvalidViewConfigError) Unwrap() error { return ErrInvalidViewConfig }

// Validate checks a single view declaration.
func (v ViewConfig) Validate() error {
	switch {
	case strings.TrimSpace(v.Name) == "":
		return &InvalidViewConfigError{Name: v.Name, Reason: "name must not be empty"}
	case v.Name == repository.DefaultViewName:
		return &InvalidViewConfigError{Name: v.Name, Reason: "name is reserved for the default view"}
	case v.MetadataValue != "" && v.MetadataKey == "":
		return &InvalidViewConfigError{Name: v.Name, Reason: "metadata_value requires metadata_key"}
	default:
		return nil
	}
}

// Filter returns the repository filter selecting the archives of this view.
func (v ViewConfig) Filter() repository.ViewFilter {
	var filters []repository.ViewFilter
	if v.MetadataKey != "" {
		filters = append(filters, repository.MetadataViewFilter(v.MetadataKey, v.MetadataValue))
	}
	if v.NamePrefix != "" {
		filters = append(filters, repository.NamePrefixViewFilter(v.NamePrefix))
	}
	return repository.AllOf(filters...)
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns the field errors followed by ErrInvalidConfig, so errors.Is
// matches both the sentinel and every field-level cause.
func (e *InvalidConfigError) Unwrap() []error {
	return append(append([]error(nil), e.FieldErrors...), ErrInvalidConfig)
}

// Validate checks every typed field and the backend-specific settings.
func (c *Config) Validate() error {
	var errs []error
	if err := c.LogLevel.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.SpecFormat.Validate(); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, c.Repository.validate()...)

	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

func (r *RepositoryConfig) validate() []error {
	var errs []error
	if err := r.Backend.Validate(); err != nil {
		errs = append(errs, err)
	}
	switch r.Backend {
	case BackendRedis:
		if r.Redis.Addr == "" {
			errs = append(errs, errors.New("repository.redis.addr is required for the redis backend"))
		}
	case BackendS3:
		if r.S3.Bucket == "" {
			errs = append(errs, errors.New("repository.s3.bucket is required for the s3 backend"))
		}
	}

	seen := make(map[string]bool, len(r.Views))
	for _, v := range r.Views {
		if err := v.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[v.Name] {
			errs = append(errs, &InvalidViewConfigError{Name: v.Name, Reason: "declared more than once"})
		}
		seen[v.Name] = true
	}
	return errs
}
