// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/scriptvault/scriptvault/internal/issue"
	"github.com/scriptvault/scriptvault/pkg/archive"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.LogLevel != LogLevelInfo {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.SpecFormat != archive.SpecFormatCUE {
		t.Errorf("SpecFormat = %q, want cue", cfg.SpecFormat)
	}
	if cfg.Repository.Backend != BackendFilesystem {
		t.Errorf("Backend = %q, want filesystem", cfg.Repository.Backend)
	}
	if !cfg.Repository.DeploySpecs {
		t.Error("deploy specs should be enabled by default")
	}
	if len(cfg.Repository.Views) != 0 {
		t.Errorf("Views = %v, want none", cfg.Repository.Views)
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, path, err := Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir(), SkipWorkingDir: true})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if path != "" {
		t.Errorf("resolved path = %q, want empty", path)
	}
	if cfg.Repository.ID != "default" || cfg.Repository.Backend != BackendFilesystem {
		t.Errorf("Load() = %+v, want defaults", cfg.Repository)
	}
}

func TestLoad_MergesFileOverDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	want := writeConfig(t, dir, `
log_level: "debug"
repository: {
	id:      "scripts"
	backend: "memory"
	redis: db: 2
	views: [
		{name: "gold", metadata_key: "tier", metadata_value: "gold"},
		{name: "acme", name_prefix: "acme"},
	]
}
`)

	cfg, path, err := Load(context.Background(), LoadOptions{ConfigDirPath: dir, SkipWorkingDir: true})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if path != want {
		t.Errorf("resolved path = %q, want %q", path, want)
	}
	if cfg.LogLevel != LogLevelDebug {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Repository.ID != "scripts" || cfg.Repository.Backend != BackendMemory {
		t.Errorf("repository = %+v", cfg.Repository)
	}
	if cfg.Repository.Redis.DB != 2 {
		t.Errorf("Redis.DB = %d, want 2", cfg.Repository.Redis.DB)
	}
	// Fields absent from the file keep their defaults.
	if !cfg.Repository.DeploySpecs {
		t.Error("DeploySpecs default lost after merge")
	}
	if cfg.Repository.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q, want default", cfg.Repository.Redis.Addr)
	}
	if cfg.SpecFormat != archive.SpecFormatCUE {
		t.Errorf("SpecFormat = %q, want default cue", cfg.SpecFormat)
	}

	if len(cfg.Repository.Views) != 2 {
		t.Fatalf("Views = %+v, want 2 entries", cfg.Repository.Views)
	}
	gold := cfg.Repository.Views[0]
	if gold.Name != "gold" || gold.MetadataKey != "tier" || gold.MetadataValue != "gold" {
		t.Errorf("Views[0] = %+v", gold)
	}
	if cfg.Repository.Views[1].NamePrefix != "acme" {
		t.Errorf("Views[1] = %+v", cfg.Repository.Views[1])
	}
}

func TestLoad_ExplicitFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, t.TempDir(), `spec_format: "yaml"`)
	cfg, resolved, err := Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if resolved != path || cfg.SpecFormat != archive.SpecFormatYAML {
		t.Errorf("Load() = %q, %q", resolved, cfg.SpecFormat)
	}

	_, _, err = Load(context.Background(), LoadOptions{ConfigFilePath: filepath.Join(t.TempDir(), "missing.cue")})
	var actionable *issue.ActionableError
	if !errors.As(err, &actionable) {
		t.Fatalf("missing file error = %v, want *issue.ActionableError", err)
	}
	if actionable.Issue != issue.ConfigLoadFailedId || !actionable.HasSuggestions() {
		t.Errorf("missing file error = %+v", actionable)
	}
}

func TestLoad_RejectsInvalidFiles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", `repository: {`, ""},
		{"unknown backend", `repository: backend: "mongo"`, "backend"},
		{"unknown field", `colour: "red"`, ""},
		{"bad log level", `log_level: "trace"`, "log_level"},
		{"negative db", `repository: redis: db: -1`, "db"},
		{"view without name", `repository: views: [{metadata_key: "k"}]`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeConfig(t, dir, tt.content)
			_, _, err := Load(context.Background(), LoadOptions{ConfigDirPath: dir, SkipWorkingDir: true})
			if err == nil {
				t.Fatal("Load() should fail")
			}
			var actionable *issue.ActionableError
			if !errors.As(err, &actionable) || actionable.Issue != issue.ConfigLoadFailedId {
				t.Errorf("error = %v, want config ActionableError", err)
			}
			if tt.want != "" && !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestLoad_ValidationAfterMerge(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, `repository: {
	backend: "s3"
	views: [{name: "default"}, {name: "x", metadata_value: "v"}]
}`)

	_, _, err := Load(context.Background(), LoadOptions{ConfigDirPath: dir, SkipWorkingDir: true})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Load() error = %v, want ErrInvalidConfig", err)
	}
	if !errors.Is(err, ErrInvalidViewConfig) {
		t.Errorf("Load() error = %v, should carry ErrInvalidViewConfig", err)
	}
	var cfgErr *InvalidConfigError
	if !errors.As(err, &cfgErr) || len(cfgErr.FieldErrors) != 3 {
		t.Errorf("field errors = %v, want 3 (bucket, reserved view, dangling value)", cfgErr)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `repository: backend: "filesystem"`)
	t.Setenv("SCRIPTVAULT_REPOSITORY_BACKEND", "memory")
	t.Setenv("SCRIPTVAULT_REPOSITORY_DEPLOY_SPECS", "false")
	t.Setenv("SCRIPTVAULT_LOG_LEVEL", "warn")

	cfg, _, err := Load(context.Background(), LoadOptions{ConfigDirPath: dir, SkipWorkingDir: true})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Repository.Backend != BackendMemory {
		t.Errorf("Backend = %q, want memory from environment", cfg.Repository.Backend)
	}
	if cfg.Repository.DeploySpecs {
		t.Error("DeploySpecs should be disabled by the environment")
	}
	if cfg.LogLevel != LogLevelWarn {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
}

func TestLoad_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := Load(ctx, LoadOptions{ConfigDirPath: t.TempDir()}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested")
	path, err := WriteDefaultConfig(dir, false)
	if err != nil {
		t.Fatalf("WriteDefaultConfig() error = %v", err)
	}

	cfg, resolved, err := Load(context.Background(), LoadOptions{ConfigDirPath: dir, SkipWorkingDir: true})
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if resolved != path {
		t.Errorf("resolved path = %q, want %q", resolved, path)
	}
	defaults := DefaultConfig()
	if cfg.LogLevel != defaults.LogLevel || cfg.SpecFormat != defaults.SpecFormat {
		t.Errorf("loaded %+v, want defaults", cfg)
	}
	if cfg.Repository.Redis != defaults.Repository.Redis || cfg.Repository.S3 != defaults.Repository.S3 {
		t.Errorf("loaded repository %+v, want defaults", cfg.Repository)
	}

	if err := os.WriteFile(path, []byte(`log_level: "error"`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := WriteDefaultConfig(dir, false); err != nil {
		t.Fatalf("WriteDefaultConfig() error = %v", err)
	}
	if data, _ := os.ReadFile(path); string(data) != `log_level: "error"` {
		t.Errorf("existing config was overwritten: %q", data)
	}
	if _, err := WriteDefaultConfig(dir, true); err != nil {
		t.Fatalf("WriteDefaultConfig(overwrite) error = %v", err)
	}
	if data, _ := os.ReadFile(path); !strings.Contains(string(data), `backend:`) {
		t.Errorf("overwrite did not regenerate the config:\n%s", data)
	}
}

func TestGenerateCUE_IncludesViews(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Repository.Views = []ViewConfig{{Name: "gold", MetadataKey: "tier", MetadataValue: "gold"}}
	data, err := GenerateCUE(cfg)
	if err != nil {
		t.Fatalf("GenerateCUE() error = %v", err)
	}
	for _, want := range []string{"views:", `name:`, `"gold"`, `metadata_key:`, `"tier"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("generated config missing %q:\n%s", want, data)
		}
	}
	if strings.Contains(string(data), "name_prefix") {
		t.Errorf("empty optional fields should be omitted:\n%s", data)
	}
}

func TestConfigDir(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG lookup only applies on Linux")
	}

	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")

	cfgDir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	if want := filepath.Join("/tmp/xdg-config", AppName); cfgDir != want {
		t.Errorf("ConfigDir() = %q, want %q", cfgDir, want)
	}

	dataDir, err := DataDir()
	if err != nil {
		t.Fatalf("DataDir() error = %v", err)
	}
	if want := filepath.Join("/tmp/xdg-data", AppName); dataDir != want {
		t.Errorf("DataDir() = %q, want %q", dataDir, want)
	}
}

func TestProvider(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, `repository: id: "provided"`)

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir, SkipWorkingDir: true})
	if err != nil {
		t.Fatalf("Provider.Load() error = %v", err)
	}
	if cfg.Repository.ID != "provided" {
		t.Errorf("Repository.ID = %q, want provided", cfg.Repository.ID)
	}
}
