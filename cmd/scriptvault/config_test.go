// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/scriptvault/scriptvault/internal/config"
	"github.com/scriptvault/scriptvault/internal/testutil"
)

func TestConfigInit_Print(t *testing.T) {
	t.Parallel()

	cli := newTestCLI()
	out := cli.mustRun(t, "config", "init", "--print")
	for _, want := range []string{"// scriptvault configuration file.", "repository:", `backend:`, `"filesystem"`} {
		if !strings.Contains(out, want) {
			t.Errorf("init --print output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigInit_WritesFile(t *testing.T) {
	t.Parallel()

	cli := newTestCLI()
	dir := t.TempDir()
	out := cli.mustRun(t, "config", "init", "--dir", dir)

	path := filepath.Join(dir, "config.cue")
	if !strings.Contains(out, path) {
		t.Errorf("init output = %q, want %s", out, path)
	}

	testutil.MustWriteFile(t, dir, "config.cue", "log_level: \"debug\"\n")
	cli.mustRun(t, "config", "init", "--dir", dir)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "log_level: \"debug\"\n" {
		t.Errorf("init without --force replaced the file:\n%s", data)
	}

	cli.mustRun(t, "config", "init", "--dir", dir, "--force")
	loaded, _, err := config.Load(t.Context(), config.LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load() of the generated file error = %v", err)
	}
	if loaded.Repository.Backend != config.BackendFilesystem {
		t.Errorf("Backend = %s, want filesystem", loaded.Repository.Backend)
	}
}

func TestConfigShow(t *testing.T) {
	t.Parallel()

	cli := newTestCLI()
	cli.cfg.Repository.Backend = config.BackendRedis
	cli.cfg.Repository.Redis.Password = "hunter2"
	cfgPath := testutil.MustWriteFile(t, t.TempDir(), "config.cue", "log_level: \"info\"\n")

	out := cli.mustRun(t, "--config", cfgPath, "config", "show")
	for _, want := range []string{"source: " + cfgPath, `"redis"`, redacted, `"gold"`} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "hunter2") {
		t.Errorf("show output leaks the redis password:\n%s", out)
	}
	if cli.cfg.Repository.Redis.Password != "hunter2" {
		t.Error("show must not modify the loaded configuration")
	}
}

func TestConfigShow_MissingFile(t *testing.T) {
	t.Parallel()

	cli := newTestCLI()
	err := cli.run(t, "--config", filepath.Join(t.TempDir(), "missing.cue"), "config", "show")
	if err == nil {
		t.Fatal("config show with a missing --config file should fail")
	}
	if !strings.Contains(cli.stderr.String(), "Verify the file path is correct") {
		t.Errorf("stderr = %q, want suggestions", cli.stderr.String())
	}
}

func TestConfigPath(t *testing.T) {
	// Not parallel: uses t.Setenv.
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME is only honored on Linux")
	}
	cfgHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", cfgHome)

	cli := newTestCLI()
	out := cli.mustRun(t, "config", "path")
	want := filepath.Join(cfgHome, "scriptvault", "config.cue")
	if strings.TrimSpace(out) != want+" (not created)" {
		t.Errorf("config path = %q, want %q", out, want+" (not created)")
	}

	testutil.MustWriteFile(t, filepath.Join(cfgHome, "scriptvault"), "config.cue", "")
	out = cli.mustRun(t, "config", "path")
	if strings.TrimSpace(out) != want {
		t.Errorf("config path = %q, want %q", out, want)
	}
}
