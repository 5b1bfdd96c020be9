// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/scriptvault/scriptvault/internal/issue"
	"github.com/scriptvault/scriptvault/internal/testutil"
	"github.com/scriptvault/scriptvault/pkg/archive"
)

func readSpecFile(t *testing.T, dir string) (*archive.ModuleSpec, archive.SpecFormat) {
	t.Helper()
	path, serializer, err := archive.FindSpecFile(dir)
	if err != nil {
		t.Fatalf("FindSpecFile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	spec, err := serializer.Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	return spec, serializer.Format()
}

func TestSpecInit(t *testing.T) {
	t.Parallel()

	cli := newTestCLI()
	dir := filepath.Join(t.TempDir(), "acme-util")

	out := cli.mustRun(t, "spec", "init", "acme:util:1.0",
		"--dep", "acme:base:1.0", "--dep", "acme:log",
		"--plugin", "groovy-plugin",
		"--meta", "tier=gold",
		"--import", "com/acme/*",
		"--export", "com/acme/util/*",
		"--format", "yaml",
		"--dir", dir,
	)
	if !strings.Contains(out, "moduleSpec.yaml") {
		t.Errorf("init output = %q", out)
	}

	spec, format := readSpecFile(t, dir)
	if format != archive.SpecFormatYAML {
		t.Errorf("format = %s, want yaml", format)
	}
	want := archive.NewModuleSpecBuilder(archive.MustParseModuleID("acme:util:1.0")).
		AddModuleDependencies(archive.MustParseModuleID("acme:base:1.0"), archive.MustParseModuleID("acme:log")).
		AddCompilerPluginID("groovy-plugin").
		AddMetadata("tier", "gold").
		AddModuleImportFilter("com/acme/*").
		AddModuleExportFilter("com/acme/util/*").
		Build()
	if !spec.Equal(want) {
		t.Errorf("spec = %s, want %s", spec, want)
	}
	if got := spec.ImportFilterPaths(); !slices.Equal(got, want.ImportFilterPaths()) {
		t.Errorf("ImportFilterPaths() = %v, want %v", got, want.ImportFilterPaths())
	}
}

func TestSpecInit_DefaultFormatFromConfig(t *testing.T) {
	t.Parallel()

	cli := newTestCLI()
	dir := t.TempDir()
	cli.mustRun(t, "spec", "init", "billing", "--dir", dir)

	if _, format := readSpecFile(t, dir); format != archive.SpecFormatTOML {
		t.Errorf("format = %s, want the configured toml", format)
	}
}

func TestSpecInit_ExistingSpecFile(t *testing.T) {
	t.Parallel()

	cli := newTestCLI()
	dir := t.TempDir()
	cli.mustRun(t, "spec", "init", "acme:util", "--dir", dir, "--format", "cue")

	err := cli.run(t, "spec", "init", "acme:other", "--dir", dir, "--format", "toml")
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("second init = %v, want *issue.ActionableError", err)
	}
	if !strings.Contains(cli.stderr.String(), "--force") {
		t.Errorf("stderr = %q, want a --force suggestion", cli.stderr.String())
	}

	cli.mustRun(t, "spec", "init", "acme:other", "--dir", dir, "--format", "cue", "--force")
	if spec, _ := readSpecFile(t, dir); spec.ModuleID().String() != "acme:other" {
		t.Errorf("ModuleID() = %s, want acme:other after --force", spec.ModuleID())
	}
}

func TestSpecInit_InvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want issue.Id
	}{
		{"invalid id", []string{"spec", "init", "acme util"}, issue.InvalidModuleIDId},
		{"invalid dependency", []string{"spec", "init", "acme:util", "--dep", "::"}, issue.InvalidModuleIDId},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cli := newTestCLI()
			args := append(tt.args, "--dir", t.TempDir())
			err := cli.run(t, args...)
			requireIssue(t, err, tt.want)
			if !errors.Is(err, archive.ErrInvalidModuleID) {
				t.Errorf("error should wrap ErrInvalidModuleID, got: %v", err)
			}
			if !strings.Contains(cli.stderr.String(), "Suggestions:") {
				t.Errorf("stderr = %q, want suggestions", cli.stderr.String())
			}
		})
	}

	cli := newTestCLI()
	err := cli.run(t, "spec", "init", "acme:util", "--format", "json", "--dir", t.TempDir())
	if !errors.Is(err, archive.ErrInvalidSpecFormat) {
		t.Errorf("init --format json = %v, want ErrInvalidSpecFormat", err)
	}
}

func TestSpecShow(t *testing.T) {
	t.Parallel()

	cli := newTestCLI()
	tmp := t.TempDir()
	dir := writeArchiveDir(t, tmp, "acme:util:1.0", "gold")

	out := cli.mustRun(t, "spec", "show", dir)
	for _, want := range []string{"acme:util:1.0", "acme:core", "tier", "gold", "Main.groovy", "lib/util.groovy"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}

	out = cli.mustRun(t, "spec", "show", dir, "--format", "toml")
	if !strings.Contains(out, "module_id = ") || !strings.Contains(out, "acme:util:1.0") {
		t.Errorf("toml output = %q", out)
	}

	zipPath := filepath.Join(tmp, "util.zip")
	cli.mustRun(t, "archive", "pack", dir, "-o", zipPath)
	out = cli.mustRun(t, "spec", "show", zipPath, "--format", "yaml")
	if !strings.Contains(out, "module_id:") || !strings.Contains(out, "acme:util:1.0") {
		t.Errorf("yaml output = %q", out)
	}
}

func TestSpecShow_DirectoryWithoutSpec(t *testing.T) {
	t.Parallel()

	cli := newTestCLI()
	dir := filepath.Join(t.TempDir(), "billing")
	testutil.MustWriteFile(t, dir, "Main.groovy", "println 1")

	out := cli.mustRun(t, "spec", "show", dir, "--format", "cue")
	if !strings.Contains(out, `"billing"`) {
		t.Errorf("cue output = %q, want the id derived from the directory name", out)
	}
}

func TestArchiveMarkdown(t *testing.T) {
	t.Parallel()

	spec := archive.NewModuleSpecBuilder(archive.MustParseModuleID("acme:util:2.1")).
		AddMetadataMap(map[string]any{"b": 2, "a": "x"}).
		Build()
	a, err := archive.NewScriptArchive(spec, time.Time{}, map[string][]byte{"Main.groovy": []byte("1")})
	if err != nil {
		t.Fatalf("NewScriptArchive() error = %v", err)
	}

	md := archiveMarkdown(a)
	for _, want := range []string{"# acme:util:2.1", "**Version:** 2.1", "- **Entries:** 1 (1 bytes)", "## Metadata", "## Entries"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Index(md, "`a`") > strings.Index(md, "`b`") {
		t.Errorf("metadata keys should be sorted:\n%s", md)
	}
	for _, absent := range []string{"Created", "## Dependencies", "## Compiler plugins"} {
		if strings.Contains(md, absent) {
			t.Errorf("markdown should not contain %q:\n%s", absent, md)
		}
	}
}
