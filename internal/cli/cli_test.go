package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/albertocavalcante/go-bzlresolve/check"
	"github.com/albertocavalcante/go-bzlresolve/label"
	"github.com/albertocavalcante/go-bzlresolve/lockfile"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// workspace creates a workspace whose root module has no dependencies, so
// resolving it never contacts a registry.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "MODULE.bazel", `module(name = "app", version = "1.0")`)
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	c := New(&out, &errOut)
	c.getenv = func(string) string { return "" }
	err := c.Execute(context.Background(), args)
	return out.String(), err
}

func TestLoadConfig(t *testing.T) {
	t.Run("missing default file", func(t *testing.T) {
		cfg, err := LoadConfig("", t.TempDir())
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if len(cfg.Registries) != 0 || cfg.Legacy.WorkspaceName != "" {
			t.Errorf("expected empty config, got %+v", cfg)
		}
	})

	t.Run("missing explicit file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"), ""); err == nil {
			t.Error("expected an error for a missing explicit config")
		}
	})

	t.Run("full", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, ConfigFileName, `
registries = ["https://one.example.com", "https://two.example.com"]
bazel_version = "7.4.1"
check_bazel_compatibility = "warning"
allow_yanked_versions = ["foo@1.0"]

[legacy]
workspace_name = "my_ws"

[legacy.repos.old]
x = "rules_x~"
`)
		cfg, err := LoadConfig("", dir)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if len(cfg.Registries) != 2 || cfg.BazelVersion != "7.4.1" {
			t.Errorf("unexpected config %+v", cfg)
		}
		repos := cfg.Legacy.RepoMappings()
		if got := repos["old"]["x"]; got != label.RepositoryName("rules_x~") {
			t.Errorf("legacy old.x = %q, want rules_x~", got)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, ConfigFileName, `registry = "https://one.example.com"`)
		_, err := LoadConfig("", dir)
		if err == nil || !strings.Contains(err.Error(), "unknown key") {
			t.Errorf("LoadConfig() error = %v, want unknown key", err)
		}
	})
}

func TestMerge_FlagsWin(t *testing.T) {
	dir := workspace(t)
	writeFile(t, dir, ConfigFileName, `
check_bazel_compatibility = "off"
check_direct_dependencies = "error"
lockfile_mode = "off"
bazel_version = "6.0.0"
`)
	c := New(&bytes.Buffer{}, &bytes.Buffer{})
	root := c.RootCommand()
	cmd, _, err := root.Find([]string{"resolve"})
	if err != nil {
		t.Fatal(err)
	}
	if err := cmd.ParseFlags([]string{"--check_bazel_compatibility=warning", "-w", dir}); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig("", dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.merge(cmd, cfg); err != nil {
		t.Fatalf("merge() error = %v", err)
	}

	if c.compatMode != check.Warning {
		t.Errorf("compat mode = %v, want WARNING from the flag", c.compatMode)
	}
	if c.directDeps != check.Error {
		t.Errorf("direct deps mode = %v, want ERROR from the config", c.directDeps)
	}
	if c.lockfileMode != lockfile.Off {
		t.Errorf("lockfile mode = %v, want off", c.lockfileMode)
	}
	if c.bazelVersion != "6.0.0" {
		t.Errorf("bazel version = %q, want 6.0.0", c.bazelVersion)
	}
}

func TestMerge_InvalidMode(t *testing.T) {
	c := New(&bytes.Buffer{}, &bytes.Buffer{})
	cmd := c.RootCommand()
	err := c.merge(cmd, &Config{LockfileMode: "sometimes"})
	if err == nil || !strings.Contains(err.Error(), "lockfile_mode") {
		t.Errorf("merge() error = %v, want lockfile_mode error", err)
	}
}

func TestExecute_Resolve(t *testing.T) {
	dir := workspace(t)
	out, err := run(t, "-w", dir, "resolve")
	if err != nil {
		t.Fatalf("resolve error = %v", err)
	}
	if !strings.Contains(out, "app@1.0") {
		t.Errorf("output missing root module:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, lockfile.FileName)); err != nil {
		t.Errorf("lockfile not written: %v", err)
	}
}

func TestExecute_GraphDOT(t *testing.T) {
	dir := workspace(t)
	out, err := run(t, "-w", dir, "--lockfile_mode", "off", "graph", "--output", "dot")
	if err != nil {
		t.Fatalf("graph error = %v", err)
	}
	if !strings.HasPrefix(out, "digraph dependencies {") {
		t.Errorf("expected DOT output, got:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, lockfile.FileName)); err == nil {
		t.Error("lockfile written with --lockfile_mode off")
	}
}

func TestExecute_GraphInvalidOutput(t *testing.T) {
	_, err := run(t, "-w", workspace(t), "graph", "--output", "svg")
	if err == nil || !strings.Contains(err.Error(), "invalid output format") {
		t.Errorf("graph error = %v, want invalid output format", err)
	}
}

func TestExecute_Mapping(t *testing.T) {
	dir := workspace(t)
	out, err := run(t, "-w", dir, "--lockfile_mode", "off", "mapping")
	if err != nil {
		t.Fatalf("mapping error = %v", err)
	}
	if !strings.Contains(out, "app") || !strings.Contains(out, "@@") {
		t.Errorf("main mapping should map app to @@, got:\n%s", out)
	}
}

func TestExecute_MissingModuleFile(t *testing.T) {
	_, err := run(t, "-w", t.TempDir(), "resolve")
	if err == nil || !strings.Contains(err.Error(), "no MODULE.bazel") {
		t.Errorf("resolve error = %v, want missing MODULE.bazel", err)
	}
}

func TestRepoArg(t *testing.T) {
	tests := []struct {
		args    []string
		want    label.RepositoryName
		wantErr bool
	}{
		{args: nil, want: label.Main},
		{args: []string{"@@"}, want: label.Main},
		{args: []string{"@@rules_x~"}, want: "rules_x~"},
		{args: []string{"rules_x~"}, want: "rules_x~"},
		{args: []string{"@@bad/name"}, wantErr: true},
	}
	for _, tt := range tests {
		got, err := repoArg(tt.args)
		if (err != nil) != tt.wantErr {
			t.Errorf("repoArg(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("repoArg(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}
