package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/albertocavalcante/go-bzlresolve/depgraph"
)

func TestSourceValidate(t *testing.T) {
	tests := []struct {
		name    string
		src     Source
		wantErr []string
	}{
		{"archive", Source{URL: "https://x/a.tar.gz", Integrity: "sha256-abc"}, nil},
		{"archive missing fields", Source{}, []string{"url is required", "integrity is required"}},
		{"patch without integrity", Source{URL: "u", Integrity: "i", Patches: map[string]string{"a.patch": ""}}, []string{"patch a.patch"}},
		{"git", Source{Type: SourceGit, Remote: "https://x.git", Commit: "abc"}, nil},
		{"git without ref", Source{Type: SourceGit, Remote: "https://x.git"}, []string{"one of commit or tag"}},
		{"local_path", Source{Type: SourceLocalPath, Path: "mods/a"}, nil},
		{"unknown type", Source{Type: "svn"}, []string{`unknown source type "svn"`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.src.Validate()
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			for _, want := range tt.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q should contain %q", err, want)
				}
			}
		})
	}
}

func TestRepoSpec_Archive(t *testing.T) {
	var serverURL string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bazel_registry.json":
			fmt.Fprint(w, `{"mirrors": ["https://mirror.example.com/"]}`)
		case "/modules/foo/1.0/source.json":
			fmt.Fprint(w, `{
				"url": "https://github.com/foo/foo/archive/1.0.tar.gz",
				"integrity": "sha256-abc",
				"strip_prefix": "foo-1.0",
				"patches": {"fix.patch": "sha256-patch"},
				"patch_strip": 1
			}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()
	serverURL = server.URL

	c := newTestClient(t, server.URL)
	spec, err := c.RepoSpec(context.Background(), "foo", "1.0", "foo~")
	if err != nil {
		t.Fatalf("RepoSpec failed: %v", err)
	}

	want := depgraph.RepoSpec{
		BzlFile:       depgraph.HTTPBzl,
		RuleClassName: "http_archive",
		Attributes: map[string]any{
			"name": "foo~",
			"urls": []string{
				"https://mirror.example.com/github.com/foo/foo/archive/1.0.tar.gz",
				"https://github.com/foo/foo/archive/1.0.tar.gz",
			},
			"integrity":    "sha256-abc",
			"strip_prefix": "foo-1.0",
			"remote_patches": map[string]string{
				serverURL + "/modules/foo/1.0/patches/fix.patch": "sha256-patch",
			},
			"remote_patch_strip": 1,
		},
	}
	if !reflect.DeepEqual(spec, want) {
		t.Errorf("RepoSpec =\n%#v\nwant\n%#v", spec, want)
	}
}

func TestRepoSpec_Git(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"type": "git_repository", "remote": "https://x/bar.git", "commit": "deadbeef"}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	spec, err := c.RepoSpec(context.Background(), "bar", "2.0", "bar~")
	if err != nil {
		t.Fatalf("RepoSpec failed: %v", err)
	}
	if spec.RuleClass() != depgraph.GitBzl+"%git_repository" {
		t.Errorf("rule class = %q", spec.RuleClass())
	}
	if spec.Attributes["commit"] != "deadbeef" || spec.Attributes["remote"] != "https://x/bar.git" {
		t.Errorf("unexpected attributes %v", spec.Attributes)
	}
	if _, ok := spec.Attributes["tag"]; ok {
		t.Error("empty tag should be omitted")
	}
}

func TestRepoSpec_LocalPath(t *testing.T) {
	root := writeRegistry(t, map[string]string{
		"bazel_registry.json":         `{"module_base_path": "base"}`,
		"modules/baz/1.0/source.json": `{"type": "local_path", "path": "baz"}`,
	})
	c := newTestClient(t, "file://"+filepath.ToSlash(root))

	spec, err := c.RepoSpec(context.Background(), "baz", "1.0", "baz~")
	if err != nil {
		t.Fatalf("RepoSpec failed: %v", err)
	}
	if !spec.IsNative() || spec.RuleClassName != "local_repository" {
		t.Errorf("unexpected rule %q", spec.RuleClass())
	}
	if got, want := spec.Attributes["path"], filepath.Join(root, "base", "baz"); got != want {
		t.Errorf("path = %v, want %v", got, want)
	}
}

func TestRepoSpec_LocalPathNeedsFileRegistry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"type": "local_path", "path": "relative"}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.RepoSpec(context.Background(), "baz", "1.0", "baz~")
	if depgraph.CodeOf(err) != depgraph.InvalidRepoSpec {
		t.Errorf("expected %s, got %v", depgraph.InvalidRepoSpec, err)
	}
}

func TestRepoSpec_InvalidSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.RepoSpec(context.Background(), "bad", "1.0", "bad~")
	if depgraph.CodeOf(err) != depgraph.InvalidRepoSpec {
		t.Fatalf("expected %s, got %v", depgraph.InvalidRepoSpec, err)
	}
	if !strings.Contains(err.Error(), "url is required") {
		t.Errorf("error should list the problems: %v", err)
	}
}
