// Package modfile parses MODULE.bazel files into discovery nodes.
//
// Only the statements that affect resolution are interpreted: module,
// bazel_dep, the five override functions, use_extension proxies with their
// tag calls, and use_repo. Everything else (register_toolchains, include,
// load, ...) is accepted and ignored.
package modfile

import (
	"fmt"
	"os"

	"github.com/bazelbuild/buildtools/build"

	"github.com/albertocavalcante/go-bzlresolve/depgraph"
	"github.com/albertocavalcante/go-bzlresolve/internal/buildutil"
	"github.com/albertocavalcante/go-bzlresolve/label"
)

// File is a parsed MODULE.bazel.
type File struct {
	Module *depgraph.InterimModule

	// Overrides maps module names to the override the file declares for
	// them. Always empty for non-root modules, whose overrides have no
	// effect.
	Overrides map[string]depgraph.Override
}

// Options says how to interpret a module file.
type Options struct {
	// Key is the graph key of the module. Ignored for the root.
	Key depgraph.ModuleKey
	// Root marks the root module file.
	Root bool
	// IgnoreDevDependencies drops dev dependencies even in the root module.
	IgnoreDevDependencies bool
	// Registry is recorded on the resulting node.
	Registry string
}

// ParseFile reads and parses the module file at path.
func ParseFile(path string, opts Options) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read module file: %w", err)
	}
	return Parse(path, data, opts)
}

// Parse parses the content of a module file. filename is used in error
// messages only.
func Parse(filename string, content []byte, opts Options) (*File, error) {
	f, err := build.ParseModule(filename, content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}

	p := &parser{
		opts:      opts,
		overrides: make(map[string]depgraph.Override),
		proxies:   make(map[string]*proxy),
		repoNames: make(map[string]string),
	}
	p.m = &depgraph.InterimModule{Key: opts.Key, Registry: opts.Registry}
	if opts.Root {
		p.m.Key = depgraph.RootKey
		p.m.Registry = ""
	}

	for _, stmt := range f.Stmt {
		if err := p.stmt(stmt); err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
	}
	return p.finish(), nil
}

// proxy is the value bound by `x = use_extension(...)`.
type proxy struct {
	usage   int
	dev     bool
	ignored bool
}

type parser struct {
	opts      Options
	m         *depgraph.InterimModule
	seenDecl  bool
	overrides map[string]depgraph.Override
	proxies   map[string]*proxy
	// repoNames maps apparent names already taken to what took them.
	repoNames map[string]string
	// allDev tracks, per usage, whether every proxy for it was dev.
	allDev []bool
}

func (p *parser) stmt(stmt build.Expr) error {
	if assign, ok := stmt.(*build.AssignExpr); ok {
		lhs, ok := assign.LHS.(*build.Ident)
		call, isCall := buildutil.AsCall(assign.RHS)
		if ok && isCall && call.Func == "use_extension" && call.Receiver == "" {
			return p.useExtension(lhs.Name, call)
		}
		return nil
	}

	call, ok := buildutil.AsCall(stmt)
	if !ok {
		return nil
	}
	if call.Receiver != "" {
		return p.tag(call)
	}
	switch call.Func {
	case "module":
		return p.module(call)
	case "bazel_dep":
		return p.bazelDep(call)
	case "use_repo":
		return p.useRepo(call)
	case "single_version_override", "multiple_version_override",
		"archive_override", "git_override", "local_path_override":
		return p.override(call)
	}
	return nil
}

func (p *parser) module(call buildutil.Call) error {
	if p.seenDecl {
		return fmt.Errorf("line %d: the module() directive can only be called once", call.Line())
	}
	p.seenDecl = true

	var err error
	if p.m.Name, err = call.String("name", -1, ""); err != nil {
		return err
	}
	if p.m.Name != "" {
		if err := label.ValidateModuleName(p.m.Name); err != nil {
			return fmt.Errorf("line %d: %w", call.Line(), err)
		}
	}
	if p.m.Version, err = call.String("version", -1, ""); err != nil {
		return err
	}
	if p.m.CompatibilityLevel, err = call.Int("compatibility_level", 0); err != nil {
		return err
	}
	if p.m.RepoName, err = call.String("repo_name", -1, p.m.Name); err != nil {
		return err
	}
	if p.m.BazelCompatibility, err = call.StringList("bazel_compatibility"); err != nil {
		return err
	}
	if p.m.RepoName != "" {
		return p.claimRepoName(call, p.m.RepoName, "the module's own repo_name")
	}
	return nil
}

// includeDev reports whether a dev_dependency declaration takes effect.
func (p *parser) includeDev() bool {
	return p.opts.Root && !p.opts.IgnoreDevDependencies
}

func (p *parser) bazelDep(call buildutil.Call) error {
	name, err := call.String("name", -1, "")
	if err != nil {
		return err
	}
	if err := label.ValidateModuleName(name); err != nil {
		return fmt.Errorf("line %d: %w", call.Line(), err)
	}
	ver, err := call.String("version", -1, "")
	if err != nil {
		return err
	}
	maxCompat, err := call.Int("max_compatibility_level", -1)
	if err != nil {
		return err
	}
	repoName, err := call.String("repo_name", -1, name)
	if err != nil {
		return err
	}
	dev, err := call.Bool("dev_dependency")
	if err != nil {
		return err
	}
	if dev && !p.includeDev() {
		return nil
	}
	if err := label.ValidateApparentRepo(repoName); err != nil {
		return fmt.Errorf("line %d: %w", call.Line(), err)
	}
	if err := p.claimRepoName(call, repoName, "bazel_dep "+name); err != nil {
		return err
	}

	p.m.Deps = append(p.m.Deps, depgraph.DepSpec{
		RepoName:              repoName,
		Name:                  name,
		Version:               ver,
		MaxCompatibilityLevel: maxCompat,
	})
	return nil
}

func (p *parser) claimRepoName(call buildutil.Call, repoName, by string) error {
	if prev, ok := p.repoNames[repoName]; ok {
		return fmt.Errorf("line %d: the repo name '%s' is already being used by %s", call.Line(), repoName, prev)
	}
	p.repoNames[repoName] = by
	return nil
}

func (p *parser) override(call buildutil.Call) error {
	name, err := call.String("module_name", 0, "")
	if err != nil {
		return err
	}
	if !p.opts.Root {
		return nil
	}
	if err := label.ValidateModuleName(name); err != nil {
		return fmt.Errorf("line %d: %w", call.Line(), err)
	}
	if _, dup := p.overrides[name]; dup {
		return fmt.Errorf("line %d: multiple overrides for dep %s found", call.Line(), name)
	}

	o, err := parseOverride(call)
	if err != nil {
		return err
	}
	p.overrides[name] = o
	return nil
}

// patches is the patch configuration shared by several overrides.
type patches struct {
	files []string
	cmds  []string
	strip int
}

func parsePatches(call buildutil.Call) (patches, error) {
	var (
		pt  patches
		err error
	)
	if pt.files, err = call.StringList("patches"); err != nil {
		return pt, err
	}
	if pt.cmds, err = call.StringList("patch_cmds"); err != nil {
		return pt, err
	}
	pt.strip, err = call.Int("patch_strip", 0)
	return pt, err
}

func parseOverride(call buildutil.Call) (depgraph.Override, error) {
	switch call.Func {
	case "single_version_override":
		ver, err := call.String("version", -1, "")
		if err != nil {
			return nil, err
		}
		reg, err := call.String("registry", -1, "")
		if err != nil {
			return nil, err
		}
		pt, err := parsePatches(call)
		if err != nil {
			return nil, err
		}
		return depgraph.SingleVersionOverride{
			Version: ver, Registry: reg,
			Patches: pt.files, PatchCmds: pt.cmds, PatchStrip: pt.strip,
		}, nil

	case "multiple_version_override":
		versions, err := call.StringList("versions")
		if err != nil {
			return nil, err
		}
		if len(versions) < 2 {
			return nil, fmt.Errorf("line %d: multiple_version_override needs at least two versions", call.Line())
		}
		reg, err := call.String("registry", -1, "")
		if err != nil {
			return nil, err
		}
		return depgraph.MultipleVersionOverride{Versions: versions, Registry: reg}, nil

	case "archive_override":
		urls, err := stringOrList(call, "urls")
		if err != nil {
			return nil, err
		}
		integrity, err := call.String("integrity", -1, "")
		if err != nil {
			return nil, err
		}
		strip, err := call.String("strip_prefix", -1, "")
		if err != nil {
			return nil, err
		}
		pt, err := parsePatches(call)
		if err != nil {
			return nil, err
		}
		return depgraph.ArchiveOverride{
			URLs: urls, Integrity: integrity, StripPrefix: strip,
			Patches: pt.files, PatchCmds: pt.cmds, PatchStrip: pt.strip,
		}, nil

	case "git_override":
		remote, err := call.String("remote", -1, "")
		if err != nil {
			return nil, err
		}
		commit, err := call.String("commit", -1, "")
		if err != nil {
			return nil, err
		}
		strip, err := call.String("strip_prefix", -1, "")
		if err != nil {
			return nil, err
		}
		submodules, err := call.Bool("init_submodules")
		if err != nil {
			return nil, err
		}
		pt, err := parsePatches(call)
		if err != nil {
			return nil, err
		}
		return depgraph.GitOverride{
			Remote: remote, Commit: commit, StripPrefix: strip, InitSubmodules: submodules,
			Patches: pt.files, PatchCmds: pt.cmds, PatchStrip: pt.strip,
		}, nil

	default: // local_path_override
		path, err := call.String("path", -1, "")
		if err != nil {
			return nil, err
		}
		return depgraph.LocalPathOverride{Path: path}, nil
	}
}

// stringOrList accepts either a single string or a list of strings.
func stringOrList(call buildutil.Call, name string) ([]string, error) {
	expr, ok := call.Kwarg(name)
	if !ok {
		return nil, nil
	}
	if s, ok := expr.(*build.StringExpr); ok {
		return []string{s.Value}, nil
	}
	return call.StringList(name)
}

func (p *parser) useExtension(varName string, call buildutil.Call) error {
	bzl, err := call.String("extension_bzl_file", 0, "")
	if err != nil {
		return err
	}
	name, err := call.String("extension_name", 1, "")
	if err != nil {
		return err
	}
	if bzl == "" || name == "" {
		return fmt.Errorf("line %d: use_extension() needs a .bzl file and an extension name", call.Line())
	}
	dev, err := call.Bool("dev_dependency")
	if err != nil {
		return err
	}
	if dev && !p.includeDev() {
		p.proxies[varName] = &proxy{ignored: true}
		return nil
	}

	idx := -1
	for i, u := range p.m.ExtensionUsages {
		if u.BzlFile == bzl && u.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		p.m.ExtensionUsages = append(p.m.ExtensionUsages, depgraph.ExtensionUsage{BzlFile: bzl, Name: name})
		p.allDev = append(p.allDev, true)
		idx = len(p.m.ExtensionUsages) - 1
	}
	p.allDev[idx] = p.allDev[idx] && dev
	p.proxies[varName] = &proxy{usage: idx, dev: dev}
	return nil
}

func (p *parser) tag(call buildutil.Call) error {
	px, ok := p.proxies[call.Receiver]
	if !ok {
		return fmt.Errorf("line %d: %s is not an extension proxy", call.Line(), call.Receiver)
	}
	if px.ignored {
		return nil
	}
	if len(call.Positional()) > 0 {
		return fmt.Errorf("line %d: tag %s.%s() only accepts keyword arguments", call.Line(), call.Receiver, call.Func)
	}
	attrs := make(map[string]any)
	for _, kw := range call.Kwargs() {
		if id, ok := kw.LHS.(*build.Ident); ok {
			attrs[id.Name] = buildutil.ExtractValue(kw.RHS)
		}
	}
	u := &p.m.ExtensionUsages[px.usage]
	u.Tags = append(u.Tags, depgraph.Tag{Class: call.Func, Attrs: attrs, DevDependency: px.dev})
	return nil
}

func (p *parser) useRepo(call buildutil.Call) error {
	args := call.Positional()
	if len(args) == 0 {
		return fmt.Errorf("line %d: use_repo() needs an extension proxy", call.Line())
	}
	id, ok := args[0].(*build.Ident)
	if !ok {
		return fmt.Errorf("line %d: the first argument of use_repo() must be an extension proxy", call.Line())
	}
	px, ok := p.proxies[id.Name]
	if !ok {
		return fmt.Errorf("line %d: %s is not an extension proxy", call.Line(), id.Name)
	}
	if px.ignored {
		return nil
	}

	var imports []depgraph.Import
	for _, arg := range args[1:] {
		s, ok := arg.(*build.StringExpr)
		if !ok {
			return fmt.Errorf("line %d: use_repo() arguments must be strings", call.Line())
		}
		imports = append(imports, depgraph.Import{Apparent: s.Value, Internal: s.Value})
	}
	for _, kw := range call.Kwargs() {
		lhs, _ := kw.LHS.(*build.Ident)
		s, ok := kw.RHS.(*build.StringExpr)
		if lhs == nil || !ok {
			return fmt.Errorf("line %d: use_repo() keyword arguments must map a name to a string", call.Line())
		}
		imports = append(imports, depgraph.Import{Apparent: lhs.Name, Internal: s.Value})
	}

	u := &p.m.ExtensionUsages[px.usage]
	for _, imp := range imports {
		if err := label.ValidateApparentRepo(imp.Apparent); err != nil {
			return fmt.Errorf("line %d: %w", call.Line(), err)
		}
		if err := p.claimRepoName(call, imp.Apparent, "a use_repo() call on "+u.Name); err != nil {
			return err
		}
		u.Imports = append(u.Imports, imp)
	}
	return nil
}

func (p *parser) finish() *File {
	for i := range p.m.ExtensionUsages {
		p.m.ExtensionUsages[i].DevDependency = p.allDev[i]
	}
	return &File{Module: p.m, Overrides: p.overrides}
}
