package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	bzlresolve "github.com/albertocavalcante/go-bzlresolve"
	"github.com/albertocavalcante/go-bzlresolve/depgraph"
	"github.com/albertocavalcante/go-bzlresolve/label"
)

func (c *CLI) newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the module graph and update the lockfile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := c.resolver(cmd)
			if err != nil {
				return err
			}
			start := time.Now()
			res, err := r.Resolve(cmd.Context())
			if err != nil {
				return err
			}
			idx, err := r.DepGraph(cmd.Context())
			if err != nil {
				return err
			}

			for key, m := range res.Resolved.All() {
				repo, _ := idx.CanonicalName(key)
				fmt.Fprintf(c.out, "%-40s %s\n", m.Display(), repo)
			}
			for key, reason := range res.SelectedYanked {
				c.logger.Warn("selected yanked version", "module", key.String(), "reason", reason)
			}
			c.logger.Infof("Resolved %d modules (%s)", res.Resolved.Len(), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

func (c *CLI) newGraphCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the resolved dependency graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output != "text" && output != "dot" {
				return fmt.Errorf("invalid output format %q: must be text or dot", output)
			}
			r, err := c.resolver(cmd)
			if err != nil {
				return err
			}
			res, err := r.Resolve(cmd.Context())
			if err != nil {
				return err
			}
			if output == "dot" {
				_, err = io.WriteString(c.out, res.Graph.ToDOT())
			} else {
				_, err = io.WriteString(c.out, res.Graph.ToText())
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or dot")
	return cmd
}

func (c *CLI) newExplainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain <module>",
		Short: "Explain why a module resolved to its version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := c.resolver(cmd)
			if err != nil {
				return err
			}
			res, err := r.Resolve(cmd.Context())
			if err != nil {
				return err
			}
			text, err := res.Graph.ToExplainText(args[0])
			if err != nil {
				return err
			}
			_, err = io.WriteString(c.out, text)
			return err
		},
	}
}

func (c *CLI) newMappingCmd() *cobra.Command {
	var legacy bool
	cmd := &cobra.Command{
		Use:   "mapping [canonical-repo]",
		Short: "Print the repository mapping of a repository (default: the main repository)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := repoArg(args)
			if err != nil {
				return err
			}
			r, err := c.resolver(cmd)
			if err != nil {
				return err
			}
			m, err := r.RepoMapping(cmd.Context(), repo, legacy)
			if err != nil {
				return err
			}
			entries := m.Entries()
			for _, apparent := range slices.Sorted(maps.Keys(entries)) {
				name := apparent
				if name == "" {
					name = `""`
				}
				fmt.Fprintf(c.out, "%-30s %s\n", name, entries[apparent])
			}
			if m.AllowsFallback() {
				fmt.Fprintln(c.out, "(other names resolve to themselves)")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&legacy, "legacy_repos", false, "let the main repository see legacy repositories")
	return cmd
}

func (c *CLI) newRepoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repo <canonical-repo>",
		Short: "Print the repository rule that defines a canonical repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := repoArg(args)
			if err != nil {
				return err
			}
			r, err := c.resolver(cmd)
			if err != nil {
				return err
			}
			v, err := r.RepoRule(cmd.Context(), repo)
			if err != nil {
				return err
			}
			if !v.Found() {
				return fmt.Errorf("repository %s is not defined by the module graph", repo)
			}
			printRepoSpec(c.out, v.Spec, v.Source)
			return nil
		},
	}
}

// repoArg parses an optional "@@name" or "name" argument.
func repoArg(args []string) (label.RepositoryName, error) {
	if len(args) == 0 {
		return label.Main, nil
	}
	name := strings.TrimPrefix(args[0], "@@")
	if name == "" {
		return label.Main, nil
	}
	return label.NewRepositoryName(name)
}

func printRepoSpec(w io.Writer, spec depgraph.RepoSpec, source bzlresolve.RepoSource) {
	fmt.Fprintf(w, "rule:   %s\n", spec.RuleClass())
	fmt.Fprintf(w, "source: %s\n", source)
	for _, k := range slices.Sorted(maps.Keys(spec.Attributes)) {
		fmt.Fprintf(w, "  %s = %v\n", k, spec.Attributes[k])
	}
}
