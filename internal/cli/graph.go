package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/spf13/cobra"

	"github.com/matzehuels/treepull/pkg/errors"
	"github.com/matzehuels/treepull/pkg/objects"
	"github.com/matzehuels/treepull/pkg/repo"
)

// graphCommand creates the "graph" command rendering a commit closure as a
// DOT or SVG object graph. Mostly a debugging and inspection aid.
func (c *CLI) graphCommand() *cobra.Command {
	var repoPath string
	var output string
	var related bool

	cmd := &cobra.Command{
		Use:   "graph REV",
		Short: "Render the object graph of a commit closure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveRepoPath(repoPath)
			if err != nil {
				return err
			}
			r, err := repo.Open(path)
			if err != nil {
				return err
			}
			root, _, err := r.ResolveRev(args[0], false)
			if err != nil {
				return err
			}
			closure, err := r.WalkClosure(root, related)
			if err != nil {
				return err
			}

			dot := closureToDOT(closure)
			data := []byte(dot)
			if strings.HasSuffix(output, ".svg") {
				data, err = renderSVG(cmd.Context(), dot)
				if err != nil {
					return err
				}
			} else if output != "" && !strings.HasSuffix(output, ".dot") {
				return errors.New(errors.ErrCodeInvalidInput, "output must end in .svg or .dot")
			}

			if output == "" {
				fmt.Print(dot)
				return nil
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			printSuccess("Rendered %d objects", len(closure.Nodes))
			printDetail("Output: %s", output)
			return nil
		},
	}
	cmd.Flags().StringVar(&repoPath, "repo", "", "repository path")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (.dot or .svg); stdout DOT when empty")
	cmd.Flags().BoolVar(&related, "related", false, "include related commits")
	return cmd
}

// closureToDOT converts an object closure to Graphviz DOT format. Nodes are
// labeled with a short digest prefix and shaped by object type.
func closureToDOT(cl *repo.Closure) string {
	var buf bytes.Buffer
	buf.WriteString("digraph objects {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontname=monospace];\n\n")

	for _, n := range cl.Nodes {
		fmt.Fprintf(&buf, "  %q [label=%q%s];\n", n.String(), nodeLabel(n), nodeAttrs(n.Type))
	}
	buf.WriteString("\n")
	for _, e := range cl.Edges {
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.From.String(), e.To.String())
	}
	buf.WriteString("}\n")
	return buf.String()
}

func nodeLabel(n objects.Name) string {
	return fmt.Sprintf("%s\n%s", n.Type, n.Digest.Hex()[:12])
}

func nodeAttrs(t objects.Type) string {
	switch t {
	case objects.TypeCommit:
		return ", fillcolor=lightblue"
	case objects.TypeDirTree:
		return ", fillcolor=lightyellow"
	case objects.TypeFile:
		return ", fillcolor=lightgrey, shape=ellipse"
	default:
		return ""
	}
}

// renderSVG renders a DOT graph to SVG using Graphviz.
func renderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
