package cli

import (
	"bytes"
	"context"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/matzehuels/loadorder/pkg/dag/annotate"
	"github.com/matzehuels/loadorder/pkg/errors"
	lio "github.com/matzehuels/loadorder/pkg/io"
	"github.com/matzehuels/loadorder/pkg/render/nodelink"
	"github.com/matzehuels/loadorder/pkg/resolver"
)

// Graph output formats.
const (
	graphDOT  = "dot"
	graphSVG  = "svg"
	graphPNG  = "png"
	graphJSON = "json"
)

var graphFormats = []string{graphDOT, graphSVG, graphPNG, graphJSON}

// graphOptions holds the flags of the graph command.
type graphOptions struct {
	format    string
	out       string
	detailed  bool
	highlight []string
}

// graphCommand creates the graph command, which draws the dependency graph.
// Cycles and dangling dependencies are drawn rather than rejected.
func (c *CLI) graphCommand() *cobra.Command {
	var opts graphOptions

	cmd := &cobra.Command{
		Use:   "graph FILE...",
		Short: "Draw the dependency graph",
		Long: `Graph draws the dependency graph as Graphviz DOT, SVG or PNG, or writes it
as node-link JSON. Cycle members are filled red and dependencies on
undeclared components are drawn dashed.`,
		Example: `  loadorder graph mods/ --format svg -o deps.svg
  loadorder graph mods/ --detailed --highlight shop | dot -Tpng > deps.png`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(graphFormats, opts.format) {
				return errors.New(errors.ErrCodeInvalidFormat, "unknown graph format %q (want dot, svg, png or json)", opts.format)
			}

			ctx := cmd.Context()
			in, err := c.loadInput(ctx, args)
			if err != nil {
				return err
			}

			var data []byte
			if opts.format == graphJSON {
				var buf bytes.Buffer
				if err := lio.WriteNodeLink(in.components, &buf); err != nil {
					return err
				}
				data = buf.Bytes()
			} else {
				res, err := c.buildTolerant(ctx, in)
				if err != nil {
					return err
				}
				if data, err = c.draw(ctx, cmd, res, opts); err != nil {
					return err
				}
			}

			if opts.out == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(opts.out, data, 0o644); err != nil {
				return errors.Wrap(errors.ErrCodeInternal, err, "write %s", opts.out)
			}
			w := cmd.OutOrStdout()
			printSuccess(w, "Graph written")
			printFile(w, opts.out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", graphDOT, "output format: dot, svg, png or json")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "label nodes with group, weight and closure sizes")
	cmd.Flags().StringSliceVar(&opts.highlight, "highlight", nil, "components to outline (comma-separated)")

	return cmd
}

func (c *CLI) buildTolerant(ctx context.Context, in *input) (*annotate.Result, error) {
	r, err := c.newResolver(true)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	r.Options.Cycles = resolver.CyclesTolerate
	r.Options.Dangling = resolver.DanglingIgnore
	return r.Build(ctx, in.components)
}

func (c *CLI) draw(ctx context.Context, cmd *cobra.Command, res *annotate.Result, opts graphOptions) ([]byte, error) {
	dot := nodelink.ToDOT(res, nodelink.Options{Detailed: opts.detailed, Highlight: opts.highlight})
	if opts.format == graphDOT {
		return []byte(dot), nil
	}

	spin := newSpinner(ctx, cmd.ErrOrStderr(), "Rendering "+opts.format+"...")
	spin.Start()
	defer spin.Stop()

	prog := newProgress(c.Logger)
	var (
		data []byte
		err  error
	)
	if opts.format == graphSVG {
		data, err = nodelink.RenderSVG(ctx, dot)
	} else {
		data, err = nodelink.RenderPNG(ctx, dot)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "render %s", opts.format)
	}
	spin.Stop()
	prog.done("Rendered " + opts.format)
	return data, nil
}
