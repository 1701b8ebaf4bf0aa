package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/matzehuels/loadorder/pkg/dag/annotate"
	lio "github.com/matzehuels/loadorder/pkg/io"
)

// resolveCommand creates the resolve command, which prints every annotated
// record of the graph.
func (c *CLI) resolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve FILE...",
		Short: "Annotate the declarations and print every component record",
		Long: `Resolve builds the dependency graph of the declared components and prints,
for each component, its group, weight, transitive requirements and
transitive dependents.`,
		Example: `  loadorder resolve mods/
  loadorder resolve --raw --output json components.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			in, err := c.loadInput(ctx, args)
			if err != nil {
				return err
			}
			r, err := c.newResolver(true)
			if err != nil {
				return err
			}
			defer r.Close()

			prog := newProgress(c.Logger)
			res, err := r.Build(ctx, in.components)
			if err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Resolved %d components", len(res.Records)))

			w := cmd.OutOrStdout()
			if c.jsonOutput() {
				return lio.WriteResult(res, w)
			}
			printRecords(w, res)
			return nil
		},
	}
}

// printRecords prints one table row per record, in id order, followed by
// cycle and dangling edge warnings.
func printRecords(w io.Writer, res *annotate.Result) {
	ids := res.IDs()
	idWidth := len("COMPONENT")
	for _, id := range ids {
		idWidth = max(idWidth, lipgloss.Width(id))
	}

	idCol := lipgloss.NewStyle().Width(idWidth + 2)
	numCol := lipgloss.NewStyle().Width(8).Align(lipgloss.Right).PaddingRight(2)
	head := StyleTitle

	fmt.Fprintln(w, head.Render(idCol.Render("COMPONENT")+numCol.Render("WEIGHT"))+" "+
		head.Render("GROUP")+"  "+head.Render("REQUIRES"))

	edges := 0
	for _, id := range ids {
		rec := res.Records[id]
		edges += len(rec.Edges)
		requires := slices.Sorted(maps.Keys(rec.Requires))
		fmt.Fprintln(w, StyleValue.Render(idCol.Render(id))+
			StyleNumber.Render(numCol.Render(strconv.Itoa(rec.Weight)))+" "+
			StyleDim.Render(rec.Group)+"  "+
			StyleDim.Render(strings.Join(requires, ", ")))
	}

	for _, cycle := range res.Cycles {
		printWarning(w, "cycle")
		printCycle(w, cycle)
	}
	for _, d := range res.Dangling {
		printWarning(w, "%s depends on undeclared %s", d.From, d.To)
	}
	printStats(w, len(ids), edges, false)
}
