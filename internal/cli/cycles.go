package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/matzehuels/loadorder/pkg/dag"
	"github.com/matzehuels/loadorder/pkg/errors"
	"github.com/matzehuels/loadorder/pkg/resolver"
)

// cyclesCommand creates the cycles command. It lists every dependency cycle
// and fails when there is at least one, so it can gate CI pipelines.
func (c *CLI) cyclesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cycles FILE...",
		Short: "List dependency cycles (exits non-zero when any exist)",
		Args:  cobra.MinimumNArgs(1),
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
			r.Options.Cycles = resolver.CyclesTolerate

			res, err := r.Build(ctx, in.components)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if c.jsonOutput() {
				cycles := res.Cycles
				if cycles == nil {
					cycles = [][]string{}
				}
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(struct {
					Cycles [][]string `json:"cycles"`
				}{cycles}); err != nil {
					return err
				}
			} else if !res.HasCycles() {
				printSuccess(w, "No cycles among %d components", len(res.Records))
			} else {
				for _, cycle := range res.Cycles {
					printCycle(w, cycle)
				}
			}

			if res.HasCycles() {
				return errors.Wrap(errors.ErrCodeCyclicDependency, &dag.CycleError{Cycles: res.Cycles},
					"found %d cycles", len(res.Cycles))
			}
			return nil
		},
	}
}
