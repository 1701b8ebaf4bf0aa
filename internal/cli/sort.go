package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/loadorder/pkg/errors"
	lio "github.com/matzehuels/loadorder/pkg/io"
	"github.com/matzehuels/loadorder/pkg/loader"
)

// sortOptions holds the flags of the sort command.
type sortOptions struct {
	ids     []string
	files   bool
	noCache bool
}

// sortCommand creates the sort command, which prints the load order for the
// requested components.
func (c *CLI) sortCommand() *cobra.Command {
	var opts sortOptions

	cmd := &cobra.Command{
		Use:   "sort FILE...",
		Short: "Print the load order for requested components",
		Long: `Sort prints the requested components and everything they transitively
require, each after its dependencies. Without --ids the enabled plugins are
requested, or every component when no plugin is enabled.

With --files the asset files of the ordered libraries are printed instead,
each file once, at the position of the first library that declares it.`,
		Example: `  loadorder sort mods/
  loadorder sort mods/ --ids shop,blog --files
  loadorder sort --raw components.json --ids ui --output json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			in, err := c.loadInput(ctx, args)
			if err != nil {
				return err
			}
			if opts.files && in.reg == nil {
				return errors.New(errors.ErrCodeInvalidInput, "--files needs declaration files, not --raw component maps")
			}

			r, err := c.newResolver(opts.noCache)
			if err != nil {
				return err
			}
			defer r.Close()

			ids := in.request(opts.ids)
			prog := newProgress(c.Logger)
			order, cached, err := r.ResolveWithCacheInfo(ctx, ids, in.components)
			if err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Ordered %d components", len(order)))

			w := cmd.OutOrStdout()
			if !opts.files {
				if c.jsonOutput() {
					return lio.WriteOrder(order, w)
				}
				printOrder(w, order)
				printStats(w, len(order), 0, cached)
				return nil
			}

			plan := loader.New(order, in.reg)
			if c.jsonOutput() {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Order  []string       `json:"order"`
					Assets []loader.Asset `json:"assets"`
				}{order, plan.Assets})
			}
			for _, f := range plan.Files() {
				printFile(w, f)
			}
			printStats(w, len(order), 0, cached)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&opts.ids, "ids", nil, "components to order (comma-separated)")
	cmd.Flags().BoolVar(&opts.files, "files", false, "print the asset files instead of component ids")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "do not read or write the order cache")

	return cmd
}
