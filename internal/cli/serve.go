package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/loadorder/internal/server"
	"github.com/matzehuels/loadorder/pkg/cache"
	"github.com/matzehuels/loadorder/pkg/errors"
	"github.com/matzehuels/loadorder/pkg/resolver"
)

// serveCommand creates the serve command, which runs the HTTP API over the
// given declaration files.
func (c *CLI) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [FILE...]",
		Short: "Run the HTTP API",
		Long: `Serve runs the HTTP API. POST /v1/build and /v1/sort work on posted
component maps; GET /v1/order answers from the declaration FILEs, which are
reloaded on change with --watch. Orders are memoized in memory.`,
		Example: `  loadorder serve mods/ --listen :9090 --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.raw {
				return errors.New(errors.ErrCodeInvalidInput, "serve reads declaration files; --raw is not supported")
			}
			cfg := c.Config

			mem, err := cache.NewMemoryCache(cfg.Cache.Size)
			if err != nil {
				return errors.Wrap(errors.ErrCodeInternal, err, "create order cache")
			}
			metrics := server.NewMetrics()
			metrics.Install()

			srv, err := server.New(cmd.Context(), server.Options{
				Listen:   cfg.Server.Listen,
				Paths:    args,
				Watch:    cfg.Server.Watch,
				Resolver: resolver.New(mem, nil, c.Logger, cfg.ResolverOptions()),
				Logger:   c.Logger,
				Metrics:  metrics,
			})
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().String("listen", ":8080", "address to listen on")
	cmd.Flags().Bool("watch", false, "reload declaration files when they change")
	cmd.Flags().Int("cache-size", 512, "maximum memoized orders (0 disables memoization)")
	cmd.Flags().Duration("cache-ttl", 10*time.Minute, "lifetime of memoized orders")

	return cmd
}
