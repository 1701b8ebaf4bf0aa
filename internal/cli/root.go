package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/loadorder/internal/config"
	"github.com/matzehuels/loadorder/pkg/buildinfo"
)

// RootCommand creates the root cobra command with all subcommands registered.
//
// Settings are loaded in PersistentPreRunE, after cobra has parsed the
// flags, so flags override the config file and the environment. --verbose
// forces debug logging regardless of log.level.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Loadorder computes dependency-respecting load orders",
		Long: `Loadorder reads library and plugin declarations, builds their dependency
graph and prints the order in which components (and their asset files) must
be loaded so that every component comes after everything it requires.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags(), c.configPath)
			if err != nil {
				return err
			}
			c.Config = cfg

			level := cfg.LogLevel()
			if c.verbose {
				level = LogDebug
			}
			c.SetLogLevel(level)
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	pf.StringVar(&c.configPath, "config", "", "config file (default "+config.DefaultFile+" if present)")
	pf.BoolVar(&c.raw, "raw", false, "read FILE arguments as component-map or node-link JSON")
	pf.String("cycles", "reject", "cycle policy: reject or tolerate")
	pf.String("dangling", "ignore", "dangling dependency policy: ignore or reject")
	pf.String("output", config.OutputText, "output format: text or json")
	pf.String("log-level", "info", "log level: debug, info, warn or error")

	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.sortCommand())
	root.AddCommand(c.cyclesCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}
