package cli

import (
	"context"
	stderrors "errors"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/loadorder/internal/config"
	"github.com/matzehuels/loadorder/pkg/cache"
	"github.com/matzehuels/loadorder/pkg/dag"
	"github.com/matzehuels/loadorder/pkg/errors"
	lio "github.com/matzehuels/loadorder/pkg/io"
	"github.com/matzehuels/loadorder/pkg/registry"
	"github.com/matzehuels/loadorder/pkg/resolver"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "loadorder"

	// cacheScope prefixes order keys written by the CLI.
	cacheScope = "cli:"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	// Config is loaded before any command runs.
	Config *config.Config

	configPath string
	verbose    bool
	raw        bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// =============================================================================
// Resolver Factory
// =============================================================================

// newResolver creates a resolver configured from the loaded settings. Orders
// are memoized on disk between invocations unless noCache is set.
func (c *CLI) newResolver(noCache bool) (*resolver.Resolver, error) {
	cc, err := newCache(noCache)
	if err != nil {
		return nil, err
	}
	keyer := cache.NewScopedKeyer(nil, cacheScope)
	return resolver.New(cc, keyer, c.Logger, c.Config.ResolverOptions()), nil
}

func newCache(noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/loadorder/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// =============================================================================
// Input
// =============================================================================

// input is what a command operates on: the engine component map and, unless
// the files were raw component maps, the registry it was built from.
type input struct {
	components map[string]dag.Component
	reg        *registry.Registry
}

// loadInput reads the FILE arguments of a command. Registry declarations
// are merged by registry.Load; with --raw each file is a component map or
// node-link document and an id appearing in two files is rejected.
func (c *CLI) loadInput(ctx context.Context, paths []string) (*input, error) {
	if !c.raw {
		reg, err := registry.Load(ctx, paths...)
		if err != nil {
			return nil, err
		}
		return &input{components: reg.Components(), reg: reg}, nil
	}

	components := make(map[string]dag.Component)
	source := make(map[string]string)
	for _, path := range paths {
		m, err := lio.ImportComponents(path)
		if err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "import components")
			}
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "import components")
		}
		for id, comp := range m {
			if prev, dup := source[id]; dup {
				return nil, errors.New(errors.ErrCodeDuplicateComponent,
					"component %q declared in %s and %s", id, prev, path)
			}
			source[id] = path
			components[id] = comp
		}
	}
	loggerFromContext(ctx).Debug("loaded component maps", "files", len(paths), "components", len(components))
	return &input{components: components}, nil
}

// request returns ids when given. Otherwise it returns the enabled plugins
// of the registry, or every component when there are none.
func (in *input) request(ids []string) []string {
	if len(ids) > 0 {
		return ids
	}
	if in.reg != nil {
		if enabled := in.reg.Enabled(); len(enabled) > 0 {
			return enabled
		}
	}
	return slices.Sorted(maps.Keys(in.components))
}

func (c *CLI) jsonOutput() bool {
	return c.Config != nil && c.Config.Output == config.OutputJSON
}
