// Package config loads loadorder settings.
//
// Settings are layered, later sources overriding earlier ones:
//
//  1. built-in defaults
//  2. the TOML config file (loadorder.toml, or the path given with --config)
//  3. LOADORDER_* environment variables (LOADORDER_CACHE_TTL sets cache.ttl)
//  4. command-line flags
package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/matzehuels/loadorder/pkg/errors"
	"github.com/matzehuels/loadorder/pkg/resolver"
)

const (
	// DefaultFile is read from the working directory when no --config is given.
	DefaultFile = "loadorder.toml"

	envPrefix = "LOADORDER_"
)

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// Config holds all loadorder settings.
type Config struct {
	Cycles   string       `koanf:"cycles"`
	Dangling string       `koanf:"dangling"`
	Output   string       `koanf:"output"`
	Log      LogConfig    `koanf:"log"`
	Server   ServerConfig `koanf:"server"`
	Cache    CacheConfig  `koanf:"cache"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `koanf:"level"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Listen string `koanf:"listen"`
	// Watch reloads declaration files when they change.
	Watch bool `koanf:"watch"`
}

// CacheConfig configures order memoization.
type CacheConfig struct {
	TTL time.Duration `koanf:"ttl"`
	// Size bounds the in-memory cache; zero disables it.
	Size int `koanf:"size"`
}

// flagKeys maps command-line flag names to config keys where they differ.
var flagKeys = map[string]string{
	"listen":     "server.listen",
	"watch":      "server.watch",
	"cache-ttl":  "cache.ttl",
	"cache-size": "cache.size",
	"log-level":  "log.level",
}

func defaults() map[string]any {
	return map[string]any{
		"cycles":   string(resolver.CyclesReject),
		"dangling": string(resolver.DanglingIgnore),
		"output":   OutputText,
		"log": map[string]any{
			"level": "info",
		},
		"server": map[string]any{
			"listen": ":8080",
			"watch":  false,
		},
		"cache": map[string]any{
			"ttl":  "10m",
			"size": 512,
		},
	}
}

// Load reads the configuration. An explicit path must exist; the default
// file is optional. f may be nil.
func Load(f *pflag.FlagSet, path string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(mapProvider(defaults()), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	// 2. Config file
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		if explicit || !stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "load config %s", path)
		}
	}

	// 3. Environment variables
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.ProviderWithFlag(f, ".", k, flagKey(f)), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// flagKey translates flags of fs into config keys. Flags that are not
// settings (like --config itself) are skipped.
func flagKey(fs *pflag.FlagSet) func(*pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		switch f.Name {
		case "cycles", "dangling", "output":
			return f.Name, posflag.FlagVal(fs, f)
		}
		if key, ok := flagKeys[f.Name]; ok {
			return key, posflag.FlagVal(fs, f)
		}
		return "", nil
	}
}

// Validate checks every setting and returns the first problem found.
func (c *Config) Validate() error {
	if _, err := resolver.ParseCyclePolicy(c.Cycles); err != nil {
		return err
	}
	if _, err := resolver.ParseDanglingPolicy(c.Dangling); err != nil {
		return err
	}
	if c.Output != OutputText && c.Output != OutputJSON {
		return errors.New(errors.ErrCodeInvalidInput, "unknown output format %q (want text or json)", c.Output)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "log.level")
	}
	if c.Cache.Size < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "cache.size must not be negative")
	}
	if c.Cache.TTL < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "cache.ttl must not be negative")
	}
	return nil
}

// ResolverOptions converts the policy settings. Call it on a validated
// config.
func (c *Config) ResolverOptions() resolver.Options {
	cycles, _ := resolver.ParseCyclePolicy(c.Cycles)
	dangling, _ := resolver.ParseDanglingPolicy(c.Dangling)
	return resolver.Options{Cycles: cycles, Dangling: dangling, TTL: c.Cache.TTL}
}

// LogLevel returns the configured level, or info if it does not parse.
func (c *Config) LogLevel() log.Level {
	l, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return l
}

// mapProvider serves a static map to koanf.
type mapProvider map[string]any

func (p mapProvider) Read() (map[string]any, error) {
	return p, nil
}

func (p mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
