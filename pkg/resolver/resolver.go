// Package resolver is the entry point to the load order engine.
//
// A [Resolver] builds an annotated graph from a component map ([Resolver.Build]),
// extracts load orders from it ([Resolver.Sort]), or does both in one step with
// memoization ([Resolver.Resolve]). It applies the configured cycle and
// dangling dependency policies and converts engine errors into coded
// [errors.Error] values, keeping the engine's typed errors reachable through
// the standard errors.Is / errors.As chain.
//
// A Resolver holds no per-call state and may be shared between goroutines.
package resolver

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/loadorder/pkg/cache"
	"github.com/matzehuels/loadorder/pkg/dag"
	"github.com/matzehuels/loadorder/pkg/dag/annotate"
	"github.com/matzehuels/loadorder/pkg/dag/order"
	"github.com/matzehuels/loadorder/pkg/errors"
	"github.com/matzehuels/loadorder/pkg/observability"
)

// DefaultTTL is how long memoized orders stay valid when Options.TTL is zero.
const DefaultTTL = 10 * time.Minute

// Options configures a Resolver.
type Options struct {
	Cycles   CyclePolicy
	Dangling DanglingPolicy
	// TTL bounds the lifetime of memoized orders. Zero means DefaultTTL.
	TTL time.Duration
}

// Resolver builds annotated graphs and extracts load orders with caching.
type Resolver struct {
	Cache   cache.Cache
	Keyer   cache.Keyer
	Logger  *log.Logger
	Options Options
}

// New creates a resolver.
// If c is nil, a NullCache is used (memoization disabled).
// If keyer is nil, a DefaultKeyer is used.
func New(c cache.Cache, keyer cache.Keyer, logger *log.Logger, opts Options) *Resolver {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.Default()
	}
	if opts.Cycles == "" {
		opts.Cycles = CyclesReject
	}
	if opts.Dangling == "" {
		opts.Dangling = DanglingIgnore
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	return &Resolver{Cache: c, Keyer: keyer, Logger: logger, Options: opts}
}

// Build annotates the component map.
//
// Under [DanglingReject] a dependency on an id missing from the map fails
// with DANGLING_DEPENDENCY wrapping a [dag.DanglingError]. Under
// [CyclesReject] a cyclic graph fails with CYCLIC_DEPENDENCY wrapping a
// [dag.CycleError] that names every cycle.
func (r *Resolver) Build(ctx context.Context, components map[string]dag.Component) (*annotate.Result, error) {
	return r.build(ctx, r.runLogger(), components)
}

func (r *Resolver) build(ctx context.Context, logger *log.Logger, components map[string]dag.Component) (_ *annotate.Result, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hooks := observability.Resolver()
	hooks.OnBuildStart(ctx, len(components))
	start := time.Now()
	cycles := 0
	defer func() {
		hooks.OnBuildComplete(ctx, len(components), cycles, time.Since(start), err)
	}()

	g := dag.New(components)
	if dangling := g.Dangling(); dangling != nil && r.Options.Dangling == DanglingReject {
		return nil, errors.Wrap(errors.ErrCodeDanglingDependency, &dag.DanglingError{Edges: dangling},
			"build %d components", g.Len())
	}

	res := annotate.Annotate(g, annotate.Options{Logger: logger})
	cycles = len(res.Cycles)
	if res.HasCycles() {
		if r.Options.Cycles == CyclesReject {
			return nil, errors.Wrap(errors.ErrCodeCyclicDependency, &dag.CycleError{Cycles: res.Cycles},
				"build %d components", g.Len())
		}
		logger.Warn("tolerating cycles", "count", len(res.Cycles))
	}

	logger.Debug("built graph",
		"components", g.Len(),
		"edges", g.EdgeCount(),
		"dangling", len(res.Dangling),
		"duration", time.Since(start))
	return res, nil
}

// Sort returns the load order for ids over an annotated result: every id
// in ids plus everything it transitively requires, each component after
// its dependencies. An unknown id fails the whole request with
// UNKNOWN_COMPONENT and a nil order.
func (r *Resolver) Sort(ctx context.Context, ids []string, res *annotate.Result) ([]string, error) {
	return r.sort(ctx, r.runLogger(), ids, res)
}

func (r *Resolver) sort(ctx context.Context, logger *log.Logger, ids []string, res *annotate.Result) (out []string, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "sort requires an annotated graph")
	}

	hooks := observability.Resolver()
	hooks.OnSortStart(ctx, len(ids))
	start := time.Now()
	defer func() {
		hooks.OnSortComplete(ctx, len(ids), len(out), time.Since(start), err)
	}()

	out, err = order.Extract(ids, res)
	if err != nil {
		var unknown *dag.UnknownComponentError
		if stderrors.As(err, &unknown) {
			return nil, errors.Wrap(errors.ErrCodeUnknownComponent, err, "sort %d requested components", len(ids))
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "sort")
	}

	logger.Debug("sorted components", "requested", len(ids), "ordered", len(out))
	return out, nil
}

// Resolve builds the component map and sorts ids in one step. Successful
// orders are memoized under the hash of the component map, the request and
// the active policies. Maps whose payloads cannot be JSON encoded are
// resolved without memoization.
func (r *Resolver) Resolve(ctx context.Context, ids []string, components map[string]dag.Component) ([]string, error) {
	out, _, err := r.ResolveWithCacheInfo(ctx, ids, components)
	return out, err
}

// ResolveWithCacheInfo is Resolve that also reports whether the order came
// from the cache.
func (r *Resolver) ResolveWithCacheInfo(ctx context.Context, ids []string, components map[string]dag.Component) ([]string, bool, error) {
	logger := r.runLogger()

	key := ""
	if graphHash, err := cache.HashJSON(components); err != nil {
		logger.Debug("skipping memoization", "reason", err)
	} else {
		key = r.Keyer.OrderKey(graphHash, cache.OrderKeyOpts{
			Requested: ids,
			Cycles:    string(r.Options.Cycles),
			Dangling:  string(r.Options.Dangling),
		})
	}

	if key != "" {
		if out, ok := r.lookup(ctx, key); ok {
			logger.Debug("order cache hit", "ordered", len(out))
			return out, true, nil
		}
	}

	res, err := r.build(ctx, logger, components)
	if err != nil {
		return nil, false, err
	}
	out, err := r.sort(ctx, logger, ids, res)
	if err != nil {
		return nil, false, err
	}

	if key != "" {
		r.store(ctx, key, out)
	}
	return out, false, nil
}

func (r *Resolver) lookup(ctx context.Context, key string) ([]string, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil || !hit {
		if err != nil {
			r.Logger.Debug("order cache read failed", "err", err)
		}
		observability.Cache().OnCacheMiss(ctx, cache.KeyTypeOrder)
		return nil, false
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		_ = r.Cache.Delete(ctx, key)
		observability.Cache().OnCacheMiss(ctx, cache.KeyTypeOrder)
		return nil, false
	}
	if out == nil {
		out = []string{}
	}
	observability.Cache().OnCacheHit(ctx, cache.KeyTypeOrder)
	return out, true
}

func (r *Resolver) store(ctx context.Context, key string, out []string) {
	data, err := json.Marshal(out)
	if err != nil {
		return
	}
	if err := r.Cache.Set(ctx, key, data, r.Options.TTL); err != nil {
		r.Logger.Debug("order cache write failed", "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, cache.KeyTypeOrder, len(data))
}

// Close releases the cache.
func (r *Resolver) Close() error {
	return r.Cache.Close()
}

// runLogger tags the log lines of one call with a fresh run id.
func (r *Resolver) runLogger() *log.Logger {
	return r.Logger.With("run", uuid.NewString()[:8])
}
