// Package cache memoizes resolved load orders.
//
// Cached values are opaque byte slices. The resolver stores the JSON encoding
// of an ordered id list under a key derived from the hash of the component
// map, the requested ids and the active policies, so any change to the input
// graph produces a new key and stale entries simply age out.
//
// Three implementations are provided:
//   - [MemoryCache]: bounded, TTL-aware in-process cache used by the server
//   - [FileCache]: on-disk cache used by the CLI between invocations
//   - [NullCache]: disables caching
//
// Key generation goes through a [Keyer] so deployments serving several
// registries can namespace entries with [NewScopedKeyer].
package cache

import (
	"context"
	"slices"
	"time"
)

// Cache stores opaque values under string keys.
//
// Implementations must be safe for concurrent use. A ttl of zero means the
// entry does not expire on its own.
type Cache interface {
	// Get returns the value for key and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key for the given ttl.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}

// Key types reported to observability hooks.
const (
	KeyTypeOrder = "order"
)

// Keyer generates cache keys.
type Keyer interface {
	// OrderKey returns the key for the load order of opts.Requested
	// within the component map identified by graphHash.
	OrderKey(graphHash string, opts OrderKeyOpts) string
}

// OrderKeyOpts holds the inputs, besides the graph itself, that influence a
// resolved order.
type OrderKeyOpts struct {
	Requested []string `json:"requested"`
	Cycles    string   `json:"cycles"`
	Dangling  string   `json:"dangling"`
}

// DefaultKeyer produces unscoped keys of the form "order:<sha256>".
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// OrderKey hashes the graph hash together with the sorted, de-duplicated
// request so that requests naming the same ids in a different order share
// an entry.
func (DefaultKeyer) OrderKey(graphHash string, opts OrderKeyOpts) string {
	req := slices.Clone(opts.Requested)
	slices.Sort(req)
	opts.Requested = slices.Compact(req)
	return hashKey(KeyTypeOrder, graphHash, opts)
}
