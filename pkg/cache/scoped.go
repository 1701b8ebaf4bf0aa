package cache

// ScopedKeyer wraps a Keyer with a prefix so that several registries can
// share one cache without colliding.
//
// Example usage:
//
//	// Keys for the registry served from ./mods
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "registry:mods:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// OrderKey generates a prefixed key for load order caching.
func (k *ScopedKeyer) OrderKey(graphHash string, opts OrderKeyOpts) string {
	return k.prefix + k.inner.OrderKey(graphHash, opts)
}
