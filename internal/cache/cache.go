// Package cache stores rendered HTML keyed by the fully-qualified
// render request, so repeated ingests of the same page skip the
// render dependency.
package cache

import "context"

// Store is the rendered-HTML cache contract.
type Store interface {
	// Get returns the cached HTML for key, refreshing its recency.
	// ok is false on a miss or an expired entry.
	Get(ctx context.Context, key string) (html string, ok bool, err error)
	// Set stores html under key, evicting under capacity pressure.
	Set(ctx context.Context, key, html string) error
	Close() error
}
