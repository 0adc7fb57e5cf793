// Package provider defines the config source abstraction.
//
// Providers load raw configuration bytes and support watching for
// changes. Only the local file source is implemented.
package provider

import "context"

// Provider abstracts config sources.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Load reads raw config bytes from the source.
	Load(ctx context.Context) ([]byte, error)

	// Watch starts watching for changes and signals via the returned
	// channel. Cancel the context to stop watching. Returns a nil
	// channel if watching is not supported.
	Watch(ctx context.Context) (<-chan struct{}, error)

	// Close releases any resources held by the provider.
	Close() error
}
