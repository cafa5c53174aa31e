// Package kv defines the durable key-value contract consent state is kept in.
package kv

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by backends that cannot be reached at all.
var ErrUnavailable = errors.New("key-value store unavailable")

// Store is a visitor-local durable string store.
// No eviction, no expiry, no encryption.
type Store interface {
	// Get returns found=false when the key does not exist.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Scoper hands out a Store isolated to one visitor, the way browser storage
// is isolated to one origin.
type Scoper interface {
	Scope(visitorID string) Store
}
