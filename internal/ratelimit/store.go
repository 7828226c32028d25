// Package ratelimit provides a counter-with-expiry store used by the
// rate-limit middleware. The store is injected through the application
// wiring rather than held as a process-wide singleton, so an in-process
// cache and an external cache are interchangeable.
package ratelimit

import (
	"context"
	"time"
)

// Store increments a counter for a key, starting the expiry window on the
// first hit. It returns the count within the current window.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}
