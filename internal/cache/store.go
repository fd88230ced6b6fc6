// Package cache provides the key-value store behind the read-through layer
// and the key policy used to address it.
//
// A Store never fails a read path: when the backend is unreachable every Get
// misses and every Set or Delete is silently dropped.
package cache

import (
	"context"
	"time"
)

// ConnState is the connection state of a networked store.
type ConnState string

const (
	StateDisconnected ConnState = "DISCONNECTED"
	StateConnecting   ConnState = "CONNECTING"
	StateConnected    ConnState = "CONNECTED"
)

// StateChange describes one connection transition.
type StateChange struct {
	From ConnState
	To   ConnState
	Err  error // cause of a drop to DISCONNECTED, if any
	At   time.Time
}

// Store is a TTL key-value store of opaque bytes.
type Store interface {
	// Get returns the value and true on a hit. Misses, expiry and backend
	// unavailability all return false.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set writes value with ttl. Failures are swallowed.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// Delete removes keys. Failures are swallowed.
	Delete(ctx context.Context, keys ...string)
	// Flush removes every key. Unlike the other operations it reports errors.
	Flush(ctx context.Context) error
	// State reports the current connection state.
	State() ConnState
	Close() error
}
